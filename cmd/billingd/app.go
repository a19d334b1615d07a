package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Kiranbanna12/setup-first-sub002/modules/billing"
	"github.com/Kiranbanna12/setup-first-sub002/pkg/clientip"
	"github.com/Kiranbanna12/setup-first-sub002/pkg/config"
	"github.com/Kiranbanna12/setup-first-sub002/pkg/email"
	"github.com/Kiranbanna12/setup-first-sub002/pkg/gateway"
	"github.com/Kiranbanna12/setup-first-sub002/pkg/httpserver"
	"github.com/Kiranbanna12/setup-first-sub002/pkg/jwt"
	"github.com/Kiranbanna12/setup-first-sub002/pkg/logger"
	"github.com/Kiranbanna12/setup-first-sub002/pkg/notifications"
	"github.com/Kiranbanna12/setup-first-sub002/pkg/pg"
	"github.com/Kiranbanna12/setup-first-sub002/pkg/ratelimiter"
	"github.com/Kiranbanna12/setup-first-sub002/pkg/redis"
	"github.com/Kiranbanna12/setup-first-sub002/pkg/requestid"
	"github.com/Kiranbanna12/setup-first-sub002/pkg/signature"
	"github.com/Kiranbanna12/setup-first-sub002/pkg/subscription"
)

// app is the wired service shared by serve and sweep.
type app struct {
	cfg      appConfig
	log      *slog.Logger
	svc      *subscription.Service
	sweeper  *subscription.Sweeper
	webhook  gateway.WebhookParser
	registry *prometheus.Registry
	checks   []httpserver.Check
	closers  []func()

	ips         *clientip.Resolver
	verifyLimit *ratelimiter.Bucket
}

func newLogger(cfg appConfig) *slog.Logger {
	log := logger.New(
		logger.WithEnvironment(cfg.Env, cfg.Name),
		logger.WithContextExtractors(requestid.LoggerExtractor(), clientip.LoggerExtractor()),
	)
	logger.SetAsDefault(log)
	return log
}

func newApp(ctx context.Context) (_ *app, err error) {
	a := &app{registry: prometheus.NewRegistry()}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	if err := config.Load(&a.cfg); err != nil {
		return nil, err
	}
	a.log = newLogger(a.cfg)
	a.ips = clientip.New(a.cfg.TrustedIPHeaders...)
	if a.verifyLimit, err = newVerifyLimit(a.cfg); err != nil {
		return nil, err
	}

	var (
		pgCfg      pg.Config
		billingCfg subscription.Config
		emailCfg   email.Config
	)
	for _, load := range []func() error{
		func() error { return config.Load(&pgCfg) },
		func() error { return config.Load(&billingCfg) },
		func() error { return config.Load(&emailCfg) },
	} {
		if err := load(); err != nil {
			return nil, err
		}
	}

	pool, err := pg.Connect(ctx, pgCfg)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, pool.Close)
	a.checks = append(a.checks, httpserver.Check{Name: "postgres", Fn: pg.Healthcheck(pool)})

	catalog, err := subscription.LoadCatalogFile(a.cfg.CatalogPath)
	if err != nil {
		return nil, err
	}
	verifier, err := signature.NewVerifier(a.cfg.PaymentSecret)
	if err != nil {
		return nil, err
	}

	gw, webhook, err := newGateway(a.cfg.GatewayProvider, a.log)
	if err != nil {
		return nil, err
	}
	a.webhook = webhook

	store := subscription.NewPostgresStore(pool)
	notices, err := newNotifications(a.cfg, emailCfg, pool, store, a.log)
	if err != nil {
		return nil, err
	}

	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.svc = subscription.NewService(store, catalog, gw, verifier,
		subscription.WithConfig(billingCfg),
		subscription.WithLogger(a.log),
		subscription.WithEmitter(notices),
		subscription.WithMetrics(subscription.NewMetrics(a.registry)),
	)

	locker, err := a.newLocker(ctx, pool)
	if err != nil {
		return nil, err
	}
	opts := []subscription.SweeperOption{subscription.WithSweepInterval(billingCfg.SweepInterval)}
	if locker != nil {
		opts = append(opts, subscription.WithLocker(locker, a.cfg.SweepLockTTL))
	}
	a.sweeper = subscription.NewSweeper(a.svc, opts...)

	a.log.InfoContext(ctx, "billing service wired",
		logger.Provider(a.cfg.GatewayProvider),
		slog.Int("plans", len(catalog.Plans())),
		slog.String("sweep_lock", a.cfg.SweepLock),
	)
	return a, nil
}

// newGateway builds the adapter named by provider. Both adapters verify
// their own webhooks.
func newGateway(provider string, log *slog.Logger) (subscription.Gateway, gateway.WebhookParser, error) {
	var breakerCfg gateway.BreakerConfig
	if err := config.Load(&breakerCfg); err != nil {
		return nil, nil, err
	}
	opts := []gateway.Option{
		gateway.WithLogger(log),
		gateway.WithBreaker(gateway.NewBreakerFromConfig(breakerCfg)),
	}

	switch provider {
	case "razorpay":
		var cfg gateway.RazorpayConfig
		if err := config.Load(&cfg); err != nil {
			return nil, nil, err
		}
		rp, err := gateway.NewRazorpay(cfg, opts...)
		return rp, rp, err
	case "stripe":
		var cfg gateway.StripeConfig
		if err := config.Load(&cfg); err != nil {
			return nil, nil, err
		}
		st, err := gateway.NewStripe(cfg, opts...)
		return st, st, err
	default:
		return nil, nil, fmt.Errorf("unknown gateway provider %q", provider)
	}
}

// newNotifications stores notices in Postgres and mails them to the account
// holder.
func newNotifications(cfg appConfig, emailCfg email.Config, pool *pgxpool.Pool, store subscription.Store, log *slog.Logger) (*notifications.Manager, error) {
	sender, err := email.NewSender(emailCfg)
	if err != nil {
		return nil, err
	}
	directory := notifications.DirectoryFunc(func(ctx context.Context, userID string) (notifications.Recipient, error) {
		acc, err := store.GetAccount(ctx, userID)
		if err != nil {
			return notifications.Recipient{}, err
		}
		return notifications.Recipient{Email: acc.Email, Name: acc.Name}, nil
	})
	return notifications.NewManager(
		notifications.NewPostgresStorage(pool),
		notifications.NewEmailDeliverer(sender, directory, cfg.Name, cfg.URL),
		notifications.WithManagerLogger(log),
	), nil
}

// newLocker returns the sweep lease backend, or nil when every replica sweeps.
func (a *app) newLocker(ctx context.Context, pool *pgxpool.Pool) (subscription.Locker, error) {
	switch a.cfg.SweepLock {
	case "redis":
		var cfg redis.Config
		if err := config.Load(&cfg); err != nil {
			return nil, err
		}
		client, err := redis.Connect(ctx, cfg)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = client.Close() })
		a.checks = append(a.checks, httpserver.Check{Name: "redis", Fn: redis.Healthcheck(client)})
		return redis.NewLease(client, cfg.LeasePrefix, a.log), nil
	case "postgres":
		return pg.NewAdvisoryLock(pool, a.log), nil
	case "none", "":
		return nil, nil
	default:
		return nil, errors.New("unknown sweep lock " + a.cfg.SweepLock)
	}
}

// router mounts the ops endpoints next to the billing module.
func (a *app) router(auth *jwt.Service, probeTimeout time.Duration) http.Handler {
	r := chi.NewRouter()
	r.Use(requestid.Middleware, middleware.Recoverer)
	if a.ips != nil {
		r.Use(a.ips.Middleware)
	}

	r.Get("/health/live", httpserver.LivenessHandler())
	r.Get("/health/ready", httpserver.ReadinessHandler(a.log, probeTimeout, a.checks...))
	r.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{Registry: a.registry}))

	m := billing.New(a.svc, a.sweeper, auth,
		billing.WithLogger(a.log),
		billing.WithServiceToken(a.cfg.ServiceToken),
		billing.WithWebhook(a.cfg.GatewayProvider, a.webhook),
		billing.WithRegisterer(a.registry),
		billing.WithVerifyLimit(a.verifyLimit),
	)
	r.Mount("/", m.Router())
	return r
}

// newVerifyLimit returns the per-user verification limiter, or nil when the
// burst is zero.
func newVerifyLimit(cfg appConfig) (*ratelimiter.Bucket, error) {
	if cfg.VerifyBurst == 0 {
		return nil, nil
	}
	return ratelimiter.NewBucket(ratelimiter.NewMemoryStore(), ratelimiter.Config{
		Capacity:       cfg.VerifyBurst,
		RefillRate:     1,
		RefillInterval: cfg.VerifyInterval,
	})
}

// Close waits for in-flight notices and releases connections in reverse order.
func (a *app) Close() {
	if a.svc != nil {
		a.svc.Wait()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
