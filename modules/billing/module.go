package billing

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Kiranbanna12/setup-first-sub002/handler"
	"github.com/Kiranbanna12/setup-first-sub002/pkg/binder"
	"github.com/Kiranbanna12/setup-first-sub002/pkg/gateway"
	"github.com/Kiranbanna12/setup-first-sub002/pkg/jwt"
	"github.com/Kiranbanna12/setup-first-sub002/pkg/logger"
	"github.com/Kiranbanna12/setup-first-sub002/pkg/ratelimiter"
	"github.com/Kiranbanna12/setup-first-sub002/pkg/subscription"
)

// Module serves the subscription API, the gateway webhooks and the internal
// reconcile trigger.
type Module struct {
	svc          *subscription.Service
	sweeper      *subscription.Sweeper
	auth         *jwt.Service
	serviceToken string
	webhooks     map[string]gateway.WebhookParser
	log          *slog.Logger
	onError      handler.ErrorHandler[handler.Context]
	deliveries   *prometheus.CounterVec
	verifyLimit  *ratelimiter.Bucket
}

// Option configures a Module.
type Option func(*Module)

// WithLogger sets the logger for request failures and webhook outcomes.
func WithLogger(l *slog.Logger) Option {
	return func(m *Module) {
		if l != nil {
			m.log = l
		}
	}
}

// WithWebhook mounts POST /webhooks/{provider} backed by parser.
func WithWebhook(provider string, parser gateway.WebhookParser) Option {
	return func(m *Module) {
		if provider != "" && parser != nil {
			m.webhooks[provider] = parser
		}
	}
}

// WithServiceToken sets the credential POST /internal/reconcile requires.
// Without one the route rejects every caller.
func WithServiceToken(token string) Option {
	return func(m *Module) {
		m.serviceToken = token
	}
}

// WithVerifyLimit caps payment verification attempts per user with b.
func WithVerifyLimit(b *ratelimiter.Bucket) Option {
	return func(m *Module) {
		m.verifyLimit = b
	}
}

// WithRegisterer registers the webhook delivery counter on reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(m *Module) {
		if reg != nil {
			reg.MustRegister(m.deliveries)
		}
	}
}

// New returns the billing module. User routes authenticate with auth.
func New(svc *subscription.Service, sweeper *subscription.Sweeper, auth *jwt.Service, opts ...Option) *Module {
	m := &Module{
		svc:      svc,
		sweeper:  sweeper,
		auth:     auth,
		webhooks: make(map[string]gateway.WebhookParser),
		log:      slog.Default(),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "billing",
			Name:      "webhook_deliveries_total",
			Help:      "Gateway webhook deliveries by provider and outcome.",
		}, []string{"provider", "outcome"}),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.log = m.log.With(logger.Component("billing_http"))
	m.onError = handler.NewErrorHandler(m.log)
	return m
}

// Router returns the module routes, ready to mount at the root.
func (m *Module) Router() chi.Router {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		r.Use(jwt.MiddlewareWithConfig(jwt.MiddlewareConfig{
			Service:      m.auth,
			ErrorHandler: renderUnauthorized,
		}))

		r.Post("/subscriptions", wrap(m, m.createSubscription, binder.JSON(), binder.Validate()))
		r.Post("/subscriptions/{id}/cancel", wrap(m, m.cancel, binder.Path(), binder.JSON(), binder.Validate()))
		r.Get("/entitlement", wrap(m, m.entitlement))

		// Both routes check a payment signature.
		r.Group(func(r chi.Router) {
			if m.verifyLimit != nil {
				r.Use(ratelimiter.Middleware(ratelimiter.MiddlewareConfig{
					Bucket:  m.verifyLimit,
					Key:     func(r *http.Request) string { return jwt.UserID(r.Context()) },
					Prefix:  "verify:",
					OnLimit: m.renderLimited,
					OnError: m.limiterFailed,
				}))
			}
			r.Post("/subscriptions/verify-payment", wrap(m, m.verifyPayment, binder.JSON(), binder.Validate()))
			r.Post("/subscriptions/{id}/resume", wrap(m, m.resume, binder.Path(), binder.JSON(), binder.Validate()))
		})
	})

	r.With(m.requireServiceToken).Post("/internal/reconcile", wrap(m, m.reconcile))

	for provider, parser := range m.webhooks {
		r.Post("/webhooks/"+provider, wrap(m, m.webhook(provider, parser), readDelivery))
	}

	return r
}

func wrap[R any](m *Module, h handler.HandlerFunc[handler.Context, R], binders ...handler.Bind) http.HandlerFunc {
	return handler.Wrap(h,
		handler.WithBinders[handler.Context, R](binders...),
		handler.WithErrorHandler[handler.Context, R](m.onError),
	)
}

// fail logs err and renders it with the billing error mapping.
func (m *Module) fail(ctx handler.Context, err error) handler.Response {
	return responseFunc(func(http.ResponseWriter, *http.Request) error {
		m.onError(ctx, httpError(err))
		return nil
	})
}

type responseFunc func(w http.ResponseWriter, r *http.Request) error

func (f responseFunc) Render(w http.ResponseWriter, r *http.Request) error { return f(w, r) }
