package main

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kiranbanna12/setup-first-sub002/pkg/config"
	"github.com/Kiranbanna12/setup-first-sub002/pkg/gateway"
	"github.com/Kiranbanna12/setup-first-sub002/pkg/jwt"
	"github.com/Kiranbanna12/setup-first-sub002/pkg/logger"
	"github.com/Kiranbanna12/setup-first-sub002/pkg/requestid"
	"github.com/Kiranbanna12/setup-first-sub002/pkg/signature"
	"github.com/Kiranbanna12/setup-first-sub002/pkg/subscription"
)

// The tests in this file share process environment and the config cache,
// so none of them run in parallel.

func resetConfig(t *testing.T) {
	t.Helper()
	config.ResetCache()
	t.Cleanup(config.ResetCache)
}

func TestVersionCmd(t *testing.T) {
	oldVersion, oldCommit := Version, Commit
	t.Cleanup(func() { Version, Commit = oldVersion, oldCommit })

	run := func() string {
		var out bytes.Buffer
		cmd := newRootCmd()
		cmd.SetOut(&out)
		cmd.SetArgs([]string{"version"})
		require.NoError(t, cmd.Execute())
		return out.String()
	}

	Version, Commit = "1.4.0", "abc123"
	out := run()
	assert.Contains(t, out, "billingd 1.4.0")
	assert.Contains(t, out, "Commit: abc123")

	Commit = "unknown"
	assert.NotContains(t, run(), "Commit:")
}

func TestRootCmd_Subcommands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range newRootCmd().Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"serve", "migrate", "sweep", "version"} {
		assert.True(t, names[want], want)
	}
}

func TestAppConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		resetConfig(t)
		t.Setenv("PAYMENT_SIGNATURE_SECRET", "secret")

		var cfg appConfig
		require.NoError(t, config.Load(&cfg))
		assert.Equal(t, "razorpay", cfg.GatewayProvider)
		assert.Equal(t, "none", cfg.SweepLock)
		assert.Equal(t, "plans.yaml", cfg.CatalogPath)
		assert.Equal(t, 2*time.Minute, cfg.SweepLockTTL)
		assert.Equal(t, []string{"X-Forwarded-For", "X-Real-IP"}, cfg.TrustedIPHeaders)
		assert.Equal(t, 10, cfg.VerifyBurst)
	})

	t.Run("unknown provider", func(t *testing.T) {
		resetConfig(t)
		t.Setenv("PAYMENT_SIGNATURE_SECRET", "secret")
		t.Setenv("GATEWAY_PROVIDER", "paypal")

		var cfg appConfig
		require.ErrorIs(t, config.Load(&cfg), config.ErrInvalidConfig)
	})

	t.Run("short service token", func(t *testing.T) {
		resetConfig(t)
		t.Setenv("PAYMENT_SIGNATURE_SECRET", "secret")
		t.Setenv("INTERNAL_SERVICE_TOKEN", "short")

		var cfg appConfig
		require.ErrorIs(t, config.Load(&cfg), config.ErrInvalidConfig)
	})
}

func TestNewGateway(t *testing.T) {
	t.Run("razorpay", func(t *testing.T) {
		resetConfig(t)
		t.Setenv("RAZORPAY_KEY_ID", "rzp_test_1")
		t.Setenv("RAZORPAY_KEY_SECRET", "secret")

		gw, parser, err := newGateway("razorpay", logger.Discard())
		require.NoError(t, err)
		assert.IsType(t, &gateway.Razorpay{}, gw)
		assert.Same(t, gw, parser)
	})

	t.Run("stripe", func(t *testing.T) {
		resetConfig(t)
		t.Setenv("STRIPE_SECRET_KEY", "sk_test_1")

		gw, _, err := newGateway("stripe", logger.Discard())
		require.NoError(t, err)
		assert.Implements(t, (*subscription.Resumer)(nil), gw)
	})

	t.Run("missing credentials", func(t *testing.T) {
		resetConfig(t)
		t.Setenv("RAZORPAY_KEY_ID", "")
		t.Setenv("RAZORPAY_KEY_SECRET", "")

		_, _, err := newGateway("razorpay", logger.Discard())
		require.Error(t, err)
	})

	t.Run("unknown", func(t *testing.T) {
		resetConfig(t)
		_, _, err := newGateway("paypal", logger.Discard())
		require.Error(t, err)
	})
}

func TestNewVerifyLimit(t *testing.T) {
	b, err := newVerifyLimit(appConfig{VerifyBurst: 0, VerifyInterval: time.Minute})
	require.NoError(t, err)
	assert.Nil(t, b)

	b, err = newVerifyLimit(appConfig{VerifyBurst: 3, VerifyInterval: time.Minute})
	require.NoError(t, err)
	res, err := b.Allow(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 3, res.Limit)
}

func TestNewLocker_None(t *testing.T) {
	a := &app{cfg: appConfig{SweepLock: "none"}, log: logger.Discard()}
	l, err := a.newLocker(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, l)
}

type stubGateway struct{}

func (stubGateway) CreateCustomer(context.Context, subscription.Profile) (string, error) {
	return "cust_1", nil
}

func (stubGateway) CreateSubscription(context.Context, subscription.CreateSubscriptionRequest) (subscription.GatewaySubscription, error) {
	return subscription.GatewaySubscription{Ref: "sub_1"}, nil
}

func (stubGateway) CancelSubscription(_ context.Context, ref string, atCycleEnd bool) (subscription.CancelResult, error) {
	return subscription.CancelResult{Ref: ref, AtCycleEnd: atCycleEnd}, nil
}

func TestRouter(t *testing.T) {
	svc := subscription.NewService(
		subscription.NewMemoryStore(),
		subscription.MustNewCatalog(subscription.Plan{
			ID: "pro", Tier: "pro", BillingPeriod: subscription.BillingMonthly, ExternalPlanRef: "plan_pro",
		}),
		stubGateway{},
		signature.MustNewVerifier("secret"),
		subscription.WithLogger(logger.Discard()),
	)
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())

	a := &app{
		cfg:      appConfig{GatewayProvider: "razorpay", ServiceToken: "service-token-0001"},
		log:      logger.Discard(),
		svc:      svc,
		sweeper:  subscription.NewSweeper(svc),
		registry: registry,
	}
	auth, err := jwt.NewFromString("0123456789abcdef0123456789abcdef")
	require.NoError(t, err)

	srv := httptest.NewServer(a.router(auth, time.Second))
	t.Cleanup(srv.Close)

	get := func(path string) (*http.Response, string) {
		resp, err := srv.Client().Get(srv.URL + path)
		require.NoError(t, err)
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		return resp, string(body)
	}

	resp, body := get("/health/live")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "alive")
	assert.NotEmpty(t, resp.Header.Get(requestid.Header))

	resp, _ = get("/health/ready")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = get("/metrics")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "go_goroutines")

	resp, _ = get("/entitlement")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/internal/reconcile", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer service-token-0001")
	res, err := srv.Client().Do(req)
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)
}
