package gateway_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kiranbanna12/setup-first-sub002/pkg/gateway"
	"github.com/Kiranbanna12/setup-first-sub002/pkg/logger"
	"github.com/Kiranbanna12/setup-first-sub002/pkg/signature"
	"github.com/Kiranbanna12/setup-first-sub002/pkg/subscription"
)

const razorpayWebhookSecret = "rzp_whsec"

var fixedNow = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func fastBackoff() gateway.Backoff {
	return gateway.Backoff{Initial: time.Millisecond, Max: 2 * time.Millisecond, Multiplier: 2}
}

func newRazorpay(t *testing.T, handler http.HandlerFunc, opts ...gateway.Option) *gateway.Razorpay {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	opts = append([]gateway.Option{
		gateway.WithLogger(logger.Discard()),
		gateway.WithBackoff(fastBackoff()),
		gateway.WithClock(func() time.Time { return fixedNow }),
	}, opts...)

	rzp, err := gateway.NewRazorpay(gateway.RazorpayConfig{
		KeyID:          "rzp_key",
		KeySecret:      "rzp_secret",
		WebhookSecret:  razorpayWebhookSecret,
		BaseURL:        srv.URL,
		Timeout:        time.Second,
		TotalCount:     12,
		RetryMax:       1,
		NotifyCustomer: true,
	}, opts...)
	require.NoError(t, err)
	return rzp
}

func decodeBody(t *testing.T, r *http.Request) map[string]any {
	t.Helper()
	var body map[string]any
	assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
	return body
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func razorpayError(code, description string) map[string]any {
	return map[string]any{"error": map[string]any{"code": code, "description": description}}
}

func TestNewRazorpay_RequiresKeys(t *testing.T) {
	t.Parallel()
	_, err := gateway.NewRazorpay(gateway.RazorpayConfig{KeyID: "only_id"})
	require.Error(t, err)
}

func TestRazorpay_CreateCustomer(t *testing.T) {
	t.Parallel()

	rzp := newRazorpay(t, func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "rzp_key", user)
		assert.Equal(t, "rzp_secret", pass)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/customers", r.URL.Path)

		body := decodeBody(t, r)
		assert.Equal(t, "0", body["fail_existing"])
		assert.Equal(t, "ada@example.com", body["email"])
		assert.Equal(t, map[string]any{"user_id": "u1"}, body["notes"])

		writeJSON(w, http.StatusOK, map[string]any{"id": "cust_1"})
	})

	ref, err := rzp.CreateCustomer(context.Background(), subscription.Profile{UserID: "u1", Email: "ada@example.com", Name: "Ada"})
	require.NoError(t, err)
	assert.Equal(t, "cust_1", ref)
}

func TestRazorpay_CreateSubscription(t *testing.T) {
	t.Parallel()

	t.Run("trial defers the first charge", func(t *testing.T) {
		t.Parallel()
		rzp := newRazorpay(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/subscriptions", r.URL.Path)
			body := decodeBody(t, r)
			assert.Equal(t, "plan_pro", body["plan_id"])
			assert.Equal(t, "cust_1", body["customer_id"])
			assert.InDelta(t, 12, body["total_count"], 0)
			assert.InDelta(t, 1, body["customer_notify"], 0)
			assert.InDelta(t, fixedNow.AddDate(0, 0, 30).Unix(), body["start_at"], 0)
			assert.Equal(t, map[string]any{"user_id": "u1", "reference": "local-1"}, body["notes"])

			writeJSON(w, http.StatusOK, map[string]any{
				"id": "sub_1", "status": "created", "customer_id": "cust_1", "short_url": "https://rzp.io/i/abc",
			})
		})

		got, err := rzp.CreateSubscription(context.Background(), subscription.CreateSubscriptionRequest{
			PlanRef: "plan_pro", CustomerRef: "cust_1", TrialDays: 30, UserID: "u1", Reference: "local-1",
		})
		require.NoError(t, err)
		assert.Equal(t, subscription.GatewaySubscription{
			Ref: "sub_1", Status: "created", CustomerRef: "cust_1", CheckoutURL: "https://rzp.io/i/abc",
		}, got)
	})

	t.Run("paid plan starts now", func(t *testing.T) {
		t.Parallel()
		rzp := newRazorpay(t, func(w http.ResponseWriter, r *http.Request) {
			body := decodeBody(t, r)
			_, hasStart := body["start_at"]
			assert.False(t, hasStart)
			writeJSON(w, http.StatusOK, map[string]any{"id": "sub_2", "status": "created"})
		})

		got, err := rzp.CreateSubscription(context.Background(), subscription.CreateSubscriptionRequest{
			PlanRef: "plan_pro", CustomerRef: "cust_1",
		})
		require.NoError(t, err)
		assert.Equal(t, "cust_1", got.CustomerRef)
	})

	t.Run("missing plan mapping is rejected locally", func(t *testing.T) {
		t.Parallel()
		var hits atomic.Int32
		rzp := newRazorpay(t, func(w http.ResponseWriter, r *http.Request) { hits.Add(1) })

		_, err := rzp.CreateSubscription(context.Background(), subscription.CreateSubscriptionRequest{CustomerRef: "cust_1"})
		require.ErrorIs(t, err, subscription.ErrGatewayRejected)
		require.ErrorIs(t, err, gateway.ErrMissingPlanMapping)
		assert.Zero(t, hits.Load())
	})
}

func TestRazorpay_ErrorClassification(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		status   int
		body     any
		wantErr  error
		wantHits int32
	}{
		{name: "server error retried once", status: http.StatusServiceUnavailable, wantErr: subscription.ErrGatewayUnavailable, wantHits: 2},
		{name: "rate limited retried once", status: http.StatusTooManyRequests, wantErr: subscription.ErrGatewayUnavailable, wantHits: 2},
		{name: "bad request not retried", status: http.StatusBadRequest, body: razorpayError("BAD_REQUEST_ERROR", "plan_id is invalid"), wantErr: subscription.ErrGatewayRejected, wantHits: 1},
		{name: "unauthorized not retried", status: http.StatusUnauthorized, wantErr: subscription.ErrGatewayRejected, wantHits: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var hits atomic.Int32
			rzp := newRazorpay(t, func(w http.ResponseWriter, r *http.Request) {
				hits.Add(1)
				writeJSON(w, tt.status, tt.body)
			})

			_, err := rzp.CreateSubscription(context.Background(), subscription.CreateSubscriptionRequest{PlanRef: "plan_pro"})
			require.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, tt.wantHits, hits.Load())

			var apiErr *gateway.APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.status, apiErr.StatusCode)
		})
	}
}

func TestRazorpay_RetryRecovers(t *testing.T) {
	t.Parallel()
	var hits atomic.Int32
	rzp := newRazorpay(t, func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		body := decodeBody(t, r)
		assert.Equal(t, "plan_pro", body["plan_id"])
		writeJSON(w, http.StatusOK, map[string]any{"id": "sub_1", "status": "created"})
	})

	got, err := rzp.CreateSubscription(context.Background(), subscription.CreateSubscriptionRequest{PlanRef: "plan_pro"})
	require.NoError(t, err)
	assert.Equal(t, "sub_1", got.Ref)
	assert.Equal(t, int32(2), hits.Load())
}

func TestRazorpay_CancelSubscription(t *testing.T) {
	t.Parallel()

	t.Run("at cycle end", func(t *testing.T) {
		t.Parallel()
		rzp := newRazorpay(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/subscriptions/sub_1/cancel", r.URL.Path)
			assert.Equal(t, map[string]any{"cancel_at_cycle_end": float64(1)}, decodeBody(t, r))
			writeJSON(w, http.StatusOK, map[string]any{"id": "sub_1", "status": "active"})
		})

		got, err := rzp.CancelSubscription(context.Background(), "sub_1", true)
		require.NoError(t, err)
		assert.Equal(t, subscription.CancelResult{Ref: "sub_1", Status: "active", AtCycleEnd: true}, got)
	})

	gone := []struct {
		name   string
		status int
		body   any
	}{
		{name: "unknown subscription", status: http.StatusNotFound, body: razorpayError("BAD_REQUEST_ERROR", "The id provided does not exist")},
		{name: "already cancelled", status: http.StatusBadRequest, body: razorpayError("BAD_REQUEST_ERROR", "Subscription is not cancellable in cancelled status.")},
		{name: "completed", status: http.StatusBadRequest, body: razorpayError("BAD_REQUEST_ERROR", "Subscription is not cancellable in completed status.")},
	}
	for _, tt := range gone {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rzp := newRazorpay(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tt.status, tt.body)
			})

			_, err := rzp.CancelSubscription(context.Background(), "sub_1", false)
			require.ErrorIs(t, err, subscription.ErrRemoteSubscriptionGone)
			assert.NotErrorIs(t, err, subscription.ErrGatewayRejected)
		})
	}
}

func TestRazorpay_CircuitOpens(t *testing.T) {
	t.Parallel()
	var hits atomic.Int32
	rzp := newRazorpay(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}, gateway.WithBreaker(gateway.NewBreaker(1, 1, time.Hour)))

	_, err := rzp.CancelSubscription(context.Background(), "sub_1", true)
	require.ErrorIs(t, err, subscription.ErrGatewayUnavailable)
	assert.Equal(t, int32(2), hits.Load())

	_, err = rzp.CancelSubscription(context.Background(), "sub_1", true)
	require.ErrorIs(t, err, subscription.ErrGatewayUnavailable)
	require.ErrorIs(t, err, gateway.ErrCircuitOpen)
	assert.Equal(t, int32(2), hits.Load())
}

func signedRazorpayHeader(body []byte, secret string) http.Header {
	h := http.Header{}
	h.Set("X-Razorpay-Signature", signature.Sign(string(body), secret))
	h.Set("X-Razorpay-Event-Id", "evt_1")
	return h
}

func TestRazorpay_ParseWebhook(t *testing.T) {
	t.Parallel()
	rzp := newRazorpay(t, func(http.ResponseWriter, *http.Request) {})

	charged := []byte(`{"entity":"event","event":"subscription.charged","payload":{
		"subscription":{"entity":{"id":"sub_1","current_end":1775037600}},
		"payment":{"entity":{"id":"pay_9","order_id":"order_9"}}}}`)
	cancelled := []byte(`{"event":"subscription.cancelled","payload":{"subscription":{"entity":{"id":"sub_1"}}}}`)
	authorized := []byte(`{"event":"subscription.authenticated","payload":{"subscription":{"entity":{"id":"sub_1"}}}}`)
	chargeNoPayment := []byte(`{"event":"subscription.charged","payload":{"subscription":{"entity":{"id":"sub_1"}}}}`)

	t.Run("charged", func(t *testing.T) {
		t.Parallel()
		ev, err := rzp.ParseWebhook(charged, signedRazorpayHeader(charged, razorpayWebhookSecret))
		require.NoError(t, err)
		assert.Equal(t, gateway.EventCharged, ev.Kind)
		assert.Equal(t, "evt_1", ev.ID)
		assert.Equal(t, "sub_1", ev.SubscriptionRef)
		assert.Equal(t, "pay_9", ev.PaymentRef)
		assert.Equal(t, "order_9", ev.OrderRef)
		require.NotNil(t, ev.PeriodEnd)
		assert.Equal(t, time.Unix(1775037600, 0).UTC(), *ev.PeriodEnd)
	})

	t.Run("cancelled", func(t *testing.T) {
		t.Parallel()
		ev, err := rzp.ParseWebhook(cancelled, signedRazorpayHeader(cancelled, razorpayWebhookSecret))
		require.NoError(t, err)
		assert.Equal(t, gateway.EventCancelled, ev.Kind)
		assert.Equal(t, "sub_1", ev.SubscriptionRef)
	})

	t.Run("other events are ignored", func(t *testing.T) {
		t.Parallel()
		ev, err := rzp.ParseWebhook(authorized, signedRazorpayHeader(authorized, razorpayWebhookSecret))
		require.NoError(t, err)
		assert.Equal(t, gateway.EventIgnored, ev.Kind)
	})

	t.Run("forged signature", func(t *testing.T) {
		t.Parallel()
		_, err := rzp.ParseWebhook(charged, signedRazorpayHeader(charged, "other_secret"))
		require.ErrorIs(t, err, gateway.ErrInvalidWebhookSignature)
	})

	t.Run("tampered body", func(t *testing.T) {
		t.Parallel()
		h := signedRazorpayHeader(charged, razorpayWebhookSecret)
		_, err := rzp.ParseWebhook(cancelled, h)
		require.ErrorIs(t, err, gateway.ErrInvalidWebhookSignature)
	})

	t.Run("charge without payment", func(t *testing.T) {
		t.Parallel()
		_, err := rzp.ParseWebhook(chargeNoPayment, signedRazorpayHeader(chargeNoPayment, razorpayWebhookSecret))
		require.ErrorIs(t, err, gateway.ErrMalformedWebhook)
	})
}
