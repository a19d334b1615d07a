package gateway_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	stripewebhook "github.com/stripe/stripe-go/v82/webhook"

	"github.com/Kiranbanna12/setup-first-sub002/pkg/gateway"
	"github.com/Kiranbanna12/setup-first-sub002/pkg/logger"
	"github.com/Kiranbanna12/setup-first-sub002/pkg/subscription"
)

const stripeWebhookSecret = "whsec_stripe_test"

func newStripe(t *testing.T, handler http.HandlerFunc) *gateway.Stripe {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	s, err := gateway.NewStripe(gateway.StripeConfig{
		SecretKey:         "sk_test_123",
		WebhookSecret:     stripeWebhookSecret,
		BaseURL:           srv.URL,
		Timeout:           time.Second,
		MaxNetworkRetries: 0,
	}, gateway.WithLogger(logger.Discard()), gateway.WithClock(func() time.Time { return fixedNow }))
	require.NoError(t, err)
	return s
}

func stripeNotFound(w http.ResponseWriter) {
	writeJSON(w, http.StatusNotFound, map[string]any{"error": map[string]any{
		"type": "invalid_request_error", "code": "resource_missing", "message": "No such subscription",
	}})
}

func TestStripe_CreateCustomer(t *testing.T) {
	t.Parallel()

	t.Run("reuses customer with the same email", func(t *testing.T) {
		t.Parallel()
		var creates atomic.Int32
		s := newStripe(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "Bearer sk_test_123", r.Header.Get("Authorization"))
			switch {
			case r.Method == http.MethodGet && r.URL.Path == "/v1/customers":
				assert.Equal(t, "ada@example.com", r.URL.Query().Get("email"))
				assert.Equal(t, "1", r.URL.Query().Get("limit"))
				writeJSON(w, http.StatusOK, map[string]any{
					"object": "list", "url": "/v1/customers", "has_more": false,
					"data": []any{map[string]any{"id": "cus_existing", "object": "customer"}},
				})
			default:
				creates.Add(1)
				w.WriteHeader(http.StatusInternalServerError)
			}
		})

		ref, err := s.CreateCustomer(context.Background(), subscription.Profile{UserID: "u1", Email: "ada@example.com"})
		require.NoError(t, err)
		assert.Equal(t, "cus_existing", ref)
		assert.Zero(t, creates.Load())
	})

	t.Run("creates when none exists", func(t *testing.T) {
		t.Parallel()
		s := newStripe(t, func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				writeJSON(w, http.StatusOK, map[string]any{"object": "list", "url": "/v1/customers", "data": []any{}})
			case http.MethodPost:
				assert.NoError(t, r.ParseForm())
				assert.Equal(t, "/v1/customers", r.URL.Path)
				assert.Equal(t, "ada@example.com", r.PostForm.Get("email"))
				assert.Equal(t, "u1", r.PostForm.Get("metadata[user_id]"))
				assert.Equal(t, "customer-u1", r.Header.Get("Idempotency-Key"))
				writeJSON(w, http.StatusOK, map[string]any{"id": "cus_new", "object": "customer"})
			}
		})

		ref, err := s.CreateCustomer(context.Background(), subscription.Profile{UserID: "u1", Email: "ada@example.com", Name: "Ada"})
		require.NoError(t, err)
		assert.Equal(t, "cus_new", ref)
	})
}

func TestStripe_CreateSubscription(t *testing.T) {
	t.Parallel()
	s := newStripe(t, func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "/v1/subscriptions", r.URL.Path)
		assert.Equal(t, "cus_1", r.PostForm.Get("customer"))
		assert.Equal(t, "price_pro", r.PostForm.Get("items[0][price]"))
		assert.Equal(t, "30", r.PostForm.Get("trial_period_days"))
		assert.Equal(t, "default_incomplete", r.PostForm.Get("payment_behavior"))
		assert.Equal(t, "local-1", r.PostForm.Get("metadata[reference]"))
		assert.Equal(t, "subscription-local-1", r.Header.Get("Idempotency-Key"))

		writeJSON(w, http.StatusOK, map[string]any{
			"id": "sub_1", "object": "subscription", "status": "trialing", "customer": "cus_1",
		})
	})

	got, err := s.CreateSubscription(context.Background(), subscription.CreateSubscriptionRequest{
		PlanRef: "price_pro", CustomerRef: "cus_1", TrialDays: 30, UserID: "u1", Reference: "local-1",
	})
	require.NoError(t, err)
	assert.Equal(t, subscription.GatewaySubscription{Ref: "sub_1", Status: "trialing", CustomerRef: "cus_1"}, got)
}

func TestStripe_CancelSubscription(t *testing.T) {
	t.Parallel()

	t.Run("at period end", func(t *testing.T) {
		t.Parallel()
		s := newStripe(t, func(w http.ResponseWriter, r *http.Request) {
			assert.NoError(t, r.ParseForm())
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/v1/subscriptions/sub_1", r.URL.Path)
			assert.Equal(t, "true", r.PostForm.Get("cancel_at_period_end"))
			writeJSON(w, http.StatusOK, map[string]any{
				"id": "sub_1", "object": "subscription", "status": "active", "cancel_at_period_end": true,
			})
		})

		got, err := s.CancelSubscription(context.Background(), "sub_1", true)
		require.NoError(t, err)
		assert.Equal(t, subscription.CancelResult{Ref: "sub_1", Status: "active", AtCycleEnd: true}, got)
	})

	t.Run("immediately", func(t *testing.T) {
		t.Parallel()
		s := newStripe(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodDelete, r.Method)
			writeJSON(w, http.StatusOK, map[string]any{"id": "sub_1", "object": "subscription", "status": "canceled"})
		})

		got, err := s.CancelSubscription(context.Background(), "sub_1", false)
		require.NoError(t, err)
		assert.Equal(t, "canceled", got.Status)
	})

	t.Run("missing subscription is gone", func(t *testing.T) {
		t.Parallel()
		s := newStripe(t, func(w http.ResponseWriter, _ *http.Request) { stripeNotFound(w) })

		_, err := s.CancelSubscription(context.Background(), "sub_missing", false)
		require.ErrorIs(t, err, subscription.ErrRemoteSubscriptionGone)
	})

	t.Run("server error is unavailable", func(t *testing.T) {
		t.Parallel()
		s := newStripe(t, func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusInternalServerError, map[string]any{"error": map[string]any{
				"type": "api_error", "message": "Something went wrong",
			}})
		})

		_, err := s.CancelSubscription(context.Background(), "sub_1", true)
		require.ErrorIs(t, err, subscription.ErrGatewayUnavailable)
		assert.True(t, subscription.IsRetryable(err))
	})

	t.Run("card error is rejected", func(t *testing.T) {
		t.Parallel()
		s := newStripe(t, func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusPaymentRequired, map[string]any{"error": map[string]any{
				"type": "card_error", "code": "card_declined", "message": "Your card was declined.",
			}})
		})

		_, err := s.CancelSubscription(context.Background(), "sub_1", true)
		require.ErrorIs(t, err, subscription.ErrGatewayRejected)
	})
}

func TestStripe_ResumeSubscription(t *testing.T) {
	t.Parallel()
	s := newStripe(t, func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "false", r.PostForm.Get("cancel_at_period_end"))
		writeJSON(w, http.StatusOK, map[string]any{"id": "sub_1", "object": "subscription", "status": "active"})
	})

	require.NoError(t, s.ResumeSubscription(context.Background(), "sub_1"))
}

func signedStripeHeader(payload string, secret string) ([]byte, http.Header) {
	signed := stripewebhook.GenerateTestSignedPayload(&stripewebhook.UnsignedPayload{
		Payload:   []byte(payload),
		Secret:    secret,
		Timestamp: time.Now(),
		Scheme:    "v1",
	})
	h := http.Header{}
	h.Set("Stripe-Signature", signed.Header)
	return signed.Payload, h
}

func TestStripe_ParseWebhook(t *testing.T) {
	t.Parallel()
	s := newStripe(t, func(http.ResponseWriter, *http.Request) {})

	tests := []struct {
		name    string
		payload string
		secret  string
		want    gateway.Event
		wantErr error
	}{
		{
			name: "invoice paid",
			payload: `{"id":"evt_1","object":"event","type":"invoice.paid","api_version":"2025-03-31.basil",
				"data":{"object":{"id":"in_1","object":"invoice",
				"parent":{"subscription_details":{"subscription":"sub_1"}},
				"lines":{"data":[{"period":{"end":1775037600}}]}}}}`,
			secret: stripeWebhookSecret,
			want: gateway.Event{
				ID: "evt_1", Type: "invoice.paid", Kind: gateway.EventCharged,
				SubscriptionRef: "sub_1", PaymentRef: "in_1", PeriodEnd: ptrTime(time.Unix(1775037600, 0).UTC()),
			},
		},
		{
			name: "legacy invoice shape",
			payload: `{"id":"evt_2","object":"event","type":"invoice.paid",
				"data":{"object":{"id":"in_2","object":"invoice","subscription":"sub_2","lines":{"data":[]}}}}`,
			secret: stripeWebhookSecret,
			want:   gateway.Event{ID: "evt_2", Type: "invoice.paid", Kind: gateway.EventCharged, SubscriptionRef: "sub_2", PaymentRef: "in_2"},
		},
		{
			name: "one-off invoice ignored",
			payload: `{"id":"evt_3","object":"event","type":"invoice.paid",
				"data":{"object":{"id":"in_3","object":"invoice"}}}`,
			secret: stripeWebhookSecret,
			want:   gateway.Event{ID: "evt_3", Type: "invoice.paid", Kind: gateway.EventIgnored},
		},
		{
			name: "subscription deleted",
			payload: `{"id":"evt_4","object":"event","type":"customer.subscription.deleted",
				"data":{"object":{"id":"sub_1","object":"subscription","status":"canceled"}}}`,
			secret: stripeWebhookSecret,
			want:   gateway.Event{ID: "evt_4", Type: "customer.subscription.deleted", Kind: gateway.EventCancelled, SubscriptionRef: "sub_1"},
		},
		{
			name:    "unhandled type",
			payload: `{"id":"evt_5","object":"event","type":"customer.created","data":{"object":{"id":"cus_1"}}}`,
			secret:  stripeWebhookSecret,
			want:    gateway.Event{ID: "evt_5", Type: "customer.created", Kind: gateway.EventIgnored},
		},
		{
			name:    "wrong secret",
			payload: `{"id":"evt_6","object":"event","type":"invoice.paid","data":{"object":{}}}`,
			secret:  "whsec_other",
			wantErr: gateway.ErrInvalidWebhookSignature,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			body, header := signedStripeHeader(tt.payload, tt.secret)

			got, err := s.ParseWebhook(body, header)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func ptrTime(t time.Time) *time.Time { return &t }
