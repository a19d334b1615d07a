package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/Kiranbanna12/setup-first-sub002/pkg/signature"
	"github.com/Kiranbanna12/setup-first-sub002/pkg/subscription"
)

const (
	razorpaySignatureHeader = "X-Razorpay-Signature"
	razorpayEventIDHeader   = "X-Razorpay-Event-Id"

	maxResponseBytes = 1 << 20
)

// Razorpay talks to the Razorpay subscriptions API.
type Razorpay struct {
	cfg     RazorpayConfig
	baseURL string
	client  *retryablehttp.Client
	opts    options
}

var (
	_ subscription.Gateway = (*Razorpay)(nil)
	_ WebhookParser        = (*Razorpay)(nil)
)

// NewRazorpay returns a Razorpay adapter. Requests that fail with a transport
// error, 429 or 5xx are retried cfg.RetryMax times.
func NewRazorpay(cfg RazorpayConfig, opts ...Option) (*Razorpay, error) {
	if cfg.KeyID == "" || cfg.KeySecret == "" {
		return nil, errors.New("razorpay: key id and secret are required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.razorpay.com/v1"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.TotalCount <= 0 {
		cfg.TotalCount = 120
	}

	o := buildOptions(opts)

	client := retryablehttp.NewClient()
	if o.httpClient != nil {
		client.HTTPClient = o.httpClient
	}
	if client.HTTPClient.Timeout == 0 {
		client.HTTPClient.Timeout = cfg.Timeout
	}
	client.RetryMax = cfg.RetryMax
	client.RetryWaitMin = o.backoff.Initial
	client.RetryWaitMax = o.backoff.max()
	client.Backoff = o.backoff.Delay
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler
	client.Logger = o.logger.With("gateway", "razorpay")

	return &Razorpay{
		cfg:     cfg,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  client,
		opts:    o,
	}, nil
}

type razorpayCustomer struct {
	ID string `json:"id"`
}

// CreateCustomer finds or creates the customer for profile. Razorpay returns
// the existing customer for a known email when fail_existing is "0".
func (r *Razorpay) CreateCustomer(ctx context.Context, profile subscription.Profile) (string, error) {
	body := map[string]any{
		"name":          profile.Name,
		"email":         profile.Email,
		"fail_existing": "0",
		"notes":         map[string]string{"user_id": profile.UserID},
	}

	var out razorpayCustomer
	if err := r.call(ctx, "create_customer", http.MethodPost, "/customers", body, &out); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", classify(0, errors.New("create_customer: response carries no customer id"))
	}
	return out.ID, nil
}

type razorpaySubscriptionRequest struct {
	PlanID         string            `json:"plan_id"`
	CustomerID     string            `json:"customer_id,omitempty"`
	TotalCount     int               `json:"total_count"`
	CustomerNotify int               `json:"customer_notify"`
	StartAt        int64             `json:"start_at,omitempty"`
	Notes          map[string]string `json:"notes,omitempty"`
}

type razorpaySubscription struct {
	ID         string `json:"id"`
	Status     string `json:"status"`
	CustomerID string `json:"customer_id"`
	ShortURL   string `json:"short_url"`
}

// CreateSubscription opens a subscription on the plan. A trial defers the
// first charge by TrialDays unless StartAt is given.
func (r *Razorpay) CreateSubscription(ctx context.Context, req subscription.CreateSubscriptionRequest) (subscription.GatewaySubscription, error) {
	if req.PlanRef == "" {
		return subscription.GatewaySubscription{}, errors.Join(subscription.ErrGatewayRejected, ErrMissingPlanMapping)
	}

	body := razorpaySubscriptionRequest{
		PlanID:         req.PlanRef,
		CustomerID:     req.CustomerRef,
		TotalCount:     r.cfg.TotalCount,
		CustomerNotify: boolInt(r.cfg.NotifyCustomer),
		Notes:          map[string]string{"user_id": req.UserID, "reference": req.Reference},
	}
	switch {
	case req.StartAt != nil:
		body.StartAt = req.StartAt.Unix()
	case req.TrialDays > 0:
		body.StartAt = r.opts.now().AddDate(0, 0, req.TrialDays).Unix()
	}

	var out razorpaySubscription
	if err := r.call(ctx, "create_subscription", http.MethodPost, "/subscriptions", body, &out); err != nil {
		return subscription.GatewaySubscription{}, err
	}
	if out.ID == "" {
		return subscription.GatewaySubscription{}, classify(0, errors.New("create_subscription: response carries no subscription id"))
	}

	customerRef := out.CustomerID
	if customerRef == "" {
		customerRef = req.CustomerRef
	}
	return subscription.GatewaySubscription{
		Ref:         out.ID,
		Status:      out.Status,
		CustomerRef: customerRef,
		CheckoutURL: out.ShortURL,
	}, nil
}

// CancelSubscription cancels ref now or at the end of the current cycle.
// A subscription Razorpay already ended reports ErrRemoteSubscriptionGone.
func (r *Razorpay) CancelSubscription(ctx context.Context, ref string, atCycleEnd bool) (subscription.CancelResult, error) {
	body := map[string]int{"cancel_at_cycle_end": boolInt(atCycleEnd)}

	var out razorpaySubscription
	err := r.call(ctx, "cancel_subscription", http.MethodPost, "/subscriptions/"+url.PathEscape(ref)+"/cancel", body, &out)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && alreadyEnded(apiErr) {
			return subscription.CancelResult{}, errors.Join(subscription.ErrRemoteSubscriptionGone, apiErr)
		}
		return subscription.CancelResult{}, err
	}

	if out.ID == "" {
		out.ID = ref
	}
	return subscription.CancelResult{Ref: out.ID, Status: out.Status, AtCycleEnd: atCycleEnd}, nil
}

func alreadyEnded(e *APIError) bool {
	if e.StatusCode != http.StatusBadRequest {
		return false
	}
	desc := strings.ToLower(e.Description)
	for _, s := range []string{"cancelled status", "completed status", "expired status"} {
		if strings.Contains(desc, s) {
			return true
		}
	}
	return false
}

type razorpayErrorBody struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

func (r *Razorpay) call(ctx context.Context, op, method, path string, body, out any) error {
	return r.opts.guard(op, func() error {
		return r.do(ctx, op, method, path, body, out)
	})
}

func (r *Razorpay) do(ctx context.Context, op, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, r.baseURL+path, payload)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	req.SetBasicAuth(r.cfg.KeyID, r.cfg.KeySecret)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return classify(0, fmt.Errorf("%s: %w", op, err))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return classify(0, fmt.Errorf("%s: read response: %w", op, err))
	}

	if resp.StatusCode >= http.StatusMultipleChoices {
		apiErr := &APIError{Op: op, StatusCode: resp.StatusCode, Description: http.StatusText(resp.StatusCode)}
		var eb razorpayErrorBody
		if json.Unmarshal(data, &eb) == nil && eb.Error.Code != "" {
			apiErr.Code = eb.Error.Code
			apiErr.Description = eb.Error.Description
		}
		return classify(resp.StatusCode, apiErr)
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return classify(0, fmt.Errorf("%s: decode response: %w", op, err))
		}
	}
	return nil
}

type razorpayWebhook struct {
	Event   string `json:"event"`
	Payload struct {
		Subscription *struct {
			Entity struct {
				ID         string `json:"id"`
				CurrentEnd int64  `json:"current_end"`
			} `json:"entity"`
		} `json:"subscription"`
		Payment *struct {
			Entity struct {
				ID      string `json:"id"`
				OrderID string `json:"order_id"`
			} `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

// ParseWebhook verifies the X-Razorpay-Signature HMAC over the raw body and
// decodes the delivery.
func (r *Razorpay) ParseWebhook(body []byte, header http.Header) (Event, error) {
	if r.cfg.WebhookSecret == "" {
		return Event{}, fmt.Errorf("razorpay webhook secret not configured: %w", ErrInvalidWebhookSignature)
	}
	if !signature.VerifyBody(body, header.Get(razorpaySignatureHeader), r.cfg.WebhookSecret) {
		return Event{}, ErrInvalidWebhookSignature
	}

	var hook razorpayWebhook
	if err := json.Unmarshal(body, &hook); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrMalformedWebhook, err)
	}

	ev := Event{ID: header.Get(razorpayEventIDHeader), Type: hook.Event, Kind: EventIgnored}
	if hook.Payload.Subscription != nil {
		ev.SubscriptionRef = hook.Payload.Subscription.Entity.ID
		if end := hook.Payload.Subscription.Entity.CurrentEnd; end > 0 {
			t := time.Unix(end, 0).UTC()
			ev.PeriodEnd = &t
		}
	}
	if hook.Payload.Payment != nil {
		ev.PaymentRef = hook.Payload.Payment.Entity.ID
		ev.OrderRef = hook.Payload.Payment.Entity.OrderID
	}

	switch hook.Event {
	case "subscription.charged":
		if ev.SubscriptionRef == "" || ev.PaymentRef == "" {
			return Event{}, fmt.Errorf("%w: charge without subscription or payment id", ErrMalformedWebhook)
		}
		ev.Kind = EventCharged
	case "subscription.cancelled", "subscription.completed":
		if ev.SubscriptionRef == "" {
			return Event{}, fmt.Errorf("%w: cancellation without subscription id", ErrMalformedWebhook)
		}
		ev.Kind = EventCancelled
	}
	return ev, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
