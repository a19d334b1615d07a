package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/customer"
	stripesub "github.com/stripe/stripe-go/v82/subscription"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/Kiranbanna12/setup-first-sub002/pkg/subscription"
)

const stripeSignatureHeader = "Stripe-Signature"

// Stripe talks to Stripe through stripe-go. It also implements
// subscription.Resumer, since a cycle-end cancellation there is a flag that
// can be cleared.
type Stripe struct {
	cfg           StripeConfig
	customers     customer.Client
	subscriptions stripesub.Client
	opts          options
}

var (
	_ subscription.Gateway = (*Stripe)(nil)
	_ subscription.Resumer = (*Stripe)(nil)
	_ WebhookParser        = (*Stripe)(nil)
)

// NewStripe returns a Stripe adapter with its own backend, so several keys
// can coexist in one process.
func NewStripe(cfg StripeConfig, opts ...Option) (*Stripe, error) {
	if cfg.SecretKey == "" {
		return nil, errors.New("stripe: secret key is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	o := buildOptions(opts)
	httpClient := o.httpClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	backendCfg := &stripe.BackendConfig{
		HTTPClient:        httpClient,
		MaxNetworkRetries: stripe.Int64(cfg.MaxNetworkRetries),
		LeveledLogger:     &stripeLogger{l: o.logger.With("gateway", "stripe")},
		EnableTelemetry:   stripe.Bool(false),
	}
	if cfg.BaseURL != "" {
		backendCfg.URL = stripe.String(strings.TrimRight(cfg.BaseURL, "/"))
	}
	backend := stripe.GetBackendWithConfig(stripe.APIBackend, backendCfg)

	return &Stripe{
		cfg:           cfg,
		customers:     customer.Client{B: backend, Key: cfg.SecretKey},
		subscriptions: stripesub.Client{B: backend, Key: cfg.SecretKey},
		opts:          o,
	}, nil
}

// CreateCustomer returns the first customer with the profile's email, creating
// one when none exists.
func (s *Stripe) CreateCustomer(ctx context.Context, profile subscription.Profile) (string, error) {
	var ref string
	err := s.opts.guard("create_customer", func() error {
		list := &stripe.CustomerListParams{Email: stripe.String(profile.Email)}
		list.Context = ctx
		list.Limit = stripe.Int64(1)

		it := s.customers.List(list)
		if it.Next() {
			ref = it.Customer().ID
			return nil
		}
		if err := it.Err(); err != nil {
			return stripeError("create_customer", err)
		}

		params := &stripe.CustomerParams{
			Email: stripe.String(profile.Email),
			Name:  stripe.String(profile.Name),
		}
		params.Context = ctx
		params.AddMetadata("user_id", profile.UserID)
		params.SetIdempotencyKey("customer-" + profile.UserID)

		c, err := s.customers.New(params)
		if err != nil {
			return stripeError("create_customer", err)
		}
		ref = c.ID
		return nil
	})
	return ref, err
}

// CreateSubscription creates an incomplete subscription on the price named by
// PlanRef. The first invoice is confirmed client side.
func (s *Stripe) CreateSubscription(ctx context.Context, req subscription.CreateSubscriptionRequest) (subscription.GatewaySubscription, error) {
	if req.PlanRef == "" {
		return subscription.GatewaySubscription{}, errors.Join(subscription.ErrGatewayRejected, ErrMissingPlanMapping)
	}

	params := &stripe.SubscriptionParams{
		Customer:        stripe.String(req.CustomerRef),
		Items:           []*stripe.SubscriptionItemsParams{{Price: stripe.String(req.PlanRef)}},
		PaymentBehavior: stripe.String("default_incomplete"),
	}
	params.Context = ctx
	if req.TrialDays > 0 {
		params.TrialPeriodDays = stripe.Int64(int64(req.TrialDays))
	}
	if req.StartAt != nil && req.StartAt.After(s.opts.now()) {
		params.BillingCycleAnchor = stripe.Int64(req.StartAt.Unix())
	}
	params.AddMetadata("user_id", req.UserID)
	params.AddMetadata("reference", req.Reference)
	if req.Reference != "" {
		params.SetIdempotencyKey("subscription-" + req.Reference)
	}

	var out subscription.GatewaySubscription
	err := s.opts.guard("create_subscription", func() error {
		sub, err := s.subscriptions.New(params)
		if err != nil {
			return stripeError("create_subscription", err)
		}
		out = subscription.GatewaySubscription{
			Ref:         sub.ID,
			Status:      string(sub.Status),
			CustomerRef: req.CustomerRef,
		}
		if sub.Customer != nil && sub.Customer.ID != "" {
			out.CustomerRef = sub.Customer.ID
		}
		return nil
	})
	return out, err
}

// CancelSubscription deletes ref immediately, or flags it to end with the
// current period.
func (s *Stripe) CancelSubscription(ctx context.Context, ref string, atCycleEnd bool) (subscription.CancelResult, error) {
	var out subscription.CancelResult
	err := s.opts.guard("cancel_subscription", func() error {
		var (
			sub *stripe.Subscription
			err error
		)
		if atCycleEnd {
			params := &stripe.SubscriptionParams{CancelAtPeriodEnd: stripe.Bool(true)}
			params.Context = ctx
			sub, err = s.subscriptions.Update(ref, params)
		} else {
			params := &stripe.SubscriptionCancelParams{}
			params.Context = ctx
			sub, err = s.subscriptions.Cancel(ref, params)
		}
		if err != nil {
			return stripeError("cancel_subscription", err)
		}
		out = subscription.CancelResult{Ref: sub.ID, Status: string(sub.Status), AtCycleEnd: atCycleEnd}
		return nil
	})
	return out, err
}

// ResumeSubscription clears a pending cycle-end cancellation.
func (s *Stripe) ResumeSubscription(ctx context.Context, ref string) error {
	return s.opts.guard("resume_subscription", func() error {
		params := &stripe.SubscriptionParams{CancelAtPeriodEnd: stripe.Bool(false)}
		params.Context = ctx
		if _, err := s.subscriptions.Update(ref, params); err != nil {
			return stripeError("resume_subscription", err)
		}
		return nil
	})
}

// stripeError maps a stripe-go failure onto the subscription gateway errors.
func stripeError(op string, err error) error {
	var se *stripe.Error
	if !errors.As(err, &se) {
		return classify(0, fmt.Errorf("%s: %w", op, err))
	}

	apiErr := &APIError{Op: op, StatusCode: se.HTTPStatusCode, Code: string(se.Code), Description: se.Msg}
	if se.Code == stripe.ErrorCodeResourceMissing {
		return errors.Join(subscription.ErrRemoteSubscriptionGone, apiErr)
	}
	return classify(se.HTTPStatusCode, apiErr)
}

// stripeInvoice reads the fields of an invoice.paid payload the service needs.
// The subscription moved under parent.subscription_details in newer API
// versions; both locations are read.
type stripeInvoice struct {
	ID           string `json:"id"`
	Subscription any    `json:"subscription"`
	Parent       *struct {
		SubscriptionDetails *struct {
			Subscription any `json:"subscription"`
		} `json:"subscription_details"`
	} `json:"parent"`
	Lines struct {
		Data []struct {
			Period struct {
				End int64 `json:"end"`
			} `json:"period"`
		} `json:"data"`
	} `json:"lines"`
}

func (inv stripeInvoice) subscriptionRef() string {
	if inv.Parent != nil && inv.Parent.SubscriptionDetails != nil {
		if ref := expandableID(inv.Parent.SubscriptionDetails.Subscription); ref != "" {
			return ref
		}
	}
	return expandableID(inv.Subscription)
}

func (inv stripeInvoice) periodEnd() *time.Time {
	var end int64
	for _, line := range inv.Lines.Data {
		end = max(end, line.Period.End)
	}
	if end == 0 {
		return nil
	}
	t := time.Unix(end, 0).UTC()
	return &t
}

// expandableID reads a Stripe field that is either an id or an expanded object.
func expandableID(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case map[string]any:
		id, _ := x["id"].(string)
		return id
	default:
		return ""
	}
}

// ParseWebhook verifies the Stripe-Signature header and decodes the event.
func (s *Stripe) ParseWebhook(body []byte, header http.Header) (Event, error) {
	if s.cfg.WebhookSecret == "" {
		return Event{}, fmt.Errorf("stripe webhook secret not configured: %w", ErrInvalidWebhookSignature)
	}

	event, err := webhook.ConstructEventWithOptions(body, header.Get(stripeSignatureHeader), s.cfg.WebhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrInvalidWebhookSignature, err)
	}
	if event.Data == nil {
		return Event{}, fmt.Errorf("%w: event without data", ErrMalformedWebhook)
	}

	ev := Event{ID: event.ID, Type: string(event.Type), Kind: EventIgnored}
	switch event.Type {
	case "invoice.paid":
		var inv stripeInvoice
		if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
			return Event{}, fmt.Errorf("%w: %v", ErrMalformedWebhook, err)
		}
		ev.SubscriptionRef = inv.subscriptionRef()
		if ev.SubscriptionRef == "" {
			// One-off invoice, nothing to converge.
			return ev, nil
		}
		ev.PaymentRef = inv.ID
		ev.PeriodEnd = inv.periodEnd()
		ev.Kind = EventCharged

	case "customer.subscription.deleted":
		var sub struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil || sub.ID == "" {
			return Event{}, fmt.Errorf("%w: subscription without id", ErrMalformedWebhook)
		}
		ev.SubscriptionRef = sub.ID
		ev.Kind = EventCancelled
	}
	return ev, nil
}

// stripeLogger routes stripe-go's logging into slog.
type stripeLogger struct {
	l *slog.Logger
}

func (s *stripeLogger) Debugf(format string, v ...any) { s.l.Debug(fmt.Sprintf(format, v...)) }
func (s *stripeLogger) Infof(format string, v ...any)  { s.l.Debug(fmt.Sprintf(format, v...)) }
func (s *stripeLogger) Warnf(format string, v ...any)  { s.l.Warn(fmt.Sprintf(format, v...)) }
func (s *stripeLogger) Errorf(format string, v ...any) { s.l.Error(fmt.Sprintf(format, v...)) }
