package subscription

import (
	"context"
	"time"
)

// Gateway is the payment gateway contract the core depends on.
// Implementations translate requests and authenticate; they hold no business
// logic. Failures must wrap ErrGatewayUnavailable (transient, already retried
// once), ErrRemoteSubscriptionGone or ErrGatewayRejected.
type Gateway interface {
	// CreateCustomer returns the gateway customer for profile, reusing an
	// existing one when the gateway supports lookup.
	CreateCustomer(ctx context.Context, profile Profile) (string, error)

	// CreateSubscription creates a remote subscription for a customer.
	CreateSubscription(ctx context.Context, req CreateSubscriptionRequest) (GatewaySubscription, error)

	// CancelSubscription cancels a remote subscription immediately or at the end of the current cycle.
	CancelSubscription(ctx context.Context, ref string, atCycleEnd bool) (CancelResult, error)
}

// Resumer is implemented by gateways that can undo a scheduled cycle-end cancellation.
type Resumer interface {
	ResumeSubscription(ctx context.Context, ref string) error
}

// CreateSubscriptionRequest carries what the gateway needs to open a subscription.
type CreateSubscriptionRequest struct {
	PlanRef     string
	CustomerRef string
	StartAt     *time.Time // nil starts immediately
	TrialDays   int        // zero for paid subscriptions
	UserID      string     // stored as gateway metadata
	Reference   string     // local subscription id, stored as gateway metadata
}

// GatewaySubscription is the gateway's view of a subscription it just created.
type GatewaySubscription struct {
	Ref         string
	Status      string
	CustomerRef string
	CheckoutURL string // hosted payment page, when the gateway provides one
}

// CancelResult is the gateway's answer to a cancellation.
type CancelResult struct {
	Ref        string
	Status     string
	AtCycleEnd bool
}
