package subscription

import (
	"time"

	"github.com/google/uuid"
)

// Subscription is a user's subscription to a plan.
// Rows are never deleted; at most one per user is live (created, active or cancelling).
type Subscription struct {
	ID             uuid.UUID
	UserID         string
	PlanID         string
	ExternalRef    string // gateway subscription id, empty until created remotely
	Status         Status
	IsTrial        bool
	TrialAmount    Money
	StartDate      time.Time
	EndDate        time.Time
	GracePeriodEnd *time.Time // set while created; checkout must be paid before it passes
	CancelledAt    *time.Time
	PaymentRef     string // last accepted payment
	Version        int    // optimistic concurrency counter
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// GraceExpired reports whether an unpaid checkout has outlived its grace period.
func (s Subscription) GraceExpired(now time.Time) bool {
	return s.Status == StatusCreated && s.GracePeriodEnd != nil && now.After(*s.GracePeriodEnd)
}

// PeriodEnded reports whether an entitled subscription has run past its end date.
func (s Subscription) PeriodEnded(now time.Time) bool {
	return s.Status.Entitled() && now.After(s.EndDate)
}

// TrialEndingWithin reports whether a trialing subscription ends within window of now.
func (s Subscription) TrialEndingWithin(now time.Time, window time.Duration) bool {
	if !s.IsTrial || !s.Status.Entitled() {
		return false
	}
	return !now.After(s.EndDate) && s.EndDate.Sub(now) <= window
}

// PaymentTransaction is an append-only ledger entry.
// ExternalPaymentRef is unique across the ledger and anchors idempotency.
type PaymentTransaction struct {
	ID                 uuid.UUID
	UserID             string
	SubscriptionID     uuid.UUID
	Amount             int64
	Currency           string
	ExternalPaymentRef string
	ExternalOrderRef   string // empty for subscription-based payments
	Status             PaymentStatus
	Purpose            Purpose
	CreatedAt          time.Time
}

// Account is the subset of the user profile the core reads and writes.
type Account struct {
	UserID      string
	Email       string
	Name        string
	TrialUsed   bool
	CustomerRef string // gateway customer id, empty until first checkout
	Entitlement Entitlement
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Profile identifies the user to the gateway.
type Profile struct {
	UserID string
	Email  string
	Name   string
}
