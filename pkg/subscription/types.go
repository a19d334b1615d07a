package subscription

import (
	"fmt"
	"time"
)

// Money represents a monetary amount in the smallest currency unit.
// For example, ₹499.00 would be Amount: 49900, Currency: "INR".
type Money struct {
	Amount   int64  `yaml:"amount" json:"amount" validate:"gte=0"`                  // Amount in smallest currency unit
	Currency string `yaml:"currency" json:"currency" validate:"omitempty,len=3"` // ISO 4217 currency code
}

func (m Money) String() string {
	return fmt.Sprintf("%d.%02d %s", m.Amount/100, m.Amount%100, m.Currency)
}

// BillingPeriod represents the billing frequency of a plan.
type BillingPeriod string

const (
	BillingMonthly BillingPeriod = "monthly"
	BillingAnnual  BillingPeriod = "annual"
)

// Next returns the end of one billing period starting at t.
func (p BillingPeriod) Next(t time.Time) time.Time {
	if p == BillingAnnual {
		return t.AddDate(1, 0, 0)
	}
	return t.AddDate(0, 1, 0)
}

// Tier is the feature level granted by a plan.
type Tier string

// TierFree is the tier of every account without a live paid subscription.
const TierFree Tier = "free"

// Status is the lifecycle state of a Subscription.
type Status string

const (
	StatusCreated    Status = "created"    // checkout initiated, no verified payment yet
	StatusActive     Status = "active"     // paid or trialing, entitlement granted
	StatusCancelling Status = "cancelling" // cancel scheduled at cycle end, entitlement kept until end_date
	StatusCancelled  Status = "cancelled"  // terminal
	StatusExpired    Status = "expired"    // terminal
)

// IsTerminal reports whether no transition leaves s.
func (s Status) IsTerminal() bool {
	return s == StatusCancelled || s == StatusExpired
}

// IsLive reports whether s counts toward the one-live-subscription-per-user rule.
func (s Status) IsLive() bool {
	return s == StatusCreated || s == StatusActive || s == StatusCancelling
}

// Entitled reports whether s grants paid entitlement.
func (s Status) Entitled() bool {
	return s == StatusActive || s == StatusCancelling
}

// Purpose is the declared intent of a payment.
type Purpose string

const (
	PurposeTrial        Purpose = "trial"        // trial verification micro-charge
	PurposeResume       Purpose = "resume"       // micro-charge resuming a cancelling subscription
	PurposeSubscription Purpose = "subscription" // regular subscription charge
)

// PaymentStatus of a ledger entry. Only captured payments are recorded.
type PaymentStatus string

const PaymentCaptured PaymentStatus = "captured"

// Event names a lifecycle event fired on the state machine.
type Event string

const (
	EventActivate     Event = "activate"
	EventRenew        Event = "renew"
	EventCancel       Event = "cancel"
	EventResume       Event = "resume"
	EventExpire       Event = "expire"
	EventSupersede    Event = "supersede"     // a newer checkout replaced an abandoned one
	EventAbandon      Event = "abandon"       // remote creation failed and was compensated
	EventRemoteCancel Event = "remote_cancel" // gateway reported the subscription cancelled
)

// NoticeKind is the kind of user-facing notification emitted by the core.
type NoticeKind string

const (
	NoticeActivated    NoticeKind = "subscription.activate"
	NoticeRenewed      NoticeKind = "subscription.renew"
	NoticeCancelled    NoticeKind = "subscription.cancel"
	NoticeResumed      NoticeKind = "subscription.resume"
	NoticeExpired      NoticeKind = "subscription.expire"
	NoticeTrialWarning NoticeKind = "subscription.trial_ending"
)
