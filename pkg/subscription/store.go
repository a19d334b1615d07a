package subscription

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Queries are the reads available both inside and outside a transaction.
type Queries interface {
	// GetAccount returns ErrAccountNotFound when the user has no account row.
	GetAccount(ctx context.Context, userID string) (Account, error)

	// GetSubscription returns ErrSubscriptionNotFound when no row matches.
	GetSubscription(ctx context.Context, id uuid.UUID) (Subscription, error)
	GetSubscriptionByExternalRef(ctx context.Context, ref string) (Subscription, error)

	// GetLiveSubscription returns the user's created, active or cancelling
	// subscription, or ErrSubscriptionNotFound.
	GetLiveSubscription(ctx context.Context, userID string) (Subscription, error)

	PaymentExists(ctx context.Context, externalPaymentRef string) (bool, error)
}

// Tx is a unit of work. Every write of a transition happens through one Tx so
// the subscription row, the ledger entry and the entitlement projection commit
// or roll back together.
type Tx interface {
	Queries

	// ClaimTrial flips trial_used from false to true. Returns ErrTrialAlreadyUsed
	// when the flag was already set.
	ClaimTrial(ctx context.Context, userID string) error
	// ReleaseTrial undoes a claim made by a compensated checkout.
	ReleaseTrial(ctx context.Context, userID string) error

	InsertSubscription(ctx context.Context, sub Subscription) error

	// UpdateSubscription writes sub if the stored row still has status expected
	// and version sub.Version. Returns the stored row with the bumped version,
	// or ErrStaleState when the precondition no longer holds.
	UpdateSubscription(ctx context.Context, sub Subscription, expected Status) (Subscription, error)

	// InsertPayment appends to the ledger. Returns false without error when a
	// payment with the same external ref was already recorded.
	InsertPayment(ctx context.Context, p PaymentTransaction) (bool, error)

	SaveEntitlement(ctx context.Context, userID string, e Entitlement) error
}

// Store persists accounts, subscriptions, the payment ledger and entitlements.
type Store interface {
	Queries

	// WithinTx runs fn in a transaction, committing when fn returns nil.
	WithinTx(ctx context.Context, fn func(tx Tx) error) error

	// UpsertAccount creates the account row on first use and refreshes contact details.
	UpsertAccount(ctx context.Context, profile Profile) (Account, error)
	SetCustomerRef(ctx context.Context, userID, ref string) error

	// ListExpirable returns created subscriptions past their grace period and
	// active/cancelling subscriptions past their end date.
	ListExpirable(ctx context.Context, now time.Time, limit int) ([]Subscription, error)
	// ListTrialsEnding returns entitled trials whose end date falls in (now, until].
	ListTrialsEnding(ctx context.Context, now, until time.Time, limit int) ([]Subscription, error)

	ListPayments(ctx context.Context, subscriptionID uuid.UUID) ([]PaymentTransaction, error)
}
