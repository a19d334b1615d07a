package subscription

import (
	"time"

	"github.com/google/uuid"
)

// Entitlement is the user-facing projection of a subscription: whether the
// account may use paid features right now and at which tier.
// It is written only through Project inside the transaction that changed the
// subscription; everything else reads it.
type Entitlement struct {
	SubscriptionActive bool
	Tier               Tier
	PlanRef            string
	EndDate            *time.Time
	SubscriptionID     uuid.UUID // subscription the projection was derived from
}

// FreeEntitlement is the projection of an account without a live paid subscription.
func FreeEntitlement() Entitlement {
	return Entitlement{Tier: TierFree}
}

// Project derives the entitlement granted by sub on plan.
// Active and cancelling subscriptions grant the plan's tier until end_date;
// every other status projects to the free tier.
func Project(sub Subscription, plan Plan) Entitlement {
	if !sub.Status.Entitled() {
		e := FreeEntitlement()
		e.SubscriptionID = sub.ID
		return e
	}
	end := sub.EndDate.UTC()
	return Entitlement{
		SubscriptionActive: true,
		Tier:               plan.Tier,
		PlanRef:            plan.ID,
		EndDate:            &end,
		SubscriptionID:     sub.ID,
	}
}

// Equal reports whether two projections grant the same access.
func (e Entitlement) Equal(o Entitlement) bool {
	if e.SubscriptionActive != o.SubscriptionActive || e.Tier != o.Tier || e.PlanRef != o.PlanRef {
		return false
	}
	switch {
	case e.EndDate == nil && o.EndDate == nil:
		return true
	case e.EndDate == nil || o.EndDate == nil:
		return false
	default:
		return e.EndDate.Equal(*o.EndDate)
	}
}
