package subscription

import (
	"time"
)

// Plan describes a purchasable subscription plan.
// ExternalPlanRef is the gateway's plan identifier used when creating remote
// subscriptions; ID is the stable local identifier clients send.
type Plan struct {
	ID              string        `yaml:"id" validate:"required"`
	Name            string        `yaml:"name"`
	Tier            Tier          `yaml:"tier" validate:"required,ne=free"`
	BillingPeriod   BillingPeriod `yaml:"billing_period" validate:"required,oneof=monthly annual"`
	Price           Money         `yaml:"price"`
	TrialDays       int           `yaml:"trial_days" validate:"gte=0,lte=365"`
	TrialAmount     Money         `yaml:"trial_amount"` // verification micro-charge for trials and resumes
	ExternalPlanRef string        `yaml:"external_plan_ref" validate:"required"`
}

// HasTrial reports whether the plan offers a trial.
func (p Plan) HasTrial() bool {
	return p.TrialDays > 0
}

// TrialEndsAt calculates when a trial started at startedAt ends.
// Returns startedAt unchanged if no trial is available.
func (p Plan) TrialEndsAt(startedAt time.Time) time.Time {
	if p.TrialDays <= 0 {
		return startedAt
	}
	return startedAt.AddDate(0, 0, p.TrialDays).UTC()
}

// PeriodEndsAt returns the end of the paid period that starts at startedAt.
func (p Plan) PeriodEndsAt(startedAt time.Time) time.Time {
	return p.BillingPeriod.Next(startedAt).UTC()
}

// AmountFor returns what the user is charged for a payment with the given purpose.
func (p Plan) AmountFor(purpose Purpose) Money {
	switch purpose {
	case PurposeTrial, PurposeResume:
		return p.TrialAmount
	default:
		return p.Price
	}
}
