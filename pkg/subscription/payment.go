package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Kiranbanna12/setup-first-sub002/pkg/logger"
	"github.com/Kiranbanna12/setup-first-sub002/pkg/signature"
)

// VerifyRequest is the payment proof a client reports after checkout.
type VerifyRequest struct {
	OrderRef        string
	PaymentRef      string
	SubscriptionRef string
	Signature       string
	SubscriptionID  uuid.UUID // local subscription the payment is for, if known
	IsResume        bool
	IsTrial         bool
	PlanID          string // required to bootstrap a trial without a prior checkout
}

func (r VerifyRequest) purpose() Purpose {
	switch {
	case r.IsResume:
		return PurposeResume
	case r.IsTrial:
		return PurposeTrial
	default:
		return PurposeSubscription
	}
}

// VerifyResult reports the outcome of a verified payment.
type VerifyResult struct {
	Subscription Subscription
	Applied      bool // false when the payment had already been applied
	Message      string
}

// VerifyPayment checks the proof signature and applies the payment: activation,
// resumption, or trial bootstrap. A payment ref already in the ledger is a
// successful no-op.
func (s *Service) VerifyPayment(ctx context.Context, profile Profile, req VerifyRequest) (VerifyResult, error) {
	proof := signature.Proof{
		OrderRef:        req.OrderRef,
		PaymentRef:      req.PaymentRef,
		SubscriptionRef: req.SubscriptionRef,
		Signature:       req.Signature,
	}
	if err := s.verifier.VerifyPayment(proof); err != nil {
		if errors.Is(err, signature.ErrMissingIdentifier) {
			return VerifyResult{}, errors.Join(ErrInvalidPayment, err)
		}
		s.metrics.badSignature()
		s.log.WarnContext(ctx, "payment signature rejected",
			logger.Event("possible_payment_forgery"),
			logger.UserID(profile.UserID),
			logger.PaymentRef(req.PaymentRef),
			slog.String("order_ref", req.OrderRef),
			logger.GatewayRef(req.SubscriptionRef),
		)
		return VerifyResult{}, errors.Join(ErrInvalidSignature, err)
	}

	pc := paymentConfirmation{PaymentRef: req.PaymentRef, OrderRef: req.OrderRef, Purpose: req.purpose()}

	sub, err := s.paymentTarget(ctx, profile.UserID, req)
	if errors.Is(err, ErrSubscriptionNotFound) && req.IsTrial && !req.IsResume && req.PlanID != "" && req.SubscriptionID == uuid.Nil {
		return s.bootstrapTrial(ctx, profile, req.PlanID, req.SubscriptionRef, pc)
	}
	if err != nil {
		return VerifyResult{}, err
	}

	if req.IsResume {
		return s.resume(ctx, sub, pc)
	}
	return s.activate(ctx, sub, pc)
}

// paymentTarget finds the subscription a verified payment belongs to.
func (s *Service) paymentTarget(ctx context.Context, userID string, req VerifyRequest) (Subscription, error) {
	var (
		sub Subscription
		err error
	)
	switch {
	case req.SubscriptionID != uuid.Nil:
		sub, err = s.Subscription(ctx, userID, req.SubscriptionID)
	case req.SubscriptionRef != "":
		sub, err = s.store.GetSubscriptionByExternalRef(ctx, req.SubscriptionRef)
		if err == nil && sub.UserID != userID {
			err = fmt.Errorf("%w: %s", ErrSubscriptionNotFound, req.SubscriptionRef)
		}
	case req.IsTrial && req.PlanID != "":
		live, err := s.store.GetLiveSubscription(ctx, userID)
		if err != nil {
			return Subscription{}, err
		}
		if live.Status != StatusCreated || !live.IsTrial || live.PlanID != req.PlanID {
			return Subscription{}, fmt.Errorf("%w: no pending trial checkout for %s", ErrSubscriptionNotFound, req.PlanID)
		}
		return live, nil
	default:
		return Subscription{}, fmt.Errorf("%w: subscription id or subscription ref is required", ErrInvalidPayment)
	}
	if err != nil {
		return Subscription{}, err
	}

	// The signature binds the payment to a gateway subscription; it must be this one.
	if req.SubscriptionRef != "" && sub.ExternalRef != "" && req.SubscriptionRef != sub.ExternalRef {
		return Subscription{}, fmt.Errorf("%w: payment belongs to another subscription", ErrInvalidPayment)
	}
	return sub, nil
}

// Activate applies a verified payment to a created or cancelling subscription.
func (s *Service) Activate(ctx context.Context, id uuid.UUID, paymentRef, orderRef string, purpose Purpose) (VerifyResult, error) {
	sub, err := s.store.GetSubscription(ctx, id)
	if err != nil {
		return VerifyResult{}, err
	}
	return s.activate(ctx, sub, paymentConfirmation{PaymentRef: paymentRef, OrderRef: orderRef, Purpose: purpose})
}

func (s *Service) activate(ctx context.Context, sub Subscription, pc paymentConfirmation) (VerifyResult, error) {
	if dup, err := s.alreadyApplied(ctx, sub, pc.PaymentRef); err != nil || dup.ok {
		return dup.result(), err
	}

	res, err := s.apply(ctx, sub.ID, change{
		event:   EventActivate,
		payment: &pc,
		mutate: func(sub *Subscription, from Status, plan Plan, now time.Time) {
			sub.PaymentRef = pc.PaymentRef
			sub.GracePeriodEnd = nil
			if from == StatusCancelling {
				sub.CancelledAt = nil
				return
			}
			sub.StartDate = now
			if sub.IsTrial {
				sub.EndDate = plan.TrialEndsAt(now)
			} else {
				sub.EndDate = plan.PeriodEndsAt(now)
			}
		},
	})
	if err != nil {
		return VerifyResult{}, err
	}
	return verifyResult(res, "Payment verified, subscription active"), nil
}

// BootstrapTrial starts a trial directly in active for a verified trial payment
// that has no prior checkout row.
func (s *Service) BootstrapTrial(ctx context.Context, profile Profile, planID, externalRef, paymentRef, orderRef string) (VerifyResult, error) {
	return s.bootstrapTrial(ctx, profile, planID, externalRef, paymentConfirmation{
		PaymentRef: paymentRef,
		OrderRef:   orderRef,
		Purpose:    PurposeTrial,
	})
}

func (s *Service) bootstrapTrial(ctx context.Context, profile Profile, planID, externalRef string, pc paymentConfirmation) (VerifyResult, error) {
	plan, err := s.catalog.Plan(planID)
	if err != nil {
		return VerifyResult{}, err
	}
	if !plan.HasTrial() {
		return VerifyResult{}, fmt.Errorf("%w: %s", ErrTrialNotAvailable, plan.ID)
	}
	if exists, err := s.store.PaymentExists(ctx, pc.PaymentRef); err != nil {
		return VerifyResult{}, err
	} else if exists {
		s.metrics.duplicatePayment()
		live, _ := s.store.GetLiveSubscription(ctx, profile.UserID)
		return VerifyResult{Subscription: live, Message: "Payment already processed"}, nil
	}
	if _, err := s.store.UpsertAccount(ctx, profile); err != nil {
		return VerifyResult{}, err
	}

	now := s.now().UTC()
	sub := Subscription{
		ID:          uuid.New(),
		UserID:      profile.UserID,
		PlanID:      plan.ID,
		ExternalRef: externalRef,
		Status:      StatusActive,
		IsTrial:     true,
		TrialAmount: plan.TrialAmount,
		StartDate:   now,
		EndDate:     plan.TrialEndsAt(now),
		PaymentRef:  pc.PaymentRef,
	}
	pc.Purpose = PurposeTrial

	var stored Subscription
	err = s.store.WithinTx(ctx, func(tx Tx) error {
		if live, err := tx.GetLiveSubscription(ctx, sub.UserID); err == nil {
			return fmt.Errorf("%w: %s is %s", ErrSubscriptionAlreadyExists, live.ID, live.Status)
		} else if !errors.Is(err, ErrSubscriptionNotFound) {
			return err
		}
		if err := tx.ClaimTrial(ctx, sub.UserID); err != nil {
			return err
		}
		if err := tx.InsertSubscription(ctx, sub); err != nil {
			return err
		}
		inserted, err := tx.InsertPayment(ctx, s.ledgerEntry(sub, plan, pc, now))
		if err != nil {
			return err
		}
		if !inserted {
			return errAlreadyApplied
		}
		if stored, err = tx.GetSubscription(ctx, sub.ID); err != nil {
			return err
		}
		return tx.SaveEntitlement(ctx, sub.UserID, Project(stored, plan))
	})
	if errors.Is(err, errAlreadyApplied) || (err != nil && s.recordedElsewhere(ctx, pc.PaymentRef, err)) {
		s.metrics.duplicatePayment()
		live, _ := s.store.GetLiveSubscription(ctx, profile.UserID)
		return VerifyResult{Subscription: live, Message: "Payment already processed"}, nil
	}
	if err != nil {
		return VerifyResult{}, err
	}

	s.committed(ctx, EventActivate, transitionResult{sub: stored, plan: plan, applied: true})
	return VerifyResult{Subscription: stored, Applied: true, Message: "Trial started"}, nil
}

// Resume undoes a scheduled cancellation on a verified micro-payment.
// Only cancelling subscriptions can be resumed.
func (s *Service) Resume(ctx context.Context, userID string, id uuid.UUID, paymentRef, orderRef string) (VerifyResult, error) {
	sub, err := s.Subscription(ctx, userID, id)
	if err != nil {
		return VerifyResult{}, err
	}
	return s.resume(ctx, sub, paymentConfirmation{PaymentRef: paymentRef, OrderRef: orderRef, Purpose: PurposeResume})
}

func (s *Service) resume(ctx context.Context, sub Subscription, pc paymentConfirmation) (VerifyResult, error) {
	if dup, err := s.alreadyApplied(ctx, sub, pc.PaymentRef); err != nil || dup.ok {
		return dup.result(), err
	}
	if sub.Status != StatusCancelling {
		err := fmt.Errorf("%w: cannot resume a %s subscription", ErrIllegalTransition, sub.Status)
		if s.recordedElsewhere(ctx, pc.PaymentRef, err) {
			dup, derr := s.alreadyApplied(ctx, sub, pc.PaymentRef)
			if derr == nil && dup.ok {
				return dup.result(), nil
			}
		}
		return VerifyResult{}, err
	}

	if r, ok := s.gateway.(Resumer); ok && sub.ExternalRef != "" {
		if err := r.ResumeSubscription(ctx, sub.ExternalRef); err != nil {
			s.metrics.gatewayError("resume", err)
			return VerifyResult{}, err
		}
	}

	res, err := s.apply(ctx, sub.ID, change{
		event:   EventResume,
		payment: &pc,
		mutate: func(sub *Subscription, _ Status, _ Plan, _ time.Time) {
			sub.CancelledAt = nil
			sub.PaymentRef = pc.PaymentRef
		},
	})
	if err != nil {
		return VerifyResult{}, err
	}
	return verifyResult(res, "Subscription resumed"), nil
}

// GatewayCharge is a captured recurring payment reported by a gateway webhook.
type GatewayCharge struct {
	SubscriptionRef string
	PaymentRef      string
	OrderRef        string
	PeriodEnd       *time.Time // end of the period the charge pays for, when reported
}

// ApplyGatewayCharge converges local state with a charge the gateway captured:
// a created subscription activates, an active one renews. Duplicate deliveries
// are no-ops.
func (s *Service) ApplyGatewayCharge(ctx context.Context, charge GatewayCharge) (VerifyResult, error) {
	sub, err := s.store.GetSubscriptionByExternalRef(ctx, charge.SubscriptionRef)
	if err != nil {
		return VerifyResult{}, err
	}
	if sub.Status != StatusActive {
		return s.activate(ctx, sub, paymentConfirmation{PaymentRef: charge.PaymentRef, OrderRef: charge.OrderRef})
	}

	if dup, err := s.alreadyApplied(ctx, sub, charge.PaymentRef); err != nil || dup.ok {
		return dup.result(), err
	}
	pc := paymentConfirmation{PaymentRef: charge.PaymentRef, OrderRef: charge.OrderRef, Purpose: PurposeSubscription}
	res, err := s.apply(ctx, sub.ID, change{
		event:   EventRenew,
		payment: &pc,
		mutate: func(sub *Subscription, _ Status, plan Plan, now time.Time) {
			sub.PaymentRef = charge.PaymentRef
			sub.IsTrial = false
			base := sub.EndDate
			if base.Before(now) {
				base = now
			}
			sub.EndDate = plan.PeriodEndsAt(base)
			if charge.PeriodEnd != nil && charge.PeriodEnd.After(now) {
				sub.EndDate = charge.PeriodEnd.UTC()
			}
		},
	})
	if err != nil {
		return VerifyResult{}, err
	}
	return verifyResult(res, "Subscription renewed"), nil
}

// duplicate carries the state returned for a payment already in the ledger.
type duplicate struct {
	sub Subscription
	ok  bool
}

func (d duplicate) result() VerifyResult {
	if !d.ok {
		return VerifyResult{}
	}
	return VerifyResult{Subscription: d.sub, Message: "Payment already processed"}
}

func (s *Service) alreadyApplied(ctx context.Context, sub Subscription, paymentRef string) (duplicate, error) {
	exists, err := s.store.PaymentExists(ctx, paymentRef)
	if err != nil || !exists {
		return duplicate{}, err
	}
	s.metrics.duplicatePayment()
	s.log.DebugContext(ctx, "payment already applied",
		logger.SubscriptionID(sub.ID),
		logger.PaymentRef(paymentRef),
	)
	if cur, err := s.store.GetSubscription(ctx, sub.ID); err == nil {
		sub = cur
	}
	return duplicate{sub: sub, ok: true}, nil
}

func verifyResult(res transitionResult, message string) VerifyResult {
	if !res.applied {
		return VerifyResult{Subscription: res.sub, Message: "Payment already processed"}
	}
	return VerifyResult{Subscription: res.sub, Applied: true, Message: message}
}
