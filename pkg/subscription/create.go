package subscription

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Kiranbanna12/setup-first-sub002/pkg/logger"
)

// CreateRequest starts a checkout for a plan.
type CreateRequest struct {
	Profile Profile
	PlanID  string
	IsTrial bool
	StartAt *time.Time // optional deferred start, passed to the gateway
}

// CreateResult is what the client needs to open the gateway checkout.
type CreateResult struct {
	Subscription Subscription
	ExternalRef  string
	CheckoutURL  string
	AmountDue    Money
}

// CreateSubscription records a created subscription, claims the trial when
// requested and opens the remote subscription. The trial check happens before
// any remote call. A failed remote call is compensated: the local row moves to
// expired and the trial claim is released.
func (s *Service) CreateSubscription(ctx context.Context, req CreateRequest) (CreateResult, error) {
	plan, err := s.catalog.Plan(req.PlanID)
	if err != nil {
		return CreateResult{}, err
	}
	if req.IsTrial && !plan.HasTrial() {
		return CreateResult{}, fmt.Errorf("%w: %s", ErrTrialNotAvailable, plan.ID)
	}

	acc, err := s.store.UpsertAccount(ctx, req.Profile)
	if err != nil {
		return CreateResult{}, err
	}
	if req.IsTrial && acc.TrialUsed {
		return CreateResult{}, ErrTrialAlreadyUsed
	}
	if live, err := s.store.GetLiveSubscription(ctx, acc.UserID); err == nil && live.Status.Entitled() {
		return CreateResult{}, ErrSubscriptionAlreadyExists
	} else if err != nil && !errors.Is(err, ErrSubscriptionNotFound) {
		return CreateResult{}, err
	}

	now := s.now().UTC()
	grace := now.Add(s.cfg.GracePeriod)
	start := now
	if req.StartAt != nil && req.StartAt.After(now) {
		start = req.StartAt.UTC()
	}
	sub := Subscription{
		ID:             uuid.New(),
		UserID:         acc.UserID,
		PlanID:         plan.ID,
		Status:         StatusCreated,
		IsTrial:        req.IsTrial,
		StartDate:      start,
		EndDate:        start,
		GracePeriodEnd: &grace,
	}
	if req.IsTrial {
		sub.TrialAmount = plan.TrialAmount
	}

	superseded, err := s.insertCheckout(ctx, sub, now)
	if err != nil {
		return CreateResult{}, err
	}
	if superseded != nil {
		s.cancelRemoteQuietly(ctx, *superseded)
	}

	customerRef, err := s.customerRef(ctx, acc)
	if err != nil {
		s.metrics.gatewayError("create_customer", err)
		return CreateResult{}, s.abandon(ctx, sub, err)
	}

	remote, err := s.gateway.CreateSubscription(ctx, CreateSubscriptionRequest{
		PlanRef:     plan.ExternalPlanRef,
		CustomerRef: customerRef,
		StartAt:     req.StartAt,
		TrialDays:   trialDays(plan, req.IsTrial),
		UserID:      acc.UserID,
		Reference:   sub.ID.String(),
	})
	if err != nil {
		s.metrics.gatewayError("create_subscription", err)
		return CreateResult{}, s.abandon(ctx, sub, err)
	}

	sub, err = s.attachRemote(ctx, sub.ID, remote.Ref)
	if err != nil {
		s.cancelRemoteQuietly(ctx, Subscription{ID: sub.ID, UserID: sub.UserID, ExternalRef: remote.Ref})
		return CreateResult{}, err
	}

	s.log.InfoContext(ctx, "checkout created",
		logger.UserID(sub.UserID),
		logger.SubscriptionID(sub.ID),
		logger.GatewayRef(remote.Ref),
	)

	due := plan.Price
	if req.IsTrial {
		due = plan.TrialAmount
	}
	return CreateResult{
		Subscription: sub,
		ExternalRef:  remote.Ref,
		CheckoutURL:  remote.CheckoutURL,
		AmountDue:    due,
	}, nil
}

// insertCheckout supersedes an abandoned checkout, claims the trial and
// inserts the created row in one transaction.
func (s *Service) insertCheckout(ctx context.Context, sub Subscription, now time.Time) (*Subscription, error) {
	var (
		superseded *Subscription
		res        transitionResult
	)
	err := s.store.WithinTx(ctx, func(tx Tx) error {
		live, err := tx.GetLiveSubscription(ctx, sub.UserID)
		switch {
		case errors.Is(err, ErrSubscriptionNotFound):
		case err != nil:
			return err
		case live.Status.Entitled():
			return ErrSubscriptionAlreadyExists
		default:
			to, err := NextStatus(ctx, live, EventSupersede, now, false)
			if err != nil {
				return err
			}
			prev := live
			live.Status = to
			live.GracePeriodEnd = nil
			updated, err := tx.UpdateSubscription(ctx, live, prev.Status)
			if err != nil {
				return err
			}
			superseded = &updated
			res = transitionResult{sub: updated, from: prev.Status}
		}

		if sub.IsTrial {
			if err := tx.ClaimTrial(ctx, sub.UserID); err != nil {
				return err
			}
		}
		return tx.InsertSubscription(ctx, sub)
	})
	if err != nil {
		return nil, err
	}
	if superseded != nil {
		s.committed(ctx, EventSupersede, res)
	}
	return superseded, nil
}

// attachRemote stores the gateway ref on a row that must still be created.
func (s *Service) attachRemote(ctx context.Context, id uuid.UUID, ref string) (Subscription, error) {
	var out Subscription
	err := s.store.WithinTx(ctx, func(tx Tx) error {
		cur, err := tx.GetSubscription(ctx, id)
		if err != nil {
			return err
		}
		if cur.Status != StatusCreated {
			return fmt.Errorf("%w: checkout %s is %s", ErrIllegalTransition, id, cur.Status)
		}
		cur.ExternalRef = ref
		out, err = tx.UpdateSubscription(ctx, cur, StatusCreated)
		return err
	})
	return out, err
}

// abandon compensates a checkout whose remote half failed with a classified
// gateway error. Unclassified failures leave the row for the sweeper.
func (s *Service) abandon(ctx context.Context, sub Subscription, cause error) error {
	if !errors.Is(cause, ErrGatewayUnavailable) && !errors.Is(cause, ErrGatewayRejected) {
		return cause
	}

	_, err := s.apply(ctx, sub.ID, change{
		event: EventAbandon,
		mutate: func(sub *Subscription, _ Status, _ Plan, _ time.Time) {
			sub.GracePeriodEnd = nil
		},
		after: func(ctx context.Context, tx Tx, sub Subscription) error {
			if !sub.IsTrial {
				return nil
			}
			return tx.ReleaseTrial(ctx, sub.UserID)
		},
	})
	if err != nil {
		s.log.ErrorContext(ctx, "checkout compensation failed",
			logger.UserID(sub.UserID),
			logger.SubscriptionID(sub.ID),
			logger.Error(err),
		)
		return errors.Join(cause, err)
	}
	s.metrics.compensation("checkout_failed")
	return cause
}

// customerRef resolves the gateway customer: account row, cache, then the gateway.
func (s *Service) customerRef(ctx context.Context, acc Account) (string, error) {
	if acc.CustomerRef != "" {
		return acc.CustomerRef, nil
	}
	if ref, ok := s.cache.CustomerRef(acc.UserID); ok {
		return ref, nil
	}

	ref, err := s.gateway.CreateCustomer(ctx, Profile{UserID: acc.UserID, Email: acc.Email, Name: acc.Name})
	if err != nil {
		return "", err
	}
	if err := s.store.SetCustomerRef(ctx, acc.UserID, ref); err != nil {
		s.log.WarnContext(ctx, "failed to persist customer ref",
			logger.UserID(acc.UserID),
			logger.Error(err),
		)
	}
	s.cache.SetCustomerRef(acc.UserID, ref)
	return ref, nil
}

// cancelRemoteQuietly cancels a remote subscription nobody will pay for.
// Failures are logged; the remote side lapses on its own.
func (s *Service) cancelRemoteQuietly(ctx context.Context, sub Subscription) {
	if sub.ExternalRef == "" {
		return
	}
	if _, err := s.gateway.CancelSubscription(ctx, sub.ExternalRef, false); err != nil && !isGone(err) {
		s.metrics.gatewayError("cancel", err)
		s.log.WarnContext(ctx, "failed to cancel orphaned remote subscription",
			logger.UserID(sub.UserID),
			logger.SubscriptionID(sub.ID),
			logger.GatewayRef(sub.ExternalRef),
			logger.Error(err),
		)
	}
}

func trialDays(plan Plan, isTrial bool) int {
	if !isTrial {
		return 0
	}
	return plan.TrialDays
}
