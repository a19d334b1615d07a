package subscription

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Kiranbanna12/setup-first-sub002/pkg/logger"
)

// Cancel ends a subscription immediately or schedules it for the end of the
// current cycle. The remote cancellation runs first; its outcome decides the
// local step:
//
//   - success: apply the requested transition.
//   - remote subscription gone, or local state not active: the local row is
//     not authoritative, so it is forced to cancelled.
//   - any other failure on an active subscription: abort with no local change.
func (s *Service) Cancel(ctx context.Context, userID string, id uuid.UUID, atCycleEnd bool) (Subscription, error) {
	sub, err := s.Subscription(ctx, userID, id)
	if err != nil {
		return Subscription{}, err
	}
	if sub.Status.IsTerminal() {
		return Subscription{}, fmt.Errorf("%w: subscription is already %s", ErrIllegalTransition, sub.Status)
	}
	if _, err := NextStatus(ctx, sub, EventCancel, s.now().UTC(), atCycleEnd); err != nil {
		return Subscription{}, err
	}

	forced := false
	if sub.ExternalRef != "" {
		remoteAtCycleEnd := atCycleEnd && sub.Status == StatusActive
		if _, err := s.gateway.CancelSubscription(ctx, sub.ExternalRef, remoteAtCycleEnd); err != nil {
			s.metrics.gatewayError("cancel", err)
			if sub.Status == StatusActive && !isGone(err) {
				s.log.WarnContext(ctx, "remote cancellation failed, local state unchanged",
					logger.UserID(userID),
					logger.SubscriptionID(sub.ID),
					logger.GatewayRef(sub.ExternalRef),
					logger.Error(err),
				)
				return Subscription{}, err
			}
			forced = true
			s.metrics.compensation("cancel_forced")
			s.log.WarnContext(ctx, "forcing local cancellation",
				logger.UserID(userID),
				logger.SubscriptionID(sub.ID),
				logger.Status(string(sub.Status)),
				logger.Error(err),
			)
		}
	}

	res, err := s.apply(ctx, sub.ID, change{
		event:      EventCancel,
		atCycleEnd: atCycleEnd && !forced,
		mutate:     markCancelled,
	})
	if err != nil {
		return Subscription{}, err
	}
	return res.sub, nil
}

// ApplyRemoteCancellation converges a subscription the gateway reports as
// cancelled. Terminal subscriptions are left alone.
func (s *Service) ApplyRemoteCancellation(ctx context.Context, externalRef string) (Subscription, error) {
	sub, err := s.store.GetSubscriptionByExternalRef(ctx, externalRef)
	if err != nil {
		return Subscription{}, err
	}
	if sub.Status.IsTerminal() {
		return sub, nil
	}

	res, err := s.apply(ctx, sub.ID, change{event: EventRemoteCancel, mutate: markCancelled})
	if errors.Is(err, ErrIllegalTransition) || errors.Is(err, ErrStaleState) {
		return s.store.GetSubscription(ctx, sub.ID)
	}
	if err != nil {
		return Subscription{}, err
	}
	return res.sub, nil
}

func markCancelled(sub *Subscription, _ Status, _ Plan, now time.Time) {
	sub.CancelledAt = &now
	sub.GracePeriodEnd = nil
	if sub.Status == StatusCancelled && sub.EndDate.After(now) {
		sub.EndDate = now
	}
}
