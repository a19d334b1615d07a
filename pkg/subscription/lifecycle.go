package subscription

import (
	"context"
	"fmt"
	"time"

	"github.com/Kiranbanna12/setup-first-sub002/pkg/statemachine"
)

// transitionInput is the guard data evaluated by the lifecycle table.
type transitionInput struct {
	Sub        Subscription
	Now        time.Time
	AtCycleEnd bool
}

type guard = statemachine.Guard[Status, transitionInput]

var (
	atCycleEnd guard = func(_ context.Context, _ Status, in transitionInput) bool {
		return in.AtCycleEnd
	}
	immediately guard = func(_ context.Context, _ Status, in transitionInput) bool {
		return !in.AtCycleEnd
	}
	graceExpired guard = func(_ context.Context, _ Status, in transitionInput) bool {
		return in.Sub.GraceExpired(in.Now)
	}
	periodEnded guard = func(_ context.Context, _ Status, in transitionInput) bool {
		return in.Sub.PeriodEnded(in.Now)
	}
)

func define(from, to Status, event Event, guards ...guard) statemachine.Transition[Status, Event, transitionInput] {
	return statemachine.Define(from, to, event, guards...)
}

// lifecycle is the complete transition table. Anything not listed is illegal.
var lifecycle = statemachine.New(
	define(StatusCreated, StatusActive, EventActivate),
	define(StatusCreated, StatusCancelled, EventCancel),
	define(StatusCreated, StatusCancelled, EventRemoteCancel),
	define(StatusCreated, StatusExpired, EventExpire, graceExpired),
	define(StatusCreated, StatusExpired, EventSupersede),
	define(StatusCreated, StatusExpired, EventAbandon),

	define(StatusActive, StatusActive, EventRenew),
	define(StatusActive, StatusCancelling, EventCancel, atCycleEnd),
	define(StatusActive, StatusCancelled, EventCancel, immediately),
	define(StatusActive, StatusCancelled, EventRemoteCancel),
	define(StatusActive, StatusExpired, EventExpire, periodEnded),

	define(StatusCancelling, StatusActive, EventResume),
	define(StatusCancelling, StatusActive, EventActivate),
	define(StatusCancelling, StatusCancelled, EventCancel, immediately),
	define(StatusCancelling, StatusCancelled, EventRemoteCancel),
	define(StatusCancelling, StatusExpired, EventExpire, periodEnded),
)

// NextStatus resolves the status sub moves to when event fires at now.
// Illegal or guard-blocked transitions return an error wrapping ErrIllegalTransition.
func NextStatus(ctx context.Context, sub Subscription, event Event, now time.Time, cycleEnd bool) (Status, error) {
	to, err := lifecycle.Next(ctx, sub.Status, event, transitionInput{Sub: sub, Now: now, AtCycleEnd: cycleEnd})
	if err != nil {
		return sub.Status, fmt.Errorf("%w: %v", ErrIllegalTransition, err)
	}
	return to, nil
}

// Reachable lists the statuses one transition away from s.
func Reachable(s Status) []Status {
	return lifecycle.Targets(s)
}
