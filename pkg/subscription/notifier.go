package subscription

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Kiranbanna12/setup-first-sub002/pkg/logger"
)

// Emitter delivers user-facing notices. Delivery failures never affect the
// transition that produced the notice.
type Emitter interface {
	Emit(ctx context.Context, userID, kind, title, message, link string) error
}

// NoticeLog answers whether a notice was already sent, for deduplication.
type NoticeLog interface {
	SentSince(ctx context.Context, userID, kind string, since time.Time) (bool, error)
}

// notifier dispatches notices in the background after a transaction commits.
type notifier struct {
	emitter Emitter
	log     *slog.Logger
	timeout time.Duration
	link    string
	wg      sync.WaitGroup
}

func (n *notifier) send(ctx context.Context, userID string, kind NoticeKind, title, message string) {
	if n.emitter == nil {
		return
	}
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), n.timeout)
		defer cancel()
		if err := n.emitter.Emit(ctx, userID, string(kind), title, message, n.link); err != nil {
			n.log.WarnContext(ctx, "notice delivery failed",
				logger.UserID(userID),
				slog.String("kind", string(kind)),
				logger.Error(err),
			)
		}
	}()
}

func (n *notifier) wait() {
	n.wg.Wait()
}

// noticeFor renders the notice for a committed transition. It returns false for
// transitions the user is not told about.
func noticeFor(event Event, from Status, sub Subscription, plan Plan) (NoticeKind, string, string, bool) {
	if from == StatusCreated && event != EventActivate {
		return "", "", "", false
	}
	name := plan.Name
	if name == "" {
		name = plan.ID
	}
	until := sub.EndDate.Format("2 Jan 2006")

	switch event {
	case EventActivate:
		if sub.IsTrial {
			return NoticeActivated, "Your trial has started",
				fmt.Sprintf("Your %s trial is active until %s.", name, until), true
		}
		return NoticeActivated, "Subscription activated",
			fmt.Sprintf("Your %s subscription is active until %s.", name, until), true
	case EventRenew:
		return NoticeRenewed, "Subscription renewed",
			fmt.Sprintf("Your %s subscription was renewed until %s.", name, until), true
	case EventCancel, EventRemoteCancel:
		if sub.Status == StatusCancelling {
			return NoticeCancelled, "Cancellation scheduled",
				fmt.Sprintf("Your %s subscription will end on %s. You keep access until then.", name, until), true
		}
		return NoticeCancelled, "Subscription cancelled",
			fmt.Sprintf("Your %s subscription has been cancelled.", name), true
	case EventResume:
		return NoticeResumed, "Subscription resumed",
			fmt.Sprintf("Your %s subscription will continue after %s.", name, until), true
	case EventExpire:
		return NoticeExpired, "Subscription expired",
			fmt.Sprintf("Your %s subscription has expired.", name), true
	}
	return "", "", "", false
}

func trialWarning(sub Subscription, plan Plan) (NoticeKind, string, string) {
	name := plan.Name
	if name == "" {
		name = plan.ID
	}
	return NoticeTrialWarning, "Your trial ends soon",
		fmt.Sprintf("Your %s trial ends on %s. Subscribe to keep access.", name, sub.EndDate.Format("2 Jan 2006 15:04 MST"))
}
