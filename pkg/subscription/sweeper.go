package subscription

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Kiranbanna12/setup-first-sub002/pkg/logger"
)

// Locker hands out a cluster-wide lease. Implementations: redis.Lease, pg.AdvisoryLock.
type Locker interface {
	TryAcquire(ctx context.Context, key string, ttl time.Duration) (release func(), acquired bool, err error)
}

const sweepLockKey = "billing:sweep"

// SweepResult counts what one reconciliation pass did.
type SweepResult struct {
	Expired int
	Warned  int
	Skipped bool // another replica holds the sweep lease
}

// Sweeper periodically reconciles subscriptions whose time has run out:
// unpaid checkouts past their grace period and entitled subscriptions past
// their end date expire; trials about to end get a warning.
type Sweeper struct {
	svc      *Service
	locker   Locker
	interval time.Duration
	lockTTL  time.Duration
	log      *slog.Logger
}

// SweeperOption configures a Sweeper.
type SweeperOption func(*Sweeper)

// WithLocker makes replicas take turns. Without a locker every replica sweeps;
// the guarded transitions keep that correct, only wasteful.
func WithLocker(l Locker, ttl time.Duration) SweeperOption {
	return func(w *Sweeper) {
		w.locker = l
		if ttl > 0 {
			w.lockTTL = ttl
		}
	}
}

func WithSweepInterval(d time.Duration) SweeperOption {
	return func(w *Sweeper) {
		if d > 0 {
			w.interval = d
		}
	}
}

// NewSweeper creates a sweeper over svc.
func NewSweeper(svc *Service, opts ...SweeperOption) *Sweeper {
	if svc == nil {
		panic("subscription: sweeper requires a service")
	}
	w := &Sweeper{
		svc:      svc,
		interval: svc.cfg.SweepInterval,
		log:      svc.log.With(logger.Component("sweeper")),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.lockTTL == 0 {
		w.lockTTL = w.interval
	}
	return w
}

// Start sweeps immediately and then on every tick until ctx is done.
func (w *Sweeper) Start(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			w.log.InfoContext(ctx, "sweeper shutting down")
			return ctx.Err()
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *Sweeper) tick(ctx context.Context) {
	res, err := w.Sweep(ctx)
	if err != nil {
		w.log.ErrorContext(ctx, "sweep finished with errors",
			slog.Int("expired", res.Expired),
			slog.Int("warned", res.Warned),
			logger.Error(err),
		)
		return
	}
	if res.Expired > 0 || res.Warned > 0 {
		w.log.InfoContext(ctx, "sweep finished",
			slog.Int("expired", res.Expired),
			slog.Int("warned", res.Warned),
		)
	}
}

// Sweep runs one reconciliation pass. It is idempotent and safe to run
// concurrently with itself and with user actions: every change goes through
// the same guarded transitions, and a row someone else already moved is skipped.
func (w *Sweeper) Sweep(ctx context.Context) (SweepResult, error) {
	var res SweepResult

	if w.locker != nil {
		release, acquired, err := w.locker.TryAcquire(ctx, sweepLockKey, w.lockTTL)
		if err != nil {
			return res, err
		}
		if !acquired {
			res.Skipped = true
			return res, nil
		}
		defer release()
	}

	expired, expireErr := w.expire(ctx)
	res.Expired = expired
	warned, warnErr := w.warnTrials(ctx)
	res.Warned = warned

	w.svc.metrics.swept(res.Expired, res.Warned)
	return res, errors.Join(expireErr, warnErr)
}

func (w *Sweeper) expire(ctx context.Context) (int, error) {
	now := w.svc.now().UTC()
	due, err := w.svc.store.ListExpirable(ctx, now, w.svc.cfg.SweepBatch)
	if err != nil {
		return 0, err
	}

	var (
		count int
		errs  []error
	)
	for _, sub := range due {
		if _, err := w.svc.Expire(ctx, sub.ID); err != nil {
			if errors.Is(err, ErrIllegalTransition) || errors.Is(err, ErrStaleState) {
				w.log.DebugContext(ctx, "subscription moved before expiry, skipped",
					logger.SubscriptionID(sub.ID),
					logger.Error(err),
				)
				continue
			}
			errs = append(errs, err)
			continue
		}
		count++
	}
	return count, errors.Join(errs...)
}

func (w *Sweeper) warnTrials(ctx context.Context) (int, error) {
	cfg := w.svc.cfg
	now := w.svc.now().UTC()
	ending, err := w.svc.store.ListTrialsEnding(ctx, now, now.Add(cfg.TrialWarningWindow), cfg.SweepBatch)
	if err != nil {
		return 0, err
	}

	var (
		count int
		errs  []error
	)
	for _, sub := range ending {
		if w.svc.noticeLog != nil {
			sent, err := w.svc.noticeLog.SentSince(ctx, sub.UserID, string(NoticeTrialWarning), now.Add(-cfg.WarningDedupWindow))
			if err != nil {
				errs = append(errs, err)
				continue
			}
			if sent {
				continue
			}
		}
		if !w.svc.cache.MarkWarned(sub.ID.String(), cfg.WarningDedupWindow) {
			continue
		}

		plan, err := w.svc.catalog.Plan(sub.PlanID)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		kind, title, message := trialWarning(sub, plan)
		w.svc.notices.send(ctx, sub.UserID, kind, title, message)
		count++
	}
	return count, errors.Join(errs...)
}
