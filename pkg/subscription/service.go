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

// Service drives the subscription lifecycle: checkout, payment verification,
// cancellation, resumption and expiry. All state lives in the Store; the
// Service itself holds only collaborators, so any number of replicas may run.
type Service struct {
	store    Store
	catalog  *Catalog
	gateway  Gateway
	verifier *signature.Verifier

	cfg       Config
	cache     *Cache
	metrics   *Metrics
	log       *slog.Logger
	now       func() time.Time
	notices   *notifier
	noticeLog NoticeLog
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithConfig overrides the lifecycle timings.
func WithConfig(cfg Config) ServiceOption {
	return func(s *Service) { s.cfg = cfg }
}

func WithLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// WithClock replaces time.Now. Tests use it to move through trial and billing periods.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithEmitter sets the notification collaborator. Without one no notices are sent.
func WithEmitter(e Emitter) ServiceOption {
	return func(s *Service) { s.notices.emitter = e }
}

// WithNoticeLog sets the history used to deduplicate trial warnings.
func WithNoticeLog(l NoticeLog) ServiceOption {
	return func(s *Service) { s.noticeLog = l }
}

func WithCache(c *Cache) ServiceOption {
	return func(s *Service) {
		if c != nil {
			s.cache = c
		}
	}
}

func WithMetrics(m *Metrics) ServiceOption {
	return func(s *Service) { s.metrics = m }
}

// NewService wires the lifecycle. store, catalog, gateway and verifier are required.
func NewService(store Store, catalog *Catalog, gateway Gateway, verifier *signature.Verifier, opts ...ServiceOption) *Service {
	if store == nil {
		panic("subscription: store is required")
	}
	if catalog == nil {
		panic("subscription: plan catalog is required")
	}
	if gateway == nil {
		panic("subscription: gateway is required")
	}
	if verifier == nil {
		panic("subscription: signature verifier is required")
	}

	s := &Service{
		store:    store,
		catalog:  catalog,
		gateway:  gateway,
		verifier: verifier,
		cfg:      DefaultConfig(),
		log:      slog.Default(),
		now:      time.Now,
		notices:  &notifier{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cache == nil {
		s.cache = NewCache(s.cfg.CacheTTL)
	}
	s.log = s.log.With(logger.Component("subscription"))
	s.notices.log = s.log
	s.notices.timeout = s.cfg.NotifyTimeout
	s.notices.link = s.cfg.NoticeLink
	if noticeLog, ok := s.notices.emitter.(NoticeLog); ok && s.noticeLog == nil {
		s.noticeLog = noticeLog
	}
	return s
}

// Catalog exposes the plan catalog the service was built with.
func (s *Service) Catalog() *Catalog {
	return s.catalog
}

// Wait blocks until every notice dispatched so far has been handed to the emitter.
func (s *Service) Wait() {
	s.notices.wait()
}

// Entitlement returns the persisted projection for userID.
func (s *Service) Entitlement(ctx context.Context, userID string) (Entitlement, error) {
	if e, ok := s.cache.Entitlement(userID); ok {
		return e, nil
	}
	gen := s.cache.EntitlementGeneration(userID)
	acc, err := s.store.GetAccount(ctx, userID)
	if errors.Is(err, ErrAccountNotFound) {
		return FreeEntitlement(), nil
	}
	if err != nil {
		return Entitlement{}, err
	}
	s.cache.SetEntitlement(userID, acc.Entitlement, gen)
	return acc.Entitlement, nil
}

// Subscription returns a subscription owned by userID.
func (s *Service) Subscription(ctx context.Context, userID string, id uuid.UUID) (Subscription, error) {
	sub, err := s.store.GetSubscription(ctx, id)
	if err != nil {
		return Subscription{}, err
	}
	if sub.UserID != userID {
		return Subscription{}, fmt.Errorf("%w: %s", ErrSubscriptionNotFound, id)
	}
	return sub, nil
}

// Expire moves a subscription whose grace period or billing period has run
// out to expired. Returns ErrIllegalTransition when it is not yet due.
func (s *Service) Expire(ctx context.Context, id uuid.UUID) (Subscription, error) {
	res, err := s.apply(ctx, id, change{event: EventExpire})
	if err != nil {
		return Subscription{}, err
	}
	return res.sub, nil
}

// paymentConfirmation is a verified payment about to enter the ledger.
type paymentConfirmation struct {
	PaymentRef string
	OrderRef   string
	Purpose    Purpose
}

// change describes one guarded transition applied by apply.
type change struct {
	event      Event
	atCycleEnd bool
	payment    *paymentConfirmation
	mutate     func(sub *Subscription, from Status, plan Plan, now time.Time)
	after      func(ctx context.Context, tx Tx, sub Subscription) error
}

type transitionResult struct {
	sub     Subscription
	from    Status
	plan    Plan
	applied bool
}

// errAlreadyApplied rolls back a transaction whose payment was recorded by a concurrent call.
var errAlreadyApplied = errors.New("payment already applied")

// apply runs event against the current row inside one transaction: the guarded
// status change, the ledger entry and the projection commit together. After
// commit the cache is invalidated and at most one notice is dispatched.
func (s *Service) apply(ctx context.Context, id uuid.UUID, ch change) (transitionResult, error) {
	var res transitionResult
	now := s.now().UTC()

	err := s.store.WithinTx(ctx, func(tx Tx) error {
		cur, err := tx.GetSubscription(ctx, id)
		if err != nil {
			return err
		}
		plan, err := s.catalog.Plan(cur.PlanID)
		if err != nil {
			return err
		}
		res = transitionResult{sub: cur, from: cur.Status, plan: plan}

		if ch.payment != nil {
			dup, err := tx.PaymentExists(ctx, ch.payment.PaymentRef)
			if err != nil {
				return err
			}
			if dup {
				return errAlreadyApplied
			}
		}

		to, err := NextStatus(ctx, cur, ch.event, now, ch.atCycleEnd)
		if err != nil {
			return err
		}

		if ch.payment != nil {
			inserted, err := tx.InsertPayment(ctx, s.ledgerEntry(cur, plan, *ch.payment, now))
			if err != nil {
				return err
			}
			if !inserted {
				return errAlreadyApplied
			}
		}

		next := cur
		next.Status = to
		if ch.mutate != nil {
			ch.mutate(&next, cur.Status, plan, now)
		}
		updated, err := tx.UpdateSubscription(ctx, next, cur.Status)
		if err != nil {
			return err
		}
		if err := tx.SaveEntitlement(ctx, updated.UserID, Project(updated, plan)); err != nil {
			return err
		}
		if ch.after != nil {
			if err := ch.after(ctx, tx, updated); err != nil {
				return err
			}
		}

		res.sub = updated
		res.applied = true
		return nil
	})

	if err != nil && ch.payment != nil && s.recordedElsewhere(ctx, ch.payment.PaymentRef, err) {
		if cur, gerr := s.store.GetSubscription(ctx, id); gerr == nil {
			res.sub = cur
		}
		res.applied = false
		err = errAlreadyApplied
	}
	if errors.Is(err, errAlreadyApplied) {
		s.metrics.duplicatePayment()
		return res, nil
	}
	if err != nil {
		return transitionResult{}, err
	}

	s.committed(ctx, ch.event, res)
	return res, nil
}

// recordedElsewhere reports whether a transition that lost a race to a
// concurrent delivery of the same payment should be treated as a duplicate.
func (s *Service) recordedElsewhere(ctx context.Context, paymentRef string, err error) bool {
	if !errors.Is(err, ErrIllegalTransition) && !errors.Is(err, ErrStaleState) &&
		!errors.Is(err, ErrSubscriptionAlreadyExists) && !errors.Is(err, ErrTrialAlreadyUsed) {
		return false
	}
	exists, lerr := s.store.PaymentExists(ctx, paymentRef)
	return lerr == nil && exists
}

func (s *Service) ledgerEntry(sub Subscription, plan Plan, pc paymentConfirmation, now time.Time) PaymentTransaction {
	purpose := pc.Purpose
	if sub.Status == StatusCreated && sub.IsTrial {
		purpose = PurposeTrial
	}
	if purpose == "" {
		purpose = PurposeSubscription
	}
	amount := plan.AmountFor(purpose)
	return PaymentTransaction{
		ID:                 uuid.New(),
		UserID:             sub.UserID,
		SubscriptionID:     sub.ID,
		Amount:             amount.Amount,
		Currency:           amount.Currency,
		ExternalPaymentRef: pc.PaymentRef,
		ExternalOrderRef:   pc.OrderRef,
		Status:             PaymentCaptured,
		Purpose:            purpose,
		CreatedAt:          now,
	}
}

// committed runs the post-commit side effects of a transition.
func (s *Service) committed(ctx context.Context, event Event, res transitionResult) {
	s.cache.Invalidate(res.sub.UserID)
	s.metrics.transition(event, res.sub.Status)
	s.log.InfoContext(ctx, "subscription transition",
		logger.UserID(res.sub.UserID),
		logger.SubscriptionID(res.sub.ID),
		logger.Event(string(event)),
		logger.Transition(string(res.from), string(res.sub.Status)),
	)

	if kind, title, message, ok := noticeFor(event, res.from, res.sub, res.plan); ok {
		s.notices.send(ctx, res.sub.UserID, kind, title, message)
	}
}
