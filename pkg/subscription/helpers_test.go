package subscription_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/Kiranbanna12/setup-first-sub002/pkg/logger"
	"github.com/Kiranbanna12/setup-first-sub002/pkg/signature"
	"github.com/Kiranbanna12/setup-first-sub002/pkg/subscription"
)

const testSecret = "whsec_test_secret"

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock {
	return &clock{now: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type cancelCall struct {
	Ref        string
	AtCycleEnd bool
}

// fakeGateway records calls and fails on demand.
type fakeGateway struct {
	mu        sync.Mutex
	seq       int
	customers map[string]string
	creates   []subscription.CreateSubscriptionRequest
	cancels   []cancelCall
	createErr error
	cancelErr error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{customers: make(map[string]string)}
}

func (g *fakeGateway) CreateCustomer(_ context.Context, p subscription.Profile) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if ref, ok := g.customers[p.Email]; ok {
		return ref, nil
	}
	ref := "cust_" + p.UserID
	g.customers[p.Email] = ref
	return ref, nil
}

func (g *fakeGateway) CreateSubscription(_ context.Context, req subscription.CreateSubscriptionRequest) (subscription.GatewaySubscription, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.createErr != nil {
		return subscription.GatewaySubscription{}, g.createErr
	}
	g.seq++
	g.creates = append(g.creates, req)
	return subscription.GatewaySubscription{
		Ref:         fmt.Sprintf("sub_%d", g.seq),
		Status:      "created",
		CustomerRef: req.CustomerRef,
	}, nil
}

func (g *fakeGateway) CancelSubscription(_ context.Context, ref string, atCycleEnd bool) (subscription.CancelResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cancels = append(g.cancels, cancelCall{Ref: ref, AtCycleEnd: atCycleEnd})
	if g.cancelErr != nil {
		return subscription.CancelResult{}, g.cancelErr
	}
	return subscription.CancelResult{Ref: ref, Status: "cancelled", AtCycleEnd: atCycleEnd}, nil
}

func (g *fakeGateway) setCreateErr(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.createErr = err
}

func (g *fakeGateway) setCancelErr(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cancelErr = err
}

func (g *fakeGateway) createCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.creates)
}

func (g *fakeGateway) cancelCalls() []cancelCall {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]cancelCall(nil), g.cancels...)
}

type notice struct {
	UserID string
	Kind   string
	Title  string
	At     time.Time
}

// recorder is an Emitter and NoticeLog backed by a slice.
type recorder struct {
	mu      sync.Mutex
	clock   *clock
	notices []notice
	err     error
}

func (r *recorder) Emit(_ context.Context, userID, kind, title, _, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, notice{UserID: userID, Kind: kind, Title: title, At: r.clock.Now()})
	return r.err
}

func (r *recorder) SentSince(_ context.Context, userID, kind string, since time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range r.notices {
		if n.UserID == userID && n.Kind == kind && !n.At.Before(since) {
			return true, nil
		}
	}
	return false, nil
}

func (r *recorder) kinds(userID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, n := range r.notices {
		if n.UserID == userID {
			out = append(out, n.Kind)
		}
	}
	return out
}

func testPlans() []subscription.Plan {
	return []subscription.Plan{
		{
			ID:              "pro_monthly",
			Name:            "Pro",
			Tier:            "pro",
			BillingPeriod:   subscription.BillingMonthly,
			Price:           subscription.Money{Amount: 49900, Currency: "INR"},
			TrialDays:       30,
			TrialAmount:     subscription.Money{Amount: 100, Currency: "INR"},
			ExternalPlanRef: "plan_pro",
		},
		{
			ID:              "team_annual",
			Name:            "Team",
			Tier:            "team",
			BillingPeriod:   subscription.BillingAnnual,
			Price:           subscription.Money{Amount: 999900, Currency: "INR"},
			TrialAmount:     subscription.Money{Amount: 100, Currency: "INR"},
			ExternalPlanRef: "plan_team",
		},
	}
}

type harness struct {
	svc      *subscription.Service
	store    *subscription.MemoryStore
	gateway  *fakeGateway
	notices  *recorder
	clock    *clock
	verifier *signature.Verifier
}

func newHarness(t *testing.T, opts ...subscription.ServiceOption) *harness {
	t.Helper()
	return newHarnessWith(t, nil, opts...)
}

// newHarnessWith builds a harness whose service talks to wrap(memory store)
// instead of the memory store itself.
func newHarnessWith(t *testing.T, wrap func(*subscription.MemoryStore) subscription.Store, opts ...subscription.ServiceOption) *harness {
	t.Helper()

	h := &harness{
		store:    subscription.NewMemoryStore(),
		gateway:  newFakeGateway(),
		clock:    newClock(),
		verifier: signature.MustNewVerifier(testSecret),
	}
	h.notices = &recorder{clock: h.clock}
	base := []subscription.ServiceOption{
		subscription.WithClock(h.clock.Now),
		subscription.WithEmitter(h.notices),
		subscription.WithLogger(logger.Discard()),
	}
	var store subscription.Store = h.store
	if wrap != nil {
		store = wrap(h.store)
	}
	h.svc = subscription.NewService(
		store,
		subscription.MustNewCatalog(testPlans()...),
		h.gateway,
		h.verifier,
		append(base, opts...)...,
	)
	return h
}

func profile(userID string) subscription.Profile {
	return subscription.Profile{UserID: userID, Email: userID + "@example.com", Name: "User " + userID}
}

func (h *harness) checkout(t *testing.T, userID, planID string, trial bool) subscription.CreateResult {
	t.Helper()
	res, err := h.svc.CreateSubscription(context.Background(), subscription.CreateRequest{
		Profile: profile(userID),
		PlanID:  planID,
		IsTrial: trial,
	})
	require.NoError(t, err)
	return res
}

func (h *harness) proof(paymentRef, subscriptionRef string) subscription.VerifyRequest {
	return subscription.VerifyRequest{
		PaymentRef:      paymentRef,
		SubscriptionRef: subscriptionRef,
		Signature:       signature.Sign(signature.SubscriptionPayload(paymentRef, subscriptionRef), testSecret),
	}
}

func (h *harness) pay(t *testing.T, userID string, res subscription.CreateResult, paymentRef string) subscription.VerifyResult {
	t.Helper()
	req := h.proof(paymentRef, res.ExternalRef)
	req.SubscriptionID = res.Subscription.ID
	out, err := h.svc.VerifyPayment(context.Background(), profile(userID), req)
	require.NoError(t, err)
	return out
}

func (h *harness) get(t *testing.T, id uuid.UUID) subscription.Subscription {
	t.Helper()
	sub, err := h.store.GetSubscription(context.Background(), id)
	require.NoError(t, err)
	return sub
}

func (h *harness) entitlement(t *testing.T, userID string) subscription.Entitlement {
	t.Helper()
	acc, err := h.store.GetAccount(context.Background(), userID)
	require.NoError(t, err)
	return acc.Entitlement
}

// gatedStore holds the first n ledger lookups made outside a transaction until
// all n have arrived, so every caller sees the payment as not yet recorded.
type gatedStore struct {
	*subscription.MemoryStore

	mu      sync.Mutex
	pending int
	release chan struct{}
}

func newGatedStore(ms *subscription.MemoryStore, n int) *gatedStore {
	return &gatedStore{MemoryStore: ms, pending: n, release: make(chan struct{})}
}

func (g *gatedStore) PaymentExists(ctx context.Context, ref string) (bool, error) {
	exists, err := g.MemoryStore.PaymentExists(ctx, ref)

	g.mu.Lock()
	if g.pending == 0 {
		g.mu.Unlock()
		return exists, err
	}
	g.pending--
	if g.pending == 0 {
		close(g.release)
	}
	g.mu.Unlock()

	select {
	case <-g.release:
		return exists, err
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// laggingLedgerStore answers the first `lag` ledger lookups and every lookup
// made inside a transaction with "not recorded", as a reader whose snapshot
// predates a concurrent commit would.
type laggingLedgerStore struct {
	*subscription.MemoryStore

	mu  sync.Mutex
	lag int
}

func (l *laggingLedgerStore) PaymentExists(ctx context.Context, ref string) (bool, error) {
	l.mu.Lock()
	if l.lag > 0 {
		l.lag--
		l.mu.Unlock()
		return false, nil
	}
	l.mu.Unlock()
	return l.MemoryStore.PaymentExists(ctx, ref)
}

func (l *laggingLedgerStore) WithinTx(ctx context.Context, fn func(tx subscription.Tx) error) error {
	return l.MemoryStore.WithinTx(ctx, func(tx subscription.Tx) error {
		return fn(laggingTx{Tx: tx})
	})
}

type laggingTx struct {
	subscription.Tx
}

func (laggingTx) PaymentExists(context.Context, string) (bool, error) {
	return false, nil
}

// slowAccountStore runs a hook once, after an account row was read and before
// it is returned.
type slowAccountStore struct {
	*subscription.MemoryStore

	mu   sync.Mutex
	hook func()
}

func (s *slowAccountStore) between(fn func()) {
	s.mu.Lock()
	s.hook = fn
	s.mu.Unlock()
}

func (s *slowAccountStore) GetAccount(ctx context.Context, userID string) (subscription.Account, error) {
	acc, err := s.MemoryStore.GetAccount(ctx, userID)

	s.mu.Lock()
	hook := s.hook
	s.hook = nil
	s.mu.Unlock()
	if hook != nil {
		hook()
	}
	return acc, err
}
