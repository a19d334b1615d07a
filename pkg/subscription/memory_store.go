package subscription

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-process Store. Transactions are serialized and applied
// by swapping in a modified copy of the state, so a failed transaction leaves
// no trace. It is meant for tests and single-instance development.
type MemoryStore struct {
	mu    sync.RWMutex
	state memState
	now   func() time.Time
}

type memState struct {
	accounts map[string]Account
	subs     map[uuid.UUID]Subscription
	payments []PaymentTransaction
}

func (s memState) clone() memState {
	return memState{
		accounts: maps.Clone(s.accounts),
		subs:     maps.Clone(s.subs),
		payments: slices.Clone(s.payments),
	}
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		state: memState{
			accounts: make(map[string]Account),
			subs:     make(map[uuid.UUID]Subscription),
		},
		now: time.Now,
	}
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Tx    = (*memTx)(nil)
)

func (m *MemoryStore) WithinTx(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &memTx{state: m.state.clone(), now: m.now}
	if err := fn(tx); err != nil {
		return err
	}
	m.state = tx.state
	return nil
}

func (m *MemoryStore) GetAccount(_ context.Context, userID string) (Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.account(userID)
}

func (m *MemoryStore) GetSubscription(_ context.Context, id uuid.UUID) (Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.subscription(id)
}

func (m *MemoryStore) GetSubscriptionByExternalRef(_ context.Context, ref string) (Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.byExternalRef(ref)
}

func (m *MemoryStore) GetLiveSubscription(_ context.Context, userID string) (Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.live(userID)
}

func (m *MemoryStore) PaymentExists(_ context.Context, ref string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.paymentExists(ref), nil
}

func (m *MemoryStore) UpsertAccount(_ context.Context, p Profile) (Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now().UTC()
	acc, ok := m.state.accounts[p.UserID]
	if !ok {
		acc = Account{UserID: p.UserID, Entitlement: FreeEntitlement(), CreatedAt: now}
	}
	if p.Email != "" {
		acc.Email = p.Email
	}
	if p.Name != "" {
		acc.Name = p.Name
	}
	acc.UpdatedAt = now
	m.state.accounts[p.UserID] = acc
	return acc, nil
}

func (m *MemoryStore) SetCustomerRef(_ context.Context, userID, ref string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	acc, err := m.state.account(userID)
	if err != nil {
		return err
	}
	acc.CustomerRef = ref
	acc.UpdatedAt = m.now().UTC()
	m.state.accounts[userID] = acc
	return nil
}

func (m *MemoryStore) ListExpirable(_ context.Context, now time.Time, limit int) ([]Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.state.filter(limit, func(s Subscription) bool {
		return s.GraceExpired(now) || s.PeriodEnded(now)
	}), nil
}

func (m *MemoryStore) ListTrialsEnding(_ context.Context, now, until time.Time, limit int) ([]Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.state.filter(limit, func(s Subscription) bool {
		return s.IsTrial && s.Status.Entitled() && s.EndDate.After(now) && !s.EndDate.After(until)
	}), nil
}

func (m *MemoryStore) ListPayments(_ context.Context, subscriptionID uuid.UUID) ([]PaymentTransaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []PaymentTransaction
	for _, p := range m.state.payments {
		if p.SubscriptionID == subscriptionID {
			out = append(out, p)
		}
	}
	return out, nil
}

type memTx struct {
	state memState
	now   func() time.Time
}

func (t *memTx) GetAccount(_ context.Context, userID string) (Account, error) {
	return t.state.account(userID)
}

func (t *memTx) GetSubscription(_ context.Context, id uuid.UUID) (Subscription, error) {
	return t.state.subscription(id)
}

func (t *memTx) GetSubscriptionByExternalRef(_ context.Context, ref string) (Subscription, error) {
	return t.state.byExternalRef(ref)
}

func (t *memTx) GetLiveSubscription(_ context.Context, userID string) (Subscription, error) {
	return t.state.live(userID)
}

func (t *memTx) PaymentExists(_ context.Context, ref string) (bool, error) {
	return t.state.paymentExists(ref), nil
}

func (t *memTx) ClaimTrial(_ context.Context, userID string) error {
	acc, err := t.state.account(userID)
	if err != nil {
		return err
	}
	if acc.TrialUsed {
		return ErrTrialAlreadyUsed
	}
	acc.TrialUsed = true
	t.state.accounts[userID] = acc
	return nil
}

func (t *memTx) ReleaseTrial(_ context.Context, userID string) error {
	acc, err := t.state.account(userID)
	if err != nil {
		return err
	}
	acc.TrialUsed = false
	t.state.accounts[userID] = acc
	return nil
}

func (t *memTx) InsertSubscription(_ context.Context, sub Subscription) error {
	if _, exists := t.state.subs[sub.ID]; exists {
		return fmt.Errorf("subscription %s already stored", sub.ID)
	}
	if sub.Status.IsLive() {
		if _, err := t.state.live(sub.UserID); err == nil {
			return ErrSubscriptionAlreadyExists
		}
	}
	now := t.now().UTC()
	sub.Version = 1
	sub.CreatedAt, sub.UpdatedAt = now, now
	t.state.subs[sub.ID] = sub
	return nil
}

func (t *memTx) UpdateSubscription(_ context.Context, sub Subscription, expected Status) (Subscription, error) {
	cur, ok := t.state.subs[sub.ID]
	if !ok || cur.Status != expected || cur.Version != sub.Version {
		return Subscription{}, ErrStaleState
	}
	if sub.Status.IsLive() && !expected.IsLive() {
		if _, err := t.state.live(sub.UserID); err == nil {
			return Subscription{}, ErrSubscriptionAlreadyExists
		}
	}
	sub.Version = cur.Version + 1
	sub.CreatedAt = cur.CreatedAt
	sub.UpdatedAt = t.now().UTC()
	t.state.subs[sub.ID] = sub
	return sub, nil
}

func (t *memTx) InsertPayment(_ context.Context, p PaymentTransaction) (bool, error) {
	if t.state.paymentExists(p.ExternalPaymentRef) {
		return false, nil
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = t.now().UTC()
	}
	t.state.payments = append(t.state.payments, p)
	return true, nil
}

func (t *memTx) SaveEntitlement(_ context.Context, userID string, e Entitlement) error {
	acc, err := t.state.account(userID)
	if err != nil {
		return err
	}
	acc.Entitlement = e
	acc.UpdatedAt = t.now().UTC()
	t.state.accounts[userID] = acc
	return nil
}

func (s memState) account(userID string) (Account, error) {
	acc, ok := s.accounts[userID]
	if !ok {
		return Account{}, fmt.Errorf("%w: %s", ErrAccountNotFound, userID)
	}
	return acc, nil
}

func (s memState) subscription(id uuid.UUID) (Subscription, error) {
	sub, ok := s.subs[id]
	if !ok {
		return Subscription{}, fmt.Errorf("%w: %s", ErrSubscriptionNotFound, id)
	}
	return sub, nil
}

func (s memState) byExternalRef(ref string) (Subscription, error) {
	if ref != "" {
		for _, sub := range s.subs {
			if sub.ExternalRef == ref {
				return sub, nil
			}
		}
	}
	return Subscription{}, fmt.Errorf("%w: external ref %s", ErrSubscriptionNotFound, ref)
}

func (s memState) live(userID string) (Subscription, error) {
	for _, sub := range s.subs {
		if sub.UserID == userID && sub.Status.IsLive() {
			return sub, nil
		}
	}
	return Subscription{}, fmt.Errorf("%w: no live subscription for %s", ErrSubscriptionNotFound, userID)
}

func (s memState) paymentExists(ref string) bool {
	return slices.ContainsFunc(s.payments, func(p PaymentTransaction) bool {
		return p.ExternalPaymentRef == ref
	})
}

func (s memState) filter(limit int, keep func(Subscription) bool) []Subscription {
	var out []Subscription
	for _, sub := range s.subs {
		if keep(sub) {
			out = append(out, sub)
		}
	}
	slices.SortFunc(out, func(a, b Subscription) int { return a.EndDate.Compare(b.EndDate) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
