package subscription

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Kiranbanna12/setup-first-sub002/pkg/pg"
)

// DB is the subset of *pgxpool.Pool the store needs.
type DB interface {
	querier
	Begin(ctx context.Context) (pgx.Tx, error)
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements Store on PostgreSQL. The schema lives in
// migrations/00001_billing.sql.
type PostgresStore struct {
	db DB
	pgQueries
}

// NewPostgresStore wraps a connection pool.
func NewPostgresStore(db DB) *PostgresStore {
	if db == nil {
		panic("subscription: postgres store requires a database")
	}
	return &PostgresStore{db: db, pgQueries: pgQueries{q: db}}
}

var (
	_ Store = (*PostgresStore)(nil)
	_ Tx    = (*pgTx)(nil)

	psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
)

const (
	subscriptionColumns = `id, user_id, plan_id, COALESCE(external_ref, ''), status, is_trial,
		trial_amount, trial_currency, start_date, end_date, grace_period_end, cancelled_at,
		payment_ref, version, created_at, updated_at`

	accountColumns = `user_id, email, name, trial_used, customer_ref, subscription_active,
		tier, plan_ref, entitlement_end_date, entitlement_subscription_id, created_at, updated_at`

	liveStatuses = `('created', 'active', 'cancelling')`
)

func (s *PostgresStore) WithinTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(&pgTx{pgQueries: pgQueries{q: tx}}); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return errors.Join(err, rbErr)
		}
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpsertAccount(ctx context.Context, p Profile) (Account, error) {
	row := s.db.QueryRow(ctx, `
		INSERT INTO accounts (user_id, email, name)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET
			email = COALESCE(NULLIF(EXCLUDED.email, ''), accounts.email),
			name = COALESCE(NULLIF(EXCLUDED.name, ''), accounts.name),
			updated_at = now()
		RETURNING `+accountColumns,
		p.UserID, p.Email, p.Name,
	)
	acc, err := scanAccount(row)
	if err != nil {
		return Account{}, fmt.Errorf("upsert account %s: %w", p.UserID, err)
	}
	return acc, nil
}

func (s *PostgresStore) SetCustomerRef(ctx context.Context, userID, ref string) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE accounts SET customer_ref = $2, updated_at = now() WHERE user_id = $1`,
		userID, ref,
	)
	if err != nil {
		return fmt.Errorf("set customer ref: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrAccountNotFound, userID)
	}
	return nil
}

func (s *PostgresStore) ListExpirable(ctx context.Context, now time.Time, limit int) ([]Subscription, error) {
	query := psql.Select(subscriptionColumns).
		From("subscriptions").
		Where(sq.Or{
			sq.And{sq.Eq{"status": StatusCreated}, sq.Lt{"grace_period_end": now}},
			sq.And{sq.Eq{"status": []Status{StatusActive, StatusCancelling}}, sq.Lt{"end_date": now}},
		}).
		OrderBy("end_date")
	if limit > 0 {
		query = query.Limit(uint64(limit))
	}
	return s.list(ctx, query)
}

func (s *PostgresStore) ListTrialsEnding(ctx context.Context, now, until time.Time, limit int) ([]Subscription, error) {
	query := psql.Select(subscriptionColumns).
		From("subscriptions").
		Where(sq.Eq{"is_trial": true, "status": []Status{StatusActive, StatusCancelling}}).
		Where(sq.Gt{"end_date": now}).
		Where(sq.LtOrEq{"end_date": until}).
		OrderBy("end_date")
	if limit > 0 {
		query = query.Limit(uint64(limit))
	}
	return s.list(ctx, query)
}

func (s *PostgresStore) list(ctx context.Context, query sq.SelectBuilder) ([]Subscription, error) {
	sql, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build subscription query: %w", err)
	}
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	defer rows.Close()

	var out []Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ListPayments(ctx context.Context, subscriptionID uuid.UUID) ([]PaymentTransaction, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, user_id, subscription_id, amount, currency, external_payment_ref,
			external_order_ref, status, purpose, created_at
		FROM payment_transactions
		WHERE subscription_id = $1
		ORDER BY created_at`,
		subscriptionID,
	)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()

	var out []PaymentTransaction
	for rows.Next() {
		var p PaymentTransaction
		if err := rows.Scan(&p.ID, &p.UserID, &p.SubscriptionID, &p.Amount, &p.Currency,
			&p.ExternalPaymentRef, &p.ExternalOrderRef, &p.Status, &p.Purpose, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// pgQueries holds the reads shared by the store and its transactions.
type pgQueries struct {
	q querier
}

func (r pgQueries) GetAccount(ctx context.Context, userID string) (Account, error) {
	acc, err := scanAccount(r.q.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE user_id = $1`, userID))
	if pg.IsNotFoundError(err) {
		return Account{}, fmt.Errorf("%w: %s", ErrAccountNotFound, userID)
	}
	if err != nil {
		return Account{}, fmt.Errorf("get account: %w", err)
	}
	return acc, nil
}

func (r pgQueries) GetSubscription(ctx context.Context, id uuid.UUID) (Subscription, error) {
	return r.getSubscription(ctx, `WHERE id = $1`, id)
}

func (r pgQueries) GetSubscriptionByExternalRef(ctx context.Context, ref string) (Subscription, error) {
	return r.getSubscription(ctx, `WHERE external_ref = $1`, ref)
}

func (r pgQueries) GetLiveSubscription(ctx context.Context, userID string) (Subscription, error) {
	return r.getSubscription(ctx, `WHERE user_id = $1 AND status IN `+liveStatuses, userID)
}

func (r pgQueries) getSubscription(ctx context.Context, where string, arg any) (Subscription, error) {
	sub, err := scanSubscription(r.q.QueryRow(ctx, `SELECT `+subscriptionColumns+` FROM subscriptions `+where, arg))
	if pg.IsNotFoundError(err) {
		return Subscription{}, fmt.Errorf("%w: %v", ErrSubscriptionNotFound, arg)
	}
	if err != nil {
		return Subscription{}, fmt.Errorf("get subscription: %w", err)
	}
	return sub, nil
}

func (r pgQueries) PaymentExists(ctx context.Context, ref string) (bool, error) {
	var exists bool
	err := r.q.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM payment_transactions WHERE external_payment_ref = $1)`, ref,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check payment: %w", err)
	}
	return exists, nil
}

type pgTx struct {
	pgQueries
}

func (t *pgTx) ClaimTrial(ctx context.Context, userID string) error {
	tag, err := t.q.Exec(ctx,
		`UPDATE accounts SET trial_used = true, updated_at = now() WHERE user_id = $1 AND trial_used = false`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("claim trial: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTrialAlreadyUsed
	}
	return nil
}

func (t *pgTx) ReleaseTrial(ctx context.Context, userID string) error {
	if _, err := t.q.Exec(ctx,
		`UPDATE accounts SET trial_used = false, updated_at = now() WHERE user_id = $1`, userID,
	); err != nil {
		return fmt.Errorf("release trial: %w", err)
	}
	return nil
}

func (t *pgTx) InsertSubscription(ctx context.Context, sub Subscription) error {
	_, err := t.q.Exec(ctx, `
		INSERT INTO subscriptions (id, user_id, plan_id, external_ref, status, is_trial,
			trial_amount, trial_currency, start_date, end_date, grace_period_end, cancelled_at, payment_ref)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		sub.ID, sub.UserID, sub.PlanID, sub.ExternalRef, sub.Status, sub.IsTrial,
		sub.TrialAmount.Amount, sub.TrialAmount.Currency, sub.StartDate, sub.EndDate,
		sub.GracePeriodEnd, sub.CancelledAt, sub.PaymentRef,
	)
	if pg.IsDuplicateKeyError(err) {
		return ErrSubscriptionAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("insert subscription: %w", err)
	}
	return nil
}

func (t *pgTx) UpdateSubscription(ctx context.Context, sub Subscription, expected Status) (Subscription, error) {
	row := t.q.QueryRow(ctx, `
		UPDATE subscriptions SET
			external_ref = NULLIF($4, ''), status = $5, start_date = $6, end_date = $7,
			grace_period_end = $8, cancelled_at = $9, payment_ref = $10, is_trial = $11,
			version = version + 1, updated_at = now()
		WHERE id = $1 AND status = $2 AND version = $3
		RETURNING `+subscriptionColumns,
		sub.ID, expected, sub.Version, sub.ExternalRef, sub.Status, sub.StartDate, sub.EndDate,
		sub.GracePeriodEnd, sub.CancelledAt, sub.PaymentRef, sub.IsTrial,
	)
	updated, err := scanSubscription(row)
	switch {
	case pg.IsNotFoundError(err):
		return Subscription{}, ErrStaleState
	case pg.IsDuplicateKeyError(err):
		return Subscription{}, ErrSubscriptionAlreadyExists
	case err != nil:
		return Subscription{}, fmt.Errorf("update subscription: %w", err)
	}
	return updated, nil
}

func (t *pgTx) InsertPayment(ctx context.Context, p PaymentTransaction) (bool, error) {
	tag, err := t.q.Exec(ctx, `
		INSERT INTO payment_transactions (id, user_id, subscription_id, amount, currency,
			external_payment_ref, external_order_ref, status, purpose)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (external_payment_ref) DO NOTHING`,
		p.ID, p.UserID, p.SubscriptionID, p.Amount, p.Currency,
		p.ExternalPaymentRef, p.ExternalOrderRef, p.Status, p.Purpose,
	)
	if err != nil {
		return false, fmt.Errorf("insert payment: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (t *pgTx) SaveEntitlement(ctx context.Context, userID string, e Entitlement) error {
	subID := uuid.NullUUID{UUID: e.SubscriptionID, Valid: e.SubscriptionID != uuid.Nil}
	tag, err := t.q.Exec(ctx, `
		UPDATE accounts SET
			subscription_active = $2, tier = $3, plan_ref = $4,
			entitlement_end_date = $5, entitlement_subscription_id = $6, updated_at = now()
		WHERE user_id = $1`,
		userID, e.SubscriptionActive, e.Tier, e.PlanRef, e.EndDate, subID,
	)
	if err != nil {
		return fmt.Errorf("save entitlement: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrAccountNotFound, userID)
	}
	return nil
}

func scanSubscription(row pgx.Row) (Subscription, error) {
	var s Subscription
	err := row.Scan(
		&s.ID, &s.UserID, &s.PlanID, &s.ExternalRef, &s.Status, &s.IsTrial,
		&s.TrialAmount.Amount, &s.TrialAmount.Currency, &s.StartDate, &s.EndDate,
		&s.GracePeriodEnd, &s.CancelledAt, &s.PaymentRef, &s.Version, &s.CreatedAt, &s.UpdatedAt,
	)
	return s, err
}

func scanAccount(row pgx.Row) (Account, error) {
	var (
		a     Account
		subID uuid.NullUUID
	)
	err := row.Scan(
		&a.UserID, &a.Email, &a.Name, &a.TrialUsed, &a.CustomerRef,
		&a.Entitlement.SubscriptionActive, &a.Entitlement.Tier, &a.Entitlement.PlanRef,
		&a.Entitlement.EndDate, &subID, &a.CreatedAt, &a.UpdatedAt,
	)
	if subID.Valid {
		a.Entitlement.SubscriptionID = subID.UUID
	}
	return a, err
}
