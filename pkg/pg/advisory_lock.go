package pg

import (
	"context"
	"errors"
	"hash/fnv"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
)

// TxBeginner is satisfied by *pgxpool.Pool.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// AdvisoryLock hands out cluster-wide locks with pg_try_advisory_xact_lock.
// The lock lives in an open transaction, so it is dropped with the
// connection if the holder dies.
type AdvisoryLock struct {
	db     TxBeginner
	logger *slog.Logger
}

// NewAdvisoryLock creates an AdvisoryLock on db.
func NewAdvisoryLock(db TxBeginner, logger *slog.Logger) *AdvisoryLock {
	if logger == nil {
		logger = slog.Default()
	}
	return &AdvisoryLock{db: db, logger: logger}
}

// LockID maps a lock name onto the bigint key space of advisory locks.
func LockID(key string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(key))
	return int64(h.Sum64())
}

// TryAcquire takes the lock on key without blocking. The ttl is ignored: the
// lock is held until release is called or the session ends.
func (l *AdvisoryLock) TryAcquire(ctx context.Context, key string, _ time.Duration) (func(), bool, error) {
	tx, err := l.db.Begin(ctx)
	if err != nil {
		return nil, false, errors.Join(ErrAdvisoryLock, err)
	}

	var ok bool
	if err := tx.QueryRow(ctx, "SELECT pg_try_advisory_xact_lock($1)", LockID(key)).Scan(&ok); err != nil {
		_ = tx.Rollback(context.WithoutCancel(ctx))
		return nil, false, errors.Join(ErrAdvisoryLock, err)
	}
	if !ok {
		_ = tx.Rollback(context.WithoutCancel(ctx))
		return nil, false, nil
	}

	released := false
	release := func() {
		if released {
			return
		}
		released = true

		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			l.logger.WarnContext(ctx, "failed to release advisory lock",
				slog.String("key", key),
				slog.Any("error", err),
			)
		}
	}
	return release, true, nil
}
