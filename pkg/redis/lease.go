package redis

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only while it still holds our token, so a
// holder whose lease already expired cannot free someone else's.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Lease hands out expiring cluster-wide locks backed by SET NX PX.
type Lease struct {
	client redis.UniversalClient
	prefix string
	logger *slog.Logger
}

// NewLease creates a Lease. Keys are stored under prefix.
func NewLease(client redis.UniversalClient, prefix string, logger *slog.Logger) *Lease {
	if logger == nil {
		logger = slog.Default()
	}
	return &Lease{client: client, prefix: prefix, logger: logger}
}

// TryAcquire takes the lease on key for ttl without blocking. When acquired is
// false another holder has it. The lease lapses on its own after ttl; release
// frees it early and is safe to call more than once.
func (l *Lease) TryAcquire(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	if ttl <= 0 {
		return nil, false, errors.New("redis lease: ttl must be positive")
	}

	name := l.prefix + key
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, name, token, ttl).Result()
	if err != nil {
		return nil, false, errors.Join(ErrLeaseBackend, err)
	}
	if !ok {
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
		if err := releaseScript.Run(ctx, l.client, []string{name}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
			l.logger.WarnContext(ctx, "failed to release redis lease",
				slog.String("key", name),
				slog.Any("error", err),
			)
		}
	}
	return release, true, nil
}
