package gateway

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

type options struct {
	logger     *slog.Logger
	breaker    *Breaker
	httpClient *http.Client
	backoff    Backoff
	now        func() time.Time
}

// Option configures an adapter.
type Option func(*options)

// WithLogger sets the logger used for request retries and failures.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithBreaker puts the adapter behind b. Adapters share nothing by default.
func WithBreaker(b *Breaker) Option {
	return func(o *options) { o.breaker = b }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		if c != nil {
			o.httpClient = c
		}
	}
}

// WithBackoff overrides the delay between retries.
func WithBackoff(b Backoff) Option {
	return func(o *options) { o.backoff = b }
}

// WithClock overrides the time source used to compute trial start dates.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{
		logger:  slog.Default(),
		backoff: DefaultBackoff(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// guard runs fn behind the circuit breaker.
func (o options) guard(op string, fn func() error) error {
	if !o.breaker.Allow() {
		return classify(0, fmt.Errorf("%s: %w", op, ErrCircuitOpen))
	}
	err := fn()
	o.breaker.Record(err)
	return err
}
