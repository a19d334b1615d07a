package ratelimiter

import (
	"math"
	"net/http"
	"strconv"
	"time"
)

// KeyFunc names the bucket a request spends from. An empty key skips the
// limiter.
type KeyFunc func(r *http.Request) string

// MiddlewareConfig configures Middleware.
type MiddlewareConfig struct {
	Bucket *Bucket
	Key    KeyFunc
	// Prefix namespaces keys so several routes can share one store.
	Prefix string
	// OnLimit renders the refusal. Defaults to a plain 429.
	OnLimit func(w http.ResponseWriter, r *http.Request, res Result)
	// OnError handles store failures. Defaults to letting the request through.
	OnError func(w http.ResponseWriter, r *http.Request, next http.Handler, err error)
	Now     func() time.Time
}

// Middleware spends one token per request and sets the X-RateLimit headers.
func Middleware(cfg MiddlewareConfig) func(http.Handler) http.Handler {
	if cfg.Bucket == nil || cfg.Key == nil {
		panic("ratelimiter: middleware needs a bucket and a key func")
	}
	if cfg.OnLimit == nil {
		cfg.OnLimit = func(w http.ResponseWriter, _ *http.Request, _ Result) {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
		}
	}
	if cfg.OnError == nil {
		cfg.OnError = func(w http.ResponseWriter, r *http.Request, next http.Handler, _ error) {
			next.ServeHTTP(w, r)
		}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := cfg.Key(r)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			res, err := cfg.Bucket.Allow(r.Context(), cfg.Prefix+key)
			if err != nil {
				cfg.OnError(w, r, next, err)
				return
			}

			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(max(res.Remaining, 0)))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))

			if !res.Allowed() {
				secs := int(math.Ceil(res.RetryAfter(cfg.Now()).Seconds()))
				h.Set("Retry-After", strconv.Itoa(max(secs, 1)))
				cfg.OnLimit(w, r, res)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
