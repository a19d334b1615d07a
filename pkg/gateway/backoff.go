package gateway

import (
	"math"
	"math/rand/v2"
	"net/http"
	"strconv"
	"time"
)

// Backoff is an exponential retry delay with jitter. Its Delay method has the
// shape of retryablehttp.Backoff.
type Backoff struct {
	Initial      time.Duration
	Max          time.Duration
	Multiplier   float64
	JitterFactor float64
}

// DefaultBackoff waits roughly half a second before the single retry a gateway
// call gets, never more than five.
func DefaultBackoff() Backoff {
	return Backoff{
		Initial:      500 * time.Millisecond,
		Max:          5 * time.Second,
		Multiplier:   2,
		JitterFactor: 0.1,
	}
}

// Delay returns the wait before retry attemptNum (zero based). A Retry-After
// header on a 429 or 503 wins when it is shorter than Max.
func (b Backoff) Delay(_, _ time.Duration, attemptNum int, resp *http.Response) time.Duration {
	if d, ok := retryAfter(resp); ok && d <= b.max() {
		return d
	}

	initial := b.Initial
	if initial == 0 {
		initial = 500 * time.Millisecond
	}
	multiplier := b.Multiplier
	if multiplier == 0 {
		multiplier = 2
	}

	interval := float64(initial) * math.Pow(multiplier, float64(attemptNum))
	if b.JitterFactor > 0 {
		interval *= 1 + (rand.Float64()*2-1)*b.JitterFactor
	}
	if interval > float64(b.max()) {
		interval = float64(b.max())
	}
	return time.Duration(interval)
}

func (b Backoff) max() time.Duration {
	if b.Max == 0 {
		return 5 * time.Second
	}
	return b.Max
}

func retryAfter(resp *http.Response) (time.Duration, bool) {
	if resp == nil {
		return 0, false
	}
	if resp.StatusCode != http.StatusTooManyRequests && resp.StatusCode != http.StatusServiceUnavailable {
		return 0, false
	}
	secs, err := strconv.Atoi(resp.Header.Get("Retry-After"))
	if err != nil || secs < 0 {
		return 0, false
	}
	return time.Duration(secs) * time.Second, true
}
