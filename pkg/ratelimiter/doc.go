// Package ratelimiter implements a token bucket limiter and an HTTP middleware
// that applies it per caller key.
//
// A Bucket holds Capacity tokens and regains RefillRate tokens every
// RefillInterval. Each request spends one token; a request that drives the
// count below zero is denied until the next refill.
//
//	bucket, err := ratelimiter.NewBucket(ratelimiter.NewMemoryStore(), ratelimiter.Config{
//		Capacity:       5,
//		RefillRate:     1,
//		RefillInterval: time.Minute,
//	})
//	r.With(ratelimiter.Middleware(ratelimiter.MiddlewareConfig{
//		Bucket: bucket,
//		Key:    func(r *http.Request) string { return jwt.UserID(r.Context()) },
//	})).Post("/subscriptions/verify-payment", h)
//
// MemoryStore keeps buckets in process, so each replica limits on its own.
package ratelimiter
