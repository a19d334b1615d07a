// Package redis connects to Redis and provides the sweep lease the billing
// reconciler uses to keep replicas from sweeping at the same time.
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	lease := redis.NewLease(client, cfg.LeasePrefix, logger)
//	release, ok, err := lease.TryAcquire(ctx, "sweep", time.Minute)
//	if err != nil || !ok {
//		return err
//	}
//	defer release()
//
// A lease is a SET NX with an expiry holding a random token. Release runs a
// compare-and-delete script, so a stale holder never frees a lease that has
// since passed to another replica.
//
// Healthcheck returns a probe function for readiness endpoints.
package redis
