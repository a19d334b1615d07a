// Package subscription reconciles a user's entitlement with the state held by
// an external payment gateway.
//
// Three unsynchronized triggers move a subscription: client calls that report
// a payment, manual cancel and resume actions, and a periodic reconciliation
// sweep. Gateway webhooks are a fourth, optional source. Every trigger funnels
// into the same guarded transition, so duplicates and races resolve to a
// single outcome.
//
// # Architecture
//
//   - Catalog: immutable plan definitions loaded from YAML and validated once.
//   - Gateway: the remote contract (customers, subscriptions, cancellation).
//     Implementations live in pkg/gateway.
//   - Service: the lifecycle. Checkout, payment verification, cancellation,
//     resumption, expiry and webhook convergence.
//   - Sweeper: the timer-driven reconciliation pass.
//   - Store: persistence. PostgresStore for production, MemoryStore for tests.
//   - Project: the pure entitlement projection written with every transition.
//
// # Lifecycle
//
//	created    -> active | cancelled | expired
//	active     -> cancelling | cancelled | expired   (and active on renewal)
//	cancelling -> active | cancelled | expired
//
// cancelled and expired are terminal. A created row that is never paid expires
// after the grace period. Trials are claimed atomically on the account row
// before the gateway is contacted, so a second trial is rejected without any
// remote call.
//
// # Consistency
//
// Each transition reads the row, checks the event against the lifecycle table
// and writes back with a status and version precondition. The payment ledger
// insert, the row update and the entitlement projection share one transaction.
// The external payment ref is unique in the ledger, which makes every payment
// confirmation idempotent. Notices are dispatched after commit on a detached
// context; a failed delivery never undoes a transition.
//
// # Usage
//
//	catalog, err := subscription.LoadCatalogFile("plans.yaml")
//	if err != nil {
//		return err
//	}
//	svc := subscription.NewService(
//		subscription.NewPostgresStore(pool),
//		catalog,
//		gateway.NewRazorpay(razorpayCfg),
//		signature.MustNewVerifier(secret),
//		subscription.WithLogger(log),
//		subscription.WithEmitter(notificationManager),
//	)
//
//	res, err := svc.CreateSubscription(ctx, subscription.CreateRequest{
//		Profile: subscription.Profile{UserID: uid, Email: email},
//		PlanID:  "pro_monthly",
//		IsTrial: true,
//	})
//
//	go subscription.NewSweeper(svc, subscription.WithLocker(lease, time.Minute)).Start(ctx)
//
// # Errors
//
// Errors are sentinels matched with errors.Is. Gateway adapters wrap every
// failure in ErrGatewayUnavailable, ErrGatewayRejected or
// ErrRemoteSubscriptionGone; the cancel flow branches on that classification.
package subscription
