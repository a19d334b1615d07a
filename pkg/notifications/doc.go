// Package notifications stores user-facing notices and delivers them.
//
// A Manager writes every notice to Storage before handing it to a Deliverer,
// so the stored history is the source of truth for "was this user already
// told". The billing service relies on that through SentSince to send at most
// one trial-ending warning per window across replicas.
//
//	manager := notifications.NewManager(
//		notifications.NewPostgresStorage(pool),
//		notifications.NewEmailDeliverer(sender, directory, "Acme", "https://app.example.com"),
//	)
//	err := manager.Emit(ctx, userID, "subscription.activate", "Subscription activated", msg, "/settings/billing")
//
// MemoryStorage backs tests and single-process development setups.
package notifications
