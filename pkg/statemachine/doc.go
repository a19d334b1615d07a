// Package statemachine provides a table-driven finite-state machine for
// entities whose current state lives outside the process, typically in a
// database row.
//
// A Machine holds an immutable transition table keyed by source state and
// event. It never stores a "current" state: callers read the persisted state,
// ask the machine for the next state with Next, and write the result back
// with an optimistic check of the state they read. This keeps the machine
// safe to share between goroutines and between independent triggers
// (request handlers, schedulers, webhooks) without any locking.
//
// # Usage
//
//	type status string
//	type event string
//
//	m := statemachine.New(
//		statemachine.Define[status, event, time.Time]("created", "active", "activate"),
//		statemachine.Define[status, event, time.Time]("created", "expired", "expire",
//			func(ctx context.Context, from status, now time.Time) bool { return now.After(deadline) },
//		),
//	)
//
//	next, err := m.Next(ctx, "created", "activate", time.Now())
//	if statemachine.IsNoTransitionAvailableError(err) {
//		// the event does not apply to the current state
//	}
//
// Multiple transitions may share a source state and event; the first one
// whose guards all pass wins, which lets guards branch an event into
// different target states.
package statemachine
