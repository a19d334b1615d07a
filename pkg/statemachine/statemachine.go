package statemachine

import (
	"context"
)

// Guard evaluates whether a transition should be allowed based on runtime conditions.
type Guard[S comparable, D any] func(ctx context.Context, from S, data D) bool

// Transition defines a state change triggered by an event, with optional guards.
type Transition[S, E comparable, D any] struct {
	From   S
	To     S
	Event  E
	Guards []Guard[S, D] // All must pass for transition to proceed
}

// Define is a shorthand for building a Transition literal.
func Define[S, E comparable, D any](from, to S, event E, guards ...Guard[S, D]) Transition[S, E, D] {
	return Transition[S, E, D]{From: from, To: to, Event: event, Guards: guards}
}

// Machine is an immutable transition table.
// Lookups are [from][event][]Transition; the zero value has no transitions.
type Machine[S, E comparable, D any] struct {
	transitions map[S]map[E][]Transition[S, E, D]
}

// New builds a Machine from the given transitions. Declaration order is kept
// per (from, event) pair so earlier transitions take priority.
func New[S, E comparable, D any](transitions ...Transition[S, E, D]) *Machine[S, E, D] {
	m := &Machine[S, E, D]{
		transitions: make(map[S]map[E][]Transition[S, E, D]),
	}
	for _, t := range transitions {
		if _, ok := m.transitions[t.From]; !ok {
			m.transitions[t.From] = make(map[E][]Transition[S, E, D])
		}
		m.transitions[t.From][t.Event] = append(m.transitions[t.From][t.Event], t)
	}
	return m
}

// Next resolves the target state for event fired from state from.
// Returns *ErrNoTransitionAvailable when the table has no entry and
// *ErrTransitionRejected when every candidate was blocked by a guard.
func (m *Machine[S, E, D]) Next(ctx context.Context, from S, event E, data D) (S, error) {
	candidates := m.transitions[from][event]
	if len(candidates) == 0 {
		return from, NewErrNoTransitionAvailable(from, event)
	}

	for _, t := range candidates {
		if guardsPass(ctx, t.Guards, from, data) {
			return t.To, nil
		}
	}

	return from, NewErrTransitionRejected(from, event)
}

// Can reports whether Next would succeed.
func (m *Machine[S, E, D]) Can(ctx context.Context, from S, event E, data D) bool {
	_, err := m.Next(ctx, from, event, data)
	return err == nil
}

// Targets lists every state reachable from from, ignoring guards.
func (m *Machine[S, E, D]) Targets(from S) []S {
	seen := make(map[S]struct{})
	var out []S
	for _, ts := range m.transitions[from] {
		for _, t := range ts {
			if _, ok := seen[t.To]; ok {
				continue
			}
			seen[t.To] = struct{}{}
			out = append(out, t.To)
		}
	}
	return out
}

// IsTerminal reports whether no transition leaves from.
func (m *Machine[S, E, D]) IsTerminal(from S) bool {
	return len(m.transitions[from]) == 0
}

func guardsPass[S comparable, D any](ctx context.Context, guards []Guard[S, D], from S, data D) bool {
	for _, guard := range guards {
		if guard != nil && !guard(ctx, from, data) {
			return false
		}
	}
	return true
}
