package statemachine_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kiranbanna12/setup-first-sub002/pkg/statemachine"
)

type door string
type action string

const (
	closed door = "closed"
	open   door = "open"
	locked door = "locked"
)

func newDoor() *statemachine.Machine[door, action, bool] {
	hasKey := func(_ context.Context, _ door, key bool) bool { return key }
	return statemachine.New(
		statemachine.Define[door, action, bool](closed, open, "open"),
		statemachine.Define[door, action, bool](open, closed, "close"),
		statemachine.Define[door, action, bool](closed, locked, "lock", hasKey),
		statemachine.Define[door, action, bool](locked, closed, "unlock", hasKey),
	)
}

func TestMachine_Next(t *testing.T) {
	t.Parallel()

	m := newDoor()
	ctx := context.Background()

	tests := []struct {
		name     string
		from     door
		event    action
		key      bool
		want     door
		noTrans  bool
		rejected bool
	}{
		{name: "open closed door", from: closed, event: "open", want: open},
		{name: "close open door", from: open, event: "close", want: closed},
		{name: "lock with key", from: closed, event: "lock", key: true, want: locked},
		{name: "lock without key", from: closed, event: "lock", rejected: true},
		{name: "open locked door", from: locked, event: "open", noTrans: true},
		{name: "unknown event", from: open, event: "paint", noTrans: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := m.Next(ctx, tt.from, tt.event, tt.key)
			switch {
			case tt.noTrans:
				require.Error(t, err)
				assert.True(t, statemachine.IsNoTransitionAvailableError(err))
				assert.Equal(t, tt.from, got)
			case tt.rejected:
				require.Error(t, err)
				assert.True(t, statemachine.IsTransitionRejectedError(err))
				assert.Equal(t, tt.from, got)
			default:
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestMachine_GuardBranching(t *testing.T) {
	t.Parallel()

	type mode bool
	m := statemachine.New(
		statemachine.Define[string, string, mode]("active", "cancelling", "cancel",
			func(_ context.Context, _ string, later mode) bool { return bool(later) }),
		statemachine.Define[string, string, mode]("active", "cancelled", "cancel"),
	)

	got, err := m.Next(context.Background(), "active", "cancel", mode(true))
	require.NoError(t, err)
	assert.Equal(t, "cancelling", got)

	got, err = m.Next(context.Background(), "active", "cancel", mode(false))
	require.NoError(t, err)
	assert.Equal(t, "cancelled", got)
}

func TestMachine_TargetsAndTerminal(t *testing.T) {
	t.Parallel()

	m := newDoor()
	assert.ElementsMatch(t, []door{open, locked}, m.Targets(closed))
	assert.False(t, m.IsTerminal(closed))
	assert.True(t, m.IsTerminal("broken"))
	assert.True(t, m.Can(context.Background(), closed, "open", false))
	assert.False(t, m.Can(context.Background(), locked, "open", true))
}

func TestErrorMessages(t *testing.T) {
	t.Parallel()

	err := statemachine.NewErrNoTransitionAvailable(closed, action("fly"))
	assert.Equal(t, "no transition available from state 'closed' for event 'fly'", err.Error())

	rej := statemachine.NewErrTransitionRejected(closed, action("lock"))
	assert.Equal(t, "transition from state 'closed' for event 'lock' was rejected by guards", rej.Error())
}
