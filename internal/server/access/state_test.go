package access

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransitionTo(t *testing.T) {
	tests := []struct {
		from, to State
		want     bool
	}{
		{StateIdle, StateSearching, true},
		{StateSearching, StateFound, true},
		{StateSearching, StateNotFound, true},
		{StateFound, StateAwaitingPasskey, true},
		{StateAwaitingPasskey, StateVerified, true},
		{StateAwaitingPasskey, StateRejected, true},
		{StateRejected, StateAwaitingPasskey, true},
		{StateNotFound, StateSearching, true},
		{StateVerified, StateIdle, true},
		{StateRejected, StateIdle, true},

		{StateIdle, StateVerified, false},
		{StateSearching, StateAwaitingPasskey, false},
		{StateNotFound, StateAwaitingPasskey, false},
		{StateRejected, StateVerified, false},
		{StateVerified, StateRejected, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CanTransitionTo(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestWalk(t *testing.T) {
	assert.Equal(t, StateAwaitingPasskey, walk(StateIdle, StateSearching, StateFound, StateAwaitingPasskey))
	assert.Equal(t, StateRejected, walk(StateAwaitingPasskey, StateRejected))
	assert.PanicsWithValue(t, "access: illegal transition idle -> verified", func() {
		walk(StateIdle, StateVerified)
	})
}
