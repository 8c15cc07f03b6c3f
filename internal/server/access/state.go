// Package access implements the vault access flow: locating a vault from
// partial credentials and checking the submitted passkey.
package access

import "fmt"

// State is a step of the client's access flow.
type State string

const (
	StateIdle            State = "idle"
	StateSearching       State = "searching"
	StateFound           State = "found"
	StateNotFound        State = "not_found"
	StateAwaitingPasskey State = "awaiting_passkey"
	StateVerified        State = "verified"
	StateRejected        State = "rejected"
)

var transitions = map[State][]State{
	StateIdle:            {StateSearching},
	StateSearching:       {StateFound, StateNotFound},
	StateFound:           {StateAwaitingPasskey},
	StateNotFound:        {StateSearching},
	StateAwaitingPasskey: {StateVerified, StateRejected},
	StateRejected:        {StateAwaitingPasskey},
	StateVerified:        {},
}

// CanTransitionTo reports whether from → to is a legal step. Any state may
// return to idle (reset, session end).
func CanTransitionTo(from, to State) bool {
	if to == StateIdle {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// walk follows path and returns the state it ends on. An illegal step is a
// programming error.
func walk(path ...State) State {
	for i := 1; i < len(path); i++ {
		if !CanTransitionTo(path[i-1], path[i]) {
			panic(fmt.Sprintf("access: illegal transition %s -> %s", path[i-1], path[i]))
		}
	}
	return path[len(path)-1]
}

func (s State) String() string {
	return string(s)
}
