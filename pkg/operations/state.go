package operations

import "fmt"

// State is the lifecycle state of a single operation invocation.
type State string

const (
	StateCreated   State = "created"
	StateDescribed State = "described"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// IsTerminal returns true for completed and failed.
func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StateFailed
}

// next lists the states reachable from each state.
var next = map[State][]State{
	StateCreated:   {StateDescribed},
	StateDescribed: {StateRunning},
	StateRunning:   {StateCompleted, StateFailed},
}

// CanTransition reports whether moving from s to to is allowed.
func (s State) CanTransition(to State) bool {
	for _, candidate := range next[s] {
		if candidate == to {
			return true
		}
	}
	return false
}

// lifecycle tracks one invocation through its states.
type lifecycle struct {
	state State
}

func (l *lifecycle) advance(to State) error {
	if !l.state.CanTransition(to) {
		return newProtocolError(fmt.Sprintf("invalid operation transition %s -> %s", l.state, to), nil)
	}
	l.state = to
	return nil
}
