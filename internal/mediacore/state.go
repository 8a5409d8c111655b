package mediacore

import "sync/atomic"

// SourceState is the life-cycle state of a capture source
type SourceState int32

const (
	StateStopped SourceState = iota
	StateStarting
	StateRunning
	StateStopping
)

// String returns the string representation of the state
func (s SourceState) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// StateMachine enforces Stopped -> Starting -> Running -> Stopping -> Stopped.
// Starting may also fall back to Stopped when the device fails to open.
type StateMachine struct {
	state atomic.Int32
}

// Load returns the current state.
func (m *StateMachine) Load() SourceState {
	return SourceState(m.state.Load())
}

// Transition moves from -> to if the machine is in from and the edge is legal.
func (m *StateMachine) Transition(from, to SourceState) bool {
	if !legalTransition(from, to) {
		return false
	}
	return m.state.CompareAndSwap(int32(from), int32(to))
}

func legalTransition(from, to SourceState) bool {
	switch from {
	case StateStopped:
		return to == StateStarting
	case StateStarting:
		return to == StateRunning || to == StateStopped
	case StateRunning:
		return to == StateStopping
	case StateStopping:
		return to == StateStopped
	default:
		return false
	}
}
