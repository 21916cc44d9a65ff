package realtime

import "fmt"

// State is the connection lifecycle state.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "invalid"
	}
}

// validateTransitionTo rejects moves the lifecycle does not allow. Any
// state may return to disconnected.
func (s State) validateTransitionTo(next State) error {
	if next == StateDisconnected {
		return nil
	}
	switch s {
	case StateDisconnected:
		if next == StateConnecting {
			return nil
		}
	case StateConnecting:
		if next == StateConnected || next == StateReconnecting {
			return nil
		}
	case StateConnected:
		if next == StateReconnecting {
			return nil
		}
	case StateReconnecting:
		if next == StateConnecting {
			return nil
		}
	}
	return fmt.Errorf("realtime: invalid state transition from %v to %v", s, next)
}

// Status is a snapshot of the connection state.
type Status struct {
	State    State
	Attempts int
	LastErr  error
}
