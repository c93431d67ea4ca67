// Package lifecycle tracks the Created → Active → Destroyed state of
// simulated sensors and ECUs.
//
// Subscription edges are orthogonal to this state: a destroyed instance may
// still be referenced from the other side of a relation, and every
// transition into Destroyed happens exactly once.
package lifecycle

import (
	"errors"
	"sync/atomic"
)

// State is the lifecycle state of a sensor or ECU instance.
type State uint32

const (
	// StateCreated indicates the instance exists but is not yet registered.
	StateCreated State = iota

	// StateActive indicates the instance is registered and usable.
	StateActive

	// StateDestroyed indicates the last owner released the instance.
	StateDestroyed
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateCreated:
		return "CREATED"
	case StateActive:
		return "ACTIVE"
	case StateDestroyed:
		return "DESTROYED"
	default:
		return "UNKNOWN"
	}
}

// Transition errors.
var (
	ErrNotCreated = errors.New("instance is not in created state")
	ErrNotActive  = errors.New("instance is not active")
)

// Tracker holds a lifecycle state. The zero value is in StateCreated and is
// safe for concurrent use.
type Tracker struct {
	state atomic.Uint32
}

// State returns the current state.
func (t *Tracker) State() State {
	return State(t.state.Load())
}

// Alive returns true unless the instance has been destroyed.
func (t *Tracker) Alive() bool {
	return t.State() != StateDestroyed
}

// Activate moves Created → Active.
func (t *Tracker) Activate() error {
	if !t.state.CompareAndSwap(uint32(StateCreated), uint32(StateActive)) {
		return ErrNotCreated
	}
	return nil
}

// Destroy moves the instance to Destroyed. It returns true only for the call
// that performed the transition, so callers can decrement counters once.
func (t *Tracker) Destroy() bool {
	for {
		cur := t.state.Load()
		if State(cur) == StateDestroyed {
			return false
		}
		if t.state.CompareAndSwap(cur, uint32(StateDestroyed)) {
			return true
		}
	}
}
