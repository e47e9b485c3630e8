package activation

import (
	"errors"
	"sync"
)

// Machine errors.
var (
	ErrNotIdle   = errors.New("activation: feature not idle")
	ErrNotActive = errors.New("activation: feature not active")
	ErrNotIssued = errors.New("activation: request not issued")
)

// State is the activation state of a feature.
type State uint8

const (
	// StateUnavailable means the feature cannot be activated.
	StateUnavailable State = iota

	// StateIdle means the feature can be activated.
	StateIdle

	// StateActive means the device runs the feature.
	StateActive
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateUnavailable:
		return "UNAVAILABLE"
	case StateIdle:
		return "IDLE"
	case StateActive:
		return "ACTIVE"
	default:
		return "UNKNOWN"
	}
}

// Inputs are the availability signals the state derives from.
type Inputs struct {
	// Supported is true when the device supports at least one mode.
	Supported bool

	// Blocked is true when the selected mode has a blocking availability
	// issue, or no issue entry at all.
	Blocked bool

	// Running is the device echo of the feature state.
	Running bool
}

// Machine tracks the activation state of one feature.
type Machine struct {
	mu     sync.Mutex
	state  State
	inputs Inputs

	onStateChange func(oldState, newState State)
}

// NewMachine creates a machine in the unavailable state.
func NewMachine() *Machine {
	return &Machine{state: StateUnavailable}
}

// OnStateChange sets the callback for state changes. It runs outside the
// machine lock.
func (m *Machine) OnStateChange(fn func(oldState, newState State)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onStateChange = fn
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Inputs returns the last inputs.
func (m *Machine) Inputs() Inputs {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inputs
}

// Update replaces the inputs and returns the resulting state.
func (m *Machine) Update(in Inputs) State {
	m.mu.Lock()
	m.inputs = in
	old, cb := m.transitionLocked()
	state := m.state
	m.mu.Unlock()

	notify(cb, old, state)
	return state
}

// Reset returns to the unavailable state with cleared inputs.
func (m *Machine) Reset() {
	m.Update(Inputs{})
}

// RequestActivation calls issue when idle. The state is unchanged until the
// device reports the feature running. issue returns false if the request
// could not be sent.
func (m *Machine) RequestActivation(issue func() bool) error {
	m.mu.Lock()
	state := m.state
	m.mu.Unlock()

	if state != StateIdle {
		return ErrNotIdle
	}
	if !issue() {
		return ErrNotIssued
	}
	return nil
}

// RequestDeactivation calls issue when active and leaves the active state
// once the request is issued.
func (m *Machine) RequestDeactivation(issue func() bool) error {
	m.mu.Lock()
	state := m.state
	m.mu.Unlock()

	if state != StateActive {
		return ErrNotActive
	}
	if !issue() {
		return ErrNotIssued
	}

	m.mu.Lock()
	m.inputs.Running = false
	old, cb := m.transitionLocked()
	newState := m.state
	m.mu.Unlock()

	notify(cb, old, newState)
	return nil
}

// transitionLocked recomputes the state. It returns the previous state and
// the callback to run if the state changed. Caller holds mu.
func (m *Machine) transitionLocked() (State, func(oldState, newState State)) {
	old := m.state
	switch {
	case !m.inputs.Supported:
		m.state = StateUnavailable
	case m.inputs.Running:
		m.state = StateActive
	case m.inputs.Blocked:
		m.state = StateUnavailable
	default:
		m.state = StateIdle
	}
	if m.state == old {
		return old, nil
	}
	return old, m.onStateChange
}

func notify(cb func(oldState, newState State), oldState, newState State) {
	if cb != nil && oldState != newState {
		cb(oldState, newState)
	}
}
