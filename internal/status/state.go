package status

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"chatlink/internal/bus"
)

// State represents a connection lifecycle state.
type State string

const (
	Idle         State = "IDLE"
	Connecting   State = "CONNECTING"
	AwaitingAuth State = "AWAITING_AUTH"
	Ready        State = "READY"
	Reconnecting State = "RECONNECTING"
)

// validTransitions defines allowed state transitions. Every state can fall
// back to Idle (explicit disconnect, logout, credential change).
var validTransitions = map[State][]State{
	Idle:         {Connecting},
	Connecting:   {AwaitingAuth, Reconnecting, Idle},
	AwaitingAuth: {Ready, Reconnecting, Idle},
	Ready:        {Reconnecting, Idle},
	Reconnecting: {Connecting, Idle},
}

// Machine tracks and enforces connection state transitions.
type Machine struct {
	mu      sync.RWMutex
	current State
	bus     *bus.Bus
}

// NewMachine creates a new state machine starting in Idle.
func NewMachine(b *bus.Bus) *Machine {
	return &Machine{
		current: Idle,
		bus:     b,
	}
}

// Current returns the current state.
func (m *Machine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Transition attempts to move to a new state. Returns an error if the
// transition is invalid; the current state is unchanged in that case.
func (m *Machine) Transition(to State) error {
	m.mu.Lock()
	allowed := validTransitions[m.current]
	if !slices.Contains(allowed, to) {
		defer m.mu.Unlock()
		return fmt.Errorf("invalid transition from %s to %s", m.current, to)
	}
	from := m.current
	m.current = to
	m.mu.Unlock()

	if m.bus != nil {
		m.bus.Publish(bus.Event{
			Kind:      bus.KindStatusChanged,
			Timestamp: time.Now(),
			Payload: StatusChange{
				From: from,
				To:   to,
			},
		})
	}
	return nil
}

// StatusChange is the payload for status change events.
type StatusChange struct {
	From State
	To   State
}
