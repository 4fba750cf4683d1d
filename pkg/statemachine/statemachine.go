// Package statemachine is a small generic wrapper around Rob Pike's
// state-function pattern: states are functions over the owning entity, and
// each returns the next state function (nil meaning terminal). Both the
// per-player lifecycle and the table's deal stages are built on it.
package statemachine

import "sync"

// StateEvent identifies why a state callback is being invoked.
type StateEvent int

const (
	StateEntered StateEvent = iota
	StateExited
	TransitionRequested
)

// StateFn is one state of an entity of type T. The callback is optional and
// may be nil; when present it is notified of state events for observers
// (logging, UI) without coupling the state logic to them.
type StateFn[T any] func(*T, func(stateName string, event StateEvent)) StateFn[T]

// StateMachine drives an entity through its StateFn chain.
type StateMachine[T any] struct {
	entity  *T
	stateFn StateFn[T]
	mu      sync.RWMutex
}

// NewStateMachine creates a state machine for entity starting at
// initialStateFn.
func NewStateMachine[T any](entity *T, initialStateFn StateFn[T]) *StateMachine[T] {
	return &StateMachine[T]{
		entity:  entity,
		stateFn: initialStateFn,
	}
}

// Dispatch runs the current state function once and transitions to whatever
// it returns. A nil current state (terminal) is a no-op.
func (sm *StateMachine[T]) Dispatch(callback func(stateName string, event StateEvent)) {
	sm.mu.Lock()
	current := sm.stateFn
	sm.mu.Unlock()

	if current == nil {
		return
	}

	next := current(sm.entity, callback)

	sm.mu.Lock()
	sm.stateFn = next
	sm.mu.Unlock()
}

// GetCurrentState returns the current state function; nil means the machine
// has reached a terminal state.
func (sm *StateMachine[T]) GetCurrentState() StateFn[T] {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.stateFn
}

// SetState forces the machine into stateFn and dispatches it once, without
// callbacks.
func (sm *StateMachine[T]) SetState(stateFn StateFn[T]) {
	sm.mu.Lock()
	sm.stateFn = stateFn
	sm.mu.Unlock()

	sm.Dispatch(nil)
}
