package fsm

import (
	"fmt"
	"sync"
)

type State string
type Event string

// Handler is executed after the machine has entered the target state.
type Handler func(event Event, args ...interface{}) error

// Observer is notified of every completed transition, before the handler runs.
type Observer func(from, to State, event Event)

type StateMachine struct {
	mu          sync.RWMutex
	current     State
	terminal    map[State]bool
	transitions map[State]map[Event]State
	callbacks   map[State]map[Event]Handler
	observers   []Observer
}

func New(initial State) *StateMachine {
	return &StateMachine{
		current:     initial,
		terminal:    make(map[State]bool),
		transitions: make(map[State]map[Event]State),
		callbacks:   make(map[State]map[Event]Handler),
	}
}

func (sm *StateMachine) Current() State {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.current
}

func (sm *StateMachine) AddTransition(from, to State, event Event, callback Handler) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if _, ok := sm.transitions[from]; !ok {
		sm.transitions[from] = make(map[Event]State)
		sm.callbacks[from] = make(map[Event]Handler)
	}
	sm.transitions[from][event] = to
	sm.callbacks[from][event] = callback
}

// MarkTerminal declares that no event may leave s.
func (sm *StateMachine) MarkTerminal(s State) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.terminal[s] = true
}

// Done reports whether the machine sits in a terminal state.
func (sm *StateMachine) Done() bool {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.terminal[sm.current]
}

// OnTransition registers an observer.
func (sm *StateMachine) OnTransition(o Observer) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.observers = append(sm.observers, o)
}

// Fire triggers a state transition. It is thread-safe. The lock is released before
// observers and the handler run, so a handler may fire follow-up events.
// A handler error is returned but does not roll the state back.
func (sm *StateMachine) Fire(event Event, args ...interface{}) error {
	sm.mu.Lock()
	from := sm.current
	if sm.terminal[from] {
		sm.mu.Unlock()
		return fmt.Errorf("state %s is terminal, cannot fire %s", from, event)
	}
	next, ok := sm.transitions[from][event]
	if !ok {
		sm.mu.Unlock()
		return fmt.Errorf("invalid transition from %s via %s", from, event)
	}
	handler := sm.callbacks[from][event]
	observers := append([]Observer(nil), sm.observers...)
	sm.current = next
	sm.mu.Unlock()

	for _, o := range observers {
		o(from, next, event)
	}
	if handler != nil {
		return handler(event, args...)
	}
	return nil
}

// Personal.AI order the ending
