package core

import "sync"

// InputEvent is a discrete, payload-free user command.
type InputEvent int

const (
	SpeedUp InputEvent = iota + 1
	SlowDown
)

func (e InputEvent) String() string {
	switch e {
	case SpeedUp:
		return "speed_up"
	case SlowDown:
		return "slow_down"
	default:
		return "unknown"
	}
}

// maxPendingInputs bounds the backlog between two ticks.
const maxPendingInputs = 64

// InputQueue collects input events from any goroutine until the frame loop
// drains them at the start of the next tick.
type InputQueue struct {
	mu      sync.Mutex
	pending []InputEvent
}

// Push enqueues ev. It reports false when the queue is full or ev is unknown.
func (q *InputQueue) Push(ev InputEvent) bool {
	if ev != SpeedUp && ev != SlowDown {
		return false
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) >= maxPendingInputs {
		return false
	}
	q.pending = append(q.pending, ev)
	return true
}

// Drain removes and returns all pending events in arrival order.
func (q *InputQueue) Drain() []InputEvent {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.pending
	q.pending = nil
	return out
}

// Len returns the number of pending events.
func (q *InputQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}
