package timectrl

import (
	"context"
	"sync"
	"time"
)

// Mode describes how the TimeController measures frame deltas.
type Mode int

const (
	// RealTime reports the wall-clock time elapsed since the previous frame.
	RealTime Mode = iota
	// Accelerated reports exactly Tick for every frame, independent of how
	// late the ticker fired. Runs are reproducible in this mode.
	Accelerated
)

func (m Mode) String() string {
	switch m {
	case RealTime:
		return "realtime"
	case Accelerated:
		return "accelerated"
	default:
		return "unknown"
	}
}

// Frame is one tick of the host frame loop.
type Frame struct {
	Index uint64
	// Delta is the real (unscaled) time since the previous frame, in seconds.
	Delta float64
	// At is the wall-clock time the frame fired.
	At time.Time
}

// TimeController drives the frame loop and notifies registered listeners once
// per frame. Listeners run on the controller goroutine, one frame at a time.
type TimeController struct {
	mu   sync.Mutex
	Tick time.Duration
	Mode Mode

	now       func() time.Time
	index     uint64
	lastFrame time.Time

	listeners []func(Frame)
}

// NewTimeController constructs a controller firing every tick.
func NewTimeController(tick time.Duration, mode Mode) *TimeController {
	return &TimeController{
		Tick: tick,
		Mode: mode,
		now:  time.Now,
	}
}

// AddListener registers a callback invoked on every frame.
func (tc *TimeController) AddListener(fn func(Frame)) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.listeners = append(tc.listeners, fn)
}

// Frames returns the number of frames emitted so far.
func (tc *TimeController) Frames() uint64 {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	return tc.index
}

// Advance emits a single frame with the given delta synchronously. Hosts that
// own their render loop call this instead of Start.
func (tc *TimeController) Advance(delta time.Duration) Frame {
	tc.mu.Lock()
	at := tc.now()
	tc.mu.Unlock()
	return tc.emit(at, delta)
}

// emit stamps a frame at the given instant, which also becomes the reference
// for the next measured delta.
func (tc *TimeController) emit(at time.Time, delta time.Duration) Frame {
	tc.mu.Lock()
	tc.index++
	f := Frame{Index: tc.index, Delta: delta.Seconds(), At: at}
	tc.lastFrame = at
	listeners := append([]func(Frame){}, tc.listeners...)
	tc.mu.Unlock()

	for _, fn := range listeners {
		fn(f)
	}
	return f
}

// Start runs the frame loop in a separate goroutine until ctx is cancelled or,
// when duration > 0, until the summed frame deltas reach duration. It returns
// a channel that is closed when the loop exits.
func (tc *TimeController) Start(ctx context.Context, duration time.Duration) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)

		tc.mu.Lock()
		tc.lastFrame = tc.now()
		tc.mu.Unlock()

		elapsed := time.Duration(0)

		ticker := time.NewTicker(tc.Tick)
		defer ticker.Stop()

		for {
			if duration > 0 && elapsed >= duration {
				return
			}

			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			tc.mu.Lock()
			at := tc.now()
			delta := tc.Tick
			if tc.Mode == RealTime {
				delta = at.Sub(tc.lastFrame)
			}
			tc.mu.Unlock()
			tc.emit(at, delta)
			elapsed += delta
		}
	}()
	return done
}
