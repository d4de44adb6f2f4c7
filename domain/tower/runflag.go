package tower

import (
	"sync"
	"sync/atomic"
)

// RunState is the value of a RunFlag.
type RunState int32

const (
	Paused RunState = iota
	Running
	ExitRequested
)

func (r RunState) String() string {
	switch r {
	case Paused:
		return "paused"
	case Running:
		return "running"
	case ExitRequested:
		return "exit"
	default:
		return "unknown"
	}
}

// RunFlag is the only state shared between signal sources and the control
// loop. ExitRequested is terminal. The zero value is paused.
type RunFlag struct {
	v atomic.Int32

	mu      sync.Mutex
	changed chan struct{}
}

// Load returns the current state.
func (f *RunFlag) Load() RunState { return RunState(f.v.Load()) }

// Start requests running. It reports false once exit was requested.
func (f *RunFlag) Start() bool { return f.set(Running) }

// Pause requests pausing. It reports false once exit was requested.
func (f *RunFlag) Pause() bool { return f.set(Paused) }

// Stop requests exit.
func (f *RunFlag) Stop() {
	if RunState(f.v.Swap(int32(ExitRequested))) != ExitRequested {
		f.broadcast()
	}
}

// Changed returns a channel that is closed by the next state change. Take
// the channel before loading the state so no change can slip in between.
func (f *RunFlag) Changed() <-chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.changed == nil {
		f.changed = make(chan struct{})
	}
	return f.changed
}

func (f *RunFlag) broadcast() {
	f.mu.Lock()
	if f.changed != nil {
		close(f.changed)
		f.changed = nil
	}
	f.mu.Unlock()
}

func (f *RunFlag) set(s RunState) bool {
	for {
		cur := f.v.Load()
		if RunState(cur) == ExitRequested {
			return false
		}
		if f.v.CompareAndSwap(cur, int32(s)) {
			if RunState(cur) != s {
				f.broadcast()
			}
			return true
		}
	}
}
