package pipeline

import (
	"context"
	"sync"

	"github.com/backmassage/vidshrink/internal/ledger"
)

// ShutdownMode is the pool-wide shutdown request.
type ShutdownMode int

const (
	ShutdownNone      ShutdownMode = iota
	ShutdownGraceful               // Finish current jobs, dequeue nothing new.
	ShutdownImmediate              // Tear down running subprocesses now.
)

func (m ShutdownMode) String() string {
	switch m {
	case ShutdownGraceful:
		return "graceful"
	case ShutdownImmediate:
		return "immediate"
	}
	return "none"
}

// Snapshot is a consistent read of the pause and shutdown flags.
type Snapshot struct {
	Paused   bool
	Shutdown ShutdownMode
}

// State is the pool state shared by the workers and the controller. Every
// mutation wakes anyone holding the channel from Changed.
type State struct {
	mu       sync.Mutex
	paused   bool
	shutdown ShutdownMode
	fatal    error
	changed  chan struct{}
	stats    RunStats

	ctx    context.Context
	cancel context.CancelFunc
}

// NewState returns a running, unpaused State. Its Context is derived from
// parent and cancelled by an immediate shutdown.
func NewState(parent context.Context) *State {
	ctx, cancel := context.WithCancel(parent)
	return &State{changed: make(chan struct{}), ctx: ctx, cancel: cancel}
}

// broadcast must be called with mu held.
func (s *State) broadcast() {
	close(s.changed)
	s.changed = make(chan struct{})
}

// Pause requests a pause. It reports false when the pool is already paused
// or shutting down, so a repeated interrupt changes nothing.
func (s *State) Pause() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.paused || s.shutdown != ShutdownNone {
		return false
	}
	s.paused = true
	s.broadcast()
	return true
}

// Resume clears a pause.
func (s *State) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.paused {
		return
	}
	s.paused = false
	s.broadcast()
}

// Shutdown requests a shutdown and clears any pause. Immediate cannot be
// downgraded to Graceful.
func (s *State) Shutdown(mode ShutdownMode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if mode <= s.shutdown {
		return
	}
	s.shutdown = mode
	s.paused = false
	if mode == ShutdownImmediate {
		s.cancel()
	}
	s.broadcast()
}

// Abort records err as the run's fatal error and shuts down immediately.
// Only the first error is kept.
func (s *State) Abort(err error) {
	s.mu.Lock()
	if s.fatal == nil {
		s.fatal = err
	}
	s.mu.Unlock()
	s.Shutdown(ShutdownImmediate)
}

// Err returns the fatal error passed to Abort, if any.
func (s *State) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fatal
}

// Snapshot returns the current flags.
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{Paused: s.paused, Shutdown: s.shutdown}
}

// Changed returns a channel that is closed on the next state change.
// Take it before reading Snapshot so no change is missed.
func (s *State) Changed() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.changed
}

// Context is cancelled on immediate shutdown.
func (s *State) Context() context.Context { return s.ctx }

// Close releases the State's context.
func (s *State) Close() { s.cancel() }

// wait blocks while the pool is paused and not shutting down. onPaused,
// when set, runs each time wait is about to block.
func (s *State) wait(ctx context.Context, onPaused func()) Snapshot {
	for {
		ch := s.Changed()
		snap := s.Snapshot()
		if !snap.Paused || snap.Shutdown != ShutdownNone {
			return snap
		}
		if onPaused != nil {
			onPaused()
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return Snapshot{Shutdown: ShutdownImmediate}
		}
	}
}

// AwaitDequeue blocks while paused and reports whether a worker may take
// another job. Any shutdown request, or ctx ending, means no.
func (s *State) AwaitDequeue(ctx context.Context) bool {
	return s.wait(ctx, nil).Shutdown == ShutdownNone && ctx.Err() == nil
}

// Hold blocks while paused and reports whether an already dequeued job may
// go on. Only an immediate shutdown stops it. onPaused runs whenever Hold
// is about to block; it may be nil.
func (s *State) Hold(ctx context.Context, onPaused func()) bool {
	return s.wait(ctx, onPaused).Shutdown != ShutdownImmediate && ctx.Err() == nil
}

// Stopping reports whether an immediate shutdown was requested.
func (s *State) Stopping() bool {
	return s.Snapshot().Shutdown == ShutdownImmediate
}

// Tally adds a recorded outcome to the summary counters.
func (s *State) Tally(o ledger.Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := &s.stats
	switch o.Status.Kind {
	case ledger.KindSuccess:
		st.Succeeded++
		st.TotalInputBytes += o.Before
		st.TotalOutputBytes += o.After
	case ledger.KindFailed:
		st.Failed++
	case ledger.KindInterrupted:
		st.Interrupted++
	case ledger.KindSkippedLowRes:
		st.SkippedLowRes++
	case ledger.KindSkippedLikelyLarger:
		st.SkippedLikelyLarger++
	case ledger.KindSkippedLargerSize:
		st.SkippedLargerSize++
	}
}

// TallyDryRun counts a job that would have been transcoded.
func (s *State) TallyDryRun() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.DryRun++
}

// Stats returns a copy of the counters.
func (s *State) Stats() RunStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}
