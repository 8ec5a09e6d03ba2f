// Package supervisor implements the multi-proxy supervisor: jointly
// owns the SOCKS, HTTP, and chain listeners, propagates a process-wide
// shutdown signal to each, and exits non-zero only if every listener
// has failed.
//
// The status-accessor shape (a small struct exposing read accessors
// guarded by sync.RWMutex) backs Snapshot(), consulted by the
// "multi-proxy --status" CLI path.
package supervisor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tunelo-project/tunelo/internal/logging"
)

// Listener is the minimal lifecycle interface every owned listener
// (socksserver.Server, httpserver.Server, or a chain-backed variant of
// either) satisfies.
type Listener interface {
	Serve(ctx context.Context) error
	Close() error
}

// namedListener pairs a listener with the label it reports under in
// Snapshot() and logs.
type namedListener struct {
	name string
	l    Listener
}

// Supervisor owns a set of listeners started together and torn down
// together.
type Supervisor struct {
	log        *slog.Logger
	ring       *logging.RingBuffer
	gracePeriod time.Duration

	mu        sync.RWMutex
	listeners []namedListener
	failed    map[string]error
	running   bool
}

// New builds a Supervisor. gracePeriod bounds how long in-flight
// sessions are given to drain after shutdown is signalled before the
// process moves on (default 5s).
func New(log *slog.Logger, ring *logging.RingBuffer, gracePeriod time.Duration) *Supervisor {
	if log == nil {
		log = slog.Default()
	}
	if gracePeriod <= 0 {
		gracePeriod = 5 * time.Second
	}
	return &Supervisor{log: log, ring: ring, gracePeriod: gracePeriod, failed: map[string]error{}}
}

// Add registers a listener under name. Must be called before Run.
func (s *Supervisor) Add(name string, l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, namedListener{name: name, l: l})
}

// Run starts every registered listener and blocks until ctx is
// cancelled or every listener has failed. It propagates ctx
// cancellation to each listener (which stops accepting and drains
// in-flight sessions), waits up to gracePeriod for Serve to return,
// then calls Close on every listener and returns without waiting
// further for sessions still in flight.
//
// Returns a non-nil error only when *all* listeners have failed — a
// single listener failing is logged and its siblings keep running,
// which is a weaker rule than errgroup's own "cancel all on first
// error" semantics, so failures are additionally counted here rather
// than left to errgroup alone.
func (s *Supervisor) Run(ctx context.Context) error {
	s.mu.Lock()
	s.running = true
	listeners := make([]namedListener, len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.Unlock()

	if len(listeners) == 0 {
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(context.Background())
	for _, nl := range listeners {
		nl := nl
		g.Go(func() error {
			err := nl.l.Serve(runCtx)
			if err != nil {
				s.recordFailure(nl.name, err)
				s.log.Error("listener failed", "listener", nl.name, "err", err)
			}
			return nil // never cancel siblings: the all-must-fail rule is enforced below
		})
	}

	done := make(chan struct{})
	go func() {
		g.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
	case <-gctx.Done():
	case <-done:
	}

	cancel() // propagate shutdown to every listener
	select {
	case <-done:
	case <-time.After(s.gracePeriod):
		for _, nl := range listeners {
			nl.l.Close()
		}
	}

	s.mu.RLock()
	allFailed := len(s.failed) == len(listeners)
	s.mu.RUnlock()
	if allFailed {
		return &AllListenersFailedError{Failures: s.Failures()}
	}
	return nil
}

func (s *Supervisor) recordFailure(name string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failed[name] = err
}

// Failures returns a copy of the name->error map of listeners that have
// failed so far.
func (s *Supervisor) Failures() map[string]error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp := make(map[string]error, len(s.failed))
	for k, v := range s.failed {
		cp[k] = v
	}
	return cp
}

// Snapshot is the read-only status surface for "multi-proxy --status":
// inspecting a running multi-proxy set.
type Snapshot struct {
	Listeners    []string
	Failed       []string
	RecentLogs   []logging.Entry
}

// Snapshot returns the current listener set, which ones have failed,
// and the tail of the shared log ring buffer.
func (s *Supervisor) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, len(s.listeners))
	for i, nl := range s.listeners {
		names[i] = nl.name
	}
	failed := make([]string, 0, len(s.failed))
	for name := range s.failed {
		failed = append(failed, name)
	}

	var recent []logging.Entry
	if s.ring != nil {
		recent = s.ring.Recent(50)
	}
	return Snapshot{Listeners: names, Failed: failed, RecentLogs: recent}
}

// AllListenersFailedError is returned by Run when every registered
// listener has failed, triggering the non-zero exit code.
type AllListenersFailedError struct {
	Failures map[string]error
}

func (e *AllListenersFailedError) Error() string {
	return "supervisor: all listeners failed"
}
