package supervisor

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeListener struct {
	serveErr   error
	blockUntil chan struct{}
	closed     chan struct{}
}

func newFakeListener() *fakeListener {
	return &fakeListener{blockUntil: make(chan struct{}), closed: make(chan struct{})}
}

func (f *fakeListener) Serve(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return nil
	case <-f.blockUntil:
		return f.serveErr
	}
}

func (f *fakeListener) Close() error {
	select {
	case <-f.closed:
	default:
		close(f.closed)
	}
	return nil
}

func TestRunReturnsNilWhenContextCancelled(t *testing.T) {
	s := New(nil, nil, 100*time.Millisecond)
	s.Add("a", newFakeListener())
	s.Add("b", newFakeListener())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := s.Run(ctx); err != nil {
		t.Fatalf("Run() = %v, want nil", err)
	}
}

func TestRunReturnsErrorWhenAllListenersFail(t *testing.T) {
	s := New(nil, nil, 50*time.Millisecond)
	a := newFakeListener()
	a.serveErr = errors.New("bind failed")
	close(a.blockUntil)
	s.Add("a", a)

	err := s.Run(context.Background())
	var failedErr *AllListenersFailedError
	if !errors.As(err, &failedErr) {
		t.Fatalf("Run() = %v, want *AllListenersFailedError", err)
	}
}

func TestSnapshotListsRegisteredListeners(t *testing.T) {
	s := New(nil, nil, time.Second)
	s.Add("socks", newFakeListener())
	s.Add("http", newFakeListener())

	snap := s.Snapshot()
	if len(snap.Listeners) != 2 {
		t.Fatalf("len(Listeners) = %d, want 2", len(snap.Listeners))
	}
}
