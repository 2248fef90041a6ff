package geolocation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// manualTimers replaces real timers so timeouts fire only when a test says so.
type manualTimers struct {
	mu    sync.Mutex
	chans []chan time.Time
}

func (m *manualTimers) newTimer(time.Duration) (<-chan time.Time, func() bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := make(chan time.Time, 1)
	m.chans = append(m.chans, c)
	return c, func() bool { return true }
}

func (m *manualTimers) fireLatest() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.chans) > 0 {
		m.chans[len(m.chans)-1] <- time.Now()
	}
}

func (m *manualTimers) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.chans)
}

func newTestSource() (*StreamSource, *manualTimers) {
	timers := &manualTimers{}
	src := NewStreamSource()
	src.newTimer = timers.newTimer
	return src, timers
}

func TestCurrentPosition_UsesFreshCachedFix(t *testing.T) {
	t.Parallel()

	src, _ := newTestSource()
	src.Push(Position{Lat: 1, Lng: 2})

	pos, err := src.CurrentPosition(context.Background(), DefaultOptions())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pos.Lat != 1 || pos.Lng != 2 {
		t.Errorf("expected cached fix, got %+v", pos)
	}
}

func TestCurrentPosition_IgnoresStaleFixAndWaitsForNext(t *testing.T) {
	t.Parallel()

	src, _ := newTestSource()
	now := time.Now()
	src.now = func() time.Time { return now }
	src.Push(Position{Lat: 1, Lng: 1})
	now = now.Add(time.Minute)

	result := make(chan Position, 1)
	go func() {
		pos, err := src.CurrentPosition(context.Background(), DefaultOptions())
		if err == nil {
			result <- pos
		}
		close(result)
	}()

	time.Sleep(20 * time.Millisecond)
	src.Push(Position{Lat: 5, Lng: 5})

	select {
	case pos := <-result:
		if pos.Lat != 5 {
			t.Errorf("expected the new fix, got %+v", pos)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for position")
	}
}

func TestCurrentPosition_TimesOut(t *testing.T) {
	t.Parallel()

	src, timers := newTestSource()
	errCh := make(chan error, 1)
	go func() {
		_, err := src.CurrentPosition(context.Background(), DefaultOptions())
		errCh <- err
	}()

	for timers.count() == 0 {
		time.Sleep(time.Millisecond)
	}
	timers.fireLatest()

	err := <-errCh
	var perr *PositionError
	if !errors.As(err, &perr) || perr.Code != Timeout {
		t.Fatalf("expected TIMEOUT, got %v", err)
	}
}

func TestCurrentPosition_ReturnsDeviceError(t *testing.T) {
	t.Parallel()

	src, _ := newTestSource()
	src.Fail(&PositionError{Code: PermissionDenied, Message: "user denied"})

	_, err := src.CurrentPosition(context.Background(), DefaultOptions())
	var perr *PositionError
	if !errors.As(err, &perr) || perr.Code != PermissionDenied {
		t.Fatalf("expected PERMISSION_DENIED, got %v", err)
	}
}

func TestWatchPosition_DeliversFixesThenEndsOnError(t *testing.T) {
	t.Parallel()

	src, _ := newTestSource()
	positions := make(chan Position, 4)
	errs := make(chan *PositionError, 1)

	_, err := src.WatchPosition(DefaultOptions(),
		func(p Position) { positions <- p },
		func(e *PositionError) { errs <- e })
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	src.Push(Position{Lat: 3, Lng: 4})
	select {
	case p := <-positions:
		if p.Lat != 3 {
			t.Errorf("expected lat 3, got %v", p.Lat)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for fix")
	}

	src.Fail(&PositionError{Code: PositionUnavailable})
	select {
	case e := <-errs:
		if e.Code != PositionUnavailable {
			t.Errorf("expected POSITION_UNAVAILABLE, got %v", e.Code)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for error")
	}

	deadline := time.Now().Add(2 * time.Second)
	for src.ActiveWatches() != 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if n := src.ActiveWatches(); n != 0 {
		t.Errorf("expected watch to end after error, %d active", n)
	}
}

func TestClearWatch_StopsCallbacksAndIsIdempotent(t *testing.T) {
	t.Parallel()

	src, _ := newTestSource()
	var mu sync.Mutex
	calls := 0
	h, _ := src.WatchPosition(DefaultOptions(), func(Position) {
		mu.Lock()
		calls++
		mu.Unlock()
	}, nil)

	src.ClearWatch(h)
	src.ClearWatch(h)
	src.Push(Position{Lat: 1, Lng: 1})
	time.Sleep(20 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if calls != 0 {
		t.Errorf("expected no callbacks after ClearWatch, got %d", calls)
	}
}

func TestClose_EndsWatchesSilently(t *testing.T) {
	t.Parallel()

	src, _ := newTestSource()
	errs := make(chan *PositionError, 1)
	_, _ = src.WatchPosition(DefaultOptions(), nil, func(e *PositionError) { errs <- e })

	src.Close()
	time.Sleep(20 * time.Millisecond)

	select {
	case e := <-errs:
		t.Fatalf("expected no error callback, got %v", e)
	default:
	}
	if _, err := src.WatchPosition(DefaultOptions(), nil, nil); err == nil {
		t.Error("expected WatchPosition on a closed source to fail")
	}
}
