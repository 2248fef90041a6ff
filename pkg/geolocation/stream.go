package geolocation

import (
	"context"
	"sync"
	"time"
)

// StreamSource is a Source fed by position reports pushed from a remote device,
// typically frames read off a WebSocket. Freshness is judged on receipt time.
type StreamSource struct {
	mu       sync.Mutex
	last     *Position
	lastAt   time.Time
	seq      uint64
	lastErr  *PositionError
	changed  chan struct{}
	watches  map[WatchHandle]*streamWatch
	nextID   WatchHandle
	closed   bool
	now      func() time.Time
	newTimer func(d time.Duration) (<-chan time.Time, func() bool)
}

type streamWatch struct {
	opts       Options
	onPosition func(Position)
	onError    func(*PositionError)
	positions  chan Position
	errs       chan *PositionError
	stop       chan struct{}
	stopOnce   sync.Once
}

func NewStreamSource() *StreamSource {
	return &StreamSource{
		changed: make(chan struct{}),
		watches: make(map[WatchHandle]*streamWatch),
		now:     time.Now,
		newTimer: func(d time.Duration) (<-chan time.Time, func() bool) {
			t := time.NewTimer(d)
			return t.C, t.Stop
		},
	}
}

// Push records a new fix from the device and hands it to every watch.
func (s *StreamSource) Push(pos Position) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	now := s.now()
	if pos.Timestamp.IsZero() {
		pos.Timestamp = now
	}
	s.last = &pos
	s.lastAt = now
	s.seq++
	s.lastErr = nil
	s.broadcastLocked()

	for _, w := range s.watches {
		select {
		case <-w.positions:
		default:
		}
		select {
		case w.positions <- pos:
		default:
		}
	}
}

// Fail reports a device-side geolocation error. It ends every active watch.
func (s *StreamSource) Fail(perr *PositionError) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.lastErr = perr
	s.broadcastLocked()
	for _, w := range s.watches {
		select {
		case w.errs <- perr:
		default:
		}
	}
}

// Close ends all watches without invoking their error callbacks.
func (s *StreamSource) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for h, w := range s.watches {
		w.halt()
		delete(s.watches, h)
	}
	s.broadcastLocked()
}

func (s *StreamSource) broadcastLocked() {
	close(s.changed)
	s.changed = make(chan struct{})
}

func (s *StreamSource) freshLocked(maxAge time.Duration) (Position, bool) {
	if s.last == nil || maxAge <= 0 {
		return Position{}, false
	}
	if s.now().Sub(s.lastAt) > maxAge {
		return Position{}, false
	}
	return *s.last, true
}

func (s *StreamSource) CurrentPosition(ctx context.Context, opts Options) (Position, error) {
	var timeout <-chan time.Time
	if opts.Timeout > 0 {
		c, stop := s.newTimer(opts.Timeout)
		defer stop()
		timeout = c
	}

	s.mu.Lock()
	if pos, ok := s.freshLocked(opts.MaximumAge); ok {
		s.mu.Unlock()
		return pos, nil
	}
	seen := s.seq
	for {
		if s.closed {
			s.mu.Unlock()
			return Position{}, &PositionError{Code: PositionUnavailable, Message: "device disconnected"}
		}
		if s.lastErr != nil {
			perr := s.lastErr
			s.mu.Unlock()
			return Position{}, perr
		}
		if s.seq > seen {
			pos := *s.last
			s.mu.Unlock()
			return pos, nil
		}
		changed := s.changed
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			return Position{}, ctx.Err()
		case <-timeout:
			return Position{}, &PositionError{Code: Timeout, Message: "no position within timeout"}
		case <-changed:
		}
		s.mu.Lock()
	}
}

func (s *StreamSource) WatchPosition(opts Options, onPosition func(Position), onError func(*PositionError)) (WatchHandle, error) {
	w := &streamWatch{
		opts:       opts,
		onPosition: onPosition,
		onError:    onError,
		positions:  make(chan Position, 1),
		errs:       make(chan *PositionError, 1),
		stop:       make(chan struct{}),
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0, &PositionError{Code: PositionUnavailable, Message: "device disconnected"}
	}
	s.nextID++
	h := s.nextID
	s.watches[h] = w
	if pos, ok := s.freshLocked(opts.MaximumAge); ok {
		w.positions <- pos
	}
	s.mu.Unlock()

	go s.runWatch(h, w)
	return h, nil
}

func (s *StreamSource) runWatch(h WatchHandle, w *streamWatch) {
	defer s.ClearWatch(h)

	for {
		var timeout <-chan time.Time
		stopTimer := func() bool { return false }
		if w.opts.Timeout > 0 {
			timeout, stopTimer = s.newTimer(w.opts.Timeout)
		}

		select {
		case <-w.stop:
			stopTimer()
			return
		case pos := <-w.positions:
			stopTimer()
			if w.stopped() {
				return
			}
			if w.onPosition != nil {
				w.onPosition(pos)
			}
		case perr := <-w.errs:
			stopTimer()
			if !w.stopped() && w.onError != nil {
				w.onError(perr)
			}
			return
		case <-timeout:
			if !w.stopped() && w.onError != nil {
				w.onError(&PositionError{Code: Timeout, Message: "no position within timeout"})
			}
			return
		}
	}
}

func (s *StreamSource) ClearWatch(h WatchHandle) {
	s.mu.Lock()
	w, ok := s.watches[h]
	delete(s.watches, h)
	s.mu.Unlock()
	if ok {
		w.halt()
	}
}

// ActiveWatches reports the number of live watches.
func (s *StreamSource) ActiveWatches() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.watches)
}

func (w *streamWatch) halt() {
	w.stopOnce.Do(func() { close(w.stop) })
}

func (w *streamWatch) stopped() bool {
	select {
	case <-w.stop:
		return true
	default:
		return false
	}
}
