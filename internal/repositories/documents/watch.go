package documents

import (
	"errors"
	"sync"

	"carhire/internal/repositories/interfaces"
	"carhire/pkg/docstore"
)

type typedWatch[T any] struct {
	sub     *docstore.Subscription
	changes chan interfaces.Change[T]
	stop    chan struct{}
	done    chan struct{}
	once    sync.Once
}

// watchEvents decodes the events of sub until it ends or the watch is stopped.
func watchEvents[T any](sub *docstore.Subscription, convert func(docstore.Event) interfaces.Change[T]) interfaces.Watch[T] {
	w := &typedWatch[T]{
		sub:     sub,
		changes: make(chan interfaces.Change[T]),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go w.run(convert)
	return w
}

func (w *typedWatch[T]) run(convert func(docstore.Event) interfaces.Change[T]) {
	defer close(w.done)
	defer close(w.changes)
	for ev := range w.sub.Events() {
		select {
		case w.changes <- convert(ev):
		case <-w.stop:
			return
		}
	}
}

func (w *typedWatch[T]) Changes() <-chan interfaces.Change[T] {
	return w.changes
}

func (w *typedWatch[T]) Stop() {
	w.once.Do(func() { close(w.stop) })
	w.sub.Stop()
	<-w.done
}

// documentChange adapts a single document event.
func documentChange[T any](decode func(*docstore.Snapshot) T) func(docstore.Event) interfaces.Change[T] {
	return func(ev docstore.Event) interfaces.Change[T] {
		if ev.Err != nil {
			return interfaces.Change[T]{Err: storeError(ev.Err)}
		}
		exists := ev.Doc != nil && ev.Doc.Exists
		return interfaces.Change[T]{Value: decode(ev.Doc), Exists: exists}
	}
}

// notFoundError matches interfaces.ErrNotFound as well as the store error it
// carries, and prints the store error alone.
type notFoundError struct {
	err error
}

func (e *notFoundError) Error() string { return e.err.Error() }

func (e *notFoundError) Is(target error) bool { return target == interfaces.ErrNotFound }

func (e *notFoundError) Unwrap() error { return e.err }

// storeError marks missing documents with interfaces.ErrNotFound and returns other
// errors unchanged.
func storeError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, docstore.ErrNotFound) {
		return &notFoundError{err: err}
	}
	return err
}
