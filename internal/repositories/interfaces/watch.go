package interfaces

// Change is one delivery of a watch. Value is the zero value when the watched
// document does not exist. A non-nil Err ends the watch.
type Change[T any] struct {
	Value  T
	Exists bool
	Err    error
}

// Watch is a live listener over typed documents. Stop is idempotent and returns
// once the listener has exited.
type Watch[T any] interface {
	Changes() <-chan Change[T]
	Stop()
}
