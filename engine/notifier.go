package engine

// Notifier is a concurrency primitive for informing worker routines about the
// arrival of new work units. It behaves like a channel in that it can be
// passed by value and still allows concurrent updates of the same internal
// state.
//
// A Notifier remembers at most one pending notification: notifying an
// already-notified Notifier is a no-op. Hence, producers can call Notify
// after every work unit without ever blocking, while a consumer that drains
// all available work after each notification is guaranteed to never miss
// any.
type Notifier struct {
	// buffered channel with capacity 1; holding an element means a
	// notification is pending
	notifier chan struct{}
}

// NewNotifier instantiates a Notifier.
func NewNotifier() Notifier {
	return Notifier{make(chan struct{}, 1)}
}

// Notify sends a notification. It never blocks: if a notification is already
// pending, the call is a no-op.
func (n Notifier) Notify() {
	select {
	case n.notifier <- struct{}{}:
	default:
	}
}

// Channel returns the channel for receiving notifications.
func (n Notifier) Channel() <-chan struct{} {
	return n.notifier
}
