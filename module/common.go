package module

// ReadyDoneAware is implemented by every long-running component of the node.
// Components support a single start-stop cycle and will not restart if
// Ready() is called again after shutdown has already commenced.
type ReadyDoneAware interface {
	// Ready commences startup of the component, and returns a channel that is
	// closed once startup has completed. This is an idempotent method.
	Ready() <-chan struct{}

	// Done commences shutdown of the component, and returns a channel that is
	// closed once shutdown has completed. This is an idempotent method.
	Done() <-chan struct{}
}
