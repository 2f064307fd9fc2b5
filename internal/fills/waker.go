package fills

// Waker is a signal-and-reset primitive: Wake is cheap and coalescing,
// Chan returns a channel the polling loop selects on alongside its timer.
// Multiple Wakes between reads collapse into one wakeup.
type Waker struct {
	ch chan struct{}
}

// NewWaker creates a waker.
func NewWaker() *Waker {
	return &Waker{ch: make(chan struct{}, 1)}
}

// Wake nudges the consumer. Never blocks.
func (w *Waker) Wake() {
	select {
	case w.ch <- struct{}{}:
	default:
	}
}

// Chan is the wakeup channel. Receiving resets the signal.
func (w *Waker) Chan() <-chan struct{} {
	return w.ch
}
