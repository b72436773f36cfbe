// Package fifoqueue implements a bounded FIFO queue for inter-component
// message buffering.
package fifoqueue

import (
	"fmt"
	"sync"

	"github.com/ef-ds/deque"
)

// FifoQueue implements a FIFO queue with a maximum capacity. Pushing to a
// full queue fails instead of blocking or evicting, which gives engines
// backpressure-by-drop on inbound traffic.
// FifoQueue is safe for concurrent use.
type FifoQueue struct {
	mu             sync.Mutex
	queue          deque.Deque
	maxCapacity    int
	lengthObserver QueueLengthObserver
}

// ConstructorOption configures a FifoQueue at construction time.
type ConstructorOption func(*FifoQueue) error

// QueueLengthObserver is called with the queue length after every mutation.
// Implementations must be non-blocking.
type QueueLengthObserver func(int)

// WithLengthObserver attaches a length observer, typically a metrics gauge.
func WithLengthObserver(callback QueueLengthObserver) ConstructorOption {
	return func(queue *FifoQueue) error {
		if callback == nil {
			return fmt.Errorf("nil is not a valid length observer")
		}
		queue.lengthObserver = callback
		return nil
	}
}

// NewFifoQueue creates a queue holding at most maxCapacity elements.
func NewFifoQueue(maxCapacity int, options ...ConstructorOption) (*FifoQueue, error) {
	if maxCapacity < 1 {
		return nil, fmt.Errorf("capacity for FifoQueue must be positive")
	}

	queue := &FifoQueue{
		maxCapacity:    maxCapacity,
		lengthObserver: func(int) {},
	}
	for _, opt := range options {
		err := opt(queue)
		if err != nil {
			return nil, fmt.Errorf("failed to apply constructor option: %w", err)
		}
	}
	return queue, nil
}

// Push appends the element to the queue. It returns true if the element was
// added and false if the queue is full.
func (q *FifoQueue) Push(element interface{}) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.queue.Len() >= q.maxCapacity {
		return false
	}

	q.queue.PushBack(element)
	q.lengthObserver(q.queue.Len())
	return true
}

// Front peeks at the oldest element without removing it.
func (q *FifoQueue) Front() (interface{}, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.queue.Front()
}

// Pop removes and returns the oldest element.
func (q *FifoQueue) Pop() (interface{}, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	element, ok := q.queue.PopFront()
	if !ok {
		return nil, false
	}
	q.lengthObserver(q.queue.Len())
	return element, true
}

// Len returns the current length of the queue.
func (q *FifoQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.queue.Len()
}
