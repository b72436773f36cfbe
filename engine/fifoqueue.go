package engine

import (
	"github.com/Cardinal-Cryptography/alephsync/engine/common/fifoqueue"
)

// FifoMessageStore is a MessageStore over a bounded FIFO queue. When the
// queue is at capacity, Put drops the message and reports false, so a slow
// engine sheds inbound load instead of stalling the network layer.
type FifoMessageStore struct {
	queue *fifoqueue.FifoQueue
}

// NewFifoMessageStore creates a message store holding at most maxCapacity
// pending messages.
func NewFifoMessageStore(maxCapacity int, options ...fifoqueue.ConstructorOption) (*FifoMessageStore, error) {
	queue, err := fifoqueue.NewFifoQueue(maxCapacity, options...)
	if err != nil {
		return nil, err
	}
	return &FifoMessageStore{queue: queue}, nil
}

// Put queues the message, dropping it when the store is full.
func (s *FifoMessageStore) Put(msg *Message) bool {
	return s.queue.Push(msg)
}

// Get removes and returns the oldest queued message.
func (s *FifoMessageStore) Get() (*Message, bool) {
	element, ok := s.queue.Pop()
	if !ok {
		return nil, false
	}
	return element.(*Message), true
}

// Len returns the number of queued messages.
func (s *FifoMessageStore) Len() int {
	return s.queue.Len()
}
