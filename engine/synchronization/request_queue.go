package synchronization

import (
	"sync"

	"github.com/Cardinal-Cryptography/alephsync/engine"
	"github.com/Cardinal-Cryptography/alephsync/model/chain"
)

// RequestQueue is a message store that keeps at most one pending request per
// requester. A newer request from the same node replaces the stored one,
// since serving the newest request subsumes whatever the older one asked
// for.
type RequestQueue struct {
	lock     sync.Mutex
	limit    uint
	requests map[chain.NodeID]*engine.Message
}

var _ engine.MessageStore = (*RequestQueue)(nil)

func NewRequestQueue(limit uint) *RequestQueue {
	return &RequestQueue{
		limit:    limit,
		requests: make(map[chain.NodeID]*engine.Message),
	}
}

// Put stores the message, overwriting any pending message from the same
// origin. Put never rejects: when the queue is full, an arbitrary pending
// request is ejected first, so the message just inserted cannot be the
// victim.
func (q *RequestQueue) Put(message *engine.Message) bool {
	q.lock.Lock()
	defer q.lock.Unlock()

	if _, found := q.requests[message.OriginID]; !found {
		q.reduce()
	}
	q.requests[message.OriginID] = message
	return true
}

// Get removes and returns a pending message, picked using go map iteration
// randomness so no single requester can starve the others.
func (q *RequestQueue) Get() (*engine.Message, bool) {
	q.lock.Lock()
	defer q.lock.Unlock()

	for originID, message := range q.requests {
		delete(q.requests, originID)
		return message, true
	}
	return nil, false
}

// reduce ejects pending requests until there is room for one more.
func (q *RequestQueue) reduce() {
	for len(q.requests) >= int(q.limit) {
		for originID := range q.requests {
			delete(q.requests, originID)
			break
		}
	}
}
