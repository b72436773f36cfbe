package engine

import (
	"github.com/rs/zerolog"

	"github.com/Cardinal-Cryptography/alephsync/model/chain"
	"github.com/Cardinal-Cryptography/alephsync/utils/logging"
)

// Message carries one inbound event together with the id of the node that
// sent it.
type Message struct {
	OriginID chain.NodeID
	Payload  interface{}
}

// MessageStore is the interface to abstract how messages are buffered in
// memory before being handled by the engine.
type MessageStore interface {
	Put(*Message) bool
	Get() (*Message, bool)
}

// Pattern matches an inbound message to the store it belongs in.
type Pattern struct {
	// Match is a function to match a message to this pattern, typically by
	// payload type.
	Match MatchFunc
	// Map is a function to apply to messages before storing them. If not
	// provided, the message is stored unchanged.
	Map MapFunc
	// Store is an abstract message store where we store the message upon
	// receipt.
	Store MessageStore
	// BeforeStore is a hook for functions to be called when a message is
	// stored.
	BeforeStore []OnMessageFunc
}

type OnMessageFunc func(*Message)

type MatchFunc func(*Message) bool

type MapFunc func(*Message) *Message

// MessageHandler sorts inbound messages into per-pattern stores and notifies
// a consumer loop that there is something to pick up.
type MessageHandler struct {
	log      zerolog.Logger
	notify   chan struct{}
	patterns []Pattern
}

func NewMessageHandler(log zerolog.Logger, patterns ...Pattern) *MessageHandler {
	// The 1-slot buffer matters: after the consumer finds the stores empty
	// and before it is back listening on the notifier there is a blind
	// period. A message arriving then still fits in the buffer, so the
	// consumer picks it up on its next receive instead of sleeping on a
	// non-empty store.
	notifier := make(chan struct{}, 1)
	return &MessageHandler{
		log:      log.With().Str("component", "message_handler").Logger(),
		notify:   notifier,
		patterns: patterns,
	}
}

// Process sorts the message into the store of the first matching pattern.
// Messages that match no pattern and messages whose store rejects them are
// logged and dropped.
func (e *MessageHandler) Process(originID chain.NodeID, payload interface{}) error {
	msg := &Message{
		OriginID: originID,
		Payload:  payload,
	}

	log := e.log.
		Warn().
		Str("msg_type", logging.Type(payload)).
		Str("origin_id", originID.String())

	for _, pattern := range e.patterns {
		if pattern.Match(msg) {

			if pattern.Map != nil {
				msg = pattern.Map(msg)
			}

			for _, apply := range pattern.BeforeStore {
				apply(msg)
			}

			ok := pattern.Store.Put(msg)
			if !ok {
				log.Msg("failed to store message - discarding")
				return nil
			}

			e.doNotify()

			// a message is matched by at most one pattern
			return nil
		}
	}

	log.Msg("discarding unknown message type")
	return nil
}

// doNotify wakes the consumer without ever blocking the caller.
func (e *MessageHandler) doNotify() {
	select {
	case e.notify <- struct{}{}:
	default:
	}
}

func (e *MessageHandler) GetNotifier() <-chan struct{} {
	return e.notify
}
