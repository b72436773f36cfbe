package synchronization

import (
	"errors"
	"time"

	"github.com/gammazero/workerpool"
	"github.com/rs/zerolog"

	"github.com/Cardinal-Cryptography/alephsync/engine"
	"github.com/Cardinal-Cryptography/alephsync/model/chain"
	"github.com/Cardinal-Cryptography/alephsync/model/chainsync"
	"github.com/Cardinal-Cryptography/alephsync/model/messages"
	"github.com/Cardinal-Cryptography/alephsync/module"
	"github.com/Cardinal-Cryptography/alephsync/module/metrics"
	"github.com/Cardinal-Cryptography/alephsync/network"
)

const (
	// defaultRequestWorkers is the number of goroutines serving catch-up
	// requests concurrently.
	defaultRequestWorkers = 8

	// defaultRequestQueueCapacity bounds how many origins can have a request
	// waiting. One slot per origin, newer requests replace older ones.
	defaultRequestQueueCapacity = 500
)

// decline reasons reported to the responder metrics
const (
	reasonUnknownTarget = "unknown_target"
	reasonEmpty         = "empty"
	reasonRootMismatch  = "root_mismatch"
	reasonBadRequest    = "bad_request"
	reasonMissingParent = "missing_parent"
	reasonInternal      = "internal"
)

// Responder answers the catch-up requests of peers that are behind. Requests
// are queued one per origin and served by a worker pool, each worker reading
// the chain state through a shared stateless handler and unicasting the
// response back. The responder never touches the block tree, so it can run
// fully in parallel with the sync engine's own processing.
type Responder struct {
	unit     *engine.Unit
	log      zerolog.Logger
	metrics  module.EngineMetrics
	served   module.ResponderMetrics
	handler  *RequestHandler
	queue    *RequestQueue
	requests *engine.MessageHandler
	pool     *workerpool.WorkerPool
	con      network.Conduit

	// unknownTarget is called when a requester names a target block we have
	// never heard of. The requester evidently knows the block, so it doubles
	// as a hint for our own fetching.
	unknownTarget func(target chain.BlockID, holder chain.NodeID)
}

// NewResponder creates a responder serving requests through the given
// conduit. The conduit is shared with the sync engine, which owns the channel
// registration and forwards inbound requests here.
func NewResponder(
	log zerolog.Logger,
	engineMetrics module.EngineMetrics,
	responderMetrics module.ResponderMetrics,
	handler *RequestHandler,
	con network.Conduit,
	unknownTarget func(target chain.BlockID, holder chain.NodeID),
) (*Responder, error) {

	r := &Responder{
		unit:          engine.NewUnit(),
		log:           log.With().Str("engine", "responder").Logger(),
		metrics:       engineMetrics,
		served:        responderMetrics,
		handler:       handler,
		queue:         NewRequestQueue(defaultRequestQueueCapacity),
		pool:          workerpool.New(defaultRequestWorkers),
		con:           con,
		unknownTarget: unknownTarget,
	}

	r.requests = engine.NewMessageHandler(
		r.log,
		engine.Pattern{
			Match: func(msg *engine.Message) bool {
				_, ok := msg.Payload.(*messages.SyncRequest)
				if ok {
					r.metrics.MessageReceived(metrics.EngineResponder, metrics.MessageSyncRequest)
				}
				return ok
			},
			Store: r.queue,
		},
	)

	return r, nil
}

// Process enqueues an inbound request for asynchronous serving. The sync
// engine calls this from its network callback, so it must not block.
func (r *Responder) Process(originID chain.NodeID, event interface{}) error {
	return r.requests.Process(originID, event)
}

// Ready returns a ready channel that is closed once the dispatch loop has
// started.
func (r *Responder) Ready() <-chan struct{} {
	r.unit.Launch(r.dispatchLoop)
	return r.unit.Ready()
}

// Done returns a done channel that is closed once the dispatch loop has
// stopped and the worker pool has drained the requests already accepted.
func (r *Responder) Done() <-chan struct{} {
	done := make(chan struct{})
	go func() {
		// stop accepting before stopping the pool, so nothing submits to a
		// stopped pool
		<-r.unit.Done()
		r.pool.StopWait()
		close(done)
	}()
	return done
}

// dispatchLoop moves queued requests onto the worker pool.
func (r *Responder) dispatchLoop() {
	notifier := r.requests.GetNotifier()
	for {
		select {
		case <-r.unit.Quit():
			return
		case <-notifier:
			r.dispatchAvailableRequests()
		}
	}
}

func (r *Responder) dispatchAvailableRequests() {
	for {
		select {
		case <-r.unit.Quit():
			return
		default:
		}

		msg, ok := r.queue.Get()
		if !ok {
			return
		}
		request := msg.Payload.(*messages.SyncRequest)
		originID := msg.OriginID

		r.pool.Submit(func() {
			r.serve(originID, request.Request)
		})
		r.metrics.MessageHandled(metrics.EngineResponder, metrics.MessageSyncRequest)
	}
}

// serve computes and sends the response to a single request.
func (r *Responder) serve(originID chain.NodeID, request chainsync.Request) {
	started := time.Now()
	log := r.log.With().
		Str("origin_id", originID.String()).
		Uint64("target_number", request.Target.Number).
		Uint64("requester_top", request.State.TopID().Number).
		Str("branch_knowledge", request.BranchKnowledge.String()).
		Logger()

	chunks, fullyUnknown, err := r.handler.Response(request)
	if err != nil {
		reason := declineReason(err)
		if reason == reasonInternal {
			log.Error().Err(err).Msg("failed to compute sync response")
		} else {
			log.Debug().Err(err).Msg("cannot serve sync request")
		}
		r.served.RequestDeclined(reason)
		return
	}

	if fullyUnknown {
		// they know a block we do not, worth asking them about it
		r.unknownTarget(request.Target, originID)
		r.served.RequestDeclined(reasonUnknownTarget)
		log.Debug().Msg("sync request for unknown target")
		return
	}
	if len(chunks) == 0 {
		r.served.RequestDeclined(reasonEmpty)
		return
	}

	err = r.con.Unicast(&messages.SyncResponse{Chunks: chunks}, originID)
	if err != nil {
		log.Warn().Err(err).Msg("could not send sync response")
		return
	}

	r.metrics.MessageSent(metrics.EngineResponder, metrics.MessageSyncResponse)
	r.served.RequestServed(len(chunks), time.Since(started))
	log.Debug().Int("chunks", len(chunks)).Msg("sync request served")
}

func declineReason(err error) string {
	switch {
	case errors.Is(err, ErrRootMismatch):
		return reasonRootMismatch
	case errors.Is(err, ErrBadRequest):
		return reasonBadRequest
	case errors.Is(err, ErrMissingParent):
		return reasonMissingParent
	default:
		return reasonInternal
	}
}
