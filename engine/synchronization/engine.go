// Package synchronization keeps the local chain in sync with the rest of the
// network. The engine tracks which blocks are worth having in a block tree,
// requests the missing ones from the peers most likely to hold them, imports
// and finalizes what arrives, and broadcasts its own progress. A separate
// responder serves the catch-up requests of peers that are behind.
package synchronization

import (
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/Cardinal-Cryptography/alephsync/engine"
	"github.com/Cardinal-Cryptography/alephsync/model/chain"
	"github.com/Cardinal-Cryptography/alephsync/model/chainsync"
	"github.com/Cardinal-Cryptography/alephsync/model/messages"
	"github.com/Cardinal-Cryptography/alephsync/module"
	synccore "github.com/Cardinal-Cryptography/alephsync/module/chainsync"
	"github.com/Cardinal-Cryptography/alephsync/module/forest"
	"github.com/Cardinal-Cryptography/alephsync/module/metrics"
	"github.com/Cardinal-Cryptography/alephsync/module/session"
	"github.com/Cardinal-Cryptography/alephsync/network"
	"github.com/Cardinal-Cryptography/alephsync/state"
	"github.com/Cardinal-Cryptography/alephsync/utils/logging"
)

// defaultSyncStateQueueCapacity maximum capacity of sync state broadcasts queue
const defaultSyncStateQueueCapacity = 500

// defaultStateResponseQueueCapacity maximum capacity of state responses queue
const defaultStateResponseQueueCapacity = 500

// defaultSyncResponseQueueCapacity maximum capacity of sync responses queue
const defaultSyncResponseQueueCapacity = 500

// defaultRequiredBlockQueueCapacity maximum capacity of local block requirements queue
const defaultRequiredBlockQueueCapacity = 500

// requiredBlock is the internal event queued when the local node wants a
// block, holding the id and optionally a node known to possess it. It goes
// through the same queues as network traffic so that all block tree access
// stays on the processing loop.
type requiredBlock struct {
	id     chain.BlockID
	holder chain.NodeID
}

// Engine is the synchronization engine, responsible for tracking and closing
// the gap between the local chain and the chains of the other nodes. All
// block tree mutations happen on its single processing loop; the embedded
// responder answers peers' requests concurrently from the read-only chain
// state.
type Engine struct {
	unit    *engine.Unit
	log     zerolog.Logger
	metrics module.EngineMetrics
	me      chain.NodeID
	con     network.Conduit

	chainState state.ChainStatus
	importer   state.BlockImporter
	finalizer  state.Finalizer
	verifier   chain.Verifier
	sessions   session.BoundaryInfo

	forest    *forest.Forest
	core      *synccore.Core
	responder *Responder

	broadcastInterval time.Duration
	scanInterval      time.Duration
	broadcastLimiter  *rate.Limiter

	pendingSyncStates     engine.MessageStore // message store for *messages.SyncState
	pendingStateResponses engine.MessageStore // message store for *messages.SyncStateResponse
	pendingSyncResponses  engine.MessageStore // message store for *messages.SyncResponse
	pendingRequiredBlocks engine.MessageStore // message store for *requiredBlock
	messageHandler        *engine.MessageHandler

	finalizationNotifier engine.Notifier
}

var _ module.Engine = (*Engine)(nil)
var _ state.Consumer = (*Engine)(nil)

// New creates a new synchronization engine and registers it on the chain sync
// channel, together with the responder sharing the channel's conduit. The
// block tree is rooted at the current top finalized block and reloaded from
// the unfinalized blocks in storage once the engine starts.
func New(
	log zerolog.Logger,
	engineMetrics module.EngineMetrics,
	forestMetrics module.ForestMetrics,
	responderMetrics module.ResponderMetrics,
	net network.Network,
	me chain.NodeID,
	chainState state.ChainStatus,
	importer state.BlockImporter,
	finalizer state.Finalizer,
	verifier chain.Verifier,
	sessions session.BoundaryInfo,
	core *synccore.Core,
	opts ...OptionFunc,
) (*Engine, error) {

	config := DefaultConfig()
	for _, apply := range opts {
		apply(config)
	}

	top, err := chainState.TopFinalized()
	if err != nil {
		return nil, fmt.Errorf("could not read top finalized block: %w", err)
	}

	// broadcasts triggered by finalization share a budget well below the
	// periodic interval, so finalization bursts cannot flood the network
	cooldown := config.BroadcastInterval / 4
	if cooldown <= 0 {
		cooldown = time.Second
	}

	e := &Engine{
		unit:                 engine.NewUnit(),
		log:                  log.With().Str("engine", "synchronization").Logger(),
		metrics:              engineMetrics,
		me:                   me,
		chainState:           chainState,
		importer:             importer,
		finalizer:            finalizer,
		verifier:             verifier,
		sessions:             sessions,
		forest:               forest.NewForest(log, forestMetrics, top.ID()),
		core:                 core,
		broadcastInterval:    config.BroadcastInterval,
		scanInterval:         config.ScanInterval,
		broadcastLimiter:     rate.NewLimiter(rate.Every(cooldown), 1),
		finalizationNotifier: engine.NewNotifier(),
	}

	err = e.setupMessageHandler()
	if err != nil {
		return nil, fmt.Errorf("could not setup message handler: %w", err)
	}

	con, err := net.Register(network.ChannelChainSync, e)
	if err != nil {
		return nil, fmt.Errorf("could not register engine: %w", err)
	}
	e.con = con

	e.responder, err = NewResponder(
		log,
		engineMetrics,
		responderMetrics,
		NewRequestHandler(chainState, sessions),
		con,
		e.RequireBlock,
	)
	if err != nil {
		return nil, fmt.Errorf("could not create responder: %w", err)
	}

	return e, nil
}

// setupMessageHandler initializes the inbound queues and the MessageHandler
// sorting untrusted network messages and local block requirements into them.
func (e *Engine) setupMessageHandler() error {
	syncStates, err := engine.NewFifoMessageStore(defaultSyncStateQueueCapacity)
	if err != nil {
		return fmt.Errorf("failed to create queue for sync states: %w", err)
	}
	e.pendingSyncStates = syncStates

	stateResponses, err := engine.NewFifoMessageStore(defaultStateResponseQueueCapacity)
	if err != nil {
		return fmt.Errorf("failed to create queue for state responses: %w", err)
	}
	e.pendingStateResponses = stateResponses

	syncResponses, err := engine.NewFifoMessageStore(defaultSyncResponseQueueCapacity)
	if err != nil {
		return fmt.Errorf("failed to create queue for sync responses: %w", err)
	}
	e.pendingSyncResponses = syncResponses

	requiredBlocks, err := engine.NewFifoMessageStore(defaultRequiredBlockQueueCapacity)
	if err != nil {
		return fmt.Errorf("failed to create queue for required blocks: %w", err)
	}
	e.pendingRequiredBlocks = requiredBlocks

	e.messageHandler = engine.NewMessageHandler(
		e.log,
		engine.Pattern{
			Match: func(msg *engine.Message) bool {
				_, ok := msg.Payload.(*messages.SyncState)
				if ok {
					e.metrics.MessageReceived(metrics.EngineSynchronization, metrics.MessageSyncState)
				}
				return ok
			},
			Store: e.pendingSyncStates,
		},
		engine.Pattern{
			Match: func(msg *engine.Message) bool {
				_, ok := msg.Payload.(*messages.SyncStateResponse)
				if ok {
					e.metrics.MessageReceived(metrics.EngineSynchronization, metrics.MessageSyncStateResponse)
				}
				return ok
			},
			Store: e.pendingStateResponses,
		},
		engine.Pattern{
			Match: func(msg *engine.Message) bool {
				_, ok := msg.Payload.(*messages.SyncResponse)
				if ok {
					e.metrics.MessageReceived(metrics.EngineSynchronization, metrics.MessageSyncResponse)
				}
				return ok
			},
			Store: e.pendingSyncResponses,
		},
		engine.Pattern{
			Match: func(msg *engine.Message) bool {
				_, ok := msg.Payload.(*requiredBlock)
				return ok
			},
			Store: e.pendingRequiredBlocks,
		},
	)

	return nil
}

// Ready returns a ready channel that is closed once the engine has fully
// started: the block tree is reloaded from storage and both the processing
// loop and the responder are running.
func (e *Engine) Ready() <-chan struct{} {
	e.unit.Launch(e.processingLoop)
	return e.unit.Ready(func() {
		<-e.responder.Ready()
	})
}

// Done returns a done channel that is closed once the engine has fully
// stopped, including the responder draining its accepted requests.
func (e *Engine) Done() <-chan struct{} {
	return e.unit.Done(func() {
		<-e.responder.Done()
	})
}

// Process processes the given event from the node with the given origin ID in
// a non-blocking manner. Catch-up requests go to the responder, everything
// else is queued for the processing loop.
func (e *Engine) Process(channel network.Channel, originID chain.NodeID, event interface{}) error {
	switch event.(type) {
	case *messages.SyncRequest:
		return e.responder.Process(originID, event)
	case *messages.SyncState, *messages.SyncStateResponse, *messages.SyncResponse:
		return e.messageHandler.Process(originID, event)
	default:
		e.log.Warn().
			Str("channel", channel.String()).
			Str("origin_id", originID.String()).
			Str("msg_type", logging.Type(event)).
			Msg("discarding unknown message type")
		return nil
	}
}

// RequireBlock asks the engine to obtain the given block and everything on
// the branch leading down from it. The holder names a node known to possess
// the block, ZeroNodeID when no such node is known. Safe for concurrent use,
// returns immediately.
func (e *Engine) RequireBlock(id chain.BlockID, holder chain.NodeID) {
	err := e.messageHandler.Process(e.me, &requiredBlock{id: id, holder: holder})
	if err != nil {
		e.log.Fatal().Err(err).Msg("internal error queueing required block")
	}
}

// BlockImported implements state.Consumer. The engine updates its block tree
// at its own import sites, so the notification carries no extra information.
func (e *Engine) BlockImported(*chain.Header) {}

// BlockFinalized implements state.Consumer. The notification is processed
// asynchronously by the processing loop.
func (e *Engine) BlockFinalized(*chain.Header) {
	e.finalizationNotifier.Notify()
}

// processingLoop owns the block tree: every mutation of the forest happens
// here, triggered by queued messages, finalization events and the periodic
// broadcast and scan ticks.
func (e *Engine) processingLoop() {
	err := e.loadForest()
	if err != nil {
		e.log.Fatal().Err(err).Msg("could not reload block tree from storage")
	}

	broadcastChan := make(<-chan time.Time)
	if e.broadcastInterval > 0 {
		broadcast := time.NewTicker(e.broadcastInterval)
		broadcastChan = broadcast.C
		defer broadcast.Stop()
	}
	scan := time.NewTicker(e.scanInterval)
	defer scan.Stop()

	notifier := e.messageHandler.GetNotifier()
	finalized := e.finalizationNotifier.Channel()

EventLoop:
	for {
		// give the quit channel a priority to be selected
		select {
		case <-e.unit.Quit():
			break EventLoop
		default:
		}

		select {
		case <-e.unit.Quit():
			break EventLoop
		case <-finalized:
			err := e.onFinalizedBlock()
			if err != nil {
				e.log.Fatal().Err(err).Msg("could not process finalized block")
			}
		case <-notifier:
			err := e.processAvailableMessages()
			if err != nil {
				e.log.Fatal().Err(err).Msg("internal error processing queued messages")
			}
		case <-broadcastChan:
			err := e.broadcastState()
			if err != nil {
				e.log.Fatal().Err(err).Msg("could not broadcast state")
			}
		case <-scan.C:
			err := e.scanPending()
			if err != nil {
				e.log.Fatal().Err(err).Msg("could not scan pending blocks")
			}
		}
	}
}

// loadForest rebuilds the block tree from the imported but not yet finalized
// blocks in storage, so that a restart does not forget branches it already
// holds.
func (e *Engine) loadForest() error {
	loaded := 0
	queue := []chain.BlockID{e.forest.Root()}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		children, err := e.chainState.Children(id)
		if err != nil {
			return fmt.Errorf("could not fetch children of %v: %w", id, err)
		}
		for _, child := range children {
			_, err := e.forest.UpdateBody(child, chain.ZeroNodeID)
			if err != nil {
				return fmt.Errorf("could not restore block %v: %w", child.ID(), err)
			}
			queue = append(queue, child.ID())
			loaded++
		}
	}
	if loaded > 0 {
		e.log.Info().Int("blocks", loaded).Msg("restored unfinalized blocks")
	}
	return nil
}

// processAvailableMessages drains the inbound queues, handling every message
// on the processing loop. Local block requirements go first, they are cheap
// and make subsequent responses land on required branches.
func (e *Engine) processAvailableMessages() error {
	for {
		select {
		case <-e.unit.Quit():
			return nil
		default:
		}

		msg, ok := e.pendingRequiredBlocks.Get()
		if ok {
			event := msg.Payload.(*requiredBlock)
			err := e.onRequiredBlock(event.id, event.holder)
			if err != nil {
				return fmt.Errorf("processing required block failed: %w", err)
			}
			e.metrics.MessageHandled(metrics.EngineSynchronization, metrics.MessageInternalRequest)
			continue
		}

		msg, ok = e.pendingStateResponses.Get()
		if ok {
			err := e.onSyncStateResponse(msg.OriginID, msg.Payload.(*messages.SyncStateResponse))
			if err != nil {
				return fmt.Errorf("processing state response failed: %w", err)
			}
			e.metrics.MessageHandled(metrics.EngineSynchronization, metrics.MessageSyncStateResponse)
			continue
		}

		msg, ok = e.pendingSyncStates.Get()
		if ok {
			err := e.onSyncState(msg.OriginID, msg.Payload.(*messages.SyncState))
			if err != nil {
				return fmt.Errorf("processing sync state failed: %w", err)
			}
			e.metrics.MessageHandled(metrics.EngineSynchronization, metrics.MessageSyncState)
			continue
		}

		msg, ok = e.pendingSyncResponses.Get()
		if ok {
			err := e.onSyncResponse(msg.OriginID, msg.Payload.(*messages.SyncResponse))
			if err != nil {
				return fmt.Errorf("processing sync response failed: %w", err)
			}
			e.metrics.MessageHandled(metrics.EngineSynchronization, metrics.MessageSyncResponse)
			continue
		}

		// when there are no more messages in the queues, back to the loop to
		// wait for the next notification
		return nil
	}
}

// onRequiredBlock adds a locally required block to the block tree and marks
// the whole branch under it as required, so the scan starts requesting it.
func (e *Engine) onRequiredBlock(id chain.BlockID, holder chain.NodeID) error {
	changed, err := e.forest.UpdateBlockIdentifier(id, holder)
	if err != nil {
		if forest.IsVertexError(err) {
			e.log.Debug().Err(err).Uint64("block_number", id.Number).Msg("cannot track required block")
			return nil
		}
		return fmt.Errorf("could not add required block %v: %w", id, err)
	}
	e.requestChanged(changed)

	changed, err = e.forest.SetRequired(id)
	if err != nil {
		if forest.IsVertexError(err) {
			e.log.Debug().Err(err).Uint64("block_number", id.Number).Msg("cannot require block")
			return nil
		}
		return fmt.Errorf("could not require block %v: %w", id, err)
	}
	e.requestChanged(changed)
	return nil
}

// onSyncState answers the periodic state broadcast of a peer. Peers ahead of
// us hand us their top justification; peers behind get the justifications
// they need to make progress, up to one session ahead of their own.
func (e *Engine) onSyncState(originID chain.NodeID, msg *messages.SyncState) error {
	remote := msg.State
	local, err := e.chainState.TopFinalized()
	if err != nil {
		return fmt.Errorf("could not read top finalized block: %w", err)
	}

	remoteTop := remote.TopID()
	localTop := local.Header()
	remoteSession := e.sessions.SessionOf(remoteTop.Number)
	localSession := e.sessions.SessionOf(localTop.Number)

	switch {
	case remoteSession > localSession,
		remoteSession == localSession && remoteTop.Number >= localTop.Number:
		// the peer is at or ahead of us, its top justification is news
		changed, err := e.importJustification(originID, remote.TopJustification)
		if err != nil {
			return err
		}
		if changed {
			return e.tryFinalize()
		}
		return nil

	case remoteSession == localSession:
		// same session but behind us, our top justification is enough
		return e.sendStateResponse(originID, local.Unverified(), nil)

	case localSession == remoteSession+1:
		// one session ahead: the justification closing their session lets
		// them cross the boundary, ours tells them how far to go
		closing, err := e.closingJustification(remoteSession)
		if err != nil {
			return err
		}
		our := local.Unverified()
		return e.sendStateResponse(originID, closing, &our)

	default:
		// far ahead: two consecutive session-closing justifications, the
		// most the peer can verify before catching up
		closing, err := e.closingJustification(remoteSession)
		if err != nil {
			return err
		}
		next, err := e.closingJustification(remoteSession + 1)
		if err != nil {
			return err
		}
		return e.sendStateResponse(originID, closing, &next)
	}
}

// closingJustification fetches the justification of the last block of the
// session, which proves the session change to nodes still inside it.
func (e *Engine) closingJustification(id session.ID) (chain.UnverifiedJustification, error) {
	justification, err := e.chainState.FinalizedAt(e.sessions.LastBlockOfSession(id))
	if err != nil {
		return chain.UnverifiedJustification{}, fmt.Errorf("no justification closing session %d: %w", id, err)
	}
	return justification.Unverified(), nil
}

func (e *Engine) sendStateResponse(originID chain.NodeID, justification chain.UnverifiedJustification, maybe *chain.UnverifiedJustification) error {
	res := &messages.SyncStateResponse{
		Justification:      justification,
		MaybeJustification: maybe,
	}
	err := e.con.Unicast(res, originID)
	if err != nil {
		e.log.Warn().Err(err).Str("origin_id", originID.String()).Msg("sending state response failed")
		return nil
	}
	e.metrics.MessageSent(metrics.EngineSynchronization, metrics.MessageSyncStateResponse)
	return nil
}

// onSyncStateResponse imports the justifications a peer sent in reaction to
// our state broadcast.
func (e *Engine) onSyncStateResponse(originID chain.NodeID, msg *messages.SyncStateResponse) error {
	anyChanged := false
	for _, unverified := range msg.Justifications() {
		changed, err := e.importJustification(originID, unverified)
		if err != nil {
			return err
		}
		anyChanged = anyChanged || changed
	}
	if anyChanged {
		return e.tryFinalize()
	}
	return nil
}

// onSyncResponse feeds the chunks of a catch-up response into the block tree
// and the chain state: justifications first, then headers, then the block
// bodies in ascending order, each gated on its parent being imported.
func (e *Engine) onSyncResponse(originID chain.NodeID, msg *messages.SyncResponse) error {
	log := e.log.With().Str("origin_id", originID.String()).Logger()

	var headers []*chain.Header
	var blocks []*chain.Block
	anyChanged := false

	for _, chunk := range msg.Chunks {
		switch {
		case chunk.Justification != nil:
			changed, err := e.importJustification(originID, *chunk.Justification)
			if err != nil {
				return err
			}
			anyChanged = anyChanged || changed
		case len(chunk.Headers) > 0:
			headers = append(headers, chunk.Headers...)
		default:
			blocks = append(blocks, chunk.Blocks...)
		}
	}

	for _, header := range headers {
		changed, err := e.forest.UpdateHeader(header, originID)
		if err != nil {
			if forest.IsVertexError(err) {
				log.Debug().Err(err).Uint64("block_number", header.Number).Msg("rejected header")
				break
			}
			return fmt.Errorf("could not add header %v: %w", header.ID(), err)
		}
		e.requestChanged(changed)
		anyChanged = anyChanged || len(changed) > 0
	}

	for _, block := range blocks {
		id := block.Header.ID()
		if !e.forest.Importable(id) {
			log.Debug().Uint64("block_number", id.Number).Msg("skipping unimportable block")
			break
		}
		err := e.importer.ImportBlock(block)
		if err != nil {
			if errors.Is(err, state.ErrMissingParent) {
				log.Debug().Err(err).Uint64("block_number", id.Number).Msg("skipping block without imported parent")
				break
			}
			return fmt.Errorf("could not import block %v: %w", id, err)
		}
		changed, err := e.forest.UpdateBody(block.Header, originID)
		if err != nil {
			if forest.IsVertexError(err) {
				log.Debug().Err(err).Uint64("block_number", id.Number).Msg("rejected block")
				break
			}
			return fmt.Errorf("could not mark block %v imported: %w", id, err)
		}
		e.requestChanged(changed)
		e.core.Received(id)
		anyChanged = true
	}

	if anyChanged {
		return e.tryFinalize()
	}
	return nil
}

// importJustification verifies a justification received from a peer and adds
// it to the block tree, reporting whether the tree changed. Invalid and
// conflicting justifications are attributable to the peer, so they are logged
// and swallowed rather than escalated.
func (e *Engine) importJustification(originID chain.NodeID, unverified chain.UnverifiedJustification) (bool, error) {
	justification, err := e.verifier.Verify(unverified)
	if err != nil {
		e.log.Debug().Err(err).
			Str("origin_id", originID.String()).
			Uint64("block_number", unverified.ID().Number).
			Msg("invalid justification")
		return false, nil
	}

	changed, err := e.forest.UpdateJustification(justification, originID)
	if err != nil {
		if forest.IsVertexError(err) {
			e.log.Debug().Err(err).
				Str("origin_id", originID.String()).
				Uint64("block_number", unverified.ID().Number).
				Msg("rejected justification")
			return false, nil
		}
		return false, fmt.Errorf("could not add justification for %v: %w", unverified.ID(), err)
	}
	e.requestChanged(changed)
	return len(changed) > 0, nil
}

// requestChanged reconsiders the request status of every block whose tree
// knowledge changed: blocks that remain interesting are queued for
// requesting, blocks the tree dropped are forgotten.
func (e *Engine) requestChanged(changed forest.ChangeSet) {
	for _, id := range changed.IDs() {
		interest := e.forest.Interest(id)
		if interest.Level == forest.Uninterested {
			e.core.Drop(id)
			continue
		}
		e.core.RequestBlock(id)
	}
}

// tryFinalize extracts whatever prefix of the chain became fully known and
// justified, and hands it to the finalizer in order.
func (e *Engine) tryFinalize() error {
	units, err := e.forest.Finalize()
	if err != nil {
		return fmt.Errorf("could not finalize block tree: %w", err)
	}
	for _, unit := range units {
		err := e.finalizer.Finalize(unit.Justification)
		if err != nil {
			return fmt.Errorf("could not finalize block %v: %w", unit.ID, err)
		}
		e.log.Debug().Uint64("block_number", unit.ID.Number).Msg("finalized block")
	}
	return nil
}

// onFinalizedBlock reacts to the chain gaining a finalized block: request
// tracking below it is dropped and, within the rate budget, the new state is
// broadcast so lagging peers learn about it quickly.
func (e *Engine) onFinalizedBlock() error {
	top, err := e.chainState.TopFinalized()
	if err != nil {
		return fmt.Errorf("could not read top finalized block: %w", err)
	}
	e.core.Prune(top.Header())

	if e.broadcastLimiter.Allow() {
		e.sendState(top)
	}
	return nil
}

// broadcastState publishes the node's top justification to all peers.
func (e *Engine) broadcastState() error {
	top, err := e.chainState.TopFinalized()
	if err != nil {
		return fmt.Errorf("could not read top finalized block: %w", err)
	}
	e.sendState(top)
	return nil
}

func (e *Engine) sendState(top chain.Justification) {
	msg := &messages.SyncState{
		State: chainsync.State{TopJustification: top.Unverified()},
	}
	err := e.con.Publish(msg)
	if err != nil {
		e.log.Warn().Err(err).Msg("sending state broadcast failed")
		return
	}
	e.metrics.MessageSent(metrics.EngineSynchronization, metrics.MessageSyncState)
}

// scanPending requests the blocks whose requests are due, each from a random
// peer known to hold the block, or from everyone when no holder is known.
func (e *Engine) scanPending() error {
	top, err := e.chainState.TopFinalized()
	if err != nil {
		return fmt.Errorf("could not read top finalized block: %w", err)
	}
	ourState := chainsync.State{TopJustification: top.Unverified()}

	var errs *multierror.Error
	for _, id := range e.core.ScanPending(top.Header()) {
		interest := e.forest.Interest(id)
		if interest.Level == forest.Uninterested {
			e.core.Drop(id)
			continue
		}

		req := &messages.SyncRequest{Request: chainsync.Request{
			State:           ourState,
			Target:          id,
			BranchKnowledge: interest.BranchKnowledge,
		}}
		err := e.sendRequest(req, interest.KnowMost)
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("could not request block %v: %w", id, err))
			continue
		}
		e.log.Debug().
			Uint64("block_number", id.Number).
			Str("branch_knowledge", interest.BranchKnowledge.String()).
			Msg("block requested")
		e.core.RequestSent(id)
		e.metrics.MessageSent(metrics.EngineSynchronization, metrics.MessageSyncRequest)
	}

	if err := errs.ErrorOrNil(); err != nil {
		e.log.Warn().Err(err).Msg("sending block requests failed")
	}
	return nil
}

func (e *Engine) sendRequest(req *messages.SyncRequest, knowMost []chain.NodeID) error {
	if len(knowMost) == 0 {
		return e.con.Publish(req)
	}
	target := knowMost[rand.Intn(len(knowMost))]
	return e.con.Unicast(req, target)
}
