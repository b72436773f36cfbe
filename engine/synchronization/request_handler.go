package synchronization

import (
	"errors"
	"fmt"

	"golang.org/x/exp/slices"

	"github.com/Cardinal-Cryptography/alephsync/model/chain"
	"github.com/Cardinal-Cryptography/alephsync/model/chainsync"
	"github.com/Cardinal-Cryptography/alephsync/module/session"
	"github.com/Cardinal-Cryptography/alephsync/state"
	"github.com/Cardinal-Cryptography/alephsync/storage"
)

var (
	// ErrRootMismatch means the branch named by the request does not pass
	// through the requester's top justified block, so no useful response
	// exists.
	ErrRootMismatch = errors.New("branch does not pass through the requester's top justified block")
	// ErrMissingParent means the parent of a block on the served branch is
	// unknown to us, leaving a hole we cannot fill.
	ErrMissingParent = errors.New("parent of a block on the served branch is unknown")
	// ErrBadRequest means the request's branch knowledge does not lie on the
	// branch between the target and the requester's top justified block.
	ErrBadRequest = errors.New("branch knowledge does not match the requested branch")
)

// sendMode says which parts of each visited block belong in the response.
type sendMode uint8

const (
	// sendBodies sends blocks only. The default: the requester tracks the
	// headers between its branch knowledge and the target already, and
	// blocks carry their own headers anyway.
	sendBodies sendMode = iota
	// sendEverything additionally sends headers, for the part of the branch
	// below the lowest id the requester knows.
	sendEverything
	// sendJustifications sends justifications only, for the part of the
	// branch the requester has already imported.
	sendJustifications
)

// chunkHead is the block the next segment of the walk starts from, together
// with its justification when it has one.
type chunkHead struct {
	header        *chain.Header
	justification *chain.UnverifiedJustification
}

func headFromStatus(status state.BlockStatus) chunkHead {
	head := chunkHead{header: status.Header}
	if status.Kind == state.StatusJustified {
		unverified := status.Justification.Unverified()
		head.justification = &unverified
	}
	return head
}

func justifiedHead(justification chain.Justification) chunkHead {
	unverified := justification.Unverified()
	return chunkHead{header: justification.Header(), justification: &unverified}
}

func (h chunkHead) id() chain.BlockID {
	return h.header.ID()
}

// segment covers the stretch of the branch from one justified block
// (exclusive) up to and including the next one. Headers and blocks are
// collected walking down and flipped to ascending order when the segment is
// flushed into chunks.
type segment struct {
	justification *chain.UnverifiedJustification
	headers       []*chain.Header
	blocks        []*chain.Block
}

func (s *segment) chunks() []chainsync.Chunk {
	var chunks []chainsync.Chunk
	if s.justification != nil {
		chunks = append(chunks, chainsync.JustificationChunk(*s.justification))
	}
	if len(s.headers) > 0 {
		slices.Reverse(s.headers)
		chunks = append(chunks, chainsync.HeadersChunk(s.headers))
	}
	if len(s.blocks) > 0 {
		slices.Reverse(s.blocks)
		chunks = append(chunks, chainsync.BlocksChunk(s.blocks))
	}
	return chunks
}

// RequestHandler computes responses to catch-up requests against the local
// chain state. It is stateless and safe for concurrent use by multiple
// workers.
type RequestHandler struct {
	chain    state.ChainStatus
	sessions session.BoundaryInfo
}

func NewRequestHandler(chainState state.ChainStatus, sessions session.BoundaryInfo) *RequestHandler {
	return &RequestHandler{
		chain:    chainState,
		sessions: sessions,
	}
}

// upperLimit is the highest block we are willing to serve to a node whose
// top justified block is the given id: the end of the session after the one
// the requester is in. Serving further ahead is pointless, the requester
// cannot verify the justifications of later sessions yet.
func (h *RequestHandler) upperLimit(to chain.BlockID) uint64 {
	return h.sessions.LastBlockOfSession(h.sessions.SessionOf(to.Number) + 1)
}

// Response computes the chunks answering the request, in oldest-first order.
// The boolean is true when the target is fully unknown to us, in which case
// the caller should consider fetching the target itself. A nil chunk list
// with a false boolean and a nil error means there is nothing to send.
//
// Expected errors during normal operations:
//   - ErrRootMismatch if the requested branch does not reach the requester's
//     top justified block
//   - ErrBadRequest if the branch knowledge lies outside the requested branch
//   - ErrMissingParent if the branch has a hole in our storage
func (h *RequestHandler) Response(request chainsync.Request) ([]chainsync.Chunk, bool, error) {

	to := request.State.TopID()
	ourTop, err := h.chain.TopFinalized()
	if err != nil {
		return nil, false, fmt.Errorf("could not read top finalized: %w", err)
	}

	// requests too far into the future are not served at all
	upperLimit := h.upperLimit(to)
	if request.Target.Number > upperLimit {
		return nil, false, nil
	}

	status, err := h.chain.StatusOf(request.Target)
	if err != nil {
		return nil, false, fmt.Errorf("could not check status of %v: %w", request.Target, err)
	}
	if status.Kind == state.StatusUnknown {
		return nil, true, nil
	}

	head, err := h.adjustHead(headFromStatus(status), ourTop, upperLimit)
	if err != nil {
		return nil, false, err
	}

	chunks, err := h.walk(head, to, request.BranchKnowledge)
	if err != nil {
		return nil, false, err
	}
	return chunks, false, nil
}

// adjustHead moves the start of the walk up to our top finalized block when
// the target sits at or below it. The requester then catches up along the
// finalized chain instead of whatever stale branch it asked about. When even
// our top finalized block exceeds what the requester can verify, the walk
// starts at the end of the session after the requester's instead.
func (h *RequestHandler) adjustHead(head chunkHead, ourTop chain.Justification, upperLimit uint64) (chunkHead, error) {
	ourTopNumber := ourTop.Header().Number

	if head.id().Number > ourTopNumber {
		return head, nil
	}
	if upperLimit > ourTopNumber {
		return justifiedHead(ourTop), nil
	}

	boundary, err := h.chain.FinalizedAt(upperLimit)
	if errors.Is(err, storage.ErrNotFound) {
		// everything up to our top finalized block carries a justification,
		// and the upper limit is below that top here
		return chunkHead{}, fmt.Errorf("no justification finalizing block %d: %w", upperLimit, state.ErrBadState)
	}
	if err != nil {
		return chunkHead{}, fmt.Errorf("could not fetch justification at %d: %w", upperLimit, err)
	}
	return justifiedHead(boundary), nil
}

// walk descends from the head towards the requester's top justified block,
// splitting the branch into segments at every justified block on the way.
// Segments are collected newest first and reversed at the end, so the
// response replays the chain in the order the requester must apply it.
func (h *RequestHandler) walk(head chunkHead, to chain.BlockID, knowledge chainsync.BranchKnowledge) ([]chainsync.Chunk, error) {

	mode := sendBodies
	metKnowledge := false
	var segments []segment

	for head.id() != to {
		seg := segment{justification: head.justification}

		for segmentDone := false; !segmentDone; {
			current := head.header
			currentID := current.ID()

			if currentID == to {
				break
			}
			if currentID.Number <= to.Number {
				return nil, fmt.Errorf("%v is not an ancestor of %v: %w", to, currentID, ErrRootMismatch)
			}

			// crossing the requester's knowledge changes what the blocks
			// below it need: everything below their lowest known id,
			// nothing anymore once the rest is already imported
			if currentID == knowledge.ID {
				metKnowledge = true
				switch knowledge.Kind {
				case chainsync.KnowledgeLowestID:
					mode = sendEverything
				case chainsync.KnowledgeTopImported:
					mode = sendJustifications
				}
			}

			switch {
			case mode == sendJustifications:
			case mode == sendEverything && head.justification == nil:
				block, err := h.fetchBlock(currentID)
				if err != nil {
					return nil, err
				}
				seg.headers = append(seg.headers, current)
				seg.blocks = append(seg.blocks, block)
			default:
				// a justified head needs no separate header, the
				// justification carries it
				block, err := h.fetchBlock(currentID)
				if err != nil {
					return nil, err
				}
				seg.blocks = append(seg.blocks, block)
			}

			parentID, ok := current.ParentID()
			if !ok {
				return nil, fmt.Errorf("block %v has no parent above %v: %w", currentID, to, state.ErrBadState)
			}
			parent, err := h.chain.StatusOf(parentID)
			if err != nil {
				return nil, fmt.Errorf("could not check status of %v: %w", parentID, err)
			}
			switch parent.Kind {
			case state.StatusJustified:
				// a justified block starts its own segment so that its
				// justification rides along with the blocks above it
				head = justifiedHead(parent.Justification)
				segmentDone = true
			case state.StatusPresent:
				head = chunkHead{header: parent.Header}
			default:
				return nil, fmt.Errorf("parent %v of %v: %w", parentID, currentID, ErrMissingParent)
			}
		}

		segments = append(segments, seg)
	}

	// knowledge that lies outside the branch we walked would have produced a
	// response the requester cannot use, better to reject it outright
	if !metKnowledge && knowledge.ID != to && knowledge.ID.Number > to.Number {
		return nil, fmt.Errorf("%v not on the branch up to %v: %w", knowledge, to, ErrBadRequest)
	}

	var chunks []chainsync.Chunk
	for i := len(segments) - 1; i >= 0; i-- {
		chunks = append(chunks, segments[i].chunks()...)
	}
	return chunks, nil
}

func (h *RequestHandler) fetchBlock(id chain.BlockID) (*chain.Block, error) {
	block, err := h.chain.Block(id)
	if errors.Is(err, storage.ErrNotFound) {
		// blocks we hold the header of always carry a body as well, a hole
		// means state corruption
		return nil, fmt.Errorf("body of %v vanished: %w", id, state.ErrBadState)
	}
	if err != nil {
		return nil, fmt.Errorf("could not fetch block %v: %w", id, err)
	}
	return block, nil
}
