package synchronization

import (
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/Cardinal-Cryptography/alephsync/model/chain"
	"github.com/Cardinal-Cryptography/alephsync/model/chainsync"
	"github.com/Cardinal-Cryptography/alephsync/module/session"
	"github.com/Cardinal-Cryptography/alephsync/state"
	"github.com/Cardinal-Cryptography/alephsync/storage"
	"github.com/Cardinal-Cryptography/alephsync/utils/unittest"
)

// fakeChain is a hand-controlled ChainStatus. Unlike the real chain state it
// lets tests justify an arbitrary subset of blocks, leave holes in storage,
// and keep unfinalized blocks around, so every branch of the request handler
// can be reached.
type fakeChain struct {
	mu        sync.Mutex
	blocks    map[chain.Hash]*chain.Block
	justified map[chain.Hash]chain.Justification
	byNumber  map[uint64]chain.Hash
	top       chain.BlockID
}

var _ state.ChainStatus = (*fakeChain)(nil)

func newFakeChain(genesis *chain.Block) *fakeChain {
	f := &fakeChain{
		blocks:    make(map[chain.Hash]*chain.Block),
		justified: make(map[chain.Hash]chain.Justification),
		byNumber:  make(map[uint64]chain.Hash),
	}
	f.add(genesis)
	f.justify(genesis.Header)
	return f
}

func (f *fakeChain) add(block *chain.Block) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blocks[block.Header.Hash] = block
}

// justify marks the block as justified and finalized at its number.
func (f *fakeChain) justify(header *chain.Header) chain.Justification {
	f.mu.Lock()
	defer f.mu.Unlock()
	justification := unittest.JustificationFixture(header)
	f.justified[header.Hash] = justification
	f.byNumber[header.Number] = header.Hash
	if header.Number >= f.top.Number {
		f.top = header.ID()
	}
	return justification
}

func (f *fakeChain) forget(id chain.BlockID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.blocks, id.Hash)
}

func (f *fakeChain) StatusOf(id chain.BlockID) (state.BlockStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if justification, ok := f.justified[id.Hash]; ok && justification.Header().Number == id.Number {
		return state.Justified(justification), nil
	}
	if block, ok := f.blocks[id.Hash]; ok && block.Header.Number == id.Number {
		return state.Present(block.Header), nil
	}
	return state.Unknown(), nil
}

func (f *fakeChain) FinalizedAt(number uint64) (chain.Justification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	hash, ok := f.byNumber[number]
	if !ok {
		return chain.Justification{}, storage.ErrNotFound
	}
	return f.justified[hash], nil
}

func (f *fakeChain) TopFinalized() (chain.Justification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.justified[f.top.Hash], nil
}

func (f *fakeChain) Block(id chain.BlockID) (*chain.Block, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	block, ok := f.blocks[id.Hash]
	if !ok || block.Header.Number != id.Number {
		return nil, storage.ErrNotFound
	}
	return block, nil
}

func (f *fakeChain) Header(id chain.BlockID) (*chain.Header, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	block, ok := f.blocks[id.Hash]
	if !ok || block.Header.Number != id.Number {
		return nil, storage.ErrNotFound
	}
	return block.Header, nil
}

func (f *fakeChain) Children(id chain.BlockID) ([]*chain.Header, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.blocks[id.Hash]; !ok {
		return nil, storage.ErrNotFound
	}
	children := []*chain.Header{}
	for _, block := range f.blocks {
		if block.Header.ParentHash == id.Hash && block.Header.Number == id.Number+1 {
			children = append(children, block.Header)
		}
	}
	return children, nil
}

// linearChain builds a chain of length blocks above genesis, imports all of
// them, and justifies exactly the given numbers. blocks[k] has number k.
func linearChain(length int, justified ...uint64) (*fakeChain, []*chain.Block) {
	genesis := &chain.Block{
		Header:  unittest.GenesisHeaderFixture(),
		Payload: unittest.PayloadFixture(0),
	}
	blocks := append([]*chain.Block{genesis}, unittest.ChainFixtureFrom(length, genesis.Header)...)
	fc := newFakeChain(genesis)
	for _, block := range blocks[1:] {
		fc.add(block)
	}
	for _, number := range justified {
		fc.justify(blocks[number].Header)
	}
	return fc, blocks
}

func requestFor(blocks []*chain.Block, to uint64, target chain.BlockID, knowledge chainsync.BranchKnowledge) chainsync.Request {
	return chainsync.Request{
		State:           unittest.StateFixture(blocks[to].Header),
		Target:          target,
		BranchKnowledge: knowledge,
	}
}

func sessionPeriod(t require.TestingT, period uint64) session.BoundaryInfo {
	info, err := session.NewBoundaryInfo(period)
	require.NoError(t, err)
	return info
}

// trace renders a response as a compact string like "J4 B2 B3 B4", one token
// per justification, header or block, in stream order.
func trace(chunks []chainsync.Chunk) string {
	parts := []string{}
	for _, chunk := range chunks {
		switch {
		case chunk.Justification != nil:
			parts = append(parts, fmt.Sprintf("J%d", chunk.Justification.Header.Number))
		case len(chunk.Headers) > 0:
			for _, header := range chunk.Headers {
				parts = append(parts, fmt.Sprintf("H%d", header.Number))
			}
		default:
			for _, block := range chunk.Blocks {
				parts = append(parts, fmt.Sprintf("B%d", block.Header.Number))
			}
		}
	}
	return strings.Join(parts, " ")
}

// TestResponseServesSparseTrunk catches a requester up along a chain where
// only some blocks are justified. Each justified block heads a segment:
// first its justification, then the bodies leading up to it, oldest first.
func TestResponseServesSparseTrunk(t *testing.T) {
	fc, blocks := linearChain(10, 1, 4, 8, 10)
	handler := NewRequestHandler(fc, sessionPeriod(t, 100))

	request := requestFor(blocks, 1, blocks[10].ID(), chainsync.TopImported(blocks[1].ID()))
	chunks, fullyUnknown, err := handler.Response(request)
	require.NoError(t, err)
	require.False(t, fullyUnknown)
	require.Equal(t, "J4 B2 B3 B4 J8 B5 B6 B7 B8 J10 B9 B10", trace(chunks))

	// spot-check that the chunks carry the actual chain data
	require.Equal(t, blocks[4].Header, chunks[0].Justification.Header)
	require.Equal(t, blocks[2], chunks[1].Blocks[0])
}

// TestResponseSendsHeadersForUnknownBranch requests with branch knowledge
// naming the lowest known block. Everything at or below that block gets its
// header sent along, except blocks already covered by a justification.
func TestResponseSendsHeadersForUnknownBranch(t *testing.T) {
	fc, blocks := linearChain(10, 1, 4, 8, 10)
	handler := NewRequestHandler(fc, sessionPeriod(t, 100))

	request := requestFor(blocks, 1, blocks[10].ID(), chainsync.LowestID(blocks[6].ID()))
	chunks, fullyUnknown, err := handler.Response(request)
	require.NoError(t, err)
	require.False(t, fullyUnknown)
	require.Equal(t, "J4 H2 H3 B2 B3 B4 J8 H5 H6 B5 B6 B7 B8 J10 B9 B10", trace(chunks))
}

// TestResponseSkipsImportedBodies requests with branch knowledge naming the
// top imported block. Bodies at or below it are omitted, justifications are
// still sent so the requester can finalize what it already holds.
func TestResponseSkipsImportedBodies(t *testing.T) {
	fc, blocks := linearChain(10, 1, 4, 8, 10)
	handler := NewRequestHandler(fc, sessionPeriod(t, 100))

	request := requestFor(blocks, 1, blocks[10].ID(), chainsync.TopImported(blocks[6].ID()))
	chunks, fullyUnknown, err := handler.Response(request)
	require.NoError(t, err)
	require.False(t, fullyUnknown)
	require.Equal(t, "J4 J8 B7 B8 J10 B9 B10", trace(chunks))
}

// TestResponseEmptyWhenCaughtUp serves a requester whose top justification
// already matches ours. Nothing needs to be sent, not even a redundant
// justification for the top block.
func TestResponseEmptyWhenCaughtUp(t *testing.T) {
	fc, blocks := linearChain(10, 1, 4, 8, 10)
	handler := NewRequestHandler(fc, sessionPeriod(t, 100))

	request := requestFor(blocks, 10, blocks[10].ID(), chainsync.TopImported(blocks[10].ID()))
	chunks, fullyUnknown, err := handler.Response(request)
	require.NoError(t, err)
	require.False(t, fullyUnknown)
	require.Empty(t, chunks)
}

// TestResponseUnfinalizedTarget targets a block above our top finalized one.
// The response covers the finalized prefix with justifications and continues
// with bare bodies up to the target.
func TestResponseUnfinalizedTarget(t *testing.T) {
	fc, blocks := linearChain(10, 1, 4)
	handler := NewRequestHandler(fc, sessionPeriod(t, 100))

	request := requestFor(blocks, 1, blocks[10].ID(), chainsync.TopImported(blocks[1].ID()))
	chunks, fullyUnknown, err := handler.Response(request)
	require.NoError(t, err)
	require.False(t, fullyUnknown)
	require.Equal(t, "J4 B2 B3 B4 B5 B6 B7 B8 B9 B10", trace(chunks))
}

// TestResponseDeclinesTargetBeyondSessionLimit refuses targets more than one
// session ahead of the requester's top justification. A requester in session
// zero cannot ask past the last block of session one.
func TestResponseDeclinesTargetBeyondSessionLimit(t *testing.T) {
	justified := make([]uint64, 0, 25)
	for number := uint64(1); number <= 25; number++ {
		justified = append(justified, number)
	}
	fc, blocks := linearChain(25, justified...)
	handler := NewRequestHandler(fc, sessionPeriod(t, 10))

	request := requestFor(blocks, 0, blocks[20].ID(), chainsync.TopImported(blocks[0].ID()))
	chunks, fullyUnknown, err := handler.Response(request)
	require.NoError(t, err)
	require.False(t, fullyUnknown)
	require.Empty(t, chunks)
}

// TestResponseCapsAtSessionLimit serves a request whose target sits below the
// session limit while our chain is finalized far beyond it. The head of the
// response is clamped to the block finalized at the limit, so the requester
// never receives data past the session after its own.
func TestResponseCapsAtSessionLimit(t *testing.T) {
	justified := make([]uint64, 0, 25)
	for number := uint64(1); number <= 25; number++ {
		justified = append(justified, number)
	}
	fc, blocks := linearChain(25, justified...)
	handler := NewRequestHandler(fc, sessionPeriod(t, 10))

	request := requestFor(blocks, 0, blocks[3].ID(), chainsync.TopImported(blocks[0].ID()))
	chunks, fullyUnknown, err := handler.Response(request)
	require.NoError(t, err)
	require.False(t, fullyUnknown)

	expected := make([]string, 0, 19)
	for number := 1; number <= 19; number++ {
		expected = append(expected, fmt.Sprintf("J%d B%d", number, number))
	}
	require.Equal(t, strings.Join(expected, " "), trace(chunks))
}

// TestResponseReportsUnknownTarget asks for a block we have never heard of.
// No error, no data, just a signal for the caller to go looking for it.
func TestResponseReportsUnknownTarget(t *testing.T) {
	fc, blocks := linearChain(10, 1, 4, 8, 10)
	handler := NewRequestHandler(fc, sessionPeriod(t, 100))

	target := chain.BlockID{Hash: unittest.HashFixture(), Number: 5}
	request := requestFor(blocks, 1, target, chainsync.TopImported(blocks[1].ID()))
	chunks, fullyUnknown, err := handler.Response(request)
	require.NoError(t, err)
	require.True(t, fullyUnknown)
	require.Empty(t, chunks)
}

// TestResponseRootMismatch walks down from the target and never arrives at
// the requester's top justification, because that block is not on our chain.
func TestResponseRootMismatch(t *testing.T) {
	justified := make([]uint64, 0, 10)
	for number := uint64(1); number <= 10; number++ {
		justified = append(justified, number)
	}
	fc, blocks := linearChain(10, justified...)
	handler := NewRequestHandler(fc, sessionPeriod(t, 100))

	foreign := &chain.Header{
		Hash:       unittest.HashFixture(),
		Number:     5,
		ParentHash: unittest.HashFixture(),
	}
	request := chainsync.Request{
		State:           unittest.StateFixture(foreign),
		Target:          blocks[10].ID(),
		BranchKnowledge: chainsync.TopImported(foreign.ID()),
	}
	chunks, fullyUnknown, err := handler.Response(request)
	require.ErrorIs(t, err, ErrRootMismatch)
	require.False(t, fullyUnknown)
	require.Empty(t, chunks)
}

// TestResponseRejectsForeignKnowledge declares branch knowledge naming a
// block that is not on the requested branch. The walk never encounters it,
// which exposes the request as malformed.
func TestResponseRejectsForeignKnowledge(t *testing.T) {
	fc, blocks := linearChain(10, 1, 10)
	handler := NewRequestHandler(fc, sessionPeriod(t, 100))

	foreign := chain.BlockID{Hash: unittest.HashFixture(), Number: 6}
	request := requestFor(blocks, 1, blocks[10].ID(), chainsync.LowestID(foreign))
	chunks, fullyUnknown, err := handler.Response(request)
	require.ErrorIs(t, err, ErrBadRequest)
	require.False(t, fullyUnknown)
	require.Empty(t, chunks)
}

// TestResponseToleratesKnowledgeBelowRequester allows branch knowledge below
// the requester's own top justification. The walk cannot meet it, but the
// knowledge is vacuous rather than malformed, so the request is served.
func TestResponseToleratesKnowledgeBelowRequester(t *testing.T) {
	fc, blocks := linearChain(10, 1, 4, 8, 10)
	handler := NewRequestHandler(fc, sessionPeriod(t, 100))

	below := chain.BlockID{Hash: unittest.HashFixture(), Number: 0}
	request := requestFor(blocks, 1, blocks[10].ID(), chainsync.LowestID(below))
	chunks, fullyUnknown, err := handler.Response(request)
	require.NoError(t, err)
	require.False(t, fullyUnknown)
	require.Equal(t, "J4 B2 B3 B4 J8 B5 B6 B7 B8 J10 B9 B10", trace(chunks))
}

// TestResponseMissingParent hits a hole in our storage while walking down the
// branch. The handler reports it instead of serving a disconnected response.
func TestResponseMissingParent(t *testing.T) {
	fc, blocks := linearChain(10, 1, 10)
	fc.forget(blocks[5].ID())
	handler := NewRequestHandler(fc, sessionPeriod(t, 100))

	request := requestFor(blocks, 1, blocks[10].ID(), chainsync.TopImported(blocks[1].ID()))
	chunks, fullyUnknown, err := handler.Response(request)
	require.ErrorIs(t, err, ErrMissingParent)
	require.False(t, fullyUnknown)
	require.Empty(t, chunks)
}

// TestResponseBadStateAtSessionLimit clamps the head to the session limit,
// but nothing is finalized at that number. The chain state broke its own
// invariant, which surfaces as an internal error rather than a bad request.
func TestResponseBadStateAtSessionLimit(t *testing.T) {
	fc, blocks := linearChain(25, 25)
	handler := NewRequestHandler(fc, sessionPeriod(t, 10))

	request := requestFor(blocks, 0, blocks[3].ID(), chainsync.TopImported(blocks[0].ID()))
	chunks, fullyUnknown, err := handler.Response(request)
	require.ErrorIs(t, err, state.ErrBadState)
	require.False(t, fullyUnknown)
	require.Empty(t, chunks)
}

// TestResponseLongChain runs a catch-up across many sparse segments and
// checks the exact stream layout programmatically.
func TestResponseLongChain(t *testing.T) {
	justified := []uint64{}
	for number := uint64(7); number <= 120; number += 7 {
		justified = append(justified, number)
	}
	justified = append(justified, 120)
	fc, blocks := linearChain(120, justified...)
	handler := NewRequestHandler(fc, sessionPeriod(t, 1000))

	request := requestFor(blocks, 7, blocks[120].ID(), chainsync.TopImported(blocks[7].ID()))
	chunks, fullyUnknown, err := handler.Response(request)
	require.NoError(t, err)
	require.False(t, fullyUnknown)

	expected := []string{}
	previous := uint64(7)
	for _, number := range []uint64{14, 21, 28, 35, 42, 49, 56, 63, 70, 77, 84, 91, 98, 105, 112, 119, 120} {
		expected = append(expected, fmt.Sprintf("J%d", number))
		for body := previous + 1; body <= number; body++ {
			expected = append(expected, fmt.Sprintf("B%d", body))
		}
		previous = number
	}
	require.Equal(t, strings.Join(expected, " "), trace(chunks))
}

// TestResponseRapid serves randomized requests over chains with random
// justification patterns and checks the response contents against the
// closed-form expectation for each branch knowledge kind.
func TestResponseRapid(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		length := rapid.IntRange(2, 40).Draw(t, "length")

		justified := []uint64{}
		justifiedSet := map[uint64]bool{}
		for number := 1; number < length; number++ {
			if rapid.Bool().Draw(t, fmt.Sprintf("justified_%d", number)) {
				justified = append(justified, uint64(number))
				justifiedSet[uint64(number)] = true
			}
		}
		justified = append(justified, uint64(length))
		justifiedSet[uint64(length)] = true
		fc, blocks := linearChain(length, justified...)
		handler := NewRequestHandler(fc, sessionPeriod(t, 1_000_000))

		// the requester's top justification is justified on our chain too
		candidates := append([]uint64{0}, justified...)
		to := candidates[rapid.IntRange(0, len(candidates)-1).Draw(t, "to")]

		point := uint64(rapid.IntRange(int(to), length).Draw(t, "knowledge"))
		knowledge := chainsync.TopImported(blocks[point].ID())
		if rapid.Bool().Draw(t, "lowest_id") {
			knowledge = chainsync.LowestID(blocks[point].ID())
		}

		request := requestFor(blocks, to, blocks[length].ID(), knowledge)
		chunks, fullyUnknown, err := handler.Response(request)
		require.NoError(t, err)
		require.False(t, fullyUnknown)

		justificationNumbers := []uint64{}
		headerNumbers := []uint64{}
		blockNumbers := []uint64{}
		for _, chunk := range chunks {
			switch {
			case chunk.Justification != nil:
				justificationNumbers = append(justificationNumbers, chunk.Justification.Header.Number)
			case len(chunk.Headers) > 0:
				for _, header := range chunk.Headers {
					headerNumbers = append(headerNumbers, header.Number)
				}
			default:
				for _, block := range chunk.Blocks {
					blockNumbers = append(blockNumbers, block.Header.Number)
				}
			}
		}

		// justifications: every justified number above the requester's top
		expectedJustifications := []uint64{}
		for _, number := range justified {
			if number > to {
				expectedJustifications = append(expectedJustifications, number)
			}
		}
		require.Equal(t, expectedJustifications, justificationNumbers)

		// bodies: everything above the top imported block, or everything
		// above the requester's top when the branch is largely unknown
		bodiesAbove := point
		if knowledge.Kind == chainsync.KnowledgeLowestID {
			bodiesAbove = to
		}
		expectedBlocks := []uint64{}
		for number := bodiesAbove + 1; number <= uint64(length); number++ {
			expectedBlocks = append(expectedBlocks, number)
		}
		require.Equal(t, expectedBlocks, blockNumbers)

		// headers: only for the unknown part of the branch, and only where
		// no justification already carries the header
		expectedHeaders := []uint64{}
		if knowledge.Kind == chainsync.KnowledgeLowestID {
			for number := to + 1; number <= point; number++ {
				if !justifiedSet[number] {
					expectedHeaders = append(expectedHeaders, number)
				}
			}
		}
		require.Equal(t, expectedHeaders, headerNumbers)
	})
}
