package forest

import (
	"errors"
	"fmt"

	"github.com/Cardinal-Cryptography/alephsync/model/chain"
)

// Expected errors, caused by data from untrusted peers. The caller discards
// the offending update and moves on; nothing is retried.
var (
	// ErrParentShouldBeImported is returned by UpdateBody when the parent
	// body has not been imported yet. Bodies must arrive in ancestor order.
	ErrParentShouldBeImported = errors.New("parent body should be imported first")
)

// Invariant violations. Any of these indicates a bug in the forest itself or
// a collaborator breaking its contract; they are unrecoverable for the sync
// component and must not be swallowed.
var (
	ErrMissingVertex             = errors.New("vertex that should exist is missing")
	ErrMissingChildren           = errors.New("children set that should exist is missing")
	ErrRootPruned                = errors.New("attempted to prune the finalized root")
	ErrShouldBePruned            = errors.New("encountered an ancestor that should have been pruned")
	ErrUnknownIDPresent          = errors.New("id that should be unknown is already tracked")
	ErrInfiniteLoop              = errors.New("traversal exceeded its bound")
	ErrTrunkMissingJustification = errors.New("trunk vertex has no justification")
	ErrAmbiguousTrunk            = errors.New("multiple fully known children of the same trunk vertex")
)

// VertexError means a peer supplied data that contradicts what is already
// known about a block, e.g. a header that differs from the one embedded in
// the block's justification. The contribution is discarded; the peer may be
// penalized by the caller.
type VertexError struct {
	ID     chain.BlockID
	Reason string
}

func (e VertexError) Error() string {
	return fmt.Sprintf("conflicting data for block %v: %s", e.ID, e.Reason)
}

// IsVertexError reports whether the error is a data conflict, as opposed to
// an invariant violation.
func IsVertexError(err error) bool {
	var vertexError VertexError
	return errors.As(err, &vertexError)
}
