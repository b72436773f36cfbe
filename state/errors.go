package state

import (
	"errors"
)

var (
	// ErrMissingParent indicates an attempt to import a block whose parent
	// body is not imported yet.
	ErrMissingParent = errors.New("parent block not imported")

	// ErrBadState indicates that the chain state does not hold what the
	// operation requires it to hold, for example finalizing a block that does
	// not extend the top finalized block. It signals a bug in the caller or
	// corrupted storage and is not recoverable.
	ErrBadState = errors.New("chain state does not match expectations")
)
