// Package session provides pure arithmetic over the chain's fixed session
// length. Sessions partition block numbers into consecutive equal spans; the
// justification of the last block of a session is the handoff point peers use
// to bound how far ahead they serve each other.
package session

import (
	"fmt"
)

// ID numbers a session, starting from 0 at the chain root.
type ID uint64

// BoundaryInfo translates between block numbers and session boundaries.
type BoundaryInfo struct {
	period uint64
}

// NewBoundaryInfo creates boundary arithmetic for the given session length,
// expressed in blocks. The period must be positive.
func NewBoundaryInfo(period uint64) (BoundaryInfo, error) {
	if period == 0 {
		return BoundaryInfo{}, fmt.Errorf("session period must be positive")
	}
	return BoundaryInfo{period: period}, nil
}

// Period returns the session length in blocks.
func (b BoundaryInfo) Period() uint64 {
	return b.period
}

// SessionOf returns the session the given block number belongs to.
func (b BoundaryInfo) SessionOf(number uint64) ID {
	return ID(number / b.period)
}

// FirstBlockOfSession returns the number of the first block of the session.
func (b BoundaryInfo) FirstBlockOfSession(id ID) uint64 {
	return uint64(id) * b.period
}

// LastBlockOfSession returns the number of the last block of the session.
func (b BoundaryInfo) LastBlockOfSession(id ID) uint64 {
	return (uint64(id)+1)*b.period - 1
}
