package chain

// UnverifiedJustification is the wire and storage form of a finality proof:
// a header claiming finality plus the proof bytes that still need checking.
type UnverifiedJustification struct {
	Header *Header
	Proof  []byte
}

// ID returns the identifier of the block this justification finalizes.
func (u UnverifiedJustification) ID() BlockID {
	return u.Header.ID()
}

// Justification is a finality proof whose validity has been established.
// Values are produced by a Verifier, read back from trusted storage, or
// minted for the genesis block; network input must never be turned into a
// Justification without passing verification.
type Justification struct {
	header *Header
	proof  []byte
}

// NewJustification packs an already-checked proof. The caller vouches for
// the proof's validity.
func NewJustification(header *Header, proof []byte) Justification {
	return Justification{header: header, proof: proof}
}

// Header returns the header of the finalized block.
func (j Justification) Header() *Header {
	return j.header
}

// ID returns the identifier of the finalized block.
func (j Justification) ID() BlockID {
	return j.header.ID()
}

// Unverified strips the verification guarantee for transmission or storage.
func (j Justification) Unverified() UnverifiedJustification {
	return UnverifiedJustification{Header: j.header, Proof: j.proof}
}

// Verifier checks finality proofs. Implementations wrap the BFT committee
// logic, which lives outside the sync layer.
type Verifier interface {
	// Verify checks the proof and, on success, upgrades the justification
	// to its verified form. The error describes why the proof is invalid.
	Verify(UnverifiedJustification) (Justification, error)
}
