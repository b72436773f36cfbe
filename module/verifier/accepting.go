// Package verifier provides implementations of the justification verifier.
// Production deployments plug in the committee-backed verifier of their
// consensus component; the sync layer only cares about the chain.Verifier
// contract.
package verifier

import (
	"fmt"

	"github.com/Cardinal-Cryptography/alephsync/model/chain"
)

// Accepting upgrades every well-formed justification without checking the
// proof. It backs tests and local development networks, where no committee
// exists to check signatures against. Never use it on a network with peers
// you do not control.
type Accepting struct{}

var _ chain.Verifier = Accepting{}

func NewAccepting() Accepting {
	return Accepting{}
}

func (Accepting) Verify(unverified chain.UnverifiedJustification) (chain.Justification, error) {
	if unverified.Header == nil {
		return chain.Justification{}, fmt.Errorf("justification without a header")
	}
	return chain.NewJustification(unverified.Header, unverified.Proof), nil
}
