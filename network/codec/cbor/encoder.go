package cbor

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Encoder implements a stream encoder for CBOR.
type Encoder struct {
	enc *cbor.Encoder
}

// Encode writes the envelope of the next message to the stream.
func (e *Encoder) Encode(v interface{}) error {

	data, err := encode(v)
	if err != nil {
		return fmt.Errorf("could not pack envelope: %w", err)
	}

	err = e.enc.Encode(data)
	if err != nil {
		return fmt.Errorf("could not write envelope to stream: %w", err)
	}

	return nil
}
