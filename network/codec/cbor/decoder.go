package cbor

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Decoder implements a stream decoder for CBOR.
type Decoder struct {
	dec *cbor.Decoder
}

// Decode will decode the next message from the stream.
func (d *Decoder) Decode() (interface{}, error) {

	var data []byte
	err := d.dec.Decode(&data)
	if err != nil {
		return nil, fmt.Errorf("could not read envelope from stream: %w", err)
	}

	return decode(data)
}
