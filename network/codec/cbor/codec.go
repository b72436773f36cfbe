// Package cbor implements the network codec. Every message is packed into
// an envelope: one byte naming the message type followed by the CBOR
// encoding of the message. On a stream, each envelope is framed as a single
// CBOR byte string.
package cbor

import (
	"bytes"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"

	"github.com/Cardinal-Cryptography/alephsync/network"
	"github.com/Cardinal-Cryptography/alephsync/network/codec"
)

// Codec represents a CBOR codec for our network.
type Codec struct{}

var _ network.Codec = (*Codec)(nil)

func NewCodec() *Codec {
	return &Codec{}
}

func (c *Codec) NewEncoder(w io.Writer) network.Encoder {
	return &Encoder{enc: cbor.NewEncoder(w)}
}

func (c *Codec) NewDecoder(r io.Reader) network.Decoder {
	return &Decoder{dec: cbor.NewDecoder(r)}
}

// Encode will, given a message v, return its envelope.
func (c *Codec) Encode(v interface{}) ([]byte, error) {
	return encode(v)
}

// Decode will, given an envelope, return the decoded message.
// Expected error returns during normal operations:
//   - codec.ErrInvalidEncoding if the envelope is empty
//   - codec.ErrUnknownMsgCode if the envelope code is not recognized
func (c *Codec) Decode(data []byte) (interface{}, error) {
	return decode(data)
}

func encode(v interface{}) ([]byte, error) {
	code, what, err := codec.MessageCodeFromInterface(v)
	if err != nil {
		return nil, fmt.Errorf("could not determine envelope code: %w", err)
	}

	var data bytes.Buffer
	data.WriteByte(code)

	enc := cbor.NewEncoder(&data)
	err = enc.Encode(v)
	if err != nil {
		return nil, fmt.Errorf("could not encode CBOR payload with envelope code %d AKA %s: %w", code, what, err)
	}

	return data.Bytes(), nil
}

func decode(data []byte) (interface{}, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("envelope is empty: %w", codec.ErrInvalidEncoding)
	}

	v, what, err := codec.InterfaceFromMessageCode(data[0])
	if err != nil {
		return nil, fmt.Errorf("could not determine interface from code: %w", err)
	}

	err = cbor.Unmarshal(data[1:], v)
	if err != nil {
		return nil, fmt.Errorf("could not decode CBOR payload of type %s: %w", what, err)
	}

	return v, nil
}
