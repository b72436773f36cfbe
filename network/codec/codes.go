// Package codec maps the wire message types onto one-byte envelope codes.
// Every message exchanged on the sync channel is prefixed with its code, so
// the receiving side knows which type to decode into.
package codec

import (
	"fmt"

	"github.com/Cardinal-Cryptography/alephsync/model/messages"
)

const (
	CodeMin uint8 = iota

	CodeSyncState
	CodeSyncStateResponse
	CodeSyncRequest
	CodeSyncResponse

	CodeMax
)

// MessageCodeFromInterface returns the correct code based on the underlying
// type of message v.
func MessageCodeFromInterface(v interface{}) (uint8, string, error) {
	switch v.(type) {
	case *messages.SyncState:
		return CodeSyncState, "messages.SyncState", nil
	case *messages.SyncStateResponse:
		return CodeSyncStateResponse, "messages.SyncStateResponse", nil
	case *messages.SyncRequest:
		return CodeSyncRequest, "messages.SyncRequest", nil
	case *messages.SyncResponse:
		return CodeSyncResponse, "messages.SyncResponse", nil
	default:
		return 0, "", fmt.Errorf("invalid encode type (%T)", v)
	}
}

// InterfaceFromMessageCode returns a value of the correct underlying go type
// for the message code.
// Expected error returns during normal operations:
//   - ErrUnknownMsgCode if the message code does not match any of the
//     configured message codes above
func InterfaceFromMessageCode(code uint8) (interface{}, string, error) {
	switch code {
	case CodeSyncState:
		return &messages.SyncState{}, "messages.SyncState", nil
	case CodeSyncStateResponse:
		return &messages.SyncStateResponse{}, "messages.SyncStateResponse", nil
	case CodeSyncRequest:
		return &messages.SyncRequest{}, "messages.SyncRequest", nil
	case CodeSyncResponse:
		return &messages.SyncResponse{}, "messages.SyncResponse", nil
	default:
		return nil, "", NewUnknownMsgCodeErr(code)
	}
}
