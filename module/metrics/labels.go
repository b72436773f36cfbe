package metrics

const (
	EngineLabel   = "engine"
	LabelMessage  = "message"
	LabelResource = "resource"
	LabelReason   = "reason"
)

const (
	EngineSynchronization = "sync"
	EngineResponder       = "responder"
)

const (
	ResourceHeader        = "header"
	ResourceBlockBody     = "block_body"
	ResourceJustification = "justification"
	ResourceChildrenIndex = "children_index"
)

const (
	MessageSyncState         = "sync_state"
	MessageSyncStateResponse = "sync_state_response"
	MessageSyncRequest       = "sync_request"
	MessageSyncResponse      = "sync_response"
	MessageInternalRequest   = "internal_request"
)

const (
	namespaceNetwork   = "network"
	namespaceChainsync = "chainsync"
	namespaceStorage   = "storage"

	subsystemEngine    = "engine"
	subsystemForest    = "forest"
	subsystemResponder = "responder"
	subsystemCache     = "cache"
)
