package call

import (
	"github.com/gridrpc/call/transport"
)

// OpKind enumerates the six send/receive op kinds a batch may contain
// (§4.3, §6 "Op kinds").
type OpKind int

const (
	OpSendInitialMetadata OpKind = iota
	OpSendMessage
	OpSendCloseFromClient
	OpSendStatusFromServer
	OpRecvInitialMetadata
	OpRecvMessage
	OpRecvCloseOnServer
	OpRecvStatusOnClient
)

// slot maps an op kind to its fixed pool position (§4.3 "Slot mapping").
// SEND_CLOSE_FROM_CLIENT and SEND_STATUS_FROM_SERVER share slot 2;
// RECV_CLOSE_ON_SERVER and RECV_STATUS_ON_CLIENT share slot 5 — they are
// role-exclusive, so only one of each pair is ever legal for a given Call.
func (k OpKind) slot() int {
	switch k {
	case OpSendInitialMetadata:
		return 0
	case OpSendMessage:
		return 1
	case OpSendCloseFromClient, OpSendStatusFromServer:
		return 2
	case OpRecvInitialMetadata:
		return 3
	case OpRecvMessage:
		return 4
	case OpRecvCloseOnServer, OpRecvStatusOnClient:
		return 5
	default:
		return -1
	}
}

const numSlots = 6

// Op is one user-submitted operation within a batch. Exactly the fields
// relevant to Kind are meaningful; the rest are ignored.
type Op struct {
	Kind  OpKind
	Flags transport.Flags

	// SEND_INITIAL_METADATA / SEND_STATUS_FROM_SERVER (SEND_CLOSE_FROM_CLIENT
	// sends no metadata)
	SendMetadata transport.Metadata

	// SEND_INITIAL_METADATA only: optional compression-level hint.
	CompressionLevel Level
	HasLevel         bool

	// SEND_MESSAGE
	SendMessage []byte

	// SEND_STATUS_FROM_SERVER
	StatusCode    uint32
	StatusDetails string
	WantDetails   bool

	// RECV_INITIAL_METADATA: where the initial-metadata filter's leftover
	// application headers are written once the batch completes.
	RecvMetadataOut *transport.Metadata

	// RECV_CLOSE_ON_SERVER / RECV_STATUS_ON_CLIENT: where the final status
	// and any leftover trailing-metadata application headers are written.
	RecvStatusOut           *Final
	RecvCancelledOut        *bool
	RecvTrailingMetadataOut *transport.Metadata

	// RECV_MESSAGE: where the received payload is written.
	RecvMessageOut *[]byte
}
