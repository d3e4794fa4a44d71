package call

import (
	"math"
	"strconv"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/gridrpc/call/transport"
)

// StartBatch submits ops as an atomic batch, tagged for later retrieval via
// the completion queue (§6 "start_batch").
func (c *Call) StartBatch(ops []Op, tag interface{}) CallErrorCode {
	return c.startBatch(ops, tag, nil)
}

// StartBatchAndExecute is the internal variant whose completion is
// delivered by invoking closure directly rather than through a completion
// queue (§6 "start_batch_and_execute").
func (c *Call) StartBatchAndExecute(ops []Op, closure func(error)) CallErrorCode {
	return c.startBatch(ops, nil, closure)
}

func (c *Call) startBatch(userOps []Op, tag interface{}, closure func(error)) CallErrorCode {
	if c.metrics != nil {
		c.metrics.BatchesStarted.Inc()
	}

	if len(userOps) == 0 {
		c.postEmptyBatch(tag, closure)
		return CallErrorOK
	}
	if len(userOps) > numSlots {
		return CallErrorTooManyOperations
	}

	var seen [numSlots]bool
	for _, op := range userOps {
		var slot = op.Kind.slot()
		if slot < 0 || seen[slot] {
			return CallErrorTooManyOperations
		}
		seen[slot] = true
	}

	c.mu.Lock()
	for _, op := range userOps {
		var slot = op.Kind.slot()
		if c.occupied[slot] != nil {
			c.mu.Unlock()
			return CallErrorTooManyOperations
		}
	}
	c.mu.Unlock()

	for _, op := range userOps {
		if code := c.validateOp(op); code != CallErrorOK {
			return code
		}
	}

	var bc = &batchControl{call: c, tag: tag, closure: closure, isClosure: closure != nil}

	c.mu.Lock()
	for _, op := range userOps {
		var slot = op.Kind.slot()
		c.occupied[slot] = bc
		bc.slots[slot] = true
		switch op.Kind {
		case OpSendInitialMetadata:
			c.sendInitialDone = true
		case OpSendMessage:
			c.sendMessageDone = true
		case OpSendCloseFromClient, OpSendStatusFromServer:
			c.sendCloseDone = true
		case OpRecvInitialMetadata:
			c.recvInitialDone = true
		case OpRecvMessage:
			c.recvMessageDone = true
		case OpRecvCloseOnServer, OpRecvStatusOnClient:
			c.recvFinalDone = true
		}
	}
	c.mu.Unlock()

	for _, op := range userOps {
		if op.Kind == OpRecvCloseOnServer || op.Kind == OpRecvStatusOnClient {
			bc.terminal = true
		}
		if op.Kind == OpRecvInitialMetadata {
			bc.recvMetadataOut = op.RecvMetadataOut
		}
		if op.Kind == OpRecvCloseOnServer || op.Kind == OpRecvStatusOnClient {
			bc.recvStatusOut = op.RecvStatusOut
			bc.recvCancelledOut = op.RecvCancelledOut
			bc.recvTrailingMetadataOut = op.RecvTrailingMetadataOut
		}
		if op.Kind == OpRecvMessage {
			bc.recvMessageOut = op.RecvMessageOut
		}
	}

	bc.steps = c.stepsFor(userOps)

	c.comb.Execute(func() {
		c.dispatchBatch(bc, userOps)
	})

	return CallErrorOK
}

func (c *Call) stepsFor(ops []Op) int32 {
	var steps int32
	for _, op := range ops {
		steps++ // one completion per op
		switch op.Kind {
		case OpRecvInitialMetadata:
			// completes from recv-initial-metadata-ready; no separate on_complete
		case OpRecvMessage:
			// completes from recv-message-ready; no separate on_complete
		}
	}
	return steps
}

// validateOp runs the §4.3 validation rules, first matching rule wins.
func (c *Call) validateOp(op Op) CallErrorCode {
	switch op.Kind {
	case OpSendInitialMetadata:
		if !transport.ValidateWriteFlags(op.Flags) {
			return CallErrorInvalidFlags
		}
		if !c.isClient && op.Flags&transport.FlagIdempotentRequest != 0 {
			return CallErrorInvalidFlags
		}
	case OpSendMessage:
		if !transport.ValidateWriteFlags(op.Flags) {
			return CallErrorInvalidFlags
		}
		if op.SendMessage == nil {
			return CallErrorInvalidMessage
		}
	case OpSendCloseFromClient:
		if !c.isClient {
			return CallErrorNotOnClient
		}
	case OpSendStatusFromServer:
		if c.isClient {
			return CallErrorNotOnServer
		}
	case OpRecvCloseOnServer:
		if c.isClient {
			return CallErrorNotOnServer
		}
	case OpRecvStatusOnClient:
		if !c.isClient {
			return CallErrorNotOnClient
		}
	}

	// Send/recv message are repeatable (streaming) ops: the occupied-slot
	// check above already enforces "not already in flight" for them, so
	// only the one-shot ops have a permanent already-done flag. This runs
	// ahead of metadata validation: already-done outranks invalid-metadata
	// in the §4.3 priority order.
	c.mu.Lock()
	var alreadyDone bool
	switch op.Kind {
	case OpSendInitialMetadata:
		alreadyDone = c.sendInitialDone
	case OpSendCloseFromClient, OpSendStatusFromServer:
		alreadyDone = c.sendCloseDone
	case OpRecvInitialMetadata:
		alreadyDone = c.recvInitialDone
	case OpRecvCloseOnServer, OpRecvStatusOnClient:
		alreadyDone = c.recvFinalDone
	}
	c.mu.Unlock()
	if alreadyDone {
		return CallErrorAlreadyFinished
	}

	if len(op.SendMetadata) > 0 {
		if code := validateMetadata(op.SendMetadata); code != CallErrorOK {
			return code
		}
	}

	return CallErrorOK
}

// validateMetadata checks header-validity rules: legal key syntax, legal
// non-binary value syntax for non-binary keys, and a count that fits int32
// (§4.3).
func validateMetadata(md transport.Metadata) CallErrorCode {
	if md.Count() > math.MaxInt32 {
		return CallErrorInvalidMetadata
	}
	for _, h := range md {
		if h.Key == "" {
			return CallErrorInvalidMetadata
		}
		var isBinary = strings.HasSuffix(h.Key, "-bin")
		if !isBinary && !isValidASCIIValue(h.Value) {
			return CallErrorInvalidMetadata
		}
	}
	return CallErrorOK
}

func isValidASCIIValue(v string) bool {
	for i := 0; i < len(v); i++ {
		var b = v[i]
		if b < 0x20 || b > 0x7e {
			return false
		}
	}
	return true
}

func (c *Call) postEmptyBatch(tag interface{}, closure func(error)) {
	// Empty batches post an OK completion immediately (§4.3).
	if closure != nil {
		closure(nil)
	} else if c.cq != nil {
		c.cq.Push(tag, nil)
	}
	if c.metrics != nil {
		c.metrics.BatchesCompleted.Inc()
	}
}

// applyCompressionLevel implements the §4.3 compression-level processing
// for SEND_INITIAL_METADATA: resolve level against the peer's declared
// accept-set and prepend a synthetic grpc-internal-encoding-request header.
func (c *Call) applyCompressionLevel(md transport.Metadata, level Level) transport.Metadata {
	c.mu.Lock()
	var accepts = c.peerAccepts
	c.mu.Unlock()

	var alg = ResolveLevel(level, accepts)
	if alg == AlgorithmNone {
		return md
	}
	return md.Prepend(transport.Header{Key: headerInternalEncodingReq, Value: string(alg)})
}

// applyStatusEmission implements the §4.3 status-emission step for
// SEND_STATUS_FROM_SERVER: prepend a canonical status element, optionally
// append grpc-message, and record the equivalent error locally under
// API_OVERRIDE so the local view agrees with what was sent.
func (c *Call) applyStatusEmission(op Op) transport.Metadata {
	var md = op.SendMetadata
	md = md.Prepend(transport.Header{Key: headerGRPCStatus, Value: strconv.FormatUint(uint64(op.StatusCode), 10)})
	if op.WantDetails && op.StatusDetails != "" {
		md = append(md, transport.Header{Key: headerGRPCMessage, Value: op.StatusDetails})
	}

	var code = codes.Code(op.StatusCode)
	c.setStatus(SourceAPIOverride, status.Error(code, op.StatusDetails))
	return md
}
