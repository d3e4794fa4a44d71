package call

import (
	"google.golang.org/grpc/status"

	"github.com/gridrpc/call/ops"
	"github.com/gridrpc/call/transport"
)

const (
	headerContentEncoding     = "content-encoding"
	headerGRPCEncoding        = "grpc-encoding"
	headerGRPCAcceptEncoding  = "grpc-accept-encoding"
	headerAcceptEncoding      = "accept-encoding"
	headerGRPCStatus          = "grpc-status"
	headerGRPCMessage         = "grpc-message"
	headerInternalEncodingReq = "grpc-internal-encoding-request"
)

// InitialMetadataResult is what the recv-initial filter (§4.2) produces: the
// negotiated compression settings plus whatever metadata is left over for
// the application to see.
type InitialMetadataResult struct {
	StreamCompression  Algorithm
	MessageCompression Algorithm
	PeerAccepts        AcceptSet
	App                transport.Metadata
}

// FilterRecvInitialMetadata implements the recv-initial filter step of
// §4.2: strip the compression-negotiation headers, parse (and memoize) the
// accept-encoding lists, and hand back whatever's left for the application.
func FilterRecvInitialMetadata(md transport.Metadata, log ops.Logger) InitialMetadataResult {
	var result InitialMetadataResult
	result.StreamCompression = AlgorithmNone
	result.MessageCompression = AlgorithmNone
	result.PeerAccepts = bitNone

	md, contentEnc := md.Strip(headerContentEncoding)
	if len(contentEnc) > 0 {
		result.StreamCompression = Algorithm(contentEnc[len(contentEnc)-1])
	}

	md, grpcEnc := md.Strip(headerGRPCEncoding)
	if len(grpcEnc) > 0 {
		result.MessageCompression = Algorithm(grpcEnc[len(grpcEnc)-1])
	}

	var accepts = bitNone
	md, grpcAccept := md.Strip(headerGRPCAcceptEncoding)
	for _, raw := range grpcAccept {
		var set, unknown = ParseAcceptEncoding(raw)
		accepts |= set
		for _, u := range unknown {
			log.Warn("unrecognized grpc-accept-encoding token", "token", u)
		}
	}
	md, plainAccept := md.Strip(headerAcceptEncoding)
	for _, raw := range plainAccept {
		var set, unknown = ParseAcceptEncoding(raw)
		accepts |= set
		for _, u := range unknown {
			log.Warn("unrecognized accept-encoding token", "token", u)
		}
	}
	result.PeerAccepts = accepts

	result.App = growAppend(nil, md)
	return result
}

// growAppend appends src onto dst following the 1.5x growth policy (§4.2):
// each time capacity would be exceeded, it grows to max(needed, 1.5x
// current). Go's append already grows geometrically, but we size the
// destination up front to make that policy explicit and testable rather
// than relying on runtime-specific slice growth behavior.
func growAppend(dst transport.Metadata, src transport.Metadata) transport.Metadata {
	var needed = len(dst) + len(src)
	if cap(dst) < needed {
		var grown = int(float64(cap(dst)) * 1.5)
		if grown < needed {
			grown = needed
		}
		var next = make(transport.Metadata, len(dst), grown)
		copy(next, dst)
		dst = next
	}
	return append(dst, src...)
}

// TrailingMetadataResult is what the recv-trailing filter (§4.2) produces.
type TrailingMetadataResult struct {
	// WireError is the error synthesized from a non-zero grpc-status, or
	// nil if the status was OK.
	WireError error
	App       transport.Metadata
}

// FilterRecvTrailingMetadata implements the recv-trailing filter step of
// §4.2: strip grpc-status/grpc-message, synthesize a WIRE-sourced error for
// any non-zero code, and hand back the remaining metadata.
func FilterRecvTrailingMetadata(md transport.Metadata, log ops.Logger) TrailingMetadataResult {
	var result TrailingMetadataResult

	md, statusVals := md.Strip(headerGRPCStatus)
	md, msgVals := md.Strip(headerGRPCMessage)

	if len(statusVals) > 0 {
		var code, ok = DecodeGRPCStatus(statusVals[len(statusVals)-1])
		if !ok {
			log.Warn("unparseable grpc-status", "value", statusVals[len(statusVals)-1])
		} else if code != 0 {
			var msg string
			if len(msgVals) > 0 {
				msg = msgVals[len(msgVals)-1]
			}
			result.WireError = status.Error(code, msg)
		}
	}

	result.App = growAppend(nil, md)
	return result
}
