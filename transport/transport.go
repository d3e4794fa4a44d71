// Package transport defines the minimal interface a filter stack below a
// Call must satisfy, and a deterministic in-memory Fake implementing it for
// tests and the cmd/callctl demo. Per the Call's own spec, the transport
// stack is an external collaborator: the Call frames nothing and transmits
// no bytes itself, only tags metadata and messages with flags that this
// layer interprets (reference codebase analogue: protocols/capture and
// protocols/materialize define the wire protocol structs and stream
// plumbing that a runtime-level Call-equivalent drives, without owning the
// gRPC transport itself).
package transport

import "fmt"

// Flags is the bitmask a Call attaches to an outgoing metadata or message
// op, interpreted by the filter stack below.
type Flags uint32

const (
	// FlagWriteBuffered asks the transport to corked-write rather than
	// flush immediately (mirrors grpc-core's GRPC_WRITE_BUFFER_HINT).
	FlagWriteBuffered Flags = 1 << iota
	// FlagMessageCompress marks an outgoing message as eligible for
	// message-level compression.
	FlagMessageCompress
	// FlagIdempotentRequest marks a client request as safe to retry.
	// Illegal on SEND_INITIAL_METADATA for a server Call (§4.3).
	FlagIdempotentRequest
	// FlagIsStreamCompressed marks an incoming message as already wrapped
	// by a stream-level (not message-level) compression scheme (§4.6).
	FlagIsStreamCompressed
	// FlagTrailing marks a SendMetadata call as carrying trailing metadata
	// (a server's status, or a client's close) rather than initial
	// metadata. It is a transport-routing bit, not part of the op's
	// user-facing write-flag mask.
	FlagTrailing
)

// validWriteFlags is the mask SEND_MESSAGE and SEND_INITIAL_METADATA ops
// are restricted to; anything else is an INVALID_FLAGS batch error (§4.3).
const validWriteFlags = FlagWriteBuffered | FlagMessageCompress | FlagIdempotentRequest

// ValidateWriteFlags reports whether flags are a subset of the allowed
// write-flag mask.
func ValidateWriteFlags(flags Flags) bool {
	return flags&^validWriteFlags == 0
}

// Header is one metadata element. Binary keys (suffixed "-bin") carry
// arbitrary bytes; all others must be valid, non-binary ASCII values (§4.3).
type Header struct {
	Key   string
	Value string
}

// Metadata is an ordered list of headers, matching the reference
// codebase's convention of metadata-as-slice (rather than a map) so that
// duplicate keys and wire order both survive a round trip.
type Metadata []Header

// Get returns the value of the first header matching key, and whether one
// was found.
func (m Metadata) Get(key string) (string, bool) {
	for _, h := range m {
		if h.Key == key {
			return h.Value, true
		}
	}
	return "", false
}

// Strip returns a copy of m with all headers matching key removed, along
// with every matched value in encounter order (a key may legally repeat).
func (m Metadata) Strip(key string) (Metadata, []string) {
	var out = make(Metadata, 0, len(m))
	var values []string
	for _, h := range m {
		if h.Key == key {
			values = append(values, h.Value)
			continue
		}
		out = append(out, h)
	}
	return out, values
}

// Prepend returns a copy of m with header prepended (metadata the surface
// layer injects — e.g. grpc-internal-encoding-request — goes to the front
// so downstream filters see it before user-supplied headers).
func (m Metadata) Prepend(h Header) Metadata {
	var out = make(Metadata, 0, len(m)+1)
	out = append(out, h)
	return append(out, m...)
}

// Count is the number of headers; batch validation rejects metadata whose
// Count exceeds math.MaxInt32 with INVALID_METADATA (§4.3 "must not exceed
// INT_MAX").
func (m Metadata) Count() int { return len(m) }

// ErrTooManyHeaders describes metadata whose element count does not fit an
// int32. Batch validation reports that case as the INVALID_METADATA call
// error code and does not return this value.
var ErrTooManyHeaders = fmt.Errorf("transport: metadata element count overflows int32")
