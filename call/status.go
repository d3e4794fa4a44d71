package call

import (
	"sync/atomic"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Source identifies where a status observation originated. Lower values are
// higher priority: application intent overrides wire observation overrides
// internal surface error (§4.1).
type Source int

const (
	// SourceAPIOverride is explicit user action: cancel, cancel_with_status,
	// or the status a server attaches to SEND_STATUS_FROM_SERVER.
	SourceAPIOverride Source = iota
	// SourceWire is a non-OK grpc-status observed on trailing metadata.
	SourceWire
	// SourceCore is an internal transport/decoding failure.
	SourceCore
	// SourceSurface is an internal error surfaced by this layer itself
	// (e.g. a filter invariant violation).
	SourceSurface
	// SourceServerStatus is the status a server call computes for itself
	// from its own cancellation state.
	SourceServerStatus

	numSources = int(SourceServerStatus) + 1
)

func (s Source) String() string {
	switch s {
	case SourceAPIOverride:
		return "api_override"
	case SourceWire:
		return "wire"
	case SourceCore:
		return "core"
	case SourceSurface:
		return "surface"
	case SourceServerStatus:
		return "server_status"
	default:
		return "unknown_source"
	}
}

// statusSlot packs an (is_set, error) pair behind a single atomic pointer:
// nil means unset, any non-nil pointer means set. This stands in for the
// reference codebase's pointer-tagged machine word (§5 "Atomics") — Go's
// atomic.Pointer already gives CAS set-once semantics without needing to
// steal a tag bit ourselves.
type statusSlot struct {
	value atomic.Pointer[status.Status]
}

// set performs a first-writer-wins CAS from empty to (true, err). Later
// callers for the same source are silently ignored — their error reference
// is simply dropped, mirroring the source's "release on failure" note.
func (s *statusSlot) set(err *status.Status) {
	s.value.CompareAndSwap(nil, err)
}

func (s *statusSlot) get() *status.Status {
	return s.value.Load()
}

// Register is the Status Register (§4.1): five priority-ordered, set-once
// slots recording why a call finished, as observed by racing subsystems.
type Register struct {
	slots    [numSources]statusSlot
	isClient bool
}

// NewRegister returns an empty Register for a call of the given role.
func NewRegister(isClient bool) *Register {
	return &Register{isClient: isClient}
}

// Set records err under source, if that source has not already been set.
// A nil err is coerced to an OK status so that "set" always means
// "something observed a terminal outcome here", even a successful one.
func (r *Register) Set(source Source, err error) {
	var st *status.Status
	if err == nil {
		st = status.New(codes.OK, "")
	} else if s, ok := status.FromError(err); ok {
		st = s
	} else {
		st = status.New(codes.Unknown, err.Error())
	}
	r.slots[source].set(st)
}

// Final is the consolidated (code, message) pair produced by GetFinal.
type Final struct {
	Code    codes.Code
	Message string
}

// GetFinal runs the two-pass, priority-ordered scan described in §4.1: the
// first pass excludes OK outcomes (an error anywhere beats a clean finish
// seen elsewhere), the second pass allows them. Within each pass, sources
// are walked in priority order and the first populated slot wins — every
// slot value already carries an explicit gRPC status, so there is no
// separate "prefer explicit status" fallback to apply here; it falls out of
// slots only ever holding *status.Status values.
func (r *Register) GetFinal() Final {
	if st, ok := r.scan(false); ok {
		return Final{Code: st.Code(), Message: st.Message()}
	}
	if st, ok := r.scan(true); ok {
		return Final{Code: st.Code(), Message: st.Message()}
	}
	if r.isClient {
		return Final{Code: codes.Unknown}
	}
	return Final{Code: codes.OK}
}

func (r *Register) scan(allowOK bool) (*status.Status, bool) {
	for source := 0; source < numSources; source++ {
		var st = r.slots[source].get()
		if st == nil {
			continue
		}
		if !allowOK && st.Code() == codes.OK {
			continue
		}
		return st, true
	}
	return nil, false
}
