package call

import "sync/atomic"

// recvState is the Receive-Ordering Coordinator's state word (§4.5). It
// resolves the race between recv-initial-metadata-ready and
// recv-message-ready: message processing cannot begin until initial
// metadata has been filtered, since that's where the incoming compression
// algorithm is learned.
type recvState struct {
	// state holds either nil (NONE), the sentinel initialFirst (after
	// initial metadata arrived first), or a *batchControl pointer stashed
	// by a message-ready that arrived first.
	state atomic.Pointer[batchControl]
}

// initialFirstSentinel is a distinguished non-nil pointer meaning "initial
// metadata won the race"; it is never dereferenced, only compared.
var initialFirstSentinel = &batchControl{}

// OnInitialMetadataReady runs the recv-ordering transition for an arriving
// initial-metadata-ready callback. It must fire at most once per Call
// (asserted here): observing initialFirstSentinel already installed is a
// protocol violation by the transport.
//
// If a message-ready had already stashed its batchControl, that batch is
// returned so the caller can resume processing it now that compression
// settings are known; otherwise nil is returned and the CAS simply records
// that initial metadata arrived first.
func (r *recvState) OnInitialMetadataReady() (stashed *batchControl, ok bool) {
	for {
		var cur = r.state.Load()
		if cur == initialFirstSentinel {
			// initial-md-ready must fire at most once (§4.5).
			return nil, false
		}
		if cur == nil {
			if r.state.CompareAndSwap(nil, initialFirstSentinel) {
				return nil, true
			}
			continue
		}
		// A message-ready already stashed its batch control; claim it.
		if r.state.CompareAndSwap(cur, initialFirstSentinel) {
			return cur, true
		}
	}
}

// OnMessageReady runs the recv-ordering transition for an arriving
// message-ready callback. If state is already non-NONE (initial metadata
// won, or another message already stashed — the latter should not happen
// for a well-behaved transport but is handled the same way: process
// immediately), it returns true for "process now". Otherwise it stashes bc
// and returns false: the later initial-md-ready will pick it up.
func (r *recvState) OnMessageReady(bc *batchControl) (processNow bool) {
	for {
		var cur = r.state.Load()
		if cur != nil {
			return true
		}
		if r.state.CompareAndSwap(nil, bc) {
			return false
		}
	}
}
