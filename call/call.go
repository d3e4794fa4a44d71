// Package call implements the Call object: the per-RPC state machine that
// mediates between an application issuing asynchronous batched operations
// and a layered transport stack below it.
package call

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gridrpc/call/combiner"
	"github.com/gridrpc/call/cq"
	"github.com/gridrpc/call/ops"
	"github.com/gridrpc/call/transport"
)

// Channel is the minimal external-collaborator interface a Call needs from
// its owning channel: default compression behavior and peer identity. A
// real channel implementation also owns connection setup, which is out of
// this package's scope (§1).
type Channel interface {
	DefaultCompressionLevel() Level
	Peer() string
}

// Args are the arguments to Create (§6 "Creation"). The reference design
// also allows registering a call against a polling-set instead of a
// completion queue; this module only implements the completion-queue path,
// so CompletionQueue is mandatory (see DESIGN.md).
type Args struct {
	Channel Channel
	Stream  transport.Stream

	CompletionQueue *cq.Queue

	// Parent, if non-nil, makes the new call a child in the propagation
	// tree (§4.8); Parent must be a server call and the new call must be
	// a client call (IsClient must be true).
	Parent          *Call
	Propagation     PropagationMask

	IsClient bool

	// InitialMetadata is up to 3 client-only initial metadata entries,
	// which must include the method path. Create ignores this field: the
	// entries are neither validated nor sent, and initial metadata goes out
	// only through a SEND_INITIAL_METADATA op.
	InitialMetadata transport.Metadata
}

// batchControl tracks one in-flight batch: its steps-to-complete counter,
// accumulated errors, and how to deliver its result.
type batchControl struct {
	call  *Call
	steps int32
	slots [numSlots]bool

	mu   sync.Mutex
	errs []error

	tag      interface{}
	closure  func(error)
	isClosure bool

	// terminal is set when this batch includes recv_trailing_metadata /
	// recv_close_on_server: its own consolidated error is suppressed in
	// favor of the final status (§4.4 step 4).
	terminal bool

	recvMetadataOut         *transport.Metadata
	recvStatusOut           *Final
	recvCancelledOut        *bool
	recvTrailingMetadataOut *transport.Metadata
	recvMessageOut          *[]byte
}

// Call is the per-RPC state machine (see package doc).
type Call struct {
	id       string
	isClient bool

	channel Channel
	stream  transport.Stream

	register  *Register
	recvOrder recvState
	comb      combiner.Combiner

	cq           *cq.Queue
	cqReassigned bool // guarded by mu

	log ops.Logger

	extRef int32 // atomic
	intRef int32 // atomic

	mu              sync.Mutex
	occupied        [numSlots]*batchControl
	sendInitialDone bool
	sendMessageDone bool
	sendCloseDone   bool
	recvInitialDone bool
	recvMessageDone bool
	recvFinalDone   bool
	destroyed       bool

	peerAccepts AcceptSet

	ctxValues map[interface{}]ctxEntry

	parent_ parentAtomic

	// sibling-ring fields, guarded by the parent's parentSide.mu.
	parentCall  *Call
	nextSibling *Call
	prevSibling *Call

	deadlineInherited bool
	cancelInherited   bool

	metrics *Metrics
}

type ctxEntry struct {
	value   interface{}
	destroy func(interface{})
}

var callSeq int64

// Create constructs a new Call (§6 "Creation"). The caller holds the
// returned Call's one external reference.
func Create(args Args) (*Call, error) {
	if args.Stream == nil {
		return nil, newCallError(CallErrorGeneric, "stream is required")
	}
	if args.CompletionQueue == nil {
		return nil, newCallError(CallErrorGeneric, "completion queue is required")
	}
	if args.Parent != nil {
		if !args.IsClient || args.Parent.isClient {
			return nil, newCallError(CallErrorGeneric, "child must be client, parent must be server")
		}
	}

	var seq = atomic.AddInt64(&callSeq, 1)
	var c = &Call{
		id:        fmt.Sprintf("call-%d", seq),
		isClient:  args.IsClient,
		channel:   args.Channel,
		stream:    args.Stream,
		register:  NewRegister(args.IsClient),
		cq:        args.CompletionQueue,
		log:       ops.New(nil).With(map[string]interface{}{"call_id": seq}),
		extRef:    1,
		intRef:    1,
		ctxValues: make(map[interface{}]ctxEntry),
		metrics:   defaultMetrics,
	}

	if args.Parent != nil {
		args.Parent.linkChild(c)
		args.Parent.internalRef("child")
		c.cancelInherited = args.Propagation&PropagateCancellation != 0
		c.deadlineInherited = args.Propagation&PropagateDeadline != 0

		if args.Parent.isFinal() {
			c.cancelWithError(SourceAPIOverride, newCallError(CallErrorGeneric, "parent already finished"))
		}
	}

	return c, nil
}

func (c *Call) isFinal() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.recvFinalDone
}

// IsClient reports whether this Call is a client-side call.
func (c *Call) IsClient() bool { return c.isClient }

// GetPeer returns the channel's peer identity.
func (c *Call) GetPeer() string { return c.channel.Peer() }

// CompressionForLevel resolves level against the peer's declared accepted
// algorithms.
func (c *Call) CompressionForLevel(level Level) Algorithm {
	c.mu.Lock()
	var accepts = c.peerAccepts
	c.mu.Unlock()
	return ResolveLevel(level, accepts)
}

// GetCallStack returns a short diagnostic identity string.
func (c *Call) GetCallStack() string { return c.id }

// Ref adds an external reference.
func (c *Call) Ref() { atomic.AddInt32(&c.extRef, 1) }

// Unref drops an external reference. The last external unref triggers a
// cancel-if-unfinished, then an internal unref (§6 "ref, unref").
func (c *Call) Unref() {
	if atomic.AddInt32(&c.extRef, -1) != 0 {
		return
	}

	c.mu.Lock()
	var anySent = c.sendInitialDone || c.sendMessageDone || c.sendCloseDone
	var finished = c.recvFinalDone
	c.mu.Unlock()

	if anySent && !finished {
		c.cancelWithError(SourceAPIOverride, newCallError(CallErrorGeneric, "call destroyed before completion"))
	}
	c.internalUnref("external")
}

func (c *Call) internalRef(reason string) {
	atomic.AddInt32(&c.intRef, 1)
}

func (c *Call) internalUnref(reason string) {
	if atomic.AddInt32(&c.intRef, -1) != 0 {
		return
	}
	c.mu.Lock()
	c.destroyed = true
	c.mu.Unlock()

	c.destroyContext()

	if c.parentCall != nil {
		c.unlink()
		c.parentCall.internalUnref("child")
	}
}

// SetCompletionQueue installs queue as the server-side registration
// completion queue for an accepted call, replacing the temporary queue it
// was created with (§6 "server_request_call"). It is legal at most once.
func (c *Call) SetCompletionQueue(queue *cq.Queue) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cqReassigned {
		return newCallError(CallErrorGeneric, "completion queue already reassigned")
	}
	c.cqReassigned = true
	c.cq = queue
	return nil
}

// ContextSet stores value under slot. If destroy is non-nil, it is called
// with value at call teardown, when the last internal reference is dropped.
func (c *Call) ContextSet(slot interface{}, value interface{}, destroy func(interface{})) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ctxValues[slot] = ctxEntry{value: value, destroy: destroy}
}

// ContextGet retrieves a value previously stored with ContextSet.
func (c *Call) ContextGet(slot interface{}) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.ctxValues[slot]
	if !ok {
		return nil, false
	}
	return e.value, true
}

func (c *Call) destroyContext() {
	c.mu.Lock()
	var entries = c.ctxValues
	c.ctxValues = nil
	c.mu.Unlock()

	for _, e := range entries {
		if e.destroy != nil {
			e.destroy(e.value)
		}
	}
}
