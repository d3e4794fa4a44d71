package transport

import "context"

// mdEvent carries one metadata delivery across the fake pipe.
type mdEvent struct{ md Metadata }

// Fake is a deterministic, in-memory Stream implementation: a pair of Fakes
// created by NewPair are the two ends of one logical stream, with sends on
// one side becoming receives on the other. It stands in for the real
// filter/transport stack in tests and in the cmd/callctl demo, exactly as
// the reference codebase's protocols/materialize/lifecycle_test.go drives
// its WriteX/ReadX helpers against a hand-rolled in-memory `stream` rather
// than a live gRPC connection.
//
// Sends from one endpoint are serialized through a dedicated goroutine so
// that, e.g., a SendMessage followed by a trailing SendMetadata arrive at
// the peer in the same order they were issued — matching the transport
// send-ordering guarantee the Call's concurrency model relies on (§5).
type Fake struct {
	peer *Fake

	out chan func()

	initialMD  chan mdEvent
	messages   chan *fakeMessageStream
	trailingMD chan mdEvent

	ctx    context.Context
	cancel context.CancelCauseFunc
}

var _ Stream = (*Fake)(nil)

// NewPair returns two connected Fakes: conventionally, call the first
// "client" and the second "server".
func NewPair() (client, server *Fake) {
	client = newFakeEndpoint()
	server = newFakeEndpoint()
	client.peer = server
	server.peer = client

	go client.runOut()
	go server.runOut()
	return client, server
}

func newFakeEndpoint() *Fake {
	var ctx, cancel = context.WithCancelCause(context.Background())
	return &Fake{
		out:        make(chan func(), 64),
		initialMD:  make(chan mdEvent, 4),
		messages:   make(chan *fakeMessageStream, 64),
		trailingMD: make(chan mdEvent, 4),
		ctx:        ctx,
		cancel:     cancel,
	}
}

func (e *Fake) runOut() {
	for fn := range e.out {
		fn()
	}
}

// SendMetadata implements Stream.
func (e *Fake) SendMetadata(md Metadata, flags Flags, onDone func(error)) {
	e.out <- func() {
		var peer = e.peer
		if flags&FlagTrailing != 0 {
			select {
			case peer.trailingMD <- mdEvent{md: md}:
				close(peer.messages)
			case <-peer.ctx.Done():
			}
		} else {
			select {
			case peer.initialMD <- mdEvent{md: md}:
			case <-peer.ctx.Done():
			}
		}
		onDone(nil)
	}
}

// SendMessage implements Stream.
func (e *Fake) SendMessage(payload []byte, flags Flags, onDone func(error)) {
	e.out <- func() {
		select {
		case e.peer.messages <- &fakeMessageStream{data: payload}:
		case <-e.peer.ctx.Done():
		}
		onDone(nil)
	}
}

// RecvInitialMetadata implements Stream.
func (e *Fake) RecvInitialMetadata(onReady func(Metadata, error)) {
	go func() {
		select {
		case ev := <-e.initialMD:
			onReady(ev.md, nil)
		case <-e.ctx.Done():
			onReady(nil, context.Cause(e.ctx))
		}
	}()
}

// RecvMessage implements Stream.
func (e *Fake) RecvMessage(onReady func(MessageStream, error)) {
	go func() {
		select {
		case ms, ok := <-e.messages:
			if !ok {
				onReady(nil, nil)
				return
			}
			onReady(ms, nil)
		case <-e.ctx.Done():
			onReady(nil, context.Cause(e.ctx))
		}
	}()
}

// RecvTrailingMetadata implements Stream.
func (e *Fake) RecvTrailingMetadata(onReady func(Metadata, error)) {
	go func() {
		select {
		case ev := <-e.trailingMD:
			onReady(ev.md, nil)
		case <-e.ctx.Done():
			onReady(nil, context.Cause(e.ctx))
		}
	}()
}

// Cancel implements Stream. It aborts both ends of the pipe: a real
// transport would propagate a RST/cancel frame to the peer, so the fake
// does the same by cancelling its context too.
func (e *Fake) Cancel(err error) {
	e.cancel(err)
	e.peer.cancel(err)
}

// fakeMessageStream delivers a single, already-whole payload as one slice,
// matching the common case of a small unary message arriving in one frame.
type fakeMessageStream struct {
	data   []byte
	pulled bool
}

var _ MessageStream = (*fakeMessageStream)(nil)

func (s *fakeMessageStream) Pull() (slice []byte, ok bool, done bool, err error) {
	if s.pulled {
		return nil, true, true, nil
	}
	s.pulled = true
	return s.data, true, false, nil
}

func (s *fakeMessageStream) Ready(onMore func()) {
	// The fake never suspends mid-message, so there is nothing to arm.
}
