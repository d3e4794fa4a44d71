package transport

// Stream is what a Call needs from the filter stack below it: a place to
// push sends and arm receive callbacks. Every callback fires exactly once
// per arming, possibly from a different goroutine than the one that armed
// it — the Call serializes its reaction to these callbacks through its own
// call combiner (package combiner), not through locking here.
type Stream interface {
	// SendMetadata transmits md downstream: initial metadata, or (tagged by
	// flags) a client's close or a server's trailing status. onDone fires
	// once the send has been accepted by the transport (or failed).
	SendMetadata(md Metadata, flags Flags, onDone func(error))

	// SendMessage transmits one message payload. onDone fires once sent.
	SendMessage(payload []byte, flags Flags, onDone func(error))

	// RecvInitialMetadata arms onReady, invoked exactly once when initial
	// metadata (headers) has arrived, or with a non-nil error if the
	// stream failed before headers arrived.
	RecvInitialMetadata(onReady func(Metadata, error))

	// RecvMessage arms onReady, invoked exactly once with a MessageStream
	// to pull the next incoming message's bytes from, or with a non-nil
	// error. onReady(nil, nil) signals a graceful end of the message
	// sequence (no more messages, no error) — e.g. the client is done
	// sending before a close.
	RecvMessage(onReady func(MessageStream, error))

	// RecvTrailingMetadata arms onReady, invoked exactly once when
	// trailing metadata — carrying grpc-status on the client side — has
	// arrived.
	RecvTrailingMetadata(onReady func(Metadata, error))

	// Cancel requests the stream abort with err. It is safe to call
	// concurrently with any arm/send above, and at most once.
	Cancel(err error)
}

// MessageStream yields the byte slices composing a single received
// message, per §4.6. A Call pulls until Pull reports done=true (remaining
// == 0) or an error.
type MessageStream interface {
	// Pull attempts to synchronously return the next slice. ok is false
	// when no slice is ready yet (arm Ready to be notified); done is true
	// once the message is fully delivered (slice is nil in that case).
	Pull() (slice []byte, ok bool, done bool, err error)

	// Ready registers onMore, invoked at most once, when a Pull that
	// previously returned ok=false can usefully be retried.
	Ready(onMore func())
}
