package call

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/gridrpc/call/transport"
)

// dispatchBatch issues the transport-level calls for every op in ops,
// arming completion callbacks that drain bc.steps, and runs the
// §4.3 compression-level / status-emission processing inline. It always
// runs on the call combiner.
func (c *Call) dispatchBatch(bc *batchControl, ops []Op) {
	c.internalRef("batch")

	for _, op := range ops {
		switch op.Kind {
		case OpSendInitialMetadata:
			var md = op.SendMetadata
			if op.HasLevel {
				md = c.applyCompressionLevel(md, op.CompressionLevel)
			} else if c.channel != nil {
				md = c.applyCompressionLevel(md, c.channel.DefaultCompressionLevel())
			}
			c.stream.SendMetadata(md, op.Flags, func(err error) {
				c.completeStep(bc, err)
			})

		case OpSendMessage:
			c.stream.SendMessage(op.SendMessage, op.Flags, func(err error) {
				c.completeStep(bc, err)
			})

		case OpSendCloseFromClient:
			c.stream.SendMetadata(nil, transport.FlagTrailing, func(err error) {
				c.completeStep(bc, err)
			})

		case OpSendStatusFromServer:
			var md = c.applyStatusEmission(op)
			c.stream.SendMetadata(md, transport.FlagTrailing, func(err error) {
				c.completeStep(bc, err)
			})

		case OpRecvInitialMetadata:
			c.stream.RecvInitialMetadata(func(md transport.Metadata, err error) {
				c.onRecvInitialMetadata(bc, md, err)
			})

		case OpRecvMessage:
			c.armRecvMessage(bc)

		case OpRecvCloseOnServer, OpRecvStatusOnClient:
			c.stream.RecvTrailingMetadata(func(md transport.Metadata, err error) {
				c.onRecvTrailingMetadata(bc, md, err)
			})
		}
	}
}

// onRecvInitialMetadata implements the recv-initial half of §4.2 plus the
// Receive-Ordering Coordinator transition (§4.5): it must fire at most
// once, and if a message-ready had already stashed its batch control, that
// batch resumes processing now that compression settings are known.
func (c *Call) onRecvInitialMetadata(bc *batchControl, md transport.Metadata, err error) {
	if err != nil {
		c.completeStep(bc, err)
		return
	}

	var result = FilterRecvInitialMetadata(md, c.log)
	c.mu.Lock()
	c.peerAccepts = result.PeerAccepts
	c.mu.Unlock()

	if bc.recvMetadataOut != nil {
		*bc.recvMetadataOut = result.App
	}

	stashed, ok := c.recvOrder.OnInitialMetadataReady()
	if !ok {
		c.log.Error("recv_initial_metadata fired more than once")
	}
	if stashed != nil && c.metrics != nil {
		c.metrics.RecvOrderRaces.WithLabelValues("message_first").Inc()
	}
	c.completeStep(bc, nil)

	if stashed != nil {
		c.resumeMessagePull(stashed, result)
	}
}

// armRecvMessage implements the Receive-Ordering Coordinator's
// message-ready half (§4.5): if initial metadata already won the race,
// pull the message now; otherwise stash bc for the subsequent
// initial-md-ready to resume.
func (c *Call) armRecvMessage(bc *batchControl) {
	if processNow := c.recvOrder.OnMessageReady(bc); processNow {
		if c.metrics != nil {
			c.metrics.RecvOrderRaces.WithLabelValues("initial_first").Inc()
		}
		c.mu.Lock()
		var result = InitialMetadataResult{PeerAccepts: c.peerAccepts}
		c.mu.Unlock()
		c.resumeMessagePull(bc, result)
	}
}

// resumeMessagePull implements Message-Body Assembly (§4.6): arm the
// transport for the next message and pull slices from it in a loop until
// the message is fully delivered or a pull fails.
func (c *Call) resumeMessagePull(bc *batchControl, initial InitialMetadataResult) {
	c.stream.RecvMessage(func(ms transport.MessageStream, err error) {
		if err != nil {
			c.completeStep(bc, err)
			return
		}
		if ms == nil {
			// Graceful end of the message sequence: no message delivered.
			c.completeStep(bc, nil)
			return
		}
		c.pullMessage(bc, ms)
	})
}

func (c *Call) pullMessage(bc *batchControl, ms transport.MessageStream) {
	var buf []byte
	for {
		var slice, ok, done, err = ms.Pull()
		if err != nil {
			c.completeStep(bc, err)
			return
		}
		if !ok {
			ms.Ready(func() { c.pullMessage(bc, ms) })
			return
		}
		if done {
			if bc.recvMessageOut != nil {
				*bc.recvMessageOut = buf
			}
			c.completeStep(bc, nil)
			return
		}
		buf = append(buf, slice...)
	}
}

// onRecvTrailingMetadata implements the recv-trailing filter (§4.2) and
// the terminal completion step 4 of §4.4: set received_final_op, propagate
// inherited cancellation to children, and compute final status.
func (c *Call) onRecvTrailingMetadata(bc *batchControl, md transport.Metadata, err error) {
	if err != nil {
		c.completeStep(bc, err)
		return
	}

	var result = FilterRecvTrailingMetadata(md, c.log)
	if result.WireError != nil {
		c.setStatus(SourceWire, result.WireError)
	} else if raw, ok := md.Get(headerGRPCStatus); ok {
		// An explicit grpc-status of 0 is recorded too, so that a client's
		// final status reads OK instead of the UNKNOWN default.
		if code, ok := DecodeGRPCStatus(raw); ok && code == 0 {
			c.setStatus(SourceWire, nil)
		}
	}

	c.mu.Lock()
	c.recvFinalDone = true
	c.mu.Unlock()

	c.propagateCancelToChildren()

	var final = c.register.GetFinal()
	if bc.recvStatusOut != nil {
		*bc.recvStatusOut = final
	}
	if bc.recvCancelledOut != nil {
		*bc.recvCancelledOut = final.Code != 0 // OK == 0
	}
	if bc.recvTrailingMetadataOut != nil {
		*bc.recvTrailingMetadataOut = result.App
	}

	c.completeStep(bc, nil)
}

// completeStep decrements bc's steps-to-complete counter; the last
// decrementer runs post_batch_completion (§4.4).
func (c *Call) completeStep(bc *batchControl, err error) {
	if err != nil {
		bc.mu.Lock()
		bc.errs = append(bc.errs, err)
		bc.mu.Unlock()
	}

	if atomic.AddInt32(&bc.steps, -1) != 0 {
		return
	}
	c.postBatchCompletion(bc)
}

// postBatchCompletion is step §4.4: consolidate errors, release slots for
// repeatable ops, and deliver via closure or completion queue.
func (c *Call) postBatchCompletion(bc *batchControl) {
	bc.mu.Lock()
	var errs = bc.errs
	bc.mu.Unlock()

	var consolidated = consolidateErrors(errs)

	c.mu.Lock()
	if bc.slots[OpSendMessage.slot()] {
		c.sendMessageDone = false
	}
	if bc.slots[OpRecvMessage.slot()] {
		c.recvMessageDone = false
		c.occupied[OpRecvMessage.slot()] = nil
	}
	if bc.slots[OpSendMessage.slot()] {
		c.occupied[OpSendMessage.slot()] = nil
	}
	c.mu.Unlock()

	if bc.terminal {
		// The per-batch error is suppressed: the user-facing result of a
		// terminal batch is the final status, already written into
		// recvStatusOut above.
		consolidated = nil
	}

	if c.metrics != nil {
		c.metrics.BatchesCompleted.Inc()
	}

	if bc.isClosure {
		bc.closure(consolidated)
	} else if c.cq != nil {
		c.cq.Push(bc.tag, consolidated)
	}

	c.internalUnref("batch")
}

// consolidateErrors implements §4.4 step 1: 0 errors -> nil (OK), 1 -> that
// error, n -> a composite referencing all.
func consolidateErrors(errs []error) error {
	switch len(errs) {
	case 0:
		return nil
	case 1:
		return errs[0]
	default:
		var msgs = make([]string, len(errs))
		for i, e := range errs {
			msgs[i] = e.Error()
		}
		return fmt.Errorf("call: %d errors: %s", len(errs), strings.Join(msgs, "; "))
	}
}
