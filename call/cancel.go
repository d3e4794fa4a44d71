package call

import (
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/gridrpc/call/transport"
)

// Cancel cancels the call with CANCELLED, sourced from the application
// (§6 "cancel()").
func (c *Call) Cancel() error {
	return c.CancelWithStatus(codes.Canceled, "")
}

// CancelWithStatus cancels the call with the given code/description
// (§6 "cancel_with_status").
func (c *Call) CancelWithStatus(code codes.Code, description string) error {
	c.cancelWithError(SourceAPIOverride, status.Error(code, description))
	return nil
}

// cancelWithError implements cancel_with_error (§4.7):
//  1. take a termination ref
//  2. signal the combiner's cancel lane, preempting queued work
//  3. set status under source (first-writer-wins)
//  4. dispatch a cancel-stream batch; its completion releases the ref
func (c *Call) cancelWithError(source Source, err error) {
	c.internalRef("termination")

	c.setStatus(source, err)
	if c.metrics != nil {
		c.metrics.Cancellations.WithLabelValues(source.String()).Inc()
	}

	c.comb.ExecuteCancel(func() {
		c.stream.Cancel(err)
		c.internalUnref("termination")
	})
}

func (c *Call) setStatus(source Source, err error) {
	c.register.Set(source, err)
	if c.metrics != nil {
		c.metrics.StatusWrites.WithLabelValues(source.String()).Inc()
	}
}

// propagateCancelToChildren walks the child ring and cancels any child
// that inherited cancellation, run once trailing metadata has set this
// call's final status (§4.2 recv-trailing, §4.7 "Inherited from parent").
func (c *Call) propagateCancelToChildren() {
	c.forEachChild(func(child *Call) {
		if child.cancelInherited {
			child.cancelWithError(SourceAPIOverride, status.Error(codes.Canceled, "parent call finished"))
		}
	})
}

// cancelStreamFlags is a flag value for a cancel-stream send. The
// cancellation subsystem cancels through Stream.Cancel, which takes no
// flags, so nothing in this package attaches it.
const cancelStreamFlags = transport.Flags(0)
