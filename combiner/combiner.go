// Package combiner implements the call combiner gate: a serialization
// primitive ensuring that at most one goroutine is ever mutating a given
// Call's filter-stack state at a time. Work is posted with Execute (START)
// and returns control with an ordinary Go return (STOP); cancellation is a
// distinct lane (ExecuteCancel) that preempts any already-queued, not yet
// started work, matching the reference codebase's event-loop-owns-all-state
// discipline (see protocols/capture's coordinator.loop, which serializes
// document/checkpoint/commit callbacks through a single loop goroutine
// rather than locking shared state directly).
package combiner

import "sync"

// Combiner serializes callback execution for a single Call. The zero value
// is ready to use.
type Combiner struct {
	mu      sync.Mutex
	running bool
	normal  []func()
	cancel  []func()
}

// Execute enqueues fn on the normal lane. If no callback is currently
// running, fn (and any work queued while it runs) executes synchronously on
// the calling goroutine before Execute returns; otherwise it runs later, on
// whichever goroutine is draining the combiner.
func (c *Combiner) Execute(fn func()) {
	c.enqueue(fn, false)
}

// ExecuteCancel enqueues fn on the cancel lane, which is drained ahead of
// any pending normal-lane work. This is the path cancel_with_error (§4.7)
// uses to preempt queued sends/receives.
func (c *Combiner) ExecuteCancel(fn func()) {
	c.enqueue(fn, true)
}

func (c *Combiner) enqueue(fn func(), isCancel bool) {
	c.mu.Lock()
	if c.running {
		if isCancel {
			c.cancel = append(c.cancel, fn)
		} else {
			c.normal = append(c.normal, fn)
		}
		c.mu.Unlock()
		return
	}
	c.running = true
	c.mu.Unlock()

	c.drain(fn)
}

// drain runs fn, then repeatedly pops and runs the next queued callback
// (cancel lane first) until the combiner is idle.
func (c *Combiner) drain(fn func()) {
	for fn != nil {
		fn()

		c.mu.Lock()
		switch {
		case len(c.cancel) > 0:
			fn = c.cancel[0]
			c.cancel = c.cancel[1:]
		case len(c.normal) > 0:
			fn = c.normal[0]
			c.normal = c.normal[1:]
		default:
			c.running = false
			fn = nil
		}
		c.mu.Unlock()
	}
}
