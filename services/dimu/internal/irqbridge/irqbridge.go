// services/dimu/internal/irqbridge/irqbridge.go
package irqbridge

import (
	"context"
	"sync/atomic"
)

// Event is a binary event set from interrupt context and consumed by a
// single worker. Signals arriving while the event is already set collapse
// into one wake; they are counted but not replayed.
type Event struct {
	ch        chan struct{}
	signals   atomic.Uint32
	coalesced atomic.Uint32
}

func New() *Event {
	return &Event{ch: make(chan struct{}, 1)}
}

// Signal sets the event. It never blocks.
func (e *Event) Signal() {
	e.signals.Add(1)
	select {
	case e.ch <- struct{}{}:
	default:
		e.coalesced.Add(1)
	}
}

// Wait blocks until the event is set, then clears it.
func (e *Event) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-e.ch:
		return nil
	}
}

// TryWait clears the event and reports whether it was set.
func (e *Event) TryWait() bool {
	select {
	case <-e.ch:
		return true
	default:
		return false
	}
}

// C exposes the event for use in a select. Receiving clears it.
func (e *Event) C() <-chan struct{} { return e.ch }

func (e *Event) Signals() uint32   { return e.signals.Load() }
func (e *Event) Coalesced() uint32 { return e.coalesced.Load() }
