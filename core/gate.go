package core

import "context"

// DefaultGateWidth is the admission gate width used when none is configured.
const DefaultGateWidth = 3

// AdmissionGate bounds how many units of work may run concurrently. It is a
// fixed-width counting semaphore: Acquire blocks until a slot frees or the
// context is cancelled, Release returns the slot.
type AdmissionGate struct {
	slots chan struct{}
}

// NewAdmissionGate creates a gate of the given width. Widths below one fall
// back to DefaultGateWidth.
func NewAdmissionGate(width int) *AdmissionGate {
	if width < 1 {
		width = DefaultGateWidth
	}
	return &AdmissionGate{slots: make(chan struct{}, width)}
}

// Acquire claims a slot, blocking until one is available.
func (g *AdmissionGate) Acquire(ctx context.Context) error {
	select {
	case g.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release frees a previously acquired slot.
func (g *AdmissionGate) Release() {
	<-g.slots
}

// Width returns the configured gate width.
func (g *AdmissionGate) Width() int { return cap(g.slots) }

// InUse returns the number of currently held slots.
func (g *AdmissionGate) InUse() int { return len(g.slots) }
