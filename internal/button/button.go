// Package button turns the edges of the user button into gestures.
package button

import (
	"ledfw/internal/hal"
	"ledfw/internal/sched"
)

// Button latches both edges of a push button line.
type Button struct {
	line    hal.ButtonLine
	log     hal.Logger
	press   *Latch
	release *Latch
}

// New claims line and installs its edge interrupt handler. Edges are stamped
// with clock.
func New(line hal.ButtonLine, clock sched.Clock, log hal.Logger) *Button {
	b := &Button{
		line:    line,
		log:     log,
		press:   NewLatch("pressed", clock, log),
		release: NewLatch("released", clock, log),
	}
	line.SetInterrupt(b.onEdge)
	return b
}

func (b *Button) onEdge(e hal.Edge) {
	hal.Logf(b.log, "[button] Button %s edge interrupt", e)
	switch e {
	case hal.EdgeRising:
		b.press.Signal()
	case hal.EdgeFalling:
		b.release.Signal()
	}
}

// Pressed is the rising edge latch.
func (b *Button) Pressed() *Latch { return b.press }

// Released is the falling edge latch.
func (b *Button) Released() *Latch { return b.release }

// Level reports whether the button is held down right now.
func (b *Button) Level() bool { return b.line.Get() }
