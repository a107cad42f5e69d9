// internal/timer/ticker.go

package timer

import (
	"sync/atomic"

	"ledfw/internal/hal"
)

// Ticker is the firmware's time base: a millisecond count advanced by the
// 1 ms SysTick interrupt. It never goes backwards and never catches up on
// missed interrupts.
type Ticker struct {
	msec atomic.Uint64
}

// NewTicker creates a ticker and hooks it to the tick interrupt, if given.
func NewTicker(src hal.SysTick) *Ticker {
	t := &Ticker{}
	if src != nil {
		src.SetHandler(t.Tick)
	}
	return t
}

// Tick is the interrupt handler.
func (t *Ticker) Tick() { t.msec.Add(1) }

// Now returns the current millisecond count.
func (t *Ticker) Now() uint64 { return t.msec.Load() }
