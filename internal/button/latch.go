package button

import (
	"sync/atomic"

	"ledfw/internal/hal"
	"ledfw/internal/sched"
)

// Latch is a one-deep edge flag set by an interrupt handler and consumed by a
// task. An edge that arrives while the flag is still set is dropped, so any
// burst of edges before consumption counts once. The latch remembers when
// the kept edge happened.
type Latch struct {
	name  string
	clock sched.Clock
	log   hal.Logger
	edge  atomic.Uint64 // tick of the latched edge + 1, 0 when clear
	waker atomic.Pointer[sched.Waker]
	last  uint64
}

// NewLatch creates a clear latch. clock stamps edges and may be nil.
func NewLatch(name string, clock sched.Clock, log hal.Logger) *Latch {
	return &Latch{name: name, clock: clock, log: log}
}

// Signal is called from the edge interrupt. It reports whether the edge was
// latched and wakes the registered waiter on a false to true transition.
func (l *Latch) Signal() bool {
	var now uint64
	if l.clock != nil {
		now = l.clock.Now()
	}
	if !l.edge.CompareAndSwap(0, now+1) {
		hal.Logf(l.log, "[button] Button already %s, ignoring", l.name)
		return false
	}
	if w := l.waker.Swap(nil); w != nil {
		w.Wake()
	}
	return true
}

// Take consumes the flag and reports whether it was set.
func (l *Latch) Take() bool {
	v := l.edge.Swap(0)
	if v == 0 {
		return false
	}
	l.last = v - 1
	return true
}

// Last returns the tick of the most recently consumed edge.
func (l *Latch) Last() uint64 { return l.last }

// Clear drops a latched edge.
func (l *Latch) Clear() { l.edge.Store(0) }

// Pending reports whether an edge is latched.
func (l *Latch) Pending() bool { return l.edge.Load() != 0 }

// Wait returns a future that consumes the next latched edge.
func (l *Latch) Wait() sched.Future { return sched.FutureFunc(l.poll) }

func (l *Latch) poll(cx *sched.Context) bool {
	if l.Take() {
		return true
	}
	w := cx.Waker()
	l.waker.Store(&w)
	// an edge landing between the swap and the store found no waker
	return l.Take()
}
