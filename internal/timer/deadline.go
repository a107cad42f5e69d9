// internal/timer/deadline.go

package timer

import (
	"errors"
	"fmt"
	"math"

	"github.com/emirpasic/gods/trees/binaryheap"

	"ledfw/internal/hal"
	"ledfw/internal/irq"
	"ledfw/internal/sched"
)

// DefaultCapacity is the deadline queue bound used when none is configured.
const DefaultCapacity = 8

var ErrDeadlineQueueFull = errors.New("deadline queue full")

// TaskWaker marks a task ready. Implemented by *sched.Executor and
// *sched.Registry.
type TaskWaker interface {
	Wake(id sched.TaskID)
}

type entry struct {
	deadline uint64
	seq      uint64 // insertion order, breaks deadline ties
	id       sched.TaskID
}

// byDeadline orders entries by deadline, then by insertion.
func byDeadline(a, b interface{}) int {
	ea, eb := a.(entry), b.(entry)
	switch {
	case ea.deadline < eb.deadline:
		return -1
	case ea.deadline > eb.deadline:
		return 1
	case ea.seq < eb.seq:
		return -1
	case ea.seq > eb.seq:
		return 1
	default:
		return 0
	}
}

// deadlineState is everything shared with the timer interrupt.
type deadlineState struct {
	heap  *binaryheap.Heap
	seq   uint64
	timer hal.DeadlineTimer
}

// DeadlineQueue holds pending wake-at-time requests and keeps the hardware
// deadline timer programmed for the earliest one. Entries cannot be
// cancelled; each fires exactly once.
type DeadlineQueue struct {
	ticker   *Ticker
	wake     TaskWaker
	capacity int
	log      hal.Logger
	state    *irq.Mutex[*deadlineState]
}

// NewDeadlineQueue takes ownership of tim and installs its interrupt handler.
func NewDeadlineQueue(ticker *Ticker, tim hal.DeadlineTimer, wake TaskWaker, capacity int, log hal.Logger) *DeadlineQueue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	q := &DeadlineQueue{
		ticker:   ticker,
		wake:     wake,
		capacity: capacity,
		log:      log,
		state: irq.NewMutex(&deadlineState{
			heap:  binaryheap.NewWith(byDeadline),
			timer: tim,
		}),
	}
	tim.SetHandler(q.onInterrupt)
	return q
}

// Ticker returns the time base deadlines are measured against.
func (q *DeadlineQueue) Ticker() *Ticker { return q.ticker }

// Len returns the number of pending deadlines.
func (q *DeadlineQueue) Len() (n int) {
	q.state.With(func(s *deadlineState) { n = s.heap.Size() })
	return n
}

// Schedule wakes id once ms milliseconds have elapsed.
func (q *DeadlineQueue) Schedule(id sched.TaskID, ms uint32) {
	q.ScheduleAt(id, q.ticker.Now()+uint64(ms))
}

// ScheduleAt wakes id once the ticker reaches deadline. A deadline that has
// already passed wakes id immediately. Overflowing the queue halts.
func (q *DeadlineQueue) ScheduleAt(id sched.TaskID, deadline uint64) {
	q.state.With(func(s *deadlineState) {
		if s.heap.Size() >= q.capacity {
			sched.Halt(q.log, fmt.Errorf("%w: deadline dropped for task %d", ErrDeadlineQueueFull, id))
		}

		earliest := true
		if v, ok := s.heap.Peek(); ok {
			earliest = deadline < v.(entry).deadline
		}
		s.seq++
		s.heap.Push(entry{deadline: deadline, seq: s.seq, id: id})

		// otherwise the timer is already armed for an earlier deadline
		if earliest {
			q.rearm(s, q.ticker.Now())
		}
	})
}

// onInterrupt is the deadline timer interrupt handler.
func (q *DeadlineQueue) onInterrupt() {
	now := q.ticker.Now()
	hal.Logf(q.log, "[timer] [%d] timer expired", now)

	q.state.With(func(s *deadlineState) {
		s.timer.ClearEvent()
		q.rearm(s, now)
	})
}

// rearm wakes every task whose deadline has passed, then programs the timer
// for the next one, or turns its interrupt off when nothing is left. Callers
// hold the state section.
func (q *DeadlineQueue) rearm(s *deadlineState, now uint64) {
	for {
		v, ok := s.heap.Peek()
		if !ok {
			hal.Logf(q.log, "[timer] Deadlines queue is empty")
			s.timer.DisableInterrupt()
			return
		}
		e := v.(entry)
		if e.deadline > now {
			ms := e.deadline - now
			if ms > math.MaxUint32 {
				ms = math.MaxUint32
			}
			hal.Logf(q.log, "[timer] Next Timer: %d", ms)
			s.timer.ClearEvent()
			s.timer.EnableInterrupt()
			s.timer.Start(uint32(ms))
			return
		}
		hal.Logf(q.log, "[timer] Invoking task: %d", e.id)
		s.heap.Pop()
		q.wake.Wake(e.id)
	}
}
