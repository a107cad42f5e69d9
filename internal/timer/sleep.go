package timer

import "ledfw/internal/sched"

type sleepState uint8

const (
	sleepInit sleepState = iota
	sleepWaiting
)

// Sleep is a future that becomes ready once the ticker reaches a deadline
// fixed when the Sleep was created. The first poll registers the deadline;
// later polls only compare against the ticker, so a wake before the deadline
// leaves the Sleep pending.
type Sleep struct {
	q        *DeadlineQueue
	deadline uint64
	state    sleepState
}

// After returns a Sleep that ends ms milliseconds from now.
func (q *DeadlineQueue) After(ms uint32) *Sleep {
	return q.Until(q.ticker.Now() + uint64(ms))
}

// Until returns a Sleep that ends at the absolute tick deadline.
func (q *DeadlineQueue) Until(deadline uint64) *Sleep {
	return &Sleep{q: q, deadline: deadline}
}

// Delay suspends the calling task for ms milliseconds.
func (q *DeadlineQueue) Delay(cx *sched.Context, ms uint32) {
	cx.Await(q.After(ms))
}

// Deadline returns the tick the Sleep ends at.
func (s *Sleep) Deadline() uint64 { return s.deadline }

func (s *Sleep) Poll(cx *sched.Context) bool {
	switch s.state {
	case sleepInit:
		s.q.ScheduleAt(cx.Waker().TaskID(), s.deadline)
		s.state = sleepWaiting
		return false
	default:
		return s.q.ticker.Now() >= s.deadline
	}
}
