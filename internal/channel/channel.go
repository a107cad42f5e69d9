// Package channel is the bounded single-producer single-consumer queue tasks
// use to hand events to each other.
package channel

import (
	"github.com/emirpasic/gods/queues/circularbuffer"

	"ledfw/internal/irq"
	"ledfw/internal/sched"
)

// DefaultCapacity is the channel bound used when none is configured.
const DefaultCapacity = 4

type state struct {
	buf      *circularbuffer.Queue
	sender   sched.Waker
	receiver sched.Waker
}

// Channel is a bounded FIFO between one sending and one receiving task.
// Neither side ever drops a value: Send suspends while the channel is full and
// Receive suspends while it is empty.
type Channel[T any] struct {
	st       *irq.Mutex[*state]
	capacity int
}

func New[T any](capacity int) *Channel[T] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Channel[T]{
		st:       irq.NewMutex(&state{buf: circularbuffer.New(capacity)}),
		capacity: capacity,
	}
}

// Sender returns the sending half.
func (c *Channel[T]) Sender() Sender[T] { return Sender[T]{c} }

// Receiver returns the receiving half.
func (c *Channel[T]) Receiver() Receiver[T] { return Receiver[T]{c} }

func (c *Channel[T]) Len() (n int) {
	c.st.With(func(s *state) { n = s.buf.Size() })
	return n
}

func (c *Channel[T]) Cap() int { return c.capacity }

// TrySend enqueues v unless the channel is full.
func (c *Channel[T]) TrySend(v T) (ok bool) {
	c.st.With(func(s *state) { ok = c.push(s, v) })
	return ok
}

// TryReceive dequeues the oldest value, if any.
func (c *Channel[T]) TryReceive() (v T, ok bool) {
	c.st.With(func(s *state) { v, ok = c.pop(s) })
	return v, ok
}

// Send suspends the calling task until v is enqueued.
func (c *Channel[T]) Send(cx *sched.Context, v T) {
	cx.Await(sched.FutureFunc(func(cx *sched.Context) (ok bool) {
		c.st.With(func(s *state) {
			if ok = c.push(s, v); !ok {
				s.sender = cx.Waker()
			}
		})
		return ok
	}))
}

// Receive suspends the calling task until a value is available.
func (c *Channel[T]) Receive(cx *sched.Context) (v T) {
	cx.Await(sched.FutureFunc(func(cx *sched.Context) (ok bool) {
		c.st.With(func(s *state) {
			if v, ok = c.pop(s); !ok {
				s.receiver = cx.Waker()
			}
		})
		return ok
	}))
	return v
}

// push and pop run inside the channel section and hand the other side's
// waker to the ready queue when they unblock it.

func (c *Channel[T]) push(s *state, v T) bool {
	if s.buf.Full() {
		return false
	}
	s.buf.Enqueue(v)
	if w := s.receiver; w.Valid() {
		s.receiver = sched.Waker{}
		w.Wake()
	}
	return true
}

func (c *Channel[T]) pop(s *state) (v T, ok bool) {
	var raw interface{}
	if raw, ok = s.buf.Dequeue(); !ok {
		return v, false
	}
	if w := s.sender; w.Valid() {
		s.sender = sched.Waker{}
		w.Wake()
	}
	return raw.(T), true
}

// Sender is the producing half of a Channel.
type Sender[T any] struct{ c *Channel[T] }

func (s Sender[T]) Send(cx *sched.Context, v T) { s.c.Send(cx, v) }
func (s Sender[T]) TrySend(v T) bool            { return s.c.TrySend(v) }

// Receiver is the consuming half of a Channel.
type Receiver[T any] struct{ c *Channel[T] }

func (r Receiver[T]) Receive(cx *sched.Context) T { return r.c.Receive(cx) }
func (r Receiver[T]) TryReceive() (T, bool)       { return r.c.TryReceive() }
