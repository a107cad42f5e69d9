package sched

import (
	"github.com/emirpasic/gods/queues/circularbuffer"

	"ledfw/internal/irq"
)

// DefaultReadyCapacity is the ready queue bound used when none is configured.
const DefaultReadyCapacity = 4

// ReadyQueue is the bounded FIFO of task IDs due for a poll. It is pushed from
// interrupt handlers as well as from task context, so every access runs in its
// own critical section. Duplicates are allowed.
type ReadyQueue struct {
	q        *irq.Mutex[*circularbuffer.Queue]
	capacity int
}

func NewReadyQueue(capacity int) *ReadyQueue {
	if capacity <= 0 {
		capacity = DefaultReadyCapacity
	}
	return &ReadyQueue{
		q:        irq.NewMutex(circularbuffer.New(capacity)),
		capacity: capacity,
	}
}

// Push enqueues id and reports false when the queue is full. The buffer
// would overwrite its oldest entry on a full enqueue, so fullness is checked
// first.
func (rq *ReadyQueue) Push(id TaskID) (ok bool) {
	rq.q.With(func(q *circularbuffer.Queue) {
		if q.Full() {
			return
		}
		q.Enqueue(id)
		ok = true
	})
	return ok
}

// Pop dequeues the oldest ID.
func (rq *ReadyQueue) Pop() (id TaskID, ok bool) {
	rq.q.With(func(q *circularbuffer.Queue) {
		var v interface{}
		if v, ok = q.Dequeue(); ok {
			id = v.(TaskID)
		}
	})
	return id, ok
}

func (rq *ReadyQueue) Len() (n int) {
	rq.q.With(func(q *circularbuffer.Queue) { n = q.Size() })
	return n
}

func (rq *ReadyQueue) Cap() int { return rq.capacity }
