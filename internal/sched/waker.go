package sched

import (
	"fmt"

	"github.com/google/uuid"

	"ledfw/internal/hal"
)

// Waker is the capability to mark one task ready. Wakers are plain values;
// any number may be outstanding for a task and they are all equivalent.
// The zero Waker is invalid.
type Waker struct {
	reg   *Registry
	id    TaskID
	token uuid.UUID
}

// Valid reports whether w was minted by a registry.
func (w Waker) Valid() bool { return w.reg != nil }

// Wake marks the task behind w ready. Safe from interrupt context.
func (w Waker) Wake() {
	if w.reg == nil {
		Halt(nil, fmt.Errorf("%w: zero waker", ErrUnknownWaker))
	}
	w.reg.Wake(w.reg.Resolve(w))
}

// TaskID resolves w to the task it wakes.
func (w Waker) TaskID() TaskID {
	if w.reg == nil {
		Halt(nil, fmt.Errorf("%w: zero waker", ErrUnknownWaker))
	}
	return w.reg.Resolve(w)
}

// WillWake reports whether w and o wake the same task.
func (w Waker) WillWake(o Waker) bool {
	return w.reg == o.reg && w.id == o.id && w.token == o.token
}

// Registry mints wakers and turns wakes into ready queue entries. Each task
// gets a random token at registration; a waker resolves only if it carries
// the token of the task it names.
type Registry struct {
	tokens []uuid.UUID
	ready  *ReadyQueue
	log    hal.Logger
	onWake func(TaskID)
}

func NewRegistry(ready *ReadyQueue, log hal.Logger) *Registry {
	return &Registry{ready: ready, log: log}
}

// register allocates the token for the next task ID. Boot time only.
func (r *Registry) register() TaskID {
	id := TaskID(len(r.tokens))
	r.tokens = append(r.tokens, uuid.New())
	return id
}

// Len returns the number of registered tasks.
func (r *Registry) Len() int { return len(r.tokens) }

// Mint returns a waker for id.
func (r *Registry) Mint(id TaskID) Waker {
	if int(id) >= len(r.tokens) {
		Halt(r.log, fmt.Errorf("%w: no task %d", ErrUnknownWaker, id))
	}
	return Waker{reg: r, id: id, token: r.tokens[id]}
}

// Resolve maps a waker back to its task ID. A waker that was not minted by
// this registry is a programming error and halts.
func (r *Registry) Resolve(w Waker) TaskID {
	if w.reg != r || int(w.id) >= len(r.tokens) || r.tokens[w.id] != w.token {
		Halt(r.log, fmt.Errorf("%w: task %d", ErrUnknownWaker, w.id))
	}
	return w.id
}

// Wake enqueues id. The ID is not validated here; the executor skips entries
// it has no task for. A full queue halts.
func (r *Registry) Wake(id TaskID) {
	if !r.ready.Push(id) {
		Halt(r.log, fmt.Errorf("%w: can't add task %d", ErrReadyQueueFull, id))
	}
	if r.onWake != nil {
		r.onWake(id)
	}
}
