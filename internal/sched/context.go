package sched

import "runtime"

// Future is a suspension point.
//
// Poll reports whether the awaited condition holds. When it reports false it
// must have arranged for cx.Waker() to be woken once the condition may have
// changed. Wakes can be spurious, so Poll re-checks the condition every time.
type Future interface {
	Poll(cx *Context) bool
}

// FutureFunc adapts a plain function to Future.
type FutureFunc func(cx *Context) bool

func (f FutureFunc) Poll(cx *Context) bool { return f(cx) }

// Context is what a task body sees of the executor. It must only be used from
// the goroutine of the task it was handed to.
type Context struct {
	exec *Executor
	task *Task
}

// TaskID returns the current task ID.
func (cx *Context) TaskID() TaskID { return cx.task.ID }

// Waker mints a waker for the current task.
func (cx *Context) Waker() Waker { return cx.exec.reg.Mint(cx.task.ID) }

// Await suspends the task until f is ready.
func (cx *Context) Await(f Future) {
	for !f.Poll(cx) {
		cx.suspend()
	}
}

// Race suspends the task until one of fs is ready and returns its index.
// Futures are polled in argument order on every wake, so an earlier future
// wins a tie. The losers are simply dropped; any waker they registered may
// still fire later and shows up as a spurious wake.
func (cx *Context) Race(fs ...Future) int {
	for {
		for i, f := range fs {
			if f.Poll(cx) {
				return i
			}
		}
		cx.suspend()
	}
}

// Yield marks the task ready again and gives the other ready tasks a turn.
func (cx *Context) Yield() {
	cx.Waker().Wake()
	cx.suspend()
}

func (cx *Context) suspend() {
	t := cx.task
	select {
	case t.yield <- yieldMsg{kind: yieldPending}:
	case <-t.quit:
		runtime.Goexit()
	}
	select {
	case <-t.resume:
	case <-t.quit:
		runtime.Goexit()
	}
}
