package sched

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"ledfw/internal/hal"
)

// signal is a one-shot condition a test can fire from outside the task.
type signal struct {
	set   bool
	waker Waker
}

func (s *signal) Poll(cx *Context) bool {
	if s.set {
		s.set = false
		return true
	}
	s.waker = cx.Waker()
	return false
}

func (s *signal) fire() {
	s.set = true
	if s.waker.Valid() {
		s.waker.Wake()
	}
}

var never = FutureFunc(func(cx *Context) bool { return false })

func expectHalt(t *testing.T, target error, fn func()) {
	t.Helper()
	defer func() {
		t.Helper()
		r := recover()
		if r == nil {
			t.Fatalf("expected halt with %v, got none", target)
		}
		err, ok := r.(error)
		if !ok || !errors.Is(err, target) {
			t.Fatalf("expected halt with %v, got %v", target, r)
		}
	}()
	fn()
}

func newTestExecutor(t *testing.T, opts ...Option) (*Executor, *hal.Board) {
	t.Helper()
	b := hal.NewBoard(nil)
	e := New(b, opts...)
	t.Cleanup(e.Close)
	return e, b
}

func TestDrainPollsBootTasksInOrder(t *testing.T) {
	e, _ := newTestExecutor(t)

	var order []string
	for _, name := range []string{"a", "b", "c"} {
		name := name
		e.Add(NewTask(name, func(cx *Context) {
			order = append(order, name)
			cx.Await(never)
		}))
	}

	if n := e.Drain(); n != 3 {
		t.Fatalf("expected 3 polls, got %d", n)
	}
	if strings.Join(order, "") != "abc" {
		t.Fatalf("expected boot order abc, got %v", order)
	}
	if n := e.Drain(); n != 0 {
		t.Fatalf("expected nothing ready after boot drain, got %d polls", n)
	}
}

func TestWakesArePolledInEnqueueOrder(t *testing.T) {
	e, _ := newTestExecutor(t)

	var order []string
	var sigs [2]signal
	for i, name := range []string{"a", "b"} {
		i, name := i, name
		e.Add(NewTask(name, func(cx *Context) {
			for {
				cx.Await(&sigs[i])
				order = append(order, name)
			}
		}))
	}
	e.Drain()

	sigs[1].fire()
	sigs[0].fire()
	e.Drain()
	if strings.Join(order, "") != "ba" {
		t.Fatalf("expected b before a, got %v", order)
	}
}

func TestWakeDuringDrainIsPolledInSameDrain(t *testing.T) {
	e, _ := newTestExecutor(t)

	var got signal
	var kick signal
	done := false
	e.Add(NewTask("producer", func(cx *Context) {
		cx.Await(&kick)
		got.fire()
		cx.Await(never)
	}))
	e.Add(NewTask("consumer", func(cx *Context) {
		cx.Await(&got)
		done = true
		cx.Await(never)
	}))
	e.Drain()

	kick.fire()
	if n := e.Drain(); n != 2 {
		t.Fatalf("expected producer and consumer polled, got %d polls", n)
	}
	if !done {
		t.Fatal("expected consumer to run in the same drain")
	}
}

func TestDuplicateWakeIsExtraPoll(t *testing.T) {
	e, _ := newTestExecutor(t)

	polls := 0
	e.Add(NewTask("a", func(cx *Context) {
		for {
			polls++
			cx.suspend()
		}
	}))
	e.Drain()

	e.Wake(0)
	e.Wake(0)
	e.Drain()
	if polls != 3 {
		t.Fatalf("expected 3 polls, got %d", polls)
	}
}

func TestYieldInterleaves(t *testing.T) {
	e, _ := newTestExecutor(t)

	var order []string
	for _, name := range []string{"a", "b"} {
		name := name
		e.Add(NewTask(name, func(cx *Context) {
			for i := 0; i < 3; i++ {
				order = append(order, name)
				cx.Yield()
			}
		}))
	}
	e.Drain()
	if strings.Join(order, "") != "ababab" {
		t.Fatalf("expected ababab, got %v", order)
	}
}

func TestReadyQueueOverflowHalts(t *testing.T) {
	log := &hal.MemLogger{}
	e, _ := newTestExecutor(t, WithReadyCapacity(4), WithLogger(log))

	for i := 0; i < 4; i++ {
		e.Wake(TaskID(i))
	}
	expectHalt(t, ErrReadyQueueFull, func() { e.Wake(4) })
	if log.Count("[fatal]") != 1 {
		t.Fatalf("expected one fatal line, got %v", log.Lines())
	}
}

func TestTooManyBootTasksHalts(t *testing.T) {
	e, _ := newTestExecutor(t, WithReadyCapacity(2))
	e.Add(NewTask("a", func(cx *Context) {}))
	e.Add(NewTask("b", func(cx *Context) {}))
	expectHalt(t, ErrReadyQueueFull, func() { e.Add(NewTask("c", func(cx *Context) {})) })
}

func TestBadTaskIDIsSkipped(t *testing.T) {
	log := &hal.MemLogger{}
	e, _ := newTestExecutor(t, WithLogger(log))
	e.Add(NewTask("a", func(cx *Context) { cx.Await(never) }))
	e.Drain()

	e.Wake(9)
	e.Wake(0)
	if n := e.Drain(); n != 1 {
		t.Fatalf("expected only the valid entry polled, got %d", n)
	}
	if log.Count("Bad task id 9") != 1 {
		t.Fatalf("expected bad id logged, got %v", log.Lines())
	}
}

func TestUnknownWakerHalts(t *testing.T) {
	e1, _ := newTestExecutor(t)
	e2, _ := newTestExecutor(t)
	e1.Add(NewTask("a", func(cx *Context) {}))
	e2.Add(NewTask("a", func(cx *Context) {}))

	w := e1.Registry().Mint(0)
	if got := e1.Registry().Resolve(w); got != 0 {
		t.Fatalf("expected task 0, got %d", got)
	}
	expectHalt(t, ErrUnknownWaker, func() { e2.Registry().Resolve(w) })
	expectHalt(t, ErrUnknownWaker, func() { Waker{}.Wake() })
	expectHalt(t, ErrUnknownWaker, func() { e1.Registry().Mint(5) })
}

func TestWakersForSameTaskAreEquivalent(t *testing.T) {
	e, _ := newTestExecutor(t)
	e.Add(NewTask("a", func(cx *Context) {}))
	e.Add(NewTask("b", func(cx *Context) {}))
	e.Drain()

	r := e.Registry()
	if !r.Mint(1).WillWake(r.Mint(1)) {
		t.Fatal("expected wakers for the same task to match")
	}
	if r.Mint(0).WillWake(r.Mint(1)) {
		t.Fatal("expected wakers for different tasks to differ")
	}
	if id := r.Mint(1).TaskID(); id != 1 {
		t.Fatalf("expected task 1, got %d", id)
	}
}

func TestTaskPanicIsRaisedByDrain(t *testing.T) {
	e, _ := newTestExecutor(t)
	e.Add(NewTask("bad", func(cx *Context) { panic("boom") }))

	defer func() {
		if r := recover(); r != "boom" {
			t.Fatalf("expected boom, got %v", r)
		}
	}()
	e.Drain()
}

func TestHaltInsideTaskIsRaisedByDrain(t *testing.T) {
	e, _ := newTestExecutor(t, WithReadyCapacity(1))
	e.Add(NewTask("spammer", func(cx *Context) {
		cx.Waker().Wake()
		cx.Waker().Wake()
	}))
	expectHalt(t, ErrReadyQueueFull, func() { e.Drain() })
}

func TestReturnedTaskIsParked(t *testing.T) {
	log := &hal.MemLogger{}
	e, _ := newTestExecutor(t, WithLogger(log))
	e.Add(NewTask("once", func(cx *Context) {}))
	e.Drain()

	e.Wake(0)
	e.Drain()
	if e.Polls() != 1 {
		t.Fatalf("expected a single poll, got %d", e.Polls())
	}
	if log.Count("returned, parked") != 1 {
		t.Fatalf("expected park logged, got %v", log.Lines())
	}
}

func TestRunIdlesUntilInterrupt(t *testing.T) {
	e, b := newTestExecutor(t)
	e.Add(NewTask("idle", func(cx *Context) { cx.Await(never) }))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- e.Run(ctx) }()

	waitFor(t, func() bool { return e.Idles() == 1 })
	time.Sleep(20 * time.Millisecond)
	if e.Idles() != 1 || e.Polls() != 1 {
		t.Fatalf("expected one poll and one idle, got %d polls %d idles", e.Polls(), e.Idles())
	}

	b.Button().Press()
	waitFor(t, func() bool { return e.Idles() == 2 })
	if e.Polls() != 1 {
		t.Fatalf("expected no extra poll on an unrelated interrupt, got %d", e.Polls())
	}

	cancel()
	if err := <-errCh; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestTraceAndCSVLogging(t *testing.T) {
	log := &hal.MemLogger{}
	e, _ := newTestExecutor(t, WithLogger(log), WithTrace(true))

	path := filepath.Join(t.TempDir(), "trace.csv")
	if err := e.EnableCSVLogging(path); err != nil {
		t.Fatal(err)
	}
	e.Add(NewTask("a", func(cx *Context) { cx.Await(never) }))
	e.Drain()
	e.Close()

	if log.Count("Dispatch") != 1 || log.Count("Suspend") != 1 {
		t.Fatalf("expected dispatch and suspend trace lines, got %v", log.Lines())
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if lines[0] != "tick,event,task_id,ready" {
		t.Fatalf("unexpected header %q", lines[0])
	}
	if !strings.Contains(string(data), "Dispatch,0") {
		t.Fatalf("expected dispatch row, got %q", data)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(time.Millisecond)
	}
}
