// internal/sched/executor.go

package sched

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"ledfw/internal/hal"
)

// Clock is the time source used to stamp trace events.
type Clock interface {
	Now() uint64
}

// Option configures an Executor.
type Option func(*Executor)

// WithLogger sets the diagnostic sink.
func WithLogger(l hal.Logger) Option { return func(e *Executor) { e.log = l } }

// WithClock stamps trace events with c.
func WithClock(c Clock) Option { return func(e *Executor) { e.clock = c } }

// WithTrace logs every wake, dispatch and suspend.
func WithTrace(on bool) Option { return func(e *Executor) { e.trace = on } }

// WithReadyCapacity bounds the ready queue.
func WithReadyCapacity(n int) Option { return func(e *Executor) { e.readyCap = n } }

// Executor runs a fixed set of cooperative tasks on one core. Tasks are polled
// in the order their wakes were enqueued; when nothing is ready the core waits
// for an interrupt.
type Executor struct {
	core     hal.Core
	log      hal.Logger
	clock    Clock
	trace    bool
	readyCap int

	tasks   []*Task
	reg     *Registry
	running atomic.Bool

	polls atomic.Uint64
	idles atomic.Uint64

	// logging-related
	evMu      sync.Mutex
	csvFile   *os.File
	csvWriter *csv.Writer

	quit      chan struct{}
	closeOnce sync.Once
}

// New creates an executor with an empty task set.
func New(core hal.Core, opts ...Option) *Executor {
	e := &Executor{
		core:     core,
		readyCap: DefaultReadyCapacity,
		quit:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.reg = NewRegistry(NewReadyQueue(e.readyCap), e.log)
	e.reg.onWake = func(id TaskID) { e.emit(StatusWake, id) }
	return e
}

// Add registers t, assigns its ID and marks it ready. Boot time only.
func (e *Executor) Add(t *Task) TaskID {
	if e.running.Load() {
		Halt(e.log, fmt.Errorf("%w: can't add %q", ErrStarted, t.Name))
	}
	if len(e.tasks) >= MaxTasks {
		Halt(e.log, fmt.Errorf("%w: can't add %q", ErrTooManyTasks, t.Name))
	}
	t.ID = e.reg.register()
	t.resume = make(chan struct{})
	t.yield = make(chan yieldMsg)
	t.quit = e.quit
	e.tasks = append(e.tasks, t)
	e.reg.Wake(t.ID)
	return t.ID
}

// Registry returns the waker registry.
func (e *Executor) Registry() *Registry { return e.reg }

// Wake marks task id ready. Safe from interrupt context.
func (e *Executor) Wake(id TaskID) { e.reg.Wake(id) }

// Len returns the number of tasks.
func (e *Executor) Len() int { return len(e.tasks) }

// Polls returns how many times a task has been polled.
func (e *Executor) Polls() uint64 { return e.polls.Load() }

// Idles returns how many times the core went to sleep.
func (e *Executor) Idles() uint64 { return e.idles.Load() }

// EnableCSVLogging opens the given file path for CSV logging of events.
// Must be called before Run().
func (e *Executor) EnableCSVLogging(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)

	// write header
	w.Write([]string{"tick", "event", "task_id", "ready"})
	w.Flush()

	e.evMu.Lock()
	e.csvFile = f
	e.csvWriter = w
	e.evMu.Unlock()
	return nil
}

// Run is the firmware main loop. It only returns when ctx is done, which
// never happens on the device.
func (e *Executor) Run(ctx context.Context) error {
	e.running.Store(true)
	defer e.Close()

	for {
		e.Drain()
		if err := ctx.Err(); err != nil {
			return err
		}
		if n := e.idles.Add(1); n%10000 == 1 {
			hal.Logf(e.log, "[executor] No tasks ready, going to sleep...")
		}
		e.emit(StatusIdle, 0)
		if err := e.core.WaitForInterrupt(ctx); err != nil {
			return err
		}
	}
}

// Drain polls ready tasks until the ready queue is empty, including tasks
// woken while draining, and returns the number of polls made.
func (e *Executor) Drain() int {
	n := 0
	for {
		id, ok := e.reg.ready.Pop()
		if !ok {
			return n
		}
		if int(id) >= len(e.tasks) {
			hal.Logf(e.log, "[executor] Bad task id %d!", id)
			e.emit(StatusBadTask, id)
			continue
		}
		e.poll(e.tasks[id])
		n++
	}
}

// Close releases the task goroutines and flushes the CSV log. The executor
// must not be used afterwards.
func (e *Executor) Close() {
	e.closeOnce.Do(func() {
		close(e.quit)

		e.evMu.Lock()
		defer e.evMu.Unlock()
		if e.csvFile != nil {
			e.csvWriter.Flush()
			e.csvFile.Close()
			e.csvFile, e.csvWriter = nil, nil
		}
	})
}

func (e *Executor) poll(t *Task) {
	if t.done {
		return
	}
	e.polls.Add(1)
	e.emit(StatusDispatch, t.ID)

	if !t.started {
		t.started = true
		go t.main(&Context{exec: e, task: t})
	} else {
		t.resume <- struct{}{}
	}

	msg := <-t.yield
	switch msg.kind {
	case yieldPending:
		e.emit(StatusSuspend, t.ID)
	case yieldDone:
		t.done = true
		hal.Logf(e.log, "[executor] Task %d (%s) returned, parked", t.ID, t.Name)
		e.emit(StatusFinish, t.ID)
	case yieldFault:
		t.done = true
		hal.Logf(e.log, "[executor] Task %d (%s) faulted: %v", t.ID, t.Name, msg.fault)
		panic(msg.fault)
	}
}

func (e *Executor) emit(kind StatusKind, id TaskID) {
	if !e.trace && !e.csvEnabled() {
		return
	}
	var tick uint64
	if e.clock != nil {
		tick = e.clock.Now()
	}
	e.handleEvent(StatusEvent{
		Tick:   tick,
		Kind:   kind,
		TaskID: id,
		Ready:  e.reg.ready.Len(),
	})
}

func (e *Executor) csvEnabled() bool {
	e.evMu.Lock()
	defer e.evMu.Unlock()
	return e.csvWriter != nil
}

func (e *Executor) handleEvent(ev StatusEvent) {
	e.evMu.Lock()
	defer e.evMu.Unlock()

	// idle entries happen every millisecond; they only go to the CSV file
	if e.trace && ev.Kind != StatusIdle {
		// an auxiliary function to center the event kind in the output
		center := func(str string, width int) string {
			spaces := int(float64(width-len(str)) / 2)
			return strings.Repeat(" ", spaces) + str + strings.Repeat(" ", width-(spaces+len(str)))
		}
		hal.Logf(e.log, "[executor] Tick: %07d [%s] => Task: %04d, ready: %d",
			ev.Tick,
			center(ev.Kind.String(), 12),
			ev.TaskID,
			ev.Ready,
		)
	}

	// CSV output
	if e.csvWriter != nil {
		e.csvWriter.Write([]string{
			strconv.FormatUint(ev.Tick, 10),
			ev.Kind.String(),
			strconv.FormatInt(int64(ev.TaskID), 10),
			strconv.Itoa(ev.Ready),
		})
		e.csvWriter.Flush()
	}
}
