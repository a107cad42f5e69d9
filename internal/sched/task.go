package sched

// TaskID identifies a task. IDs are dense, assigned in registration order and
// never reused.
type TaskID uint8

// MaxTasks bounds the task set.
const MaxTasks = 255

// Task is one cooperative activity. Its body runs on a goroutine of its own,
// but only while the executor is polling it: control returns to the executor
// at every suspension point.
type Task struct {
	ID   TaskID
	Name string
	Run  func(cx *Context) // firmware tasks never return; a task that does is parked for good

	started bool
	done    bool
	resume  chan struct{}
	yield   chan yieldMsg
	quit    <-chan struct{}
}

// NewTask creates a task. The ID is assigned when it is added to an executor.
func NewTask(name string, run func(cx *Context)) *Task {
	return &Task{
		Name: name,
		Run:  run,
	}
}

type yieldKind uint8

const (
	yieldPending yieldKind = iota
	yieldDone
	yieldFault
)

type yieldMsg struct {
	kind  yieldKind
	fault any
}

// main is the body of the task goroutine. A panic in the task body is handed
// to the executor, which re-raises it on its own goroutine.
func (t *Task) main(cx *Context) {
	msg := yieldMsg{kind: yieldDone}
	defer func() {
		if r := recover(); r != nil {
			msg = yieldMsg{kind: yieldFault, fault: r}
		}
		select {
		case t.yield <- msg:
		case <-t.quit:
		}
	}()
	t.Run(cx)
}
