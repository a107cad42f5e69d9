// internal/sched/schedulerEvent.go

package sched

// StatusKind represents the type of scheduler event
type StatusKind int

const (
	StatusIdle StatusKind = iota
	StatusWake
	StatusDispatch
	StatusSuspend
	StatusFinish
	StatusBadTask
)

// StatusEvent is emitted on key scheduling actions when tracing is enabled.
type StatusEvent struct {
	Tick   uint64 // millisecond tick, 0 without a clock
	Kind   StatusKind
	TaskID TaskID
	Ready  int // ready queue length after the action
}

func (sk StatusKind) String() string {
	switch sk {
	case StatusIdle:
		return "Idle"
	case StatusWake:
		return "Wake"
	case StatusDispatch:
		return "Dispatch"
	case StatusSuspend:
		return "Suspend"
	case StatusFinish:
		return "Finish"
	case StatusBadTask:
		return "BadTask"
	default:
		return "Unknown"
	}
}
