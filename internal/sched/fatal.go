package sched

import (
	"errors"

	"ledfw/internal/hal"
)

var (
	ErrReadyQueueFull = errors.New("task queue full")
	ErrUnknownWaker   = errors.New("unknown waker/executor")
	ErrTooManyTasks   = errors.New("too many tasks")
	ErrStarted        = errors.New("executor already running")
)

// Halt stops the firmware: the error is written to the diagnostic log and then
// raised as a panic. There is no local recovery from a fatal condition.
func Halt(log hal.Logger, err error) {
	hal.Logf(log, "[fatal] %v", err)
	panic(err)
}
