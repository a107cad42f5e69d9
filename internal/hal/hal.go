// Package hal is the hardware boundary of the firmware. The scheduling core
// only ever talks to the peripherals through these interfaces.
package hal

import (
	"context"

	"tinygo.org/x/drivers"
)

// Logger writes newline-delimited log lines. Best effort, no acknowledgment.
type Logger interface {
	WriteLineString(s string)
}

// LED is a minimal output pin abstraction.
type LED interface {
	High()
	Low()
}

// Edge is a transition on an input line.
type Edge uint8

const (
	EdgeRising Edge = iota + 1
	EdgeFalling
)

func (e Edge) String() string {
	switch e {
	case EdgeRising:
		return "rising"
	case EdgeFalling:
		return "falling"
	default:
		return "unknown"
	}
}

// ButtonLine is a GPIO input with edge interrupts on both edges.
//
// The pending flag is cleared by the implementation before the handler runs.
type ButtonLine interface {
	SetInterrupt(handler func(Edge))
	Get() bool
}

// SysTick is the fixed 1 ms periodic interrupt source.
type SysTick interface {
	SetHandler(handler func())
}

// DeadlineTimer is a reprogrammable timer peripheral. Start sets the period in
// milliseconds and restarts counting; the update event is raised at the end of
// every period until the timer is restarted.
type DeadlineTimer interface {
	SetHandler(handler func())
	Start(ms uint32)
	ClearEvent()
	EnableInterrupt()
	DisableInterrupt()
}

// Core is the CPU itself.
type Core interface {
	// WaitForInterrupt suspends the core until any interrupt fires.
	WaitForInterrupt(ctx context.Context) error
}

// I2C is the bus used by the sensor image.
type I2C = drivers.I2C

// Peripherals is everything a firmware image may claim at reset.
type Peripherals struct {
	Core    Core
	SysTick SysTick
	Timer   DeadlineTimer
	Button  ButtonLine
	LEDs    []LED
	I2C     I2C
	Log     Logger
}
