// Package app assembles the firmware images from their parts.
package app

import (
	"context"
	"errors"
	"fmt"

	"ledfw/internal/button"
	"ledfw/internal/channel"
	"ledfw/internal/config"
	"ledfw/internal/hal"
	"ledfw/internal/led"
	"ledfw/internal/sched"
	"ledfw/internal/sensor"
	"ledfw/internal/timer"
)

var ErrNoBus = errors.New("no i2c bus")

// Image is a firmware image with its tasks added, ready to run.
type Image struct {
	Exec      *sched.Executor
	Ticker    *timer.Ticker
	Deadlines *timer.DeadlineQueue

	Ring    *led.Ring       // rotate image only
	Sampler *sensor.Sampler // compass image only
}

// boot sets up the scheduling core shared by both images.
func boot(p hal.Peripherals, cfg config.Config) (*Image, error) {
	ticker := timer.NewTicker(p.SysTick)
	exec := sched.New(p.Core,
		sched.WithLogger(p.Log),
		sched.WithClock(ticker),
		sched.WithTrace(cfg.Trace),
		sched.WithReadyCapacity(cfg.ReadyQueue),
	)
	if cfg.TraceCSV != "" {
		if err := exec.EnableCSVLogging(cfg.TraceCSV); err != nil {
			return nil, fmt.Errorf("trace csv: %w", err)
		}
	}
	return &Image{
		Exec:      exec,
		Ticker:    ticker,
		Deadlines: timer.NewDeadlineQueue(ticker, p.Timer, exec, cfg.Deadlines, p.Log),
	}, nil
}

// Rotate builds the LED ring image: a button task classifying gestures and an
// LED task acting on them, joined by the event channel.
func Rotate(p hal.Peripherals, cfg config.Config) (*Image, error) {
	im, err := boot(p, cfg)
	if err != nil {
		return nil, err
	}
	events := channel.New[button.Gesture](cfg.EventQueue)

	im.Ring = led.NewRing(p.LEDs, im.Deadlines, cfg.FlashOnMS, cfg.FlashOffMS, p.Log)
	im.Exec.Add(sched.NewTask("led", func(cx *sched.Context) {
		im.Ring.Run(cx, events.Receiver())
	}))

	classifier := button.NewClassifier(
		button.New(p.Button, im.Ticker, p.Log),
		im.Deadlines,
		events.Sender(),
		button.Timing{
			Hold:        cfg.HoldMS,
			DoubleClick: cfg.DoubleClickMS,
			Debounce:    cfg.DebounceMS,
		},
		p.Log,
	)
	im.Exec.Add(sched.NewTask("button", classifier.Run))
	return im, nil
}

// Compass builds the magnetometer image. The sensor must answer at boot.
func Compass(p hal.Peripherals, cfg config.Config) (*Image, error) {
	if p.I2C == nil {
		return nil, ErrNoBus
	}
	mag, err := sensor.Open(p.I2C)
	if err != nil {
		return nil, err
	}
	im, err := boot(p, cfg)
	if err != nil {
		return nil, err
	}
	im.Sampler = sensor.NewSampler(mag, im.Deadlines, cfg.SampleMS, cfg.SensorRetries, p.Log)
	im.Exec.Add(sched.NewTask("mag", im.Sampler.Run))
	return im, nil
}

// Run runs the executor until ctx is done.
func (im *Image) Run(ctx context.Context) error {
	return im.Exec.Run(ctx)
}

// Replay schedules scripted button edges on a simulated board.
func Replay(b *hal.Board, script []config.Step) {
	for _, s := range script {
		switch s.Edge {
		case "press":
			b.At(s.AtMS, b.Button().Press)
		case "release":
			b.At(s.AtMS, b.Button().Release)
		}
	}
}
