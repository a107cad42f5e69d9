// Package led drives the ring of user LEDs from button gestures.
package led

import (
	"ledfw/internal/button"
	"ledfw/internal/channel"
	"ledfw/internal/hal"
	"ledfw/internal/sched"
	"ledfw/internal/timer"
)

// flashes is how many times Hold blinks the whole ring.
const flashes = 3

// Ring lights one LED of a ring at a time and moves it around on request.
type Ring struct {
	leds      []hal.LED
	q         *timer.DeadlineQueue
	flashOn   uint32
	flashOff  uint32
	log       hal.Logger
	direction int
	current   int
}

// NewRing takes the LEDs in ring order and lights the first one.
func NewRing(leds []hal.LED, q *timer.DeadlineQueue, flashOn, flashOff uint32, log hal.Logger) *Ring {
	r := &Ring{
		leds:      leds,
		q:         q,
		flashOn:   flashOn,
		flashOff:  flashOff,
		log:       log,
		direction: 1,
	}
	for _, l := range leds {
		l.Low()
	}
	if len(leds) > 0 {
		leds[0].High()
	}
	return r
}

// Current returns the index of the lit LED.
func (r *Ring) Current() int { return r.current }

// Direction is 1 for clockwise, -1 otherwise.
func (r *Ring) Direction() int { return r.direction }

// Rotate moves the lit LED one step in the current direction.
func (r *Ring) Rotate() {
	n := len(r.leds)
	if n == 0 {
		return
	}
	r.leds[r.current].Low()
	r.current = (r.current + r.direction + n) % n
	r.leds[r.current].High()
	hal.Logf(r.log, "[led] new led: %d", r.current)
}

func (r *Ring) Reverse() {
	r.direction = -r.direction
	hal.Logf(r.log, "[led] new direction: %d", r.direction)
}

// Flash blinks every LED, then lights the current one again.
func (r *Ring) Flash(cx *sched.Context) {
	for i := 0; i < flashes; i++ {
		for _, l := range r.leds {
			l.High()
		}
		r.q.Delay(cx, r.flashOn)
		for _, l := range r.leds {
			l.Low()
		}
		r.q.Delay(cx, r.flashOff)
	}
	if len(r.leds) > 0 {
		r.leds[r.current].High()
	}
}

// Process applies one gesture.
func (r *Ring) Process(cx *sched.Context, g button.Gesture) {
	switch g {
	case button.SingleClick:
		r.Rotate()
	case button.DoubleClick:
		r.Reverse()
		r.Rotate()
	case button.Hold:
		r.Flash(cx)
	}
}

// Run is the LED task.
func (r *Ring) Run(cx *sched.Context, events channel.Receiver[button.Gesture]) {
	for {
		r.Process(cx, events.Receive(cx))
	}
}
