package button

import (
	"ledfw/internal/channel"
	"ledfw/internal/hal"
	"ledfw/internal/sched"
	"ledfw/internal/timer"
)

// Gesture is the classified outcome of one press/release sequence.
type Gesture uint8

const (
	SingleClick Gesture = iota + 1
	DoubleClick
	Hold
)

func (g Gesture) String() string {
	switch g {
	case SingleClick:
		return "SingleClick"
	case DoubleClick:
		return "DoubleClick"
	case Hold:
		return "Hold"
	default:
		return "Unknown"
	}
}

// Timing holds the classification windows in milliseconds.
type Timing struct {
	Hold        uint32 // press longer than this is a Hold
	DoubleClick uint32 // max gap between release and the second press
	Debounce    uint32 // settle time after each edge, 0 disables
}

// DefaultTiming matches the firmware defaults. The 100 ms settle also bounds
// how fast classification cycles, and with it how many losing hold deadlines
// can be pending at once.
func DefaultTiming() Timing {
	return Timing{Hold: 1000, DoubleClick: 250, Debounce: 100}
}

// Classifier is the button task: it turns latched edges into gestures and
// publishes them to the LED task.
type Classifier struct {
	btn    *Button
	q      *timer.DeadlineQueue
	out    channel.Sender[Gesture]
	timing Timing
	log    hal.Logger
}

func NewClassifier(btn *Button, q *timer.DeadlineQueue, out channel.Sender[Gesture], timing Timing, log hal.Logger) *Classifier {
	return &Classifier{btn: btn, q: q, out: out, timing: timing, log: log}
}

// Run classifies and publishes gestures forever. Publishing suspends while
// the channel is full; no gesture is dropped.
func (c *Classifier) Run(cx *sched.Context) {
	for {
		g := c.Next(cx)
		hal.Logf(c.log, "[button] [%d] %s", c.q.Ticker().Now(), g)
		c.out.Send(cx, g)

		// Hold and DoubleClick are decided with the button still down
		if g != SingleClick {
			cx.Await(c.btn.Released().Wait())
			c.btn.Pressed().Clear()
			c.settle(cx, false)
		}
	}
}

// Next waits for a press and classifies the sequence that follows it. It
// returns as soon as the gesture is known, which for Hold and DoubleClick is
// before the trailing release. The hold and double-click windows run from
// the edges themselves, not from the end of a settle.
func (c *Classifier) Next(cx *sched.Context) Gesture {
	press, release := c.btn.Pressed(), c.btn.Released()

	release.Clear()
	cx.Await(press.Wait())
	hold := c.q.Until(press.Last() + uint64(c.timing.Hold))
	c.settle(cx, true)

	if cx.Race(release.Wait(), hold) == 1 {
		return Hold
	}
	// a rising edge latched while the button was down is bounce
	press.Clear()

	window := c.q.Until(release.Last() + uint64(c.timing.DoubleClick))
	c.settle(cx, false)

	if cx.Race(press.Wait(), window) == 0 {
		return DoubleClick
	}
	return SingleClick
}

// settle waits out contact bounce after an edge, then drops whatever the
// bounce latched. An opposite edge survives only if the line level confirms
// it.
func (c *Classifier) settle(cx *sched.Context, pressed bool) {
	if c.timing.Debounce == 0 {
		return
	}
	c.q.Delay(cx, c.timing.Debounce)

	level := c.btn.Level()
	if pressed {
		c.btn.Pressed().Clear()
		if level {
			c.btn.Released().Clear()
		}
		return
	}
	c.btn.Released().Clear()
	if !level {
		c.btn.Pressed().Clear()
	}
}
