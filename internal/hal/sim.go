package hal

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// BoardLEDs is the number of user LEDs on the simulated board (PE8..PE15).
const BoardLEDs = 8

// Board is a simulated single-core board. Simulated time only advances in
// Step, one millisecond per call, so tests can drive it deterministically and
// host binaries can drive it from a wall-clock ticker with Run.
//
// Interrupt handlers are invoked from whichever goroutine calls Step, Press or
// Release, never while the board's own lock is held.
type Board struct {
	mu      sync.Mutex
	elapsed uint64
	tick    func()
	timer   timerState
	actions map[uint64][]func()

	button *SimButton
	leds   []*SimLED
	i2c    I2C
	log    Logger

	wfi chan struct{}
}

type timerState struct {
	handler func()
	period  uint32
	count   uint32
	running bool
	enabled bool
	pending bool
}

// NewBoard creates a board with the button released and every LED low.
func NewBoard(log Logger) *Board {
	b := &Board{
		actions: make(map[uint64][]func()),
		log:     log,
		wfi:     make(chan struct{}, 1),
	}
	b.button = &SimButton{b: b}
	for i := 0; i < BoardLEDs; i++ {
		b.leds = append(b.leds, &SimLED{name: fmt.Sprintf("pe%d", 8+i)})
	}
	return b
}

// Peripherals hands out the board's peripherals.
func (b *Board) Peripherals() Peripherals {
	leds := make([]LED, len(b.leds))
	for i, l := range b.leds {
		leds[i] = l
	}
	return Peripherals{
		Core:    b,
		SysTick: sysTick{b},
		Timer:   &SimTimer{b: b},
		Button:  b.button,
		LEDs:    leds,
		I2C:     b.i2c,
		Log:     b.log,
	}
}

// AttachI2C plugs a device (or a whole bus) into the board's I2C port.
func (b *Board) AttachI2C(bus I2C) { b.i2c = bus }

// Button returns the user button.
func (b *Board) Button() *SimButton { return b.button }

// LED returns the i-th user LED.
func (b *Board) LED(i int) *SimLED { return b.leds[i] }

// Timer returns a handle to the deadline timer peripheral.
func (b *Board) Timer() *SimTimer { return &SimTimer{b: b} }

// Elapsed returns how many milliseconds of simulated time have passed.
func (b *Board) Elapsed() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.elapsed
}

// At runs fn during the Step that brings the board to ms. Actions for a time
// already reached run on the next Step.
func (b *Board) At(ms uint64, fn func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ms <= b.elapsed {
		ms = b.elapsed + 1
	}
	b.actions[ms] = append(b.actions[ms], fn)
}

// Step advances simulated time by one millisecond: the SysTick interrupt,
// then the deadline timer, then any actions registered with At.
func (b *Board) Step() {
	b.mu.Lock()
	b.elapsed++
	now := b.elapsed
	tick := b.tick

	t := &b.timer
	if t.running {
		t.count++
		if t.count >= t.period {
			t.count = 0
			t.pending = true
		}
	}
	var fire func()
	if t.enabled && t.pending {
		fire = t.handler
	}

	actions := b.actions[now]
	delete(b.actions, now)
	b.mu.Unlock()

	if tick != nil {
		tick()
	}
	b.interrupt()

	if fire != nil {
		fire()
		b.interrupt()
	}

	for _, fn := range actions {
		fn()
	}
}

// Run steps the board once per period of wall time until ctx is done.
func (b *Board) Run(ctx context.Context, period time.Duration) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			b.Step()
		case <-ctx.Done():
			return
		}
	}
}

// WaitForInterrupt blocks until an interrupt has fired since the previous
// call, or ctx is done.
func (b *Board) WaitForInterrupt(ctx context.Context) error {
	select {
	case <-b.wfi:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *Board) interrupt() {
	select {
	case b.wfi <- struct{}{}:
	default:
	}
}

type sysTick struct{ b *Board }

func (s sysTick) SetHandler(handler func()) {
	s.b.mu.Lock()
	s.b.tick = handler
	s.b.mu.Unlock()
}

// SimTimer is the deadline timer peripheral of a Board.
type SimTimer struct{ b *Board }

func (t *SimTimer) SetHandler(handler func()) {
	t.b.mu.Lock()
	t.b.timer.handler = handler
	t.b.mu.Unlock()
}

func (t *SimTimer) Start(ms uint32) {
	if ms == 0 {
		ms = 1
	}
	t.b.mu.Lock()
	t.b.timer.period = ms
	t.b.timer.count = 0
	t.b.timer.running = true
	t.b.mu.Unlock()
}

func (t *SimTimer) ClearEvent() {
	t.b.mu.Lock()
	t.b.timer.pending = false
	t.b.mu.Unlock()
}

func (t *SimTimer) EnableInterrupt() {
	t.b.mu.Lock()
	t.b.timer.enabled = true
	t.b.mu.Unlock()
}

func (t *SimTimer) DisableInterrupt() {
	t.b.mu.Lock()
	t.b.timer.enabled = false
	t.b.mu.Unlock()
}

// Armed reports whether the timer interrupt is enabled, and the programmed
// period.
func (t *SimTimer) Armed() (enabled bool, period uint32) {
	t.b.mu.Lock()
	defer t.b.mu.Unlock()
	return t.b.timer.enabled, t.b.timer.period
}

// SimButton is a push button wired to an edge-interrupt capable input.
type SimButton struct {
	b       *Board
	level   bool
	handler func(Edge)
}

func (p *SimButton) SetInterrupt(handler func(Edge)) {
	p.b.mu.Lock()
	p.handler = handler
	p.b.mu.Unlock()
}

func (p *SimButton) Get() bool {
	p.b.mu.Lock()
	defer p.b.mu.Unlock()
	return p.level
}

// Press raises a rising edge. Pressing an already pressed button models a
// contact bounce glitch and still raises the edge.
func (p *SimButton) Press() { p.edge(EdgeRising) }

// Release raises a falling edge.
func (p *SimButton) Release() { p.edge(EdgeFalling) }

func (p *SimButton) edge(e Edge) {
	p.b.mu.Lock()
	p.level = e == EdgeRising
	handler := p.handler
	p.b.mu.Unlock()

	if handler != nil {
		handler(e)
	}
	p.b.interrupt()
}

// SimLED is an output pin driving an LED.
type SimLED struct {
	mu    sync.Mutex
	name  string
	level bool
	edges int
}

func (l *SimLED) High() { l.set(true) }
func (l *SimLED) Low()  { l.set(false) }

func (l *SimLED) set(level bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.level != level {
		l.edges++
	}
	l.level = level
}

func (l *SimLED) Name() string { return l.name }

// Lit reports whether the LED is currently on.
func (l *SimLED) Lit() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.level
}

// Toggles returns how many times the LED changed level.
func (l *SimLED) Toggles() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.edges
}
