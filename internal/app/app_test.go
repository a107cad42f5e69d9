package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"ledfw/internal/config"
	"ledfw/internal/hal"
	"ledfw/internal/sensor"
)

func step(b *hal.Board, im *Image, until uint64) {
	for b.Elapsed() < until {
		b.Step()
		im.Exec.Drain()
	}
}

func litLEDs(b *hal.Board) []int {
	var on []int
	for i := 0; i < hal.BoardLEDs; i++ {
		if b.LED(i).Lit() {
			on = append(on, i)
		}
	}
	return on
}

func expectLit(t *testing.T, b *hal.Board, want int) {
	t.Helper()
	on := litLEDs(b)
	if len(on) != 1 || on[0] != want {
		t.Fatalf("at %d ms: expected only led %d lit, got %v", b.Elapsed(), want, on)
	}
}

func newRotate(t *testing.T, cfg config.Config) (*hal.Board, *Image, *hal.MemLogger) {
	t.Helper()
	log := &hal.MemLogger{}
	b := hal.NewBoard(log)
	im, err := Rotate(b.Peripherals(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(im.Exec.Close)
	im.Exec.Drain()
	return b, im, log
}

func TestRotateGestures(t *testing.T) {
	b, im, log := newRotate(t, config.Default())
	Replay(b, []config.Step{
		// single click
		{AtMS: 10, Edge: "press"},
		{AtMS: 60, Edge: "release"},
		// double click
		{AtMS: 500, Edge: "press"},
		{AtMS: 550, Edge: "release"},
		{AtMS: 650, Edge: "press"},
		{AtMS: 760, Edge: "release"},
		// hold
		{AtMS: 1000, Edge: "press"},
		{AtMS: 2500, Edge: "release"},
	})

	expectLit(t, b, 0)
	step(b, im, 309)
	expectLit(t, b, 0)
	step(b, im, 310)
	expectLit(t, b, 1)

	// the second press is confirmed when the release settle ends
	step(b, im, 699)
	expectLit(t, b, 1)
	step(b, im, 700)
	expectLit(t, b, 0)
	if im.Ring.Direction() != -1 {
		t.Fatal("expected the double click to reverse the ring")
	}

	step(b, im, 2000)
	if on := litLEDs(b); len(on) != hal.BoardLEDs {
		t.Fatalf("expected the hold to flash every led, got %v", on)
	}
	step(b, im, 2000+3*700)
	expectLit(t, b, 0)

	for _, want := range []string{"SingleClick", "DoubleClick", "Hold"} {
		if log.Count(want) != 1 {
			t.Fatalf("expected one %s logged, got %v", want, log.Lines())
		}
	}
}

func TestRotateTraceCSV(t *testing.T) {
	cfg := config.Default()
	cfg.Trace = true
	cfg.TraceCSV = filepath.Join(t.TempDir(), "trace.csv")

	b, im, log := newRotate(t, cfg)
	b.At(5, b.Button().Press)
	step(b, im, 10)
	im.Exec.Close()

	data, err := os.ReadFile(cfg.TraceCSV)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if lines[0] != "tick,event,task_id,ready" {
		t.Fatalf("unexpected header %q", lines[0])
	}
	if !strings.Contains(string(data), "5,Dispatch,1,") {
		t.Fatalf("expected the button task dispatched at 5, got\n%s", data)
	}
	if log.Count("[executor] Tick: 0000005") == 0 {
		t.Fatalf("expected trace lines in the log, got %v", log.Lines())
	}
}

func TestRotateBadCSVPath(t *testing.T) {
	cfg := config.Default()
	cfg.TraceCSV = filepath.Join(t.TempDir(), "missing", "trace.csv")
	if _, err := Rotate(hal.NewBoard(nil).Peripherals(), cfg); err == nil {
		t.Fatal("expected an error for an unwritable trace file")
	}
}

func TestRotateRealTime(t *testing.T) {
	b := hal.NewBoard(nil)
	im, err := Rotate(b.Peripherals(), config.Default())
	if err != nil {
		t.Fatal(err)
	}
	Replay(b, []config.Step{{AtMS: 5, Edge: "press"}, {AtMS: 20, Edge: "release"}})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	go b.Run(ctx, time.Millisecond)
	done := make(chan error, 1)
	go func() { done <- im.Run(ctx) }()

	for {
		if on := litLEDs(b); len(on) == 1 && on[0] == 1 {
			break
		}
		select {
		case <-ctx.Done():
			t.Fatalf("single click never reached the ring, lit %v", litLEDs(b))
		case <-time.After(time.Millisecond):
		}
	}
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestCompassNeedsBus(t *testing.T) {
	if _, err := Compass(hal.NewBoard(nil).Peripherals(), config.Default()); !errors.Is(err, ErrNoBus) {
		t.Fatalf("expected ErrNoBus, got %v", err)
	}

	b := hal.NewBoard(nil)
	dev := hal.NewSimLSM303AGR()
	dev.FailNext(1)
	b.AttachI2C(dev)
	if _, err := Compass(b.Peripherals(), config.Default()); !errors.Is(err, sensor.ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
}

func TestCompassSamples(t *testing.T) {
	log := &hal.MemLogger{}
	b := hal.NewBoard(log)
	dev := hal.NewSimLSM303AGR()
	dev.SetField(-50, 75, 400)
	b.AttachI2C(dev)

	cfg := config.Default()
	cfg.SampleMS = 100
	im, err := Compass(b.Peripherals(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(im.Exec.Close)
	im.Exec.Drain()
	step(b, im, 500)

	// 10, 110, 210, 310, 410
	if im.Sampler.Samples() != 5 {
		t.Fatalf("expected 5 samples, got %d", im.Sampler.Samples())
	}
	if log.Count("x=-50 y=75 z=400") != 5 {
		t.Fatalf("expected the field logged, got %v", log.Lines())
	}
}

func TestShippedConfigRidesOutEdgeNoise(t *testing.T) {
	cfg := config.Load(filepath.Join("..", "..", "firmware.yml"))
	if cfg.DebounceMS == 0 {
		t.Fatal("expected firmware.yml to ship with a debounce")
	}
	cfg.Script = nil
	b, im, log := newRotate(t, cfg)

	// bouncy single click
	Replay(b, []config.Step{
		{AtMS: 10, Edge: "press"}, {AtMS: 11, Edge: "release"},
		{AtMS: 12, Edge: "press"}, {AtMS: 13, Edge: "release"},
		{AtMS: 14, Edge: "press"},
		{AtMS: 300, Edge: "release"}, {AtMS: 301, Edge: "press"},
		{AtMS: 302, Edge: "release"}, {AtMS: 303, Edge: "press"},
		{AtMS: 304, Edge: "release"},
	})
	// then twenty clicks 30 ms apart
	for i := uint64(0); i < 20; i++ {
		b.At(1000+30*i, b.Button().Press)
		b.At(1015+30*i, b.Button().Release)
	}
	step(b, im, 4000)

	if log.Count("[button] [550] SingleClick") != 1 {
		t.Fatalf("expected the bouncy click classified once at 550, got %v", log.Lines())
	}
	if log.Count("Hold") != 0 || log.Count("SingleClick") != 1 {
		t.Fatalf("expected no Hold and a single SingleClick, got %v", log.Lines())
	}
	if log.Count("DoubleClick") != 2 {
		t.Fatalf("expected the click train read as two double clicks, got %v", log.Lines())
	}
}
