package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"ledfw/internal/app"
	"ledfw/internal/config"
	"ledfw/internal/hal"
)

func main() {
	cfgPath := flag.String("config", "firmware.yml", "path to the firmware configuration")
	stopAt := flag.Uint64("ms", 0, "stop after this many milliseconds (0 runs until interrupted)")
	fieldX := flag.Int("x", 220, "simulated raw field, x axis")
	fieldY := flag.Int("y", -140, "simulated raw field, y axis")
	fieldZ := flag.Int("z", 410, "simulated raw field, z axis")
	flag.Parse()

	cfg := config.Load(*cfgPath)
	fmt.Printf("Loaded config: %+v\n", cfg)

	board := hal.NewBoard(hal.NewWriterLogger(os.Stdout))
	mag := hal.NewSimLSM303AGR()
	mag.SetField(int16(*fieldX), int16(*fieldY), int16(*fieldZ))
	board.AttachI2C(mag)

	image, err := app.Compass(board.Peripherals(), cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if *stopAt > 0 {
		board.At(*stopAt, stop)
	}

	go board.Run(ctx, time.Millisecond)
	if err := image.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Printf("Stopped at %d ms: %d samples, %d skipped\n", board.Elapsed(), image.Sampler.Samples(), image.Sampler.Misses())
}
