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
	flag.Parse()

	// Read the configuration
	cfg := config.Load(*cfgPath)
	fmt.Printf("Loaded config: %+v\n", cfg)

	board := hal.NewBoard(hal.NewWriterLogger(os.Stdout))
	image, err := app.Rotate(board.Peripherals(), cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	app.Replay(board, cfg.Script)

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
	fmt.Printf("Stopped at %d ms after %d polls\n", board.Elapsed(), image.Exec.Polls())
}
