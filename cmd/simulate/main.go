package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/okian/vigil/internal/config"
	"github.com/okian/vigil/internal/simulate"
)

// Default configuration constants.
const (
	defaultRunTimeout = 10 * time.Minute
)

func main() {
	defaults := simulate.DefaultConfig()
	var (
		frames     = flag.Int("frames", defaults.Frames, "Number of frames to play")
		interval   = flag.Duration("interval", defaults.Interval, "Simulated time between frames")
		realtime   = flag.Bool("realtime", false, "Sleep the frame interval between frames")
		walkers    = flag.Int("walkers", defaults.Walkers, "Background people in the scene")
		spikeAt    = flag.Int("spike-at", defaults.SpikeAt, "First frame of the crowd spike, 0 disables it")
		intruderAt = flag.Int("intruder-at", defaults.IntruderAt, "First frame of the intrusion, 0 disables it")
		failEvery  = flag.Int("fail-every", 0, "Fail the fast detector on every Nth frame")
		dropEvery  = flag.Int("drop-every", 0, "Drop every Nth frame at the source")
		level      = flag.String("level", "info", "Log level")
		logFile    = flag.String("log", "", "Log file (default: simulate_TIMESTAMP.log)")
		help       = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		simulate.ShowHelp()
		return
	}

	if err := simulate.SetupLogging(*logFile, *level); err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultRunTimeout)
	defer cancel()
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("Failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	sim := defaults
	sim.Frames = *frames
	sim.Interval = *interval
	sim.Realtime = *realtime
	sim.Walkers = *walkers
	sim.SpikeAt = *spikeAt
	sim.IntruderAt = *intruderAt
	sim.FastFailEvery = *failEvery
	sim.DropEvery = *dropEvery

	if _, err := simulate.Run(ctx, cfg, sim); err != nil {
		os.Stderr.WriteString("Simulation failed: " + err.Error() + "\n")
		os.Exit(1)
	}
}
