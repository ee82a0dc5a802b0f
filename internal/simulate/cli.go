package simulate

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/okian/vigil/pkg/logger"
)

// File permission constants.
const (
	logFilePermission = 0600
)

// SetupLogging sends log records to stdout and to logFile. An empty logFile
// gets a timestamped name; "-" logs to stdout only.
func SetupLogging(logFile, level string) error {
	var w io.Writer = os.Stdout
	if logFile != "-" {
		if logFile == "" {
			logFile = "simulate_" + time.Now().Format("20060102_150405") + ".log"
		}
		file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
		if err != nil {
			return fmt.Errorf("failed to create log file: %w", err)
		}
		w = io.MultiWriter(os.Stdout, file)
	}

	if err := logger.InitWithWriter(w, logger.FormatText); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	if err := logger.SetLevelString(level); err != nil {
		return fmt.Errorf("failed to set log level: %w", err)
	}
	if logFile != "-" {
		logger.Get().Info(context.Background(), "logging to file", logger.String("logFile", logFile))
	}
	return nil
}

// ShowHelp prints usage information for the simulation tool.
func ShowHelp() {
	os.Stdout.WriteString(`Vigil Scene Simulator
=====================

Plays a scripted camera scene through a full analysis session and reports
what the pipeline saw: tracks, anomalies and alert transitions.

Usage:
  go run ./cmd/simulate [options]

Options:
  -frames int
        Number of frames to play (default 300)
  -interval duration
        Simulated time between frames (default 100ms)
  -realtime
        Sleep the frame interval between frames
  -walkers int
        Background people in the scene (default 3)
  -spike-at int
        First frame of the crowd spike, 0 disables it (default 150)
  -intruder-at int
        First frame of the region of interest intrusion, 0 disables it (default 220)
  -fail-every int
        Fail the fast detector on every Nth frame, 0 never
  -drop-every int
        Drop every Nth frame at the source, 0 never
  -level string
        Log level: debug, info, warn, error (default "info")
  -log string
        Log file (default: simulate_TIMESTAMP.log, "-" for stdout only)
  -help
        Show this help message

Configuration for the session itself is read the same way as the service:
defaults, then the YAML file named by VIGIL_CONFIG, then VIGIL_ variables.

Examples:
  # Play the default scene
  go run ./cmd/simulate

  # A long quiet scene with a flaky detector
  go run ./cmd/simulate -frames 3000 -spike-at 0 -intruder-at 0 -fail-every 50

  # Debug logging to the terminal only
  go run ./cmd/simulate -level debug -log -
`)
}
