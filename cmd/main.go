package main

import (
	"context"
	"errors"
	"math"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/vigil/internal/adapters/http/api"
	"github.com/okian/vigil/internal/app"
	"github.com/okian/vigil/internal/config"
	"github.com/okian/vigil/internal/simulate"
	"github.com/okian/vigil/pkg/logger"
	"github.com/okian/vigil/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	writeTimeout              = 10 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	systemMetricsInterval     = 10 * time.Second
	sessionMetricsInterval    = 5 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func main() {
	// Disable default Go metrics collection to avoid duplicate metrics
	// We collect our own custom system metrics instead
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		// Use stderr for initialization errors since logger isn't available yet
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		return
	}

	if err := logger.InitWithWriter(os.Stdout, cfg.LogFormat); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}
	defer func() {
		if err := logger.Sync(); err != nil {
			os.Stderr.WriteString("failed to sync logger: " + err.Error() + "\n")
		}
	}()

	loggerInstance := logger.Get()

	metrics.Configure(metrics.WithConstLabels(map[string]string{"camera_id": cfg.CameraID}))

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		loggerInstance.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	// No camera adapter ships with the binary; frames come from the scripted
	// scene paced at the configured frame interval.
	sim := liveScene(cfg)
	scene := simulate.NewScene(sim)
	session, err := app.NewSession(cfg,
		simulate.NewFastDetector(scene, sim),
		simulate.NewSlowDetector(scene, sim),
		app.WithLogger(loggerInstance),
	)
	if err != nil {
		loggerInstance.Error(ctx, "failed to create session", logger.Error(err))
		return
	}
	defer func() {
		if err := session.Close(context.Background()); err != nil && !errors.Is(err, app.ErrSessionStopped) {
			loggerInstance.Error(ctx, "session close failed", logger.Error(err))
		}
	}()

	go func() {
		if err := session.Run(ctx, simulate.NewSource(sim), nil); err != nil && !errors.Is(err, context.Canceled) {
			loggerInstance.Error(ctx, "frame loop stopped", logger.Error(err))
			return
		}
		loggerInstance.Info(ctx, "frame loop finished", logger.String("session", session.ID()))
	}()

	// Start system metrics updater
	go startSystemMetricsUpdater(ctx)

	// Start session metrics updater
	go startSessionMetricsUpdater(ctx, session)

	// HTTP mux and routes.
	mux := http.NewServeMux()
	api.NewServer(session).Register(ctx, mux)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	// Start the HTTP server
	go func() {
		loggerInstance.Info(ctx, "starting HTTP server",
			logger.String("addr", cfg.Addr),
			logger.String("camera", cfg.CameraID),
			logger.String("session", session.ID()),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			loggerInstance.Error(ctx, "HTTP server failed", logger.Error(err))
			stop()
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()
	loggerInstance.Info(ctx, "shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		loggerInstance.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	loggerInstance.Info(ctx, "server stopped")
}

// liveScene paces the default scene in real time from now on, without end.
func liveScene(cfg *config.Config) simulate.Config {
	sim := simulate.DefaultConfig()
	sim.Frames = math.MaxInt32
	sim.Realtime = true
	sim.Start = time.Now()
	if cfg.FrameInterval > 0 {
		sim.Interval = cfg.FrameInterval
	}
	return sim
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// startSessionMetricsUpdater periodically republishes the session status gauges.
func startSessionMetricsUpdater(ctx context.Context, session *app.Session) {
	ticker := time.NewTicker(sessionMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSessionMetrics(session)
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)

	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		// Calculate average GC pause time
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}

// updateSessionMetrics refreshes gauges that only change on frames, so
// they stay current while the source is stalled.
func updateSessionMetrics(session *app.Session) {
	st := session.Status()
	metrics.UpdateActiveTracks(st.ActiveTrackCount)
	metrics.UpdateLearningComplete(st.LearningComplete)
	metrics.UpdatePipelineState(st.State.Ordinal())
}
