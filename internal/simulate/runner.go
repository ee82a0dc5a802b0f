package simulate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/okian/vigil/internal/app"
	"github.com/okian/vigil/internal/config"
	"github.com/okian/vigil/internal/domain/model"
	"github.com/okian/vigil/pkg/logger"
)

// Collector is a Renderer that folds verdicts into Stats.
type Collector struct {
	stats       Stats
	prev        model.StateName
	lastAnomaly string
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{
		stats: Stats{AnomalyTypes: make(map[string]int)},
		prev:  model.StateIdle,
	}
}

// Render implements app.Renderer.
func (c *Collector) Render(_ context.Context, v model.Verdict) { //nolint:gocritic // hugeParam: Renderer contract passes by value
	st := &c.stats
	st.Frames++
	if v.Missed {
		st.Missed++
	} else {
		st.Processed++
	}
	if v.Degraded {
		st.Degraded++
	}
	// An anomaly stays on the verdict while it is held; count it once.
	if v.Anomaly != nil && v.Anomaly.ID != c.lastAnomaly {
		st.Anomalies++
		st.AnomalyTypes[string(v.Anomaly.Type)]++
	}
	c.lastAnomaly = ""
	if v.Anomaly != nil {
		c.lastAnomaly = v.Anomaly.ID
	}
	if v.State.State != c.prev {
		st.Transitions++
		if v.State.State == model.StateAlert {
			st.Alerts = append(st.Alerts, v.AlertCause)
		}
	}
	c.prev = v.State.State

	if len(v.Tracks) > st.MaxTracks {
		st.MaxTracks = len(v.Tracks)
	}
	locked := 0
	for _, t := range v.Tracks {
		if t.Locked {
			locked++
		}
	}
	st.LockedTracks = locked
	st.FinalState = string(v.State.State)
}

// Stats returns the accumulated statistics.
func (c *Collector) Stats() *Stats {
	st := c.stats
	return &st
}

// Run plays the scene described by sim through a new session built from
// cfg and returns what happened.
func Run(ctx context.Context, cfg *config.Config, sim Config, opts ...app.Option) (*Stats, error) {
	start := time.Now()
	log := logger.Get().Named("simulate")
	log.Info(ctx, "starting simulation",
		logger.Int("frames", sim.Frames),
		logger.Duration("interval", sim.Interval),
		logger.Int("walkers", sim.Walkers),
		logger.Int("spike_at", sim.SpikeAt),
		logger.Int("intruder_at", sim.IntruderAt),
		logger.Bool("realtime", sim.Realtime),
	)

	scene := NewScene(sim)
	session, err := app.NewSession(cfg, NewFastDetector(scene, sim), NewSlowDetector(scene, sim), opts...)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	collector := NewCollector()
	runErr := session.Run(ctx, NewSource(sim), collector)
	status := session.Status()
	if err := session.Close(context.Background()); err != nil && !errors.Is(err, app.ErrSessionStopped) {
		log.Warn(ctx, "failed to close session", logger.Error(err))
	}
	if runErr != nil {
		return nil, fmt.Errorf("run session: %w", runErr)
	}

	stats := collector.Stats()
	stats.StartTime = start
	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(start)
	stats.LearningComplete = status.LearningComplete
	displayFinalStats(ctx, log, stats)
	return stats, nil
}

func displayFinalStats(ctx context.Context, log logger.Logger, stats *Stats) {
	var fps float64
	if stats.Duration > 0 {
		fps = float64(stats.Frames) / stats.Duration.Seconds()
	}
	log.Info(ctx, "final statistics",
		logger.Int("frames", stats.Frames),
		logger.Int("processed", stats.Processed),
		logger.Int("missed", stats.Missed),
		logger.Int("degraded", stats.Degraded),
		logger.Int("anomalies", stats.Anomalies),
		logger.Any("anomalyTypes", stats.AnomalyTypes),
		logger.Any("alerts", stats.Alerts),
		logger.Int("transitions", stats.Transitions),
		logger.Int("maxTracks", stats.MaxTracks),
		logger.Int("lockedTracks", stats.LockedTracks),
		logger.String("finalState", stats.FinalState),
		logger.Bool("learningComplete", stats.LearningComplete),
		logger.String("duration", stats.Duration.String()),
		logger.Float64("framesPerSecond", fps),
	)
}
