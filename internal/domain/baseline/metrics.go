// Package baseline learns what a scene normally looks like and scores how
// far each frame deviates from it.
package baseline

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/okian/vigil/internal/config"
	"github.com/okian/vigil/internal/domain/tracking"
)

// Metrics are the scene-level signals of one frame.
type Metrics struct {
	ObjectCount    float64
	BoxArea        float64
	CentroidSpread float64
}

// metricNames fixes the order metrics are stored and weighted in.
var metricNames = [...]string{
	config.MetricObjectCount,
	config.MetricBoxArea,
	config.MetricCentroidSpread,
}

var metricLabels = map[string]string{
	config.MetricObjectCount:    "object count",
	config.MetricBoxArea:        "box area",
	config.MetricCentroidSpread: "centroid spread",
}

func (m Metrics) values() [len(metricNames)]float64 {
	return [len(metricNames)]float64{m.ObjectCount, m.BoxArea, m.CentroidSpread}
}

// MetricsFromTracks derives scene metrics from the tracks visible on the
// current frame. Centroid spread is sqrt(var(cx) + var(cy)) over track
// centres, zero for fewer than two tracks.
func MetricsFromTracks(tracks []*tracking.Track) Metrics {
	var (
		areas []float64
		xs    []float64
		ys    []float64
	)
	for _, t := range tracks {
		if !t.Visible() {
			continue
		}
		areas = append(areas, t.Box.Area())
		cx, cy := t.Box.Center()
		xs = append(xs, cx)
		ys = append(ys, cy)
	}

	m := Metrics{ObjectCount: float64(len(areas))}
	if len(areas) > 0 {
		m.BoxArea = stat.Mean(areas, nil)
	}
	if len(xs) > 1 {
		m.CentroidSpread = math.Sqrt(stat.PopVariance(xs, nil) + stat.PopVariance(ys, nil))
	}
	return m
}
