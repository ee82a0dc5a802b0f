package baseline_test

import (
	"io"
	"math"
	"testing"
	"time"

	"github.com/okian/vigil/internal/config"
	"github.com/okian/vigil/internal/domain/baseline"
	"github.com/okian/vigil/internal/domain/model"
	"github.com/okian/vigil/internal/domain/tracking"
	"github.com/okian/vigil/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.InitWithWriter(io.Discard, logger.FormatText); err != nil {
		panic(err)
	}
}

var noon = time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

const tick = 100 * time.Millisecond

func baselineConfig() config.Baseline {
	return config.New().Baseline
}

func newLearner() *baseline.Learner {
	return baseline.NewLearner(baselineConfig(), baseline.WithIDGenerator(func() string { return "evt-1" }))
}

// scene returns metrics with a fixed box area and spread so only the count
// varies.
func scene(count float64) baseline.Metrics {
	return baseline.Metrics{ObjectCount: count, BoxArea: 1000, CentroidSpread: 50}
}

// warm fills the window with counts alternating 2 and 4 (mean 3, sd ~1).
func warm(l *baseline.Learner) time.Time {
	ts := noon
	for i := 0; i < 100; i++ {
		l.Observe(ts, scene(float64(2+2*(i%2))))
		ts = ts.Add(100 * time.Millisecond)
	}
	return ts
}

func TestLearner_Warmup(t *testing.T) {
	convey.Convey("Given a fresh learner", t, func() {
		l := newLearner()

		convey.Convey("When 99 samples have been observed", func() {
			var events int
			ts := noon
			for i := 0; i < 99; i++ {
				// Wild values must not escape while warming.
				a := l.Observe(ts, scene(float64((i%7)*10)))
				if a.Event != nil {
					events++
				}
				convey.So(a.Suppressed, convey.ShouldBeTrue)
				ts = ts.Add(time.Second)
			}

			convey.Convey("Then learning is not complete and nothing was emitted", func() {
				convey.So(l.LearningComplete(), convey.ShouldBeFalse)
				convey.So(events, convey.ShouldEqual, 0)
			})

			convey.Convey("And the 100th sample completes learning for good", func() {
				a := l.Observe(ts, scene(3))
				convey.So(a.LearningComplete, convey.ShouldBeTrue)
				convey.So(a.Suppressed, convey.ShouldBeTrue)
				convey.So(a.Event, convey.ShouldBeNil)
				for i := 0; i < 50; i++ {
					l.Observe(ts, scene(3))
					convey.So(l.LearningComplete(), convey.ShouldBeTrue)
				}
			})
		})

		convey.Convey("When reset after warming", func() {
			warm(l)
			convey.So(l.LearningComplete(), convey.ShouldBeTrue)
			l.Reset()

			convey.Convey("Then it starts learning again", func() {
				convey.So(l.LearningComplete(), convey.ShouldBeFalse)
			})
		})
	})
}

func TestLearner_Spike(t *testing.T) {
	convey.Convey("Given a warmed learner with a count baseline of 3 +- 1", t, func() {
		l := newLearner()
		ts := warm(l)

		convey.Convey("When a spike of mean + 5 sd is sustained for three frames", func() {
			var got []baseline.Assessment
			for i := 0; i < 3; i++ {
				got = append(got, l.Observe(ts, scene(8)))
				ts = ts.Add(100 * time.Millisecond)
			}

			convey.Convey("Then only the third frame emits an event", func() {
				convey.So(got[0].Event, convey.ShouldBeNil)
				convey.So(got[1].Event, convey.ShouldBeNil)
				convey.So(got[0].Z[config.MetricObjectCount], convey.ShouldAlmostEqual, 5/math.Sqrt(100.0/99.0), 1e-6)
				convey.So(got[2].Streak, convey.ShouldEqual, 3)
				convey.So(got[2].Event, convey.ShouldNotBeNil)
			})

			convey.Convey("And the event is at least HIGH and cites the object count", func() {
				ev := got[2].Event
				convey.So(ev.Severity, convey.ShouldBeGreaterThanOrEqualTo, model.SeverityHigh)
				convey.So(ev.Type, convey.ShouldEqual, model.AnomalySuddenMotion)
				convey.So(ev.ID, convey.ShouldEqual, "evt-1")
				convey.So(ev.Reasons, convey.ShouldNotBeEmpty)
				convey.So(ev.Reasons[0], convey.ShouldStartWith, "object count deviation: ")
				convey.So(ev.Reasons[0], convey.ShouldEndWith, "σ")
				convey.So(ev.Deviation, convey.ShouldBeGreaterThan, 3.5)
				convey.So(ev.Confidence, convey.ShouldBeGreaterThan, 0)
				convey.So(ev.Confidence, convey.ShouldBeLessThanOrEqualTo, 1)
			})

			convey.Convey("And the event is held at the weakest of the three frames", func() {
				ev := got[2].Event
				convey.So(got[0].Severity, convey.ShouldEqual, model.SeverityCritical)
				convey.So(ev.Severity, convey.ShouldEqual, got[2].Held)
				for _, a := range got {
					convey.So(ev.Severity, convey.ShouldBeLessThanOrEqualTo, a.Severity)
				}
				convey.So(got[2].Active, convey.ShouldEqual, ev)
			})

			convey.Convey("And a continuing spike stays active without being re-emitted", func() {
				a := l.Observe(ts, scene(8))
				convey.So(a.Event, convey.ShouldBeNil)
				convey.So(a.Active, convey.ShouldNotBeNil)
				convey.So(a.Active.ID, convey.ShouldEqual, "evt-1")
				convey.So(a.Active.Type, convey.ShouldEqual, model.AnomalySuddenMotion)
				convey.So(a.Active.Severity, convey.ShouldEqual, a.Held)
				convey.So(a.Active.Score, convey.ShouldEqual, a.Score)
			})

			convey.Convey("And the anomaly clears once a normal frame enters the window", func() {
				a := l.Observe(ts, scene(3))
				convey.So(a.Held, convey.ShouldEqual, model.SeverityNone)
				convey.So(a.Active, convey.ShouldBeNil)
			})
		})

		convey.Convey("When the spike is interrupted by a normal frame", func() {
			var events int
			for _, c := range []float64{8, 8, 3, 8, 8} {
				if l.Observe(ts, scene(c)).Event != nil {
					events++
				}
				ts = ts.Add(100 * time.Millisecond)
			}

			convey.Convey("Then the debounce restarts and nothing is emitted", func() {
				convey.So(events, convey.ShouldEqual, 0)
			})
		})

		convey.Convey("When a single extreme frame follows two LOW frames", func() {
			var got []baseline.Assessment
			for _, c := range []float64{4.5, 4.5, 14} {
				got = append(got, l.Observe(ts, scene(c)))
				ts = ts.Add(100 * time.Millisecond)
			}

			convey.Convey("Then the raw severities are LOW, LOW and CRITICAL", func() {
				convey.So(got[0].Severity, convey.ShouldEqual, model.SeverityLow)
				convey.So(got[1].Severity, convey.ShouldEqual, model.SeverityLow)
				convey.So(got[2].Severity, convey.ShouldEqual, model.SeverityCritical)
			})

			convey.Convey("Then the event carries only the LOW severity that was held", func() {
				ev := got[2].Event
				convey.So(ev, convey.ShouldNotBeNil)
				convey.So(got[2].Held, convey.ShouldEqual, model.SeverityLow)
				convey.So(ev.Severity, convey.ShouldEqual, model.SeverityLow)
			})
		})

		convey.Convey("When the scene stays normal", func() {
			a := l.Observe(ts, scene(3))

			convey.Convey("Then severity stays below LOW", func() {
				convey.So(a.Severity, convey.ShouldEqual, model.SeverityNone)
				convey.So(a.Event, convey.ShouldBeNil)
			})
		})
	})
}

func TestLearner_TimeOfDay(t *testing.T) {
	convey.Convey("Given two identically trained learners with a busy and a quiet hour", t, func() {
		busy := time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC)
		quiet := time.Date(2026, 3, 3, 3, 0, 0, 0, time.UTC)

		train := func() *baseline.Learner {
			l := newLearner()
			for i := 0; i < 100; i++ {
				if i%2 == 0 {
					l.Observe(busy.Add(time.Duration(i)*time.Second), scene(float64(6+(i/2)%2)))
				} else {
					l.Observe(quiet.Add(time.Duration(i)*time.Second), scene(float64((i/2)%2)))
				}
			}
			return l
		}
		a, b := train(), train()

		convey.Convey("When identical motion is injected at each hour", func() {
			atBusy := a.Observe(busy.Add(10*time.Minute), scene(8))
			atQuiet := b.Observe(quiet.Add(10*time.Minute), scene(8))

			convey.Convey("Then the quiet hour yields equal or higher severity", func() {
				convey.So(atBusy.Z[config.MetricObjectCount], convey.ShouldAlmostEqual, atQuiet.Z[config.MetricObjectCount], 1e-9)
				convey.So(atQuiet.TimeContext, convey.ShouldBeGreaterThan, atBusy.TimeContext)
				convey.So(atQuiet.Score, convey.ShouldBeGreaterThan, atBusy.Score)
				convey.So(atQuiet.Severity, convey.ShouldBeGreaterThanOrEqualTo, atBusy.Severity)
			})
		})
	})
}

func TestMetricsFromTracks(t *testing.T) {
	convey.Convey("Given a frame with two visible tracks and one missed track", t, func() {
		m := tracking.NewManager(config.Tracking{IoUThreshold: 0.3, GraceFrames: 5, HistorySize: 10})
		f1 := model.Frame{Seq: 1, Timestamp: noon}
		m.Update(f1, []model.Detection{
			{Box: model.Box{X: 0, Y: 0, W: 10, H: 10}, Class: "a", Confidence: 0.9},
			{Box: model.Box{X: 20, Y: 0, W: 10, H: 20}, Class: "b", Confidence: 0.9},
			{Box: model.Box{X: 500, Y: 500, W: 50, H: 50}, Class: "c", Confidence: 0.9},
		})
		f2 := model.Frame{Seq: 2, Timestamp: noon.Add(time.Second)}
		m.Update(f2, []model.Detection{
			{Box: model.Box{X: 0, Y: 0, W: 10, H: 10}, Class: "a", Confidence: 0.9},
			{Box: model.Box{X: 20, Y: 0, W: 10, H: 20}, Class: "b", Confidence: 0.9},
		})

		got := baseline.MetricsFromTracks(m.Tracks())

		convey.Convey("Then only visible tracks contribute", func() {
			convey.So(got.ObjectCount, convey.ShouldEqual, 2.0)
			convey.So(got.BoxArea, convey.ShouldEqual, 150.0)
			convey.So(got.CentroidSpread, convey.ShouldAlmostEqual, math.Sqrt(100+6.25), 1e-9)
		})
	})

	convey.Convey("Given no tracks", t, func() {
		got := baseline.MetricsFromTracks(nil)
		convey.So(got, convey.ShouldResemble, baseline.Metrics{})
	})
}

// still returns a track followed on n frames at 10 fps that moves step
// pixels per frame, labelled class.
func still(n int, step float64, class string) *tracking.Track {
	m := tracking.NewManager(config.Tracking{IoUThreshold: 0.3, GraceFrames: 5, HistorySize: 10})
	for i := 0; i < n; i++ {
		f := model.Frame{Seq: uint64(i + 1), Timestamp: noon.Add(time.Duration(i) * 100 * time.Millisecond)}
		m.Update(f, []model.Detection{{
			Box:        model.Box{X: 300 + step*float64(i), Y: 200, W: 40, H: 80},
			Class:      class,
			Confidence: 0.9,
		}})
	}
	t := m.Tracks()[0]
	t.Label = class
	return t
}

func TestLearner_Loitering(t *testing.T) {
	convey.Convey("Given a learner", t, func() {
		l := newLearner()
		at := noon.Add(time.Minute)

		convey.Convey("When a person has stood still for 12 seconds", func() {
			tr := still(121, 0, "person")
			got := l.Loitering(at, []*tracking.Track{tr})

			convey.Convey("Then one MEDIUM loitering event names the track and its dwell", func() {
				convey.So(len(got), convey.ShouldEqual, 1)
				ev := got[0]
				convey.So(ev.Type, convey.ShouldEqual, model.AnomalyLoitering)
				convey.So(ev.Severity, convey.ShouldEqual, model.SeverityMedium)
				convey.So(ev.TrackIDs, convey.ShouldResemble, []int{tr.ID})
				convey.So(ev.Reasons[0], convey.ShouldStartWith, "track 1 stationary for 12.0s at (320, 240)")
				convey.So(ev.Confidence, convey.ShouldEqual, 1.0)
			})

			convey.Convey("And it is not repeated while the track keeps loitering", func() {
				convey.So(l.Loitering(at.Add(tick), []*tracking.Track{tr}), convey.ShouldBeEmpty)

				convey.Convey("But is reported again after the track left and came back", func() {
					convey.So(l.Loitering(at.Add(2*tick), nil), convey.ShouldBeEmpty)
					convey.So(len(l.Loitering(at.Add(3*tick), []*tracking.Track{tr})), convey.ShouldEqual, 1)
				})
			})
		})

		convey.Convey("When a person has only stood still for 5 seconds", func() {
			convey.So(l.Loitering(at, []*tracking.Track{still(51, 0, "person")}), convey.ShouldBeEmpty)
		})

		convey.Convey("When a person paces at 20 pixels per second", func() {
			convey.So(l.Loitering(at, []*tracking.Track{still(121, 2, "person")}), convey.ShouldBeEmpty)
		})

		convey.Convey("When a parked car stands still", func() {
			convey.So(l.Loitering(at, []*tracking.Track{still(121, 0, "car")}), convey.ShouldBeEmpty)
		})
	})
}
