package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsOptions(t *testing.T) {
	Convey("Given metrics options", t, func() {
		Convey("When creating a manager with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test"),
				WithSubsystem("unit"),
				WithHistogramBuckets([]float64{1, 10, 100}),
				WithConstLabels(map[string]string{"camera": "cam-9"}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then it should apply them", func() {
				So(manager, ShouldNotBeNil)
				So(manager.namespace, ShouldEqual, "test")
				So(manager.subsystem, ShouldEqual, "unit")
				So(manager.histogramBuckets, ShouldResemble, []float64{1, 10, 100})
				So(manager.constLabels["camera"], ShouldEqual, "cam-9")
			})

			Convey("And metric names should carry namespace and subsystem", func() {
				manager.framesProcessed.Inc()
				families, err := registry.Gather()
				So(err, ShouldBeNil)

				found := false
				for _, f := range families {
					if f.GetName() == "test_unit_frames_processed_total" {
						found = true
						So(f.GetMetric()[0].GetLabel()[0].GetValue(), ShouldEqual, "cam-9")
					}
				}
				So(found, ShouldBeTrue)
			})
		})

		Convey("When empty values are passed", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace(""),
				WithSubsystem(""),
				WithHistogramBuckets(nil),
				WithPrometheusRegistry(registry),
			)

			Convey("Then defaults should be kept", func() {
				So(manager.namespace, ShouldEqual, "vigil")
				So(manager.subsystem, ShouldEqual, "pipeline")
				So(manager.histogramBuckets, ShouldNotBeEmpty)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global metrics manager", t, func() {
		Convey("When recording frame metrics", func() {
			before := testutil.ToFloat64(globalManager.framesProcessed)
			RecordFrameProcessed(3.5)
			RecordFrameMissed()
			RecordFrameDegraded()

			Convey("Then counters should advance", func() {
				So(testutil.ToFloat64(globalManager.framesProcessed), ShouldEqual, before+1)
				So(testutil.ToFloat64(globalManager.framesMissed), ShouldBeGreaterThanOrEqualTo, 1)
				So(testutil.ToFloat64(globalManager.framesDegraded), ShouldBeGreaterThanOrEqualTo, 1)
			})
		})

		Convey("When recording labelled metrics", func() {
			RecordDetectorError("fast", "timeout")
			RecordAnomaly("sudden_motion", "HIGH")
			RecordStateTransition("IDLE", "MOTION")
			RecordAlert("roi_intrusion")

			Convey("Then the labelled series should exist", func() {
				So(testutil.ToFloat64(globalManager.detectorErrors.WithLabelValues("fast", "timeout")), ShouldBeGreaterThanOrEqualTo, 1)
				So(testutil.ToFloat64(globalManager.anomalies.WithLabelValues("sudden_motion", "HIGH")), ShouldBeGreaterThanOrEqualTo, 1)
				So(testutil.ToFloat64(globalManager.stateTransitions.WithLabelValues("IDLE", "MOTION")), ShouldBeGreaterThanOrEqualTo, 1)
				So(testutil.ToFloat64(globalManager.alerts.WithLabelValues("roi_intrusion")), ShouldBeGreaterThanOrEqualTo, 1)
			})
		})

		Convey("When setting gauges", func() {
			UpdateActiveTracks(4)
			UpdateLearningComplete(true)
			UpdatePipelineState(2)
			UpdateSlowQueueCapacity(8)

			Convey("Then the gauges should hold the last value", func() {
				So(testutil.ToFloat64(globalManager.activeTracks), ShouldEqual, 4)
				So(testutil.ToFloat64(globalManager.learningComplete), ShouldEqual, 1)
				So(testutil.ToFloat64(globalManager.pipelineState), ShouldEqual, 2)
				So(testutil.ToFloat64(globalManager.slowQueueCapacity), ShouldEqual, 8)
			})

			UpdateLearningComplete(false)
			So(testutil.ToFloat64(globalManager.learningComplete), ShouldEqual, 0)
		})

		Convey("When recording zero slow results", func() {
			So(func() { RecordSlowResults("stale", 0) }, ShouldNotPanic)
		})

		Convey("When gathering the custom registry", func() {
			families, err := GetRegistry().Gather()

			Convey("Then every family should use the vigil namespace", func() {
				So(err, ShouldBeNil)
				So(families, ShouldNotBeEmpty)
				for _, f := range families {
					So(strings.HasPrefix(f.GetName(), "vigil_pipeline_"), ShouldBeTrue)
				}
			})
		})
	})
}

func TestConfigure(t *testing.T) {
	Convey("Given the global metrics configured with a camera label", t, func() {
		Configure(WithConstLabels(map[string]string{"camera_id": "dock-4"}))
		defer Configure()

		RecordFrameProcessed(3)
		RecordAnomaly("sudden_motion", "HIGH")

		Convey("Then every served family carries the camera id", func() {
			families, err := GetRegistry().Gather()
			So(err, ShouldBeNil)
			So(families, ShouldNotBeEmpty)
			for _, f := range families {
				for _, m := range f.GetMetric() {
					found := false
					for _, l := range m.GetLabel() {
						if l.GetName() == "camera_id" {
							found = true
							So(l.GetValue(), ShouldEqual, "dock-4")
						}
					}
					So(found, ShouldBeTrue)
				}
			}
		})

		Convey("Then the counters restart on the new registry", func() {
			So(testutil.ToFloat64(globalManager.framesProcessed), ShouldEqual, 1)
		})
	})
}
