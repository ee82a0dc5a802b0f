package model_test

import (
	"encoding/json"
	"testing"

	model "github.com/okian/vigil/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

func TestBox(t *testing.T) {
	convey.Convey("Given two boxes", t, func() {
		a := model.Box{X: 0, Y: 0, W: 10, H: 10}

		convey.Convey("When they are identical", func() {
			convey.Convey("Then IoU should be one", func() {
				convey.So(a.IoU(a), convey.ShouldEqual, 1.0)
			})
		})

		convey.Convey("When they overlap by half", func() {
			b := model.Box{X: 5, Y: 0, W: 10, H: 10}

			convey.Convey("Then IoU should be a third", func() {
				convey.So(a.Intersection(b), convey.ShouldEqual, 50.0)
				convey.So(a.IoU(b), convey.ShouldAlmostEqual, 50.0/150.0, 1e-9)
				convey.So(b.IoU(a), convey.ShouldAlmostEqual, a.IoU(b), 1e-12)
			})
		})

		convey.Convey("When they only touch", func() {
			b := model.Box{X: 10, Y: 0, W: 10, H: 10}

			convey.Convey("Then IoU should be zero", func() {
				convey.So(a.IoU(b), convey.ShouldEqual, 0.0)
			})
		})

		convey.Convey("When one is degenerate", func() {
			b := model.Box{X: 2, Y: 2, W: 0, H: 5}

			convey.Convey("Then area and IoU should be zero", func() {
				convey.So(b.Area(), convey.ShouldEqual, 0.0)
				convey.So(a.IoU(b), convey.ShouldEqual, 0.0)
			})
		})

		convey.Convey("When asking for the centre", func() {
			x, y := a.Center()
			convey.So(x, convey.ShouldEqual, 5.0)
			convey.So(y, convey.ShouldEqual, 5.0)
			convey.So(a.ContainsPoint(x, y), convey.ShouldBeTrue)
			convey.So(a.ContainsPoint(11, 5), convey.ShouldBeFalse)
		})
	})
}

func TestSeverity(t *testing.T) {
	convey.Convey("Given severities", t, func() {
		convey.Convey("Then they should be ordered and named", func() {
			convey.So(model.SeverityLow, convey.ShouldBeLessThan, model.SeverityHigh)
			convey.So(model.SeverityCritical.String(), convey.ShouldEqual, "CRITICAL")
			convey.So(model.Severity(42).String(), convey.ShouldEqual, "NONE")
		})

		convey.Convey("When encoded in an event", func() {
			ev := model.AnomalyEvent{ID: "x", Type: model.AnomalyLoitering, Severity: model.SeverityMedium, Reasons: []string{"r"}}
			raw, err := json.Marshal(ev)
			convey.So(err, convey.ShouldBeNil)
			convey.So(string(raw), convey.ShouldContainSubstring, `"severity":"MEDIUM"`)
			convey.So(string(raw), convey.ShouldContainSubstring, `"type":"loitering"`)

			var back model.AnomalyEvent
			convey.So(json.Unmarshal(raw, &back), convey.ShouldBeNil)
			convey.So(back.Severity, convey.ShouldEqual, model.SeverityMedium)
		})
	})
}

func TestStateName(t *testing.T) {
	convey.Convey("Given pipeline states", t, func() {
		convey.So(model.StateIdle.Ordinal(), convey.ShouldEqual, 0)
		convey.So(model.StateMotion.Ordinal(), convey.ShouldEqual, 1)
		convey.So(model.StateAlert.Ordinal(), convey.ShouldEqual, 2)
		convey.So(model.SourceSlow.String(), convey.ShouldEqual, "slow")
		convey.So(model.SourceFast.String(), convey.ShouldEqual, "fast")
	})
}
