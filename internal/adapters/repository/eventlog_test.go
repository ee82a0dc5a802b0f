package repository_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/okian/vigil/internal/adapters/repository"
	"github.com/okian/vigil/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

func TestEventLog(t *testing.T) {
	ctx := context.Background()

	convey.Convey("Given an event log of capacity 3", t, func() {
		n := 0
		log := repository.NewEventLog(
			repository.WithCapacity(3),
			repository.WithIDGenerator(func() string { n++; return fmt.Sprintf("id-%d", n) }),
		)

		convey.Convey("When it is empty", func() {
			got, err := log.Recent(ctx, 10)
			convey.So(err, convey.ShouldBeNil)
			convey.So(got, convey.ShouldBeEmpty)
			convey.So(log.Count(ctx), convey.ShouldEqual, 0)
		})

		convey.Convey("When entries are appended", func() {
			ev := &model.AnomalyEvent{ID: "anom-1", Severity: model.SeverityHigh, Reasons: []string{"x"}}
			a, _ := log.Append(ctx, repository.Entry{ID: ev.ID, Kind: repository.KindAnomaly, Seq: 1, Anomaly: ev})
			b, _ := log.Append(ctx, repository.Entry{Kind: repository.KindTransition, Seq: 2, From: model.StateIdle, To: model.StateMotion})

			convey.Convey("Then missing ids are generated and given ids kept", func() {
				convey.So(a.ID, convey.ShouldEqual, "anom-1")
				convey.So(b.ID, convey.ShouldEqual, "id-1")
			})

			convey.Convey("And Recent returns newest first", func() {
				got, err := log.Recent(ctx, 5)
				convey.So(err, convey.ShouldBeNil)
				convey.So(len(got), convey.ShouldEqual, 2)
				convey.So(got[0].Seq, convey.ShouldEqual, 2)
				convey.So(got[1].Anomaly.Severity, convey.ShouldEqual, model.SeverityHigh)
			})

			convey.Convey("And Get finds an entry by id", func() {
				got, err := log.Get(ctx, "anom-1")
				convey.So(err, convey.ShouldBeNil)
				convey.So(got.Kind, convey.ShouldEqual, repository.KindAnomaly)
			})
		})

		convey.Convey("When more entries than capacity are appended", func() {
			for s := uint64(1); s <= 5; s++ {
				_, _ = log.Append(ctx, repository.Entry{Kind: repository.KindAlert, Seq: s})
			}

			convey.Convey("Then the oldest are evicted", func() {
				convey.So(log.Count(ctx), convey.ShouldEqual, 3)
				got, _ := log.Recent(ctx, 3)
				convey.So(got[0].Seq, convey.ShouldEqual, 5)
				convey.So(got[2].Seq, convey.ShouldEqual, 3)

				_, err := log.Get(ctx, "id-1")
				convey.So(errors.Is(err, repository.ErrNotFound), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When asking for a non-positive limit", func() {
			_, err := log.Recent(ctx, 0)
			convey.So(errors.Is(err, repository.ErrInvalidLimit), convey.ShouldBeTrue)
		})
	})

	convey.Convey("Given concurrent readers and one writer", t, func() {
		log := repository.NewEventLog(repository.WithCapacity(16))
		var wg sync.WaitGroup
		for r := 0; r < 4; r++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < 200; i++ {
					_, _ = log.Recent(ctx, 8)
				}
			}()
		}
		for s := uint64(0); s < 200; s++ {
			_, _ = log.Append(ctx, repository.Entry{Kind: repository.KindAlert, Seq: s})
		}
		wg.Wait()

		convey.So(log.Count(ctx), convey.ShouldEqual, 16)
	})
}
