package ring_test

import (
	"testing"

	"github.com/okian/vigil/internal/domain/ring"
	"github.com/smartystreets/goconvey/convey"
)

func TestRing(t *testing.T) {
	convey.Convey("Given a ring of capacity 3", t, func() {
		r := ring.New[int](3)

		convey.Convey("When it is empty", func() {
			_, ok := r.Last()
			convey.So(ok, convey.ShouldBeFalse)
			convey.So(r.Len(), convey.ShouldEqual, 0)
			convey.So(r.Values(), convey.ShouldBeEmpty)
		})

		convey.Convey("When pushing below capacity", func() {
			_, evicted := r.Push(1)
			r.Push(2)

			convey.Convey("Then nothing is evicted and order is kept", func() {
				convey.So(evicted, convey.ShouldBeFalse)
				convey.So(r.Values(), convey.ShouldResemble, []int{1, 2})
				convey.So(r.Full(), convey.ShouldBeFalse)
			})
		})

		convey.Convey("When pushing past capacity", func() {
			for i := 1; i <= 5; i++ {
				r.Push(i)
			}
			old, evicted := r.Push(6)

			convey.Convey("Then the oldest entries are evicted first", func() {
				convey.So(evicted, convey.ShouldBeTrue)
				convey.So(old, convey.ShouldEqual, 3)
				convey.So(r.Values(), convey.ShouldResemble, []int{4, 5, 6})
				convey.So(r.At(0), convey.ShouldEqual, 4)
				last, _ := r.Last()
				convey.So(last, convey.ShouldEqual, 6)
				convey.So(r.Len(), convey.ShouldEqual, r.Cap())
			})
		})

		convey.Convey("When indexing out of range", func() {
			r.Push(1)
			convey.So(func() { r.At(1) }, convey.ShouldPanic)
			convey.So(func() { r.At(-1) }, convey.ShouldPanic)
		})

		convey.Convey("When reset", func() {
			r.Push(1)
			r.Push(2)
			r.Reset()
			r.Push(9)
			convey.So(r.Values(), convey.ShouldResemble, []int{9})
		})
	})

	convey.Convey("Given a ring with a non-positive capacity", t, func() {
		r := ring.New[string](0)
		r.Push("a")
		r.Push("b")
		convey.So(r.Cap(), convey.ShouldEqual, 1)
		convey.So(r.Values(), convey.ShouldResemble, []string{"b"})
	})
}
