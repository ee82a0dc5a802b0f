package stabilizer_test

import (
	"fmt"
	"io"
	"math/rand"
	"testing"
	"time"

	"github.com/okian/vigil/internal/config"
	"github.com/okian/vigil/internal/domain/model"
	"github.com/okian/vigil/internal/domain/stabilizer"
	"github.com/okian/vigil/internal/domain/tracking"
	"github.com/okian/vigil/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.InitWithWriter(io.Discard, logger.FormatText); err != nil {
		panic(err)
	}
}

// harness feeds one stationary object through a track manager and the
// stabilizer, one label per frame.
type harness struct {
	m    *tracking.Manager
	s    *stabilizer.Stabilizer
	seq  uint64
	last stabilizer.Result
}

func newHarness() *harness {
	return &harness{
		m: tracking.NewManager(config.Tracking{IoUThreshold: 0.3, GraceFrames: 5, HistorySize: 10}),
		s: stabilizer.New(config.Stabilizer{LockRun: 5, UnlockContradictions: 3, MinConfidence: 0.35}),
	}
}

func (h *harness) feed(conf float64, labels ...string) *tracking.Track {
	for _, l := range labels {
		h.seq++
		f := model.Frame{Seq: h.seq, Timestamp: time.Unix(int64(h.seq), 0)}
		h.m.Update(f, []model.Detection{{Box: model.Box{X: 10, Y: 10, W: 50, H: 50}, Class: l, Confidence: conf}})
		h.last = h.s.Apply(h.m.Get(1))
	}
	return h.m.Get(1)
}

func repeat(label string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = label
	}
	return out
}

func TestStabilizer_Lock(t *testing.T) {
	convey.Convey("Given a fresh track", t, func() {
		h := newHarness()

		convey.Convey("When it sees cat x4, dog, cat x5", func() {
			h.feed(0.9, repeat("cat", 4)...)
			tr := h.feed(0.9, "dog")
			convey.So(tr.Locked(), convey.ShouldBeFalse)
			tr = h.feed(0.9, repeat("cat", 4)...)
			convey.So(tr.Locked(), convey.ShouldBeFalse)
			tr = h.feed(0.9, "cat")

			convey.Convey("Then it locks to cat on the trailing run of five", func() {
				convey.So(tr.LockedClass, convey.ShouldEqual, "cat")
				convey.So(tr.RunLength, convey.ShouldEqual, 5)
				convey.So(tr.Contradictions, convey.ShouldEqual, 1)
				convey.So(h.last.Lock, convey.ShouldEqual, stabilizer.LockAcquired)
				convey.So(h.last.Label, convey.ShouldEqual, "cat")
				convey.So(h.last.Locked, convey.ShouldBeTrue)
			})
		})

		convey.Convey("When it sees only four identical labels", func() {
			tr := h.feed(0.9, repeat("cat", 4)...)

			convey.Convey("Then it stays unlocked but reports the majority", func() {
				convey.So(tr.Locked(), convey.ShouldBeFalse)
				convey.So(h.last.Label, convey.ShouldEqual, "cat")
				convey.So(h.last.Confidence, convey.ShouldAlmostEqual, 0.9, 1e-9)
			})
		})
	})
}

func TestStabilizer_Unlock(t *testing.T) {
	convey.Convey("Given a track locked to person", t, func() {
		h := newHarness()
		tr := h.feed(0.9, repeat("person", 10)...)
		convey.So(tr.LockedClass, convey.ShouldEqual, "person")

		convey.Convey("When a single contradicting frame arrives", func() {
			tr := h.feed(0.9, "vehicle")

			convey.Convey("Then the lock holds", func() {
				convey.So(tr.LockedClass, convey.ShouldEqual, "person")
				convey.So(tr.Contradictions, convey.ShouldEqual, 1)
				convey.So(h.last.Label, convey.ShouldEqual, "person")
				convey.So(h.last.Lock, convey.ShouldEqual, stabilizer.LockUnchanged)
			})
		})

		convey.Convey("When ten frames carry four interspersed vehicle labels", func() {
			seq := []string{"vehicle", "person", "person", "vehicle", "person", "person", "vehicle", "person", "person", "vehicle"}
			released := false
			for _, l := range seq {
				h.feed(0.9, l)
				if h.last.Lock == stabilizer.LockReleased {
					released = true
				}
			}
			tr := h.m.Get(1)

			convey.Convey("Then the track unlocks and reports the majority", func() {
				convey.So(released, convey.ShouldBeTrue)
				convey.So(tr.Locked(), convey.ShouldBeFalse)
				convey.So(tr.Contradictions, convey.ShouldEqual, 0)
				convey.So(h.last.Label, convey.ShouldEqual, "person")
				convey.So(h.last.Locked, convey.ShouldBeFalse)
			})
		})

		convey.Convey("When a different label takes over for five frames", func() {
			h.feed(0.9, repeat("dog", 5)...)

			convey.Convey("Then the lock moves to the new label", func() {
				convey.So(h.m.Get(1).LockedClass, convey.ShouldEqual, "dog")
			})
		})
	})
}

func TestStabilizer_Plurality(t *testing.T) {
	convey.Convey("Given an unlocked track with a tied history", t, func() {
		h := newHarness()
		h.feed(0.8, "cat", "dog")

		convey.Convey("Then it reports unknown with zero confidence", func() {
			convey.So(h.last.Label, convey.ShouldEqual, stabilizer.Unknown)
			convey.So(h.last.Confidence, convey.ShouldEqual, 0.0)
		})

		convey.Convey("When one label pulls ahead", func() {
			h.feed(0.5, "dog")

			convey.Convey("Then it reports that label with its mean confidence", func() {
				convey.So(h.last.Label, convey.ShouldEqual, "dog")
				convey.So(h.last.Confidence, convey.ShouldAlmostEqual, 0.65, 1e-9)
				convey.So(h.last.Changed, convey.ShouldBeTrue)
			})
		})
	})
}

func TestStabilizer_LowConfidence(t *testing.T) {
	convey.Convey("Given a track with weak, flickering labels", t, func() {
		h := newHarness()
		tr := h.feed(0.2, "bag", "box", "bag", "box")

		convey.Convey("Then its low-confidence streak grows", func() {
			convey.So(tr.LowConfidenceFrames, convey.ShouldEqual, 4)
			convey.So(h.last.LowConfidence, convey.ShouldBeTrue)
		})

		convey.Convey("When it later locks", func() {
			tr := h.feed(0.2, repeat("bag", 5)...)

			convey.Convey("Then the streak resets", func() {
				convey.So(tr.Locked(), convey.ShouldBeTrue)
				convey.So(tr.LowConfidenceFrames, convey.ShouldEqual, 0)
			})
		})
	})
}

func TestStabilizer_Properties(t *testing.T) {
	convey.Convey("Given random label sequences", t, func() {
		rng := rand.New(rand.NewSource(7))
		alphabet := []string{"a", "b", "c"}
		var violations []string

		for trial := 0; trial < 200; trial++ {
			h := newHarness()
			n := 1 + rng.Intn(60)
			for i := 0; i < n; i++ {
				// Bias towards repeating the previous label so runs occur.
				l := alphabet[rng.Intn(len(alphabet))]
				if i > 0 && rng.Float64() < 0.7 {
					hist := h.m.Get(1).History()
					l = hist[len(hist)-1].Label
				}
				prevLocked := ""
				if prev := h.m.Get(1); prev != nil {
					prevLocked = prev.LockedClass
				}
				tr := h.feed(0.9, l)
				hist := tr.History()

				if tr.RunLength >= 5 && tr.LockedClass != hist[len(hist)-1].Label {
					violations = append(violations, fmt.Sprintf("trial %d: run %d did not lock %q", trial, tr.RunLength, hist[len(hist)-1].Label))
				}
				if (h.last.Lock == stabilizer.LockAcquired || h.last.Lock == stabilizer.LockSwitched) && tr.RunLength < 5 {
					violations = append(violations, fmt.Sprintf("trial %d: locked on run %d", trial, tr.RunLength))
				}
				if prevLocked != "" && tr.LockedClass != prevLocked {
					dis := 0
					for _, o := range hist {
						if o.Label != prevLocked {
							dis++
						}
					}
					if dis < 3 {
						violations = append(violations, fmt.Sprintf("trial %d: released %q with only %d disagreements", trial, prevLocked, dis))
					}
				}
				if tr.Contradictions > tr.HistoryLen() || tr.HistoryLen() > 10 {
					violations = append(violations, fmt.Sprintf("trial %d: contradictions %d over window %d", trial, tr.Contradictions, tr.HistoryLen()))
				}
				if !tr.Locked() && tr.Contradictions != 0 {
					violations = append(violations, fmt.Sprintf("trial %d: unlocked track carries contradictions", trial))
				}
			}
		}

		convey.Convey("Then lock, unlock and window invariants hold after every frame", func() {
			convey.So(violations, convey.ShouldBeEmpty)
		})
	})
}
