// Package simulate drives a Session with a scripted scene instead of a
// camera. The scene is deterministic: the same Config always yields the
// same objects on the same frames.
package simulate

import "github.com/okian/vigil/internal/domain/model"

// Scene geometry, in pixels on a 640x480 frame. Everything except the
// intruder stays outside the default region of interest (50,50 250x250).
const (
	FrameWidth  = 640
	FrameHeight = 480

	walkerW, walkerH = 40, 70
	walkerLeft       = 20
	walkerSpacing    = 150
	walkerTop        = 315
	walkerGap        = 45

	petX, petY, petW, petH = 340, 250, 50, 40

	// The background sways together by up to swayTravel pixels so its
	// spread stays constant while every box keeps moving.
	swayTravel = 40
	swaySpeed  = 2

	staticX, staticY, staticW, staticH = 600, 200, 20, 40

	crowdX, crowdY   = 330, 40
	crowdDX, crowdDY = 70, 90
	crowdPerRow      = 4

	intruderX, intruderY = 100, 120
)

// StaticClass is only visible to the slow detector.
const StaticClass = "fire_extinguisher"

// Object is one ground-truth object on a frame.
type Object struct {
	Class      string
	Box        model.Box
	Confidence float64
	Static     bool
}

// Scene produces the ground truth for every frame.
type Scene struct {
	cfg Config
}

// NewScene creates a scene for cfg.
func NewScene(cfg Config) *Scene {
	return &Scene{cfg: cfg}
}

// Objects returns what is in front of the camera on frame seq.
func (s *Scene) Objects(seq uint64) []Object {
	var out []Object

	sway := bounce(float64(swaySpeed*seq), swayTravel)
	for i := 0; i < s.cfg.Walkers; i++ {
		x := float64(walkerLeft+(i%3)*walkerSpacing) + sway
		y := float64(walkerTop + (i%3)*walkerGap)
		out = append(out, Object{
			Class:      "person",
			Box:        model.Box{X: x, Y: y, W: walkerW, H: walkerH},
			Confidence: 0.9,
		})
	}

	// The pet is mostly a cat; every eighth frame the detector calls it a dog.
	petClass := "cat"
	if seq%8 == 7 {
		petClass = "dog"
	}
	out = append(out,
		Object{
			Class:      petClass,
			Box:        model.Box{X: petX + sway, Y: petY, W: petW, H: petH},
			Confidence: 0.7,
		},
		Object{
			Class:      StaticClass,
			Box:        model.Box{X: staticX, Y: staticY, W: staticW, H: staticH},
			Confidence: 0.6,
			Static:     true,
		},
	)

	if within(seq, s.cfg.SpikeAt, s.cfg.SpikeLen) {
		for k := 0; k < s.cfg.SpikeCount; k++ {
			out = append(out, Object{
				Class: "person",
				Box: model.Box{
					X: float64(crowdX + (k%crowdPerRow)*crowdDX),
					Y: float64(crowdY + (k/crowdPerRow)*crowdDY),
					W: walkerW,
					H: walkerH,
				},
				Confidence: 0.85,
			})
		}
	}

	if within(seq, s.cfg.IntruderAt, s.cfg.IntruderLen) {
		step := float64(seq - uint64(s.cfg.IntruderAt))
		out = append(out, Object{
			Class:      "person",
			Box:        model.Box{X: intruderX + 2*step, Y: intruderY, W: walkerW, H: walkerH},
			Confidence: 0.9,
		})
	}
	return out
}

func within(seq uint64, start, length int) bool {
	return start > 0 && seq >= uint64(start) && seq < uint64(start+length)
}

// bounce folds a monotonically growing position into [0, limit].
func bounce(pos, limit float64) float64 {
	if limit <= 0 {
		return 0
	}
	period := 2 * limit
	p := pos - period*float64(int(pos/period))
	if p > limit {
		return period - p
	}
	return p
}

// jitter is a deterministic pixel offset in [-2, 2] for object i on frame seq.
func jitter(seq uint64, i int) float64 {
	h := seq*2654435761 + uint64(i)*40503
	return float64(h%5) - 2
}
