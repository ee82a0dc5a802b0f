package router

import (
	"sort"

	"github.com/okian/vigil/internal/domain/model"
)

// Suppress runs class-agnostic non-maximum suppression. Detections are
// ranked by confidence, fast before slow on ties, and a detection is kept
// only if its IoU with every kept detection is at most threshold.
func Suppress(dets []model.Detection, threshold float64) []model.Detection {
	if len(dets) < 2 {
		return dets
	}
	ranked := make([]model.Detection, len(dets))
	copy(ranked, dets)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Confidence != ranked[j].Confidence {
			return ranked[i].Confidence > ranked[j].Confidence
		}
		return ranked[i].Source < ranked[j].Source
	})

	kept := make([]model.Detection, 0, len(ranked))
	for _, d := range ranked {
		overlap := false
		for _, k := range kept {
			if d.Box.IoU(k.Box) > threshold {
				overlap = true
				break
			}
		}
		if !overlap {
			kept = append(kept, d)
		}
	}
	return kept
}
