package facerec

import (
	"image"

	"github.com/pkg/errors"
)

// DefaultTolerance is the distance under which the dlib model considers
// two descriptors to be the same person.
const DefaultTolerance = 0.6

// Nearest returns the index of the candidate closest to desc and its
// distance. The first minimum wins on ties. Returns -1 if there are no
// candidates.
func Nearest(desc *Descriptor, candidates []Descriptor) (int, float64) {
	best := -1
	bestDist := 0.0
	for i := range candidates {
		dist := desc.Distance(&candidates[i])
		if best == -1 || dist < bestDist {
			best = i
			bestDist = dist
		}
	}
	return best, bestDist
}

// IoU calculates intersection over union of two boxes.
func IoU(a, b image.Rectangle) float64 {
	inter := a.Intersect(b)
	if inter.Empty() {
		return 0
	}

	interArea := area(inter)
	union := area(a) + area(b) - interArea
	if union <= 0 {
		return 0
	}
	return float64(interArea) / float64(union)
}

// PairByIoU gives every box the index of the candidate it overlaps most.
// A box whose best overlap is below minIoU is an error. Several boxes may
// pair with the same candidate.
func PairByIoU(boxes, candidates []image.Rectangle, minIoU float64) ([]int, error) {
	pairs := make([]int, len(boxes))
	for i, box := range boxes {
		best, bestIoU := -1, 0.0
		for j, c := range candidates {
			if iou := IoU(box, c); iou > bestIoU {
				best, bestIoU = j, iou
			}
		}
		if best == -1 || bestIoU < minIoU {
			return nil, errors.Errorf("no face found inside box %v", box)
		}
		pairs[i] = best
	}
	return pairs, nil
}

func area(r image.Rectangle) int {
	return r.Dx() * r.Dy()
}
