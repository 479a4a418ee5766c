package vision

import (
	"cmp"
	"slices"
)

const (
	// MinProb is the probability floor every detector output must clear.
	MinProb = 0.5
	// MergeIoU is the overlap above which two same-class boxes are one object.
	MergeIoU = 0.7
)

// Box is a raw detector output in model-input pixels.
type Box struct {
	X1    float64 `json:"x1"`
	Y1    float64 `json:"y1"`
	X2    float64 `json:"x2"`
	Y2    float64 `json:"y2"`
	Class Class   `json:"cls"`
	Prob  float64 `json:"prob"`
}

func (b Box) area() float64 {
	return (b.X2 - b.X1 + 1) * (b.Y2 - b.Y1 + 1)
}

// IoU is the intersection over union of two boxes, counting edge pixels.
func IoU(a, b Box) float64 {
	ix1, iy1 := max(a.X1, b.X1), max(a.Y1, b.Y1)
	ix2, iy2 := min(a.X2, b.X2), min(a.Y2, b.Y2)
	w := max(0, ix2-ix1+1)
	h := max(0, iy2-iy1+1)
	inter := w * h
	union := a.area() + b.area() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

// Postprocess drops boxes below MinProb, orders the rest by probability and
// folds same-class boxes overlapping by MergeIoU or more into their union.
func Postprocess(raw []Box) []Box {
	kept := make([]Box, 0, len(raw))
	for _, b := range raw {
		if b.Prob >= MinProb {
			kept = append(kept, b)
		}
	}
	slices.SortStableFunc(kept, func(a, b Box) int { return cmp.Compare(b.Prob, a.Prob) })

	out := make([]Box, 0, len(kept))
next:
	for _, b := range kept {
		for i := range out {
			if out[i].Class == b.Class && IoU(out[i], b) >= MergeIoU {
				out[i].X1 = min(out[i].X1, b.X1)
				out[i].Y1 = min(out[i].Y1, b.Y1)
				out[i].X2 = max(out[i].X2, b.X2)
				out[i].Y2 = max(out[i].Y2, b.Y2)
				continue next
			}
		}
		out = append(out, b)
	}
	return out
}

// Scale converts a model-space box into a frame-space detection.
func (b Box) Scale(modelSize, width, height int) Detection {
	sx := float64(width) / float64(modelSize)
	sy := float64(height) / float64(modelSize)
	return NewDetection(int(b.X1*sx), int(b.Y1*sy), int(b.X2*sx), int(b.Y2*sy), b.Class, b.Prob)
}
