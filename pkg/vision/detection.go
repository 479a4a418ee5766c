package vision

import (
	"fmt"
	"slices"
)

// Class is the detector class index. Its meaning depends on the session:
// pylon sessions report Pylon/Person/Roktrack, the animal session reports
// the Animal* values.
type Class uint8

const (
	ClassPylon    Class = 0
	ClassPerson   Class = 1
	ClassRoktrack Class = 2
)

const (
	AnimalBird Class = iota
	AnimalCat
	AnimalDog
	AnimalHorse
	AnimalSheep
	AnimalCow
	AnimalBear
	AnimalDeer
	AnimalBoar
	AnimalMonkey
)

var animalNames = [...]string{"bird", "cat", "dog", "horse", "sheep", "cow", "bear", "deer", "boar", "monkey"}

// AnimalName returns the display name of an animal-session class.
func AnimalName(c Class) string {
	if int(c) < len(animalNames) {
		return animalNames[c]
	}
	return fmt.Sprintf("animal(%d)", c)
}

func (c Class) String() string {
	switch c {
	case ClassPylon:
		return "pylon"
	case ClassPerson:
		return "person"
	case ClassRoktrack:
		return "roktrack"
	}
	return fmt.Sprintf("class(%d)", uint8(c))
}

// Detection is one object in the current frame, in frame pixels.
type Detection struct {
	X1, Y1, X2, Y2 int
	XC, YC         int
	W, H           int
	Class          Class
	Prob           float64
	IDs            []int // OCR digits, left to right
}

// NewDetection builds a detection from its corners.
func NewDetection(x1, y1, x2, y2 int, cls Class, prob float64) Detection {
	return Detection{
		X1: x1, Y1: y1, X2: x2, Y2: y2,
		XC:    (x1 + x2) / 2,
		YC:    (y1 + y2) / 2,
		W:     x2 - x1,
		H:     y2 - y1,
		Class: cls,
		Prob:  prob,
	}
}

// HasID reports whether the OCR digits contain id.
func (d Detection) HasID(id int) bool {
	return slices.Contains(d.IDs, id)
}

// Filter returns the detections of class cls.
func Filter(dets []Detection, cls Class) []Detection {
	out := make([]Detection, 0, len(dets))
	for _, d := range dets {
		if d.Class == cls {
			out = append(out, d)
		}
	}
	return out
}

// Contains reports whether any detection is of class cls.
func Contains(dets []Detection, cls Class) bool {
	return slices.ContainsFunc(dets, func(d Detection) bool { return d.Class == cls })
}

// FilterID returns the detections whose OCR digits contain id.
func FilterID(dets []Detection, id int) []Detection {
	out := make([]Detection, 0, len(dets))
	for _, d := range dets {
		if d.HasID(id) {
			out = append(out, d)
		}
	}
	return out
}

// The sort helpers return a sorted copy; the input is left untouched.

// SortRight orders by center x, rightmost first.
func SortRight(dets []Detection) []Detection {
	return sorted(dets, func(a, b Detection) int { return b.XC - a.XC })
}

// SortLeft orders by center x, leftmost first.
func SortLeft(dets []Detection) []Detection {
	return sorted(dets, func(a, b Detection) int { return a.XC - b.XC })
}

// SortTop orders by center y, topmost first.
func SortTop(dets []Detection) []Detection {
	return sorted(dets, func(a, b Detection) int { return a.YC - b.YC })
}

// SortBottom orders by center y, lowest first.
func SortBottom(dets []Detection) []Detection {
	return sorted(dets, func(a, b Detection) int { return b.YC - a.YC })
}

// SortBig orders by height, tallest (nearest) first.
func SortBig(dets []Detection) []Detection {
	return sorted(dets, func(a, b Detection) int { return b.H - a.H })
}

// SortSmall orders by height, shortest (farthest) first.
func SortSmall(dets []Detection) []Detection {
	return sorted(dets, func(a, b Detection) int { return a.H - b.H })
}

func sorted(dets []Detection, cmp func(a, b Detection) int) []Detection {
	out := slices.Clone(dets)
	slices.SortStableFunc(out, cmp)
	return out
}
