package pdffigures

import (
	"fmt"

	"github.com/pkg/errors"
)

// Unit tags the coordinate system a bounding box was measured in.
// Layout analysis produces boxes in PDF points with the origin at the
// bottom-left corner of the page. OCR produces boxes in raster pixels with
// the origin at the top-left corner of the page image. The two systems are
// never comparable directly.
type Unit string

const (
	// UnitPoint is 1/72 inch, PDF native coordinates (y grows upward).
	UnitPoint Unit = "pt"
	// UnitPixel is raster pixels at some DPI (y grows downward).
	UnitPixel Unit = "px"
)

// PointsPerMM converts millimetres to points (1/72 inch).
const PointsPerMM = 2.8346456693

// Direction identifies a side of a bounding box.
type Direction string

const (
	DirectionUp    Direction = "up"
	DirectionDown  Direction = "down"
	DirectionLeft  Direction = "left"
	DirectionRight Direction = "right"
	// DirectionAll evaluates all four directions.
	DirectionAll Direction = "all"
)

// Valid reports whether d is a recognized direction.
func (d Direction) Valid() bool {
	switch d {
	case DirectionUp, DirectionDown, DirectionLeft, DirectionRight, DirectionAll:
		return true
	}
	return false
}

// ErrUnitMismatch is returned when a geometric comparison is attempted
// between boxes (or offsets) with incompatible unit tags. This is a
// programming error and is never silently coerced.
var ErrUnitMismatch = errors.New("bounding box unit mismatch")

// ErrNoOverlap signals that two boxes do not overlap on the axis
// perpendicular to the requested direction, so no meaningful gap exists.
// It is an expected condition, consumed by the caption associator.
var ErrNoOverlap = errors.New("no overlap on perpendicular axis")

// BBox is a rectangle (x0, y0, x1, y1) in a single coordinate system,
// tagged with the unit it was measured in. X1 >= X0 and Y1 >= Y0 always
// hold for boxes built through NewBBox.
type BBox struct {
	X0   float64 `json:"x0"`
	Y0   float64 `json:"y0"`
	X1   float64 `json:"x1"`
	Y1   float64 `json:"y1"`
	Unit Unit    `json:"unit"`
}

// NewBBox builds a bounding box, normalizing the corner order so the
// coordinate invariants hold regardless of input order.
func NewBBox(x0, y0, x1, y1 float64, unit Unit) BBox {
	if x1 < x0 {
		x0, x1 = x1, x0
	}
	if y1 < y0 {
		y0, y1 = y1, y0
	}
	return BBox{X0: x0, Y0: y0, X1: x1, Y1: y1, Unit: unit}
}

// Width returns the horizontal extent of the box.
func (b BBox) Width() float64 {
	return b.X1 - b.X0
}

// Height returns the vertical extent of the box.
func (b BBox) Height() float64 {
	return b.Y1 - b.Y0
}

// String renders the box for log lines and error messages.
func (b BBox) String() string {
	return fmt.Sprintf("(%.2f, %.2f, %.2f, %.2f)%s", b.X0, b.Y0, b.X1, b.Y1, b.Unit)
}

// overlapsHorizontally reports whether the horizontal ranges of two boxes
// intersect.
func overlapsHorizontally(a, b BBox) bool {
	return a.X0 <= b.X1 && b.X0 <= a.X1
}

// overlapsVertically reports whether the vertical ranges of two boxes
// intersect.
func overlapsVertically(a, b BBox) bool {
	return a.Y0 <= b.Y1 && b.Y0 <= a.Y1
}

// Distance returns the signed gap between box a and box b measured along
// the given direction, in the boxes' shared unit. The gap is positive when
// b lies strictly on the requested side of a, zero when they touch, and
// negative when they overlap along the measured axis.
//
// Directions are expressed in reading order: "down" is the side where a
// caption below a figure sits. Because point boxes have y growing upward
// and pixel boxes have y growing downward, the vertical arithmetic flips
// with the unit tag; callers never need to care.
//
// Returns ErrUnitMismatch when the unit tags differ and ErrNoOverlap when
// the boxes do not overlap on the perpendicular axis.
func Distance(a, b BBox, dir Direction) (float64, error) {
	if a.Unit != b.Unit {
		return 0, errors.Wrapf(ErrUnitMismatch, "%s vs %s", a.Unit, b.Unit)
	}

	switch dir {
	case DirectionDown, DirectionUp:
		if !overlapsHorizontally(a, b) {
			return 0, ErrNoOverlap
		}
		below := dir == DirectionDown
		if a.Unit == UnitPixel {
			// Raster origin is top-left, so "below" means larger y.
			below = !below
		}
		if below {
			return a.Y0 - b.Y1, nil
		}
		return b.Y0 - a.Y1, nil
	case DirectionLeft, DirectionRight:
		if !overlapsVertically(a, b) {
			return 0, ErrNoOverlap
		}
		if dir == DirectionLeft {
			return a.X0 - b.X1, nil
		}
		return b.X0 - a.X1, nil
	default:
		return 0, errors.Errorf("invalid direction %q", dir)
	}
}

// Within reports whether box b sits within maxOffset of box a along the
// given direction: the boxes must overlap on the perpendicular axis and the
// gap must be in [0, maxOffset]. A zero maxOffset degenerates to
// exact-adjacency matching. Unit mismatches are propagated as errors;
// missing overlap is simply "not within".
func Within(a, b BBox, dir Direction, maxOffset float64) (bool, error) {
	d, err := Distance(a, b, dir)
	if err != nil {
		if errors.Is(err, ErrNoOverlap) {
			return false, nil
		}
		return false, err
	}
	return d >= 0 && d <= maxOffset, nil
}
