package geometry

import (
	"errors"
	"math"
)

// DefaultOverlapThreshold is the fraction of the smaller box that must be
// covered before two boxes are considered overlapping.
const DefaultOverlapThreshold = 0.1

// ErrEmptyPolygon is returned when a bounding box is requested for a polygon
// without points.
var ErrEmptyPolygon = errors.New("polygon has no points")

// Point is a 2D point in image coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Polygon is an ordered list of points. Detection oracles produce 4 points.
type Polygon []Point

// Box is an axis-aligned envelope.
type Box struct {
	MinX float64 `json:"min_x"`
	MinY float64 `json:"min_y"`
	MaxX float64 `json:"max_x"`
	MaxY float64 `json:"max_y"`
}

// BoundingBox reduces a polygon to its axis-aligned envelope.
//
// Only a non-empty point set is required; a degenerate polygon (all points on
// a line or a single point) yields a zero-area box rather than an error.
func BoundingBox(p Polygon) (Box, error) {
	if len(p) == 0 {
		return Box{}, ErrEmptyPolygon
	}

	b := Box{MinX: p[0].X, MinY: p[0].Y, MaxX: p[0].X, MaxY: p[0].Y}
	for _, pt := range p[1:] {
		b.MinX = math.Min(b.MinX, pt.X)
		b.MinY = math.Min(b.MinY, pt.Y)
		b.MaxX = math.Max(b.MaxX, pt.X)
		b.MaxY = math.Max(b.MaxY, pt.Y)
	}
	return b, nil
}

// Width returns the horizontal extent of the box.
func (b Box) Width() float64 {
	return b.MaxX - b.MinX
}

// Height returns the vertical extent of the box.
func (b Box) Height() float64 {
	return b.MaxY - b.MinY
}

// Area returns width * height.
func (b Box) Area() float64 {
	return b.Width() * b.Height()
}

// Polygon returns the 4 corners of the box, clockwise from top-left.
func (b Box) Polygon() Polygon {
	return Polygon{
		{X: b.MinX, Y: b.MinY},
		{X: b.MaxX, Y: b.MinY},
		{X: b.MaxX, Y: b.MaxY},
		{X: b.MinX, Y: b.MaxY},
	}
}

// Union returns the smallest box containing both a and b.
func Union(a, b Box) Box {
	return Box{
		MinX: math.Min(a.MinX, b.MinX),
		MinY: math.Min(a.MinY, b.MinY),
		MaxX: math.Max(a.MaxX, b.MaxX),
		MaxY: math.Max(a.MaxY, b.MaxY),
	}
}

// Contains reports whether o lies entirely inside b (edges inclusive).
func (b Box) Contains(o Box) bool {
	return o.MinX >= b.MinX && o.MinY >= b.MinY && o.MaxX <= b.MaxX && o.MaxY <= b.MaxY
}

// IntersectionArea returns the area shared by a and b, or 0 when they do not
// overlap. Never negative.
func IntersectionArea(a, b Box) float64 {
	w := math.Max(0, math.Min(a.MaxX, b.MaxX)-math.Max(a.MinX, b.MinX))
	h := math.Max(0, math.Min(a.MaxY, b.MaxY)-math.Max(a.MinY, b.MinY))
	return w * h
}

// Overlaps reports whether the intersection of a and b covers more than
// threshold of the smaller box's area.
//
// If the smaller box has zero area but the intersection is non-zero the
// boxes overlap, so degenerate boxes are absorbed instead of ignored.
func Overlaps(a, b Box, threshold float64) bool {
	inter := IntersectionArea(a, b)
	if inter == 0 {
		return false
	}

	smaller := math.Min(a.Area(), b.Area())
	if smaller == 0 {
		return true
	}
	return inter/smaller > threshold
}
