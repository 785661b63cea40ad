// Package geometry provides the value types shared by the locator, the
// transform engine and the metric engine.
package geometry

import (
	"fmt"
	"image"
	"math"
)

// Point is an integer pixel position. Transform steps round to the nearest
// integer after every scale, so a Point never carries a fraction.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// NewPoint creates a new Point.
func NewPoint(x, y int) Point {
	return Point{X: x, Y: y}
}

// Set copies another point into p.
func (p *Point) Set(other Point) {
	p.X, p.Y = other.X, other.Y
}

// Length2 returns the squared distance to another point.
func (p Point) Length2(other Point) int {
	dx := p.X - other.X
	dy := p.Y - other.Y
	return dx*dx + dy*dy
}

// Distance returns the Euclidean distance to another point.
func (p Point) Distance(other Point) float64 {
	return math.Sqrt(float64(p.Length2(other)))
}

// Scale multiplies both coordinates by factor and rounds to the nearest integer.
func (p *Point) Scale(factor float64) {
	p.X = int(math.Round(float64(p.X) * factor))
	p.Y = int(math.Round(float64(p.Y) * factor))
}

// Move translates the point.
func (p *Point) Move(dx, dy int) {
	p.X += dx
	p.Y += dy
}

// ContainsNear reports whether (x, y) lies inside the axis-aligned square of
// half-width tolerance centered on p. Edges are inclusive.
func (p Point) ContainsNear(x, y, tolerance int) bool {
	return x >= p.X-tolerance && x <= p.X+tolerance &&
		y >= p.Y-tolerance && y <= p.Y+tolerance
}

func (p Point) String() string {
	return fmt.Sprintf("(%d, %d)", p.X, p.Y)
}

// Region is the crop box around the optic nerve head in full-image pixel
// coordinates. X1 and Y1 are exclusive.
type Region struct {
	X0 int `json:"x0"`
	Y0 int `json:"y0"`
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
}

// Width returns the region width.
func (r Region) Width() int { return r.X1 - r.X0 }

// Height returns the region height.
func (r Region) Height() int { return r.Y1 - r.Y0 }

// Origin returns the top-left corner.
func (r Region) Origin() Point { return Point{X: r.X0, Y: r.Y0} }

// Rect converts the region to an image.Rectangle.
func (r Region) Rect() image.Rectangle {
	return image.Rect(r.X0, r.Y0, r.X1, r.Y1)
}

// Valid reports whether the region is non-empty and lies within an image of
// the given size.
func (r Region) Valid(width, height int) bool {
	return r.X0 >= 0 && r.X0 < r.X1 && r.X1 <= width &&
		r.Y0 >= 0 && r.Y0 < r.Y1 && r.Y1 <= height
}

func (r Region) String() string {
	return fmt.Sprintf("(%d, %d, %d, %d)", r.X0, r.Y0, r.X1, r.Y1)
}

// Box is a floating-point bounding box used by the metric engine.
type Box struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// BoxFromRect converts an image.Rectangle to a Box.
func BoxFromRect(r image.Rectangle) Box {
	return Box{
		X:      float64(r.Min.X),
		Y:      float64(r.Min.Y),
		Width:  float64(r.Dx()),
		Height: float64(r.Dy()),
	}
}

// Center returns the center of the box.
func (b Box) Center() (float64, float64) {
	return b.X + b.Width/2, b.Y + b.Height/2
}

// Extent returns the larger of width and height.
func (b Box) Extent() float64 {
	return math.Max(b.Width, b.Height)
}
