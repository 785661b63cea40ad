package geometry

import (
	"errors"
	"fmt"
	"math"
)

// ErrUnsupportedShape is returned when constructing a shape kind that has no
// implementation.
var ErrUnsupportedShape = errors.New("unsupported shape kind")

// ShapeKind identifies a shape variant.
type ShapeKind int

const (
	KindCircle ShapeKind = iota
	KindEllipse
)

func (k ShapeKind) String() string {
	switch k {
	case KindCircle:
		return "Circle"
	case KindEllipse:
		return "Ellipse"
	default:
		return "Unknown"
	}
}

// Shape is the closed set of annotation shapes. Only *Circle implements it;
// the unexported method keeps other packages from adding variants.
type Shape interface {
	Kind() ShapeKind
	Scale(factor float64)
	Move(dx, dy int)
	Bounds() Box
	Diameter() int
	// Handles returns the draggable points in hit-test order.
	Handles() []*Point
	IsActive() bool
	SetActive(active bool)
	Clone() Shape

	sealed()
}

// NewShape constructs an inactive shape of the given kind.
func NewShape(kind ShapeKind) (Shape, error) {
	switch kind {
	case KindCircle:
		return NewCircle(0, 0, 0, 0), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedShape, kind)
	}
}

// Circle is described by its center and a rim handle lying on the circle.
type Circle struct {
	Center Point `json:"center"`
	Rim    Point `json:"rim"`
	Active bool  `json:"active"`
}

// NewCircle creates an inactive circle.
func NewCircle(cx, cy, rx, ry int) *Circle {
	return &Circle{Center: Point{X: cx, Y: cy}, Rim: Point{X: rx, Y: ry}}
}

func (c *Circle) sealed() {}

// Kind returns KindCircle.
func (c *Circle) Kind() ShapeKind { return KindCircle }

// Radius returns the exact center-to-rim distance.
func (c *Circle) Radius() float64 {
	return c.Center.Distance(c.Rim)
}

// Diameter returns the rounded diameter. It is zero when the rim sits on
// the center.
func (c *Circle) Diameter() int {
	return int(math.Round(2 * c.Radius()))
}

// Scale scales center and rim by the same factor.
func (c *Circle) Scale(factor float64) {
	c.Center.Scale(factor)
	c.Rim.Scale(factor)
}

// Move translates center and rim.
func (c *Circle) Move(dx, dy int) {
	c.Center.Move(dx, dy)
	c.Rim.Move(dx, dy)
}

// Bounds returns the square bounding box from the rounded diameter.
func (c *Circle) Bounds() Box {
	d := float64(c.Diameter())
	return Box{
		X:      float64(c.Center.X) - d/2,
		Y:      float64(c.Center.Y) - d/2,
		Width:  d,
		Height: d,
	}
}

// Handles returns the center followed by the rim.
func (c *Circle) Handles() []*Point {
	return []*Point{&c.Center, &c.Rim}
}

func (c *Circle) IsActive() bool { return c.Active }

func (c *Circle) SetActive(active bool) { c.Active = active }

// Clone returns an independent copy.
func (c *Circle) Clone() Shape {
	cp := *c
	return &cp
}

func (c *Circle) String() string {
	return fmt.Sprintf("Circle(%s, %s)", c.Center, c.Rim)
}
