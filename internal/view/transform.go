// Package view maps annotation shapes between model space (pixels of the
// cropped image) and display space (pixels of the rendered, letterboxed
// bitmap) under the current zoom state.
package view

import (
	"math"

	"onh-grader/pkg/geometry"
)

// ZoomState selects which bitmap is displayed.
type ZoomState int

const (
	ZoomedOut ZoomState = iota // full photograph
	ZoomedIn                   // crop region
)

func (z ZoomState) String() string {
	if z == ZoomedIn {
		return "zoomed-in"
	}
	return "zoomed-out"
}

// Viewport holds everything needed to place model-space shapes on screen.
type Viewport struct {
	Zoom ZoomState

	// DisplayWidth is the pixel width of the bitmap as rendered.
	DisplayWidth int
	// Offset is the letterbox offset of the rendered bitmap.
	Offset geometry.Point

	// Native widths of the two bitmaps at unit scale.
	ZoomedInWidth  int
	ZoomedOutWidth int

	// Region places the crop inside the full photograph.
	Region geometry.Region
}

// Ready reports whether the viewport can transform in its current state.
func (v Viewport) Ready() bool {
	if v.DisplayWidth <= 0 {
		return false
	}
	if v.Zoom == ZoomedIn {
		return v.ZoomedInWidth > 0
	}
	return v.ZoomedOutWidth > 0
}

// Factor returns the model-to-display scale factor.
func (v Viewport) Factor() float64 {
	native := v.ZoomedOutWidth
	if v.Zoom == ZoomedIn {
		native = v.ZoomedInWidth
	}
	if native <= 0 {
		return 0
	}
	return float64(v.DisplayWidth) / float64(native)
}

// regionOffset is where the crop origin lands once the full photo is scaled
// to the display. Zero when zoomed in.
func (v Viewport) regionOffset(factor float64) (int, int) {
	if v.Zoom == ZoomedIn {
		return 0, 0
	}
	return int(math.Round(float64(v.Region.X0) * factor)),
		int(math.Round(float64(v.Region.Y0) * factor))
}

// Forward returns a display-space copy of s. The argument is not modified.
func (v Viewport) Forward(s geometry.Shape) geometry.Shape {
	out := s.Clone()
	factor := v.Factor()
	rx, ry := v.regionOffset(factor)
	out.Scale(factor)
	out.Move(v.Offset.X+rx, v.Offset.Y+ry)
	return out
}

// ForwardPoint maps a single model-space point to display space.
func (v Viewport) ForwardPoint(p geometry.Point) geometry.Point {
	factor := v.Factor()
	rx, ry := v.regionOffset(factor)
	p.Scale(factor)
	p.Move(v.Offset.X+rx, v.Offset.Y+ry)
	return p
}

// Inverse maps a display-space position back to model space. The offsets
// are removed before the scale is undone.
//
// The region offset is the same rounded value Forward adds, so a model point
// sent forward and back is off by at most 0.5/factor + 0.5 pixels per axis:
// one display pixel covers 1/factor model pixels. That is within 2 pixels
// for factor >= 1/3 and grows as the full photo is shrunk further.
func (v Viewport) Inverse(x, y int) geometry.Point {
	factor := v.Factor()
	if factor == 0 {
		return geometry.Point{}
	}
	inv := 1 / factor
	rx, ry := v.regionOffset(factor)

	tx := float64(x - v.Offset.X - rx)
	ty := float64(y - v.Offset.Y - ry)
	return geometry.Point{
		X: int(math.Round(tx * inv)),
		Y: int(math.Round(ty * inv)),
	}
}

// Fit computes the aspect-preserving size and letterbox offset of a bitmap
// of size (imgW, imgH) drawn centered in a container of size (boxW, boxH).
// It returns the rendered width and the offset.
func Fit(boxW, boxH, imgW, imgH int) (int, geometry.Point) {
	if boxW <= 0 || boxH <= 0 || imgW <= 0 || imgH <= 0 {
		return 0, geometry.Point{}
	}
	scale := math.Min(float64(boxW)/float64(imgW), float64(boxH)/float64(imgH))
	w := int(math.Round(float64(imgW) * scale))
	h := int(math.Round(float64(imgH) * scale))
	return w, geometry.Point{X: (boxW - w) / 2, Y: (boxH - h) / 2}
}
