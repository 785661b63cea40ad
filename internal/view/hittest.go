package view

import "onh-grader/pkg/geometry"

const (
	// DefaultGrabArea is the half-width of the hit square around a handle.
	DefaultGrabArea = 8
	// DefaultVisibilityThreshold is the alpha at or below which a shape is
	// treated as hidden and cannot be grabbed.
	DefaultVisibilityThreshold = 6
)

// HitTester finds the handle under a display-space position.
type HitTester struct {
	GrabArea            int
	VisibilityThreshold int
}

// NewHitTester returns a hit tester with the default tolerances.
func NewHitTester() HitTester {
	return HitTester{
		GrabArea:            DefaultGrabArea,
		VisibilityThreshold: DefaultVisibilityThreshold,
	}
}

// Visible reports whether a shape drawn with the given alpha is grabbable.
func (h HitTester) Visible(alpha int) bool {
	return alpha > h.VisibilityThreshold
}

// Hit returns the handle of layer under (x, y). All centers are tested
// before any rim, disc before cup within each pass. alphas is indexed by
// geometry.Role.
func (h HitTester) Hit(v Viewport, layer *geometry.Layer, alphas [2]int, x, y int) (geometry.Handle, bool) {
	if layer == nil || !v.Ready() {
		return geometry.Handle{}, false
	}

	// Transform once; handles of a projected shape line up with the model's.
	var projected [2][]*geometry.Point
	maxHandles := 0
	for _, role := range geometry.Roles {
		s := layer.Shape(role)
		if s == nil {
			continue
		}
		projected[role] = v.Forward(s).Handles()
		if n := len(projected[role]); n > maxHandles {
			maxHandles = n
		}
	}

	for idx := 0; idx < maxHandles; idx++ {
		for _, role := range geometry.Roles {
			handles := projected[role]
			if idx >= len(handles) {
				continue
			}
			if !handles[idx].ContainsNear(x, y, h.GrabArea) {
				continue
			}
			if !h.Visible(alphas[role]) {
				continue
			}
			return geometry.Handle{Role: role, Index: idx}, true
		}
	}
	return geometry.Handle{}, false
}
