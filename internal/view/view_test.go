package view

import (
	"testing"

	"onh-grader/pkg/geometry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func zoomedIn() Viewport {
	return Viewport{
		Zoom:           ZoomedIn,
		DisplayWidth:   800,
		Offset:         geometry.Point{X: 120, Y: 0},
		ZoomedInWidth:  512,
		ZoomedOutWidth: 2124,
		Region:         geometry.Region{X0: 1200, Y0: 700, X1: 1712, Y1: 1212},
	}
}

func zoomedOut() Viewport {
	v := zoomedIn()
	v.Zoom = ZoomedOut
	v.DisplayWidth = 1000
	v.Offset = geometry.Point{X: 0, Y: 85}
	return v
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

func TestFactor(t *testing.T) {
	assert.InDelta(t, 800.0/512.0, zoomedIn().Factor(), 1e-12)
	assert.InDelta(t, 1000.0/2124.0, zoomedOut().Factor(), 1e-12)
	assert.Equal(t, 0.0, Viewport{}.Factor())
	assert.False(t, Viewport{}.Ready())
}

func TestForwardZoomedIn(t *testing.T) {
	v := zoomedIn()
	c := geometry.NewCircle(256, 256, 356, 256)

	out := v.Forward(c).(*geometry.Circle)
	assert.Equal(t, geometry.Point{X: 400 + 120, Y: 400}, out.Center)
	assert.Equal(t, geometry.Point{X: 556 + 120, Y: 400}, out.Rim)
	// The model shape is untouched.
	assert.Equal(t, geometry.Point{X: 256, Y: 256}, c.Center)
}

func TestForwardZoomedOutAddsRegionOffset(t *testing.T) {
	v := zoomedOut()
	f := v.Factor()
	p := v.ForwardPoint(geometry.Point{X: 0, Y: 0})
	assert.InDelta(t, float64(v.Region.X0)*f, float64(p.X-v.Offset.X), 1)
	assert.InDelta(t, float64(v.Region.Y0)*f, float64(p.Y-v.Offset.Y), 1)
}

func TestInverseUndoesForwardZoomedIn(t *testing.T) {
	v := zoomedIn()
	for x := 0; x < 512; x += 7 {
		for y := 0; y < 512; y += 11 {
			p := geometry.Point{X: x, Y: y}
			d := v.ForwardPoint(p)
			back := v.Inverse(d.X, d.Y)
			require.LessOrEqual(t, abs(back.X-x), 2, "x at %v", p)
			require.LessOrEqual(t, abs(back.Y-y), 2, "y at %v", p)
		}
	}
}

func TestDisplayRoundTrip(t *testing.T) {
	for _, v := range []Viewport{zoomedIn(), zoomedOut()} {
		t.Run(v.Zoom.String(), func(t *testing.T) {
			for x := v.Offset.X; x < v.Offset.X+v.DisplayWidth; x += 13 {
				for y := v.Offset.Y; y < v.Offset.Y+600; y += 17 {
					m := v.Inverse(x, y)
					d := v.ForwardPoint(m)
					require.LessOrEqual(t, abs(d.X-x), 2, "x at (%d,%d)", x, y)
					require.LessOrEqual(t, abs(d.Y-y), 2, "y at (%d,%d)", x, y)
				}
			}
		})
	}
}

func TestZoomStatesAgreeOnModelPoint(t *testing.T) {
	in, out := zoomedIn(), zoomedOut()
	model := geometry.Point{X: 300, Y: 200}

	// The same model point seen in both views maps back to itself (within
	// the resolution of the coarser view).
	dIn := in.ForwardPoint(model)
	dOut := out.ForwardPoint(model)
	backIn := in.Inverse(dIn.X, dIn.Y)
	backOut := out.Inverse(dOut.X, dOut.Y)
	assert.LessOrEqual(t, abs(backIn.X-model.X), 2)
	assert.LessOrEqual(t, abs(backOut.X-model.X), 2)
	assert.LessOrEqual(t, abs(backOut.Y-model.Y), 2)
}

func TestRoundTripBoundShrunkPhoto(t *testing.T) {
	v := Viewport{
		Zoom:           ZoomedOut,
		DisplayWidth:   800,
		ZoomedInWidth:  512,
		ZoomedOutWidth: 4000,
		Region:         geometry.Region{X0: 1733, Y0: 1291, X1: 2245, Y1: 1803},
	}
	f := v.Factor()
	require.InDelta(t, 0.2, f, 1e-12)
	// One display pixel covers five model pixels: 0.5/f + 0.5 = 3.
	const bound = 3

	for x := -3; x < 512; x += 3 {
		for y := -5; y < 512; y += 5 {
			p := geometry.Point{X: x, Y: y}
			d := v.ForwardPoint(p)
			back := v.Inverse(d.X, d.Y)
			require.LessOrEqual(t, abs(back.X-x), bound, "x at %v", p)
			require.LessOrEqual(t, abs(back.Y-y), bound, "y at %v", p)

			again := v.ForwardPoint(back)
			require.LessOrEqual(t, abs(again.X-d.X), 1, "display x at %v", p)
			require.LessOrEqual(t, abs(again.Y-d.Y), 1, "display y at %v", p)
		}
	}
}

func TestFit(t *testing.T) {
	w, off := Fit(1000, 800, 2124, 2056)
	assert.Equal(t, 826, w)
	assert.Equal(t, geometry.Point{X: 87, Y: 0}, off)

	w, off = Fit(800, 800, 512, 512)
	assert.Equal(t, 800, w)
	assert.Equal(t, geometry.Point{}, off)

	w, _ = Fit(0, 800, 512, 512)
	assert.Equal(t, 0, w)
}

func manualLayer() *geometry.Layer {
	l := geometry.NewLayer("Manual #1", geometry.LayerManual)
	l.SetShape(geometry.RoleDisc, geometry.NewCircle(256, 256, 356, 256))
	l.SetShape(geometry.RoleCup, geometry.NewCircle(256, 256, 316, 256))
	return l
}

func TestHitCentersBeforeRims(t *testing.T) {
	v := zoomedIn()
	v.DisplayWidth, v.ZoomedInWidth, v.Offset = 512, 512, geometry.Point{}
	h := NewHitTester()
	l := manualLayer()
	alphas := [2]int{90, 100}

	handle, ok := h.Hit(v, l, alphas, 258, 254)
	require.True(t, ok)
	assert.Equal(t, geometry.Handle{Role: geometry.RoleDisc, Index: 0}, handle)

	handle, ok = h.Hit(v, l, alphas, 355, 257)
	require.True(t, ok)
	assert.Equal(t, geometry.Handle{Role: geometry.RoleDisc, Index: 1}, handle)

	handle, ok = h.Hit(v, l, alphas, 318, 256)
	require.True(t, ok)
	assert.Equal(t, geometry.Handle{Role: geometry.RoleCup, Index: 1}, handle)

	_, ok = h.Hit(v, l, alphas, 10, 10)
	assert.False(t, ok)
}

func TestHitSkipsHiddenRoles(t *testing.T) {
	v := zoomedIn()
	v.DisplayWidth, v.ZoomedInWidth, v.Offset = 512, 512, geometry.Point{}
	h := NewHitTester()
	l := manualLayer()

	// Disc hidden: the shared center resolves to the cup.
	handle, ok := h.Hit(v, l, [2]int{6, 100}, 256, 256)
	require.True(t, ok)
	assert.Equal(t, geometry.RoleCup, handle.Role)

	_, ok = h.Hit(v, l, [2]int{0, 0}, 256, 256)
	assert.False(t, ok)
}

func TestHitUsesDisplaySpace(t *testing.T) {
	v := zoomedIn()
	h := NewHitTester()
	l := manualLayer()

	d := v.ForwardPoint(geometry.Point{X: 356, Y: 256})
	handle, ok := h.Hit(v, l, [2]int{90, 100}, d.X, d.Y)
	require.True(t, ok)
	assert.Equal(t, geometry.Handle{Role: geometry.RoleDisc, Index: 1}, handle)
}
