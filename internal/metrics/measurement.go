// Package metrics derives glaucoma indicators from a disc/cup pair: ISNT
// clearances, the cup-to-disc ratio and the predictor's detection rate.
package metrics

import (
	"errors"
	"fmt"
	"image"
	"math"

	"onh-grader/pkg/geometry"
)

// ErrDegenerateShape is returned for a shape with zero diameter.
var ErrDegenerateShape = errors.New("shape has zero diameter")

// Measurement is the common representation of a disc or cup: its bounding
// box and area, both in image pixels.
type Measurement struct {
	Box  geometry.Box `json:"box"`
	Area float64      `json:"area"`
}

// FromShape measures a manual annotation. Circle area is pi*r^2 of the
// rounded diameter, so the ratio of areas is the square of the diameter
// ratio.
func FromShape(s geometry.Shape) (Measurement, error) {
	if s == nil {
		return Measurement{}, fmt.Errorf("%w: missing shape", ErrDegenerateShape)
	}
	d := s.Diameter()
	if d <= 0 {
		return Measurement{}, fmt.Errorf("%w: %s", ErrDegenerateShape, s.Kind())
	}
	r := float64(d) / 2
	return Measurement{Box: s.Bounds(), Area: math.Pi * r * r}, nil
}

// FromRect measures a region found by boundary extraction.
func FromRect(r image.Rectangle, area float64) Measurement {
	return Measurement{Box: geometry.BoxFromRect(r), Area: area}
}

// Diameter is the larger side of the bounding box.
func (m Measurement) Diameter() float64 {
	return m.Box.Extent()
}

// Clearances are the disc-minus-cup rim widths in each compass direction,
// in pixels. Negative values mean the cup crosses the disc boundary.
//
// Directions are taken in image orientation: nasal is the right edge,
// temporal the left edge, inferior the top and superior the bottom.
type Clearances struct {
	N float64 `json:"n"`
	I float64 `json:"i"`
	S float64 `json:"s"`
	T float64 `json:"t"`
}

// ClearancesOf computes the four clearances of cup inside disc.
func ClearancesOf(disc, cup Measurement) Clearances {
	d, c := disc.Box, cup.Box
	return Clearances{
		N: (d.X + d.Width) - (c.X + c.Width),
		I: c.Y - d.Y,
		S: (d.Y + d.Height) - (c.Y + c.Height),
		T: c.X - d.X,
	}
}

// Inside reports whether no clearance is negative.
func (c Clearances) Inside() bool {
	return c.N >= 0 && c.I >= 0 && c.S >= 0 && c.T >= 0
}

// ISNT holds the three comparisons of the ISNT rule.
type ISNT struct {
	IS bool `json:"i_ge_s"`
	SN bool `json:"s_ge_n"`
	NT bool `json:"n_ge_t"`
}

// EvaluateISNT compares I >= S, S >= N and N >= T.
func EvaluateISNT(c Clearances) ISNT {
	return ISNT{
		IS: c.I >= c.S,
		SN: c.S >= c.N,
		NT: c.N >= c.T,
	}
}

// Pass reports whether at least two comparisons hold.
func (r ISNT) Pass() bool {
	n := 0
	for _, ok := range []bool{r.IS, r.SN, r.NT} {
		if ok {
			n++
		}
	}
	return n >= 2
}

// Triple renders the comparisons as "1-0-1".
func (r ISNT) Triple() string {
	return fmt.Sprintf("%s-%s-%s", bit(r.IS), bit(r.SN), bit(r.NT))
}

func (r ISNT) String() string {
	if r.Pass() {
		return "PASS (" + r.Triple() + ")"
	}
	return "FAIL (" + r.Triple() + ")"
}

func bit(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
