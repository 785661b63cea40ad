package metrics

import (
	"gonum.org/v1/gonum/floats"

	"onh-grader/internal/predictor"
)

// Features normalizes a disc/cup pair into the predictor's input. Lengths are
// divided by the disc extent and areas by its square. The cup center is
// given relative to the disc box origin; the disc center is its half size.
func Features(disc, cup Measurement) predictor.FeatureVector {
	norm := disc.Diameter()
	var fv predictor.FeatureVector
	if norm <= 0 {
		return fv
	}

	cx, cy := cup.Box.Center()
	v := []float64{
		cx - disc.Box.X,
		cy - disc.Box.Y,
		cup.Box.Width,
		cup.Box.Height,
		cup.Area / norm,
		disc.Box.Width / 2,
		disc.Box.Height / 2,
		disc.Box.Width,
		disc.Box.Height,
		disc.Area / norm,
	}
	floats.Scale(1/norm, v)
	copy(fv[:], v)
	return fv
}
