// Package predictor provides Rate Predictor implementations: a linear model
// loaded from a weights file and an HTTP client for a remote model service.
package predictor

import (
	"context"
	"fmt"
)

// Feature indices in wire order. Producer and model must agree on this
// order; the vector is not self-describing.
const (
	CupX = iota
	CupY
	CupW
	CupH
	CupArea
	DiscX
	DiscY
	DiscW
	DiscH
	DiscArea
	NumFeatures
)

// FeatureVector is the normalized 10-value model input.
type FeatureVector [NumFeatures]float64

// Slice returns the values in wire order.
func (f FeatureVector) Slice() []float64 {
	out := make([]float64, NumFeatures)
	copy(out, f[:])
	return out
}

func (f FeatureVector) String() string {
	return fmt.Sprintf("cup(%.3f, %.3f, %.3f, %.3f, %.3f) disc(%.3f, %.3f, %.3f, %.3f, %.3f)",
		f[CupX], f[CupY], f[CupW], f[CupH], f[CupArea],
		f[DiscX], f[DiscY], f[DiscW], f[DiscH], f[DiscArea])
}

// Unavailable is the sentinel a predictor returns when it has no model.
const Unavailable = -1.0

// Prediction is the model output pair; element 0 is the detection rate in
// [0, 1].
type Prediction [2]float64

// UnavailablePrediction is returned by a predictor without a usable model.
var UnavailablePrediction = Prediction{Unavailable, Unavailable}

// Available reports whether neither element carries the sentinel.
func (p Prediction) Available() bool {
	return p[0] != Unavailable && p[1] != Unavailable
}

// Rate returns the detection rate.
func (p Prediction) Rate() float64 {
	return p[0]
}

// Status is the lifecycle of a predictor's model.
type Status int

const (
	StatusNotLoaded Status = iota
	StatusReady
	StatusLoadFailed
)

func (s Status) String() string {
	switch s {
	case StatusNotLoaded:
		return "not loaded"
	case StatusReady:
		return "ready"
	case StatusLoadFailed:
		return "load failed"
	default:
		return "unknown"
	}
}

// Predictor maps a feature vector to a prediction.
type Predictor interface {
	Predict(ctx context.Context, features FeatureVector) (Prediction, error)
	Status() Status
}
