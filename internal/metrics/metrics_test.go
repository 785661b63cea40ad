package metrics

import (
	"context"
	"errors"
	"image"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"onh-grader/internal/predictor"
	"onh-grader/pkg/geometry"
)

type fakePredictor struct {
	status predictor.Status
	out    predictor.Prediction
	err    error
	calls  int
	last   predictor.FeatureVector
}

func (f *fakePredictor) Status() predictor.Status { return f.status }

func (f *fakePredictor) Predict(_ context.Context, fv predictor.FeatureVector) (predictor.Prediction, error) {
	f.calls++
	f.last = fv
	return f.out, f.err
}

func ready(rate float64) *fakePredictor {
	return &fakePredictor{status: predictor.StatusReady, out: predictor.Prediction{rate, 1 - rate}}
}

func circle(cx, cy, r int) *geometry.Circle {
	return geometry.NewCircle(cx, cy, cx+r, cy)
}

func TestConcentricCircles(t *testing.T) {
	p := ready(0.3)
	e := NewEngine(p, DefaultThresholds(), nil)

	res, err := e.ComputeShapes(context.Background(), circle(256, 256, 100), circle(256, 256, 50))
	require.NoError(t, err)

	assert.Equal(t, KindValid, res.Kind)
	c := res.Clearances
	assert.Equal(t, c.N, c.I)
	assert.Equal(t, c.I, c.S)
	assert.Equal(t, c.S, c.T)
	assert.Equal(t, ISNT{IS: true, SN: true, NT: true}, res.ISNT)
	assert.True(t, res.ISNTPass)
	assert.InDelta(t, 0.5, res.CDR, 1e-12)
	assert.True(t, res.CDRPass)

	assert.Equal(t, 1, p.calls)
	fv := res.Features
	assert.InDelta(t, 0.5, fv[predictor.CupX], 1e-12)
	assert.InDelta(t, 0.5, fv[predictor.CupY], 1e-12)
	assert.InDelta(t, 0.5, fv[predictor.CupW], 1e-12)
	assert.InDelta(t, math.Pi/16, fv[predictor.CupArea], 1e-12)
	assert.InDelta(t, 0.5, fv[predictor.DiscX], 1e-12)
	assert.InDelta(t, 1.0, fv[predictor.DiscW], 1e-12)
	assert.InDelta(t, math.Pi/4, fv[predictor.DiscArea], 1e-12)

	assert.InDelta(t, 0.3, res.Rate, 1e-12)
	assert.InDelta(t, 30.0, res.RatePercent(), 1e-9)
	assert.True(t, res.RatePass)
}

func TestCupLargerThanDisc(t *testing.T) {
	p := ready(0.3)
	e := NewEngine(p, DefaultThresholds(), nil)

	res, err := e.ComputeShapes(context.Background(), circle(256, 256, 100), circle(256, 256, 110))
	require.NoError(t, err)

	assert.Equal(t, KindCupLargerThanDisc, res.Kind)
	assert.False(t, res.HasRatio())
	assert.Zero(t, res.CDR)
	assert.Zero(t, p.calls)
	assert.Equal(t, "Cup > Disc", res.String())
}

func TestCupOutOfBounds(t *testing.T) {
	p := ready(0.3)
	e := NewEngine(p, DefaultThresholds(), nil)

	res, err := e.ComputeShapes(context.Background(), circle(256, 256, 100), circle(340, 256, 40))
	require.NoError(t, err)

	assert.Equal(t, KindCupOutOfBounds, res.Kind)
	assert.Less(t, res.Clearances.N, 0.0)
	assert.Zero(t, res.CDR)
	assert.Zero(t, p.calls)
}

func TestBoxFeatures(t *testing.T) {
	disc := FromRect(image.Rect(100, 100, 300, 300), 31000)
	cup := FromRect(image.Rect(150, 150, 200, 200), 2000)

	fv := Features(disc, cup)
	assert.InDelta(t, 0.5, fv[predictor.DiscX], 1e-12)
	assert.InDelta(t, 0.5, fv[predictor.DiscY], 1e-12)
	assert.InDelta(t, 1.0, fv[predictor.DiscW], 1e-12)
	assert.InDelta(t, 1.0, fv[predictor.DiscH], 1e-12)
	assert.InDelta(t, 31000.0/40000, fv[predictor.DiscArea], 1e-12)

	assert.InDelta(t, 0.375, fv[predictor.CupX], 1e-12)
	assert.InDelta(t, 0.375, fv[predictor.CupY], 1e-12)
	assert.InDelta(t, 0.25, fv[predictor.CupW], 1e-12)
	assert.InDelta(t, 0.25, fv[predictor.CupH], 1e-12)
	assert.InDelta(t, 2000.0/40000, fv[predictor.CupArea], 1e-12)
}

func TestBoxCDRIsVertical(t *testing.T) {
	e := NewEngine(ready(0.2), DefaultThresholds(), nil)
	disc := FromRect(image.Rect(0, 0, 200, 180), 28000)
	cup := FromRect(image.Rect(50, 45, 130, 135), 6000)

	res := e.Compute(context.Background(), disc, cup)
	require.Equal(t, KindValid, res.Kind)
	assert.InDelta(t, 0.5, res.CDR, 1e-12)
}

func TestPredictorSentinel(t *testing.T) {
	for _, out := range []predictor.Prediction{
		predictor.UnavailablePrediction,
		{predictor.Unavailable, 0.4},
		{0.4, predictor.Unavailable},
	} {
		p := &fakePredictor{status: predictor.StatusReady, out: out}
		e := NewEngine(p, DefaultThresholds(), nil)

		res, err := e.ComputeShapes(context.Background(), circle(256, 256, 100), circle(256, 256, 50))
		require.NoError(t, err)
		assert.Equal(t, KindPredictorUnavailable, res.Kind, "prediction %v", out)
		assert.False(t, res.HasRate())
		assert.True(t, res.HasRatio())
		assert.InDelta(t, 0.5, res.CDR, 1e-12)
		assert.Zero(t, res.Rate)
	}
}

func TestPredictorFailures(t *testing.T) {
	cases := map[string]predictor.Predictor{
		"nil":          nil,
		"not loaded":   &fakePredictor{status: predictor.StatusNotLoaded, out: predictor.Prediction{0.2, 0.8}},
		"load failed":  &fakePredictor{status: predictor.StatusLoadFailed, out: predictor.Prediction{0.2, 0.8}},
		"error":        &fakePredictor{status: predictor.StatusReady, err: errors.New("connection refused")},
		"out of range": ready(1.5),
	}
	for name, p := range cases {
		t.Run(name, func(t *testing.T) {
			e := NewEngine(p, DefaultThresholds(), nil)
			res, err := e.ComputeShapes(context.Background(), circle(256, 256, 100), circle(256, 256, 50))
			require.NoError(t, err)
			assert.Equal(t, KindPredictorUnavailable, res.Kind)
		})
	}
}

func TestRateClassification(t *testing.T) {
	e := NewEngine(ready(0.5), DefaultThresholds(), nil)
	res, err := e.ComputeShapes(context.Background(), circle(256, 256, 100), circle(256, 256, 50))
	require.NoError(t, err)
	assert.True(t, res.RatePass)

	e = NewEngine(ready(0.51), DefaultThresholds(), nil)
	res, err = e.ComputeShapes(context.Background(), circle(256, 256, 100), circle(256, 256, 50))
	require.NoError(t, err)
	assert.False(t, res.RatePass)
}

func TestCDRThreshold(t *testing.T) {
	e := NewEngine(ready(0.1), DefaultThresholds(), nil)
	res, err := e.ComputeShapes(context.Background(), circle(256, 256, 100), circle(256, 256, 70))
	require.NoError(t, err)
	assert.InDelta(t, 0.7, res.CDR, 1e-12)
	assert.False(t, res.CDRPass)
}

func TestISNTRule(t *testing.T) {
	r := EvaluateISNT(Clearances{N: 8, I: 10, S: 5, T: 3})
	assert.Equal(t, ISNT{IS: true, SN: false, NT: true}, r)
	assert.True(t, r.Pass())
	assert.Equal(t, "PASS (1-0-1)", r.String())

	r = EvaluateISNT(Clearances{N: 8, I: 2, S: 5, T: 9})
	assert.Equal(t, ISNT{IS: false, SN: false, NT: false}, r)
	assert.False(t, r.Pass())
	assert.Equal(t, "FAIL (0-0-0)", r.String())
}

func TestDegenerateShape(t *testing.T) {
	e := NewEngine(ready(0.1), DefaultThresholds(), nil)
	_, err := e.ComputeShapes(context.Background(), circle(256, 256, 100), geometry.NewCircle(10, 10, 10, 10))
	require.ErrorIs(t, err, ErrDegenerateShape)
}

func TestKindTerminal(t *testing.T) {
	assert.False(t, KindEmpty.Terminal())
	assert.False(t, KindComputing.Terminal())
	for _, k := range []Kind{KindValid, KindCupLargerThanDisc, KindCupOutOfBounds, KindPredictorUnavailable, KindSegmentationUnavailable} {
		assert.True(t, k.Terminal(), k.String())
	}
	res := Result{Kind: KindSegmentationUnavailable}
	assert.False(t, res.HasRatio())
	assert.Equal(t, "segmentation unavailable", res.String())
}
