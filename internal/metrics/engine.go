package metrics

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"onh-grader/internal/predictor"
	"onh-grader/pkg/geometry"
)

// Kind is the outcome of an evaluation.
type Kind int

const (
	KindEmpty Kind = iota
	KindComputing
	KindValid
	KindCupLargerThanDisc
	KindCupOutOfBounds
	KindPredictorUnavailable
	KindSegmentationUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindEmpty:
		return "empty"
	case KindComputing:
		return "computing"
	case KindValid:
		return "valid"
	case KindCupLargerThanDisc:
		return "cup larger than disc"
	case KindCupOutOfBounds:
		return "cup out of bounds"
	case KindPredictorUnavailable:
		return "predictor unavailable"
	case KindSegmentationUnavailable:
		return "segmentation unavailable"
	default:
		return "unknown"
	}
}

// Terminal reports whether k ends an evaluation.
func (k Kind) Terminal() bool {
	return k >= KindValid
}

// Thresholds classify the ratio and the rate.
type Thresholds struct {
	// CDR passes strictly below this value.
	CDR float64 `json:"cdr"`
	// Rate passes at or below this value.
	Rate float64 `json:"rate"`
}

// DefaultThresholds returns the clinical defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{CDR: 0.65, Rate: 0.5}
}

// Result is one evaluation of a disc/cup pair. Ratio, rule and rate are
// only meaningful for the kinds that carry them.
type Result struct {
	Kind       Kind                    `json:"kind"`
	Clearances Clearances              `json:"clearances"`
	ISNT       ISNT                    `json:"isnt"`
	ISNTPass   bool                    `json:"isnt_pass"`
	CDR        float64                 `json:"cdr"`
	CDRPass    bool                    `json:"cdr_pass"`
	Features   predictor.FeatureVector `json:"features"`
	Rate       float64                 `json:"rate"`
	RatePass   bool                    `json:"rate_pass"`
}

// HasRatio reports whether CDR and ISNT were computed.
func (r Result) HasRatio() bool {
	return r.Kind == KindValid || r.Kind == KindPredictorUnavailable
}

// HasRate reports whether the detection rate was computed.
func (r Result) HasRate() bool {
	return r.Kind == KindValid
}

// RatePercent returns the detection rate as a percentage.
func (r Result) RatePercent() float64 {
	return r.Rate * 100
}

func (r Result) String() string {
	switch r.Kind {
	case KindValid:
		return fmt.Sprintf("ISNT %s, CDR %.3f, rate %.2f%%", r.ISNT, r.CDR, r.RatePercent())
	case KindPredictorUnavailable:
		return fmt.Sprintf("ISNT %s, CDR %.3f, rate unavailable", r.ISNT, r.CDR)
	case KindCupLargerThanDisc:
		return "Cup > Disc"
	case KindCupOutOfBounds:
		return "Cup is out"
	default:
		return r.Kind.String()
	}
}

// Engine evaluates disc/cup pairs. It never mutates its inputs and is safe
// for concurrent use when its predictor is.
type Engine struct {
	predictor  predictor.Predictor
	thresholds Thresholds
	logger     *slog.Logger
}

// NewEngine creates an engine. A nil predictor yields
// KindPredictorUnavailable for every geometrically valid pair.
func NewEngine(p predictor.Predictor, thresholds Thresholds, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{predictor: p, thresholds: thresholds, logger: logger}
}

// Thresholds returns the engine's classification thresholds.
func (e *Engine) Thresholds() Thresholds {
	return e.thresholds
}

// ComputeShapes measures two manual annotations and evaluates them.
func (e *Engine) ComputeShapes(ctx context.Context, disc, cup geometry.Shape) (Result, error) {
	dm, err := FromShape(disc)
	if err != nil {
		return Result{}, fmt.Errorf("disc: %w", err)
	}
	cm, err := FromShape(cup)
	if err != nil {
		return Result{}, fmt.Errorf("cup: %w", err)
	}
	return e.Compute(ctx, dm, cm), nil
}

// Compute evaluates a disc/cup pair.
func (e *Engine) Compute(ctx context.Context, disc, cup Measurement) Result {
	res := Result{Kind: KindComputing}

	if disc.Box.Width <= 0 || disc.Box.Height <= 0 {
		return Result{Kind: KindEmpty}
	}
	if disc.Diameter() < cup.Diameter() {
		res.Kind = KindCupLargerThanDisc
		return res
	}

	res.Clearances = ClearancesOf(disc, cup)
	if !res.Clearances.Inside() {
		res.Kind = KindCupOutOfBounds
		return res
	}

	res.ISNT = EvaluateISNT(res.Clearances)
	res.ISNTPass = res.ISNT.Pass()
	res.CDR = cup.Box.Height / disc.Box.Height
	res.CDRPass = res.CDR < e.thresholds.CDR
	res.Features = Features(disc, cup)

	rate, ok := e.predict(ctx, res.Features)
	if !ok {
		res.Kind = KindPredictorUnavailable
		return res
	}
	res.Rate = rate
	res.RatePass = rate <= e.thresholds.Rate
	res.Kind = KindValid
	return res
}

func (e *Engine) predict(ctx context.Context, fv predictor.FeatureVector) (float64, bool) {
	if e.predictor == nil || e.predictor.Status() != predictor.StatusReady {
		return 0, false
	}
	p, err := e.predictor.Predict(ctx, fv)
	if err != nil {
		e.logger.Warn("rate prediction failed", "error", err)
		return 0, false
	}
	if !p.Available() {
		return 0, false
	}
	rate := p.Rate()
	if math.IsNaN(rate) || rate < 0 || rate > 1 {
		e.logger.Warn("rate prediction out of range", "rate", rate)
		return 0, false
	}
	return rate, true
}
