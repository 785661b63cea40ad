package predictor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"os"
	"sync"

	"gonum.org/v1/gonum/mat"
)

// ModelFile is the JSON layout of a linear model:
// rate = sigmoid(weights . features + bias).
type ModelFile struct {
	Name    string    `json:"name,omitempty"`
	Weights []float64 `json:"weights"`
	Bias    float64   `json:"bias"`
}

// LinearModel is a logistic model over the feature vector.
type LinearModel struct {
	mu      sync.RWMutex
	status  Status
	path    string
	name    string
	weights *mat.VecDense
	bias    float64
	logger  *slog.Logger
}

// NewLinearModel creates a model in the NotLoaded state.
func NewLinearModel(logger *slog.Logger) *LinearModel {
	if logger == nil {
		logger = slog.Default()
	}
	return &LinearModel{status: StatusNotLoaded, logger: logger}
}

// LoadLinearModel creates a model and loads it from path. The returned model
// is usable even when err is non-nil; it then answers with the sentinel.
func LoadLinearModel(path string, logger *slog.Logger) (*LinearModel, error) {
	m := NewLinearModel(logger)
	return m, m.Load(path)
}

// Load reads weights from path. On failure the model moves to LoadFailed and
// keeps no previous weights.
func (m *LinearModel) Load(path string) error {
	mf, err := readModelFile(path)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.path = path
	if err != nil {
		m.status = StatusLoadFailed
		m.weights = nil
		m.logger.Error("predictor model load failed", "path", path, "error", err)
		return err
	}
	m.name = mf.Name
	m.weights = mat.NewVecDense(NumFeatures, mf.Weights)
	m.bias = mf.Bias
	m.status = StatusReady
	m.logger.Info("predictor model loaded", "path", path, "name", mf.Name)
	return nil
}

func readModelFile(path string) (ModelFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ModelFile{}, fmt.Errorf("model %q is not found: %w", path, err)
	}
	var mf ModelFile
	if err := json.Unmarshal(data, &mf); err != nil {
		return ModelFile{}, fmt.Errorf("failed to parse model %q: %w", path, err)
	}
	if len(mf.Weights) != NumFeatures {
		return ModelFile{}, fmt.Errorf("model %q has %d weights, want %d", path, len(mf.Weights), NumFeatures)
	}
	return mf, nil
}

// Path returns the last path passed to Load.
func (m *LinearModel) Path() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.path
}

// Status returns the model lifecycle state.
func (m *LinearModel) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// Predict returns (rate, 1-rate), or UnavailablePrediction when no model is
// loaded.
func (m *LinearModel) Predict(_ context.Context, features FeatureVector) (Prediction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.status != StatusReady || m.weights == nil {
		return UnavailablePrediction, nil
	}

	x := mat.NewVecDense(NumFeatures, features.Slice())
	z := mat.Dot(m.weights, x) + m.bias
	rate := 1 / (1 + math.Exp(-z))
	return Prediction{rate, 1 - rate}, nil
}
