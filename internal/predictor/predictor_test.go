package predictor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeModel(t *testing.T, path string, mf ModelFile) {
	t.Helper()
	data, err := json.Marshal(mf)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func TestPredictionAvailable(t *testing.T) {
	assert.False(t, UnavailablePrediction.Available())
	assert.False(t, Prediction{0.3, Unavailable}.Available())
	assert.False(t, Prediction{Unavailable, 0.7}.Available())
	assert.True(t, Prediction{0, 1}.Available())
}

func TestLinearModelLifecycle(t *testing.T) {
	m := NewLinearModel(nil)
	assert.Equal(t, StatusNotLoaded, m.Status())

	p, err := m.Predict(context.Background(), FeatureVector{})
	require.NoError(t, err)
	assert.Equal(t, UnavailablePrediction, p)

	err = m.Load(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
	assert.Equal(t, StatusLoadFailed, m.Status())

	p, err = m.Predict(context.Background(), FeatureVector{})
	require.NoError(t, err)
	assert.False(t, p.Available())
}

func TestLinearModelPredict(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.json")
	weights := make([]float64, NumFeatures)
	weights[CupH] = 4
	writeModel(t, path, ModelFile{Name: "vcdr", Weights: weights, Bias: -2})

	m, err := LoadLinearModel(path, nil)
	require.NoError(t, err)
	assert.Equal(t, StatusReady, m.Status())

	var fv FeatureVector
	fv[CupH] = 0.5 // z = 0
	p, err := m.Predict(context.Background(), fv)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, p.Rate(), 1e-12)
	assert.InDelta(t, 0.5, p[1], 1e-12)

	fv[CupH] = 1.0 // z = 2
	p, err = m.Predict(context.Background(), fv)
	require.NoError(t, err)
	assert.Greater(t, p.Rate(), 0.85)
	assert.LessOrEqual(t, p.Rate(), 1.0)
}

func TestLinearModelRejectsWrongWidth(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.json")
	writeModel(t, path, ModelFile{Weights: []float64{1, 2, 3}})

	_, err := LoadLinearModel(path, nil)
	require.Error(t, err)
}

func TestHTTPClient(t *testing.T) {
	var got predictRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(predictResponse{Prediction: []float64{0.25, 0.75}})
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL)
	assert.Equal(t, StatusReady, c.Status())

	var fv FeatureVector
	fv[DiscW] = 1
	p, err := c.Predict(context.Background(), fv)
	require.NoError(t, err)
	assert.Equal(t, Prediction{0.25, 0.75}, p)
	require.Len(t, got.Features, NumFeatures)
	assert.Equal(t, 1.0, got.Features[DiscW])
}

func TestHTTPClientFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	p, err := NewHTTPClient(srv.URL).Predict(context.Background(), FeatureVector{})
	require.Error(t, err)
	assert.False(t, p.Available())

	assert.Equal(t, StatusNotLoaded, NewHTTPClient("").Status())
}

func TestWatcherReloadsOnChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.json")
	writeModel(t, path, ModelFile{Weights: make([]float64, NumFeatures)})

	m, err := LoadLinearModel(path, nil)
	require.NoError(t, err)

	w := NewWatcher(m, path, 10*time.Millisecond, nil)
	reloaded := make(chan Status, 1)
	w.OnReload(func(s Status) {
		select {
		case reloaded <- s:
		default:
		}
	})
	w.Start()
	defer w.Stop()

	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o644))
	future := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(path, future, future))

	select {
	case s := <-reloaded:
		assert.Equal(t, StatusLoadFailed, s)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not reload")
	}
	assert.Equal(t, StatusLoadFailed, m.Status())
}
