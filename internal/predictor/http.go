package predictor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// HTTPClient asks a remote model service for predictions.
type HTTPClient struct {
	endpoint string
	client   *http.Client
}

// NewHTTPClient creates a client posting to endpoint.
func NewHTTPClient(endpoint string) *HTTPClient {
	return &HTTPClient{
		endpoint: endpoint,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type predictRequest struct {
	Features []float64 `json:"features"`
}

type predictResponse struct {
	Prediction []float64 `json:"prediction"`
}

// Status is Ready when an endpoint is configured. Reachability is only known
// per request.
func (c *HTTPClient) Status() Status {
	if c.endpoint == "" {
		return StatusNotLoaded
	}
	return StatusReady
}

// Predict posts the feature vector and decodes the prediction pair.
func (c *HTTPClient) Predict(ctx context.Context, features FeatureVector) (Prediction, error) {
	if c.endpoint == "" {
		return UnavailablePrediction, nil
	}

	body, err := json.Marshal(predictRequest{Features: features.Slice()})
	if err != nil {
		return UnavailablePrediction, fmt.Errorf("failed to marshal prediction request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewBuffer(body))
	if err != nil {
		return UnavailablePrediction, fmt.Errorf("failed to create prediction request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return UnavailablePrediction, fmt.Errorf("prediction service request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return UnavailablePrediction, fmt.Errorf("prediction service returned status: %d", resp.StatusCode)
	}

	var pr predictResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return UnavailablePrediction, fmt.Errorf("failed to decode prediction response: %w", err)
	}
	if len(pr.Prediction) == 0 {
		return UnavailablePrediction, fmt.Errorf("prediction service returned no values")
	}

	p := Prediction{pr.Prediction[0], 1 - pr.Prediction[0]}
	if len(pr.Prediction) > 1 {
		p[1] = pr.Prediction[1]
	}
	return p, nil
}
