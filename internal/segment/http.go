package segment

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/disintegration/imaging"

	"onh-grader/internal/onh"
)

// HTTPService uploads the image to a remote segmentation service and stores
// the returned mask at the mask path.
type HTTPService struct {
	endpoint string
	client   *http.Client
	logger   *slog.Logger
}

// NewHTTPService creates a service posting to endpoint.
func NewHTTPService(endpoint string, logger *slog.Logger) *HTTPService {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPService{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 2 * time.Minute},
		logger:   logger,
	}
}

// Segment posts the raw image bytes and expects an image in the response.
// An existing mask is returned without contacting the service.
func (s *HTTPService) Segment(ctx context.Context, imagePath string) (string, error) {
	if p, ok := Existing(imagePath); ok {
		return p, nil
	}
	if s.endpoint == "" {
		return "", fmt.Errorf("%w: no segmentation service configured", ErrNoMask)
	}

	data, err := os.ReadFile(imagePath)
	if err != nil {
		return "", fmt.Errorf("failed to read image: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to create segmentation request: %w", err)
	}
	req.Header.Set("Content-Type", http.DetectContentType(data))
	req.Header.Set("X-Image-Name", filepath.Base(imagePath))

	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoMask, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: segmentation service returned status %d", ErrNoMask, resp.StatusCode)
	}

	mask, err := imaging.Decode(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: failed to decode mask: %v", ErrNoMask, err)
	}

	out := onh.MaskPath(imagePath)
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return "", fmt.Errorf("failed to create mask directory: %w", err)
	}
	if err := imaging.Save(imaging.Grayscale(mask), out); err != nil {
		return "", fmt.Errorf("failed to save mask: %w", err)
	}

	s.logger.Info("segmentation complete",
		"image", imagePath,
		"mask", out,
		"elapsed", time.Since(start))
	return out, nil
}
