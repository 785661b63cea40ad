// Package config provides the JSON configuration file of the grader.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"onh-grader/internal/metrics"
	"onh-grader/internal/onh"
)

const (
	appDir     = "onh-grader"
	configFile = "config.json"
)

// Config holds runtime configuration. Fields may be loaded from a JSON file
// and overridden by command-line flags.
type Config struct {
	LogLevel  string `json:"log_level"`
	LogFormat string `json:"log_format"`

	// ONH localization
	StartThreshold int `json:"start_threshold"`
	ThresholdStep  int `json:"threshold_step"`
	ThresholdFloor int `json:"threshold_floor"`
	MedianKernel   int `json:"median_kernel"`
	ErodeIter      int `json:"erode_iter"`
	DilateIter     int `json:"dilate_iter"`
	CropSize       int `json:"crop_size"`

	// Mask cutoffs
	CupCutoff  float32 `json:"cup_cutoff"`
	DiscCutoff float32 `json:"disc_cutoff"`

	// Classification
	CDRThreshold  float64 `json:"cdr_threshold"`
	RateThreshold float64 `json:"rate_threshold"`

	// Annotation
	GrabArea            int `json:"grab_area"`
	VisibilityThreshold int `json:"visibility_threshold"`
	DiscRadius          int `json:"disc_radius"`
	CupRadius           int `json:"cup_radius"`
	DiscAlpha           int `json:"disc_alpha"`
	CupAlpha            int `json:"cup_alpha"`

	// External services
	ModelPath       string `json:"model_path"`
	WatchModel      bool   `json:"watch_model"`
	PredictorURL    string `json:"predictor_url"`
	SegmentationURL string `json:"segmentation_url"`
	DatasetDSN      string `json:"dataset_dsn"`
}

// DefaultConfig returns a Config populated with standard defaults.
func DefaultConfig() *Config {
	p := onh.DefaultParams()
	th := metrics.DefaultThresholds()
	return &Config{
		LogLevel:            "info",
		LogFormat:           "text",
		StartThreshold:      p.StartThreshold,
		ThresholdStep:       p.ThresholdStep,
		ThresholdFloor:      p.ThresholdFloor,
		MedianKernel:        p.MedianKernel,
		ErodeIter:           p.ErodeIter,
		DilateIter:          p.DilateIter,
		CropSize:            p.CropSize,
		CupCutoff:           127,
		DiscCutoff:          128,
		CDRThreshold:        th.CDR,
		RateThreshold:       th.Rate,
		GrabArea:            8,
		VisibilityThreshold: 6,
		DiscRadius:          100,
		CupRadius:           60,
		DiscAlpha:           90,
		CupAlpha:            100,
	}
}

// Validate clamps/normalizes values to safe ranges.
func (c *Config) Validate() error {
	d := DefaultConfig()
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
		c.LogLevel = strings.ToLower(c.LogLevel)
	default:
		c.LogLevel = d.LogLevel
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		c.LogFormat = d.LogFormat
	}
	if c.StartThreshold <= 0 || c.StartThreshold > 255 {
		c.StartThreshold = d.StartThreshold
	}
	if c.ThresholdStep <= 0 {
		c.ThresholdStep = d.ThresholdStep
	}
	if c.ThresholdFloor < 0 || c.ThresholdFloor > c.StartThreshold {
		c.ThresholdFloor = d.ThresholdFloor
	}
	if c.MedianKernel < 3 || c.MedianKernel%2 == 0 {
		c.MedianKernel = d.MedianKernel
	}
	if c.ErodeIter < 0 {
		c.ErodeIter = d.ErodeIter
	}
	if c.DilateIter < 0 {
		c.DilateIter = d.DilateIter
	}
	if c.CropSize <= 0 {
		c.CropSize = d.CropSize
	}
	if c.CupCutoff <= 0 || c.CupCutoff >= 255 {
		c.CupCutoff = d.CupCutoff
	}
	if c.DiscCutoff <= c.CupCutoff || c.DiscCutoff >= 255 {
		c.DiscCutoff = c.CupCutoff + 1
	}
	if c.CDRThreshold <= 0 || c.CDRThreshold > 1 {
		c.CDRThreshold = d.CDRThreshold
	}
	if c.RateThreshold <= 0 || c.RateThreshold > 1 {
		c.RateThreshold = d.RateThreshold
	}
	if c.GrabArea <= 0 {
		c.GrabArea = d.GrabArea
	}
	if c.VisibilityThreshold < 0 || c.VisibilityThreshold > 100 {
		c.VisibilityThreshold = d.VisibilityThreshold
	}
	if c.DiscRadius <= 0 {
		c.DiscRadius = d.DiscRadius
	}
	if c.CupRadius <= 0 || c.CupRadius >= c.DiscRadius {
		c.CupRadius = c.DiscRadius * 3 / 5
	}
	c.DiscAlpha = clampAlpha(c.DiscAlpha)
	c.CupAlpha = clampAlpha(c.CupAlpha)
	return nil
}

func clampAlpha(a int) int {
	return max(0, min(100, a))
}

// ONHParams returns the localization parameters.
func (c *Config) ONHParams() onh.Params {
	return onh.Params{
		StartThreshold: c.StartThreshold,
		ThresholdStep:  c.ThresholdStep,
		ThresholdFloor: c.ThresholdFloor,
		MedianKernel:   c.MedianKernel,
		ErodeIter:      c.ErodeIter,
		DilateIter:     c.DilateIter,
		CropSize:       c.CropSize,
	}
}

// Thresholds returns the metric classification thresholds.
func (c *Config) Thresholds() metrics.Thresholds {
	return metrics.Thresholds{CDR: c.CDRThreshold, Rate: c.RateThreshold}
}

// DefaultPath returns <UserConfigDir>/onh-grader/config.json.
func DefaultPath() string {
	configDir, err := os.UserConfigDir()
	if err != nil {
		configDir = filepath.Join(os.Getenv("HOME"), ".config")
	}
	return filepath.Join(configDir, appDir, configFile)
}

// Load attempts to read configuration from the given JSON file path. If the
// file does not exist it returns DefaultConfig(). On JSON error it returns
// defaults with the error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to open config: %w", err)
	}
	defer f.Close()

	if err := json.NewDecoder(f).Decode(cfg); err != nil {
		return DefaultConfig(), fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	_ = cfg.Validate()
	return cfg, nil
}

// Save writes the configuration to the given path in JSON format.
func (c *Config) Save(path string) error {
	_ = c.Validate()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(c)
}
