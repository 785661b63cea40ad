// Package report writes the per-case JSON grading report.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"onh-grader/internal/metrics"
	"onh-grader/pkg/geometry"
)

// FormatVersion is bumped when the report layout changes.
const FormatVersion = 1

// Ext is the report file extension.
const Ext = ".onh.json"

// Case is the grading report of one fundus image (.onh.json).
type Case struct {
	Version  int       `json:"version"`
	Created  time.Time `json:"created"`
	Modified time.Time `json:"modified"`

	// Paths are relative to the report file
	ImagePath string `json:"image"`
	CropPath  string `json:"crop,omitempty"`
	MaskPath  string `json:"mask,omitempty"`

	Region *geometry.Region `json:"region,omitempty"`
	Error  string           `json:"error,omitempty"`

	Layers []Layer `json:"layers,omitempty"`
}

// Layer is the evaluation of one annotation layer.
type Layer struct {
	Name    string               `json:"name"`
	Kind    string               `json:"kind"`
	Disc    *metrics.Measurement `json:"disc,omitempty"`
	Cup     *metrics.Measurement `json:"cup,omitempty"`
	Summary string               `json:"summary"`
	Result  metrics.Result       `json:"metrics"`
}

// New creates an empty report.
func New() *Case {
	now := time.Now()
	return &Case{
		Version:  FormatVersion,
		Created:  now,
		Modified: now,
	}
}

// PathFor returns the default report path of an image:
// cases/V0001.jpg -> cases/V0001.onh.json.
func PathFor(imagePath string) string {
	return strings.TrimSuffix(imagePath, filepath.Ext(imagePath)) + Ext
}

// Load loads a report from a .onh.json file.
func Load(path string) (*Case, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var c Case
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse report %s: %w", path, err)
	}
	if c.Version > FormatVersion {
		return nil, fmt.Errorf("report %s has version %d, newest supported is %d", path, c.Version, FormatVersion)
	}
	return &c, nil
}

// Save saves the report to a file.
func (c *Case) Save(path string) error {
	c.Modified = time.Now()

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// SetImage stores image, crop and mask paths relative to the report.
func (c *Case) SetImage(reportPath, imagePath, cropPath, maskPath string) {
	c.ImagePath = relTo(reportPath, imagePath)
	c.CropPath = relTo(reportPath, cropPath)
	c.MaskPath = relTo(reportPath, maskPath)
	c.Modified = time.Now()
}

// Image returns the absolute path to the graded image.
func (c *Case) Image(reportPath string) string {
	return absFrom(reportPath, c.ImagePath)
}

// AddLayer appends a layer evaluation.
func (c *Case) AddLayer(name string, kind geometry.LayerKind, disc, cup *metrics.Measurement, res metrics.Result) {
	c.Layers = append(c.Layers, Layer{
		Name:    name,
		Kind:    kind.String(),
		Disc:    disc,
		Cup:     cup,
		Summary: res.String(),
		Result:  res,
	})
}

func relTo(reportPath, p string) string {
	if p == "" {
		return ""
	}
	rel, err := filepath.Rel(filepath.Dir(reportPath), p)
	if err != nil {
		return p
	}
	return rel
}

func absFrom(reportPath, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(filepath.Dir(reportPath), p)
}
