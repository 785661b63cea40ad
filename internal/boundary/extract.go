// Package boundary derives disc and cup bounding boxes and areas from a
// labeled segmentation mask.
//
// Masks encode classes by brightness: background 255, disc 128, cup 1.
package boundary

import (
	"errors"
	"fmt"
	"image"

	"onh-grader/pkg/geometry"

	"gocv.io/x/gocv"
)

var (
	// ErrNoRegion means a threshold pass found only the image boundary contour.
	ErrNoRegion = errors.New("no region in mask")
	// ErrNotFound means the mask file is missing or cannot be decoded.
	ErrNotFound = errors.New("mask not found")
)

// Default cutoffs. Pixels brighter than CupCutoff are background or disc,
// which leaves the cup as the innermost hole; pixels brighter than
// DiscCutoff are background only.
const (
	DefaultCupCutoff  = 127
	DefaultDiscCutoff = 128
)

// Region is the bounding box and pixel area of one class.
type Region struct {
	Box  image.Rectangle `json:"box"`
	Area float64         `json:"area"`
}

// Bounds converts the region box to a geometry.Box.
func (r Region) Bounds() geometry.Box {
	return geometry.BoxFromRect(r.Box)
}

// Result holds both classes extracted from one mask.
type Result struct {
	Cup  Region `json:"cup"`
	Disc Region `json:"disc"`
}

// Extractor runs the two threshold passes.
type Extractor struct {
	CupCutoff  float32
	DiscCutoff float32
}

// NewExtractor returns an extractor with the default cutoffs.
func NewExtractor() Extractor {
	return Extractor{CupCutoff: DefaultCupCutoff, DiscCutoff: DefaultDiscCutoff}
}

// ExtractFile reads a mask from disk and extracts it.
func (e Extractor) ExtractFile(path string) (Result, error) {
	mask := gocv.IMRead(path, gocv.IMReadGrayScale)
	defer mask.Close()
	if mask.Empty() {
		return Result{}, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	return e.Extract(mask)
}

// Extract returns the cup and disc regions of a mask. Color masks are
// converted to grayscale first.
func (e Extractor) Extract(mask gocv.Mat) (Result, error) {
	if mask.Empty() {
		return Result{}, fmt.Errorf("empty mask")
	}

	gray := gocv.NewMat()
	defer gray.Close()
	switch mask.Channels() {
	case 1:
		mask.CopyTo(&gray)
	case 4:
		gocv.CvtColor(mask, &gray, gocv.ColorBGRAToGray)
	default:
		gocv.CvtColor(mask, &gray, gocv.ColorBGRToGray)
	}

	cup, err := lastContour(gray, e.CupCutoff)
	if err != nil {
		return Result{}, fmt.Errorf("cup: %w", err)
	}
	disc, err := lastContour(gray, e.DiscCutoff)
	if err != nil {
		return Result{}, fmt.Errorf("disc: %w", err)
	}
	return Result{Cup: cup, Disc: disc}, nil
}

// lastContour thresholds gray at cutoff and returns the last contour of the
// full hierarchy. The first contour is always the outer image boundary.
func lastContour(gray gocv.Mat, cutoff float32) (Region, error) {
	binary := gocv.NewMat()
	defer binary.Close()
	gocv.Threshold(gray, &binary, cutoff, 255, gocv.ThresholdBinary)

	contours := gocv.FindContours(binary, gocv.RetrievalTree, gocv.ChainApproxNone)
	defer contours.Close()
	if contours.Size() < 2 {
		return Region{}, fmt.Errorf("%w: %d contours at cutoff %.0f", ErrNoRegion, contours.Size(), cutoff)
	}

	last := contours.At(contours.Size() - 1)
	return Region{
		Box:  gocv.BoundingRect(last),
		Area: gocv.ContourArea(last),
	}, nil
}
