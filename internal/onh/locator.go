// Package onh locates the optic nerve head in a fundus photograph and derives
// the fixed-size crop region around it.
package onh

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"sort"
	"time"

	"onh-grader/pkg/geometry"

	"gocv.io/x/gocv"
)

var (
	// ErrNotFound means the image file is missing or cannot be decoded.
	ErrNotFound = errors.New("image not found")
	// ErrNoONH means the threshold search reached its floor without a blob.
	ErrNoONH = errors.New("no optic nerve head found")
)

// Locator runs the threshold search.
type Locator struct {
	params Params
	logger *slog.Logger
}

// NewLocator creates a locator. A nil logger uses slog.Default().
func NewLocator(params Params, logger *slog.Logger) *Locator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Locator{params: params.normalized(), logger: logger}
}

// Params returns the effective parameters.
func (l *Locator) Params() Params {
	return l.params
}

// Locate reads the image at path and returns its crop region.
func (l *Locator) Locate(path string) (geometry.Region, error) {
	if _, err := os.Stat(path); err != nil {
		return geometry.Region{}, fmt.Errorf("%w: %s: %v", ErrNotFound, path, err)
	}
	mat := gocv.IMRead(path, gocv.IMReadColor)
	defer mat.Close()
	if mat.Empty() {
		return geometry.Region{}, fmt.Errorf("%w: %s: cannot decode", ErrNotFound, path)
	}

	start := time.Now()
	region, err := l.LocateMat(mat)
	if err != nil {
		return geometry.Region{}, fmt.Errorf("locate %s: %w", path, err)
	}
	l.logger.Info("onh located",
		"image", path,
		"region", region.String(),
		"elapsed", time.Since(start))
	return region, nil
}

// LocateMat runs the search on a BGR (or grayscale) image.
func (l *Locator) LocateMat(src gocv.Mat) (geometry.Region, error) {
	if src.Empty() {
		return geometry.Region{}, fmt.Errorf("%w: empty image", ErrNotFound)
	}
	p := l.params

	gray := gocv.NewMat()
	defer gray.Close()
	if src.Channels() == 1 {
		src.CopyTo(&gray)
	} else {
		gocv.CvtColor(src, &gray, gocv.ColorBGRToGray)
	}

	median := gocv.NewMat()
	defer median.Close()
	gocv.MedianBlur(gray, &median, p.MedianKernel)

	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Point{3, 3})
	defer kernel.Close()

	binary := gocv.NewMat()
	defer binary.Close()

	for threshold := p.StartThreshold; threshold >= p.ThresholdFloor; threshold -= p.ThresholdStep {
		gocv.Threshold(median, &binary, float32(threshold), 255, gocv.ThresholdBinary)

		// Erode removes speckle, the longer dilation reconnects the main blob.
		for i := 0; i < p.ErodeIter; i++ {
			gocv.Erode(binary, &binary, kernel)
		}
		for i := 0; i < p.DilateIter; i++ {
			gocv.Dilate(binary, &binary, kernel)
		}

		center, ok := largestBlobCenter(binary)
		if !ok {
			l.logger.Debug("no blob at threshold", "threshold", threshold)
			continue
		}

		region := cropRegion(center, p.CropSize, src.Cols(), src.Rows())
		l.logger.Debug("blob found",
			"threshold", threshold,
			"center", center.String(),
			"region", region.String())
		return region, nil
	}

	return geometry.Region{}, fmt.Errorf("%w: threshold floor %d reached", ErrNoONH, p.ThresholdFloor)
}

// largestBlobCenter keeps the connected component with the most pixels,
// finds its external contours and returns the bounding-box center of the
// leftmost one.
func largestBlobCenter(binary gocv.Mat) (geometry.Point, bool) {
	labels := gocv.NewMat()
	defer labels.Close()
	stats := gocv.NewMat()
	defer stats.Close()
	centroids := gocv.NewMat()
	defer centroids.Close()

	n := gocv.ConnectedComponentsWithStats(binary, &labels, &stats, &centroids)
	best, bestArea := 0, 0
	for label := 1; label < n; label++ {
		area := int(stats.GetIntAt(label, int(gocv.CC_STAT_AREA)))
		if area > bestArea {
			best, bestArea = label, area
		}
	}
	if best == 0 {
		return geometry.Point{}, false
	}

	mask := gocv.NewMat()
	defer mask.Close()
	value := gocv.NewScalar(float64(best), 0, 0, 0)
	gocv.InRangeWithScalar(labels, value, value, &mask)

	contours := gocv.FindContours(mask, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()
	if contours.Size() == 0 {
		return geometry.Point{}, false
	}

	rects := make([]image.Rectangle, contours.Size())
	for i := 0; i < contours.Size(); i++ {
		rects[i] = gocv.BoundingRect(contours.At(i))
	}
	sort.SliceStable(rects, func(i, j int) bool {
		return rects[i].Min.X < rects[j].Min.X
	})

	r := rects[0]
	return geometry.Point{
		X: roundHalf(r.Min.X, r.Dx()),
		Y: roundHalf(r.Min.Y, r.Dy()),
	}, true
}

// roundHalf returns round(origin + size/2) without going through floats.
func roundHalf(origin, size int) int {
	return origin + (size+1)/2
}

// cropRegion builds a size x size box centered on c and shifts it back inside
// the image when it crosses an edge, keeping its size. When the image is
// smaller than the box on an axis the box is truncated to the full axis.
func cropRegion(c geometry.Point, size, width, height int) geometry.Region {
	x0, x1 := clampSpan(c.X, size, width)
	y0, y1 := clampSpan(c.Y, size, height)
	return geometry.Region{X0: x0, Y0: y0, X1: x1, Y1: y1}
}

func clampSpan(center, size, limit int) (int, int) {
	lo := center - size/2
	hi := lo + size
	if lo < 0 {
		hi -= lo
		lo = 0
	}
	if hi > limit {
		lo -= hi - limit
		hi = limit
	}
	if lo < 0 {
		lo = 0
	}
	return lo, hi
}
