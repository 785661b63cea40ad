package onh

import (
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"

	"onh-grader/pkg/geometry"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/tiff"
)

// WriteCrop cuts region out of the image at imagePath and saves it at
// CropPath(imagePath). It returns the written path.
func WriteCrop(imagePath string, region geometry.Region) (string, error) {
	src, err := imaging.Open(imagePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, imagePath)
		}
		return "", fmt.Errorf("%w: %s: %v", ErrNotFound, imagePath, err)
	}
	b := src.Bounds()
	if !region.Valid(b.Dx(), b.Dy()) {
		return "", fmt.Errorf("region %s outside %dx%d image", region, b.Dx(), b.Dy())
	}

	cropped := imaging.Crop(src, region.Rect().Add(b.Min))

	out := CropPath(imagePath)
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return "", fmt.Errorf("failed to create crop directory: %w", err)
	}
	if err := imaging.Save(cropped, out, imaging.JPEGQuality(95)); err != nil {
		return "", fmt.Errorf("failed to save crop: %w", err)
	}
	return out, nil
}

// CropExists reports whether the crop artifact of an image is already on disk.
func CropExists(imagePath string) bool {
	_, err := os.Stat(CropPath(imagePath))
	return err == nil
}

// CropSize returns the pixel size of an existing crop artifact, used as the
// zoomed-in native width.
func CropSize(imagePath string) (image.Point, error) {
	return imageSize(CropPath(imagePath))
}

// ImageSize returns the pixel size of an image file without decoding pixels.
func ImageSize(path string) (image.Point, error) {
	return imageSize(path)
}

func imageSize(path string) (image.Point, error) {
	f, err := os.Open(path)
	if err != nil {
		return image.Point{}, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return image.Point{}, fmt.Errorf("%w: %s: %v", ErrNotFound, path, err)
	}
	return image.Point{X: cfg.Width, Y: cfg.Height}, nil
}
