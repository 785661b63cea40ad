// Package segment produces disc/cup label masks for case images.
//
// A mask is a grayscale PNG stored at onh.MaskPath(image): background 255,
// disc 128, cup 1.
package segment

import (
	"context"
	"errors"
	"fmt"
	"os"

	"onh-grader/internal/onh"
)

// ErrNoMask is returned when no mask exists or could be produced.
var ErrNoMask = errors.New("no segmentation mask")

// Service turns a case image into a mask and returns the mask path.
type Service interface {
	Segment(ctx context.Context, imagePath string) (string, error)
}

// Existing returns the mask path of imagePath if the file exists.
func Existing(imagePath string) (string, bool) {
	p := onh.MaskPath(imagePath)
	info, err := os.Stat(p)
	if err != nil || info.IsDir() {
		return "", false
	}
	return p, true
}

// FileService only looks up masks produced out of band.
type FileService struct{}

// Segment returns the existing mask path or ErrNoMask.
func (FileService) Segment(_ context.Context, imagePath string) (string, error) {
	if p, ok := Existing(imagePath); ok {
		return p, nil
	}
	return "", fmt.Errorf("%w: %s", ErrNoMask, onh.MaskPath(imagePath))
}
