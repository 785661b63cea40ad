package onh

import (
	"errors"
	"path/filepath"
	"strings"
)

// ErrUnsupportedFormat means the file extension is not a known image format.
var ErrUnsupportedFormat = errors.New("unsupported image format")

// SupportedFormats lists the case image extensions.
var SupportedFormats = []string{".jpg", ".jpeg", ".png", ".tif", ".tiff"}

const (
	cropDir    = "crop"
	cropSuffix = "_mod"
	maskDir    = "masks"
	maskExt    = ".png"
)

// CropPath returns where the crop artifact of an image is written:
// cases/V0001.jpg -> cases/crop/V0001_mod.jpg.
func CropPath(imagePath string) string {
	dir, file := filepath.Split(imagePath)
	ext := filepath.Ext(file)
	base := strings.TrimSuffix(file, ext)
	return filepath.Join(dir, cropDir, base+cropSuffix+ext)
}

// MaskPath returns where the segmentation mask of an image is expected:
// cases/V0001.jpg -> cases/masks/V0001.png.
func MaskPath(imagePath string) string {
	dir, file := filepath.Split(imagePath)
	base := strings.TrimSuffix(file, filepath.Ext(file))
	return filepath.Join(dir, maskDir, base+maskExt)
}

// IsCropArtifact reports whether path names a crop artifact rather than a
// case image.
func IsCropArtifact(path string) bool {
	file := filepath.Base(path)
	base := strings.TrimSuffix(file, filepath.Ext(file))
	return strings.HasSuffix(base, cropSuffix)
}

// IsSupportedFormat reports whether path has a case image extension.
func IsSupportedFormat(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, format := range SupportedFormats {
		if ext == format {
			return true
		}
	}
	return false
}
