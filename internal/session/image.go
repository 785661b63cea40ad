package session

import (
	"context"
	"fmt"
	"image"

	"onh-grader/internal/metrics"
	"onh-grader/internal/onh"
	"onh-grader/internal/task"
	"onh-grader/internal/view"
	"onh-grader/pkg/geometry"
)

// LoadImage starts a new case. Crop artifacts are rejected. Layers, region
// and mask of the previous case are dropped.
func (s *State) LoadImage(path string) error {
	if onh.IsCropArtifact(path) {
		return fmt.Errorf("%w: %s", ErrCropArtifact, path)
	}
	if !onh.IsSupportedFormat(path) {
		return fmt.Errorf("%w: %s", onh.ErrUnsupportedFormat, path)
	}
	size, err := onh.ImageSize(path)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.imagePath = path
	s.imageSize = size
	s.region = geometry.Region{}
	s.hasRegion = false
	s.cropPath = ""
	s.cropSize = image.Point{}
	s.maskPath = ""
	s.boundaries = nil
	s.maskErr = nil
	s.layers = nil
	s.current = -1
	s.grabbed = false
	s.result = metrics.Result{Kind: metrics.KindEmpty}
	s.viewport = view.Viewport{
		Zoom:           view.ZoomedOut,
		ZoomedOutWidth: size.X,
	}
	s.refitLocked()
	s.mu.Unlock()

	s.logger.Info("image loaded", "path", path, "width", size.X, "height", size.Y)
	s.Emit(EventImageLoaded, path)
	return nil
}

type locateOutcome struct {
	region   geometry.Region
	cropPath string
}

// RequestLocate dispatches ONH localization in the background. It returns
// false when the region is already known or a locate for this image is in
// flight. Completion emits EventLocated or EventLocateFailed.
func (s *State) RequestLocate() (*task.Task, bool, error) {
	s.mu.RLock()
	path, done := s.imagePath, s.hasRegion
	s.mu.RUnlock()
	if path == "" {
		return nil, false, ErrNoImage
	}
	if done {
		return nil, false, nil
	}
	if s.locator == nil {
		return nil, false, fmt.Errorf("no locator configured")
	}

	t, started := s.runner.Submit(task.Key{Image: path, Op: task.OpLocate}, func(ctx context.Context) (any, error) {
		region, err := s.locator.Locate(path)
		if err != nil {
			return nil, err
		}
		cropPath := onh.CropPath(path)
		if !onh.CropExists(path) {
			if cropPath, err = onh.WriteCrop(path, region); err != nil {
				return nil, err
			}
		}
		return locateOutcome{region: region, cropPath: cropPath}, nil
	})
	return t, started, nil
}

func (s *State) finishLocate(t *task.Task) {
	v, err := t.Result()

	s.mu.Lock()
	if s.imagePath != t.Key().Image {
		s.mu.Unlock()
		return
	}
	if err != nil {
		s.mu.Unlock()
		s.logger.Warn("ONH localization failed", "path", t.Key().Image, "error", err)
		s.Emit(EventLocateFailed, err)
		return
	}
	out := v.(locateOutcome)
	s.region = out.region
	s.hasRegion = true
	s.cropPath = out.cropPath
	s.cropSize = image.Pt(out.region.Width(), out.region.Height())
	if size, err := onh.CropSize(t.Key().Image); err == nil {
		s.cropSize = size
	}
	s.viewport.Region = out.region
	s.viewport.ZoomedInWidth = s.cropSize.X
	s.viewport.Zoom = view.ZoomedIn
	s.refitLocked()
	s.mu.Unlock()

	s.Emit(EventLocated, out.region)
	s.Emit(EventViewChanged, view.ZoomedIn)
	_ = s.Respawn()
}

// ToggleZoom switches between the full photograph and the crop. Zooming in
// before the region is known dispatches localization instead.
func (s *State) ToggleZoom() error {
	s.mu.Lock()
	if s.imagePath == "" {
		s.mu.Unlock()
		return ErrNoImage
	}
	if s.viewport.Zoom == view.ZoomedIn {
		s.viewport.Zoom = view.ZoomedOut
		s.refitLocked()
		s.mu.Unlock()
		s.Emit(EventViewChanged, view.ZoomedOut)
		return nil
	}
	if !s.hasRegion {
		s.mu.Unlock()
		_, _, err := s.RequestLocate()
		return err
	}
	s.viewport.Zoom = view.ZoomedIn
	s.refitLocked()
	s.mu.Unlock()
	s.Emit(EventViewChanged, view.ZoomedIn)
	return nil
}

// SetDisplay records the size of the display container and fits the current
// bitmap into it. The fit is redone on every zoom change and image load, so a
// host only calls this when the container itself is resized.
func (s *State) SetDisplay(boxW, boxH int) {
	s.mu.Lock()
	s.box = image.Pt(boxW, boxH)
	s.refitLocked()
	vp := s.viewport
	s.mu.Unlock()
	s.Emit(EventViewChanged, vp.Zoom)
}

// refitLocked sets the viewport's display width and letterbox offset for the
// bitmap shown in the current zoom state. Callers hold s.mu.
func (s *State) refitLocked() {
	if s.box.X <= 0 || s.box.Y <= 0 {
		return
	}
	size := s.imageSize
	if s.viewport.Zoom == view.ZoomedIn && s.hasRegion {
		size = s.cropSize
	}
	s.viewport.DisplayWidth, s.viewport.Offset = view.Fit(s.box.X, s.box.Y, size.X, size.Y)
}
