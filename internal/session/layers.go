package session

import (
	"context"
	"errors"
	"fmt"

	"onh-grader/internal/boundary"
	"onh-grader/internal/metrics"
	"onh-grader/internal/segment"
	"onh-grader/internal/task"
	"onh-grader/pkg/geometry"
)

// AddLayer appends a layer and makes it current. A manual layer starts with
// two inactive circles, placed at once if the region is known. An automatic
// layer loads or requests the mask.
func (s *State) AddLayer(name string, kind geometry.LayerKind) (int, error) {
	s.mu.Lock()
	if s.imagePath == "" {
		s.mu.Unlock()
		return -1, ErrNoImage
	}
	if name == "" {
		name = fmt.Sprintf("Layer %d", len(s.layers)+1)
	}
	layer := geometry.NewLayer(name, kind)
	if kind == geometry.LayerManual {
		for _, role := range geometry.Roles {
			shape, err := geometry.NewShape(geometry.KindCircle)
			if err != nil {
				s.mu.Unlock()
				return -1, err
			}
			layer.SetShape(role, shape)
		}
	}
	s.layers = append(s.layers, layer)
	s.current = len(s.layers) - 1
	idx := s.current
	s.mu.Unlock()

	s.logger.Debug("layer added", "name", name, "kind", kind.String())
	s.Emit(EventLayersChanged, idx)

	if kind == geometry.LayerAutomatic {
		if err := s.LoadAutomaticLayer(); err != nil {
			return idx, err
		}
		return idx, nil
	}
	if err := s.Respawn(); err != nil && !errors.Is(err, ErrNoRegion) {
		return idx, err
	}
	return idx, nil
}

// RemoveLayer deletes the layer at idx. The current layer moves to the
// previous one when the current layer is removed.
func (s *State) RemoveLayer(idx int) error {
	s.mu.Lock()
	if idx < 0 || idx >= len(s.layers) {
		s.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrNoLayer, idx)
	}
	s.layers = append(s.layers[:idx], s.layers[idx+1:]...)
	switch {
	case len(s.layers) == 0:
		s.current = -1
	case s.current >= idx:
		s.current = max(0, s.current-1)
	}
	s.grabbed = false
	s.mu.Unlock()

	s.Emit(EventLayersChanged, idx)
	s.Evaluate(context.Background())
	return nil
}

// SetCurrent selects the layer evaluated and edited.
func (s *State) SetCurrent(idx int) error {
	s.mu.Lock()
	if idx < 0 || idx >= len(s.layers) {
		s.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrNoLayer, idx)
	}
	s.current = idx
	s.grabbed = false
	s.mu.Unlock()

	s.Emit(EventCurrentChanged, idx)
	s.Evaluate(context.Background())
	return nil
}

// Layers returns the layers in order.
func (s *State) Layers() []*geometry.Layer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*geometry.Layer, len(s.layers))
	copy(out, s.layers)
	return out
}

// Current returns the current layer index, or -1.
func (s *State) Current() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// CurrentLayer returns the current layer, or nil.
func (s *State) CurrentLayer() *geometry.Layer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentLocked()
}

func (s *State) currentLocked() *geometry.Layer {
	if s.current < 0 || s.current >= len(s.layers) {
		return nil
	}
	return s.layers[s.current]
}

// SetShape replaces a role of the current manual layer with a new inactive
// shape of the given kind, then respawns it.
func (s *State) SetShape(role geometry.Role, kind geometry.ShapeKind) error {
	shape, err := geometry.NewShape(kind)
	if err != nil {
		return err
	}

	s.mu.Lock()
	layer := s.currentLocked()
	if layer == nil || layer.Kind != geometry.LayerManual {
		s.mu.Unlock()
		return ErrNoLayer
	}
	layer.SetShape(role, shape)
	s.grabbed = false
	s.mu.Unlock()

	s.Emit(EventShapesChanged, role)
	if err := s.Respawn(); err != nil && !errors.Is(err, ErrNoRegion) {
		return err
	}
	return nil
}

// Respawn places every inactive shape of the current manual layer at the
// crop center with its rim offset by the default radius, and activates it.
func (s *State) Respawn() error {
	s.mu.Lock()
	if !s.hasRegion {
		s.mu.Unlock()
		return ErrNoRegion
	}
	layer := s.currentLocked()
	if layer == nil {
		s.mu.Unlock()
		return ErrNoLayer
	}
	cx, cy := s.region.Width()/2, s.region.Height()/2
	placed := false
	if layer.Kind == geometry.LayerManual {
		for _, role := range geometry.Roles {
			shape := layer.Shape(role)
			if shape == nil || shape.IsActive() {
				continue
			}
			handles := shape.Handles()
			handles[0].Set(geometry.NewPoint(cx, cy))
			for _, h := range handles[1:] {
				h.Set(geometry.NewPoint(cx+s.radii[role], cy))
			}
			shape.SetActive(true)
			placed = true
		}
	}
	s.mu.Unlock()

	if placed {
		s.Emit(EventShapesChanged, nil)
	}
	s.Evaluate(context.Background())
	return nil
}

// LoadAutomaticLayer backs the automatic layers with the image's mask. An
// existing mask is read at once; otherwise segmentation runs in the
// background and the evaluation stays Computing until it completes.
func (s *State) LoadAutomaticLayer() error {
	s.mu.RLock()
	path, have := s.imagePath, s.boundaries != nil
	s.mu.RUnlock()
	if path == "" {
		return ErrNoImage
	}
	if have {
		s.Evaluate(context.Background())
		return nil
	}

	if maskPath, ok := segment.Existing(path); ok {
		res, err := s.extractor.ExtractFile(maskPath)
		if err != nil {
			s.failMask(path, err)
			return err
		}
		s.setBoundaries(path, maskPath, res)
		return nil
	}

	s.mu.Lock()
	s.maskErr = nil
	s.result = metrics.Result{Kind: metrics.KindComputing}
	s.mu.Unlock()

	s.runner.Submit(task.Key{Image: path, Op: task.OpSegment}, func(ctx context.Context) (any, error) {
		maskPath, err := s.segmenter.Segment(ctx, path)
		if err != nil {
			return nil, err
		}
		res, err := s.extractor.ExtractFile(maskPath)
		if err != nil {
			return nil, err
		}
		return maskOutcome{path: maskPath, boundaries: res}, nil
	})
	return nil
}

type maskOutcome struct {
	path       string
	boundaries boundary.Result
}

func (s *State) finishSegment(t *task.Task) {
	v, err := t.Result()
	if s.ImagePath() != t.Key().Image {
		return
	}
	if err != nil {
		s.failMask(t.Key().Image, err)
		return
	}
	out := v.(maskOutcome)
	s.setBoundaries(t.Key().Image, out.path, out.boundaries)
}

// failMask records a segmentation failure. The automatic layer then
// evaluates to SegmentationUnavailable until segmentation is requested again.
func (s *State) failMask(imagePath string, err error) {
	s.mu.Lock()
	if s.imagePath != imagePath {
		s.mu.Unlock()
		return
	}
	s.maskErr = err
	s.mu.Unlock()

	s.logger.Warn("segmentation failed", "image", imagePath, "error", err)
	s.Emit(EventMaskFailed, err)
	s.Evaluate(context.Background())
}

func (s *State) setBoundaries(imagePath, maskPath string, res boundary.Result) {
	s.mu.Lock()
	if s.imagePath != imagePath {
		s.mu.Unlock()
		return
	}
	s.maskPath = maskPath
	s.boundaries = &res
	s.maskErr = nil
	s.mu.Unlock()

	s.logger.Info("mask ready", "image", imagePath, "mask", maskPath)
	s.Emit(EventMaskReady, maskPath)
	s.Evaluate(context.Background())
}
