package session

import (
	"context"

	"onh-grader/pkg/geometry"
)

// SetAlpha sets the opacity of a role, 0..100. Roles at or below the
// visibility threshold cannot be grabbed.
func (s *State) SetAlpha(role geometry.Role, alpha int) {
	s.mu.Lock()
	s.alphas[role] = max(0, min(100, alpha))
	if s.grabbed && s.grab.Role == role && !s.hit.Visible(s.alphas[role]) {
		s.grabbed = false
	}
	s.mu.Unlock()
	s.Emit(EventViewChanged, role)
}

// Alpha returns the opacity of a role.
func (s *State) Alpha(role geometry.Role) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.alphas[role]
}

// Hover reports whether a display-space position is over a grabbable
// handle of the current manual layer.
func (s *State) Hover(x, y int) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.hitLocked(x, y)
	return ok
}

// Grab starts dragging the handle under a display-space position.
func (s *State) Grab(x, y int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.hitLocked(x, y)
	s.grabbed, s.grab = ok, h
	return ok
}

func (s *State) hitLocked(x, y int) (geometry.Handle, bool) {
	layer := s.currentLocked()
	if layer == nil || layer.Kind != geometry.LayerManual {
		return geometry.Handle{}, false
	}
	return s.hit.Hit(s.viewport, layer, s.alphas, x, y)
}

// Drag moves the grabbed handle to the model-space position under (x, y)
// and re-evaluates. It returns false when nothing is grabbed.
func (s *State) Drag(x, y int) bool {
	s.mu.Lock()
	if !s.grabbed {
		s.mu.Unlock()
		return false
	}
	layer := s.currentLocked()
	if layer == nil {
		s.grabbed = false
		s.mu.Unlock()
		return false
	}
	p := s.grab.Point(layer)
	if p == nil {
		s.grabbed = false
		s.mu.Unlock()
		return false
	}
	p.Set(s.viewport.Inverse(x, y))
	handle := s.grab
	s.mu.Unlock()

	s.Emit(EventShapesChanged, handle)
	s.Evaluate(context.Background())
	return true
}

// Release ends a drag.
func (s *State) Release() {
	s.mu.Lock()
	s.grabbed = false
	s.mu.Unlock()
}

// Grabbed returns the handle being dragged.
func (s *State) Grabbed() (geometry.Handle, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.grab, s.grabbed
}
