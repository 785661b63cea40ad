package session

import (
	"context"

	"onh-grader/internal/metrics"
	"onh-grader/internal/task"
	"onh-grader/pkg/geometry"
)

// Evaluate recomputes the metrics of the current layer. The result passes
// through Computing before reaching a terminal kind; it stays Computing while
// the automatic layer waits for its mask, and is Empty when there is nothing
// to evaluate.
func (s *State) Evaluate(ctx context.Context) metrics.Result {
	s.mu.Lock()
	layer := s.currentLocked()
	if layer == nil || !layer.Complete() {
		s.result = metrics.Result{Kind: metrics.KindEmpty}
		res := s.result
		s.mu.Unlock()
		s.Emit(EventEvaluated, res)
		return res
	}

	name := layer.Name
	var (
		disc, cup   geometry.Shape
		discM, cupM metrics.Measurement
		fromMask    bool
		waiting     = metrics.KindEmpty
	)
	switch layer.Kind {
	case geometry.LayerAutomatic:
		switch {
		case s.boundaries != nil:
			discM = metrics.FromRect(s.boundaries.Disc.Box, s.boundaries.Disc.Area)
			cupM = metrics.FromRect(s.boundaries.Cup.Box, s.boundaries.Cup.Area)
			fromMask = true
		case s.maskErr != nil:
			// Checked first: the failed task is still in flight while its
			// completion is being published.
			waiting = metrics.KindSegmentationUnavailable
		case s.runner.InFlight(task.Key{Image: s.imagePath, Op: task.OpSegment}):
			waiting = metrics.KindComputing
		}
	default:
		d, c := layer.Shape(geometry.RoleDisc), layer.Shape(geometry.RoleCup)
		if d.IsActive() && c.IsActive() {
			disc, cup = d.Clone(), c.Clone()
		}
	}

	if !fromMask && (disc == nil || cup == nil) {
		s.result = metrics.Result{Kind: waiting}
		res := s.result
		s.mu.Unlock()
		s.Emit(EventEvaluated, res)
		return res
	}
	s.result = metrics.Result{Kind: metrics.KindComputing}
	s.mu.Unlock()

	var res metrics.Result
	if fromMask {
		res = s.engine.Compute(ctx, discM, cupM)
	} else {
		var err error
		res, err = s.engine.ComputeShapes(ctx, disc, cup)
		if err != nil {
			s.logger.Warn("evaluation failed", "layer", name, "error", err)
			res = metrics.Result{Kind: metrics.KindEmpty}
			s.mu.Lock()
			s.result = res
			s.mu.Unlock()
			s.Emit(EventEvaluateFailed, err)
			s.Emit(EventEvaluated, res)
			return res
		}
	}

	s.mu.Lock()
	s.result = res
	s.mu.Unlock()
	s.Emit(EventEvaluated, res)
	return res
}
