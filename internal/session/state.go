// Package session holds the grading state of one case image: the image and
// its ONH region, the mask, annotation layers, the viewport and the latest
// evaluation. It is the single entry point for a presentation layer.
//
// Mutations are expected from one goroutine (the input handler). Background
// tasks only publish their results through the state's lock and events.
package session

import (
	"errors"
	"image"
	"log/slog"
	"sync"

	"onh-grader/internal/boundary"
	"onh-grader/internal/metrics"
	"onh-grader/internal/segment"
	"onh-grader/internal/task"
	"onh-grader/internal/view"
	"onh-grader/pkg/geometry"
)

var (
	// ErrCropArtifact is returned when a crop artifact is opened as a case.
	ErrCropArtifact = errors.New("cannot load a cropped image")
	// ErrNoImage is returned by operations that need a loaded image.
	ErrNoImage = errors.New("no image loaded")
	// ErrNoRegion is returned by operations that need the ONH region.
	ErrNoRegion = errors.New("ONH region not located")
	// ErrNoLayer is returned when no layer is selected or an index is invalid.
	ErrNoLayer = errors.New("no such layer")
)

// Locator finds the ONH crop region of an image file.
type Locator interface {
	Locate(path string) (geometry.Region, error)
}

// MaskExtractor reads disc and cup boundaries from a mask file.
type MaskExtractor interface {
	ExtractFile(path string) (boundary.Result, error)
}

// EventType identifies session events.
type EventType int

const (
	EventImageLoaded EventType = iota
	EventLocated
	EventLocateFailed
	EventMaskReady
	EventMaskFailed
	EventLayersChanged
	EventCurrentChanged
	EventShapesChanged
	EventViewChanged
	EventEvaluated
	EventEvaluateFailed
)

// EventListener is called when an event occurs.
type EventListener func(data interface{})

// Options wires the session to its collaborators. Nil fields get defaults
// where one exists.
type Options struct {
	Locator   Locator
	Extractor MaskExtractor
	Segmenter segment.Service
	Engine    *metrics.Engine
	Runner    *task.Runner
	HitTester view.HitTester

	// Rim offsets of a respawned disc and cup, in crop pixels.
	DefaultRadii [2]int
	// Initial disc and cup alphas, 0..100.
	DefaultAlphas [2]int

	Logger *slog.Logger
}

// State holds the grading session.
type State struct {
	mu sync.RWMutex

	locator   Locator
	extractor MaskExtractor
	segmenter segment.Service
	engine    *metrics.Engine
	runner    *task.Runner
	hit       view.HitTester
	radii     [2]int
	logger    *slog.Logger

	// Image
	imagePath string
	imageSize image.Point

	// ONH region and crop artifact
	region    geometry.Region
	hasRegion bool
	cropPath  string
	cropSize  image.Point

	// Segmentation mask
	maskPath   string
	boundaries *boundary.Result
	maskErr    error

	// Annotation
	layers  []*geometry.Layer
	current int
	alphas  [2]int

	viewport view.Viewport
	box      image.Point // display container, set by SetDisplay

	grabbed bool
	grab    geometry.Handle

	result metrics.Result

	listeners map[EventType][]EventListener
}

// New creates an empty session.
func New(opts Options) *State {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Extractor == nil {
		opts.Extractor = boundary.NewExtractor()
	}
	if opts.Segmenter == nil {
		opts.Segmenter = segment.FileService{}
	}
	if opts.Engine == nil {
		opts.Engine = metrics.NewEngine(nil, metrics.DefaultThresholds(), opts.Logger)
	}
	if opts.Runner == nil {
		opts.Runner = task.NewRunner(opts.Logger)
	}
	if opts.HitTester == (view.HitTester{}) {
		opts.HitTester = view.NewHitTester()
	}
	if opts.DefaultRadii == [2]int{} {
		opts.DefaultRadii = [2]int{100, 60}
	}
	if opts.DefaultAlphas == [2]int{} {
		opts.DefaultAlphas = [2]int{90, 100}
	}

	s := &State{
		locator:   opts.Locator,
		extractor: opts.Extractor,
		segmenter: opts.Segmenter,
		engine:    opts.Engine,
		runner:    opts.Runner,
		hit:       opts.HitTester,
		radii:     opts.DefaultRadii,
		logger:    opts.Logger,
		alphas:    opts.DefaultAlphas,
		current:   -1,
		listeners: make(map[EventType][]EventListener),
	}
	s.runner.OnComplete(s.onTaskComplete)
	return s
}

// On registers an event listener for the specified event type.
func (s *State) On(event EventType, listener EventListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners[event] = append(s.listeners[event], listener)
}

// Emit triggers all listeners for the specified event type.
func (s *State) Emit(event EventType, data interface{}) {
	s.mu.RLock()
	listeners := s.listeners[event]
	s.mu.RUnlock()

	for _, listener := range listeners {
		listener(data)
	}
}

// Wait blocks until all background tasks have finished.
func (s *State) Wait() {
	s.runner.Wait()
}

// ImagePath returns the loaded image, or "".
func (s *State) ImagePath() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.imagePath
}

// Region returns the ONH region and whether it has been located.
func (s *State) Region() (geometry.Region, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.region, s.hasRegion
}

// CropPath returns the crop artifact path once the region is located.
func (s *State) CropPath() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cropPath
}

// MaskPath returns the mask backing the automatic layer, or "".
func (s *State) MaskPath() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.maskPath
}

// Boundaries returns the extracted mask boundaries, if any.
func (s *State) Boundaries() (boundary.Result, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.boundaries == nil {
		return boundary.Result{}, false
	}
	return *s.boundaries, true
}

// Viewport returns the current viewport.
func (s *State) Viewport() view.Viewport {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.viewport
}

// Result returns the latest evaluation.
func (s *State) Result() metrics.Result {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.result
}

func (s *State) onTaskComplete(t *task.Task) {
	switch t.Key().Op {
	case task.OpLocate:
		s.finishLocate(t)
	case task.OpSegment:
		s.finishSegment(t)
	}
}

