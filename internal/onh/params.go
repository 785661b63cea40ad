package onh

// Params controls the threshold search and the crop box size.
type Params struct {
	StartThreshold int // first binary threshold tried
	ThresholdStep  int // decrement between attempts
	ThresholdFloor int // lowest threshold tried before giving up
	MedianKernel   int // median blur aperture (odd)
	ErodeIter      int
	DilateIter     int
	CropSize       int // side of the square crop region
}

// DefaultParams returns the parameters used for fundus photographs.
func DefaultParams() Params {
	return Params{
		StartThreshold: 255,
		ThresholdStep:  10,
		ThresholdFloor: 0,
		MedianKernel:   5,
		ErodeIter:      2,
		DilateIter:     4,
		CropSize:       512,
	}
}

// WithCropSize returns a copy of params with a different crop size.
func (p Params) WithCropSize(size int) Params {
	p.CropSize = size
	return p
}

// WithThresholds returns a copy of params with a custom threshold schedule.
func (p Params) WithThresholds(start, step, floor int) Params {
	p.StartThreshold = start
	p.ThresholdStep = step
	p.ThresholdFloor = floor
	return p
}

// normalized fills in unusable values with defaults.
func (p Params) normalized() Params {
	d := DefaultParams()
	if p.StartThreshold <= 0 || p.StartThreshold > 255 {
		p.StartThreshold = d.StartThreshold
	}
	if p.ThresholdStep <= 0 {
		p.ThresholdStep = d.ThresholdStep
	}
	if p.ThresholdFloor < 0 || p.ThresholdFloor > p.StartThreshold {
		p.ThresholdFloor = d.ThresholdFloor
	}
	if p.MedianKernel < 3 {
		p.MedianKernel = d.MedianKernel
	}
	if p.MedianKernel%2 == 0 {
		p.MedianKernel++
	}
	if p.ErodeIter < 0 {
		p.ErodeIter = d.ErodeIter
	}
	if p.DilateIter < 0 {
		p.DilateIter = d.DilateIter
	}
	if p.CropSize <= 0 {
		p.CropSize = d.CropSize
	}
	return p
}
