package domain

import (
	"math"
	"time"
)

// Polarizations accepted on analysis requests. VV is the default; built
// structures are strong VV reflectors.
const (
	PolarizationVV = "VV"
	PolarizationVH = "VH"
)

// Scene is one calibrated Sentinel-1 acquisition clipped to the analysis
// grid, with backscatter in decibels.
type Scene struct {
	ID           string    `json:"id"`
	AcquiredAt   time.Time `json:"acquired_at"`
	Orbit        string    `json:"orbit"` // "ascending" or "descending"
	Polarization string    `json:"polarization"`
	Backscatter  *Raster   `json:"backscatter"`
}

// ImageStack is an ordered sequence of scenes sharing one grid.
type ImageStack struct {
	Grid   Grid
	Scenes []Scene
}

// NewImageStack builds a stack, enforcing that every scene shares the first
// scene's grid. Scene count is validated by the extractor, not here.
func NewImageStack(scenes []Scene) (*ImageStack, error) {
	if len(scenes) == 0 {
		return &ImageStack{}, nil
	}
	grid := scenes[0].Backscatter.Grid
	for _, s := range scenes[1:] {
		if err := alignGrids(grid, s.Backscatter.Grid); err != nil {
			return nil, err
		}
	}
	return &ImageStack{Grid: grid, Scenes: scenes}, nil
}

// Len returns the number of scenes.
func (s *ImageStack) Len() int { return len(s.Scenes) }

// SamplesAt appends the valid (non-NaN) backscatter samples at cell index i
// to buf and returns it. Callers reuse buf across cells to avoid allocation.
func (s *ImageStack) SamplesAt(i int, buf []float64) []float64 {
	buf = buf[:0]
	for _, sc := range s.Scenes {
		if v := sc.Backscatter.Data[i]; !math.IsNaN(v) {
			buf = append(buf, v)
		}
	}
	return buf
}
