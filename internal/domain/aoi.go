package domain

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ctessum/geom"
)

// AreaOfInterest is the polygon an analysis runs over. Immutable once built.
type AreaOfInterest struct {
	polygon geom.Polygon
	bounds  *geom.Bounds
}

// NewAreaOfInterest wraps a polygon. The polygon must have at least one ring.
func NewAreaOfInterest(p geom.Polygon) (AreaOfInterest, error) {
	if len(p) == 0 || len(p[0]) < 4 {
		return AreaOfInterest{}, fmt.Errorf("area of interest needs a closed ring, got %d ring(s)", len(p))
	}
	return AreaOfInterest{polygon: p, bounds: p.Bounds()}, nil
}

// ParseBBox parses the "minLon, minLat, maxLon, maxLat" form used by analysis
// requests, e.g. "37.45, 47.05, 37.65, 47.15".
func ParseBBox(s string) (AreaOfInterest, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return AreaOfInterest{}, fmt.Errorf("bbox %q: want 4 comma-separated values, got %d", s, len(parts))
	}

	vals := make([]float64, 4)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return AreaOfInterest{}, fmt.Errorf("bbox %q: %w", s, err)
		}
		vals[i] = v
	}

	minLon, minLat, maxLon, maxLat := vals[0], vals[1], vals[2], vals[3]
	if minLon < -180 || maxLon > 180 || minLat < -90 || maxLat > 90 {
		return AreaOfInterest{}, fmt.Errorf("bbox %q: coordinates out of range", s)
	}
	if minLon >= maxLon || minLat >= maxLat {
		return AreaOfInterest{}, fmt.Errorf("bbox %q: min must be strictly less than max", s)
	}

	return NewAreaOfInterest(geom.Polygon{{
		{X: minLon, Y: minLat},
		{X: maxLon, Y: minLat},
		{X: maxLon, Y: maxLat},
		{X: minLon, Y: maxLat},
		{X: minLon, Y: minLat},
	}})
}

// Polygon returns the AOI geometry.
func (a AreaOfInterest) Polygon() geom.Polygon { return a.polygon }

// Bounds returns the AOI envelope.
func (a AreaOfInterest) Bounds() *geom.Bounds { return a.bounds }

// BBoxString renders the envelope back to "minLon, minLat, maxLon, maxLat".
func (a AreaOfInterest) BBoxString() string {
	return fmt.Sprintf("%g, %g, %g, %g", a.bounds.Min.X, a.bounds.Min.Y, a.bounds.Max.X, a.bounds.Max.Y)
}

// Grid lays a square analysis grid of the given cell size over the AOI
// envelope, in the AOI's CRS (EPSG:4326).
func (a AreaOfInterest) Grid(cellSize float64) Grid {
	width := int((a.bounds.Max.X-a.bounds.Min.X)/cellSize + 0.5)
	height := int((a.bounds.Max.Y-a.bounds.Min.Y)/cellSize + 0.5)
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}
	return Grid{
		EPSG:     4326,
		MinX:     a.bounds.Min.X,
		MaxY:     a.bounds.Max.Y,
		CellSize: cellSize,
		Width:    width,
		Height:   height,
	}
}
