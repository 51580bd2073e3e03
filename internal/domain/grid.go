package domain

import (
	"fmt"
	"math"

	"github.com/ctessum/geom"
)

// Grid describes a regular north-up raster grid. The origin is the top-left
// corner; rows run north to south. CellSize is in the CRS's units (degrees
// for EPSG:4326). Grids are value types: two grids are interchangeable iff
// they are equal.
type Grid struct {
	EPSG     int     `json:"epsg"`
	MinX     float64 `json:"min_x"`
	MaxY     float64 `json:"max_y"`
	CellSize float64 `json:"cell_size"`
	Width    int     `json:"width"`
	Height   int     `json:"height"`
}

func (g Grid) String() string {
	return fmt.Sprintf("EPSG:%d %dx%d @%g (%g,%g)", g.EPSG, g.Width, g.Height, g.CellSize, g.MinX, g.MaxY)
}

// Equal reports whether two grids describe the same cell layout.
func (g Grid) Equal(o Grid) bool {
	return g.EPSG == o.EPSG &&
		g.MinX == o.MinX && g.MaxY == o.MaxY &&
		g.CellSize == o.CellSize &&
		g.Width == o.Width && g.Height == o.Height
}

// Cells returns the total cell count.
func (g Grid) Cells() int { return g.Width * g.Height }

// Bounds returns the grid's outer envelope.
func (g Grid) Bounds() *geom.Bounds {
	return &geom.Bounds{
		Min: geom.Point{X: g.MinX, Y: g.MaxY - float64(g.Height)*g.CellSize},
		Max: geom.Point{X: g.MinX + float64(g.Width)*g.CellSize, Y: g.MaxY},
	}
}

// CellBounds returns the envelope of the cell at (col, row).
func (g Grid) CellBounds(col, row int) *geom.Bounds {
	x0 := g.MinX + float64(col)*g.CellSize
	y1 := g.MaxY - float64(row)*g.CellSize
	return &geom.Bounds{
		Min: geom.Point{X: x0, Y: y1 - g.CellSize},
		Max: geom.Point{X: x0 + g.CellSize, Y: y1},
	}
}

// CellPolygon returns the cell at (col, row) as a closed polygon ring,
// suitable for intersection math.
func (g Grid) CellPolygon(col, row int) geom.Polygon {
	b := g.CellBounds(col, row)
	return geom.Polygon{{
		{X: b.Min.X, Y: b.Min.Y},
		{X: b.Max.X, Y: b.Min.Y},
		{X: b.Max.X, Y: b.Max.Y},
		{X: b.Min.X, Y: b.Max.Y},
		{X: b.Min.X, Y: b.Min.Y},
	}}
}

// CellIndex maps a coordinate to (col, row), or ok=false outside the grid.
func (g Grid) CellIndex(x, y float64) (col, row int, ok bool) {
	col = int(math.Floor((x - g.MinX) / g.CellSize))
	row = int(math.Floor((g.MaxY - y) / g.CellSize))
	if col < 0 || col >= g.Width || row < 0 || row >= g.Height {
		return 0, 0, false
	}
	return col, row, true
}

// Covers reports whether the grid's envelope fully contains b.
func (g Grid) Covers(b *geom.Bounds) bool {
	gb := g.Bounds()
	return b.Min.X >= gb.Min.X && b.Max.X <= gb.Max.X &&
		b.Min.Y >= gb.Min.Y && b.Max.Y <= gb.Max.Y
}

// Raster is a single-band grid of float64 samples in row-major order.
// NaN marks nodata. Binary masks use the same type with 0/1 values.
type Raster struct {
	Grid Grid      `json:"grid"`
	Data []float64 `json:"data"`
}

// NewRaster allocates a zero-filled raster on g.
func NewRaster(g Grid) *Raster {
	return &Raster{Grid: g, Data: make([]float64, g.Cells())}
}

// NewNoDataRaster allocates a raster on g with every cell set to NaN.
func NewNoDataRaster(g Grid) *Raster {
	r := NewRaster(g)
	nan := math.NaN()
	for i := range r.Data {
		r.Data[i] = nan
	}
	return r
}

// At returns the sample at (col, row). No bounds checking beyond the slice's own.
func (r *Raster) At(col, row int) float64 {
	return r.Data[row*r.Grid.Width+col]
}

// Set writes the sample at (col, row).
func (r *Raster) Set(col, row int, v float64) {
	r.Data[row*r.Grid.Width+col] = v
}

// Clone returns a deep copy.
func (r *Raster) Clone() *Raster {
	out := &Raster{Grid: r.Grid, Data: make([]float64, len(r.Data))}
	copy(out.Data, r.Data)
	return out
}

// Sum totals all non-NaN samples.
func (r *Raster) Sum() float64 {
	var total float64
	for _, v := range r.Data {
		if !math.IsNaN(v) {
			total += v
		}
	}
	return total
}

// CountNonZero counts cells holding a finite nonzero value. For binary masks
// this is the number of set cells.
func (r *Raster) CountNonZero() int {
	var n int
	for _, v := range r.Data {
		if v != 0 && !math.IsNaN(v) {
			n++
		}
	}
	return n
}

// alignGrids returns a GridMismatchError unless a and b share a grid.
func alignGrids(a, b Grid) error {
	if !a.Equal(b) {
		return &GridMismatchError{A: a, B: b}
	}
	return nil
}
