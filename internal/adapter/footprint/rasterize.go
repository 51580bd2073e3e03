package footprint

import (
	"math"

	"github.com/conflictmap/sar-damage-service/internal/domain"
	"github.com/conflictmap/sar-damage-service/internal/observability"
	"github.com/ctessum/geom"
)

// rasterize burns building footprints into a binary presence mask on grid.
// A cell is set when any footprint polygon overlaps it with positive area.
// Cells never touched by a footprint stay zero.
func rasterize(polys []geom.Polygon, grid domain.Grid) *domain.Raster {
	mask := domain.NewRaster(grid)
	gb := grid.Bounds()

	for _, poly := range polys {
		b := poly.Bounds()
		if b.Max.X < gb.Min.X || b.Min.X > gb.Max.X ||
			b.Max.Y < gb.Min.Y || b.Min.Y > gb.Max.Y {
			continue
		}
		colMin, colMax := colRange(grid, b)
		rowMin, rowMax := rowRange(grid, b)

		for row := rowMin; row <= rowMax; row++ {
			for col := colMin; col <= colMax; col++ {
				if mask.At(col, row) != 0 {
					continue
				}
				isect := grid.CellPolygon(col, row).Intersection(poly)
				if isect != nil && isect.Area() > 0 {
					mask.Set(col, row, 1)
				}
			}
		}
	}
	return mask
}

// colRange maps a footprint envelope's X extent to a clamped column range.
func colRange(g domain.Grid, b *geom.Bounds) (int, int) {
	lo := int(math.Floor((b.Min.X - g.MinX) / g.CellSize))
	hi := int(math.Floor((b.Max.X - g.MinX) / g.CellSize))
	return clamp(lo, g.Width-1), clamp(hi, g.Width-1)
}

// rowRange maps a footprint envelope's Y extent to a clamped row range.
// Rows run north to south, so Max.Y gives the first row.
func rowRange(g domain.Grid, b *geom.Bounds) (int, int) {
	lo := int(math.Floor((g.MaxY - b.Max.Y) / g.CellSize))
	hi := int(math.Floor((g.MaxY - b.Min.Y) / g.CellSize))
	return clamp(lo, g.Height-1), clamp(hi, g.Height-1)
}

func clamp(v, hi int) int {
	if v < 0 {
		return 0
	}
	if v > hi {
		return hi
	}
	return v
}

// presenceMask wraps rasterize with the empty-catalog pre-flight shared by
// every provider: masking damage against zero footprints would silently
// zero out the whole report.
func presenceMask(provider string, polys []geom.Polygon, grid domain.Grid) (*domain.Raster, error) {
	if len(polys) == 0 {
		return nil, &domain.NoFootprintsError{Provider: provider}
	}
	return rasterize(polys, grid), nil
}

// recordFetch counts a completed provider fetch, separating fetches that
// came back with no footprints from ones that found buildings.
func recordFetch(m *observability.Metrics, provider string, polys []geom.Polygon) {
	outcome := "success"
	if len(polys) == 0 {
		outcome = "empty"
	}
	m.FootprintFetches.WithLabelValues(provider, outcome).Inc()
}
