package domain

import (
	"math"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/index/rtree"
)

// Region is a named sub-area for per-region impact breakdowns.
type Region struct {
	Name    string       `json:"name"`
	Polygon geom.Polygon `json:"polygon"`
}

// ResamplePopulation redistributes a population-count raster onto the target
// grid by intersection area, conserving the total count over the covered
// area. Both grids are axis-aligned in the same CRS, so the overlap of two
// cells is a plain rectangle.
func ResamplePopulation(pop *Raster, target Grid) (*Raster, error) {
	if pop.Grid.Equal(target) {
		return pop.Clone(), nil
	}
	if pop.Grid.EPSG != target.EPSG {
		return nil, &GridMismatchError{A: pop.Grid, B: target}
	}

	out := NewRaster(target)
	src := pop.Grid
	srcArea := src.CellSize * src.CellSize

	for row := 0; row < src.Height; row++ {
		for col := 0; col < src.Width; col++ {
			p := pop.At(col, row)
			if math.IsNaN(p) || p == 0 {
				continue
			}
			sb := src.CellBounds(col, row)

			// Target cells the source cell can touch.
			c0 := int(math.Floor((sb.Min.X - target.MinX) / target.CellSize))
			c1 := int(math.Ceil((sb.Max.X - target.MinX) / target.CellSize))
			r0 := int(math.Floor((target.MaxY - sb.Max.Y) / target.CellSize))
			r1 := int(math.Ceil((target.MaxY - sb.Min.Y) / target.CellSize))

			for tr := max(r0, 0); tr < min(r1, target.Height); tr++ {
				for tc := max(c0, 0); tc < min(c1, target.Width); tc++ {
					tb := target.CellBounds(tc, tr)
					overlap := rectOverlap(sb, tb)
					if overlap <= 0 {
						continue
					}
					out.Set(tc, tr, out.At(tc, tr)+p*overlap/srcArea)
				}
			}
		}
	}
	return out, nil
}

// rectOverlap returns the intersection area of two axis-aligned envelopes.
func rectOverlap(a, b *geom.Bounds) float64 {
	w := math.Min(a.Max.X, b.Max.X) - math.Max(a.Min.X, b.Min.X)
	h := math.Min(a.Max.Y, b.Max.Y) - math.Max(a.Min.Y, b.Min.Y)
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

// EstimateImpact sums the population raster over damaged cells. Both rasters
// must share a grid; resample first if they do not.
func EstimateImpact(pop, mask *Raster) (float64, error) {
	if err := alignGrids(pop.Grid, mask.Grid); err != nil {
		return 0, err
	}

	var total float64
	for i, m := range mask.Data {
		if m == 0 || math.IsNaN(m) {
			continue
		}
		if p := pop.Data[i]; !math.IsNaN(p) {
			total += p
		}
	}
	return total, nil
}

// regionItem wraps a region for r-tree indexing.
type regionItem struct {
	geom.Polygonal
	name string
}

// ImpactByRegion splits the affected-population estimate across sub-region
// boundaries. A damaged cell straddling a region boundary contributes in
// proportion to intersection area, so the per-region figures sum to at most
// the total estimate.
func ImpactByRegion(pop, mask *Raster, regions []Region) (map[string]float64, error) {
	if err := alignGrids(pop.Grid, mask.Grid); err != nil {
		return nil, err
	}

	tree := rtree.NewTree(25, 50)
	for _, r := range regions {
		tree.Insert(&regionItem{Polygonal: r.Polygon, name: r.Name})
	}

	grid := mask.Grid
	cellArea := grid.CellSize * grid.CellSize
	out := make(map[string]float64, len(regions))
	for _, r := range regions {
		out[r.Name] = 0
	}

	for row := 0; row < grid.Height; row++ {
		for col := 0; col < grid.Width; col++ {
			i := row*grid.Width + col
			if mask.Data[i] == 0 || math.IsNaN(mask.Data[i]) {
				continue
			}
			p := pop.Data[i]
			if math.IsNaN(p) || p == 0 {
				continue
			}

			cell := grid.CellPolygon(col, row)
			for _, hit := range tree.SearchIntersect(cell.Bounds()) {
				item := hit.(*regionItem)
				isect := cell.Intersection(item.Polygonal)
				if isect == nil {
					continue
				}
				out[item.name] += p * isect.Area() / cellArea
			}
		}
	}
	return out, nil
}
