package domain

import (
	"fmt"
	"math"
)

// Classification directions. Decrease-only is the default: structural
// collapse lowers backscatter, so damage is a significant negative t.
const (
	DirectionDecrease = "decrease"
	DirectionTwoSided = "two-sided"
)

// DefaultThreshold is the documented default t-score cutoff. It is a
// default, not a policy; every request may override it.
const DefaultThreshold = 3.5

// Severity tier cutoffs on |t|, from the operational damage legend.
const (
	TierLikely      = "likely"      // |t| > 3.5
	TierSignificant = "significant" // |t| > 5
	TierSevere      = "severe"      // |t| > 8

	tierSignificantCutoff = 5.0
	tierSevereCutoff      = 8.0
)

// Classify binarizes a t-score raster: 1 where |t| strictly exceeds the
// threshold and, in decrease-only mode, t is negative. NaN cells are never
// damage. A cell sitting exactly on the threshold is not damage.
func Classify(t *Raster, threshold float64, direction string) (*Raster, error) {
	if threshold <= 0 {
		return nil, fmt.Errorf("threshold must be positive, got %g", threshold)
	}
	if direction != DirectionDecrease && direction != DirectionTwoSided {
		return nil, fmt.Errorf("unknown classification direction %q", direction)
	}

	mask := NewRaster(t.Grid)
	for i, v := range t.Data {
		if math.IsNaN(v) {
			continue
		}
		if math.Abs(v) <= threshold {
			continue
		}
		if direction == DirectionDecrease && v >= 0 {
			continue
		}
		mask.Data[i] = 1
	}
	return mask, nil
}

// SeverityCounts buckets damaged cells into the legend tiers by |t|.
// Tiers are exclusive: a cell lands in the highest tier it exceeds.
func SeverityCounts(t, mask *Raster) (map[string]int, error) {
	if err := alignGrids(t.Grid, mask.Grid); err != nil {
		return nil, err
	}

	counts := map[string]int{TierLikely: 0, TierSignificant: 0, TierSevere: 0}
	for i, m := range mask.Data {
		if m == 0 || math.IsNaN(m) {
			continue
		}
		mag := math.Abs(t.Data[i])
		switch {
		case mag > tierSevereCutoff:
			counts[TierSevere]++
		case mag > tierSignificantCutoff:
			counts[TierSignificant]++
		default:
			counts[TierLikely]++
		}
	}
	return counts, nil
}
