package domain

// ApplyFootprintMask intersects a damage mask with a building-presence mask:
// every damage cell outside a footprint is zeroed. The result is always a
// subset of the input damage mask.
func ApplyFootprintMask(damage, presence *Raster) (*Raster, error) {
	if err := alignGrids(damage.Grid, presence.Grid); err != nil {
		return nil, err
	}

	out := NewRaster(damage.Grid)
	for i, d := range damage.Data {
		if d != 0 && presence.Data[i] != 0 {
			out.Data[i] = 1
		}
	}
	return out, nil
}
