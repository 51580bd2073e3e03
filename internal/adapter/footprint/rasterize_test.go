package footprint

import (
	"testing"

	"github.com/conflictmap/sar-damage-service/internal/domain"
	"github.com/ctessum/geom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unitGrid() domain.Grid {
	return domain.Grid{EPSG: 4326, MinX: 0, MaxY: 2, CellSize: 1, Width: 2, Height: 2}
}

func square(x0, y0, x1, y1 float64) geom.Polygon {
	return geom.Polygon{{
		{X: x0, Y: y0},
		{X: x1, Y: y0},
		{X: x1, Y: y1},
		{X: x0, Y: y1},
		{X: x0, Y: y0},
	}}
}

func TestRasterize_SingleCell(t *testing.T) {
	mask := rasterize([]geom.Polygon{square(0.2, 1.2, 0.8, 1.8)}, unitGrid())

	assert.Equal(t, 1.0, mask.At(0, 0))
	assert.Equal(t, 0.0, mask.At(1, 0))
	assert.Equal(t, 0.0, mask.At(0, 1))
	assert.Equal(t, 0.0, mask.At(1, 1))
}

func TestRasterize_SpansCellBoundaries(t *testing.T) {
	mask := rasterize([]geom.Polygon{square(0.5, 0.5, 1.5, 1.5)}, unitGrid())

	assert.Equal(t, 4, mask.CountNonZero())
}

func TestRasterize_OutsideGridIgnored(t *testing.T) {
	mask := rasterize([]geom.Polygon{square(5, 5, 6, 6)}, unitGrid())

	assert.Equal(t, 0, mask.CountNonZero())
}

func TestRasterize_OverlappingFootprintsStayBinary(t *testing.T) {
	mask := rasterize([]geom.Polygon{
		square(0.2, 1.2, 0.8, 1.8),
		square(0.3, 1.3, 0.7, 1.7),
	}, unitGrid())

	assert.Equal(t, 1.0, mask.At(0, 0))
	assert.Equal(t, 1, mask.CountNonZero())
}

func TestPresenceMask_NoFootprints(t *testing.T) {
	_, err := presenceMask("osm", nil, unitGrid())
	require.Error(t, err)

	var nfe *domain.NoFootprintsError
	require.ErrorAs(t, err, &nfe)
	assert.Equal(t, "osm", nfe.Provider)
}
