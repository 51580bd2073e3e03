package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testGrid(width, height int) Grid {
	return Grid{EPSG: 4326, MinX: 37.45, MaxY: 47.15, CellSize: 0.001, Width: width, Height: height}
}

func TestGrid_Equal(t *testing.T) {
	g := testGrid(10, 10)

	assert.True(t, g.Equal(testGrid(10, 10)))

	other := testGrid(10, 10)
	other.CellSize = 0.002
	assert.False(t, g.Equal(other))

	other = testGrid(11, 10)
	assert.False(t, g.Equal(other))
}

func TestGrid_CellIndex(t *testing.T) {
	g := testGrid(10, 10)

	tests := []struct {
		name     string
		x, y     float64
		col, row int
		ok       bool
	}{
		{"top-left corner cell", 37.4505, 47.1495, 0, 0, true},
		{"interior", 37.4525, 47.1475, 2, 2, true},
		{"bottom-right cell", 37.4595, 47.1405, 9, 9, true},
		{"west of grid", 37.4495, 47.1495, 0, 0, false},
		{"north of grid", 37.4505, 47.1505, 0, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			col, row, ok := g.CellIndex(tt.x, tt.y)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.col, col)
				assert.Equal(t, tt.row, row)
			}
		})
	}
}

func TestGrid_CellBoundsRoundTrip(t *testing.T) {
	g := testGrid(10, 10)
	b := g.CellBounds(3, 7)

	cx := (b.Min.X + b.Max.X) / 2
	cy := (b.Min.Y + b.Max.Y) / 2
	col, row, ok := g.CellIndex(cx, cy)
	require.True(t, ok)
	assert.Equal(t, 3, col)
	assert.Equal(t, 7, row)
}

func TestGrid_Covers(t *testing.T) {
	g := testGrid(10, 10)

	assert.True(t, g.Covers(g.Bounds()))
	assert.True(t, g.Covers(g.CellBounds(5, 5)))

	outside := g.Bounds()
	outside.Max.X += g.CellSize
	assert.False(t, g.Covers(outside))
}

func TestRaster_SumSkipsNoData(t *testing.T) {
	r := NewRaster(testGrid(2, 2))
	r.Data[0] = 1.5
	r.Data[1] = math.NaN()
	r.Data[2] = 2.5

	assert.Equal(t, 4.0, r.Sum())
	assert.Equal(t, 2, r.CountNonZero())
}

func TestRaster_Clone(t *testing.T) {
	r := NewRaster(testGrid(2, 2))
	r.Data[3] = 9

	c := r.Clone()
	c.Data[3] = 1

	assert.Equal(t, 9.0, r.Data[3])
	assert.Equal(t, 1.0, c.Data[3])
}

func TestAlignGrids(t *testing.T) {
	a := testGrid(10, 10)
	b := testGrid(10, 11)

	require.NoError(t, alignGrids(a, a))

	err := alignGrids(a, b)
	require.Error(t, err)
	var gm *GridMismatchError
	require.ErrorAs(t, err, &gm)
	assert.Equal(t, a, gm.A)
	assert.Equal(t, b, gm.B)
}
