package domain

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- helpers shared by the stack/welch tests ---

// constScene builds a scene on g with every cell set to value.
func constScene(g Grid, id string, acquired time.Time, value float64) Scene {
	r := NewRaster(g)
	for i := range r.Data {
		r.Data[i] = value
	}
	return Scene{
		ID:           id,
		AcquiredAt:   acquired,
		Orbit:        "descending",
		Polarization: PolarizationVV,
		Backscatter:  r,
	}
}

// sceneSeries builds n scenes spaced a day apart with per-scene offsets so a
// cell's time series has a chosen mean and variance.
func sceneSeries(g Grid, start time.Time, mean float64, offsets []float64) []Scene {
	scenes := make([]Scene, len(offsets))
	for i, off := range offsets {
		scenes[i] = constScene(g, fmt.Sprintf("S1A-%d", i), start.AddDate(0, 0, i), mean+off)
	}
	return scenes
}

type mockSceneFetcher struct {
	scenesByWindow map[string][]Scene
	err            error
	calls          int
}

func (m *mockSceneFetcher) Scenes(_ context.Context, _ AreaOfInterest, window DateWindow, _ string) ([]Scene, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.scenesByWindow[window.String()], nil
}

// --- tests ---

func TestExtractStacks(t *testing.T) {
	aoi, err := ParseBBox(testBBox)
	require.NoError(t, err)
	grid := aoi.Grid(0.01)

	baseline := mustWindow(t, "2021-01-01", "2021-12-31")
	assessment := mustWindow(t, "2024-06-01", "2024-08-01")

	baseStart := time.Date(2021, 3, 1, 0, 0, 0, 0, time.UTC)
	assessStart := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)

	t.Run("happy path", func(t *testing.T) {
		fetcher := &mockSceneFetcher{scenesByWindow: map[string][]Scene{
			baseline.String():   sceneSeries(grid, baseStart, -6, []float64{-0.5, 0, 0.5}),
			assessment.String(): sceneSeries(grid, assessStart, -12, []float64{-0.5, 0.5}),
		}}

		base, assess, err := ExtractStacks(context.Background(), fetcher, aoi, baseline, assessment, PolarizationVV)
		require.NoError(t, err)
		assert.Equal(t, 3, base.Len())
		assert.Equal(t, 2, assess.Len())
		assert.True(t, base.Grid.Equal(assess.Grid))
		assert.Equal(t, 2, fetcher.calls)
	})

	t.Run("single scene raises InsufficientDataError", func(t *testing.T) {
		fetcher := &mockSceneFetcher{scenesByWindow: map[string][]Scene{
			baseline.String():   sceneSeries(grid, baseStart, -6, []float64{0}),
			assessment.String(): sceneSeries(grid, assessStart, -12, []float64{-0.5, 0.5}),
		}}

		_, _, err := ExtractStacks(context.Background(), fetcher, aoi, baseline, assessment, PolarizationVV)
		require.Error(t, err)

		var ide *InsufficientDataError
		require.ErrorAs(t, err, &ide)
		assert.Equal(t, baseline, ide.Window)
		assert.Equal(t, 1, ide.Got)
		assert.Contains(t, err.Error(), "baseline")
	})

	t.Run("scenes outside the window are dropped", func(t *testing.T) {
		late := constScene(grid, "S1A-late", time.Date(2022, 1, 5, 0, 0, 0, 0, time.UTC), -6)
		fetcher := &mockSceneFetcher{scenesByWindow: map[string][]Scene{
			baseline.String():   append(sceneSeries(grid, baseStart, -6, []float64{-0.5, 0.5}), late),
			assessment.String(): sceneSeries(grid, assessStart, -12, []float64{-0.5, 0.5}),
		}}

		base, _, err := ExtractStacks(context.Background(), fetcher, aoi, baseline, assessment, PolarizationVV)
		require.NoError(t, err)
		assert.Equal(t, 2, base.Len())
	})

	t.Run("scenes not covering the AOI are dropped", func(t *testing.T) {
		partial := grid
		partial.Width = grid.Width / 2
		partialScene := constScene(partial, "S1A-partial", baseStart, -6)

		fetcher := &mockSceneFetcher{scenesByWindow: map[string][]Scene{
			baseline.String():   append(sceneSeries(grid, baseStart, -6, []float64{-0.5, 0.5}), partialScene),
			assessment.String(): sceneSeries(grid, assessStart, -12, []float64{-0.5, 0.5}),
		}}

		base, _, err := ExtractStacks(context.Background(), fetcher, aoi, baseline, assessment, PolarizationVV)
		require.NoError(t, err)
		assert.Equal(t, 2, base.Len())
	})

	t.Run("overlapping windows rejected before fetching", func(t *testing.T) {
		fetcher := &mockSceneFetcher{}
		overlapping := mustWindow(t, "2021-06-01", "2022-06-01")

		_, _, err := ExtractStacks(context.Background(), fetcher, aoi, baseline, overlapping, PolarizationVV)
		require.Error(t, err)
		assert.Zero(t, fetcher.calls)
	})

	t.Run("fetch error propagates", func(t *testing.T) {
		fetchErr := &RemoteFetchError{Op: "scenes", Err: errors.New("gateway timeout"), Retryable: true}
		fetcher := &mockSceneFetcher{err: fetchErr}

		_, _, err := ExtractStacks(context.Background(), fetcher, aoi, baseline, assessment, PolarizationVV)
		require.Error(t, err)
		assert.True(t, IsRetryableFetch(err))
	})
}
