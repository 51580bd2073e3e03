package domain

import "context"

// SceneFetcher retrieves calibrated backscatter scenes from the imagery
// catalog. Implementations return only scenes whose footprint fully covers
// the area of interest and whose acquisition date falls inside the window.
type SceneFetcher interface {
	Scenes(ctx context.Context, aoi AreaOfInterest, window DateWindow, polarization string) ([]Scene, error)
}

// FootprintSource rasterizes building presence onto an analysis grid.
// The three providers (Google Open Buildings, OSM, Global Building Atlas)
// are interchangeable behind this interface.
type FootprintSource interface {
	// Name identifies the provider in reports and errors.
	Name() string

	// PresenceMask returns a 0/1 raster on grid, 1 where any building
	// footprint touches the cell. Returns NoFootprintsError when the
	// provider has nothing inside the AOI.
	PresenceMask(ctx context.Context, aoi AreaOfInterest, grid Grid) (*Raster, error)
}

// PopulationSource retrieves the gridded population raster covering an AOI.
type PopulationSource interface {
	PopulationRaster(ctx context.Context, aoi AreaOfInterest) (*Raster, error)
}
