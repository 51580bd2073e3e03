// Package domain models SAR (synthetic-aperture radar) damage assessment over
// conflict areas.
//
// # Data Source
//
// Backscatter imagery comes from Sentinel-1 GRD scenes, calibrated to decibels
// (sigma-nought), served by an external catalog service. A scene is a
// single-band raster tagged with acquisition time, orbit direction and
// polarization (VV or VH; VV is the default because built structures are
// strong VV reflectors). Scenes are grouped into two stacks per analysis:
//
//	baseline:   acquisitions before the conflict period
//	assessment: acquisitions during or after it
//
// Both windows are caller-supplied and must not overlap. A stack needs at
// least 2 scenes; Welch's t-test is undefined below that sample size.
//
// # Statistical Test
//
// Per grid cell, across acquisition time:
//
//	t = (mean_assessment - mean_baseline) / sqrt(s²_a/n_a + s²_b/n_b)
//
// with unbiased sample variances. Degrees of freedom follow the
// Welch-Satterthwaite approximation. Structural collapse scatters the radar
// return, so damage shows up as a backscatter DROP: large negative t. Cells
// with fewer than 2 valid observations in either stack get NaN and are
// excluded from every downstream aggregate.
//
// # Classification
//
// A cell is flagged as damaged when |t| exceeds the threshold (default 3.5)
// and, in decrease-only mode, t is negative. The comparison is strict: a cell
// sitting exactly on the threshold is not damage. Severity tiers on the
// report follow the operational legend:
//
//	|t| > 3.5  likely damage
//	|t| > 5    significant damage
//	|t| > 8    severe destruction
//
// # Footprint Masking
//
// SAR speckle produces isolated false positives over bare ground. The damage
// mask is therefore intersected with building footprints from one of three
// interchangeable providers: Google Open Buildings V3, OpenStreetMap, or the
// Global Building Atlas. Providers differ only in where polygons come from;
// masking depends on a single presence-per-cell capability.
//
// # Population Impact
//
// Affected population is the sum of a WorldPop-style ~100 m gridded
// population raster (2020 baseline) over damaged cells. When grids differ the
// population raster is redistributed onto the analysis grid by intersection
// area, conserving the total count.
package domain
