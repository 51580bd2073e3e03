package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/conflictmap/sar-damage-service/internal/domain"
	"github.com/conflictmap/sar-damage-service/internal/observability"
)

// FootprintSelector resolves a provider name to a footprint source. An empty
// name selects the service default.
type FootprintSelector interface {
	Select(name string) (domain.FootprintSource, error)
}

// DamageAnalyzer implements Analyzer by running the full assessment chain:
// parse the request, extract the two image stacks, run the per-cell t-test,
// classify against the threshold, mask to building footprints and estimate
// the affected population.
type DamageAnalyzer struct {
	scenes     domain.SceneFetcher
	footprints FootprintSelector
	population domain.PopulationSource
	threshold  float64 // default t-score cutoff for requests that omit one
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewAnalyzer creates a DamageAnalyzer wired to the given data sources. A
// zero threshold uses the documented default.
func NewAnalyzer(scenes domain.SceneFetcher, footprints FootprintSelector, population domain.PopulationSource, threshold float64, metrics *observability.Metrics, logger *slog.Logger) *DamageAnalyzer {
	return &DamageAnalyzer{
		scenes:     scenes,
		footprints: footprints,
		population: population,
		threshold:  threshold,
		metrics:    metrics,
		logger:     logger,
	}
}

// Stage labels for error and duration metrics.
const (
	stageParse     = "parse"
	stageExtract   = "extract"
	stageTest      = "test"
	stageClassify  = "classify"
	stageMask      = "mask"
	stageEstimate  = "estimate"
	stageSerialize = "serialize"
)

// Analyze runs one complete damage assessment.
func (a *DamageAnalyzer) Analyze(ctx context.Context, raw domain.RawRequest) (domain.OutputReport, error) {
	start := time.Now()

	analysis, err := domain.ParseAnalysisRequest(raw, a.threshold)
	if err != nil {
		return a.fail(stageParse, err)
	}
	log := a.logger.With("analysis_id", analysis.ID, "bbox", analysis.AOI.BBoxString())

	baseline, assessment, err := a.timedExtract(ctx, analysis)
	if err != nil {
		return a.fail(stageExtract, err)
	}
	log.Info("stacks extracted",
		"baseline_scenes", baseline.Len(),
		"assessment_scenes", assessment.Len(),
		"grid", baseline.Grid.String(),
	)

	testStart := time.Now()
	result, err := domain.WelchTTest(baseline, assessment)
	if err != nil {
		return a.fail(stageTest, err)
	}
	a.metrics.StageDuration.WithLabelValues(stageTest).Observe(time.Since(testStart).Seconds())

	classifyStart := time.Now()
	damage, err := domain.Classify(result.T, analysis.Threshold, analysis.Direction)
	if err != nil {
		return a.fail(stageClassify, err)
	}
	a.metrics.StageDuration.WithLabelValues(stageClassify).Observe(time.Since(classifyStart).Seconds())

	source, err := a.footprints.Select(analysis.FootprintProvider)
	if err != nil {
		return a.fail(stageMask, err)
	}
	masked, severity, err := a.timedMask(ctx, analysis, baseline.Grid, source, damage, result.T)
	if err != nil {
		return a.fail(stageMask, err)
	}
	log.Info("damage classified",
		"provider", source.Name(),
		"damaged_cells", masked.CountNonZero(),
	)

	affected, byRegion, err := a.timedEstimate(ctx, analysis, masked)
	if err != nil {
		return a.fail(stageEstimate, err)
	}

	report := domain.DamageReport{
		ID:                analysis.ID,
		BBox:              analysis.AOI.BBoxString(),
		Baseline:          analysis.Baseline,
		Assessment:        analysis.Assessment,
		Polarization:      analysis.Polarization,
		Threshold:         analysis.Threshold,
		Direction:         analysis.Direction,
		FootprintProvider: source.Name(),

		Grid:               baseline.Grid,
		BaselineScenes:     baseline.Len(),
		AssessmentScenes:   assessment.Len(),
		DamagedCells:       masked.CountNonZero(),
		SeverityCells:      severity,
		AffectedPopulation: affected,
		PopulationByRegion: byRegion,

		GeneratedAt: domain.Now(),
	}

	out, err := domain.SerializeDamageReport(report)
	if err != nil {
		return a.fail(stageSerialize, err)
	}

	a.metrics.AnalysisDuration.Observe(time.Since(start).Seconds())
	log.Info("analysis complete",
		"affected_population", affected,
		"duration", time.Since(start),
	)
	return out, nil
}

// fail records the failed stage and wraps the error with it.
func (a *DamageAnalyzer) fail(stage string, err error) (domain.OutputReport, error) {
	a.metrics.AnalysisErrors.WithLabelValues(stage).Inc()
	return domain.OutputReport{}, fmt.Errorf("%s: %w", stage, err)
}

func (a *DamageAnalyzer) timedExtract(ctx context.Context, analysis domain.Analysis) (*domain.ImageStack, *domain.ImageStack, error) {
	start := time.Now()
	baseline, assessment, err := domain.ExtractStacks(ctx, a.scenes, analysis.AOI, analysis.Baseline, analysis.Assessment, analysis.Polarization)
	if err != nil {
		return nil, nil, err
	}
	a.metrics.StageDuration.WithLabelValues(stageExtract).Observe(time.Since(start).Seconds())
	return baseline, assessment, nil
}

// timedMask fetches the presence mask, restricts the damage raster to it and
// tallies severity tiers over the surviving cells.
func (a *DamageAnalyzer) timedMask(ctx context.Context, analysis domain.Analysis, grid domain.Grid, source domain.FootprintSource, damage, t *domain.Raster) (*domain.Raster, map[string]int, error) {
	start := time.Now()

	presence, err := source.PresenceMask(ctx, analysis.AOI, grid)
	if err != nil {
		return nil, nil, err
	}
	masked, err := domain.ApplyFootprintMask(damage, presence)
	if err != nil {
		return nil, nil, err
	}
	severity, err := domain.SeverityCounts(t, masked)
	if err != nil {
		return nil, nil, err
	}

	a.metrics.StageDuration.WithLabelValues(stageMask).Observe(time.Since(start).Seconds())
	return masked, severity, nil
}

// timedEstimate fetches and resamples the population grid, then totals the
// population under damaged cells, overall and per requested region.
func (a *DamageAnalyzer) timedEstimate(ctx context.Context, analysis domain.Analysis, masked *domain.Raster) (float64, map[string]float64, error) {
	start := time.Now()

	pop, err := a.population.PopulationRaster(ctx, analysis.AOI)
	if err != nil {
		return 0, nil, err
	}
	resampled, err := domain.ResamplePopulation(pop, masked.Grid)
	if err != nil {
		return 0, nil, err
	}
	affected, err := domain.EstimateImpact(resampled, masked)
	if err != nil {
		return 0, nil, err
	}

	var byRegion map[string]float64
	if len(analysis.Regions) > 0 {
		byRegion, err = domain.ImpactByRegion(resampled, masked, analysis.Regions)
		if err != nil {
			return 0, nil, err
		}
	}

	a.metrics.StageDuration.WithLabelValues(stageEstimate).Observe(time.Since(start).Seconds())
	return affected, byRegion, nil
}
