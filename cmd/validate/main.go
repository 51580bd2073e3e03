// Command validate checks a generated catalog fixture against its analysis
// request and dry-runs the statistical chain on it. It verifies that the
// fixture is internally consistent (grids match, dates fall inside the
// request windows, both stacks clear the minimum size) and that the
// classification honors its invariants (damage only where the t-score
// clears the threshold, severity tiers exclusive and summing to the damaged
// cell count).
//
// Usage:
//
//	go run ./cmd/validate \
//	  -catalog data/fixtures/catalog.json \
//	  -request data/fixtures/request.json
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/conflictmap/sar-damage-service/internal/domain"
)

// catalogScene mirrors the imagery catalog wire format.
type catalogScene struct {
	ID           string      `json:"id"`
	AcquiredAt   time.Time   `json:"acquired_at"`
	Orbit        string      `json:"orbit"`
	Polarization string      `json:"polarization"`
	Grid         domain.Grid `json:"grid"`
	Values       []float64   `json:"values"`
}

type catalog struct {
	Scenes []catalogScene `json:"scenes"`
}

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	catalogPath := flag.String("catalog", "", "path to the catalog fixture")
	requestPath := flag.String("request", "", "path to the analysis request fixture")
	flag.Parse()

	if *catalogPath == "" || *requestPath == "" {
		flag.Usage()
		os.Exit(2)
	}

	cat, raw, err := loadFixtures(*catalogPath, *requestPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	analysis, err := domain.ParseAnalysisRequest(domain.RawRequest{Value: raw}, 0)
	if err != nil {
		fmt.Fprintf(os.Stderr, "request fixture does not parse: %v\n", err)
		os.Exit(1)
	}

	phases := []*phase{
		checkCatalog(cat, analysis),
		checkStatistics(cat, analysis),
	}

	failed := false
	for _, p := range phases {
		if p.passed() {
			fmt.Printf("PASS %s\n", p.name)
			continue
		}
		failed = true
		fmt.Printf("FAIL %s\n", p.name)
		for _, e := range p.errors {
			fmt.Printf("  - %s\n", e)
		}
	}
	if failed {
		os.Exit(1)
	}
}

func loadFixtures(catalogPath, requestPath string) (catalog, []byte, error) {
	var cat catalog
	data, err := os.ReadFile(catalogPath)
	if err != nil {
		return cat, nil, err
	}
	if err := json.Unmarshal(data, &cat); err != nil {
		return cat, nil, fmt.Errorf("parse catalog fixture: %w", err)
	}
	raw, err := os.ReadFile(requestPath)
	if err != nil {
		return cat, nil, err
	}
	return cat, raw, nil
}

// checkCatalog verifies structural consistency of the scene fixture.
func checkCatalog(cat catalog, analysis domain.Analysis) *phase {
	p := &phase{name: "catalog structure"}
	if len(cat.Scenes) == 0 {
		p.errorf("catalog has no scenes")
		return p
	}

	grid := cat.Scenes[0].Grid
	var baseline, assessment int
	for _, s := range cat.Scenes {
		if !s.Grid.Equal(grid) {
			p.errorf("scene %s grid %s differs from %s", s.ID, s.Grid, grid)
		}
		if len(s.Values) != s.Grid.Cells() {
			p.errorf("scene %s has %d values, grid describes %d cells", s.ID, len(s.Values), s.Grid.Cells())
		}
		switch {
		case analysis.Baseline.Contains(s.AcquiredAt):
			baseline++
		case analysis.Assessment.Contains(s.AcquiredAt):
			assessment++
		default:
			p.errorf("scene %s acquired %s outside both windows", s.ID, s.AcquiredAt.Format(time.DateOnly))
		}
	}
	if baseline < 2 {
		p.errorf("only %d baseline scenes, need at least 2", baseline)
	}
	if assessment < 2 {
		p.errorf("only %d assessment scenes, need at least 2", assessment)
	}
	if !grid.Covers(analysis.AOI.Bounds()) {
		p.errorf("scene grid %s does not cover the request bbox", grid)
	}
	return p
}

// checkStatistics dry-runs the t-test and classification and verifies their
// invariants on the fixture data.
func checkStatistics(cat catalog, analysis domain.Analysis) *phase {
	p := &phase{name: "statistical invariants"}

	baseline, assessment, err := buildStacks(cat, analysis)
	if err != nil {
		p.errorf("build stacks: %v", err)
		return p
	}

	result, err := domain.WelchTTest(baseline, assessment)
	if err != nil {
		p.errorf("t-test: %v", err)
		return p
	}
	damage, err := domain.Classify(result.T, analysis.Threshold, analysis.Direction)
	if err != nil {
		p.errorf("classify: %v", err)
		return p
	}

	for i, v := range damage.Data {
		t := result.T.Data[i]
		switch v {
		case 1:
			if math.IsNaN(t) || math.Abs(t) <= analysis.Threshold {
				p.errorf("cell %d damaged with t=%g, threshold %g", i, t, analysis.Threshold)
			}
		case 0:
		default:
			p.errorf("cell %d has non-binary damage value %g", i, v)
		}
	}

	severity, err := domain.SeverityCounts(result.T, damage)
	if err != nil {
		p.errorf("severity counts: %v", err)
		return p
	}
	total := 0
	for _, n := range severity {
		total += n
	}
	if damaged := damage.CountNonZero(); total != damaged {
		p.errorf("severity tiers sum to %d, but %d cells are damaged", total, damaged)
	}

	fmt.Printf("  %d damaged cells, tiers %v\n", damage.CountNonZero(), severity)
	return p
}

func buildStacks(cat catalog, analysis domain.Analysis) (*domain.ImageStack, *domain.ImageStack, error) {
	var baseScenes, postScenes []domain.Scene
	for _, s := range cat.Scenes {
		scene := domain.Scene{
			ID:           s.ID,
			AcquiredAt:   s.AcquiredAt,
			Orbit:        s.Orbit,
			Polarization: s.Polarization,
			Backscatter:  &domain.Raster{Grid: s.Grid, Data: decodeNoData(s.Values)},
		}
		if analysis.Baseline.Contains(s.AcquiredAt) {
			baseScenes = append(baseScenes, scene)
		} else if analysis.Assessment.Contains(s.AcquiredAt) {
			postScenes = append(postScenes, scene)
		}
	}
	baseline, err := domain.NewImageStack(baseScenes)
	if err != nil {
		return nil, nil, err
	}
	assessment, err := domain.NewImageStack(postScenes)
	if err != nil {
		return nil, nil, err
	}
	return baseline, assessment, nil
}

func decodeNoData(values []float64) []float64 {
	nan := math.NaN()
	for i, v := range values {
		if v == -9999 {
			values[i] = nan
		}
	}
	return values
}
