// Command genfixtures generates a synthetic imagery catalog fixture plus a
// matching analysis request. The catalog JSON can back a stub imagery server
// for local runs; the request JSON is ready to publish to the source topic.
// Scenes carry a deliberate backscatter drop inside a central patch so the
// resulting report has damage to find.
//
// Usage:
//
//	go run ./cmd/genfixtures \
//	  -bbox "37.45, 47.05, 37.65, 47.15" \
//	  -cell-size 0.005 \
//	  -catalog-out data/fixtures/catalog.json \
//	  -request-out data/fixtures/request.json
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/conflictmap/sar-damage-service/internal/domain"
)

const (
	sceneCount     = 6
	baselineMean   = -6.5 // typical urban VV backscatter in dB
	damageDrop     = -7.0 // dB drop inside the damaged patch
	noiseStdDev    = 0.4
	noDataMarker   = -9999
	noDataPerMille = 5 // masked pixels per thousand
)

var (
	baselineStart   = time.Date(2021, time.June, 1, 0, 0, 0, 0, time.UTC)
	assessmentStart = time.Date(2022, time.March, 1, 0, 0, 0, 0, time.UTC)
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

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	bbox := flag.String("bbox", "37.45, 47.05, 37.65, 47.15", "area of interest as minLon, minLat, maxLon, maxLat")
	cellSize := flag.Float64("cell-size", 0.005, "scene grid cell size in degrees")
	catalogOut := flag.String("catalog-out", "", "output path for the catalog fixture")
	requestOut := flag.String("request-out", "", "output path for the analysis request fixture")
	seed := flag.Int64("seed", 1, "rng seed for reproducible noise")
	flag.Parse()

	if *catalogOut == "" || *requestOut == "" {
		flag.Usage()
		return fmt.Errorf("missing required flags: -catalog-out, -request-out")
	}

	aoi, err := domain.ParseBBox(*bbox)
	if err != nil {
		return err
	}
	grid := aoi.Grid(*cellSize)
	rng := rand.New(rand.NewSource(*seed))

	var cat catalog
	for i := 0; i < sceneCount; i++ {
		cat.Scenes = append(cat.Scenes, makeScene(rng, grid,
			fmt.Sprintf("S1A-BASE-%02d", i), baselineStart.AddDate(0, 0, i*12), false))
	}
	for i := 0; i < sceneCount; i++ {
		cat.Scenes = append(cat.Scenes, makeScene(rng, grid,
			fmt.Sprintf("S1A-POST-%02d", i), assessmentStart.AddDate(0, 0, i*12), true))
	}
	log.Printf("catalog: %d scenes on %s", len(cat.Scenes), grid)

	request := domain.AnalysisRequest{
		BBox:            aoi.BBoxString(),
		BaselineStart:   baselineStart.Format(time.DateOnly),
		BaselineEnd:     baselineStart.AddDate(0, 0, (sceneCount-1)*12).Format(time.DateOnly),
		AssessmentStart: assessmentStart.Format(time.DateOnly),
		AssessmentEnd:   assessmentStart.AddDate(0, 0, (sceneCount-1)*12).Format(time.DateOnly),
	}

	if err := writeJSON(*catalogOut, cat); err != nil {
		return err
	}
	return writeJSON(*requestOut, request)
}

// makeScene builds one constant-mean scene with gaussian noise. Damaged
// scenes drop the central third of the grid by damageDrop.
func makeScene(rng *rand.Rand, grid domain.Grid, id string, acquired time.Time, damaged bool) catalogScene {
	values := make([]float64, grid.Cells())
	for row := 0; row < grid.Height; row++ {
		for col := 0; col < grid.Width; col++ {
			if rng.Intn(1000) < noDataPerMille {
				values[row*grid.Width+col] = noDataMarker
				continue
			}
			v := baselineMean + rng.NormFloat64()*noiseStdDev
			if damaged && inCentralPatch(grid, col, row) {
				v += damageDrop
			}
			values[row*grid.Width+col] = v
		}
	}
	return catalogScene{
		ID:           id,
		AcquiredAt:   acquired,
		Orbit:        "descending",
		Polarization: domain.PolarizationVV,
		Grid:         grid,
		Values:       values,
	}
}

func inCentralPatch(grid domain.Grid, col, row int) bool {
	return col >= grid.Width/3 && col < 2*grid.Width/3 &&
		row >= grid.Height/3 && row < 2*grid.Height/3
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return err
	}
	log.Printf("wrote %s", path)
	return nil
}
