package domain

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RawRequest is an unprocessed analysis request from the source topic.
type RawRequest struct {
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	Commit    func(ctx context.Context) error
}

// AnalysisRequest is the flat JSON body of an analysis request, shared by
// the Kafka source topic and the HTTP analyze endpoint. Dates use
// "2006-01-02". Optional fields fall back to documented defaults.
type AnalysisRequest struct {
	BBox              string   `json:"bbox"` // "minLon, minLat, maxLon, maxLat"
	BaselineStart     string   `json:"baseline_start"`
	BaselineEnd       string   `json:"baseline_end"`
	AssessmentStart   string   `json:"assessment_start"`
	AssessmentEnd     string   `json:"assessment_end"`
	Polarization      string   `json:"polarization,omitempty"`       // default VV
	Threshold         float64  `json:"threshold,omitempty"`          // default 3.5
	Direction         string   `json:"direction,omitempty"`          // default decrease
	FootprintProvider string   `json:"footprint_provider,omitempty"` // default from service config
	Regions           []Region `json:"regions,omitempty"`
}

// Analysis is the validated, typed form of a request.
type Analysis struct {
	ID                string
	AOI               AreaOfInterest
	Baseline          DateWindow
	Assessment        DateWindow
	Polarization      string
	Threshold         float64
	Direction         string
	FootprintProvider string
	Regions           []Region

	RawPayload []byte
}

// ParseAnalysisRequest deserializes and validates a raw request. Request
// defaults (polarization, threshold, direction) are applied here; a zero
// defaultThreshold falls back to DefaultThreshold. The footprint provider
// default belongs to the service and is left empty.
func ParseAnalysisRequest(raw RawRequest, defaultThreshold float64) (Analysis, error) {
	var req AnalysisRequest
	if err := json.Unmarshal(raw.Value, &req); err != nil {
		return Analysis{}, fmt.Errorf("parse analysis request: %w", err)
	}

	aoi, err := ParseBBox(req.BBox)
	if err != nil {
		return Analysis{}, fmt.Errorf("parse analysis request: %w", err)
	}

	baseline, err := parseWindow(req.BaselineStart, req.BaselineEnd)
	if err != nil {
		return Analysis{}, fmt.Errorf("parse analysis request: baseline window: %w", err)
	}
	assessment, err := parseWindow(req.AssessmentStart, req.AssessmentEnd)
	if err != nil {
		return Analysis{}, fmt.Errorf("parse analysis request: assessment window: %w", err)
	}
	if err := ValidateWindows(baseline, assessment); err != nil {
		return Analysis{}, fmt.Errorf("parse analysis request: %w", err)
	}

	pol := req.Polarization
	switch pol {
	case "":
		pol = PolarizationVV
	case PolarizationVV, PolarizationVH:
	default:
		return Analysis{}, fmt.Errorf("parse analysis request: unknown polarization %q", req.Polarization)
	}

	threshold := req.Threshold
	if threshold == 0 {
		threshold = defaultThreshold
	}
	if threshold == 0 {
		threshold = DefaultThreshold
	}
	if threshold < 0 {
		return Analysis{}, fmt.Errorf("parse analysis request: negative threshold %g", threshold)
	}

	direction := req.Direction
	switch direction {
	case "":
		direction = DirectionDecrease
	case DirectionDecrease, DirectionTwoSided:
	default:
		return Analysis{}, fmt.Errorf("parse analysis request: unknown direction %q", req.Direction)
	}

	return Analysis{
		ID:                uuid.NewString(),
		AOI:               aoi,
		Baseline:          baseline,
		Assessment:        assessment,
		Polarization:      pol,
		Threshold:         threshold,
		Direction:         direction,
		FootprintProvider: req.FootprintProvider,
		Regions:           req.Regions,

		RawPayload: raw.Value,
	}, nil
}

func parseWindow(start, end string) (DateWindow, error) {
	s, err := time.Parse(time.DateOnly, start)
	if err != nil {
		return DateWindow{}, err
	}
	e, err := time.Parse(time.DateOnly, end)
	if err != nil {
		return DateWindow{}, err
	}
	return NewDateWindow(s, e)
}

// DamageReport is the published result of one analysis run.
type DamageReport struct {
	ID                string     `json:"id"`
	BBox              string     `json:"bbox"`
	Baseline          DateWindow `json:"baseline"`
	Assessment        DateWindow `json:"assessment"`
	Polarization      string     `json:"polarization"`
	Threshold         float64    `json:"threshold"`
	Direction         string     `json:"direction"`
	FootprintProvider string     `json:"footprint_provider"`

	Grid               Grid               `json:"grid"`
	BaselineScenes     int                `json:"baseline_scenes"`
	AssessmentScenes   int                `json:"assessment_scenes"`
	DamagedCells       int                `json:"damaged_cells"`
	SeverityCells      map[string]int     `json:"severity_cells"`
	AffectedPopulation float64            `json:"affected_population"`
	PopulationByRegion map[string]float64 `json:"population_by_region,omitempty"`

	GeneratedAt time.Time `json:"generated_at"`
}

// OutputReport is the serialized form destined for the sink topic.
type OutputReport struct {
	Key     []byte
	Value   []byte
	Headers map[string]string
}

// SerializeDamageReport marshals a report for publishing. The key is the
// report ID; headers carry routing metadata without deserializing the body.
func SerializeDamageReport(report DamageReport) (OutputReport, error) {
	data, err := json.Marshal(report)
	if err != nil {
		return OutputReport{}, fmt.Errorf("serialize damage report: %w", err)
	}
	return OutputReport{
		Key:   []byte(report.ID),
		Value: data,
		Headers: map[string]string{
			"footprint_provider": report.FootprintProvider,
			"generated_at":       report.GeneratedAt.Format(time.RFC3339),
		},
	}, nil
}
