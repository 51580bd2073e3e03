package footprint

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/conflictmap/sar-damage-service/internal/config"
	"github.com/conflictmap/sar-damage-service/internal/domain"
	"github.com/conflictmap/sar-damage-service/internal/observability"
	"github.com/ctessum/geom"
)

// minConfidence drops Open Buildings detections the model itself is unsure
// about. Low-confidence detections are mostly shadows and vehicles.
const minConfidence = 0.7

// OpenBuildingsSource serves footprints from a Google Open Buildings V3
// tile service. It is the default provider: coverage is model-derived and
// does not depend on local mapping activity.
type OpenBuildingsSource struct {
	httpClient *http.Client
	baseURL    string
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewOpenBuildingsSource creates an Open Buildings footprint source.
func NewOpenBuildingsSource(baseURL string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *OpenBuildingsSource {
	return &OpenBuildingsSource{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: baseURL,
		metrics: metrics,
		logger:  logger,
	}
}

func (s *OpenBuildingsSource) Name() string { return config.ProviderOpenBuildings }

type openBuildingsResponse struct {
	Buildings []openBuilding `json:"buildings"`
}

type openBuilding struct {
	Polygon    [][]float64 `json:"polygon"` // [lon, lat] ring
	Confidence float64     `json:"confidence"`
}

// PresenceMask fetches detections over the AOI, keeps those above the
// confidence floor and burns them onto grid.
func (s *OpenBuildingsSource) PresenceMask(ctx context.Context, aoi domain.AreaOfInterest, grid domain.Grid) (*domain.Raster, error) {
	params := url.Values{"bbox": {aoi.BBoxString()}}
	fullURL := s.baseURL + "/v3/buildings?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		s.metrics.FootprintFetches.WithLabelValues(s.Name(), "error").Inc()
		return nil, &domain.RemoteFetchError{Op: "open buildings query", Err: err, Retryable: ctx.Err() == nil}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		s.metrics.FootprintFetches.WithLabelValues(s.Name(), "error").Inc()
		return nil, &domain.RemoteFetchError{
			Op:        "open buildings query",
			Err:       fmt.Errorf("status %d: %s", resp.StatusCode, body),
			Retryable: resp.StatusCode >= 500,
		}
	}

	var obResp openBuildingsResponse
	if err := json.NewDecoder(resp.Body).Decode(&obResp); err != nil {
		s.metrics.FootprintFetches.WithLabelValues(s.Name(), "error").Inc()
		return nil, &domain.RemoteFetchError{Op: "open buildings query", Err: fmt.Errorf("decode response: %w", err)}
	}

	polys := make([]geom.Polygon, 0, len(obResp.Buildings))
	for _, b := range obResp.Buildings {
		if b.Confidence < minConfidence {
			continue
		}
		if poly, ok := ringToPolygon(b.Polygon); ok {
			polys = append(polys, poly)
		}
	}
	s.logger.Debug("open buildings fetched",
		"detections", len(obResp.Buildings), "kept", len(polys))
	recordFetch(s.metrics, s.Name(), polys)

	return presenceMask(s.Name(), polys, grid)
}

// ringToPolygon converts a [lon, lat] coordinate ring to a polygon, closing
// it when the source left it open.
func ringToPolygon(coords [][]float64) (geom.Polygon, bool) {
	if len(coords) < 3 {
		return nil, false
	}
	ring := make([]geom.Point, 0, len(coords)+1)
	for _, c := range coords {
		if len(c) < 2 {
			return nil, false
		}
		ring = append(ring, geom.Point{X: c[0], Y: c[1]})
	}
	if ring[0] != ring[len(ring)-1] {
		ring = append(ring, ring[0])
	}
	return geom.Polygon{ring}, true
}
