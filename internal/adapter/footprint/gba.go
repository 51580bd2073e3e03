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

// GBASource serves footprints from a Global Building Atlas tile service as
// GeoJSON. GBA polygons carry no confidence score; everything returned is
// treated as a building.
type GBASource struct {
	httpClient *http.Client
	baseURL    string
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewGBASource creates a Global Building Atlas footprint source.
func NewGBASource(baseURL string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *GBASource {
	return &GBASource{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: baseURL,
		metrics: metrics,
		logger:  logger,
	}
}

func (s *GBASource) Name() string { return config.ProviderGBA }

type featureCollection struct {
	Features []feature `json:"features"`
}

type feature struct {
	Geometry struct {
		Type        string        `json:"type"`
		Coordinates [][][]float64 `json:"coordinates"`
	} `json:"geometry"`
}

// PresenceMask fetches the AOI's GeoJSON footprints and burns them onto grid.
func (s *GBASource) PresenceMask(ctx context.Context, aoi domain.AreaOfInterest, grid domain.Grid) (*domain.Raster, error) {
	params := url.Values{"bbox": {aoi.BBoxString()}}
	fullURL := s.baseURL + "/v1/footprints?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		s.metrics.FootprintFetches.WithLabelValues(s.Name(), "error").Inc()
		return nil, &domain.RemoteFetchError{Op: "building atlas query", Err: err, Retryable: ctx.Err() == nil}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		s.metrics.FootprintFetches.WithLabelValues(s.Name(), "error").Inc()
		return nil, &domain.RemoteFetchError{
			Op:        "building atlas query",
			Err:       fmt.Errorf("status %d: %s", resp.StatusCode, body),
			Retryable: resp.StatusCode >= 500,
		}
	}

	var fc featureCollection
	if err := json.NewDecoder(resp.Body).Decode(&fc); err != nil {
		s.metrics.FootprintFetches.WithLabelValues(s.Name(), "error").Inc()
		return nil, &domain.RemoteFetchError{Op: "building atlas query", Err: fmt.Errorf("decode response: %w", err)}
	}

	polys := make([]geom.Polygon, 0, len(fc.Features))
	for _, f := range fc.Features {
		if f.Geometry.Type != "Polygon" || len(f.Geometry.Coordinates) == 0 {
			continue
		}
		// Outer ring only; footprint holes are irrelevant at cell resolution.
		if poly, ok := ringToPolygon(f.Geometry.Coordinates[0]); ok {
			polys = append(polys, poly)
		}
	}
	s.logger.Debug("building atlas footprints fetched",
		"features", len(fc.Features), "polygons", len(polys))
	recordFetch(s.metrics, s.Name(), polys)

	return presenceMask(s.Name(), polys, grid)
}
