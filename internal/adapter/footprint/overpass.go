package footprint

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/conflictmap/sar-damage-service/internal/config"
	"github.com/conflictmap/sar-damage-service/internal/domain"
	"github.com/conflictmap/sar-damage-service/internal/observability"
	"github.com/ctessum/geom"
	"github.com/serjvanilla/go-overpass"
)

// OSMSource pulls building ways from an Overpass API endpoint and rasterizes
// them into a presence mask. OSM coverage is community-mapped and patchy in
// conflict zones, so this provider is usually a fallback.
type OSMSource struct {
	client  *overpass.Client
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewOSMSource creates an Overpass-backed footprint source.
func NewOSMSource(endpoint string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *OSMSource {
	httpClient := &http.Client{
		Timeout: timeout,
	}
	client := overpass.NewWithSettings(endpoint, 2, httpClient)
	return &OSMSource{
		client:  &client,
		metrics: metrics,
		logger:  logger,
	}
}

func (s *OSMSource) Name() string { return config.ProviderOSM }

// PresenceMask queries closed building ways inside the AOI and burns them
// onto grid.
func (s *OSMSource) PresenceMask(ctx context.Context, aoi domain.AreaOfInterest, grid domain.Grid) (*domain.Raster, error) {
	b := aoi.Bounds()
	// Overpass bbox order is (south, west, north, east).
	query := fmt.Sprintf(`
		[out:json];
		(
			way["building"](%g,%g,%g,%g);
		);
		out body;
		>;
		out skel qt;
	`, b.Min.Y, b.Min.X, b.Max.Y, b.Max.X)

	result, err := s.client.Query(query)
	if err != nil {
		s.metrics.FootprintFetches.WithLabelValues(s.Name(), "error").Inc()
		return nil, &domain.RemoteFetchError{Op: "overpass building query", Err: err, Retryable: true}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	polys := waysToPolygons(&result)
	s.logger.Debug("overpass buildings fetched", "ways", len(result.Ways), "polygons", len(polys))
	recordFetch(s.metrics, s.Name(), polys)

	return presenceMask(s.Name(), polys, grid)
}

// waysToPolygons converts closed ways to polygons. Open ways and ways with
// fewer than four nodes cannot form a ring and are skipped.
func waysToPolygons(result *overpass.Result) []geom.Polygon {
	polys := make([]geom.Polygon, 0, len(result.Ways))
	for _, way := range result.Ways {
		if len(way.Nodes) < 4 {
			continue
		}
		first, last := way.Nodes[0], way.Nodes[len(way.Nodes)-1]
		if first.Lat != last.Lat || first.Lon != last.Lon {
			continue
		}
		ring := make([]geom.Point, len(way.Nodes))
		for i, node := range way.Nodes {
			ring[i] = geom.Point{X: node.Lon, Y: node.Lat}
		}
		polys = append(polys, geom.Polygon{ring})
	}
	return polys
}
