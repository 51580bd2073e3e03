// Package worldpop fetches gridded population counts from a WorldPop-style
// raster service. The upstream product is the 2020 unconstrained global
// mosaic at roughly 100m resolution; counts are persons per cell.
package worldpop

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"time"

	"github.com/conflictmap/sar-damage-service/internal/domain"
)

// noDataSentinel marks ocean and unpopulated nodata cells in the wire
// format; JSON cannot carry NaN.
const noDataSentinel = -9999

// Client implements domain.PopulationSource over HTTP.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
}

// NewClient creates a population raster client.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: baseURL,
		logger:  logger,
	}
}

type populationResponse struct {
	Year   int         `json:"year"`
	Grid   domain.Grid `json:"grid"`
	Counts []float64   `json:"counts"`
}

// PopulationRaster fetches the population grid clipped to the AOI. The
// returned raster is on the provider's native grid; callers resample it to
// the analysis grid.
func (c *Client) PopulationRaster(ctx context.Context, aoi domain.AreaOfInterest) (*domain.Raster, error) {
	params := url.Values{
		"bbox": {aoi.BBoxString()},
		"year": {"2020"},
	}
	fullURL := c.baseURL + "/v1/population?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &domain.RemoteFetchError{Op: "population query", Err: err, Retryable: ctx.Err() == nil}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, &domain.RemoteFetchError{
			Op:        "population query",
			Err:       fmt.Errorf("status %d: %s", resp.StatusCode, body),
			Retryable: resp.StatusCode >= 500,
		}
	}

	var popResp populationResponse
	if err := json.NewDecoder(resp.Body).Decode(&popResp); err != nil {
		return nil, &domain.RemoteFetchError{Op: "population query", Err: fmt.Errorf("decode response: %w", err)}
	}
	if got, want := len(popResp.Counts), popResp.Grid.Cells(); got != want {
		return nil, &domain.RemoteFetchError{
			Op:  "population query",
			Err: fmt.Errorf("count payload has %d cells, grid describes %d", got, want),
		}
	}

	nan := math.NaN()
	for i, v := range popResp.Counts {
		if v == noDataSentinel {
			popResp.Counts[i] = nan
		}
	}

	raster := &domain.Raster{Grid: popResp.Grid, Data: popResp.Counts}
	c.logger.Debug("population raster fetched", "grid", raster.Grid.String(), "total", raster.Sum())
	return raster, nil
}
