package imagery

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
	"github.com/conflictmap/sar-damage-service/internal/observability"
)

// Client implements domain.SceneFetcher against the imagery catalog's HTTP
// API. It retries transient failures with exponential backoff and surfaces
// the rest as non-retryable RemoteFetchErrors.
type Client struct {
	token      string
	httpClient *http.Client
	baseURL    string
	maxRetries int
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates an imagery catalog client.
func NewClient(baseURL, token string, timeout time.Duration, maxRetries int, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		token: token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL:    baseURL,
		maxRetries: maxRetries,
		metrics:    metrics,
		logger:     logger,
	}
}

// Scenes queries the catalog for calibrated backscatter scenes covering the
// AOI inside the window.
func (c *Client) Scenes(ctx context.Context, aoi domain.AreaOfInterest, window domain.DateWindow, polarization string) ([]domain.Scene, error) {
	params := url.Values{
		"bbox":         {aoi.BBoxString()},
		"start":        {window.Start.Format(time.DateOnly)},
		"end":          {window.End.Format(time.DateOnly)},
		"polarization": {polarization},
	}
	fullURL := c.baseURL + "/v1/scenes?" + params.Encode()

	// Exponential backoff between attempts: 500ms doubling. Transient
	// failures (network errors, 5xx) are retried up to maxRetries times.
	backoff := 500 * time.Millisecond
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			c.logger.Warn("imagery fetch retrying",
				"attempt", attempt, "backoff", backoff, "error", lastErr)
			if !sleepWithContext(ctx, backoff) {
				return nil, ctx.Err()
			}
			backoff *= 2
		}

		scenes, retryable, err := c.doRequest(ctx, fullURL)
		if err == nil {
			return scenes, nil
		}
		if !retryable {
			c.metrics.ImageryFetches.WithLabelValues("error").Inc()
			return nil, &domain.RemoteFetchError{Op: "scene query", Err: err, Retryable: false}
		}
		lastErr = err
	}

	c.metrics.ImageryFetches.WithLabelValues("error").Inc()
	return nil, &domain.RemoteFetchError{Op: "scene query", Err: lastErr, Retryable: true}
}

// doRequest performs one catalog request. The second return value reports
// whether a failure is worth retrying.
func (c *Client) doRequest(ctx context.Context, fullURL string) ([]domain.Scene, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, false, fmt.Errorf("create request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, ctx.Err() == nil, fmt.Errorf("catalog request: %w", err)
	}
	defer resp.Body.Close()
	c.metrics.ImageryFetchDuration.Observe(time.Since(start).Seconds())

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		retryable := resp.StatusCode >= 500
		return nil, retryable, fmt.Errorf("catalog API error: status %d: %s", resp.StatusCode, body)
	}

	var catalogResp response
	if err := json.NewDecoder(resp.Body).Decode(&catalogResp); err != nil {
		return nil, false, fmt.Errorf("decode response: %w", err)
	}

	scenes := make([]domain.Scene, len(catalogResp.Scenes))
	for i, s := range catalogResp.Scenes {
		scenes[i] = domain.Scene{
			ID:           s.ID,
			AcquiredAt:   s.AcquiredAt,
			Orbit:        s.Orbit,
			Polarization: s.Polarization,
			Backscatter:  &domain.Raster{Grid: s.Grid, Data: decodeNoData(s.Values)},
		}
	}

	if len(scenes) == 0 {
		c.metrics.ImageryFetches.WithLabelValues("empty").Inc()
	} else {
		c.metrics.ImageryFetches.WithLabelValues("success").Inc()
	}
	return scenes, false, nil
}

// noDataSentinel is the catalog's masked-pixel marker; JSON cannot carry NaN.
const noDataSentinel = -9999

// decodeNoData converts sentinel values to NaN in place.
func decodeNoData(values []float64) []float64 {
	nan := math.NaN()
	for i, v := range values {
		if v == noDataSentinel {
			values[i] = nan
		}
	}
	return values
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// Catalog API response types.

type response struct {
	Scenes []scene `json:"scenes"`
}

type scene struct {
	ID           string      `json:"id"`
	AcquiredAt   time.Time   `json:"acquired_at"`
	Orbit        string      `json:"orbit"`
	Polarization string      `json:"polarization"`
	Grid         domain.Grid `json:"grid"`
	Values       []float64   `json:"values"` // row-major decibels, -9999 marks masked pixels
}
