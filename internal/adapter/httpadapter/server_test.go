package httpadapter_test

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/conflictmap/sar-damage-service/internal/adapter/httpadapter"
	"github.com/conflictmap/sar-damage-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockReadiness struct {
	err error
}

func (m *mockReadiness) CheckReadiness(_ context.Context) error { return m.err }

type mockAnalyzer struct {
	out domain.OutputReport
	err error
}

func (m *mockAnalyzer) Analyze(_ context.Context, _ domain.RawRequest) (domain.OutputReport, error) {
	return m.out, m.err
}

func newTestServer(readyErr error, analyzer httpadapter.Analyzer) *httpadapter.Server {
	if analyzer == nil {
		analyzer = &mockAnalyzer{}
	}
	return httpadapter.NewServer(":0", &mockReadiness{err: readyErr}, analyzer, slog.Default())
}

func TestHealthzReturns200(t *testing.T) {
	srv := newTestServer(nil, nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestReadyzReturns200WhenReady(t *testing.T) {
	srv := newTestServer(nil, nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ready", body["status"])
}

func TestReadyzReturns503WhenNotReady(t *testing.T) {
	srv := newTestServer(fmt.Errorf("not ready yet"), nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "not ready", body["status"])
	assert.Equal(t, "not ready yet", body["error"])
}

func TestAnalyzeReturnsReport(t *testing.T) {
	analyzer := &mockAnalyzer{out: domain.OutputReport{
		Key:   []byte("analysis-1"),
		Value: []byte(`{"id":"analysis-1","damaged_cells":7}`),
	}}
	srv := newTestServer(nil, analyzer)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/analyze", strings.NewReader(`{"bbox":"0, 0, 2, 2"}`))

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":"analysis-1","damaged_cells":7}`, rec.Body.String())
}

func TestAnalyzeStatusMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{
			name: "malformed request",
			err:  fmt.Errorf("parse: %w", fmt.Errorf("unexpected end of JSON input")),
			want: http.StatusBadRequest,
		},
		{
			name: "insufficient data",
			err:  fmt.Errorf("extract: %w", &domain.InsufficientDataError{Got: 1}),
			want: http.StatusUnprocessableEntity,
		},
		{
			name: "no footprints",
			err:  fmt.Errorf("mask: %w", &domain.NoFootprintsError{Provider: "osm"}),
			want: http.StatusUnprocessableEntity,
		},
		{
			name: "upstream outage",
			err:  fmt.Errorf("extract: %w", &domain.RemoteFetchError{Op: "scene query", Err: fmt.Errorf("timeout"), Retryable: true}),
			want: http.StatusBadGateway,
		},
		{
			name: "unexpected failure",
			err:  fmt.Errorf("serialize: boom"),
			want: http.StatusInternalServerError,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(nil, &mockAnalyzer{err: tt.err})

			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/analyze", strings.NewReader(`{}`))

			srv.ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
		})
	}
}
