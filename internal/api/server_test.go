package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/beautydex/harvester/internal/harvest"
)

func TestHealthz(t *testing.T) {
	t.Parallel()

	s := NewServer(":0", nil)
	rec := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestProgressSnapshot(t *testing.T) {
	t.Parallel()

	s := NewServer(":0", nil)
	s.SetProgress(harvest.RunInfo{
		RunID:     "run-1",
		SourceURL: "https://example.com/skincare",
		Stats:     harvest.Stats{Scraped: 4, Planned: 10},
	})

	rec := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/progress", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var info harvest.RunInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	require.Equal(t, "run-1", info.RunID)
	require.Equal(t, 4, info.Stats.Scraped)
	require.Equal(t, 10, info.Stats.Planned)
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	s := NewServer(":0", nil)
	rec := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "go_goroutines")
}
