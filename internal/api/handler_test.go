// internal/api/handler_test.go
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github-issue-ranker/internal/report"
)

type fakeGenerator struct {
	rep *report.Report
	err error
}

func (f *fakeGenerator) Generate(context.Context) (*report.Report, error) {
	return f.rep, f.err
}

func sampleReport(degraded bool, warnings ...string) *report.Report {
	return &report.Report{
		RunID:       "run-1",
		GeneratedAt: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
		Entries: []report.Entry{{
			Repository: "elastic/kibana",
			Language:   "TypeScript",
			Score:      0.418,
			Insights:   []string{"needs repro"},
		}},
		Degraded: degraded,
		Warnings: append([]string{}, warnings...),
	}
}

func serve(t *testing.T, gen ReportGenerator, path string) *httptest.ResponseRecorder {
	t.Helper()
	router := NewRouter(gen, slog.New(slog.NewTextHandler(io.Discard, nil)))
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHandler_Health(t *testing.T) {
	rec := serve(t, &fakeGenerator{}, "/health")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status": "ok"}`, rec.Body.String())
}

func TestHandler_Home(t *testing.T) {
	rec := serve(t, &fakeGenerator{}, "/")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message": "GitHub Issue Management API is running!"}`, rec.Body.String())
}

func TestHandler_RepositoryReport(t *testing.T) {
	t.Run("healthy report", func(t *testing.T) {
		rep := sampleReport(false)
		rec := serve(t, &fakeGenerator{rep: rep}, "/repository-report")

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		assert.Empty(t, rec.Header().Get(DegradedHeader))

		var body reportResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, rep.Text(), body.Report)
		assert.False(t, body.Degraded)
		assert.Empty(t, body.Warnings)
	})

	t.Run("degraded report is still served", func(t *testing.T) {
		rep := sampleReport(true, "last sync of elastic/kibana is incomplete: 300 issues stored")
		rec := serve(t, &fakeGenerator{rep: rep}, "/repository-report")

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "true", rec.Header().Get(DegradedHeader))

		var body reportResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.True(t, body.Degraded)
		assert.Equal(t, rep.Warnings, body.Warnings)
		assert.Contains(t, body.Report, "elastic/kibana")
	})

	t.Run("generation failure", func(t *testing.T) {
		rec := serve(t, &fakeGenerator{err: errors.New("connection refused")}, "/repository-report")

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.JSONEq(t, `{"error": "Failed to generate repository report"}`, rec.Body.String())
	})
}

func TestHandler_Rankings(t *testing.T) {
	rec := serve(t, &fakeGenerator{rep: sampleReport(false)}, "/v1/rankings")

	require.Equal(t, http.StatusOK, rec.Code)
	var body report.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "run-1", body.RunID)
	require.Len(t, body.Entries, 1)
	assert.Equal(t, 0.418, body.Entries[0].Score)
}

func TestHandler_Metrics(t *testing.T) {
	rec := serve(t, &fakeGenerator{}, "/metrics")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
