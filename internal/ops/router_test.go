package ops

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/stockroom-bot/internal/health"
	"github.com/Proton-105/stockroom-bot/internal/middleware"
	"github.com/Proton-105/stockroom-bot/internal/testutil"
)

func serve(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	rec := serve(t, NewRouter(nil, testutil.Logger()), PathHealth)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(middleware.CorrelationHeader))
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestReadyz(t *testing.T) {
	tests := []struct {
		name   string
		check  error
		status int
	}{
		{name: "healthy", status: http.StatusOK},
		{name: "unhealthy", check: errors.New("connection refused"), status: http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := health.NewChecker(testutil.Logger())
			checker.AddCheck("database", health.CheckFunc(func(context.Context) error { return tt.check }))

			rec := serve(t, NewRouter(checker, testutil.Logger()), PathReady)
			require.Equal(t, tt.status, rec.Code)

			var report health.Report
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
			assert.Equal(t, tt.check == nil, report.Healthy)
			assert.Contains(t, report.Components, "database")
		})
	}
}

func TestMetrics(t *testing.T) {
	rec := serve(t, NewRouter(nil, testutil.Logger()), PathMetrics)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
