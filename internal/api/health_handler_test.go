package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthHandler(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		checks     map[string]HealthCheck
		wantStatus int
		wantBody   HealthResponse
	}{
		{
			name:       "no checks",
			wantStatus: http.StatusOK,
			wantBody:   HealthResponse{Status: "ok"},
		},
		{
			name: "all healthy",
			checks: map[string]HealthCheck{
				"database": func(ctx context.Context) error { return nil },
			},
			wantStatus: http.StatusOK,
			wantBody:   HealthResponse{Status: "ok", Checks: map[string]string{"database": "ok"}},
		},
		{
			name: "failing dependency",
			checks: map[string]HealthCheck{
				"database": func(ctx context.Context) error { return nil },
				"redis":    func(ctx context.Context) error { return errors.New("connection refused") },
			},
			wantStatus: http.StatusServiceUnavailable,
			wantBody: HealthResponse{
				Status: "degraded",
				Checks: map[string]string{"database": "ok", "redis": "unavailable"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := NewHealthHandler(tt.checks, testLogger())
			rr := httptest.NewRecorder()
			h.Health(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

			assert.Equal(t, tt.wantStatus, rr.Code)
			var body HealthResponse
			require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
			assert.Equal(t, tt.wantBody, body)
		})
	}
}
