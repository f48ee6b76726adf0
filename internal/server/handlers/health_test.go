package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/gophsync/pkg/api"
)

func TestHealthHandler_Health(t *testing.T) {
	handler := NewHealthHandler(setupTestLogger(), "")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	w := httptest.NewRecorder()

	handler.Health(w, req)

	resp := w.Result()
	defer func() {
		err := resp.Body.Close()
		assert.NoError(t, err)
	}()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var healthResp HealthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&healthResp))
	assert.Equal(t, "ok", healthResp.Status)
	assert.Equal(t, "dev", healthResp.Version)
}

func TestHealthHandler_Ping(t *testing.T) {
	handler := NewHealthHandler(setupTestLogger(), "1.2.3")
	fixed := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	handler.now = func() time.Time { return fixed }

	w := httptest.NewRecorder()
	handler.Ping(w, httptest.NewRequest(http.MethodGet, "/api/v1/ping", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var resp api.PingResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, fixed.Equal(resp.ServerTime))
}

func TestHealthHandler_Bandwidth(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		wantStatus int
		wantBytes  int
	}{
		{name: "default size", query: "", wantStatus: http.StatusOK, wantBytes: DefaultBandwidthBytes},
		{name: "explicit size", query: "?bytes=100000", wantStatus: http.StatusOK, wantBytes: 100000},
		{name: "capped", query: "?bytes=" + strconv.Itoa(MaxBandwidthBytes*2), wantStatus: http.StatusOK, wantBytes: MaxBandwidthBytes},
		{name: "invalid", query: "?bytes=abc", wantStatus: http.StatusBadRequest},
		{name: "zero", query: "?bytes=0", wantStatus: http.StatusBadRequest},
	}

	handler := NewHealthHandler(setupTestLogger(), "")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			handler.Bandwidth(w, httptest.NewRequest(http.MethodGet, "/api/v1/bandwidth"+tt.query, nil))

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus != http.StatusOK {
				return
			}
			body, err := io.ReadAll(w.Body)
			require.NoError(t, err)
			assert.Len(t, body, tt.wantBytes)
		})
	}
}
