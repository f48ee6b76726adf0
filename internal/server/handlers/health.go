package handlers

import (
	"bytes"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/iudanet/gophsync/pkg/api"
)

const (
	// DefaultBandwidthBytes размер ответа bandwidth-пробы по умолчанию
	DefaultBandwidthBytes = 64 << 10
	// MaxBandwidthBytes верхняя граница размера пробы
	MaxBandwidthBytes = 8 << 20
)

// HealthHandler обрабатывает health, ping и bandwidth запросы
type HealthHandler struct {
	logger  *slog.Logger
	now     func() time.Time
	version string
}

// NewHealthHandler создает новый handler для health check
func NewHealthHandler(logger *slog.Logger, version string) *HealthHandler {
	if version == "" {
		version = "dev"
	}
	return &HealthHandler{
		logger:  logger,
		now:     time.Now,
		version: version,
	}
}

// HealthResponse представляет ответ health check
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}

// Health обрабатывает GET /api/v1/health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.logger, http.StatusOK, HealthResponse{Status: "ok", Version: h.version})
}

// Ping обрабатывает GET /api/v1/ping, используется heartbeat-ом клиента
func (h *HealthHandler) Ping(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.logger, http.StatusOK, api.PingResponse{Status: "ok", ServerTime: h.now().UTC()})
}

// Bandwidth обрабатывает GET /api/v1/bandwidth?bytes=N и отдает N байт
func (h *HealthHandler) Bandwidth(w http.ResponseWriter, r *http.Request) {
	size := DefaultBandwidthBytes
	if raw := r.URL.Query().Get("bytes"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, h.logger, http.StatusBadRequest, CodeBadRequest, "bytes must be a positive integer")
			return
		}
		size = min(n, MaxBandwidthBytes)
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.Itoa(size))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)

	chunk := bytes.Repeat([]byte{'x'}, min(size, 32<<10))
	for written := 0; written < size; {
		n := min(len(chunk), size-written)
		if _, err := w.Write(chunk[:n]); err != nil {
			h.logger.Debug("bandwidth probe aborted", "error", err)
			return
		}
		written += n
	}
}
