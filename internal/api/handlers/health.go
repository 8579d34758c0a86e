package handlers

import (
	"net/http"
	"runtime"
	"time"

	"github.com/anstrom/tellix/internal/logging"
	"github.com/anstrom/tellix/internal/probe"
)

// Status constants.
const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
)

// StatsProvider reports invocation slot usage.
type StatsProvider interface {
	Stats() probe.LimiterStats
}

// HealthHandler handles health and version endpoints.
type HealthHandler struct {
	stats     StatsProvider
	version   string
	logger    *logging.Logger
	startTime time.Time
}

// HealthResponse represents a health check response.
type HealthResponse struct {
	Status    string             `json:"status"`
	Timestamp time.Time          `json:"timestamp"`
	Uptime    string             `json:"uptime"`
	Probes    probe.LimiterStats `json:"probes"`
}

// VersionResponse represents version information.
type VersionResponse struct {
	Service   string    `json:"service"`
	Version   string    `json:"version"`
	GoVersion string    `json:"go_version"`
	Timestamp time.Time `json:"timestamp"`
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(stats StatsProvider, version string, logger *logging.Logger) *HealthHandler {
	return &HealthHandler{
		stats:     stats,
		version:   version,
		logger:    logger.WithFields("handler", "health"),
		startTime: time.Now(),
	}
}

// Health reports whether probes are being accepted.
// @Summary Health check
// @Description Returns service health and invocation slot usage
// @Tags System
// @Produce json
// @Success 200 {object} HealthResponse
// @Failure 503 {object} HealthResponse
// @Router /health [get]
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	stats := h.stats.Stats()

	response := HealthResponse{
		Status:    StatusHealthy,
		Timestamp: time.Now().UTC(),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		Probes:    stats,
	}

	statusCode := http.StatusOK
	if stats.Closed {
		response.Status = StatusUnhealthy
		statusCode = http.StatusServiceUnavailable
	}

	writeJSON(w, r, h.logger, statusCode, response)
}

// Version reports the build version.
// @Summary Version information
// @Description Returns version and build info
// @Tags System
// @Produce json
// @Success 200 {object} VersionResponse
// @Router /version [get]
func (h *HealthHandler) Version(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, h.logger, http.StatusOK, VersionResponse{
		Service:   "tellix",
		Version:   h.version,
		GoVersion: runtime.Version(),
		Timestamp: time.Now().UTC(),
	})
}
