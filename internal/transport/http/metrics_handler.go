package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

// HubMetricsSource exposes WebSocket hub counters
type HubMetricsSource interface {
	GetHubMetrics() map[string]interface{}
}

// QueueStatsSource exposes run queue counters
type QueueStatsSource interface {
	QueueStats() map[string]int
}

// MetricsHandler handles system metrics and health endpoints
type MetricsHandler struct {
	hub   HubMetricsSource
	queue QueueStatsSource
}

// NewMetricsHandler creates a new metrics handler
func NewMetricsHandler(hub HubMetricsSource, queue QueueStatsSource) *MetricsHandler {
	return &MetricsHandler{hub: hub, queue: queue}
}

// Routes sets up the metrics routes
func (h *MetricsHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/health", h.GetHealth)
	r.Get("/metrics", h.GetMetrics)
	return r
}

// GetHealth returns basic health status
func (h *MetricsHandler) GetHealth(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	render.JSON(w, r, response)
}

// GetMetrics returns WebSocket and run queue counters
func (h *MetricsHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	metrics := map[string]interface{}{}
	if h.hub != nil {
		metrics["websocket"] = h.hub.GetHubMetrics()
	}
	if h.queue != nil {
		metrics["queue"] = h.queue.QueueStats()
	}

	response := map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"metrics":   metrics,
	}
	render.JSON(w, r, response)
}
