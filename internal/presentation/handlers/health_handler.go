package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// HealthChecker defines the interface for health checking components
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// DiscoveryStatus reports whether the discovery workers are running
type DiscoveryStatus interface {
	Running() bool
	Workers() []string
}

// HealthHandler handles health check requests
type HealthHandler struct {
	chain     HealthChecker
	cache     HealthChecker
	discovery DiscoveryStatus
}

// NewHealthHandler creates a new health handler. cache and discovery may be nil.
func NewHealthHandler(chain, cache HealthChecker, discovery DiscoveryStatus) *HealthHandler {
	return &HealthHandler{
		chain:     chain,
		cache:     cache,
		discovery: discovery,
	}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Services  map[string]string `json:"services"`
	Workers   []string          `json:"workers,omitempty"`
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Services:  make(map[string]string),
	}

	// The chain is the only hard dependency
	if err := h.chain.HealthCheck(ctx); err != nil {
		response.Status = "unhealthy"
		response.Services["chain"] = "unhealthy: " + err.Error()
	} else {
		response.Services["chain"] = "healthy"
	}

	if h.cache != nil {
		if err := h.cache.HealthCheck(ctx); err != nil {
			if response.Status == "healthy" {
				response.Status = "degraded"
			}
			response.Services["cache"] = "unhealthy: " + err.Error()
		} else {
			response.Services["cache"] = "healthy"
		}
	}

	if h.discovery != nil {
		if h.discovery.Running() {
			response.Services["discovery"] = "running"
		} else {
			if response.Status == "healthy" {
				response.Status = "degraded"
			}
			response.Services["discovery"] = "stopped"
		}
		response.Workers = h.discovery.Workers()
	}

	status := http.StatusOK
	if response.Status == "unhealthy" {
		status = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(response)
}

// Ready handles GET /ready (Kubernetes readiness check)
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.chain.HealthCheck(ctx); err != nil {
		http.Error(w, "not ready", http.StatusServiceUnavailable)
		return
	}
	if h.discovery != nil && !h.discovery.Running() {
		http.Error(w, "not ready", http.StatusServiceUnavailable)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ready"))
}

// Live handles GET /live (Kubernetes liveness check)
func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("alive"))
}
