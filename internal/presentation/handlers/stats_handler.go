package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/bimakw/token-radar/internal/application/services"
)

// StatsHandler handles HTTP requests for registry statistics
type StatsHandler struct {
	service *services.TokenService
	logger  *zap.Logger
}

// NewStatsHandler creates a new stats handler
func NewStatsHandler(service *services.TokenService, logger *zap.Logger) *StatsHandler {
	return &StatsHandler{
		service: service,
		logger:  logger,
	}
}

// GetStats handles GET /api/v1/stats
func (h *StatsHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	response, err := h.service.Stats(r.Context())
	if err != nil {
		h.logger.Error("Failed to get stats", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "Failed to get stats")
		return
	}

	respondJSON(w, http.StatusOK, response)
}
