package handlers

import (
	"net/http"

	"blackfong-core/app/dto"
	"blackfong-core/app/services"

	"github.com/gin-gonic/gin"
)

// SystemHandler handles host status and maintenance endpoints
type SystemHandler struct {
	health *services.HealthService
	backup *services.BackupService
	config dto.ConfigResponse
}

// NewSystemHandler creates a new system handler. config is served as is and
// must already be redacted.
func NewSystemHandler(health *services.HealthService, backup *services.BackupService, config dto.ConfigResponse) *SystemHandler {
	return &SystemHandler{health: health, backup: backup, config: config}
}

// Pulse returns a fresh metrics reading
func (h *SystemHandler) Pulse(c *gin.Context) {
	pulse, err := h.health.Pulse(c.Request.Context())
	if err != nil {
		respondServiceError(c, err, "failed to read system metrics")
		return
	}
	respondJSON(c, http.StatusOK, pulse)
}

// Health returns the health verdict with its inputs
func (h *SystemHandler) Health(c *gin.Context) {
	report, err := h.health.Evaluate(c.Request.Context())
	if err != nil {
		respondServiceError(c, err, "failed to evaluate health")
		return
	}
	respondJSON(c, http.StatusOK, report)
}

// Config returns the redacted configuration
func (h *SystemHandler) Config(c *gin.Context) {
	respondJSON(c, http.StatusOK, h.config)
}

// Backup runs the daily backup now
func (h *SystemHandler) Backup(c *gin.Context) {
	result, err := h.backup.EnsureDaily(c.Request.Context())
	if err != nil {
		respondServiceError(c, err, "backup failed")
		return
	}

	if result == nil {
		respondJSON(c, http.StatusOK, dto.BackupResponse{Skipped: true, Pruned: []string{}})
		return
	}

	resp := dto.BackupResponse{Artifact: result.Artifact, Pruned: result.Pruned}
	for _, err := range result.PruneErrors {
		resp.PruneErrors = append(resp.PruneErrors, err.Error())
	}
	respondJSON(c, http.StatusOK, resp)
}
