package handlers

import (
	"net/http"

	"blackfong-core/app/domains"
	"blackfong-core/app/dto"
	"blackfong-core/app/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// CommandHandler handles command ledger endpoints
type CommandHandler struct {
	commands *services.CommandService
}

// NewCommandHandler creates a new command handler
func NewCommandHandler(commands *services.CommandService) *CommandHandler {
	return &CommandHandler{commands: commands}
}

// Allowed lists the allow-listed command names
func (h *CommandHandler) Allowed(c *gin.Context) {
	respondJSON(c, http.StatusOK, dto.AllowedCommandsResponse{Allowed: h.commands.AllowedCommands()})
}

// Run executes an allow-listed command and returns its run. A DENIED run is
// returned with 403.
func (h *CommandHandler) Run(c *gin.Context) {
	run, err := h.commands.Run(c.Request.Context(), c.Param("name"), GetRequester(c))
	if err != nil {
		respondServiceError(c, err, "failed to run command")
		return
	}

	status := http.StatusOK
	if run.Status == domains.RunDenied {
		status = http.StatusForbidden
	}
	respondJSON(c, status, run)
}

// ListRuns lists runs, newest first
func (h *CommandHandler) ListRuns(c *gin.Context) {
	limit, ok := bindLimit(c)
	if !ok {
		return
	}

	runs, err := h.commands.ListRuns(c.Request.Context(), limit)
	if err != nil {
		respondServiceError(c, err, "failed to list runs")
		return
	}

	respondJSON(c, http.StatusOK, runs)
}

// GetRun returns a single run
func (h *CommandHandler) GetRun(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid run id", nil)
		return
	}

	run, err := h.commands.GetRun(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err, "failed to get run")
		return
	}

	respondJSON(c, http.StatusOK, run)
}
