package handlers

import (
	"net/http"

	"blackfong-core/app/services"

	"github.com/gin-gonic/gin"
)

// EventHandler serves the audit log
type EventHandler struct {
	events *services.EventService
}

// NewEventHandler creates a new event handler
func NewEventHandler(events *services.EventService) *EventHandler {
	return &EventHandler{events: events}
}

// ListEvents lists audit entries, newest first
func (h *EventHandler) ListEvents(c *gin.Context) {
	limit, ok := bindLimit(c)
	if !ok {
		return
	}

	events, err := h.events.List(c.Request.Context(), limit)
	if err != nil {
		respondServiceError(c, err, "failed to list events")
		return
	}
	respondJSON(c, http.StatusOK, events)
}
