package handlers

import (
	"net/http"

	"blackfong-core/app/services"

	"github.com/gin-gonic/gin"
)

// UnitHandler handles systemd unit control
type UnitHandler struct {
	units *services.UnitService
}

// NewUnitHandler creates a new unit handler
func NewUnitHandler(units *services.UnitService) *UnitHandler {
	return &UnitHandler{units: units}
}

// Act runs start, stop, restart or status on a unit
func (h *UnitHandler) Act(c *gin.Context) {
	result, err := h.units.Act(c.Request.Context(), c.Param("unit"), c.Param("action"), GetRequester(c))
	if err != nil {
		respondServiceError(c, err, "service action failed")
		return
	}
	respondJSON(c, http.StatusOK, result)
}
