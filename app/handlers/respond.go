package handlers

import (
	"errors"
	"net/http"

	"blackfong-core/app/domains"
	"blackfong-core/app/dto"

	"github.com/gin-gonic/gin"
)

// respondJSON sends a JSON response
func respondJSON(c *gin.Context, status int, data interface{}) {
	c.JSON(status, data)
}

// respondError sends an error response
func respondError(c *gin.Context, status int, message string, details map[string]string) {
	c.JSON(status, dto.ErrorResponse{
		Error:   message,
		Details: details,
	})
}

// respondServiceError maps domain errors to 4xx and everything else to a 500
// with a generic message. The error is attached to the context for the
// request logger.
func respondServiceError(c *gin.Context, err error, fallback string) {
	_ = c.Error(err)
	switch {
	case errors.Is(err, domains.ErrInvalidArgument):
		respondError(c, http.StatusBadRequest, err.Error(), nil)
	case errors.Is(err, domains.ErrPolicyDenied):
		respondError(c, http.StatusForbidden, err.Error(), nil)
	case errors.Is(err, domains.ErrNodeNotFound), errors.Is(err, domains.ErrRunNotFound):
		respondError(c, http.StatusNotFound, err.Error(), nil)
	default:
		respondError(c, http.StatusInternalServerError, fallback, nil)
	}
}

func bindLimit(c *gin.Context) (int, bool) {
	var q dto.ListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondError(c, http.StatusBadRequest, "invalid limit", nil)
		return 0, false
	}
	return q.Limit, true
}
