// README: Base handler utilities (JSON helpers, error mapping).
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"tripgen/internal/modules/job"
	"tripgen/internal/modules/recommend"
	"tripgen/internal/modules/schedule"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func writeError(c *gin.Context, status int, msg string) {
	writeJSON(c, status, errorResponse{Error: msg})
}

func writeJobError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, job.ErrNotFound),
		errors.Is(err, recommend.ErrNotFound),
		errors.Is(err, schedule.ErrNotFound):
		writeError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, job.ErrBadRequest), errors.Is(err, job.ErrUnknownJobType):
		writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, job.ErrInvalidState),
		errors.Is(err, job.ErrNotRetryable),
		errors.Is(err, job.ErrDuplicateRequest):
		writeError(c, http.StatusConflict, err.Error())
	default:
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}
