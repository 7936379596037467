package handlers

import (
	"errors"
	"net/http"

	"pilgrimage/internal/domain"
	"pilgrimage/internal/http/middleware"
	"pilgrimage/internal/utils"

	"github.com/gin-gonic/gin"
)

// ErrorResponse standardizes error payloads.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

func respondError(c *gin.Context, status int, code, message string, details any) {
	if code == "" {
		code = http.StatusText(status)
	}
	resp := ErrorResponse{
		Error:   message,
		Code:    code,
		Details: details,
	}
	reqID := middleware.GetRequestID(c)
	if reqID != "" {
		c.JSON(status, gin.H{
			"error":      resp.Error,
			"code":       resp.Code,
			"details":    resp.Details,
			"request_id": reqID,
			"message":    message,
		})
		return
	}
	c.JSON(status, resp)
}

// RespondDomainError maps domain errors to HTTP responses.
func RespondDomainError(c *gin.Context, err error) {
	var capErr domain.CapacityError
	var terminal domain.TerminalStateError
	switch {
	case errors.As(err, &capErr):
		respondError(c, http.StatusBadRequest, "insufficient_capacity", "not enough available slots", gin.H{
			"trip_id":   capErr.TripID,
			"requested": capErr.Requested,
			"available": capErr.Available,
		})
	case errors.Is(err, domain.ErrInvalidSeatCount):
		respondError(c, http.StatusBadRequest, "invalid_seat_count", err.Error(), nil)
	case domain.IsValidation(err):
		respondError(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
	case errors.As(err, &terminal):
		respondError(c, http.StatusConflict, "terminal_state", err.Error(), gin.H{"status": terminal.Status})
	case domain.IsNotFound(err):
		respondError(c, http.StatusNotFound, "not_found", err.Error(), nil)
	case domain.IsConflict(err):
		respondError(c, http.StatusConflict, "conflict", err.Error(), nil)
	case domain.IsForbidden(err):
		respondError(c, http.StatusForbidden, "forbidden", err.Error(), nil)
	case domain.IsUnavailable(err):
		utils.LogEvent(middleware.GetRequestID(c), "http", "store_unavailable", err.Error())
		c.Header("Retry-After", "1")
		respondError(c, http.StatusServiceUnavailable, "store_unavailable", "service temporarily unavailable, please retry", nil)
	default:
		utils.LogEvent(middleware.GetRequestID(c), "http", "internal_error", err.Error())
		respondError(c, http.StatusInternalServerError, "internal_error", "something went wrong", nil)
	}
}
