package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"taxi/internal/service"
)

// Response is the envelope of every API response.
type Response struct {
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// respondError sends an error response with the appropriate HTTP status code.
// Unexpected errors are logged and reported without internal detail.
func respondError(c *gin.Context, err error) {
	code := mapErrorToHTTPStatus(err)
	msg := err.Error()
	if code == http.StatusInternalServerError {
		_ = c.Error(err)
		msg = "Internal server error."
	}
	c.JSON(code, Response{OK: false, Message: msg})
}

// respondJSON sends a successful response with the given status code.
func respondJSON(c *gin.Context, code int, message string, data any) {
	c.JSON(code, Response{OK: true, Message: message, Data: data})
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, Response{OK: false, Message: message})
}

// mapErrorToHTTPStatus maps service errors to HTTP status codes.
func mapErrorToHTTPStatus(err error) int {
	switch {
	case errors.Is(err, service.ErrValidation):
		return http.StatusBadRequest

	case errors.Is(err, service.ErrBookingNotFound),
		errors.Is(err, service.ErrCustomerNotFound),
		errors.Is(err, service.ErrDriverNotFound):
		return http.StatusNotFound

	case errors.Is(err, service.ErrInvalidState),
		errors.Is(err, service.ErrAlreadyCancelled),
		errors.Is(err, service.ErrAlreadyCompleted),
		errors.Is(err, service.ErrDuplicateRoute),
		errors.Is(err, service.ErrDriverOverlap),
		errors.Is(err, service.ErrNoDriversAvailable):
		return http.StatusConflict

	case errors.Is(err, service.ErrBusy):
		return http.StatusServiceUnavailable

	default:
		return http.StatusInternalServerError
	}
}

// idParam parses a positive integer path parameter.
func idParam(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "Invalid "+name+".")
		return 0, false
	}
	return id, true
}
