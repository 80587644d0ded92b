package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/mrlokans/wordsync/internal/apperrors"
)

// --- Response Types ---

// ErrorResponse is the standard error response format for all API errors.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"` // machine-readable error code
}

// SuccessResponse is a standard success response with optional data.
type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// --- Error Response Helpers ---

// respondBadRequest sends a 400 Bad Request response.
func respondBadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: message, Code: "invalid_input"})
}

// respondNotFound sends a 404 Not Found response.
func respondNotFound(c *gin.Context, resource string) {
	c.JSON(http.StatusNotFound, ErrorResponse{Error: resource + " not found", Code: "not_found"})
}

// respondError maps err onto a status code through the apperrors sentinels.
// Unknown errors are logged and reported as 500 without details.
func respondError(c *gin.Context, log zerolog.Logger, err error, context string) {
	status, code := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("context", context).Msg("internal error")
		c.JSON(status, ErrorResponse{Error: "internal server error", Code: code})
		return
	}
	if status == http.StatusBadGateway {
		log.Warn().Err(err).Str("context", context).Msg("remote failure")
	}
	c.JSON(status, ErrorResponse{Error: err.Error(), Code: code})
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, apperrors.ErrInvalidInput):
		return http.StatusBadRequest, "invalid_input"
	case errors.Is(err, apperrors.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, apperrors.ErrSignInRequired):
		return http.StatusUnauthorized, "sign_in_required"
	case errors.Is(err, apperrors.ErrRemoteFailure):
		return http.StatusBadGateway, "remote_failure"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

// --- Success Response Helpers ---

// respondSuccess sends a 200 OK response with data.
func respondSuccess(c *gin.Context, data any) {
	c.JSON(http.StatusOK, SuccessResponse{Success: true, Data: data})
}

// respondCreated sends a 201 Created response with data.
func respondCreated(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, data)
}

// --- Parameter Parsing ---

// parseLimitQuery reads an optional positive integer query parameter capped at
// max. Returns def when absent, or responds with 400 and false when malformed.
func parseLimitQuery(c *gin.Context, name string, def, max int) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		respondBadRequest(c, "invalid "+name)
		return 0, false
	}
	if n > max {
		n = max
	}
	return n, true
}

// requireParam returns a non-empty path parameter or responds with 400.
func requireParam(c *gin.Context, name string) (string, bool) {
	value := c.Param(name)
	if value == "" {
		respondBadRequest(c, name+" is required")
		return "", false
	}
	return value, true
}
