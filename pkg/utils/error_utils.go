package utils

import (
	"net/http"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
)

// APIError is the standard error body returned by every endpoint.
type APIError struct {
	StatusCode  int               `json:"-"`
	Code        string            `json:"code,omitempty"`
	Message     string            `json:"message"`
	Details     string            `json:"details,omitempty"`
	FieldErrors map[string]string `json:"field_errors,omitempty"`
}

// NewAPIError creates a new APIError instance
func NewAPIError(statusCode int, code string, message string, details string) *APIError {
	return &APIError{
		StatusCode: statusCode,
		Code:       code,
		Message:    message,
		Details:    details,
	}
}

// RespondWithError sends a standardized JSON error response
func RespondWithError(c *gin.Context, err *APIError) {
	c.JSON(err.StatusCode, gin.H{"error": err})
	c.Abort()
}

const (
	ErrCodeBadRequest           = "BAD_REQUEST"
	ErrCodeUnauthorized         = "UNAUTHORIZED"
	ErrCodeForbidden            = "FORBIDDEN"
	ErrCodeNotFound             = "NOT_FOUND"
	ErrCodeConflict             = "CONFLICT"
	ErrCodeInternalServerError  = "INTERNAL_SERVER_ERROR"
	ErrCodeValidationFailed     = "VALIDATION_FAILED"
	ErrCodeInvalidApplicationID = "INVALID_APPLICATION_ID"
	ErrCodeConfirmationRequired = "CONFIRMATION_REQUIRED"
	ErrCodeBadGateway           = "BAD_GATEWAY"
)

var emailRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// IsValidEmail reports whether s looks like local@domain.tld.
func IsValidEmail(email string) bool {
	return emailRegex.MatchString(strings.TrimSpace(email))
}

// IsValidPasswordLength checks if password meets minimum length requirement.
func IsValidPasswordLength(password string, minLength int) bool {
	return len(password) >= minLength
}

// RespondValidationFailed sends a 400 with per-field messages.
func RespondValidationFailed(c *gin.Context, message string, fieldErrors map[string]string) {
	apiErr := NewAPIError(http.StatusBadRequest, ErrCodeValidationFailed, message, "")
	apiErr.FieldErrors = fieldErrors
	RespondWithError(c, apiErr)
}
