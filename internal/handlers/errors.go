package handlers

import (
	"errors"
	"net/http"

	"rental_app_backend/internal/services"
	"rental_app_backend/pkg/utils"

	"github.com/gin-gonic/gin"
)

const msgCorrectFields = "Please correct the highlighted fields."

// respondSubmissionError maps submission pipeline failures. It reports false
// when err is not a submission error so callers can keep mapping.
func respondSubmissionError(c *gin.Context, err error) bool {
	var verr *services.SubmissionValidationError
	switch {
	case errors.As(err, &verr):
		utils.RespondValidationFailed(c, msgCorrectFields, verr.FieldErrors)
	case errors.Is(err, services.ErrConfirmationRequired):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeConfirmationRequired, "Please confirm the information is accurate before submitting.", ""))
	case errors.Is(err, services.ErrSubmissionFailed), errors.Is(err, services.ErrIDAllocation):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusInternalServerError, utils.ErrCodeInternalServerError, "Submission failed. Please try again.", "Internal error"))
	default:
		return false
	}
	return true
}

// respondLookupError maps application id lookups shared by the dashboard and admin panel.
func respondLookupError(c *gin.Context, err error) bool {
	switch {
	case errors.Is(err, services.ErrInvalidApplicationID):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeInvalidApplicationID, "Invalid application ID format.", ""))
	case errors.Is(err, services.ErrApplicationNotFound):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusNotFound, utils.ErrCodeNotFound, "Application not found.", ""))
	default:
		return false
	}
	return true
}

func respondInternal(c *gin.Context, message string) {
	utils.RespondWithError(c, utils.NewAPIError(http.StatusInternalServerError, utils.ErrCodeInternalServerError, message, "Internal error"))
}
