package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"time"

	"rental_app_backend/internal/middleware"
	"rental_app_backend/internal/services"
	"rental_app_backend/pkg/utils"

	"github.com/gin-gonic/gin"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// AdminHandler serves the review panel.
type AdminHandler struct {
	adminService services.AdminService
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(as services.AdminService) *AdminHandler {
	return &AdminHandler{adminService: as}
}

func listRequest(c *gin.Context) services.ListApplicationsRequest {
	return services.ListApplicationsRequest{
		Page:          utils.QueryInt(c.Query("page"), 1, 0),
		PageSize:      utils.QueryInt(c.Query("page_size"), services.DefaultPageSize, services.MaxPageSize),
		Search:        c.Query("search"),
		Status:        c.Query("status"),
		PaymentStatus: c.Query("payment_status"),
	}
}

func (h *AdminHandler) respondError(c *gin.Context, err error, op string) {
	switch {
	case respondLookupError(c, err):
	case errors.Is(err, services.ErrInvalidStatus):
		utils.RespondValidationFailed(c, "Invalid status.", map[string]string{"status": "Unknown application status"})
	case errors.Is(err, services.ErrInvalidPaymentStatus):
		utils.RespondValidationFailed(c, "Invalid payment status.", map[string]string{"payment_status": "Unknown payment status"})
	case errors.Is(err, services.ErrConfirmationRequired):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeConfirmationRequired, "Please confirm this action.", ""))
	case errors.Is(err, services.ErrPaymentAlreadyRecorded):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusConflict, utils.ErrCodeConflict, "Payment has already been recorded for this application.", ""))
	case errors.Is(err, services.ErrInvalidStatusTransition):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusConflict, utils.ErrCodeConflict, "A paid application cannot return to awaiting payment.", ""))
	default:
		utils.LogError(err, "AdminHandler: "+op+" failed")
		respondInternal(c, "The action could not be completed. Please try again.")
	}
}

func actor(c *gin.Context) string {
	_, email, _ := middleware.AdminIdentity(c)
	return email
}

// ListApplications returns a page of applications, newest first.
func (h *AdminHandler) ListApplications(c *gin.Context) {
	list, err := h.adminService.ListApplications(c.Request.Context(), listRequest(c))
	if err != nil {
		h.respondError(c, err, "ListApplications")
		return
	}
	c.JSON(http.StatusOK, list)
}

// GetApplication returns the full record including form data.
func (h *AdminHandler) GetApplication(c *gin.Context) {
	app, err := h.adminService.GetApplication(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err, "GetApplication")
		return
	}
	c.JSON(http.StatusOK, app)
}

// MarkPaymentReceived records the application fee.
func (h *AdminHandler) MarkPaymentReceived(c *gin.Context) {
	var req services.MarkPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeBadRequest, "Invalid request payload", err.Error()))
		return
	}
	app, err := h.adminService.MarkPaymentReceived(c.Request.Context(), c.Param("id"), actor(c), req)
	if err != nil {
		h.respondError(c, err, "MarkPaymentReceived")
		return
	}
	c.JSON(http.StatusOK, app)
}

// ChangeApplicationStatus sets the review decision.
func (h *AdminHandler) ChangeApplicationStatus(c *gin.Context) {
	var req services.ChangeStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondValidationFailed(c, "Invalid request payload.", map[string]string{"status": "Status is required"})
		return
	}
	app, err := h.adminService.ChangeApplicationStatus(c.Request.Context(), c.Param("id"), actor(c), req)
	if err != nil {
		h.respondError(c, err, "ChangeApplicationStatus")
		return
	}
	c.JSON(http.StatusOK, app)
}

// ExportApplications downloads the filtered list as an Excel workbook.
func (h *AdminHandler) ExportApplications(c *gin.Context) {
	apps, err := h.adminService.ExportApplications(c.Request.Context(), listRequest(c))
	if err != nil {
		h.respondError(c, err, "ExportApplications")
		return
	}
	var buf bytes.Buffer
	if err := writeApplicationsWorkbook(&buf, apps); err != nil {
		utils.LogError(err, "ExportApplications: workbook render failed")
		respondInternal(c, "Export failed.")
		return
	}
	filename := fmt.Sprintf("applications-%s.xlsx", time.Now().UTC().Format("20060102"))
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}
