package handlers

import (
	"errors"
	"net/http"

	"rental_app_backend/internal/middleware"
	"rental_app_backend/internal/services"
	"rental_app_backend/pkg/utils"

	"github.com/gin-gonic/gin"
)

// AuthHandler holds the authentication service.
type AuthHandler struct {
	authService services.AuthService
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(as services.AuthService) *AuthHandler {
	return &AuthHandler{authService: as}
}

// Login handles admin login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req services.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.LogError(err, "Login: Failed to bind JSON")
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed, "Email and password are required.", err.Error()))
		return
	}

	authResp, err := h.authService.Login(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			utils.LogWarn(err, "Login: rejected credentials")
			utils.RespondWithError(c, utils.NewAPIError(http.StatusUnauthorized, utils.ErrCodeUnauthorized, "Invalid email or password.", ""))
		} else {
			utils.LogError(err, "Login: Error from authService.Login")
			respondInternal(c, "Failed to login.")
		}
		return
	}
	c.JSON(http.StatusOK, authResp)
}

// GetCurrentAdmin returns the signed in admin's profile.
func (h *AuthHandler) GetCurrentAdmin(c *gin.Context) {
	adminID, _, ok := middleware.AdminIdentity(c)
	if !ok {
		utils.RespondWithError(c, utils.NewAPIError(http.StatusUnauthorized, utils.ErrCodeUnauthorized, "Not authenticated.", "Missing admin ID in context"))
		return
	}

	admin, err := h.authService.GetAdminProfile(c.Request.Context(), adminID)
	if err != nil {
		if errors.Is(err, services.ErrAdminNotFound) {
			utils.RespondWithError(c, utils.NewAPIError(http.StatusNotFound, utils.ErrCodeNotFound, "Admin profile not found.", ""))
		} else {
			utils.LogError(err, "GetCurrentAdmin: Error from authService.GetAdminProfile for adminID "+utils.Int64ToStr(adminID))
			respondInternal(c, "Failed to retrieve admin profile.")
		}
		return
	}
	c.JSON(http.StatusOK, admin)
}
