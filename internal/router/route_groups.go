package router

import (
	"rental_app_backend/internal/handlers"
	"rental_app_backend/internal/middleware"
	"rental_app_backend/pkg/utils"

	"github.com/gin-gonic/gin"
)

// SetupDraftRoutes sets up the application form routes.
func SetupDraftRoutes(apiGroup *gin.RouterGroup, draftHandler *handlers.DraftHandler) {
	draftRoutes := apiGroup.Group("/drafts")
	{
		draftRoutes.POST("", draftHandler.CreateDraft)
		draftRoutes.GET("/:id", draftHandler.GetDraft)
		draftRoutes.PATCH("/:id/fields", draftHandler.UpdateDraftFields)
		draftRoutes.POST("/:id/advance", draftHandler.AdvanceDraft)
		draftRoutes.POST("/:id/retreat", draftHandler.RetreatDraft)
		draftRoutes.DELETE("/:id", draftHandler.StartOver)
		draftRoutes.POST("/:id/documents", draftHandler.UploadDocument)
		draftRoutes.POST("/:id/submit", draftHandler.SubmitDraft)
	}
}

// SetupApplicationRoutes sets up the public applicant routes.
func SetupApplicationRoutes(apiGroup *gin.RouterGroup, applicationHandler *handlers.ApplicationHandler) {
	applicationRoutes := apiGroup.Group("/applications")
	{
		applicationRoutes.GET("/:id", applicationHandler.GetDashboard)
		applicationRoutes.GET("/:id/events", applicationHandler.StreamDashboard)
		applicationRoutes.GET("/:id/documents", applicationHandler.ListDocuments)
	}
	apiGroup.POST("/recover-id", applicationHandler.RecoverApplicationID)
	apiGroup.GET("/address/autocomplete", applicationHandler.AutocompleteAddress)
}

// SetupAdminRoutes sets up the review panel routes. Everything except login
// needs a valid token, and the application routes also need an allowlisted email.
func SetupAdminRoutes(apiGroup *gin.RouterGroup, authHandler *handlers.AuthHandler, adminHandler *handlers.AdminHandler, tokens *utils.TokenManager, allowlist []string) {
	adminRoutes := apiGroup.Group("/admin")
	adminRoutes.POST("/login", authHandler.Login)

	authenticated := adminRoutes.Group("")
	authenticated.Use(middleware.AuthMiddleware(tokens))
	{
		authenticated.GET("/me", authHandler.GetCurrentAdmin)

		applicationRoutes := authenticated.Group("/applications")
		applicationRoutes.Use(middleware.AdminAllowlistMiddleware(allowlist))
		{
			applicationRoutes.GET("", adminHandler.ListApplications)
			applicationRoutes.GET("/export.xlsx", adminHandler.ExportApplications)
			applicationRoutes.GET("/:id", adminHandler.GetApplication)
			applicationRoutes.POST("/:id/payment", adminHandler.MarkPaymentReceived)
			applicationRoutes.POST("/:id/status", adminHandler.ChangeApplicationStatus)
		}
	}
}
