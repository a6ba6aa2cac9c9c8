package router

import (
	"context"

	"rental_app_backend/internal/autosave"
	"rental_app_backend/internal/events"
	"rental_app_backend/internal/geo"
	"rental_app_backend/internal/handlers"
	"rental_app_backend/internal/repositories"
	"rental_app_backend/internal/services"
	"rental_app_backend/internal/storage"
	"rental_app_backend/pkg/utils"

	"github.com/gin-gonic/gin"
)

// Dependencies are the collaborators chosen by the caller, Postgres or memory,
// S3 or memory and so on.
type Dependencies struct {
	Applications repositories.ApplicationRepository
	Admins       repositories.AdminRepository
	Drafts       repositories.DraftRepository
	Blobs        storage.BlobStore
	Broker       events.Broker
	Notifier     services.Notifier
	Geo          geo.Autocompleter
	Tokens       *utils.TokenManager
	Debouncer    *autosave.Debouncer

	AdminAllowlist []string
	Dashboard      services.DashboardOptions
	MaxUploadBytes int64
	// Streams ends open SSE streams when done, typically on server shutdown.
	Streams context.Context
	// IDGenerator overrides application id allocation; nil uses services.NewApplicationID.
	IDGenerator services.IDGenerator
}

// Services exposes the built services for startup and shutdown hooks.
type Services struct {
	Auth       services.AuthService
	Drafts     services.DraftService
	Submission services.SubmissionService
	Dashboard  services.DashboardService
	Recovery   services.RecoveryService
	Admin      services.AdminService
}

// Setup initializes the routing for the application.
func Setup(engine *gin.Engine, deps Dependencies) *Services {
	// Initialize Services
	authService := services.NewAuthService(deps.Admins, deps.Tokens)
	submissionService := services.NewSubmissionService(deps.Applications, deps.Broker, deps.Notifier, deps.IDGenerator)
	draftService := services.NewDraftService(deps.Drafts, submissionService, deps.Blobs, deps.Debouncer, deps.IDGenerator, deps.MaxUploadBytes)
	dashboardService := services.NewDashboardService(deps.Applications, deps.Blobs, deps.Broker, deps.Dashboard)
	recoveryService := services.NewRecoveryService(deps.Applications, deps.Notifier)
	adminService := services.NewAdminService(deps.Applications, deps.Broker, deps.Notifier)

	// Initialize Handlers
	authHandler := handlers.NewAuthHandler(authService)
	draftHandler := handlers.NewDraftHandler(draftService)
	applicationHandler := handlers.NewApplicationHandler(dashboardService, recoveryService, deps.Geo, deps.Streams)
	adminHandler := handlers.NewAdminHandler(adminService)

	apiV1 := engine.Group("/api/v1")
	SetupDraftRoutes(apiV1, draftHandler)
	SetupApplicationRoutes(apiV1, applicationHandler)
	SetupAdminRoutes(apiV1, authHandler, adminHandler, deps.Tokens, deps.AdminAllowlist)

	return &Services{
		Auth:       authService,
		Drafts:     draftService,
		Submission: submissionService,
		Dashboard:  dashboardService,
		Recovery:   recoveryService,
		Admin:      adminService,
	}
}
