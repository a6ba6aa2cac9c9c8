package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"rental_app_backend/internal/geo"
	"rental_app_backend/internal/services"
	"rental_app_backend/pkg/utils"

	"github.com/gin-gonic/gin"
)

// sseKeepAlive is how often an idle dashboard stream sends a ping.
const sseKeepAlive = 25 * time.Second

// ApplicationHandler serves applicant facing endpoints outside the form.
type ApplicationHandler struct {
	dashboardService services.DashboardService
	recoveryService  services.RecoveryService
	autocomplete     geo.Autocompleter
	streams          context.Context
}

// NewApplicationHandler creates a new ApplicationHandler. Open event streams
// end when streams is done; nil keeps them open until the client leaves.
func NewApplicationHandler(ds services.DashboardService, rs services.RecoveryService, ac geo.Autocompleter, streams context.Context) *ApplicationHandler {
	if streams == nil {
		streams = context.Background()
	}
	return &ApplicationHandler{dashboardService: ds, recoveryService: rs, autocomplete: ac, streams: streams}
}

// GetDashboard returns the status page for one application.
func (h *ApplicationHandler) GetDashboard(c *gin.Context) {
	view, err := h.dashboardService.GetDashboard(c.Request.Context(), c.Param("id"))
	if err != nil {
		if !respondLookupError(c, err) {
			utils.LogError(err, "GetDashboard: lookup failed for "+c.Param("id"))
			respondInternal(c, "Unable to load your application right now.")
		}
		return
	}
	c.JSON(http.StatusOK, view)
}

// StreamDashboard pushes a fresh dashboard view over SSE whenever the record changes.
func (h *ApplicationHandler) StreamDashboard(c *gin.Context) {
	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()
	stop := context.AfterFunc(h.streams, cancel)
	defer stop()

	views, err := h.dashboardService.Watch(ctx, c.Param("id"))
	if err != nil {
		if !respondLookupError(c, err) {
			utils.LogError(err, "StreamDashboard: watch failed for "+c.Param("id"))
			respondInternal(c, "Unable to load your application right now.")
		}
		return
	}

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	ticker := time.NewTicker(sseKeepAlive)
	defer ticker.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case view, ok := <-views:
			if !ok {
				return false
			}
			c.SSEvent("status", view)
			return true
		case <-ticker.C:
			c.SSEvent("ping", gin.H{"at": time.Now().UTC()})
			return true
		case <-ctx.Done():
			return false
		}
	})
}

// ListDocuments returns signed download links for the application's uploads.
func (h *ApplicationHandler) ListDocuments(c *gin.Context) {
	links, err := h.dashboardService.ListDocuments(c.Request.Context(), c.Param("id"))
	if err != nil {
		if !respondLookupError(c, err) {
			utils.LogError(err, "ListDocuments: lookup failed for "+c.Param("id"))
			respondInternal(c, "Unable to load documents right now.")
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"documents": links})
}

// RecoverApplicationID emails the ids on file. The answer never reveals whether any exist.
func (h *ApplicationHandler) RecoverApplicationID(c *gin.Context) {
	var req services.RecoverIDRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondValidationFailed(c, "Please enter a valid email address.", map[string]string{"email": "Please enter a valid email address"})
		return
	}
	msg, err := h.recoveryService.RecoverApplicationIDs(c.Request.Context(), req.Email)
	if err != nil {
		if errors.Is(err, services.ErrInvalidEmail) {
			utils.RespondValidationFailed(c, "Please enter a valid email address.", map[string]string{"email": "Please enter a valid email address"})
			return
		}
		utils.LogError(err, "RecoverApplicationID: Error from recoveryService")
		respondInternal(c, "Unable to process your request right now. Please try again.")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": msg})
}

// AutocompleteAddress proxies address suggestions so the API key stays on the server.
func (h *ApplicationHandler) AutocompleteAddress(c *gin.Context) {
	suggestions, err := h.autocomplete.Autocomplete(c.Request.Context(), c.Query("text"))
	if err != nil {
		switch {
		case errors.Is(err, geo.ErrQueryTooShort):
			c.JSON(http.StatusOK, gin.H{"suggestions": []string{}})
		case errors.Is(err, geo.ErrNotConfigured):
			utils.RespondWithError(c, utils.NewAPIError(http.StatusServiceUnavailable, utils.ErrCodeInternalServerError, "Address lookup is unavailable.", ""))
		default:
			utils.LogError(err, "AutocompleteAddress: upstream failure")
			utils.RespondWithError(c, utils.NewAPIError(http.StatusBadGateway, utils.ErrCodeBadGateway, "Address lookup failed.", ""))
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"suggestions": suggestions})
}
