package handlers

import (
	"errors"
	"net/http"

	"rental_app_backend/internal/services"
	"rental_app_backend/pkg/utils"

	"github.com/gin-gonic/gin"
)

// DraftHandler serves the multi-step application form.
type DraftHandler struct {
	draftService services.DraftService
}

// NewDraftHandler creates a new DraftHandler.
func NewDraftHandler(ds services.DraftService) *DraftHandler {
	return &DraftHandler{draftService: ds}
}

func (h *DraftHandler) respondError(c *gin.Context, err error, op string) {
	var incomplete *services.SectionIncompleteError
	switch {
	case errors.Is(err, services.ErrDraftNotFound):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusNotFound, utils.ErrCodeNotFound, "Draft not found. It may have expired or been submitted.", ""))
	case errors.Is(err, services.ErrDraftSubmitted):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusConflict, utils.ErrCodeConflict, "This application has already been submitted.", ""))
	case errors.As(err, &incomplete):
		utils.RespondValidationFailed(c, msgCorrectFields, incomplete.FieldErrors)
	case errors.Is(err, services.ErrDocumentTooLarge):
		utils.RespondValidationFailed(c, "File is too large.", map[string]string{"file": "Files must be 10 MB or smaller"})
	case errors.Is(err, services.ErrDocumentType):
		utils.RespondValidationFailed(c, "Unsupported file type.", map[string]string{"file": "Only PDF, JPEG and PNG files are accepted"})
	case respondSubmissionError(c, err):
	default:
		utils.LogError(err, "DraftHandler: "+op+" failed")
		respondInternal(c, "Unable to save your application right now. Please try again.")
	}
}

// CreateDraft starts a new application form.
func (h *DraftHandler) CreateDraft(c *gin.Context) {
	view, err := h.draftService.CreateDraft(c.Request.Context())
	if err != nil {
		h.respondError(c, err, "CreateDraft")
		return
	}
	c.JSON(http.StatusCreated, view)
}

// GetDraft restores a form from its autosave.
func (h *DraftHandler) GetDraft(c *gin.Context) {
	view, err := h.draftService.GetDraft(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err, "GetDraft")
		return
	}
	c.JSON(http.StatusOK, view)
}

// UpdateDraftFields merges edited field values.
func (h *DraftHandler) UpdateDraftFields(c *gin.Context) {
	var req services.UpdateDraftFieldsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.LogError(err, "UpdateDraftFields: Failed to bind JSON")
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeBadRequest, "Invalid request payload", err.Error()))
		return
	}
	view, err := h.draftService.UpdateFields(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		h.respondError(c, err, "UpdateDraftFields")
		return
	}
	c.JSON(http.StatusOK, view)
}

// AdvanceDraft validates the current section and moves forward.
func (h *DraftHandler) AdvanceDraft(c *gin.Context) {
	view, err := h.draftService.Advance(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err, "AdvanceDraft")
		return
	}
	c.JSON(http.StatusOK, view)
}

// RetreatDraft moves back one section.
func (h *DraftHandler) RetreatDraft(c *gin.Context) {
	view, err := h.draftService.Retreat(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err, "RetreatDraft")
		return
	}
	c.JSON(http.StatusOK, view)
}

// StartOver clears the form.
func (h *DraftHandler) StartOver(c *gin.Context) {
	view, err := h.draftService.StartOver(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err, "StartOver")
		return
	}
	c.JSON(http.StatusOK, view)
}

// UploadDocument accepts one multipart file under the "file" field.
func (h *DraftHandler) UploadDocument(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		utils.RespondValidationFailed(c, "No file received.", map[string]string{"file": "Please choose a file to upload"})
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		utils.LogError(err, "UploadDocument: cannot open upload")
		respondInternal(c, "Unable to read the uploaded file.")
		return
	}
	defer file.Close()

	view, err := h.draftService.AttachDocument(c.Request.Context(), c.Param("id"), services.DocumentUpload{
		Filename:    fileHeader.Filename,
		ContentType: fileHeader.Header.Get("Content-Type"),
		Size:        fileHeader.Size,
		Body:        file,
	})
	if err != nil {
		h.respondError(c, err, "UploadDocument")
		return
	}
	c.JSON(http.StatusCreated, view)
}

// SubmitDraft turns the draft into an application record.
func (h *DraftHandler) SubmitDraft(c *gin.Context) {
	var req services.SubmitDraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.LogError(err, "SubmitDraft: Failed to bind JSON")
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeBadRequest, "Invalid request payload", err.Error()))
		return
	}
	result, err := h.draftService.Submit(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		h.respondError(c, err, "SubmitDraft")
		return
	}
	c.JSON(http.StatusCreated, result)
}
