package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"regexp"
	"strings"
	"sync"
	"time"

	"rental_app_backend/internal/autosave"
	"rental_app_backend/internal/form"
	"rental_app_backend/internal/metrics"
	"rental_app_backend/internal/models"
	"rental_app_backend/internal/repositories"
	"rental_app_backend/internal/storage"
	"rental_app_backend/pkg/utils"

	"github.com/google/uuid"
)

var (
	ErrDraftNotFound     = errors.New("draft not found")
	ErrDraftStorage      = errors.New("draft storage unavailable")
	ErrSectionIncomplete = errors.New("current section has invalid fields")
	ErrDocumentTooLarge  = errors.New("document exceeds the upload limit")
	ErrDocumentType      = errors.New("document type not allowed")
	ErrDocumentUpload    = errors.New("document upload failed")
	ErrDraftSubmitted    = errors.New("draft already submitted")
)

// DefaultMaxUploadBytes caps a single uploaded document.
const DefaultMaxUploadBytes int64 = 10 << 20

var allowedDocumentTypes = map[string]bool{
	"application/pdf": true,
	"image/jpeg":      true,
	"image/png":       true,
}

// saveTimeout bounds a debounced snapshot write, which runs without a request context.
const saveTimeout = 5 * time.Second

// SectionIncompleteError lists the fields that kept the form from advancing.
type SectionIncompleteError struct {
	Section     form.Section
	FieldErrors form.FieldErrors
}

func (e *SectionIncompleteError) Error() string {
	return fmt.Sprintf("%s: section %d", ErrSectionIncomplete, e.Section)
}

func (e *SectionIncompleteError) Unwrap() error {
	return ErrSectionIncomplete
}

// --- Draft DTOs ---

type UpdateDraftFieldsRequest struct {
	Fields       map[string]interface{} `json:"fields"`
	CoApplicants *[]models.CoApplicant  `json:"co_applicants"`
}

type SubmitDraftRequest struct {
	Confirm bool   `json:"confirm"`
	SSN     string `json:"ssn"`
}

// DocumentUpload is one file received from the applicant.
type DocumentUpload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// DraftView is what the form client renders.
type DraftView struct {
	DraftID        string                 `json:"draft_id"`
	CurrentSection form.Section           `json:"current_section"`
	SectionTitle   string                 `json:"section_title"`
	RequiredFields []string               `json:"required_fields"`
	Progress       form.Progress          `json:"progress"`
	Values         map[string]interface{} `json:"values"`
	Documents      []models.Document      `json:"documents"`
	CoApplicants   []models.CoApplicant   `json:"co_applicants"`
	ApplicationID  string                 `json:"application_id,omitempty"`
	Summary        []form.SummaryItem     `json:"summary,omitempty"`
	Warnings       []string               `json:"warnings,omitempty"`
	Submitted      bool                   `json:"submitted,omitempty"`
	SavePending    bool                   `json:"save_pending"`
	SavedAt        *time.Time             `json:"saved_at,omitempty"`
}

// --- DraftService Interface ---
type DraftService interface {
	CreateDraft(ctx context.Context) (*DraftView, error)
	GetDraft(ctx context.Context, draftID string) (*DraftView, error)
	UpdateFields(ctx context.Context, draftID string, req UpdateDraftFieldsRequest) (*DraftView, error)
	Advance(ctx context.Context, draftID string) (*DraftView, error)
	Retreat(ctx context.Context, draftID string) (*DraftView, error)
	StartOver(ctx context.Context, draftID string) (*DraftView, error)
	AttachDocument(ctx context.Context, draftID string, upload DocumentUpload) (*DraftView, error)
	Submit(ctx context.Context, draftID string, req SubmitDraftRequest) (*SubmissionResult, error)
	FlushAll()
}

type draftService struct {
	drafts      repositories.DraftRepository
	submissions SubmissionService
	blobs       storage.BlobStore
	debouncer   *autosave.Debouncer
	newID       IDGenerator
	maxUpload   int64
	now         func() time.Time

	locks   keyedMutex
	mu      sync.Mutex
	pending map[string]form.State
}

// NewDraftService creates the form service. Edits are held in memory and
// written to the draft store once input has been quiet for the debouncer's period.
func NewDraftService(drafts repositories.DraftRepository, submissions SubmissionService, blobs storage.BlobStore, debouncer *autosave.Debouncer, newID IDGenerator, maxUpload int64) DraftService {
	if newID == nil {
		newID = NewApplicationID
	}
	if maxUpload <= 0 {
		maxUpload = DefaultMaxUploadBytes
	}
	if debouncer == nil {
		debouncer = autosave.NewDebouncer(autosave.DefaultQuietPeriod)
	}
	return &draftService{
		drafts:      drafts,
		submissions: submissions,
		blobs:       blobs,
		debouncer:   debouncer,
		newID:       newID,
		maxUpload:   maxUpload,
		now:         time.Now,
		pending:     make(map[string]form.State),
	}
}

func (s *draftService) env() form.Env {
	return form.Env{
		Now:        s.now,
		AllocateID: func() string { return s.newID(s.now()) },
	}
}

// CreateDraft starts an empty form and stores it right away so the id is valid.
func (s *draftService) CreateDraft(ctx context.Context) (*DraftView, error) {
	st := form.NewState(uuid.NewString(), s.now())
	snap := st.Snapshot()
	if err := s.drafts.SaveDraft(ctx, snap); err != nil {
		utils.LogError(err, "Failed to create draft")
		return nil, fmt.Errorf("%w: %v", ErrDraftStorage, err)
	}
	metrics.AutosaveWritesTotal.WithLabelValues(metrics.OutcomeSuccess).Inc()
	utils.LogDebug("Draft created", map[string]interface{}{"draft_id": st.DraftID})
	return s.view(st, form.Result{Warnings: form.Warnings(st.Values)}, false), nil
}

func (s *draftService) GetDraft(ctx context.Context, draftID string) (*DraftView, error) {
	unlock := s.locks.Lock(draftID)
	defer unlock()

	st, pending, err := s.load(ctx, draftID)
	if err != nil {
		return nil, err
	}
	return s.view(st, form.Result{Warnings: form.Warnings(st.Values)}, pending), nil
}

func (s *draftService) UpdateFields(ctx context.Context, draftID string, req UpdateDraftFieldsRequest) (*DraftView, error) {
	unlock := s.locks.Lock(draftID)
	defer unlock()

	st, _, err := s.load(ctx, draftID)
	if err != nil {
		return nil, err
	}
	next, res := form.Reduce(st, form.SetFields{Values: req.Fields}, s.env())
	if req.CoApplicants != nil {
		next, _ = form.Reduce(next, form.SetCoApplicants{CoApplicants: *req.CoApplicants}, s.env())
	}
	s.schedule(draftID, next)
	return s.view(next, res, true), nil
}

// Advance moves to the next section or returns *SectionIncompleteError.
func (s *draftService) Advance(ctx context.Context, draftID string) (*DraftView, error) {
	unlock := s.locks.Lock(draftID)
	defer unlock()

	st, pending, err := s.load(ctx, draftID)
	if err != nil {
		return nil, err
	}
	next, res := form.Reduce(st, form.Advance{}, s.env())
	if !res.Errors.Empty() {
		return nil, &SectionIncompleteError{Section: st.Current, FieldErrors: res.Errors}
	}
	if res.Transitioned {
		s.schedule(draftID, next)
		pending = true
	}
	return s.view(next, res, pending), nil
}

func (s *draftService) Retreat(ctx context.Context, draftID string) (*DraftView, error) {
	unlock := s.locks.Lock(draftID)
	defer unlock()

	st, pending, err := s.load(ctx, draftID)
	if err != nil {
		return nil, err
	}
	next, res := form.Reduce(st, form.Retreat{}, s.env())
	if res.Transitioned {
		s.schedule(draftID, next)
		pending = true
	}
	res.Warnings = form.Warnings(next.Values)
	return s.view(next, res, pending), nil
}

// StartOver clears the saved snapshot and returns an empty form under the same id.
func (s *draftService) StartOver(ctx context.Context, draftID string) (*DraftView, error) {
	unlock := s.locks.Lock(draftID)
	defer unlock()

	st, _, err := s.load(ctx, draftID)
	if err != nil {
		return nil, err
	}
	s.debouncer.Cancel(draftID)
	s.dropPending(draftID)

	next, _ := form.Reduce(st, form.StartOver{}, s.env())
	if err := s.drafts.SaveDraft(ctx, next.Snapshot()); err != nil {
		metrics.AutosaveWritesTotal.WithLabelValues(metrics.OutcomeFailure).Inc()
		utils.LogError(err, "Failed to reset draft", map[string]interface{}{"draft_id": draftID})
		return nil, fmt.Errorf("%w: %v", ErrDraftStorage, err)
	}
	metrics.AutosaveWritesTotal.WithLabelValues(metrics.OutcomeSuccess).Inc()
	return s.view(next, form.Result{}, false), nil
}

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// documentKey builds the object key for an upload: applications/<draft>/<uuid>-<name>.
func documentKey(draftID, filename string) string {
	name := unsafeFilenameChars.ReplaceAllString(path.Base(filename), "_")
	if name == "" || name == "." || name == "_" {
		name = "document"
	}
	return DocumentKeyPrefix(draftID) + uuid.NewString() + "-" + name
}

// AttachDocument uploads a file and records it on the draft.
func (s *draftService) AttachDocument(ctx context.Context, draftID string, upload DocumentUpload) (*DraftView, error) {
	if upload.Size > s.maxUpload {
		return nil, ErrDocumentTooLarge
	}
	contentType := strings.ToLower(strings.TrimSpace(strings.Split(upload.ContentType, ";")[0]))
	if !allowedDocumentTypes[contentType] {
		return nil, ErrDocumentType
	}

	unlock := s.locks.Lock(draftID)
	defer unlock()

	st, _, err := s.load(ctx, draftID)
	if err != nil {
		return nil, err
	}

	key := documentKey(draftID, upload.Filename)
	if err := s.blobs.Put(ctx, key, contentType, upload.Body, upload.Size); err != nil {
		utils.LogError(err, "Document upload failed", map[string]interface{}{"draft_id": draftID})
		return nil, fmt.Errorf("%w: %v", ErrDocumentUpload, err)
	}
	doc := models.Document{Name: path.Base(upload.Filename), Path: key, ContentType: contentType, Size: upload.Size}
	next, res := form.Reduce(st, form.AttachDocument{Document: doc}, s.env())
	s.schedule(draftID, next)
	res.Warnings = form.Warnings(next.Values)
	return s.view(next, res, true), nil
}

// Submit sends the draft through the submission pipeline. On success the
// snapshot is removed; on a validation failure the form jumps to the first
// section with errors.
func (s *draftService) Submit(ctx context.Context, draftID string, req SubmitDraftRequest) (*SubmissionResult, error) {
	unlock := s.locks.Lock(draftID)
	defer unlock()

	st, _, err := s.load(ctx, draftID)
	if err != nil {
		return nil, err
	}
	if st.Submitted {
		return nil, fmt.Errorf("%w: %s", ErrDraftSubmitted, st.ApplicationID)
	}

	fields := make(map[string]interface{}, len(st.Values)+1)
	for k, v := range st.Values {
		fields[k] = v
	}
	if strings.TrimSpace(req.SSN) != "" {
		fields[form.FieldSSN] = req.SSN
	}

	cancelled := s.debouncer.Cancel(draftID)
	result, err := s.submissions.Submit(ctx, SubmitApplicationRequest{
		Fields:        fields,
		Documents:     st.Documents,
		CoApplicants:  st.CoApplicants,
		ApplicationID: st.ApplicationID,
		DraftID:       draftID,
		Confirm:       req.Confirm,
	})
	if err != nil {
		var verr *SubmissionValidationError
		if errors.As(err, &verr) && verr.Section.Valid() && verr.Section != st.Current {
			next := st
			next.Current = verr.Section
			next.UpdatedAt = s.now()
			s.schedule(draftID, next)
		} else if cancelled {
			s.schedule(draftID, st)
		}
		return nil, err
	}

	s.dropPending(draftID)
	done, _ := form.Reduce(st, form.MarkSubmitted{ApplicationID: result.ApplicationID}, s.env())
	if err := s.drafts.DeleteDraft(ctx, draftID); err != nil {
		utils.LogWarn(err, "Submitted draft was not removed, freezing it", map[string]interface{}{"draft_id": draftID})
		if err := s.drafts.SaveDraft(ctx, done.Snapshot()); err != nil {
			utils.LogError(err, "Failed to freeze submitted draft")
		}
	}
	return result, nil
}

// FlushAll writes every pending snapshot. Called on shutdown.
func (s *draftService) FlushAll() {
	s.debouncer.FlushAll()
}

// load returns the working state for a draft, preferring unsaved edits. Callers hold the draft lock.
func (s *draftService) load(ctx context.Context, draftID string) (form.State, bool, error) {
	s.mu.Lock()
	st, ok := s.pending[draftID]
	s.mu.Unlock()
	if ok {
		return st, true, nil
	}

	snap, err := s.drafts.GetDraft(ctx, draftID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return form.State{}, false, ErrDraftNotFound
		}
		utils.LogError(err, "Failed to load draft", map[string]interface{}{"draft_id": draftID})
		return form.State{}, false, fmt.Errorf("%w: %v", ErrDraftStorage, err)
	}
	restored, _ := form.Reduce(form.NewState(draftID, s.now()), form.Restore{Snapshot: *snap}, s.env())
	return restored, false, nil
}

func (s *draftService) schedule(draftID string, st form.State) {
	s.mu.Lock()
	s.pending[draftID] = st
	s.mu.Unlock()
	s.debouncer.Schedule(draftID, func() { s.persist(draftID) })
}

func (s *draftService) dropPending(draftID string) {
	s.mu.Lock()
	delete(s.pending, draftID)
	s.mu.Unlock()
}

// persist writes the pending state for a draft. A failed write keeps the
// state pending so the next edit retries it.
func (s *draftService) persist(draftID string) {
	unlock := s.locks.Lock(draftID)
	defer unlock()

	s.mu.Lock()
	st, ok := s.pending[draftID]
	s.mu.Unlock()
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	snap := st.Snapshot()
	snap.SavedAt = s.now()
	if err := s.drafts.SaveDraft(ctx, snap); err != nil {
		metrics.AutosaveWritesTotal.WithLabelValues(metrics.OutcomeFailure).Inc()
		utils.LogError(err, "Autosave failed", map[string]interface{}{"draft_id": draftID})
		return
	}
	metrics.AutosaveWritesTotal.WithLabelValues(metrics.OutcomeSuccess).Inc()
	s.dropPending(draftID)
}

func (s *draftService) view(st form.State, res form.Result, pending bool) *DraftView {
	v := &DraftView{
		DraftID:        st.DraftID,
		CurrentSection: st.Current,
		SectionTitle:   st.Current.Title(),
		Progress:       st.Progress(),
		Values:         map[string]interface{}(st.Values.WithoutSensitive()),
		Documents:      st.Documents,
		CoApplicants:   st.CoApplicants,
		ApplicationID:  st.ApplicationID,
		Summary:        st.Summary,
		Warnings:       res.Warnings,
		Submitted:      st.Submitted,
		SavePending:    pending,
	}
	v.RequiredFields = form.RequiredFields(st.Current, st.Values)
	if v.Documents == nil {
		v.Documents = []models.Document{}
	}
	if v.CoApplicants == nil {
		v.CoApplicants = []models.CoApplicant{}
	}
	if !pending {
		saved := st.UpdatedAt
		v.SavedAt = &saved
	}
	return v
}
