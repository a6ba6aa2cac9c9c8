package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"rental_app_backend/internal/events"
	"rental_app_backend/internal/form"
	"rental_app_backend/internal/metrics"
	"rental_app_backend/internal/models"
	"rental_app_backend/internal/notifications"
	"rental_app_backend/internal/repositories"
	"rental_app_backend/pkg/utils"

	"github.com/xeipuuv/gojsonschema"
)

var (
	ErrSubmissionValidation = errors.New("application validation failed")
	ErrConfirmationRequired = errors.New("submission must be confirmed")
	ErrIDAllocation         = errors.New("could not allocate a unique application id")
	ErrSubmissionFailed     = errors.New("application could not be saved")
)

// maxIDAttempts bounds retries after an application id collision.
const maxIDAttempts = 3

// MsgInvalidSSN is attached to the identity number field when its format is wrong.
const MsgInvalidSSN = "Please enter a valid SSN (XXX-XX-XXXX)"

// SubmissionValidationError carries per-field messages and the first section that failed.
type SubmissionValidationError struct {
	Section     form.Section
	FieldErrors form.FieldErrors
}

func (e *SubmissionValidationError) Error() string {
	return fmt.Sprintf("%s: %d field(s) invalid in section %d", ErrSubmissionValidation, len(e.FieldErrors), e.Section)
}

func (e *SubmissionValidationError) Unwrap() error {
	return ErrSubmissionValidation
}

// --- Submission DTOs ---

type SubmitApplicationRequest struct {
	Fields        map[string]interface{} `json:"fields"`
	Documents     []models.Document      `json:"documents,omitempty"`
	CoApplicants  []models.CoApplicant   `json:"co_applicants,omitempty"`
	ApplicationID string                 `json:"application_id,omitempty"`
	DraftID       string                 `json:"-"`
	Confirm       bool                   `json:"confirm"`
}

// Stage names reported back to the applicant while a submission runs.
const (
	StageProcessing = "processing"
	StageValidating = "validating"
	StagePreparing  = "preparing"
	StageSubmitting = "submitting"
	StageComplete   = "complete"
)

var stageMessages = map[string]string{
	StageProcessing: "Processing your information...",
	StageValidating: "Validating application data...",
	StagePreparing:  "Preparing submission...",
	StageSubmitting: "Submitting application...",
	StageComplete:   "Submission complete!",
}

type SubmissionStage struct {
	Stage   string    `json:"stage"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

type SubmissionResult struct {
	ApplicationID string              `json:"application_id"`
	Stages        []SubmissionStage   `json:"stages"`
	Application   *models.Application `json:"application"`
}

// --- SubmissionService Interface ---
type SubmissionService interface {
	Submit(ctx context.Context, req SubmitApplicationRequest) (*SubmissionResult, error)
}

type submissionService struct {
	appRepo  repositories.ApplicationRepository
	broker   events.Broker
	notifier Notifier
	newID    IDGenerator
	now      func() time.Time
}

// NewSubmissionService creates the submission pipeline.
func NewSubmissionService(repo repositories.ApplicationRepository, broker events.Broker, notifier Notifier, newID IDGenerator) SubmissionService {
	if newID == nil {
		newID = NewApplicationID
	}
	return &submissionService{appRepo: repo, broker: broker, notifier: notifier, newID: newID, now: time.Now}
}

var submissionSchema = map[string]interface{}{
	"type":     "object",
	"required": []string{"fields"},
	"properties": map[string]interface{}{
		"fields": map[string]interface{}{
			"type":          "object",
			"minProperties": 1,
			"additionalProperties": map[string]interface{}{
				"type": []string{"string", "boolean", "number", "null"},
			},
		},
		"documents": map[string]interface{}{
			"type": []string{"array", "null"},
			"items": map[string]interface{}{
				"type":     "object",
				"required": []string{"name", "path"},
				"properties": map[string]interface{}{
					"name": map[string]interface{}{"type": "string", "minLength": 1},
					"path": map[string]interface{}{"type": "string", "minLength": 1},
				},
			},
		},
		"co_applicants": map[string]interface{}{
			"type":     []string{"array", "null"},
			"maxItems": 4,
			"items": map[string]interface{}{
				"type":     "object",
				"required": []string{"fullName"},
				"properties": map[string]interface{}{
					"fullName": map[string]interface{}{"type": "string", "minLength": 1},
				},
			},
		},
		"application_id": map[string]interface{}{"type": "string"},
		"confirm":        map[string]interface{}{"type": "boolean"},
	},
}

// validateShape checks the raw payload against submissionSchema.
func validateShape(req SubmitApplicationRequest) form.FieldErrors {
	result, err := gojsonschema.Validate(gojsonschema.NewGoLoader(submissionSchema), gojsonschema.NewGoLoader(req))
	if err != nil {
		return form.FieldErrors{"payload": "Malformed application payload"}
	}
	if result.Valid() {
		return nil
	}
	errs := form.FieldErrors{}
	for _, e := range result.Errors() {
		field := strings.TrimPrefix(e.Field(), "(root).")
		if _, seen := errs[field]; !seen {
			errs[field] = e.Description()
		}
	}
	return errs
}

// checkIdentityNumber validates the optional identity number held only in memory.
func checkIdentityNumber(fields map[string]interface{}) form.FieldErrors {
	for name, raw := range fields {
		if !form.IsSensitiveField(name) {
			continue
		}
		s, _ := raw.(string)
		if strings.TrimSpace(s) == "" {
			continue
		}
		if len(utils.DigitsOnly(s)) != form.IdentityDigits(name) {
			return form.FieldErrors{name: MsgInvalidSSN}
		}
	}
	return nil
}

// Submit validates, stores and announces a new application.
// The record write is the only step that can fail the submission; the event
// and the confirmation email are best effort.
func (s *submissionService) Submit(ctx context.Context, req SubmitApplicationRequest) (*SubmissionResult, error) {
	result := &SubmissionResult{}
	stage := func(name string) {
		result.Stages = append(result.Stages, SubmissionStage{Stage: name, Message: stageMessages[name], At: s.now()})
	}

	stage(StageProcessing)
	if errs := validateShape(req); len(errs) > 0 {
		metrics.SubmissionsTotal.WithLabelValues(metrics.OutcomeInvalid).Inc()
		return nil, &SubmissionValidationError{FieldErrors: errs}
	}

	stage(StageValidating)
	if errs := checkIdentityNumber(req.Fields); len(errs) > 0 {
		metrics.SubmissionsTotal.WithLabelValues(metrics.OutcomeInvalid).Inc()
		return nil, &SubmissionValidationError{Section: form.SectionProperty, FieldErrors: errs}
	}
	state, _ := form.Reduce(form.NewState("", s.now()), form.SetFields{Values: req.Fields}, form.Env{Now: s.now})
	values := state.Values
	if section, errs := form.ValidateAll(values, s.now()); !errs.Empty() {
		metrics.SubmissionsTotal.WithLabelValues(metrics.OutcomeInvalid).Inc()
		return nil, &SubmissionValidationError{Section: section, FieldErrors: errs}
	}
	if !req.Confirm {
		return nil, ErrConfirmationRequired
	}

	stage(StagePreparing)
	app := buildApplication(values, ownDocuments(req.DraftID, req.Documents), req.CoApplicants)

	stage(StageSubmitting)
	candidate := NormalizeApplicationID(req.ApplicationID)
	if !IsCanonicalApplicationID(candidate) {
		candidate = s.newID(s.now())
	}
	var err error
	for attempt := 1; attempt <= maxIDAttempts; attempt++ {
		app.ApplicationID = candidate
		app.CreatedAt, app.UpdatedAt = time.Time{}, time.Time{}
		_, err = s.appRepo.CreateApplication(ctx, app)
		if err == nil {
			break
		}
		if !errors.Is(err, repositories.ErrDuplicateKey) {
			metrics.SubmissionsTotal.WithLabelValues(metrics.OutcomeFailure).Inc()
			return nil, fmt.Errorf("%w: %v", ErrSubmissionFailed, err)
		}
		utils.LogWarn(err, "Application id collision, retrying", map[string]interface{}{"application_id": candidate, "attempt": attempt})
		candidate = s.newID(s.now())
	}
	if err != nil {
		metrics.SubmissionsTotal.WithLabelValues(metrics.OutcomeFailure).Inc()
		return nil, fmt.Errorf("%w: %v", ErrIDAllocation, err)
	}

	stage(StageComplete)
	metrics.SubmissionsTotal.WithLabelValues(metrics.OutcomeSuccess).Inc()
	utils.LogInfo("Application submitted", map[string]interface{}{"application_id": app.ApplicationID})

	publish(ctx, s.broker, events.TypeApplicationCreated, app.ApplicationID, s.now())
	notify(s.notifier, notifications.SubmissionReceived, app)

	result.ApplicationID = app.ApplicationID
	result.Application = app
	return result, nil
}

// ownDocuments keeps the documents stored under the draft's own key prefix.
// Without a draft there is nothing the applicant could have uploaded.
func ownDocuments(draftID string, docs []models.Document) []models.Document {
	if draftID == "" {
		return nil
	}
	prefix := DocumentKeyPrefix(draftID)
	var out []models.Document
	for _, d := range docs {
		if strings.HasPrefix(d.Path, prefix) && !strings.Contains(d.Path[len(prefix):], "..") {
			out = append(out, d)
			continue
		}
		utils.LogWarn(nil, "Dropping document outside the draft", map[string]interface{}{"draft_id": draftID, "path": d.Path})
	}
	return out
}

// buildApplication flattens the form into a new record. values is already free of the identity number.
func buildApplication(values form.Values, docs []models.Document, coApplicants []models.CoApplicant) *models.Application {
	formData := models.FormData{}
	for k, v := range values {
		if k == models.FormDataDocumentsKey || k == models.FormDataCoApplicantsKey {
			continue
		}
		formData[k] = v
	}
	if len(docs) > 0 {
		formData[models.FormDataDocumentsKey] = docs
	}
	if len(coApplicants) > 0 {
		formData[models.FormDataCoApplicantsKey] = coApplicants
	}

	property := strings.TrimSpace(values.String(form.FieldPropertyAddress))
	if unit := strings.TrimSpace(values.String(form.FieldUnitNumber)); unit != "" && property != "" {
		property += ", Unit " + unit
	}

	return &models.Application{
		ApplicantName:     form.FullName(values),
		ApplicantEmail:    strings.TrimSpace(values.String(form.FieldEmail)),
		ApplicantPhone:    utils.NewNullString(strings.TrimSpace(values.String(form.FieldPhone))),
		PropertyAddress:   utils.NewNullString(property),
		ApplicationStatus: models.ApplicationStatusAwaitingPayment,
		PaymentStatus:     models.PaymentStatusPending,
		FormData:          formData,
	}
}
