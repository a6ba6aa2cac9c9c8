package models

import (
	"encoding/json"
	"strings"
	"time"
)

// ApplicationStatus is the review state of an application.
type ApplicationStatus string

const (
	ApplicationStatusAwaitingPayment ApplicationStatus = "awaiting_payment"
	ApplicationStatusUnderReview     ApplicationStatus = "under_review"
	ApplicationStatusApproved        ApplicationStatus = "approved"
	ApplicationStatusDenied          ApplicationStatus = "denied"
)

// IsValid reports whether s is one of the known statuses.
func (s ApplicationStatus) IsValid() bool {
	switch s {
	case ApplicationStatusAwaitingPayment, ApplicationStatusUnderReview, ApplicationStatusApproved, ApplicationStatusDenied:
		return true
	}
	return false
}

// Label is the human readable form used in emails and exports.
func (s ApplicationStatus) Label() string {
	switch s {
	case ApplicationStatusAwaitingPayment:
		return "Awaiting Payment"
	case ApplicationStatusUnderReview:
		return "Under Review"
	case ApplicationStatusApproved:
		return "Approved"
	case ApplicationStatusDenied:
		return "Denied"
	}
	return strings.ReplaceAll(string(s), "_", " ")
}

// PaymentStatus tracks the application fee.
type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
)

func (s PaymentStatus) IsValid() bool {
	return s == PaymentStatusPending || s == PaymentStatusPaid
}

// Keys inside FormData that are not plain field values.
const (
	FormDataDocumentsKey    = "documents"
	FormDataCoApplicantsKey = "co_applicants"
)

// Document is an uploaded file reference stored in the application form data.
type Document struct {
	Name        string `json:"name"`
	Path        string `json:"path"`
	ContentType string `json:"content_type,omitempty"`
	Size        int64  `json:"size,omitempty"`
}

// CoApplicant is an additional adult on the lease.
type CoApplicant struct {
	FullName     string `json:"fullName"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	Relationship string `json:"relationship"`
}

// FormData is the open field name to value mapping captured by the form.
type FormData map[string]interface{}

// Documents decodes the documents list regardless of whether it was built
// in-process or read back from JSON.
func (f FormData) Documents() []Document {
	raw, ok := f[FormDataDocumentsKey]
	if !ok || raw == nil {
		return nil
	}
	if docs, ok := raw.([]Document); ok {
		return docs
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return nil
	}
	var docs []Document
	if err := json.Unmarshal(b, &docs); err != nil {
		return nil
	}
	return docs
}

// String returns a field as a string, or "" when absent or not a string.
func (f FormData) String(key string) string {
	if s, ok := f[key].(string); ok {
		return s
	}
	return ""
}

// Bool reports whether a checkbox style field is set.
func (f FormData) Bool(key string) bool {
	switch v := f[key].(type) {
	case bool:
		return v
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "on", "yes", "1":
			return true
		}
	}
	return false
}

// Application is the persisted rental application record.
type Application struct {
	ID                int64             `json:"-"`
	ApplicationID     string            `json:"application_id"`
	ApplicantName     string            `json:"applicant_name"`
	ApplicantEmail    string            `json:"applicant_email"`
	ApplicantPhone    *string           `json:"applicant_phone,omitempty"`
	PropertyAddress   *string           `json:"property_address,omitempty"`
	ApplicationStatus ApplicationStatus `json:"application_status"`
	PaymentStatus     PaymentStatus     `json:"payment_status"`
	FormData          FormData          `json:"form_data,omitempty"`
	StatusNote        *string           `json:"status_note,omitempty"`
	PaymentMarkedBy   *string           `json:"payment_marked_by,omitempty"`
	PaymentMarkedAt   *time.Time        `json:"payment_marked_at,omitempty"`
	StatusChangedBy   *string           `json:"status_changed_by,omitempty"`
	StatusChangedAt   *time.Time        `json:"status_changed_at,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

// Clone returns a deep enough copy for in-memory stores: pointers and the
// top-level form data map are duplicated.
func (a *Application) Clone() *Application {
	if a == nil {
		return nil
	}
	c := *a
	if a.FormData != nil {
		c.FormData = make(FormData, len(a.FormData))
		for k, v := range a.FormData {
			c.FormData[k] = v
		}
	}
	c.ApplicantPhone = cloneString(a.ApplicantPhone)
	c.PropertyAddress = cloneString(a.PropertyAddress)
	c.StatusNote = cloneString(a.StatusNote)
	c.PaymentMarkedBy = cloneString(a.PaymentMarkedBy)
	c.StatusChangedBy = cloneString(a.StatusChangedBy)
	c.PaymentMarkedAt = cloneTime(a.PaymentMarkedAt)
	c.StatusChangedAt = cloneTime(a.StatusChangedAt)
	return &c
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// ApplicationFilters narrows the admin list.
type ApplicationFilters struct {
	Page          int
	PageSize      int
	Search        *string
	Status        *ApplicationStatus
	PaymentStatus *PaymentStatus
}

// DraftSnapshot is the autosaved state of an in-progress form.
// It never carries the applicant's identity number.
type DraftSnapshot struct {
	DraftID       string                 `json:"draft_id"`
	Section       int                    `json:"section"`
	Values        map[string]interface{} `json:"values"`
	Documents     []Document             `json:"documents,omitempty"`
	CoApplicants  []CoApplicant          `json:"co_applicants,omitempty"`
	ApplicationID string                 `json:"application_id,omitempty"`
	Submitted     bool                   `json:"submitted,omitempty"`
	SavedAt       time.Time              `json:"saved_at"`
}
