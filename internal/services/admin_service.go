package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"rental_app_backend/internal/events"
	"rental_app_backend/internal/metrics"
	"rental_app_backend/internal/models"
	"rental_app_backend/internal/notifications"
	"rental_app_backend/internal/repositories"
	"rental_app_backend/pkg/utils"
)

var (
	ErrPaymentAlreadyRecorded  = errors.New("payment already recorded")
	ErrInvalidStatus           = errors.New("invalid application status")
	ErrInvalidPaymentStatus    = errors.New("invalid payment status")
	ErrInvalidStatusTransition = errors.New("status change not allowed")
	ErrAdminActionFailed       = errors.New("admin action failed")
)

// Admin action labels for metrics.
const (
	actionMarkPaid     = "mark_paid"
	actionChangeStatus = "change_status"
)

const (
	DefaultPageSize = 25
	MaxPageSize     = 100
)

// --- Admin DTOs ---

type ListApplicationsRequest struct {
	Page          int
	PageSize      int
	Search        string
	Status        string
	PaymentStatus string
}

// ApplicationListItem is one row of the admin list.
type ApplicationListItem struct {
	ApplicationID     string                   `json:"application_id"`
	ApplicantName     string                   `json:"applicant_name"`
	ApplicantEmail    string                   `json:"applicant_email"`
	PropertyAddress   string                   `json:"property_address,omitempty"`
	ApplicationStatus models.ApplicationStatus `json:"application_status"`
	PaymentStatus     models.PaymentStatus     `json:"payment_status"`
	CreatedAt         time.Time                `json:"created_at"`
	DetailURL         string                   `json:"detail_url"`
}

type ApplicationList struct {
	Items    []ApplicationListItem `json:"items"`
	Total    int                   `json:"total"`
	Page     int                   `json:"page"`
	PageSize int                   `json:"page_size"`
}

type MarkPaymentRequest struct {
	Confirm bool `json:"confirm"`
}

type ChangeStatusRequest struct {
	Status  string `json:"status" binding:"required"`
	Note    string `json:"note"`
	Confirm bool   `json:"confirm"`
}

// --- AdminService Interface ---
type AdminService interface {
	ListApplications(ctx context.Context, req ListApplicationsRequest) (*ApplicationList, error)
	// ExportApplications returns every record matching the filters, ignoring paging.
	ExportApplications(ctx context.Context, req ListApplicationsRequest) ([]models.Application, error)
	GetApplication(ctx context.Context, rawID string) (*models.Application, error)
	MarkPaymentReceived(ctx context.Context, rawID, actor string, req MarkPaymentRequest) (*models.Application, error)
	ChangeApplicationStatus(ctx context.Context, rawID, actor string, req ChangeStatusRequest) (*models.Application, error)
}

type adminService struct {
	appRepo  repositories.ApplicationRepository
	broker   events.Broker
	notifier Notifier
	now      func() time.Time
}

// NewAdminService creates the review panel service. Mutations overwrite the
// record without a version check; the last writer wins.
func NewAdminService(repo repositories.ApplicationRepository, broker events.Broker, notifier Notifier) AdminService {
	return &adminService{appRepo: repo, broker: broker, notifier: notifier, now: time.Now}
}

func buildFilters(req ListApplicationsRequest) (models.ApplicationFilters, error) {
	f := models.ApplicationFilters{Page: req.Page, PageSize: req.PageSize}
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 {
		f.PageSize = DefaultPageSize
	}
	if f.PageSize > MaxPageSize {
		f.PageSize = MaxPageSize
	}
	if search := strings.TrimSpace(req.Search); search != "" {
		f.Search = &search
	}
	if raw := strings.TrimSpace(req.Status); raw != "" {
		status := models.ApplicationStatus(strings.ToLower(raw))
		if !status.IsValid() {
			return f, ErrInvalidStatus
		}
		f.Status = &status
	}
	if raw := strings.TrimSpace(req.PaymentStatus); raw != "" {
		ps := models.PaymentStatus(strings.ToLower(raw))
		if !ps.IsValid() {
			return f, ErrInvalidPaymentStatus
		}
		f.PaymentStatus = &ps
	}
	return f, nil
}

func (s *adminService) ListApplications(ctx context.Context, req ListApplicationsRequest) (*ApplicationList, error) {
	filters, err := buildFilters(req)
	if err != nil {
		return nil, err
	}
	apps, total, err := s.appRepo.GetApplications(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list applications: %w", err)
	}
	list := &ApplicationList{Items: make([]ApplicationListItem, 0, len(apps)), Total: total, Page: filters.Page, PageSize: filters.PageSize}
	for _, app := range apps {
		list.Items = append(list.Items, ApplicationListItem{
			ApplicationID:     app.ApplicationID,
			ApplicantName:     app.ApplicantName,
			ApplicantEmail:    app.ApplicantEmail,
			PropertyAddress:   utils.DerefString(app.PropertyAddress),
			ApplicationStatus: app.ApplicationStatus,
			PaymentStatus:     app.PaymentStatus,
			CreatedAt:         app.CreatedAt,
			DetailURL:         "/api/v1/admin/applications/" + app.ApplicationID,
		})
	}
	return list, nil
}

func (s *adminService) ExportApplications(ctx context.Context, req ListApplicationsRequest) ([]models.Application, error) {
	filters, err := buildFilters(req)
	if err != nil {
		return nil, err
	}
	filters.Page, filters.PageSize = 0, 0
	apps, _, err := s.appRepo.GetApplications(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to export applications: %w", err)
	}
	return apps, nil
}

func (s *adminService) GetApplication(ctx context.Context, rawID string) (*models.Application, error) {
	id := NormalizeApplicationID(rawID)
	if !ValidApplicationIDFormat(id) {
		return nil, ErrInvalidApplicationID
	}
	app, err := s.appRepo.GetApplicationByApplicationID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrApplicationNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrApplicationLookup, err)
	}
	return app, nil
}

// MarkPaymentReceived records the fee and moves the application into review.
func (s *adminService) MarkPaymentReceived(ctx context.Context, rawID, actor string, req MarkPaymentRequest) (*models.Application, error) {
	if !req.Confirm {
		return nil, ErrConfirmationRequired
	}
	app, err := s.GetApplication(ctx, rawID)
	if err != nil {
		return nil, err
	}
	if app.PaymentStatus == models.PaymentStatusPaid {
		metrics.AdminActionsTotal.WithLabelValues(actionMarkPaid, metrics.OutcomeInvalid).Inc()
		return nil, ErrPaymentAlreadyRecorded
	}

	now := s.now().UTC()
	app.PaymentStatus = models.PaymentStatusPaid
	app.ApplicationStatus = models.ApplicationStatusUnderReview
	app.PaymentMarkedBy = utils.NewNullString(actor)
	app.PaymentMarkedAt = &now
	app.StatusChangedBy = utils.NewNullString(actor)
	app.StatusChangedAt = &now

	if err := s.appRepo.UpdateApplication(ctx, app); err != nil {
		metrics.AdminActionsTotal.WithLabelValues(actionMarkPaid, metrics.OutcomeFailure).Inc()
		return nil, fmt.Errorf("%w: %v", ErrAdminActionFailed, err)
	}
	metrics.AdminActionsTotal.WithLabelValues(actionMarkPaid, metrics.OutcomeSuccess).Inc()
	utils.LogInfo("Payment recorded", map[string]interface{}{"application_id": app.ApplicationID, "actor": actor})

	publish(ctx, s.broker, events.TypePaymentReceived, app.ApplicationID, now)
	notify(s.notifier, notifications.PaymentReceived, app)
	return app, nil
}

// ChangeApplicationStatus sets the review status and notifies the applicant.
func (s *adminService) ChangeApplicationStatus(ctx context.Context, rawID, actor string, req ChangeStatusRequest) (*models.Application, error) {
	status := models.ApplicationStatus(strings.ToLower(strings.TrimSpace(req.Status)))
	if !status.IsValid() {
		return nil, ErrInvalidStatus
	}
	if !req.Confirm {
		return nil, ErrConfirmationRequired
	}
	app, err := s.GetApplication(ctx, rawID)
	if err != nil {
		return nil, err
	}
	if status == models.ApplicationStatusAwaitingPayment && app.PaymentStatus == models.PaymentStatusPaid {
		metrics.AdminActionsTotal.WithLabelValues(actionChangeStatus, metrics.OutcomeInvalid).Inc()
		return nil, ErrInvalidStatusTransition
	}

	now := s.now().UTC()
	app.ApplicationStatus = status
	app.StatusNote = utils.NewNullString(strings.TrimSpace(req.Note))
	app.StatusChangedBy = utils.NewNullString(actor)
	app.StatusChangedAt = &now

	if err := s.appRepo.UpdateApplication(ctx, app); err != nil {
		metrics.AdminActionsTotal.WithLabelValues(actionChangeStatus, metrics.OutcomeFailure).Inc()
		return nil, fmt.Errorf("%w: %v", ErrAdminActionFailed, err)
	}
	metrics.AdminActionsTotal.WithLabelValues(actionChangeStatus, metrics.OutcomeSuccess).Inc()
	utils.LogInfo("Application status changed", map[string]interface{}{"application_id": app.ApplicationID, "status": string(status), "actor": actor})

	publish(ctx, s.broker, events.TypeStatusChanged, app.ApplicationID, now)
	notify(s.notifier, notifications.StatusChanged, app)
	return app, nil
}
