package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"rental_app_backend/internal/events"
	"rental_app_backend/internal/metrics"
	"rental_app_backend/internal/models"
	"rental_app_backend/internal/repositories"
	"rental_app_backend/internal/storage"
	"rental_app_backend/pkg/utils"
)

var (
	ErrInvalidApplicationID = errors.New("invalid application id")
	ErrApplicationNotFound  = errors.New("application not found")
	ErrApplicationLookup    = errors.New("application lookup failed")
)

// Banner identifies which status banner the dashboard shows.
type Banner string

const (
	BannerAwaitingPayment Banner = "awaiting_payment"
	BannerUnderReview     Banner = "under_review"
	BannerApproved        Banner = "approved"
	BannerDenied          Banner = "denied"
)

// Timeline step keys and states.
const (
	StepSubmitted = "submitted"
	StepPayment   = "payment"
	StepReview    = "review"
	StepDecision  = "decision"

	StepPending   = "pending"
	StepActive    = "active"
	StepCompleted = "completed"
)

// FairHousingNotice is shown with every denial.
const FairHousingNotice = "Choice Properties complies with the Fair Housing Act and does not discriminate on the basis of race, color, religion, sex, handicap, familial status, or national origin. You may request the reasons for this decision in writing within 60 days."

// DashboardOptions holds the payment details shown while the fee is outstanding.
type DashboardOptions struct {
	ApplicationFee      float64
	PaymentMethods      []string
	PaymentInstructions string
	DocumentURLTTL      time.Duration
}

type TimelineStep struct {
	Key   string `json:"key"`
	Title string `json:"title"`
	State string `json:"state"`
}

type PaymentInfo struct {
	Fee          float64  `json:"fee"`
	FeeDisplay   string   `json:"fee_display"`
	Methods      []string `json:"methods"`
	Instructions string   `json:"instructions,omitempty"`
	Reference    string   `json:"reference"`
}

// DashboardView is the applicant facing status page.
type DashboardView struct {
	ApplicationID     string                   `json:"application_id"`
	ApplicantName     string                   `json:"applicant_name"`
	PropertyAddress   string                   `json:"property_address,omitempty"`
	ApplicationStatus models.ApplicationStatus `json:"application_status"`
	PaymentStatus     models.PaymentStatus     `json:"payment_status"`
	Banner            Banner                   `json:"banner"`
	BannerTitle       string                   `json:"banner_title"`
	BannerMessage     string                   `json:"banner_message"`
	ShowTimeline      bool                     `json:"show_timeline"`
	Timeline          []TimelineStep           `json:"timeline,omitempty"`
	PaymentInfo       *PaymentInfo             `json:"payment_info,omitempty"`
	FairHousingNotice string                   `json:"fair_housing_notice,omitempty"`
	StatusNote        string                   `json:"status_note,omitempty"`
	DocumentCount     int                      `json:"document_count"`
	Documents         []DocumentLink           `json:"documents,omitempty"`
	SubmittedAt       time.Time                `json:"submitted_at"`
	UpdatedAt         time.Time                `json:"updated_at"`
}

type DocumentLink struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type,omitempty"`
	Size        int64  `json:"size,omitempty"`
	URL         string `json:"url,omitempty"`
}

func timeline(payment, review, decision string) []TimelineStep {
	return []TimelineStep{
		{Key: StepSubmitted, Title: "Application Submitted", State: StepCompleted},
		{Key: StepPayment, Title: "Payment Received", State: payment},
		{Key: StepReview, Title: "Under Review", State: review},
		{Key: StepDecision, Title: "Decision", State: decision},
	}
}

// BuildDashboardView maps a record to its dashboard rendering. An unpaid fee
// outranks every review status.
func BuildDashboardView(app *models.Application, opts DashboardOptions) *DashboardView {
	v := &DashboardView{
		ApplicationID:     app.ApplicationID,
		ApplicantName:     app.ApplicantName,
		PropertyAddress:   utils.DerefString(app.PropertyAddress),
		ApplicationStatus: app.ApplicationStatus,
		PaymentStatus:     app.PaymentStatus,
		StatusNote:        utils.DerefString(app.StatusNote),
		DocumentCount:     len(app.FormData.Documents()),
		SubmittedAt:       app.CreatedAt,
		UpdatedAt:         app.UpdatedAt,
	}

	switch {
	case app.PaymentStatus != models.PaymentStatusPaid:
		v.Banner = BannerAwaitingPayment
		v.BannerTitle = "Payment Required"
		v.BannerMessage = "Your application has been received. Submit the application fee to begin the review."
		v.PaymentInfo = &PaymentInfo{
			Fee:          opts.ApplicationFee,
			FeeDisplay:   fmt.Sprintf("$%.2f", opts.ApplicationFee),
			Methods:      append([]string(nil), opts.PaymentMethods...),
			Instructions: opts.PaymentInstructions,
			Reference:    app.ApplicationID,
		}
	case app.ApplicationStatus == models.ApplicationStatusApproved:
		v.Banner = BannerApproved
		v.BannerTitle = "Approved"
		v.BannerMessage = "Congratulations! Your application has been approved. We will contact you about next steps."
		v.ShowTimeline = true
		v.Timeline = timeline(StepCompleted, StepCompleted, StepCompleted)
	case app.ApplicationStatus == models.ApplicationStatusDenied:
		v.Banner = BannerDenied
		v.BannerTitle = "Application Decision"
		v.BannerMessage = "We are unable to approve your application at this time."
		v.FairHousingNotice = FairHousingNotice
	default:
		v.Banner = BannerUnderReview
		v.BannerTitle = "Under Review"
		v.BannerMessage = "Payment received. Our team is reviewing your application."
		v.ShowTimeline = true
		v.Timeline = timeline(StepCompleted, StepActive, StepPending)
	}
	return v
}

// --- DashboardService Interface ---
type DashboardService interface {
	GetDashboard(ctx context.Context, rawID string) (*DashboardView, error)
	ListDocuments(ctx context.Context, rawID string) ([]DocumentLink, error)
	Watch(ctx context.Context, rawID string) (<-chan *DashboardView, error)
}

type dashboardService struct {
	appRepo repositories.ApplicationRepository
	blobs   storage.BlobStore
	broker  events.Broker
	opts    DashboardOptions
}

// NewDashboardService creates the applicant status service.
func NewDashboardService(repo repositories.ApplicationRepository, blobs storage.BlobStore, broker events.Broker, opts DashboardOptions) DashboardService {
	if opts.DocumentURLTTL <= 0 {
		opts.DocumentURLTTL = time.Hour
	}
	return &dashboardService{appRepo: repo, blobs: blobs, broker: broker, opts: opts}
}

func (s *dashboardService) fetch(ctx context.Context, rawID string) (*models.Application, error) {
	id := NormalizeApplicationID(rawID)
	if id == "" || !ValidApplicationIDFormat(id) {
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

func (s *dashboardService) GetDashboard(ctx context.Context, rawID string) (*DashboardView, error) {
	app, err := s.fetch(ctx, rawID)
	if err != nil {
		return nil, err
	}
	return s.render(ctx, app), nil
}

// render builds the view and attaches signed document links.
func (s *dashboardService) render(ctx context.Context, app *models.Application) *DashboardView {
	v := BuildDashboardView(app, s.opts)
	v.Documents = s.documentLinks(ctx, app)
	return v
}

// ListDocuments returns time limited links for the uploaded documents.
func (s *dashboardService) ListDocuments(ctx context.Context, rawID string) ([]DocumentLink, error) {
	app, err := s.fetch(ctx, rawID)
	if err != nil {
		return nil, err
	}
	return s.documentLinks(ctx, app), nil
}

// documentLinks signs each document path. A link that cannot be signed is left empty.
func (s *dashboardService) documentLinks(ctx context.Context, app *models.Application) []DocumentLink {
	docs := app.FormData.Documents()
	links := make([]DocumentLink, 0, len(docs))
	for _, d := range docs {
		link := DocumentLink{Name: d.Name, ContentType: d.ContentType, Size: d.Size}
		if s.blobs != nil && d.Path != "" {
			url, err := s.blobs.SignedURL(ctx, d.Path, s.opts.DocumentURLTTL)
			if err != nil {
				utils.LogWarn(err, "Failed to sign document link", map[string]interface{}{"application_id": app.ApplicationID, "document": d.Name})
			} else {
				link.URL = url
			}
		}
		links = append(links, link)
	}
	return links
}

// Watch emits the current view, then a fresh view after every change to the
// record, until ctx is done.
func (s *dashboardService) Watch(ctx context.Context, rawID string) (<-chan *DashboardView, error) {
	app, err := s.fetch(ctx, rawID)
	if err != nil {
		return nil, err
	}
	changes, unsubscribe, err := s.broker.Subscribe(ctx, app.ApplicationID)
	if err != nil {
		return nil, err
	}

	out := make(chan *DashboardView, 1)
	out <- s.render(ctx, app)
	metrics.DashboardSubscribers.Inc()

	go func() {
		defer close(out)
		defer metrics.DashboardSubscribers.Dec()
		defer unsubscribe()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-changes:
				if !ok {
					return
				}
				latest, err := s.appRepo.GetApplicationByApplicationID(ctx, app.ApplicationID)
				if err != nil {
					utils.LogWarn(err, "Failed to refresh dashboard", map[string]interface{}{"application_id": app.ApplicationID})
					continue
				}
				select {
				case out <- s.render(ctx, latest):
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
