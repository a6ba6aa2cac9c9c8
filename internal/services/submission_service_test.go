package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"rental_app_backend/internal/events"
	"rental_app_backend/internal/form"
	"rental_app_backend/internal/models"
	"rental_app_backend/internal/notifications"
	"rental_app_backend/internal/repositories"
	"rental_app_backend/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSubmission(repo repositories.ApplicationRepository, broker events.Broker, n Notifier, ids IDGenerator) *submissionService {
	svc := NewSubmissionService(repo, broker, n, ids).(*submissionService)
	svc.now = clock
	return svc
}

func TestSubmit_StoresPendingRecordWithoutSSN(t *testing.T) {
	repo := repositories.NewMemoryApplicationRepository()
	broker := events.NewMemoryBroker()
	notifier := &recordingNotifier{}
	svc := newTestSubmission(repo, broker, notifier, sequentialIDs("CP-20260310-AAAA0001"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	changes, _, err := broker.Subscribe(ctx, "CP-20260310-AAAA0001")
	require.NoError(t, err)

	fields := validFields()
	fields["ssn"] = "123-45-6789"
	fields["applicant_SSN"] = "123456789"
	fields["ssnNumber"] = "123-45-6789"
	fields["ssn_number"] = "123-45-6789"
	fields["SSNConfirm"] = "123456789"
	fields["ssn1"] = "123-45-6789"
	fields["applicantSsnLast4"] = "6789"

	res, err := svc.Submit(ctx, SubmitApplicationRequest{
		Fields:    fields,
		Documents: []models.Document{{Name: "paystub.pdf", Path: "applications/d1/x-paystub.pdf"}},
		DraftID:   "d1",
		Confirm:   true,
	})
	require.NoError(t, err)
	assert.Equal(t, "CP-20260310-AAAA0001", res.ApplicationID)

	var stages []string
	for _, st := range res.Stages {
		stages = append(stages, st.Stage)
	}
	assert.Equal(t, []string{StageProcessing, StageValidating, StagePreparing, StageSubmitting, StageComplete}, stages)

	stored, err := repo.GetApplicationByApplicationID(ctx, res.ApplicationID)
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationStatusAwaitingPayment, stored.ApplicationStatus)
	assert.Equal(t, models.PaymentStatusPending, stored.PaymentStatus)
	assert.Equal(t, "Jane Doe", stored.ApplicantName)
	assert.Equal(t, "12 Elm St, Springfield, Unit 4B", *stored.PropertyAddress)
	assert.Len(t, stored.FormData.Documents(), 1)
	for key := range stored.FormData {
		assert.False(t, form.IsSensitiveField(key), "stored key %q", key)
	}
	for _, key := range []string{"ssn", "applicant_SSN", "ssnNumber", "ssn_number", "SSNConfirm", "ssn1", "applicantSsnLast4"} {
		assert.NotContains(t, stored.FormData, key)
	}

	select {
	case ev := <-changes:
		assert.Equal(t, events.TypeApplicationCreated, ev.Type)
	case <-time.After(time.Second):
		t.Fatal("no created event")
	}
	assert.Equal(t, []notifications.Kind{notifications.KindSubmissionReceived}, notifier.kinds())
}

func TestSubmit_ValidationReportsFirstFailingSection(t *testing.T) {
	repo := repositories.NewMemoryApplicationRepository()
	svc := newTestSubmission(repo, nil, nil, nil)

	fields := validFields()
	delete(fields, "employer")
	delete(fields, "ref1Name")

	_, err := svc.Submit(context.Background(), SubmitApplicationRequest{Fields: fields, Confirm: true})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSubmissionValidation))

	var verr *SubmissionValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, form.SectionEmployment, verr.Section)
	assert.Contains(t, verr.FieldErrors, "employer")
	assert.Equal(t, 0, repo.Count())
}

func TestSubmit_RejectsMalformedIdentityNumber(t *testing.T) {
	svc := newTestSubmission(repositories.NewMemoryApplicationRepository(), nil, nil, nil)
	fields := validFields()
	fields["ssn"] = "12-34"

	_, err := svc.Submit(context.Background(), SubmitApplicationRequest{Fields: fields, Confirm: true})
	var verr *SubmissionValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, MsgInvalidSSN, verr.FieldErrors["ssn"])
}

func TestSubmit_RequiresConfirmation(t *testing.T) {
	repo := repositories.NewMemoryApplicationRepository()
	svc := newTestSubmission(repo, nil, nil, nil)

	_, err := svc.Submit(context.Background(), SubmitApplicationRequest{Fields: validFields()})
	assert.ErrorIs(t, err, ErrConfirmationRequired)
	assert.Equal(t, 0, repo.Count())
}

func TestSubmit_RejectsEmptyPayload(t *testing.T) {
	svc := newTestSubmission(repositories.NewMemoryApplicationRepository(), nil, nil, nil)

	_, err := svc.Submit(context.Background(), SubmitApplicationRequest{Fields: map[string]interface{}{}, Confirm: true})
	var verr *SubmissionValidationError
	require.True(t, errors.As(err, &verr))
	assert.NotEmpty(t, verr.FieldErrors)
}

func TestSubmit_RetriesOnIDCollision(t *testing.T) {
	repo := repositories.NewMemoryApplicationRepository()
	_, err := repo.CreateApplication(context.Background(), &models.Application{ApplicationID: "CP-20260310-0000ABCD"})
	require.NoError(t, err)

	svc := newTestSubmission(repo, nil, nil, sequentialIDs("CP-20260310-FRESH001"))
	res, err := svc.Submit(context.Background(), SubmitApplicationRequest{
		Fields:        validFields(),
		ApplicationID: "cp-20260310-0000abcd",
		Confirm:       true,
	})
	require.NoError(t, err)
	assert.Equal(t, "CP-20260310-FRESH001", res.ApplicationID)
	assert.Equal(t, 2, repo.Count())
}

func TestSubmit_GivesUpAfterRepeatedCollisions(t *testing.T) {
	repo := repositories.NewMemoryApplicationRepository()
	_, err := repo.CreateApplication(context.Background(), &models.Application{ApplicationID: "CP-20260310-SAME0001"})
	require.NoError(t, err)

	same := func(time.Time) string { return "CP-20260310-SAME0001" }
	svc := newTestSubmission(repo, nil, nil, same)
	_, err = svc.Submit(context.Background(), SubmitApplicationRequest{Fields: validFields(), Confirm: true})
	assert.ErrorIs(t, err, ErrIDAllocation)
}

func TestSubmit_IgnoresForeignDocumentsAndMalformedIDs(t *testing.T) {
	repo := repositories.NewMemoryApplicationRepository()
	blobs := storage.NewMemoryStore()
	svc := newTestSubmission(repo, nil, nil, sequentialIDs("CP-20260310-00C0FFEE"))

	fields := validFields()
	fields[models.FormDataDocumentsKey] = "applications/victim-draft/0f1e-lease.pdf"
	res, err := svc.Submit(context.Background(), SubmitApplicationRequest{
		Fields: fields,
		Documents: []models.Document{
			{Name: "lease.pdf", Path: "applications/victim-draft/0f1e-lease.pdf"},
			{Name: "escape.pdf", Path: "applications/mine/../victim-draft/0f1e-lease.pdf"},
			{Name: "paystub.pdf", Path: "applications/mine/1a2b-paystub.pdf"},
		},
		ApplicationID: "CP-x",
		DraftID:       "mine",
		Confirm:       true,
	})
	require.NoError(t, err)
	assert.Equal(t, "CP-20260310-00C0FFEE", res.ApplicationID)

	stored, err := repo.GetApplicationByApplicationID(context.Background(), res.ApplicationID)
	require.NoError(t, err)
	docs := stored.FormData.Documents()
	require.Len(t, docs, 1)
	assert.Equal(t, "applications/mine/1a2b-paystub.pdf", docs[0].Path)

	dash := NewDashboardService(repo, blobs, nil, DashboardOptions{})
	links, err := dash.ListDocuments(context.Background(), res.ApplicationID)
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.NotContains(t, links[0].URL, "victim-draft")

	bare, err := svc.Submit(context.Background(), SubmitApplicationRequest{
		Fields:    validFields(),
		Documents: []models.Document{{Name: "lease.pdf", Path: "applications/victim-draft/0f1e-lease.pdf"}},
		Confirm:   true,
	})
	require.NoError(t, err)
	stored, err = repo.GetApplicationByApplicationID(context.Background(), bare.ApplicationID)
	require.NoError(t, err)
	assert.Empty(t, stored.FormData.Documents())
}

func TestIsCanonicalApplicationID(t *testing.T) {
	assert.True(t, IsCanonicalApplicationID(NewApplicationID(fixedNow)))
	assert.True(t, IsCanonicalApplicationID("CP-20260310-0000ABCD"))
	for _, id := range []string{"CP-X", "CP-", "CP-2026031-0000ABCD", "CP-20260310-0000abcd", "CP-20260310-0000ABCDE", "XX-20260310-0000ABCD"} {
		assert.False(t, IsCanonicalApplicationID(id), id)
	}
}
