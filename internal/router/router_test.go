package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"rental_app_backend/internal/autosave"
	"rental_app_backend/internal/events"
	"rental_app_backend/internal/form"
	"rental_app_backend/internal/notifications"
	"rental_app_backend/internal/repositories"
	"rental_app_backend/internal/services"
	"rental_app_backend/internal/storage"
	"rental_app_backend/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

const (
	allowedAdmin = "admin@choiceproperties.com"
	otherAdmin   = "leasing@example.com"
	adminPass    = "correct-horse"
)

type stubGeo struct{}

func (stubGeo) Autocomplete(_ context.Context, text string) ([]string, error) {
	return []string{text + " Street, Springfield"}, nil
}

type testServer struct {
	engine   *gin.Engine
	services *Services
	apps     *repositories.MemoryApplicationRepository
	drafts   *repositories.MemoryDraftRepository
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	apps := repositories.NewMemoryApplicationRepository()
	drafts := repositories.NewMemoryDraftRepository()
	dispatcher := notifications.NewDispatcher(notifications.LogSender{}, notifications.DispatcherConfig{Workers: 1, QueueSize: 16})
	ctx, cancel := context.WithCancel(context.Background())
	dispatcher.Start(ctx)
	debouncer := autosave.NewDebouncer(time.Hour)

	engine := gin.New()
	svcs := Setup(engine, Dependencies{
		Applications:   apps,
		Admins:         repositories.NewMemoryAdminRepository(),
		Drafts:         drafts,
		Blobs:          storage.NewMemoryStore(),
		Broker:         events.NewMemoryBroker(),
		Notifier:       dispatcher,
		Geo:            stubGeo{},
		Tokens:         utils.NewTokenManager("router-test-secret", time.Hour),
		Debouncer:      debouncer,
		AdminAllowlist: []string{allowedAdmin},
		Dashboard:      services.DashboardOptions{ApplicationFee: 50, PaymentMethods: []string{"Zelle"}},
	})
	t.Cleanup(func() {
		debouncer.FlushAll()
		stopCtx, stopCancel := context.WithTimeout(context.Background(), time.Second)
		defer stopCancel()
		_ = dispatcher.Stop(stopCtx)
		cancel()
	})

	for _, email := range []string{allowedAdmin, otherAdmin} {
		_, err := svcs.Auth.EnsureAdmin(context.Background(), email, adminPass, "")
		require.NoError(t, err)
	}
	return &testServer{engine: engine, services: svcs, apps: apps, drafts: drafts}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), out), w.Body.String())
}

func (s *testServer) login(t *testing.T, email string) string {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/v1/admin/login", gin.H{"email": email, "password": adminPass}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp services.AuthResponse
	decode(t, w, &resp)
	return resp.AccessToken
}

func sectionValues() map[form.Section]map[string]interface{} {
	move := time.Now().AddDate(0, 1, 0).Format(form.DateLayout)
	return map[form.Section]map[string]interface{}{
		form.SectionProperty: {
			"propertyAddress": "12 Elm St", "moveInDate": move, "leaseTerm": "12 months",
			"firstName": "Jane", "lastName": "Doe", "email": "jane@example.com",
			"phone": "555-123-4567", "dob": "1990-05-17",
		},
		form.SectionResidence: {
			"currentAddress": "9 Oak Ave", "residencyStart": "2021-01-01", "rentAmount": "1200",
			"reasonLeaving": "Relocating", "landlordName": "Sam Lee", "landlordPhone": "5552223333",
		},
		form.SectionEmployment: {
			"employmentStatus": "Full-time", "employer": "Acme", "jobTitle": "Engineer",
			"employmentDuration": "3 years", "supervisorName": "Pat Kim", "supervisorPhone": "5554445555",
			"monthlyIncome": "6000",
		},
		form.SectionReferences: {
			"ref1Name": "Chris Ray", "ref1Phone": "5556667777",
			"emergencyName": "Alex Doe", "emergencyPhone": "5558889999",
		},
		form.SectionReview: {"termsAgree": true},
	}
}

// submitThroughForm walks a draft through every section and submits it.
func (s *testServer) submitThroughForm(t *testing.T) string {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/v1/drafts", nil, "")
	require.Equal(t, http.StatusCreated, w.Code)
	var draft services.DraftView
	decode(t, w, &draft)
	base := "/api/v1/drafts/" + draft.DraftID

	w = s.do(t, http.MethodPost, base+"/advance", nil, "")
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), utils.ErrCodeValidationFailed)

	values := sectionValues()
	for sec := form.SectionProperty; sec <= form.SectionReview; sec++ {
		w = s.do(t, http.MethodPatch, base+"/fields", gin.H{"fields": values[sec]}, "")
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		if sec < form.SectionReview {
			w = s.do(t, http.MethodPost, base+"/advance", nil, "")
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		}
	}

	w = s.do(t, http.MethodPost, base+"/submit", gin.H{"confirm": false}, "")
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), utils.ErrCodeConfirmationRequired)

	w = s.do(t, http.MethodPost, base+"/submit", gin.H{"confirm": true, "ssn": "123-45-6789"}, "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var result services.SubmissionResult
	decode(t, w, &result)
	require.NotEmpty(t, result.ApplicationID)

	_, stillSaved := s.drafts.RawDraft(draft.DraftID)
	assert.False(t, stillSaved)
	w = s.do(t, http.MethodGet, base, nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	return result.ApplicationID
}

func TestEndToEnd_SubmitReviewAndPay(t *testing.T) {
	s := newTestServer(t)
	appID := s.submitThroughForm(t)
	assert.Equal(t, 1, s.apps.Count())

	stored, err := s.apps.GetApplicationByApplicationID(context.Background(), appID)
	require.NoError(t, err)
	assert.Equal(t, "awaiting_payment", string(stored.ApplicationStatus))
	assert.Equal(t, "pending", string(stored.PaymentStatus))
	assert.NotContains(t, stored.FormData, "ssn")

	w := s.do(t, http.MethodGet, "/api/v1/applications/"+appID, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var view services.DashboardView
	decode(t, w, &view)
	assert.Equal(t, services.BannerAwaitingPayment, view.Banner)
	require.NotNil(t, view.PaymentInfo)

	token := s.login(t, allowedAdmin)
	w = s.do(t, http.MethodPost, "/api/v1/admin/applications/"+appID+"/payment", gin.H{"confirm": true}, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	paid, err := s.apps.GetApplicationByApplicationID(context.Background(), appID)
	require.NoError(t, err)
	assert.Equal(t, "paid", string(paid.PaymentStatus))
	assert.Equal(t, "under_review", string(paid.ApplicationStatus))
	require.NotNil(t, paid.PaymentMarkedBy)
	assert.Equal(t, allowedAdmin, *paid.PaymentMarkedBy)
	require.NotNil(t, paid.PaymentMarkedAt)

	w = s.do(t, http.MethodPost, "/api/v1/admin/applications/"+appID+"/payment", gin.H{"confirm": true}, token)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/applications/"+appID, nil, "")
	decode(t, w, &view)
	assert.Equal(t, services.BannerUnderReview, view.Banner)

	w = s.do(t, http.MethodPost, "/api/v1/admin/applications/"+appID+"/status", gin.H{"status": "denied", "note": "Income", "confirm": true}, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(t, http.MethodGet, "/api/v1/applications/"+appID, nil, "")
	decode(t, w, &view)
	assert.Equal(t, services.BannerDenied, view.Banner)
	assert.NotEmpty(t, view.FairHousingNotice)
	assert.False(t, view.ShowTimeline)
}

func TestAdminRoutes_AllowlistAndAuth(t *testing.T) {
	s := newTestServer(t)
	appID := s.submitThroughForm(t)

	w := s.do(t, http.MethodGet, "/api/v1/admin/applications", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/admin/login", gin.H{"email": allowedAdmin, "password": "nope"}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	outsider := s.login(t, otherAdmin)
	for _, path := range []string{
		"/api/v1/admin/applications",
		"/api/v1/admin/applications/" + appID,
		"/api/v1/admin/applications/export.xlsx",
	} {
		w = s.do(t, http.MethodGet, path, nil, outsider)
		assert.Equal(t, http.StatusForbidden, w.Code, path)
		assert.Contains(t, w.Body.String(), "Access restricted")
		assert.NotContains(t, w.Body.String(), appID)
		assert.NotContains(t, w.Body.String(), "jane@example.com")
	}
	w = s.do(t, http.MethodPost, "/api/v1/admin/applications/"+appID+"/payment", gin.H{"confirm": true}, outsider)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/admin/me", nil, outsider)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), otherAdmin)

	token := s.login(t, allowedAdmin)
	w = s.do(t, http.MethodGet, "/api/v1/admin/applications?page=1&page_size=10&status=awaiting_payment", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	var list services.ApplicationList
	decode(t, w, &list)
	require.Len(t, list.Items, 1)
	assert.Equal(t, appID, list.Items[0].ApplicationID)

	w = s.do(t, http.MethodGet, "/api/v1/admin/applications?status=bogus", nil, token)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/admin/applications/not-an-id", nil, token)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), utils.ErrCodeInvalidApplicationID)

	w = s.do(t, http.MethodGet, "/api/v1/admin/applications/export.xlsx", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	book, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	defer book.Close()
	rows, err := book.GetRows("Applications")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Application ID", rows[0][0])
	assert.Equal(t, appID, rows[1][0])
}

func TestPublicRoutes(t *testing.T) {
	s := newTestServer(t)
	appID := s.submitThroughForm(t)

	w := s.do(t, http.MethodGet, "/api/v1/applications/bad-id", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = s.do(t, http.MethodGet, "/api/v1/applications/CP-20260101-00000000", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/recover-id", gin.H{"email": "jane@example.com"}, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), services.RecoveryMessage)
	w = s.do(t, http.MethodPost, "/api/v1/recover-id", gin.H{"email": "ghost@example.com"}, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), services.RecoveryMessage)
	w = s.do(t, http.MethodPost, "/api/v1/recover-id", gin.H{"email": "nope"}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/address/autocomplete?text=12%20Elm", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "12 Elm Street")

	w = s.do(t, http.MethodGet, "/api/v1/applications/"+appID+"/documents", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"documents":[]}`, w.Body.String())

	direct := map[string]interface{}{}
	for _, fields := range sectionValues() {
		for k, v := range fields {
			direct[k] = v
		}
	}
	w = s.do(t, http.MethodPost, "/api/v1/applications", gin.H{"fields": direct, "confirm": true}, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, 1, s.apps.Count())
}
