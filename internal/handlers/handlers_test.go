package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"rental_app_backend/internal/autosave"
	"rental_app_backend/internal/events"
	"rental_app_backend/internal/geo"
	"rental_app_backend/internal/models"
	"rental_app_backend/internal/repositories"
	"rental_app_backend/internal/services"
	"rental_app_backend/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAutocompleter struct {
	suggestions []string
	err         error
}

func (f fakeAutocompleter) Autocomplete(context.Context, string) ([]string, error) {
	return f.suggestions, f.err
}

// streamRecorder adds the CloseNotify support gin's Stream expects.
type streamRecorder struct {
	*httptest.ResponseRecorder
	closed chan bool
}

func (r *streamRecorder) CloseNotify() <-chan bool {
	return r.closed
}

func init() {
	gin.SetMode(gin.TestMode)
}

func TestAutocompleteAddress_ErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		ac   fakeAutocompleter
		code int
		body string
	}{
		{"ok", fakeAutocompleter{suggestions: []string{"1 Main St"}}, http.StatusOK, "1 Main St"},
		{"short", fakeAutocompleter{err: geo.ErrQueryTooShort}, http.StatusOK, `"suggestions":[]`},
		{"unconfigured", fakeAutocompleter{err: geo.ErrNotConfigured}, http.StatusServiceUnavailable, "unavailable"},
		{"upstream", fakeAutocompleter{err: errors.New("boom")}, http.StatusBadGateway, "BAD_GATEWAY"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := NewApplicationHandler(nil, nil, tc.ac, nil)
			r := gin.New()
			r.GET("/address", h.AutocompleteAddress)

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/address?text=1%20Ma", nil))
			assert.Equal(t, tc.code, w.Code)
			assert.Contains(t, w.Body.String(), tc.body)
		})
	}
}

func newDraftEngine(t *testing.T) (*gin.Engine, services.DraftService, *storage.MemoryStore) {
	t.Helper()
	apps := repositories.NewMemoryApplicationRepository()
	blobs := storage.NewMemoryStore()
	sub := services.NewSubmissionService(apps, nil, nil, nil)
	debouncer := autosave.NewDebouncer(time.Hour)
	t.Cleanup(debouncer.FlushAll)
	ds := services.NewDraftService(repositories.NewMemoryDraftRepository(), sub, blobs, debouncer, nil, 64)

	h := NewDraftHandler(ds)
	r := gin.New()
	r.POST("/drafts", h.CreateDraft)
	r.POST("/drafts/:id/documents", h.UploadDocument)
	r.POST("/drafts/:id/advance", h.AdvanceDraft)
	return r, ds, blobs
}

func multipartUpload(t *testing.T, filename, contentType string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	header.Set("Content-Type", contentType)
	part, err := mw.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &body, mw.FormDataContentType()
}

func TestUploadDocument(t *testing.T) {
	r, ds, blobs := newDraftEngine(t)
	draft, err := ds.CreateDraft(context.Background())
	require.NoError(t, err)
	path := "/drafts/" + draft.DraftID + "/documents"

	body, ct := multipartUpload(t, "lease.png", "image/png", []byte("\x89PNG"))
	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var view services.DraftView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	require.Len(t, view.Documents, 1)
	_, storedType, err := blobs.Get(view.Documents[0].Path)
	require.NoError(t, err)
	assert.Equal(t, "image/png", storedType)

	body, ct = multipartUpload(t, "notes.txt", "text/plain", []byte("hi"))
	req = httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", ct)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "field_errors")

	body, ct = multipartUpload(t, "huge.pdf", "application/pdf", bytes.Repeat([]byte("a"), 128))
	req = httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", ct)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "10 MB")

	req = httptest.NewRequest(http.MethodPost, "/drafts/missing/documents", strings.NewReader(""))
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdvanceDraft_NotFoundAndValidation(t *testing.T) {
	r, ds, _ := newDraftEngine(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/drafts/nope/advance", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	draft, err := ds.CreateDraft(context.Background())
	require.NoError(t, err)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/drafts/"+draft.DraftID+"/advance", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"firstName"`)
}

func TestStreamDashboard_SendsInitialView(t *testing.T) {
	apps := repositories.NewMemoryApplicationRepository()
	_, err := apps.CreateApplication(context.Background(), &models.Application{
		ApplicationID:     "CP-20260310-SSE00001",
		ApplicationStatus: models.ApplicationStatusAwaitingPayment,
		PaymentStatus:     models.PaymentStatusPending,
	})
	require.NoError(t, err)
	dashboard := services.NewDashboardService(apps, nil, events.NewMemoryBroker(), services.DashboardOptions{ApplicationFee: 50})
	h := NewApplicationHandler(dashboard, nil, nil, nil)
	r := gin.New()
	r.GET("/applications/:id/events", h.StreamDashboard)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/applications/CP-20260310-SSE00001/events", nil).WithContext(ctx)
	w := &streamRecorder{ResponseRecorder: httptest.NewRecorder(), closed: make(chan bool)}
	r.ServeHTTP(w, req)

	assert.Contains(t, w.Body.String(), "event:status")
	assert.Contains(t, w.Body.String(), `"banner":"awaiting_payment"`)
}

func TestStreamDashboard_EndsWhenServerShutsDown(t *testing.T) {
	apps := repositories.NewMemoryApplicationRepository()
	_, err := apps.CreateApplication(context.Background(), &models.Application{
		ApplicationID:     "CP-20260310-5E000002",
		ApplicationStatus: models.ApplicationStatusAwaitingPayment,
		PaymentStatus:     models.PaymentStatusPending,
	})
	require.NoError(t, err)
	dashboard := services.NewDashboardService(apps, nil, events.NewMemoryBroker(), services.DashboardOptions{})
	streams, endStreams := context.WithCancel(context.Background())
	h := NewApplicationHandler(dashboard, nil, nil, streams)
	r := gin.New()
	r.GET("/applications/:id/events", h.StreamDashboard)

	req := httptest.NewRequest(http.MethodGet, "/applications/CP-20260310-5E000002/events", nil)
	w := &streamRecorder{ResponseRecorder: httptest.NewRecorder(), closed: make(chan bool)}
	done := make(chan struct{})
	go func() {
		r.ServeHTTP(w, req)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	endStreams()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stream still open after shutdown")
	}
}
