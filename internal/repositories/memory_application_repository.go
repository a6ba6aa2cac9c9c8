package repositories

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"rental_app_backend/internal/models"
)

// MemoryApplicationRepository is an in-process ApplicationRepository for
// development and tests. Records are copied on the way in and out.
type MemoryApplicationRepository struct {
	mu     sync.RWMutex
	nextID int64
	byID   map[string]*models.Application
}

// NewMemoryApplicationRepository creates an empty repository.
func NewMemoryApplicationRepository() *MemoryApplicationRepository {
	return &MemoryApplicationRepository{byID: make(map[string]*models.Application)}
}

func (m *MemoryApplicationRepository) CreateApplication(_ context.Context, app *models.Application) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.byID[app.ApplicationID]; exists {
		return 0, ErrDuplicateKey
	}
	now := time.Now().UTC()
	if app.CreatedAt.IsZero() {
		app.CreatedAt = now
	}
	if app.UpdatedAt.IsZero() {
		app.UpdatedAt = app.CreatedAt
	}
	m.nextID++
	app.ID = m.nextID
	m.byID[app.ApplicationID] = app.Clone()
	return app.ID, nil
}

func (m *MemoryApplicationRepository) GetApplicationByApplicationID(_ context.Context, applicationID string) (*models.Application, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	app, ok := m.byID[applicationID]
	if !ok {
		return nil, ErrNotFound
	}
	return app.Clone(), nil
}

func (m *MemoryApplicationRepository) GetApplications(_ context.Context, filters models.ApplicationFilters) ([]models.Application, int, error) {
	m.mu.RLock()
	matched := make([]*models.Application, 0, len(m.byID))
	for _, app := range m.byID {
		if matchesFilters(app, filters) {
			matched = append(matched, app)
		}
	}
	m.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID > matched[j].ID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	if filters.PageSize > 0 {
		page := filters.Page
		if page < 1 {
			page = 1
		}
		start := (page - 1) * filters.PageSize
		if start > total {
			start = total
		}
		end := start + filters.PageSize
		if end > total {
			end = total
		}
		matched = matched[start:end]
	}

	out := make([]models.Application, 0, len(matched))
	for _, app := range matched {
		out = append(out, *app.Clone())
	}
	return out, total, nil
}

func matchesFilters(app *models.Application, f models.ApplicationFilters) bool {
	if f.Status != nil && app.ApplicationStatus != *f.Status {
		return false
	}
	if f.PaymentStatus != nil && app.PaymentStatus != *f.PaymentStatus {
		return false
	}
	if f.Search != nil {
		term := strings.ToLower(strings.TrimSpace(*f.Search))
		if term == "" {
			return true
		}
		property := ""
		if app.PropertyAddress != nil {
			property = *app.PropertyAddress
		}
		for _, field := range []string{app.ApplicationID, app.ApplicantName, app.ApplicantEmail, property} {
			if strings.Contains(strings.ToLower(field), term) {
				return true
			}
		}
		return false
	}
	return true
}

func (m *MemoryApplicationRepository) GetApplicationIDsByEmail(_ context.Context, email string) ([]string, error) {
	m.mu.RLock()
	var matched []*models.Application
	for _, app := range m.byID {
		if strings.EqualFold(app.ApplicantEmail, strings.TrimSpace(email)) {
			matched = append(matched, app)
		}
	}
	m.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	ids := make([]string, 0, len(matched))
	for _, app := range matched {
		ids = append(ids, app.ApplicationID)
	}
	return ids, nil
}

func (m *MemoryApplicationRepository) UpdateApplication(_ context.Context, app *models.Application) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.byID[app.ApplicationID]
	if !ok {
		return ErrNotFound
	}
	app.UpdatedAt = time.Now().UTC()
	updated := existing.Clone()
	updated.ApplicationStatus = app.ApplicationStatus
	updated.PaymentStatus = app.PaymentStatus
	updated.StatusNote = app.StatusNote
	updated.PaymentMarkedBy = app.PaymentMarkedBy
	updated.PaymentMarkedAt = app.PaymentMarkedAt
	updated.StatusChangedBy = app.StatusChangedBy
	updated.StatusChangedAt = app.StatusChangedAt
	updated.UpdatedAt = app.UpdatedAt
	m.byID[app.ApplicationID] = updated.Clone()
	return nil
}

// Count returns the number of stored records.
func (m *MemoryApplicationRepository) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byID)
}
