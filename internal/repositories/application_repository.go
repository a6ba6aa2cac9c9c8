package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"rental_app_backend/internal/models"
)

// ApplicationRepository persists rental application records.
type ApplicationRepository interface {
	CreateApplication(ctx context.Context, app *models.Application) (int64, error)
	GetApplicationByApplicationID(ctx context.Context, applicationID string) (*models.Application, error)
	GetApplications(ctx context.Context, filters models.ApplicationFilters) ([]models.Application, int, error)
	GetApplicationIDsByEmail(ctx context.Context, email string) ([]string, error)
	// UpdateApplication overwrites the review fields of an existing record.
	// There is no version check: the last write wins.
	UpdateApplication(ctx context.Context, app *models.Application) error
}

type applicationRepository struct {
	db SQLExecutor
}

// NewApplicationRepository creates a Postgres backed ApplicationRepository.
func NewApplicationRepository(db SQLExecutor) ApplicationRepository {
	return &applicationRepository{db: db}
}

const applicationColumns = `id, application_id, applicant_name, applicant_email, applicant_phone, property_address,
	application_status, payment_status, form_data, status_note, payment_marked_by, payment_marked_at,
	status_changed_by, status_changed_at, created_at, updated_at`

func scanApplication(row scanner, extra ...interface{}) (*models.Application, error) {
	app := &models.Application{}
	var (
		phone, property, note, paidBy, changedBy sql.NullString
		paidAt, changedAt                        sql.NullTime
		formData                                 []byte
	)
	dest := []interface{}{
		&app.ID, &app.ApplicationID, &app.ApplicantName, &app.ApplicantEmail, &phone, &property,
		&app.ApplicationStatus, &app.PaymentStatus, &formData, &note, &paidBy, &paidAt,
		&changedBy, &changedAt, &app.CreatedAt, &app.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	app.ApplicantPhone = nullString(phone)
	app.PropertyAddress = nullString(property)
	app.StatusNote = nullString(note)
	app.PaymentMarkedBy = nullString(paidBy)
	app.StatusChangedBy = nullString(changedBy)
	app.PaymentMarkedAt = nullTime(paidAt)
	app.StatusChangedAt = nullTime(changedAt)
	if len(formData) > 0 {
		if err := json.Unmarshal(formData, &app.FormData); err != nil {
			return nil, fmt.Errorf("decode form_data: %w", err)
		}
	}
	return app, nil
}

func nullString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

// CreateApplication inserts a new record and returns its internal id.
func (r *applicationRepository) CreateApplication(ctx context.Context, app *models.Application) (int64, error) {
	query := `INSERT INTO rental_applications (application_id, applicant_name, applicant_email, applicant_phone,
	              property_address, application_status, payment_status, form_data, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	          RETURNING id`

	now := time.Now().UTC()
	if app.CreatedAt.IsZero() {
		app.CreatedAt = now
	}
	if app.UpdatedAt.IsZero() {
		app.UpdatedAt = app.CreatedAt
	}
	formData, err := json.Marshal(app.FormData)
	if err != nil {
		return 0, fmt.Errorf("%w: encoding form_data: %v", ErrDatabaseError, err)
	}

	err = r.db.QueryRowContext(ctx, query,
		app.ApplicationID, app.ApplicantName, app.ApplicantEmail, app.ApplicantPhone,
		app.PropertyAddress, app.ApplicationStatus, app.PaymentStatus, formData,
		app.CreatedAt, app.UpdatedAt,
	).Scan(&app.ID)
	if err != nil {
		return 0, wrapWriteError(err, "creating application")
	}
	return app.ID, nil
}

// GetApplicationByApplicationID looks a record up by its external id.
func (r *applicationRepository) GetApplicationByApplicationID(ctx context.Context, applicationID string) (*models.Application, error) {
	query := `SELECT ` + applicationColumns + ` FROM rental_applications WHERE application_id = $1`
	app, err := scanApplication(r.db.QueryRowContext(ctx, query, applicationID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: getting application %s: %v", ErrDatabaseError, applicationID, err)
	}
	return app, nil
}

// GetApplications lists records newest first with optional search and status filters.
func (r *applicationRepository) GetApplications(ctx context.Context, filters models.ApplicationFilters) ([]models.Application, int, error) {
	apps := []models.Application{}
	totalCount := 0

	var qb strings.Builder
	qb.WriteString(`SELECT ` + applicationColumns + `, COUNT(*) OVER() AS total_count FROM rental_applications`)

	var conditions []string
	var args []interface{}
	argCount := 1

	if filters.Search != nil && strings.TrimSpace(*filters.Search) != "" {
		pattern := "%" + strings.ToLower(strings.TrimSpace(*filters.Search)) + "%"
		conditions = append(conditions, fmt.Sprintf("(LOWER(application_id) LIKE $%d OR LOWER(applicant_name) LIKE $%d OR LOWER(applicant_email) LIKE $%d OR LOWER(COALESCE(property_address, '')) LIKE $%d)", argCount, argCount, argCount, argCount))
		args = append(args, pattern)
		argCount++
	}
	if filters.Status != nil {
		conditions = append(conditions, fmt.Sprintf("application_status = $%d", argCount))
		args = append(args, *filters.Status)
		argCount++
	}
	if filters.PaymentStatus != nil {
		conditions = append(conditions, fmt.Sprintf("payment_status = $%d", argCount))
		args = append(args, *filters.PaymentStatus)
		argCount++
	}
	if len(conditions) > 0 {
		qb.WriteString(" WHERE " + strings.Join(conditions, " AND "))
	}
	qb.WriteString(" ORDER BY created_at DESC, id DESC")

	if filters.PageSize > 0 {
		qb.WriteString(fmt.Sprintf(" LIMIT $%d", argCount))
		args = append(args, filters.PageSize)
		argCount++
		if filters.Page > 1 {
			qb.WriteString(fmt.Sprintf(" OFFSET $%d", argCount))
			args = append(args, (filters.Page-1)*filters.PageSize)
		}
	}

	rows, err := r.db.QueryContext(ctx, qb.String(), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: listing applications: %v", ErrDatabaseError, err)
	}
	defer rows.Close()

	for rows.Next() {
		app, err := scanApplication(rows, &totalCount)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: scanning application: %v", ErrDatabaseError, err)
		}
		apps = append(apps, *app)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("%w: iterating applications: %v", ErrDatabaseError, err)
	}
	return apps, totalCount, nil
}

// GetApplicationIDsByEmail returns every application id filed under email, newest first.
func (r *applicationRepository) GetApplicationIDsByEmail(ctx context.Context, email string) ([]string, error) {
	query := `SELECT application_id FROM rental_applications
	          WHERE LOWER(applicant_email) = LOWER($1)
	          ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query, strings.TrimSpace(email))
	if err != nil {
		return nil, fmt.Errorf("%w: listing ids by email: %v", ErrDatabaseError, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%w: scanning id: %v", ErrDatabaseError, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating ids: %v", ErrDatabaseError, err)
	}
	return ids, nil
}

// UpdateApplication writes status, payment and audit columns.
func (r *applicationRepository) UpdateApplication(ctx context.Context, app *models.Application) error {
	query := `UPDATE rental_applications
	          SET application_status = $1, payment_status = $2, status_note = $3,
	              payment_marked_by = $4, payment_marked_at = $5,
	              status_changed_by = $6, status_changed_at = $7, updated_at = $8
	          WHERE application_id = $9`

	app.UpdatedAt = time.Now().UTC()
	result, err := r.db.ExecContext(ctx, query,
		app.ApplicationStatus, app.PaymentStatus, app.StatusNote,
		app.PaymentMarkedBy, app.PaymentMarkedAt,
		app.StatusChangedBy, app.StatusChangedAt, app.UpdatedAt,
		app.ApplicationID,
	)
	if err != nil {
		return wrapWriteError(err, "updating application "+app.ApplicationID)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: rows affected: %v", ErrDatabaseError, err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
