package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"rental_app_backend/internal/models"
)

// AdminRepository persists review panel accounts.
type AdminRepository interface {
	CreateAdmin(ctx context.Context, admin *models.AdminUser, hashedPassword string) (int64, error)
	// FindAdminByEmail returns the account with its password hash populated.
	FindAdminByEmail(ctx context.Context, email string) (*models.AdminUser, error)
	FindAdminByID(ctx context.Context, id int64) (*models.AdminUser, error)
	UpdateAdminPassword(ctx context.Context, email, hashedPassword string) error
}

type adminRepository struct {
	db SQLExecutor
}

// NewAdminRepository creates a Postgres backed AdminRepository.
func NewAdminRepository(db SQLExecutor) AdminRepository {
	return &adminRepository{db: db}
}

// CreateAdmin inserts an active admin. Emails are stored lower-cased.
func (r *adminRepository) CreateAdmin(ctx context.Context, admin *models.AdminUser, hashedPassword string) (int64, error) {
	query := `INSERT INTO admin_users (email, password_hash, full_name, is_active, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6)
	          RETURNING id`

	now := time.Now().UTC()
	admin.Email = strings.ToLower(strings.TrimSpace(admin.Email))
	admin.IsActive = true
	admin.CreatedAt, admin.UpdatedAt = now, now

	err := r.db.QueryRowContext(ctx, query,
		admin.Email, hashedPassword, admin.FullName, admin.IsActive, now, now,
	).Scan(&admin.ID)
	if err != nil {
		return 0, wrapWriteError(err, "creating admin")
	}
	return admin.ID, nil
}

func (r *adminRepository) findOne(ctx context.Context, where string, arg interface{}) (*models.AdminUser, error) {
	query := `SELECT id, email, password_hash, full_name, is_active, created_at, updated_at
	          FROM admin_users WHERE ` + where
	admin := &models.AdminUser{}
	var fullName sql.NullString
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&admin.ID, &admin.Email, &admin.PasswordHash, &fullName, &admin.IsActive, &admin.CreatedAt, &admin.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: finding admin: %v", ErrDatabaseError, err)
	}
	admin.FullName = nullString(fullName)
	return admin, nil
}

func (r *adminRepository) FindAdminByEmail(ctx context.Context, email string) (*models.AdminUser, error) {
	return r.findOne(ctx, "email = $1", strings.ToLower(strings.TrimSpace(email)))
}

func (r *adminRepository) FindAdminByID(ctx context.Context, id int64) (*models.AdminUser, error) {
	return r.findOne(ctx, "id = $1", id)
}

func (r *adminRepository) UpdateAdminPassword(ctx context.Context, email, hashedPassword string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE admin_users SET password_hash = $1, is_active = TRUE, updated_at = $2 WHERE email = $3`,
		hashedPassword, time.Now().UTC(), strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return fmt.Errorf("%w: updating admin password: %v", ErrDatabaseError, err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// MemoryAdminRepository is an in-process AdminRepository.
type MemoryAdminRepository struct {
	mu      sync.RWMutex
	nextID  int64
	byEmail map[string]*models.AdminUser
}

// NewMemoryAdminRepository creates an empty repository.
func NewMemoryAdminRepository() *MemoryAdminRepository {
	return &MemoryAdminRepository{byEmail: make(map[string]*models.AdminUser)}
}

func (m *MemoryAdminRepository) CreateAdmin(_ context.Context, admin *models.AdminUser, hashedPassword string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	email := strings.ToLower(strings.TrimSpace(admin.Email))
	if _, ok := m.byEmail[email]; ok {
		return 0, ErrDuplicateKey
	}
	m.nextID++
	now := time.Now().UTC()
	stored := *admin
	stored.ID = m.nextID
	stored.Email = email
	stored.PasswordHash = hashedPassword
	stored.IsActive = true
	stored.CreatedAt, stored.UpdatedAt = now, now
	m.byEmail[email] = &stored

	admin.ID, admin.Email, admin.IsActive = stored.ID, email, true
	admin.CreatedAt, admin.UpdatedAt = now, now
	return stored.ID, nil
}

func (m *MemoryAdminRepository) FindAdminByEmail(_ context.Context, email string) (*models.AdminUser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	admin, ok := m.byEmail[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return nil, ErrNotFound
	}
	c := *admin
	return &c, nil
}

func (m *MemoryAdminRepository) FindAdminByID(_ context.Context, id int64) (*models.AdminUser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, admin := range m.byEmail {
		if admin.ID == id {
			c := *admin
			return &c, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryAdminRepository) UpdateAdminPassword(_ context.Context, email, hashedPassword string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	admin, ok := m.byEmail[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return ErrNotFound
	}
	admin.PasswordHash = hashedPassword
	admin.IsActive = true
	admin.UpdatedAt = time.Now().UTC()
	return nil
}
