package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"rental_app_backend/internal/models"
	"rental_app_backend/internal/repositories"
	"rental_app_backend/pkg/utils"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// --- Custom Service Errors ---
var (
	ErrAdminNotFound      = errors.New("admin not found")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrTokenGeneration    = errors.New("failed to generate token")
	ErrWeakPassword       = errors.New("password does not meet the minimum length")
)

// MinPasswordLength applies to seeded and bootstrapped admin passwords.
const MinPasswordLength = 8

// --- Data Transfer Objects (DTOs) ---

// LoginRequest DTO
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// AuthResponse DTO
type AuthResponse struct {
	Admin       *models.AdminUser `json:"admin"`
	AccessToken string            `json:"access_token"`
	ExpiresAt   time.Time         `json:"expires_at"`
}

// --- AuthService Interface ---
type AuthService interface {
	Login(ctx context.Context, req LoginRequest) (*AuthResponse, error)
	GetAdminProfile(ctx context.Context, adminID int64) (*models.AdminUser, error)
	// EnsureAdmin creates the account or resets its password.
	EnsureAdmin(ctx context.Context, email, password, fullName string) (*models.AdminUser, error)
}

// --- authService Implementation ---
type authService struct {
	adminRepo   repositories.AdminRepository
	tokens      *utils.TokenManager
	compareHash func(hash, password []byte) error
}

var (
	unknownAdminHashOnce sync.Once
	unknownAdminHash     []byte
)

// unknownAdminPasswordHash is compared against when the email has no account,
// so the reply takes as long as a wrong password would.
func unknownAdminPasswordHash() []byte {
	unknownAdminHashOnce.Do(func() {
		h, err := bcrypt.GenerateFromPassword([]byte(uuid.NewString()), bcrypt.DefaultCost)
		if err != nil {
			utils.LogError(err, "Failed to build placeholder password hash")
		}
		unknownAdminHash = h
	})
	return unknownAdminHash
}

// NewAuthService creates a new instance of AuthService.
func NewAuthService(adminRepo repositories.AdminRepository, tokens *utils.TokenManager) AuthService {
	return &authService{adminRepo: adminRepo, tokens: tokens, compareHash: bcrypt.CompareHashAndPassword}
}

// Login checks the password and issues an access token.
func (s *authService) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	admin, err := s.adminRepo.FindAdminByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			_ = s.compareHash(unknownAdminPasswordHash(), []byte(req.Password))
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("login attempt failed: %w", err)
	}

	if err := s.compareHash([]byte(admin.PasswordHash), []byte(req.Password)); err != nil || !admin.IsActive {
		return nil, ErrInvalidCredentials
	}

	accessToken, expiresAt, err := s.tokens.GenerateAccessToken(admin.ID, admin.Email)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenGeneration, err)
	}

	admin.PasswordHash = ""
	return &AuthResponse{Admin: admin, AccessToken: accessToken, ExpiresAt: expiresAt}, nil
}

// GetAdminProfile retrieves an admin by id.
func (s *authService) GetAdminProfile(ctx context.Context, adminID int64) (*models.AdminUser, error) {
	admin, err := s.adminRepo.FindAdminByID(ctx, adminID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrAdminNotFound
		}
		return nil, fmt.Errorf("failed to retrieve admin profile: %w", err)
	}
	admin.PasswordHash = ""
	return admin, nil
}

func (s *authService) EnsureAdmin(ctx context.Context, email, password, fullName string) (*models.AdminUser, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if !utils.IsValidEmail(email) {
		return nil, fmt.Errorf("invalid admin email %q", email)
	}
	if !utils.IsValidPasswordLength(password, MinPasswordLength) {
		return nil, ErrWeakPassword
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	admin := &models.AdminUser{Email: email, FullName: utils.NewNullString(strings.TrimSpace(fullName))}
	if _, err := s.adminRepo.CreateAdmin(ctx, admin, string(hashed)); err != nil {
		if !errors.Is(err, repositories.ErrDuplicateKey) {
			return nil, fmt.Errorf("failed to create admin: %w", err)
		}
		if err := s.adminRepo.UpdateAdminPassword(ctx, email, string(hashed)); err != nil {
			return nil, fmt.Errorf("failed to reset admin password: %w", err)
		}
		utils.LogInfo("Admin password reset", map[string]interface{}{"email": email})
		return s.adminRepo.FindAdminByEmail(ctx, email)
	}
	utils.LogInfo("Admin created", map[string]interface{}{"email": email})
	return admin, nil
}
