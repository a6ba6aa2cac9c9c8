package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"rental_app_backend/internal/notifications"
	"rental_app_backend/internal/repositories"
	"rental_app_backend/pkg/utils"
)

var (
	ErrInvalidEmail   = errors.New("invalid email address")
	ErrRecoveryLookup = errors.New("application id lookup failed")
)

// RecoveryMessage is returned whether or not any application matched.
const RecoveryMessage = "If an application exists, you will receive an email with your ID(s)."

type RecoverIDRequest struct {
	Email string `json:"email" binding:"required"`
}

// --- RecoveryService Interface ---
type RecoveryService interface {
	// RecoverApplicationIDs emails every id on file for email and returns the generic message.
	RecoverApplicationIDs(ctx context.Context, email string) (string, error)
}

type recoveryService struct {
	appRepo  repositories.ApplicationRepository
	notifier Notifier
}

func NewRecoveryService(repo repositories.ApplicationRepository, notifier Notifier) RecoveryService {
	return &recoveryService{appRepo: repo, notifier: notifier}
}

func (s *recoveryService) RecoverApplicationIDs(ctx context.Context, email string) (string, error) {
	email = strings.TrimSpace(email)
	if !utils.IsValidEmail(email) {
		return "", ErrInvalidEmail
	}
	ids, err := s.appRepo.GetApplicationIDsByEmail(ctx, email)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRecoveryLookup, err)
	}
	if len(ids) == 0 || s.notifier == nil {
		return RecoveryMessage, nil
	}

	msg, err := notifications.IDRecovery(email, ids)
	if err != nil {
		utils.LogError(err, "Failed to render recovery email")
		return RecoveryMessage, nil
	}
	if err := s.notifier.Enqueue(msg); err != nil {
		utils.LogWarn(err, "Recovery email not queued")
	}
	return RecoveryMessage, nil
}
