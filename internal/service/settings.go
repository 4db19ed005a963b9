package service

import (
	"context"
	"errors"
	"strings"

	"questboard/internal/model"
	"questboard/internal/repository"
	"questboard/pkg/auth"

	"github.com/google/uuid"
)

type SettingsService struct {
	users UserRepository
}

func NewSettingsService(users UserRepository) *SettingsService {
	return &SettingsService{users: users}
}

type ProfileUpdate struct {
	Bio      string
	Twitter  string
	Github   string
	Telegram string
}

func (s *SettingsService) UpdateProfile(ctx context.Context, userID uuid.UUID, in ProfileUpdate) error {
	err := s.users.UpdateProfile(ctx, userID, in.Bio, in.Twitter, in.Github, in.Telegram)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	return nil
}

func (s *SettingsService) UpdatePassword(ctx context.Context, userID uuid.UUID, current, next string) error {
	if len(next) < 6 {
		return ErrPasswordTooShort
	}

	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}

	if !auth.CheckPassword(user.PasswordHash, current) {
		return ErrPasswordMismatch
	}

	hash, err := auth.HashPassword(next)
	if err != nil {
		return err
	}

	return s.users.UpdatePassword(ctx, userID, hash)
}

func (s *SettingsService) UpdateNotifications(ctx context.Context, userID uuid.UUID, prefs model.NotificationPrefs) error {
	return s.users.UpdateNotifications(ctx, userID, prefs)
}

func (s *SettingsService) UpdatePrivacy(ctx context.Context, userID uuid.UUID, prefs model.PrivacyPrefs) error {
	return s.users.UpdatePrivacy(ctx, userID, prefs)
}

// ConnectWallet records the withdrawal address. The address locks on first
// set and every later attempt fails, so reward payouts always go where the
// user originally pointed them.
func (s *SettingsService) ConnectWallet(ctx context.Context, userID uuid.UUID, address string) error {
	address = strings.TrimSpace(address)
	if len(address) < 40 {
		return ErrInvalidWallet
	}

	err := s.users.SetWalletAddress(ctx, userID, address)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrWalletLocked):
			return ErrWalletLocked
		case errors.Is(err, repository.ErrNotFound):
			return ErrUserNotFound
		}
		return err
	}
	return nil
}
