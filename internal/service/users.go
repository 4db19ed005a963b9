package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"questboard/internal/model"
	"questboard/internal/repository"
	"questboard/pkg/auth"
	"questboard/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SignupReferralBonusXP is granted to the referrer when a referred user
// verifies their email.
const SignupReferralBonusXP = 50

type UserService struct {
	repo     UserRepository
	notifier Notifier
}

func NewUserService(repo UserRepository, notifier Notifier) *UserService {
	return &UserService{
		repo:     repo,
		notifier: notifier,
	}
}

type RegisterInput struct {
	Username     string
	Email        string
	Password     string
	ReferralCode string
}

func (s *UserService) Register(ctx context.Context, in RegisterInput) (*model.User, error) {
	username := strings.TrimSpace(in.Username)
	email := strings.ToLower(strings.TrimSpace(in.Email))

	if len(username) < 3 {
		return nil, fmt.Errorf("username must be at least 3 characters")
	}
	if len(in.Password) < 6 {
		return nil, ErrPasswordTooShort
	}

	passwordHash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	var referredBy *string
	if code := strings.TrimSpace(in.ReferralCode); code != "" {
		referredBy = &code
	}

	user := &model.User{
		ID:           uuid.New(),
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		ReferralCode: generateReferralCode(username),
		ReferredBy:   referredBy,
		Notifications: model.NotificationPrefs{
			NewQuests:         true,
			NewBounties:       true,
			EventReminders:    true,
			SubmissionUpdates: true,
		},
		Privacy: model.PrivacyPrefs{
			ShowOnLeaderboard: true,
			PublicProfile:     true,
		},
		CreatedAt: time.Now().UTC(),
	}

	err = s.repo.CreateUser(ctx, user)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrUsernameTaken):
			return nil, ErrUsernameTaken
		case errors.Is(err, repository.ErrEmailTaken):
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return user, nil
}

func (s *UserService) Login(ctx context.Context, email, password string) (*model.User, error) {
	user, err := s.repo.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if !auth.CheckPassword(user.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}

	return user, nil
}

// VerifyEmail marks the account verified and pays the signup bonus to the
// referrer, if any. The bonus failing does not fail verification.
func (s *UserService) VerifyEmail(ctx context.Context, userID uuid.UUID) (*model.User, error) {
	user, err := s.repo.MarkUserVerified(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	if user.ReferredBy != nil {
		s.processSignupBonus(ctx, *user.ReferredBy, user.Username)
	}

	s.notifier.SendWelcome(user.Email, user.Username)

	return user, nil
}

func (s *UserService) processSignupBonus(ctx context.Context, referralCode, referredUsername string) {
	log := logger.Logger()

	referrer, err := s.repo.GetUserByReferralCode(ctx, referralCode)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			log.Error("failed to look up referrer for signup bonus",
				zap.String("referral_code", referralCode),
				zap.Error(err))
		}
		return
	}

	action := fmt.Sprintf("Referral signup bonus: %s joined (+%d XP)", referredUsername, SignupReferralBonusXP)
	if err := s.repo.AddReferralEarnings(ctx, referrer.ID, SignupReferralBonusXP, action); err != nil {
		log.Error("failed to grant signup referral bonus",
			zap.String("referrer_id", referrer.ID.String()),
			zap.Error(err))
	}
}

func (s *UserService) GetUser(ctx context.Context, userID uuid.UUID) (*model.User, error) {
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

func (s *UserService) GetRecentActivity(ctx context.Context, userID uuid.UUID) ([]model.Activity, error) {
	return s.repo.GetRecentActivity(ctx, userID)
}

func (s *UserService) GetGlobalLeaderboard(ctx context.Context, limit int) ([]*model.LeaderboardUser, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.repo.GetTopUsers(ctx, limit)
}

func (s *UserService) GetReferrals(ctx context.Context, userID uuid.UUID) ([]*model.User, error) {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.repo.GetUserReferrals(ctx, user.ReferralCode)
}

// generateReferralCode builds a human-readable code from the username plus a
// random hex suffix, e.g. ALICE-3F9A.
func generateReferralCode(username string) string {
	cleaned := strings.Builder{}
	for _, r := range strings.ToUpper(username) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			cleaned.WriteRune(r)
		}
		if cleaned.Len() == 6 {
			break
		}
	}
	if cleaned.Len() == 0 {
		cleaned.WriteString("USER")
	}

	suffix := make([]byte, 2)
	_, _ = rand.Read(suffix)

	return fmt.Sprintf("%s-%s", cleaned.String(), strings.ToUpper(hex.EncodeToString(suffix)))
}
