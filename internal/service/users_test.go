package service

import (
	"context"
	"regexp"
	"testing"

	"questboard/internal/model"
	"questboard/internal/repository"
	"questboard/internal/service/mocks"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestUserService_Register(t *testing.T) {
	t.Run("username too short", func(t *testing.T) {
		svc := NewUserService(&mocks.MockUserRepository{}, &mocks.MockNotifier{})
		_, err := svc.Register(context.Background(), RegisterInput{
			Username: "ab",
			Email:    "a@example.com",
			Password: "password",
		})
		assert.Error(t, err)
	})

	t.Run("password too short", func(t *testing.T) {
		svc := NewUserService(&mocks.MockUserRepository{}, &mocks.MockNotifier{})
		_, err := svc.Register(context.Background(), RegisterInput{
			Username: "alice",
			Email:    "a@example.com",
			Password: "abc",
		})
		assert.ErrorIs(t, err, ErrPasswordTooShort)
	})

	t.Run("username taken", func(t *testing.T) {
		userRepo := &mocks.MockUserRepository{}
		userRepo.On("CreateUser", mock.Anything, mock.Anything).
			Return(repository.ErrUsernameTaken)

		svc := NewUserService(userRepo, &mocks.MockNotifier{})
		_, err := svc.Register(context.Background(), RegisterInput{
			Username: "alice",
			Email:    "a@example.com",
			Password: "password",
		})
		assert.ErrorIs(t, err, ErrUsernameTaken)
	})

	t.Run("successful registration generates a referral code", func(t *testing.T) {
		userRepo := &mocks.MockUserRepository{}
		userRepo.On("CreateUser", mock.Anything, mock.MatchedBy(func(u *model.User) bool {
			return u.Username == "alice" &&
				u.Email == "a@example.com" &&
				u.PasswordHash != "" &&
				u.PasswordHash != "password" &&
				u.ReferredBy != nil && *u.ReferredBy == "BOB-1234"
		})).Return(nil)

		svc := NewUserService(userRepo, &mocks.MockNotifier{})
		user, err := svc.Register(context.Background(), RegisterInput{
			Username:     "Alice",
			Email:        "A@Example.com",
			Password:     "password",
			ReferralCode: "BOB-1234",
		})

		assert.NoError(t, err)
		assert.Regexp(t, regexp.MustCompile(`^[A-Z0-9]{1,6}-[0-9A-F]{4}$`), user.ReferralCode)
	})
}

func TestUserService_Login(t *testing.T) {
	userRepo := &mocks.MockUserRepository{}
	svc := NewUserService(userRepo, &mocks.MockNotifier{})

	t.Run("unknown email", func(t *testing.T) {
		userRepo.On("GetUserByEmail", mock.Anything, "nobody@example.com").
			Return(nil, repository.ErrNotFound)

		_, err := svc.Login(context.Background(), "nobody@example.com", "password")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})
}

func TestUserService_VerifyEmail(t *testing.T) {
	userID := uuid.New()
	referrerID := uuid.New()
	refCode := "BOB-1234"

	t.Run("verification pays the signup bonus to the referrer", func(t *testing.T) {
		userRepo := &mocks.MockUserRepository{}
		notifier := &mocks.MockNotifier{}

		userRepo.On("MarkUserVerified", mock.Anything, userID).
			Return(&model.User{
				ID:         userID,
				Username:   "alice",
				Email:      "a@example.com",
				IsVerified: true,
				ReferredBy: &refCode,
			}, nil)
		userRepo.On("GetUserByReferralCode", mock.Anything, refCode).
			Return(&model.User{ID: referrerID, ReferralCode: refCode}, nil)
		userRepo.On("AddReferralEarnings", mock.Anything, referrerID, SignupReferralBonusXP,
			"Referral signup bonus: alice joined (+50 XP)").
			Return(nil)
		notifier.On("SendWelcome", "a@example.com", "alice").Return()

		svc := NewUserService(userRepo, notifier)
		user, err := svc.VerifyEmail(context.Background(), userID)

		assert.NoError(t, err)
		assert.True(t, user.IsVerified)
		userRepo.AssertExpectations(t)
		notifier.AssertExpectations(t)
	})

	t.Run("unknown referrer code skips the bonus", func(t *testing.T) {
		userRepo := &mocks.MockUserRepository{}
		notifier := &mocks.MockNotifier{}

		badCode := "GONE-0000"
		userRepo.On("MarkUserVerified", mock.Anything, userID).
			Return(&model.User{
				ID:         userID,
				Username:   "alice",
				Email:      "a@example.com",
				IsVerified: true,
				ReferredBy: &badCode,
			}, nil)
		userRepo.On("GetUserByReferralCode", mock.Anything, badCode).
			Return(nil, repository.ErrNotFound)
		notifier.On("SendWelcome", "a@example.com", "alice").Return()

		svc := NewUserService(userRepo, notifier)
		_, err := svc.VerifyEmail(context.Background(), userID)

		assert.NoError(t, err)
		userRepo.AssertNotCalled(t, "AddReferralEarnings", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}
