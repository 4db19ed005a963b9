package service

import (
	"context"
	"testing"

	"questboard/internal/model"
	"questboard/internal/repository"
	"questboard/internal/service/mocks"
	"questboard/pkg/auth"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestSettingsService_ConnectWallet(t *testing.T) {
	userID := uuid.New()
	address := "0x742d35Cc6634C0532925a3b844Bc454e4438f44e"

	tests := []struct {
		name          string
		address       string
		repoError     error
		expectedError error
	}{
		{
			name:          "address too short",
			address:       "0x1234",
			expectedError: ErrInvalidWallet,
		},
		{
			name:          "wallet already locked",
			address:       address,
			repoError:     repository.ErrWalletLocked,
			expectedError: ErrWalletLocked,
		},
		{
			name:    "first set succeeds",
			address: address,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			userRepo := &mocks.MockUserRepository{}
			if tt.expectedError == nil || tt.repoError != nil {
				userRepo.On("SetWalletAddress", mock.Anything, userID, tt.address).
					Return(tt.repoError)
			}

			svc := NewSettingsService(userRepo)
			err := svc.ConnectWallet(context.Background(), userID, tt.address)

			if tt.expectedError != nil {
				assert.ErrorIs(t, err, tt.expectedError)
			} else {
				assert.NoError(t, err)
			}

			if tt.repoError == nil && tt.expectedError != nil {
				userRepo.AssertNotCalled(t, "SetWalletAddress", mock.Anything, mock.Anything, mock.Anything)
			}
		})
	}
}

func TestSettingsService_UpdatePassword(t *testing.T) {
	userID := uuid.New()
	currentHash, _ := auth.HashPassword("old-password")

	t.Run("wrong current password", func(t *testing.T) {
		userRepo := &mocks.MockUserRepository{}
		userRepo.On("GetUserByID", mock.Anything, userID).
			Return(&model.User{ID: userID, PasswordHash: currentHash}, nil)

		svc := NewSettingsService(userRepo)
		err := svc.UpdatePassword(context.Background(), userID, "not-the-password", "new-password")

		assert.ErrorIs(t, err, ErrPasswordMismatch)
		userRepo.AssertNotCalled(t, "UpdatePassword", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("new password too short", func(t *testing.T) {
		userRepo := &mocks.MockUserRepository{}

		svc := NewSettingsService(userRepo)
		err := svc.UpdatePassword(context.Background(), userID, "old-password", "abc")

		assert.ErrorIs(t, err, ErrPasswordTooShort)
		userRepo.AssertNotCalled(t, "GetUserByID", mock.Anything, mock.Anything)
	})

	t.Run("correct current password rehashes", func(t *testing.T) {
		userRepo := &mocks.MockUserRepository{}
		userRepo.On("GetUserByID", mock.Anything, userID).
			Return(&model.User{ID: userID, PasswordHash: currentHash}, nil)
		userRepo.On("UpdatePassword", mock.Anything, userID, mock.MatchedBy(func(hash string) bool {
			return auth.CheckPassword(hash, "new-password")
		})).Return(nil)

		svc := NewSettingsService(userRepo)
		err := svc.UpdatePassword(context.Background(), userID, "old-password", "new-password")

		assert.NoError(t, err)
		userRepo.AssertExpectations(t)
	})
}
