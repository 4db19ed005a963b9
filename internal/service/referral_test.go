package service

import (
	"context"
	"testing"

	"questboard/internal/model"
	"questboard/internal/repository"
	"questboard/internal/service/mocks"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

func TestReferralService_ProcessJoinBonus(t *testing.T) {
	questID := uuid.New()
	referredID := uuid.New()
	referrerID := uuid.New()
	progressID := uuid.New()
	code := "ALICE-3F9A"

	t.Run("non-positive bonus is a no-op", func(t *testing.T) {
		userRepo := &mocks.MockUserRepository{}
		progressRepo := &mocks.MockProgressRepository{}

		svc := NewReferralService(userRepo, progressRepo)
		svc.ProcessJoinBonus(context.Background(), code, referredID, questID, 0)

		userRepo.AssertNotCalled(t, "GetUserByReferralCode", mock.Anything, mock.Anything)
	})

	t.Run("unknown referral code is a no-op", func(t *testing.T) {
		userRepo := &mocks.MockUserRepository{}
		progressRepo := &mocks.MockProgressRepository{}

		userRepo.On("GetUserByReferralCode", mock.Anything, code).
			Return(nil, repository.ErrNotFound)

		svc := NewReferralService(userRepo, progressRepo)
		svc.ProcessJoinBonus(context.Background(), code, referredID, questID, 25)

		progressRepo.AssertNotCalled(t, "GetProgress", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("referrer without a progress record is a no-op", func(t *testing.T) {
		userRepo := &mocks.MockUserRepository{}
		progressRepo := &mocks.MockProgressRepository{}

		userRepo.On("GetUserByReferralCode", mock.Anything, code).
			Return(&model.User{ID: referrerID, ReferralCode: code}, nil)
		progressRepo.On("GetProgress", mock.Anything, referrerID, questID).
			Return(nil, repository.ErrProgressNotFound)

		svc := NewReferralService(userRepo, progressRepo)
		svc.ProcessJoinBonus(context.Background(), code, referredID, questID, 25)

		progressRepo.AssertNotCalled(t, "AppendReferralEvent",
			mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("join bonus appends an event on the referrer's record", func(t *testing.T) {
		userRepo := &mocks.MockUserRepository{}
		progressRepo := &mocks.MockProgressRepository{}

		userRepo.On("GetUserByReferralCode", mock.Anything, code).
			Return(&model.User{ID: referrerID, ReferralCode: code}, nil)
		progressRepo.On("GetProgress", mock.Anything, referrerID, questID).
			Return(&model.QuestProgress{ID: progressID, UserID: referrerID, QuestID: questID}, nil)
		progressRepo.On("AppendReferralEvent", mock.Anything, progressID, referrerID,
			mock.MatchedBy(func(ev model.ReferralEvent) bool {
				return ev.ReferredUserID == referredID && ev.XPEarned == 25
			}),
			"join", "Referral joined your quest (+25 XP)").
			Return(nil)

		svc := NewReferralService(userRepo, progressRepo)
		svc.ProcessJoinBonus(context.Background(), code, referredID, questID, 25)

		progressRepo.AssertExpectations(t)
	})

	t.Run("complete bonus uses the complete ledger", func(t *testing.T) {
		userRepo := &mocks.MockUserRepository{}
		progressRepo := &mocks.MockProgressRepository{}

		userRepo.On("GetUserByReferralCode", mock.Anything, code).
			Return(&model.User{ID: referrerID, ReferralCode: code}, nil)
		progressRepo.On("GetProgress", mock.Anything, referrerID, questID).
			Return(&model.QuestProgress{ID: progressID, UserID: referrerID, QuestID: questID}, nil)
		progressRepo.On("AppendReferralEvent", mock.Anything, progressID, referrerID,
			mock.AnythingOfType("model.ReferralEvent"),
			"complete", "Referral completed your quest (+50 XP)").
			Return(nil)

		svc := NewReferralService(userRepo, progressRepo)
		svc.ProcessCompleteBonus(context.Background(), code, referredID, questID, 50)

		progressRepo.AssertExpectations(t)
	})
}
