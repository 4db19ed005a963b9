package service

import (
	"context"
	"testing"
	"time"

	"questboard/internal/model"
	"questboard/internal/service/mocks"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func completedRecord(completedAt time.Time, winnerBonus int) *model.QuestProgress {
	return &model.QuestProgress{
		ID:          uuid.New(),
		UserID:      uuid.New(),
		Status:      model.StatusCompleted,
		CompletedAt: &completedAt,
		XPBreakdown: model.XPBreakdown{WinnerBonus: winnerBonus},
	}
}

func TestLeaderboardService_ProcessCompetitionResults(t *testing.T) {
	base := time.Now().UTC().Add(-time.Hour)

	t.Run("ranks follow completion order and top finishers win once", func(t *testing.T) {
		quest := &model.Quest{
			ID:        uuid.New(),
			Title:     "Speedrun",
			QuestType: model.QuestTypeCompetition,
			CompetitionConfig: model.CompetitionConfig{
				Enabled:         true,
				TopWinnersCount: 2,
				WinnerBonusXP:   500,
			},
		}

		first := completedRecord(base, 0)
		second := completedRecord(base.Add(time.Minute), 500)
		third := completedRecord(base.Add(2*time.Minute), 0)

		progressRepo := &mocks.MockProgressRepository{}
		progressRepo.On("ListCompletedByCompletionTime", mock.Anything, quest.ID).
			Return([]*model.QuestProgress{first, second, third}, nil)

		progressRepo.On("SetLeaderboardRank", mock.Anything, first.ID, 1, true, mock.MatchedBy(func(r *int) bool {
			return r != nil && *r == 1
		})).Return(nil)
		progressRepo.On("SetLeaderboardRank", mock.Anything, second.ID, 2, true, mock.MatchedBy(func(r *int) bool {
			return r != nil && *r == 2
		})).Return(nil)
		progressRepo.On("SetLeaderboardRank", mock.Anything, third.ID, 3, false, (*int)(nil)).
			Return(nil)

		// second already holds a bonus, so only first gets a grant
		progressRepo.On("GrantWinnerBonus", mock.Anything, first.ID, first.UserID, 500, mock.Anything).
			Return(true, nil)

		svc := NewLeaderboardService(progressRepo)
		svc.ProcessCompetitionResults(context.Background(), quest)

		progressRepo.AssertExpectations(t)
		progressRepo.AssertNotCalled(t, "GrantWinnerBonus", mock.Anything, second.ID, mock.Anything, mock.Anything, mock.Anything)
		progressRepo.AssertNotCalled(t, "GrantWinnerBonus", mock.Anything, third.ID, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("winner count defaults when unset", func(t *testing.T) {
		quest := &model.Quest{
			ID:        uuid.New(),
			Title:     "FCFS drop",
			QuestType: model.QuestTypeFCFS,
			CompetitionConfig: model.CompetitionConfig{
				Enabled:       true,
				WinnerBonusXP: 100,
			},
		}

		rec := completedRecord(base, 0)

		progressRepo := &mocks.MockProgressRepository{}
		progressRepo.On("ListCompletedByCompletionTime", mock.Anything, quest.ID).
			Return([]*model.QuestProgress{rec}, nil)
		progressRepo.On("SetLeaderboardRank", mock.Anything, rec.ID, 1, true, mock.Anything).
			Return(nil)
		progressRepo.On("GrantWinnerBonus", mock.Anything, rec.ID, rec.UserID, 100, mock.Anything).
			Return(true, nil)

		svc := NewLeaderboardService(progressRepo)
		svc.ProcessCompetitionResults(context.Background(), quest)

		progressRepo.AssertExpectations(t)
	})

	t.Run("winner status does not depend on the bonus configuration", func(t *testing.T) {
		quest := &model.Quest{
			ID:        uuid.New(),
			Title:     "FCFS without bonuses",
			QuestType: model.QuestTypeFCFS,
			CompetitionConfig: model.CompetitionConfig{
				TopWinnersCount: 3,
			},
		}

		rec := completedRecord(base, 0)

		progressRepo := &mocks.MockProgressRepository{}
		progressRepo.On("ListCompletedByCompletionTime", mock.Anything, quest.ID).
			Return([]*model.QuestProgress{rec}, nil)
		progressRepo.On("SetLeaderboardRank", mock.Anything, rec.ID, 1, true, mock.MatchedBy(func(r *int) bool {
			return r != nil && *r == 1
		})).Return(nil)

		svc := NewLeaderboardService(progressRepo)
		svc.ProcessCompetitionResults(context.Background(), quest)

		progressRepo.AssertExpectations(t)
		progressRepo.AssertNotCalled(t, "GrantWinnerBonus", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("rank failure skips the record and continues", func(t *testing.T) {
		quest := &model.Quest{
			ID:        uuid.New(),
			Title:     "Speedrun",
			QuestType: model.QuestTypeCompetition,
			CompetitionConfig: model.CompetitionConfig{
				Enabled:         true,
				TopWinnersCount: 5,
				WinnerBonusXP:   200,
			},
		}

		first := completedRecord(base, 0)
		second := completedRecord(base.Add(time.Minute), 0)

		progressRepo := &mocks.MockProgressRepository{}
		progressRepo.On("ListCompletedByCompletionTime", mock.Anything, quest.ID).
			Return([]*model.QuestProgress{first, second}, nil)
		progressRepo.On("SetLeaderboardRank", mock.Anything, first.ID, 1, true, mock.Anything).
			Return(assert.AnError)
		progressRepo.On("SetLeaderboardRank", mock.Anything, second.ID, 2, true, mock.Anything).
			Return(nil)
		progressRepo.On("GrantWinnerBonus", mock.Anything, second.ID, second.UserID, 200, mock.Anything).
			Return(true, nil)

		svc := NewLeaderboardService(progressRepo)
		svc.ProcessCompetitionResults(context.Background(), quest)

		progressRepo.AssertExpectations(t)
		progressRepo.AssertNotCalled(t, "GrantWinnerBonus", mock.Anything, first.ID, mock.Anything, mock.Anything, mock.Anything)
	})
}
