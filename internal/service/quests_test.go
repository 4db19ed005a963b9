package service

import (
	"context"
	"os"
	"testing"
	"time"

	"questboard/internal/model"
	"questboard/internal/repository"
	"questboard/internal/service/mocks"
	"questboard/pkg/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestMain(m *testing.M) {
	_ = logger.Initialize("fatal")
	os.Exit(m.Run())
}

func activeQuest(questID uuid.UUID, tasks ...model.Task) *model.Quest {
	return &model.Quest{
		ID:           questID,
		Title:        "Learn Solidity Basics",
		QuestType:    model.QuestTypeStandard,
		IsActive:     true,
		BaseXPReward: 200,
		USDCReward:   decimal.NewFromInt(10),
		Tasks:        tasks,
	}
}

func TestQuestService_StartQuest(t *testing.T) {
	userID := uuid.New()
	questID := uuid.New()
	taskID := uuid.New()
	progressID := uuid.New()
	now := time.Now().UTC()

	task := model.Task{ID: taskID, Title: "Read the docs", XPReward: 50}

	tests := []struct {
		name          string
		setup         func(q *mocks.MockQuestRepository, p *mocks.MockProgressRepository, u *mocks.MockUserRepository, ref *mocks.MockReferralProcessor)
		expectedError error
	}{
		{
			name: "quest not found",
			setup: func(q *mocks.MockQuestRepository, p *mocks.MockProgressRepository, u *mocks.MockUserRepository, ref *mocks.MockReferralProcessor) {
				q.On("GetQuestByID", mock.Anything, questID).
					Return(nil, repository.ErrNotFound)
			},
			expectedError: ErrQuestNotFound,
		},
		{
			name: "quest inactive",
			setup: func(q *mocks.MockQuestRepository, p *mocks.MockProgressRepository, u *mocks.MockUserRepository, ref *mocks.MockReferralProcessor) {
				quest := activeQuest(questID, task)
				quest.IsActive = false
				q.On("GetQuestByID", mock.Anything, questID).Return(quest, nil)
			},
			expectedError: ErrQuestNotAvailable,
		},
		{
			name: "quest at participant capacity",
			setup: func(q *mocks.MockQuestRepository, p *mocks.MockProgressRepository, u *mocks.MockUserRepository, ref *mocks.MockReferralProcessor) {
				quest := activeQuest(questID, task)
				limit := 100
				quest.MaxParticipants = &limit
				quest.TotalParticipants = 100
				q.On("GetQuestByID", mock.Anything, questID).Return(quest, nil)
			},
			expectedError: ErrQuestNotAvailable,
		},
		{
			name: "already in progress",
			setup: func(q *mocks.MockQuestRepository, p *mocks.MockProgressRepository, u *mocks.MockUserRepository, ref *mocks.MockReferralProcessor) {
				q.On("GetQuestByID", mock.Anything, questID).
					Return(activeQuest(questID, task), nil)
				p.On("GetProgress", mock.Anything, userID, questID).
					Return(&model.QuestProgress{ID: progressID, Status: model.StatusInProgress}, nil)
			},
			expectedError: ErrQuestAlreadyStarted,
		},
		{
			name: "already completed",
			setup: func(q *mocks.MockQuestRepository, p *mocks.MockProgressRepository, u *mocks.MockUserRepository, ref *mocks.MockReferralProcessor) {
				q.On("GetQuestByID", mock.Anything, questID).
					Return(activeQuest(questID, task), nil)
				p.On("GetProgress", mock.Anything, userID, questID).
					Return(&model.QuestProgress{ID: progressID, Status: model.StatusCompleted}, nil)
			},
			expectedError: ErrQuestAlreadyCompleted,
		},
		{
			name: "fresh start seeds task rows",
			setup: func(q *mocks.MockQuestRepository, p *mocks.MockProgressRepository, u *mocks.MockUserRepository, ref *mocks.MockReferralProcessor) {
				q.On("GetQuestByID", mock.Anything, questID).
					Return(activeQuest(questID, task), nil)
				p.On("GetProgress", mock.Anything, userID, questID).
					Return(nil, repository.ErrProgressNotFound).Once()
				p.On("CreateProgress", mock.Anything, mock.MatchedBy(func(rec *model.QuestProgress) bool {
					return rec.Status == model.StatusInProgress &&
						rec.TotalTasks == 1 &&
						len(rec.TaskProgress) == 1 &&
						rec.TaskProgress[0].TaskID == taskID
				})).Return(nil)
				q.On("RegisterQuestAttempt", mock.Anything, questID).Return(nil)
				u.On("AppendActivity", mock.Anything, userID, "Started quest: Learn Solidity Basics").
					Return(nil)
				p.On("GetProgress", mock.Anything, userID, questID).
					Return(&model.QuestProgress{
						ID:         progressID,
						UserID:     userID,
						QuestID:    questID,
						Status:     model.StatusInProgress,
						TotalTasks: 1,
						StartedAt:  &now,
					}, nil).Once()
			},
		},
		{
			name: "abandoned quest restarts",
			setup: func(q *mocks.MockQuestRepository, p *mocks.MockProgressRepository, u *mocks.MockUserRepository, ref *mocks.MockReferralProcessor) {
				q.On("GetQuestByID", mock.Anything, questID).
					Return(activeQuest(questID, task), nil)
				p.On("GetProgress", mock.Anything, userID, questID).
					Return(&model.QuestProgress{ID: progressID, Status: model.StatusAbandoned}, nil).Once()
				p.On("StartProgress", mock.Anything, progressID, mock.Anything).Return(nil)
				q.On("RegisterQuestAttempt", mock.Anything, questID).Return(nil)
				u.On("AppendActivity", mock.Anything, userID, mock.Anything).Return(nil)
				p.On("GetProgress", mock.Anything, userID, questID).
					Return(&model.QuestProgress{ID: progressID, Status: model.StatusInProgress}, nil).Once()
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			questRepo := &mocks.MockQuestRepository{}
			progressRepo := &mocks.MockProgressRepository{}
			userRepo := &mocks.MockUserRepository{}
			referrals := &mocks.MockReferralProcessor{}
			ranker := &mocks.MockCompetitionRanker{}

			tt.setup(questRepo, progressRepo, userRepo, referrals)

			svc := NewQuestService(questRepo, progressRepo, userRepo, referrals, ranker)
			progress, err := svc.StartQuest(context.Background(), userID, questID)

			if tt.expectedError != nil {
				assert.ErrorIs(t, err, tt.expectedError)
				assert.Nil(t, progress)
			} else {
				assert.NoError(t, err)
				assert.NotNil(t, progress)
				assert.Equal(t, model.StatusInProgress, progress.Status)
			}

			questRepo.AssertExpectations(t)
			progressRepo.AssertExpectations(t)
			userRepo.AssertExpectations(t)
			referrals.AssertExpectations(t)
		})
	}
}

func TestQuestService_StartQuest_ReferralJoinBonus(t *testing.T) {
	userID := uuid.New()
	questID := uuid.New()
	refCode := "ALICE-3F9A"

	quest := activeQuest(questID, model.Task{ID: uuid.New(), Title: "Task", XPReward: 10})
	quest.ReferralConfig = model.ReferralConfig{Enabled: true, XPPerReferralJoin: 25}

	questRepo := &mocks.MockQuestRepository{}
	progressRepo := &mocks.MockProgressRepository{}
	userRepo := &mocks.MockUserRepository{}
	referrals := &mocks.MockReferralProcessor{}
	ranker := &mocks.MockCompetitionRanker{}

	questRepo.On("GetQuestByID", mock.Anything, questID).Return(quest, nil)
	progressRepo.On("GetProgress", mock.Anything, userID, questID).
		Return(nil, repository.ErrProgressNotFound).Once()
	progressRepo.On("CreateProgress", mock.Anything, mock.Anything).Return(nil)
	questRepo.On("RegisterQuestAttempt", mock.Anything, questID).Return(nil)
	userRepo.On("AppendActivity", mock.Anything, userID, mock.Anything).Return(nil)
	userRepo.On("GetUserByID", mock.Anything, userID).
		Return(&model.User{ID: userID, ReferredBy: &refCode}, nil)
	referrals.On("ProcessJoinBonus", mock.Anything, refCode, userID, questID, 25).Return()
	progressRepo.On("GetProgress", mock.Anything, userID, questID).
		Return(&model.QuestProgress{Status: model.StatusInProgress}, nil).Once()

	svc := NewQuestService(questRepo, progressRepo, userRepo, referrals, ranker)
	_, err := svc.StartQuest(context.Background(), userID, questID)

	assert.NoError(t, err)
	referrals.AssertExpectations(t)
}

func TestQuestService_SubmitTask(t *testing.T) {
	userID := uuid.New()
	questID := uuid.New()
	progressID := uuid.New()
	task1 := model.Task{ID: uuid.New(), Title: "Read the docs", XPReward: 50}
	task2 := model.Task{ID: uuid.New(), Title: "Deploy a contract", XPReward: 100}
	started := time.Now().UTC().Add(-30 * time.Minute)

	inProgress := func(completed int, doneTasks ...uuid.UUID) *model.QuestProgress {
		rec := &model.QuestProgress{
			ID:             progressID,
			UserID:         userID,
			QuestID:        questID,
			Status:         model.StatusInProgress,
			TasksCompleted: completed,
			TotalTasks:     2,
			StartedAt:      &started,
			TaskProgress: []model.TaskProgress{
				{TaskID: task1.ID},
				{TaskID: task2.ID},
			},
		}
		for _, id := range doneTasks {
			if tp, ok := rec.FindTask(id); ok {
				tp.IsCompleted = true
			}
		}
		return rec
	}

	t.Run("first task grants task xp only", func(t *testing.T) {
		questRepo := &mocks.MockQuestRepository{}
		progressRepo := &mocks.MockProgressRepository{}
		userRepo := &mocks.MockUserRepository{}
		referrals := &mocks.MockReferralProcessor{}
		ranker := &mocks.MockCompetitionRanker{}

		progressRepo.On("GetProgress", mock.Anything, userID, questID).
			Return(inProgress(0), nil).Once()
		questRepo.On("GetQuestByID", mock.Anything, questID).
			Return(activeQuest(questID, task1, task2), nil)
		progressRepo.On("ApplyTaskSubmission", mock.Anything, mock.MatchedBy(func(sub *repository.TaskSubmissionUpdate) bool {
			return sub.TaskID == task1.ID &&
				sub.TaskXP == 50 &&
				sub.TaskActivity == "Completed task: Read the docs (+50 XP)" &&
				sub.CompletionXP == 200
		})).Return(false, nil)
		progressRepo.On("GetProgress", mock.Anything, userID, questID).
			Return(&model.QuestProgress{
				ID:             progressID,
				Status:         model.StatusInProgress,
				TasksCompleted: 1,
				TotalTasks:     2,
				Progress:       50,
				XPBreakdown:    model.XPBreakdown{TaskXP: 50, TotalXP: 50},
			}, nil).Once()

		svc := NewQuestService(questRepo, progressRepo, userRepo, referrals, ranker)
		result, err := svc.SubmitTask(context.Background(), userID, questID, task1.ID, TaskSubmission{URL: "https://example.com/proof"})

		assert.NoError(t, err)
		assert.False(t, result.QuestCompleted)
		assert.Equal(t, 50, result.TaskXPEarned)
		assert.Equal(t, 50, result.RewardXP)
		progressRepo.AssertExpectations(t)
		ranker.AssertNotCalled(t, "ProcessCompetitionResults", mock.Anything, mock.Anything)
	})

	t.Run("final task completes the quest with base rewards", func(t *testing.T) {
		questRepo := &mocks.MockQuestRepository{}
		progressRepo := &mocks.MockProgressRepository{}
		userRepo := &mocks.MockUserRepository{}
		referrals := &mocks.MockReferralProcessor{}
		ranker := &mocks.MockCompetitionRanker{}

		progressRepo.On("GetProgress", mock.Anything, userID, questID).
			Return(inProgress(1, task1.ID), nil).Once()
		questRepo.On("GetQuestByID", mock.Anything, questID).
			Return(activeQuest(questID, task1, task2), nil)
		progressRepo.On("ApplyTaskSubmission", mock.Anything, mock.MatchedBy(func(sub *repository.TaskSubmissionUpdate) bool {
			return sub.TaskID == task2.ID &&
				sub.TaskXP == 100 &&
				sub.CompletionXP == 200 &&
				sub.CompletionUSDC.Equal(decimal.NewFromInt(10)) &&
				sub.CompletionActivity == "Completed quest: Learn Solidity Basics (+200 XP, +$10.00 USDC)"
		})).Return(true, nil)
		progressRepo.On("GetProgress", mock.Anything, userID, questID).
			Return(&model.QuestProgress{
				ID:             progressID,
				Status:         model.StatusCompleted,
				TasksCompleted: 2,
				TotalTasks:     2,
				Progress:       100,
				XPBreakdown:    model.XPBreakdown{TaskXP: 150, BaseXP: 200, TotalXP: 350},
				USDCEarned:     decimal.NewFromInt(10),
			}, nil).Once()

		svc := NewQuestService(questRepo, progressRepo, userRepo, referrals, ranker)
		result, err := svc.SubmitTask(context.Background(), userID, questID, task2.ID, TaskSubmission{})

		assert.NoError(t, err)
		assert.True(t, result.QuestCompleted)
		assert.Equal(t, 350, result.RewardXP)
		assert.True(t, result.RewardUSDC.Equal(decimal.NewFromInt(10)))
		progressRepo.AssertExpectations(t)
	})

	t.Run("completing a competitive quest triggers the ranking pass", func(t *testing.T) {
		questRepo := &mocks.MockQuestRepository{}
		progressRepo := &mocks.MockProgressRepository{}
		userRepo := &mocks.MockUserRepository{}
		referrals := &mocks.MockReferralProcessor{}
		ranker := &mocks.MockCompetitionRanker{}

		quest := activeQuest(questID, task1, task2)
		quest.QuestType = model.QuestTypeCompetition
		quest.CompetitionConfig = model.CompetitionConfig{Enabled: true, TopWinnersCount: 3, WinnerBonusXP: 500}

		progressRepo.On("GetProgress", mock.Anything, userID, questID).
			Return(inProgress(1, task1.ID), nil).Once()
		questRepo.On("GetQuestByID", mock.Anything, questID).Return(quest, nil)
		progressRepo.On("ApplyTaskSubmission", mock.Anything, mock.Anything).Return(true, nil)
		ranker.On("ProcessCompetitionResults", mock.Anything, quest).Return()
		progressRepo.On("GetProgress", mock.Anything, userID, questID).
			Return(&model.QuestProgress{ID: progressID, Status: model.StatusCompleted}, nil).Once()

		svc := NewQuestService(questRepo, progressRepo, userRepo, referrals, ranker)
		_, err := svc.SubmitTask(context.Background(), userID, questID, task2.ID, TaskSubmission{})

		assert.NoError(t, err)
		ranker.AssertExpectations(t)
	})

	t.Run("completion follows the transactional count, not the prior read", func(t *testing.T) {
		questRepo := &mocks.MockQuestRepository{}
		progressRepo := &mocks.MockProgressRepository{}
		userRepo := &mocks.MockUserRepository{}
		referrals := &mocks.MockReferralProcessor{}
		ranker := &mocks.MockCompetitionRanker{}

		quest := activeQuest(questID, task1, task2)
		quest.QuestType = model.QuestTypeCompetition
		quest.CompetitionConfig = model.CompetitionConfig{Enabled: true, WinnerBonusXP: 500}

		// the read says one task is left, but the locked row disagrees
		progressRepo.On("GetProgress", mock.Anything, userID, questID).
			Return(inProgress(1, task1.ID), nil).Once()
		questRepo.On("GetQuestByID", mock.Anything, questID).Return(quest, nil)
		progressRepo.On("ApplyTaskSubmission", mock.Anything, mock.Anything).Return(false, nil)
		progressRepo.On("GetProgress", mock.Anything, userID, questID).
			Return(&model.QuestProgress{
				ID:             progressID,
				Status:         model.StatusInProgress,
				TasksCompleted: 1,
				TotalTasks:     3,
			}, nil).Once()

		svc := NewQuestService(questRepo, progressRepo, userRepo, referrals, ranker)
		result, err := svc.SubmitTask(context.Background(), userID, questID, task2.ID, TaskSubmission{})

		assert.NoError(t, err)
		assert.False(t, result.QuestCompleted)
		ranker.AssertNotCalled(t, "ProcessCompetitionResults", mock.Anything, mock.Anything)
		referrals.AssertNotCalled(t, "ProcessCompleteBonus", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("task already completed", func(t *testing.T) {
		questRepo := &mocks.MockQuestRepository{}
		progressRepo := &mocks.MockProgressRepository{}
		userRepo := &mocks.MockUserRepository{}
		referrals := &mocks.MockReferralProcessor{}
		ranker := &mocks.MockCompetitionRanker{}

		progressRepo.On("GetProgress", mock.Anything, userID, questID).
			Return(inProgress(1, task1.ID), nil)
		questRepo.On("GetQuestByID", mock.Anything, questID).
			Return(activeQuest(questID, task1, task2), nil)

		svc := NewQuestService(questRepo, progressRepo, userRepo, referrals, ranker)
		_, err := svc.SubmitTask(context.Background(), userID, questID, task1.ID, TaskSubmission{})

		assert.ErrorIs(t, err, ErrTaskAlreadyCompleted)
		progressRepo.AssertNotCalled(t, "ApplyTaskSubmission", mock.Anything, mock.Anything)
	})

	t.Run("completed quest rejects further submissions", func(t *testing.T) {
		questRepo := &mocks.MockQuestRepository{}
		progressRepo := &mocks.MockProgressRepository{}
		userRepo := &mocks.MockUserRepository{}
		referrals := &mocks.MockReferralProcessor{}
		ranker := &mocks.MockCompetitionRanker{}

		progressRepo.On("GetProgress", mock.Anything, userID, questID).
			Return(&model.QuestProgress{ID: progressID, Status: model.StatusCompleted}, nil)

		svc := NewQuestService(questRepo, progressRepo, userRepo, referrals, ranker)
		_, err := svc.SubmitTask(context.Background(), userID, questID, task1.ID, TaskSubmission{})

		assert.ErrorIs(t, err, ErrQuestAlreadyCompleted)
	})

	t.Run("unknown task", func(t *testing.T) {
		questRepo := &mocks.MockQuestRepository{}
		progressRepo := &mocks.MockProgressRepository{}
		userRepo := &mocks.MockUserRepository{}
		referrals := &mocks.MockReferralProcessor{}
		ranker := &mocks.MockCompetitionRanker{}

		progressRepo.On("GetProgress", mock.Anything, userID, questID).
			Return(inProgress(0), nil)
		questRepo.On("GetQuestByID", mock.Anything, questID).
			Return(activeQuest(questID, task1, task2), nil)

		svc := NewQuestService(questRepo, progressRepo, userRepo, referrals, ranker)
		_, err := svc.SubmitTask(context.Background(), userID, questID, uuid.New(), TaskSubmission{})

		assert.ErrorIs(t, err, ErrTaskNotFound)
	})
}

func TestQuestService_AbandonQuest(t *testing.T) {
	userID := uuid.New()
	questID := uuid.New()
	progressID := uuid.New()

	t.Run("active run abandons", func(t *testing.T) {
		progressRepo := &mocks.MockProgressRepository{}
		progressRepo.On("GetProgress", mock.Anything, userID, questID).
			Return(&model.QuestProgress{ID: progressID, Status: model.StatusInProgress}, nil)
		progressRepo.On("AbandonProgress", mock.Anything, progressID).Return(nil)

		svc := NewQuestService(&mocks.MockQuestRepository{}, progressRepo, &mocks.MockUserRepository{}, &mocks.MockReferralProcessor{}, &mocks.MockCompetitionRanker{})
		err := svc.AbandonQuest(context.Background(), userID, questID)

		assert.NoError(t, err)
		progressRepo.AssertExpectations(t)
	})

	t.Run("completed quest cannot be abandoned", func(t *testing.T) {
		progressRepo := &mocks.MockProgressRepository{}
		progressRepo.On("GetProgress", mock.Anything, userID, questID).
			Return(&model.QuestProgress{ID: progressID, Status: model.StatusCompleted}, nil)

		svc := NewQuestService(&mocks.MockQuestRepository{}, progressRepo, &mocks.MockUserRepository{}, &mocks.MockReferralProcessor{}, &mocks.MockCompetitionRanker{})
		err := svc.AbandonQuest(context.Background(), userID, questID)

		assert.ErrorIs(t, err, ErrQuestAlreadyCompleted)
		progressRepo.AssertNotCalled(t, "AbandonProgress", mock.Anything, mock.Anything)
	})
}
