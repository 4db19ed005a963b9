package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"questboard/internal/model"
	"questboard/internal/repository"
	"questboard/pkg/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type QuestService struct {
	quests    QuestRepository
	progress  ProgressRepository
	users     UserRepository
	referrals ReferralProcessor
	ranker    CompetitionRanker
}

func NewQuestService(
	quests QuestRepository,
	progress ProgressRepository,
	users UserRepository,
	referrals ReferralProcessor,
	ranker CompetitionRanker,
) *QuestService {
	return &QuestService{
		quests:    quests,
		progress:  progress,
		users:     users,
		referrals: referrals,
		ranker:    ranker,
	}
}

func (s *QuestService) ListQuests(ctx context.Context) ([]*model.Quest, error) {
	return s.quests.ListActiveQuests(ctx)
}

func (s *QuestService) GetQuest(ctx context.Context, questID uuid.UUID) (*model.Quest, error) {
	quest, err := s.quests.GetQuestByID(ctx, questID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrQuestNotFound
		}
		return nil, err
	}
	return quest, nil
}

func (s *QuestService) GetProgress(ctx context.Context, userID, questID uuid.UUID) (*model.QuestProgress, error) {
	progress, err := s.progress.GetProgress(ctx, userID, questID)
	if err != nil {
		if errors.Is(err, repository.ErrProgressNotFound) {
			return nil, ErrProgressNotFound
		}
		return nil, err
	}
	return progress, nil
}

// StartQuest enrolls the user in a quest. A fresh record is created in
// in_progress with one task row per task; an existing not_started or
// abandoned record is restarted. Starting also registers the attempt on the
// quest counters and pays the referral join bonus if the quest has one
// configured and the user was referred.
func (s *QuestService) StartQuest(ctx context.Context, userID, questID uuid.UUID) (*model.QuestProgress, error) {
	quest, err := s.GetQuest(ctx, questID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if !quest.IsCurrentlyActive(now) {
		return nil, ErrQuestNotAvailable
	}

	existing, err := s.progress.GetProgress(ctx, userID, questID)
	if err != nil && !errors.Is(err, repository.ErrProgressNotFound) {
		return nil, err
	}

	if existing != nil {
		switch existing.Status {
		case model.StatusInProgress:
			return nil, ErrQuestAlreadyStarted
		case model.StatusCompleted:
			return nil, ErrQuestAlreadyCompleted
		}

		if err := s.progress.StartProgress(ctx, existing.ID, now); err != nil {
			if errors.Is(err, repository.ErrQuestAlreadyStarted) {
				return nil, ErrQuestAlreadyStarted
			}
			return nil, err
		}
	} else {
		tasks := quest.AllTasks()
		record := &model.QuestProgress{
			ID:         uuid.New(),
			UserID:     userID,
			QuestID:    questID,
			Status:     model.StatusInProgress,
			TotalTasks: len(tasks),
			StartedAt:  &now,
			USDCEarned: decimal.Zero,
		}
		for _, t := range tasks {
			record.TaskProgress = append(record.TaskProgress, model.TaskProgress{TaskID: t.ID})
		}

		if err := s.progress.CreateProgress(ctx, record); err != nil {
			return nil, err
		}
	}

	if err := s.quests.RegisterQuestAttempt(ctx, questID); err != nil {
		logger.Logger().Error("failed to register quest attempt",
			zap.String("quest_id", questID.String()),
			zap.Error(err))
	}

	if err := s.users.AppendActivity(ctx, userID, fmt.Sprintf("Started quest: %s", quest.Title)); err != nil {
		logger.Logger().Error("failed to record quest start activity",
			zap.String("user_id", userID.String()),
			zap.Error(err))
	}

	if quest.ReferralConfig.Enabled {
		user, err := s.users.GetUserByID(ctx, userID)
		if err == nil && user.ReferredBy != nil {
			s.referrals.ProcessJoinBonus(ctx, *user.ReferredBy, userID, questID, quest.ReferralConfig.XPPerReferralJoin)
		}
	}

	return s.GetProgress(ctx, userID, questID)
}

// AbandonQuest marks an active run abandoned. The record keeps its task
// state and can be restarted later.
func (s *QuestService) AbandonQuest(ctx context.Context, userID, questID uuid.UUID) error {
	progress, err := s.GetProgress(ctx, userID, questID)
	if err != nil {
		return err
	}

	if !progress.Status.CanTransitionTo(model.StatusAbandoned) {
		if progress.Status == model.StatusCompleted {
			return ErrQuestAlreadyCompleted
		}
		return ErrProgressNotFound
	}

	if err := s.progress.AbandonProgress(ctx, progress.ID); err != nil {
		if errors.Is(err, repository.ErrProgressNotFound) {
			return ErrProgressNotFound
		}
		return err
	}

	return nil
}

// TaskSubmission is what the user hands in for one task.
type TaskSubmission struct {
	URL  string
	Text string
	Data map[string]any
}

// SubmitTaskResult reports the outcome of a submission, including the quest
// rewards when the submission completed the quest.
type SubmitTaskResult struct {
	Progress       *model.QuestProgress
	QuestCompleted bool
	TaskXPEarned   int

	RewardXP    int
	RewardUSDC  decimal.Decimal
	BadgeEarned *string
}

// SubmitTask completes one task and applies every reward it triggers: task
// XP immediately, and on the final task the quest base XP, USDC, badge, and
// the downstream referral and competition passes. The persistence runs in
// one database transaction, which also decides under a row lock whether this
// submission closed the last open task; the downstream passes run after
// commit and are logged, never surfaced, on failure.
func (s *QuestService) SubmitTask(ctx context.Context, userID, questID, taskID uuid.UUID, submission TaskSubmission) (*SubmitTaskResult, error) {
	progress, err := s.GetProgress(ctx, userID, questID)
	if err != nil {
		return nil, err
	}
	if progress.Status != model.StatusInProgress {
		if progress.Status == model.StatusCompleted {
			return nil, ErrQuestAlreadyCompleted
		}
		return nil, ErrQuestNotAvailable
	}

	quest, err := s.GetQuest(ctx, questID)
	if err != nil {
		return nil, err
	}

	task, ok := quest.FindTask(taskID)
	if !ok {
		return nil, ErrTaskNotFound
	}

	taskState, ok := progress.FindTask(taskID)
	if !ok {
		return nil, ErrTaskNotFound
	}
	if taskState.IsCompleted {
		return nil, ErrTaskAlreadyCompleted
	}

	now := time.Now().UTC()

	completion := fmt.Sprintf("Completed quest: %s (+%d XP", quest.Title, quest.BaseXPReward)
	if quest.USDCReward.IsPositive() {
		completion += fmt.Sprintf(", +$%s USDC", quest.USDCReward.StringFixed(2))
	}
	completion += ")"

	update := &repository.TaskSubmissionUpdate{
		ProgressID: progress.ID,
		UserID:     userID,
		QuestID:    questID,
		TaskID:     taskID,

		SubmissionURL:  submission.URL,
		SubmissionText: submission.Text,
		SubmissionData: submission.Data,
		SubmittedAt:    now,

		TaskXP:       task.XPReward,
		TaskActivity: fmt.Sprintf("Completed task: %s (+%d XP)", task.Title, task.XPReward),

		CompletionXP:       quest.BaseXPReward,
		CompletionUSDC:     quest.USDCReward,
		CompletionBadge:    quest.BadgeReward,
		CompletionActivity: completion,
	}

	completed, err := s.progress.ApplyTaskSubmission(ctx, update)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrTaskAlreadyCompleted):
			return nil, ErrTaskAlreadyCompleted
		case errors.Is(err, repository.ErrProgressNotFound):
			return nil, ErrProgressNotFound
		}
		return nil, err
	}

	if completed {
		s.afterQuestCompletion(ctx, quest, userID)
	}

	updated, err := s.GetProgress(ctx, userID, questID)
	if err != nil {
		return nil, err
	}

	result := &SubmitTaskResult{
		Progress:       updated,
		QuestCompleted: completed,
		TaskXPEarned:   task.XPReward,
		RewardXP:       updated.XPBreakdown.TotalXP,
		RewardUSDC:     updated.USDCEarned,
		BadgeEarned:    updated.BadgeEarned,
	}

	return result, nil
}

// afterQuestCompletion runs the post-commit passes: the referral complete
// bonus and, for competitive quests, the ranking pass. Failures here never
// fail the submission that triggered them.
func (s *QuestService) afterQuestCompletion(ctx context.Context, quest *model.Quest, userID uuid.UUID) {
	if quest.ReferralConfig.Enabled {
		user, err := s.users.GetUserByID(ctx, userID)
		if err != nil {
			logger.Logger().Error("failed to load user for referral complete bonus",
				zap.String("user_id", userID.String()),
				zap.Error(err))
		} else if user.ReferredBy != nil {
			s.referrals.ProcessCompleteBonus(ctx, *user.ReferredBy, userID, quest.ID, quest.ReferralConfig.XPPerReferralComplete)
		}
	}

	if quest.QuestType.IsCompetitive() {
		s.ranker.ProcessCompetitionResults(ctx, quest)
	}
}

func (s *QuestService) GetQuestLeaderboard(ctx context.Context, questID uuid.UUID, limit int) ([]*repository.QuestLeaderboardEntry, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.progress.GetQuestLeaderboard(ctx, questID, limit)
}

// CreateQuest persists a new quest definition. Admin only, enforced at the
// transport layer.
func (s *QuestService) CreateQuest(ctx context.Context, quest *model.Quest) (*model.Quest, error) {
	if quest.Title == "" {
		return nil, fmt.Errorf("quest title is required")
	}

	quest.ID = uuid.New()
	quest.CreatedAt = time.Now().UTC()
	quest.UpdatedAt = quest.CreatedAt
	for i := range quest.Tasks {
		quest.Tasks[i].ID = uuid.New()
	}
	for i := range quest.DailyTasks {
		quest.DailyTasks[i].ID = uuid.New()
		quest.DailyTasks[i].IsDaily = true
	}

	if err := s.quests.CreateQuest(ctx, quest); err != nil {
		return nil, fmt.Errorf("failed to create quest: %w", err)
	}

	return quest, nil
}

// AddTask appends a task to a quest and fans it out to every unfinished
// progress record, recounting their totals.
func (s *QuestService) AddTask(ctx context.Context, questID uuid.UUID, task *model.Task) (*model.Task, error) {
	if _, err := s.GetQuest(ctx, questID); err != nil {
		return nil, err
	}

	task.ID = uuid.New()
	if err := s.quests.AddTaskToQuest(ctx, questID, task); err != nil {
		return nil, fmt.Errorf("failed to add task: %w", err)
	}

	return task, nil
}

// RemoveTask deletes a task from a quest and from every unfinished
// progress record. Completed records keep their history.
func (s *QuestService) RemoveTask(ctx context.Context, questID, taskID uuid.UUID) error {
	err := s.quests.RemoveTaskFromQuest(ctx, questID, taskID)
	if err != nil {
		if errors.Is(err, repository.ErrTaskNotFound) {
			return ErrTaskNotFound
		}
		return err
	}
	return nil
}
