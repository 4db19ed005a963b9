package service

import (
	"context"
	"fmt"

	"questboard/internal/model"
	"questboard/pkg/logger"

	"go.uber.org/zap"
)

// DefaultTopWinners is used when a competition quest does not configure a
// winner count.
const DefaultTopWinners = 10

// LeaderboardService runs the competition ranking pass. Ranks follow
// completion order, earliest finisher first, and the top N finishers of a
// competition quest receive a one-time winner bonus.
type LeaderboardService struct {
	progress ProgressRepository
}

func NewLeaderboardService(progress ProgressRepository) *LeaderboardService {
	return &LeaderboardService{progress: progress}
}

// ProcessCompetitionResults re-ranks every completed record of the quest.
// The first topWinnersCount finishers are winners regardless of the bonus
// configuration; the bonus itself is only granted when one is configured.
// The pass is idempotent: ranks are simply rewritten and the winner bonus
// grant is guarded in storage, so running it after every completion is safe.
// Per-record failures are logged and the pass moves on.
func (s *LeaderboardService) ProcessCompetitionResults(ctx context.Context, quest *model.Quest) {
	log := logger.Logger()

	records, err := s.progress.ListCompletedByCompletionTime(ctx, quest.ID)
	if err != nil {
		log.Error("failed to list completions for ranking",
			zap.String("quest_id", quest.ID.String()),
			zap.Error(err))
		return
	}

	topWinners := quest.CompetitionConfig.TopWinnersCount
	if topWinners <= 0 {
		topWinners = DefaultTopWinners
	}
	bonusXP := quest.CompetitionConfig.WinnerBonusXP

	for i, rec := range records {
		rank := i + 1
		isWinner := rank <= topWinners

		var winnerRank *int
		if isWinner {
			r := rank
			winnerRank = &r
		}

		if err := s.progress.SetLeaderboardRank(ctx, rec.ID, rank, isWinner, winnerRank); err != nil {
			log.Error("failed to set leaderboard rank",
				zap.String("progress_id", rec.ID.String()),
				zap.Int("rank", rank),
				zap.Error(err))
			continue
		}

		if isWinner && bonusXP > 0 && rec.XPBreakdown.WinnerBonus == 0 {
			action := fmt.Sprintf("Won #%d in quest: %s (+%d bonus XP)", rank, quest.Title, bonusXP)
			granted, err := s.progress.GrantWinnerBonus(ctx, rec.ID, rec.UserID, bonusXP, action)
			if err != nil {
				log.Error("failed to grant winner bonus",
					zap.String("progress_id", rec.ID.String()),
					zap.Error(err))
				continue
			}
			if granted {
				log.Info("winner bonus granted",
					zap.String("quest_id", quest.ID.String()),
					zap.String("user_id", rec.UserID.String()),
					zap.Int("rank", rank),
					zap.Int("bonus_xp", bonusXP))
			}
		}
	}
}
