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
	"go.uber.org/zap"
)

// ReferralService grants quest-scoped referral bonuses to referrers. The
// processor is deliberately quiet: a missing referrer, a referrer without a
// progress record on the quest, or a non-positive bonus is a no-op rather
// than an error, because the referred user's own action must never fail on
// referral bookkeeping.
type ReferralService struct {
	users    UserRepository
	progress ProgressRepository
}

func NewReferralService(users UserRepository, progress ProgressRepository) *ReferralService {
	return &ReferralService{
		users:    users,
		progress: progress,
	}
}

func (s *ReferralService) ProcessJoinBonus(ctx context.Context, referralCode string, referredUserID, questID uuid.UUID, bonusXP int) {
	s.process(ctx, referralCode, referredUserID, questID, bonusXP, "join")
}

func (s *ReferralService) ProcessCompleteBonus(ctx context.Context, referralCode string, referredUserID, questID uuid.UUID, bonusXP int) {
	s.process(ctx, referralCode, referredUserID, questID, bonusXP, "complete")
}

func (s *ReferralService) process(ctx context.Context, referralCode string, referredUserID, questID uuid.UUID, bonusXP int, kind string) {
	if bonusXP <= 0 {
		return
	}

	log := logger.Logger()

	referrer, err := s.users.GetUserByReferralCode(ctx, referralCode)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			log.Error("failed to look up referrer",
				zap.String("referral_code", referralCode),
				zap.Error(err))
		}
		return
	}

	record, err := s.progress.GetProgress(ctx, referrer.ID, questID)
	if err != nil {
		if !errors.Is(err, repository.ErrProgressNotFound) {
			log.Error("failed to load referrer progress",
				zap.String("referrer_id", referrer.ID.String()),
				zap.String("quest_id", questID.String()),
				zap.Error(err))
		}
		return
	}

	event := model.ReferralEvent{
		ReferredUserID: referredUserID,
		OccurredAt:     time.Now().UTC(),
		XPEarned:       bonusXP,
	}

	var action string
	if kind == "join" {
		action = fmt.Sprintf("Referral joined your quest (+%d XP)", bonusXP)
	} else {
		action = fmt.Sprintf("Referral completed your quest (+%d XP)", bonusXP)
	}

	err = s.progress.AppendReferralEvent(ctx, record.ID, referrer.ID, event, kind, action)
	if err != nil {
		log.Error("failed to append referral event",
			zap.String("referrer_id", referrer.ID.String()),
			zap.String("quest_id", questID.String()),
			zap.String("kind", kind),
			zap.Error(err))
	}
}
