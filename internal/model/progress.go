package model

import (
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProgressStatus is the quest progress state machine: not_started ->
// in_progress -> completed, and in_progress -> abandoned. An abandoned quest
// can be restarted; a completed record is never reopened.
type ProgressStatus string

const (
	StatusNotStarted ProgressStatus = "not_started"
	StatusInProgress ProgressStatus = "in_progress"
	StatusCompleted  ProgressStatus = "completed"
	StatusAbandoned  ProgressStatus = "abandoned"
)

func (s ProgressStatus) CanTransitionTo(next ProgressStatus) bool {
	switch s {
	case StatusNotStarted:
		return next == StatusInProgress
	case StatusInProgress:
		return next == StatusCompleted || next == StatusAbandoned
	case StatusAbandoned:
		return next == StatusInProgress
	case StatusCompleted:
		return false
	}
	return false
}

func (s ProgressStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusAbandoned
}

type QuestProgress struct {
	ID      uuid.UUID
	UserID  uuid.UUID
	QuestID uuid.UUID

	Status         ProgressStatus
	Progress       int
	TasksCompleted int
	TotalTasks     int
	TaskProgress   []TaskProgress

	StartedAt        *time.Time
	CompletedAt      *time.Time
	TimeSpentMinutes int

	XPBreakdown XPBreakdown

	ReferralsJoined    []ReferralEvent
	ReferralsCompleted []ReferralEvent
	TotalReferralXP    int

	LeaderboardRank *int
	IsWinner        bool
	WinnerRank      *int

	USDCEarned  decimal.Decimal
	BadgeEarned *string
}

type TaskProgress struct {
	TaskID         uuid.UUID
	IsCompleted    bool
	SubmissionURL  string
	SubmissionText string
	SubmissionData map[string]any
	CompletedAt    *time.Time
	XPEarned       int
}

// XPBreakdown is the per-quest XP ledger. TotalXP must always equal the sum
// of the five parts; Recompute enforces that before every save.
type XPBreakdown struct {
	TaskXP                int
	BaseXP                int
	ReferralJoinBonus     int
	ReferralCompleteBonus int
	WinnerBonus           int
	TotalXP               int
}

func (x *XPBreakdown) Recompute() {
	x.TotalXP = x.TaskXP + x.BaseXP + x.ReferralJoinBonus + x.ReferralCompleteBonus + x.WinnerBonus
}

// ReferralEvent records one referred user joining or completing the quest.
type ReferralEvent struct {
	ReferredUserID uuid.UUID
	OccurredAt     time.Time
	XPEarned       int
}

// FindTask returns the progress entry for the given task.
func (p *QuestProgress) FindTask(taskID uuid.UUID) (*TaskProgress, bool) {
	for i := range p.TaskProgress {
		if p.TaskProgress[i].TaskID == taskID {
			return &p.TaskProgress[i], true
		}
	}
	return nil, false
}

// RecomputeProgress derives the percentage from the task counters.
func (p *QuestProgress) RecomputeProgress() {
	if p.TotalTasks == 0 {
		p.Progress = 0
		return
	}
	p.Progress = int(math.Round(float64(p.TasksCompleted) / float64(p.TotalTasks) * 100))
}

// RecalculateReferralXP folds the join/complete event ledgers back into the
// breakdown totals.
func (p *QuestProgress) RecalculateReferralXP() {
	joinXP := 0
	for _, ev := range p.ReferralsJoined {
		joinXP += ev.XPEarned
	}
	completeXP := 0
	for _, ev := range p.ReferralsCompleted {
		completeXP += ev.XPEarned
	}

	p.XPBreakdown.ReferralJoinBonus = joinXP
	p.XPBreakdown.ReferralCompleteBonus = completeXP
	p.TotalReferralXP = joinXP + completeXP
	p.XPBreakdown.Recompute()
}
