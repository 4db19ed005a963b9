package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type QuestType string

const (
	QuestTypeStandard      QuestType = "standard"
	QuestTypeReferralBoost QuestType = "referral_boost"
	QuestTypeFCFS          QuestType = "fcfs"
	QuestTypeCompetition   QuestType = "competition"
)

// IsCompetitive reports whether completing the quest triggers the
// completion-order ranking pass.
func (t QuestType) IsCompetitive() bool {
	return t == QuestTypeFCFS || t == QuestTypeCompetition
}

type TaskType string

const (
	TaskTypeSocial       TaskType = "social"
	TaskTypeSubmission   TaskType = "submission"
	TaskTypeVerification TaskType = "verification"
	TaskTypeQuiz         TaskType = "quiz"
	TaskTypeExternal     TaskType = "external"
	TaskTypeDaily        TaskType = "daily"
)

type Quest struct {
	ID               uuid.UUID
	Title            string
	Description      string
	ShortDescription string
	Category         string
	Difficulty       string
	QuestType        QuestType
	Tags             []string

	StartDate *time.Time
	EndDate   *time.Time

	ReferralConfig    ReferralConfig
	CompetitionConfig CompetitionConfig

	BaseXPReward int
	USDCReward   decimal.Decimal
	BadgeReward  *string

	Tasks      []Task
	DailyTasks []Task

	IsActive        bool
	MaxParticipants *int

	TotalParticipants     int
	TotalCompletions      int
	TotalAttempts         int
	AverageCompletionTime int

	CreatedAt time.Time
	UpdatedAt time.Time
}

type Task struct {
	ID          uuid.UUID
	Title       string
	Description string
	Order       int
	TaskType    TaskType
	XPReward    int
	IsDaily     bool

	ButtonText *string
	ButtonLink *string
	InputLabel *string
	InputName  *string

	Requirements TaskRequirements
}

type TaskRequirements struct {
	URL      string
	Platform string
	Action   string
}

type ReferralConfig struct {
	Enabled               bool
	XPPerReferralJoin     int
	XPPerReferralComplete int
}

type CompetitionConfig struct {
	Enabled         bool
	TopWinnersCount int
	WinnerBonusXP   int
}

// AllTasks returns the regular tasks followed by the daily tasks, the set a
// progress record is seeded from.
func (q *Quest) AllTasks() []Task {
	tasks := make([]Task, 0, len(q.Tasks)+len(q.DailyTasks))
	tasks = append(tasks, q.Tasks...)
	tasks = append(tasks, q.DailyTasks...)
	return tasks
}

// FindTask looks a task up across tasks and daily tasks.
func (q *Quest) FindTask(taskID uuid.UUID) (*Task, bool) {
	for i := range q.Tasks {
		if q.Tasks[i].ID == taskID {
			return &q.Tasks[i], true
		}
	}
	for i := range q.DailyTasks {
		if q.DailyTasks[i].ID == taskID {
			return &q.DailyTasks[i], true
		}
	}
	return nil, false
}

// IsCurrentlyActive reports whether the quest can be started right now:
// flagged active, inside its date window, and not at participant capacity.
func (q *Quest) IsCurrentlyActive(now time.Time) bool {
	if !q.IsActive {
		return false
	}
	if q.StartDate != nil && now.Before(*q.StartDate) {
		return false
	}
	if q.EndDate != nil && now.After(*q.EndDate) {
		return false
	}
	if q.MaxParticipants != nil && q.TotalParticipants >= *q.MaxParticipants {
		return false
	}
	return true
}
