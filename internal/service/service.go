package service

import (
	"context"
	"errors"
	"time"

	"questboard/internal/model"
	"questboard/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrUserNotFound     = errors.New("user not found")
	ErrQuestNotFound    = errors.New("quest not found")
	ErrTaskNotFound     = errors.New("task not found")
	ErrProgressNotFound = errors.New("quest progress not found")

	ErrTransactionNotFound = errors.New("transaction not found")

	ErrQuestNotAvailable     = errors.New("quest is not currently available")
	ErrQuestAlreadyStarted   = errors.New("quest already in progress")
	ErrQuestAlreadyCompleted = errors.New("quest already completed")
	ErrTaskAlreadyCompleted  = errors.New("task already completed")

	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUsernameTaken      = errors.New("username already taken")
	ErrEmailTaken         = errors.New("email already registered")
	ErrPasswordMismatch   = errors.New("current password is incorrect")
	ErrPasswordTooShort   = errors.New("password must be at least 6 characters")

	ErrWalletLocked            = errors.New("wallet address is locked after first set")
	ErrWalletNotSet            = errors.New("wallet address not set")
	ErrInvalidWallet           = errors.New("invalid wallet address")
	ErrInvalidAmount           = errors.New("invalid withdrawal amount")
	ErrBelowMinimum            = errors.New("amount below minimum withdrawal")
	ErrInsufficientBalance     = errors.New("insufficient balance")
	ErrPendingWithdrawalExists = errors.New("a pending withdrawal already exists")
)

type UserRepository interface {
	CreateUser(ctx context.Context, u *model.User) error
	GetUserByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
	GetUserByReferralCode(ctx context.Context, code string) (*model.User, error)
	MarkUserVerified(ctx context.Context, id uuid.UUID) (*model.User, error)
	AddUserXP(ctx context.Context, id uuid.UUID, xp int, activity string) error
	AddReferralEarnings(ctx context.Context, id uuid.UUID, xp int, activity string) error
	AppendActivity(ctx context.Context, id uuid.UUID, action string) error
	GetRecentActivity(ctx context.Context, id uuid.UUID) ([]model.Activity, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, bio, twitter, github, telegram string) error
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
	UpdateNotifications(ctx context.Context, id uuid.UUID, prefs model.NotificationPrefs) error
	UpdatePrivacy(ctx context.Context, id uuid.UUID, prefs model.PrivacyPrefs) error
	SetWalletAddress(ctx context.Context, id uuid.UUID, address string) error
	GetTopUsers(ctx context.Context, limit int) ([]*model.LeaderboardUser, error)
	GetUserReferrals(ctx context.Context, code string) ([]*model.User, error)
}

type QuestRepository interface {
	CreateQuest(ctx context.Context, q *model.Quest) error
	GetQuestByID(ctx context.Context, id uuid.UUID) (*model.Quest, error)
	ListActiveQuests(ctx context.Context) ([]*model.Quest, error)
	RegisterQuestAttempt(ctx context.Context, questID uuid.UUID) error
	AddTaskToQuest(ctx context.Context, questID uuid.UUID, t *model.Task) error
	RemoveTaskFromQuest(ctx context.Context, questID, taskID uuid.UUID) error
}

type ProgressRepository interface {
	GetProgress(ctx context.Context, userID, questID uuid.UUID) (*model.QuestProgress, error)
	CreateProgress(ctx context.Context, p *model.QuestProgress) error
	StartProgress(ctx context.Context, progressID uuid.UUID, startedAt time.Time) error
	AbandonProgress(ctx context.Context, progressID uuid.UUID) error
	ApplyTaskSubmission(ctx context.Context, sub *repository.TaskSubmissionUpdate) (bool, error)
	ListCompletedByCompletionTime(ctx context.Context, questID uuid.UUID) ([]*model.QuestProgress, error)
	SetLeaderboardRank(ctx context.Context, progressID uuid.UUID, rank int, isWinner bool, winnerRank *int) error
	GrantWinnerBonus(ctx context.Context, progressID, userID uuid.UUID, bonusXP int, activity string) (bool, error)
	GetQuestLeaderboard(ctx context.Context, questID uuid.UUID, limit int) ([]*repository.QuestLeaderboardEntry, error)
	AppendReferralEvent(ctx context.Context, progressID, referrerID uuid.UUID, ev model.ReferralEvent, kind string, activity string) error
}

type TransactionRepository interface {
	CreateWithdrawal(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (*model.Transaction, error)
	CancelWithdrawal(ctx context.Context, userID, transactionID uuid.UUID) (*model.Transaction, error)
	ListTransactions(ctx context.Context, userID uuid.UUID, limit int) ([]*model.Transaction, error)
	GetPendingWithdrawal(ctx context.Context, userID uuid.UUID) (*model.Transaction, error)
	ListPendingWithdrawals(ctx context.Context) ([]*model.Transaction, error)
	ApproveWithdrawal(ctx context.Context, transactionID, adminID uuid.UUID, txHash string) (*model.Transaction, error)
	RejectWithdrawal(ctx context.Context, transactionID, adminID uuid.UUID, notes string) (*model.Transaction, error)
}

type UserServiceI interface {
	Register(ctx context.Context, in RegisterInput) (*model.User, error)
	Login(ctx context.Context, email, password string) (*model.User, error)
	VerifyEmail(ctx context.Context, userID uuid.UUID) (*model.User, error)
	GetUser(ctx context.Context, userID uuid.UUID) (*model.User, error)
	GetRecentActivity(ctx context.Context, userID uuid.UUID) ([]model.Activity, error)
	GetGlobalLeaderboard(ctx context.Context, limit int) ([]*model.LeaderboardUser, error)
	GetReferrals(ctx context.Context, userID uuid.UUID) ([]*model.User, error)
}

type QuestServiceI interface {
	ListQuests(ctx context.Context) ([]*model.Quest, error)
	GetQuest(ctx context.Context, questID uuid.UUID) (*model.Quest, error)
	GetProgress(ctx context.Context, userID, questID uuid.UUID) (*model.QuestProgress, error)
	StartQuest(ctx context.Context, userID, questID uuid.UUID) (*model.QuestProgress, error)
	AbandonQuest(ctx context.Context, userID, questID uuid.UUID) error
	SubmitTask(ctx context.Context, userID, questID, taskID uuid.UUID, submission TaskSubmission) (*SubmitTaskResult, error)
	GetQuestLeaderboard(ctx context.Context, questID uuid.UUID, limit int) ([]*repository.QuestLeaderboardEntry, error)
	CreateQuest(ctx context.Context, quest *model.Quest) (*model.Quest, error)
	AddTask(ctx context.Context, questID uuid.UUID, task *model.Task) (*model.Task, error)
	RemoveTask(ctx context.Context, questID, taskID uuid.UUID) error
}

type WithdrawalServiceI interface {
	RequestWithdrawal(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (*model.Transaction, error)
	CancelWithdrawal(ctx context.Context, userID, transactionID uuid.UUID) (*model.Transaction, error)
	ListTransactions(ctx context.Context, userID uuid.UUID, limit int) ([]*model.Transaction, error)
	GetPendingWithdrawal(ctx context.Context, userID uuid.UUID) (*model.Transaction, error)
	ListPendingWithdrawals(ctx context.Context) ([]*model.Transaction, error)
	ApproveWithdrawal(ctx context.Context, transactionID, adminID uuid.UUID, txHash string) (*model.Transaction, error)
	RejectWithdrawal(ctx context.Context, transactionID, adminID uuid.UUID, notes string) (*model.Transaction, error)
}

type SettingsServiceI interface {
	UpdateProfile(ctx context.Context, userID uuid.UUID, in ProfileUpdate) error
	UpdatePassword(ctx context.Context, userID uuid.UUID, current, next string) error
	UpdateNotifications(ctx context.Context, userID uuid.UUID, prefs model.NotificationPrefs) error
	UpdatePrivacy(ctx context.Context, userID uuid.UUID, prefs model.PrivacyPrefs) error
	ConnectWallet(ctx context.Context, userID uuid.UUID, address string) error
}

// Notifier is the outbound email sink. Every call is fire-and-forget.
type Notifier interface {
	SendWelcome(to, username string)
	SendWithdrawalApproved(to, amount, txHash string)
	SendWithdrawalRejected(to, amount, reason string)
}

// ReferralProcessor grants quest-scoped referral bonuses. Implementations
// never return business failures: an unknown code or a zero bonus is a
// silent no-op.
type ReferralProcessor interface {
	ProcessJoinBonus(ctx context.Context, referralCode string, referredUserID, questID uuid.UUID, bonusXP int)
	ProcessCompleteBonus(ctx context.Context, referralCode string, referredUserID, questID uuid.UUID, bonusXP int)
}

// CompetitionRanker runs the completion-order ranking pass for fcfs and
// competition quests.
type CompetitionRanker interface {
	ProcessCompetitionResults(ctx context.Context, quest *model.Quest)
}
