package mocks

import (
	"context"
	"time"

	"questboard/internal/model"
	"questboard/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) CreateUser(ctx context.Context, u *model.User) error {
	args := m.Called(ctx, u)
	return args.Error(0)
}

func (m *MockUserRepository) GetUserByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *MockUserRepository) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *MockUserRepository) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *MockUserRepository) GetUserByReferralCode(ctx context.Context, code string) (*model.User, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *MockUserRepository) MarkUserVerified(ctx context.Context, id uuid.UUID) (*model.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *MockUserRepository) AddUserXP(ctx context.Context, id uuid.UUID, xp int, activity string) error {
	args := m.Called(ctx, id, xp, activity)
	return args.Error(0)
}

func (m *MockUserRepository) AddReferralEarnings(ctx context.Context, id uuid.UUID, xp int, activity string) error {
	args := m.Called(ctx, id, xp, activity)
	return args.Error(0)
}

func (m *MockUserRepository) AppendActivity(ctx context.Context, id uuid.UUID, action string) error {
	args := m.Called(ctx, id, action)
	return args.Error(0)
}

func (m *MockUserRepository) GetRecentActivity(ctx context.Context, id uuid.UUID) ([]model.Activity, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Activity), args.Error(1)
}

func (m *MockUserRepository) UpdateProfile(ctx context.Context, id uuid.UUID, bio, twitter, github, telegram string) error {
	args := m.Called(ctx, id, bio, twitter, github, telegram)
	return args.Error(0)
}

func (m *MockUserRepository) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	args := m.Called(ctx, id, passwordHash)
	return args.Error(0)
}

func (m *MockUserRepository) UpdateNotifications(ctx context.Context, id uuid.UUID, prefs model.NotificationPrefs) error {
	args := m.Called(ctx, id, prefs)
	return args.Error(0)
}

func (m *MockUserRepository) UpdatePrivacy(ctx context.Context, id uuid.UUID, prefs model.PrivacyPrefs) error {
	args := m.Called(ctx, id, prefs)
	return args.Error(0)
}

func (m *MockUserRepository) SetWalletAddress(ctx context.Context, id uuid.UUID, address string) error {
	args := m.Called(ctx, id, address)
	return args.Error(0)
}

func (m *MockUserRepository) GetTopUsers(ctx context.Context, limit int) ([]*model.LeaderboardUser, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.LeaderboardUser), args.Error(1)
}

func (m *MockUserRepository) GetUserReferrals(ctx context.Context, code string) ([]*model.User, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.User), args.Error(1)
}

type MockQuestRepository struct {
	mock.Mock
}

func (m *MockQuestRepository) CreateQuest(ctx context.Context, q *model.Quest) error {
	args := m.Called(ctx, q)
	return args.Error(0)
}

func (m *MockQuestRepository) GetQuestByID(ctx context.Context, id uuid.UUID) (*model.Quest, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Quest), args.Error(1)
}

func (m *MockQuestRepository) ListActiveQuests(ctx context.Context) ([]*model.Quest, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Quest), args.Error(1)
}

func (m *MockQuestRepository) RegisterQuestAttempt(ctx context.Context, questID uuid.UUID) error {
	args := m.Called(ctx, questID)
	return args.Error(0)
}

func (m *MockQuestRepository) AddTaskToQuest(ctx context.Context, questID uuid.UUID, t *model.Task) error {
	args := m.Called(ctx, questID, t)
	return args.Error(0)
}

func (m *MockQuestRepository) RemoveTaskFromQuest(ctx context.Context, questID, taskID uuid.UUID) error {
	args := m.Called(ctx, questID, taskID)
	return args.Error(0)
}

type MockProgressRepository struct {
	mock.Mock
}

func (m *MockProgressRepository) GetProgress(ctx context.Context, userID, questID uuid.UUID) (*model.QuestProgress, error) {
	args := m.Called(ctx, userID, questID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.QuestProgress), args.Error(1)
}

func (m *MockProgressRepository) CreateProgress(ctx context.Context, p *model.QuestProgress) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *MockProgressRepository) StartProgress(ctx context.Context, progressID uuid.UUID, startedAt time.Time) error {
	args := m.Called(ctx, progressID, startedAt)
	return args.Error(0)
}

func (m *MockProgressRepository) AbandonProgress(ctx context.Context, progressID uuid.UUID) error {
	args := m.Called(ctx, progressID)
	return args.Error(0)
}

func (m *MockProgressRepository) ApplyTaskSubmission(ctx context.Context, sub *repository.TaskSubmissionUpdate) (bool, error) {
	args := m.Called(ctx, sub)
	return args.Bool(0), args.Error(1)
}

func (m *MockProgressRepository) ListCompletedByCompletionTime(ctx context.Context, questID uuid.UUID) ([]*model.QuestProgress, error) {
	args := m.Called(ctx, questID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.QuestProgress), args.Error(1)
}

func (m *MockProgressRepository) SetLeaderboardRank(ctx context.Context, progressID uuid.UUID, rank int, isWinner bool, winnerRank *int) error {
	args := m.Called(ctx, progressID, rank, isWinner, winnerRank)
	return args.Error(0)
}

func (m *MockProgressRepository) GrantWinnerBonus(ctx context.Context, progressID, userID uuid.UUID, bonusXP int, activity string) (bool, error) {
	args := m.Called(ctx, progressID, userID, bonusXP, activity)
	return args.Bool(0), args.Error(1)
}

func (m *MockProgressRepository) GetQuestLeaderboard(ctx context.Context, questID uuid.UUID, limit int) ([]*repository.QuestLeaderboardEntry, error) {
	args := m.Called(ctx, questID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*repository.QuestLeaderboardEntry), args.Error(1)
}

func (m *MockProgressRepository) AppendReferralEvent(ctx context.Context, progressID, referrerID uuid.UUID, ev model.ReferralEvent, kind string, activity string) error {
	args := m.Called(ctx, progressID, referrerID, ev, kind, activity)
	return args.Error(0)
}

type MockTransactionRepository struct {
	mock.Mock
}

func (m *MockTransactionRepository) CreateWithdrawal(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (*model.Transaction, error) {
	args := m.Called(ctx, userID, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) CancelWithdrawal(ctx context.Context, userID, transactionID uuid.UUID) (*model.Transaction, error) {
	args := m.Called(ctx, userID, transactionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) ListTransactions(ctx context.Context, userID uuid.UUID, limit int) ([]*model.Transaction, error) {
	args := m.Called(ctx, userID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) GetPendingWithdrawal(ctx context.Context, userID uuid.UUID) (*model.Transaction, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) ListPendingWithdrawals(ctx context.Context) ([]*model.Transaction, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) ApproveWithdrawal(ctx context.Context, transactionID, adminID uuid.UUID, txHash string) (*model.Transaction, error) {
	args := m.Called(ctx, transactionID, adminID, txHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) RejectWithdrawal(ctx context.Context, transactionID, adminID uuid.UUID, notes string) (*model.Transaction, error) {
	args := m.Called(ctx, transactionID, adminID, notes)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Transaction), args.Error(1)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) SendWelcome(to, username string) {
	m.Called(to, username)
}

func (m *MockNotifier) SendWithdrawalApproved(to, amount, txHash string) {
	m.Called(to, amount, txHash)
}

func (m *MockNotifier) SendWithdrawalRejected(to, amount, reason string) {
	m.Called(to, amount, reason)
}

type MockReferralProcessor struct {
	mock.Mock
}

func (m *MockReferralProcessor) ProcessJoinBonus(ctx context.Context, referralCode string, referredUserID, questID uuid.UUID, bonusXP int) {
	m.Called(ctx, referralCode, referredUserID, questID, bonusXP)
}

func (m *MockReferralProcessor) ProcessCompleteBonus(ctx context.Context, referralCode string, referredUserID, questID uuid.UUID, bonusXP int) {
	m.Called(ctx, referralCode, referredUserID, questID, bonusXP)
}

type MockCompetitionRanker struct {
	mock.Mock
}

func (m *MockCompetitionRanker) ProcessCompetitionResults(ctx context.Context, quest *model.Quest) {
	m.Called(ctx, quest)
}
