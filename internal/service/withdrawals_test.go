package service

import (
	"context"
	"testing"

	"questboard/internal/model"
	"questboard/internal/repository"
	"questboard/internal/service/mocks"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestWithdrawalService_RequestWithdrawal(t *testing.T) {
	userID := uuid.New()

	tests := []struct {
		name          string
		amount        decimal.Decimal
		repoError     error
		expectedError error
	}{
		{
			name:          "zero amount",
			amount:        decimal.Zero,
			expectedError: ErrInvalidAmount,
		},
		{
			name:          "negative amount",
			amount:        decimal.NewFromInt(-10),
			expectedError: ErrInvalidAmount,
		},
		{
			name:          "below minimum",
			amount:        decimal.NewFromFloat(4.99),
			expectedError: ErrBelowMinimum,
		},
		{
			name:          "wallet not set",
			amount:        decimal.NewFromInt(20),
			repoError:     repository.ErrWalletNotSet,
			expectedError: ErrWalletNotSet,
		},
		{
			name:          "insufficient balance",
			amount:        decimal.NewFromInt(20),
			repoError:     repository.ErrInsufficientFunds,
			expectedError: ErrInsufficientBalance,
		},
		{
			name:          "pending withdrawal exists",
			amount:        decimal.NewFromInt(20),
			repoError:     repository.ErrPendingWithdrawal,
			expectedError: ErrPendingWithdrawalExists,
		},
		{
			name:   "exact minimum succeeds",
			amount: decimal.NewFromInt(5),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			txRepo := &mocks.MockTransactionRepository{}
			userRepo := &mocks.MockUserRepository{}
			notifier := &mocks.MockNotifier{}

			if tt.expectedError == nil {
				txRepo.On("CreateWithdrawal", mock.Anything, userID, tt.amount).
					Return(&model.Transaction{
						ID:     uuid.New(),
						UserID: userID,
						Type:   model.TransactionWithdrawal,
						Amount: tt.amount,
						Status: model.TransactionPending,
					}, nil)
			} else if tt.repoError != nil {
				txRepo.On("CreateWithdrawal", mock.Anything, userID, tt.amount).
					Return(nil, tt.repoError)
			}

			svc := NewWithdrawalService(txRepo, userRepo, notifier)
			txn, err := svc.RequestWithdrawal(context.Background(), userID, tt.amount)

			if tt.expectedError != nil {
				assert.ErrorIs(t, err, tt.expectedError)
				assert.Nil(t, txn)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, model.TransactionPending, txn.Status)
			}

			if tt.repoError == nil && tt.expectedError != nil {
				txRepo.AssertNotCalled(t, "CreateWithdrawal", mock.Anything, mock.Anything, mock.Anything)
			}
		})
	}
}

func TestWithdrawalService_ApproveWithdrawal(t *testing.T) {
	userID := uuid.New()
	adminID := uuid.New()
	transactionID := uuid.New()
	txHash := "0xabc123"

	t.Run("approval notifies the owner", func(t *testing.T) {
		txRepo := &mocks.MockTransactionRepository{}
		userRepo := &mocks.MockUserRepository{}
		notifier := &mocks.MockNotifier{}

		txRepo.On("ApproveWithdrawal", mock.Anything, transactionID, adminID, txHash).
			Return(&model.Transaction{
				ID:     transactionID,
				UserID: userID,
				Amount: decimal.NewFromInt(25),
				Status: model.TransactionCompleted,
			}, nil)
		userRepo.On("GetUserByID", mock.Anything, userID).
			Return(&model.User{ID: userID, Email: "alice@example.com"}, nil)
		notifier.On("SendWithdrawalApproved", "alice@example.com", "25.00", txHash).Return()

		svc := NewWithdrawalService(txRepo, userRepo, notifier)
		txn, err := svc.ApproveWithdrawal(context.Background(), transactionID, adminID, txHash)

		assert.NoError(t, err)
		assert.Equal(t, model.TransactionCompleted, txn.Status)
		notifier.AssertExpectations(t)
	})

	t.Run("missing transaction", func(t *testing.T) {
		txRepo := &mocks.MockTransactionRepository{}
		userRepo := &mocks.MockUserRepository{}
		notifier := &mocks.MockNotifier{}

		txRepo.On("ApproveWithdrawal", mock.Anything, transactionID, adminID, txHash).
			Return(nil, repository.ErrNotFound)

		svc := NewWithdrawalService(txRepo, userRepo, notifier)
		_, err := svc.ApproveWithdrawal(context.Background(), transactionID, adminID, txHash)

		assert.ErrorIs(t, err, ErrTransactionNotFound)
		notifier.AssertNotCalled(t, "SendWithdrawalApproved", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestWithdrawalService_RejectWithdrawal(t *testing.T) {
	userID := uuid.New()
	adminID := uuid.New()
	transactionID := uuid.New()

	txRepo := &mocks.MockTransactionRepository{}
	userRepo := &mocks.MockUserRepository{}
	notifier := &mocks.MockNotifier{}

	txRepo.On("RejectWithdrawal", mock.Anything, transactionID, adminID, "invalid wallet").
		Return(&model.Transaction{
			ID:     transactionID,
			UserID: userID,
			Amount: decimal.NewFromInt(40),
			Status: model.TransactionRejected,
		}, nil)
	userRepo.On("GetUserByID", mock.Anything, userID).
		Return(&model.User{ID: userID, Email: "bob@example.com"}, nil)
	notifier.On("SendWithdrawalRejected", "bob@example.com", "40.00", "invalid wallet").Return()

	svc := NewWithdrawalService(txRepo, userRepo, notifier)
	txn, err := svc.RejectWithdrawal(context.Background(), transactionID, adminID, "invalid wallet")

	assert.NoError(t, err)
	assert.Equal(t, model.TransactionRejected, txn.Status)
	notifier.AssertExpectations(t)
}

func TestWithdrawalService_GetPendingWithdrawal(t *testing.T) {
	userID := uuid.New()

	t.Run("no pending returns nil without error", func(t *testing.T) {
		txRepo := &mocks.MockTransactionRepository{}
		txRepo.On("GetPendingWithdrawal", mock.Anything, userID).
			Return(nil, repository.ErrNotFound)

		svc := NewWithdrawalService(txRepo, &mocks.MockUserRepository{}, &mocks.MockNotifier{})
		txn, err := svc.GetPendingWithdrawal(context.Background(), userID)

		assert.NoError(t, err)
		assert.Nil(t, txn)
	})
}
