package service

import (
	"context"
	"errors"

	"questboard/internal/model"
	"questboard/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MinWithdrawalUSDC is the smallest amount a user may withdraw.
var MinWithdrawalUSDC = decimal.NewFromInt(5)

type WithdrawalService struct {
	transactions TransactionRepository
	users        UserRepository
	notifier     Notifier
}

func NewWithdrawalService(transactions TransactionRepository, users UserRepository, notifier Notifier) *WithdrawalService {
	return &WithdrawalService{
		transactions: transactions,
		users:        users,
		notifier:     notifier,
	}
}

// RequestWithdrawal validates the amount, debits the balance, and books a
// pending withdrawal. One pending withdrawal per user at a time.
func (s *WithdrawalService) RequestWithdrawal(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (*model.Transaction, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if amount.LessThan(MinWithdrawalUSDC) {
		return nil, ErrBelowMinimum
	}

	txn, err := s.transactions.CreateWithdrawal(ctx, userID, amount)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return nil, ErrUserNotFound
		case errors.Is(err, repository.ErrWalletNotSet):
			return nil, ErrWalletNotSet
		case errors.Is(err, repository.ErrInsufficientFunds):
			return nil, ErrInsufficientBalance
		case errors.Is(err, repository.ErrPendingWithdrawal):
			return nil, ErrPendingWithdrawalExists
		}
		return nil, err
	}

	return txn, nil
}

// CancelWithdrawal lets the owner cancel a still-pending withdrawal. The
// debited amount is restored.
func (s *WithdrawalService) CancelWithdrawal(ctx context.Context, userID, transactionID uuid.UUID) (*model.Transaction, error) {
	txn, err := s.transactions.CancelWithdrawal(ctx, userID, transactionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	return txn, nil
}

func (s *WithdrawalService) ListTransactions(ctx context.Context, userID uuid.UUID, limit int) ([]*model.Transaction, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.transactions.ListTransactions(ctx, userID, limit)
}

func (s *WithdrawalService) GetPendingWithdrawal(ctx context.Context, userID uuid.UUID) (*model.Transaction, error) {
	txn, err := s.transactions.GetPendingWithdrawal(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return txn, nil
}

func (s *WithdrawalService) ListPendingWithdrawals(ctx context.Context) ([]*model.Transaction, error) {
	return s.transactions.ListPendingWithdrawals(ctx)
}

// ApproveWithdrawal marks a pending withdrawal paid out. The balance was
// already debited at request time, so only the status changes.
func (s *WithdrawalService) ApproveWithdrawal(ctx context.Context, transactionID, adminID uuid.UUID, txHash string) (*model.Transaction, error) {
	txn, err := s.transactions.ApproveWithdrawal(ctx, transactionID, adminID, txHash)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}

	s.notifyOwner(ctx, txn, func(email string) {
		s.notifier.SendWithdrawalApproved(email, txn.Amount.StringFixed(2), txHash)
	})

	return txn, nil
}

// RejectWithdrawal marks a pending withdrawal rejected and restores the
// balance.
func (s *WithdrawalService) RejectWithdrawal(ctx context.Context, transactionID, adminID uuid.UUID, notes string) (*model.Transaction, error) {
	txn, err := s.transactions.RejectWithdrawal(ctx, transactionID, adminID, notes)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}

	s.notifyOwner(ctx, txn, func(email string) {
		s.notifier.SendWithdrawalRejected(email, txn.Amount.StringFixed(2), notes)
	})

	return txn, nil
}

func (s *WithdrawalService) notifyOwner(ctx context.Context, txn *model.Transaction, send func(email string)) {
	user, err := s.users.GetUserByID(ctx, txn.UserID)
	if err != nil {
		return
	}
	send(user.Email)
}
