package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"questboard/internal/model"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

type transaction struct {
	ID            uuid.UUID       `db:"id"`
	UserID        uuid.UUID       `db:"user_id"`
	Type          string          `db:"type"`
	Amount        decimal.Decimal `db:"amount"`
	Status        string          `db:"status"`
	WalletAddress string          `db:"wallet_address"`
	TxHash        *string         `db:"tx_hash"`
	Notes         string          `db:"notes"`
	ProcessedBy   *uuid.UUID      `db:"processed_by"`
	ProcessedAt   *time.Time      `db:"processed_at"`
	CreatedAt     time.Time       `db:"created_at"`
}

func (t *transaction) toModel() *model.Transaction {
	return &model.Transaction{
		ID:            t.ID,
		UserID:        t.UserID,
		Type:          model.TransactionType(t.Type),
		Amount:        t.Amount,
		Status:        model.TransactionStatus(t.Status),
		WalletAddress: t.WalletAddress,
		TxHash:        t.TxHash,
		Notes:         t.Notes,
		ProcessedBy:   t.ProcessedBy,
		ProcessedAt:   t.ProcessedAt,
		CreatedAt:     t.CreatedAt,
	}
}

// CreateWithdrawal validates and books a withdrawal in one transaction. The
// user row is locked first, so the balance check and the debit cannot race
// with a concurrent request.
func (r *Repository) CreateWithdrawal(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (*model.Transaction, error) {
	var created *model.Transaction

	err := r.Transaction(ctx, func(tx *sqlx.Tx) error {
		lockQuery, lockArgs, err := squirrel.
			Select("usdc_balance", "wallet_address").
			From("users").
			Where(squirrel.Eq{"id": userID}).
			Suffix("FOR UPDATE").
			PlaceholderFormat(squirrel.Dollar).
			ToSql()
		if err != nil {
			return err
		}

		var row struct {
			USDCBalance   decimal.Decimal `db:"usdc_balance"`
			WalletAddress *string         `db:"wallet_address"`
		}
		err = tx.GetContext(ctx, &row, lockQuery, lockArgs...)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}

		if row.WalletAddress == nil {
			return ErrWalletNotSet
		}
		if amount.GreaterThan(row.USDCBalance) {
			return ErrInsufficientFunds
		}

		var pendingExists bool
		err = tx.GetContext(ctx, &pendingExists,
			`SELECT EXISTS (
				SELECT 1 FROM transactions
				WHERE user_id = $1 AND type = 'withdrawal' AND status = 'pending'
			)`, userID)
		if err != nil {
			return err
		}
		if pendingExists {
			return ErrPendingWithdrawal
		}

		debitQuery, debitArgs, err := squirrel.
			Update("users").
			Set("usdc_balance", squirrel.Expr("usdc_balance - ?", amount)).
			Where(squirrel.Eq{"id": userID}).
			PlaceholderFormat(squirrel.Dollar).
			ToSql()
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, debitQuery, debitArgs...); err != nil {
			return fmt.Errorf("failed to debit balance: %w", err)
		}

		txn := &transaction{
			ID:            uuid.New(),
			UserID:        userID,
			Type:          string(model.TransactionWithdrawal),
			Amount:        amount,
			Status:        string(model.TransactionPending),
			WalletAddress: *row.WalletAddress,
			CreatedAt:     time.Now().UTC(),
		}

		insertQuery, insertArgs, err := squirrel.
			Insert("transactions").
			SetMap(map[string]interface{}{
				"id":             txn.ID,
				"user_id":        txn.UserID,
				"type":           txn.Type,
				"amount":         txn.Amount,
				"status":         txn.Status,
				"wallet_address": txn.WalletAddress,
				"created_at":     txn.CreatedAt,
			}).
			PlaceholderFormat(squirrel.Dollar).
			ToSql()
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, insertQuery, insertArgs...); err != nil {
			return fmt.Errorf("failed to insert withdrawal: %w", err)
		}

		action := fmt.Sprintf("Requested withdrawal of $%s", amount.StringFixed(2))
		if err := appendActivityWithTx(ctx, tx, userID, action); err != nil {
			return err
		}

		created = txn.toModel()
		return nil
	})
	if err != nil {
		return nil, err
	}

	return created, nil
}

// CancelWithdrawal restores the balance and marks a pending withdrawal
// cancelled. Only the owner can cancel, and only while still pending.
func (r *Repository) CancelWithdrawal(ctx context.Context, userID, transactionID uuid.UUID) (*model.Transaction, error) {
	var cancelled *model.Transaction

	err := r.Transaction(ctx, func(tx *sqlx.Tx) error {
		query, args, err := squirrel.
			Update("transactions").
			Set("status", string(model.TransactionCancelled)).
			Where(squirrel.Eq{
				"id":      transactionID,
				"user_id": userID,
				"type":    string(model.TransactionWithdrawal),
				"status":  string(model.TransactionPending),
			}).
			Suffix("RETURNING *").
			PlaceholderFormat(squirrel.Dollar).
			ToSql()
		if err != nil {
			return err
		}

		var txn transaction
		err = tx.GetContext(ctx, &txn, query, args...)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}

		creditQuery, creditArgs, err := squirrel.
			Update("users").
			Set("usdc_balance", squirrel.Expr("usdc_balance + ?", txn.Amount)).
			Where(squirrel.Eq{"id": userID}).
			PlaceholderFormat(squirrel.Dollar).
			ToSql()
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, creditQuery, creditArgs...); err != nil {
			return fmt.Errorf("failed to restore balance: %w", err)
		}

		action := fmt.Sprintf("Cancelled withdrawal of $%s", txn.Amount.StringFixed(2))
		if err := appendActivityWithTx(ctx, tx, userID, action); err != nil {
			return err
		}

		cancelled = txn.toModel()
		return nil
	})
	if err != nil {
		return nil, err
	}

	return cancelled, nil
}

func (r *Repository) ListTransactions(ctx context.Context, userID uuid.UUID, limit int) ([]*model.Transaction, error) {
	query, args, err := squirrel.
		Select("*").
		From("transactions").
		Where(squirrel.Eq{"user_id": userID}).
		OrderBy("created_at DESC").
		Limit(uint64(limit)).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	var rows []transaction
	err = r.db.SelectContext(ctx, &rows, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}

	txns := make([]*model.Transaction, len(rows))
	for i := range rows {
		txns[i] = rows[i].toModel()
	}

	return txns, nil
}

func (r *Repository) GetPendingWithdrawal(ctx context.Context, userID uuid.UUID) (*model.Transaction, error) {
	query, args, err := squirrel.
		Select("*").
		From("transactions").
		Where(squirrel.Eq{
			"user_id": userID,
			"type":    string(model.TransactionWithdrawal),
			"status":  string(model.TransactionPending),
		}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	var txn transaction
	err = r.db.GetContext(ctx, &txn, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return txn.toModel(), nil
}

func (r *Repository) ListPendingWithdrawals(ctx context.Context) ([]*model.Transaction, error) {
	query, args, err := squirrel.
		Select("*").
		From("transactions").
		Where(squirrel.Eq{
			"type":   string(model.TransactionWithdrawal),
			"status": string(model.TransactionPending),
		}).
		OrderBy("created_at ASC").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	var rows []transaction
	err = r.db.SelectContext(ctx, &rows, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending withdrawals: %w", err)
	}

	txns := make([]*model.Transaction, len(rows))
	for i := range rows {
		txns[i] = rows[i].toModel()
	}

	return txns, nil
}

// ApproveWithdrawal marks a pending withdrawal completed. The balance was
// already debited at request time.
func (r *Repository) ApproveWithdrawal(ctx context.Context, transactionID, adminID uuid.UUID, txHash string) (*model.Transaction, error) {
	query, args, err := squirrel.
		Update("transactions").
		Set("status", string(model.TransactionCompleted)).
		Set("tx_hash", txHash).
		Set("processed_by", adminID).
		Set("processed_at", time.Now().UTC()).
		Where(squirrel.Eq{
			"id":     transactionID,
			"type":   string(model.TransactionWithdrawal),
			"status": string(model.TransactionPending),
		}).
		Suffix("RETURNING *").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	var txn transaction
	err = r.db.GetContext(ctx, &txn, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return txn.toModel(), nil
}

// RejectWithdrawal marks a pending withdrawal rejected and restores the
// debited balance in the same transaction.
func (r *Repository) RejectWithdrawal(ctx context.Context, transactionID, adminID uuid.UUID, notes string) (*model.Transaction, error) {
	var rejected *model.Transaction

	err := r.Transaction(ctx, func(tx *sqlx.Tx) error {
		query, args, err := squirrel.
			Update("transactions").
			Set("status", string(model.TransactionRejected)).
			Set("notes", notes).
			Set("processed_by", adminID).
			Set("processed_at", time.Now().UTC()).
			Where(squirrel.Eq{
				"id":     transactionID,
				"type":   string(model.TransactionWithdrawal),
				"status": string(model.TransactionPending),
			}).
			Suffix("RETURNING *").
			PlaceholderFormat(squirrel.Dollar).
			ToSql()
		if err != nil {
			return err
		}

		var txn transaction
		err = tx.GetContext(ctx, &txn, query, args...)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}

		creditQuery, creditArgs, err := squirrel.
			Update("users").
			Set("usdc_balance", squirrel.Expr("usdc_balance + ?", txn.Amount)).
			Where(squirrel.Eq{"id": txn.UserID}).
			PlaceholderFormat(squirrel.Dollar).
			ToSql()
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, creditQuery, creditArgs...); err != nil {
			return fmt.Errorf("failed to restore balance: %w", err)
		}

		action := fmt.Sprintf("Withdrawal of $%s was rejected, balance restored", txn.Amount.StringFixed(2))
		if err := appendActivityWithTx(ctx, tx, txn.UserID, action); err != nil {
			return err
		}

		rejected = txn.toModel()
		return nil
	})
	if err != nil {
		return nil, err
	}

	return rejected, nil
}
