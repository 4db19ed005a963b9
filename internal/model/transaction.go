package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TransactionWithdrawal TransactionType = "withdrawal"
	TransactionReward     TransactionType = "reward"
	TransactionRefund     TransactionType = "refund"
)

type TransactionStatus string

const (
	TransactionPending   TransactionStatus = "pending"
	TransactionCompleted TransactionStatus = "completed"
	TransactionRejected  TransactionStatus = "rejected"
	TransactionCancelled TransactionStatus = "cancelled"
)

type Transaction struct {
	ID     uuid.UUID
	UserID uuid.UUID
	Type   TransactionType
	Amount decimal.Decimal
	Status TransactionStatus

	// Payout address snapshotted at request time.
	WalletAddress string
	TxHash        *string
	Notes         string

	ProcessedBy *uuid.UUID
	ProcessedAt *time.Time
	CreatedAt   time.Time
}
