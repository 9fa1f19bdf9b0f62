package domain

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

var (
	ErrTransactionNotFound = errors.New("transaction_not_found")
	ErrAlreadyProcessed    = errors.New("transaction_already_processed")
	ErrInvalidOutcome      = errors.New("invalid_outcome")
)

type Repository interface {
	// Insert records a transfer if its hash was never seen; returns false
	// when the row already existed (duplicate delivery from the poller).
	Insert(ctx context.Context, db *gorm.DB, tx *ObservedTransaction) (bool, error)
	Find(ctx context.Context, db *gorm.DB, txHash string) (*ObservedTransaction, error)
	// MarkProcessed flips processed false → true with the given outcome.
	// Returns false when another worker got there first.
	MarkProcessed(ctx context.Context, db *gorm.DB, txHash string, outcome Outcome, processedAt time.Time) (bool, error)
	// Reclassify rewrites the outcome of an already-processed transaction.
	// Matched rows are immutable.
	Reclassify(ctx context.Context, db *gorm.DB, txHash string, outcome Outcome) (bool, error)
}

type Service interface {
	// Process reconciles a batch of observed transfers against the order
	// ledger. Race losses and unknown memos are recorded, not returned as
	// errors.
	Process(ctx context.Context, batch []ObservedTransaction) error
}
