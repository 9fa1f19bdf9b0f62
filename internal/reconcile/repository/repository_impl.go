package repository

import (
	"context"
	"time"

	"github.com/promocast/promocast/internal/reconcile/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, tx *domain.ObservedTransaction) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`INSERT INTO observed_transactions (
			tx_hash, from_address, to_address, amount_nano, memo,
			observed_at, processed, outcome, processed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (tx_hash) DO NOTHING`,
		tx.TxHash,
		tx.FromAddress,
		tx.ToAddress,
		tx.AmountNano,
		tx.Memo,
		tx.ObservedAt,
		tx.Processed,
		tx.Outcome,
		tx.ProcessedAt,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) Find(ctx context.Context, db *gorm.DB, txHash string) (*domain.ObservedTransaction, error) {
	var item domain.ObservedTransaction
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM observed_transactions WHERE tx_hash = ? LIMIT 1`,
		txHash,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.TxHash == "" {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) MarkProcessed(ctx context.Context, db *gorm.DB, txHash string, outcome domain.Outcome, processedAt time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE observed_transactions
		 SET processed = ?, outcome = ?, processed_at = ?
		 WHERE tx_hash = ? AND processed = ?`,
		true,
		outcome,
		processedAt,
		txHash,
		false,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) Reclassify(ctx context.Context, db *gorm.DB, txHash string, outcome domain.Outcome) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE observed_transactions
		 SET outcome = ?
		 WHERE tx_hash = ? AND processed = ? AND outcome <> ?`,
		outcome,
		txHash,
		true,
		domain.OutcomeMatched,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
