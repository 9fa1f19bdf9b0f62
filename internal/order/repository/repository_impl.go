package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/promocast/promocast/internal/order/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, order *domain.Order) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO orders (
			id, user_id, reference_code, claimed_payer_addr, duration_days,
			channel_ids, posts_per_day, discount_bps, expected_amount_nano,
			status, created_at, expires_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		order.ID,
		order.UserID,
		order.ReferenceCode,
		order.ClaimedPayerAddr,
		order.DurationDays,
		order.ChannelIDs,
		order.PostsPerDay,
		order.DiscountBps,
		order.ExpectedAmountNano,
		order.Status,
		order.CreatedAt,
		order.ExpiresAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Order, error) {
	var item domain.Order
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM orders WHERE id = ? LIMIT 1`,
		id,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) FindPendingByCode(ctx context.Context, db *gorm.DB, code string) (*domain.Order, error) {
	var item domain.Order
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM orders
		 WHERE reference_code = ? AND status = ?
		 LIMIT 1`,
		code,
		domain.OrderStatusPending,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) FindLatestByCode(ctx context.Context, db *gorm.DB, code string) (*domain.Order, error) {
	var item domain.Order
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM orders
		 WHERE reference_code = ?
		 ORDER BY created_at DESC
		 LIMIT 1`,
		code,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) TryMatch(ctx context.Context, db *gorm.DB, id snowflake.ID, txHash string, now time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE orders
		 SET status = ?, matched_tx_hash = ?, matched_at = ?
		 WHERE id = ? AND status = ? AND expires_at > ?`,
		domain.OrderStatusMatched,
		txHash,
		now,
		id,
		domain.OrderStatusPending,
		now,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) Cancel(ctx context.Context, db *gorm.DB, id snowflake.ID, now time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE orders
		 SET status = ?
		 WHERE id = ? AND status = ?`,
		domain.OrderStatusCancelled,
		id,
		domain.OrderStatusPending,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) ExpireStale(ctx context.Context, db *gorm.DB, now time.Time, limit int) (int64, error) {
	// Guarded by the same status precondition as TryMatch, so a sweep racing
	// a matcher can never clobber a fresh match.
	res := db.WithContext(ctx).Exec(
		`UPDATE orders
		 SET status = ?
		 WHERE id IN (
			SELECT id FROM orders
			WHERE status = ? AND expires_at <= ?
			ORDER BY expires_at
			LIMIT ?
		 ) AND status = ?`,
		domain.OrderStatusExpired,
		domain.OrderStatusPending,
		now,
		limit,
		domain.OrderStatusPending,
	)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (r *repo) FindMatchedWithoutCampaign(ctx context.Context, db *gorm.DB, limit int) ([]domain.Order, error) {
	var orders []domain.Order
	err := db.WithContext(ctx).Raw(
		`SELECT o.* FROM orders o
		 LEFT JOIN campaigns c ON c.order_id = o.id
		 WHERE o.status = ? AND c.id IS NULL
		 ORDER BY o.matched_at
		 LIMIT ?`,
		domain.OrderStatusMatched,
		limit,
	).Scan(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}
