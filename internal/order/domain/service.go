package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type CreateOrderRequest struct {
	UserID       int64
	DurationDays int
	ChannelIDs   []int64
	// PayerAddress is advisory only; matching is driven by the memo.
	PayerAddress string
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, order *Order) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Order, error)
	FindPendingByCode(ctx context.Context, db *gorm.DB, code string) (*Order, error)
	FindLatestByCode(ctx context.Context, db *gorm.DB, code string) (*Order, error)
	// TryMatch flips pending → matched iff the order is still pending and
	// not past expiry. Single conditional statement; the caller owns the
	// surrounding transaction.
	TryMatch(ctx context.Context, db *gorm.DB, id snowflake.ID, txHash string, now time.Time) (bool, error)
	Cancel(ctx context.Context, db *gorm.DB, id snowflake.ID, now time.Time) (bool, error)
	ExpireStale(ctx context.Context, db *gorm.DB, now time.Time, limit int) (int64, error)
	FindMatchedWithoutCampaign(ctx context.Context, db *gorm.DB, limit int) ([]Order, error)
}

type Service interface {
	CreateOrder(ctx context.Context, req CreateOrderRequest) (*Order, error)
	GetByCode(ctx context.Context, code string) (*Order, error)
	Cancel(ctx context.Context, id snowflake.ID) (*Order, error)
	ExpireStale(ctx context.Context, limit int) (int64, error)
}
