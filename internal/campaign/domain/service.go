package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	orderdomain "github.com/promocast/promocast/internal/order/domain"
	"gorm.io/gorm"
)

var (
	ErrOrderNotMatched  = errors.New("order_not_matched")
	ErrCampaignNotFound = errors.New("campaign_not_found")
	ErrPostNotFound     = errors.New("scheduled_post_not_found")
	ErrInvalidStatus    = errors.New("invalid_post_status")
)

type Repository interface {
	FindByOrderID(ctx context.Context, db *gorm.DB, orderID snowflake.ID) (*Campaign, error)
	// InsertCampaign claims the order's campaign slot; returns false when a
	// concurrent provisioner already created it.
	InsertCampaign(ctx context.Context, db *gorm.DB, campaign *Campaign) (bool, error)
	InsertPosts(ctx context.Context, db *gorm.DB, posts []ScheduledPost) error
	ListPosts(ctx context.Context, db *gorm.DB, campaignID snowflake.ID) ([]ScheduledPost, error)
	CountPosts(ctx context.Context, db *gorm.DB, campaignID snowflake.ID) (int64, error)
	// UpdatePostStatus moves scheduled → published|failed, conditionally.
	UpdatePostStatus(ctx context.Context, db *gorm.DB, postID snowflake.ID, status PostStatus, at time.Time) (bool, error)
}

type Service interface {
	// Provision expands a matched order into its scheduled posts exactly
	// once. The bool reports whether this call created the campaign.
	Provision(ctx context.Context, order *orderdomain.Order) (*Campaign, bool, error)
	GetByOrderID(ctx context.Context, orderID snowflake.ID) (*Campaign, error)
	ListPosts(ctx context.Context, campaignID snowflake.ID) ([]ScheduledPost, error)
	UpdatePostStatus(ctx context.Context, postID snowflake.ID, status PostStatus) error
}
