package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/promocast/promocast/internal/campaign/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindByOrderID(ctx context.Context, db *gorm.DB, orderID snowflake.ID) (*domain.Campaign, error) {
	var item domain.Campaign
	err := db.WithContext(ctx).Raw(
		`SELECT id, order_id, created_at FROM campaigns WHERE order_id = ? LIMIT 1`,
		orderID,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) InsertCampaign(ctx context.Context, db *gorm.DB, campaign *domain.Campaign) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`INSERT INTO campaigns (id, order_id, created_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT (order_id) DO NOTHING`,
		campaign.ID,
		campaign.OrderID,
		campaign.CreatedAt,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) InsertPosts(ctx context.Context, db *gorm.DB, posts []domain.ScheduledPost) error {
	for _, post := range posts {
		if err := db.WithContext(ctx).Exec(
			`INSERT INTO scheduled_posts (
				id, campaign_id, channel_id, day_index, slot_index,
				slot_time, publish_at, status, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			post.ID,
			post.CampaignID,
			post.ChannelID,
			post.DayIndex,
			post.SlotIndex,
			post.SlotTime,
			post.PublishAt,
			post.Status,
			post.CreatedAt,
		).Error; err != nil {
			return err
		}
	}
	return nil
}

func (r *repo) ListPosts(ctx context.Context, db *gorm.DB, campaignID snowflake.ID) ([]domain.ScheduledPost, error) {
	var posts []domain.ScheduledPost
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM scheduled_posts
		 WHERE campaign_id = ?
		 ORDER BY publish_at, channel_id`,
		campaignID,
	).Scan(&posts).Error
	if err != nil {
		return nil, err
	}
	return posts, nil
}

func (r *repo) CountPosts(ctx context.Context, db *gorm.DB, campaignID snowflake.ID) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(1) FROM scheduled_posts WHERE campaign_id = ?`,
		campaignID,
	).Scan(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (r *repo) UpdatePostStatus(ctx context.Context, db *gorm.DB, postID snowflake.ID, status domain.PostStatus, at time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE scheduled_posts
		 SET status = ?
		 WHERE id = ? AND status = ?`,
		status,
		postID,
		domain.PostStatusScheduled,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
