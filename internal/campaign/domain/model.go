package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Campaign is the provisioned output of a matched order, 1:1 with orders.
type Campaign struct {
	ID        snowflake.ID `json:"id" gorm:"primaryKey"`
	OrderID   snowflake.ID `json:"order_id" gorm:"not null;uniqueIndex"`
	CreatedAt time.Time    `json:"created_at" gorm:"not null"`
}

func (Campaign) TableName() string { return "campaigns" }

type PostStatus string

const (
	PostStatusScheduled PostStatus = "scheduled"
	PostStatusPublished PostStatus = "published"
	PostStatusFailed    PostStatus = "failed"
)

// ScheduledPost is one planned distribution event (channel x day x slot).
type ScheduledPost struct {
	ID         snowflake.ID `json:"id" gorm:"primaryKey"`
	CampaignID snowflake.ID `json:"campaign_id" gorm:"not null;index"`
	ChannelID  int64        `json:"channel_id" gorm:"not null"`
	DayIndex   int          `json:"day_index" gorm:"not null"`
	SlotIndex  int          `json:"slot_index" gorm:"not null"`
	SlotTime   string       `json:"slot_time" gorm:"type:text;not null"`
	PublishAt  time.Time    `json:"publish_at" gorm:"not null;index"`
	Status     PostStatus   `json:"status" gorm:"type:text;not null;index"`
	CreatedAt  time.Time    `json:"created_at" gorm:"not null"`
}

func (ScheduledPost) TableName() string { return "scheduled_posts" }
