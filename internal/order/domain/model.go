package domain

import (
	"encoding/json"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusMatched   OrderStatus = "matched"
	OrderStatusExpired   OrderStatus = "expired"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// Order is one purchase intent awaiting an incoming transfer carrying its
// reference code. Status only ever leaves pending; matched, expired and
// cancelled are terminal.
type Order struct {
	ID                 snowflake.ID   `json:"id" gorm:"primaryKey"`
	UserID             int64          `json:"user_id" gorm:"not null;index"`
	ReferenceCode      string         `json:"reference_code" gorm:"type:text;not null"`
	ClaimedPayerAddr   string         `json:"claimed_payer_address,omitempty" gorm:"type:text"`
	DurationDays       int            `json:"duration_days" gorm:"not null"`
	ChannelIDs         datatypes.JSON `json:"channel_ids" gorm:"not null"`
	PostsPerDay        int            `json:"posts_per_day" gorm:"not null"`
	DiscountBps        int64          `json:"discount_bps" gorm:"not null"`
	ExpectedAmountNano int64          `json:"expected_amount_nano" gorm:"not null"`
	Status             OrderStatus    `json:"status" gorm:"type:text;not null;index"`
	MatchedTxHash      *string        `json:"matched_tx_hash,omitempty" gorm:"type:text"`
	MatchedAt          *time.Time     `json:"matched_at,omitempty"`
	CreatedAt          time.Time      `json:"created_at" gorm:"not null"`
	ExpiresAt          time.Time      `json:"expires_at" gorm:"not null;index"`
}

func (Order) TableName() string { return "orders" }

func (o *Order) Channels() ([]int64, error) {
	var channels []int64
	if err := json.Unmarshal(o.ChannelIDs, &channels); err != nil {
		return nil, err
	}
	return channels, nil
}

func EncodeChannels(channels []int64) (datatypes.JSON, error) {
	raw, err := json.Marshal(channels)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}
