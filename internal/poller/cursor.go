package poller

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// PollCursor is the durable high-water mark for one receiving address, in
// ledger block-timestamp milliseconds.
type PollCursor struct {
	Address         string    `json:"address" gorm:"primaryKey"`
	LastTimestampMs int64     `json:"last_timestamp_ms" gorm:"not null"`
	UpdatedAt       time.Time `json:"updated_at" gorm:"not null"`
}

func (PollCursor) TableName() string { return "poll_cursors" }

// CursorStore persists poll cursors. Advancing only after a cycle's transfers
// were handed off keeps crashes re-fetching rather than skipping.
type CursorStore struct {
	db *gorm.DB
}

func NewCursorStore(db *gorm.DB) *CursorStore {
	return &CursorStore{db: db}
}

func (s *CursorStore) Get(ctx context.Context, address string) (int64, error) {
	var cursor PollCursor
	err := s.db.WithContext(ctx).Raw(
		`SELECT address, last_timestamp_ms, updated_at FROM poll_cursors WHERE address = ? LIMIT 1`,
		address,
	).Scan(&cursor).Error
	if err != nil {
		return 0, err
	}
	return cursor.LastTimestampMs, nil
}

func (s *CursorStore) Advance(ctx context.Context, address string, timestampMs int64, now time.Time) error {
	return s.db.WithContext(ctx).Exec(
		`INSERT INTO poll_cursors (address, last_timestamp_ms, updated_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT (address) DO UPDATE
		 SET last_timestamp_ms = excluded.last_timestamp_ms, updated_at = excluded.updated_at
		 WHERE poll_cursors.last_timestamp_ms < excluded.last_timestamp_ms`,
		address,
		timestampMs,
		now,
	).Error
}
