package domain

import (
	"time"
)

type Outcome string

const (
	// OutcomeMatched means the transfer settled a pending order.
	OutcomeMatched Outcome = "matched"
	// OutcomeUntracked covers unknown memos and insufficient amounts; rows
	// are retained for manual reconciliation.
	OutcomeUntracked Outcome = "untracked"
	// OutcomeLate covers transfers whose order had already left pending by
	// the time the match was attempted (expired, cancelled or won by a
	// concurrent matcher).
	OutcomeLate Outcome = "late"
)

// ObservedTransaction is one transfer fetched from the external ledger.
// Processed flips false → true exactly once, atomically with any resulting
// order match.
type ObservedTransaction struct {
	TxHash      string     `json:"tx_hash" gorm:"primaryKey;column:tx_hash"`
	FromAddress string     `json:"from_address" gorm:"type:text;not null"`
	ToAddress   string     `json:"to_address" gorm:"type:text;not null"`
	AmountNano  int64      `json:"amount_nano" gorm:"not null"`
	Memo        string     `json:"memo" gorm:"type:text"`
	ObservedAt  time.Time  `json:"observed_at" gorm:"not null"`
	Processed   bool       `json:"processed" gorm:"not null"`
	Outcome     *Outcome   `json:"outcome,omitempty" gorm:"type:text"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
}

func (ObservedTransaction) TableName() string { return "observed_transactions" }
