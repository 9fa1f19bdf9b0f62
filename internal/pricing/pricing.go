package pricing

import (
	"errors"
	"time"
)

const (
	MinDurationDays = 1
	MaxDurationDays = 365
	MaxPostsPerDay  = 12
)

var (
	ErrInvalidDuration     = errors.New("invalid_duration_days")
	ErrInvalidChannelCount = errors.New("invalid_channel_count")
)

// Engine computes deterministic campaign pricing. It performs no I/O; all
// amounts are int64 nano-units of the settlement currency and percentages
// are basis points so results are exact.
type Engine struct {
	// BaseRateNano is the cost of one post per day per channel. It is also
	// the price floor: no order is ever cheaper than a single post.
	BaseRateNano   int64
	MaxDiscountBps int64
}

func NewEngine(baseRateNano, maxDiscountBps int64) Engine {
	return Engine{BaseRateNano: baseRateNano, MaxDiscountBps: maxDiscountBps}
}

// Quote is the priced terms for one order.
type Quote struct {
	PostsPerDay     int
	DiscountBps     int64
	BaseAmountNano  int64
	FinalAmountNano int64
	// SlotTimes are time-of-day offsets from midnight, one per daily post,
	// evenly spaced across 24h starting at 00:00.
	SlotTimes []time.Duration
}

// ComputePricing turns (duration, channel count) into cost and cadence.
func (e Engine) ComputePricing(durationDays, channelCount int) (Quote, error) {
	if durationDays < MinDurationDays || durationDays > MaxDurationDays {
		return Quote{}, ErrInvalidDuration
	}
	if channelCount < 1 {
		return Quote{}, ErrInvalidChannelCount
	}

	posts := PostsPerDay(durationDays)
	discount := e.discountBps(durationDays)

	base := int64(durationDays) * int64(posts) * int64(channelCount) * e.BaseRateNano
	final := base * (10_000 - discount) / 10_000
	if final < e.BaseRateNano {
		final = e.BaseRateNano
	}

	return Quote{
		PostsPerDay:     posts,
		DiscountBps:     discount,
		BaseAmountNano:  base,
		FinalAmountNano: final,
		SlotTimes:       SlotTimes(posts),
	}, nil
}

// PostsPerDay is floor(days/2.5)+1 clamped to [1, MaxPostsPerDay].
func PostsPerDay(durationDays int) int {
	posts := durationDays*2/5 + 1
	if posts < 1 {
		posts = 1
	}
	if posts > MaxPostsPerDay {
		posts = MaxPostsPerDay
	}
	return posts
}

// SlotTimes spreads n daily posts evenly across 24 hours starting at 00:00.
func SlotTimes(n int) []time.Duration {
	if n < 1 {
		return nil
	}
	interval := 24 * time.Hour / time.Duration(n)
	slots := make([]time.Duration, n)
	for i := range slots {
		slots[i] = time.Duration(i) * interval
	}
	return slots
}

// discountBps grows 0.8% per day up to the configured cap.
func (e Engine) discountBps(durationDays int) int64 {
	discount := int64(durationDays) * 80
	if discount > e.MaxDiscountBps {
		discount = e.MaxDiscountBps
	}
	return discount
}
