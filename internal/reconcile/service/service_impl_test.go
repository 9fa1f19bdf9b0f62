package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	campaignrepo "github.com/promocast/promocast/internal/campaign/repository"
	campaignservice "github.com/promocast/promocast/internal/campaign/service"
	"github.com/promocast/promocast/internal/clock"
	"github.com/promocast/promocast/internal/config"
	"github.com/promocast/promocast/internal/notify"
	orderdomain "github.com/promocast/promocast/internal/order/domain"
	orderrepo "github.com/promocast/promocast/internal/order/repository"
	recdomain "github.com/promocast/promocast/internal/reconcile/domain"
	"github.com/promocast/promocast/internal/reconcile/repository"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type notifierStub struct {
	mu     sync.Mutex
	events []notify.ProvisioningEvent
}

func (n *notifierStub) CampaignProvisioned(_ context.Context, event notify.ProvisioningEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

func (n *notifierStub) Events() []notify.ProvisioningEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notify.ProvisioningEvent(nil), n.events...)
}

type matcherEnv struct {
	svc      *Service
	db       *gorm.DB
	node     *snowflake.Node
	fake     *clock.FakeClock
	notifier *notifierStub
}

func setupMatcher(t *testing.T) *matcherEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_loc=auto", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	_ = db.Exec("PRAGMA busy_timeout = 5000").Error
	prepareMatcherSchema(t, db)

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	fake := clock.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	notifier := &notifierStub{}

	cfg := config.Config{
		BaseRateNano:       290_000_000,
		MaxDiscountBps:     2500,
		AmountToleranceBps: 200,
		OrderTTL:           20 * time.Minute,
	}

	campaignSvc := campaignservice.NewService(campaignservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: fake,
		Repo:  campaignrepo.Provide(),
	})

	svc := NewService(Params{
		DB:        db,
		Log:       zap.NewNop(),
		Clock:     fake,
		Cfg:       cfg,
		Repo:      repository.Provide(),
		OrderRepo: orderrepo.Provide(),
		Campaigns: campaignSvc,
		Notifier:  notifier,
	})

	return &matcherEnv{svc: svc, db: db, node: node, fake: fake, notifier: notifier}
}

func prepareMatcherSchema(t *testing.T, db *gorm.DB) {
	t.Helper()
	require.NoError(t, db.Exec(`CREATE TABLE orders (
		id BIGINT PRIMARY KEY,
		user_id BIGINT NOT NULL,
		reference_code TEXT NOT NULL,
		claimed_payer_addr TEXT,
		duration_days INTEGER NOT NULL,
		channel_ids JSON NOT NULL,
		posts_per_day INTEGER NOT NULL,
		discount_bps BIGINT NOT NULL,
		expected_amount_nano BIGINT NOT NULL,
		status TEXT NOT NULL,
		matched_tx_hash TEXT,
		matched_at DATETIME,
		created_at DATETIME NOT NULL,
		expires_at DATETIME NOT NULL
	)`).Error)
	require.NoError(t, db.Exec(`CREATE TABLE observed_transactions (
		tx_hash TEXT PRIMARY KEY,
		from_address TEXT NOT NULL,
		to_address TEXT NOT NULL,
		amount_nano BIGINT NOT NULL,
		memo TEXT,
		observed_at DATETIME NOT NULL,
		processed BOOLEAN NOT NULL DEFAULT FALSE,
		outcome TEXT,
		processed_at DATETIME
	)`).Error)
	require.NoError(t, db.Exec(`CREATE TABLE campaigns (
		id BIGINT PRIMARY KEY,
		order_id BIGINT NOT NULL UNIQUE,
		created_at DATETIME NOT NULL
	)`).Error)
	require.NoError(t, db.Exec(`CREATE TABLE scheduled_posts (
		id BIGINT PRIMARY KEY,
		campaign_id BIGINT NOT NULL,
		channel_id BIGINT NOT NULL,
		day_index INTEGER NOT NULL,
		slot_index INTEGER NOT NULL,
		slot_time TEXT NOT NULL,
		publish_at DATETIME NOT NULL,
		status TEXT NOT NULL,
		created_at DATETIME NOT NULL
	)`).Error)
}

func (e *matcherEnv) seedOrder(t *testing.T, code string, expectedNano int64, status orderdomain.OrderStatus) *orderdomain.Order {
	t.Helper()
	encoded, err := orderdomain.EncodeChannels([]int64{100, 200})
	require.NoError(t, err)
	now := e.fake.Now()
	order := &orderdomain.Order{
		ID:                 e.node.Generate(),
		UserID:             42,
		ReferenceCode:      code,
		DurationDays:       7,
		ChannelIDs:         encoded,
		PostsPerDay:        3,
		DiscountBps:        560,
		ExpectedAmountNano: expectedNano,
		Status:             status,
		CreatedAt:          now,
		ExpiresAt:          now.Add(20 * time.Minute),
	}
	require.NoError(t, e.db.Exec(
		`INSERT INTO orders (
			id, user_id, reference_code, claimed_payer_addr, duration_days,
			channel_ids, posts_per_day, discount_bps, expected_amount_nano,
			status, created_at, expires_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		order.ID, order.UserID, order.ReferenceCode, "", order.DurationDays,
		order.ChannelIDs, order.PostsPerDay, order.DiscountBps, order.ExpectedAmountNano,
		order.Status, order.CreatedAt, order.ExpiresAt,
	).Error)
	return order
}

func transfer(hash, memo string, amountNano int64) recdomain.ObservedTransaction {
	return recdomain.ObservedTransaction{
		TxHash:      hash,
		FromAddress: "payer-addr",
		ToAddress:   "receiving-addr",
		AmountNano:  amountNano,
		Memo:        memo,
	}
}

func (e *matcherEnv) txOutcome(t *testing.T, hash string) (bool, string) {
	t.Helper()
	var row struct {
		Processed bool
		Outcome   *string
	}
	require.NoError(t, e.db.Raw(
		`SELECT processed, outcome FROM observed_transactions WHERE tx_hash = ?`, hash,
	).Scan(&row).Error)
	outcome := ""
	if row.Outcome != nil {
		outcome = *row.Outcome
	}
	return row.Processed, outcome
}

func TestProcessMatchesAndProvisions(t *testing.T) {
	env := setupMatcher(t)
	ctx := context.Background()

	order := env.seedOrder(t, "KQ4821", 11_497_920_000, orderdomain.OrderStatusPending)

	err := env.svc.Process(ctx, []recdomain.ObservedTransaction{
		transfer("tx-1", "KQ4821", 11_497_920_000),
	})
	require.NoError(t, err)

	processed, outcome := env.txOutcome(t, "tx-1")
	require.True(t, processed)
	require.Equal(t, string(recdomain.OutcomeMatched), outcome)

	var status string
	require.NoError(t, env.db.Raw(`SELECT status FROM orders WHERE id = ?`, order.ID).Scan(&status).Error)
	require.Equal(t, string(orderdomain.OrderStatusMatched), status)

	var posts int64
	require.NoError(t, env.db.Raw(`SELECT COUNT(1) FROM scheduled_posts`).Scan(&posts).Error)
	require.Equal(t, int64(42), posts)

	events := env.notifier.Events()
	require.Len(t, events, 1)
	require.Equal(t, int64(42), events[0].UserID)
	require.Equal(t, 42, events[0].TotalPosts)
	require.Equal(t, 2, events[0].ChannelCount)
}

func TestProcessDuplicateDeliveryIsNoop(t *testing.T) {
	env := setupMatcher(t)
	ctx := context.Background()

	env.seedOrder(t, "KQ4821", 1_000, orderdomain.OrderStatusPending)

	batch := []recdomain.ObservedTransaction{transfer("tx-1", "KQ4821", 1_000)}
	require.NoError(t, env.svc.Process(ctx, batch))
	require.NoError(t, env.svc.Process(ctx, batch))

	var campaigns int64
	require.NoError(t, env.db.Raw(`SELECT COUNT(1) FROM campaigns`).Scan(&campaigns).Error)
	require.Equal(t, int64(1), campaigns)
	require.Len(t, env.notifier.Events(), 1)
}

func TestProcessMemoNormalization(t *testing.T) {
	env := setupMatcher(t)
	ctx := context.Background()

	env.seedOrder(t, "KQ4821", 1_000, orderdomain.OrderStatusPending)

	require.NoError(t, env.svc.Process(ctx, []recdomain.ObservedTransaction{
		transfer("tx-1", "  kq4821  ", 1_000),
	}))

	processed, outcome := env.txOutcome(t, "tx-1")
	require.True(t, processed)
	require.Equal(t, string(recdomain.OutcomeMatched), outcome)
}

func TestProcessUnknownMemoUntracked(t *testing.T) {
	env := setupMatcher(t)
	ctx := context.Background()

	require.NoError(t, env.svc.Process(ctx, []recdomain.ObservedTransaction{
		transfer("tx-1", "ZZ9999", 1_000),
		transfer("tx-2", "not a code", 1_000),
		transfer("tx-3", "", 1_000),
	}))

	for _, hash := range []string{"tx-1", "tx-2", "tx-3"} {
		processed, outcome := env.txOutcome(t, hash)
		require.True(t, processed, hash)
		require.Equal(t, string(recdomain.OutcomeUntracked), outcome, hash)
	}
	require.Empty(t, env.notifier.Events())
}

func TestProcessAmountTolerance(t *testing.T) {
	env := setupMatcher(t)
	ctx := context.Background()

	const expected = 10_000_000_000

	// 98% of expected is inside the 200 bps underpayment allowance.
	env.seedOrder(t, "AA1111", expected, orderdomain.OrderStatusPending)
	require.NoError(t, env.svc.Process(ctx, []recdomain.ObservedTransaction{
		transfer("tx-ok", "AA1111", expected*98/100),
	}))
	_, outcome := env.txOutcome(t, "tx-ok")
	require.Equal(t, string(recdomain.OutcomeMatched), outcome)

	// Just below the allowance is rejected and kept for manual review.
	env.seedOrder(t, "BB2222", expected, orderdomain.OrderStatusPending)
	require.NoError(t, env.svc.Process(ctx, []recdomain.ObservedTransaction{
		transfer("tx-low", "BB2222", expected*98/100-1),
	}))
	_, outcome = env.txOutcome(t, "tx-low")
	require.Equal(t, string(recdomain.OutcomeUntracked), outcome)

	// Overpayment always matches.
	env.seedOrder(t, "CC3333", expected, orderdomain.OrderStatusPending)
	require.NoError(t, env.svc.Process(ctx, []recdomain.ObservedTransaction{
		transfer("tx-over", "CC3333", expected+1),
	}))
	_, outcome = env.txOutcome(t, "tx-over")
	require.Equal(t, string(recdomain.OutcomeMatched), outcome)
}

func TestProcessLateForKnownCode(t *testing.T) {
	env := setupMatcher(t)
	ctx := context.Background()

	env.seedOrder(t, "KQ4821", 1_000, orderdomain.OrderStatusExpired)

	require.NoError(t, env.svc.Process(ctx, []recdomain.ObservedTransaction{
		transfer("tx-1", "KQ4821", 1_000),
	}))

	processed, outcome := env.txOutcome(t, "tx-1")
	require.True(t, processed)
	require.Equal(t, string(recdomain.OutcomeLate), outcome)
	require.Empty(t, env.notifier.Events())
}

func TestProcessSecondPaymentForMatchedOrderIsLate(t *testing.T) {
	env := setupMatcher(t)
	ctx := context.Background()

	env.seedOrder(t, "KQ4821", 1_000, orderdomain.OrderStatusPending)

	require.NoError(t, env.svc.Process(ctx, []recdomain.ObservedTransaction{
		transfer("tx-1", "KQ4821", 1_000),
	}))
	require.NoError(t, env.svc.Process(ctx, []recdomain.ObservedTransaction{
		transfer("tx-2", "KQ4821", 1_000),
	}))

	_, first := env.txOutcome(t, "tx-1")
	require.Equal(t, string(recdomain.OutcomeMatched), first)
	_, second := env.txOutcome(t, "tx-2")
	require.Equal(t, string(recdomain.OutcomeLate), second)
	require.Len(t, env.notifier.Events(), 1)
}

func TestNormalizeMemo(t *testing.T) {
	require.Equal(t, "KQ4821", NormalizeMemo("kq4821"))
	require.Equal(t, "KQ4821", NormalizeMemo("  KQ4821\n"))
	require.Empty(t, NormalizeMemo("KQ48211"))
	require.Empty(t, NormalizeMemo("1234KQ"))
	require.Empty(t, NormalizeMemo("payment for KQ4821"))
	require.Empty(t, NormalizeMemo(""))
}

func TestAmountWithinTolerance(t *testing.T) {
	require.True(t, AmountWithinTolerance(100, 100, 200))
	require.True(t, AmountWithinTolerance(98, 100, 200))
	require.False(t, AmountWithinTolerance(97, 100, 200))
	require.True(t, AmountWithinTolerance(200, 100, 200))
	require.True(t, AmountWithinTolerance(11_497_920_000*98/100, 11_497_920_000, 200))
}
