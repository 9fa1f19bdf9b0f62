package poller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/promocast/promocast/internal/clock"
	"github.com/promocast/promocast/internal/config"
	"github.com/promocast/promocast/internal/explorer"
	recdomain "github.com/promocast/promocast/internal/reconcile/domain"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type sourceStub struct {
	mu        sync.Mutex
	transfers []explorer.Transfer
	err       error
	calls     []int64
}

func (s *sourceStub) FetchIncoming(_ context.Context, _ string, minTimestampMs int64) ([]explorer.Transfer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, minTimestampMs)
	if s.err != nil {
		return nil, s.err
	}
	var out []explorer.Transfer
	for _, t := range s.transfers {
		if t.TimestampMs >= minTimestampMs {
			out = append(out, t)
		}
	}
	return out, nil
}

type reconcilerStub struct {
	mu      sync.Mutex
	batches [][]recdomain.ObservedTransaction
	err     error
}

func (r *reconcilerStub) Process(_ context.Context, batch []recdomain.ObservedTransaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.batches = append(r.batches, batch)
	return nil
}

func setupPoller(t *testing.T, source *sourceStub, reconciler *reconcilerStub) (*Poller, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_loc=auto", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	require.NoError(t, db.Exec(`CREATE TABLE poll_cursors (
		address TEXT PRIMARY KEY,
		last_timestamp_ms BIGINT NOT NULL,
		updated_at DATETIME NOT NULL
	)`).Error)

	cfg := config.Config{
		PollInterval: 30 * time.Second,
		PollLookback: 2 * time.Minute,
	}
	p := New(Params{
		DB:         db,
		Log:        zap.NewNop(),
		Clock:      clock.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)),
		Cfg:        cfg,
		Source:     source,
		Reconciler: reconciler,
	})
	return p, db
}

const testAddr = "receiving-addr"

func TestRunOnceHandsOffAndAdvancesCursor(t *testing.T) {
	source := &sourceStub{transfers: []explorer.Transfer{
		{TxHash: "tx-1", ToAddress: testAddr, AmountNano: 100, Memo: "AA1111", TimestampMs: 1_000},
		{TxHash: "tx-2", ToAddress: testAddr, AmountNano: 200, Memo: "BB2222", TimestampMs: 2_000},
	}}
	reconciler := &reconcilerStub{}
	p, _ := setupPoller(t, source, reconciler)

	require.NoError(t, p.RunOnce(context.Background(), testAddr))

	require.Len(t, reconciler.batches, 1)
	require.Len(t, reconciler.batches[0], 2)
	require.Equal(t, "tx-1", reconciler.batches[0][0].TxHash)

	cursor, err := p.cursors.Get(context.Background(), testAddr)
	require.NoError(t, err)
	require.Equal(t, int64(2_000), cursor)
}

func TestRunOnceRewindsByLookback(t *testing.T) {
	source := &sourceStub{transfers: []explorer.Transfer{
		{TxHash: "tx-1", ToAddress: testAddr, AmountNano: 100, TimestampMs: 500_000},
	}}
	reconciler := &reconcilerStub{}
	p, _ := setupPoller(t, source, reconciler)
	ctx := context.Background()

	require.NoError(t, p.cursors.Advance(ctx, testAddr, 500_000, time.Now().UTC()))
	require.NoError(t, p.RunOnce(ctx, testAddr))

	// 500_000 cursor minus the 120s lookback.
	require.Equal(t, []int64{380_000}, source.calls)
	require.Len(t, reconciler.batches, 1)
}

func TestRunOnceDoesNotAdvanceCursorOnHandoffFailure(t *testing.T) {
	source := &sourceStub{transfers: []explorer.Transfer{
		{TxHash: "tx-1", ToAddress: testAddr, AmountNano: 100, TimestampMs: 1_000},
	}}
	reconciler := &reconcilerStub{err: errors.New("db down")}
	p, _ := setupPoller(t, source, reconciler)
	ctx := context.Background()

	require.Error(t, p.RunOnce(ctx, testAddr))

	cursor, err := p.cursors.Get(ctx, testAddr)
	require.NoError(t, err)
	require.Zero(t, cursor)
}

func TestRunOnceFetchErrorPropagates(t *testing.T) {
	source := &sourceStub{err: errors.New("explorer unavailable")}
	reconciler := &reconcilerStub{}
	p, _ := setupPoller(t, source, reconciler)

	require.Error(t, p.RunOnce(context.Background(), testAddr))
	require.Empty(t, reconciler.batches)
}

func TestCursorNeverMovesBackwards(t *testing.T) {
	source := &sourceStub{}
	reconciler := &reconcilerStub{}
	p, _ := setupPoller(t, source, reconciler)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, p.cursors.Advance(ctx, testAddr, 5_000, now))
	require.NoError(t, p.cursors.Advance(ctx, testAddr, 3_000, now))

	cursor, err := p.cursors.Get(ctx, testAddr)
	require.NoError(t, err)
	require.Equal(t, int64(5_000), cursor)
}

func TestBackoffCapped(t *testing.T) {
	p, _ := setupPoller(t, &sourceStub{}, &reconcilerStub{})

	interval := 30 * time.Second
	require.Equal(t, interval, p.backoff(0))
	require.Equal(t, 2*interval, p.backoff(1))
	require.Equal(t, 4*interval, p.backoff(2))
	require.Equal(t, 16*interval, p.backoff(4))
	require.Equal(t, 16*interval, p.backoff(10))
}
