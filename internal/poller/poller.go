package poller

import (
	"context"
	"time"

	"github.com/promocast/promocast/internal/clock"
	"github.com/promocast/promocast/internal/config"
	"github.com/promocast/promocast/internal/explorer"
	obsmetrics "github.com/promocast/promocast/internal/observability/metrics"
	recdomain "github.com/promocast/promocast/internal/reconcile/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const maxBackoffMultiplier = 16

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	Clock      clock.Clock
	Cfg        config.Config
	Source     explorer.Source
	Reconciler recdomain.Service
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

// Poller watches one or more receiving addresses on the external ledger and
// hands new transfers to reconciliation. The cursor advances only after a
// cycle's batch was processed, and every fetch rewinds by a lookback window
// so briefly-delayed transfers are never skipped; the dedup insert downstream
// absorbs the resulting re-deliveries.
type Poller struct {
	log        *zap.Logger
	clock      clock.Clock
	cfg        config.Config
	source     explorer.Source
	reconciler recdomain.Service
	cursors    *CursorStore
	obsMetrics *obsmetrics.Metrics
}

func New(p Params) *Poller {
	return &Poller{
		log:        p.Log.Named("poller"),
		clock:      p.Clock,
		cfg:        p.Cfg,
		source:     p.Source,
		reconciler: p.Reconciler,
		cursors:    NewCursorStore(p.DB),
		obsMetrics: p.ObsMetrics,
	}
}

// RunForever polls a single address until ctx is cancelled. Fetch failures
// back off exponentially, capped at maxBackoffMultiplier times the configured
// interval, and reset on the next success.
func (p *Poller) RunForever(ctx context.Context, address string) {
	log := p.log.With(zap.String("address", address))
	log.Info("poller started", zap.Duration("interval", p.cfg.PollInterval))

	failures := 0
	for {
		if err := p.RunOnce(ctx, address); err != nil {
			if ctx.Err() != nil {
				return
			}
			failures++
			log.Warn("poll cycle failed",
				zap.Int("consecutive_failures", failures),
				zap.Error(err),
			)
			if p.obsMetrics != nil {
				p.obsMetrics.PollerErrors.WithLabelValues(address).Inc()
			}
		} else {
			failures = 0
		}

		select {
		case <-ctx.Done():
			log.Info("poller stopped")
			return
		case <-time.After(p.backoff(failures)):
		}
	}
}

// RunOnce performs one fetch-and-handoff cycle for an address.
func (p *Poller) RunOnce(ctx context.Context, address string) error {
	if p.obsMetrics != nil {
		p.obsMetrics.PollerCycles.WithLabelValues(address).Inc()
	}

	cursorMs, err := p.cursors.Get(ctx, address)
	if err != nil {
		return err
	}
	since := cursorMs - p.cfg.PollLookback.Milliseconds()
	if since < 0 {
		since = 0
	}

	transfers, err := p.source.FetchIncoming(ctx, address, since)
	if err != nil {
		return err
	}
	if len(transfers) == 0 {
		return nil
	}

	now := p.clock.Now()
	batch := make([]recdomain.ObservedTransaction, 0, len(transfers))
	maxTs := cursorMs
	for _, t := range transfers {
		batch = append(batch, recdomain.ObservedTransaction{
			TxHash:      t.TxHash,
			FromAddress: t.FromAddress,
			ToAddress:   t.ToAddress,
			AmountNano:  t.AmountNano,
			Memo:        t.Memo,
			ObservedAt:  now,
		})
		if t.TimestampMs > maxTs {
			maxTs = t.TimestampMs
		}
	}

	if err := p.reconciler.Process(ctx, batch); err != nil {
		return err
	}

	if maxTs > cursorMs {
		if err := p.cursors.Advance(ctx, address, maxTs, now); err != nil {
			return err
		}
	}
	return nil
}

func (p *Poller) backoff(failures int) time.Duration {
	interval := p.cfg.PollInterval
	if failures == 0 {
		return interval
	}
	multiplier := 1
	for i := 0; i < failures && multiplier < maxBackoffMultiplier; i++ {
		multiplier *= 2
	}
	return interval * time.Duration(multiplier)
}
