package service

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/promocast/promocast/internal/campaign/domain"
	"github.com/promocast/promocast/internal/clock"
	"github.com/promocast/promocast/internal/config"
	"github.com/promocast/promocast/internal/notify"
	obsmetrics "github.com/promocast/promocast/internal/observability/metrics"
	orderdomain "github.com/promocast/promocast/internal/order/domain"
	recdomain "github.com/promocast/promocast/internal/reconcile/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// referenceCodePattern is the shape of codes embedded in transfer memos: two
// uppercase letters followed by four digits.
var referenceCodePattern = regexp.MustCompile(`^[A-Z]{2}[0-9]{4}$`)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	Clock      clock.Clock
	Cfg        config.Config
	Repo       recdomain.Repository
	OrderRepo  orderdomain.Repository
	Campaigns  domain.Service
	Notifier   notify.Notifier
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

// Service matches observed ledger transfers against pending orders. Each
// transfer is settled exactly once: the order flip and the processed flag
// commit in a single transaction, and provisioning runs only after that
// commit.
type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	clock      clock.Clock
	cfg        config.Config
	repo       recdomain.Repository
	orderRepo  orderdomain.Repository
	campaigns  domain.Service
	notifier   notify.Notifier
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) *Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("reconcile.service"),
		clock:      p.Clock,
		cfg:        p.Cfg,
		repo:       p.Repo,
		orderRepo:  p.OrderRepo,
		campaigns:  p.Campaigns,
		notifier:   p.Notifier,
		obsMetrics: p.ObsMetrics,
	}
}

var _ recdomain.Service = (*Service)(nil)

func (s *Service) Process(ctx context.Context, batch []recdomain.ObservedTransaction) error {
	for i := range batch {
		if err := s.processOne(ctx, &batch[i]); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) processOne(ctx context.Context, tx *recdomain.ObservedTransaction) error {
	if tx.ObservedAt.IsZero() {
		tx.ObservedAt = s.clock.Now()
	}

	inserted, err := s.repo.Insert(ctx, s.db, tx)
	if err != nil {
		return err
	}
	if !inserted {
		// Duplicate delivery. Re-process only if the earlier attempt died
		// between insert and settle.
		existing, err := s.repo.Find(ctx, s.db, tx.TxHash)
		if err != nil {
			return err
		}
		if existing == nil || existing.Processed {
			return nil
		}
	}
	if s.obsMetrics != nil {
		s.obsMetrics.TransactionsObserved.Inc()
	}

	return s.settle(ctx, tx)
}

func (s *Service) settle(ctx context.Context, tx *recdomain.ObservedTransaction) error {
	code := NormalizeMemo(tx.Memo)
	if code == "" {
		return s.record(ctx, tx, recdomain.OutcomeUntracked)
	}

	order, err := s.orderRepo.FindPendingByCode(ctx, s.db, code)
	if err != nil {
		return err
	}
	if order == nil {
		// No pending order for this code. Distinguish a stale payment for a
		// known code from noise with an unknown one.
		latest, err := s.orderRepo.FindLatestByCode(ctx, s.db, code)
		if err != nil {
			return err
		}
		if latest != nil {
			return s.record(ctx, tx, recdomain.OutcomeLate)
		}
		return s.record(ctx, tx, recdomain.OutcomeUntracked)
	}

	if !AmountWithinTolerance(tx.AmountNano, order.ExpectedAmountNano, s.cfg.AmountToleranceBps) {
		s.log.Warn("transfer amount below tolerance",
			zap.String("tx_hash", tx.TxHash),
			zap.String("reference_code", code),
			zap.Int64("amount_nano", tx.AmountNano),
			zap.Int64("expected_nano", order.ExpectedAmountNano),
		)
		return s.record(ctx, tx, recdomain.OutcomeUntracked)
	}

	now := s.clock.Now()
	matched := false
	err = s.db.WithContext(ctx).Transaction(func(dbtx *gorm.DB) error {
		won, err := s.orderRepo.TryMatch(ctx, dbtx, order.ID, tx.TxHash, now)
		if err != nil {
			return err
		}
		outcome := recdomain.OutcomeLate
		if won {
			outcome = recdomain.OutcomeMatched
		}
		flipped, err := s.repo.MarkProcessed(ctx, dbtx, tx.TxHash, outcome, now)
		if err != nil {
			return err
		}
		if !flipped {
			// Another worker settled this hash concurrently; abort so the
			// order flip rolls back with it.
			return recdomain.ErrAlreadyProcessed
		}
		matched = won
		return nil
	})
	if errors.Is(err, recdomain.ErrAlreadyProcessed) {
		return nil
	}
	if err != nil {
		return err
	}

	if s.obsMetrics != nil {
		outcome := recdomain.OutcomeLate
		if matched {
			outcome = recdomain.OutcomeMatched
		}
		s.obsMetrics.MatchOutcomes.WithLabelValues(string(outcome)).Inc()
	}
	if !matched {
		s.log.Info("transfer arrived after order left pending",
			zap.String("tx_hash", tx.TxHash),
			zap.String("reference_code", code),
		)
		return nil
	}

	order.Status = orderdomain.OrderStatusMatched
	order.MatchedTxHash = &tx.TxHash
	order.MatchedAt = &now
	s.log.Info("order matched",
		zap.String("order_id", order.ID.String()),
		zap.String("tx_hash", tx.TxHash),
		zap.String("reference_code", code),
	)
	return s.provision(ctx, order)
}

// provision runs outside the settle transaction. A failure here leaves a
// matched order without a campaign; the recovery sweep picks it up.
func (s *Service) provision(ctx context.Context, order *orderdomain.Order) error {
	campaign, created, err := s.campaigns.Provision(ctx, order)
	if err != nil {
		s.log.Error("provisioning failed, leaving order for recovery sweep",
			zap.String("order_id", order.ID.String()),
			zap.Error(err),
		)
		return nil
	}
	if !created {
		return nil
	}

	channels, err := order.Channels()
	if err != nil {
		return err
	}
	s.notifier.CampaignProvisioned(ctx, notify.ProvisioningEvent{
		UserID:       order.UserID,
		OrderID:      order.ID,
		CampaignID:   campaign.ID,
		ChannelCount: len(channels),
		PostsPerDay:  order.PostsPerDay,
		DurationDays: order.DurationDays,
		TotalPosts:   order.DurationDays * order.PostsPerDay * len(channels),
	})
	return nil
}

func (s *Service) record(ctx context.Context, tx *recdomain.ObservedTransaction, outcome recdomain.Outcome) error {
	flipped, err := s.repo.MarkProcessed(ctx, s.db, tx.TxHash, outcome, s.clock.Now())
	if err != nil {
		return err
	}
	if flipped && s.obsMetrics != nil {
		s.obsMetrics.MatchOutcomes.WithLabelValues(string(outcome)).Inc()
	}
	return nil
}

// NormalizeMemo extracts a candidate reference code from a raw transfer memo.
// Returns "" when the memo does not carry a well-formed code.
func NormalizeMemo(memo string) string {
	code := strings.ToUpper(strings.TrimSpace(memo))
	if !referenceCodePattern.MatchString(code) {
		return ""
	}
	return code
}

// AmountWithinTolerance reports whether a received amount covers the expected
// amount less the configured underpayment allowance, in basis points.
func AmountWithinTolerance(amountNano, expectedNano int64, toleranceBps int64) bool {
	if amountNano >= expectedNano {
		return true
	}
	return amountNano*10_000 >= expectedNano*(10_000-toleranceBps)
}
