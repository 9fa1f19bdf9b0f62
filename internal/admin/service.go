package admin

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/promocast/promocast/internal/audit/domain"
	campaigndomain "github.com/promocast/promocast/internal/campaign/domain"
	"github.com/promocast/promocast/internal/clock"
	"github.com/promocast/promocast/internal/notify"
	orderdomain "github.com/promocast/promocast/internal/order/domain"
	recdomain "github.com/promocast/promocast/internal/reconcile/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrOrderNotMatchable = errors.New("order_not_matchable")
	ErrTxNotReclassified = errors.New("transaction_not_reclassified")
)

type Params struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	Clock         clock.Clock
	OrderRepo     orderdomain.Repository
	ReconcileRepo recdomain.Repository
	CampaignSvc   campaigndomain.Service
	AuditSvc      auditdomain.Service
	Notifier      notify.Notifier
}

// Service exposes operator overrides for cases the automatic matcher cannot
// settle: transfers with mangled memos, disputed amounts, or provisioning
// that needs a manual nudge. Every override is audited.
type Service struct {
	db            *gorm.DB
	log           *zap.Logger
	clock         clock.Clock
	orderRepo     orderdomain.Repository
	reconcileRepo recdomain.Repository
	campaignSvc   campaigndomain.Service
	auditSvc      auditdomain.Service
	notifier      notify.Notifier
}

func NewService(p Params) *Service {
	return &Service{
		db:            p.DB,
		log:           p.Log.Named("admin.service"),
		clock:         p.Clock,
		orderRepo:     p.OrderRepo,
		reconcileRepo: p.ReconcileRepo,
		campaignSvc:   p.CampaignSvc,
		auditSvc:      p.AuditSvc,
		notifier:      p.Notifier,
	}
}

// ForceMatch settles an order against a transaction the matcher could not
// pair automatically. The order flip and the transaction outcome commit
// together, then provisioning runs as usual.
func (s *Service) ForceMatch(ctx context.Context, operator string, orderID snowflake.ID, txHash string) (*orderdomain.Order, error) {
	order, err := s.orderRepo.FindByID(ctx, s.db, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, orderdomain.ErrOrderNotFound
	}

	tx, err := s.reconcileRepo.Find(ctx, s.db, txHash)
	if err != nil {
		return nil, err
	}
	if tx == nil {
		return nil, recdomain.ErrTransactionNotFound
	}
	if tx.Processed && tx.Outcome != nil && *tx.Outcome == recdomain.OutcomeMatched {
		return nil, recdomain.ErrAlreadyProcessed
	}

	now := s.clock.Now()
	err = s.db.WithContext(ctx).Transaction(func(dbtx *gorm.DB) error {
		won, err := s.orderRepo.TryMatch(ctx, dbtx, order.ID, txHash, now)
		if err != nil {
			return err
		}
		if !won {
			return ErrOrderNotMatchable
		}
		if tx.Processed {
			flipped, err := s.reconcileRepo.Reclassify(ctx, dbtx, txHash, recdomain.OutcomeMatched)
			if err != nil {
				return err
			}
			if !flipped {
				return ErrTxNotReclassified
			}
			return nil
		}
		flipped, err := s.reconcileRepo.MarkProcessed(ctx, dbtx, txHash, recdomain.OutcomeMatched, now)
		if err != nil {
			return err
		}
		if !flipped {
			return recdomain.ErrAlreadyProcessed
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	order.Status = orderdomain.OrderStatusMatched
	order.MatchedTxHash = &txHash
	order.MatchedAt = &now

	_ = s.auditSvc.Record(ctx, auditdomain.ActorTypeOperator, operator, "order.force_match", "order", order.ID.String(), map[string]any{
		"tx_hash": txHash,
	})
	s.log.Info("order force-matched",
		zap.String("order_id", order.ID.String()),
		zap.String("tx_hash", txHash),
		zap.String("operator", operator),
	)

	if err := s.provision(ctx, order); err != nil {
		return nil, err
	}
	return order, nil
}

// Reclassify rewrites the outcome of a processed, unmatched transaction.
// Matched outcomes are immutable; unsettling an order requires a separate
// manual correction.
func (s *Service) Reclassify(ctx context.Context, operator string, txHash string, outcome recdomain.Outcome) error {
	if outcome != recdomain.OutcomeUntracked && outcome != recdomain.OutcomeLate {
		return recdomain.ErrInvalidOutcome
	}

	tx, err := s.reconcileRepo.Find(ctx, s.db, txHash)
	if err != nil {
		return err
	}
	if tx == nil {
		return recdomain.ErrTransactionNotFound
	}

	flipped, err := s.reconcileRepo.Reclassify(ctx, s.db, txHash, outcome)
	if err != nil {
		return err
	}
	if !flipped {
		return ErrTxNotReclassified
	}

	_ = s.auditSvc.Record(ctx, auditdomain.ActorTypeOperator, operator, "transaction.reclassify", "transaction", txHash, map[string]any{
		"outcome": string(outcome),
	})
	return nil
}

// Reprovision re-runs campaign provisioning for a matched order. Safe when
// the campaign already exists; the existing campaign is returned untouched.
func (s *Service) Reprovision(ctx context.Context, operator string, orderID snowflake.ID) (*campaigndomain.Campaign, error) {
	order, err := s.orderRepo.FindByID(ctx, s.db, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, orderdomain.ErrOrderNotFound
	}

	campaign, created, err := s.campaignSvc.Provision(ctx, order)
	if err != nil {
		return nil, err
	}

	_ = s.auditSvc.Record(ctx, auditdomain.ActorTypeOperator, operator, "campaign.reprovision", "order", order.ID.String(), map[string]any{
		"campaign_id": campaign.ID.String(),
		"created":     created,
	})
	if created {
		s.notify(ctx, order, campaign)
	}
	return campaign, nil
}

func (s *Service) provision(ctx context.Context, order *orderdomain.Order) error {
	campaign, created, err := s.campaignSvc.Provision(ctx, order)
	if err != nil {
		return err
	}
	if created {
		s.notify(ctx, order, campaign)
	}
	return nil
}

func (s *Service) notify(ctx context.Context, order *orderdomain.Order, campaign *campaigndomain.Campaign) {
	channels, err := order.Channels()
	if err != nil {
		return
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
}
