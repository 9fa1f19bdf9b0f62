package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/promocast/promocast/internal/campaign/domain"
	"github.com/promocast/promocast/internal/clock"
	obsmetrics "github.com/promocast/promocast/internal/observability/metrics"
	orderdomain "github.com/promocast/promocast/internal/order/domain"
	"github.com/promocast/promocast/internal/pricing"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Repo       domain.Repository
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	repo       domain.Repository
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) *Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("campaign.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		repo:       p.Repo,
		obsMetrics: p.ObsMetrics,
	}
}

var _ domain.Service = (*Service)(nil)

// Provision deterministically expands a matched order into one campaign and
// duration x posts_per_day x channels scheduled posts. Safe to retry: an
// existing campaign is returned unchanged, and the campaign row plus all its
// posts are written in a single transaction.
func (s *Service) Provision(ctx context.Context, order *orderdomain.Order) (*domain.Campaign, bool, error) {
	if order == nil || order.Status != orderdomain.OrderStatusMatched || order.MatchedAt == nil {
		return nil, false, domain.ErrOrderNotMatched
	}

	existing, err := s.repo.FindByOrderID(ctx, s.db, order.ID)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}

	channels, err := order.Channels()
	if err != nil {
		return nil, false, fmt.Errorf("decode channels: %w", err)
	}

	campaign := &domain.Campaign{
		ID:        s.genID.Generate(),
		OrderID:   order.ID,
		CreatedAt: s.clock.Now(),
	}
	posts := s.buildPosts(campaign, order, channels)

	created := false
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inserted, err := s.repo.InsertCampaign(ctx, tx, campaign)
		if err != nil {
			return err
		}
		if !inserted {
			return nil
		}
		created = true
		return s.repo.InsertPosts(ctx, tx, posts)
	})
	if err != nil {
		return nil, false, err
	}

	if !created {
		// A concurrent provisioner won; return its campaign.
		winner, err := s.repo.FindByOrderID(ctx, s.db, order.ID)
		if err != nil {
			return nil, false, err
		}
		if winner == nil {
			return nil, false, domain.ErrCampaignNotFound
		}
		return winner, false, nil
	}

	if s.obsMetrics != nil {
		s.obsMetrics.CampaignsProvisioned.Inc()
	}
	s.log.Info("campaign provisioned",
		zap.String("campaign_id", campaign.ID.String()),
		zap.String("order_id", order.ID.String()),
		zap.Int("total_posts", len(posts)),
	)
	return campaign, true, nil
}

func (s *Service) buildPosts(campaign *domain.Campaign, order *orderdomain.Order, channels []int64) []domain.ScheduledPost {
	slots := pricing.SlotTimes(order.PostsPerDay)
	start := order.MatchedAt.UTC()
	now := s.clock.Now()

	posts := make([]domain.ScheduledPost, 0, order.DurationDays*len(slots)*len(channels))
	for day := 0; day < order.DurationDays; day++ {
		for slotIdx, slot := range slots {
			for _, channel := range channels {
				posts = append(posts, domain.ScheduledPost{
					ID:         s.genID.Generate(),
					CampaignID: campaign.ID,
					ChannelID:  channel,
					DayIndex:   day,
					SlotIndex:  slotIdx,
					SlotTime:   formatSlot(slot),
					PublishAt:  start.Add(time.Duration(day)*24*time.Hour + slot),
					Status:     domain.PostStatusScheduled,
					CreatedAt:  now,
				})
			}
		}
	}
	return posts
}

func (s *Service) GetByOrderID(ctx context.Context, orderID snowflake.ID) (*domain.Campaign, error) {
	campaign, err := s.repo.FindByOrderID(ctx, s.db, orderID)
	if err != nil {
		return nil, err
	}
	if campaign == nil {
		return nil, domain.ErrCampaignNotFound
	}
	return campaign, nil
}

func (s *Service) ListPosts(ctx context.Context, campaignID snowflake.ID) ([]domain.ScheduledPost, error) {
	return s.repo.ListPosts(ctx, s.db, campaignID)
}

// UpdatePostStatus is the entry point for the external publishing
// collaborator reporting delivery results.
func (s *Service) UpdatePostStatus(ctx context.Context, postID snowflake.ID, status domain.PostStatus) error {
	if status != domain.PostStatusPublished && status != domain.PostStatusFailed {
		return domain.ErrInvalidStatus
	}
	updated, err := s.repo.UpdatePostStatus(ctx, s.db, postID, status, s.clock.Now())
	if err != nil {
		return err
	}
	if !updated {
		return domain.ErrPostNotFound
	}
	return nil
}

func formatSlot(d time.Duration) string {
	h := int(d / time.Hour)
	m := int(d % time.Hour / time.Minute)
	return fmt.Sprintf("%02d:%02d", h, m)
}
