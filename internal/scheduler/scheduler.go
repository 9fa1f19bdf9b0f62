package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	campaigndomain "github.com/promocast/promocast/internal/campaign/domain"
	"github.com/promocast/promocast/internal/clock"
	"github.com/promocast/promocast/internal/notify"
	obsmetrics "github.com/promocast/promocast/internal/observability/metrics"
	orderdomain "github.com/promocast/promocast/internal/order/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrInvalidConfig = errors.New("scheduler: invalid configuration")

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	Clock       clock.Clock
	OrderSvc    orderdomain.Service
	OrderRepo   orderdomain.Repository
	CampaignSvc campaigndomain.Service
	Notifier    notify.Notifier
	ObsMetrics  *obsmetrics.Metrics `optional:"true"`
	Config      Config              `optional:"true"`
}

// Scheduler owns the periodic maintenance jobs: expiring stale orders and
// re-provisioning matched orders whose campaign creation previously failed.
type Scheduler struct {
	db          *gorm.DB
	log         *zap.Logger
	cfg         Config
	clock       clock.Clock
	orderSvc    orderdomain.Service
	orderRepo   orderdomain.Repository
	campaignSvc campaigndomain.Service
	notifier    notify.Notifier
	obsMetrics  *obsmetrics.Metrics
}

func New(p Params) (*Scheduler, error) {
	if p.DB == nil || p.Log == nil || p.Clock == nil || p.OrderSvc == nil || p.OrderRepo == nil || p.CampaignSvc == nil || p.Notifier == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		db:          p.DB,
		log:         p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:         p.Config.withDefaults(),
		clock:       p.Clock,
		orderSvc:    p.OrderSvc,
		orderRepo:   p.OrderRepo,
		campaignSvc: p.CampaignSvc,
		notifier:    p.Notifier,
		obsMetrics:  p.ObsMetrics,
	}, nil
}

func (s *Scheduler) runJob(parent context.Context, name string, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(parent, s.cfg.JobTimeout)
	defer cancel()

	if s.obsMetrics != nil {
		s.obsMetrics.JobRuns.WithLabelValues(name).Inc()
	}

	err := fn(ctx)
	if err == nil {
		return nil
	}
	if s.obsMetrics != nil {
		s.obsMetrics.JobErrors.WithLabelValues(name).Inc()
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		s.log.Warn("job timed out",
			zap.String("job", name),
			zap.Duration("timeout", s.cfg.JobTimeout),
			zap.Error(err),
		)
		return nil
	}
	return fmt.Errorf("%s: %w", name, err)
}

func (s *Scheduler) RunOnce(parent context.Context) error {
	var err error

	jobs := []struct {
		Name string
		Run  func(context.Context) error
	}{
		{"expire_orders", s.ExpireOrdersJob},
		{"provision_recovery", s.ProvisionRecoveryJob},
	}

	for _, job := range jobs {
		if !s.isJobEnabled(job.Name) {
			continue
		}
		err = errors.Join(err, s.runJob(parent, job.Name, job.Run))
	}

	return err
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) isJobEnabled(jobName string) bool {
	if len(s.cfg.EnabledJobs) == 0 {
		return true
	}
	for _, enabled := range s.cfg.EnabledJobs {
		if strings.EqualFold(enabled, jobName) {
			return true
		}
	}
	return false
}

// ExpireOrdersJob moves pending orders past their payment window to expired,
// batch by batch, until no work remains.
func (s *Scheduler) ExpireOrdersJob(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		expired, err := s.orderSvc.ExpireStale(ctx, s.cfg.BatchSize)
		if err != nil {
			return err
		}
		if expired > 0 {
			s.log.Info("expired stale orders", zap.Int64("count", expired))
		}
		if expired < int64(s.cfg.BatchSize) {
			return nil
		}
	}
}

// ProvisionRecoveryJob re-runs provisioning for matched orders with no
// campaign row. Provisioning is idempotent, so re-processing an order that
// gained a campaign between the scan and the call is harmless.
func (s *Scheduler) ProvisionRecoveryJob(ctx context.Context) error {
	var jobErr error

	orders, err := s.orderRepo.FindMatchedWithoutCampaign(ctx, s.db, s.cfg.BatchSize)
	if err != nil {
		return err
	}

	for i := range orders {
		if ctx.Err() != nil {
			return errors.Join(jobErr, ctx.Err())
		}
		order := &orders[i]
		campaign, created, err := s.campaignSvc.Provision(ctx, order)
		if err != nil {
			jobErr = errors.Join(jobErr, err)
			s.log.Error("provision recovery failed",
				zap.String("order_id", order.ID.String()),
				zap.Error(err),
			)
			continue
		}
		if !created {
			continue
		}
		s.log.Info("recovered unprovisioned order",
			zap.String("order_id", order.ID.String()),
			zap.String("campaign_id", campaign.ID.String()),
		)
		channels, err := order.Channels()
		if err != nil {
			jobErr = errors.Join(jobErr, err)
			continue
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

	return jobErr
}
