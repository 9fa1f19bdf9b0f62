package service

import (
	"context"
	"crypto/rand"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/promocast/promocast/internal/clock"
	"github.com/promocast/promocast/internal/config"
	obsmetrics "github.com/promocast/promocast/internal/observability/metrics"
	"github.com/promocast/promocast/internal/order/domain"
	"github.com/promocast/promocast/internal/pricing"
	pkgdb "github.com/promocast/promocast/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// codeRetries bounds reference-code collision retries. The code space is
// 26*26*10000; exhausting the retries means something is badly wrong.
const codeRetries = 5

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Cfg        config.Config
	Repo       domain.Repository
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	cfg        config.Config
	engine     pricing.Engine
	repo       domain.Repository
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) *Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("order.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		cfg:        p.Cfg,
		engine:     pricing.NewEngine(p.Cfg.BaseRateNano, p.Cfg.MaxDiscountBps),
		repo:       p.Repo,
		obsMetrics: p.ObsMetrics,
	}
}

var _ domain.Service = (*Service)(nil)

func (s *Service) CreateOrder(ctx context.Context, req domain.CreateOrderRequest) (*domain.Order, error) {
	if req.UserID == 0 {
		return nil, domain.ErrInvalidUser
	}
	channels := dedupeChannels(req.ChannelIDs)
	if len(channels) == 0 {
		return nil, domain.ErrEmptyChannels
	}

	quote, err := s.engine.ComputePricing(req.DurationDays, len(channels))
	if err != nil {
		return nil, err
	}

	encoded, err := domain.EncodeChannels(channels)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	order := &domain.Order{
		UserID:             req.UserID,
		ClaimedPayerAddr:   req.PayerAddress,
		DurationDays:       req.DurationDays,
		ChannelIDs:         encoded,
		PostsPerDay:        quote.PostsPerDay,
		DiscountBps:        quote.DiscountBps,
		ExpectedAmountNano: quote.FinalAmountNano,
		Status:             domain.OrderStatusPending,
		CreatedAt:          now,
		ExpiresAt:          now.Add(s.cfg.OrderTTL),
	}

	// A partial unique index on (reference_code) WHERE status='pending'
	// enforces uniqueness among active orders; collisions surface as
	// duplicate-key errors and we retry with a fresh code.
	for attempt := 0; attempt < codeRetries; attempt++ {
		order.ID = s.genID.Generate()
		code, err := generateReferenceCode()
		if err != nil {
			return nil, err
		}
		order.ReferenceCode = code

		insertErr := s.repo.Insert(ctx, s.db, order)
		if insertErr == nil {
			if s.obsMetrics != nil {
				s.obsMetrics.OrdersCreated.Inc()
			}
			s.log.Info("order created",
				zap.String("order_id", order.ID.String()),
				zap.String("reference_code", order.ReferenceCode),
				zap.Int("duration_days", order.DurationDays),
				zap.Int64("expected_amount_nano", order.ExpectedAmountNano),
			)
			return order, nil
		}
		if !pkgdb.IsDuplicateKeyErr(insertErr) {
			return nil, insertErr
		}
		s.log.Warn("reference code collision, retrying",
			zap.String("reference_code", order.ReferenceCode),
			zap.Int("attempt", attempt+1),
		)
	}

	return nil, domain.ErrCodeSpaceExhausted
}

func (s *Service) GetByCode(ctx context.Context, code string) (*domain.Order, error) {
	order, err := s.repo.FindLatestByCode(ctx, s.db, code)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, domain.ErrOrderNotFound
	}
	return order, nil
}

func (s *Service) Cancel(ctx context.Context, id snowflake.ID) (*domain.Order, error) {
	cancelled, err := s.repo.Cancel(ctx, s.db, id, s.clock.Now())
	if err != nil {
		return nil, err
	}
	if !cancelled {
		order, err := s.repo.FindByID(ctx, s.db, id)
		if err != nil {
			return nil, err
		}
		if order == nil {
			return nil, domain.ErrOrderNotFound
		}
		return nil, domain.ErrNotPending
	}
	return s.repo.FindByID(ctx, s.db, id)
}

func (s *Service) ExpireStale(ctx context.Context, limit int) (int64, error) {
	expired, err := s.repo.ExpireStale(ctx, s.db, s.clock.Now(), limit)
	if err != nil {
		return 0, err
	}
	if expired > 0 {
		if s.obsMetrics != nil {
			s.obsMetrics.OrdersExpired.Add(float64(expired))
		}
		s.log.Info("expired stale orders", zap.Int64("count", expired))
	}
	return expired, nil
}

const (
	codeLetters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	codeDigits  = "0123456789"
)

// generateReferenceCode produces a 2-letter 4-digit code such as "KQ4821".
func generateReferenceCode() (string, error) {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate reference code: %w", err)
	}
	code := make([]byte, 6)
	for i := 0; i < 2; i++ {
		code[i] = codeLetters[int(buf[i])%len(codeLetters)]
	}
	for i := 2; i < 6; i++ {
		code[i] = codeDigits[int(buf[i])%len(codeDigits)]
	}
	return string(code), nil
}

func dedupeChannels(channels []int64) []int64 {
	seen := make(map[int64]struct{}, len(channels))
	out := make([]int64, 0, len(channels))
	for _, ch := range channels {
		if ch == 0 {
			continue
		}
		if _, ok := seen[ch]; ok {
			continue
		}
		seen[ch] = struct{}{}
		out = append(out, ch)
	}
	return out
}
