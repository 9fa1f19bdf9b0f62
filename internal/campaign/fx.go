package campaign

import (
	"github.com/promocast/promocast/internal/campaign/domain"
	"github.com/promocast/promocast/internal/campaign/repository"
	campaignservice "github.com/promocast/promocast/internal/campaign/service"
	"go.uber.org/fx"
)

var Module = fx.Module("campaign.service",
	fx.Provide(repository.Provide),
	fx.Provide(campaignservice.NewService),
	fx.Provide(func(s *campaignservice.Service) domain.Service { return s }),
)
