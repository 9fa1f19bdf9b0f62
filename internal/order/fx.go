package order

import (
	"github.com/promocast/promocast/internal/order/domain"
	"github.com/promocast/promocast/internal/order/repository"
	orderservice "github.com/promocast/promocast/internal/order/service"
	"go.uber.org/fx"
)

var Module = fx.Module("order.service",
	fx.Provide(repository.Provide),
	fx.Provide(orderservice.NewService),
	fx.Provide(func(s *orderservice.Service) domain.Service { return s }),
)
