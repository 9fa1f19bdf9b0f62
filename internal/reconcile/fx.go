package reconcile

import (
	"github.com/promocast/promocast/internal/reconcile/domain"
	"github.com/promocast/promocast/internal/reconcile/repository"
	reconcileservice "github.com/promocast/promocast/internal/reconcile/service"
	"go.uber.org/fx"
)

var Module = fx.Module("reconcile.service",
	fx.Provide(repository.Provide),
	fx.Provide(reconcileservice.NewService),
	fx.Provide(func(s *reconcileservice.Service) domain.Service { return s }),
)
