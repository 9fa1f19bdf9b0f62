package audit

import (
	"github.com/promocast/promocast/internal/audit/domain"
	"github.com/promocast/promocast/internal/audit/repository"
	auditservice "github.com/promocast/promocast/internal/audit/service"
	"go.uber.org/fx"
)

var Module = fx.Module("audit.service",
	fx.Provide(repository.Provide),
	fx.Provide(auditservice.NewService),
	fx.Provide(func(s *auditservice.Service) domain.Service { return s }),
)
