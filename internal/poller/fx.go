package poller

import (
	"context"

	"github.com/promocast/promocast/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("poller",
	fx.Provide(New),
	fx.Invoke(StartPollers),
)

// StartPollers launches one polling loop per configured receiving address.
func StartPollers(lc fx.Lifecycle, cfg config.Config, log *zap.Logger, p *Poller) {
	if len(cfg.ReceivingAddresses) == 0 {
		log.Warn("no receiving addresses configured, pollers disabled")
		return
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			ctx, cancel := context.WithCancel(context.Background())

			for _, address := range cfg.ReceivingAddresses {
				go p.RunForever(ctx, address)
			}

			lc.Append(fx.Hook{
				OnStop: func(context.Context) error {
					cancel()
					return nil
				},
			})

			return nil
		},
	})
}
