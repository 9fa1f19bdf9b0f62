package explorer

import (
	"github.com/promocast/promocast/internal/config"
	"go.uber.org/fx"
)

var Module = fx.Module("explorer",
	fx.Provide(func(cfg config.Config) *Client {
		return NewClient(cfg.ExplorerBaseURL, cfg.ExplorerAPIKey, cfg.ExplorerPageLimit)
	}),
	fx.Provide(func(c *Client) Source { return c }),
)
