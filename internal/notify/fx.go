package notify

import "go.uber.org/fx"

var Module = fx.Module("notify",
	fx.Provide(NewLogNotifier),
	fx.Provide(func(n *LogNotifier) Notifier { return n }),
)
