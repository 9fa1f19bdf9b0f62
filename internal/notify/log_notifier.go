package notify

import (
	"context"

	"go.uber.org/zap"
)

// LogNotifier records provisioning events to the structured log. It stands in
// for a messaging integration; delivery failure never propagates back into
// reconciliation.
type LogNotifier struct {
	log *zap.Logger
}

func NewLogNotifier(log *zap.Logger) *LogNotifier {
	return &LogNotifier{log: log.Named("notify")}
}

var _ Notifier = (*LogNotifier)(nil)

func (n *LogNotifier) CampaignProvisioned(_ context.Context, event ProvisioningEvent) {
	n.log.Info("campaign provisioned notification",
		zap.Int64("user_id", event.UserID),
		zap.String("order_id", event.OrderID.String()),
		zap.String("campaign_id", event.CampaignID.String()),
		zap.Int("channel_count", event.ChannelCount),
		zap.Int("posts_per_day", event.PostsPerDay),
		zap.Int("duration_days", event.DurationDays),
		zap.Int("total_posts", event.TotalPosts),
	)
}
