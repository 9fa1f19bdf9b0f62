package notify

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

// ProvisioningEvent describes a freshly provisioned campaign for delivery to
// the buyer. Emitted at most once per campaign, after the provisioning
// transaction commits.
type ProvisioningEvent struct {
	UserID       int64
	OrderID      snowflake.ID
	CampaignID   snowflake.ID
	ChannelCount int
	PostsPerDay  int
	DurationDays int
	TotalPosts   int
}

// Notifier is the outbound boundary toward the buyer. Implementations must
// tolerate being called from background workers and must not block the
// reconciliation path on slow delivery.
type Notifier interface {
	CampaignProvisioned(ctx context.Context, event ProvisioningEvent)
}
