package pubsub

import (
	"context"

	"github.com/khaledhikmat/ws-go/model"
)

// IService fans StatsUpdate messages out to per-user subscribers. Delivery is best-effort.
type IService interface {
	PublishStats(ctx context.Context, update model.StatsUpdate) error
	// Subscribe delivers updates for user until ctx ends, then closes the channel.
	Subscribe(ctx context.Context, user model.UserIdentity) (<-chan model.StatsUpdate, error)
	Close() error
}

const subscriberBuffer = 16

func channelName(user model.UserIdentity) string {
	if user.Anonymous() {
		return "stats:anonymous"
	}
	return "stats:" + string(user)
}
