package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/khaledhikmat/ws-go/model"
	"github.com/khaledhikmat/ws-go/service/lgr"
)

type redisService struct {
	client *redis.Client
}

// NewRedis connects to the Redis server at url (redis://host:port/db) and publishes on
// one channel per user so separate API processes see the same updates.
func NewRedis(url string) (IService, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	lgr.Logger.Info("redis stats pubsub connected", slog.String("addr", opts.Addr))

	return &redisService{client: client}, nil
}

func (svc *redisService) PublishStats(ctx context.Context, update model.StatsUpdate) error {
	payload, err := json.Marshal(update)
	if err != nil {
		return err
	}

	channel := channelName(update.User)
	result := svc.client.Publish(ctx, channel, payload)
	if err := result.Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}

	lgr.Logger.Debug("published stats update",
		slog.String("channel", channel),
		slog.Int64("subscribers", result.Val()),
	)
	return nil
}

func (svc *redisService) Subscribe(ctx context.Context, user model.UserIdentity) (<-chan model.StatsUpdate, error) {
	ps := svc.client.Subscribe(ctx, channelName(user))

	// Wait for the subscription confirmation so no publish after this call is missed.
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, fmt.Errorf("redis subscribe: %w", err)
	}

	out := make(chan model.StatsUpdate, subscriberBuffer)
	go func() {
		defer close(out)
		defer ps.Close()

		messages := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}

				var update model.StatsUpdate
				if err := json.Unmarshal([]byte(msg.Payload), &update); err != nil {
					lgr.Logger.Warn("dropping malformed stats update",
						slog.String("channel", msg.Channel),
						lgr.Err(err),
					)
					continue
				}

				select {
				case out <- update:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

func (svc *redisService) Close() error {
	return svc.client.Close()
}
