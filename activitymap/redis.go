package activitymap

import (
	"context"
	"encoding/json"

	goerrors "github.com/goliatone/go-errors"
	"github.com/redis/go-redis/v9"
)

const (
	DefaultRedisChannel   = "session:activity"
	TextCodePublishFailed = "SESSION_ACTIVITY_PUBLISH_FAILED"
)

// RedisPublisher publishes normalized records as JSON on a Redis channel.
func RedisPublisher(client redis.UniversalClient, channel string) Publisher {
	if channel == "" {
		channel = DefaultRedisChannel
	}
	return func(ctx context.Context, record Normalized) error {
		payload, err := json.Marshal(record)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "activitymap: encode record").
				WithTextCode(TextCodePublishFailed)
		}
		if err := client.Publish(ctx, channel, payload).Err(); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryOperation, "activitymap: publish record").
				WithTextCode(TextCodePublishFailed).
				WithMetadata(map[string]any{"channel": channel})
		}
		return nil
	}
}
