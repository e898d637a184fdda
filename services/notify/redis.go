package notifysvc

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/trezcool/tuitionbook/core"
	"github.com/trezcool/tuitionbook/core/tuition"
)

const channel = "tuitionbook:tuition-changes"

// RedisNotifier publishes changes on a redis channel, so that every API instance
// relays them to its own Hub.
type RedisNotifier struct {
	*Hub
	client *redis.Client
	logger core.Logger
}

var _ tuition.Notifier = (*RedisNotifier)(nil)

func NewRedisNotifier(client *redis.Client, logger core.Logger) *RedisNotifier {
	return &RedisNotifier{
		Hub:    NewHub(),
		client: client,
		logger: logger,
	}
}

func (n *RedisNotifier) Publish(ctx context.Context, chg tuition.Change) {
	data, err := json.Marshal(chg)
	if err != nil {
		n.logger.Error("encoding tuition change", err)
		return
	}
	if err = n.client.Publish(ctx, channel, data).Err(); err != nil {
		n.logger.Error("publishing tuition change", err)
		// deliver locally anyway
		n.Hub.dispatch(chg)
	}
}

// Run relays the changes published by any instance to the local Hub, until ctx is done.
func (n *RedisNotifier) Run(ctx context.Context) error {
	sub := n.client.Subscribe(ctx, channel)
	defer func() { _ = sub.Close() }()

	if _, err := sub.Receive(ctx); err != nil {
		return errors.Wrapf(err, "subscribing to %s", channel)
	}

	msgs := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			var chg tuition.Change
			if err := json.Unmarshal([]byte(msg.Payload), &chg); err != nil {
				n.logger.Warn("decoding tuition change", err)
				continue
			}
			n.Hub.dispatch(chg)
		}
	}
}
