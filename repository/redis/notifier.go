package redis

import (
	"context"
	"encoding/json"
	"fmt"

	redislib "github.com/redis/go-redis/v9"

	"github.com/fastygo/taskcache/domain"
	"github.com/fastygo/taskcache/usecase"
)

// Notifier publishes notifications on a Redis channel for an external mailer.
type Notifier struct {
	client  *redislib.Client
	channel string
}

var _ usecase.Notifier = (*Notifier)(nil)

func NewNotifier(client *redislib.Client, channel string) *Notifier {
	return &Notifier{client: client, channel: channel}
}

func (n *Notifier) Notify(ctx context.Context, msg domain.Notification) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	receivers, err := n.client.Publish(ctx, n.channel, payload).Result()
	if err != nil {
		return fmt.Errorf("publish %s: %w", n.channel, err)
	}
	if receivers == 0 {
		return fmt.Errorf("publish %s: no subscribers", n.channel)
	}
	return nil
}
