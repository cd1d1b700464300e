package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	redislib "github.com/redis/go-redis/v9"

	"github.com/fastygo/taskcache/domain"
	"github.com/fastygo/taskcache/repository"
)

type userCache struct {
	client *redislib.Client
	key    string
	ttl    time.Duration
}

// NewUserCache stores the last remote user list in Redis so several daemons
// on one host share it.
func NewUserCache(client *redislib.Client, prefix string, ttl time.Duration) repository.UserCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	if prefix == "" {
		prefix = "taskcache:"
	}
	return &userCache{
		client: client,
		key:    prefix + "users",
		ttl:    ttl,
	}
}

func (c *userCache) GetUsers(ctx context.Context) ([]domain.User, bool, error) {
	result, err := c.client.Get(ctx, c.key).Bytes()
	if err != nil {
		if errors.Is(err, redislib.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}

	var users []domain.User
	if err := json.Unmarshal(result, &users); err != nil {
		return nil, false, err
	}
	return users, true, nil
}

func (c *userCache) SetUsers(ctx context.Context, users []domain.User) error {
	if users == nil {
		users = []domain.User{}
	}
	payload, err := json.Marshal(users)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key, payload, c.ttl).Err()
}
