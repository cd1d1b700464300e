// Package memory holds in-process cache adapters.
package memory

import (
	"context"
	"time"

	"github.com/dgraph-io/ristretto/v2"

	"github.com/fastygo/taskcache/domain"
	"github.com/fastygo/taskcache/repository"
)

const usersKey = "users"

// UserCache keeps the user list in a ristretto cache with a TTL.
type UserCache struct {
	c   *ristretto.Cache[string, []domain.User]
	ttl time.Duration
}

var _ repository.UserCache = (*UserCache)(nil)

func NewUserCache(ttl time.Duration) (*UserCache, error) {
	c, err := ristretto.NewCache(&ristretto.Config[string, []domain.User]{
		NumCounters: 100,
		MaxCost:     10,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &UserCache{c: c, ttl: ttl}, nil
}

func (u *UserCache) GetUsers(_ context.Context) ([]domain.User, bool, error) {
	users, found := u.c.Get(usersKey)
	if !found {
		return nil, false, nil
	}
	return append([]domain.User(nil), users...), true, nil
}

// SetUsers blocks until the value is visible to readers.
func (u *UserCache) SetUsers(_ context.Context, users []domain.User) error {
	u.c.SetWithTTL(usersKey, append([]domain.User(nil), users...), 1, u.ttl)
	u.c.Wait()
	return nil
}

func (u *UserCache) Close() {
	u.c.Close()
}
