package directory

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/fastygo/taskcache/domain"
	"github.com/fastygo/taskcache/repository"
	"github.com/fastygo/taskcache/usecase"
)

// Source tells where a user list came from.
type Source string

const (
	SourceRemote   Source = "remote"
	SourceCache    Source = "cache"
	SourceFallback Source = "fallback"
)

type UserLister interface {
	ListUsers(ctx context.Context) ([]domain.User, error)
}

// Service resolves assignees. It never fails: when the remote store cannot
// answer it serves the last cached list, then a fixed fallback set.
type Service struct {
	remote UserLister
	cache  repository.UserCache
	logger *zap.Logger
	group  singleflight.Group
}

func New(remote UserLister, cache repository.UserCache, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{remote: remote, cache: cache, logger: logger}
}

// ListUsers returns the current user list and where it came from.
func (s *Service) ListUsers(ctx context.Context) ([]domain.User, Source) {
	v, err, _ := s.group.Do("users", func() (interface{}, error) {
		return s.remote.ListUsers(ctx)
	})
	if err == nil {
		users, _ := v.([]domain.User)
		if s.cache != nil {
			if err := s.cache.SetUsers(ctx, users); err != nil {
				s.logger.Warn("failed to cache users", zap.Error(err))
			}
		}
		return users, SourceRemote
	}
	s.logger.Warn("remote user list unavailable", zap.Error(err))

	if s.cache != nil {
		users, ok, cerr := s.cache.GetUsers(ctx)
		if cerr != nil {
			s.logger.Warn("user cache read failed", zap.Error(cerr))
		}
		if ok {
			return users, SourceCache
		}
	}
	return domain.FallbackUsers(), SourceFallback
}

// Resolve finds a user by id. A dangling reference yields nil, nil.
func (s *Service) Resolve(ctx context.Context, id string) (*domain.User, error) {
	users, _ := s.ListUsers(ctx)
	for i := range users {
		if users[i].ID == id {
			u := users[i]
			return &u, nil
		}
	}
	return nil, nil
}

var _ usecase.UserResolver = (*Service)(nil)
