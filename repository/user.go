package repository

import (
	"context"

	"github.com/fastygo/taskcache/domain"
)

// UserCache keeps the last user list the remote store returned.
type UserCache interface {
	GetUsers(ctx context.Context) ([]domain.User, bool, error)
	SetUsers(ctx context.Context, users []domain.User) error
}
