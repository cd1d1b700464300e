package usecase

import (
	"context"

	"github.com/fastygo/taskcache/domain"
)

// Notifier delivers best-effort side-channel messages.
type Notifier interface {
	Notify(ctx context.Context, n domain.Notification) error
}

// UserResolver looks up a user by id; a nil user with a nil error means the
// reference dangles.
type UserResolver interface {
	Resolve(ctx context.Context, id string) (*domain.User, error)
}
