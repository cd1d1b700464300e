package repository

import (
	"context"

	"github.com/fastygo/taskcache/domain"
)

// RemoteGateway is the authoritative task store. Every call may fail or time
// out; callers treat both the same way.
type RemoteGateway interface {
	List(ctx context.Context) ([]domain.Task, error)
	Create(ctx context.Context, draft domain.TaskDraft) (*domain.Task, error)
	Update(ctx context.Context, id string, patch domain.TaskPatch) (*domain.Task, error)
	Delete(ctx context.Context, id string) error
	ListUsers(ctx context.Context) ([]domain.User, error)
	Ping(ctx context.Context) error
}
