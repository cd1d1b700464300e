package repository

import (
	"context"

	"github.com/fastygo/taskcache/domain"
)

// TaskFilter narrows and orders a task listing.
type TaskFilter struct {
	Status string
	Sort   string
	Desc   bool
}

// TaskCache is the client-side durable copy of the task collection. It is
// read and replaced as a whole; Replace must be all-or-nothing.
type TaskCache interface {
	Load(ctx context.Context) ([]domain.Task, error)
	Replace(ctx context.Context, tasks []domain.Task) error
}
