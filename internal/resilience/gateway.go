package resilience

import (
	"context"

	"github.com/fastygo/taskcache/domain"
	"github.com/fastygo/taskcache/repository"
)

type guardedGateway struct {
	next    repository.RemoteGateway
	breaker *Breaker
}

// WrapGateway routes every remote call through the breaker.
func WrapGateway(next repository.RemoteGateway, breaker *Breaker) repository.RemoteGateway {
	if breaker == nil {
		return next
	}
	return &guardedGateway{next: next, breaker: breaker}
}

func (g *guardedGateway) List(ctx context.Context) (tasks []domain.Task, err error) {
	err = g.breaker.Do(func() error {
		tasks, err = g.next.List(ctx)
		return err
	})
	return tasks, err
}

func (g *guardedGateway) Create(ctx context.Context, draft domain.TaskDraft) (task *domain.Task, err error) {
	err = g.breaker.Do(func() error {
		task, err = g.next.Create(ctx, draft)
		return err
	})
	return task, err
}

func (g *guardedGateway) Update(ctx context.Context, id string, patch domain.TaskPatch) (task *domain.Task, err error) {
	err = g.breaker.Do(func() error {
		task, err = g.next.Update(ctx, id, patch)
		return err
	})
	return task, err
}

func (g *guardedGateway) Delete(ctx context.Context, id string) error {
	return g.breaker.Do(func() error {
		return g.next.Delete(ctx, id)
	})
}

func (g *guardedGateway) ListUsers(ctx context.Context) (users []domain.User, err error) {
	err = g.breaker.Do(func() error {
		users, err = g.next.ListUsers(ctx)
		return err
	})
	return users, err
}

// Ping bypasses the breaker so the connection monitor can observe recovery.
func (g *guardedGateway) Ping(ctx context.Context) error {
	return g.next.Ping(ctx)
}
