package task

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fastygo/taskcache/domain"
	"github.com/fastygo/taskcache/internal/infrastructure/cachestore"
)

var errRemoteDown = errors.New("dial tcp 127.0.0.1:8000: connection refused")

type updateCall struct {
	ID    string
	Patch domain.TaskPatch
}

// fakeGateway records calls and answers from scripted hooks.
type fakeGateway struct {
	mu sync.Mutex

	list      func(call int) ([]domain.Task, error)
	createErr error
	updateErr error
	deleteErr error
	onCreate  func(draft domain.TaskDraft)

	listCalls int
	nextID    int
	creates   []domain.TaskDraft
	updates   []updateCall
	deletes   []string
}

func (f *fakeGateway) List(ctx context.Context) ([]domain.Task, error) {
	f.mu.Lock()
	f.listCalls++
	call := f.listCalls
	hook := f.list
	f.mu.Unlock()
	if hook == nil {
		return nil, nil
	}
	return hook(call)
}

func (f *fakeGateway) Create(ctx context.Context, draft domain.TaskDraft) (*domain.Task, error) {
	f.mu.Lock()
	f.creates = append(f.creates, draft)
	err := f.createErr
	hook := f.onCreate
	var id string
	if err == nil {
		f.nextID++
		id = fmt.Sprintf("r%d", 100+f.nextID)
	}
	f.mu.Unlock()

	if hook != nil {
		hook(draft)
	}
	if err != nil {
		return nil, err
	}
	stamp := time.Date(2026, 10, 18, 8, 0, 0, 0, time.UTC)
	// the remote store does not keep the facility
	return &domain.Task{
		ID:          domain.AuthoritativeID(id),
		Title:       draft.Title,
		Description: draft.Description,
		AssignedTo:  draft.AssignedTo,
		Priority:    domain.Priority(string(draft.Priority)),
		Status:      "pending",
		DueAt:       draft.DueAt,
		CreatedAt:   stamp,
		UpdatedAt:   stamp,
	}, nil
}

func (f *fakeGateway) Update(ctx context.Context, id string, patch domain.TaskPatch) (*domain.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, updateCall{ID: id, Patch: patch})
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	return &domain.Task{ID: domain.AuthoritativeID(id)}, nil
}

func (f *fakeGateway) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, id)
	return f.deleteErr
}

func (f *fakeGateway) ListUsers(ctx context.Context) ([]domain.User, error) {
	return domain.FallbackUsers(), nil
}

func (f *fakeGateway) Ping(ctx context.Context) error { return nil }

func (f *fakeGateway) snapshot() (creates []domain.TaskDraft, updates []updateCall, deletes []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append(creates, f.creates...), append(updates, f.updates...), append(deletes, f.deletes...)
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []domain.Notification
	err  error
}

func (n *fakeNotifier) Notify(ctx context.Context, msg domain.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
	return n.err
}

type staticUsers []domain.User

func (s staticUsers) Resolve(ctx context.Context, id string) (*domain.User, error) {
	for i := range s {
		if s[i].ID == id {
			u := s[i]
			return &u, nil
		}
	}
	return nil, nil
}

var testNow = time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

func newTestUseCase(t *testing.T, gw *fakeGateway, opts ...Option) (*UseCase, *cachestore.Store) {
	t.Helper()
	store, err := cachestore.Open(filepath.Join(t.TempDir(), "tasks.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	opts = append([]Option{WithClock(func() time.Time { return testNow })}, opts...)
	return New(store, gw, nil, opts...), store
}

func waitBackground(t *testing.T, uc *UseCase) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, uc.Wait(ctx))
}

func validDraft(title string, due time.Time) domain.TaskDraft {
	return domain.TaskDraft{
		Title:      title,
		Facility:   "Building A",
		AssignedTo: "2",
		DueAt:      due,
	}
}
