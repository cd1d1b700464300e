package task

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/fastygo/taskcache/domain"
	"github.com/fastygo/taskcache/internal/identity"
	"github.com/fastygo/taskcache/internal/normalize"
	"github.com/fastygo/taskcache/repository"
	"github.com/fastygo/taskcache/usecase"
)

// Result is a successful local mutation, together with the remote failures
// that were absorbed on the way.
type Result struct {
	Task     domain.Task      `json:"task"`
	Warnings []domain.Warning `json:"warnings,omitempty"`
}

// SyncReport describes an applied reconciliation.
type SyncReport struct {
	Remote  int       `json:"remote"`
	Merged  int       `json:"merged"`
	Pending int       `json:"pending"`
	At      time.Time `json:"at"`
}

// SweepReport describes one scheduler tick.
type SweepReport struct {
	Transitioned []string `json:"transitioned"`
	Updated      int      `json:"updated"`
	Failed       int      `json:"failed"`
}

// PromoteReport describes one promotion pass.
type PromoteReport struct {
	Promoted int `json:"promoted"`
	Left     int `json:"left"`
}

type syncMarker interface {
	MarkSynced(ctx context.Context, at time.Time) error
}

// UseCase is the reconciliation engine. All reads and writes of the task
// cache go through mu, so no operation ever observes another one half done.
// Remote calls are made outside mu.
type UseCase struct {
	cache      repository.TaskCache
	remote     repository.RemoteGateway
	ids        *identity.Allocator
	notifier   usecase.Notifier
	users      usecase.UserResolver
	logger     *zap.Logger
	now        func() time.Time
	facilities []string
	bgTimeout  time.Duration

	mu          sync.Mutex
	syncIssued  atomic.Uint64
	syncApplied uint64
	promoting   chan struct{}

	bg       sync.WaitGroup
	warnings chan domain.Warning
}

// Option customises a UseCase.
type Option func(*UseCase)

func WithAllocator(a *identity.Allocator) Option {
	return func(uc *UseCase) { uc.ids = a }
}

// WithNotifier enables assignment notifications.
func WithNotifier(n usecase.Notifier, users usecase.UserResolver) Option {
	return func(uc *UseCase) {
		uc.notifier = n
		uc.users = users
	}
}

// WithFacilities restricts the facility field to the given set.
func WithFacilities(facilities []string) Option {
	return func(uc *UseCase) { uc.facilities = append([]string(nil), facilities...) }
}

func WithClock(now func() time.Time) Option {
	return func(uc *UseCase) { uc.now = now }
}

// WithBackgroundTimeout bounds fire-and-forget remote calls.
func WithBackgroundTimeout(d time.Duration) Option {
	return func(uc *UseCase) { uc.bgTimeout = d }
}

// WithWarningBuffer sizes the warning channel; warnings beyond it are dropped.
func WithWarningBuffer(n int) Option {
	return func(uc *UseCase) { uc.warnings = make(chan domain.Warning, n) }
}

func New(cache repository.TaskCache, remote repository.RemoteGateway, logger *zap.Logger, opts ...Option) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	uc := &UseCase{
		cache:     cache,
		remote:    remote,
		ids:       identity.New(),
		logger:    logger,
		now:       time.Now,
		bgTimeout: 30 * time.Second,
		warnings:  make(chan domain.Warning, 64),
		promoting: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// Warnings streams remote failures absorbed by background work.
func (uc *UseCase) Warnings() <-chan domain.Warning {
	return uc.warnings
}

// Wait blocks until every fire-and-forget remote call has finished.
func (uc *UseCase) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		uc.bg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ListTasks returns the cached collection, filtered and sorted.
func (uc *UseCase) ListTasks(ctx context.Context, filter repository.TaskFilter) ([]domain.Task, error) {
	uc.mu.Lock()
	tasks, err := uc.cache.Load(ctx)
	uc.mu.Unlock()
	if err != nil {
		return nil, domain.WrapError(domain.ErrCodeInternal, "load task cache", err)
	}

	if status := strings.TrimSpace(filter.Status); status != "" && !strings.EqualFold(status, "all") {
		want := normalize.Status(status)
		kept := tasks[:0]
		for _, t := range tasks {
			if t.Status == want {
				kept = append(kept, t)
			}
		}
		tasks = kept
	}
	sortTasks(tasks, filter.Sort, filter.Desc)
	return tasks, nil
}

func (uc *UseCase) GetTask(ctx context.Context, id string) (*domain.Task, error) {
	uc.mu.Lock()
	tasks, err := uc.cache.Load(ctx)
	uc.mu.Unlock()
	if err != nil {
		return nil, domain.WrapError(domain.ErrCodeInternal, "load task cache", err)
	}
	if idx := indexOf(tasks, id); idx >= 0 {
		t := tasks[idx]
		return &t, nil
	}
	return nil, domain.ErrTaskNotFound
}

// Sync fetches the remote snapshot and merges it into the cache. A failed
// fetch leaves the cache untouched. A fetch that completes after a later
// request was already applied is discarded.
func (uc *UseCase) Sync(ctx context.Context) (*SyncReport, error) {
	seq := uc.syncIssued.Add(1)

	remote, err := uc.remote.List(ctx)
	if err != nil {
		uc.logger.Warn("remote list failed, keeping cached tasks", zap.Error(err))
		return nil, domain.RemoteError("list", err)
	}

	uc.mu.Lock()
	defer uc.mu.Unlock()

	if seq <= uc.syncApplied {
		uc.logger.Debug("discarding superseded sync result",
			zap.Uint64("seq", seq), zap.Uint64("applied", uc.syncApplied))
		return nil, domain.ErrSyncSuperseded
	}

	local, err := uc.cache.Load(ctx)
	if err != nil {
		return nil, domain.WrapError(domain.ErrCodeInternal, "load task cache", err)
	}
	merged := Merge(local, remote)
	if err := uc.cache.Replace(ctx, merged); err != nil {
		return nil, domain.WrapError(domain.ErrCodeInternal, "persist merged tasks", err)
	}
	uc.syncApplied = seq

	report := &SyncReport{Remote: len(remote), Merged: len(merged), At: uc.now()}
	for i := range merged {
		if merged[i].IsPending() {
			report.Pending++
		}
	}
	if m, ok := uc.cache.(syncMarker); ok {
		if err := m.MarkSynced(ctx, report.At); err != nil {
			uc.logger.Warn("failed to record sync time", zap.Error(err))
		}
	}

	uc.logger.Info("tasks reconciled",
		zap.Int("remote", report.Remote),
		zap.Int("merged", report.Merged),
		zap.Int("pending", report.Pending))
	return report, nil
}

// CreateTask writes the task to the remote store and falls back to a pending
// id when that fails. Either way the task is added to the cache.
func (uc *UseCase) CreateTask(ctx context.Context, draft domain.TaskDraft) (*Result, error) {
	draft.Title = strings.TrimSpace(draft.Title)
	draft.Status, draft.Priority = normalize.Normalize(string(draft.Status), string(draft.Priority))
	if err := draft.Validate(uc.facilities); err != nil {
		return nil, err
	}

	res := &Result{}
	created, err := uc.remote.Create(ctx, draft)
	if err == nil && (created == nil || created.ID.IsZero() || created.ID.IsPending()) {
		err = errors.New("remote returned no authoritative id")
	}

	var task domain.Task
	if err != nil {
		task = uc.localTask(draft)
		res.Warnings = append(res.Warnings, uc.warn("create", task.ID.String(), err))
	} else {
		task = fillFromDraft(normalize.Task(*created), draft)
	}

	uc.mu.Lock()
	err = uc.upsertLocked(ctx, task)
	uc.mu.Unlock()
	if err != nil {
		uc.logger.Error("failed to cache created task", zap.String("task_id", task.ID.String()), zap.Error(err))
		return nil, domain.WrapError(domain.ErrCodeInternal, "persist created task", err)
	}

	uc.notifyAssignee(ctx, task)
	res.Task = task
	return res, nil
}

// UpdateTask applies the patch locally and forwards it to the remote store
// in the background.
func (uc *UseCase) UpdateTask(ctx context.Context, id string, patch domain.TaskPatch) (*Result, error) {
	if patch.Status != nil {
		s := normalize.Status(string(*patch.Status))
		patch.Status = &s
	}
	if patch.Priority != nil {
		p := normalize.Priority(string(*patch.Priority))
		patch.Priority = &p
	}
	if err := patch.Validate(uc.facilities); err != nil {
		return nil, err
	}

	uc.mu.Lock()
	tasks, err := uc.cache.Load(ctx)
	if err != nil {
		uc.mu.Unlock()
		return nil, domain.WrapError(domain.ErrCodeInternal, "load task cache", err)
	}
	idx := indexOf(tasks, id)
	if idx < 0 {
		uc.mu.Unlock()
		return nil, domain.ErrTaskNotFound
	}
	updated := tasks[idx].Clone()
	patch.Apply(&updated)
	updated.UpdatedAt = uc.now()
	tasks[idx] = updated
	err = uc.cache.Replace(ctx, tasks)
	uc.mu.Unlock()
	if err != nil {
		return nil, domain.WrapError(domain.ErrCodeInternal, "persist updated task", err)
	}

	if !updated.IsPending() && !patch.IsEmpty() {
		remoteID := updated.ID.String()
		uc.goRemote(ctx, "update", remoteID, func(ctx context.Context) error {
			_, err := uc.remote.Update(ctx, remoteID, patch)
			return err
		})
	}
	return &Result{Task: updated}, nil
}

// DeleteTask removes the task locally and, for confirmed tasks, from the
// remote store in the background.
func (uc *UseCase) DeleteTask(ctx context.Context, id string) error {
	uc.mu.Lock()
	tasks, err := uc.cache.Load(ctx)
	if err != nil {
		uc.mu.Unlock()
		return domain.WrapError(domain.ErrCodeInternal, "load task cache", err)
	}
	idx := indexOf(tasks, id)
	if idx < 0 {
		uc.mu.Unlock()
		return domain.ErrTaskNotFound
	}
	removed := tasks[idx]
	tasks = append(tasks[:idx], tasks[idx+1:]...)
	err = uc.cache.Replace(ctx, tasks)
	uc.mu.Unlock()
	if err != nil {
		return domain.WrapError(domain.ErrCodeInternal, "persist deletion", err)
	}

	if !removed.IsPending() {
		remoteID := removed.ID.String()
		uc.goRemote(ctx, "delete", remoteID, func(ctx context.Context) error {
			return uc.remote.Delete(ctx, remoteID)
		})
	}
	return nil
}

// SweepMissed moves every open task whose due instant has passed to Missed,
// then tells the remote store about each confirmed task that changed. Tasks a
// user moved out of Missed by hand are left alone.
func (uc *UseCase) SweepMissed(ctx context.Context, now time.Time) (*SweepReport, error) {
	uc.mu.Lock()
	tasks, err := uc.cache.Load(ctx)
	if err != nil {
		uc.mu.Unlock()
		return nil, domain.WrapError(domain.ErrCodeInternal, "load task cache", err)
	}

	report := &SweepReport{}
	var changed []domain.TaskID
	for i := range tasks {
		t := &tasks[i]
		if t.StatusOverride || !normalize.Status(string(t.Status)).IsOpen() || !t.IsOverdue(now) {
			continue
		}
		t.Status = domain.StatusMissed
		t.UpdatedAt = now
		changed = append(changed, t.ID)
		report.Transitioned = append(report.Transitioned, t.ID.String())
	}
	if len(changed) == 0 {
		uc.mu.Unlock()
		return report, nil
	}
	err = uc.cache.Replace(ctx, tasks)
	uc.mu.Unlock()
	if err != nil {
		return nil, domain.WrapError(domain.ErrCodeInternal, "persist missed tasks", err)
	}
	uc.logger.Info("tasks marked missed", zap.Strings("task_ids", report.Transitioned))

	missed := domain.StatusMissed
	for _, id := range changed {
		if id.IsPending() {
			continue
		}
		if _, err := uc.remote.Update(ctx, id.String(), domain.TaskPatch{Status: &missed}); err != nil {
			uc.warn("mark_missed", id.String(), err)
			report.Failed++
			continue
		}
		report.Updated++
	}
	return report, nil
}

// PromotePending creates every pending task on the remote store and re-keys
// it to the returned id. The pass stops at the first remote failure; the
// remaining tasks keep their pending ids until the next pass. Passes run one
// at a time so a pending task is never created twice on the remote.
func (uc *UseCase) PromotePending(ctx context.Context) (*PromoteReport, error) {
	select {
	case uc.promoting <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-uc.promoting }()

	uc.mu.Lock()
	tasks, err := uc.cache.Load(ctx)
	uc.mu.Unlock()
	if err != nil {
		return nil, domain.WrapError(domain.ErrCodeInternal, "load task cache", err)
	}

	var pending []domain.Task
	for _, t := range tasks {
		if t.IsPending() {
			pending = append(pending, t)
		}
	}

	report := &PromoteReport{Left: len(pending)}
	for _, snapshot := range pending {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		created, err := uc.remote.Create(ctx, snapshot.Draft())
		if err == nil && (created == nil || created.ID.IsZero() || created.ID.IsPending()) {
			err = errors.New("remote returned no authoritative id")
		}
		if err != nil {
			uc.warn("promote", snapshot.ID.String(), err)
			return report, nil
		}

		confirmed := fillFromDraft(normalize.Task(*created), snapshot.Draft())
		if err := uc.rekey(ctx, snapshot, confirmed); err != nil {
			return report, err
		}
		report.Promoted++
		report.Left--
	}
	return report, nil
}

func (uc *UseCase) rekey(ctx context.Context, snapshot, confirmed domain.Task) error {
	uc.mu.Lock()
	tasks, err := uc.cache.Load(ctx)
	if err != nil {
		uc.mu.Unlock()
		return domain.WrapError(domain.ErrCodeInternal, "load task cache", err)
	}

	idx := indexOf(tasks, snapshot.ID.String())
	if idx < 0 {
		uc.mu.Unlock()
		// deleted locally while the create was in flight
		orphan := confirmed.ID.String()
		uc.goRemote(ctx, "delete", orphan, func(ctx context.Context) error {
			return uc.remote.Delete(ctx, orphan)
		})
		return nil
	}

	current := tasks[idx]
	next := confirmed
	edited := current.UpdatedAt.After(snapshot.UpdatedAt) || current.Status != snapshot.Status
	if edited {
		next = current.Clone()
		next.ID = confirmed.ID
		next.CreatedAt = confirmed.CreatedAt
	}
	next.StatusOverride = current.StatusOverride

	tasks = append(tasks[:idx], tasks[idx+1:]...)
	if dup := indexOf(tasks, next.ID.String()); dup >= 0 {
		tasks[dup] = next
	} else {
		tasks = append(tasks[:idx], append([]domain.Task{next}, tasks[idx:]...)...)
	}
	err = uc.cache.Replace(ctx, tasks)
	uc.mu.Unlock()
	if err != nil {
		return domain.WrapError(domain.ErrCodeInternal, "persist promoted task", err)
	}

	uc.logger.Info("pending task promoted",
		zap.String("pending_id", snapshot.ID.String()),
		zap.String("task_id", next.ID.String()))

	if edited {
		patch := fullPatch(next)
		remoteID := next.ID.String()
		uc.goRemote(ctx, "update", remoteID, func(ctx context.Context) error {
			_, err := uc.remote.Update(ctx, remoteID, patch)
			return err
		})
	}
	return nil
}

// upsertLocked must be called with uc.mu held.
func (uc *UseCase) upsertLocked(ctx context.Context, task domain.Task) error {
	tasks, err := uc.cache.Load(ctx)
	if err != nil {
		return err
	}
	if idx := indexOf(tasks, task.ID.String()); idx >= 0 {
		tasks[idx] = task
	} else {
		tasks = append(tasks, task)
	}
	return uc.cache.Replace(ctx, tasks)
}

func (uc *UseCase) localTask(draft domain.TaskDraft) domain.Task {
	now := uc.now()
	return domain.Task{
		ID:          uc.ids.Allocate(),
		Title:       draft.Title,
		Description: draft.Description,
		Facility:    draft.Facility,
		AssignedTo:  draft.AssignedTo,
		Priority:    draft.Priority,
		Status:      draft.Status,
		DueAt:       draft.DueAt,
		Tags:        append([]string(nil), draft.Tags...),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func (uc *UseCase) notifyAssignee(ctx context.Context, task domain.Task) {
	if uc.notifier == nil || uc.users == nil || task.AssignedTo == "" {
		return
	}
	uc.goRemote(ctx, "notify", task.ID.String(), func(ctx context.Context) error {
		user, err := uc.users.Resolve(ctx, task.AssignedTo)
		if err != nil {
			return err
		}
		if !user.CanBeNotified() {
			return nil
		}
		return uc.notifier.Notify(ctx, domain.Notification{
			Email:   user.Email,
			Subject: fmt.Sprintf("New Task Assigned: %s", task.Title),
			Message: fmt.Sprintf("You have been assigned a new task: %s. Due date: %s.",
				task.Title, task.DueAt.Format("2006-01-02 15:04")),
			TaskID: task.ID.String(),
		})
	})
}

// goRemote runs fn detached from the caller's cancellation. Failures become
// warnings.
func (uc *UseCase) goRemote(ctx context.Context, op, taskID string, fn func(context.Context) error) {
	uc.bg.Add(1)
	go func() {
		defer uc.bg.Done()
		bgCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), uc.bgTimeout)
		defer cancel()
		if err := fn(bgCtx); err != nil {
			uc.warn(op, taskID, err)
		}
	}()
}

func (uc *UseCase) warn(op, taskID string, err error) domain.Warning {
	w := domain.Warning{Op: op, TaskID: taskID, Err: err, At: uc.now()}
	uc.logger.Warn("remote call failed, local state kept",
		zap.String("op", op),
		zap.String("task_id", taskID),
		zap.Error(err))
	select {
	case uc.warnings <- w:
	default:
		uc.logger.Debug("warning channel full, dropping", zap.String("op", op))
	}
	return w
}

func fillFromDraft(t domain.Task, draft domain.TaskDraft) domain.Task {
	if t.Title == "" {
		t.Title = draft.Title
	}
	if t.Description == "" {
		t.Description = draft.Description
	}
	if t.Facility == "" {
		t.Facility = draft.Facility
	}
	if t.AssignedTo == "" {
		t.AssignedTo = draft.AssignedTo
	}
	if t.DueAt.IsZero() {
		t.DueAt = draft.DueAt
	}
	if t.Tags == nil && draft.Tags != nil {
		t.Tags = append([]string(nil), draft.Tags...)
	}
	return t
}

func fullPatch(t domain.Task) domain.TaskPatch {
	return domain.TaskPatch{
		Title:       &t.Title,
		Description: &t.Description,
		Facility:    &t.Facility,
		AssignedTo:  &t.AssignedTo,
		Priority:    &t.Priority,
		Status:      &t.Status,
		DueAt:       &t.DueAt,
		Tags:        t.Tags,
	}
}

func indexOf(tasks []domain.Task, id string) int {
	if id == "" {
		return -1
	}
	for i := range tasks {
		if tasks[i].ID.String() == id {
			return i
		}
	}
	return -1
}

func sortTasks(tasks []domain.Task, field string, desc bool) {
	var less func(a, b domain.Task) bool
	switch field {
	case "priority":
		less = func(a, b domain.Task) bool { return a.Priority.Rank() < b.Priority.Rank() }
	case "title":
		less = func(a, b domain.Task) bool { return strings.ToLower(a.Title) < strings.ToLower(b.Title) }
	case "created_at":
		less = func(a, b domain.Task) bool { return a.CreatedAt.Before(b.CreatedAt) }
	case "", "due_date":
		less = func(a, b domain.Task) bool { return a.DueAt.Before(b.DueAt) }
	default:
		return
	}
	sort.SliceStable(tasks, func(i, j int) bool {
		if desc {
			return less(tasks[j], tasks[i])
		}
		return less(tasks[i], tasks[j])
	})
}
