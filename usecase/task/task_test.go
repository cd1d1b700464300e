package task

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/taskcache/domain"
	"github.com/fastygo/taskcache/repository"
)

func TestSyncOnEmptyCacheKeepsCompletedTasks(t *testing.T) {
	yesterday := testNow.Add(-24 * time.Hour)
	gw := &fakeGateway{list: func(int) ([]domain.Task, error) {
		return []domain.Task{{
			ID: domain.AuthoritativeID("r1"), Title: "Clean gutters",
			Status: "completed", Priority: "low", DueAt: yesterday,
		}}, nil
	}}
	uc, _ := newTestUseCase(t, gw)
	ctx := context.Background()

	report, err := uc.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Merged)

	_, err = uc.SweepMissed(ctx, testNow)
	require.NoError(t, err)

	tasks, err := uc.ListTasks(ctx, repository.TaskFilter{})
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, domain.StatusCompleted, tasks[0].Status)
	assert.Equal(t, domain.PriorityLow, tasks[0].Priority)
}

func TestCreateWhileRemoteDownKeepsPendingTask(t *testing.T) {
	gw := &fakeGateway{createErr: errRemoteDown}
	uc, store := newTestUseCase(t, gw)
	ctx := context.Background()

	res, err := uc.CreateTask(ctx, validDraft("Inspect roof", testNow.Add(24*time.Hour)))
	require.NoError(t, err)
	assert.True(t, res.Task.ID.IsPending())
	assert.Equal(t, domain.StatusPending, res.Task.Status)
	assert.Equal(t, domain.PriorityMedium, res.Task.Priority)
	assert.Equal(t, testNow, res.Task.CreatedAt)
	require.Len(t, res.Warnings, 1)
	assert.ErrorIs(t, res.Warnings[0], errRemoteDown)

	cached, err := store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, cached, 1)
	assert.Equal(t, res.Task.ID, cached[0].ID)

	gw.mu.Lock()
	gw.list = func(int) ([]domain.Task, error) {
		return []domain.Task{{ID: domain.AuthoritativeID("r9"), Title: "Other"}}, nil
	}
	gw.mu.Unlock()

	_, err = uc.Sync(ctx)
	require.NoError(t, err)
	got, err := uc.GetTask(ctx, res.Task.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "Inspect roof", got.Title)
}

func TestSweepMarksOverdueTaskMissedOnce(t *testing.T) {
	gw := &fakeGateway{list: func(int) ([]domain.Task, error) {
		return []domain.Task{{
			ID: domain.AuthoritativeID("r1"), Title: "Test alarms",
			Status: domain.StatusPending, DueAt: testNow.Add(-time.Minute),
		}}, nil
	}}
	uc, _ := newTestUseCase(t, gw)
	ctx := context.Background()
	_, err := uc.Sync(ctx)
	require.NoError(t, err)

	report, err := uc.SweepMissed(ctx, testNow)
	require.NoError(t, err)
	assert.Equal(t, []string{"r1"}, report.Transitioned)
	assert.Equal(t, 1, report.Updated)

	_, updates, _ := gw.snapshot()
	require.Len(t, updates, 1)
	assert.Equal(t, "r1", updates[0].ID)
	require.NotNil(t, updates[0].Patch.Status)
	assert.Equal(t, domain.StatusMissed, *updates[0].Patch.Status)

	got, err := uc.GetTask(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusMissed, got.Status)

	// second tick: nothing flaps, nothing is re-sent
	report, err = uc.SweepMissed(ctx, testNow.Add(time.Minute))
	require.NoError(t, err)
	assert.Empty(t, report.Transitioned)
	_, updates, _ = gw.snapshot()
	assert.Len(t, updates, 1)

	// manual override is accepted and survives later ticks
	inProgress := domain.StatusInProgress
	res, err := uc.UpdateTask(ctx, "r1", domain.TaskPatch{Status: &inProgress})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusInProgress, res.Task.Status)
	waitBackground(t, uc)

	// the remote echoes the override back without the local flag
	gw.mu.Lock()
	gw.list = func(int) ([]domain.Task, error) {
		return []domain.Task{{
			ID: domain.AuthoritativeID("r1"), Title: "Test alarms",
			Status: "in_progress", DueAt: testNow.Add(-time.Minute),
		}}, nil
	}
	gw.mu.Unlock()
	_, err = uc.Sync(ctx)
	require.NoError(t, err)

	report, err = uc.SweepMissed(ctx, testNow.Add(2*time.Minute))
	require.NoError(t, err)
	assert.Empty(t, report.Transitioned)
	got, err = uc.GetTask(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusInProgress, got.Status)
	assert.True(t, got.StatusOverride)
	_, updates, _ = gw.snapshot()
	require.Len(t, updates, 2)
	assert.Equal(t, domain.StatusInProgress, *updates[1].Patch.Status)
}

func TestSweepRemoteFailureIsAWarning(t *testing.T) {
	gw := &fakeGateway{
		updateErr: errRemoteDown,
		list: func(int) ([]domain.Task, error) {
			return []domain.Task{
				{ID: domain.AuthoritativeID("r1"), Title: "a", Status: "in progress", DueAt: testNow.Add(-time.Hour)},
				{ID: domain.AuthoritativeID("r2"), Title: "b", Status: "pending", DueAt: testNow.Add(time.Hour)},
			}, nil
		},
	}
	uc, _ := newTestUseCase(t, gw)
	ctx := context.Background()
	_, err := uc.Sync(ctx)
	require.NoError(t, err)

	report, err := uc.SweepMissed(ctx, testNow)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Failed)

	select {
	case w := <-uc.Warnings():
		assert.Equal(t, "mark_missed", w.Op)
		assert.Equal(t, "r1", w.TaskID)
	case <-time.After(time.Second):
		t.Fatal("expected a warning")
	}

	got, err := uc.GetTask(ctx, "r2")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, got.Status)
}

func TestSweepDoesNotSendPendingTasksToRemote(t *testing.T) {
	gw := &fakeGateway{createErr: errRemoteDown}
	uc, _ := newTestUseCase(t, gw)
	ctx := context.Background()

	res, err := uc.CreateTask(ctx, validDraft("Late", testNow.Add(-time.Hour)))
	require.NoError(t, err)

	report, err := uc.SweepMissed(ctx, testNow)
	require.NoError(t, err)
	assert.Equal(t, []string{res.Task.ID.String()}, report.Transitioned)
	assert.Zero(t, report.Updated)
	_, updates, _ := gw.snapshot()
	assert.Empty(t, updates)
}

func TestFailedFetchLeavesCacheUntouched(t *testing.T) {
	gw := &fakeGateway{list: func(call int) ([]domain.Task, error) {
		if call == 1 {
			return []domain.Task{{ID: domain.AuthoritativeID("r1"), Title: "kept", Status: "pending"}}, nil
		}
		return nil, errRemoteDown
	}}
	uc, store := newTestUseCase(t, gw)
	ctx := context.Background()

	_, err := uc.Sync(ctx)
	require.NoError(t, err)
	before, err := store.Raw(ctx)
	require.NoError(t, err)

	_, err = uc.Sync(ctx)
	require.Error(t, err)
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeUnavailable))
	assert.ErrorIs(t, err, errRemoteDown)

	after, err := store.Raw(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestOlderSyncResultIsDiscarded(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	gw := &fakeGateway{list: func(call int) ([]domain.Task, error) {
		if call == 1 {
			close(started)
			<-release
			return []domain.Task{{ID: domain.AuthoritativeID("old"), Title: "old"}}, nil
		}
		return []domain.Task{{ID: domain.AuthoritativeID("new"), Title: "new"}}, nil
	}}
	uc, store := newTestUseCase(t, gw)
	ctx := context.Background()

	errCh := make(chan error, 1)
	go func() {
		_, err := uc.Sync(ctx)
		errCh <- err
	}()
	<-started

	_, err := uc.Sync(ctx)
	require.NoError(t, err)
	close(release)

	assert.ErrorIs(t, <-errCh, domain.ErrSyncSuperseded)
	cached, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"new"}, ids(cached))
}

func TestCreateUsesRemoteIdentity(t *testing.T) {
	gw := &fakeGateway{}
	uc, _ := newTestUseCase(t, gw)
	ctx := context.Background()

	draft := validDraft("  Replace bulbs ", testNow.Add(time.Hour))
	draft.Priority = "HIGH"
	res, err := uc.CreateTask(ctx, draft)
	require.NoError(t, err)
	assert.Empty(t, res.Warnings)
	assert.False(t, res.Task.ID.IsPending())
	assert.Equal(t, "r101", res.Task.ID.String())
	assert.Equal(t, "Replace bulbs", res.Task.Title)
	assert.Equal(t, domain.PriorityHigh, res.Task.Priority)
	assert.Equal(t, domain.StatusPending, res.Task.Status)
	assert.Equal(t, "Building A", res.Task.Facility)
}

func TestCreateDoesNotDuplicateAnAlreadySyncedID(t *testing.T) {
	gw := &fakeGateway{}
	uc, store := newTestUseCase(t, gw)
	ctx := context.Background()
	gw.onCreate = func(domain.TaskDraft) {
		// a sync lands while the create is in flight and already sees r101
		gw.list = func(int) ([]domain.Task, error) {
			return []domain.Task{{ID: domain.AuthoritativeID("r101"), Title: "Sweep"}}, nil
		}
		_, err := uc.Sync(ctx)
		assert.NoError(t, err)
	}

	_, err := uc.CreateTask(ctx, validDraft("Sweep", testNow.Add(time.Hour)))
	require.NoError(t, err)

	cached, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"r101"}, ids(cached))
}

func TestCreateRejectsInvalidDraftWithoutMutation(t *testing.T) {
	gw := &fakeGateway{}
	uc, store := newTestUseCase(t, gw, WithFacilities([]string{"Building A"}))
	ctx := context.Background()

	draft := validDraft("", testNow)
	draft.Facility = "Warehouse"
	_, err := uc.CreateTask(ctx, draft)
	require.Error(t, err)
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeInvalid))

	creates, _, _ := gw.snapshot()
	assert.Empty(t, creates)
	raw, err := store.Raw(ctx)
	require.NoError(t, err)
	assert.Nil(t, raw)
}

func TestUpdateIsLocalFirst(t *testing.T) {
	gw := &fakeGateway{updateErr: errRemoteDown}
	uc, _ := newTestUseCase(t, gw)
	ctx := context.Background()

	created, err := uc.CreateTask(ctx, validDraft("Paint hall", testNow.Add(time.Hour)))
	require.NoError(t, err)

	title := "Paint main hall"
	res, err := uc.UpdateTask(ctx, created.Task.ID.String(), domain.TaskPatch{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, title, res.Task.Title)
	waitBackground(t, uc)

	got, err := uc.GetTask(ctx, created.Task.ID.String())
	require.NoError(t, err)
	assert.Equal(t, title, got.Title)

	_, updates, _ := gw.snapshot()
	require.Len(t, updates, 1)
	assert.Equal(t, "r101", updates[0].ID)

	var ops []string
	for len(uc.Warnings()) > 0 {
		ops = append(ops, (<-uc.Warnings()).Op)
	}
	assert.Contains(t, ops, "update")
}

func TestUpdateUnknownTask(t *testing.T) {
	uc, _ := newTestUseCase(t, &fakeGateway{})
	title := "x"
	_, err := uc.UpdateTask(context.Background(), "missing", domain.TaskPatch{Title: &title})
	assert.ErrorIs(t, err, domain.ErrTaskNotFound)
}

func TestDeleteRemovesLocallyAndRemotely(t *testing.T) {
	gw := &fakeGateway{}
	uc, _ := newTestUseCase(t, gw)
	ctx := context.Background()

	confirmed, err := uc.CreateTask(ctx, validDraft("a", testNow.Add(time.Hour)))
	require.NoError(t, err)
	gw.mu.Lock()
	gw.createErr = errRemoteDown
	gw.mu.Unlock()
	local, err := uc.CreateTask(ctx, validDraft("b", testNow.Add(time.Hour)))
	require.NoError(t, err)

	require.NoError(t, uc.DeleteTask(ctx, confirmed.Task.ID.String()))
	require.NoError(t, uc.DeleteTask(ctx, local.Task.ID.String()))
	waitBackground(t, uc)

	tasks, err := uc.ListTasks(ctx, repository.TaskFilter{})
	require.NoError(t, err)
	assert.Empty(t, tasks)

	_, _, deletes := gw.snapshot()
	assert.Equal(t, []string{"r101"}, deletes)

	assert.ErrorIs(t, uc.DeleteTask(ctx, "r101"), domain.ErrTaskNotFound)
}

func TestPromotePendingRekeysTasks(t *testing.T) {
	gw := &fakeGateway{createErr: errRemoteDown}
	uc, store := newTestUseCase(t, gw)
	ctx := context.Background()

	first, err := uc.CreateTask(ctx, validDraft("first", testNow.Add(time.Hour)))
	require.NoError(t, err)
	second, err := uc.CreateTask(ctx, validDraft("second", testNow.Add(time.Hour)))
	require.NoError(t, err)

	report, err := uc.PromotePending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Promoted)
	assert.Equal(t, 2, report.Left)

	gw.mu.Lock()
	gw.createErr = nil
	gw.mu.Unlock()

	report, err = uc.PromotePending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Promoted)
	assert.Zero(t, report.Left)

	cached, err := store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, cached, 2)
	for _, c := range cached {
		assert.False(t, c.ID.IsPending())
	}
	assert.Equal(t, "first", cached[0].Title)
	assert.Equal(t, "second", cached[1].Title)
	assert.Equal(t, "Building A", cached[0].Facility)

	_, err = uc.GetTask(ctx, first.Task.ID.String())
	assert.ErrorIs(t, err, domain.ErrTaskNotFound)
	_, err = uc.GetTask(ctx, second.Task.ID.String())
	assert.ErrorIs(t, err, domain.ErrTaskNotFound)
}

func TestPromoteKeepsEditsMadeInFlight(t *testing.T) {
	gw := &fakeGateway{createErr: errRemoteDown}
	uc, _ := newTestUseCase(t, gw)
	ctx := context.Background()

	created, err := uc.CreateTask(ctx, validDraft("draft title", testNow.Add(time.Hour)))
	require.NoError(t, err)
	pendingID := created.Task.ID.String()

	var once sync.Once
	gw.mu.Lock()
	gw.createErr = nil
	gw.onCreate = func(domain.TaskDraft) {
		once.Do(func() {
			title := "edited title"
			uc.now = func() time.Time { return testNow.Add(time.Minute) }
			_, err := uc.UpdateTask(ctx, pendingID, domain.TaskPatch{Title: &title})
			assert.NoError(t, err)
		})
	}
	gw.mu.Unlock()

	_, err = uc.PromotePending(ctx)
	require.NoError(t, err)
	waitBackground(t, uc)

	got, err := uc.GetTask(ctx, "r101")
	require.NoError(t, err)
	assert.Equal(t, "edited title", got.Title)

	_, updates, _ := gw.snapshot()
	require.Len(t, updates, 1)
	assert.Equal(t, "r101", updates[0].ID)
	require.NotNil(t, updates[0].Patch.Title)
	assert.Equal(t, "edited title", *updates[0].Patch.Title)
}

func TestPromoteDeletesOrphanWhenTaskWasRemoved(t *testing.T) {
	gw := &fakeGateway{createErr: errRemoteDown}
	uc, store := newTestUseCase(t, gw)
	ctx := context.Background()

	created, err := uc.CreateTask(ctx, validDraft("gone", testNow.Add(time.Hour)))
	require.NoError(t, err)

	gw.mu.Lock()
	gw.createErr = nil
	gw.onCreate = func(domain.TaskDraft) {
		assert.NoError(t, uc.DeleteTask(ctx, created.Task.ID.String()))
	}
	gw.mu.Unlock()

	_, err = uc.PromotePending(ctx)
	require.NoError(t, err)
	waitBackground(t, uc)

	cached, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, cached)
	_, _, deletes := gw.snapshot()
	assert.Equal(t, []string{"r101"}, deletes)
}

func TestConcurrentPromotionCreatesOnce(t *testing.T) {
	gw := &fakeGateway{createErr: errRemoteDown}
	uc, store := newTestUseCase(t, gw)
	ctx := context.Background()

	_, err := uc.CreateTask(ctx, validDraft("once", testNow.Add(time.Hour)))
	require.NoError(t, err)

	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	gw.mu.Lock()
	gw.createErr = nil
	gw.deleteErr = errRemoteDown
	gw.onCreate = func(domain.TaskDraft) {
		once.Do(func() {
			close(started)
			<-release
		})
	}
	gw.mu.Unlock()

	var wg sync.WaitGroup
	reports := make([]*PromoteReport, 2)
	pass := func(i int) {
		defer wg.Done()
		r, err := uc.PromotePending(ctx)
		assert.NoError(t, err)
		reports[i] = r
	}
	wg.Add(2)
	go pass(0)
	<-started
	go pass(1)
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()
	waitBackground(t, uc)

	creates, _, deletes := gw.snapshot()
	assert.Len(t, creates, 1)
	assert.Empty(t, deletes)
	assert.Equal(t, 1, reports[0].Promoted+reports[1].Promoted)

	cached, err := store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, cached, 1)
	assert.Equal(t, "r101", cached[0].ID.String())
}

func TestPromotionWaitHonoursContext(t *testing.T) {
	uc, _ := newTestUseCase(t, &fakeGateway{})
	uc.promoting <- struct{}{}
	defer func() { <-uc.promoting }()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := uc.PromotePending(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCreateNotifiesAssignee(t *testing.T) {
	notifier := &fakeNotifier{}
	users := staticUsers(domain.FallbackUsers())
	uc, _ := newTestUseCase(t, &fakeGateway{}, WithNotifier(notifier, users))
	ctx := context.Background()

	_, err := uc.CreateTask(ctx, validDraft("Fix lift", testNow.Add(time.Hour)))
	require.NoError(t, err)
	waitBackground(t, uc)

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	require.Len(t, notifier.sent, 1)
	assert.Equal(t, "jane@example.com", notifier.sent[0].Email)
	assert.Equal(t, "New Task Assigned: Fix lift", notifier.sent[0].Subject)
}

func TestNotificationFailureDoesNotFailCreate(t *testing.T) {
	notifier := &fakeNotifier{err: errRemoteDown}
	uc, _ := newTestUseCase(t, &fakeGateway{}, WithNotifier(notifier, staticUsers(domain.FallbackUsers())))

	res, err := uc.CreateTask(context.Background(), validDraft("Fix lift", testNow.Add(time.Hour)))
	require.NoError(t, err)
	assert.Empty(t, res.Warnings)
	waitBackground(t, uc)

	w := <-uc.Warnings()
	assert.Equal(t, "notify", w.Op)
}

func TestListTasksFiltersAndSorts(t *testing.T) {
	gw := &fakeGateway{list: func(int) ([]domain.Task, error) {
		return []domain.Task{
			{ID: domain.AuthoritativeID("a"), Title: "b", Status: "pending", Priority: "high", DueAt: testNow.Add(3 * time.Hour)},
			{ID: domain.AuthoritativeID("b"), Title: "a", Status: "completed", Priority: "low", DueAt: testNow.Add(time.Hour)},
			{ID: domain.AuthoritativeID("c"), Title: "c", Status: "PENDING", Priority: "medium", DueAt: testNow.Add(2 * time.Hour)},
		}, nil
	}}
	uc, _ := newTestUseCase(t, gw)
	ctx := context.Background()
	_, err := uc.Sync(ctx)
	require.NoError(t, err)

	all, err := uc.ListTasks(ctx, repository.TaskFilter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c", "a"}, ids(all))

	pending, err := uc.ListTasks(ctx, repository.TaskFilter{Status: "pending", Sort: "priority", Desc: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, ids(pending))

	byTitle, err := uc.ListTasks(ctx, repository.TaskFilter{Status: "all", Sort: "title"})
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a", "c"}, ids(byTitle))
}
