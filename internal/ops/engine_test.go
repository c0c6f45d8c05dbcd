package ops

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tasky/internal/cache"
	"tasky/internal/notify"
	"tasky/internal/service"
	"tasky/internal/testutil"
)

var fixedNow = time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

type memStore struct {
	mu    sync.Mutex
	saved []service.Snapshot
}

func (m *memStore) Save(_ context.Context, q service.Query, p service.TaskPage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = append(m.saved, service.Snapshot{Query: q.Normalize(), Page: p})
}

func (m *memStore) Load(context.Context) *service.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.saved) == 0 {
		return nil
	}
	snap := m.saved[len(m.saved)-1]
	return &snap
}

func (m *memStore) last(t *testing.T) service.TaskPage {
	t.Helper()
	snap := m.Load(context.Background())
	require.NotNil(t, snap, "nothing persisted")
	return snap.Page
}

type fixture struct {
	engine *Engine
	svc    *testutil.FakeService
	local  *memStore
	sink   *notify.Store
}

func newFixture(t *testing.T, seed ...service.Task) fixture {
	t.Helper()
	svc := testutil.NewFakeService()
	svc.Now = func() time.Time { return fixedNow }
	for i := len(seed) - 1; i >= 0; i-- {
		svc.AddTask(seed[i])
	}
	f := fixture{svc: svc, local: &memStore{}, sink: notify.NewStore(nil)}
	f.engine = New(svc, f.local, f.sink, Options{Now: func() time.Time { return fixedNow }})

	_, err := f.engine.Fetch(context.Background())
	require.NoError(t, err)
	f.sink.ClearAll()
	return f
}

// messages returns notifications oldest first.
func (f fixture) messages() []string {
	items := f.sink.List()
	out := make([]string, 0, len(items))
	for i := len(items) - 1; i >= 0; i-- {
		out = append(out, string(items[i].Type)+": "+items[i].Message)
	}
	return out
}

func (f fixture) cached(t *testing.T) service.TaskPage {
	t.Helper()
	p, ok := f.engine.Page()
	require.True(t, ok, "no cached page")
	return p
}

func taskNames(p service.TaskPage) []string {
	var out []string
	for _, t := range p.Data {
		out = append(out, t.Name)
	}
	return out
}

func TestFetch_FillsCachesWithDefaultQuery(t *testing.T) {
	f := newFixture(t, service.Task{ID: "a", Name: "alpha"}, service.Task{ID: "b", Name: "beta"})

	assert.Equal(t, []string{"alpha", "beta"}, taskNames(f.cached(t)))
	assert.Equal(t, []string{"alpha", "beta"}, taskNames(f.local.last(t)))

	q := f.svc.ListQueries()[0]
	assert.Equal(t, service.Query{Page: 1, Limit: 10}, q)
}

func TestFetch_FallsBackToLocalCache(t *testing.T) {
	f := newFixture(t, service.Task{ID: "a", Name: "alpha"})
	f.svc.ListTasksErr = errors.New("connection refused")

	res, err := f.engine.Fetch(context.Background())
	require.NoError(t, err)
	assert.True(t, res.FromCache)
	assert.Equal(t, []string{"alpha"}, taskNames(res.Page))
	assert.Equal(t, []string{"warning: Showing cached tasks: connection refused"}, f.messages())
}

func TestFetch_NoLocalCacheReturnsError(t *testing.T) {
	svc := testutil.NewFakeService()
	svc.ListTasksErr = errors.New("down")
	e := New(svc, &memStore{}, nil, Options{})

	_, err := e.Fetch(context.Background())
	assert.EqualError(t, err, "down")
}

func TestFetch_LocalCacheOfAnotherQueryIsNotServed(t *testing.T) {
	f := newFixture(t, service.Task{ID: "a", Name: "alpha"}, service.Task{ID: "b", Name: "beta"})
	f.svc.ListTasksErr = errors.New("connection refused")

	tests := []struct {
		name  string
		query service.Query
	}{
		{"other page", service.Query{Page: 2}},
		{"other limit", service.Query{Page: 1, Limit: 5}},
		{"status filter", service.Query{Page: 1, Status: "DONE"}},
		{"search filter", service.Query{Page: 1, Search: "beta"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := New(f.svc, f.local, f.sink, Options{Query: tt.query})
			f.sink.ClearAll()

			_, err := engine.Fetch(context.Background())
			assert.EqualError(t, err, "connection refused")
			_, ok := engine.Page()
			assert.False(t, ok, "the local copy must not be cached under another query")
			assert.Empty(t, f.messages())
		})
	}
}

func TestFetch_UnauthorizedSkipsLocalCache(t *testing.T) {
	f := newFixture(t, service.Task{ID: "a", Name: "alpha"})
	f.svc.ListTasksErr = fmt.Errorf("refresh failed: %w", service.ErrUnauthorized)

	_, err := f.engine.Fetch(context.Background())
	assert.ErrorIs(t, err, service.ErrUnauthorized)
	assert.Empty(t, f.messages())
	_, ok := f.engine.Page()
	assert.False(t, ok, "page kept after the session was rejected")
}

func TestCreate_PrependsAndNormalizesTimestamps(t *testing.T) {
	f := newFixture(t, service.Task{ID: "a", Name: "alpha"})
	f.svc.OmitTimestamps = true

	created, err := f.engine.Create(context.Background(), service.TaskInput{Name: "  Write report  "})
	require.NoError(t, err)
	assert.Equal(t, "Write report", created.Name)
	assert.Equal(t, fixedNow, created.CreatedAt)
	assert.Equal(t, fixedNow, created.UpdatedAt)

	page := f.cached(t)
	require.Len(t, page.Data, 2)
	assert.Equal(t, created, page.Data[0])
	assert.Equal(t, page, f.local.last(t))
	assert.Equal(t, []string{`success: Task "Write report" created successfully`}, f.messages())
}

func TestCreate_FailureLeavesCache(t *testing.T) {
	f := newFixture(t, service.Task{ID: "a", Name: "alpha"})
	f.svc.CreateTaskErr = errors.New("boom")
	saves := len(f.local.saved)

	_, err := f.engine.Create(context.Background(), service.TaskInput{Name: "x"})
	require.Error(t, err)
	assert.Equal(t, []string{"alpha"}, taskNames(f.cached(t)))
	assert.Len(t, f.local.saved, saves)
	assert.Equal(t, []string{"error: Failed to create task: boom"}, f.messages())
}

func TestCreate_RejectsBlankName(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.Create(context.Background(), service.TaskInput{Name: "   "})
	assert.ErrorIs(t, err, ErrEmptyName)
	assert.Empty(t, f.svc.Tasks())
}

// anonymousService answers creates with a task that has no id.
type anonymousService struct {
	*testutil.FakeService
}

func (anonymousService) CreateTask(_ context.Context, in service.TaskInput) (service.Task, error) {
	return service.Task{Name: in.Name}, nil
}

func TestCreate_RejectsTaskWithoutID(t *testing.T) {
	f := newFixture(t, service.Task{ID: "a", Name: "alpha"})
	engine := New(anonymousService{f.svc}, f.local, f.sink, Options{Now: func() time.Time { return fixedNow }})
	_, err := engine.Fetch(context.Background())
	require.NoError(t, err)
	f.sink.ClearAll()

	_, err = engine.Create(context.Background(), service.TaskInput{Name: "ghost"})
	assert.ErrorIs(t, err, ErrMissingID)
	page, ok := engine.Page()
	require.True(t, ok)
	assert.Equal(t, []string{"alpha"}, taskNames(page))
	assert.Equal(t, []string{"error: Failed to create task: server returned a task without id"}, f.messages())
}

func TestUpdate_ReplacesWithServerCopy(t *testing.T) {
	f := newFixture(t, service.Task{ID: "a", Name: "alpha"}, service.Task{ID: "b", Name: "beta"})

	updated, err := f.engine.Update(context.Background(), "b", service.TaskUpdate{
		Name:     service.Value("gamma"),
		Priority: service.Value(service.PriorityHigh),
	})
	require.NoError(t, err)
	assert.Equal(t, fixedNow, updated.UpdatedAt)

	page := f.cached(t)
	assert.Equal(t, []string{"alpha", "gamma"}, taskNames(page))
	assert.Equal(t, service.PriorityHigh, page.Data[1].Priority)
	assert.Equal(t, page, f.local.last(t))
	assert.Equal(t, []string{`info: Task "gamma" updated successfully`}, f.messages())
	assert.Empty(t, f.engine.UpdatingID())
}

func TestDelete_RemovesTask(t *testing.T) {
	f := newFixture(t, service.Task{ID: "a", Name: "alpha"}, service.Task{ID: "b", Name: "beta"})

	require.NoError(t, f.engine.Delete(context.Background(), "a"))
	assert.Equal(t, []string{"beta"}, taskNames(f.cached(t)))
	assert.Equal(t, []string{"beta"}, taskNames(f.local.last(t)))
	assert.Equal(t, []string{"error: Task deleted"}, f.messages())
	assert.Empty(t, f.engine.DeletingID())
}

func TestDelete_FailureKeepsTask(t *testing.T) {
	f := newFixture(t, service.Task{ID: "a", Name: "alpha"})
	f.svc.DeleteTaskErr = errors.New("forbidden")

	err := f.engine.Delete(context.Background(), "a")
	require.Error(t, err)
	assert.Equal(t, []string{"alpha"}, taskNames(f.cached(t)))
	assert.Equal(t, []string{"error: Failed to delete task: forbidden"}, f.messages())
}

func TestToggle_OptimisticBeforeServer(t *testing.T) {
	f := newFixture(t, service.Task{ID: "a", Name: "alpha", Status: service.StatusTodo})
	task, _ := f.cached(t).Find("a")

	var (
		seenCache service.Task
		seenLocal service.Task
		busyErr   error
		updating  string
	)
	f.svc.BeforeUpdate = func(id string, u service.TaskUpdate) {
		seenCache, _ = f.cached(t).Find(id)
		seenLocal, _ = f.local.last(t).Find(id)
		busyErr = f.engine.Delete(context.Background(), id)
		updating = f.engine.UpdatingID()
	}

	got, err := f.engine.Toggle(context.Background(), task)
	require.NoError(t, err)

	assert.Equal(t, service.StatusDone, seenCache.Status)
	require.NotNil(t, seenCache.CompletedAt)
	assert.Equal(t, fixedNow, *seenCache.CompletedAt)
	assert.Equal(t, service.StatusDone, seenLocal.Status)
	assert.ErrorIs(t, busyErr, ErrTaskBusy)
	assert.Equal(t, "a", updating)

	assert.Equal(t, service.StatusDone, got.Status)
	updates := f.svc.Updates()
	require.Len(t, updates, 1)
	assert.Equal(t, service.StatusDone, *updates[0].Update.Status.Value)
	assert.Equal(t, fixedNow, *updates[0].Update.CompletedAt.Value)

	assert.Equal(t, []string{
		`info: Task "alpha" marked as DONE`,
		`info: Task "alpha" updated successfully`,
		"success: Synced successfully",
	}, f.messages())
	assert.False(t, f.engine.Busy("a"))
}

func TestToggle_FailureKeepsLocalState(t *testing.T) {
	f := newFixture(t, service.Task{ID: "a", Name: "alpha", Status: service.StatusTodo})
	task, _ := f.cached(t).Find("a")
	f.svc.UpdateTaskErr = errors.New("offline")

	got, err := f.engine.Toggle(context.Background(), task)
	assert.ErrorIs(t, err, ErrNotSynced)
	assert.Equal(t, service.StatusDone, got.Status)

	cached, _ := f.cached(t).Find("a")
	assert.Equal(t, service.StatusDone, cached.Status)
	assert.NotNil(t, cached.CompletedAt)
	persisted, _ := f.local.last(t).Find("a")
	assert.Equal(t, service.StatusDone, persisted.Status)

	assert.Equal(t, []string{
		`info: Task "alpha" marked as DONE`,
		"warning: Offline update only. Sync will retry later.",
	}, f.messages())
}

func TestToggle_StatusTransitions(t *testing.T) {
	done := fixedNow.Add(-time.Hour)
	tests := []struct {
		name   string
		status service.Status
		want   service.Status
	}{
		{"done to todo", service.StatusDone, service.StatusTodo},
		{"todo to done", service.StatusTodo, service.StatusDone},
		{"in progress to done", service.StatusInProgress, service.StatusDone},
		{"cancelled to done", service.StatusCancelled, service.StatusDone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seed := service.Task{ID: "a", Name: "alpha", Status: tt.status}
			if tt.status == service.StatusDone {
				seed.CompletedAt = &done
			}
			f := newFixture(t, seed)
			task, _ := f.cached(t).Find("a")

			got, err := f.engine.Toggle(context.Background(), task)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Status)
			assert.Equal(t, tt.want == service.StatusDone, got.CompletedAt != nil)
		})
	}
}

func TestToggle_TwiceRestoresOriginal(t *testing.T) {
	done := fixedNow.Add(-time.Hour)
	for _, seed := range []service.Task{
		{ID: "a", Name: "alpha", Status: service.StatusTodo},
		{ID: "a", Name: "alpha", Status: service.StatusDone, CompletedAt: &done},
	} {
		t.Run(string(seed.Status), func(t *testing.T) {
			f := newFixture(t, seed)
			task, _ := f.cached(t).Find("a")

			once, err := f.engine.Toggle(context.Background(), task)
			require.NoError(t, err)
			assert.NotEqual(t, seed.Status, once.Status)

			twice, err := f.engine.Toggle(context.Background(), once)
			require.NoError(t, err)
			assert.Equal(t, seed.Status, twice.Status)
			assert.Equal(t, seed.CompletedAt == nil, twice.CompletedAt == nil)

			cached, _ := f.cached(t).Find("a")
			assert.Equal(t, seed.Status, cached.Status)
			assert.Equal(t, seed.CompletedAt == nil, cached.CompletedAt == nil)
		})
	}
}

func TestUpdate_ReplayIsIdempotent(t *testing.T) {
	f := newFixture(t, service.Task{ID: "a", Name: "alpha"}, service.Task{ID: "b", Name: "beta"})
	u := service.TaskUpdate{Name: service.Value("gamma")}

	_, err := f.engine.Update(context.Background(), "b", u)
	require.NoError(t, err)
	first := f.cached(t)

	_, err = f.engine.Update(context.Background(), "b", u)
	require.NoError(t, err)
	second := f.cached(t)

	assert.Equal(t, first, second)
	assert.Equal(t, []string{"alpha", "gamma"}, taskNames(second))
}

func TestUpdate_EmptyUpdateIsRejected(t *testing.T) {
	f := newFixture(t, service.Task{ID: "a", Name: "alpha"})

	_, err := f.engine.Update(context.Background(), "a", service.TaskUpdate{})
	assert.ErrorIs(t, err, ErrNoChanges)
	assert.Empty(t, f.svc.Updates())
	assert.Empty(t, f.messages())
}

func TestMutation_WithoutCachedPageIsNoop(t *testing.T) {
	svc := testutil.NewFakeService()
	local := &memStore{}
	e := New(svc, local, nil, Options{})

	_, err := e.Create(context.Background(), service.TaskInput{Name: "x"})
	require.NoError(t, err)
	_, ok := e.Page()
	assert.False(t, ok)
	assert.Empty(t, local.saved)
}

func TestEngine_PersistsToSQLiteCache(t *testing.T) {
	sink := notify.NewStore(nil)
	store, err := cache.Open(filepath.Join(t.TempDir(), "cache.db"), sink, nil)
	require.NoError(t, err)
	defer store.Close()

	svc := testutil.NewFakeService()
	svc.AddTask(service.Task{ID: "a", Name: "alpha"})
	e := New(svc, store, sink, Options{})
	ctx := context.Background()

	_, err = e.Fetch(ctx)
	require.NoError(t, err)
	_, err = e.Create(ctx, service.TaskInput{Name: "beta"})
	require.NoError(t, err)

	got := store.Load(ctx)
	require.NotNil(t, got)
	assert.Equal(t, []string{"beta", "alpha"}, taskNames(got.Page))
}
