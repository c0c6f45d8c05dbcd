// Package ops performs task mutations and keeps the in-memory query cache
// and the local cache in step with the server.
//
// Create, update and delete change local state only after the server
// confirms them. Toggle is optimistic: the new status is cached and
// persisted first, and a failed server update does not roll it back.
package ops

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"tasky/internal/logging"
	"tasky/internal/notify"
	"tasky/internal/querycache"
	"tasky/internal/service"
)

var (
	// ErrTaskBusy is returned when another operation on the same task is in progress.
	ErrTaskBusy = errors.New("task has an operation in progress")

	// ErrNotSynced is returned by Toggle when the local change was kept but
	// the server update failed.
	ErrNotSynced = errors.New("change saved locally only")

	// ErrEmptyName is returned when a task name is blank.
	ErrEmptyName = errors.New("task name is required")

	// ErrNoChanges is returned by Update when the update sets no field.
	ErrNoChanges = errors.New("nothing to change")

	// ErrMissingID is returned when the server answers with a task that has
	// no id. Such a task is never cached.
	ErrMissingID = errors.New("server returned a task without id")
)

// LocalStore persists the active page, keyed by its query, between runs.
type LocalStore interface {
	Save(ctx context.Context, q service.Query, page service.TaskPage)
	Load(ctx context.Context) *service.Snapshot
}

// Options configures an Engine.
type Options struct {
	// Query is the active page. Zero means page 1 with the default limit.
	Query service.Query

	// Cache is shared with other readers of the query cache. Nil creates one.
	Cache *querycache.Cache

	Logger *zap.Logger

	// Now stamps optimistic changes. Nil means time.Now.
	Now func() time.Time
}

// FetchResult is the outcome of Fetch.
type FetchResult struct {
	Page service.TaskPage

	// FromCache is set when the server could not be reached and Page was
	// read from the local cache.
	FromCache bool
}

// Engine runs task operations against one active query.
type Engine struct {
	svc    service.Service
	local  LocalStore
	sink   notify.Sink
	cache  *querycache.Cache
	logger *zap.Logger
	now    func() time.Time

	mu       sync.Mutex
	query    service.Query
	inflight map[string]struct{}
	updating string
	deleting string
	editing  string
	drafts   map[string]Draft
}

// New creates an Engine.
func New(svc service.Service, local LocalStore, sink notify.Sink, opts Options) *Engine {
	if sink == nil {
		sink = notify.Discard
	}
	e := &Engine{
		svc:      svc,
		local:    local,
		sink:     sink,
		cache:    opts.Cache,
		logger:   logging.OrNop(opts.Logger),
		now:      opts.Now,
		query:    opts.Query.Normalize(),
		inflight: make(map[string]struct{}),
		drafts:   make(map[string]Draft),
	}
	if e.cache == nil {
		e.cache = querycache.New()
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e
}

// Query returns the active query.
func (e *Engine) Query() service.Query {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.query
}

// Page returns the cached page of the active query.
func (e *Engine) Page() (service.TaskPage, bool) {
	return e.cache.Get(e.Query())
}

// UpdatingID returns the id of the task being updated, or "".
func (e *Engine) UpdatingID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.updating
}

// DeletingID returns the id of the task being deleted, or "".
func (e *Engine) DeletingID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.deleting
}

// Busy reports whether an operation on id is in progress.
func (e *Engine) Busy(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.inflight[id]
	return ok
}

// Fetch loads the active page from the server into the caches. When the
// server fails and the local copy answers the same query, the local copy is
// served instead. A rejected session is never papered over and drops the
// page held in memory.
func (e *Engine) Fetch(ctx context.Context) (FetchResult, error) {
	q := e.Query()
	page, err := e.svc.ListTasks(ctx, q)
	if err != nil {
		if errors.Is(err, service.ErrUnauthorized) {
			e.cache.Invalidate(q)
			return FetchResult{}, err
		}
		cached := e.local.Load(context.WithoutCancel(ctx))
		if cached == nil || !cached.Answers(q) {
			e.logger.Debug("fetch failed, no local copy of this page", zap.Error(err))
			return FetchResult{}, err
		}
		e.logger.Debug("fetch failed, serving local copy", zap.Error(err))
		e.cache.Set(q, cached.Page)
		e.sink.Notify(notify.Warning, fmt.Sprintf("Showing cached tasks: %v", err))
		return FetchResult{Page: cached.Page, FromCache: true}, nil
	}

	e.cache.Replace(q, page, e.persist(ctx))
	return FetchResult{Page: page}, nil
}

// Create creates a task on the server and prepends it to the active page.
func (e *Engine) Create(ctx context.Context, in service.TaskInput) (service.Task, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return service.Task{}, ErrEmptyName
	}

	created, err := e.svc.CreateTask(ctx, in)
	if err == nil && created.ID == "" {
		err = ErrMissingID
	}
	if err != nil {
		e.sink.Notify(notify.Error, fmt.Sprintf("Failed to create task: %v", err))
		return service.Task{}, err
	}

	now := e.now().UTC()
	if created.CreatedAt.IsZero() {
		created.CreatedAt = now
	}
	if created.UpdatedAt.IsZero() {
		created.UpdatedAt = now
	}

	e.mutate(ctx, func(tasks []service.Task) []service.Task {
		return append([]service.Task{created}, tasks...)
	})
	e.sink.Notify(notify.Success, fmt.Sprintf("Task %q created successfully", created.Name))
	return created, nil
}

// Update applies u on the server and replaces the cached task with the
// server's copy.
func (e *Engine) Update(ctx context.Context, id string, u service.TaskUpdate) (service.Task, error) {
	if u.IsEmpty() {
		return service.Task{}, ErrNoChanges
	}
	if err := e.acquire(id); err != nil {
		return service.Task{}, err
	}
	defer e.release(id)

	e.setUpdating(id)
	defer e.setUpdating("")

	updated, err := e.update(ctx, id, u)
	if err != nil {
		e.sink.Notify(notify.Error, fmt.Sprintf("Failed to update task: %v", err))
		return service.Task{}, err
	}
	return updated, nil
}

func (e *Engine) update(ctx context.Context, id string, u service.TaskUpdate) (service.Task, error) {
	updated, err := e.svc.UpdateTask(ctx, id, u)
	if err != nil {
		return service.Task{}, err
	}
	if updated.ID == "" {
		return service.Task{}, ErrMissingID
	}
	e.mutate(ctx, func(tasks []service.Task) []service.Task {
		for i := range tasks {
			if tasks[i].ID == updated.ID {
				tasks[i] = updated
			}
		}
		return tasks
	})
	e.sink.Notify(notify.Info, fmt.Sprintf("Task %q updated successfully", updated.Name))
	return updated, nil
}

// Delete deletes the task on the server and removes it from the active page.
func (e *Engine) Delete(ctx context.Context, id string) error {
	if err := e.acquire(id); err != nil {
		return err
	}
	defer e.release(id)

	e.mu.Lock()
	e.deleting = id
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		e.deleting = ""
		e.mu.Unlock()
	}()

	if err := e.svc.DeleteTask(ctx, id); err != nil {
		e.sink.Notify(notify.Error, fmt.Sprintf("Failed to delete task: %v", err))
		return err
	}

	e.mutate(ctx, func(tasks []service.Task) []service.Task {
		kept := tasks[:0]
		for _, t := range tasks {
			if t.ID != id {
				kept = append(kept, t)
			}
		}
		return kept
	})
	// Error severity draws attention to the removal.
	e.sink.Notify(notify.Error, "Task deleted")
	return nil
}

// Toggle flips task between DONE and TODO. The change is cached and
// persisted before the server is called and is kept if the server update
// fails; ErrNotSynced is returned in that case along with the local task.
func (e *Engine) Toggle(ctx context.Context, task service.Task) (service.Task, error) {
	if err := e.acquire(task.ID); err != nil {
		return service.Task{}, err
	}
	defer e.release(task.ID)

	status := service.StatusDone
	var completedAt *time.Time
	if task.Status == service.StatusDone {
		status = service.StatusTodo
	} else {
		now := e.now().UTC()
		completedAt = &now
	}

	local := task
	local.Status = status
	local.CompletedAt = completedAt
	e.mutate(ctx, func(tasks []service.Task) []service.Task {
		for i := range tasks {
			if tasks[i].ID == task.ID {
				tasks[i].Status = status
				tasks[i].CompletedAt = completedAt
			}
		}
		return tasks
	})
	e.sink.Notify(notify.Info, fmt.Sprintf("Task %q marked as %s", task.Name, status))

	e.setUpdating(task.ID)
	defer e.setUpdating("")

	updated, err := e.update(ctx, task.ID, service.TaskUpdate{
		Status:      service.Value(status),
		CompletedAt: service.FromPtr(completedAt),
	})
	if err != nil {
		e.logger.Debug("toggle not synced", zap.String("task", task.ID), zap.Error(err))
		e.sink.Notify(notify.Warning, "Offline update only. Sync will retry later.")
		return local, fmt.Errorf("%w: %w", ErrNotSynced, err)
	}
	e.sink.Notify(notify.Success, "Synced successfully")
	return updated, nil
}

// mutate rewrites the active page's task list and persists the result
// while the page is still locked. Nothing happens when no page is cached.
func (e *Engine) mutate(ctx context.Context, fn func([]service.Task) []service.Task) {
	if _, ok := e.cache.Update(e.Query(), fn, e.persist(ctx)); !ok {
		e.logger.Debug("no cached page to update")
	}
}

// persist saves committed pages even when ctx was cancelled after the
// server call completed.
func (e *Engine) persist(ctx context.Context) func(service.TaskPage) {
	ctx = context.WithoutCancel(ctx)
	q := e.Query()
	return func(p service.TaskPage) {
		e.local.Save(ctx, q, p)
	}
}

func (e *Engine) acquire(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, busy := e.inflight[id]; busy {
		return ErrTaskBusy
	}
	e.inflight[id] = struct{}{}
	return nil
}

func (e *Engine) release(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.inflight, id)
}

func (e *Engine) setUpdating(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.updating = id
}
