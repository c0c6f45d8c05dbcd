// Package tasksync refreshes the local cache when connectivity returns.
package tasksync

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"tasky/internal/connectivity"
	"tasky/internal/logging"
	"tasky/internal/notify"
	"tasky/internal/service"
)

// ErrSyncInProgress is returned by Sync while another sync is running.
var ErrSyncInProgress = errors.New("sync already in progress")

// SyncQuery is the page fetched by every sync: page 1, default limit, no filters.
var SyncQuery = service.Query{Page: 1, Limit: service.DefaultLimit}

// Saver persists a fetched page as the answer to q.
type Saver interface {
	Save(ctx context.Context, q service.Query, page service.TaskPage)
}

// Engine tracks connectivity and syncs on reconnect.
type Engine struct {
	svc    service.Service
	local  Saver
	sink   notify.Sink
	logger *zap.Logger

	mu      sync.Mutex
	online  bool
	syncing bool
}

// New creates an Engine. The client starts out online.
func New(svc service.Service, local Saver, sink notify.Sink, logger *zap.Logger) *Engine {
	if sink == nil {
		sink = notify.Discard
	}
	return &Engine{
		svc:    svc,
		local:  local,
		sink:   sink,
		logger: logging.OrNop(logger),
		online: true,
	}
}

// Online reports the last known connectivity.
func (e *Engine) Online() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.online
}

// Syncing reports whether a sync is running.
func (e *Engine) Syncing() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.syncing
}

// HandleEvent records ev. Coming back online after being offline triggers
// a sync; an online event while already online does nothing.
func (e *Engine) HandleEvent(ctx context.Context, ev connectivity.Event) error {
	e.mu.Lock()
	was := e.online
	e.online = ev == connectivity.Online
	e.mu.Unlock()

	e.logger.Debug("connectivity event", zap.Stringer("event", ev), zap.Bool("was_online", was))
	if ev != connectivity.Online || was {
		return nil
	}
	return e.Sync(ctx)
}

// Run handles events until ctx is done or events is closed. Sync failures
// are reported through notifications and do not stop the loop.
func (e *Engine) Run(ctx context.Context, events <-chan connectivity.Event) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if err := e.HandleEvent(ctx, ev); err != nil {
				e.logger.Debug("sync failed", zap.Error(err))
			}
		}
	}
}

// Sync fetches the first page and overwrites the local cache with it.
// On failure the cache is left untouched.
func (e *Engine) Sync(ctx context.Context) error {
	e.mu.Lock()
	if e.syncing {
		e.mu.Unlock()
		return ErrSyncInProgress
	}
	e.syncing = true
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		e.syncing = false
		e.mu.Unlock()
	}()

	e.sink.Notify(notify.Info, "Reconnecting… Syncing tasks")
	page, err := e.svc.ListTasks(ctx, SyncQuery)
	if err != nil {
		e.sink.Notify(notify.Error, fmt.Sprintf("Failed to sync tasks: %v", err))
		return err
	}

	e.local.Save(ctx, SyncQuery, page)
	e.logger.Debug("sync complete", zap.Int("tasks", len(page.Data)))
	e.sink.Notify(notify.Success, "Tasks synced successfully")
	return nil
}
