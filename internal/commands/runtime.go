package commands

import (
	"errors"

	"go.uber.org/zap"

	"tasky/internal/auth"
	"tasky/internal/cache"
	"tasky/internal/config"
	"tasky/internal/connectivity"
	"tasky/internal/logging"
	"tasky/internal/notify"
	"tasky/internal/ops"
	"tasky/internal/prompt"
	"tasky/internal/querycache"
	"tasky/internal/service"
	"tasky/internal/session"
	"tasky/internal/tasksync"
)

// Backend is everything commands need from the API.
type Backend interface {
	service.Service
	service.AuthService
	connectivity.Pinger
}

// RuntimeOptions are the optional parts of a Runtime.
type RuntimeOptions struct {
	Logger *zap.Logger

	// Session defaults to an in-memory store.
	Session *session.Store

	// Cache defaults to an unavailable store.
	Cache *cache.Store

	// Notes defaults to a store without listener.
	Notes *notify.Store

	// Prompt is required by login and signup only.
	Prompt prompt.Prompter
}

// Runtime holds the process-scoped state shared by a command run.
type Runtime struct {
	Config  *config.Config
	Logger  *zap.Logger
	Session *session.Store
	Backend Backend
	Cache   *cache.Store
	Notes   *notify.Store
	Prompt  prompt.Prompter
	Auth    *auth.Manager
	Sync    *tasksync.Engine

	queries *querycache.Cache
}

// NewRuntime wires the engines around backend.
func NewRuntime(cfg *config.Config, backend Backend, opts RuntimeOptions) *Runtime {
	rt := &Runtime{
		Config:  cfg,
		Logger:  logging.OrNop(opts.Logger),
		Session: opts.Session,
		Backend: backend,
		Cache:   opts.Cache,
		Notes:   opts.Notes,
		Prompt:  opts.Prompt,
		queries: querycache.New(),
	}
	if rt.Session == nil {
		rt.Session = session.New()
	}
	if rt.Notes == nil {
		rt.Notes = notify.NewStore(nil)
	}
	if rt.Cache == nil {
		rt.Cache = cache.Unavailable(errors.New("local cache disabled"), rt.Notes, rt.Logger)
	}
	rt.Auth = auth.New(backend, rt.Session, rt.Cache, rt.Logger)
	rt.Sync = tasksync.New(backend, rt.Cache, rt.Notes, rt.Logger)
	return rt
}

// Ops returns an operations engine bound to q. Engines created by the same
// runtime share one query cache.
func (rt *Runtime) Ops(q service.Query) *ops.Engine {
	return ops.New(rt.Backend, rt.Cache, rt.Notes, ops.Options{
		Query:  q,
		Cache:  rt.queries,
		Logger: rt.Logger,
	})
}

// Query builds a page query, using the configured page size when limit is 0.
func (rt *Runtime) Query(page, limit int, status, search string) service.Query {
	if limit <= 0 && rt.Config != nil {
		limit = rt.Config.Settings.PageLimit
	}
	return service.Query{Page: page, Limit: limit, Status: status, Search: search}.Normalize()
}

// Close releases the local cache.
func (rt *Runtime) Close() error {
	if rt.Cache == nil {
		return nil
	}
	return rt.Cache.Close()
}

// quiet reports whether informational output is suppressed.
func (rt *Runtime) quiet() bool {
	return rt.Config != nil && rt.Config.Quiet
}
