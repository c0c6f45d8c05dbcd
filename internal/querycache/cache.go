// Package querycache keeps fetched task pages in memory, keyed by query.
//
// Writes to one key are serialized: Update runs its transform and commit
// under the key's lock, so a transform never reads a page that a concurrent
// writer is about to replace.
package querycache

import (
	"sync"

	"tasky/internal/service"
)

// Cache maps normalized queries to task pages.
type Cache struct {
	mu      sync.Mutex
	entries map[service.Query]*entry
}

type entry struct {
	mu   sync.Mutex
	page *service.TaskPage
}

// New creates an empty cache.
func New() *Cache {
	return &Cache{entries: make(map[service.Query]*entry)}
}

func (c *Cache) entry(q service.Query) *entry {
	q = q.Normalize()
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[q]
	if !ok {
		e = &entry{}
		c.entries[q] = e
	}
	return e
}

// Get returns the page cached for q.
func (c *Cache) Get(q service.Query) (service.TaskPage, bool) {
	e := c.entry(q)
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.page == nil {
		return service.TaskPage{}, false
	}
	return *e.page, true
}

// Set replaces the page cached for q.
func (c *Cache) Set(q service.Query, page service.TaskPage) {
	c.Replace(q, page, nil)
}

// Replace is Set with a commit hook that runs before the key is unlocked.
func (c *Cache) Replace(q service.Query, page service.TaskPage, commit func(service.TaskPage)) {
	e := c.entry(q)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.page = &page
	if commit != nil {
		commit(page)
	}
}

// Update replaces the task list cached for q with fn applied to it. The
// page meta is kept. commit, if non-nil, receives the new page before the
// key is unlocked. Update is a no-op when nothing is cached for q.
func (c *Cache) Update(q service.Query, fn func([]service.Task) []service.Task, commit func(service.TaskPage)) (service.TaskPage, bool) {
	e := c.entry(q)
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.page == nil {
		return service.TaskPage{}, false
	}

	// fn gets its own copy; the previous page is never mutated in place.
	old := make([]service.Task, len(e.page.Data))
	copy(old, e.page.Data)

	next := e.page.WithData(fn(old))
	e.page = &next
	if commit != nil {
		commit(next)
	}
	return next, true
}

// Invalidate drops the page cached for q.
func (c *Cache) Invalidate(q service.Query) {
	e := c.entry(q)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.page = nil
}
