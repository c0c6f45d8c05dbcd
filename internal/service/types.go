// Package service defines the backend-agnostic interface for task operations.
package service

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// DefaultLimit is the page size used when a query does not set one.
const DefaultLimit = 10

// Priority is a task priority level.
type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
)

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// ParsePriority parses a priority name case-insensitively.
func ParsePriority(s string) (Priority, error) {
	p := Priority(strings.ToUpper(strings.TrimSpace(s)))
	if !p.Valid() {
		return "", fmt.Errorf("invalid priority: %s", s)
	}
	return p, nil
}

// Status is a task workflow status.
type Status string

const (
	StatusTodo       Status = "TODO"
	StatusInProgress Status = "IN_PROGRESS"
	StatusDone       Status = "DONE"
	StatusCancelled  Status = "CANCELLED"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusDone, StatusCancelled:
		return true
	}
	return false
}

// ParseStatus parses a status name case-insensitively.
// Dashes and spaces are accepted in place of underscores ("in-progress").
func ParseStatus(s string) (Status, error) {
	norm := strings.ToUpper(strings.TrimSpace(s))
	norm = strings.NewReplacer("-", "_", " ", "_").Replace(norm)
	st := Status(norm)
	if !st.Valid() {
		return "", fmt.Errorf("invalid status: %s", s)
	}
	return st, nil
}

// User is the authenticated account.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Children holds the ids of a task's subtasks.
// The API sends either a single id or a list of ids.
type Children []string

// UnmarshalJSON accepts null, a single id string, or a list of ids.
func (c *Children) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*c = nil
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var id string
		if err := json.Unmarshal(data, &id); err != nil {
			return err
		}
		if id == "" {
			*c = nil
			return nil
		}
		*c = Children{id}
		return nil
	}
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return fmt.Errorf("children: %w", err)
	}
	*c = ids
	return nil
}

// Task represents a single task item.
type Task struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description *string    `json:"description"`
	Priority    Priority   `json:"priority"`
	Status      Status     `json:"status"`
	Archived    bool       `json:"archived"`
	ParentID    *string    `json:"parentId"`
	Children    Children   `json:"children"`
	Tags        *string    `json:"tags"`
	CompletedAt *time.Time `json:"completedAt"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// PageMeta is the pagination block of a task listing.
type PageMeta struct {
	Total           int  `json:"total"`
	Page            int  `json:"page"`
	Limit           int  `json:"limit"`
	TotalPages      int  `json:"totalPages"`
	HasNextPage     bool `json:"hasNextPage"`
	HasPreviousPage bool `json:"hasPreviousPage"`
}

// TaskPage is one page of tasks as returned by the list endpoint.
// It is also the unit stored in the query cache and the local cache.
type TaskPage struct {
	Data []Task   `json:"data"`
	Meta PageMeta `json:"meta"`
}

// FirstRow returns the absolute row number of the first task on p, counting
// across pages. q is used when the server left the meta block empty.
func (p TaskPage) FirstRow(q Query) int {
	page, limit := p.Meta.Page, p.Meta.Limit
	if page < 1 || limit < 1 {
		q = q.Normalize()
		page, limit = q.Page, q.Limit
	}
	return (page-1)*limit + 1
}

// Snapshot is a page together with the query it answers.
type Snapshot struct {
	Query Query    `json:"query"`
	Page  TaskPage `json:"page"`
}

// Answers reports whether s holds the page for q.
func (s Snapshot) Answers(q Query) bool {
	return s.Query.Normalize() == q.Normalize()
}

// WithData returns a copy of p carrying data. p is left untouched.
func (p TaskPage) WithData(data []Task) TaskPage {
	return TaskPage{Data: data, Meta: p.Meta}
}

// Find returns the task with the given id.
func (p TaskPage) Find(id string) (Task, bool) {
	for _, t := range p.Data {
		if t.ID == id {
			return t, true
		}
	}
	return Task{}, false
}

// Query selects one page of tasks.
type Query struct {
	Page   int    `json:"page"`
	Limit  int    `json:"limit"`
	Status string `json:"status,omitempty"`
	Search string `json:"search,omitempty"`
}

// Normalize fills defaults and canonicalizes filters so that equivalent
// queries compare equal. A status of "ALL" means no status filter.
func (q Query) Normalize() Query {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = DefaultLimit
	}
	q.Status = strings.ToUpper(strings.TrimSpace(q.Status))
	if q.Status == "ALL" {
		q.Status = ""
	}
	q.Search = strings.TrimSpace(q.Search)
	return q
}

// Values encodes q as URL query parameters. Empty filters are omitted.
func (q Query) Values() url.Values {
	q = q.Normalize()
	v := url.Values{}
	v.Set("page", strconv.Itoa(q.Page))
	v.Set("limit", strconv.Itoa(q.Limit))
	if q.Status != "" {
		v.Set("status", q.Status)
	}
	if q.Search != "" {
		v.Set("search", q.Search)
	}
	return v
}

// TaskInput is the payload for creating a task.
type TaskInput struct {
	Name        string   `json:"name"`
	Description *string  `json:"description,omitempty"`
	Priority    Priority `json:"priority,omitempty"`
	Status      Status   `json:"status,omitempty"`
	Tags        *string  `json:"tags,omitempty"`
	ParentID    *string  `json:"parentId,omitempty"`
}

// Credentials is the login payload.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignupForm is the registration payload.
// ConfirmPassword is checked locally and never sent.
type SignupForm struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"-"`
}

// AuthResult is returned by login and registration.
type AuthResult struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	User         *User  `json:"user"`

	// ExpiresIn is the access token lifetime in seconds. Zero means the
	// server did not say.
	ExpiresIn int `json:"expiresIn,omitempty"`
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}
