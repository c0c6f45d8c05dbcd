// Package service defines the backend-agnostic interface for task operations.
package service

import (
	"context"
	"errors"
)

// ErrUnauthorized matches errors meaning the session was rejected or has
// ended. Backends make their errors match it with errors.Is.
var ErrUnauthorized = errors.New("unauthorized")

// Service defines the interface for task backend operations.
// All task API calls go through this interface.
// Engines and commands never build HTTP requests directly.
type Service interface {
	// ListTasks returns one page of tasks matching q.
	ListTasks(ctx context.Context, q Query) (TaskPage, error)

	// GetTask returns a single task by id.
	GetTask(ctx context.Context, id string) (Task, error)

	// CreateTask creates a task and returns the stored copy.
	CreateTask(ctx context.Context, in TaskInput) (Task, error)

	// UpdateTask applies a partial update and returns the stored copy.
	UpdateTask(ctx context.Context, id string, u TaskUpdate) (Task, error)

	// DeleteTask deletes a task.
	DeleteTask(ctx context.Context, id string) error
}

// AuthService defines the account endpoints.
type AuthService interface {
	// Login exchanges credentials for a session.
	Login(ctx context.Context, creds Credentials) (AuthResult, error)

	// Register creates an account and returns its first session.
	Register(ctx context.Context, form SignupForm) (AuthResult, error)

	// Me returns the profile of the authenticated user.
	Me(ctx context.Context) (User, error)
}
