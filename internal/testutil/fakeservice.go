// Package testutil provides testing utilities.
package testutil

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"tasky/internal/service"
)

// ErrNotFound is returned when a resource is not found.
var ErrNotFound = errors.New("not found")

// ErrInvalidCredentials is returned by Login for an unknown email or a wrong password.
var ErrInvalidCredentials = errors.New("invalid credentials")

// UpdateCall records one UpdateTask call.
type UpdateCall struct {
	ID     string
	Update service.TaskUpdate
}

// FakeService is an in-memory implementation of service.Service and
// service.AuthService for testing.
type FakeService struct {
	mu       sync.RWMutex
	tasks    []service.Task
	nextID   int
	accounts map[string]fakeAccount
	me       *service.User
	pingErr  error

	listQueries []service.Query
	updates     []UpdateCall
	deletes     []string

	// Now stamps created and updated tasks.
	Now func() time.Time

	// OmitTimestamps makes CreateTask return zero createdAt/updatedAt.
	OmitTimestamps bool

	// BeforeUpdate, if set, runs at the start of UpdateTask.
	BeforeUpdate func(id string, u service.TaskUpdate)

	// Error injection for testing
	ListTasksErr  error
	GetTaskErr    error
	CreateTaskErr error
	UpdateTaskErr error
	DeleteTaskErr error
	LoginErr      error
	RegisterErr   error
	MeErr         error
}

type fakeAccount struct {
	user     service.User
	password string
}

// NewFakeService creates an empty FakeService.
func NewFakeService() *FakeService {
	return &FakeService{
		accounts: make(map[string]fakeAccount),
		Now:      time.Now,
	}
}

// AddTask adds a task. The task is given an id if it has none and is
// placed first, matching the newest-first order of the API.
func (f *FakeService) AddTask(t service.Task) service.Task {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t.ID == "" {
		f.nextID++
		t.ID = fmt.Sprintf("task-%d", f.nextID)
	}
	if t.Status == "" {
		t.Status = service.StatusTodo
	}
	if t.Priority == "" {
		t.Priority = service.PriorityMedium
	}
	f.tasks = append([]service.Task{t}, f.tasks...)
	return t
}

// AddUser registers an account for Login.
func (f *FakeService) AddUser(name, email, password string) service.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := service.User{ID: fmt.Sprintf("user-%d", len(f.accounts)+1), Name: name, Email: email}
	f.accounts[email] = fakeAccount{user: u, password: password}
	return u
}

// Tasks returns a copy of the stored tasks.
func (f *FakeService) Tasks() []service.Task {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]service.Task, len(f.tasks))
	copy(out, f.tasks)
	return out
}

// ListQueries returns the queries ListTasks was called with.
func (f *FakeService) ListQueries() []service.Query {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]service.Query(nil), f.listQueries...)
}

// Updates returns the recorded UpdateTask calls.
func (f *FakeService) Updates() []UpdateCall {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]UpdateCall(nil), f.updates...)
}

// Deletes returns the ids passed to DeleteTask.
func (f *FakeService) Deletes() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]string(nil), f.deletes...)
}

// ListTasks implements service.Service.
func (f *FakeService) ListTasks(ctx context.Context, q service.Query) (service.TaskPage, error) {
	f.mu.Lock()
	f.listQueries = append(f.listQueries, q)
	f.mu.Unlock()

	if f.ListTasksErr != nil {
		return service.TaskPage{}, f.ListTasksErr
	}

	q = q.Normalize()
	f.mu.RLock()
	defer f.mu.RUnlock()

	var matched []service.Task
	for _, t := range f.tasks {
		if q.Status != "" && string(t.Status) != q.Status {
			continue
		}
		if q.Search != "" && !strings.Contains(strings.ToLower(t.Name), strings.ToLower(q.Search)) {
			continue
		}
		matched = append(matched, t)
	}
	return Paginate(matched, q), nil
}

// GetTask implements service.Service.
func (f *FakeService) GetTask(ctx context.Context, id string) (service.Task, error) {
	if f.GetTaskErr != nil {
		return service.Task{}, f.GetTaskErr
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, t := range f.tasks {
		if t.ID == id {
			return t, nil
		}
	}
	return service.Task{}, ErrNotFound
}

// CreateTask implements service.Service.
func (f *FakeService) CreateTask(ctx context.Context, in service.TaskInput) (service.Task, error) {
	if f.CreateTaskErr != nil {
		return service.Task{}, f.CreateTaskErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextID++
	t := service.Task{
		ID:          fmt.Sprintf("task-%d", f.nextID),
		Name:        in.Name,
		Description: in.Description,
		Priority:    in.Priority,
		Status:      in.Status,
		Tags:        in.Tags,
		ParentID:    in.ParentID,
	}
	if t.Priority == "" {
		t.Priority = service.PriorityMedium
	}
	if t.Status == "" {
		t.Status = service.StatusTodo
	}
	if !f.OmitTimestamps {
		now := f.Now().UTC()
		t.CreatedAt = now
		t.UpdatedAt = now
	}
	f.tasks = append([]service.Task{t}, f.tasks...)
	return t, nil
}

// UpdateTask implements service.Service.
func (f *FakeService) UpdateTask(ctx context.Context, id string, u service.TaskUpdate) (service.Task, error) {
	if f.BeforeUpdate != nil {
		f.BeforeUpdate(id, u)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, UpdateCall{ID: id, Update: u})

	if f.UpdateTaskErr != nil {
		return service.Task{}, f.UpdateTaskErr
	}
	for i, t := range f.tasks {
		if t.ID == id {
			t = u.Apply(t)
			t.UpdatedAt = f.Now().UTC()
			f.tasks[i] = t
			return t, nil
		}
	}
	return service.Task{}, ErrNotFound
}

// DeleteTask implements service.Service.
func (f *FakeService) DeleteTask(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, id)

	if f.DeleteTaskErr != nil {
		return f.DeleteTaskErr
	}
	for i, t := range f.tasks {
		if t.ID == id {
			f.tasks = append(f.tasks[:i], f.tasks[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

// Login implements service.AuthService.
func (f *FakeService) Login(ctx context.Context, creds service.Credentials) (service.AuthResult, error) {
	if f.LoginErr != nil {
		return service.AuthResult{}, f.LoginErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.accounts[creds.Email]
	if !ok || a.password != creds.Password {
		return service.AuthResult{}, ErrInvalidCredentials
	}
	return f.issueLocked(a.user), nil
}

// Register implements service.AuthService.
func (f *FakeService) Register(ctx context.Context, form service.SignupForm) (service.AuthResult, error) {
	if f.RegisterErr != nil {
		return service.AuthResult{}, f.RegisterErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.accounts[form.Email]; exists {
		return service.AuthResult{}, errors.New("email already registered")
	}
	u := service.User{ID: fmt.Sprintf("user-%d", len(f.accounts)+1), Name: form.Name, Email: form.Email}
	f.accounts[form.Email] = fakeAccount{user: u, password: form.Password}
	return f.issueLocked(u), nil
}

func (f *FakeService) issueLocked(u service.User) service.AuthResult {
	f.me = &u
	return service.AuthResult{
		AccessToken:  "access-" + u.ID,
		RefreshToken: "refresh-" + u.ID,
		User:         &u,
	}
}

// Me implements service.AuthService. It returns the last user to log in
// or register.
func (f *FakeService) Me(ctx context.Context) (service.User, error) {
	if f.MeErr != nil {
		return service.User{}, f.MeErr
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.me == nil {
		return service.User{}, ErrNotFound
	}
	return *f.me, nil
}

// SetPingErr makes Ping fail with err until it is reset with nil.
func (f *FakeService) SetPingErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pingErr = err
}

// Ping reports the error set with SetPingErr.
func (f *FakeService) Ping(ctx context.Context) error {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.pingErr
}
