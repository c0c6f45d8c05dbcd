package ops

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"tasky/internal/notify"
	"tasky/internal/service"
)

// ErrNoDraft is returned by SaveEdit when the task is not being edited.
var ErrNoDraft = errors.New("no edit in progress for task")

// Field names a draft field.
type Field string

const (
	FieldName        Field = "name"
	FieldDescription Field = "description"
	FieldTags        Field = "tags"
	FieldPriority    Field = "priority"
	FieldStatus      Field = "status"
)

// Draft holds unsaved edits of one task.
type Draft struct {
	Name        string
	Description string
	Tags        string
	Priority    service.Priority
	Status      service.Status
}

// StartEdit opens a draft for task and marks it as the task being edited.
func (e *Engine) StartEdit(task service.Task) Draft {
	d := Draft{
		Name:     task.Name,
		Priority: task.Priority,
		Status:   task.Status,
	}
	if task.Description != nil {
		d.Description = *task.Description
	}
	if task.Tags != nil {
		d.Tags = *task.Tags
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.editing = task.ID
	e.drafts[task.ID] = d
	return d
}

// EditingID returns the id of the task being edited, or "".
func (e *Engine) EditingID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.editing
}

// Draft returns the draft of id.
func (e *Engine) Draft(id string) (Draft, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	d, ok := e.drafts[id]
	return d, ok
}

// ChangeField sets one field of the draft of id, creating the draft if
// needed. Priority and status values are parsed case-insensitively.
func (e *Engine) ChangeField(id string, field Field, value string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	d := e.drafts[id]

	switch field {
	case FieldName:
		d.Name = value
	case FieldDescription:
		d.Description = value
	case FieldTags:
		d.Tags = value
	case FieldPriority:
		p, err := service.ParsePriority(value)
		if err != nil {
			return err
		}
		d.Priority = p
	case FieldStatus:
		s, err := service.ParseStatus(value)
		if err != nil {
			return err
		}
		d.Status = s
	default:
		return fmt.Errorf("unknown field: %s", field)
	}

	e.drafts[id] = d
	return nil
}

// SaveEdit sends the draft of id to the server. On success the draft is
// discarded; on failure it is kept so the edit can be retried.
func (e *Engine) SaveEdit(ctx context.Context, id string) (service.Task, error) {
	d, ok := e.Draft(id)
	if !ok {
		return service.Task{}, ErrNoDraft
	}
	if strings.TrimSpace(d.Name) == "" {
		return service.Task{}, ErrEmptyName
	}

	if err := e.acquire(id); err != nil {
		return service.Task{}, err
	}
	defer e.release(id)

	e.setUpdating(id)
	defer e.setUpdating("")

	updated, err := e.update(ctx, id, d.update())
	if err != nil {
		e.sink.Notify(notify.Error, "Failed to save task changes.")
		return service.Task{}, err
	}

	e.mu.Lock()
	delete(e.drafts, id)
	if e.editing == id {
		e.editing = ""
	}
	e.mu.Unlock()
	return updated, nil
}

// CancelEdit discards the draft of the task being edited.
func (e *Engine) CancelEdit() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.editing == "" {
		return
	}
	delete(e.drafts, e.editing)
	e.editing = ""
}

// update builds the server payload. Blank description and tags clear the
// stored value.
func (d Draft) update() service.TaskUpdate {
	u := service.TaskUpdate{
		Name:        service.Value(strings.TrimSpace(d.Name)),
		Description: optionalText(d.Description),
		Tags:        optionalText(d.Tags),
	}
	if d.Priority != "" {
		u.Priority = service.Value(d.Priority)
	}
	if d.Status != "" {
		u.Status = service.Value(d.Status)
	}
	return u
}

func optionalText(s string) service.Field[string] {
	s = strings.TrimSpace(s)
	if s == "" {
		return service.Null[string]()
	}
	return service.Value(s)
}
