package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"tasky/internal/service"
)

// ListTasks implements service.Service.
func (c *Client) ListTasks(ctx context.Context, q service.Query) (service.TaskPage, error) {
	var page service.TaskPage
	req := &request{method: http.MethodGet, path: "/tasks", query: q.Values()}
	if err := c.do(ctx, req, &page); err != nil {
		return service.TaskPage{}, err
	}
	for i, t := range page.Data {
		if t.ID == "" {
			return service.TaskPage{}, fmt.Errorf("%w: task %d without id", ErrInvalidResponse, i)
		}
	}
	if page.Data == nil {
		page.Data = []service.Task{}
	}
	return page, nil
}

// GetTask implements service.Service.
func (c *Client) GetTask(ctx context.Context, id string) (service.Task, error) {
	return c.taskCall(ctx, &request{method: http.MethodGet, path: taskPath(id)})
}

// CreateTask implements service.Service.
func (c *Client) CreateTask(ctx context.Context, in service.TaskInput) (service.Task, error) {
	return c.taskCall(ctx, &request{method: http.MethodPost, path: "/tasks", body: in})
}

// UpdateTask implements service.Service.
func (c *Client) UpdateTask(ctx context.Context, id string, u service.TaskUpdate) (service.Task, error) {
	return c.taskCall(ctx, &request{method: http.MethodPatch, path: taskPath(id), body: u})
}

// DeleteTask implements service.Service.
func (c *Client) DeleteTask(ctx context.Context, id string) error {
	return c.do(ctx, &request{method: http.MethodDelete, path: taskPath(id)}, nil)
}

// taskCall runs req and decodes a single task from the response. The task
// may be sent bare or wrapped in {"data": ...}; a task without an id is
// rejected rather than written into the caches.
func (c *Client) taskCall(ctx context.Context, req *request) (service.Task, error) {
	var raw json.RawMessage
	if err := c.do(ctx, req, &raw); err != nil {
		return service.Task{}, err
	}
	var task service.Task
	if err := decodeEnvelope(raw, &task, "data", "task"); err != nil {
		return service.Task{}, err
	}
	if task.ID == "" {
		return service.Task{}, fmt.Errorf("%w: task without id", ErrInvalidResponse)
	}
	return task, nil
}

func taskPath(id string) string {
	return "/tasks/" + url.PathEscape(id)
}

// decodeEnvelope decodes raw into out, unwrapping the first of keys that
// holds an object when the top level has no "id".
func decodeEnvelope(raw json.RawMessage, out any, keys ...string) error {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if _, ok := top["id"]; !ok {
		for _, k := range keys {
			inner, ok := top[k]
			if ok && len(inner) > 0 && inner[0] == '{' {
				raw = inner
				break
			}
		}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return nil
}
