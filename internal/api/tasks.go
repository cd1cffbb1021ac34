package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/nhle/taskflow/internal/model"
)

// CreateTaskRequest is the POST /tasks body. AssignedTo is nil for an
// unassigned task.
type CreateTaskRequest struct {
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	DueDate     string         `json:"dueDate"`
	Priority    model.Priority `json:"priority"`
	Status      model.Status   `json:"status"`
	AssignedTo  *string        `json:"assignedTo"`
}

// taskList is the wrapped form of GET /tasks.
type taskList struct {
	Tasks []model.Task `json:"tasks"`
}

// taskEnvelope is the wrapped form of a single-task response.
type taskEnvelope struct {
	Task *model.Task `json:"task"`
}

// ListTasks fetches every task visible to the current session. The backend
// answers with either a bare array or {tasks:[...]}.
func (c *Client) ListTasks(ctx context.Context) ([]model.Task, error) {
	var raw json.RawMessage
	if err := c.Get(ctx, "/tasks", &raw); err != nil {
		return nil, fmt.Errorf("listing tasks: %w", err)
	}

	tasks, err := decodeTaskList(raw)
	if err != nil {
		return nil, &NetworkError{Op: "GET /tasks", Err: err}
	}
	return tasks, nil
}

// CreateTask submits a new task and returns the server's copy.
func (c *Client) CreateTask(ctx context.Context, req CreateTaskRequest) (model.Task, error) {
	var raw json.RawMessage
	if err := c.Post(ctx, "/tasks", req, &raw); err != nil {
		return model.Task{}, fmt.Errorf("creating task: %w", err)
	}

	task, err := decodeTask(raw)
	if err != nil {
		return model.Task{}, &NetworkError{Op: "POST /tasks", Err: err}
	}
	return task, nil
}

// UpdateTask applies patch to the task with the given id.
func (c *Client) UpdateTask(ctx context.Context, id string, patch model.TaskPatch) (model.Task, error) {
	path := "/tasks/" + url.PathEscape(id)

	var raw json.RawMessage
	if err := c.Put(ctx, path, patchBody(patch), &raw); err != nil {
		return model.Task{}, fmt.Errorf("updating task %s: %w", id, notFoundAs(err, "task", id))
	}

	task, err := decodeTask(raw)
	if err != nil {
		return model.Task{}, &NetworkError{Op: "PUT " + path, Err: err}
	}
	return task, nil
}

// DeleteTask removes the task with the given id.
func (c *Client) DeleteTask(ctx context.Context, id string) error {
	path := "/tasks/" + url.PathEscape(id)
	if err := c.Delete(ctx, path, nil); err != nil {
		return fmt.Errorf("deleting task %s: %w", id, notFoundAs(err, "task", id))
	}
	return nil
}

// patchBody renders only the set fields. An empty AssignedTo is sent as
// null so the backend clears the assignee.
func patchBody(p model.TaskPatch) map[string]any {
	body := make(map[string]any)
	if p.Title != nil {
		body["title"] = *p.Title
	}
	if p.Description != nil {
		body["description"] = *p.Description
	}
	if p.DueDate != nil {
		body["dueDate"] = p.DueDate.UTC().Format(model.DateLayout)
	}
	if p.Priority != nil {
		body["priority"] = *p.Priority
	}
	if p.Status != nil {
		body["status"] = *p.Status
	}
	if p.AssignedTo != nil {
		if *p.AssignedTo == "" {
			body["assignedTo"] = nil
		} else {
			body["assignedTo"] = *p.AssignedTo
		}
	}
	return body
}

func decodeTaskList(raw json.RawMessage) ([]model.Task, error) {
	if trimmed := bytes.TrimSpace(raw); len(trimmed) > 0 && trimmed[0] == '[' {
		var tasks []model.Task
		if err := json.Unmarshal(trimmed, &tasks); err != nil {
			return nil, fmt.Errorf("decoding task list: %w", err)
		}
		return tasks, nil
	}

	var wrapped taskList
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, fmt.Errorf("decoding task list: %w", err)
	}
	return wrapped.Tasks, nil
}

func decodeTask(raw json.RawMessage) (model.Task, error) {
	var env taskEnvelope
	if err := json.Unmarshal(raw, &env); err == nil && env.Task != nil {
		return *env.Task, nil
	}

	var t model.Task
	if err := json.Unmarshal(raw, &t); err != nil {
		return model.Task{}, fmt.Errorf("decoding task: %w", err)
	}
	return t, nil
}
