// Package tasks is the client-side task repository: CRUD against the
// backend plus an ordered local cache of the latest known server state.
package tasks

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"

	"github.com/nhle/taskflow/internal/api"
	"github.com/nhle/taskflow/internal/model"
)

var errMissingID = errors.New("created task has no id")

// Backend is the REST surface the repository drives.
type Backend interface {
	ListTasks(ctx context.Context) ([]model.Task, error)
	CreateTask(ctx context.Context, req api.CreateTaskRequest) (model.Task, error)
	UpdateTask(ctx context.Context, id string, patch model.TaskPatch) (model.Task, error)
	DeleteTask(ctx context.Context, id string) error
}

// Identity supplies the session used for assignment rules.
type Identity interface {
	RequireCurrent() (model.Session, error)
}

// Repository caches tasks in display order. Network calls never hold the
// lock.
type Repository struct {
	backend  Backend
	identity Identity

	mu    sync.RWMutex
	tasks []model.Task

	// gen is bumped by every list request and every confirmed mutation.
	// A list response is applied only while its generation is current.
	gen uint64
}

// NewRepository creates an empty repository.
func NewRepository(backend Backend, identity Identity) *Repository {
	return &Repository{backend: backend, identity: identity}
}

// ListTasks fetches the full collection. The result replaces the cache
// unless a newer list request or a mutation was issued meanwhile.
func (r *Repository) ListTasks(ctx context.Context) ([]model.Task, error) {
	r.mu.Lock()
	r.gen++
	gen := r.gen
	r.mu.Unlock()

	fetched, err := r.backend.ListTasks(ctx)
	if err != nil {
		return nil, err
	}
	fetched = normalize(fetched)

	r.mu.Lock()
	if gen == r.gen {
		r.tasks = fetched
	} else {
		log.Printf("tasks: discarding stale list response (gen %d, current %d)", gen, r.gen)
	}
	r.mu.Unlock()

	return cloneTasks(fetched), nil
}

// Refresh re-runs ListTasks and returns the cache afterwards.
func (r *Repository) Refresh(ctx context.Context) ([]model.Task, error) {
	if _, err := r.ListTasks(ctx); err != nil {
		return nil, err
	}
	return r.Tasks(), nil
}

// CreateTask validates draft, submits it, and puts the created task at
// the front of the cache.
func (r *Repository) CreateTask(ctx context.Context, draft model.TaskDraft) (model.Task, error) {
	req, err := r.buildCreateRequest(draft)
	if err != nil {
		return model.Task{}, err
	}

	created, err := r.backend.CreateTask(ctx, req)
	if err != nil {
		return model.Task{}, err
	}
	if created.ID == "" {
		return model.Task{}, &api.NetworkError{Op: "POST /tasks", Err: errMissingID}
	}

	r.mu.Lock()
	r.gen++
	r.tasks = prepend(r.tasks, created)
	r.mu.Unlock()

	return created, nil
}

// UpdateTask applies patch and replaces the cached entry by id.
func (r *Repository) UpdateTask(ctx context.Context, id string, patch model.TaskPatch) (model.Task, error) {
	if strings.TrimSpace(id) == "" {
		return model.Task{}, &api.ValidationError{Field: "id", Message: "task id is required"}
	}
	if err := validatePatch(patch); err != nil {
		return model.Task{}, err
	}

	updated, err := r.backend.UpdateTask(ctx, id, patch)
	if err != nil {
		return model.Task{}, err
	}
	if updated.ID == "" {
		updated.ID = id
	}

	r.mu.Lock()
	r.gen++
	if i := indexOf(r.tasks, id); i >= 0 {
		r.tasks[i] = updated
	} else {
		r.tasks = prepend(r.tasks, updated)
	}
	r.mu.Unlock()

	return updated, nil
}

// DeleteTask removes id from the cache once the backend confirms.
// A not-found response leaves the cache untouched.
func (r *Repository) DeleteTask(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return &api.ValidationError{Field: "id", Message: "task id is required"}
	}

	if err := r.backend.DeleteTask(ctx, id); err != nil {
		return err
	}

	r.mu.Lock()
	r.gen++
	if i := indexOf(r.tasks, id); i >= 0 {
		r.tasks = append(r.tasks[:i:i], r.tasks[i+1:]...)
	}
	r.mu.Unlock()

	return nil
}

// Tasks returns a snapshot of the cache in display order.
func (r *Repository) Tasks() []model.Task {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return cloneTasks(r.tasks)
}

// Get returns the cached task with the given id.
func (r *Repository) Get(id string) (model.Task, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if i := indexOf(r.tasks, id); i >= 0 {
		return r.tasks[i], true
	}
	return model.Task{}, false
}

// Reset drops the cache and invalidates in-flight list requests.
func (r *Repository) Reset() {
	r.mu.Lock()
	r.gen++
	r.tasks = nil
	r.mu.Unlock()
}

func (r *Repository) buildCreateRequest(d model.TaskDraft) (api.CreateTaskRequest, error) {
	title := strings.TrimSpace(d.Title)
	if title == "" {
		return api.CreateTaskRequest{}, &api.ValidationError{Field: "title", Message: "title is required"}
	}
	if d.DueDate == nil {
		return api.CreateTaskRequest{}, &api.ValidationError{Field: "dueDate", Message: "due date is required"}
	}

	priority := d.Priority
	if priority == "" {
		priority = model.PriorityMedium
	}
	if !priority.Valid() {
		return api.CreateTaskRequest{}, &api.ValidationError{Field: "priority", Message: "unknown priority " + string(priority)}
	}

	status := d.Status
	if status == "" {
		status = model.StatusPending
	}
	if !status.Valid() {
		return api.CreateTaskRequest{}, &api.ValidationError{Field: "status", Message: "unknown status " + string(status)}
	}

	sess, err := r.identity.RequireCurrent()
	if err != nil {
		return api.CreateTaskRequest{}, err
	}

	// Only admins choose the assignee; everyone else assigns to themselves.
	var assignee *string
	switch {
	case !sess.IsAdmin():
		id := sess.UserID
		assignee = &id
	case strings.TrimSpace(d.AssignedTo) != "":
		id := strings.TrimSpace(d.AssignedTo)
		assignee = &id
	}

	return api.CreateTaskRequest{
		Title:       title,
		Description: strings.TrimSpace(d.Description),
		DueDate:     d.DueDate.UTC().Format(model.DateLayout),
		Priority:    priority,
		Status:      status,
		AssignedTo:  assignee,
	}, nil
}

func validatePatch(p model.TaskPatch) error {
	if p.IsEmpty() {
		return &api.ValidationError{Message: "nothing to update"}
	}
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		return &api.ValidationError{Field: "title", Message: "title must not be empty"}
	}
	if p.Priority != nil && !p.Priority.Valid() {
		return &api.ValidationError{Field: "priority", Message: "unknown priority " + string(*p.Priority)}
	}
	if p.Status != nil && !p.Status.Valid() {
		return &api.ValidationError{Field: "status", Message: "unknown status " + string(*p.Status)}
	}
	return nil
}

// normalize drops entries without an id and keeps the first of any
// duplicate ids.
func normalize(in []model.Task) []model.Task {
	out := make([]model.Task, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, t := range in {
		if t.ID == "" {
			log.Printf("tasks: dropping task without id (title %q)", t.Title)
			continue
		}
		if _, dup := seen[t.ID]; dup {
			log.Printf("tasks: dropping duplicate task %s", t.ID)
			continue
		}
		seen[t.ID] = struct{}{}
		out = append(out, t)
	}
	return out
}

// prepend puts t first, removing any existing entry with the same id.
func prepend(list []model.Task, t model.Task) []model.Task {
	out := make([]model.Task, 0, len(list)+1)
	out = append(out, t)
	for _, existing := range list {
		if existing.ID != t.ID {
			out = append(out, existing)
		}
	}
	return out
}

func indexOf(list []model.Task, id string) int {
	for i, t := range list {
		if t.ID == id {
			return i
		}
	}
	return -1
}

func cloneTasks(in []model.Task) []model.Task {
	if in == nil {
		return nil
	}
	out := make([]model.Task, len(in))
	copy(out, in)
	return out
}
