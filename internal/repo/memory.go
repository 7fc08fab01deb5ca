package repo

import (
	"context"
	"sort"
	"sync"

	"planline/internal/domain"
)

// Memory is an in-process Repository, useful for tests and for
// embedding the engine without a workspace database.
type Memory struct {
	mu       sync.Mutex
	projects map[string]domain.Project
	tasks    map[string]domain.Task
	deps     map[string]domain.Dependency
	seq      int64
	events   []domain.Event
}

func NewMemory() *Memory {
	return &Memory{
		projects: make(map[string]domain.Project),
		tasks:    make(map[string]domain.Task),
		deps:     make(map[string]domain.Dependency),
	}
}

func (r *Memory) CreateProject(ctx context.Context, p domain.Project) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.projects[p.ID] = p
	return nil
}

func (r *Memory) GetProject(ctx context.Context, id string) (domain.Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.projects[id]
	if !ok {
		return domain.Project{}, domain.NotFound("project", id)
	}
	return p, nil
}

func (r *Memory) ProjectNameExists(ctx context.Context, name, excludeID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.projects {
		if p.Name == name && p.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (r *Memory) ListProjects(ctx context.Context) ([]domain.Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Project, 0, len(r.projects))
	for _, p := range r.projects {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt < out[j].CreatedAt
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *Memory) UpdateProject(ctx context.Context, p domain.Project) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.projects[p.ID]; !ok {
		return domain.NotFound("project", p.ID)
	}
	r.projects[p.ID] = p
	return nil
}

func (r *Memory) DeleteProject(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.projects[id]; !ok {
		return domain.NotFound("project", id)
	}
	delete(r.projects, id)
	for tid, t := range r.tasks {
		if t.ProjectID == id {
			delete(r.tasks, tid)
		}
	}
	for did, d := range r.deps {
		if _, ok := r.tasks[d.PredecessorID]; !ok {
			delete(r.deps, did)
		}
	}
	return nil
}

func (r *Memory) CreateTask(ctx context.Context, t domain.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks[t.ID] = t
	return nil
}

func (r *Memory) GetTask(ctx context.Context, id string) (domain.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok {
		return domain.Task{}, domain.NotFound("task", id)
	}
	return t, nil
}

func (r *Memory) listTasks(keep func(domain.Task) bool) []domain.Task {
	var out []domain.Task
	for _, t := range r.tasks {
		if keep(t) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Start.Equal(out[j].Start) {
			return out[i].Start.Before(out[j].Start)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (r *Memory) ListTasks(ctx context.Context, projectID string) ([]domain.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.listTasks(func(t domain.Task) bool { return t.ProjectID == projectID }), nil
}

func (r *Memory) ListTasksByParent(ctx context.Context, parentID string) ([]domain.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.listTasks(func(t domain.Task) bool {
		return t.ParentID != nil && *t.ParentID == parentID
	}), nil
}

func (r *Memory) ListTasksByStatus(ctx context.Context, projectID string, status domain.TaskStatus) ([]domain.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.listTasks(func(t domain.Task) bool {
		return t.ProjectID == projectID && t.Status == status
	}), nil
}

func (r *Memory) UpdateTask(ctx context.Context, t domain.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tasks[t.ID]; !ok {
		return domain.NotFound("task", t.ID)
	}
	r.tasks[t.ID] = t
	return nil
}

func (r *Memory) DeleteTask(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tasks[id]; !ok {
		return domain.NotFound("task", id)
	}
	delete(r.tasks, id)
	for did, d := range r.deps {
		if d.PredecessorID == id || d.SuccessorID == id {
			delete(r.deps, did)
		}
	}
	for tid, t := range r.tasks {
		if t.ParentID != nil && *t.ParentID == id {
			t.ParentID = nil
			r.tasks[tid] = t
		}
	}
	return nil
}

func (r *Memory) CreateDependency(ctx context.Context, d domain.Dependency) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deps[d.ID] = d
	return nil
}

func (r *Memory) GetDependency(ctx context.Context, id string) (domain.Dependency, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.deps[id]
	if !ok {
		return domain.Dependency{}, domain.NotFound("dependency", id)
	}
	return d, nil
}

func (r *Memory) ListDependencies(ctx context.Context, projectID string) ([]domain.Dependency, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Dependency
	for _, d := range r.deps {
		pred, ok := r.tasks[d.PredecessorID]
		if ok && pred.ProjectID == projectID {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt < out[j].CreatedAt
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *Memory) DependencyExists(ctx context.Context, predecessorID, successorID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.deps {
		if d.PredecessorID == predecessorID && d.SuccessorID == successorID {
			return true, nil
		}
	}
	return false, nil
}

func (r *Memory) UpdateDependency(ctx context.Context, d domain.Dependency) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.deps[d.ID]; !ok {
		return domain.NotFound("dependency", d.ID)
	}
	r.deps[d.ID] = d
	return nil
}

func (r *Memory) DeleteDependency(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.deps[id]; !ok {
		return domain.NotFound("dependency", id)
	}
	delete(r.deps, id)
	return nil
}

func (r *Memory) AppendEvent(ctx context.Context, e domain.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	e.ID = r.seq
	r.events = append(r.events, e)
	return nil
}

func (r *Memory) ListEvents(ctx context.Context, projectID string, limit int) ([]domain.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Event
	for i := len(r.events) - 1; i >= 0 && len(out) < limit; i-- {
		if r.events[i].ProjectID == projectID {
			out = append(out, r.events[i])
		}
	}
	return out, nil
}
