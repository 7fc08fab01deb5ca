package engine

import (
	"context"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"planline/internal/config"
	"planline/internal/domain"
	"planline/internal/events"
	"planline/internal/graph"
	"planline/internal/schedule"
)

// Engine guards every read and write of the plan data. Mutations hold a
// project's exclusive lock, reads hold the shared lock, so a snapshot
// never observes a half-applied change.
type Engine struct {
	Repo   Repository
	Config *config.Config
	Now    func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.RWMutex
	cache map[string]*Snapshot
}

func New(repo Repository, cfg *config.Config) *Engine {
	return &Engine{
		Repo:   repo,
		Config: cfg,
		Now:    time.Now,
		locks:  make(map[string]*sync.RWMutex),
		cache:  make(map[string]*Snapshot),
	}
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e *Engine) stamp() string {
	return e.now().UTC().Format(time.RFC3339)
}

func (e *Engine) lockFor(projectID string) *sync.RWMutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.locks[projectID]
	if !ok {
		l = &sync.RWMutex{}
		e.locks[projectID] = l
	}
	return l
}

func (e *Engine) invalidate(projectID string) {
	e.mu.Lock()
	delete(e.cache, projectID)
	e.mu.Unlock()
}

// readCtx applies the configured read deadline, if any.
func (e *Engine) readCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.Config != nil && e.Config.ReadTimeout > 0 {
		return context.WithTimeout(ctx, e.Config.ReadTimeout)
	}
	return ctx, func() {}
}

func (e *Engine) append(ctx context.Context, typ, projectID, entityKind, entityID string, payload events.Payload) error {
	return e.Repo.AppendEvent(ctx, domain.Event{
		TS:         e.stamp(),
		Type:       typ,
		ProjectID:  projectID,
		EntityKind: entityKind,
		EntityID:   entityID,
		Payload:    payload.JSON(),
	})
}

func validateName(entity, id, name string) error {
	n := utf8.RuneCountInString(name)
	if n == 0 {
		return domain.Invalid(entity, id, "name is required")
	}
	if n > 200 {
		return domain.Invalid(entity, id, "name exceeds 200 characters")
	}
	return nil
}

func validateRange(entity, id string, start, end domain.Date) error {
	if start.IsZero() || end.IsZero() {
		return domain.Invalid(entity, id, "start and end dates are required")
	}
	if end.Before(start) {
		return domain.Invalid(entity, id, "end date %s precedes start date %s", end, start)
	}
	return nil
}

// checkProgressStatus enforces the progress/status pairing rules: 100%
// means completed, completed means 100%, and a task that has started
// cannot be not_started.
func checkProgressStatus(entity, id string, progress float64, status domain.TaskStatus) error {
	if status == domain.TaskCompleted && progress != 100 {
		return domain.Invalid(entity, id, "completed task must have 100%% progress, got %.2f", progress)
	}
	if progress == 100 && status != domain.TaskCompleted && status != domain.TaskCancelled {
		return domain.Invalid(entity, id, "progress 100%% requires completed status")
	}
	if status == domain.TaskNotStarted && progress > 0 {
		return domain.Invalid(entity, id, "not_started task cannot have progress %.2f", progress)
	}
	return nil
}

// loadGraph reads a project's full plan into memory. Callers must hold
// the project lock.
func (e *Engine) loadGraph(ctx context.Context, projectID string) (*graph.Graph, domain.Project, error) {
	p, err := e.Repo.GetProject(ctx, projectID)
	if err != nil {
		return nil, domain.Project{}, err
	}
	tasks, err := e.Repo.ListTasks(ctx, projectID)
	if err != nil {
		return nil, domain.Project{}, err
	}
	deps, err := e.Repo.ListDependencies(ctx, projectID)
	if err != nil {
		return nil, domain.Project{}, err
	}
	return graph.Build(tasks, deps), p, nil
}

// ProjectCreateOptions are parameters for creating a project.
type ProjectCreateOptions struct {
	Name        string
	Description string
	Start       domain.Date
	End         domain.Date
	Status      domain.ProjectStatus
}

func (e *Engine) CreateProject(ctx context.Context, opts ProjectCreateOptions) (domain.Project, error) {
	if err := validateName("project", "", opts.Name); err != nil {
		return domain.Project{}, err
	}
	if err := validateRange("project", "", opts.Start, opts.End); err != nil {
		return domain.Project{}, err
	}
	if opts.Status == "" {
		opts.Status = domain.ProjectPlanning
	}
	if !domain.ValidProjectStatus(opts.Status) {
		return domain.Project{}, domain.Invalid("project", "", "unknown status %q", opts.Status)
	}
	taken, err := e.Repo.ProjectNameExists(ctx, opts.Name, "")
	if err != nil {
		return domain.Project{}, err
	}
	if taken {
		return domain.Project{}, domain.Conflict("project", "", "name %q already in use", opts.Name)
	}
	now := e.stamp()
	p := domain.Project{
		ID:          uuid.New().String(),
		Name:        opts.Name,
		Description: opts.Description,
		Start:       opts.Start,
		End:         opts.End,
		Status:      opts.Status,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	lock := e.lockFor(p.ID)
	lock.Lock()
	defer lock.Unlock()
	if err := e.Repo.CreateProject(ctx, p); err != nil {
		return domain.Project{}, err
	}
	if err := e.append(ctx, "project.created", p.ID, "project", p.ID, events.Payload{"name": p.Name}); err != nil {
		return domain.Project{}, err
	}
	return p, nil
}

// ProjectUpdateOptions carries partial updates; nil fields are left
// untouched.
type ProjectUpdateOptions struct {
	Name        *string
	Description *string
	Start       *domain.Date
	End         *domain.Date
	Status      *domain.ProjectStatus
}

func (e *Engine) UpdateProject(ctx context.Context, id string, opts ProjectUpdateOptions) (domain.Project, error) {
	lock := e.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	p, err := e.Repo.GetProject(ctx, id)
	if err != nil {
		return domain.Project{}, err
	}
	if opts.Name != nil && *opts.Name != p.Name {
		if err := validateName("project", id, *opts.Name); err != nil {
			return domain.Project{}, err
		}
		taken, err := e.Repo.ProjectNameExists(ctx, *opts.Name, id)
		if err != nil {
			return domain.Project{}, err
		}
		if taken {
			return domain.Project{}, domain.Conflict("project", id, "name %q already in use", *opts.Name)
		}
		p.Name = *opts.Name
	}
	if opts.Description != nil {
		p.Description = *opts.Description
	}
	if opts.Start != nil {
		p.Start = *opts.Start
	}
	if opts.End != nil {
		p.End = *opts.End
	}
	if err := validateRange("project", id, p.Start, p.End); err != nil {
		return domain.Project{}, err
	}
	if opts.Status != nil {
		if !domain.ValidProjectStatus(*opts.Status) {
			return domain.Project{}, domain.Invalid("project", id, "unknown status %q", *opts.Status)
		}
		p.Status = *opts.Status
	}
	p.UpdatedAt = e.stamp()
	if err := e.Repo.UpdateProject(ctx, p); err != nil {
		return domain.Project{}, err
	}
	e.invalidate(id)
	if err := e.append(ctx, "project.updated", id, "project", id, events.Payload{"name": p.Name}); err != nil {
		return domain.Project{}, err
	}
	return p, nil
}

func (e *Engine) DeleteProject(ctx context.Context, id string) error {
	lock := e.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	p, err := e.Repo.GetProject(ctx, id)
	if err != nil {
		return err
	}
	if err := e.Repo.DeleteProject(ctx, id); err != nil {
		return err
	}
	e.invalidate(id)
	return e.append(ctx, "project.deleted", id, "project", id, events.Payload{"name": p.Name})
}

func (e *Engine) GetProject(ctx context.Context, id string) (domain.Project, error) {
	lock := e.lockFor(id)
	lock.RLock()
	defer lock.RUnlock()
	return e.Repo.GetProject(ctx, id)
}

// ListProjects spans every project, so no single per-project lock
// applies; the repository read is atomic on its own.
func (e *Engine) ListProjects(ctx context.Context) ([]domain.Project, error) {
	return e.Repo.ListProjects(ctx)
}

// TaskCreateOptions are parameters for creating a task. Duration may be
// left zero to derive it from the date range; when set it must agree
// with the range.
type TaskCreateOptions struct {
	ProjectID   string
	Name        string
	Description string
	Start       domain.Date
	End         domain.Date
	Duration    int
	ParentID    string
	Progress    float64
	Status      domain.TaskStatus
}

func (e *Engine) CreateTask(ctx context.Context, opts TaskCreateOptions) (domain.Task, error) {
	if opts.ProjectID == "" {
		return domain.Task{}, domain.Invalid("task", "", "project is required")
	}
	if err := validateName("task", "", opts.Name); err != nil {
		return domain.Task{}, err
	}
	if err := validateRange("task", "", opts.Start, opts.End); err != nil {
		return domain.Task{}, err
	}
	span := opts.Start.DaysUntil(opts.End) + 1
	if opts.Duration == 0 {
		opts.Duration = span
	} else if opts.Duration != span {
		return domain.Task{}, domain.Invalid("task", "", "duration %d disagrees with date range of %d days", opts.Duration, span)
	}
	if opts.Progress < 0 || opts.Progress > 100 {
		return domain.Task{}, domain.Invalid("task", "", "progress %.2f out of range [0,100]", opts.Progress)
	}
	opts.Progress = roundProgress(opts.Progress)
	if opts.Status == "" {
		switch {
		case opts.Progress == 100:
			opts.Status = domain.TaskCompleted
		case opts.Progress > 0:
			opts.Status = domain.TaskInProgress
		default:
			opts.Status = domain.TaskNotStarted
		}
	}
	if !domain.ValidTaskStatus(opts.Status) {
		return domain.Task{}, domain.Invalid("task", "", "unknown status %q", opts.Status)
	}
	if err := checkProgressStatus("task", "", opts.Progress, opts.Status); err != nil {
		return domain.Task{}, err
	}

	lock := e.lockFor(opts.ProjectID)
	lock.Lock()
	defer lock.Unlock()

	if _, err := e.Repo.GetProject(ctx, opts.ProjectID); err != nil {
		return domain.Task{}, err
	}
	existing, err := e.Repo.ListTasks(ctx, opts.ProjectID)
	if err != nil {
		return domain.Task{}, err
	}
	if max := e.maxProjectTasks(); max > 0 && len(existing) >= max {
		return domain.Task{}, domain.Invalid("task", "", "project task limit of %d reached", max)
	}
	var parent *string
	if opts.ParentID != "" {
		pt, err := e.Repo.GetTask(ctx, opts.ParentID)
		if err != nil {
			return domain.Task{}, err
		}
		if pt.ProjectID != opts.ProjectID {
			return domain.Task{}, domain.Invalid("task", "", "parent %s belongs to another project", opts.ParentID)
		}
		parent = &opts.ParentID
	}
	now := e.stamp()
	t := domain.Task{
		ID:          uuid.New().String(),
		ProjectID:   opts.ProjectID,
		ParentID:    parent,
		Name:        opts.Name,
		Description: opts.Description,
		Start:       opts.Start,
		End:         opts.End,
		Duration:    opts.Duration,
		Progress:    opts.Progress,
		Status:      opts.Status,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := e.Repo.CreateTask(ctx, t); err != nil {
		return domain.Task{}, err
	}
	e.invalidate(opts.ProjectID)
	if err := e.append(ctx, "task.created", t.ProjectID, "task", t.ID, events.Payload{"name": t.Name}); err != nil {
		return domain.Task{}, err
	}
	return t, nil
}

func (e *Engine) maxProjectTasks() int {
	if e.Config == nil {
		return 0
	}
	return e.Config.MaxProjectTasks
}

// TaskUpdateOptions carries partial updates. SetParent with an empty
// string moves the task to the project root.
type TaskUpdateOptions struct {
	Name        *string
	Description *string
	Start       *domain.Date
	End         *domain.Date
	Duration    *int
	SetParent   *string
	Progress    *float64
	Status      *domain.TaskStatus
}

func (e *Engine) UpdateTask(ctx context.Context, id string, opts TaskUpdateOptions) (domain.Task, error) {
	t, err := e.Repo.GetTask(ctx, id)
	if err != nil {
		return domain.Task{}, err
	}

	lock := e.lockFor(t.ProjectID)
	lock.Lock()
	defer lock.Unlock()

	// Re-read under the lock.
	t, err = e.Repo.GetTask(ctx, id)
	if err != nil {
		return domain.Task{}, err
	}
	if opts.Name != nil {
		if err := validateName("task", id, *opts.Name); err != nil {
			return domain.Task{}, err
		}
		t.Name = *opts.Name
	}
	if opts.Description != nil {
		t.Description = *opts.Description
	}
	if opts.Start != nil {
		t.Start = *opts.Start
	}
	if opts.End != nil {
		t.End = *opts.End
	}
	if err := validateRange("task", id, t.Start, t.End); err != nil {
		return domain.Task{}, err
	}
	span := t.Start.DaysUntil(t.End) + 1
	if opts.Duration != nil {
		if *opts.Duration != span {
			return domain.Task{}, domain.Invalid("task", id, "duration %d disagrees with date range of %d days", *opts.Duration, span)
		}
	}
	t.Duration = span
	if opts.SetParent != nil {
		if *opts.SetParent == "" {
			t.ParentID = nil
		} else {
			pt, err := e.Repo.GetTask(ctx, *opts.SetParent)
			if err != nil {
				return domain.Task{}, err
			}
			if pt.ProjectID != t.ProjectID {
				return domain.Task{}, domain.Invalid("task", id, "parent %s belongs to another project", *opts.SetParent)
			}
			if err := e.ensureNoParentCycle(ctx, *opts.SetParent, id); err != nil {
				return domain.Task{}, err
			}
			pid := *opts.SetParent
			t.ParentID = &pid
		}
	}
	if opts.Progress != nil {
		if *opts.Progress < 0 || *opts.Progress > 100 {
			return domain.Task{}, domain.Invalid("task", id, "progress %.2f out of range [0,100]", *opts.Progress)
		}
		t.Progress = roundProgress(*opts.Progress)
	}
	if opts.Status != nil {
		if !domain.ValidTaskStatus(*opts.Status) {
			return domain.Task{}, domain.Invalid("task", id, "unknown status %q", *opts.Status)
		}
		t.Status = *opts.Status
	}
	if opts.Progress != nil && opts.Status == nil {
		t.Status = autoStatus(t.Progress, t.Status)
	}
	if err := checkProgressStatus("task", id, t.Progress, t.Status); err != nil {
		return domain.Task{}, err
	}
	t.UpdatedAt = e.stamp()
	if err := e.Repo.UpdateTask(ctx, t); err != nil {
		return domain.Task{}, err
	}
	e.invalidate(t.ProjectID)
	if err := e.append(ctx, "task.updated", t.ProjectID, "task", t.ID, events.Payload{"name": t.Name}); err != nil {
		return domain.Task{}, err
	}
	return t, nil
}

// ensureNoParentCycle climbs the parent chain from parentID and fails
// if it passes through childID.
func (e *Engine) ensureNoParentCycle(ctx context.Context, parentID, childID string) error {
	seen := map[string]bool{}
	path := []string{childID}
	cur := parentID
	for cur != "" {
		path = append(path, cur)
		if cur == childID {
			return domain.CycleError(path)
		}
		if seen[cur] {
			return domain.CycleError(path)
		}
		seen[cur] = true
		t, err := e.Repo.GetTask(ctx, cur)
		if err != nil {
			return err
		}
		if t.ParentID == nil {
			break
		}
		cur = *t.ParentID
	}
	return nil
}

// ShiftTask moves a task's planned window by a whole number of days,
// positive or negative, without touching its duration or its children.
func (e *Engine) ShiftTask(ctx context.Context, id string, days int) (domain.Task, error) {
	t, err := e.Repo.GetTask(ctx, id)
	if err != nil {
		return domain.Task{}, err
	}

	lock := e.lockFor(t.ProjectID)
	lock.Lock()
	defer lock.Unlock()

	t, err = e.Repo.GetTask(ctx, id)
	if err != nil {
		return domain.Task{}, err
	}
	t.Start = t.Start.AddDays(days)
	t.End = t.End.AddDays(days)
	t.UpdatedAt = e.stamp()
	if err := e.Repo.UpdateTask(ctx, t); err != nil {
		return domain.Task{}, err
	}
	e.invalidate(t.ProjectID)
	if err := e.append(ctx, "task.shifted", t.ProjectID, "task", t.ID, events.Payload{"days": days}); err != nil {
		return domain.Task{}, err
	}
	return t, nil
}

// SetProgress records completion percentage and applies the automatic
// status transitions: 100% completes the task, the first nonzero report
// starts it, and dropping back to zero reopens it. on_hold survives
// intermediate progress.
func (e *Engine) SetProgress(ctx context.Context, id string, percent float64) (domain.Task, error) {
	if percent < 0 || percent > 100 {
		return domain.Task{}, domain.Invalid("task", id, "progress %.2f out of range [0,100]", percent)
	}
	t, err := e.Repo.GetTask(ctx, id)
	if err != nil {
		return domain.Task{}, err
	}

	lock := e.lockFor(t.ProjectID)
	lock.Lock()
	defer lock.Unlock()

	t, err = e.Repo.GetTask(ctx, id)
	if err != nil {
		return domain.Task{}, err
	}
	t.Progress = roundProgress(percent)
	t.Status = autoStatus(t.Progress, t.Status)
	t.UpdatedAt = e.stamp()
	if err := e.Repo.UpdateTask(ctx, t); err != nil {
		return domain.Task{}, err
	}
	e.invalidate(t.ProjectID)
	if err := e.append(ctx, "task.progress", t.ProjectID, "task", t.ID, events.Payload{"progress": t.Progress, "status": string(t.Status)}); err != nil {
		return domain.Task{}, err
	}
	return t, nil
}

func autoStatus(progress float64, status domain.TaskStatus) domain.TaskStatus {
	if status == domain.TaskCancelled {
		return status
	}
	switch {
	case progress == 100:
		return domain.TaskCompleted
	case progress > 0:
		if status == domain.TaskOnHold {
			return status
		}
		return domain.TaskInProgress
	default:
		if status == domain.TaskCompleted {
			return domain.TaskNotStarted
		}
		return status
	}
}

// SetStatus changes a task's lifecycle state. Completing a task pulls
// progress to 100 and reopening pulls it to zero; a status that
// contradicts recorded progress is rejected.
func (e *Engine) SetStatus(ctx context.Context, id string, status domain.TaskStatus) (domain.Task, error) {
	if !domain.ValidTaskStatus(status) {
		return domain.Task{}, domain.Invalid("task", id, "unknown status %q", status)
	}
	t, err := e.Repo.GetTask(ctx, id)
	if err != nil {
		return domain.Task{}, err
	}

	lock := e.lockFor(t.ProjectID)
	lock.Lock()
	defer lock.Unlock()

	t, err = e.Repo.GetTask(ctx, id)
	if err != nil {
		return domain.Task{}, err
	}
	switch status {
	case domain.TaskCompleted:
		t.Progress = 100
	case domain.TaskNotStarted:
		t.Progress = 0
	case domain.TaskInProgress, domain.TaskOnHold:
		if t.Progress == 100 {
			return domain.Task{}, domain.Invalid("task", id, "task at 100%% progress cannot be %s", status)
		}
	}
	t.Status = status
	t.UpdatedAt = e.stamp()
	if err := e.Repo.UpdateTask(ctx, t); err != nil {
		return domain.Task{}, err
	}
	e.invalidate(t.ProjectID)
	if err := e.append(ctx, "task.status", t.ProjectID, "task", t.ID, events.Payload{"status": string(status)}); err != nil {
		return domain.Task{}, err
	}
	return t, nil
}

func (e *Engine) DeleteTask(ctx context.Context, id string) error {
	t, err := e.Repo.GetTask(ctx, id)
	if err != nil {
		return err
	}

	lock := e.lockFor(t.ProjectID)
	lock.Lock()
	defer lock.Unlock()

	if _, err := e.Repo.GetTask(ctx, id); err != nil {
		return err
	}
	if err := e.Repo.DeleteTask(ctx, id); err != nil {
		return err
	}
	e.invalidate(t.ProjectID)
	return e.append(ctx, "task.deleted", t.ProjectID, "task", id, events.Payload{"name": t.Name})
}

func (e *Engine) GetTask(ctx context.Context, id string) (domain.Task, error) {
	t, err := e.Repo.GetTask(ctx, id)
	if err != nil {
		return domain.Task{}, err
	}
	lock := e.lockFor(t.ProjectID)
	lock.RLock()
	defer lock.RUnlock()
	return e.Repo.GetTask(ctx, id)
}

func (e *Engine) ListTasks(ctx context.Context, projectID string, status domain.TaskStatus) ([]domain.Task, error) {
	lock := e.lockFor(projectID)
	lock.RLock()
	defer lock.RUnlock()
	if _, err := e.Repo.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	if status != "" {
		if !domain.ValidTaskStatus(status) {
			return nil, domain.Invalid("task", "", "unknown status %q", status)
		}
		return e.Repo.ListTasksByStatus(ctx, projectID, status)
	}
	return e.Repo.ListTasks(ctx, projectID)
}

// ListSubtasks returns the direct children of a task.
func (e *Engine) ListSubtasks(ctx context.Context, parentID string) ([]domain.Task, error) {
	parent, err := e.Repo.GetTask(ctx, parentID)
	if err != nil {
		return nil, err
	}
	lock := e.lockFor(parent.ProjectID)
	lock.RLock()
	defer lock.RUnlock()
	return e.Repo.ListTasksByParent(ctx, parentID)
}

func (e *Engine) ListEvents(ctx context.Context, projectID string, limit int) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 50
	}
	lock := e.lockFor(projectID)
	lock.RLock()
	defer lock.RUnlock()
	return e.Repo.ListEvents(ctx, projectID, limit)
}

func roundProgress(p float64) float64 {
	return schedule.Round2(p)
}
