package engine

import (
	"context"
	"errors"
	"fmt"

	"planline/internal/domain"
	"planline/internal/events"
	"planline/internal/schedule"
)

// SnapshotTask is one row of an assembled plan view: the planned window
// as stored, plus everything the scheduler and roll-up derived from it.
type SnapshotTask struct {
	ID             string            `json:"id"`
	ParentID       *string           `json:"parent_id,omitempty"`
	Name           string            `json:"name"`
	Start          domain.Date       `json:"start"`
	End            domain.Date       `json:"end"`
	Duration       int               `json:"duration"`
	Progress       float64           `json:"progress"`
	Status         domain.TaskStatus `json:"status"`
	Overdue        bool              `json:"overdue"`
	EarliestStart  domain.Date       `json:"earliest_start"`
	EarliestFinish domain.Date       `json:"earliest_finish"`
	LatestStart    domain.Date       `json:"latest_start"`
	LatestFinish   domain.Date       `json:"latest_finish"`
	Slack          int               `json:"slack"`
	Critical       bool              `json:"critical"`
}

type Timeline struct {
	Start     domain.Date `json:"start"`
	End       domain.Date `json:"end"`
	TotalDays int         `json:"total_days"`
}

type Statistics struct {
	TotalTasks      int     `json:"total_tasks"`
	CompletedTasks  int     `json:"completed_tasks"`
	InProgressTasks int     `json:"in_progress_tasks"`
	NotStartedTasks int     `json:"not_started_tasks"`
	OverdueTasks    int     `json:"overdue_tasks"`
	CompletionRate  float64 `json:"completion_rate"`
}

// Snapshot is the full read model of one project: every task with its
// computed schedule, the dependency list, the critical path and the
// roll-up, assembled atomically under the project's shared lock.
type Snapshot struct {
	Project      domain.Project       `json:"project"`
	Progress     float64              `json:"progress"`
	Status       domain.ProjectStatus `json:"status"`
	Overdue      bool                 `json:"overdue"`
	Tasks        []SnapshotTask       `json:"tasks"`
	Dependencies []domain.Dependency  `json:"dependencies"`
	CriticalPath []string             `json:"critical_path"`
	LongestChain []string             `json:"longest_chain"`
	Timeline     Timeline             `json:"timeline"`
	Statistics   Statistics           `json:"statistics"`
	Warnings     []string             `json:"warnings,omitempty"`
	GeneratedAt  string               `json:"generated_at"`
}

// Snapshot assembles the read model for a project. Results are cached
// until the next mutation when snapshot_cache is enabled.
func (e *Engine) Snapshot(ctx context.Context, projectID string) (*Snapshot, error) {
	lock := e.lockFor(projectID)
	lock.RLock()
	defer lock.RUnlock()

	if e.Config != nil && e.Config.SnapshotCache {
		e.mu.Lock()
		cached := e.cache[projectID]
		e.mu.Unlock()
		if cached != nil {
			return snapCopy(cached), nil
		}
	}

	ctx, cancel := e.readCtx(ctx)
	defer cancel()

	snap, err := e.assemble(ctx, projectID)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, domain.Timeout("snapshot")
		}
		return nil, err
	}

	if e.Config != nil && e.Config.SnapshotCache {
		e.mu.Lock()
		e.cache[projectID] = snap
		e.mu.Unlock()
	}
	return snapCopy(snap), nil
}

func (e *Engine) assemble(ctx context.Context, projectID string) (*Snapshot, error) {
	g, p, err := e.loadGraph(ctx, projectID)
	if err != nil {
		return nil, err
	}
	res, err := schedule.Compute(g, p.Start, p.End)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	today := domain.DateFromTime(e.now())
	roll := schedule.RollUp(g, p.End, today)
	critical := schedule.CriticalPath(g, res)
	chain := schedule.LongestChain(g, res)

	onPath := make(map[string]bool, len(critical))
	for _, id := range critical {
		onPath[id] = true
	}
	order, _ := g.TopoOrder()

	snap := &Snapshot{
		Project:      p,
		Progress:     roll.Progress,
		Status:       projectStatus(p.Status, roll.Status),
		Overdue:      roll.Overdue,
		Tasks:        make([]SnapshotTask, 0, len(order)),
		Dependencies: g.Edges(),
		CriticalPath: critical,
		LongestChain: chain,
		Timeline: Timeline{
			Start:     p.Start,
			End:       p.End,
			TotalDays: p.Start.DaysUntil(p.End) + 1,
		},
		GeneratedAt: e.stamp(),
	}
	for _, id := range order {
		t, _ := g.Task(id)
		sc := res.Tasks[id]
		r := roll.Tasks[id]
		snap.Tasks = append(snap.Tasks, SnapshotTask{
			ID:             t.ID,
			ParentID:       t.ParentID,
			Name:           t.Name,
			Start:          t.Start,
			End:            t.End,
			Duration:       t.Duration,
			Progress:       r.Progress,
			Status:         r.Status,
			Overdue:        r.Overdue,
			EarliestStart:  sc.EarliestStart,
			EarliestFinish: sc.EarliestFinish,
			LatestStart:    sc.LatestStart,
			LatestFinish:   sc.LatestFinish,
			Slack:          sc.Slack,
			Critical:       onPath[id],
		})
	}
	snap.Statistics = statisticsOf(snap.Tasks)
	if res.OverBudget {
		snap.Warnings = append(snap.Warnings, fmt.Sprintf("computed finish exceeds planned project end %s", p.End))
	}
	if res.Infeasible {
		snap.Warnings = append(snap.Warnings, "dependency lags force a task before the project start")
	}
	return snap, nil
}

func statisticsOf(tasks []SnapshotTask) Statistics {
	s := Statistics{TotalTasks: len(tasks)}
	for _, t := range tasks {
		switch t.Status {
		case domain.TaskCompleted:
			s.CompletedTasks++
		case domain.TaskInProgress:
			s.InProgressTasks++
		case domain.TaskNotStarted:
			s.NotStartedTasks++
		}
		if t.Overdue {
			s.OverdueTasks++
		}
	}
	if s.TotalTasks > 0 {
		s.CompletionRate = schedule.Round2(float64(s.CompletedTasks) / float64(s.TotalTasks) * 100)
	}
	return s
}

// projectStatus derives the project state from the task roll-up.
// A cancelled project keeps its stored state.
func projectStatus(stored domain.ProjectStatus, rolled domain.TaskStatus) domain.ProjectStatus {
	if stored == domain.ProjectCancelled {
		return stored
	}
	switch rolled {
	case domain.TaskCompleted:
		return domain.ProjectCompleted
	case domain.TaskInProgress:
		return domain.ProjectInProgress
	case domain.TaskOnHold:
		return domain.ProjectOnHold
	case domain.TaskCancelled:
		return domain.ProjectCancelled
	default:
		return domain.ProjectPlanning
	}
}

func snapCopy(s *Snapshot) *Snapshot {
	out := *s
	out.Tasks = append([]SnapshotTask(nil), s.Tasks...)
	out.Dependencies = append([]domain.Dependency(nil), s.Dependencies...)
	out.CriticalPath = append([]string(nil), s.CriticalPath...)
	out.LongestChain = append([]string(nil), s.LongestChain...)
	out.Warnings = append([]string(nil), s.Warnings...)
	return &out
}

// CriticalPath returns the critical tasks in schedule order.
func (e *Engine) CriticalPath(ctx context.Context, projectID string) ([]SnapshotTask, error) {
	snap, err := e.Snapshot(ctx, projectID)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]SnapshotTask, len(snap.Tasks))
	for _, t := range snap.Tasks {
		byID[t.ID] = t
	}
	out := make([]SnapshotTask, 0, len(snap.CriticalPath))
	for _, id := range snap.CriticalPath {
		out = append(out, byID[id])
	}
	return out, nil
}

// Recalculate discards any cached snapshot and rebuilds it from the
// stored plan.
func (e *Engine) Recalculate(ctx context.Context, projectID string) (*Snapshot, error) {
	e.invalidate(projectID)
	snap, err := e.Snapshot(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if err := e.append(ctx, "project.recalculated", projectID, "project", projectID, events.Payload{
		"tasks":    snap.Statistics.TotalTasks,
		"progress": snap.Progress,
	}); err != nil {
		return nil, err
	}
	return snap, nil
}
