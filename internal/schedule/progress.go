package schedule

import (
	"math"

	"planline/internal/domain"
	"planline/internal/graph"
)

// Rolled is the derived progress view of one task.
type Rolled struct {
	Progress float64
	Status   domain.TaskStatus
	Overdue  bool
}

// ProjectRollup aggregates the derived state of the whole project.
type ProjectRollup struct {
	Progress float64
	Status   domain.TaskStatus
	Overdue  bool
	Tasks    map[string]Rolled
}

// RollUp derives progress and status for every task and the project.
// Leaf progress is user-supplied; a parent's progress is the
// duration-weighted mean of its children's, and the project's the mean
// over root tasks. Stored status is treated as a hint and re-derived
// on every read.
func RollUp(g *graph.Graph, projectEnd domain.Date, today domain.Date) ProjectRollup {
	tasks := map[string]Rolled{}
	for _, id := range byDepthDesc(g) {
		t, _ := g.Task(id)
		children := g.Children(id)
		if len(children) == 0 {
			tasks[id] = Rolled{
				Progress: Round2(t.Progress),
				Status:   deriveLeafStatus(t.Progress, t.Status),
				Overdue:  overdue(today, t.End, deriveLeafStatus(t.Progress, t.Status)),
			}
			continue
		}
		progress := weightedMean(g, tasks, children)
		status := deriveParentStatus(g, tasks, children, t.Status)
		tasks[id] = Rolled{
			Progress: progress,
			Status:   status,
			Overdue:  overdue(today, t.End, status),
		}
	}

	roots := g.Roots()
	p := ProjectRollup{Tasks: tasks, Status: domain.TaskNotStarted}
	if len(roots) > 0 {
		p.Progress = weightedMean(g, tasks, roots)
		p.Status = deriveParentStatus(g, tasks, roots, domain.TaskInProgress)
	}
	p.Overdue = overdue(today, projectEnd, p.Status)
	return p
}

// Round2 rounds to the two-decimal precision progress is stored at.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func weightedMean(g *graph.Graph, rolled map[string]Rolled, ids []string) float64 {
	var sum, weight float64
	for _, id := range ids {
		t, _ := g.Task(id)
		d := float64(durationOf(t))
		sum += d * rolled[id].Progress
		weight += d
	}
	if weight == 0 {
		return 0
	}
	return Round2(sum / weight)
}

// deriveLeafStatus reconciles stored status with progress: 100 means
// Completed, an intermediate value forces InProgress unless the task
// is explicitly on hold, and zero leaves the stored hint alone.
func deriveLeafStatus(progress float64, stored domain.TaskStatus) domain.TaskStatus {
	switch {
	case progress >= 100:
		return domain.TaskCompleted
	case progress > 0:
		if stored == domain.TaskOnHold {
			return domain.TaskOnHold
		}
		return domain.TaskInProgress
	default:
		if stored == domain.TaskCompleted {
			return domain.TaskNotStarted
		}
		return stored
	}
}

func deriveParentStatus(g *graph.Graph, rolled map[string]Rolled, children []string, stored domain.TaskStatus) domain.TaskStatus {
	allCompleted, allNotStarted := true, true
	anyActive := false
	for _, id := range children {
		c := rolled[id]
		if c.Status != domain.TaskCompleted {
			allCompleted = false
		}
		if c.Status != domain.TaskNotStarted {
			allNotStarted = false
		}
		if c.Status == domain.TaskInProgress || (c.Progress > 0 && c.Progress < 100) {
			anyActive = true
		}
	}
	switch {
	case allCompleted:
		return domain.TaskCompleted
	case anyActive:
		return domain.TaskInProgress
	case allNotStarted:
		return domain.TaskNotStarted
	case stored == domain.TaskCompleted || stored == domain.TaskCancelled:
		// some children done, none active: preserve only a
		// non-terminal stored hint
		return domain.TaskInProgress
	default:
		return stored
	}
}

func overdue(today, end domain.Date, status domain.TaskStatus) bool {
	return today.After(end) && status != domain.TaskCompleted
}
