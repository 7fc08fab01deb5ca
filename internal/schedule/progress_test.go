package schedule_test

import (
	"testing"

	"planline/internal/domain"
	"planline/internal/graph"
	"planline/internal/schedule"
)

func TestDurationWeightedRollUp(t *testing.T) {
	x := task("x", "2025-01-01", "2025-01-04", "t") // dur 4
	x.Progress = 100
	x.Status = domain.TaskCompleted
	y := task("y", "2025-01-05", "2025-01-10", "t") // dur 6
	y.Progress = 50
	y.Status = domain.TaskInProgress
	g := graph.Build([]domain.Task{task("t", "2025-01-01", "2025-01-10", ""), x, y}, nil)

	r := schedule.RollUp(g, domain.MustDate("2025-01-10"), domain.MustDate("2025-01-05"))
	parent := r.Tasks["t"]
	if parent.Progress != 70.0 {
		t.Fatalf("parent progress = %v, want 70.0", parent.Progress)
	}
	if parent.Status != domain.TaskInProgress {
		t.Fatalf("parent status = %s, want in_progress", parent.Status)
	}
	if r.Progress != 70.0 {
		t.Fatalf("project progress = %v, want 70.0", r.Progress)
	}
}

func TestAllChildrenCompletedCompletesParent(t *testing.T) {
	x := task("x", "2025-01-01", "2025-01-02", "t")
	x.Progress = 100
	y := task("y", "2025-01-03", "2025-01-04", "t")
	y.Progress = 100
	g := graph.Build([]domain.Task{task("t", "2025-01-01", "2025-01-04", ""), x, y}, nil)

	r := schedule.RollUp(g, domain.MustDate("2025-01-04"), domain.MustDate("2025-01-10"))
	if got := r.Tasks["t"].Status; got != domain.TaskCompleted {
		t.Fatalf("parent status = %s, want completed", got)
	}
	// completed tasks are never overdue, even past their end date
	if r.Tasks["t"].Overdue {
		t.Fatalf("completed parent flagged overdue")
	}
}

func TestAllNotStartedKeepsParentNotStarted(t *testing.T) {
	g := graph.Build([]domain.Task{
		task("t", "2025-01-01", "2025-01-04", ""),
		task("x", "2025-01-01", "2025-01-02", "t"),
		task("y", "2025-01-03", "2025-01-04", "t"),
	}, nil)
	r := schedule.RollUp(g, domain.MustDate("2025-01-04"), domain.MustDate("2025-01-01"))
	if got := r.Tasks["t"].Status; got != domain.TaskNotStarted {
		t.Fatalf("parent status = %s, want not_started", got)
	}
}

func TestOverdueDetection(t *testing.T) {
	late := task("late", "2025-01-01", "2025-01-20", "")
	late.Progress = 10
	late.Status = domain.TaskInProgress
	done := task("done", "2025-01-01", "2025-01-20", "")
	done.Progress = 100
	done.Status = domain.TaskCompleted
	g := graph.Build([]domain.Task{late, done}, nil)

	r := schedule.RollUp(g, domain.MustDate("2025-01-20"), domain.MustDate("2025-02-01"))
	if !r.Tasks["late"].Overdue {
		t.Fatalf("in-progress task past its end must be overdue")
	}
	if r.Tasks["done"].Overdue {
		t.Fatalf("completed task must not be overdue")
	}
}

func TestIntermediateProgressForcesInProgress(t *testing.T) {
	x := task("x", "2025-01-01", "2025-01-05", "")
	x.Progress = 33.333 // rounded to 2 decimals on read
	x.Status = domain.TaskNotStarted
	g := graph.Build([]domain.Task{x}, nil)

	r := schedule.RollUp(g, domain.MustDate("2025-01-05"), domain.MustDate("2025-01-02"))
	got := r.Tasks["x"]
	if got.Status != domain.TaskInProgress {
		t.Fatalf("status = %s, want in_progress", got.Status)
	}
	if got.Progress != 33.33 {
		t.Fatalf("progress = %v, want 33.33", got.Progress)
	}
}

func TestOnHoldSurvivesIntermediateProgress(t *testing.T) {
	x := task("x", "2025-01-01", "2025-01-05", "")
	x.Progress = 40
	x.Status = domain.TaskOnHold
	g := graph.Build([]domain.Task{x}, nil)

	r := schedule.RollUp(g, domain.MustDate("2025-01-05"), domain.MustDate("2025-01-02"))
	if got := r.Tasks["x"].Status; got != domain.TaskOnHold {
		t.Fatalf("status = %s, want on_hold preserved", got)
	}
}
