package schedule_test

import (
	"reflect"
	"testing"

	"planline/internal/domain"
	"planline/internal/graph"
	"planline/internal/schedule"
)

func task(id string, start, end string, parent string) domain.Task {
	t := domain.Task{
		ID:       id,
		Name:     id,
		Start:    domain.MustDate(start),
		End:      domain.MustDate(end),
		Status:   domain.TaskNotStarted,
		Duration: domain.MustDate(start).DaysUntil(domain.MustDate(end)) + 1,
	}
	if parent != "" {
		t.ParentID = &parent
	}
	return t
}

func edge(id, pred, succ string, typ domain.DependencyType, lag int) domain.Dependency {
	return domain.Dependency{ID: id, PredecessorID: pred, SuccessorID: succ, Type: typ, Lag: lag}
}

func TestLinearChainCriticalPath(t *testing.T) {
	g := graph.Build(
		[]domain.Task{
			task("a", "2025-01-01", "2025-01-05", ""),
			task("b", "2025-01-06", "2025-01-15", ""),
			task("c", "2025-01-16", "2025-01-25", ""),
		},
		[]domain.Dependency{
			edge("e1", "a", "b", domain.FinishToStart, 0),
			edge("e2", "b", "c", domain.FinishToStart, 0),
		},
	)
	res, err := schedule.Compute(g, domain.MustDate("2025-01-01"), domain.MustDate("2025-01-31"))
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	for _, id := range []string{"a", "b", "c"} {
		if s := res.Tasks[id].Slack; s != 0 {
			t.Fatalf("task %s slack = %d, want 0", id, s)
		}
	}
	if res.Infeasible || res.OverBudget {
		t.Fatalf("unexpected warnings: infeasible=%v overbudget=%v", res.Infeasible, res.OverBudget)
	}
	got := schedule.CriticalPath(g, res)
	if want := []string{"a", "b", "c"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("critical path = %v, want %v", got, want)
	}
}

func TestParallelBranchesBothCritical(t *testing.T) {
	g := graph.Build(
		[]domain.Task{
			task("a", "2025-01-01", "2025-01-05", ""),
			task("b", "2025-01-01", "2025-01-03", ""),
			task("c", "2025-01-06", "2025-01-10", ""),
			task("d", "2025-01-04", "2025-01-10", ""),
		},
		[]domain.Dependency{
			edge("e1", "a", "c", domain.FinishToStart, 0),
			edge("e2", "b", "d", domain.FinishToStart, 0),
		},
	)
	res, err := schedule.Compute(g, domain.MustDate("2025-01-01"), domain.MustDate("2025-01-10"))
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	got := schedule.CriticalPath(g, res)
	// both chains are zero-slack; ordering is earliest-start then id
	if want := []string{"a", "b", "d", "c"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("critical path = %v, want %v", got, want)
	}
}

func TestFinishToStartLagPlacesSuccessor(t *testing.T) {
	g := graph.Build(
		[]domain.Task{
			task("a", "2025-01-01", "2025-01-05", ""),
			task("b", "2025-01-01", "2025-01-02", ""),
		},
		[]domain.Dependency{edge("e1", "a", "b", domain.FinishToStart, 2)},
	)
	res, err := schedule.Compute(g, domain.MustDate("2025-01-01"), domain.MustDate("2025-01-31"))
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if got := res.Tasks["b"].EarliestStart.String(); got != "2025-01-08" {
		t.Fatalf("b earliest start = %s, want 2025-01-08 (finish day + 1 + lag)", got)
	}
}

func TestFinishToStartZeroLagNextDay(t *testing.T) {
	g := graph.Build(
		[]domain.Task{
			task("a", "2025-01-01", "2025-01-01", ""),
			task("b", "2025-01-01", "2025-01-01", ""),
		},
		[]domain.Dependency{edge("e1", "a", "b", domain.FinishToStart, 0)},
	)
	res, err := schedule.Compute(g, domain.MustDate("2025-01-01"), domain.MustDate("2025-01-10"))
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if got := res.Tasks["b"].EarliestStart.String(); got != "2025-01-02" {
		t.Fatalf("b earliest start = %s, want 2025-01-02", got)
	}
	if got := res.Tasks["a"].EarliestFinish.String(); got != "2025-01-01" {
		t.Fatalf("a earliest finish = %s, want 2025-01-01 (duration 1)", got)
	}
}

func TestNegativeLagCollapsesAndWarns(t *testing.T) {
	g := graph.Build(
		[]domain.Task{
			task("a", "2025-01-01", "2025-01-05", ""),
			task("b", "2025-01-06", "2025-01-08", ""),
		},
		[]domain.Dependency{edge("e1", "a", "b", domain.FinishToStart, -3)},
	)
	res, err := schedule.Compute(g, domain.MustDate("2025-01-01"), domain.MustDate("2025-01-08"))
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	// constraint allows 2025-01-03 but planned start is later and wins
	if got := res.Tasks["b"].EarliestStart.String(); got != "2025-01-06" {
		t.Fatalf("b earliest start = %s, want planned 2025-01-06", got)
	}
	if res.Infeasible {
		t.Fatalf("feasible schedule flagged infeasible")
	}
}

func TestSlackNeverNegative(t *testing.T) {
	// Anchoring the backward pass on the computed finish keeps every
	// forward window achievable, so slack stays non-negative even
	// under negative lags.
	g := graph.Build(
		[]domain.Task{
			task("a", "2025-01-05", "2025-01-06", ""),
			task("b", "2025-01-10", "2025-01-11", ""),
			task("c", "2025-01-01", "2025-01-20", ""),
		},
		[]domain.Dependency{edge("e1", "a", "b", domain.FinishToStart, -10)},
	)
	res, err := schedule.Compute(g, domain.MustDate("2025-01-01"), domain.MustDate("2025-01-31"))
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	for id, ts := range res.Tasks {
		if ts.Slack < 0 {
			t.Fatalf("task %s slack = %d, want >= 0", id, ts.Slack)
		}
	}
	if res.Infeasible {
		t.Fatalf("compute must not report infeasible")
	}
	if s := res.Tasks["c"].Slack; s != 0 {
		t.Fatalf("anchor task slack = %d, want 0", s)
	}
}

func TestStartToStartAndFinishToFinish(t *testing.T) {
	g := graph.Build(
		[]domain.Task{
			task("a", "2025-01-05", "2025-01-10", ""),
			task("b", "2025-01-01", "2025-01-04", ""),
			task("c", "2025-01-01", "2025-01-02", ""),
		},
		[]domain.Dependency{
			edge("e1", "a", "b", domain.StartToStart, 2),
			edge("e2", "a", "c", domain.FinishToFinish, 1),
		},
	)
	res, err := schedule.Compute(g, domain.MustDate("2025-01-01"), domain.MustDate("2025-01-31"))
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	// SS: b.start >= a.start(01-05) + 2
	if got := res.Tasks["b"].EarliestStart.String(); got != "2025-01-07" {
		t.Fatalf("b earliest start = %s, want 2025-01-07", got)
	}
	// FF: c.finish >= a.finish(01-10) + 1; c has duration 2
	if got := res.Tasks["c"].EarliestFinish.String(); got != "2025-01-11" {
		t.Fatalf("c earliest finish = %s, want 2025-01-11", got)
	}
	if got := res.Tasks["c"].EarliestStart.String(); got != "2025-01-10" {
		t.Fatalf("c earliest start = %s, want 2025-01-10", got)
	}
}

func TestOverBudgetScheduleIsWarningNotError(t *testing.T) {
	// a pushes b past the project end; the backward pass re-anchors
	// on the max earliest finish and the computation completes.
	g := graph.Build(
		[]domain.Task{
			task("a", "2025-01-01", "2025-01-10", ""),
			task("b", "2025-01-02", "2025-01-06", ""),
		},
		[]domain.Dependency{edge("e1", "a", "b", domain.FinishToStart, 0)},
	)
	res, err := schedule.Compute(g, domain.MustDate("2025-01-01"), domain.MustDate("2025-01-08"))
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if !res.OverBudget {
		t.Fatalf("expected over-budget flag")
	}
	if got := res.Tasks["b"].EarliestStart.String(); got != "2025-01-11" {
		t.Fatalf("b earliest start = %s, want 2025-01-11", got)
	}
	for _, id := range []string{"a", "b"} {
		if res.Tasks[id].Slack < 0 {
			t.Fatalf("task %s slack = %d, want >= 0 after re-anchoring", id, res.Tasks[id].Slack)
		}
	}
}

func TestForwardPassMonotoneUnderNewEdge(t *testing.T) {
	tasks := []domain.Task{
		task("a", "2025-01-01", "2025-01-10", ""),
		task("b", "2025-01-03", "2025-01-05", ""),
	}
	before, err := schedule.Compute(graph.Build(tasks, nil), domain.MustDate("2025-01-01"), domain.MustDate("2025-01-31"))
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	after, err := schedule.Compute(
		graph.Build(tasks, []domain.Dependency{edge("e1", "a", "b", domain.FinishToStart, 0)}),
		domain.MustDate("2025-01-01"), domain.MustDate("2025-01-31"))
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if after.Tasks["b"].EarliestStart.Before(before.Tasks["b"].EarliestStart) {
		t.Fatalf("adding a predecessor moved earliest start backward")
	}
}

func TestParentEnvelopeFollowsChildren(t *testing.T) {
	g := graph.Build(
		[]domain.Task{
			task("p", "2025-01-01", "2025-01-02", ""),
			task("x", "2025-01-03", "2025-01-06", "p"),
		},
		nil,
	)
	res, err := schedule.Compute(g, domain.MustDate("2025-01-01"), domain.MustDate("2025-01-31"))
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	p, x := res.Tasks["p"], res.Tasks["x"]
	if !p.EarliestStart.Equal(x.EarliestStart) || !p.EarliestFinish.Equal(x.EarliestFinish) {
		t.Fatalf("parent window %s..%s != child window %s..%s",
			p.EarliestStart, p.EarliestFinish, x.EarliestStart, x.EarliestFinish)
	}
}

func TestTaskPinnedToProjectStart(t *testing.T) {
	g := graph.Build(
		[]domain.Task{task("a", "2024-12-20", "2024-12-25", "")},
		nil,
	)
	res, err := schedule.Compute(g, domain.MustDate("2025-01-01"), domain.MustDate("2025-01-31"))
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if got := res.Tasks["a"].EarliestStart.String(); got != "2025-01-01" {
		t.Fatalf("earliest start = %s, want pinned project start", got)
	}
}

func TestComputeRejectsCycle(t *testing.T) {
	g := graph.Build(
		[]domain.Task{
			task("a", "2025-01-01", "2025-01-02", ""),
			task("b", "2025-01-03", "2025-01-04", ""),
		},
		[]domain.Dependency{
			edge("e1", "a", "b", domain.FinishToStart, 0),
			edge("e2", "b", "a", domain.FinishToStart, 0),
		},
	)
	if _, err := schedule.Compute(g, domain.MustDate("2025-01-01"), domain.MustDate("2025-01-31")); err == nil {
		t.Fatalf("expected cycle error")
	}
}

func TestLongestChainPrefersDurationThenID(t *testing.T) {
	// two disjoint zero-slack chains; a->c is longer by duration
	g := graph.Build(
		[]domain.Task{
			task("a", "2025-01-01", "2025-01-05", ""),
			task("b", "2025-01-01", "2025-01-03", ""),
			task("c", "2025-01-06", "2025-01-10", ""),
			task("d", "2025-01-04", "2025-01-10", ""),
		},
		[]domain.Dependency{
			edge("e1", "a", "c", domain.FinishToStart, 0),
			edge("e2", "b", "d", domain.FinishToStart, 0),
		},
	)
	res, err := schedule.Compute(g, domain.MustDate("2025-01-01"), domain.MustDate("2025-01-10"))
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	got := schedule.LongestChain(g, res)
	// a->c and b->d both sum 10 days; the tie picks the
	// lexicographically smaller identifier sequence
	if want := []string{"a", "c"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("longest chain = %v, want %v", got, want)
	}
}
