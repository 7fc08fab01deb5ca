// Package schedule implements the critical-path method over a task
// graph: a forward pass producing earliest start/finish dates, a
// backward pass producing latest dates, slack, critical-path
// extraction and progress/status roll-up. All arithmetic is
// day-inclusive on whole calendar days.
package schedule

import (
	"planline/internal/domain"
	"planline/internal/graph"
)

// TaskSchedule is the computed window for one task.
type TaskSchedule struct {
	EarliestStart  domain.Date `json:"earliest_start"`
	EarliestFinish domain.Date `json:"earliest_finish"`
	LatestStart    domain.Date `json:"latest_start"`
	LatestFinish   domain.Date `json:"latest_finish"`
	Slack          int         `json:"slack"`
}

// Result holds the schedule for every task of a project.
type Result struct {
	Tasks map[string]TaskSchedule

	// OverBudget is set when the earliest finish of some task falls
	// past the project end; the backward pass then anchors on that
	// finish instead so the computation still completes.
	OverBudget bool

	// Infeasible is set when any task has negative slack. With the
	// backward pass anchored on the computed project finish every
	// forward window stays achievable, so Compute leaves this false
	// even under negative lags; the checks guard the anchoring rule.
	Infeasible bool
}

// ErrCycle is returned only when the graph was mutated externally to
// contain a cycle; guarded mutations keep the graph acyclic.
var ErrCycle = domain.CycleError(nil)

// Compute runs the forward and backward passes. Tasks are processed in
// topological order with ties broken by identifier, so results are
// deterministic for a given graph.
func Compute(g *graph.Graph, projectStart, projectEnd domain.Date) (*Result, error) {
	order, ok := g.TopoOrder()
	if !ok {
		return nil, ErrCycle
	}

	start := map[string]int{} // earliest start, day numbers
	finish := map[string]int{}
	projStart := projectStart.DayNumber()
	projEnd := projectEnd.DayNumber()

	// Forward pass: begin from the user-planned start and tighten
	// upward until every incoming constraint holds.
	for _, id := range order {
		t, _ := g.Task(id)
		es := t.Start.DayNumber()
		if len(g.Incoming(id)) == 0 && es < projStart {
			es = projStart
		}
		dur := durationOf(t)
		for _, e := range g.Incoming(id) {
			cand := earliestStartUnder(e, start[e.PredecessorID], finish[e.PredecessorID], dur)
			if cand > es {
				es = cand
			}
		}
		start[id] = es
		finish[id] = es + dur - 1
	}

	res := &Result{Tasks: make(map[string]TaskSchedule, g.Len())}

	// The backward pass anchors on the computed project finish (the
	// max earliest finish) so a zero-slack chain always exists; when
	// that finish falls past the planned project end the project is
	// reported over budget but the computation still completes.
	anchor := projStart
	for _, f := range finish {
		if f > anchor {
			anchor = f
		}
	}
	if anchor > projEnd {
		res.OverBudget = true
	}

	// Backward pass in reverse topological order.
	lstart := map[string]int{}
	lfinish := map[string]int{}
	for i := len(order) - 1; i >= 0; i-- {
		id := order[i]
		t, _ := g.Task(id)
		dur := durationOf(t)
		lf := anchor
		for _, e := range g.Outgoing(id) {
			cand := latestFinishUnder(e, lstart[e.SuccessorID], lfinish[e.SuccessorID], dur)
			if cand < lf {
				lf = cand
			}
		}
		lfinish[id] = lf
		lstart[id] = lf - dur + 1
	}

	for _, id := range order {
		slack := lstart[id] - start[id]
		if slack < 0 {
			res.Infeasible = true
		}
		res.Tasks[id] = TaskSchedule{
			EarliestStart:  domain.DateFromDayNumber(start[id]),
			EarliestFinish: domain.DateFromDayNumber(finish[id]),
			LatestStart:    domain.DateFromDayNumber(lstart[id]),
			LatestFinish:   domain.DateFromDayNumber(lfinish[id]),
			Slack:          slack,
		}
	}

	rollUpParents(g, res)
	return res, nil
}

// earliestStartUnder maps one incoming edge to the smallest successor
// start satisfying its constraint, given the predecessor's earliest
// window. The +1 in FS reflects the inclusive finish day: with lag 0
// the successor may start the next day.
func earliestStartUnder(e domain.Dependency, predStart, predFinish, succDur int) int {
	switch e.Type {
	case domain.StartToStart:
		return predStart + e.Lag
	case domain.FinishToFinish:
		return predFinish + e.Lag - (succDur - 1)
	case domain.StartToFinish:
		return predStart + e.Lag - (succDur - 1)
	default: // FS
		return predFinish + 1 + e.Lag
	}
}

// latestFinishUnder maps one outgoing edge to the largest predecessor
// finish that still satisfies the constraint, given the successor's
// latest window. Mirror image of earliestStartUnder.
func latestFinishUnder(e domain.Dependency, succLStart, succLFinish, predDur int) int {
	switch e.Type {
	case domain.StartToStart:
		return succLStart - e.Lag + predDur - 1
	case domain.FinishToFinish:
		return succLFinish - e.Lag
	case domain.StartToFinish:
		return succLFinish - e.Lag + predDur - 1
	default: // FS
		return succLStart - 1 - e.Lag
	}
}

// rollUpParents replaces each summary task's windows with the envelope
// of its children, deepest parents first. Parents describe their
// children; they never constrain them.
func rollUpParents(g *graph.Graph, res *Result) {
	for _, id := range byDepthDesc(g) {
		children := g.Children(id)
		if len(children) == 0 {
			continue
		}
		agg := res.Tasks[children[0]]
		for _, childID := range children[1:] {
			c := res.Tasks[childID]
			if c.EarliestStart.Before(agg.EarliestStart) {
				agg.EarliestStart = c.EarliestStart
			}
			if c.EarliestFinish.After(agg.EarliestFinish) {
				agg.EarliestFinish = c.EarliestFinish
			}
			if c.LatestStart.Before(agg.LatestStart) {
				agg.LatestStart = c.LatestStart
			}
			if c.LatestFinish.After(agg.LatestFinish) {
				agg.LatestFinish = c.LatestFinish
			}
		}
		agg.Slack = agg.EarliestStart.DaysUntil(agg.LatestStart)
		if agg.Slack < 0 {
			res.Infeasible = true
		}
		res.Tasks[id] = agg
	}
}

// byDepthDesc returns task ids ordered deepest-in-the-parent-forest
// first, so child envelopes exist before their parents aggregate them.
func byDepthDesc(g *graph.Graph) []string {
	depth := map[string]int{}
	var depthOf func(id string) int
	depthOf = func(id string) int {
		if d, ok := depth[id]; ok {
			return d
		}
		depth[id] = 0 // breaks accidental parent cycles
		t, ok := g.Task(id)
		if !ok || t.ParentID == nil {
			depth[id] = 0
			return 0
		}
		d := depthOf(*t.ParentID) + 1
		depth[id] = d
		return d
	}
	ids := g.TaskIDs()
	for _, id := range ids {
		depthOf(id)
	}
	sortByDepth(ids, depth)
	return ids
}

func sortByDepth(ids []string, depth map[string]int) {
	// Stable insertion keeps the identifier tie-break from TaskIDs.
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && depth[ids[j]] > depth[ids[j-1]]; j-- {
			ids[j], ids[j-1] = ids[j-1], ids[j]
		}
	}
}

// durationOf defends against zero or negative stored durations; the
// engine never shortens a task below one day.
func durationOf(t domain.Task) int {
	if t.Duration > 0 {
		return t.Duration
	}
	d := t.Start.DaysUntil(t.End) + 1
	if d < 1 {
		return 1
	}
	return d
}
