package schedule

import (
	"sort"

	"planline/internal/graph"
)

// CriticalPath returns every zero-slack task, ordered by earliest
// start then identifier. When several zero-slack chains exist they are
// all included.
func CriticalPath(g *graph.Graph, res *Result) []string {
	var ids []string
	for id, s := range res.Tasks {
		if s.Slack == 0 {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool {
		si, sj := res.Tasks[ids[i]], res.Tasks[ids[j]]
		if c := si.EarliestStart.Compare(sj.EarliestStart); c != 0 {
			return c < 0
		}
		return ids[i] < ids[j]
	})
	return ids
}

// LongestChain returns the single zero-slack chain with the largest
// duration sum; ties pick the lexicographically smallest identifier
// sequence.
func LongestChain(g *graph.Graph, res *Result) []string {
	critical := map[string]bool{}
	for id, s := range res.Tasks {
		if s.Slack == 0 {
			critical[id] = true
		}
	}

	type chain struct {
		ids []string
		sum int
	}
	memo := map[string]chain{}
	var from func(id string) chain
	from = func(id string) chain {
		if c, ok := memo[id]; ok {
			return c
		}
		t, _ := g.Task(id)
		best := chain{ids: []string{id}, sum: durationOf(t)}
		for _, e := range g.Outgoing(id) {
			if !critical[e.SuccessorID] {
				continue
			}
			next := from(e.SuccessorID)
			cand := chain{
				ids: append([]string{id}, next.ids...),
				sum: durationOf(t) + next.sum,
			}
			if betterChain(cand.ids, cand.sum, best.ids, best.sum) {
				best = cand
			}
		}
		memo[id] = best
		return best
	}

	var overall chain
	for _, id := range sortedIDs(critical) {
		if hasCriticalPredecessor(g, critical, id) {
			continue
		}
		c := from(id)
		if overall.ids == nil || betterChain(c.ids, c.sum, overall.ids, overall.sum) {
			overall = c
		}
	}
	return overall.ids
}

func hasCriticalPredecessor(g *graph.Graph, critical map[string]bool, id string) bool {
	for _, e := range g.Incoming(id) {
		if critical[e.PredecessorID] {
			return true
		}
	}
	return false
}

func betterChain(a []string, aSum int, b []string, bSum int) bool {
	if aSum != bSum {
		return aSum > bSum
	}
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}

func sortedIDs(set map[string]bool) []string {
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
