package graph

import "sort"

// WouldCycle reports whether adding predID -> succID would close a
// directed cycle, i.e. whether predID is already reachable from succID
// along successor edges. Iterative DFS, O(V+E); graphs are small
// (thousands of tasks per project at most) so nothing is cached.
func (g *Graph) WouldCycle(predID, succID string) bool {
	if predID == succID {
		return true
	}
	_, found := g.pathBetween(succID, predID)
	return found
}

// CyclePath returns the cycle that adding predID -> succID would
// create, starting from the proposed edge's predecessor: predID,
// succID .. predID. Empty when no cycle would form.
func (g *Graph) CyclePath(predID, succID string) []string {
	if predID == succID {
		return []string{predID, predID}
	}
	path, found := g.pathBetween(succID, predID)
	if !found {
		return nil
	}
	return append([]string{predID}, path...)
}

// ReachableSuccessors returns every task reachable from taskID along
// successor edges, sorted by identifier. Used for would-cycle previews.
func (g *Graph) ReachableSuccessors(taskID string) []string {
	seen := map[string]bool{}
	stack := []string{taskID}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, e := range g.Outgoing(cur) {
			if !seen[e.SuccessorID] {
				seen[e.SuccessorID] = true
				stack = append(stack, e.SuccessorID)
			}
		}
	}
	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// pathBetween finds a path from -> to along successor edges.
func (g *Graph) pathBetween(from, to string) ([]string, bool) {
	parent := map[string]string{from: ""}
	stack := []string{from}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if cur == to {
			var path []string
			for id := cur; id != ""; id = parent[id] {
				path = append([]string{id}, path...)
			}
			return path, true
		}
		for _, e := range g.Outgoing(cur) {
			if _, ok := parent[e.SuccessorID]; !ok {
				parent[e.SuccessorID] = cur
				stack = append(stack, e.SuccessorID)
			}
		}
	}
	return nil, false
}

// TopoOrder returns the task ids in topological order over the
// dependency edges, ties broken by identifier. ok is false when the
// graph contains a cycle, which cannot happen under guarded mutations.
func (g *Graph) TopoOrder() (order []string, ok bool) {
	indegree := map[string]int{}
	for id := range g.tasks {
		indegree[id] = len(g.in[id])
	}
	var ready []string
	for id, n := range indegree {
		if n == 0 {
			ready = append(ready, id)
		}
	}
	sort.Strings(ready)
	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		order = append(order, id)
		released := false
		for _, e := range g.Outgoing(id) {
			indegree[e.SuccessorID]--
			if indegree[e.SuccessorID] == 0 {
				ready = append(ready, e.SuccessorID)
				released = true
			}
		}
		if released {
			sort.Strings(ready)
		}
	}
	return order, len(order) == len(g.tasks)
}
