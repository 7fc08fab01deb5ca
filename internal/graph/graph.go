// Package graph holds the in-memory task graph for a single project:
// tasks keyed by identifier plus adjacency views over the typed
// dependency edges. It is the traversal source of truth for the
// scheduler; persistence hands it a consistent copy and it never
// mutates storage. Iteration order is deterministic by identifier so
// schedule results are reproducible across runs.
package graph

import (
	"sort"

	"planline/internal/domain"
)

type Graph struct {
	tasks map[string]domain.Task
	edges map[string]domain.Dependency // by edge id
	out   map[string][]string          // predecessor task id -> edge ids
	in    map[string][]string          // successor task id -> edge ids
	kids  map[string][]string          // parent task id -> child task ids
}

func New() *Graph {
	return &Graph{
		tasks: map[string]domain.Task{},
		edges: map[string]domain.Dependency{},
		out:   map[string][]string{},
		in:    map[string][]string{},
		kids:  map[string][]string{},
	}
}

// Build assembles a graph from stored tasks and edges.
func Build(tasks []domain.Task, deps []domain.Dependency) *Graph {
	g := New()
	for _, t := range tasks {
		g.PutTask(t)
	}
	for _, d := range deps {
		g.PutEdge(d)
	}
	return g
}

// PutTask inserts or replaces a task record.
func (g *Graph) PutTask(t domain.Task) {
	if old, ok := g.tasks[t.ID]; ok && old.ParentID != nil {
		g.kids[*old.ParentID] = remove(g.kids[*old.ParentID], t.ID)
	}
	g.tasks[t.ID] = t
	if t.ParentID != nil {
		g.kids[*t.ParentID] = append(g.kids[*t.ParentID], t.ID)
	}
}

// RemoveTask drops the task, detaches its children (they become roots)
// and removes every edge touching it.
func (g *Graph) RemoveTask(id string) {
	t, ok := g.tasks[id]
	if !ok {
		return
	}
	if t.ParentID != nil {
		g.kids[*t.ParentID] = remove(g.kids[*t.ParentID], id)
	}
	for _, childID := range append([]string(nil), g.kids[id]...) {
		child := g.tasks[childID]
		child.ParentID = nil
		g.tasks[childID] = child
	}
	delete(g.kids, id)
	for _, edgeID := range append(append([]string(nil), g.out[id]...), g.in[id]...) {
		g.RemoveEdge(edgeID)
	}
	delete(g.tasks, id)
}

// PutEdge inserts or replaces a dependency edge. Guards (duplicates,
// cycles, cross-project) run in the engine before this is called.
func (g *Graph) PutEdge(d domain.Dependency) {
	if old, ok := g.edges[d.ID]; ok {
		g.out[old.PredecessorID] = remove(g.out[old.PredecessorID], d.ID)
		g.in[old.SuccessorID] = remove(g.in[old.SuccessorID], d.ID)
	}
	g.edges[d.ID] = d
	g.out[d.PredecessorID] = append(g.out[d.PredecessorID], d.ID)
	g.in[d.SuccessorID] = append(g.in[d.SuccessorID], d.ID)
}

func (g *Graph) RemoveEdge(id string) {
	d, ok := g.edges[id]
	if !ok {
		return
	}
	g.out[d.PredecessorID] = remove(g.out[d.PredecessorID], id)
	g.in[d.SuccessorID] = remove(g.in[d.SuccessorID], id)
	delete(g.edges, id)
}

func (g *Graph) Task(id string) (domain.Task, bool) {
	t, ok := g.tasks[id]
	return t, ok
}

func (g *Graph) Edge(id string) (domain.Dependency, bool) {
	d, ok := g.edges[id]
	return d, ok
}

// EdgeBetween returns the edge for the ordered (pred, succ) pair.
func (g *Graph) EdgeBetween(predID, succID string) (domain.Dependency, bool) {
	for _, edgeID := range g.out[predID] {
		if d := g.edges[edgeID]; d.SuccessorID == succID {
			return d, true
		}
	}
	return domain.Dependency{}, false
}

func (g *Graph) Len() int { return len(g.tasks) }

// TaskIDs returns all task identifiers in sorted order.
func (g *Graph) TaskIDs() []string {
	ids := make([]string, 0, len(g.tasks))
	for id := range g.tasks {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Tasks returns all tasks ordered by identifier.
func (g *Graph) Tasks() []domain.Task {
	ids := g.TaskIDs()
	out := make([]domain.Task, 0, len(ids))
	for _, id := range ids {
		out = append(out, g.tasks[id])
	}
	return out
}

// Edges returns all dependency edges ordered by identifier.
func (g *Graph) Edges() []domain.Dependency {
	ids := make([]string, 0, len(g.edges))
	for id := range g.edges {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]domain.Dependency, 0, len(ids))
	for _, id := range ids {
		out = append(out, g.edges[id])
	}
	return out
}

// Incoming returns the edges whose successor is taskID, ordered by
// predecessor identifier.
func (g *Graph) Incoming(taskID string) []domain.Dependency {
	return g.sortedEdges(g.in[taskID], func(d domain.Dependency) string { return d.PredecessorID })
}

// Outgoing returns the edges whose predecessor is taskID, ordered by
// successor identifier.
func (g *Graph) Outgoing(taskID string) []domain.Dependency {
	return g.sortedEdges(g.out[taskID], func(d domain.Dependency) string { return d.SuccessorID })
}

// Children returns the child task ids of taskID in sorted order.
func (g *Graph) Children(taskID string) []string {
	out := append([]string(nil), g.kids[taskID]...)
	sort.Strings(out)
	return out
}

// Roots returns the ids of tasks without a parent, sorted.
func (g *Graph) Roots() []string {
	var out []string
	for id, t := range g.tasks {
		if t.ParentID == nil {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

func (g *Graph) sortedEdges(ids []string, key func(domain.Dependency) string) []domain.Dependency {
	out := make([]domain.Dependency, 0, len(ids))
	for _, id := range ids {
		out = append(out, g.edges[id])
	}
	sort.Slice(out, func(i, j int) bool { return key(out[i]) < key(out[j]) })
	return out
}

func remove(ids []string, id string) []string {
	for i, v := range ids {
		if v == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}
