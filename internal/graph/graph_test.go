package graph_test

import (
	"reflect"
	"testing"

	"planline/internal/domain"
	"planline/internal/graph"
)

func simpleTask(id string) domain.Task {
	return domain.Task{ID: id, Name: id, Status: domain.TaskNotStarted}
}

func buildChain(t *testing.T) *graph.Graph {
	t.Helper()
	return graph.Build(
		[]domain.Task{simpleTask("a"), simpleTask("b"), simpleTask("c")},
		[]domain.Dependency{
			{ID: "e1", PredecessorID: "a", SuccessorID: "b", Type: domain.FinishToStart},
			{ID: "e2", PredecessorID: "b", SuccessorID: "c", Type: domain.FinishToStart},
		},
	)
}

func TestWouldCycleDetectsBackEdge(t *testing.T) {
	g := buildChain(t)
	if !g.WouldCycle("c", "a") {
		t.Fatalf("expected c -> a to close a cycle")
	}
	if g.WouldCycle("a", "c") {
		t.Fatalf("a -> c must not be a cycle")
	}
	if !g.WouldCycle("a", "a") {
		t.Fatalf("self loop is a cycle")
	}
}

func TestCyclePathNamesTheLoop(t *testing.T) {
	g := buildChain(t)
	path := g.CyclePath("c", "a")
	if want := []string{"c", "a", "b", "c"}; !reflect.DeepEqual(path, want) {
		t.Fatalf("cycle path = %v, want %v", path, want)
	}
	if want := []string{"a", "a"}; !reflect.DeepEqual(g.CyclePath("a", "a"), want) {
		t.Fatalf("self-loop path = %v, want %v", g.CyclePath("a", "a"), want)
	}
}

func TestReachableSuccessors(t *testing.T) {
	g := buildChain(t)
	if got := g.ReachableSuccessors("a"); !reflect.DeepEqual(got, []string{"b", "c"}) {
		t.Fatalf("reachable from a = %v", got)
	}
	if got := g.ReachableSuccessors("c"); len(got) != 0 {
		t.Fatalf("reachable from c = %v, want none", got)
	}
}

func TestTopoOrderDeterministicTieBreak(t *testing.T) {
	g := graph.Build(
		[]domain.Task{simpleTask("z"), simpleTask("m"), simpleTask("a")},
		nil,
	)
	order, ok := g.TopoOrder()
	if !ok {
		t.Fatalf("unexpected cycle")
	}
	if want := []string{"a", "m", "z"}; !reflect.DeepEqual(order, want) {
		t.Fatalf("order = %v, want identifier tie-break %v", order, want)
	}
}

func TestTopoOrderReportsCycle(t *testing.T) {
	g := buildChain(t)
	g.PutEdge(domain.Dependency{ID: "e3", PredecessorID: "c", SuccessorID: "a", Type: domain.FinishToStart})
	if _, ok := g.TopoOrder(); ok {
		t.Fatalf("expected cycle to be reported")
	}
}

func TestRemoveTaskDropsEdgesAndOrphansChildren(t *testing.T) {
	parent := "b"
	g := buildChain(t)
	child := simpleTask("d")
	child.ParentID = &parent
	g.PutTask(child)

	g.RemoveTask("b")

	if _, ok := g.Task("b"); ok {
		t.Fatalf("task b still present")
	}
	if got := g.Outgoing("a"); len(got) != 0 {
		t.Fatalf("edges of removed task survived: %v", got)
	}
	if got := g.Incoming("c"); len(got) != 0 {
		t.Fatalf("incoming edges of c survived: %v", got)
	}
	d, _ := g.Task("d")
	if d.ParentID != nil {
		t.Fatalf("child d should be orphaned to the project root")
	}
	if got := g.Roots(); !reflect.DeepEqual(got, []string{"a", "c", "d"}) {
		t.Fatalf("roots = %v", got)
	}
}

func TestEdgeBetween(t *testing.T) {
	g := buildChain(t)
	if _, ok := g.EdgeBetween("a", "b"); !ok {
		t.Fatalf("expected edge a -> b")
	}
	if _, ok := g.EdgeBetween("b", "a"); ok {
		t.Fatalf("direction matters; b -> a must not exist")
	}
}
