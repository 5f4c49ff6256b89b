package graph

import (
	"testing"

	"github.com/taskctl/taskctl/internal/task"
)

func mkTask(id string, status task.Status, blockedBy ...string) *task.Task {
	return &task.Task{ID: id, Title: id, Status: status, Priority: task.PriorityP1, BlockedBy: blockedBy}
}

func TestDetectCyclesFindsSimpleCycle(t *testing.T) {
	tasks := []*task.Task{
		mkTask("A", task.StatusTodo, "B"),
		mkTask("B", task.StatusTodo, "C"),
		mkTask("C", task.StatusTodo, "A"),
	}
	g := New(tasks)
	cycles := g.DetectCycles()
	if len(cycles) == 0 {
		t.Fatal("expected at least one cycle")
	}
}

func TestDetectCyclesNoneOnDAG(t *testing.T) {
	tasks := []*task.Task{
		mkTask("A", task.StatusTodo),
		mkTask("B", task.StatusTodo, "A"),
		mkTask("C", task.StatusTodo, "B"),
	}
	g := New(tasks)
	if cycles := g.DetectCycles(); len(cycles) != 0 {
		t.Fatalf("expected no cycles, got %v", cycles)
	}
}

func TestMissingDependenciesArchiveResolved(t *testing.T) {
	archived := mkTask("DONE-1", task.StatusCompleted)
	archived.Archived = true
	tasks := []*task.Task{
		mkTask("A", task.StatusTodo, "DONE-1"),
		archived,
	}
	g := New(tasks)
	if missing := g.MissingDependencies(); len(missing) != 0 {
		t.Fatalf("archive-resolved reference reported missing: %v", missing)
	}
}

func TestMissingDependenciesTrueMiss(t *testing.T) {
	tasks := []*task.Task{mkTask("A", task.StatusTodo, "GHOST")}
	g := New(tasks)
	missing := g.MissingDependencies()
	if len(missing) != 1 || missing[0].RefID != "GHOST" {
		t.Fatalf("expected one missing dep on GHOST, got %v", missing)
	}
}

func TestTopologicalReadySetOnlyHonorsBlockedBy(t *testing.T) {
	tasks := []*task.Task{
		mkTask("A", task.StatusTodo),
		mkTask("B", task.StatusTodo, "A"),
	}
	tasks[1].DependsOn = []string{"A"}
	g := New(tasks)

	ready := g.TopologicalReadySet(map[string]bool{})
	if len(ready) != 1 || ready[0].ID != "A" {
		t.Fatalf("expected only A ready, got %v", idsOf(ready))
	}

	ready = g.TopologicalReadySet(map[string]bool{"A": true})
	if len(ready) != 1 || ready[0].ID != "B" {
		t.Fatalf("expected only B ready once A completed, got %v", idsOf(ready))
	}
}

func idsOf(tasks []*task.Task) []string {
	out := make([]string, len(tasks))
	for i, t := range tasks {
		out[i] = t.ID
	}
	return out
}

func TestComputeDependencyClosure(t *testing.T) {
	tasks := []*task.Task{
		mkTask("A", task.StatusTodo),
		mkTask("B", task.StatusTodo, "A"),
		mkTask("C", task.StatusTodo, "B"),
	}
	g := New(tasks)
	closure := g.ComputeDependencyClosure("C")
	if len(closure.Blocking) != 2 {
		t.Fatalf("expected 2 transitive blockers, got %v", closure.Blocking)
	}
}

func TestFindTransitivelyBlocked(t *testing.T) {
	tasks := []*task.Task{
		mkTask("A", task.StatusTodo),
		mkTask("B", task.StatusTodo, "A"),
		mkTask("C", task.StatusTodo, "B"),
	}
	g := New(tasks)
	blocked := g.FindTransitivelyBlocked("A")
	if len(blocked) != 2 {
		t.Fatalf("expected B and C transitively blocked by A, got %v", blocked)
	}
}

func TestValidateReportsDuplicateIDs(t *testing.T) {
	tasks := []*task.Task{
		mkTask("A", task.StatusTodo),
		mkTask("A", task.StatusTodo),
		mkTask("B", task.StatusTodo),
	}
	g := New(tasks)
	ok, problems := g.Validate()
	if ok {
		t.Fatal("expected validation to fail on a duplicated id")
	}
	found := false
	for _, p := range problems {
		if p == "duplicate task id: A" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a duplicate-id problem, got %v", problems)
	}
}
