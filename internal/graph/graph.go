// Package graph builds and analyzes the dependency graph over a task set:
// cycle detection, missing-reference detection, topological readiness, and
// transitive closures.
package graph

import (
	"container/list"
	"fmt"
	"sort"

	"github.com/taskctl/taskctl/internal/task"
)

// Graph is the dependency graph over one task set. blockedBy edges are
// hard execution blockers; dependsOn edges are informational and never
// affect readiness.
type Graph struct {
	tasks map[string]*task.Task

	blockedBy        map[string][]string
	dependsOn        map[string][]string
	reverseBlockedBy map[string][]string

	// duplicates records ids seen more than once during construction;
	// the map above keeps only the last, so this is the only record.
	duplicates []string
}

// New builds a Graph from the full task set (active and archived).
func New(tasks []*task.Task) *Graph {
	g := &Graph{
		tasks:            make(map[string]*task.Task, len(tasks)),
		blockedBy:        make(map[string][]string, len(tasks)),
		dependsOn:        make(map[string][]string, len(tasks)),
		reverseBlockedBy: make(map[string][]string, len(tasks)),
	}
	for _, t := range tasks {
		if _, exists := g.tasks[t.ID]; exists {
			g.duplicates = append(g.duplicates, t.ID)
		}
		g.tasks[t.ID] = t
	}
	for _, t := range tasks {
		g.blockedBy[t.ID] = append([]string(nil), t.BlockedBy...)
		g.dependsOn[t.ID] = append([]string(nil), t.DependsOn...)
		for _, blocker := range t.BlockedBy {
			g.reverseBlockedBy[blocker] = append(g.reverseBlockedBy[blocker], t.ID)
		}
	}
	return g
}

// Task returns the task with the given id, or nil.
func (g *Graph) Task(id string) *task.Task { return g.tasks[id] }

// Tasks returns every task in the graph (active and archived).
func (g *Graph) Tasks() []*task.Task {
	out := make([]*task.Task, 0, len(g.tasks))
	for _, t := range g.tasks {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Blockers returns the ids that hard-block task id.
func (g *Graph) Blockers(id string) []string { return g.blockedBy[id] }

// Cycle is one detected dependency cycle in the blocking graph, expressed
// as the ids visited in order, closing back on the first.
type Cycle []string

func (c Cycle) String() string {
	s := ""
	for i, id := range c {
		if i > 0 {
			s += " -> "
		}
		s += id
	}
	return s
}

// DetectCycles finds every distinct cycle in the blocking graph using a
// depth-first search with a recursion stack. When a back-edge is found,
// the cycle is the path slice from the repeated node to the end, plus the
// repeated node again.
func (g *Graph) DetectCycles() []Cycle {
	visited := make(map[string]bool)
	onStack := make(map[string]bool)
	var path []string
	var cycles []Cycle

	var visit func(id string)
	visit = func(id string) {
		visited[id] = true
		onStack[id] = true
		path = append(path, id)

		for _, blocker := range g.blockedBy[id] {
			if onStack[blocker] {
				start := indexOf(path, blocker)
				if start >= 0 {
					cyc := append([]string(nil), path[start:]...)
					cyc = append(cyc, blocker)
					cycles = append(cycles, cyc)
				}
				continue
			}
			if !visited[blocker] {
				visit(blocker)
			}
		}

		path = path[:len(path)-1]
		onStack[id] = false
	}

	ids := g.sortedIDs()
	for _, id := range ids {
		if !visited[id] {
			visit(id)
		}
	}
	return cycles
}

func indexOf(path []string, id string) int {
	for i, p := range path {
		if p == id {
			return i
		}
	}
	return -1
}

// MissingDependency names a reference from a task to an id not present in
// the task set, with the edge kind that referenced it.
type MissingDependency struct {
	TaskID string
	RefID  string
	Kind   string // "blocked_by" or "depends_on"
}

// MissingDependencies returns every blocked_by/depends_on reference that
// does not resolve to a known task id. Archived (completed) tasks are
// part of the task set, so references to them are never missing.
func (g *Graph) MissingDependencies() []MissingDependency {
	var missing []MissingDependency
	for _, id := range g.sortedIDs() {
		for _, ref := range g.blockedBy[id] {
			if _, ok := g.tasks[ref]; !ok {
				missing = append(missing, MissingDependency{TaskID: id, RefID: ref, Kind: "blocked_by"})
			}
		}
		for _, ref := range g.dependsOn[id] {
			if _, ok := g.tasks[ref]; !ok {
				missing = append(missing, MissingDependency{TaskID: id, RefID: ref, Kind: "depends_on"})
			}
		}
	}
	return missing
}

func (g *Graph) duplicateIDs() []string {
	dups := append([]string(nil), g.duplicates...)
	sort.Strings(dups)
	return dups
}

// Validate runs cycle detection, missing-reference detection, and a
// duplicate-id sanity check, returning ok=false with human-readable error
// strings when any check fails.
func (g *Graph) Validate() (bool, []string) {
	var errs []string

	for _, c := range g.DetectCycles() {
		errs = append(errs, fmt.Sprintf("dependency cycle: %s", c))
	}
	for _, m := range g.MissingDependencies() {
		errs = append(errs, fmt.Sprintf("task %s references unknown %s %s", m.TaskID, m.Kind, m.RefID))
	}
	for _, dup := range g.duplicateIDs() {
		errs = append(errs, fmt.Sprintf("duplicate task id: %s", dup))
	}

	return len(errs) == 0, errs
}

// TopologicalReadySet returns the non-completed tasks whose blocked_by ids
// are all present in completedIDs, sorted lexicographically by id for
// determinism.
func (g *Graph) TopologicalReadySet(completedIDs map[string]bool) []*task.Task {
	var ready []*task.Task
	for _, id := range g.sortedIDs() {
		t := g.tasks[id]
		if t.IsCompleted() {
			continue
		}
		blocked := false
		for _, b := range g.blockedBy[id] {
			if !completedIDs[b] {
				blocked = true
				break
			}
		}
		if !blocked {
			ready = append(ready, t)
		}
	}
	return ready
}

// DependencyClosure is the transitive closure of a task's dependencies.
type DependencyClosure struct {
	Blocking   []string // transitive blocked_by
	Artifacts  []string // transitive depends_on
	Transitive []string // union of Blocking and Artifacts
}

// ComputeDependencyClosure walks the blocking and artifact graphs
// separately (each memoized against re-visiting under diamond structures)
// and returns their union as well.
func (g *Graph) ComputeDependencyClosure(id string) DependencyClosure {
	blocking := g.closure(id, g.blockedBy, make(map[string]bool))
	artifacts := g.closure(id, g.dependsOn, make(map[string]bool))

	union := make(map[string]bool, len(blocking)+len(artifacts))
	for _, b := range blocking {
		union[b] = true
	}
	for _, a := range artifacts {
		union[a] = true
	}

	return DependencyClosure{
		Blocking:   sortedKeys(toSet(blocking)),
		Artifacts:  sortedKeys(toSet(artifacts)),
		Transitive: sortedKeys(union),
	}
}

func (g *Graph) closure(id string, edges map[string][]string, visited map[string]bool) []string {
	var out []string
	var walk func(id string)
	walk = func(id string) {
		for _, next := range edges[id] {
			if visited[next] {
				continue
			}
			visited[next] = true
			out = append(out, next)
			walk(next)
		}
	}
	walk(id)
	return out
}

func toSet(ids []string) map[string]bool {
	m := make(map[string]bool, len(ids))
	for _, id := range ids {
		m[id] = true
	}
	return m
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// FindTransitivelyBlocked performs a breadth-first search over the reverse
// blocking index to find everything that id (transitively) blocks.
func (g *Graph) FindTransitivelyBlocked(id string) []string {
	visited := make(map[string]bool)
	blocked := make(map[string]bool)

	queue := list.New()
	queue.PushBack(id)
	visited[id] = true

	for queue.Len() > 0 {
		front := queue.Remove(queue.Front()).(string)
		for _, dependent := range g.reverseBlockedBy[front] {
			if visited[dependent] {
				continue
			}
			visited[dependent] = true
			blocked[dependent] = true
			queue.PushBack(dependent)
		}
	}

	return sortedKeys(blocked)
}

func (g *Graph) sortedIDs() []string {
	ids := make([]string, 0, len(g.tasks))
	for id := range g.tasks {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
