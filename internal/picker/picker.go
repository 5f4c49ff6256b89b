// Package picker applies the deterministic priority total ordering over a
// repository's ready task set and detects the workflow-halt condition.
package picker

import (
	"sort"

	"github.com/taskctl/taskctl/internal/graph"
	"github.com/taskctl/taskctl/internal/task"
	"github.com/taskctl/taskctl/internal/taskerr"
)

const defaultRank = 99

var statusRank = map[task.Status]int{
	task.StatusBlocked:    0,
	task.StatusInProgress: 1,
	task.StatusTodo:       2,
	task.StatusCompleted:  3,
}

var priorityRank = map[task.Priority]int{
	task.PriorityP0: 0,
	task.PriorityP1: 1,
	task.PriorityP2: 2,
}

const defaultOrder = 9999

// HaltError is returned when the workflow must stop because one or more
// unblocker tasks are blocked.
type HaltError struct {
	BlockedUnblockers []string
}

func (e *HaltError) Error() string {
	return "workflow halted: blocked unblocker tasks present"
}

// ToTaskErr converts a HaltError into the shared error taxonomy.
func (e *HaltError) ToTaskErr() *taskerr.Error {
	return taskerr.New(taskerr.KindHalt, e.Error()).WithDetails(map[string]any{
		"blocked_unblockers": e.BlockedUnblockers,
	})
}

// CheckHaltConditions returns a *HaltError if any unblocker task is
// currently blocked, naming every such task.
func CheckHaltConditions(tasks []*task.Task) *HaltError {
	var blocked []string
	for _, t := range tasks {
		if t.Unblocker && t.Status == task.StatusBlocked {
			blocked = append(blocked, t.ID)
		}
	}
	if len(blocked) == 0 {
		return nil
	}
	sort.Strings(blocked)
	return &HaltError{BlockedUnblockers: blocked}
}

// sortKey is the lexicographic tuple used to totally order tasks:
// (unblocker_rank, status_rank, priority_rank, order, id). Unblocker
// precedes priority by design.
type sortKey struct {
	unblockerRank int
	statusRank    int
	priorityRank  int
	order         int
	id            string
}

func keyFor(t *task.Task) sortKey {
	ub := 1
	if t.Unblocker {
		ub = 0
	}
	sr, ok := statusRank[t.Status]
	if !ok {
		sr = defaultRank
	}
	pr, ok := priorityRank[t.Priority]
	if !ok {
		pr = defaultRank
	}
	order := defaultOrder
	if t.Order != nil {
		order = *t.Order
	}
	return sortKey{unblockerRank: ub, statusRank: sr, priorityRank: pr, order: order, id: t.ID}
}

func less(a, b sortKey) bool {
	if a.unblockerRank != b.unblockerRank {
		return a.unblockerRank < b.unblockerRank
	}
	if a.statusRank != b.statusRank {
		return a.statusRank < b.statusRank
	}
	if a.priorityRank != b.priorityRank {
		return a.priorityRank < b.priorityRank
	}
	if a.order != b.order {
		return a.order < b.order
	}
	return a.id < b.id
}

// Sort orders tasks in place by the priority total ordering.
func Sort(tasks []*task.Task) {
	sort.Slice(tasks, func(i, j int) bool {
		return less(keyFor(tasks[i]), keyFor(tasks[j]))
	})
}

// PickResult is the outcome of a successful pick.
type PickResult struct {
	Task   *task.Task
	Reason string
}

// PickNext selects the next task to work on: it checks halt conditions,
// computes the ready set from g, optionally filters by status, sorts by
// the priority total ordering, and returns the first result.
func PickNext(g *graph.Graph, completedIDs map[string]bool, statusFilter *task.Status) (*PickResult, error) {
	if halt := CheckHaltConditions(g.Tasks()); halt != nil {
		return nil, halt.ToTaskErr()
	}

	ready := g.TopologicalReadySet(completedIDs)
	if statusFilter != nil {
		ready = filterByStatus(ready, *statusFilter)
	}
	Sort(ready)

	if len(ready) == 0 {
		return nil, nil
	}
	return &PickResult{Task: ready[0], Reason: reasonFor(ready[0])}, nil
}

func reasonFor(t *task.Task) string {
	if t.Unblocker {
		return "unblocker task, all blockers satisfied"
	}
	return "highest priority ready task"
}

// ListOptions filters the List operation.
type ListOptions struct {
	StatusFilter  *task.Status
	UnblockerOnly bool
}

// List returns every task (including completed ones) sorted by the
// priority total ordering, optionally filtered.
func List(g *graph.Graph, opts ListOptions) []*task.Task {
	tasks := g.Tasks()
	if opts.StatusFilter != nil {
		tasks = filterByStatus(tasks, *opts.StatusFilter)
	}
	if opts.UnblockerOnly {
		tasks = filterUnblockerOnly(tasks)
	}
	Sort(tasks)
	return tasks
}

func filterByStatus(tasks []*task.Task, status task.Status) []*task.Task {
	var out []*task.Task
	for _, t := range tasks {
		if t.Status == status {
			out = append(out, t)
		}
	}
	return out
}

func filterUnblockerOnly(tasks []*task.Task) []*task.Task {
	var out []*task.Task
	for _, t := range tasks {
		if t.Unblocker {
			out = append(out, t)
		}
	}
	return out
}
