package main

import (
	"fmt"
	"strings"

	"github.com/taskctl/taskctl/internal/cliio"
	"github.com/taskctl/taskctl/internal/graph"
	"github.com/taskctl/taskctl/internal/task"
	"github.com/taskctl/taskctl/internal/taskerr"
)

// loadGraph loads the task set (via the persistent cache, honoring
// forceRefresh) and builds the dependency graph over it.
func (a *app) loadGraph(forceRefresh bool) (*graph.Graph, []task.Warning, error) {
	tasks, warnings, err := a.cache.LoadTasks(forceRefresh)
	if err != nil {
		return nil, nil, err
	}
	return graph.New(tasks), warnings, nil
}

func completedSet(tasks []*task.Task) map[string]bool {
	out := make(map[string]bool, len(tasks))
	for _, t := range tasks {
		if t.IsCompleted() {
			out[t.ID] = true
		}
	}
	return out
}

// resolveTask looks up a task by ID (or by its file path, accepted so
// commands can be driven directly off `taskctl list` output) against g.
func resolveTask(g *graph.Graph, idOrPath string) (*task.Task, error) {
	if t := g.Task(idOrPath); t != nil {
		return t, nil
	}
	for _, t := range g.Tasks() {
		if t.Path == idOrPath || strings.HasSuffix(t.Path, "/"+idOrPath) {
			return t, nil
		}
	}
	return nil, taskerr.Newf(taskerr.KindValidation, "no such task %q", idOrPath)
}

func emitWarnings(a *app, warnings []task.Warning) {
	for _, w := range warnings {
		a.io.Warn("%s", w.String())
	}
}

func statusPtr(s string) (*task.Status, error) {
	if s == "" {
		return nil, nil
	}
	st := task.Status(s)
	switch st {
	case task.StatusDraft, task.StatusTodo, task.StatusInProgress, task.StatusBlocked, task.StatusCompleted:
		return &st, nil
	default:
		return nil, taskerr.Newf(taskerr.KindValidation, "unknown status %q", s)
	}
}

func (a *app) emit(v any, textLines func()) error {
	if a.io.Format == cliio.FormatJSON {
		return a.io.EmitJSON(v)
	}
	textLines()
	a.io.FlushWarnings()
	return nil
}

func taskSummaryLine(a *app, t *task.Task) string {
	marker := " "
	if t.Unblocker {
		marker = "*"
	}
	return fmt.Sprintf("%s%-12s %-8s %-4s %s", marker, t.ID, t.Status, t.Priority, t.Title)
}
