package task

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDiscoverFindsActiveAndArchivedTasks(t *testing.T) {
	root := t.TempDir()
	mustMkdirAll(t, filepath.Join(root, "tasks", "core"))
	mustMkdirAll(t, filepath.Join(root, "docs", "completed-tasks"))

	writeTaskFile(t, filepath.Join(root, "tasks", "core"), "a.task.yaml", `
id: TASK-A
title: Active task
status: todo
priority: P1
area: core
`)
	writeTaskFile(t, filepath.Join(root, "docs", "completed-tasks"), "b.task.yaml", `
id: TASK-B
title: Archived task
status: completed
priority: P1
area: core
`)

	result, err := Discover(root)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(result.Tasks) != 2 {
		t.Fatalf("Discover: got %d tasks, want 2", len(result.Tasks))
	}
	if len(result.Warnings) != 0 {
		t.Fatalf("Discover: unexpected warnings %v", result.Warnings)
	}

	byID := map[string]*Task{}
	for _, task := range result.Tasks {
		byID[task.ID] = task
	}
	if !byID["TASK-B"].Archived {
		t.Error("TASK-B should be marked archived")
	}
	if byID["TASK-A"].Archived {
		t.Error("TASK-A should not be marked archived")
	}
}

func TestDiscoverWarnsOnInconsistentArchivedStatus(t *testing.T) {
	root := t.TempDir()
	mustMkdirAll(t, filepath.Join(root, "docs", "completed-tasks"))

	writeTaskFile(t, filepath.Join(root, "docs", "completed-tasks"), "c.task.yaml", `
id: TASK-C
title: Should have been completed
status: todo
priority: P1
area: core
`)

	result, err := Discover(root)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(result.Tasks) != 1 {
		t.Fatalf("Discover: got %d tasks, want 1", len(result.Tasks))
	}
	if len(result.Warnings) != 1 {
		t.Fatalf("Discover: got %d warnings, want 1", len(result.Warnings))
	}
}

func TestDiscoverMissingDirsIsNotAnError(t *testing.T) {
	root := t.TempDir()
	result, err := Discover(root)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(result.Tasks) != 0 {
		t.Fatalf("Discover: got %d tasks, want 0", len(result.Tasks))
	}
}

func mustMkdirAll(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(path, 0755); err != nil {
		t.Fatalf("MkdirAll %s: %v", path, err)
	}
}
