package querycache

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/taskctl/taskctl/internal/task"
)

func testPath(t *testing.T) string {
	return filepath.Join(t.TempDir(), "query_cache.db")
}

func intPtr(i int) *int { return &i }

func TestOpenAndInitSchema(t *testing.T) {
	db, err := Open(testPath(t), nil)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer db.Close()

	if err := db.InitSchema(context.Background()); err != nil {
		t.Fatalf("InitSchema() failed: %v", err)
	}
	// Idempotent re-init.
	if err := db.InitSchema(context.Background()); err != nil {
		t.Fatalf("second InitSchema() failed: %v", err)
	}
}

func TestRebuildAndReadyTasks(t *testing.T) {
	db, err := Open(testPath(t), nil)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer db.Close()
	if err := db.InitSchema(context.Background()); err != nil {
		t.Fatalf("InitSchema() failed: %v", err)
	}

	tasks := []*task.Task{
		{ID: "TASK-A", Title: "Unblocker", Area: "core", Status: task.StatusTodo, Priority: task.PriorityP2, Unblocker: true, Order: intPtr(1)},
		{ID: "TASK-B", Title: "P0 ready", Area: "core", Status: task.StatusTodo, Priority: task.PriorityP0},
		{ID: "TASK-C", Title: "Blocked", Area: "core", Status: task.StatusTodo, Priority: task.PriorityP0, BlockedBy: []string{"TASK-A"}},
	}
	if err := db.Rebuild(context.Background(), tasks); err != nil {
		t.Fatalf("Rebuild() failed: %v", err)
	}

	stale, err := db.Stale(context.Background(), len(tasks))
	if err != nil {
		t.Fatalf("Stale() failed: %v", err)
	}
	if stale {
		t.Fatalf("Stale() = true after matching rebuild")
	}
	stale, err = db.Stale(context.Background(), len(tasks)+1)
	if err != nil {
		t.Fatalf("Stale() failed: %v", err)
	}
	if !stale {
		t.Fatalf("Stale() = false for mismatched count")
	}

	ready, err := db.ReadyTasks(context.Background())
	if err != nil {
		t.Fatalf("ReadyTasks() failed: %v", err)
	}
	if len(ready) != 2 {
		t.Fatalf("ReadyTasks() returned %d rows, want 2 (TASK-C is blocked)", len(ready))
	}
	if ready[0].ID != "TASK-A" {
		t.Errorf("ReadyTasks()[0] = %s, want TASK-A (unblocker sorts first)", ready[0].ID)
	}
}
