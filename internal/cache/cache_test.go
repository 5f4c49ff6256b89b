package cache

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTask(t *testing.T, root, name, content string) {
	t.Helper()
	dir := filepath.Join(root, "tasks")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func TestLoadTasksRoundTrip(t *testing.T) {
	root := t.TempDir()
	writeTask(t, root, "a.task.yaml", "id: TASK-A\ntitle: A\nstatus: todo\npriority: P1\narea: core\n")

	store := New(root)
	tasks, warnings, err := store.LoadTasks(false)
	if err != nil {
		t.Fatalf("LoadTasks: %v", err)
	}
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}
	if len(tasks) != 1 || tasks[0].ID != "TASK-A" {
		t.Fatalf("unexpected tasks: %v", tasks)
	}

	tasks2, _, err := store.LoadTasks(false)
	if err != nil {
		t.Fatalf("LoadTasks (from cache): %v", err)
	}
	if len(tasks2) != 1 || tasks2[0].ID != "TASK-A" {
		t.Fatalf("unexpected cached tasks: %v", tasks2)
	}
}

func TestLoadTasksInvalidatesOnNewFile(t *testing.T) {
	root := t.TempDir()
	writeTask(t, root, "a.task.yaml", "id: TASK-A\ntitle: A\nstatus: todo\npriority: P1\narea: core\n")

	store := New(root)
	if _, _, err := store.LoadTasks(false); err != nil {
		t.Fatalf("LoadTasks: %v", err)
	}

	writeTask(t, root, "b.task.yaml", "id: TASK-B\ntitle: B\nstatus: todo\npriority: P1\narea: core\n")

	tasks, _, err := store.LoadTasks(false)
	if err != nil {
		t.Fatalf("LoadTasks: %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("expected cache invalidation to pick up new file, got %d tasks", len(tasks))
	}
}

func TestLoadTasksInvalidatesOnMtimeChange(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "tasks", "a.task.yaml")
	writeTask(t, root, "a.task.yaml", "id: TASK-A\ntitle: A\nstatus: todo\npriority: P1\narea: core\n")

	store := New(root)
	if _, _, err := store.LoadTasks(false); err != nil {
		t.Fatalf("LoadTasks: %v", err)
	}

	if err := os.WriteFile(path, []byte("id: TASK-A\ntitle: A changed\nstatus: todo\npriority: P1\narea: core\n"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	tasks, _, err := store.LoadTasks(false)
	if err != nil {
		t.Fatalf("LoadTasks: %v", err)
	}
	if tasks[0].Title != "A changed" {
		t.Fatalf("expected cache to detect mtime change, got title %q", tasks[0].Title)
	}
}

func TestGetCacheInfoWhenAbsent(t *testing.T) {
	root := t.TempDir()
	store := New(root)
	info, err := store.GetCacheInfo()
	if err != nil {
		t.Fatalf("GetCacheInfo: %v", err)
	}
	if info.Exists {
		t.Fatal("expected cache to not exist yet")
	}
}
