package task

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSetStatusPreservesOtherFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "TASK-1.task.yaml")
	original := "id: TASK-1\ntitle: Do the thing\narea: core\npriority: P1\nstatus: todo\n# a trailing comment\n"
	if err := os.WriteFile(path, []byte(original), 0644); err != nil {
		t.Fatal(err)
	}

	if err := SetStatus(path, StatusInProgress); err != nil {
		t.Fatalf("SetStatus() failed: %v", err)
	}

	parsed, warn, err := Parse(path)
	if err != nil || warn != nil {
		t.Fatalf("Parse() after SetStatus = %v, %v, %v", parsed, warn, err)
	}
	if parsed.Status != StatusInProgress {
		t.Errorf("Status = %q, want in_progress", parsed.Status)
	}
	if parsed.Title != "Do the thing" {
		t.Errorf("Title = %q, want preserved", parsed.Title)
	}
}

func TestSetBlockedReasonAddsField(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "TASK-2.task.yaml")
	original := "id: TASK-2\ntitle: Other thing\narea: core\npriority: P2\nstatus: blocked\n"
	if err := os.WriteFile(path, []byte(original), 0644); err != nil {
		t.Fatal(err)
	}

	if err := SetBlockedReason(path, "waiting on TASK-1"); err != nil {
		t.Fatalf("SetBlockedReason() failed: %v", err)
	}

	parsed, _, err := Parse(path)
	if err != nil {
		t.Fatalf("Parse() failed: %v", err)
	}
	if parsed.BlockedReason != "waiting on TASK-1" {
		t.Errorf("BlockedReason = %q, want added", parsed.BlockedReason)
	}
}
