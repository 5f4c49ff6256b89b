package contextstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/taskctl/taskctl/internal/taskerr"
)

func TestNormalizeRepoPaths(t *testing.T) {
	cases := []struct {
		name string
		in   []string
		want []string
	}{
		{"file becomes its directory", []string{"internal/widget/widget.go"}, []string{"internal/widget"}},
		{"glob keeps stable prefix", []string{"internal/widget/*.go"}, []string{"internal/widget"}},
		{"nested prefixes collapse", []string{"internal/widget", "internal/widget/sub"}, []string{"internal/widget"}},
		{"order independent", []string{"b/x.go", "a/y.go"}, []string{"a", "b"}},
		{"duplicates removed", []string{"a/x.go", "a/y.go"}, []string{"a"}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := NormalizeRepoPaths(c.in)
			if len(got) != len(c.want) {
				t.Fatalf("NormalizeRepoPaths(%v) = %v, want %v", c.in, got, c.want)
			}
			for i := range got {
				if got[i] != c.want[i] {
					t.Fatalf("NormalizeRepoPaths(%v) = %v, want %v", c.in, got, c.want)
				}
			}
		})
	}
}

func TestNormalizeRepoPathsIsIdempotent(t *testing.T) {
	in := []string{"internal/widget/widget.go", "internal/widget/sub/*.go", "cmd/taskctl"}
	once := NormalizeRepoPaths(in)
	twice := NormalizeRepoPaths(once)
	if len(once) != len(twice) {
		t.Fatalf("not idempotent: %v vs %v", once, twice)
	}
	for i := range once {
		if once[i] != twice[i] {
			t.Fatalf("not idempotent: %v vs %v", once, twice)
		}
	}
}

func TestScopeHashIsOrderIndependent(t *testing.T) {
	a := ScopeHash([]string{"internal/a", "internal/b"})
	b := ScopeHash([]string{"internal/b", "internal/a"})
	if a != b {
		t.Fatalf("expected scope hash to be order-independent, got %s vs %s", a, b)
	}
}

// fakeGit is a minimal in-memory GitDiffer for worktree snapshot tests.
type fakeGit struct {
	changes   []FileChangeRef
	diff      string
	applyDiff string
	applyErr  error
}

func (g *fakeGit) DiffNameStatus(ctx context.Context, baseCommit string, scope []string) ([]FileChangeRef, error) {
	return g.changes, nil
}

func (g *fakeGit) UnifiedDiff(ctx context.Context, baseCommit string, scope []string) (string, error) {
	return g.diff, nil
}

func (g *fakeGit) ApplyDiffToTempIndex(ctx context.Context, baseCommit, diffContent string, scope []string) (string, error) {
	if g.applyErr != nil {
		return "", g.applyErr
	}
	return g.applyDiff, nil
}

func setupTaskWithRepoFile(t *testing.T, repoPaths []string) (*Store, string, string) {
	t.Helper()
	root := t.TempDir()
	store := New(root, nil)

	filePath := filepath.Join(root, "internal", "widget", "widget.go")
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(filePath, []byte("package widget\n"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	imm := testImmutable()
	imm.RepoPaths = repoPaths
	if _, err := store.InitContext("TASK-1", InitOptions{Immutable: imm, CreatedBy: "a"}); err != nil {
		t.Fatalf("InitContext: %v", err)
	}
	return store, root, filePath
}

func TestSnapshotThenVerifyPassesWithoutChange(t *testing.T) {
	store, root, _ := setupTaskWithRepoFile(t, []string{"internal/widget/widget.go"})

	git := &fakeGit{
		changes: []FileChangeRef{{Path: "internal/widget/widget.go", Status: "M"}},
		diff:    "diff --git a/internal/widget/widget.go b/internal/widget/widget.go\n",
	}

	if _, err := store.SnapshotWorktree(context.Background(), root, "TASK-1", RoleImplementer, "implementer-agent", git, "base123", nil); err != nil {
		t.Fatalf("SnapshotWorktree: %v", err)
	}

	if _, err := store.VerifyWorktreeState(context.Background(), root, "TASK-1", RoleImplementer, git); err != nil {
		t.Fatalf("expected VerifyWorktreeState to pass with no intervening change, got %v", err)
	}
}

func TestVerifyWorktreeStateDetectsFileDrift(t *testing.T) {
	store, root, filePath := setupTaskWithRepoFile(t, []string{"internal/widget/widget.go"})

	git := &fakeGit{
		changes: []FileChangeRef{{Path: "internal/widget/widget.go", Status: "M"}},
		diff:    "diff --git a/internal/widget/widget.go b/internal/widget/widget.go\n",
	}

	if _, err := store.SnapshotWorktree(context.Background(), root, "TASK-1", RoleImplementer, "implementer-agent", git, "base123", nil); err != nil {
		t.Fatalf("SnapshotWorktree: %v", err)
	}

	if err := os.WriteFile(filePath, []byte("package widget\n\nfunc X() {}\n"), 0644); err != nil {
		t.Fatalf("mutate file: %v", err)
	}

	_, err := store.VerifyWorktreeState(context.Background(), root, "TASK-1", RoleImplementer, git)
	if err == nil {
		t.Fatal("expected drift after editing a file under repo_paths")
	}
	if !taskerr.Is(err, taskerr.KindDrift) {
		t.Fatalf("expected drift error, got %v", err)
	}
}

func TestVerifyWorktreeStateFailsWithNoRecordedSnapshot(t *testing.T) {
	store, root, _ := setupTaskWithRepoFile(t, []string{"internal/widget/widget.go"})
	git := &fakeGit{}

	_, err := store.VerifyWorktreeState(context.Background(), root, "TASK-1", RoleReviewer, git)
	if err == nil {
		t.Fatal("expected error when no snapshot recorded for role")
	}
	if !taskerr.Is(err, taskerr.KindDrift) {
		t.Fatalf("expected drift error, got %v", err)
	}
}

func TestSnapshotWorktreeRecordsIncrementalDiffForReviewer(t *testing.T) {
	store, root, _ := setupTaskWithRepoFile(t, []string{"internal/widget/widget.go"})

	implGit := &fakeGit{
		changes: []FileChangeRef{{Path: "internal/widget/widget.go", Status: "M"}},
		diff:    "diff --git a/internal/widget/widget.go b/internal/widget/widget.go\n+impl change\n",
	}
	if _, err := store.SnapshotWorktree(context.Background(), root, "TASK-1", RoleImplementer, "implementer-agent", implGit, "base123", nil); err != nil {
		t.Fatalf("implementer SnapshotWorktree: %v", err)
	}

	implRole := RoleImplementer
	reviewerGit := &fakeGit{
		changes:   []FileChangeRef{{Path: "internal/widget/widget.go", Status: "M"}},
		diff:      "diff --git a/internal/widget/widget.go b/internal/widget/widget.go\n+review change\n",
		applyDiff: "diff --git a/internal/widget/widget.go b/internal/widget/widget.go\n+incremental\n",
	}
	snap, err := store.SnapshotWorktree(context.Background(), root, "TASK-1", RoleReviewer, "reviewer-agent", reviewerGit, "base123", &implRole)
	if err != nil {
		t.Fatalf("reviewer SnapshotWorktree: %v", err)
	}
	if snap.DiffFromImplementer == nil || snap.IncrementalDiffSHA == nil {
		t.Fatal("expected an incremental diff to be recorded for the reviewer")
	}
	if snap.IncrementalDiffError != nil {
		t.Fatalf("unexpected incremental diff error: %s", *snap.IncrementalDiffError)
	}
}

func TestSnapshotWorktreeRecordsApplyFailureAsErrorField(t *testing.T) {
	store, root, _ := setupTaskWithRepoFile(t, []string{"internal/widget/widget.go"})

	implGit := &fakeGit{diff: "diff --git a/internal/widget/widget.go b/internal/widget/widget.go\n+impl change\n"}
	if _, err := store.SnapshotWorktree(context.Background(), root, "TASK-1", RoleImplementer, "implementer-agent", implGit, "base123", nil); err != nil {
		t.Fatalf("implementer SnapshotWorktree: %v", err)
	}

	implRole := RoleImplementer
	reviewerGit := &fakeGit{
		diff:     "diff --git a/internal/widget/widget.go b/internal/widget/widget.go\n+review change\n",
		applyErr: taskerr.New(taskerr.KindGit, "patch does not apply"),
	}
	snap, err := store.SnapshotWorktree(context.Background(), root, "TASK-1", RoleReviewer, "reviewer-agent", reviewerGit, "base123", &implRole)
	if err != nil {
		t.Fatalf("reviewer SnapshotWorktree should not fail on apply error: %v", err)
	}
	if snap.IncrementalDiffError == nil {
		t.Fatal("expected apply failure to be recorded as an error field, not a fatal error")
	}
	if snap.DiffFromImplementer != nil {
		t.Fatal("expected no incremental diff path recorded on apply failure")
	}
}
