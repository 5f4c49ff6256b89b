package task

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTaskFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func TestParseInlineAndBlockLists(t *testing.T) {
	dir := t.TempDir()

	inline := writeTaskFile(t, dir, "inline.task.yaml", `
id: TASK-1
title: Inline lists
status: todo
priority: P1
area: core
blocked_by: [TASK-2, TASK-3]
`)
	block := writeTaskFile(t, dir, "block.task.yaml", `
id: TASK-4
title: Block lists
status: todo
priority: P1
area: core
blocked_by:
  - TASK-5
  - TASK-6
`)
	scalar := writeTaskFile(t, dir, "scalar.task.yaml", `
id: TASK-7
title: Scalar dependency
status: todo
priority: P1
area: core
blocked_by: TASK-8
`)

	for _, tc := range []struct {
		path string
		want []string
	}{
		{inline, []string{"TASK-2", "TASK-3"}},
		{block, []string{"TASK-5", "TASK-6"}},
		{scalar, []string{"TASK-8"}},
	} {
		got, warn, err := Parse(tc.path)
		if err != nil {
			t.Fatalf("Parse(%s): %v", tc.path, err)
		}
		if warn != nil {
			t.Fatalf("Parse(%s): unexpected warning %v", tc.path, warn)
		}
		if len(got.BlockedBy) != len(tc.want) {
			t.Fatalf("Parse(%s): BlockedBy = %v, want %v", tc.path, got.BlockedBy, tc.want)
		}
		for i := range tc.want {
			if got.BlockedBy[i] != tc.want[i] {
				t.Errorf("Parse(%s): BlockedBy[%d] = %q, want %q", tc.path, i, got.BlockedBy[i], tc.want[i])
			}
		}
	}
}

func TestParseMissingMandatoryFieldSkipsWithWarning(t *testing.T) {
	dir := t.TempDir()
	path := writeTaskFile(t, dir, "bad.task.yaml", `
title: No id or priority
status: todo
area: core
`)

	got, warn, err := Parse(path)
	if err != nil {
		t.Fatalf("Parse: unexpected error %v", err)
	}
	if got != nil {
		t.Fatalf("Parse: expected nil task, got %+v", got)
	}
	if warn == nil {
		t.Fatalf("Parse: expected a warning, got nil")
	}
}

func TestParseDefaultsSchemaVersion(t *testing.T) {
	dir := t.TempDir()
	path := writeTaskFile(t, dir, "noversion.task.yaml", `
id: TASK-9
title: No schema version
status: todo
priority: P2
area: core
`)
	got, warn, err := Parse(path)
	if err != nil || warn != nil {
		t.Fatalf("Parse: err=%v warn=%v", err, warn)
	}
	if got.SchemaVersion != "1.0" {
		t.Errorf("SchemaVersion = %q, want 1.0", got.SchemaVersion)
	}
}

func TestParseHashIsDeterministic(t *testing.T) {
	dir := t.TempDir()
	content := "id: TASK-10\ntitle: Hash me\nstatus: todo\npriority: P0\narea: core\n"
	path := writeTaskFile(t, dir, "hash.task.yaml", content)

	got1, _, err := Parse(path)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	got2, _, err := Parse(path)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got1.Hash != got2.Hash {
		t.Errorf("Hash not stable across parses: %q vs %q", got1.Hash, got2.Hash)
	}
	if got1.Hash == "" {
		t.Error("Hash is empty")
	}
}
