package contextstore

import (
	"os"
	"path/filepath"
	"testing"
)

const standardsDoc = `# Coding Standards

## Style & Form

Use tabs, not spaces.

Keep lines under 100 characters.

## Testing

Write a test for every bug fix.
`

func writeStandardsFile(t *testing.T, root string) string {
	t.Helper()
	path := filepath.Join(root, "standards", "code.md")
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(path, []byte(standardsDoc), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestExtractStandardsExcerptMatchesNormalizedHeading(t *testing.T) {
	root := t.TempDir()
	store := New(root, nil)
	if _, err := store.InitContext("TASK-1", InitOptions{Immutable: testImmutable(), CreatedBy: "a"}); err != nil {
		t.Fatalf("InitContext: %v", err)
	}
	writeStandardsFile(t, root)

	citation, err := store.ExtractStandardsExcerpt(root, "TASK-1", "standards/code.md", "style and form")
	if err != nil {
		t.Fatalf("ExtractStandardsExcerpt: %v", err)
	}
	if citation.Section != "Style & Form" {
		t.Fatalf("unexpected section heading: %q", citation.Section)
	}
	if len(citation.ExcerptID) != 8 {
		t.Fatalf("expected an 8-char excerpt id, got %q", citation.ExcerptID)
	}

	excerptPath := filepath.Join(root, ".agent-output", "TASK-1", "evidence", "standards", citation.ExcerptID+".md")
	data, err := os.ReadFile(excerptPath)
	if err != nil {
		t.Fatalf("excerpt file not written: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("expected non-empty excerpt content")
	}
}

func TestExtractStandardsExcerptMissingHeading(t *testing.T) {
	root := t.TempDir()
	store := New(root, nil)
	if _, err := store.InitContext("TASK-1", InitOptions{Immutable: testImmutable(), CreatedBy: "a"}); err != nil {
		t.Fatalf("InitContext: %v", err)
	}
	writeStandardsFile(t, root)

	if _, err := store.ExtractStandardsExcerpt(root, "TASK-1", "standards/code.md", "does not exist"); err == nil {
		t.Fatal("expected missing heading to fail")
	}
}

func TestVerifyExcerptFreshnessFlipsOnContentChange(t *testing.T) {
	root := t.TempDir()
	store := New(root, nil)
	if _, err := store.InitContext("TASK-1", InitOptions{Immutable: testImmutable(), CreatedBy: "a"}); err != nil {
		t.Fatalf("InitContext: %v", err)
	}
	path := writeStandardsFile(t, root)

	citation, err := store.ExtractStandardsExcerpt(root, "TASK-1", "standards/code.md", "Testing")
	if err != nil {
		t.Fatalf("ExtractStandardsExcerpt: %v", err)
	}
	if !store.VerifyExcerptFreshness(root, *citation) {
		t.Fatal("expected freshly extracted excerpt to verify as fresh")
	}

	// Changing a different section (Style & Form) leaves Testing's body
	// untouched, so the Testing excerpt should remain fresh.
	untouchedChange := `# Coding Standards

## Style & Form

Use spaces, not tabs.

## Testing

Write a test for every bug fix.
`
	if err := os.WriteFile(path, []byte(untouchedChange), 0644); err != nil {
		t.Fatalf("WriteFile (mutate unrelated section): %v", err)
	}
	if !store.VerifyExcerptFreshness(root, *citation) {
		t.Fatal("expected excerpt to remain fresh when the cited section itself is untouched")
	}

	changed := `# Coding Standards

## Style & Form

Use tabs, not spaces.

## Testing

Write two tests for every bug fix.
`
	if err := os.WriteFile(path, []byte(changed), 0644); err != nil {
		t.Fatalf("WriteFile (mutate): %v", err)
	}
	if store.VerifyExcerptFreshness(root, *citation) {
		t.Fatal("expected changing the cited section to flip freshness to false")
	}
}

func TestInvalidateStaleExcerptsPrunesIndex(t *testing.T) {
	root := t.TempDir()
	store := New(root, nil)
	if _, err := store.InitContext("TASK-1", InitOptions{Immutable: testImmutable(), CreatedBy: "a"}); err != nil {
		t.Fatalf("InitContext: %v", err)
	}
	path := writeStandardsFile(t, root)

	citation, err := store.ExtractStandardsExcerpt(root, "TASK-1", "standards/code.md", "Testing")
	if err != nil {
		t.Fatalf("ExtractStandardsExcerpt: %v", err)
	}

	changed := `# Coding Standards

## Testing

Totally different content now.
`
	if err := os.WriteFile(path, []byte(changed), 0644); err != nil {
		t.Fatalf("WriteFile (mutate): %v", err)
	}

	removed, err := store.InvalidateStaleExcerpts(root, "TASK-1")
	if err != nil {
		t.Fatalf("InvalidateStaleExcerpts: %v", err)
	}
	if len(removed) != 1 || removed[0] != citation.ExcerptID {
		t.Fatalf("expected stale excerpt %q to be removed, got %v", citation.ExcerptID, removed)
	}

	excerptPath := filepath.Join(root, ".agent-output", "TASK-1", "evidence", "standards", citation.ExcerptID+".md")
	if _, err := os.Stat(excerptPath); !os.IsNotExist(err) {
		t.Fatalf("expected stale excerpt file to be removed, stat err = %v", err)
	}
}

func TestRequirementSummaryTruncatesAt140NoEllipsis(t *testing.T) {
	long := ""
	for i := 0; i < 30; i++ {
		long += "word "
	}
	summary := RequirementSummary(long)
	if len(summary) > 140 {
		t.Fatalf("expected summary to be truncated to 140 chars, got %d", len(summary))
	}
	if summary[len(summary)-1] == '.' && len(summary) >= 3 && summary[len(summary)-3:] == "..." {
		t.Fatal("expected no ellipsis appended")
	}
}
