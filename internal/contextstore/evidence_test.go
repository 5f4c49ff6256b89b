package contextstore

import (
	"os"
	"path/filepath"
	"testing"
)

func TestAttachEvidenceCopiesFileAndRecordsIndex(t *testing.T) {
	root := t.TempDir()
	store := New(root, nil)
	if _, err := store.InitContext("TASK-1", InitOptions{Immutable: testImmutable(), CreatedBy: "a"}); err != nil {
		t.Fatalf("InitContext: %v", err)
	}

	artifact := filepath.Join(root, "qa.log")
	if err := os.WriteFile(artifact, []byte("1 passed\n"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	att, err := store.AttachEvidence("TASK-1", artifact, AttachmentLog, "pytest run", 0, nil)
	if err != nil {
		t.Fatalf("AttachEvidence: %v", err)
	}
	if att.SizeBytes != int64(len("1 passed\n")) {
		t.Fatalf("unexpected size %d", att.SizeBytes)
	}

	list, err := store.ListEvidence("TASK-1")
	if err != nil {
		t.Fatalf("ListEvidence: %v", err)
	}
	if len(list) != 1 || list[0].ID != att.ID {
		t.Fatalf("unexpected evidence list: %+v", list)
	}
}

func TestAttachEvidenceSameContentIsIdempotent(t *testing.T) {
	root := t.TempDir()
	store := New(root, nil)
	if _, err := store.InitContext("TASK-1", InitOptions{Immutable: testImmutable(), CreatedBy: "a"}); err != nil {
		t.Fatalf("InitContext: %v", err)
	}

	artifact := filepath.Join(root, "qa.log")
	if err := os.WriteFile(artifact, []byte("same content\n"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	first, err := store.AttachEvidence("TASK-1", artifact, AttachmentLog, "first", 0, nil)
	if err != nil {
		t.Fatalf("first AttachEvidence: %v", err)
	}
	second, err := store.AttachEvidence("TASK-1", artifact, AttachmentLog, "second", 0, nil)
	if err != nil {
		t.Fatalf("second AttachEvidence: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("expected content-addressed id to be stable: %q vs %q", first.ID, second.ID)
	}

	list, err := store.ListEvidence("TASK-1")
	if err != nil {
		t.Fatalf("ListEvidence: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected re-attaching identical content to not duplicate the index, got %d entries", len(list))
	}
}

func TestAttachEvidenceRejectsUnknownType(t *testing.T) {
	root := t.TempDir()
	store := New(root, nil)
	if _, err := store.InitContext("TASK-1", InitOptions{Immutable: testImmutable(), CreatedBy: "a"}); err != nil {
		t.Fatalf("InitContext: %v", err)
	}
	artifact := filepath.Join(root, "qa.log")
	if err := os.WriteFile(artifact, []byte("x"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := store.AttachEvidence("TASK-1", artifact, AttachmentType("bogus"), "", 0, nil); err == nil {
		t.Fatal("expected unknown attachment type to fail")
	}
}

func TestAttachEvidenceRejectsMissingFile(t *testing.T) {
	root := t.TempDir()
	store := New(root, nil)
	if _, err := store.InitContext("TASK-1", InitOptions{Immutable: testImmutable(), CreatedBy: "a"}); err != nil {
		t.Fatalf("InitContext: %v", err)
	}
	if _, err := store.AttachEvidence("TASK-1", filepath.Join(root, "missing.log"), AttachmentLog, "", 0, nil); err == nil {
		t.Fatal("expected missing artifact to fail")
	}
}

func TestAttachEvidenceCompressesOverSizeCeiling(t *testing.T) {
	root := t.TempDir()
	store := New(root, nil)
	if _, err := store.InitContext("TASK-1", InitOptions{Immutable: testImmutable(), CreatedBy: "a"}); err != nil {
		t.Fatalf("InitContext: %v", err)
	}
	artifact := filepath.Join(root, "big.log")
	if err := os.WriteFile(artifact, []byte("0123456789"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	called := false
	compress := func(src, dst string) error {
		called = true
		return os.WriteFile(dst, []byte("compressed"), 0644)
	}

	att, err := store.AttachEvidence("TASK-1", artifact, AttachmentLog, "", 5, compress)
	if err != nil {
		t.Fatalf("AttachEvidence: %v", err)
	}
	if !called {
		t.Fatal("expected the compressor to be invoked for an over-ceiling file")
	}
	if !att.Compressed {
		t.Fatal("expected attachment to be marked compressed")
	}
}
