package compliance

import "testing"

func TestQuarantineRoundTrip(t *testing.T) {
	s := New(t.TempDir())

	quarantined, err := s.IsQuarantined("TASK-1")
	if err != nil {
		t.Fatalf("IsQuarantined() on empty store failed: %v", err)
	}
	if quarantined {
		t.Fatalf("IsQuarantined() = true on empty store")
	}

	if err := s.Quarantine(QuarantineEntry{TaskID: "TASK-1", Reason: "needs review", CreatedBy: "tester"}); err != nil {
		t.Fatalf("Quarantine() failed: %v", err)
	}
	quarantined, err = s.IsQuarantined("TASK-1")
	if err != nil || !quarantined {
		t.Fatalf("IsQuarantined() = %v, %v; want true, nil", quarantined, err)
	}

	list, err := s.ListQuarantined()
	if err != nil || len(list) != 1 {
		t.Fatalf("ListQuarantined() = %v, %v; want 1 entry", list, err)
	}

	if err := s.ReleaseQuarantine("TASK-1"); err != nil {
		t.Fatalf("ReleaseQuarantine() failed: %v", err)
	}
	// Idempotent.
	if err := s.ReleaseQuarantine("TASK-1"); err != nil {
		t.Fatalf("second ReleaseQuarantine() failed: %v", err)
	}
	quarantined, _ = s.IsQuarantined("TASK-1")
	if quarantined {
		t.Fatalf("IsQuarantined() = true after release")
	}
}

func TestExceptionLedger(t *testing.T) {
	s := New(t.TempDir())

	id, err := s.AddException(ExceptionEntry{TaskID: "TASK-2", Reason: "secret pattern detected", CreatedBy: "tester"})
	if err != nil {
		t.Fatalf("AddException() failed: %v", err)
	}
	if id == "" {
		t.Fatalf("AddException() returned empty id")
	}

	list, err := s.ListExceptions()
	if err != nil || len(list) != 1 {
		t.Fatalf("ListExceptions() = %v, %v; want 1 entry", list, err)
	}

	if err := s.ResolveException(id, "reviewer"); err != nil {
		t.Fatalf("ResolveException() failed: %v", err)
	}

	removed, err := s.CleanupExceptions()
	if err != nil {
		t.Fatalf("CleanupExceptions() failed: %v", err)
	}
	if removed != 1 {
		t.Fatalf("CleanupExceptions() removed %d, want 1", removed)
	}
	list, _ = s.ListExceptions()
	if len(list) != 0 {
		t.Fatalf("ListExceptions() after cleanup = %d entries, want 0", len(list))
	}
}
