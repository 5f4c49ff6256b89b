package contextstore

import "testing"

func TestMigrateNoopWhenAlreadyCurrent(t *testing.T) {
	root := t.TempDir()
	store := New(root, nil)
	if _, err := store.InitContext("TASK-1", InitOptions{Immutable: testImmutable(), CreatedBy: "a"}); err != nil {
		t.Fatalf("InitContext: %v", err)
	}

	result, err := store.Migrate("TASK-1")
	if err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	if result.Applied {
		t.Fatalf("expected Applied=false for an already-current context, got %+v", result)
	}
	if result.FromSchema != SchemaVersion || result.ToSchema != SchemaVersion {
		t.Fatalf("expected from==to==SchemaVersion, got %+v", result)
	}
}

func TestMigrateFailsForUnregisteredOldSchema(t *testing.T) {
	root := t.TempDir()
	store := New(root, nil)
	ctx, err := store.InitContext("TASK-1", InitOptions{Immutable: testImmutable(), CreatedBy: "a"})
	if err != nil {
		t.Fatalf("InitContext: %v", err)
	}
	ctx.Version = SchemaVersion + 1
	if err := store.writeContext(ctx); err != nil {
		t.Fatalf("writeContext: %v", err)
	}

	if _, err := store.Migrate("TASK-1"); err == nil {
		t.Fatal("expected migrate to fail with no registered migration path")
	}
}
