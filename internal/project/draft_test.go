package project

import (
	"encoding/json"
	"sync"
	"testing"
)

func buildSample(t *testing.T) *Draft {
	t.Helper()
	draft, err := Build("legacy-erp", []string{
		"billing/A.cbl",
		"billing/B.cbl",
		"inventory/C.cbl",
		"schema/tables.sql",
		"README.md",
		"orders.ddl",
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	return draft
}

func TestBuildClassifiesByTopLevelDirectory(t *testing.T) {
	draft := buildSample(t)
	if len(draft.Systems) != 3 {
		t.Fatalf("expected 3 systems, got %d: %+v", len(draft.Systems), draft.Systems)
	}
	if draft.Systems[0].Name != "billing" || len(draft.Systems[0].Files) != 2 {
		t.Fatalf("unexpected billing system: %+v", draft.Systems[0])
	}
	// Root-level non-DDL files fall into a system named after the project.
	found := false
	for _, sys := range draft.Systems {
		if sys.Name == "legacy-erp" {
			found = true
			if len(sys.Files) != 1 || sys.Files[0] != "README.md" {
				t.Fatalf("unexpected root system files: %+v", sys.Files)
			}
		}
	}
	if !found {
		t.Fatalf("expected root-level files under project system: %+v", draft.Systems)
	}
	if len(draft.DDL) != 2 {
		t.Fatalf("expected .sql and .ddl files in DDL bucket, got %v", draft.DDL)
	}
}

func TestBuildRequiresProjectName(t *testing.T) {
	if _, err := Build("  ", []string{"a/b.cbl"}); err == nil {
		t.Fatalf("expected missing project name error")
	}
}

func TestMoveFileBetweenSystems(t *testing.T) {
	draft := buildSample(t)
	if err := draft.MoveFile("billing", "inventory", "billing/B.cbl"); err != nil {
		t.Fatalf("move: %v", err)
	}
	billing, err := draft.system("billing")
	if err != nil {
		t.Fatalf("billing missing: %v", err)
	}
	if len(billing.Files) != 1 {
		t.Fatalf("expected file removed from billing, got %v", billing.Files)
	}
	inventory, _ := draft.system("inventory")
	if len(inventory.Files) != 2 {
		t.Fatalf("expected file added to inventory, got %v", inventory.Files)
	}
	if err := draft.MoveFile("billing", "inventory", "billing/B.cbl"); err == nil {
		t.Fatalf("expected error moving a file twice")
	}
}

func TestMoveFileCreatesDestinationSystem(t *testing.T) {
	draft := buildSample(t)
	if err := draft.MoveFile("inventory", "warehouse", "inventory/C.cbl"); err != nil {
		t.Fatalf("move: %v", err)
	}
	if _, err := draft.system("inventory"); err == nil {
		t.Fatalf("emptied system should be pruned")
	}
	warehouse, err := draft.system("warehouse")
	if err != nil || len(warehouse.Files) != 1 {
		t.Fatalf("expected new warehouse system with one file: %v %+v", err, warehouse)
	}
}

func TestMarkAndUnmarkDDL(t *testing.T) {
	draft := buildSample(t)
	if err := draft.MarkDDL("billing", "billing/A.cbl"); err != nil {
		t.Fatalf("mark ddl: %v", err)
	}
	if len(draft.DDL) != 3 {
		t.Fatalf("expected 3 ddl entries, got %v", draft.DDL)
	}
	if err := draft.UnmarkDDL("billing/A.cbl", "billing"); err != nil {
		t.Fatalf("unmark ddl: %v", err)
	}
	billing, _ := draft.system("billing")
	if len(billing.Files) != 2 {
		t.Fatalf("expected file restored to billing, got %v", billing.Files)
	}
}

func TestRenameSystemRejectsCollision(t *testing.T) {
	draft := buildSample(t)
	if err := draft.RenameSystem("billing", "inventory"); err == nil {
		t.Fatalf("expected collision error")
	}
	if err := draft.RenameSystem("billing", "finance"); err != nil {
		t.Fatalf("rename: %v", err)
	}
	if _, err := draft.system("finance"); err != nil {
		t.Fatalf("renamed system missing: %v", err)
	}
}

func TestValidate(t *testing.T) {
	draft := buildSample(t)
	if err := draft.Validate(); err != nil {
		t.Fatalf("valid draft rejected: %v", err)
	}
	empty := &Draft{ProjectName: "x"}
	if err := empty.Validate(); err == nil {
		t.Fatalf("expected draft without systems to be rejected")
	}
}

func TestStoreLifecycle(t *testing.T) {
	store := NewStore()
	if _, err := store.Get("s1"); err != ErrDraftNotFound {
		t.Fatalf("expected ErrDraftNotFound, got %v", err)
	}
	draft := buildSample(t)
	store.Put("s1", draft)
	if err := store.Update("s1", func(d *Draft) error {
		return d.RemoveFile("billing", "billing/A.cbl")
	}); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, err := store.Get("s1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	billing, _ := got.system("billing")
	if len(billing.Files) != 1 {
		t.Fatalf("update not applied: %v", billing.Files)
	}
	store.Delete("s1")
	if _, err := store.Get("s1"); err != ErrDraftNotFound {
		t.Fatalf("expected draft removed, got %v", err)
	}
}

func TestStoreGetReturnsIsolatedCopy(t *testing.T) {
	store := NewStore()
	store.Put("s1", buildSample(t))
	got, err := store.Get("s1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	got.ProjectName = "mutated"
	got.Systems[0].Files[0] = "mutated.cbl"
	got.DDL[0] = "mutated.sql"

	fresh, err := store.Get("s1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if fresh.ProjectName != "legacy-erp" {
		t.Fatalf("stored draft mutated through copy: %q", fresh.ProjectName)
	}
	if fresh.Systems[0].Files[0] != "billing/A.cbl" {
		t.Fatalf("stored system files mutated through copy: %v", fresh.Systems[0].Files)
	}
	if fresh.DDL[0] == "mutated.sql" {
		t.Fatalf("stored ddl mutated through copy: %v", fresh.DDL)
	}
}

func TestStoreConcurrentEditAndEncode(t *testing.T) {
	store := NewStore()
	store.Put("s1", buildSample(t))

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			_ = store.Update("s1", func(d *Draft) error {
				if err := d.MoveFile("billing", "inventory", "billing/A.cbl"); err != nil {
					return d.MoveFile("inventory", "billing", "billing/A.cbl")
				}
				return nil
			})
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			draft, err := store.Get("s1")
			if err != nil {
				t.Errorf("get: %v", err)
				return
			}
			if _, err := json.Marshal(draft); err != nil {
				t.Errorf("marshal: %v", err)
				return
			}
		}
	}()
	wg.Wait()
}
