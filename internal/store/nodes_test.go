package store

import (
	"testing"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestCreateAndGetNode(t *testing.T) {
	db := testDB(t)

	n := &Node{Type: TypePerson, Label: "Sarah", Body: "works on the billing team"}
	if err := db.CreateNode(n); err != nil {
		t.Fatalf("CreateNode: %v", err)
	}
	if n.ID == "" {
		t.Fatal("CreateNode did not assign an ID")
	}
	if n.Strength != 1.0 {
		t.Errorf("Strength = %v, want 1.0", n.Strength)
	}

	got, err := db.GetNode(n.ID)
	if err != nil {
		t.Fatalf("GetNode: %v", err)
	}
	if got == nil {
		t.Fatal("GetNode returned nil")
	}
	if got.Label != "Sarah" || got.Type != TypePerson {
		t.Errorf("got label=%q type=%q", got.Label, got.Type)
	}
	if got.Metadata != "{}" {
		t.Errorf("Metadata = %q, want {}", got.Metadata)
	}
	if got.LastAccess == nil {
		t.Error("LastAccess not set on create")
	}
}

func TestCreateNodeRejectsInvalidType(t *testing.T) {
	db := testDB(t)

	err := db.CreateNode(&Node{Type: "organism", Label: "x"})
	if err == nil {
		t.Fatal("expected error for invalid type")
	}
}

func TestGetNodeMissing(t *testing.T) {
	db := testDB(t)

	got, err := db.GetNode("nope")
	if err != nil {
		t.Fatalf("GetNode: %v", err)
	}
	if got != nil {
		t.Errorf("got %+v, want nil", got)
	}
}

func TestFindByLabelCaseInsensitive(t *testing.T) {
	db := testDB(t)

	n := &Node{Type: TypeProject, Label: "Northwind"}
	if err := db.CreateNode(n); err != nil {
		t.Fatalf("CreateNode: %v", err)
	}

	got, err := db.FindByLabel("northwind", TypeProject)
	if err != nil {
		t.Fatalf("FindByLabel: %v", err)
	}
	if got == nil || got.ID != n.ID {
		t.Fatalf("FindByLabel(northwind) = %+v, want node %s", got, n.ID)
	}

	// Same label, different type does not match.
	got, err = db.FindByLabel("northwind", TypePerson)
	if err != nil {
		t.Fatalf("FindByLabel: %v", err)
	}
	if got != nil {
		t.Errorf("cross-type match: got %+v, want nil", got)
	}
}

func TestAppendNodeBody(t *testing.T) {
	db := testDB(t)

	n := &Node{Type: TypeConcept, Label: "caching"}
	if err := db.CreateNode(n); err != nil {
		t.Fatalf("CreateNode: %v", err)
	}

	if err := db.AppendNodeBody(n.ID, "first fact"); err != nil {
		t.Fatalf("AppendNodeBody: %v", err)
	}
	if err := db.AppendNodeBody(n.ID, "second fact"); err != nil {
		t.Fatalf("AppendNodeBody: %v", err)
	}

	got, err := db.GetNode(n.ID)
	if err != nil {
		t.Fatalf("GetNode: %v", err)
	}
	want := "first fact\nsecond fact"
	if got.Body != want {
		t.Errorf("Body = %q, want %q", got.Body, want)
	}
}

func TestTouchNode(t *testing.T) {
	db := testDB(t)

	n := &Node{Type: TypeMemory, Label: "note"}
	if err := db.CreateNode(n); err != nil {
		t.Fatalf("CreateNode: %v", err)
	}

	if err := db.TouchNode(n.ID); err != nil {
		t.Fatalf("TouchNode: %v", err)
	}
	if err := db.TouchNode(n.ID); err != nil {
		t.Fatalf("TouchNode: %v", err)
	}

	got, err := db.GetNode(n.ID)
	if err != nil {
		t.Fatalf("GetNode: %v", err)
	}
	if got.AccessCount != 2 {
		t.Errorf("AccessCount = %d, want 2", got.AccessCount)
	}
	if got.LastAccess == nil {
		t.Fatal("LastAccess is nil after touch")
	}
}

func TestCoreNodes(t *testing.T) {
	db := testDB(t)

	core := &Node{Type: TypePreference, Label: "tabs over spaces", Category: CategoryCore}
	plain := &Node{Type: TypeMemory, Label: "plain"}
	if err := db.CreateNode(core); err != nil {
		t.Fatalf("CreateNode: %v", err)
	}
	if err := db.CreateNode(plain); err != nil {
		t.Fatalf("CreateNode: %v", err)
	}

	got, err := db.CoreNodes()
	if err != nil {
		t.Fatalf("CoreNodes: %v", err)
	}
	if len(got) != 1 || got[0].ID != core.ID {
		t.Fatalf("CoreNodes = %+v, want just %s", got, core.ID)
	}
}

func TestGetNodesByIDs(t *testing.T) {
	db := testDB(t)

	a := &Node{Type: TypeMemory, Label: "a"}
	b := &Node{Type: TypeMemory, Label: "b"}
	for _, n := range []*Node{a, b} {
		if err := db.CreateNode(n); err != nil {
			t.Fatalf("CreateNode: %v", err)
		}
	}

	got, err := db.GetNodesByIDs([]string{a.ID, b.ID, "missing"})
	if err != nil {
		t.Fatalf("GetNodesByIDs: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("got %d nodes, want 2", len(got))
	}

	got, err = db.GetNodesByIDs(nil)
	if err != nil {
		t.Fatalf("GetNodesByIDs(nil): %v", err)
	}
	if got != nil {
		t.Errorf("GetNodesByIDs(nil) = %+v, want nil", got)
	}
}
