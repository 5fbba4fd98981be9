package store

import (
	"testing"
)

func makeNodes(t *testing.T, db *DB, labels ...string) []*Node {
	t.Helper()
	var nodes []*Node
	for _, label := range labels {
		n := &Node{Type: TypeConcept, Label: label}
		if err := db.CreateNode(n); err != nil {
			t.Fatalf("CreateNode(%s): %v", label, err)
		}
		nodes = append(nodes, n)
	}
	return nodes
}

func TestUpsertEdgeCreatesThenReinforces(t *testing.T) {
	db := testDB(t)
	ns := makeNodes(t, db, "a", "b")

	created, err := db.UpsertEdge(ns[0].ID, ns[1].ID, "uses")
	if err != nil {
		t.Fatalf("UpsertEdge: %v", err)
	}
	if !created {
		t.Fatal("first upsert should create")
	}

	created, err = db.UpsertEdge(ns[0].ID, ns[1].ID, "uses")
	if err != nil {
		t.Fatalf("UpsertEdge: %v", err)
	}
	if created {
		t.Fatal("second upsert should reinforce, not create")
	}

	edges, err := db.EdgesFrom(ns[0].ID)
	if err != nil {
		t.Fatalf("EdgesFrom: %v", err)
	}
	if len(edges) != 1 {
		t.Fatalf("got %d edges, want 1", len(edges))
	}
	if edges[0].Weight <= defaultEdgeWeight {
		t.Errorf("Weight = %v, want > %v after reinforcement", edges[0].Weight, defaultEdgeWeight)
	}
}

func TestUpsertEdgeDistinctRelations(t *testing.T) {
	db := testDB(t)
	ns := makeNodes(t, db, "a", "b")

	for _, rel := range []string{"uses", "maintains"} {
		if _, err := db.UpsertEdge(ns[0].ID, ns[1].ID, rel); err != nil {
			t.Fatalf("UpsertEdge(%s): %v", rel, err)
		}
	}

	count, err := db.CountEdges()
	if err != nil {
		t.Fatalf("CountEdges: %v", err)
	}
	if count != 2 {
		t.Errorf("CountEdges = %d, want 2", count)
	}
}

func TestStrengthenEdge(t *testing.T) {
	db := testDB(t)
	ns := makeNodes(t, db, "a", "b")

	if _, err := db.UpsertEdge(ns[0].ID, ns[1].ID, "uses"); err != nil {
		t.Fatalf("UpsertEdge: %v", err)
	}
	edges, err := db.EdgesFrom(ns[0].ID)
	if err != nil {
		t.Fatalf("EdgesFrom: %v", err)
	}

	if err := db.StrengthenEdge(edges[0].ID); err != nil {
		t.Fatalf("StrengthenEdge: %v", err)
	}

	after, err := db.EdgesFrom(ns[0].ID)
	if err != nil {
		t.Fatalf("EdgesFrom: %v", err)
	}
	if after[0].Weight != edges[0].Weight+reinforceStep {
		t.Errorf("Weight = %v, want %v", after[0].Weight, edges[0].Weight+reinforceStep)
	}
}

func TestEdgesAmong(t *testing.T) {
	db := testDB(t)
	ns := makeNodes(t, db, "a", "b", "c")

	mustEdge := func(src, dst *Node) {
		t.Helper()
		if _, err := db.UpsertEdge(src.ID, dst.ID, "related_to"); err != nil {
			t.Fatalf("UpsertEdge: %v", err)
		}
	}
	mustEdge(ns[0], ns[1]) // inside the set
	mustEdge(ns[1], ns[2]) // c is outside the queried set

	edges, err := db.EdgesAmong([]string{ns[0].ID, ns[1].ID})
	if err != nil {
		t.Fatalf("EdgesAmong: %v", err)
	}
	if len(edges) != 1 {
		t.Fatalf("got %d edges, want 1", len(edges))
	}
	if edges[0].SourceID != ns[0].ID || edges[0].TargetID != ns[1].ID {
		t.Errorf("wrong edge returned: %+v", edges[0])
	}

	edges, err = db.EdgesAmong([]string{ns[0].ID})
	if err != nil {
		t.Fatalf("EdgesAmong(single): %v", err)
	}
	if edges != nil {
		t.Errorf("single-ID set should return nil, got %+v", edges)
	}
}
