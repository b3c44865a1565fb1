package idalloc

import (
	"errors"
	"testing"

	"github.com/wegman-software/osm2pgsql-go/internal/idstore"
)

func hashMapFactory(Kind) (idstore.Map, error) {
	return idstore.NewHashMap(), nil
}

func TestAssignStartsAtOneAndIncrements(t *testing.T) {
	a := New(hashMapFactory)

	first, err := a.Assign(Node, -1)
	if err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if first != 1 {
		t.Errorf("first local id = %d, want 1", first)
	}

	second, err := a.Assign(Node, -2)
	if err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if second != 2 {
		t.Errorf("second local id = %d, want 2", second)
	}
}

func TestAssignDuplicateSourceIDFails(t *testing.T) {
	a := New(hashMapFactory)
	if _, err := a.Assign(Way, -10); err != nil {
		t.Fatalf("Assign: %v", err)
	}

	_, err := a.Assign(Way, -10)
	var dup *DuplicateSourceIDError
	if !errors.As(err, &dup) {
		t.Fatalf("expected *DuplicateSourceIDError, got %v", err)
	}
	if dup.SourceID != -10 || dup.Kind != Way {
		t.Errorf("unexpected error contents: %+v", dup)
	}
}

func TestKindsHaveIndependentIDSpaces(t *testing.T) {
	a := New(hashMapFactory)
	node, _ := a.Assign(Node, 1)
	way, _ := a.Assign(Way, 1)
	if node != 1 || way != 1 {
		t.Errorf("expected independent id spaces per kind, got node=%d way=%d", node, way)
	}
}

func TestResolve(t *testing.T) {
	a := New(hashMapFactory)
	local, err := a.Assign(Relation, -100)
	if err != nil {
		t.Fatalf("Assign: %v", err)
	}

	got, ok := a.Resolve(Relation, -100)
	if !ok || got != local {
		t.Errorf("Resolve(-100) = (%d, %v), want (%d, true)", got, ok, local)
	}

	if _, ok := a.Resolve(Relation, -999); ok {
		t.Errorf("Resolve(-999) should not have resolved")
	}
	if _, ok := a.Resolve(Node, -100); ok {
		t.Errorf("Resolve should be scoped per kind")
	}
}

func TestCount(t *testing.T) {
	a := New(hashMapFactory)
	if a.Count(Node) != 0 {
		t.Errorf("Count before any assignment = %d, want 0", a.Count(Node))
	}
	a.Assign(Node, 1)
	a.Assign(Node, 2)
	if a.Count(Node) != 2 {
		t.Errorf("Count = %d, want 2", a.Count(Node))
	}
}

func TestSetBaseOffsetsAssignedIDs(t *testing.T) {
	a := New(hashMapFactory)
	a.SetBase(Node, 2000)

	first, err := a.Assign(Node, -1)
	if err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if first != 2000 {
		t.Errorf("first local id = %d, want 2000", first)
	}

	second, err := a.Assign(Node, -2)
	if err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if second != 2001 {
		t.Errorf("second local id = %d, want 2001", second)
	}

	if a.Count(Node) != 2 {
		t.Errorf("Count = %d, want 2 (a base offset must not change the count of assigned ids)", a.Count(Node))
	}

	other, err := a.Assign(Way, -1)
	if err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if other != 1 {
		t.Errorf("Way id space must be unaffected by Node's base, got %d, want 1", other)
	}
}
