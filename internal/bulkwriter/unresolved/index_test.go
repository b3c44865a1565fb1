package unresolved

import (
	"testing"

	"github.com/wegman-software/osm2pgsql-go/internal/bulkwriter/idalloc"
)

func TestRecordAndTakeAllPreservesOrder(t *testing.T) {
	idx := New()

	idx.Record(idalloc.Way, -50, Ref{SourceRelationID: -1, MemberSourceID: -50, SequenceIndex: 1})
	idx.Record(idalloc.Way, -50, Ref{SourceRelationID: -2, MemberSourceID: -50, SequenceIndex: 3})

	refs := idx.TakeAll(idalloc.Way, -50)
	if len(refs) != 2 {
		t.Fatalf("got %d refs, want 2", len(refs))
	}
	if refs[0].SourceRelationID != -1 || refs[1].SourceRelationID != -2 {
		t.Errorf("refs not in insertion order: %+v", refs)
	}
}

func TestTakeAllRemovesEntries(t *testing.T) {
	idx := New()
	idx.Record(idalloc.Node, 1, Ref{SourceRelationID: -1})

	if idx.TakeAll(idalloc.Node, 1); idx.Len() != 0 {
		t.Errorf("expected 0 pending refs after TakeAll, got %d", idx.Len())
	}
	if !idx.Empty() {
		t.Errorf("expected index to be empty after draining its only key")
	}
}

func TestTakeAllUnknownKeyReturnsNil(t *testing.T) {
	idx := New()
	if refs := idx.TakeAll(idalloc.Relation, 42); refs != nil {
		t.Errorf("expected nil for unknown key, got %v", refs)
	}
}

func TestLenAcrossKeys(t *testing.T) {
	idx := New()
	idx.Record(idalloc.Node, 1, Ref{})
	idx.Record(idalloc.Node, 1, Ref{})
	idx.Record(idalloc.Way, 2, Ref{})

	if idx.Len() != 3 {
		t.Errorf("Len() = %d, want 3", idx.Len())
	}
}
