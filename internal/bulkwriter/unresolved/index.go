// Package unresolved indexes forward references from relations to
// elements that have not yet appeared in the stream, per spec §4.4.
package unresolved

import "github.com/wegman-software/osm2pgsql-go/internal/bulkwriter/idalloc"

// Ref is one relation member reference whose target has not yet been
// assigned a local id.
type Ref struct {
	SourceRelationID int64
	LocalRelationID  int64
	MemberKind       idalloc.Kind
	MemberSourceID   int64
	MemberRole       string
	SequenceIndex    int
}

type key struct {
	kind   idalloc.Kind
	source int64
}

// Index is a multimap from an expected (kind, source id) to the ordered
// list of refs waiting on it. Order within a key is insertion order.
type Index struct {
	byTarget map[key][]Ref
}

// New creates an empty unresolved reference index.
func New() *Index {
	return &Index{byTarget: make(map[key][]Ref)}
}

// Record notes that ref is waiting on (expectedKind, expectedSourceID) to
// be assigned a local id.
func (idx *Index) Record(expectedKind idalloc.Kind, expectedSourceID int64, ref Ref) {
	k := key{expectedKind, expectedSourceID}
	idx.byTarget[k] = append(idx.byTarget[k], ref)
}

// TakeAll removes and returns every ref waiting on (kind, sourceID), in
// the order they were recorded.
func (idx *Index) TakeAll(kind idalloc.Kind, sourceID int64) []Ref {
	k := key{kind, sourceID}
	refs, ok := idx.byTarget[k]
	if !ok {
		return nil
	}
	delete(idx.byTarget, k)
	return refs
}

// Len returns the total number of unresolved refs still pending across
// all keys.
func (idx *Index) Len() int {
	n := 0
	for _, refs := range idx.byTarget {
		n += len(refs)
	}
	return n
}

// Empty reports whether no refs are pending.
func (idx *Index) Empty() bool {
	return len(idx.byTarget) == 0
}
