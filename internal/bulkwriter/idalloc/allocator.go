// Package idalloc assigns local ids per element kind and resolves
// source ids back to the local ids assigned to them, per spec §4.3.
package idalloc

import (
	"fmt"

	"github.com/wegman-software/osm2pgsql-go/internal/idstore"
)

// Kind identifies an element kind for id-space partitioning.
type Kind int

const (
	Node Kind = iota
	Way
	Relation
	numKinds
)

func (k Kind) String() string {
	switch k {
	case Node:
		return "node"
	case Way:
		return "way"
	case Relation:
		return "relation"
	default:
		return "unknown"
	}
}

// DuplicateSourceIDError reports a source id reappearing for a kind that
// already has a local id assigned to it — the writer is append-only and
// rejects this per spec §7 UpdateNotSupported.
type DuplicateSourceIDError struct {
	Kind     Kind
	SourceID int64
}

func (e *DuplicateSourceIDError) Error() string {
	return fmt.Sprintf("update not supported: %s source id %d already assigned a local id", e.Kind, e.SourceID)
}

// MapFactory constructs the backing store for one kind's source→local
// mapping. Callers inject this so the allocator never depends on a
// concrete id-map implementation (spec §9's "never expose the container
// type" design note).
type MapFactory func(kind Kind) (idstore.Map, error)

// Allocator assigns local ids per element kind, strictly increasing from a
// per-kind base (1 unless SetBase overrides it), and records the
// source→local mapping so later references can resolve.
type Allocator struct {
	nextLocal [numKinds]int64
	base      [numKinds]int64
	maps      [numKinds]idstore.Map
	factory   MapFactory
}

// New creates an allocator whose per-kind id maps are constructed lazily
// via factory, the first time a kind is assigned.
func New(factory MapFactory) *Allocator {
	a := &Allocator{factory: factory}
	for k := range a.nextLocal {
		a.nextLocal[k] = 1
	}
	return a
}

// SetBase fixes the id kind's first Assign call will hand out. Used in
// offline commit mode: once the caller has reserved a sequence range up
// front, ids are set to start there so the rows this allocator's ids end
// up in are already final and never need the second-pass rewrite online
// mode requires (spec §4.10 step 1). Must be called before the first
// Assign for kind; the default (no call) is 1.
func (a *Allocator) SetBase(kind Kind, firstID int64) {
	a.base[kind] = firstID - 1
}

// NextLocalID returns the local id that will be handed out by the next
// Assign call for kind, without consuming it. The largest id assigned so
// far is NextLocalID(kind) - 1, i.e. base + count - 1.
func (a *Allocator) NextLocalID(kind Kind) int64 {
	return a.nextLocal[kind] + a.base[kind]
}

// Assign records a new source→local mapping for kind and returns the
// assigned local id. Fails with *DuplicateSourceIDError if source has
// already been assigned an id of this kind.
func (a *Allocator) Assign(kind Kind, source int64) (int64, error) {
	m, err := a.mapFor(kind)
	if err != nil {
		return 0, err
	}
	if _, ok := m.Get(source); ok {
		return 0, &DuplicateSourceIDError{Kind: kind, SourceID: source}
	}

	n := a.nextLocal[kind]
	local := n + a.base[kind]
	m.Put(source, local)
	a.nextLocal[kind] = n + 1
	return local, nil
}

// Resolve looks up the local id previously assigned to source under kind.
func (a *Allocator) Resolve(kind Kind, source int64) (int64, bool) {
	m := a.maps[kind]
	if m == nil {
		return 0, false
	}
	return m.Get(source)
}

// Count returns how many ids of kind have been assigned so far.
func (a *Allocator) Count(kind Kind) int64 {
	return a.nextLocal[kind] - 1
}

func (a *Allocator) mapFor(kind Kind) (idstore.Map, error) {
	if a.maps[kind] != nil {
		return a.maps[kind], nil
	}
	m, err := a.factory(kind)
	if err != nil {
		return nil, fmt.Errorf("idalloc: create map for %s: %w", kind, err)
	}
	a.maps[kind] = m
	return m, nil
}

// Close releases every kind's backing map that was created.
func (a *Allocator) Close() error {
	var firstErr error
	for _, m := range a.maps {
		if m == nil {
			continue
		}
		if closer, ok := m.(interface{ Close() error }); ok {
			if err := closer.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
