// Package idstore provides the source-id to local-id mapping abstraction
// referenced in spec §4.3/§9: callers hold a Map without knowing whether
// it is backed by an in-memory hash or a spillable on-disk journal.
package idstore

// Map maps a signed 64-bit source id to a signed 64-bit local id. Keys are
// unique; Put with an existing key overwrites it (the bulk element writer
// itself enforces the "no duplicate source id" invariant one layer up, in
// idalloc.Allocator — Map is a plain associative container).
type Map interface {
	Put(source, local int64)
	Get(source int64) (local int64, ok bool)
	Len() int
}
