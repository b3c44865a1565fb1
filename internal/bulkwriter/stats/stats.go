// Package stats holds the per-kind write counters the writer reports at
// finalize, per spec §3's WriteStats.
package stats

// WriteStats counts rows emitted per target table plus the changesets
// written. RelationMembersUnresolved supplements spec.md's listed counters
// (see SPEC_FULL.md) by tracking members still pending at finalize
// separately from members successfully resolved and written.
type WriteStats struct {
	Nodes                     int64
	NodeTags                  int64
	Ways                      int64
	WayNodes                  int64
	WayTags                   int64
	Relations                 int64
	RelationMembers           int64
	RelationTags              int64
	Changesets                int64
	RelationMembersUnresolved int64
}

// Total returns the sum of every row counter, the overall row count the
// writer produced across all tables (changesets included).
func (s WriteStats) Total() int64 {
	return s.Nodes + s.NodeTags + s.Ways + s.WayNodes + s.WayTags +
		s.Relations + s.RelationMembers + s.RelationTags + s.Changesets
}
