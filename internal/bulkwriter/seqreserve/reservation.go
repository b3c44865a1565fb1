// Package seqreserve fetches and advances the reference database's id
// sequences and builds the setval statements that reserve or lock in an id
// range, per spec §4.7.
package seqreserve

import (
	"context"
	"fmt"
)

// Reservation abstracts the database as an injected capability. The core
// neither opens nor closes connections itself — a driver, such as
// internal/dbdriver.PgxReservation, is a collaborator supplied by the
// caller.
type Reservation interface {
	// NextID returns the next value the named sequence would hand out,
	// for one of "changesets", "nodes", "ways", "relations".
	NextID(ctx context.Context, kindOrTable string) (int64, error)
	// ExecTransactional runs sql as a single transaction.
	ExecTransactional(ctx context.Context, sql string) error
}

// Bases holds the reserved starting id for each sequence.
type Bases struct {
	Changeset int64
	Node      int64
	Way       int64
	Relation  int64
}

// ReserveOffline calls NextID once for each sequence and returns the
// result as the bases that emitted ids will already be final relative to
// (spec §4.7 reserve_offline).
func ReserveOffline(ctx context.Context, r Reservation) (Bases, error) {
	var b Bases
	var err error
	if b.Changeset, err = r.NextID(ctx, "changesets"); err != nil {
		return Bases{}, fmt.Errorf("seqreserve: reserve changesets: %w", err)
	}
	if b.Node, err = r.NextID(ctx, "nodes"); err != nil {
		return Bases{}, fmt.Errorf("seqreserve: reserve nodes: %w", err)
	}
	if b.Way, err = r.NextID(ctx, "ways"); err != nil {
		return Bases{}, fmt.Errorf("seqreserve: reserve ways: %w", err)
	}
	if b.Relation, err = r.NextID(ctx, "relations"); err != nil {
		return Bases{}, fmt.Errorf("seqreserve: reserve relations: %w", err)
	}
	return b, nil
}

// Counts is how many rows of each kind were actually written, used to
// compute the range being reserved or locked.
type Counts struct {
	Changesets int64
	Nodes      int64
	Ways       int64
	Relations  int64
}

// sequenceNames maps a kind to the reference database's sequence name.
var sequenceNames = map[string]string{
	"changesets": "changesets_id_seq",
	"nodes":      "current_nodes_id_seq",
	"ways":       "current_ways_id_seq",
	"relations":  "current_relations_id_seq",
}

// SequenceName returns the reference database sequence name for a kind.
func SequenceName(kindOrTable string) string {
	return sequenceNames[kindOrTable]
}

// BuildSetval renders a single setval statement.
func BuildSetval(sequence string, value int64) string {
	return fmt.Sprintf("SELECT pg_catalog.setval('%s', %d);\n", sequence, value)
}

// ReserveOnline calls NextID for each sequence, then returns both the
// bases and the setval statements that move each sequence to
// current+count, reserving ids current+1 through current+count (the ids
// the online rewrite gives local ids 1..count) — the range this writer now
// exclusively owns until the caller advances the sequence again. Per spec
// §4.7, a sequence's setval line is included only if its count is > 0;
// changesets and nodes are always emitted since a successful run always
// writes at least one of each.
func ReserveOnline(ctx context.Context, r Reservation, counts Counts) (Bases, string, error) {
	bases, err := ReserveOffline(ctx, r)
	if err != nil {
		return Bases{}, "", err
	}

	var sql string
	sql += BuildSetval(SequenceName("changesets"), bases.Changeset+counts.Changesets)
	sql += BuildSetval(SequenceName("nodes"), bases.Node+counts.Nodes)
	if counts.Ways > 0 {
		sql += BuildSetval(SequenceName("ways"), bases.Way+counts.Ways)
	}
	if counts.Relations > 0 {
		sql += BuildSetval(SequenceName("relations"), bases.Relation+counts.Relations)
	}

	if err := r.ExecTransactional(ctx, sql); err != nil {
		return Bases{}, "", fmt.Errorf("seqreserve: advance sequences: %w", err)
	}

	return bases, sql, nil
}

// OfflineSetvals builds the sequence_updates section content for offline
// mode: each sequence is set to start_id + count - 1, the max id actually
// used (spec §9's stable formulation, chosen over the source's
// current-1-with-off-by-one-comment variant).
func OfflineSetvals(start Bases, counts Counts) string {
	var sql string
	sql += BuildSetval(SequenceName("changesets"), start.Changeset+counts.Changesets-1)
	sql += BuildSetval(SequenceName("nodes"), start.Node+counts.Nodes-1)
	if counts.Ways > 0 {
		sql += BuildSetval(SequenceName("ways"), start.Way+counts.Ways-1)
	}
	if counts.Relations > 0 {
		sql += BuildSetval(SequenceName("relations"), start.Relation+counts.Relations-1)
	}
	return sql
}
