// Package dbdriver is the concrete, real database driver the bulk element
// writer's SequenceReservation capability is injected with. It is deliberately
// thin: connection pooling policy and retries are a Non-goal of the core
// (spec §7/§9); this package is an undecorated caller of pgxpool, mirroring
// internal/loader.Loader and internal/middle.MiddleStore's
// acquire-then-Exec/QueryRow shape.
package dbdriver

import (
	"context"
	"fmt"
	"io"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/singleflight"
)

// sequenceNames maps a kind or table name to the reference database's
// sequence name, matching ApiDb::get*SequenceName from the original
// writer this core is grounded on.
var sequenceNames = map[string]string{
	"changesets": "changesets_id_seq",
	"nodes":      "current_nodes_id_seq",
	"ways":       "current_ways_id_seq",
	"relations":  "current_relations_id_seq",
}

// PgxReservation implements the seqreserve.Reservation and
// bulkwriter.ScriptExecutor capabilities using a pgxpool.Pool.
type PgxReservation struct {
	pool  *pgxpool.Pool
	group singleflight.Group
}

// NewPgxReservation wraps an already-connected pool. The caller owns the
// pool's lifecycle; PgxReservation never closes it.
func NewPgxReservation(pool *pgxpool.Pool) *PgxReservation {
	return &PgxReservation{pool: pool}
}

// NextID returns the next value the named sequence would hand out,
// mirroring ApiDb::getNextId. Concurrent callers asking for the same
// kind within the same instant collapse onto a single nextval() round
// trip via singleflight — the core itself is single-threaded (spec §5),
// but a caller that races Open/Finalize internals must still only ever
// advance the sequence once per logical request.
func (r *PgxReservation) NextID(ctx context.Context, kindOrTable string) (int64, error) {
	sequence, ok := sequenceNames[kindOrTable]
	if !ok {
		return 0, fmt.Errorf("dbdriver: no sequence known for %q", kindOrTable)
	}

	v, err, _ := r.group.Do(kindOrTable, func() (interface{}, error) {
		var next int64
		if err := r.pool.QueryRow(ctx, "SELECT nextval($1)", sequence).Scan(&next); err != nil {
			return int64(0), fmt.Errorf("dbdriver: nextval(%s): %w", sequence, err)
		}
		return next, nil
	})
	if err != nil {
		return 0, err
	}
	return v.(int64), nil
}

// ExecTransactional runs sql as a single transaction, mirroring
// _lockIds()'s transaction()/commit() bracket and loader.go's
// Begin/Commit shape.
func (r *PgxReservation) ExecTransactional(ctx context.Context, sql string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("dbdriver: acquire connection: %w", err)
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("dbdriver: begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, sql); err != nil {
		return fmt.Errorf("dbdriver: exec: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("dbdriver: commit transaction: %w", err)
	}
	return nil
}

// ExecuteScript runs the final assembled script — BEGIN TRANSACTION;,
// interleaved COPY ... FROM stdin; blocks, and COMMIT; — against the
// database. pgx's simple protocol accepts COPY within a multi-statement
// batch the same way psql does, so the script is sent as one Exec.
func (r *PgxReservation) ExecuteScript(ctx context.Context, script io.Reader) error {
	body, err := io.ReadAll(script)
	if err != nil {
		return fmt.Errorf("dbdriver: read script: %w", err)
	}

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("dbdriver: acquire connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, string(body)); err != nil {
		return fmt.Errorf("dbdriver: execute script: %w", err)
	}
	return nil
}
