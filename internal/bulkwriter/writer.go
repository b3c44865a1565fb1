// Package bulkwriter is the bulk element writer: it streams nodes, ways,
// and relations into a transactional, bulk-loadable SQL script against a
// map database that keeps both a current snapshot and a full history of
// every element, reconciling locally numbered ids against the live
// database's sequences without reprocessing the input. See spec.md for
// the full component design this package implements.
package bulkwriter

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wegman-software/osm2pgsql-go/internal/bulkwriter/assemble"
	"github.com/wegman-software/osm2pgsql-go/internal/bulkwriter/changeset"
	"github.com/wegman-software/osm2pgsql-go/internal/bulkwriter/emitter"
	"github.com/wegman-software/osm2pgsql-go/internal/bulkwriter/idalloc"
	"github.com/wegman-software/osm2pgsql-go/internal/bulkwriter/rewrite"
	"github.com/wegman-software/osm2pgsql-go/internal/bulkwriter/section"
	"github.com/wegman-software/osm2pgsql-go/internal/bulkwriter/seqreserve"
	"github.com/wegman-software/osm2pgsql-go/internal/bulkwriter/stats"
	"github.com/wegman-software/osm2pgsql-go/internal/bulkwriter/unresolved"
	"github.com/wegman-software/osm2pgsql-go/internal/idstore"
	"github.com/wegman-software/osm2pgsql-go/internal/logger"
)

// ScriptExecutor is an optional capability a Reservation may additionally
// implement: running the final assembled script end to end. It is kept
// separate from seqreserve.Reservation because executing a full COPY-laced
// script is a different concern from fetching/advancing sequences, and
// most callers of Finalize with ExecuteSQL=false never need it.
type ScriptExecutor interface {
	ExecuteScript(ctx context.Context, script io.Reader) error
}

// Writer is the public Orchestrator described in spec §4.10: open, write,
// finalize, close, dispatching between offline and online commit modes.
// Not safe for concurrent use — the core is single-threaded cooperative
// per spec §5.
type Writer struct {
	cfg    Config
	logger *zap.Logger
	clock  Clock

	reservation seqreserve.Reservation

	open     bool
	url      string
	anyWrite bool

	sections   *section.Store
	alloc      *idalloc.Allocator
	unresolved *unresolved.Index
	changesets *changeset.Accumulator
	emit       *emitter.Emitter
	stats      stats.WriteStats

	offlineBases seqreserve.Bases

	metricsCancel context.CancelFunc
	metricsGroup  *errgroup.Group
}

// New creates a Writer. cfg is copied and validated at Open. A nil clock
// defaults to SystemClock; a nil logger in cfg defaults to logger.Get().
func New(cfg Config, clock Clock) *Writer {
	if clock == nil {
		clock = SystemClock
	}
	return &Writer{cfg: cfg, clock: clock}
}

// Open verifies url is a supported database url and, in offline mode,
// reserves every sequence once up front so emitted ids are already final,
// per spec §4.10 step 1. reservation is the injected SequenceReservation
// capability; the writer never opens or closes a database connection
// itself.
func (w *Writer) Open(ctx context.Context, rawURL string, reservation seqreserve.Reservation) error {
	if w.open {
		return ErrAlreadyOpen
	}
	if err := w.cfg.Validate(); err != nil {
		return err
	}
	if !isSupportedURL(rawURL) {
		return fmt.Errorf("%w: %s", ErrUnsupportedURL, rawURL)
	}

	w.logger = w.cfg.Logger
	if w.logger == nil {
		w.logger = logger.Get()
	}

	w.sections = section.NewStore(w.cfg.TempDir)
	w.unresolved = unresolved.New()

	w.alloc = idalloc.New(func(kind idalloc.Kind) (idstore.Map, error) {
		if w.cfg.SpillThreshold <= 0 {
			return idstore.NewHashMap(), nil
		}
		return idstore.NewSpillableMap(w.cfg.TempDir, w.cfg.SpillThreshold)
	})

	if err := w.sections.Ensure("changesets", changesetsHeader, false); err != nil {
		return fmt.Errorf("bulkwriter: open: %w", err)
	}
	w.changesets = changeset.New(w.cfg.MaxChangesPerChangeset, func() time.Time { return w.clock() }, func(row string) error {
		return w.sections.Write("changesets", row)
	})
	w.changesets.SetUserID(w.cfg.UserID)
	w.changesets.SetStatusUpdateInterval(w.cfg.StatusUpdateInterval, func(n int64) {
		w.logger.Info("changeset progress", zap.Int64("changesets_written", n))
	})

	w.emit = &emitter.Emitter{
		Alloc:      w.alloc,
		Unresolved: w.unresolved,
		Changesets: w.changesets,
		Sections:   w.sections,
		Now:        func() time.Time { return w.clock() },
		Stats:      &w.stats,
	}

	w.reservation = reservation
	w.url = rawURL
	w.stats = stats.WriteStats{}
	w.anyWrite = false

	if w.cfg.Mode == Offline {
		bases, err := seqreserve.ReserveOffline(ctx, reservation)
		if err != nil {
			w.sections.Close()
			return fmt.Errorf("bulkwriter: reserve offline sequences: %w", err)
		}
		if bases.Changeset <= 0 || bases.Node <= 0 {
			w.sections.Close()
			return fmt.Errorf("bulkwriter: reserve offline sequences: invalid base changeset=%d node=%d", bases.Changeset, bases.Node)
		}
		w.offlineBases = bases

		// Emitted ids must already be final in offline mode (spec §4.10
		// step 1): seed every id space at its reserved base instead of 1,
		// so rows written below never collide with ids already live in
		// the target tables.
		w.alloc.SetBase(idalloc.Node, bases.Node)
		w.alloc.SetBase(idalloc.Way, bases.Way)
		w.alloc.SetBase(idalloc.Relation, bases.Relation)
		w.changesets.SetStartID(bases.Changeset)
	}

	if w.cfg.Metrics != nil {
		metricsCtx, cancel := context.WithCancel(context.Background())
		w.metricsCancel = cancel
		group, groupCtx := errgroup.WithContext(metricsCtx)
		group.Go(func() error {
			w.cfg.Metrics.Start(groupCtx)
			return nil
		})
		w.metricsGroup = group
	}

	w.open = true
	return nil
}

const changesetsHeader = "COPY changesets (id, user_id, created_at, min_lat, max_lat, min_lon, max_lon, closed_at, num_changes) FROM stdin;\n"

func isSupportedURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	switch strings.ToLower(u.Scheme) {
	case "postgres", "postgresql":
		return true
	default:
		return false
	}
}

// WritePartial dispatches el (a Node, Way, or Relation) to the element
// emitter, per spec §4.10 step 2. The writer is append-only: there is no
// update or delete operation.
func (w *Writer) WritePartial(el interface{}) error {
	if !w.open {
		return ErrNotOpen
	}

	var err error
	switch v := el.(type) {
	case Node:
		_, err = w.emit.EmitNode(v)
	case Way:
		_, err = w.emit.EmitWay(v)
	case Relation:
		_, err = w.emit.EmitRelation(v)
	default:
		return fmt.Errorf("bulkwriter: unsupported element type %T", el)
	}
	if err != nil {
		return err
	}
	w.anyWrite = true
	return nil
}

// Stats returns a snapshot of the counters accumulated so far.
func (w *Writer) Stats() WriteStats {
	return w.stats
}

// Finalize flushes the trailing changeset, assembles the script in
// canonical section order, and — in online mode — reserves and rewrites
// id offsets, per spec §4.10 step 3. Returns the path of the final
// script; the caller is responsible for removing it. If nothing was
// written, Finalize is a no-op and returns an empty path.
func (w *Writer) Finalize(ctx context.Context) (string, error) {
	if !w.open {
		return "", ErrNotOpen
	}
	if !w.anyWrite {
		return "", nil
	}

	if err := w.sections.Ensure("byte_order_mark", "", true); err != nil {
		return "", fmt.Errorf("bulkwriter: finalize: %w", err)
	}
	if err := w.changesets.Finalize(); err != nil {
		return "", fmt.Errorf("bulkwriter: finalize: flush trailing changeset: %w", err)
	}
	w.stats.Changesets = w.changesets.ChangesetsWritten()

	if !w.unresolved.Empty() {
		w.stats.RelationMembersUnresolved = int64(w.unresolved.Len())
		w.logger.Warn("relation members remained unresolved at finalize",
			zap.Int("count", w.unresolved.Len()))
	}

	counts := seqreserve.Counts{
		Changesets: w.changesets.ChangesetsWritten(),
		Nodes:      w.alloc.Count(idalloc.Node),
		Ways:       w.alloc.Count(idalloc.Way),
		Relations:  w.alloc.Count(idalloc.Relation),
	}

	skip := map[string]bool{}

	if w.cfg.Mode == Offline {
		if err := w.writeOfflineSequenceUpdates(counts); err != nil {
			return "", err
		}
	} else {
		skip["sequence_updates"] = true
	}

	assembled, err := assemble.Assemble(w.cfg.TempDir, w.sections, skip)
	if err != nil {
		return "", fmt.Errorf("bulkwriter: finalize: assemble: %w", err)
	}

	var finalPath string
	if w.cfg.Mode == Offline {
		finalPath, err = w.materialize(assembled)
	} else {
		finalPath, err = w.rewriteOnline(ctx, assembled, counts)
	}
	if err != nil {
		return "", err
	}

	w.logger.Info("bulk write complete",
		zap.String("mode", w.cfg.Mode.String()),
		zap.Int64("total_rows", w.stats.Total()))

	if w.cfg.ExecuteSQL {
		if err := w.execute(ctx, finalPath); err != nil {
			return finalPath, err
		}
	}

	return finalPath, nil
}

func (w *Writer) writeOfflineSequenceUpdates(counts seqreserve.Counts) error {
	sql := seqreserve.OfflineSetvals(w.offlineBases, counts)
	if err := w.sections.Ensure("sequence_updates", "", false); err != nil {
		return fmt.Errorf("bulkwriter: finalize: ensure sequence_updates: %w", err)
	}
	for _, line := range strings.Split(strings.TrimRight(sql, "\n"), "\n") {
		if line == "" {
			continue
		}
		if err := w.sections.Write("sequence_updates", line); err != nil {
			return fmt.Errorf("bulkwriter: finalize: write sequence_updates: %w", err)
		}
	}
	return nil
}

// materialize closes the assembled script and, if a copy location is
// configured, copies it there and discards the temp file — used in
// offline mode, where no rewrite pass is needed and the assembled script
// is already final.
func (w *Writer) materialize(assembled *os.File) (string, error) {
	assembled.Close()
	if w.cfg.SQLFileCopyLocation == "" {
		return assembled.Name(), nil
	}

	f, err := os.Open(assembled.Name())
	if err != nil {
		return "", fmt.Errorf("bulkwriter: finalize: reopen assembled file: %w", err)
	}
	err = copyTo(w.cfg.SQLFileCopyLocation, f)
	f.Close()
	os.Remove(assembled.Name())
	if err != nil {
		return "", err
	}
	return w.cfg.SQLFileCopyLocation, nil
}

// rewriteOnline reserves sequence ranges, advances them transactionally,
// and rewrites every id column in the assembled script by the reserved
// bases, per spec §4.9/§4.10. The assembled (pre-rewrite) file is always
// scratch and is removed once the rewrite completes.
func (w *Writer) rewriteOnline(ctx context.Context, assembled *os.File, counts seqreserve.Counts) (string, error) {
	defer os.Remove(assembled.Name())
	defer assembled.Close()

	bases, _, err := seqreserve.ReserveOnline(ctx, w.reservation, counts)
	if err != nil {
		return "", fmt.Errorf("bulkwriter: finalize: reserve online sequences: %w", err)
	}

	out, err := os.CreateTemp(w.cfg.TempDir, "bulkwriter-rewritten-*.sql")
	if err != nil {
		return "", fmt.Errorf("bulkwriter: finalize: create rewritten file: %w", err)
	}

	if err := rewrite.Rewrite(out, assembled, bases); err != nil {
		out.Close()
		os.Remove(out.Name())
		return "", fmt.Errorf("bulkwriter: finalize: rewrite offsets: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(out.Name())
		return "", fmt.Errorf("bulkwriter: finalize: close rewritten file: %w", err)
	}

	if w.cfg.SQLFileCopyLocation == "" {
		return out.Name(), nil
	}

	f, err := os.Open(out.Name())
	if err != nil {
		return "", fmt.Errorf("bulkwriter: finalize: reopen rewritten file: %w", err)
	}
	err = copyTo(w.cfg.SQLFileCopyLocation, f)
	f.Close()
	os.Remove(out.Name())
	if err != nil {
		return "", err
	}
	return w.cfg.SQLFileCopyLocation, nil
}

func (w *Writer) execute(ctx context.Context, path string) error {
	executor, ok := w.reservation.(ScriptExecutor)
	if !ok {
		return fmt.Errorf("bulkwriter: finalize: execute_sql set but driver does not implement ScriptExecutor")
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("bulkwriter: finalize: open script for execution: %w", err)
	}
	defer f.Close()
	if err := executor.ExecuteScript(ctx, f); err != nil {
		return fmt.Errorf("bulkwriter: finalize: execute script: %w", err)
	}
	return nil
}

func copyTo(dest string, src io.Reader) error {
	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("bulkwriter: copy script: create %s: %w", dest, err)
	}
	defer out.Close()
	if _, err := io.Copy(out, src); err != nil {
		return fmt.Errorf("bulkwriter: copy script: write %s: %w", dest, err)
	}
	return nil
}

// Close releases the driver and every temporary file still held, and
// resets the writer so it may be Open'd again, per spec §4.10 step 4 and
// §5's "no temp files survive a successful close" guarantee.
func (w *Writer) Close() error {
	if !w.open {
		return nil
	}

	var firstErr error
	if w.sections != nil {
		if err := w.sections.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if w.alloc != nil {
		if err := w.alloc.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if w.metricsCancel != nil {
		w.metricsCancel()
	}
	if w.metricsGroup != nil {
		if err := w.metricsGroup.Wait(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	w.open = false
	w.url = ""
	w.reservation = nil
	w.sections = nil
	w.alloc = nil
	w.unresolved = nil
	w.changesets = nil
	w.emit = nil
	w.stats = stats.WriteStats{}
	w.offlineBases = seqreserve.Bases{}
	w.metricsCancel = nil
	w.metricsGroup = nil

	return firstErr
}
