package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wegman-software/osm2pgsql-go/internal/bulkwriter"
	"github.com/wegman-software/osm2pgsql-go/internal/dbdriver"
	"github.com/wegman-software/osm2pgsql-go/internal/logger"
	"github.com/wegman-software/osm2pgsql-go/internal/metrics"
)

var writeFlags struct {
	dbURL          string
	mode           string
	userID         int64
	maxChanges     int64
	statusInterval int64
	input          string
	out            string
	execute        bool
	tempDir        string
	spillThreshold int
	metricsEvery   time.Duration
}

var writeCmd = &cobra.Command{
	Use:   "write",
	Short: "Stream elements from an NDJSON input into a bulk-copy SQL script",
	Long: `write reads newline-delimited JSON elements (one node/way/relation
per line) from --input (or stdin) and drives the bulk element writer,
producing a transactional bulk-copy SQL script.

Each input line looks like:
  {"type":"node","source_id":-1,"lat":47.6,"lon":-122.3,"tags":[{"key":"amenity","value":"cafe"}]}
  {"type":"way","source_id":-10,"nodes":[-1,-2],"tags":[{"key":"highway","value":"residential"}]}
  {"type":"relation","source_id":-100,"members":[{"kind":"way","source_id":-10,"role":"outer"}]}`,
	RunE: runWrite,
}

func init() {
	writeCmd.Flags().StringVar(&writeFlags.dbURL, "db-url", "", "postgres://... connection string (required)")
	writeCmd.Flags().StringVar(&writeFlags.mode, "mode", "offline", "commit mode: offline or online")
	writeCmd.Flags().Int64Var(&writeFlags.userID, "user-id", 1, "user id attributed to emitted changesets")
	writeCmd.Flags().Int64Var(&writeFlags.maxChanges, "max-changes-per-changeset", 500, "changes per changeset before rotation")
	writeCmd.Flags().Int64Var(&writeFlags.statusInterval, "status-update-interval", 1000, "progress log cadence, in changesets")
	writeCmd.Flags().StringVar(&writeFlags.input, "input", "-", "NDJSON input file, or - for stdin")
	writeCmd.Flags().StringVar(&writeFlags.out, "out", "", "copy the final script here (otherwise a temp path is printed)")
	writeCmd.Flags().BoolVar(&writeFlags.execute, "execute", false, "execute the final script against the database")
	writeCmd.Flags().StringVar(&writeFlags.tempDir, "temp-dir", "", "directory for scratch section/rewrite files")
	writeCmd.Flags().IntVar(&writeFlags.spillThreshold, "spill-threshold", 0, "entry count above which an id map spills to disk (0: never)")
	writeCmd.Flags().DurationVar(&writeFlags.metricsEvery, "metrics-interval", 0, "log system resource usage at this cadence (0: disabled)")
	_ = writeCmd.MarkFlagRequired("db-url")
}

// elementFrame is the NDJSON wire shape write reads. Framing input as
// NDJSON is a CLI convenience, not the writer core parsing an OSM wire
// format: the core (internal/bulkwriter) only ever accepts already-typed
// Node/Way/Relation values through WritePartial.
type elementFrame struct {
	Type     string        `json:"type"`
	SourceID int64         `json:"source_id"`
	Lat      float64       `json:"lat"`
	Lon      float64       `json:"lon"`
	Nodes    []int64       `json:"nodes"`
	Members  []memberFrame `json:"members"`
	Tags     []tagFrame    `json:"tags"`
}

type memberFrame struct {
	Kind     string `json:"kind"`
	SourceID int64  `json:"source_id"`
	Role     string `json:"role"`
}

type tagFrame struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

func tagsFromFrames(frames []tagFrame) []bulkwriter.Tag {
	if len(frames) == 0 {
		return nil
	}
	tags := make([]bulkwriter.Tag, len(frames))
	for i, f := range frames {
		tags[i] = bulkwriter.Tag{Key: f.Key, Value: f.Value}
	}
	return tags
}

func memberKindFromString(s string) (bulkwriter.Kind, error) {
	switch s {
	case "node":
		return bulkwriter.NodeKind, nil
	case "way":
		return bulkwriter.WayKind, nil
	case "relation":
		return bulkwriter.RelationKind, nil
	default:
		return 0, fmt.Errorf("unknown member kind %q", s)
	}
}

func runWrite(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	log := logger.Get()

	var mode bulkwriter.Mode
	switch writeFlags.mode {
	case "offline":
		mode = bulkwriter.Offline
	case "online":
		mode = bulkwriter.Online
	default:
		return fmt.Errorf("--mode must be offline or online, got %q", writeFlags.mode)
	}

	cfg := bulkwriter.DefaultConfig()
	cfg.Mode = mode
	cfg.UserID = writeFlags.userID
	cfg.MaxChangesPerChangeset = writeFlags.maxChanges
	cfg.StatusUpdateInterval = writeFlags.statusInterval
	cfg.SQLFileCopyLocation = writeFlags.out
	cfg.ExecuteSQL = writeFlags.execute
	cfg.TempDir = writeFlags.tempDir
	cfg.SpillThreshold = writeFlags.spillThreshold
	cfg.Logger = log
	if writeFlags.metricsEvery > 0 {
		cfg.Metrics = metrics.NewCollector(writeFlags.metricsEvery, log)
	}

	pool, err := pgxpool.New(ctx, writeFlags.dbURL)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()

	reservation := dbdriver.NewPgxReservation(pool)

	w := bulkwriter.New(*cfg, nil)
	if err := w.Open(ctx, writeFlags.dbURL, reservation); err != nil {
		return fmt.Errorf("open writer: %w", err)
	}
	defer w.Close()

	in, closeIn, err := openInput(writeFlags.input)
	if err != nil {
		return err
	}
	defer closeIn()

	if err := streamElements(w, in); err != nil {
		return err
	}

	path, err := w.Finalize(ctx)
	if err != nil {
		return fmt.Errorf("finalize: %w", err)
	}

	stats := w.Stats()
	log.Info("write complete",
		zap.String("script", path),
		zap.Int64("total_rows", stats.Total()),
		zap.Int64("nodes", stats.Nodes),
		zap.Int64("ways", stats.Ways),
		zap.Int64("relations", stats.Relations),
		zap.Int64("changesets", stats.Changesets))
	fmt.Println(path)
	return nil
}

func openInput(path string) (io.Reader, func(), error) {
	if path == "-" || path == "" {
		return os.Stdin, func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open input %s: %w", path, err)
	}
	return f, func() { f.Close() }, nil
}

func streamElements(w *bulkwriter.Writer, r io.Reader) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var frame elementFrame
		if err := json.Unmarshal(line, &frame); err != nil {
			return fmt.Errorf("input line %d: decode: %w", lineNo, err)
		}

		if err := writeFrame(w, frame); err != nil {
			return fmt.Errorf("input line %d: %w", lineNo, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	return nil
}

func writeFrame(w *bulkwriter.Writer, frame elementFrame) error {
	switch frame.Type {
	case "node":
		return w.WritePartial(bulkwriter.Node{
			SourceID: frame.SourceID,
			Lat:      frame.Lat,
			Lon:      frame.Lon,
			Tags:     tagsFromFrames(frame.Tags),
		})
	case "way":
		return w.WritePartial(bulkwriter.Way{
			SourceID: frame.SourceID,
			Nodes:    frame.Nodes,
			Tags:     tagsFromFrames(frame.Tags),
		})
	case "relation":
		members := make([]bulkwriter.Member, len(frame.Members))
		for i, m := range frame.Members {
			kind, err := memberKindFromString(m.Kind)
			if err != nil {
				return err
			}
			members[i] = bulkwriter.Member{Kind: kind, SourceID: m.SourceID, Role: m.Role}
		}
		return w.WritePartial(bulkwriter.Relation{
			SourceID: frame.SourceID,
			Members:  members,
			Tags:     tagsFromFrames(frame.Tags),
		})
	default:
		return fmt.Errorf("unknown element type %q", frame.Type)
	}
}
