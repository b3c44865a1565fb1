package bulkwriter

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/wegman-software/osm2pgsql-go/internal/metrics"
)

// Mode selects the commit protocol, per spec §1/§4.10.
type Mode int

const (
	// Offline reserves every sequence once at Open, so emitted local ids
	// are already final and no rewrite pass is needed.
	Offline Mode = iota
	// Online writes with local ids, then reserves and rewrites offsets at
	// Finalize, under a sequence-reservation lock.
	Online
)

func (m Mode) String() string {
	switch m {
	case Offline:
		return "offline"
	case Online:
		return "online"
	default:
		return "unknown"
	}
}

// Config is the writer's immutable configuration, captured at Open,
// matching internal/config.Config's plain-struct-with-DefaultConfig shape
// (spec §9's "single mutable configuration" design note: reconfiguration
// requires Close/Open).
type Config struct {
	Mode Mode

	// UserID attributes every emitted changeset. Must be >= 0 by the time
	// the first changeset is flushed.
	UserID int64

	// MaxChangesPerChangeset bounds how many element writes share one
	// changeset row before rotating to a new one.
	MaxChangesPerChangeset int64

	// FileOutputLineBufferSize is validated as positive at Open. Section
	// writers use bufio's default buffer size; this value does not change
	// it.
	FileOutputLineBufferSize int

	// StatusUpdateInterval is the progress-log cadence, derated against
	// MaxChangesPerChangeset by changeset.Accumulator.
	StatusUpdateInterval int64

	// SQLFileCopyLocation, if set, copies the final assembled (and, in
	// online mode, rewritten) script there after Finalize.
	SQLFileCopyLocation string

	// ExecuteSQL, if true, executes the final script through the injected
	// driver after Finalize assembles it.
	ExecuteSQL bool

	// TempDir is the directory section/assembly/rewrite temp files are
	// created in; empty uses the OS default.
	TempDir string

	// SpillThreshold is the entry count above which an id map migrates
	// from an in-memory hash to a spillable mmap journal; 0 selects the
	// default per idstore.NewSpillableMap.
	SpillThreshold int

	// Logger receives structured progress and error context; defaults to
	// logger.Get() when nil.
	Logger *zap.Logger

	// Metrics, when set, is started at Open and stopped at Close to log
	// system resource usage while a long write is in flight.
	Metrics *metrics.Collector
}

// DefaultConfig returns a Config with sensible defaults for offline-mode,
// single-writer use.
func DefaultConfig() *Config {
	return &Config{
		Mode:                     Offline,
		MaxChangesPerChangeset:   500,
		FileOutputLineBufferSize: 64 * 1024,
		StatusUpdateInterval:     1000,
	}
}

// Validate checks that the configuration is usable, mirroring
// internal/config.Config.Validate's early, named, wrapped-error style.
func (c *Config) Validate() error {
	if c.UserID < 0 {
		return fmt.Errorf("bulkwriter: config: user id must be >= 0, got %d", c.UserID)
	}
	if c.MaxChangesPerChangeset <= 0 {
		return fmt.Errorf("bulkwriter: config: max changes per changeset must be positive, got %d", c.MaxChangesPerChangeset)
	}
	if c.FileOutputLineBufferSize <= 0 {
		return fmt.Errorf("bulkwriter: config: file output line buffer size must be positive, got %d", c.FileOutputLineBufferSize)
	}
	if c.StatusUpdateInterval <= 0 {
		return fmt.Errorf("bulkwriter: config: status update interval must be positive, got %d", c.StatusUpdateInterval)
	}
	return nil
}
