// Package section manages the set of named temporary files ("sections")
// that the bulk element writer assembles into bulk-copy input, one per
// target table, following the teacher's pattern of buffered os.File writers
// scoped and released by the owner (see internal/loader.Loader's temp-table
// handling and internal/nodeindex.MmapIndex's acquire/Close symmetry).
package section

import (
	"bufio"
	"fmt"
	"io"
	"os"
)

// Canonical is the fixed global order sections are concatenated in. Every
// drain operation visits sections in this order regardless of creation
// order.
var Canonical = []string{
	"byte_order_mark",
	"sequence_updates",
	"changesets",
	"current_nodes",
	"current_node_tags",
	"nodes",
	"node_tags",
	"current_ways",
	"current_way_nodes",
	"current_way_tags",
	"ways",
	"way_nodes",
	"way_tags",
	"current_relations",
	"current_relation_members",
	"current_relation_tags",
	"relations",
	"relation_members",
	"relation_tags",
}

const byteOrderMark = "\uFEFF"

// section is one temporary file plus its buffered writer and header.
type section struct {
	table    string
	file     *os.File
	writer   *bufio.Writer
	isCopy   bool // false for byte_order_mark and sequence_updates
	hadOne   bool // at least one row written beyond the header
}

// Store is the set of named temporary sections owned by one writer
// instance. Not safe for concurrent use — the core is single-threaded
// cooperative per the concurrency model.
type Store struct {
	sections map[string]*section
	dir      string
}

// NewStore creates an empty section store. dir, if non-empty, is used as
// the directory for temporary section files (passed to os.CreateTemp);
// an empty dir uses the OS default temp directory.
func NewStore(dir string) *Store {
	return &Store{
		sections: make(map[string]*section),
		dir:      dir,
	}
}

// Ensure creates a section if one doesn't already exist for table, opening
// a temporary file and writing header as its first line. When bom is true
// a UTF-8 byte-order-mark is written before the header — used only for the
// distinguished "byte_order_mark" section.
func (s *Store) Ensure(table, header string, bom bool) error {
	if _, ok := s.sections[table]; ok {
		return nil
	}

	f, err := os.CreateTemp(s.dir, "bulkwriter-"+table+"-*.tmp")
	if err != nil {
		return fmt.Errorf("section %s: create temp file: %w", table, err)
	}

	sec := &section{
		table:  table,
		file:   f,
		writer: bufio.NewWriter(f),
		isCopy: table != "byte_order_mark" && table != "sequence_updates",
	}

	if bom {
		if _, err := sec.writer.WriteString(byteOrderMark); err != nil {
			f.Close()
			return fmt.Errorf("section %s: write BOM: %w", table, err)
		}
	}
	if header != "" {
		if _, err := sec.writer.WriteString(header); err != nil {
			f.Close()
			return fmt.Errorf("section %s: write header: %w", table, err)
		}
	}

	s.sections[table] = sec
	return nil
}

// Has reports whether a section for table has been created.
func (s *Store) Has(table string) bool {
	_, ok := s.sections[table]
	return ok
}

// Write appends a row to table's section. line should not include a
// trailing newline; Write adds one.
func (s *Store) Write(table, line string) error {
	sec, ok := s.sections[table]
	if !ok {
		return fmt.Errorf("section %s: not created", table)
	}
	if _, err := sec.writer.WriteString(line); err != nil {
		return fmt.Errorf("section %s: write row: %w", table, err)
	}
	if err := sec.writer.WriteByte('\n'); err != nil {
		return fmt.Errorf("section %s: write row: %w", table, err)
	}
	sec.hadOne = true
	return nil
}

// Flush forces table's buffered writer and underlying file to disk.
func (s *Store) Flush(table string) error {
	sec, ok := s.sections[table]
	if !ok {
		return fmt.Errorf("section %s: not created", table)
	}
	if err := sec.writer.Flush(); err != nil {
		return fmt.Errorf("section %s: flush writer: %w", table, err)
	}
	if err := sec.file.Sync(); err != nil {
		return fmt.Errorf("section %s: sync file: %w", table, err)
	}
	return nil
}

// DrainInto iterates sections in canonical order and, for each present
// section, appends its content to w: copy-data sections are followed by a
// "\.\n\n\n" terminator. The temporary file backing each drained section is
// removed once copied. Call once, at finalize.
func (s *Store) DrainInto(w io.Writer, skip map[string]bool) error {
	for _, table := range Canonical {
		sec, ok := s.sections[table]
		if !ok {
			continue
		}
		if skip[table] {
			continue
		}

		if err := sec.writer.Flush(); err != nil {
			return fmt.Errorf("section %s: flush before drain: %w", table, err)
		}

		if err := copyFileInto(w, sec.file); err != nil {
			return fmt.Errorf("section %s: copy contents: %w", table, err)
		}

		if sec.isCopy {
			if _, err := io.WriteString(w, "\\.\n\n\n"); err != nil {
				return fmt.Errorf("section %s: write terminator: %w", table, err)
			}
		}

		path := sec.file.Name()
		sec.file.Close()
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("section %s: remove temp file: %w", table, err)
		}
		delete(s.sections, table)
	}
	return nil
}

func copyFileInto(w io.Writer, f *os.File) error {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return err
	}
	_, err := io.Copy(w, f)
	return err
}

// Close releases every remaining section's temporary file without
// draining it — used on abandonment/error paths so no temp file survives
// a failed or cancelled write.
func (s *Store) Close() error {
	var firstErr error
	for table, sec := range s.sections {
		path := sec.file.Name()
		sec.file.Close()
		if err := os.Remove(path); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("section %s: remove temp file: %w", table, err)
		}
	}
	s.sections = make(map[string]*section)
	return firstErr
}
