// Package assemble concatenates a section.Store's sections into one
// transactional SQL script in canonical order, per spec §4.8.
package assemble

import (
	"bufio"
	"fmt"
	"io"
	"os"
)

// Drainer is the subset of section.Store's behavior the assembler needs.
type Drainer interface {
	DrainInto(w io.Writer, skip map[string]bool) error
}

// Assemble writes BEGIN TRANSACTION;, drains store in canonical order into
// the output (skipping any table named in skip — used by online mode to
// hold back sequence_updates, which is executed separately), then writes
// COMMIT;. Returns the open output file positioned at its start.
func Assemble(dir string, store Drainer, skip map[string]bool) (*os.File, error) {
	out, err := os.CreateTemp(dir, "bulkwriter-script-*.sql")
	if err != nil {
		return nil, fmt.Errorf("assemble: create output file: %w", err)
	}

	w := bufio.NewWriter(out)
	if _, err := w.WriteString("BEGIN TRANSACTION;\n"); err != nil {
		out.Close()
		os.Remove(out.Name())
		return nil, fmt.Errorf("assemble: write BEGIN: %w", err)
	}

	if err := store.DrainInto(w, skip); err != nil {
		out.Close()
		os.Remove(out.Name())
		return nil, fmt.Errorf("assemble: drain sections: %w", err)
	}

	if _, err := w.WriteString("COMMIT;"); err != nil {
		out.Close()
		os.Remove(out.Name())
		return nil, fmt.Errorf("assemble: write COMMIT: %w", err)
	}
	if err := w.Flush(); err != nil {
		out.Close()
		os.Remove(out.Name())
		return nil, fmt.Errorf("assemble: flush output: %w", err)
	}

	if _, err := out.Seek(0, io.SeekStart); err != nil {
		out.Close()
		os.Remove(out.Name())
		return nil, fmt.Errorf("assemble: rewind output: %w", err)
	}

	return out, nil
}
