package changeset

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func fixedNow() time.Time {
	return time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
}

func TestIncrementRotatesAtMax(t *testing.T) {
	var rows []string
	a := New(2, fixedNow, func(row string) error {
		rows = append(rows, row)
		return nil
	})
	a.SetUserID(1)

	for i := 0; i < 5; i++ {
		if err := a.Increment(); err != nil {
			t.Fatalf("Increment(%d): %v", i, err)
		}
	}

	if a.CurrentID() != 2 {
		t.Errorf("CurrentID() = %d, want 2 after 5 increments with max 2", a.CurrentID())
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 flushed rows before Finalize, got %d", len(rows))
	}

	if err := a.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 flushed rows after Finalize, got %d", len(rows))
	}
	if a.ChangesetsWritten() != 3 {
		t.Errorf("ChangesetsWritten() = %d, want 3", a.ChangesetsWritten())
	}
}

func TestFinalizeEnsuresAtLeastOneChangeset(t *testing.T) {
	var rows []string
	a := New(500, fixedNow, func(row string) error {
		rows = append(rows, row)
		return nil
	})
	a.SetUserID(0)

	if err := a.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if a.ChangesetsWritten() != 1 {
		t.Errorf("ChangesetsWritten() = %d, want 1 even with zero changes", a.ChangesetsWritten())
	}
	if len(rows) != 0 {
		t.Errorf("no row should be flushed for an empty changeset, got %v", rows)
	}
}

func TestInvalidUserIDFailsOnFlush(t *testing.T) {
	a := New(1, fixedNow, func(string) error { return nil })
	a.SetUserID(-1)

	err := a.Increment()
	var invalid *InvalidUserIDError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected *InvalidUserIDError, got %v", err)
	}
}

func TestExpandBBoxAndRowFormat(t *testing.T) {
	var rows []string
	a := New(1, fixedNow, func(row string) error {
		rows = append(rows, row)
		return nil
	})
	a.SetUserID(17)

	a.ExpandBBox(10000000, 20000000)
	if err := a.Increment(); err != nil {
		t.Fatalf("Increment: %v", err)
	}
	if err := a.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	fields := strings.Split(rows[0], "\t")
	if len(fields) != 9 {
		t.Fatalf("expected 9 tab-separated fields, got %d: %v", len(fields), fields)
	}
	if fields[0] != "1" || fields[1] != "17" {
		t.Errorf("id/user_id = %s/%s, want 1/17", fields[0], fields[1])
	}
	if fields[3] != "10000000" || fields[4] != "10000000" || fields[5] != "20000000" || fields[6] != "20000000" {
		t.Errorf("bbox fields = %v, want single-point bbox 10000000/10000000/20000000/20000000", fields[3:7])
	}
	if fields[8] != "1" {
		t.Errorf("num_changes = %s, want 1", fields[8])
	}
}

func TestSetStartIDOffsetsFlushedRows(t *testing.T) {
	var rows []string
	a := New(500, fixedNow, func(row string) error {
		rows = append(rows, row)
		return nil
	})
	a.SetUserID(1)
	a.SetStartID(500)

	if err := a.Increment(); err != nil {
		t.Fatalf("Increment: %v", err)
	}
	if err := a.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	id := strings.Split(rows[0], "\t")[0]
	if id != "500" {
		t.Errorf("changeset id = %s, want 500 (reserved start id)", id)
	}
	if a.CurrentID() != 500 {
		t.Errorf("CurrentID() = %d, want 500", a.CurrentID())
	}
}
