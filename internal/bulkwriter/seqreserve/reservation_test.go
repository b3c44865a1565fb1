package seqreserve

import (
	"context"
	"strings"
	"testing"
)

type fakeReservation struct {
	next      map[string]int64
	execCalls []string
}

func (f *fakeReservation) NextID(_ context.Context, kindOrTable string) (int64, error) {
	return f.next[kindOrTable], nil
}

func (f *fakeReservation) ExecTransactional(_ context.Context, sql string) error {
	f.execCalls = append(f.execCalls, sql)
	return nil
}

func TestReserveOffline(t *testing.T) {
	r := &fakeReservation{next: map[string]int64{
		"changesets": 100, "nodes": 1000, "ways": 2000, "relations": 3000,
	}}

	bases, err := ReserveOffline(context.Background(), r)
	if err != nil {
		t.Fatalf("ReserveOffline: %v", err)
	}
	want := Bases{Changeset: 100, Node: 1000, Way: 2000, Relation: 3000}
	if bases != want {
		t.Errorf("ReserveOffline() = %+v, want %+v", bases, want)
	}
}

func TestReserveOnlineEmitsSetvalsAndExecutes(t *testing.T) {
	r := &fakeReservation{next: map[string]int64{
		"changesets": 100, "nodes": 1000, "ways": 2000, "relations": 3000,
	}}
	counts := Counts{Changesets: 5, Nodes: 10, Ways: 0, Relations: 2}

	bases, sql, err := ReserveOnline(context.Background(), r, counts)
	if err != nil {
		t.Fatalf("ReserveOnline: %v", err)
	}
	if bases.Changeset != 100 || bases.Node != 1000 {
		t.Errorf("unexpected bases: %+v", bases)
	}
	if !strings.Contains(sql, "changesets_id_seq', 105") {
		t.Errorf("expected changesets setval to 105, got %q", sql)
	}
	if !strings.Contains(sql, "current_nodes_id_seq', 1010") {
		t.Errorf("expected nodes setval to 1010, got %q", sql)
	}
	if strings.Contains(sql, "current_ways_id_seq") {
		t.Errorf("ways setval should be omitted when count is 0, got %q", sql)
	}
	if !strings.Contains(sql, "current_relations_id_seq', 3002") {
		t.Errorf("expected relations setval to 3002, got %q", sql)
	}
	if len(r.execCalls) != 1 {
		t.Fatalf("expected ExecTransactional to be called once, got %d", len(r.execCalls))
	}
}

func TestOfflineSetvals(t *testing.T) {
	start := Bases{Changeset: 1, Node: 1, Way: 1, Relation: 1}
	counts := Counts{Changesets: 3, Nodes: 5, Ways: 0, Relations: 1}

	sql := OfflineSetvals(start, counts)
	if !strings.Contains(sql, "changesets_id_seq', 3") {
		t.Errorf("expected changesets setval to 3 (1+3-1), got %q", sql)
	}
	if !strings.Contains(sql, "current_nodes_id_seq', 5") {
		t.Errorf("expected nodes setval to 5 (1+5-1), got %q", sql)
	}
	if strings.Contains(sql, "current_ways_id_seq") {
		t.Errorf("ways setval should be omitted when count is 0, got %q", sql)
	}
	if !strings.Contains(sql, "current_relations_id_seq', 1") {
		t.Errorf("expected relations setval to 1 (1+1-1), got %q", sql)
	}
}
