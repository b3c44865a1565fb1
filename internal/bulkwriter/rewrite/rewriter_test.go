package rewrite

import (
	"bytes"
	"strings"
	"testing"
)

const sampleScript = `BEGIN TRANSACTION;
COPY changesets (id, user_id, created_at, min_lat, max_lat, min_lon, max_lon, closed_at, num_changes) FROM stdin;
1	17	2024-01-15 12:00:00.000	10000000	10000000	20000000	20000000	2024-01-15 12:00:00.000	1
\.


COPY current_nodes (id, latitude, longitude, changeset_id, visible, "timestamp", tile, version) FROM stdin;
1	10000000	20000000	1	t	2024-01-15 12:00:00.000	123	1
\.


COPY current_way_nodes (way_id, node_id, sequence_id) FROM stdin;
1	1	1
\.


COPY current_relation_members (relation_id, member_type, member_id, member_role, sequence_id) FROM stdin;
1	Node	1		1
\.


COMMIT;`

func TestRewriteAppliesBasesPerTable(t *testing.T) {
	bases := Bases{Changeset: 100, Node: 1000, Way: 2000, Relation: 3000}

	var out bytes.Buffer
	if err := Rewrite(&out, strings.NewReader(sampleScript), bases); err != nil {
		t.Fatalf("Rewrite: %v", err)
	}
	rewritten := out.String()

	if !strings.Contains(rewritten, "\n101\t17\t") {
		t.Errorf("expected changeset id 1+100=101, got %q", rewritten)
	}
	if !strings.Contains(rewritten, "\n1001\t10000000\t20000000\t101\tt\t") {
		t.Errorf("expected node id 1001 and changeset_id 101, got %q", rewritten)
	}
	if !strings.Contains(rewritten, "\n2001\t1001\t1\n") {
		t.Errorf("expected way_id 2001 and node_id 1001 in way_nodes row, got %q", rewritten)
	}
	if !strings.Contains(rewritten, "\n3001\tNode\t1001\t") {
		t.Errorf("expected relation_id 3001 and member_id 1001 (node base) in relation_members row, got %q", rewritten)
	}
}

func TestRewriteIsIdempotentWithZeroBases(t *testing.T) {
	var out bytes.Buffer
	if err := Rewrite(&out, strings.NewReader(sampleScript), Bases{}); err != nil {
		t.Fatalf("Rewrite: %v", err)
	}
	if out.String() != sampleScript+"\n" {
		t.Errorf("zero-base rewrite should reproduce the input (plus trailing newline from scanning), got:\n%q\nwant:\n%q", out.String(), sampleScript+"\n")
	}
}

func TestRewritePassesThroughUnknownTables(t *testing.T) {
	script := "COPY unknown_table (x) FROM stdin;\n5\n\\.\n\n\n"
	var out bytes.Buffer
	if err := Rewrite(&out, strings.NewReader(script), Bases{Node: 1000}); err != nil {
		t.Fatalf("Rewrite: %v", err)
	}
	if !strings.Contains(out.String(), "\n5\n") {
		t.Errorf("expected unknown table row to pass through unchanged, got %q", out.String())
	}
}
