// Package rewrite implements the second-pass, per-column id offset
// rewrite used in online mode, per spec §4.9.
package rewrite

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/wegman-software/osm2pgsql-go/internal/bulkwriter/seqreserve"
)

// Bases is the set of reserved starting ids the rewrite adds to every id
// column of the corresponding table.
type Bases = seqreserve.Bases

// column identifies one rewritten column in a row and which base to add.
type column struct {
	index int
	base  func(b Bases) int64
}

// relationMemberIndex is handled specially: which base to add to column
// 2 depends on the member kind carried in column 1.
const relationMemberIndex = 2

var tableColumns = map[string][]column{
	"changesets": {
		{0, func(b Bases) int64 { return b.Changeset }},
	},
	"current_nodes": {
		{0, func(b Bases) int64 { return b.Node }},
		{3, func(b Bases) int64 { return b.Changeset }},
	},
	"nodes": {
		{0, func(b Bases) int64 { return b.Node }},
		{3, func(b Bases) int64 { return b.Changeset }},
	},
	"current_ways": {
		{0, func(b Bases) int64 { return b.Way }},
		{1, func(b Bases) int64 { return b.Changeset }},
	},
	"ways": {
		{0, func(b Bases) int64 { return b.Way }},
		{1, func(b Bases) int64 { return b.Changeset }},
	},
	"current_way_nodes": {
		{0, func(b Bases) int64 { return b.Way }},
		{1, func(b Bases) int64 { return b.Node }},
	},
	"way_nodes": {
		{0, func(b Bases) int64 { return b.Way }},
		{1, func(b Bases) int64 { return b.Node }},
	},
	"current_relations": {
		{0, func(b Bases) int64 { return b.Relation }},
		{1, func(b Bases) int64 { return b.Changeset }},
	},
	"relations": {
		{0, func(b Bases) int64 { return b.Relation }},
		{1, func(b Bases) int64 { return b.Changeset }},
	},
	"current_relation_members": {
		{0, func(b Bases) int64 { return b.Relation }},
		// column 2 (member_id) is handled specially below, keyed off
		// column 1 (member_type).
	},
	"relation_members": {
		{0, func(b Bases) int64 { return b.Relation }},
	},
	"current_node_tags": {
		{0, func(b Bases) int64 { return b.Node }},
	},
	"node_tags": {
		{0, func(b Bases) int64 { return b.Node }},
	},
	"current_way_tags": {
		{0, func(b Bases) int64 { return b.Way }},
	},
	"way_tags": {
		{0, func(b Bases) int64 { return b.Way }},
	},
	"current_relation_tags": {
		{0, func(b Bases) int64 { return b.Relation }},
	},
	"relation_tags": {
		{0, func(b Bases) int64 { return b.Relation }},
	},
}

func isRelationMembersTable(table string) bool {
	return table == "current_relation_members" || table == "relation_members"
}

// Rewrite reads the assembled script from r and writes the offset-rewritten
// script to w. It is a pure function of the input plus bases: applying it
// twice with a zero Bases is idempotent, since adding zero changes
// nothing.
func Rewrite(w io.Writer, r io.Reader, bases Bases) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	bw := bufio.NewWriter(w)

	var currentTable string

	for scanner.Scan() {
		line := scanner.Text()

		switch {
		case strings.Contains(line, "COPY"):
			fields := strings.Fields(line)
			if len(fields) > 1 {
				currentTable = fields[1]
			}
			if _, err := bw.WriteString(line + "\n"); err != nil {
				return fmt.Errorf("rewrite: write header: %w", err)
			}
			continue

		case line == "" || line == "\\.":
			currentTable = ""
			if _, err := bw.WriteString(line + "\n"); err != nil {
				return fmt.Errorf("rewrite: write blank/terminator: %w", err)
			}
			continue
		}

		rewritten := rewriteLine(currentTable, line, bases)
		if _, err := bw.WriteString(rewritten + "\n"); err != nil {
			return fmt.Errorf("rewrite: write row: %w", err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("rewrite: scan input: %w", err)
	}

	return bw.Flush()
}

func rewriteLine(table, line string, bases Bases) string {
	cols, known := tableColumns[table]
	if !known {
		return line
	}

	parts := strings.Split(line, "\t")

	for _, c := range cols {
		if c.index >= len(parts) {
			continue
		}
		parts[c.index] = addOffset(parts[c.index], c.base(bases))
	}

	if isRelationMembersTable(table) && len(parts) > relationMemberIndex {
		var base int64
		switch parts[1] {
		case "Node":
			base = bases.Node
		case "Way":
			base = bases.Way
		case "Relation":
			base = bases.Relation
		}
		parts[relationMemberIndex] = addOffset(parts[relationMemberIndex], base)
	}

	return strings.Join(parts, "\t")
}

func addOffset(field string, base int64) string {
	n, err := strconv.ParseInt(field, 10, 64)
	if err != nil {
		return field
	}
	return strconv.FormatInt(n+base, 10)
}
