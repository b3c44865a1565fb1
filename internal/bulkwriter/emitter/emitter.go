// Package emitter translates node/way/relation elements into the
// tab-separated rows written to each target table's section, per spec
// §4.5. It is the core's largest component: every row layout in §6 is
// produced here.
package emitter

import (
	"fmt"
	"math"
	"time"

	"github.com/wegman-software/osm2pgsql-go/internal/bulkwriter/changeset"
	"github.com/wegman-software/osm2pgsql-go/internal/bulkwriter/element"
	"github.com/wegman-software/osm2pgsql-go/internal/bulkwriter/encoder"
	"github.com/wegman-software/osm2pgsql-go/internal/bulkwriter/idalloc"
	"github.com/wegman-software/osm2pgsql-go/internal/bulkwriter/section"
	"github.com/wegman-software/osm2pgsql-go/internal/bulkwriter/stats"
	"github.com/wegman-software/osm2pgsql-go/internal/bulkwriter/tileindex"
	"github.com/wegman-software/osm2pgsql-go/internal/bulkwriter/unresolved"
)

// headers are the exact COPY ... FROM stdin; lines for every copy-data
// section, per spec §6's column lists.
var headers = map[string]string{
	"changesets":                "COPY changesets (id, user_id, created_at, min_lat, max_lat, min_lon, max_lon, closed_at, num_changes) FROM stdin;\n",
	"current_nodes":             "COPY current_nodes (id, latitude, longitude, changeset_id, visible, \"timestamp\", tile, version) FROM stdin;\n",
	"nodes":                     "COPY nodes (node_id, latitude, longitude, changeset_id, visible, \"timestamp\", tile, version, redaction_id) FROM stdin;\n",
	"current_node_tags":         "COPY current_node_tags (node_id, k, v) FROM stdin;\n",
	"node_tags":                 "COPY node_tags (node_id, version, k, v) FROM stdin;\n",
	"current_ways":              "COPY current_ways (id, changeset_id, \"timestamp\", visible, version) FROM stdin;\n",
	"ways":                      "COPY ways (way_id, changeset_id, \"timestamp\", version, visible, redaction_id) FROM stdin;\n",
	"current_way_nodes":         "COPY current_way_nodes (way_id, node_id, sequence_id) FROM stdin;\n",
	"way_nodes":                 "COPY way_nodes (way_id, node_id, version, sequence_id) FROM stdin;\n",
	"current_way_tags":          "COPY current_way_tags (way_id, k, v) FROM stdin;\n",
	"way_tags":                  "COPY way_tags (way_id, version, k, v) FROM stdin;\n",
	"current_relations":         "COPY current_relations (id, changeset_id, \"timestamp\", visible, version) FROM stdin;\n",
	"relations":                 "COPY relations (relation_id, changeset_id, \"timestamp\", version, visible, redaction_id) FROM stdin;\n",
	"current_relation_members":  "COPY current_relation_members (relation_id, member_type, member_id, member_role, sequence_id) FROM stdin;\n",
	"relation_members":          "COPY relation_members (relation_id, member_type, member_id, member_role, version, sequence_id) FROM stdin;\n",
	"current_relation_tags":     "COPY current_relation_tags (relation_id, k, v) FROM stdin;\n",
	"relation_tags":             "COPY relation_tags (relation_id, version, k, v) FROM stdin;\n",
}

// kindLiteral renders a member kind the way the reference schema expects
// it: capitalised, per spec §6.
func kindLiteral(k idalloc.Kind) (string, bool) {
	switch k {
	case idalloc.Node:
		return "Node", true
	case idalloc.Way:
		return "Way", true
	case idalloc.Relation:
		return "Relation", true
	default:
		return "", false
	}
}

// Emitter ties the id allocator, unresolved-reference index, changeset
// accumulator, and section store together to translate elements into
// rows, per spec §4.5.
type Emitter struct {
	Alloc      *idalloc.Allocator
	Unresolved *unresolved.Index
	Changesets *changeset.Accumulator
	Sections   *section.Store
	Now        func() time.Time
	Stats      *stats.WriteStats

	nodesInitialised bool
	waysInitialised  bool
	relsInitialised  bool
}

const (
	nanodegreesPerDegree = 1e7
	minLatNano           = -9e8
	maxLatNano           = 9e8
	minLonNano           = -1.8e9
	maxLonNano           = 1.8e9
)

func toNanodegrees(deg float64) int64 {
	return int64(math.Round(deg * nanodegreesPerDegree))
}

func (e *Emitter) timestamp() string {
	return e.Now().UTC().Format("2006-01-02 15:04:05.000")
}

func (e *Emitter) ensureNodeSections() error {
	if e.nodesInitialised {
		return nil
	}
	for _, table := range []string{"current_nodes", "current_node_tags", "nodes", "node_tags"} {
		if err := e.Sections.Ensure(table, headers[table], false); err != nil {
			return err
		}
	}
	e.nodesInitialised = true
	return nil
}

func (e *Emitter) ensureWaySections() error {
	if e.waysInitialised {
		return nil
	}
	for _, table := range []string{"current_ways", "current_way_nodes", "current_way_tags", "ways", "way_nodes", "way_tags"} {
		if err := e.Sections.Ensure(table, headers[table], false); err != nil {
			return err
		}
	}
	e.waysInitialised = true
	return nil
}

func (e *Emitter) ensureRelationSections() error {
	if e.relsInitialised {
		return nil
	}
	for _, table := range []string{"current_relations", "current_relation_members", "current_relation_tags", "relations", "relation_members", "relation_tags"} {
		if err := e.Sections.Ensure(table, headers[table], false); err != nil {
			return err
		}
	}
	e.relsInitialised = true
	return nil
}

// EmitNode assigns a local id to n and writes its current/history rows,
// its tags, and expands the active changeset's bounding box before
// counting the change, per spec §4.5 node emit.
func (e *Emitter) EmitNode(n element.Node) (int64, error) {
	latNano := toNanodegrees(n.Lat)
	if latNano < minLatNano || latNano > maxLatNano {
		return 0, &InvalidCoordinateError{Axis: "latitude", SourceID: n.SourceID, Degrees: n.Lat}
	}
	lonNano := toNanodegrees(n.Lon)
	if lonNano < minLonNano || lonNano > maxLonNano {
		return 0, &InvalidCoordinateError{Axis: "longitude", SourceID: n.SourceID, Degrees: n.Lon}
	}

	if err := e.ensureNodeSections(); err != nil {
		return 0, fmt.Errorf("emitter: ensure node sections: %w", err)
	}

	local, err := e.Alloc.Assign(idalloc.Node, n.SourceID)
	if err != nil {
		return 0, err
	}

	tile := tileindex.ForPoint(n.Lat, n.Lon)

	e.Changesets.ExpandBBox(latNano, lonNano)
	if err := e.Changesets.Increment(); err != nil {
		return 0, err
	}
	changesetID := e.Changesets.CurrentID()
	ts := e.timestamp()

	currentRow := fmt.Sprintf("%d\t%d\t%d\t%d\tt\t%s\t%d\t1",
		local, latNano, lonNano, changesetID, ts, tile)
	if err := e.Sections.Write("current_nodes", currentRow); err != nil {
		return 0, err
	}
	historyRow := fmt.Sprintf("%d\t%d\t%d\t%d\tt\t%s\t%d\t1\t\\N",
		local, latNano, lonNano, changesetID, ts, tile)
	if err := e.Sections.Write("nodes", historyRow); err != nil {
		return 0, err
	}
	e.Stats.Nodes++

	if err := e.emitTags(local, n.Tags, "current_node_tags", "node_tags"); err != nil {
		return 0, err
	}

	if err := e.resolvePending(idalloc.Node, n.SourceID, local); err != nil {
		return 0, err
	}

	return local, nil
}

// EmitWay assigns a local id to w, resolves every member node, and writes
// its current/history and way-node rows, per spec §4.5 way emit.
func (e *Emitter) EmitWay(w element.Way) (int64, error) {
	if err := e.ensureWaySections(); err != nil {
		return 0, fmt.Errorf("emitter: ensure way sections: %w", err)
	}

	local, err := e.Alloc.Assign(idalloc.Way, w.SourceID)
	if err != nil {
		return 0, err
	}

	if err := e.Changesets.Increment(); err != nil {
		return 0, err
	}
	changesetID := e.Changesets.CurrentID()
	ts := e.timestamp()

	currentRow := fmt.Sprintf("%d\t%d\t%s\tt\t1", local, changesetID, ts)
	if err := e.Sections.Write("current_ways", currentRow); err != nil {
		return 0, err
	}
	historyRow := fmt.Sprintf("%d\t%d\t%s\t1\tt\t\\N", local, changesetID, ts)
	if err := e.Sections.Write("ways", historyRow); err != nil {
		return 0, err
	}
	e.Stats.Ways++

	for i, nodeSourceID := range w.Nodes {
		sequenceIndex := i + 1
		nodeLocal, ok := e.Alloc.Resolve(idalloc.Node, nodeSourceID)
		if !ok {
			return 0, &UnresolvedWayNodeError{WaySourceID: w.SourceID, NodeSourceID: nodeSourceID}
		}

		currentWayNodeRow := fmt.Sprintf("%d\t%d\t%d", local, nodeLocal, sequenceIndex)
		if err := e.Sections.Write("current_way_nodes", currentWayNodeRow); err != nil {
			return 0, err
		}
		wayNodeRow := fmt.Sprintf("%d\t%d\t1\t%d", local, nodeLocal, sequenceIndex)
		if err := e.Sections.Write("way_nodes", wayNodeRow); err != nil {
			return 0, err
		}
		e.Stats.WayNodes++
	}

	if err := e.emitTags(local, w.Tags, "current_way_tags", "way_tags"); err != nil {
		return 0, err
	}

	if err := e.resolvePending(idalloc.Way, w.SourceID, local); err != nil {
		return 0, err
	}

	return local, nil
}

// EmitRelation assigns a local id to r and writes its current/history
// rows; members whose target has already been seen get their member rows
// written immediately, others are recorded in the unresolved index to be
// written when their target arrives, per spec §4.5 relation emit.
func (e *Emitter) EmitRelation(r element.Relation) (int64, error) {
	if err := e.ensureRelationSections(); err != nil {
		return 0, fmt.Errorf("emitter: ensure relation sections: %w", err)
	}

	local, err := e.Alloc.Assign(idalloc.Relation, r.SourceID)
	if err != nil {
		return 0, err
	}

	if err := e.Changesets.Increment(); err != nil {
		return 0, err
	}
	changesetID := e.Changesets.CurrentID()
	ts := e.timestamp()

	currentRow := fmt.Sprintf("%d\t%d\t%s\tt\t1", local, changesetID, ts)
	if err := e.Sections.Write("current_relations", currentRow); err != nil {
		return 0, err
	}
	historyRow := fmt.Sprintf("%d\t%d\t%s\t1\tt\t\\N", local, changesetID, ts)
	if err := e.Sections.Write("relations", historyRow); err != nil {
		return 0, err
	}
	e.Stats.Relations++

	for i, m := range r.Members {
		sequenceIndex := i + 1
		if _, ok := kindLiteral(m.Kind); !ok {
			return 0, &UnsupportedElementKindError{RelationSourceID: r.SourceID, Kind: int(m.Kind)}
		}

		memberLocal, resolved := e.Alloc.Resolve(m.Kind, m.SourceID)
		if !resolved {
			e.Unresolved.Record(m.Kind, m.SourceID, unresolved.Ref{
				SourceRelationID: r.SourceID,
				LocalRelationID:  local,
				MemberKind:       m.Kind,
				MemberSourceID:   m.SourceID,
				MemberRole:       m.Role,
				SequenceIndex:    sequenceIndex,
			})
			e.Stats.RelationMembersUnresolved++
			continue
		}

		if err := e.writeRelationMember(local, m.Kind, memberLocal, m.Role, sequenceIndex); err != nil {
			return 0, err
		}
	}

	if err := e.emitTags(local, r.Tags, "current_relation_tags", "relation_tags"); err != nil {
		return 0, err
	}

	if err := e.resolvePending(idalloc.Relation, r.SourceID, local); err != nil {
		return 0, err
	}

	return local, nil
}

func (e *Emitter) writeRelationMember(relationLocal int64, kind idalloc.Kind, memberLocal int64, role string, sequenceIndex int) error {
	literal, _ := kindLiteral(kind)

	currentRow := fmt.Sprintf("%d\t%s\t%d\t%s\t%d",
		relationLocal, literal, memberLocal, encoder.Escape(role), sequenceIndex)
	if err := e.Sections.Write("current_relation_members", currentRow); err != nil {
		return err
	}
	historyRow := fmt.Sprintf("%d\t%s\t%d\t%s\t1\t%d",
		relationLocal, literal, memberLocal, encoder.Escape(role), sequenceIndex)
	if err := e.Sections.Write("relation_members", historyRow); err != nil {
		return err
	}
	e.Stats.RelationMembers++
	return nil
}

// resolvePending drains every unresolved reference waiting on
// (kind, sourceID), now that it has been assigned localID, and writes the
// deferred relation-member rows, per spec §4.5's resolve_pending step.
func (e *Emitter) resolvePending(kind idalloc.Kind, sourceID, localID int64) error {
	refs := e.Unresolved.TakeAll(kind, sourceID)
	for _, ref := range refs {
		if err := e.writeRelationMember(ref.LocalRelationID, ref.MemberKind, localID, ref.MemberRole, ref.SequenceIndex); err != nil {
			return fmt.Errorf("emitter: resolve pending member of relation source id %d: %w", ref.SourceRelationID, err)
		}
		e.Stats.RelationMembersUnresolved--
	}
	return nil
}

// emitTags writes one row per tag to both the current-tag and
// history-tag sections, per spec §4.5.t.
func (e *Emitter) emitTags(localID int64, tags []element.Tag, currentTable, historyTable string) error {
	for _, t := range tags {
		k, v := encoder.Escape(t.Key), encoder.Escape(t.Value)

		currentRow := fmt.Sprintf("%d\t%s\t%s", localID, k, v)
		if err := e.Sections.Write(currentTable, currentRow); err != nil {
			return err
		}
		historyRow := fmt.Sprintf("%d\t1\t%s\t%s", localID, k, v)
		if err := e.Sections.Write(historyTable, historyRow); err != nil {
			return err
		}

		switch currentTable {
		case "current_node_tags":
			e.Stats.NodeTags++
		case "current_way_tags":
			e.Stats.WayTags++
		case "current_relation_tags":
			e.Stats.RelationTags++
		}
	}
	return nil
}
