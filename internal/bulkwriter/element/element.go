// Package element defines the input data model the bulk element writer
// accepts, per spec §3: nodes, ways, and relations carrying tags and a
// kind-specific payload.
package element

import "github.com/wegman-software/osm2pgsql-go/internal/bulkwriter/idalloc"

// Tag is one ordered key/value pair attached to an element.
type Tag struct {
	Key   string
	Value string
}

// Node carries a geographic point.
type Node struct {
	SourceID int64
	Lat      float64
	Lon      float64
	Tags     []Tag
}

// Way carries an ordered sequence of member node source ids.
type Way struct {
	SourceID int64
	Nodes    []int64
	Tags     []Tag
}

// Member is one relation member: its kind, the source id of the element it
// points at, and its role string within the relation.
type Member struct {
	Kind     idalloc.Kind
	SourceID int64
	Role     string
}

// Relation carries an ordered sequence of members.
type Relation struct {
	SourceID int64
	Members  []Member
	Tags     []Tag
}
