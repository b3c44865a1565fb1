package bulkwriter

import (
	"github.com/wegman-software/osm2pgsql-go/internal/bulkwriter/element"
	"github.com/wegman-software/osm2pgsql-go/internal/bulkwriter/idalloc"
	"github.com/wegman-software/osm2pgsql-go/internal/bulkwriter/stats"
)

// Node, Way, Relation, Member, and Tag are the element types WritePartial
// accepts, re-exported from internal/bulkwriter/element so callers never
// need to import the sub-package directly, per spec §3.
type (
	Node     = element.Node
	Way      = element.Way
	Relation = element.Relation
	Member   = element.Member
	Tag      = element.Tag
)

// Kind identifies a relation member's element kind.
type Kind = idalloc.Kind

const (
	NodeKind     = idalloc.Node
	WayKind      = idalloc.Way
	RelationKind = idalloc.Relation
)

// WriteStats reports rows emitted per target table, per spec §3.
type WriteStats = stats.WriteStats
