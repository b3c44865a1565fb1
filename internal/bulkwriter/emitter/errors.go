package emitter

import "fmt"

// InvalidCoordinateError reports a node whose latitude or longitude falls
// outside the nanodegree range the reference schema's integer columns can
// hold, per spec §4.5 node emit step 1.
type InvalidCoordinateError struct {
	Axis     string // "latitude" or "longitude"
	SourceID int64
	Degrees  float64
}

func (e *InvalidCoordinateError) Error() string {
	return fmt.Sprintf("invalid %s %g for node source id %d", e.Axis, e.Degrees, e.SourceID)
}

// UnresolvedWayNodeError reports a way referencing a node source id never
// seen by the writer — unresolved way-nodes are not supported, per
// spec §4.5 way emit step 2.
type UnresolvedWayNodeError struct {
	WaySourceID  int64
	NodeSourceID int64
}

func (e *UnresolvedWayNodeError) Error() string {
	return fmt.Sprintf("way source id %d references node source id %d, never seen", e.WaySourceID, e.NodeSourceID)
}

// UnsupportedElementKindError reports a relation member of a kind the
// writer does not recognize.
type UnsupportedElementKindError struct {
	RelationSourceID int64
	Kind             int
}

func (e *UnsupportedElementKindError) Error() string {
	return fmt.Sprintf("relation source id %d has member of unsupported kind %d", e.RelationSourceID, e.Kind)
}
