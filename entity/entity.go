// Package entity defines the OSM value types delivered to parser
// sinks and accepted by the encoders. All types are plain data;
// nothing is mutated after construction.
package entity

// Info is the optional metadata record shared by all primitives.
// Version is -1 when the file did not carry one. Timestamp is in
// milliseconds since the epoch.
type Info struct {
	Version   int32
	Timestamp int64
	Changeset int64
	UID       int32
	Username  string
	Visible   bool
}

// Node is a single point with tags.
type Node struct {
	ID   int64
	Tags map[string]string
	Info *Info
	Lat  float64
	Lon  float64
}

// Way is an ordered, therefore directed, sequence of node references.
// Duplicate references are allowed.
type Way struct {
	ID    int64
	Tags  map[string]string
	Info  *Info
	Nodes []int64
}

// MemberType identifies what a relation member references.
type MemberType int

const (
	NodeType MemberType = iota
	WayType
	RelationType
)

// RelationMember is a single (ref, role, type) element of a relation.
type RelationMember struct {
	ID   int64
	Role string
	Type MemberType
}

// Relation is an ordered collection of typed members.
type Relation struct {
	ID      int64
	Tags    map[string]string
	Info    *Info
	Members []RelationMember
}

// BoundBox is the file bounding box in degrees.
type BoundBox struct {
	Left   float64
	Right  float64
	Top    float64
	Bottom float64
}

// Header carries the OSMHeader metadata. The replication fields are
// zero when the file does not carry them.
type Header struct {
	RequiredFeatures     []string
	OptionalFeatures     []string
	WritingProgram       string
	Source               string
	ReplicationTimestamp int64
	ReplicationSequence  int64
	ReplicationBaseURL   string
}
