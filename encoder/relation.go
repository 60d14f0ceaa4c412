package encoder

import (
	"github.com/wegman-software/parallelpbf/entity"
	"github.com/wegman-software/parallelpbf/internal/pbfproto"
)

// RelationEncoder accumulates relations into a group with interned
// roles and delta-coded member references.
type RelationEncoder struct {
	st        *stringTable
	relations []*pbfproto.Relation
	size      int
	consumed  bool
}

// NewRelationEncoder returns an empty relation encoder.
func NewRelationEncoder() *RelationEncoder {
	return &RelationEncoder{st: newStringTable()}
}

// Add appends a relation to the block under construction.
func (e *RelationEncoder) Add(r *entity.Relation) error {
	if e.consumed {
		return ErrConsumed
	}

	pr := &pbfproto.Relation{ID: r.ID, Info: protoInfo(r.Info, e.st)}
	for k, v := range r.Tags {
		pr.Keys = append(pr.Keys, uint32(e.st.id(k)))
		pr.Vals = append(pr.Vals, uint32(e.st.id(v)))
		e.size += 4
	}
	var prev int64
	for _, m := range r.Members {
		delta := m.ID - prev
		prev = m.ID
		pr.RolesSID = append(pr.RolesSID, e.st.id(m.Role))
		pr.MemIDs = append(pr.MemIDs, delta)
		var typ int32
		switch m.Type {
		case entity.WayType:
			typ = pbfproto.MemberWay
		case entity.RelationType:
			typ = pbfproto.MemberRelation
		}
		pr.Types = append(pr.Types, typ)
		e.size += varintSize(delta) + 4
	}
	e.relations = append(e.relations, pr)
	e.size += 12
	return nil
}

// Len returns the number of accumulated relations.
func (e *RelationEncoder) Len() int {
	return len(e.relations)
}

// EstimatedSize approximates the serialized block payload size.
func (e *RelationEncoder) EstimatedSize() int {
	return e.size + e.st.bytes
}

// Write finalizes the block and returns the PrimitiveBlock payload.
// The encoder is consumed; further calls fail with ErrConsumed.
func (e *RelationEncoder) Write() ([]byte, error) {
	if e.consumed {
		return nil, ErrConsumed
	}
	e.consumed = true
	return marshalBlock(e.st, &pbfproto.PrimitiveGroup{Relations: e.relations}), nil
}
