package encoder

import (
	"github.com/wegman-software/parallelpbf/entity"
	"github.com/wegman-software/parallelpbf/internal/pbfproto"
)

// WayEncoder accumulates ways into a group with delta-coded node
// references.
type WayEncoder struct {
	st       *stringTable
	ways     []*pbfproto.Way
	size     int
	consumed bool
}

// NewWayEncoder returns an empty way encoder.
func NewWayEncoder() *WayEncoder {
	return &WayEncoder{st: newStringTable()}
}

// Add appends a way to the block under construction.
func (e *WayEncoder) Add(w *entity.Way) error {
	if e.consumed {
		return ErrConsumed
	}

	pw := &pbfproto.Way{ID: w.ID, Info: protoInfo(w.Info, e.st)}
	for k, v := range w.Tags {
		pw.Keys = append(pw.Keys, uint32(e.st.id(k)))
		pw.Vals = append(pw.Vals, uint32(e.st.id(v)))
		e.size += 4
	}
	if len(w.Nodes) > 0 {
		pw.Refs = deltas(w.Nodes)
		for _, d := range pw.Refs {
			e.size += varintSize(d)
		}
	}
	e.ways = append(e.ways, pw)
	e.size += 12
	return nil
}

// Len returns the number of accumulated ways.
func (e *WayEncoder) Len() int {
	return len(e.ways)
}

// EstimatedSize approximates the serialized block payload size.
func (e *WayEncoder) EstimatedSize() int {
	return e.size + e.st.bytes
}

// Write finalizes the block and returns the PrimitiveBlock payload.
// The encoder is consumed; further calls fail with ErrConsumed.
func (e *WayEncoder) Write() ([]byte, error) {
	if e.consumed {
		return nil, ErrConsumed
	}
	e.consumed = true
	return marshalBlock(e.st, &pbfproto.PrimitiveGroup{Ways: e.ways}), nil
}
