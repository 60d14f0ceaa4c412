package encoder

import (
	"github.com/wegman-software/parallelpbf/entity"
	"github.com/wegman-software/parallelpbf/internal/pbfproto"
)

// NodeEncoder accumulates nodes into a dense group. Coordinates are
// quantized to the default granularity; ids, coordinates and metadata
// are delta coded at Write time.
type NodeEncoder struct {
	st *stringTable

	ids   []int64
	lats  []int64
	lons  []int64
	infos []*entity.Info
	kv    []int32

	anyTags bool
	anyInfo bool

	prevID, prevLat, prevLon int64
	size                     int
	consumed                 bool
}

// NewNodeEncoder returns an empty dense node encoder.
func NewNodeEncoder() *NodeEncoder {
	return &NodeEncoder{st: newStringTable()}
}

// Add appends a node to the block under construction.
func (e *NodeEncoder) Add(n *entity.Node) error {
	if e.consumed {
		return ErrConsumed
	}

	lat := mapCoord(n.Lat)
	lon := mapCoord(n.Lon)
	e.ids = append(e.ids, n.ID)
	e.lats = append(e.lats, lat)
	e.lons = append(e.lons, lon)
	e.size += varintSize(n.ID-e.prevID) + varintSize(lat-e.prevLat) + varintSize(lon-e.prevLon)
	e.prevID, e.prevLat, e.prevLon = n.ID, lat, lon

	for k, v := range n.Tags {
		e.kv = append(e.kv, e.st.id(k), e.st.id(v))
		e.anyTags = true
		e.size += 4
	}
	e.kv = append(e.kv, 0)
	e.size++

	e.infos = append(e.infos, n.Info)
	if n.Info != nil {
		e.anyInfo = true
		if n.Info.Username != "" {
			e.st.id(n.Info.Username)
		}
		e.size += 16
	}
	return nil
}

// Len returns the number of accumulated nodes.
func (e *NodeEncoder) Len() int {
	return len(e.ids)
}

// EstimatedSize approximates the serialized block payload size.
func (e *NodeEncoder) EstimatedSize() int {
	return e.size + e.st.bytes
}

// Write finalizes the block and returns the PrimitiveBlock payload.
// The encoder is consumed; further calls fail with ErrConsumed.
func (e *NodeEncoder) Write() ([]byte, error) {
	if e.consumed {
		return nil, ErrConsumed
	}
	e.consumed = true

	n := len(e.ids)
	dense := &pbfproto.DenseNodes{
		ID:  deltas(e.ids),
		Lat: deltas(e.lats),
		Lon: deltas(e.lons),
	}
	if e.anyTags {
		dense.KeysVals = e.kv
	}
	if e.anyInfo {
		dense.DenseInfo = e.denseInfo(n)
	}
	return marshalBlock(e.st, &pbfproto.PrimitiveGroup{Dense: dense}), nil
}

func (e *NodeEncoder) denseInfo(n int) *pbfproto.DenseInfo {
	di := &pbfproto.DenseInfo{
		Version:   make([]int32, n),
		Timestamp: make([]int64, n),
		Changeset: make([]int64, n),
		UID:       make([]int32, n),
		UserSID:   make([]int32, n),
	}
	anyInvisible := false
	var prevTS, prevCS int64
	var prevUID, prevSID int32
	for i, in := range e.infos {
		var ts, cs int64
		var uid, sid int32
		if in != nil {
			di.Version[i] = in.Version
			ts = in.Timestamp / pbfproto.DefaultDateGranularity
			cs = in.Changeset
			uid = in.UID
			if in.Username != "" {
				sid = e.st.id(in.Username)
			}
			if !in.Visible {
				anyInvisible = true
			}
		}
		di.Timestamp[i] = ts - prevTS
		di.Changeset[i] = cs - prevCS
		di.UID[i] = uid - prevUID
		di.UserSID[i] = sid - prevSID
		prevTS, prevCS, prevUID, prevSID = ts, cs, uid, sid
	}
	if anyInvisible {
		di.Visible = make([]bool, n)
		for i, in := range e.infos {
			di.Visible[i] = in == nil || in.Visible
		}
	}
	return di
}

// deltas rewrites absolute values as consecutive differences.
func deltas(vals []int64) []int64 {
	out := make([]int64, len(vals))
	var prev int64
	for i, v := range vals {
		out[i] = v - prev
		prev = v
	}
	return out
}
