package pbfproto

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// HeaderBBox carries the file bounding box in nanodegrees.
type HeaderBBox struct {
	Left   int64
	Right  int64
	Top    int64
	Bottom int64
}

func (b *HeaderBBox) Unmarshal(data []byte) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return parseErr(n)
		}
		data = data[n:]

		var err error
		var v uint64
		switch num {
		case 1, 2, 3, 4:
			v, n, err = consumeVarint(data, typ)
		default:
			n, err = skipField(data, num, typ)
		}
		if err != nil {
			return fmt.Errorf("HeaderBBox field %d: %w", num, err)
		}
		switch num {
		case 1:
			b.Left = protowire.DecodeZigZag(v)
		case 2:
			b.Right = protowire.DecodeZigZag(v)
		case 3:
			b.Top = protowire.DecodeZigZag(v)
		case 4:
			b.Bottom = protowire.DecodeZigZag(v)
		}
		data = data[n:]
	}
	return nil
}

func (b *HeaderBBox) Marshal() []byte {
	var out []byte
	out = appendZigZagField(out, 1, b.Left)
	out = appendZigZagField(out, 2, b.Right)
	out = appendZigZagField(out, 3, b.Top)
	out = appendZigZagField(out, 4, b.Bottom)
	return out
}

// HeaderBlock is the payload of an OSMHeader blob.
type HeaderBlock struct {
	BBox                 *HeaderBBox
	RequiredFeatures     []string
	OptionalFeatures     []string
	WritingProgram       string
	Source               string
	ReplicationTimestamp int64
	ReplicationSequence  int64
	ReplicationBaseURL   string
}

func (h *HeaderBlock) Unmarshal(data []byte) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return parseErr(n)
		}
		data = data[n:]

		var err error
		switch num {
		case 1:
			var v []byte
			if v, n, err = consumeBytes(data, typ); err == nil {
				h.BBox = new(HeaderBBox)
				err = h.BBox.Unmarshal(v)
			}
		case 4:
			var v []byte
			if v, n, err = consumeBytes(data, typ); err == nil {
				h.RequiredFeatures = append(h.RequiredFeatures, string(v))
			}
		case 5:
			var v []byte
			if v, n, err = consumeBytes(data, typ); err == nil {
				h.OptionalFeatures = append(h.OptionalFeatures, string(v))
			}
		case 16:
			var v []byte
			if v, n, err = consumeBytes(data, typ); err == nil {
				h.WritingProgram = string(v)
			}
		case 17:
			var v []byte
			if v, n, err = consumeBytes(data, typ); err == nil {
				h.Source = string(v)
			}
		case 32:
			var v uint64
			if v, n, err = consumeVarint(data, typ); err == nil {
				h.ReplicationTimestamp = int64(v)
			}
		case 33:
			var v uint64
			if v, n, err = consumeVarint(data, typ); err == nil {
				h.ReplicationSequence = int64(v)
			}
		case 34:
			var v []byte
			if v, n, err = consumeBytes(data, typ); err == nil {
				h.ReplicationBaseURL = string(v)
			}
		default:
			n, err = skipField(data, num, typ)
		}
		if err != nil {
			return fmt.Errorf("HeaderBlock field %d: %w", num, err)
		}
		data = data[n:]
	}
	return nil
}

func (h *HeaderBlock) Marshal() []byte {
	var out []byte
	if h.BBox != nil {
		out = appendBytesField(out, 1, h.BBox.Marshal())
	}
	for _, f := range h.RequiredFeatures {
		out = appendStringField(out, 4, f)
	}
	for _, f := range h.OptionalFeatures {
		out = appendStringField(out, 5, f)
	}
	if h.WritingProgram != "" {
		out = appendStringField(out, 16, h.WritingProgram)
	}
	if h.Source != "" {
		out = appendStringField(out, 17, h.Source)
	}
	if h.ReplicationTimestamp != 0 {
		out = appendVarintField(out, 32, uint64(h.ReplicationTimestamp))
	}
	if h.ReplicationSequence != 0 {
		out = appendVarintField(out, 33, uint64(h.ReplicationSequence))
	}
	if h.ReplicationBaseURL != "" {
		out = appendStringField(out, 34, h.ReplicationBaseURL)
	}
	return out
}

// StringTable holds the per-block byte strings. Index 0 is always the
// empty string.
type StringTable struct {
	S [][]byte
}

func (t *StringTable) Unmarshal(data []byte) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return parseErr(n)
		}
		data = data[n:]

		var err error
		switch num {
		case 1:
			var v []byte
			if v, n, err = consumeBytes(data, typ); err == nil {
				t.S = append(t.S, v)
			}
		default:
			n, err = skipField(data, num, typ)
		}
		if err != nil {
			return fmt.Errorf("StringTable field %d: %w", num, err)
		}
		data = data[n:]
	}
	return nil
}

func (t *StringTable) Marshal() []byte {
	var out []byte
	for _, s := range t.S {
		out = appendBytesField(out, 1, s)
	}
	return out
}

// Info is the non-dense entity metadata record.
type Info struct {
	Version   int32
	Timestamp int64
	Changeset int64
	UID       int32
	UserSID   uint32
	Visible   *bool
}

func (i *Info) Unmarshal(data []byte) error {
	i.Version = -1
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return parseErr(n)
		}
		data = data[n:]

		var err error
		var v uint64
		switch num {
		case 1, 2, 3, 4, 5, 6:
			v, n, err = consumeVarint(data, typ)
		default:
			n, err = skipField(data, num, typ)
		}
		if err != nil {
			return fmt.Errorf("Info field %d: %w", num, err)
		}
		switch num {
		case 1:
			i.Version = int32(v)
		case 2:
			i.Timestamp = int64(v)
		case 3:
			i.Changeset = int64(v)
		case 4:
			i.UID = int32(v)
		case 5:
			i.UserSID = uint32(v)
		case 6:
			visible := v != 0
			i.Visible = &visible
		}
		data = data[n:]
	}
	return nil
}

func (i *Info) Marshal() []byte {
	var out []byte
	if i.Version != -1 {
		out = appendVarintField(out, 1, uint64(int64(i.Version)))
	}
	if i.Timestamp != 0 {
		out = appendVarintField(out, 2, uint64(i.Timestamp))
	}
	if i.Changeset != 0 {
		out = appendVarintField(out, 3, uint64(i.Changeset))
	}
	if i.UID != 0 {
		out = appendVarintField(out, 4, uint64(int64(i.UID)))
	}
	if i.UserSID != 0 {
		out = appendVarintField(out, 5, uint64(i.UserSID))
	}
	if i.Visible != nil {
		u := uint64(0)
		if *i.Visible {
			u = 1
		}
		out = appendVarintField(out, 6, u)
	}
	return out
}

// DenseInfo carries parallel metadata arrays for dense nodes. The
// timestamp, changeset, uid and user_sid arrays are delta coded.
type DenseInfo struct {
	Version   []int32
	Timestamp []int64
	Changeset []int64
	UID       []int32
	UserSID   []int32
	Visible   []bool
}

func (d *DenseInfo) Unmarshal(data []byte) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return parseErr(n)
		}
		data = data[n:]

		var err error
		switch num {
		case 1:
			d.Version, n, err = consumeInt32s(d.Version, data, typ, false)
		case 2:
			d.Timestamp, n, err = consumeInt64s(d.Timestamp, data, typ, true)
		case 3:
			d.Changeset, n, err = consumeInt64s(d.Changeset, data, typ, true)
		case 4:
			d.UID, n, err = consumeInt32s(d.UID, data, typ, true)
		case 5:
			d.UserSID, n, err = consumeInt32s(d.UserSID, data, typ, true)
		case 6:
			d.Visible, n, err = consumeBools(d.Visible, data, typ)
		default:
			n, err = skipField(data, num, typ)
		}
		if err != nil {
			return fmt.Errorf("DenseInfo field %d: %w", num, err)
		}
		data = data[n:]
	}
	return nil
}

func (d *DenseInfo) Marshal() []byte {
	var out []byte
	out = appendPackedInt32(out, 1, d.Version, false)
	out = appendPackedInt64(out, 2, d.Timestamp, true)
	out = appendPackedInt64(out, 3, d.Changeset, true)
	out = appendPackedInt32(out, 4, d.UID, true)
	out = appendPackedInt32(out, 5, d.UserSID, true)
	out = appendPackedBool(out, 6, d.Visible)
	return out
}

// DenseNodes is the compact parallel-array node encoding. The id, lat
// and lon arrays are delta coded; keys_vals is the 0-terminated flat
// tag list.
type DenseNodes struct {
	ID        []int64
	DenseInfo *DenseInfo
	Lat       []int64
	Lon       []int64
	KeysVals  []int32
}

func (d *DenseNodes) Unmarshal(data []byte) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return parseErr(n)
		}
		data = data[n:]

		var err error
		switch num {
		case 1:
			d.ID, n, err = consumeInt64s(d.ID, data, typ, true)
		case 5:
			var v []byte
			if v, n, err = consumeBytes(data, typ); err == nil {
				d.DenseInfo = new(DenseInfo)
				err = d.DenseInfo.Unmarshal(v)
			}
		case 8:
			d.Lat, n, err = consumeInt64s(d.Lat, data, typ, true)
		case 9:
			d.Lon, n, err = consumeInt64s(d.Lon, data, typ, true)
		case 10:
			d.KeysVals, n, err = consumeInt32s(d.KeysVals, data, typ, false)
		default:
			n, err = skipField(data, num, typ)
		}
		if err != nil {
			return fmt.Errorf("DenseNodes field %d: %w", num, err)
		}
		data = data[n:]
	}
	return nil
}

func (d *DenseNodes) Marshal() []byte {
	var out []byte
	out = appendPackedInt64(out, 1, d.ID, true)
	if d.DenseInfo != nil {
		out = appendBytesField(out, 5, d.DenseInfo.Marshal())
	}
	out = appendPackedInt64(out, 8, d.Lat, true)
	out = appendPackedInt64(out, 9, d.Lon, true)
	out = appendPackedInt32(out, 10, d.KeysVals, false)
	return out
}

// Node is the sparse (non-dense) node encoding with absolute
// coordinates.
type Node struct {
	ID   int64
	Keys []uint32
	Vals []uint32
	Info *Info
	Lat  int64
	Lon  int64
}

func (nd *Node) Unmarshal(data []byte) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return parseErr(n)
		}
		data = data[n:]

		var err error
		switch num {
		case 1:
			var v uint64
			if v, n, err = consumeVarint(data, typ); err == nil {
				nd.ID = protowire.DecodeZigZag(v)
			}
		case 2:
			nd.Keys, n, err = consumeUint32s(nd.Keys, data, typ)
		case 3:
			nd.Vals, n, err = consumeUint32s(nd.Vals, data, typ)
		case 4:
			var v []byte
			if v, n, err = consumeBytes(data, typ); err == nil {
				nd.Info = new(Info)
				err = nd.Info.Unmarshal(v)
			}
		case 8:
			var v uint64
			if v, n, err = consumeVarint(data, typ); err == nil {
				nd.Lat = protowire.DecodeZigZag(v)
			}
		case 9:
			var v uint64
			if v, n, err = consumeVarint(data, typ); err == nil {
				nd.Lon = protowire.DecodeZigZag(v)
			}
		default:
			n, err = skipField(data, num, typ)
		}
		if err != nil {
			return fmt.Errorf("Node field %d: %w", num, err)
		}
		data = data[n:]
	}
	return nil
}

func (nd *Node) Marshal() []byte {
	var out []byte
	out = appendZigZagField(out, 1, nd.ID)
	out = appendPackedUint32(out, 2, nd.Keys)
	out = appendPackedUint32(out, 3, nd.Vals)
	if nd.Info != nil {
		out = appendBytesField(out, 4, nd.Info.Marshal())
	}
	out = appendZigZagField(out, 8, nd.Lat)
	out = appendZigZagField(out, 9, nd.Lon)
	return out
}

// Way holds tag indices and delta-coded node references.
type Way struct {
	ID   int64
	Keys []uint32
	Vals []uint32
	Info *Info
	Refs []int64
}

func (w *Way) Unmarshal(data []byte) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return parseErr(n)
		}
		data = data[n:]

		var err error
		switch num {
		case 1:
			var v uint64
			if v, n, err = consumeVarint(data, typ); err == nil {
				w.ID = int64(v)
			}
		case 2:
			w.Keys, n, err = consumeUint32s(w.Keys, data, typ)
		case 3:
			w.Vals, n, err = consumeUint32s(w.Vals, data, typ)
		case 4:
			var v []byte
			if v, n, err = consumeBytes(data, typ); err == nil {
				w.Info = new(Info)
				err = w.Info.Unmarshal(v)
			}
		case 8:
			w.Refs, n, err = consumeInt64s(w.Refs, data, typ, true)
		default:
			n, err = skipField(data, num, typ)
		}
		if err != nil {
			return fmt.Errorf("Way field %d: %w", num, err)
		}
		data = data[n:]
	}
	return nil
}

func (w *Way) Marshal() []byte {
	var out []byte
	out = appendVarintField(out, 1, uint64(w.ID))
	out = appendPackedUint32(out, 2, w.Keys)
	out = appendPackedUint32(out, 3, w.Vals)
	if w.Info != nil {
		out = appendBytesField(out, 4, w.Info.Marshal())
	}
	out = appendPackedInt64(out, 8, w.Refs, true)
	return out
}

// Relation member type codes.
const (
	MemberNode     = 0
	MemberWay      = 1
	MemberRelation = 2
)

// Relation holds tag indices, role indices and delta-coded member
// references.
type Relation struct {
	ID       int64
	Keys     []uint32
	Vals     []uint32
	Info     *Info
	RolesSID []int32
	MemIDs   []int64
	Types    []int32
}

func (r *Relation) Unmarshal(data []byte) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return parseErr(n)
		}
		data = data[n:]

		var err error
		switch num {
		case 1:
			var v uint64
			if v, n, err = consumeVarint(data, typ); err == nil {
				r.ID = int64(v)
			}
		case 2:
			r.Keys, n, err = consumeUint32s(r.Keys, data, typ)
		case 3:
			r.Vals, n, err = consumeUint32s(r.Vals, data, typ)
		case 4:
			var v []byte
			if v, n, err = consumeBytes(data, typ); err == nil {
				r.Info = new(Info)
				err = r.Info.Unmarshal(v)
			}
		case 8:
			r.RolesSID, n, err = consumeInt32s(r.RolesSID, data, typ, false)
		case 9:
			r.MemIDs, n, err = consumeInt64s(r.MemIDs, data, typ, true)
		case 10:
			r.Types, n, err = consumeInt32s(r.Types, data, typ, false)
		default:
			n, err = skipField(data, num, typ)
		}
		if err != nil {
			return fmt.Errorf("Relation field %d: %w", num, err)
		}
		data = data[n:]
	}
	return nil
}

func (r *Relation) Marshal() []byte {
	var out []byte
	out = appendVarintField(out, 1, uint64(r.ID))
	out = appendPackedUint32(out, 2, r.Keys)
	out = appendPackedUint32(out, 3, r.Vals)
	if r.Info != nil {
		out = appendBytesField(out, 4, r.Info.Marshal())
	}
	out = appendPackedInt32(out, 8, r.RolesSID, false)
	out = appendPackedInt64(out, 9, r.MemIDs, true)
	out = appendPackedInt32(out, 10, r.Types, false)
	return out
}

// ChangeSet carries only the changeset id.
type ChangeSet struct {
	ID int64
}

func (c *ChangeSet) Unmarshal(data []byte) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return parseErr(n)
		}
		data = data[n:]

		var err error
		switch num {
		case 1:
			var v uint64
			if v, n, err = consumeVarint(data, typ); err == nil {
				c.ID = int64(v)
			}
		default:
			n, err = skipField(data, num, typ)
		}
		if err != nil {
			return fmt.Errorf("ChangeSet field %d: %w", num, err)
		}
		data = data[n:]
	}
	return nil
}

func (c *ChangeSet) Marshal() []byte {
	var out []byte
	out = appendVarintField(out, 1, uint64(c.ID))
	return out
}

// PrimitiveGroup contains exactly one kind of entity.
type PrimitiveGroup struct {
	Nodes      []*Node
	Dense      *DenseNodes
	Ways       []*Way
	Relations  []*Relation
	Changesets []*ChangeSet
}

func (g *PrimitiveGroup) Unmarshal(data []byte) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return parseErr(n)
		}
		data = data[n:]

		var err error
		var v []byte
		switch num {
		case 1:
			if v, n, err = consumeBytes(data, typ); err == nil {
				nd := new(Node)
				if err = nd.Unmarshal(v); err == nil {
					g.Nodes = append(g.Nodes, nd)
				}
			}
		case 2:
			if v, n, err = consumeBytes(data, typ); err == nil {
				g.Dense = new(DenseNodes)
				err = g.Dense.Unmarshal(v)
			}
		case 3:
			if v, n, err = consumeBytes(data, typ); err == nil {
				w := new(Way)
				if err = w.Unmarshal(v); err == nil {
					g.Ways = append(g.Ways, w)
				}
			}
		case 4:
			if v, n, err = consumeBytes(data, typ); err == nil {
				r := new(Relation)
				if err = r.Unmarshal(v); err == nil {
					g.Relations = append(g.Relations, r)
				}
			}
		case 5:
			if v, n, err = consumeBytes(data, typ); err == nil {
				c := new(ChangeSet)
				if err = c.Unmarshal(v); err == nil {
					g.Changesets = append(g.Changesets, c)
				}
			}
		default:
			n, err = skipField(data, num, typ)
		}
		if err != nil {
			return fmt.Errorf("PrimitiveGroup field %d: %w", num, err)
		}
		data = data[n:]
	}
	return nil
}

func (g *PrimitiveGroup) Marshal() []byte {
	var out []byte
	for _, nd := range g.Nodes {
		out = appendBytesField(out, 1, nd.Marshal())
	}
	if g.Dense != nil {
		out = appendBytesField(out, 2, g.Dense.Marshal())
	}
	for _, w := range g.Ways {
		out = appendBytesField(out, 3, w.Marshal())
	}
	for _, r := range g.Relations {
		out = appendBytesField(out, 4, r.Marshal())
	}
	for _, c := range g.Changesets {
		out = appendBytesField(out, 5, c.Marshal())
	}
	return out
}

// Default scaling parameters per osmformat.proto.
const (
	DefaultGranularity     = 100
	DefaultDateGranularity = 1000
)

// PrimitiveBlock is the unit of parallel decoding: a string table,
// one or more groups and the coordinate scaling parameters.
type PrimitiveBlock struct {
	StringTable     *StringTable
	Groups          []*PrimitiveGroup
	Granularity     int32
	LatOffset       int64
	LonOffset       int64
	DateGranularity int32
}

func (p *PrimitiveBlock) Unmarshal(data []byte) error {
	p.Granularity = DefaultGranularity
	p.DateGranularity = DefaultDateGranularity
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return parseErr(n)
		}
		data = data[n:]

		var err error
		switch num {
		case 1:
			var v []byte
			if v, n, err = consumeBytes(data, typ); err == nil {
				p.StringTable = new(StringTable)
				err = p.StringTable.Unmarshal(v)
			}
		case 2:
			var v []byte
			if v, n, err = consumeBytes(data, typ); err == nil {
				g := new(PrimitiveGroup)
				if err = g.Unmarshal(v); err == nil {
					p.Groups = append(p.Groups, g)
				}
			}
		case 17:
			var v uint64
			if v, n, err = consumeVarint(data, typ); err == nil {
				p.Granularity = int32(v)
			}
		case 18:
			var v uint64
			if v, n, err = consumeVarint(data, typ); err == nil {
				p.DateGranularity = int32(v)
			}
		case 19:
			var v uint64
			if v, n, err = consumeVarint(data, typ); err == nil {
				p.LatOffset = int64(v)
			}
		case 20:
			var v uint64
			if v, n, err = consumeVarint(data, typ); err == nil {
				p.LonOffset = int64(v)
			}
		default:
			n, err = skipField(data, num, typ)
		}
		if err != nil {
			return fmt.Errorf("PrimitiveBlock field %d: %w", num, err)
		}
		data = data[n:]
	}
	return nil
}

func (p *PrimitiveBlock) Marshal() []byte {
	var out []byte
	st := p.StringTable
	if st == nil {
		st = &StringTable{}
	}
	out = appendBytesField(out, 1, st.Marshal())
	for _, g := range p.Groups {
		out = appendBytesField(out, 2, g.Marshal())
	}
	if p.Granularity != 0 && p.Granularity != DefaultGranularity {
		out = appendVarintField(out, 17, uint64(uint32(p.Granularity)))
	}
	if p.DateGranularity != 0 && p.DateGranularity != DefaultDateGranularity {
		out = appendVarintField(out, 18, uint64(uint32(p.DateGranularity)))
	}
	if p.LatOffset != 0 {
		out = appendVarintField(out, 19, uint64(p.LatOffset))
	}
	if p.LonOffset != 0 {
		out = appendVarintField(out, 20, uint64(p.LonOffset))
	}
	return out
}
