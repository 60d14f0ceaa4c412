package block

import (
	"fmt"

	"github.com/wegman-software/parallelpbf/entity"
	"github.com/wegman-software/parallelpbf/internal/pbfproto"
)

// coordDegree converts the fixed-point coordinate unit to degrees.
const coordDegree = 1e-9

// Handlers receives the entities decoded from a primitive block. A nil
// handler makes the decoder skip the matching groups entirely, tag
// resolution included.
type Handlers struct {
	Node      func(*entity.Node)
	Way       func(*entity.Way)
	Relation  func(*entity.Relation)
	Changeset func(id int64)
}

// Decode parses an OSMData payload and delivers its entities to the
// handlers in file order.
func Decode(payload []byte, h Handlers) error {
	var pb pbfproto.PrimitiveBlock
	if err := pb.Unmarshal(payload); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedBlock, err)
	}

	d := &decoder{
		strings:         NewStringTable(pb.StringTable),
		granularity:     int64(pb.Granularity),
		latOffset:       pb.LatOffset,
		lonOffset:       pb.LonOffset,
		dateGranularity: int64(pb.DateGranularity),
	}

	for _, g := range pb.Groups {
		if err := d.decodeGroup(g, h); err != nil {
			return err
		}
	}
	return nil
}

type decoder struct {
	strings         *StringTable
	granularity     int64
	latOffset       int64
	lonOffset       int64
	dateGranularity int64
}

func (d *decoder) decodeGroup(g *pbfproto.PrimitiveGroup, h Handlers) error {
	if h.Node != nil {
		if g.Dense != nil {
			if err := d.decodeDense(g.Dense, h.Node); err != nil {
				return err
			}
		}
		for _, nd := range g.Nodes {
			if err := d.decodeNode(nd, h.Node); err != nil {
				return err
			}
		}
	}
	if h.Way != nil {
		for _, w := range g.Ways {
			if err := d.decodeWay(w, h.Way); err != nil {
				return err
			}
		}
	}
	if h.Relation != nil {
		for _, r := range g.Relations {
			if err := d.decodeRelation(r, h.Relation); err != nil {
				return err
			}
		}
	}
	if h.Changeset != nil {
		for _, c := range g.Changesets {
			h.Changeset(c.ID)
		}
	}
	return nil
}

func (d *decoder) coord(offset, raw int64) float64 {
	return float64(offset+d.granularity*raw) * coordDegree
}

func (d *decoder) decodeDense(dn *pbfproto.DenseNodes, emit func(*entity.Node)) error {
	n := len(dn.ID)
	if len(dn.Lat) != n || len(dn.Lon) != n {
		return fmt.Errorf("%w: dense arrays id=%d lat=%d lon=%d", ErrMalformedBlock, n, len(dn.Lat), len(dn.Lon))
	}

	info, err := newDenseInfoReader(dn.DenseInfo, n, d)
	if err != nil {
		return err
	}

	var id, lat, lon int64
	kv := dn.KeysVals
	for i := 0; i < n; i++ {
		id += dn.ID[i]
		lat += dn.Lat[i]
		lon += dn.Lon[i]

		var tags map[string]string
		if len(kv) > 0 {
			tags, kv, err = d.denseTags(kv)
			if err != nil {
				return err
			}
		}

		node := &entity.Node{
			ID:   id,
			Tags: tags,
			Lat:  d.coord(d.latOffset, lat),
			Lon:  d.coord(d.lonOffset, lon),
		}
		if info != nil {
			if node.Info, err = info.next(); err != nil {
				return err
			}
		}
		emit(node)
	}
	return nil
}

// denseTags consumes one node's tags from the flat 0-terminated
// keys_vals list and returns the remainder.
func (d *decoder) denseTags(kv []int32) (map[string]string, []int32, error) {
	var tags map[string]string
	for len(kv) > 0 && kv[0] != 0 {
		if len(kv) < 2 {
			return nil, nil, fmt.Errorf("%w: keys_vals key %d without value", ErrMalformedBlock, kv[0])
		}
		k, err := d.strings.Get(int(kv[0]))
		if err != nil {
			return nil, nil, err
		}
		v, err := d.strings.Get(int(kv[1]))
		if err != nil {
			return nil, nil, err
		}
		if tags == nil {
			tags = make(map[string]string)
		}
		tags[k] = v
		kv = kv[2:]
	}
	if len(kv) == 0 {
		return nil, nil, fmt.Errorf("%w: keys_vals ends without terminator", ErrMalformedBlock)
	}
	return tags, kv[1:], nil
}

// denseInfoReader walks the parallel DenseInfo arrays, carrying the
// running sums of the delta-coded ones. Arrays may be empty when the
// writer omitted that attribute for the whole block.
type denseInfoReader struct {
	d   *decoder
	di  *pbfproto.DenseInfo
	i   int
	n   int
	ts  int64
	cs  int64
	uid int32
	sid int32
}

func newDenseInfoReader(di *pbfproto.DenseInfo, n int, d *decoder) (*denseInfoReader, error) {
	if di == nil {
		return nil, nil
	}
	for _, f := range []struct {
		name string
		len  int
	}{
		{"version", len(di.Version)},
		{"timestamp", len(di.Timestamp)},
		{"changeset", len(di.Changeset)},
		{"uid", len(di.UID)},
		{"user_sid", len(di.UserSID)},
		{"visible", len(di.Visible)},
	} {
		if f.len != 0 && f.len != n {
			return nil, fmt.Errorf("%w: denseinfo %s has %d entries for %d nodes", ErrMalformedBlock, f.name, f.len, n)
		}
	}
	return &denseInfoReader{d: d, di: di, n: n}, nil
}

func (r *denseInfoReader) next() (*entity.Info, error) {
	info := &entity.Info{Version: -1, Visible: true}
	if len(r.di.Version) > 0 {
		info.Version = r.di.Version[r.i]
	}
	if len(r.di.Timestamp) > 0 {
		r.ts += r.di.Timestamp[r.i]
		info.Timestamp = r.ts * r.d.dateGranularity
	}
	if len(r.di.Changeset) > 0 {
		r.cs += r.di.Changeset[r.i]
		info.Changeset = r.cs
	}
	if len(r.di.UID) > 0 {
		r.uid += r.di.UID[r.i]
		info.UID = r.uid
	}
	if len(r.di.UserSID) > 0 {
		r.sid += r.di.UserSID[r.i]
		name, err := r.d.strings.Get(int(r.sid))
		if err != nil {
			return nil, err
		}
		info.Username = name
	}
	if len(r.di.Visible) > 0 {
		info.Visible = r.di.Visible[r.i]
	}
	r.i++
	return info, nil
}

func (d *decoder) decodeNode(nd *pbfproto.Node, emit func(*entity.Node)) error {
	tags, err := d.tags(nd.Keys, nd.Vals)
	if err != nil {
		return err
	}
	info, err := d.convertInfo(nd.Info)
	if err != nil {
		return err
	}
	emit(&entity.Node{
		ID:   nd.ID,
		Tags: tags,
		Info: info,
		Lat:  d.coord(d.latOffset, nd.Lat),
		Lon:  d.coord(d.lonOffset, nd.Lon),
	})
	return nil
}

func (d *decoder) decodeWay(w *pbfproto.Way, emit func(*entity.Way)) error {
	tags, err := d.tags(w.Keys, w.Vals)
	if err != nil {
		return err
	}
	info, err := d.convertInfo(w.Info)
	if err != nil {
		return err
	}

	var refs []int64
	if len(w.Refs) > 0 {
		refs = make([]int64, len(w.Refs))
		var ref int64
		for i, delta := range w.Refs {
			ref += delta
			refs[i] = ref
		}
	}
	emit(&entity.Way{ID: w.ID, Tags: tags, Info: info, Nodes: refs})
	return nil
}

func (d *decoder) decodeRelation(r *pbfproto.Relation, emit func(*entity.Relation)) error {
	tags, err := d.tags(r.Keys, r.Vals)
	if err != nil {
		return err
	}
	info, err := d.convertInfo(r.Info)
	if err != nil {
		return err
	}

	n := len(r.MemIDs)
	if len(r.RolesSID) != n || len(r.Types) != n {
		return fmt.Errorf("%w: relation %d member arrays roles=%d memids=%d types=%d",
			ErrMalformedBlock, r.ID, len(r.RolesSID), n, len(r.Types))
	}

	var members []entity.RelationMember
	if n > 0 {
		members = make([]entity.RelationMember, n)
		var ref int64
		for i := 0; i < n; i++ {
			ref += r.MemIDs[i]
			role, err := d.strings.Get(int(r.RolesSID[i]))
			if err != nil {
				return err
			}
			var typ entity.MemberType
			switch r.Types[i] {
			case pbfproto.MemberNode:
				typ = entity.NodeType
			case pbfproto.MemberWay:
				typ = entity.WayType
			case pbfproto.MemberRelation:
				typ = entity.RelationType
			default:
				return fmt.Errorf("%w: relation %d member type %d", ErrMalformedBlock, r.ID, r.Types[i])
			}
			members[i] = entity.RelationMember{ID: ref, Role: role, Type: typ}
		}
	}
	emit(&entity.Relation{ID: r.ID, Tags: tags, Info: info, Members: members})
	return nil
}

// tags resolves parallel key and value index arrays.
func (d *decoder) tags(keys, vals []uint32) (map[string]string, error) {
	if len(keys) != len(vals) {
		return nil, fmt.Errorf("%w: %d keys for %d values", ErrMalformedBlock, len(keys), len(vals))
	}
	if len(keys) == 0 {
		return nil, nil
	}
	tags := make(map[string]string, len(keys))
	for i := range keys {
		k, err := d.strings.Get(int(keys[i]))
		if err != nil {
			return nil, err
		}
		v, err := d.strings.Get(int(vals[i]))
		if err != nil {
			return nil, err
		}
		tags[k] = v
	}
	return tags, nil
}

func (d *decoder) convertInfo(in *pbfproto.Info) (*entity.Info, error) {
	if in == nil {
		return nil, nil
	}
	info := &entity.Info{
		Version:   in.Version,
		Timestamp: in.Timestamp * d.dateGranularity,
		Changeset: in.Changeset,
		UID:       in.UID,
		Visible:   true,
	}
	if in.UserSID != 0 {
		name, err := d.strings.Get(int(in.UserSID))
		if err != nil {
			return nil, err
		}
		info.Username = name
	}
	if in.Visible != nil {
		info.Visible = *in.Visible
	}
	return info, nil
}
