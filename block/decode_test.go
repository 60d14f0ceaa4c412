package block

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wegman-software/parallelpbf/entity"
	"github.com/wegman-software/parallelpbf/internal/pbfproto"
)

func table(strings ...string) *pbfproto.StringTable {
	st := &pbfproto.StringTable{S: [][]byte{nil}}
	for _, s := range strings {
		st.S = append(st.S, []byte(s))
	}
	return st
}

func payload(t *testing.T, pb *pbfproto.PrimitiveBlock) []byte {
	t.Helper()
	if pb.Granularity == 0 {
		pb.Granularity = pbfproto.DefaultGranularity
	}
	if pb.DateGranularity == 0 {
		pb.DateGranularity = pbfproto.DefaultDateGranularity
	}
	return pb.Marshal()
}

func TestDecodeDenseNodes(t *testing.T) {
	// Deltas decode to ids 1,2,4 and lats 10,20,25.
	pb := &pbfproto.PrimitiveBlock{
		StringTable: table("highway", "primary"),
		Groups: []*pbfproto.PrimitiveGroup{{
			Dense: &pbfproto.DenseNodes{
				ID:       []int64{1, 1, 2},
				Lat:      []int64{10, 10, 5},
				Lon:      []int64{-5, 2, 1},
				KeysVals: []int32{1, 2, 0, 0, 0},
			},
		}},
	}

	var nodes []*entity.Node
	err := Decode(payload(t, pb), Handlers{Node: func(n *entity.Node) { nodes = append(nodes, n) }})
	require.NoError(t, err)
	require.Len(t, nodes, 3)

	assert.Equal(t, int64(1), nodes[0].ID)
	assert.Equal(t, int64(2), nodes[1].ID)
	assert.Equal(t, int64(4), nodes[2].ID)

	assert.InDelta(t, 10e-7, nodes[0].Lat, 1e-12)
	assert.InDelta(t, 20e-7, nodes[1].Lat, 1e-12)
	assert.InDelta(t, 25e-7, nodes[2].Lat, 1e-12)
	assert.InDelta(t, -5e-7, nodes[0].Lon, 1e-12)

	assert.Equal(t, map[string]string{"highway": "primary"}, nodes[0].Tags)
	assert.Nil(t, nodes[1].Tags)
	assert.Nil(t, nodes[2].Tags)
}

func TestDecodeDenseNodesOffsetsAndGranularity(t *testing.T) {
	pb := &pbfproto.PrimitiveBlock{
		StringTable: table(),
		Granularity: 1000,
		LatOffset:   100,
		LonOffset:   200,
		Groups: []*pbfproto.PrimitiveGroup{{
			Dense: &pbfproto.DenseNodes{
				ID:  []int64{7},
				Lat: []int64{3},
				Lon: []int64{4},
			},
		}},
	}

	var got *entity.Node
	err := Decode(payload(t, pb), Handlers{Node: func(n *entity.Node) { got = n }})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.InDelta(t, (100+1000*3)*1e-9, got.Lat, 1e-15)
	assert.InDelta(t, (200+1000*4)*1e-9, got.Lon, 1e-15)
}

func TestDecodeDenseInfo(t *testing.T) {
	pb := &pbfproto.PrimitiveBlock{
		StringTable: table("alice", "bob"),
		Groups: []*pbfproto.PrimitiveGroup{{
			Dense: &pbfproto.DenseNodes{
				ID:  []int64{1, 1},
				Lat: []int64{0, 0},
				Lon: []int64{0, 0},
				DenseInfo: &pbfproto.DenseInfo{
					Version:   []int32{2, 3},
					Timestamp: []int64{1000, 10},
					Changeset: []int64{50, 1},
					UID:       []int32{7, -2},
					UserSID:   []int32{1, 1},
					Visible:   []bool{true, false},
				},
			},
		}},
	}

	var nodes []*entity.Node
	err := Decode(payload(t, pb), Handlers{Node: func(n *entity.Node) { nodes = append(nodes, n) }})
	require.NoError(t, err)
	require.Len(t, nodes, 2)

	first, second := nodes[0].Info, nodes[1].Info
	require.NotNil(t, first)
	require.NotNil(t, second)

	assert.Equal(t, int32(2), first.Version)
	assert.Equal(t, int64(1000*1000), first.Timestamp)
	assert.Equal(t, int64(50), first.Changeset)
	assert.Equal(t, int32(7), first.UID)
	assert.Equal(t, "alice", first.Username)
	assert.True(t, first.Visible)

	assert.Equal(t, int32(3), second.Version)
	assert.Equal(t, int64(1010*1000), second.Timestamp)
	assert.Equal(t, int64(51), second.Changeset)
	assert.Equal(t, int32(5), second.UID)
	assert.Equal(t, "bob", second.Username)
	assert.False(t, second.Visible)
}

func TestDecodeDenseLengthMismatch(t *testing.T) {
	pb := &pbfproto.PrimitiveBlock{
		StringTable: table(),
		Groups: []*pbfproto.PrimitiveGroup{{
			Dense: &pbfproto.DenseNodes{
				ID:  []int64{1, 2},
				Lat: []int64{1},
				Lon: []int64{1, 2},
			},
		}},
	}
	err := Decode(payload(t, pb), Handlers{Node: func(*entity.Node) {}})
	assert.ErrorIs(t, err, ErrMalformedBlock)
}

func TestDecodeDenseMissingTerminator(t *testing.T) {
	pb := &pbfproto.PrimitiveBlock{
		StringTable: table("k", "v"),
		Groups: []*pbfproto.PrimitiveGroup{{
			Dense: &pbfproto.DenseNodes{
				ID:       []int64{1},
				Lat:      []int64{0},
				Lon:      []int64{0},
				KeysVals: []int32{1, 2},
			},
		}},
	}
	err := Decode(payload(t, pb), Handlers{Node: func(*entity.Node) {}})
	assert.ErrorIs(t, err, ErrMalformedBlock)
}

func TestDecodeSparseNode(t *testing.T) {
	pb := &pbfproto.PrimitiveBlock{
		StringTable: table("amenity", "cafe"),
		Groups: []*pbfproto.PrimitiveGroup{{
			Nodes: []*pbfproto.Node{{
				ID:   12,
				Keys: []uint32{1},
				Vals: []uint32{2},
				Lat:  500,
				Lon:  -500,
			}},
		}},
	}

	var got *entity.Node
	err := Decode(payload(t, pb), Handlers{Node: func(n *entity.Node) { got = n }})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(12), got.ID)
	assert.Equal(t, map[string]string{"amenity": "cafe"}, got.Tags)
	assert.InDelta(t, 500e-7, got.Lat, 1e-12)
	assert.InDelta(t, -500e-7, got.Lon, 1e-12)
	assert.Nil(t, got.Info)
}

func TestDecodeWay(t *testing.T) {
	pb := &pbfproto.PrimitiveBlock{
		StringTable: table("highway", "residential"),
		Groups: []*pbfproto.PrimitiveGroup{{
			Ways: []*pbfproto.Way{{
				ID:   44,
				Keys: []uint32{1},
				Vals: []uint32{2},
				Refs: []int64{100, 1, 1, -2},
			}},
		}},
	}

	var got *entity.Way
	err := Decode(payload(t, pb), Handlers{Way: func(w *entity.Way) { got = w }})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(44), got.ID)
	assert.Equal(t, []int64{100, 101, 102, 100}, got.Nodes)
	assert.Equal(t, map[string]string{"highway": "residential"}, got.Tags)
}

func TestDecodeRelation(t *testing.T) {
	pb := &pbfproto.PrimitiveBlock{
		StringTable: table("outer", "inner"),
		Groups: []*pbfproto.PrimitiveGroup{{
			Relations: []*pbfproto.Relation{{
				ID:       9,
				RolesSID: []int32{1, 2, 0},
				MemIDs:   []int64{10, 5, -3},
				Types:    []int32{pbfproto.MemberWay, pbfproto.MemberNode, pbfproto.MemberRelation},
			}},
		}},
	}

	var got *entity.Relation
	err := Decode(payload(t, pb), Handlers{Relation: func(r *entity.Relation) { got = r }})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, []entity.RelationMember{
		{ID: 10, Role: "outer", Type: entity.WayType},
		{ID: 15, Role: "inner", Type: entity.NodeType},
		{ID: 12, Role: "", Type: entity.RelationType},
	}, got.Members)
}

func TestDecodeRelationBadMemberType(t *testing.T) {
	pb := &pbfproto.PrimitiveBlock{
		StringTable: table(),
		Groups: []*pbfproto.PrimitiveGroup{{
			Relations: []*pbfproto.Relation{{
				ID:       1,
				RolesSID: []int32{0},
				MemIDs:   []int64{1},
				Types:    []int32{3},
			}},
		}},
	}
	err := Decode(payload(t, pb), Handlers{Relation: func(*entity.Relation) {}})
	assert.ErrorIs(t, err, ErrMalformedBlock)
}

func TestDecodeChangeset(t *testing.T) {
	pb := &pbfproto.PrimitiveBlock{
		StringTable: table(),
		Groups: []*pbfproto.PrimitiveGroup{{
			Changesets: []*pbfproto.ChangeSet{{ID: 777}},
		}},
	}
	var ids []int64
	err := Decode(payload(t, pb), Handlers{Changeset: func(id int64) { ids = append(ids, id) }})
	require.NoError(t, err)
	assert.Equal(t, []int64{777}, ids)
}

func TestDecodeStringIndexOutOfRange(t *testing.T) {
	pb := &pbfproto.PrimitiveBlock{
		StringTable: table("only"),
		Groups: []*pbfproto.PrimitiveGroup{{
			Nodes: []*pbfproto.Node{{ID: 1, Keys: []uint32{9}, Vals: []uint32{9}}},
		}},
	}
	err := Decode(payload(t, pb), Handlers{Node: func(*entity.Node) {}})
	assert.ErrorIs(t, err, ErrMalformedBlock)
}

func TestDecodeSkipsUnhandledKinds(t *testing.T) {
	pb := &pbfproto.PrimitiveBlock{
		// Way references string index 5; decoding it would fail, but
		// without a way handler the group is never touched.
		StringTable: table(),
		Groups: []*pbfproto.PrimitiveGroup{{
			Ways: []*pbfproto.Way{{ID: 1, Keys: []uint32{5}, Vals: []uint32{5}}},
			Dense: &pbfproto.DenseNodes{
				ID:  []int64{1},
				Lat: []int64{0},
				Lon: []int64{0},
			},
		}},
	}
	var count int
	err := Decode(payload(t, pb), Handlers{Node: func(*entity.Node) { count++ }})
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestDecodeEmptyPayload(t *testing.T) {
	err := Decode(nil, Handlers{Node: func(*entity.Node) { t.Error("unexpected node") }})
	assert.NoError(t, err)
}

func TestDecodeGarbage(t *testing.T) {
	err := Decode([]byte{0xff, 0xff, 0xff}, Handlers{})
	assert.ErrorIs(t, err, ErrMalformedBlock)
}

func TestDecodeHeader(t *testing.T) {
	hb := pbfproto.HeaderBlock{
		BBox:                 &pbfproto.HeaderBBox{Left: -10000000000, Right: 10000000000, Top: 5000000000, Bottom: -5000000000},
		RequiredFeatures:     []string{"OsmSchema-V0.6"},
		WritingProgram:       "test",
		ReplicationTimestamp: 1600000000,
		ReplicationSequence:  42,
		ReplicationBaseURL:   "https://example.org/replication/",
	}

	h, box, err := DecodeHeader(hb.Marshal(), true)
	require.NoError(t, err)
	assert.Equal(t, []string{"OsmSchema-V0.6"}, h.RequiredFeatures)
	assert.Equal(t, "test", h.WritingProgram)
	assert.Equal(t, int64(1600000000), h.ReplicationTimestamp)
	assert.Equal(t, int64(42), h.ReplicationSequence)
	require.NotNil(t, box)
	assert.InDelta(t, -10.0, box.Left, 1e-9)
	assert.InDelta(t, 10.0, box.Right, 1e-9)
	assert.InDelta(t, 5.0, box.Top, 1e-9)
	assert.InDelta(t, -5.0, box.Bottom, 1e-9)

	h, box, err = DecodeHeader(hb.Marshal(), false)
	require.NoError(t, err)
	assert.NotNil(t, h)
	assert.Nil(t, box)
}

func TestDecodeHeaderGarbage(t *testing.T) {
	_, _, err := DecodeHeader([]byte{0xff, 0xff}, true)
	assert.ErrorIs(t, err, ErrMalformedBlock)
}

func TestStringTable(t *testing.T) {
	st := NewStringTable(table("a", "b"))
	assert.Equal(t, 3, st.Len())

	s, err := st.Get(0)
	require.NoError(t, err)
	assert.Equal(t, "", s)

	s, err = st.Get(2)
	require.NoError(t, err)
	assert.Equal(t, "b", s)

	_, err = st.Get(3)
	assert.ErrorIs(t, err, ErrMalformedBlock)
	_, err = st.Get(-1)
	assert.ErrorIs(t, err, ErrMalformedBlock)
}

func TestStringTableNil(t *testing.T) {
	st := NewStringTable(nil)
	assert.Equal(t, 0, st.Len())
	_, err := st.Get(0)
	assert.ErrorIs(t, err, ErrMalformedBlock)
}
