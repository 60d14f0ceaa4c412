package encoder

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wegman-software/parallelpbf/blob"
	"github.com/wegman-software/parallelpbf/block"
	"github.com/wegman-software/parallelpbf/entity"
)

func TestNodeEncoderRoundTrip(t *testing.T) {
	enc := NewNodeEncoder()
	in := []*entity.Node{
		{
			ID:   1,
			Lat:  51.5074,
			Lon:  -0.1278,
			Tags: map[string]string{"amenity": "pub", "name": "The Crown"},
			Info: &entity.Info{
				Version:   2,
				Timestamp: 1600000000000,
				Changeset: 42,
				UID:       7,
				Username:  "alice",
				Visible:   true,
			},
		},
		{ID: 2, Lat: 51.5075, Lon: -0.1279, Info: &entity.Info{Version: 1, Visible: true}},
		{ID: 4, Lat: -33.8688, Lon: 151.2093, Info: &entity.Info{Version: 1, Visible: false}},
	}
	for _, n := range in {
		require.NoError(t, enc.Add(n))
	}
	assert.Equal(t, 3, enc.Len())

	payload, err := enc.Write()
	require.NoError(t, err)

	var out []*entity.Node
	require.NoError(t, block.Decode(payload, block.Handlers{
		Node: func(n *entity.Node) { out = append(out, n) },
	}))
	require.Len(t, out, 3)

	for i := range in {
		assert.Equal(t, in[i].ID, out[i].ID)
		assert.InDelta(t, in[i].Lat, out[i].Lat, 1e-7)
		assert.InDelta(t, in[i].Lon, out[i].Lon, 1e-7)
		assert.Equal(t, in[i].Tags, out[i].Tags)
	}
	require.NotNil(t, out[0].Info)
	assert.Equal(t, int32(2), out[0].Info.Version)
	assert.Equal(t, int64(1600000000000), out[0].Info.Timestamp)
	assert.Equal(t, int64(42), out[0].Info.Changeset)
	assert.Equal(t, int32(7), out[0].Info.UID)
	assert.Equal(t, "alice", out[0].Info.Username)
	assert.True(t, out[0].Info.Visible)
	assert.True(t, out[1].Info.Visible)
	assert.False(t, out[2].Info.Visible)
}

func TestNodeEncoderConsumed(t *testing.T) {
	enc := NewNodeEncoder()
	require.NoError(t, enc.Add(&entity.Node{ID: 1}))
	_, err := enc.Write()
	require.NoError(t, err)

	assert.ErrorIs(t, enc.Add(&entity.Node{ID: 2}), ErrConsumed)
	_, err = enc.Write()
	assert.ErrorIs(t, err, ErrConsumed)
}

func TestWayEncoderRoundTrip(t *testing.T) {
	enc := NewWayEncoder()
	in := &entity.Way{
		ID:    44,
		Tags:  map[string]string{"highway": "residential"},
		Nodes: []int64{100, 101, 102, 100},
		Info:  &entity.Info{Version: 3, Timestamp: 1700000000000, Visible: true},
	}
	require.NoError(t, enc.Add(in))

	payload, err := enc.Write()
	require.NoError(t, err)

	var out *entity.Way
	require.NoError(t, block.Decode(payload, block.Handlers{
		Way: func(w *entity.Way) { out = w },
	}))
	require.NotNil(t, out)
	assert.Equal(t, in.ID, out.ID)
	assert.Equal(t, in.Nodes, out.Nodes)
	assert.Equal(t, in.Tags, out.Tags)
	require.NotNil(t, out.Info)
	assert.Equal(t, int32(3), out.Info.Version)
	assert.Equal(t, int64(1700000000000), out.Info.Timestamp)
	assert.True(t, out.Info.Visible)
}

func TestWayEncoderConsumed(t *testing.T) {
	enc := NewWayEncoder()
	_, err := enc.Write()
	require.NoError(t, err)
	assert.ErrorIs(t, enc.Add(&entity.Way{ID: 1}), ErrConsumed)
}

func TestRelationEncoderRoundTrip(t *testing.T) {
	enc := NewRelationEncoder()
	in := &entity.Relation{
		ID:   9,
		Tags: map[string]string{"type": "multipolygon"},
		Members: []entity.RelationMember{
			{ID: 10, Role: "outer", Type: entity.WayType},
			{ID: 15, Role: "inner", Type: entity.WayType},
			{ID: 3, Role: "", Type: entity.NodeType},
			{ID: 20, Role: "subarea", Type: entity.RelationType},
		},
	}
	require.NoError(t, enc.Add(in))

	payload, err := enc.Write()
	require.NoError(t, err)

	var out *entity.Relation
	require.NoError(t, block.Decode(payload, block.Handlers{
		Relation: func(r *entity.Relation) { out = r },
	}))
	require.NotNil(t, out)
	assert.Equal(t, in.ID, out.ID)
	assert.Equal(t, in.Tags, out.Tags)
	assert.Equal(t, in.Members, out.Members)
}

func TestRelationEncoderConsumed(t *testing.T) {
	enc := NewRelationEncoder()
	_, err := enc.Write()
	require.NoError(t, err)
	_, err = enc.Write()
	assert.ErrorIs(t, err, ErrConsumed)
}

func TestEstimatedSizeGrows(t *testing.T) {
	enc := NewNodeEncoder()
	before := enc.EstimatedSize()
	require.NoError(t, enc.Add(&entity.Node{
		ID:   1,
		Tags: map[string]string{"name": "somewhere"},
	}))
	assert.Greater(t, enc.EstimatedSize(), before)
}

func TestBlockWriterStream(t *testing.T) {
	var buf bytes.Buffer
	bw := NewBlockWriter(&buf)
	require.NoError(t, bw.WriteHeader(&entity.Header{Source: "test"}, &entity.BoundBox{
		Left: -1, Right: 1, Top: 1, Bottom: -1,
	}))
	require.NoError(t, bw.WriteNode(&entity.Node{ID: 1, Lat: 0.5, Lon: 0.5}))
	require.NoError(t, bw.WriteWay(&entity.Way{ID: 2, Nodes: []int64{1}}))
	require.NoError(t, bw.WriteRelation(&entity.Relation{
		ID:      3,
		Members: []entity.RelationMember{{ID: 1, Role: "r", Type: entity.NodeType}},
	}))
	require.NoError(t, bw.Close())

	r := blob.NewReader(&buf)
	var types []string
	for {
		info, err := r.ReadInfo()
		if err != nil {
			break
		}
		types = append(types, info.Type)
		require.NoError(t, r.Skip(info.Size))
	}
	assert.Equal(t, []string{
		blob.TypeOSMHeader,
		blob.TypeOSMData,
		blob.TypeOSMData,
		blob.TypeOSMData,
	}, types)
}

func TestBlockWriterDefaultHeader(t *testing.T) {
	var buf bytes.Buffer
	bw := NewBlockWriter(&buf)
	require.NoError(t, bw.WriteNode(&entity.Node{ID: 1}))
	require.NoError(t, bw.Close())

	r := blob.NewReader(&buf)
	info, err := r.ReadInfo()
	require.NoError(t, err)
	assert.Equal(t, blob.TypeOSMHeader, info.Type)

	raw, err := r.ReadBlob(info.Size)
	require.NoError(t, err)
	payload, err := blob.Extract(raw)
	require.NoError(t, err)
	h, _, err := block.DecodeHeader(payload, false)
	require.NoError(t, err)
	assert.Contains(t, h.RequiredFeatures, FeatureOsmSchema)
	assert.Contains(t, h.RequiredFeatures, FeatureDenseNodes)
}

func TestBlockWriterHeaderTwice(t *testing.T) {
	var buf bytes.Buffer
	bw := NewBlockWriter(&buf)
	require.NoError(t, bw.WriteHeader(nil, nil))
	assert.Error(t, bw.WriteHeader(nil, nil))
}
