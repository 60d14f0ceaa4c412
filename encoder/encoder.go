// Package encoder builds PrimitiveBlock payloads from entity values.
// Each encoder owns a block under construction with its own string
// table; Write finalizes the block and consumes the encoder.
package encoder

import (
	"errors"
	"math"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/wegman-software/parallelpbf/entity"
	"github.com/wegman-software/parallelpbf/internal/pbfproto"
)

// ErrConsumed reports use of an encoder after its Write call.
var ErrConsumed = errors.New("encoder already written")

// coordUnit is the coordinate resolution in degrees at the default
// granularity of 100 nanodegrees.
const coordUnit = 1e-7

// stringTable accumulates the block's strings keyed by insertion.
// Index 0 is reserved for the empty string.
type stringTable struct {
	index map[string]int32
	s     [][]byte
	bytes int
}

func newStringTable() *stringTable {
	return &stringTable{
		index: map[string]int32{"": 0},
		s:     [][]byte{nil},
	}
}

// id returns the table index of s, appending it on first sight.
func (t *stringTable) id(s string) int32 {
	if i, ok := t.index[s]; ok {
		return i
	}
	i := int32(len(t.s))
	t.s = append(t.s, []byte(s))
	t.index[s] = i
	t.bytes += len(s) + 2
	return i
}

func (t *stringTable) proto() *pbfproto.StringTable {
	return &pbfproto.StringTable{S: t.s}
}

// mapCoord converts a coordinate in degrees to the fixed-point unit.
func mapCoord(deg float64) int64 {
	return int64(math.Round(deg / coordUnit))
}

// varintSize estimates the wire size of a delta value.
func varintSize(v int64) int {
	return protowire.SizeVarint(protowire.EncodeZigZag(v))
}

// protoInfo converts entity metadata, interning the username in the
// table. Timestamps come in as epoch milliseconds and leave in
// date_granularity units. The visible field is only written when the
// entity is invisible; readers default it to true.
func protoInfo(in *entity.Info, st *stringTable) *pbfproto.Info {
	if in == nil {
		return nil
	}
	out := &pbfproto.Info{
		Version:   in.Version,
		Timestamp: in.Timestamp / pbfproto.DefaultDateGranularity,
		Changeset: in.Changeset,
		UID:       in.UID,
	}
	if in.Username != "" {
		out.UserSID = uint32(st.id(in.Username))
	}
	if !in.Visible {
		visible := false
		out.Visible = &visible
	}
	return out
}

// marshalBlock wraps a finished group into a PrimitiveBlock payload at
// the default granularities.
func marshalBlock(st *stringTable, g *pbfproto.PrimitiveGroup) []byte {
	pb := pbfproto.PrimitiveBlock{
		StringTable:     st.proto(),
		Groups:          []*pbfproto.PrimitiveGroup{g},
		Granularity:     pbfproto.DefaultGranularity,
		DateGranularity: pbfproto.DefaultDateGranularity,
	}
	return pb.Marshal()
}
