// Package pbfproto implements the OSM PBF protobuf messages
// (fileformat.proto and osmformat.proto) directly on top of the
// protobuf wire format, without generated code.
package pbfproto

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

func parseErr(n int) error {
	if err := protowire.ParseError(n); err != nil {
		return err
	}
	return fmt.Errorf("malformed protobuf field")
}

// consumeInt64s appends one scalar or a packed run of varints to dst.
// Both packed and unpacked encodings appear in the wild, so both are
// accepted regardless of what the schema declares.
func consumeInt64s(dst []int64, data []byte, typ protowire.Type, zigzag bool) ([]int64, int, error) {
	if typ == protowire.BytesType {
		buf, n := protowire.ConsumeBytes(data)
		if n < 0 {
			return dst, 0, parseErr(n)
		}
		for len(buf) > 0 {
			v, m := protowire.ConsumeVarint(buf)
			if m < 0 {
				return dst, 0, parseErr(m)
			}
			buf = buf[m:]
			if zigzag {
				dst = append(dst, protowire.DecodeZigZag(v))
			} else {
				dst = append(dst, int64(v))
			}
		}
		return dst, n, nil
	}
	v, n := protowire.ConsumeVarint(data)
	if n < 0 {
		return dst, 0, parseErr(n)
	}
	if zigzag {
		dst = append(dst, protowire.DecodeZigZag(v))
	} else {
		dst = append(dst, int64(v))
	}
	return dst, n, nil
}

func consumeInt32s(dst []int32, data []byte, typ protowire.Type, zigzag bool) ([]int32, int, error) {
	wide, n, err := consumeInt64s(nil, data, typ, zigzag)
	if err != nil {
		return dst, 0, err
	}
	for _, v := range wide {
		dst = append(dst, int32(v))
	}
	return dst, n, nil
}

func consumeUint32s(dst []uint32, data []byte, typ protowire.Type) ([]uint32, int, error) {
	wide, n, err := consumeInt64s(nil, data, typ, false)
	if err != nil {
		return dst, 0, err
	}
	for _, v := range wide {
		dst = append(dst, uint32(v))
	}
	return dst, n, nil
}

func consumeBools(dst []bool, data []byte, typ protowire.Type) ([]bool, int, error) {
	wide, n, err := consumeInt64s(nil, data, typ, false)
	if err != nil {
		return dst, 0, err
	}
	for _, v := range wide {
		dst = append(dst, v != 0)
	}
	return dst, n, nil
}

func consumeVarint(data []byte, typ protowire.Type) (uint64, int, error) {
	if typ != protowire.VarintType {
		return 0, 0, fmt.Errorf("unexpected wire type %d for varint field", typ)
	}
	v, n := protowire.ConsumeVarint(data)
	if n < 0 {
		return 0, 0, parseErr(n)
	}
	return v, n, nil
}

func consumeBytes(data []byte, typ protowire.Type) ([]byte, int, error) {
	if typ != protowire.BytesType {
		return nil, 0, fmt.Errorf("unexpected wire type %d for bytes field", typ)
	}
	v, n := protowire.ConsumeBytes(data)
	if n < 0 {
		return nil, 0, parseErr(n)
	}
	return v, n, nil
}

func skipField(data []byte, num protowire.Number, typ protowire.Type) (int, error) {
	n := protowire.ConsumeFieldValue(num, typ, data)
	if n < 0 {
		return 0, parseErr(n)
	}
	return n, nil
}

func appendPackedInt64(b []byte, num protowire.Number, vals []int64, zigzag bool) []byte {
	if len(vals) == 0 {
		return b
	}
	var buf []byte
	for _, v := range vals {
		if zigzag {
			buf = protowire.AppendVarint(buf, protowire.EncodeZigZag(v))
		} else {
			buf = protowire.AppendVarint(buf, uint64(v))
		}
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, buf)
}

func appendPackedInt32(b []byte, num protowire.Number, vals []int32, zigzag bool) []byte {
	if len(vals) == 0 {
		return b
	}
	wide := make([]int64, len(vals))
	for i, v := range vals {
		wide[i] = int64(v)
	}
	return appendPackedInt64(b, num, wide, zigzag)
}

func appendPackedUint32(b []byte, num protowire.Number, vals []uint32) []byte {
	if len(vals) == 0 {
		return b
	}
	var buf []byte
	for _, v := range vals {
		buf = protowire.AppendVarint(buf, uint64(v))
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, buf)
}

func appendPackedBool(b []byte, num protowire.Number, vals []bool) []byte {
	if len(vals) == 0 {
		return b
	}
	var buf []byte
	for _, v := range vals {
		u := uint64(0)
		if v {
			u = 1
		}
		buf = protowire.AppendVarint(buf, u)
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, buf)
}

func appendVarintField(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendZigZagField(b []byte, num protowire.Number, v int64) []byte {
	return appendVarintField(b, num, protowire.EncodeZigZag(v))
}

func appendBytesField(b []byte, num protowire.Number, v []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

func appendStringField(b []byte, num protowire.Number, v string) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, v)
}
