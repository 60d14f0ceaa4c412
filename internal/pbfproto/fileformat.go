package pbfproto

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// BlobHeader describes the type and size of the Blob that follows it
// in the stream.
type BlobHeader struct {
	Type      string
	IndexData []byte
	Datasize  int32
}

func (h *BlobHeader) Unmarshal(data []byte) error {
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
				h.Type = string(v)
			}
		case 2:
			var v []byte
			if v, n, err = consumeBytes(data, typ); err == nil {
				h.IndexData = v
			}
		case 3:
			var v uint64
			if v, n, err = consumeVarint(data, typ); err == nil {
				h.Datasize = int32(v)
			}
		default:
			n, err = skipField(data, num, typ)
		}
		if err != nil {
			return fmt.Errorf("BlobHeader field %d: %w", num, err)
		}
		data = data[n:]
	}
	return nil
}

func (h *BlobHeader) Marshal() []byte {
	var b []byte
	b = appendStringField(b, 1, h.Type)
	if len(h.IndexData) > 0 {
		b = appendBytesField(b, 2, h.IndexData)
	}
	b = appendVarintField(b, 3, uint64(uint32(h.Datasize)))
	return b
}

// Blob is the outer payload container. Exactly one of the data fields
// is expected to be set.
type Blob struct {
	Raw       []byte
	RawSize   int32
	ZlibData  []byte
	LzmaData  []byte
	Bzip2Data []byte
	Lz4Data   []byte
	ZstdData  []byte
}

func (b *Blob) Unmarshal(data []byte) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return parseErr(n)
		}
		data = data[n:]

		var err error
		switch num {
		case 1:
			b.Raw, n, err = consumeBytes(data, typ)
		case 2:
			var v uint64
			if v, n, err = consumeVarint(data, typ); err == nil {
				b.RawSize = int32(v)
			}
		case 3:
			b.ZlibData, n, err = consumeBytes(data, typ)
		case 4:
			b.LzmaData, n, err = consumeBytes(data, typ)
		case 5:
			b.Bzip2Data, n, err = consumeBytes(data, typ)
		case 6:
			b.Lz4Data, n, err = consumeBytes(data, typ)
		case 7:
			b.ZstdData, n, err = consumeBytes(data, typ)
		default:
			n, err = skipField(data, num, typ)
		}
		if err != nil {
			return fmt.Errorf("Blob field %d: %w", num, err)
		}
		data = data[n:]
	}
	return nil
}

func (b *Blob) Marshal() []byte {
	var out []byte
	if b.Raw != nil {
		out = appendBytesField(out, 1, b.Raw)
	}
	if b.RawSize != 0 {
		out = appendVarintField(out, 2, uint64(uint32(b.RawSize)))
	}
	if b.ZlibData != nil {
		out = appendBytesField(out, 3, b.ZlibData)
	}
	if b.LzmaData != nil {
		out = appendBytesField(out, 4, b.LzmaData)
	}
	if b.Bzip2Data != nil {
		out = appendBytesField(out, 5, b.Bzip2Data)
	}
	if b.Lz4Data != nil {
		out = appendBytesField(out, 6, b.Lz4Data)
	}
	if b.ZstdData != nil {
		out = appendBytesField(out, 7, b.ZstdData)
	}
	return out
}
