package blob

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"

	"github.com/wegman-software/parallelpbf/internal/pbfproto"
)

// Reader walks an OSM PBF stream one blob at a time. It is not safe
// for concurrent use; the scheduler owns it from a single goroutine.
type Reader struct {
	r      io.Reader
	lenBuf [4]byte
}

// NewReader returns a Reader positioned at the beginning of a blob
// frame.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

// ReadInfo reads the next frame's length prefix and BlobHeader and
// returns the blob's type and payload size. A clean end of stream at
// the length prefix is reported as io.EOF.
func (r *Reader) ReadInfo() (*Info, error) {
	if _, err := io.ReadFull(r.r, r.lenBuf[:]); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("%w: truncated length prefix: %v", ErrMalformedFrame, err)
	}
	headerLen := binary.BigEndian.Uint32(r.lenBuf[:])
	if headerLen > MaxHeaderSize {
		return nil, fmt.Errorf("%w: header length %d exceeds %d", ErrMalformedFrame, headerLen, MaxHeaderSize)
	}

	buf := make([]byte, headerLen)
	if _, err := io.ReadFull(r.r, buf); err != nil {
		return nil, fmt.Errorf("%w: truncated header: %v", ErrMalformedFrame, err)
	}
	var header pbfproto.BlobHeader
	if err := header.Unmarshal(buf); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if header.Datasize < 0 || header.Datasize > MaxBlobSize {
		return nil, fmt.Errorf("%w: blob size %d exceeds %d", ErrMalformedFrame, header.Datasize, MaxBlobSize)
	}
	return &Info{Type: header.Type, Size: header.Datasize}, nil
}

// ReadBlob reads exactly size bytes of blob payload.
func (r *Reader) ReadBlob(size int32) ([]byte, error) {
	buf := make([]byte, size)
	if _, err := io.ReadFull(r.r, buf); err != nil {
		return nil, fmt.Errorf("%w: truncated blob: %v", ErrMalformedFrame, err)
	}
	return buf, nil
}

// Skip discards size bytes of blob payload without retaining them.
// Used to bypass blobs belonging to other shards.
func (r *Reader) Skip(size int32) error {
	if _, err := io.CopyN(io.Discard, r.r, int64(size)); err != nil {
		return fmt.Errorf("%w: truncated blob while skipping: %v", ErrMalformedFrame, err)
	}
	return nil
}

// Extract parses a Blob envelope and returns its uncompressed payload.
// Only raw and zlib compressed blobs are supported. An envelope with no
// payload fields yields an empty payload.
func Extract(data []byte) ([]byte, error) {
	var b pbfproto.Blob
	if err := b.Unmarshal(data); err != nil {
		return nil, fmt.Errorf("%w: parse blob envelope: %v", ErrMalformedFrame, err)
	}

	switch {
	case b.Raw != nil:
		if len(b.Raw) > MaxBlobSize {
			return nil, fmt.Errorf("%w: raw payload %d exceeds %d", ErrMalformedFrame, len(b.Raw), MaxBlobSize)
		}
		return b.Raw, nil

	case b.ZlibData != nil:
		if b.RawSize < 0 || b.RawSize > MaxBlobSize {
			return nil, fmt.Errorf("%w: declared raw size %d out of range", ErrDecompressionFailed, b.RawSize)
		}
		zr, err := zlib.NewReader(bytes.NewReader(b.ZlibData))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDecompressionFailed, err)
		}
		defer zr.Close()
		buf := bytes.NewBuffer(make([]byte, 0, b.RawSize))
		if _, err := buf.ReadFrom(zr); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDecompressionFailed, err)
		}
		if buf.Len() != int(b.RawSize) {
			return nil, fmt.Errorf("%w: inflated %d bytes but raw_size is %d", ErrDecompressionFailed, buf.Len(), b.RawSize)
		}
		return buf.Bytes(), nil

	case b.LzmaData != nil:
		return nil, fmt.Errorf("%w: lzma", ErrUnsupportedCompression)
	case b.Bzip2Data != nil:
		return nil, fmt.Errorf("%w: bzip2", ErrUnsupportedCompression)
	case b.Lz4Data != nil:
		return nil, fmt.Errorf("%w: lz4", ErrUnsupportedCompression)
	case b.ZstdData != nil:
		return nil, fmt.Errorf("%w: zstd", ErrUnsupportedCompression)
	default:
		// A fieldless envelope, as produced by datasize 0, stands for
		// an empty block.
		return []byte{}, nil
	}
}
