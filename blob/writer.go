package blob

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"

	"github.com/wegman-software/parallelpbf/internal/pbfproto"
)

// Writer emits framed BlobHeader/Blob pairs. Payloads are zlib
// compressed unless compression is disabled.
type Writer struct {
	w        io.Writer
	compress bool
}

// WriterOption configures a Writer.
type WriterOption func(*Writer)

// WithCompression enables or disables zlib compression of blob
// payloads. Compression is on by default.
func WithCompression(enable bool) WriterOption {
	return func(w *Writer) {
		w.compress = enable
	}
}

// NewWriter returns a Writer emitting frames to w.
func NewWriter(w io.Writer, opts ...WriterOption) *Writer {
	bw := &Writer{w: w, compress: true}
	for _, opt := range opts {
		opt(bw)
	}
	return bw
}

// WriteBlob frames payload as a blob of the given type and writes the
// length prefix, BlobHeader and Blob to the underlying writer.
func (w *Writer) WriteBlob(typ string, payload []byte) error {
	if len(payload) > MaxBlobSize {
		return fmt.Errorf("%w: payload %d exceeds %d", ErrMalformedFrame, len(payload), MaxBlobSize)
	}

	var b pbfproto.Blob
	if w.compress {
		var buf bytes.Buffer
		zw := zlib.NewWriter(&buf)
		if _, err := zw.Write(payload); err != nil {
			return fmt.Errorf("compress blob: %w", err)
		}
		if err := zw.Close(); err != nil {
			return fmt.Errorf("close zlib writer: %w", err)
		}
		b.ZlibData = buf.Bytes()
		b.RawSize = int32(len(payload))
	} else {
		// Keep the raw field present even for zero-length payloads so
		// the envelope round-trips as an empty block.
		if payload == nil {
			payload = []byte{}
		}
		b.Raw = payload
		b.RawSize = int32(len(payload))
	}

	blobData := b.Marshal()
	header := pbfproto.BlobHeader{Type: typ, Datasize: int32(len(blobData))}
	headerData := header.Marshal()

	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(headerData)))
	if _, err := w.w.Write(lenBuf[:]); err != nil {
		return fmt.Errorf("write frame length: %w", err)
	}
	if _, err := w.w.Write(headerData); err != nil {
		return fmt.Errorf("write blob header: %w", err)
	}
	if _, err := w.w.Write(blobData); err != nil {
		return fmt.Errorf("write blob: %w", err)
	}
	return nil
}
