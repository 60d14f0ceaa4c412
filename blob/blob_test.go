package blob

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wegman-software/parallelpbf/internal/pbfproto"
)

func TestRoundTripRaw(t *testing.T) {
	payload := []byte("TestString")

	var buf bytes.Buffer
	w := NewWriter(&buf, WithCompression(false))
	require.NoError(t, w.WriteBlob(TypeOSMData, payload))

	r := NewReader(&buf)
	info, err := r.ReadInfo()
	require.NoError(t, err)
	assert.Equal(t, TypeOSMData, info.Type)

	raw, err := r.ReadBlob(info.Size)
	require.NoError(t, err)
	got, err := Extract(raw)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestRoundTripZlib(t *testing.T) {
	payload := bytes.Repeat([]byte("zlib roundtrip "), 100)

	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.WriteBlob(TypeOSMData, payload))

	r := NewReader(&buf)
	info, err := r.ReadInfo()
	require.NoError(t, err)
	raw, err := r.ReadBlob(info.Size)
	require.NoError(t, err)
	got, err := Extract(raw)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestExtractRawSizeMismatch(t *testing.T) {
	payload := []byte("TestString")

	var buf bytes.Buffer
	require.NoError(t, NewWriter(&buf).WriteBlob(TypeOSMData, payload))

	r := NewReader(&buf)
	info, err := r.ReadInfo()
	require.NoError(t, err)
	raw, err := r.ReadBlob(info.Size)
	require.NoError(t, err)

	// Rewrite the declared raw size to a lie.
	var b pbfproto.Blob
	require.NoError(t, b.Unmarshal(raw))
	b.RawSize = 9000
	_, err = Extract(b.Marshal())
	assert.ErrorIs(t, err, ErrDecompressionFailed)
}

func TestExtractUnsupportedCompression(t *testing.T) {
	b := pbfproto.Blob{Bzip2Data: []byte{1, 2, 3}, RawSize: 3}
	_, err := Extract(b.Marshal())
	assert.ErrorIs(t, err, ErrUnsupportedCompression)

	b = pbfproto.Blob{LzmaData: []byte{1, 2, 3}, RawSize: 3}
	_, err = Extract(b.Marshal())
	assert.ErrorIs(t, err, ErrUnsupportedCompression)
}

func TestExtractEmptyEnvelope(t *testing.T) {
	b := pbfproto.Blob{}
	got, err := Extract(b.Marshal())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRoundTripEmptyRaw(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, WithCompression(false))
	require.NoError(t, w.WriteBlob(TypeOSMData, nil))

	r := NewReader(&buf)
	info, err := r.ReadInfo()
	require.NoError(t, err)
	raw, err := r.ReadBlob(info.Size)
	require.NoError(t, err)
	got, err := Extract(raw)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestExtractGarbage(t *testing.T) {
	_, err := Extract([]byte{0xff, 0xff, 0xff})
	assert.ErrorIs(t, err, ErrMalformedFrame)
}

func TestReadInfoCleanEOF(t *testing.T) {
	r := NewReader(bytes.NewReader(nil))
	_, err := r.ReadInfo()
	assert.Equal(t, io.EOF, err)
}

func TestReadInfoTruncatedPrefix(t *testing.T) {
	r := NewReader(bytes.NewReader([]byte{0, 0}))
	_, err := r.ReadInfo()
	assert.ErrorIs(t, err, ErrMalformedFrame)
}

func TestReadInfoOversizedHeader(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0xff, 0xff, 0xff, 0xff})
	r := NewReader(&buf)
	_, err := r.ReadInfo()
	assert.ErrorIs(t, err, ErrMalformedFrame)
}

func TestReadInfoTruncatedHeader(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0, 0, 0, 16})
	buf.Write([]byte{1, 2})
	r := NewReader(&buf)
	_, err := r.ReadInfo()
	assert.ErrorIs(t, err, ErrMalformedFrame)
}

func TestSkip(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, WithCompression(false))
	require.NoError(t, w.WriteBlob(TypeOSMData, []byte("first")))
	require.NoError(t, w.WriteBlob(TypeOSMData, []byte("second")))

	r := NewReader(&buf)
	info, err := r.ReadInfo()
	require.NoError(t, err)
	require.NoError(t, r.Skip(info.Size))

	info, err = r.ReadInfo()
	require.NoError(t, err)
	raw, err := r.ReadBlob(info.Size)
	require.NoError(t, err)
	got, err := Extract(raw)
	require.NoError(t, err)
	assert.Equal(t, []byte("second"), got)
}

func TestWriteBlobTooLarge(t *testing.T) {
	w := NewWriter(io.Discard)
	err := w.WriteBlob(TypeOSMData, make([]byte, MaxBlobSize+1))
	assert.ErrorIs(t, err, ErrMalformedFrame)
}
