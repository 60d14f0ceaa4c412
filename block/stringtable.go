// Package block decodes PrimitiveBlock and HeaderBlock payloads into
// entity values. One block is always decoded by exactly one worker,
// so nothing here is synchronized.
package block

import (
	"errors"
	"fmt"

	"github.com/wegman-software/parallelpbf/internal/pbfproto"
)

// ErrMalformedBlock reports an undecodable block payload: a protobuf
// parse failure, an out-of-range string index or mismatched parallel
// array lengths.
var ErrMalformedBlock = errors.New("malformed primitive block")

// StringTable resolves per-block string indices. Index 0 is the empty
// string by convention of the format.
type StringTable struct {
	s [][]byte
}

// NewStringTable wraps the decoded table. A nil table behaves as an
// empty one.
func NewStringTable(st *pbfproto.StringTable) *StringTable {
	if st == nil {
		return &StringTable{}
	}
	return &StringTable{s: st.S}
}

// Get returns the string at index i.
func (t *StringTable) Get(i int) (string, error) {
	if i < 0 || i >= len(t.s) {
		return "", fmt.Errorf("%w: string index %d outside table of %d", ErrMalformedBlock, i, len(t.s))
	}
	return string(t.s[i]), nil
}

// Len returns the number of entries in the table.
func (t *StringTable) Len() int {
	return len(t.s)
}
