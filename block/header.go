package block

import (
	"fmt"

	"github.com/wegman-software/parallelpbf/entity"
	"github.com/wegman-software/parallelpbf/internal/pbfproto"
)

// nanoDegree converts the fixed-point nanodegree values of the header
// bounding box to degrees.
const nanoDegree = 1e-9

// DecodeHeader parses an OSMHeader payload. The bounding box is only
// converted when wantBBox is set and the block carries one; otherwise
// the second return value is nil.
func DecodeHeader(payload []byte, wantBBox bool) (*entity.Header, *entity.BoundBox, error) {
	var hb pbfproto.HeaderBlock
	if err := hb.Unmarshal(payload); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrMalformedBlock, err)
	}

	h := &entity.Header{
		RequiredFeatures:     hb.RequiredFeatures,
		OptionalFeatures:     hb.OptionalFeatures,
		WritingProgram:       hb.WritingProgram,
		Source:               hb.Source,
		ReplicationTimestamp: hb.ReplicationTimestamp,
		ReplicationSequence:  hb.ReplicationSequence,
		ReplicationBaseURL:   hb.ReplicationBaseURL,
	}

	var box *entity.BoundBox
	if wantBBox && hb.BBox != nil {
		box = &entity.BoundBox{
			Left:   float64(hb.BBox.Left) * nanoDegree,
			Right:  float64(hb.BBox.Right) * nanoDegree,
			Top:    float64(hb.BBox.Top) * nanoDegree,
			Bottom: float64(hb.BBox.Bottom) * nanoDegree,
		}
	}
	return h, box, nil
}
