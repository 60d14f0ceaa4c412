package encoder

import (
	"fmt"
	"io"
	"math"

	"github.com/wegman-software/parallelpbf/blob"
	"github.com/wegman-software/parallelpbf/entity"
	"github.com/wegman-software/parallelpbf/internal/pbfproto"
)

// Block size thresholds. Encoders flush at the soft cap; crossing the
// hard cap between flush checks is still well under the 32 MiB blob
// limit.
const (
	SoftBlockSize = 15 * 1024 * 1024
	HardBlockSize = 16 * 1024 * 1024
)

// Features announced in the header of written streams.
const (
	FeatureOsmSchema  = "OsmSchema-V0.6"
	FeatureDenseNodes = "DenseNodes"
)

// BlockWriter drives the per-kind encoders over a blob writer,
// producing a complete PBF stream. Entities of each kind accumulate
// into their own blocks and flush independently when a block reaches
// the soft size cap. Close flushes the remainders. Not safe for
// concurrent use.
type BlockWriter struct {
	bw *blob.Writer

	nodes     *NodeEncoder
	ways      *WayEncoder
	relations *RelationEncoder

	headerWritten bool
}

// NewBlockWriter returns a BlockWriter emitting frames to w.
func NewBlockWriter(w io.Writer, opts ...blob.WriterOption) *BlockWriter {
	return &BlockWriter{
		bw:        blob.NewWriter(w, opts...),
		nodes:     NewNodeEncoder(),
		ways:      NewWayEncoder(),
		relations: NewRelationEncoder(),
	}
}

// WriteHeader emits the OSMHeader blob. A nil header writes the
// minimal default. Calling it after the first entity write fails;
// entity writes emit the default header themselves when the caller
// never did.
func (w *BlockWriter) WriteHeader(h *entity.Header, box *entity.BoundBox) error {
	if w.headerWritten {
		return fmt.Errorf("header already written")
	}
	w.headerWritten = true

	var hb pbfproto.HeaderBlock
	if h != nil {
		hb = pbfproto.HeaderBlock{
			RequiredFeatures:     h.RequiredFeatures,
			OptionalFeatures:     h.OptionalFeatures,
			WritingProgram:       h.WritingProgram,
			Source:               h.Source,
			ReplicationTimestamp: h.ReplicationTimestamp,
			ReplicationSequence:  h.ReplicationSequence,
			ReplicationBaseURL:   h.ReplicationBaseURL,
		}
	}
	if len(hb.RequiredFeatures) == 0 {
		hb.RequiredFeatures = []string{FeatureOsmSchema, FeatureDenseNodes}
	}
	if hb.WritingProgram == "" {
		hb.WritingProgram = "parallelpbf"
	}
	if box != nil {
		hb.BBox = &pbfproto.HeaderBBox{
			Left:   nanoDegrees(box.Left),
			Right:  nanoDegrees(box.Right),
			Top:    nanoDegrees(box.Top),
			Bottom: nanoDegrees(box.Bottom),
		}
	}
	return w.bw.WriteBlob(blob.TypeOSMHeader, hb.Marshal())
}

func nanoDegrees(deg float64) int64 {
	return int64(math.Round(deg * 1e9))
}

// WriteNode adds a node, flushing its block at the size cap.
func (w *BlockWriter) WriteNode(n *entity.Node) error {
	if err := w.ensureHeader(); err != nil {
		return err
	}
	if err := w.nodes.Add(n); err != nil {
		return err
	}
	if w.nodes.EstimatedSize() >= SoftBlockSize {
		return w.flushNodes()
	}
	return nil
}

// WriteWay adds a way, flushing its block at the size cap.
func (w *BlockWriter) WriteWay(way *entity.Way) error {
	if err := w.ensureHeader(); err != nil {
		return err
	}
	if err := w.ways.Add(way); err != nil {
		return err
	}
	if w.ways.EstimatedSize() >= SoftBlockSize {
		return w.flushWays()
	}
	return nil
}

// WriteRelation adds a relation, flushing its block at the size cap.
func (w *BlockWriter) WriteRelation(r *entity.Relation) error {
	if err := w.ensureHeader(); err != nil {
		return err
	}
	if err := w.relations.Add(r); err != nil {
		return err
	}
	if w.relations.EstimatedSize() >= SoftBlockSize {
		return w.flushRelations()
	}
	return nil
}

// Close flushes every non-empty block. It does not close the
// underlying writer.
func (w *BlockWriter) Close() error {
	if err := w.ensureHeader(); err != nil {
		return err
	}
	if w.nodes.Len() > 0 {
		if err := w.flushNodes(); err != nil {
			return err
		}
	}
	if w.ways.Len() > 0 {
		if err := w.flushWays(); err != nil {
			return err
		}
	}
	if w.relations.Len() > 0 {
		if err := w.flushRelations(); err != nil {
			return err
		}
	}
	return nil
}

func (w *BlockWriter) ensureHeader() error {
	if w.headerWritten {
		return nil
	}
	return w.WriteHeader(nil, nil)
}

func (w *BlockWriter) flushNodes() error {
	payload, err := w.nodes.Write()
	if err != nil {
		return err
	}
	w.nodes = NewNodeEncoder()
	return w.bw.WriteBlob(blob.TypeOSMData, payload)
}

func (w *BlockWriter) flushWays() error {
	payload, err := w.ways.Write()
	if err != nil {
		return err
	}
	w.ways = NewWayEncoder()
	return w.bw.WriteBlob(blob.TypeOSMData, payload)
}

func (w *BlockWriter) flushRelations() error {
	payload, err := w.relations.Write()
	if err != nil {
		return err
	}
	w.relations = NewRelationEncoder()
	return w.bw.WriteBlob(blob.TypeOSMData, payload)
}
