package parallelpbf

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/wegman-software/parallelpbf/blob"
	"github.com/wegman-software/parallelpbf/block"
	"github.com/wegman-software/parallelpbf/entity"
)

const (
	stateIdle int32 = iota
	stateRunning
)

// Parser decodes an OSM PBF stream, fanning block decoding out to a
// bounded worker pool. Sinks are invoked concurrently from several
// workers and must be safe for concurrent use. Blocks are decoded in
// no particular order; within one block, entities arrive in file
// order.
type Parser struct {
	r          io.Reader
	workers    int
	partitions int
	shard      int

	state atomic.Int32
	log   *zap.Logger

	onNode      func(*entity.Node)
	onWay       func(*entity.Way)
	onRelation  func(*entity.Relation)
	onChangeset func(int64)
	onHeader    func(*entity.Header)
	onBoundBox  func(*entity.BoundBox)
	onComplete  func()
}

// Option configures a Parser.
type Option func(*Parser)

// OnNode registers the node sink.
func OnNode(fn func(*entity.Node)) Option {
	return func(p *Parser) { p.onNode = fn }
}

// OnWay registers the way sink.
func OnWay(fn func(*entity.Way)) Option {
	return func(p *Parser) { p.onWay = fn }
}

// OnRelation registers the relation sink.
func OnRelation(fn func(*entity.Relation)) Option {
	return func(p *Parser) { p.onRelation = fn }
}

// OnChangeset registers the changeset sink.
func OnChangeset(fn func(id int64)) Option {
	return func(p *Parser) { p.onChangeset = fn }
}

// OnHeader registers the header sink. It is called once for every
// OSMHeader blob read; a well-formed stream carries exactly one, and a
// parser without data sinks stops after the first. Delivery may interleave with entity callbacks from data
// blocks queued after the header.
func OnHeader(fn func(*entity.Header)) Option {
	return func(p *Parser) { p.onHeader = fn }
}

// OnBoundBox registers the bounding box sink. It is only called when
// the header carries a bounding box.
func OnBoundBox(fn func(*entity.BoundBox)) Option {
	return func(p *Parser) { p.onBoundBox = fn }
}

// OnComplete registers a callback invoked after a successful Parse,
// once all workers have drained. It is not called when Parse returns
// an error.
func OnComplete(fn func()) Option {
	return func(p *Parser) { p.onComplete = fn }
}

// WithLogger sets the parser's logger. The default discards
// everything.
func WithLogger(log *zap.Logger) Option {
	return func(p *Parser) { p.log = log }
}

// NewParser returns a parser reading from r with the given worker
// count. workers <= 0 selects runtime.NumCPU.
func NewParser(r io.Reader, workers int, opts ...Option) *Parser {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	p := &Parser{
		r:          r,
		workers:    workers,
		partitions: 1,
		log:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// NewShardedParser returns a parser that decodes only the data blocks
// whose zero-based position i satisfies i mod partitions == shard.
// Blocks belonging to other shards are skipped without decompression.
// The header is delivered to every shard.
func NewShardedParser(r io.Reader, workers, partitions, shard int, opts ...Option) (*Parser, error) {
	if partitions < 1 {
		return nil, fmt.Errorf("partitions must be at least 1, got %d", partitions)
	}
	if shard < 0 || shard >= partitions {
		return nil, fmt.Errorf("shard %d outside [0, %d)", shard, partitions)
	}
	p := NewParser(r, workers, opts...)
	p.partitions = partitions
	p.shard = shard
	return p, nil
}

// Parse runs the stream to completion. It returns after every
// submitted block has been decoded and delivered, or after the first
// error, whichever comes first. On error, in-flight workers are
// drained before returning. A parser runs one Parse at a time;
// concurrent calls get ErrParserBusy.
func (p *Parser) Parse(ctx context.Context) error {
	if !p.state.CompareAndSwap(stateIdle, stateRunning) {
		return ErrParserBusy
	}
	defer p.state.Store(stateIdle)

	p.log.Info("parse started",
		zap.Int("workers", p.workers),
		zap.Int("partitions", p.partitions),
		zap.Int("shard", p.shard))

	g, gctx := errgroup.WithContext(ctx)
	sem := semaphore.NewWeighted(int64(p.workers))

	readErr := p.run(gctx, g, sem)
	waitErr := g.Wait()

	if readErr == nil {
		readErr = waitErr
	}
	if readErr != nil {
		return readErr
	}
	if p.onComplete != nil {
		p.onComplete()
	}
	return nil
}

// run is the scheduler loop. It owns the reader; workers only ever see
// fully read blob payloads.
func (p *Parser) run(ctx context.Context, g *errgroup.Group, sem *semaphore.Weighted) error {
	r := blob.NewReader(p.r)
	handlers := block.Handlers{
		Node:      p.onNode,
		Way:       p.onWay,
		Relation:  p.onRelation,
		Changeset: p.onChangeset,
	}
	hasDataSink := p.onNode != nil || p.onWay != nil || p.onRelation != nil || p.onChangeset != nil

	headerSeen := false
	var dataBlocks int64

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		info, err := r.ReadInfo()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		switch info.Type {
		case blob.TypeOSMHeader:
			raw, err := r.ReadBlob(info.Size)
			if err != nil {
				return err
			}
			headerSeen = true
			if p.onHeader != nil || p.onBoundBox != nil {
				if err := p.submit(ctx, g, sem, func() error {
					return p.decodeHeader(raw)
				}); err != nil {
					return err
				}
			}
			if !hasDataSink {
				// Nothing left to deliver once the header is in.
				return nil
			}

		case blob.TypeOSMData:
			if !headerSeen {
				p.log.Error("skipping blob",
					zap.Error(ErrSequenceViolation),
					zap.Int64("position", dataBlocks),
					zap.Int32("size", info.Size))
				dataBlocks++
				if err := r.Skip(info.Size); err != nil {
					return err
				}
				continue
			}
			mine := dataBlocks%int64(p.partitions) == int64(p.shard)
			dataBlocks++
			if !mine {
				if err := r.Skip(info.Size); err != nil {
					return err
				}
				continue
			}
			raw, err := r.ReadBlob(info.Size)
			if err != nil {
				return err
			}
			if err := p.submit(ctx, g, sem, func() error {
				payload, err := blob.Extract(raw)
				if err != nil {
					return err
				}
				return block.Decode(payload, handlers)
			}); err != nil {
				return err
			}

		default:
			p.log.Debug("skipping blob of unknown type",
				zap.String("type", info.Type),
				zap.Int32("size", info.Size))
			if err := r.Skip(info.Size); err != nil {
				return err
			}
		}
	}
}

// submit blocks until a worker slot is free, then runs fn on the
// group. The semaphore bounds both concurrency and the number of blob
// payloads held in memory.
func (p *Parser) submit(ctx context.Context, g *errgroup.Group, sem *semaphore.Weighted, fn func() error) error {
	if err := sem.Acquire(ctx, 1); err != nil {
		return err
	}
	g.Go(func() error {
		defer sem.Release(1)
		return fn()
	})
	return nil
}

func (p *Parser) decodeHeader(raw []byte) error {
	payload, err := blob.Extract(raw)
	if err != nil {
		return err
	}
	h, box, err := block.DecodeHeader(payload, p.onBoundBox != nil)
	if err != nil {
		return err
	}
	if p.onHeader != nil {
		p.onHeader(h)
	}
	if box != nil {
		p.onBoundBox(box)
	}
	return nil
}
