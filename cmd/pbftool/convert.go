package main

import (
	"bufio"
	"context"
	"os"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wegman-software/parallelpbf"
	"github.com/wegman-software/parallelpbf/blob"
	"github.com/wegman-software/parallelpbf/encoder"
	"github.com/wegman-software/parallelpbf/entity"
	"github.com/wegman-software/parallelpbf/internal/config"
	"github.com/wegman-software/parallelpbf/internal/logger"
	"github.com/wegman-software/parallelpbf/internal/metrics"
)

var bboxFlag string

var convertCmd = &cobra.Command{
	Use:   "convert IN OUT",
	Short: "Decode a PBF file and re-encode it",
	Long: `convert decodes IN in parallel and writes a fresh PBF stream to OUT.
An optional bounding box drops the nodes outside it.`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		cfg.InputFile = args[0]
		cfg.OutputFile = args[1]
		bbox, err := config.ParseBBox(bboxFlag)
		if err != nil {
			exitWithError("invalid bbox", err)
		}
		cfg.BBox = bbox
		if err := cfg.Validate(); err != nil {
			exitWithError("invalid configuration", err)
		}
		if err := runConvert(); err != nil {
			exitWithError("convert failed", err)
		}
	},
}

func init() {
	convertCmd.Flags().StringVar(&bboxFlag, "bbox", "", "Bounding box filter: minlon,minlat,maxlon,maxlat")
	convertCmd.Flags().BoolVar(&cfg.NoCompress, "no-compress", false, "Write raw blobs instead of zlib")
	rootCmd.AddCommand(convertCmd)
}

func runConvert() error {
	log := logger.Get()

	header, box, err := readHeader(cfg.InputFile)
	if err != nil {
		return err
	}

	in, err := os.Open(cfg.InputFile)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(cfg.OutputFile)
	if err != nil {
		return err
	}
	defer out.Close()
	buffered := bufio.NewWriterSize(out, 1<<20)

	var opts []blob.WriterOption
	if cfg.NoCompress {
		opts = append(opts, blob.WithCompression(false))
	}
	bw := encoder.NewBlockWriter(buffered, opts...)
	if err := bw.WriteHeader(header, box); err != nil {
		return err
	}

	collector := metrics.NewCollector(cfg.MetricsInterval, log)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go collector.Start(ctx)

	// The block writer is single-threaded; sinks funnel through one
	// mutex.
	var mu sync.Mutex
	var sinkErr error
	guard := func(fn func() error) {
		mu.Lock()
		defer mu.Unlock()
		if sinkErr != nil {
			return
		}
		sinkErr = fn()
	}

	p := parallelpbf.NewParser(in, cfg.Workers,
		parallelpbf.OnNode(func(n *entity.Node) {
			if !cfg.BBox.Contains(n.Lat, n.Lon) {
				return
			}
			collector.AddEntities(1)
			guard(func() error { return bw.WriteNode(n) })
		}),
		parallelpbf.OnWay(func(w *entity.Way) {
			collector.AddEntities(1)
			guard(func() error { return bw.WriteWay(w) })
		}),
		parallelpbf.OnRelation(func(r *entity.Relation) {
			collector.AddEntities(1)
			guard(func() error { return bw.WriteRelation(r) })
		}),
		parallelpbf.WithLogger(log),
	)

	start := time.Now()
	if err := p.Parse(context.Background()); err != nil {
		return err
	}
	if sinkErr != nil {
		return sinkErr
	}
	if err := bw.Close(); err != nil {
		return err
	}
	if err := buffered.Flush(); err != nil {
		return err
	}

	log.Info("convert complete",
		zap.String("input", cfg.InputFile),
		zap.String("output", cfg.OutputFile),
		zap.Duration("duration", time.Since(start).Round(time.Millisecond)))
	return nil
}

// readHeader runs a header-only parse; it returns as soon as the
// header blob is decoded.
func readHeader(path string) (*entity.Header, *entity.BoundBox, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	var header *entity.Header
	var box *entity.BoundBox
	p := parallelpbf.NewParser(f, 1,
		parallelpbf.OnHeader(func(h *entity.Header) { header = h }),
		parallelpbf.OnBoundBox(func(b *entity.BoundBox) { box = b }),
	)
	if err := p.Parse(context.Background()); err != nil {
		return nil, nil, err
	}
	return header, box, nil
}
