package main

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wegman-software/parallelpbf"
	"github.com/wegman-software/parallelpbf/entity"
	"github.com/wegman-software/parallelpbf/internal/logger"
	"github.com/wegman-software/parallelpbf/internal/metrics"
)

var (
	partitionsFlag int
	shardFlag      int
)

var countCmd = &cobra.Command{
	Use:   "count FILE",
	Short: "Count the entities in a PBF file",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg.InputFile = args[0]
		if cmd.Flags().Changed("partitions") {
			cfg.Partitions = partitionsFlag
		}
		if cmd.Flags().Changed("shard") {
			cfg.Shard = shardFlag
		}
		if err := cfg.Validate(); err != nil {
			exitWithError("invalid configuration", err)
		}
		if err := runCount(); err != nil {
			exitWithError("count failed", err)
		}
	},
}

func init() {
	countCmd.Flags().IntVar(&partitionsFlag, "partitions", cfg.Partitions, "Total number of shards the file is split into")
	countCmd.Flags().IntVar(&shardFlag, "shard", cfg.Shard, "Zero-based shard owned by this run")
	rootCmd.AddCommand(countCmd)
}

func runCount() error {
	log := logger.Get()

	f, err := os.Open(cfg.InputFile)
	if err != nil {
		return err
	}
	defer f.Close()

	collector := metrics.NewCollector(cfg.MetricsInterval, log)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go collector.Start(ctx)

	var nodes, ways, relations, changesets atomic.Int64

	p, err := parallelpbf.NewShardedParser(f, cfg.Workers, cfg.Partitions, cfg.Shard,
		parallelpbf.OnNode(func(*entity.Node) {
			nodes.Add(1)
			collector.AddEntities(1)
		}),
		parallelpbf.OnWay(func(*entity.Way) {
			ways.Add(1)
			collector.AddEntities(1)
		}),
		parallelpbf.OnRelation(func(*entity.Relation) {
			relations.Add(1)
			collector.AddEntities(1)
		}),
		parallelpbf.OnChangeset(func(int64) {
			changesets.Add(1)
			collector.AddEntities(1)
		}),
		parallelpbf.WithLogger(log),
	)
	if err != nil {
		return err
	}

	start := time.Now()
	if err := p.Parse(context.Background()); err != nil {
		return err
	}
	log.Info("count complete",
		zap.Int64("nodes", nodes.Load()),
		zap.Int64("ways", ways.Load()),
		zap.Int64("relations", relations.Load()),
		zap.Int64("changesets", changesets.Load()),
		zap.Duration("duration", time.Since(start).Round(time.Millisecond)))

	fmt.Printf("nodes:      %d\n", nodes.Load())
	fmt.Printf("ways:       %d\n", ways.Load())
	fmt.Printf("relations:  %d\n", relations.Load())
	if changesets.Load() > 0 {
		fmt.Printf("changesets: %d\n", changesets.Load())
	}
	return nil
}
