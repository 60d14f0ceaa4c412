package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/wegman-software/parallelpbf"
	"github.com/wegman-software/parallelpbf/entity"
)

var infoCmd = &cobra.Command{
	Use:   "info FILE",
	Short: "Print the header of a PBF file",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := runInfo(args[0]); err != nil {
			exitWithError("info failed", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

func runInfo(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var header *entity.Header
	var box *entity.BoundBox

	p := parallelpbf.NewParser(f, 1,
		parallelpbf.OnHeader(func(h *entity.Header) { header = h }),
		parallelpbf.OnBoundBox(func(b *entity.BoundBox) { box = b }),
	)
	if err := p.Parse(context.Background()); err != nil {
		return err
	}
	if header == nil {
		return fmt.Errorf("%s carries no header blob", path)
	}

	fmt.Printf("required features: %v\n", header.RequiredFeatures)
	if len(header.OptionalFeatures) > 0 {
		fmt.Printf("optional features: %v\n", header.OptionalFeatures)
	}
	if header.WritingProgram != "" {
		fmt.Printf("writing program:   %s\n", header.WritingProgram)
	}
	if header.Source != "" {
		fmt.Printf("source:            %s\n", header.Source)
	}
	if box != nil {
		fmt.Printf("bbox:              %.7f,%.7f,%.7f,%.7f\n", box.Left, box.Bottom, box.Right, box.Top)
	}
	if header.ReplicationTimestamp != 0 {
		fmt.Printf("replication time:  %s\n", time.Unix(header.ReplicationTimestamp, 0).UTC().Format(time.RFC3339))
	}
	if header.ReplicationSequence != 0 {
		fmt.Printf("replication seq:   %d\n", header.ReplicationSequence)
	}
	if header.ReplicationBaseURL != "" {
		fmt.Printf("replication url:   %s\n", header.ReplicationBaseURL)
	}
	return nil
}
