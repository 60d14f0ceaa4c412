// Package config carries the pbftool run configuration: flag values,
// optional YAML profiles and the bounding box filter.
package config

import (
	"fmt"
	"runtime"
	"strconv"
	"strings"
	"time"
)

// BBox is a geographic bounding box filter for the convert command.
type BBox struct {
	MinLon, MinLat, MaxLon, MaxLat float64
	IsSet                          bool
}

// Contains reports whether the point lies within the box. An unset box
// contains everything.
func (b *BBox) Contains(lat, lon float64) bool {
	if !b.IsSet {
		return true
	}
	return lon >= b.MinLon && lon <= b.MaxLon && lat >= b.MinLat && lat <= b.MaxLat
}

// ParseBBox parses "minlon,minlat,maxlon,maxlat". An empty string
// yields an unset box.
func ParseBBox(s string) (*BBox, error) {
	if s == "" {
		return &BBox{}, nil
	}

	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return nil, fmt.Errorf("bbox must have 4 values: minlon,minlat,maxlon,maxlat")
	}

	var coords [4]float64
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid bbox coordinate %q: %w", p, err)
		}
		coords[i] = v
	}

	bbox := &BBox{
		MinLon: coords[0],
		MinLat: coords[1],
		MaxLon: coords[2],
		MaxLat: coords[3],
		IsSet:  true,
	}
	if bbox.MinLon > bbox.MaxLon {
		return nil, fmt.Errorf("minlon (%f) must be <= maxlon (%f)", bbox.MinLon, bbox.MaxLon)
	}
	if bbox.MinLat > bbox.MaxLat {
		return nil, fmt.Errorf("minlat (%f) must be <= maxlat (%f)", bbox.MinLat, bbox.MaxLat)
	}
	return bbox, nil
}

// Config holds the settings shared by the pbftool commands.
type Config struct {
	InputFile  string
	OutputFile string

	Workers    int
	Partitions int
	Shard      int

	BBox       *BBox
	NoCompress bool

	Verbose         bool
	LogFile         string
	MetricsInterval time.Duration
}

// DefaultConfig returns the defaults applied before flags and
// profiles.
func DefaultConfig() *Config {
	return &Config{
		Workers:         runtime.NumCPU(),
		Partitions:      1,
		Shard:           0,
		BBox:            &BBox{},
		MetricsInterval: 30 * time.Second,
	}
}

// Validate checks the configuration for a run.
func (c *Config) Validate() error {
	if c.InputFile == "" {
		return fmt.Errorf("input file is required")
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1")
	}
	if c.Partitions < 1 {
		return fmt.Errorf("partitions must be at least 1")
	}
	if c.Shard < 0 || c.Shard >= c.Partitions {
		return fmt.Errorf("shard %d outside [0, %d)", c.Shard, c.Partitions)
	}
	return nil
}
