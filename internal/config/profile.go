package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Profile is the YAML form of the tunable settings. Zero values leave
// the corresponding Config field untouched.
type Profile struct {
	Workers         int    `yaml:"workers"`
	Partitions      int    `yaml:"partitions"`
	Shard           *int   `yaml:"shard"`
	BBox            string `yaml:"bbox"`
	NoCompress      bool   `yaml:"no_compress"`
	LogFile         string `yaml:"log_file"`
	MetricsInterval string `yaml:"metrics_interval"`
}

// LoadProfile reads a YAML profile and applies it over c.
func LoadProfile(path string, c *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read profile: %w", err)
	}
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("parse profile %s: %w", path, err)
	}

	if p.Workers > 0 {
		c.Workers = p.Workers
	}
	if p.Partitions > 0 {
		c.Partitions = p.Partitions
	}
	if p.Shard != nil {
		c.Shard = *p.Shard
	}
	if p.BBox != "" {
		bbox, err := ParseBBox(p.BBox)
		if err != nil {
			return err
		}
		c.BBox = bbox
	}
	if p.NoCompress {
		c.NoCompress = true
	}
	if p.LogFile != "" {
		c.LogFile = p.LogFile
	}
	if p.MetricsInterval != "" {
		d, err := time.ParseDuration(p.MetricsInterval)
		if err != nil {
			return fmt.Errorf("metrics_interval: %w", err)
		}
		c.MetricsInterval = d
	}
	return nil
}
