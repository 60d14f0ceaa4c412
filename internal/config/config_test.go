package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestParseBBox(t *testing.T) {
	bbox, err := ParseBBox("-0.5,51.2,0.3,51.7")
	if err != nil {
		t.Fatalf("ParseBBox failed: %v", err)
	}
	if !bbox.IsSet {
		t.Error("expected bbox to be set")
	}
	if bbox.MinLon != -0.5 || bbox.MaxLat != 51.7 {
		t.Errorf("unexpected bbox: %+v", bbox)
	}

	if !bbox.Contains(51.5, 0.0) {
		t.Error("point inside bbox reported outside")
	}
	if bbox.Contains(52.0, 0.0) {
		t.Error("point outside bbox reported inside")
	}
}

func TestParseBBoxEmpty(t *testing.T) {
	bbox, err := ParseBBox("")
	if err != nil {
		t.Fatalf("ParseBBox failed: %v", err)
	}
	if bbox.IsSet {
		t.Error("empty string should give an unset bbox")
	}
	if !bbox.Contains(89.0, 179.0) {
		t.Error("unset bbox must contain everything")
	}
}

func TestParseBBoxErrors(t *testing.T) {
	cases := []string{
		"1,2,3",
		"a,b,c,d",
		"1,2,0,3",
		"0,2,1,1",
	}
	for _, c := range cases {
		if _, err := ParseBBox(c); err == nil {
			t.Errorf("ParseBBox(%q) should fail", c)
		}
	}
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err == nil {
		t.Error("missing input file should fail validation")
	}

	cfg.InputFile = "some.pbf"
	if err := cfg.Validate(); err != nil {
		t.Errorf("valid config rejected: %v", err)
	}

	cfg.Workers = 0
	if err := cfg.Validate(); err == nil {
		t.Error("zero workers should fail validation")
	}
	cfg.Workers = 4

	cfg.Partitions = 2
	cfg.Shard = 2
	if err := cfg.Validate(); err == nil {
		t.Error("shard outside partitions should fail validation")
	}
}

func TestLoadProfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.yaml")
	content := `
workers: 6
partitions: 3
shard: 1
bbox: "-1,50,1,52"
no_compress: true
metrics_interval: 10s
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg := DefaultConfig()
	if err := LoadProfile(path, cfg); err != nil {
		t.Fatalf("LoadProfile failed: %v", err)
	}
	if cfg.Workers != 6 {
		t.Errorf("workers = %d, want 6", cfg.Workers)
	}
	if cfg.Partitions != 3 || cfg.Shard != 1 {
		t.Errorf("partitions/shard = %d/%d, want 3/1", cfg.Partitions, cfg.Shard)
	}
	if !cfg.BBox.IsSet {
		t.Error("bbox should be set")
	}
	if !cfg.NoCompress {
		t.Error("no_compress should be set")
	}
	if cfg.MetricsInterval != 10*time.Second {
		t.Errorf("metrics interval = %v, want 10s", cfg.MetricsInterval)
	}
}

func TestLoadProfileMissingFile(t *testing.T) {
	cfg := DefaultConfig()
	if err := LoadProfile("/does/not/exist.yaml", cfg); err == nil {
		t.Error("missing profile should fail")
	}
}
