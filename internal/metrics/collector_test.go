package metrics

import (
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestCollectorEntities(t *testing.T) {
	c := NewCollector(time.Minute, zap.NewNop())
	c.AddEntities(10)
	c.AddEntities(5)

	c.collect()
	s := c.Last()
	if s == nil {
		t.Fatal("no snapshot after collect")
	}
	if s.Entities != 15 {
		t.Errorf("entities = %d, want 15", s.Entities)
	}
}

func TestCollectorMinimumInterval(t *testing.T) {
	c := NewCollector(10*time.Millisecond, zap.NewNop())
	if c.interval != 30*time.Second {
		t.Errorf("interval = %v, want 30s floor", c.interval)
	}
}
