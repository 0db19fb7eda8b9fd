package controller

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/thsslxf/hadoop-ev/pkg/catalog"
	"github.com/thsslxf/hadoop-ev/pkg/collector"
	"github.com/thsslxf/hadoop-ev/pkg/config"
	"github.com/thsslxf/hadoop-ev/pkg/jobrt"
)

func testGenerators() map[string]jobrt.Generator {
	return map[string]jobrt.Generator{
		"A": func(rng *rand.Rand) (float64, float64) { return 10 + rng.Float64()*2, 5 + rng.Float64() },
		"B": func(rng *rand.Rand) (float64, float64) { return 20 + rng.Float64()*10, 3 + rng.Float64() },
	}
}

func TestRunProducesEstimateWithinDeadline(t *testing.T) {
	cfg := config.Default()
	cfg.Cluster.DataNodes = 2
	cfg.Cluster.MaxMapsPerNode = 2
	cfg.Deadline.Seconds = 2
	cfg.Sample.SizePerFolder = 5

	cat := &catalog.Catalog{Strata: []string{"A", "B"}}
	rng := rand.New(rand.NewSource(1))
	runtime := jobrt.NewLocalRuntime(testGenerators(), rng)
	coll := collector.New()

	ctrl, err := New(cfg, cat, runtime, coll, rng)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	res, err := ctrl.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.PointEstimate <= 0 {
		t.Errorf("PointEstimate = %v, want > 0", res.PointEstimate)
	}
	if res.MarginOfError < 0 {
		t.Errorf("MarginOfError = %v, want >= 0", res.MarginOfError)
	}
}

func TestRunRejectsEmptyCatalog(t *testing.T) {
	cfg := config.Default()
	cfg.Cluster.DataNodes = 1
	cfg.Cluster.MaxMapsPerNode = 1
	cat := &catalog.Catalog{}
	rng := rand.New(rand.NewSource(1))
	runtime := jobrt.NewLocalRuntime(testGenerators(), rng)

	ctrl, err := New(cfg, cat, runtime, collector.New(), rng)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = ctrl.Run(context.Background())
	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected *ConfigurationError, got %v", err)
	}
}

func TestRunRejectsZeroSlots(t *testing.T) {
	cfg := config.Default()
	cfg.Cluster.DataNodes = 0
	cfg.Cluster.MaxMapsPerNode = 2
	cat := &catalog.Catalog{Strata: []string{"A"}}
	rng := rand.New(rand.NewSource(1))
	runtime := jobrt.NewLocalRuntime(testGenerators(), rng)

	ctrl, err := New(cfg, cat, runtime, collector.New(), rng)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = ctrl.Run(context.Background())
	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected *ConfigurationError, got %v", err)
	}
}

func TestRunReportsStarvationOnEmptyPlan(t *testing.T) {
	cfg := config.Default()
	cfg.Cluster.DataNodes = 1
	cfg.Cluster.MaxMapsPerNode = 1
	cfg.Sample.SizePerFolder = 0

	cat := &catalog.Catalog{Strata: []string{"A"}}
	rng := rand.New(rand.NewSource(1))
	runtime := jobrt.NewLocalRuntime(testGenerators(), rng)

	ctrl, err := New(cfg, cat, runtime, collector.New(), rng)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = ctrl.Run(context.Background())
	var starve *SamplerStarvation
	if !errors.As(err, &starve) {
		t.Fatalf("expected *SamplerStarvation, got %v", err)
	}
}

func TestRunRejectsDeadlineAlreadyPassed(t *testing.T) {
	cfg := config.Default()
	cfg.Cluster.DataNodes = 1
	cfg.Cluster.MaxMapsPerNode = 1
	cfg.Deadline.Seconds = -1 // deadline already in the past at start

	cat := &catalog.Catalog{Strata: []string{"A"}}
	rng := rand.New(rand.NewSource(1))
	runtime := jobrt.NewLocalRuntime(testGenerators(), rng)

	ctrl, err := New(cfg, cat, runtime, collector.New(), rng)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = ctrl.Run(context.Background())
	var deadlineErr *DeadlineExceeded
	if !errors.As(err, &deadlineErr) {
		t.Fatalf("expected *DeadlineExceeded, got %v", err)
	}
}

func TestRunDoesNotExceedDeadlineWallClock(t *testing.T) {
	cfg := config.Default()
	cfg.Cluster.DataNodes = 2
	cfg.Cluster.MaxMapsPerNode = 2
	cfg.Deadline.Seconds = 1
	cfg.Sample.SizePerFolder = 3

	cat := &catalog.Catalog{Strata: []string{"A", "B"}}
	rng := rand.New(rand.NewSource(2))
	runtime := jobrt.NewLocalRuntime(testGenerators(), rng)

	ctrl, err := New(cfg, cat, runtime, collector.New(), rng)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	started := time.Now()
	if _, err := ctrl.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if elapsed := time.Since(started); elapsed > 5*time.Second {
		t.Errorf("Run took %s, want well under the 1s deadline plus overhead", elapsed)
	}
}
