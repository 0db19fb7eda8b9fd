package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "cfg.yaml")
	yamlBody := "cluster:\n  datanodes: 4\n  tasktrackerMapTasksMaximum: 2\n"
	if err := os.WriteFile(p, []byte(yamlBody), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(p)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Deadline.Seconds != 120 {
		t.Errorf("Deadline.Seconds = %d, want 120", cfg.Deadline.Seconds)
	}
	if cfg.Sample.SizePerFolder != 30 {
		t.Errorf("Sample.SizePerFolder = %d, want 30", cfg.Sample.SizePerFolder)
	}
	if cfg.Slots() != 8 {
		t.Errorf("Slots() = %d, want 8", cfg.Slots())
	}
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "out.yaml")

	cfg := Default()
	cfg.Cluster.DataNodes = 3
	if err := Save(p, cfg); err != nil {
		t.Fatal(err)
	}

	got, err := Load(p)
	if err != nil {
		t.Fatal(err)
	}
	if got.Cluster.DataNodes != 3 {
		t.Errorf("Cluster.DataNodes = %d, want 3", got.Cluster.DataNodes)
	}
}
