package catalog

import (
	"os"
	"path/filepath"
	"testing"
)

func TestStratum(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/data/A/part-0001", "A"},
		{"/data/B/sub/part-0002", "sub"},
		{"onefile", ""},
		{"", ""},
		{"/", ""},
	}
	for _, tt := range tests {
		if got := Stratum(tt.path); got != tt.want {
			t.Errorf("Stratum(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestBuild(t *testing.T) {
	root := t.TempDir()
	for _, s := range []string{"A", "B"} {
		if err := os.MkdirAll(filepath.Join(root, s), 0755); err != nil {
			t.Fatal(err)
		}
		for i := 0; i < 3; i++ {
			p := filepath.Join(root, s, "part-"+string(rune('0'+i)))
			if err := os.WriteFile(p, []byte("xxxx"), 0644); err != nil {
				t.Fatal(err)
			}
		}
	}

	cat, err := Build(root)
	if err != nil {
		t.Fatal(err)
	}
	if cat.N() != 6 {
		t.Errorf("N() = %d, want 6", cat.N())
	}
	if len(cat.Strata) != 2 {
		t.Errorf("len(Strata) = %d, want 2", len(cat.Strata))
	}
	for _, r := range cat.Files {
		if r.Stratum != "A" && r.Stratum != "B" {
			t.Errorf("unexpected stratum %q for %s", r.Stratum, r.Path)
		}
	}
}
