package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestPitchName(t *testing.T) {
	tests := map[uint8]string{0: "C-1", 60: "C4", 61: "C#4", 69: "A4", 127: "G9"}
	for pitch, want := range tests {
		if got := pitchName(pitch); got != want {
			t.Errorf("pitch %d: expected %s, got %s", pitch, want, got)
		}
	}
}

func TestLoadConfigFlagsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	if err := os.WriteFile(path, []byte("ignoreNoteOff: false\nvelocityCurve: 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := loadConfig(options{configPath: path, ignoreNoteOff: true})
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if !cfg.IgnoreNoteOff || cfg.VelocityCurve != 1 {
		t.Errorf("expected flag override and file value, got %+v", cfg)
	}

	if _, err := loadConfig(options{configPath: filepath.Join(t.TempDir(), "nope.yaml")}); err == nil {
		t.Errorf("expected error for missing config")
	}
}
