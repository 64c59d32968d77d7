package main

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/RickyDenton/SafeTunnels/internal/connectivity"
)

func TestLoadScenario(t *testing.T) {
	sc, err := loadScenario("", 35)
	if err != nil {
		t.Fatalf("constant: %v", err)
	}
	if sc.Phases[0].Correlation != 35 {
		t.Fatalf("correlation = %d", sc.Phases[0].Correlation)
	}

	if _, err := loadScenario("", 101); !errors.Is(err, connectivity.ErrCorrelationRange) {
		t.Fatalf("err = %v, want range error", err)
	}

	sc, err = loadScenario("ventilation", 0)
	if err != nil || sc.Name != "Ventilation" {
		t.Fatalf("built-in: %v %+v", err, sc)
	}

	path := filepath.Join(t.TempDir(), "custom.yaml")
	os.WriteFile(path, []byte("name: custom\nphases:\n  - name: only\n    correlation: 5\n"), 0o644)
	sc, err = loadScenario(path, 0)
	if err != nil || sc.Name != "custom" {
		t.Fatalf("file: %v %+v", err, sc)
	}

	if _, err := loadScenario("tornado", 0); err == nil {
		t.Fatal("expected error for unknown scenario")
	}
}
