package config

import (
	"path/filepath"
	"testing"

	"github.com/richinex/conductor/orchestration"
)

func TestParseWeightTablePartial(t *testing.T) {
	table, err := ParseWeightTable([]byte("weights:\n  legal: 4\ncutoffs:\n  multi_faceted: 10\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if table.Weights.Legal != 4 {
		t.Errorf("expected legal 4, got %d", table.Weights.Legal)
	}
	if table.Weights.LongContext != orchestration.DefaultWeights().LongContext {
		t.Errorf("expected default long_context, got %d", table.Weights.LongContext)
	}
	if table.Cutoffs.MultiFaceted != 10 || table.Cutoffs.Complex != 4 {
		t.Errorf("unexpected cutoffs %+v", table.Cutoffs)
	}
}

func TestParseWeightTableEmpty(t *testing.T) {
	table, err := ParseWeightTable(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if table != DefaultWeightTable() {
		t.Errorf("expected defaults, got %+v", table)
	}
}

func TestParseWeightTableInvalid(t *testing.T) {
	if _, err := ParseWeightTable([]byte("weights: [1, 2")); err == nil {
		t.Error("expected error for malformed YAML")
	}
	if _, err := ParseWeightTable([]byte("cutoffs:\n  complex: 1\n")); err == nil {
		t.Error("expected error for non-increasing cutoffs")
	}
}

func TestWeightTableRoundTrip(t *testing.T) {
	data, err := DefaultWeightTable().Marshal()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	table, err := ParseWeightTable(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if table != DefaultWeightTable() {
		t.Errorf("round trip changed the table: %+v", table)
	}
}

func TestLoadUsesWeightsFile(t *testing.T) {
	cleanEnv(t)
	weights := writeFile(t, "weights.yaml", "weights:\n  legal: 7\n")
	cfg := writeFile(t, "conductor.yaml", "conductor:\n  weights_file: "+weights+"\n")

	s, err := Load(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Conductor.Weights.Legal != 7 {
		t.Errorf("expected legal 7 from weights file, got %d", s.Conductor.Weights.Legal)
	}
}

func TestLoadWeightTableMissing(t *testing.T) {
	if _, err := LoadWeightTable(filepath.Join(t.TempDir(), "none.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
