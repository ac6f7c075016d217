package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/richinex/conductor/orchestration"
)

// WeightTable is the analyzer scoring scheme as stored on disk:
//
//	weights:
//	  legal: 3
//	cutoffs:
//	  complex: 5
//
// Keys left out keep their default values.
type WeightTable struct {
	Weights orchestration.Weights `yaml:"weights"`
	Cutoffs orchestration.Cutoffs `yaml:"cutoffs"`
}

// DefaultWeightTable returns the built-in scheme.
func DefaultWeightTable() WeightTable {
	return WeightTable{
		Weights: orchestration.DefaultWeights(),
		Cutoffs: orchestration.DefaultCutoffs(),
	}
}

// LoadWeightTable reads a weight table from a YAML file.
func LoadWeightTable(path string) (WeightTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return WeightTable{}, fmt.Errorf("failed to read weight table: %w", err)
	}
	return ParseWeightTable(data)
}

// ParseWeightTable decodes a weight table over the defaults and validates it.
func ParseWeightTable(data []byte) (WeightTable, error) {
	table := DefaultWeightTable()
	if err := yaml.Unmarshal(data, &table); err != nil {
		return WeightTable{}, fmt.Errorf("failed to parse weight table: %w", err)
	}
	if err := table.Cutoffs.Validate(); err != nil {
		return WeightTable{}, err
	}
	return table, nil
}

// Marshal renders the table as YAML.
func (t WeightTable) Marshal() ([]byte, error) {
	return yaml.Marshal(t)
}
