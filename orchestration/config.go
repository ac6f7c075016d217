package orchestration

import (
	"fmt"
	"time"
)

// Weights is the score contributed by each indicator when it fires.
type Weights struct {
	MultipleQuestions int `mapstructure:"multiple_questions" yaml:"multiple_questions" json:"multiple_questions"`
	LongContext       int `mapstructure:"long_context" yaml:"long_context" json:"long_context"`
	NumberedList      int `mapstructure:"numbered_list" yaml:"numbered_list" json:"numbered_list"`
	Legal             int `mapstructure:"legal" yaml:"legal" json:"legal"`
	AnalysisRequest   int `mapstructure:"analysis_request" yaml:"analysis_request" json:"analysis_request"`
	ResearchRequest   int `mapstructure:"research_request" yaml:"research_request" json:"research_request"`
	ListRequest       int `mapstructure:"list_request" yaml:"list_request" json:"list_request"`
	MultipleParts     int `mapstructure:"multiple_parts" yaml:"multiple_parts" json:"multiple_parts"`
	FileReferences    int `mapstructure:"file_references" yaml:"file_references" json:"file_references"`
}

// DefaultWeights returns the consolidated weight table.
func DefaultWeights() Weights {
	return Weights{
		MultipleQuestions: 2,
		LongContext:       3,
		NumberedList:      2,
		Legal:             2,
		AnalysisRequest:   1,
		ResearchRequest:   2,
		ListRequest:       1,
		MultipleParts:     2,
		FileReferences:    3,
	}
}

// Cutoffs are the minimum scores for each tier above simple.
type Cutoffs struct {
	Moderate     int `mapstructure:"moderate" yaml:"moderate" json:"moderate"`
	Complex      int `mapstructure:"complex" yaml:"complex" json:"complex"`
	MultiFaceted int `mapstructure:"multi_faceted" yaml:"multi_faceted" json:"multi_faceted"`
}

// DefaultCutoffs returns the consolidated tier cutoffs.
func DefaultCutoffs() Cutoffs {
	return Cutoffs{Moderate: 2, Complex: 4, MultiFaceted: 8}
}

// Validate checks the cutoffs are positive and strictly increasing.
func (c Cutoffs) Validate() error {
	if c.Moderate <= 0 || c.Complex <= c.Moderate || c.MultiFaceted <= c.Complex {
		return fmt.Errorf("tier cutoffs must satisfy 0 < moderate < complex < multi_faceted, got %d/%d/%d",
			c.Moderate, c.Complex, c.MultiFaceted)
	}
	return nil
}

// Config parameterizes the conductor and its components.
type Config struct {
	Weights Weights
	Cutoffs Cutoffs

	// LongWordThreshold is the word count above which a prompt is "long".
	LongWordThreshold int

	// MaxSubTasks caps a decomposition.
	MaxSubTasks int

	// Provider roles. Empty means the registry default.
	PrimaryProvider     string
	DecomposerProvider  string
	SynthesizerProvider string
	JudgeProvider       string

	// FallbackOrder is tried after the primary provider on the direct path.
	FallbackOrder []string

	// PowerDuo names the providers used by the power_duo mode.
	PowerDuo []string

	// StepTimeout bounds decomposition and synthesis calls.
	StepTimeout time.Duration

	// Project enrichment limits.
	ProjectSummaryChars int
	ProjectMaxFiles     int
}

// DefaultConfig returns the default conductor configuration.
func DefaultConfig() Config {
	return Config{
		Weights:             DefaultWeights(),
		Cutoffs:             DefaultCutoffs(),
		LongWordThreshold:   300,
		MaxSubTasks:         7,
		DecomposerProvider:  "gemini",
		SynthesizerProvider: "gemini",
		JudgeProvider:       "openai",
		FallbackOrder:       []string{"openai", "anthropic", "deepseek"},
		PowerDuo:            []string{"gemini", "deepseek"},
		StepTimeout:         45 * time.Second,
		ProjectSummaryChars: 400,
		ProjectMaxFiles:     10,
	}
}

// withDefaults fills zero values from DefaultConfig. Cutoffs that fail
// Validate are replaced as a whole.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Weights == (Weights{}) {
		c.Weights = def.Weights
	}
	if c.Cutoffs.Validate() != nil {
		c.Cutoffs = def.Cutoffs
	}
	if c.LongWordThreshold <= 0 {
		c.LongWordThreshold = def.LongWordThreshold
	}
	if c.MaxSubTasks <= 0 {
		c.MaxSubTasks = def.MaxSubTasks
	}
	if c.StepTimeout <= 0 {
		c.StepTimeout = def.StepTimeout
	}
	if c.ProjectSummaryChars <= 0 {
		c.ProjectSummaryChars = def.ProjectSummaryChars
	}
	if c.ProjectMaxFiles <= 0 {
		c.ProjectMaxFiles = def.ProjectMaxFiles
	}
	return c
}
