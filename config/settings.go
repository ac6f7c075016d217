// Package config provides application settings loaded from an optional
// config file and environment variables.
//
// Settings are created via Load() which handles:
// - Default values for every key
// - An optional YAML file (path argument or CONDUCTOR_CONFIG)
// - CONDUCTOR_* environment overrides plus the LLM_* and <PROVIDER>_MODEL variables
// - Validation of the result

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/richinex/conductor/llm"
	"github.com/richinex/conductor/orchestration"
)

// EnvConfigPath names the variable holding the config file path.
const EnvConfigPath = "CONDUCTOR_CONFIG"

// Settings holds all application configuration.
type Settings struct {
	LLM       LLMConfig       `mapstructure:"llm"`
	Conductor ConductorConfig `mapstructure:"conductor"`
	Server    ServerConfig    `mapstructure:"server"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
}

// LLMConfig holds settings shared by every provider.
type LLMConfig struct {
	// Default is the provider used when no role names one. Empty means the
	// first provider with an API key.
	Default           string            `mapstructure:"default"`
	MaxTokens         uint32            `mapstructure:"max_tokens"`
	Temperature       float64           `mapstructure:"temperature"`
	Timeout           time.Duration     `mapstructure:"timeout"`
	MaxRetries        int               `mapstructure:"max_retries"`
	RequestsPerMinute int               `mapstructure:"requests_per_minute"`
	Models            map[string]string `mapstructure:"models"`
	BaseURLs          map[string]string `mapstructure:"base_urls"`
	// Enabled restricts which providers are built. Empty means all with a key.
	Enabled []string `mapstructure:"enabled"`
}

// ConductorConfig mirrors orchestration.Config.
type ConductorConfig struct {
	Weights             orchestration.Weights `mapstructure:"weights"`
	Cutoffs             orchestration.Cutoffs `mapstructure:"cutoffs"`
	WeightsFile         string                `mapstructure:"weights_file"`
	LongWordThreshold   int                   `mapstructure:"long_word_threshold"`
	MaxSubTasks         int                   `mapstructure:"max_sub_tasks"`
	PrimaryProvider     string                `mapstructure:"primary_provider"`
	DecomposerProvider  string                `mapstructure:"decomposer_provider"`
	SynthesizerProvider string                `mapstructure:"synthesizer_provider"`
	JudgeProvider       string                `mapstructure:"judge_provider"`
	FallbackOrder       []string              `mapstructure:"fallback_order"`
	PowerDuo            []string              `mapstructure:"power_duo"`
	StepTimeout         time.Duration         `mapstructure:"step_timeout"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr         string        `mapstructure:"addr"`
	AuthToken    string        `mapstructure:"auth_token"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// StorageConfig selects the conversation store.
type StorageConfig struct {
	// Backend is "sqlite" or "memory".
	Backend string `mapstructure:"backend"`
	Path    string `mapstructure:"path"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// TracingConfig holds OpenTelemetry export settings.
type TracingConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	ServiceName  string `mapstructure:"service_name"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	Insecure     bool   `mapstructure:"insecure"`
}

func setDefaults(v *viper.Viper) {
	def := orchestration.DefaultConfig()

	v.SetDefault("llm.default", "")
	v.SetDefault("llm.max_tokens", llm.DefaultMaxTokens)
	v.SetDefault("llm.temperature", llm.DefaultTemperature)
	v.SetDefault("llm.timeout", 30*time.Second)
	v.SetDefault("llm.max_retries", 2)
	v.SetDefault("llm.requests_per_minute", 0)
	v.SetDefault("llm.enabled", []string{})

	w := def.Weights
	v.SetDefault("conductor.weights.multiple_questions", w.MultipleQuestions)
	v.SetDefault("conductor.weights.long_context", w.LongContext)
	v.SetDefault("conductor.weights.numbered_list", w.NumberedList)
	v.SetDefault("conductor.weights.legal", w.Legal)
	v.SetDefault("conductor.weights.analysis_request", w.AnalysisRequest)
	v.SetDefault("conductor.weights.research_request", w.ResearchRequest)
	v.SetDefault("conductor.weights.list_request", w.ListRequest)
	v.SetDefault("conductor.weights.multiple_parts", w.MultipleParts)
	v.SetDefault("conductor.weights.file_references", w.FileReferences)
	v.SetDefault("conductor.cutoffs.moderate", def.Cutoffs.Moderate)
	v.SetDefault("conductor.cutoffs.complex", def.Cutoffs.Complex)
	v.SetDefault("conductor.cutoffs.multi_faceted", def.Cutoffs.MultiFaceted)
	v.SetDefault("conductor.weights_file", "")
	v.SetDefault("conductor.long_word_threshold", def.LongWordThreshold)
	v.SetDefault("conductor.max_sub_tasks", def.MaxSubTasks)
	v.SetDefault("conductor.primary_provider", def.PrimaryProvider)
	v.SetDefault("conductor.decomposer_provider", def.DecomposerProvider)
	v.SetDefault("conductor.synthesizer_provider", def.SynthesizerProvider)
	v.SetDefault("conductor.judge_provider", def.JudgeProvider)
	v.SetDefault("conductor.fallback_order", def.FallbackOrder)
	v.SetDefault("conductor.power_duo", def.PowerDuo)
	v.SetDefault("conductor.step_timeout", def.StepTimeout)

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.auth_token", "")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 5*time.Minute)

	v.SetDefault("storage.backend", "sqlite")
	v.SetDefault("storage.path", defaultStoragePath())

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "conductor")
	v.SetDefault("tracing.otlp_endpoint", "localhost:4317")
	v.SetDefault("tracing.insecure", true)
}

func defaultStoragePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".conductor/conductor.db"
	}
	return home + "/.conductor/conductor.db"
}

// Load reads settings from path (or $CONDUCTOR_CONFIG when path is empty)
// and the environment. A missing path is not an error; an unreadable file is.
func Load(path string) (Settings, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("CONDUCTOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Settings{}, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return Settings{}, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := applyLegacyEnv(&s); err != nil {
		return Settings{}, err
	}

	if s.Conductor.WeightsFile != "" {
		table, err := LoadWeightTable(s.Conductor.WeightsFile)
		if err != nil {
			return Settings{}, err
		}
		s.Conductor.Weights = table.Weights
		s.Conductor.Cutoffs = table.Cutoffs
	}

	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// applyLegacyEnv honors the unprefixed LLM_* variables.
func applyLegacyEnv(s *Settings) error {
	maxTokens, err := getEnvUint32("LLM_MAX_TOKENS", s.LLM.MaxTokens)
	if err != nil {
		return err
	}
	temperature, err := getEnvFloat64("LLM_TEMPERATURE", s.LLM.Temperature)
	if err != nil {
		return err
	}
	retries, err := getEnvInt("LLM_MAX_RETRIES", s.LLM.MaxRetries)
	if err != nil {
		return err
	}
	s.LLM.MaxTokens = maxTokens
	s.LLM.Temperature = temperature
	s.LLM.MaxRetries = retries
	if p := os.Getenv("LLM_PROVIDER"); p != "" && s.LLM.Default == "" {
		s.LLM.Default = p
	}
	return nil
}

// Validate checks values that would otherwise fail later and obscurely.
func (s Settings) Validate() error {
	if err := s.Conductor.Cutoffs.Validate(); err != nil {
		return err
	}
	if s.LLM.Temperature < 0 || s.LLM.Temperature > 2 {
		return fmt.Errorf("llm.temperature must be between 0 and 2, got %v", s.LLM.Temperature)
	}
	if s.LLM.MaxRetries < 0 {
		return fmt.Errorf("llm.max_retries must not be negative, got %d", s.LLM.MaxRetries)
	}
	if s.Conductor.MaxSubTasks < 1 {
		return fmt.Errorf("conductor.max_sub_tasks must be at least 1, got %d", s.Conductor.MaxSubTasks)
	}
	if s.LLM.Default != "" {
		if _, err := llm.ParseProviderType(s.LLM.Default); err != nil {
			return fmt.Errorf("llm.default: %w", err)
		}
	}
	switch s.Storage.Backend {
	case "sqlite", "memory":
	default:
		return fmt.Errorf("storage.backend must be sqlite or memory, got %q", s.Storage.Backend)
	}
	return nil
}

// Orchestration converts the conductor section to an orchestration.Config.
func (s Settings) Orchestration() orchestration.Config {
	c := s.Conductor
	return orchestration.Config{
		Weights:             c.Weights,
		Cutoffs:             c.Cutoffs,
		LongWordThreshold:   c.LongWordThreshold,
		MaxSubTasks:         c.MaxSubTasks,
		PrimaryProvider:     c.PrimaryProvider,
		DecomposerProvider:  c.DecomposerProvider,
		SynthesizerProvider: c.SynthesizerProvider,
		JudgeProvider:       c.JudgeProvider,
		FallbackOrder:       c.FallbackOrder,
		PowerDuo:            c.PowerDuo,
		StepTimeout:         c.StepTimeout,
	}
}

// ModelFor returns the model for a provider: the llm.models entry, then
// <PROVIDER>_MODEL, then the provider default.
func (s Settings) ModelFor(provider string) (string, error) {
	pt, err := llm.ParseProviderType(provider)
	if err != nil {
		return "", err
	}
	if m := s.LLM.Models[pt.String()]; m != "" {
		return m, nil
	}
	if val := os.Getenv(strings.ToUpper(pt.String()) + "_MODEL"); val != "" {
		return val, nil
	}
	return pt.DefaultModel(), nil
}

// SupportedProviders returns the canonical provider names.
func SupportedProviders() []string {
	result := make([]string, 0, len(llm.AllProviderTypes))
	for _, pt := range llm.AllProviderTypes {
		result = append(result, pt.String())
	}
	return result
}

// Environment variable helpers with proper error handling

func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return i, nil
}

func getEnvUint32(key string, defaultVal uint32) (uint32, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	i, err := strconv.ParseUint(val, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return uint32(i), nil
}

func getEnvFloat64(key string, defaultVal float64) (float64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return f, nil
}
