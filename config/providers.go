package config

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/richinex/conductor/llm"
)

// ErrNoProviders is returned when no provider has an API key.
var ErrNoProviders = errors.New("no LLM provider configured")

// KeyLookup returns the API key for a provider type.
type KeyLookup func(llm.ProviderType) (string, bool)

// EnvKeys looks keys up in the environment.
func EnvKeys(pt llm.ProviderType) (string, bool) {
	return pt.LookupAPIKey()
}

// GuardConfig returns the per-provider call limits.
func (s Settings) GuardConfig() llm.GuardConfig {
	g := llm.DefaultGuardConfig()
	g.Timeout = s.LLM.Timeout
	g.MaxRetries = uint64(s.LLM.MaxRetries)
	g.RequestsPerMinute = s.LLM.RequestsPerMinute
	return g
}

func (s Settings) enabled(pt llm.ProviderType) bool {
	if len(s.LLM.Enabled) == 0 {
		return true
	}
	for _, name := range s.LLM.Enabled {
		if other, err := llm.ParseProviderType(name); err == nil && other == pt {
			return true
		}
	}
	return false
}

// BuildRegistry constructs a guarded provider for every enabled provider
// that has an API key. observer and logger may be nil.
func (s Settings) BuildRegistry(keys KeyLookup, observer llm.CallObserver, logger *zap.Logger) (*llm.Registry, error) {
	if keys == nil {
		keys = EnvKeys
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	guard := s.GuardConfig()

	var providers []llm.Provider
	var missing []string
	for _, pt := range llm.AllProviderTypes {
		if !s.enabled(pt) {
			continue
		}
		key, ok := keys(pt)
		if !ok {
			missing = append(missing, pt.EnvVar())
			continue
		}
		model, err := s.ModelFor(pt.String())
		if err != nil {
			return nil, err
		}
		p, err := llm.NewProviderBuilder(pt).
			Model(model).
			BaseURL(s.LLM.BaseURLs[pt.String()]).
			MaxTokens(s.LLM.MaxTokens).
			Temperature(float32(s.LLM.Temperature)).
			APIKey(key)
		if err != nil {
			return nil, fmt.Errorf("failed to build %s provider: %w", pt, err)
		}
		providers = append(providers, llm.Guard(p, guard, observer, logger.Named("llm")))
		logger.Debug("provider configured", zap.String("provider", pt.String()), zap.String("model", model))
	}

	if len(providers) == 0 {
		return nil, fmt.Errorf("%w: set one of %s", ErrNoProviders, strings.Join(missing, ", "))
	}

	registry := llm.NewRegistry(providers...)
	if s.LLM.Default != "" {
		if err := registry.SetDefault(s.LLM.Default); err != nil {
			return nil, fmt.Errorf("default provider %q has no API key: %w", s.LLM.Default, err)
		}
	}
	return registry, nil
}
