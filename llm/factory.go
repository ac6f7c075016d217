// LLM Provider Factory - builder-first API for creating LLM providers.
//
// Every vendor is described once in providerSpecs: canonical name, label
// used in failure text, key variables, aliases, default model and, for
// OpenAI-compatible vendors, the endpoint.
//
//	gemini, err := llm.ProviderGemini.FromEnv()
//
//	grok, err := llm.ProviderGrok.
//	    Model(llm.ModelGrok3).
//	    MaxTokens(1200).
//	    Temperature(0.2).
//	    FromEnv()
//
//	hf, err := llm.ProviderHuggingFace.APIKey("hf_...")

package llm

import (
	"fmt"
	"os"
	"strings"
)

// ProviderType identifies one of the built-in vendors.
type ProviderType int

const (
	ProviderOpenAI ProviderType = iota
	ProviderAnthropic
	ProviderDeepSeek
	ProviderGemini
	ProviderGrok
	ProviderHuggingFace
)

// AllProviderTypes lists every provider in the default registry order.
var AllProviderTypes = []ProviderType{
	ProviderOpenAI,
	ProviderGemini,
	ProviderAnthropic,
	ProviderDeepSeek,
	ProviderGrok,
	ProviderHuggingFace,
}

type providerSpec struct {
	name    string
	label   string
	keys    []string
	aliases []string
	model   string
	// endpoint is set for vendors reached through the OpenAI client.
	// OpenAI itself leaves it empty and keeps the client default.
	endpoint string
	// compatible marks vendors served by OpenAIProvider.
	compatible bool
	// noJSONMode marks endpoints that reject response_format.
	noJSONMode bool
}

var providerSpecs = map[ProviderType]providerSpec{
	ProviderOpenAI: {
		name: "openai", label: "OpenAI", keys: []string{"OPENAI_API_KEY"},
		aliases: []string{"gpt"}, model: ModelOpenAIGPT4o, compatible: true,
	},
	ProviderAnthropic: {
		name: "anthropic", label: "Claude", keys: []string{"ANTHROPIC_API_KEY", "CLAUDE_API_KEY"},
		aliases: []string{"claude"}, model: ModelAnthropicClaudeSonnet4,
	},
	ProviderDeepSeek: {
		name: "deepseek", label: "DeepSeek", keys: []string{"DEEPSEEK_API_KEY"},
		model: ModelDeepSeekChat, endpoint: deepseekBaseURL, compatible: true,
	},
	ProviderGemini: {
		name: "gemini", label: "Gemini", keys: []string{"GEMINI_API_KEY", "GOOGLE_API_KEY"},
		aliases: []string{"google"}, model: ModelGeminiFlash2,
	},
	ProviderGrok: {
		name: "grok", label: "Grok", keys: []string{"GROK_API_KEY", "XAI_API_KEY"},
		aliases: []string{"xai"}, model: ModelGrokBeta, endpoint: grokBaseURL, compatible: true,
	},
	ProviderHuggingFace: {
		name: "huggingface", label: "HuggingFace", keys: []string{"HUGGINGFACE_API_KEY", "HF_TOKEN"},
		aliases: []string{"hf", "llama"}, model: ModelHFLlama3_8B, endpoint: huggingFaceBaseURL,
		compatible: true, noJSONMode: true,
	},
}

// String returns the canonical provider name.
func (p ProviderType) String() string {
	if spec, ok := providerSpecs[p]; ok {
		return spec.name
	}
	return "unknown"
}

// DisplayName returns the vendor label used in failure text.
func (p ProviderType) DisplayName() string {
	if spec, ok := providerSpecs[p]; ok {
		return spec.label
	}
	return "Unknown"
}

// EnvVars returns the variables checked for this provider's API key, in
// lookup order.
func (p ProviderType) EnvVars() []string {
	return providerSpecs[p].keys
}

// EnvVar returns the primary API key variable.
func (p ProviderType) EnvVar() string {
	if keys := p.EnvVars(); len(keys) > 0 {
		return keys[0]
	}
	return ""
}

// LookupAPIKey returns the first non-blank key among EnvVars.
func (p ProviderType) LookupAPIKey() (string, bool) {
	for _, name := range p.EnvVars() {
		if v := strings.TrimSpace(os.Getenv(name)); v != "" {
			return v, true
		}
	}
	return "", false
}

// DefaultModel returns the model used when none is configured.
func (p ProviderType) DefaultModel() string {
	return providerSpecs[p].model
}

// ParseProviderType resolves a canonical name or alias, ignoring case.
func ParseProviderType(s string) (ProviderType, error) {
	want := strings.ToLower(strings.TrimSpace(s))
	for _, pt := range AllProviderTypes {
		spec := providerSpecs[pt]
		if spec.name == want {
			return pt, nil
		}
		for _, alias := range spec.aliases {
			if alias == want {
				return pt, nil
			}
		}
	}
	return 0, fmt.Errorf("%w: %s", ErrUnknownProvider, s)
}

// FromEnv builds the provider with defaults and the key from the environment.
func (p ProviderType) FromEnv() (Provider, error) {
	return NewProviderBuilder(p).FromEnv()
}

// Model starts a builder with a specific model.
func (p ProviderType) Model(model string) *ProviderBuilder {
	return NewProviderBuilder(p).Model(model)
}

// APIKey builds the provider with an explicit key and defaults.
func (p ProviderType) APIKey(key string) (Provider, error) {
	return NewProviderBuilder(p).APIKey(key)
}

// ProviderBuilder configures a provider before construction.
type ProviderBuilder struct {
	providerType ProviderType
	model        string
	baseURL      string
	maxTokens    uint32
	temperature  *float32
}

// NewProviderBuilder returns a builder for pt.
func NewProviderBuilder(pt ProviderType) *ProviderBuilder {
	return &ProviderBuilder{providerType: pt}
}

// Model sets the model.
func (b *ProviderBuilder) Model(model string) *ProviderBuilder {
	b.model = model
	return b
}

// BaseURL overrides the endpoint of OpenAI-compatible vendors.
// Anthropic and Gemini ignore it.
func (b *ProviderBuilder) BaseURL(url string) *ProviderBuilder {
	b.baseURL = url
	return b
}

// MaxTokens caps the reply length.
func (b *ProviderBuilder) MaxTokens(tokens uint32) *ProviderBuilder {
	b.maxTokens = tokens
	return b
}

// Temperature sets the sampling temperature.
func (b *ProviderBuilder) Temperature(temp float32) *ProviderBuilder {
	b.temperature = &temp
	return b
}

// FromEnv builds the provider with the key from the environment.
func (b *ProviderBuilder) FromEnv() (Provider, error) {
	key, ok := b.providerType.LookupAPIKey()
	if !ok {
		return nil, fmt.Errorf("%s: %s environment variable not set",
			b.providerType, strings.Join(b.providerType.EnvVars(), " or "))
	}
	return b.build(key)
}

// APIKey builds the provider with an explicit key.
func (b *ProviderBuilder) APIKey(key string) (Provider, error) {
	return b.build(key)
}

func (b *ProviderBuilder) build(apiKey string) (Provider, error) {
	spec, ok := providerSpecs[b.providerType]
	if !ok {
		return nil, fmt.Errorf("unknown provider type: %d", int(b.providerType))
	}

	model := b.model
	if model == "" {
		model = spec.model
	}
	maxTokens := b.maxTokens
	if maxTokens == 0 {
		maxTokens = DefaultMaxTokens
	}
	temperature := float32(DefaultTemperature)
	if b.temperature != nil {
		temperature = *b.temperature
	}

	if spec.compatible {
		endpoint := spec.endpoint
		if b.baseURL != "" {
			endpoint = b.baseURL
		}
		p := NewCompatibleProvider(spec.name, endpoint, apiKey, model, maxTokens, temperature)
		p.jsonMode = !spec.noJSONMode
		return p, nil
	}

	switch b.providerType {
	case ProviderAnthropic:
		return NewAnthropicProvider(apiKey, model, maxTokens, temperature), nil
	case ProviderGemini:
		return NewGeminiProvider(apiKey, model, maxTokens, temperature), nil
	}
	return nil, fmt.Errorf("no adapter for provider %s", spec.name)
}

// Request defaults shared by all providers.
const (
	DefaultMaxTokens   = 2000
	DefaultTemperature = 0.7
)

// Model identifier constants for all supported providers.

// OpenAI model identifiers
const (
	ModelOpenAIGPT4o     = "gpt-4o"
	ModelOpenAIGPT4oMini = "gpt-4o-mini"
)

// Anthropic model identifiers
const (
	ModelAnthropicClaudeSonnet4 = "claude-sonnet-4-20250514"
	ModelAnthropicClaudeHaiku35 = "claude-3-5-haiku-20241022"
)

// DeepSeek model identifiers
const (
	ModelDeepSeekChat     = "deepseek-chat"
	ModelDeepSeekReasoner = "deepseek-reasoner"
)

// Gemini model identifiers
const (
	ModelGeminiFlash2  = "gemini-2.0-flash"
	ModelGeminiFlash25 = "gemini-2.5-flash"
	ModelGeminiPro25   = "gemini-2.5-pro"
)

// Grok model identifiers
const (
	ModelGrokBeta = "grok-beta"
	ModelGrok3    = "grok-3"
)

// HuggingFace model identifiers
const (
	ModelHFLlama3_8B = "meta-llama/Meta-Llama-3-8B-Instruct"
)
