// OpenAI-compatible Provider implementation using go-openai library.
//
// Information Hiding:
// - API endpoint and authentication
// - Request/response format for the Chat Completions API
// - Vendor base URLs for DeepSeek, Grok and the HuggingFace router,
//   which all speak the same wire format

package llm

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

const (
	deepseekBaseURL    = "https://api.deepseek.com/v1"
	grokBaseURL        = "https://api.x.ai/v1"
	huggingFaceBaseURL = "https://router.huggingface.co/v1"
)

// OpenAIProvider implements the Provider interface for OpenAI and for
// vendors exposing an OpenAI-compatible endpoint.
type OpenAIProvider struct {
	name        string
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
	jsonMode    bool
}

// NewCompatibleProvider creates a provider for any OpenAI-compatible endpoint.
// An empty baseURL keeps the go-openai default (api.openai.com). Use the
// ProviderType builders for the built-in vendors.
func NewCompatibleProvider(name, baseURL, apiKey, model string, maxTokens uint32, temperature float32) *OpenAIProvider {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = strings.TrimRight(baseURL, "/")
	}

	return &OpenAIProvider{
		name:        name,
		client:      openai.NewClientWithConfig(config),
		model:       model,
		maxTokens:   int(maxTokens),
		temperature: temperature,
		jsonMode:    true,
	}
}

func (p *OpenAIProvider) Name() string  { return p.name }
func (p *OpenAIProvider) Model() string { return p.model }

// Chat sends a chat completion request.
func (p *OpenAIProvider) Chat(ctx context.Context, messages []ChatMessage) (LLMResponse, error) {
	return p.ChatWithFormat(ctx, messages, nil)
}

// ChatWithFormat sends a chat completion request. JSON output is requested
// through response_format unless the endpoint does not support it.
func (p *OpenAIProvider) ChatWithFormat(ctx context.Context, messages []ChatMessage, format *ResponseFormat) (LLMResponse, error) {
	resp, err := p.client.CreateChatCompletion(ctx, p.request(messages, wantsJSON(format)))
	if err != nil {
		return LLMResponse{}, fmt.Errorf("chat completion failed: %w", err)
	}

	var text string
	if len(resp.Choices) > 0 {
		text = resp.Choices[0].Message.Content
	}
	u := resp.Usage
	return finish(p.name, text, newUsage(int64(u.PromptTokens), int64(u.CompletionTokens), int64(u.TotalTokens)))
}

func (p *OpenAIProvider) request(messages []ChatMessage, jsonOut bool) openai.ChatCompletionRequest {
	req := openai.ChatCompletionRequest{
		Model:       p.model,
		MaxTokens:   p.maxTokens,
		Temperature: p.temperature,
		Messages:    make([]openai.ChatCompletionMessage, 0, len(messages)),
	}
	for _, msg := range messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{Role: msg.Role, Content: msg.Content})
	}
	if jsonOut && p.jsonMode {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	}
	return req
}

var _ Provider = (*OpenAIProvider)(nil)
