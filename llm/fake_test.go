package llm

import (
	"context"
	"sync"
)

// scriptedProvider returns queued results in order; the last entry repeats.
type scriptedProvider struct {
	name  string
	model string

	mu       sync.Mutex
	results  []scriptedResult
	calls    int
	lastMsgs []ChatMessage
	lastFmt  *ResponseFormat
}

type scriptedResult struct {
	content string
	err     error
}

func newScripted(name string, results ...scriptedResult) *scriptedProvider {
	return &scriptedProvider{name: name, model: name + "-model", results: results}
}

func (p *scriptedProvider) Name() string  { return p.name }
func (p *scriptedProvider) Model() string { return p.model }

func (p *scriptedProvider) Chat(ctx context.Context, messages []ChatMessage) (LLMResponse, error) {
	return p.ChatWithFormat(ctx, messages, nil)
}

func (p *scriptedProvider) ChatWithFormat(ctx context.Context, messages []ChatMessage, format *ResponseFormat) (LLMResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastMsgs = append([]ChatMessage(nil), messages...)
	p.lastFmt = format
	idx := p.calls
	p.calls++
	if len(p.results) == 0 {
		return LLMResponse{Content: "ok"}, nil
	}
	if idx >= len(p.results) {
		idx = len(p.results) - 1
	}
	r := p.results[idx]
	if r.err != nil {
		return LLMResponse{}, r.err
	}
	return LLMResponse{Content: r.content, Usage: &TokenUsage{PromptTokens: 1, CompletionTokens: 1, TotalTokens: 2}}, nil
}

func (p *scriptedProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}
