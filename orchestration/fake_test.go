package orchestration

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/richinex/conductor/llm"
)

var errBoom = errors.New("boom")

// stubProvider answers through a function and records every call.
type stubProvider struct {
	name    string
	respond func(messages []llm.ChatMessage, format *llm.ResponseFormat) (string, error)

	mu      sync.Mutex
	calls   int
	prompts []string
	formats []*llm.ResponseFormat
}

func newStub(name string, respond func([]llm.ChatMessage, *llm.ResponseFormat) (string, error)) *stubProvider {
	return &stubProvider{name: name, respond: respond}
}

// answering always replies with text.
func answering(name, text string) *stubProvider {
	return newStub(name, func([]llm.ChatMessage, *llm.ResponseFormat) (string, error) {
		return text, nil
	})
}

// failing always returns errBoom.
func failing(name string) *stubProvider {
	return newStub(name, func([]llm.ChatMessage, *llm.ResponseFormat) (string, error) {
		return "", errBoom
	})
}

func (p *stubProvider) Name() string  { return p.name }
func (p *stubProvider) Model() string { return p.name + "-test" }

func (p *stubProvider) Chat(ctx context.Context, messages []llm.ChatMessage) (llm.LLMResponse, error) {
	return p.ChatWithFormat(ctx, messages, nil)
}

func (p *stubProvider) ChatWithFormat(ctx context.Context, messages []llm.ChatMessage, format *llm.ResponseFormat) (llm.LLMResponse, error) {
	p.mu.Lock()
	p.calls++
	if len(messages) > 0 {
		p.prompts = append(p.prompts, messages[len(messages)-1].Content)
	}
	p.formats = append(p.formats, format)
	p.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return llm.LLMResponse{}, err
	}
	text, err := p.respond(messages, format)
	if err != nil {
		return llm.LLMResponse{}, err
	}
	return llm.LLMResponse{
		Content: text,
		Usage:   &llm.TokenUsage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	}, nil
}

func (p *stubProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func (p *stubProvider) lastPrompt() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.prompts) == 0 {
		return ""
	}
	return p.prompts[len(p.prompts)-1]
}

// router answers decomposition, synthesis and sub-task prompts differently,
// which lets one stub play every role in a conduct run.
type router struct {
	plan      string
	synthesis string
	answer    func(prompt string) (string, error)
}

func (r router) respond(messages []llm.ChatMessage, _ *llm.ResponseFormat) (string, error) {
	if len(messages) > 1 && messages[0].Role == llm.RoleSystem {
		switch messages[0].Content {
		case decomposeSystem:
			return r.plan, nil
		case synthesizeSystem:
			if r.synthesis == "" {
				return "", errBoom
			}
			return r.synthesis, nil
		}
	}
	last := messages[len(messages)-1].Content
	if r.answer != nil {
		return r.answer(last)
	}
	return "answer to: " + firstLine(last), nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// recorderSpy counts recorder observations.
type recorderSpy struct {
	mu        sync.Mutex
	modes     []string
	fallbacks []string
}

func (r *recorderSpy) ObserveConduct(mode, tier string, _ time.Duration, _, _ int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.modes = append(r.modes, mode)
}

func (r *recorderSpy) ObserveFallback(stage string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallbacks = append(r.fallbacks, stage)
}
