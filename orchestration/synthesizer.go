package orchestration

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/richinex/conductor/llm"
)

// Synthesis is the synthesizer's output. Text is never empty.
type Synthesis struct {
	Text     string
	Fallback bool
	// LLMUsed is false when no synthesis call was made.
	LLMUsed  bool
	Provider string
	Usage    *llm.TokenUsage
	Error    string
}

// Synthesizer merges sub-task answers into one response.
type Synthesizer struct {
	registry *llm.Registry
	provider string
	timeout  time.Duration
	logger   *zap.Logger
}

// NewSynthesizer creates a synthesizer using cfg.SynthesizerProvider,
// or the registry default when that is not registered.
func NewSynthesizer(registry *llm.Registry, cfg Config, logger *zap.Logger) *Synthesizer {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Synthesizer{
		registry: registry,
		provider: cfg.SynthesizerProvider,
		timeout:  cfg.StepTimeout,
		logger:   logger,
	}
}

// Synthesize combines tasks into a final answer for prompt.
//
// No successful task yields the all-tasks-failed message. A plan of one
// successful task returns its answer unchanged. Otherwise one provider call
// merges the answers, and a failed or blank merge falls back to concatenation.
func (s *Synthesizer) Synthesize(ctx context.Context, prompt string, tasks []SubTask) Synthesis {
	succeeded, _ := countOutcomes(tasks)
	if succeeded == 0 {
		return Synthesis{Text: apologyAllTasksFailed, Fallback: true}
	}
	if len(tasks) == 1 {
		return Synthesis{Text: tasks[0].Answer}
	}

	p := s.registry.Resolve(s.provider)
	if p == nil {
		return Synthesis{Text: concatenateAnswers(tasks), Fallback: true, Error: "no provider configured"}
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	reply, err := llm.NewClient(p).QueryMessages(callCtx, []llm.ChatMessage{
		llm.SystemMessage(synthesizeSystem),
		llm.UserMessage(synthesisPrompt(prompt, tasks)),
	}, nil)

	out := Synthesis{LLMUsed: true, Provider: p.Name(), Usage: reply.Usage}
	if err != nil || strings.TrimSpace(reply.Text) == "" {
		if err == nil {
			err = llm.ErrEmptyResponse
		}
		s.logger.Warn("synthesis failed, concatenating answers",
			zap.String("provider", p.Name()),
			zap.Error(err),
		)
		out.Text = concatenateAnswers(tasks)
		out.Fallback = true
		out.Error = err.Error()
		return out
	}
	out.Text = reply.Text
	return out
}
