package llm

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestClientQueryAppendsPromptAfterHistory(t *testing.T) {
	p := newScripted("openai", scriptedResult{content: "4"})
	client := NewClient(p)

	history := []ChatMessage{UserMessage("hi"), AssistantMessage("hello")}
	reply, err := client.Query(context.Background(), "What's 2+2?", history)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if reply.Text != "4" || !reply.OK() {
		t.Errorf("expected OK reply '4', got %+v", reply)
	}
	if reply.Provider != "openai" || reply.Model != "openai-model" {
		t.Errorf("unexpected metadata: %+v", reply)
	}
	if len(p.lastMsgs) != 3 {
		t.Fatalf("expected 3 messages sent, got %d", len(p.lastMsgs))
	}
	if p.lastMsgs[2].Role != RoleUser || p.lastMsgs[2].Content != "What's 2+2?" {
		t.Errorf("prompt not appended last: %+v", p.lastMsgs[2])
	}
	if len(history) != 2 {
		t.Errorf("history was modified: %d entries", len(history))
	}
}

func TestClientQueryFailureCarriesSentinelText(t *testing.T) {
	boom := errors.New("quota exceeded")
	client := NewClient(newScripted("anthropic", scriptedResult{err: boom}))

	reply, err := client.Query(context.Background(), "hello", nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, boom) {
		t.Errorf("expected wrapped provider error, got %v", err)
	}
	if reply.OK() {
		t.Error("failed reply reported OK")
	}
	if !strings.HasPrefix(reply.Text, "Claude Error: ") {
		t.Errorf("expected 'Claude Error:' prefix, got %q", reply.Text)
	}
	if reply.Error != "quota exceeded" {
		t.Errorf("expected raw error message, got %q", reply.Error)
	}
}

func TestDisplayNameFor(t *testing.T) {
	cases := map[string]string{
		"openai":      "OpenAI",
		"gemini":      "Gemini",
		"anthropic":   "Claude",
		"claude":      "Claude",
		"deepseek":    "DeepSeek",
		"grok":        "Grok",
		"huggingface": "HuggingFace",
		"custom":      "custom",
	}
	for in, want := range cases {
		if got := DisplayNameFor(in); got != want {
			t.Errorf("DisplayNameFor(%q) = %q, want %q", in, got, want)
		}
	}
}
