package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/richinex/conductor/config"
	"github.com/richinex/conductor/llm"
	"github.com/richinex/conductor/orchestration"
	"github.com/richinex/conductor/storage"
)

type echoProvider struct {
	name  string
	err   error
	calls []string
}

func (p *echoProvider) Name() string  { return p.name }
func (p *echoProvider) Model() string { return p.name + "-model" }

func (p *echoProvider) Chat(ctx context.Context, messages []llm.ChatMessage) (llm.LLMResponse, error) {
	return p.ChatWithFormat(ctx, messages, nil)
}

func (p *echoProvider) ChatWithFormat(ctx context.Context, messages []llm.ChatMessage, format *llm.ResponseFormat) (llm.LLMResponse, error) {
	last := messages[len(messages)-1].Content
	p.calls = append(p.calls, last)
	if p.err != nil {
		return llm.LLMResponse{}, p.err
	}
	return llm.LLMResponse{
		Content: "answer to: " + last,
		Usage:   &llm.TokenUsage{PromptTokens: 3, CompletionTokens: 2, TotalTokens: 5},
	}, nil
}

func testApp(t *testing.T, opts Options, providers ...llm.Provider) (*App, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	for _, key := range []string{config.EnvConfigPath, "LLM_PROVIDER", "LLM_MAX_TOKENS", "LLM_TEMPERATURE", "LLM_MAX_RETRIES"} {
		t.Setenv(key, "")
	}
	settings, err := config.Load("")
	require.NoError(t, err)

	if len(providers) == 0 {
		providers = []llm.Provider{&echoProvider{name: "openai"}}
	}
	app := NewApp(settings, llm.NewRegistry(providers...), nil, nil, nil, opts)
	app.UseStore(storage.NewInMemoryStorage())

	var out, errOut bytes.Buffer
	app.Out = &out
	app.Err = &errOut
	return app, &out, &errOut
}

func TestAskPrintsAnswer(t *testing.T) {
	app, out, _ := testApp(t, Options{})

	require.NoError(t, Ask(context.Background(), app, "What is 2+2?", AskOptions{}))
	assert.Equal(t, "answer to: What is 2+2?\n", out.String())
}

func TestAskJSON(t *testing.T) {
	app, out, _ := testApp(t, Options{JSON: true})

	require.NoError(t, Ask(context.Background(), app, "What is 2+2?", AskOptions{}))

	var res orchestration.Result
	require.NoError(t, json.Unmarshal(out.Bytes(), &res))
	assert.Equal(t, orchestration.ModeSimple, res.Mode)
	assert.Equal(t, 1, res.Usage.LLMCalls)
}

func TestAskVerboseShowsProgressAndUsage(t *testing.T) {
	app, out, errOut := testApp(t, Options{Verbose: true})

	require.NoError(t, Ask(context.Background(), app, "What is 2+2?", AskOptions{}))
	assert.Contains(t, errOut.String(), "%]")
	assert.Contains(t, out.String(), "Mode: simple")
	assert.Contains(t, out.String(), "Total tokens: 5")
}

func TestAskFailureReturnsError(t *testing.T) {
	app, out, _ := testApp(t, Options{}, &echoProvider{name: "openai", err: errors.New("down")})

	err := Ask(context.Background(), app, "What is 2+2?", AskOptions{})
	require.Error(t, err)
	assert.Contains(t, out.String(), "All AI models are currently unavailable")
}

func TestAskForcedMode(t *testing.T) {
	gemini := &echoProvider{name: "gemini"}
	app, out, _ := testApp(t, Options{}, &echoProvider{name: "openai"}, gemini)

	require.NoError(t, Ask(context.Background(), app, "hello", AskOptions{Mode: "gemini_only"}))
	assert.Len(t, gemini.calls, 1)
	assert.Equal(t, "answer to: hello\n", out.String())
}

func TestAskWithSessionPersists(t *testing.T) {
	p := &echoProvider{name: "openai"}
	app, _, _ := testApp(t, Options{}, p)
	ctx := context.Background()

	require.NoError(t, Ask(ctx, app, "first?", AskOptions{SessionID: "s1"}))
	require.NoError(t, Ask(ctx, app, "second?", AskOptions{SessionID: "s1"}))

	store, err := app.Store()
	require.NoError(t, err)
	history, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, history, 4)
	assert.Equal(t, "second?", history[2].Content)

	runs, err := store.ListRuns(ctx, "s1", 0)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestAskAttachesProjectFiles(t *testing.T) {
	p := &echoProvider{name: "openai"}
	app, _, _ := testApp(t, Options{}, p)

	err := Ask(context.Background(), app, "Summarize /tmp/case/brief.pdf", AskOptions{Files: []string{"/data/exhibit-a.docx"}})
	require.NoError(t, err)
	require.NotEmpty(t, p.calls)
	assert.Contains(t, p.calls[0], "AVAILABLE FILES: exhibit-a.docx, brief.pdf")
}

func TestChatLoop(t *testing.T) {
	p := &echoProvider{name: "openai"}
	app, out, _ := testApp(t, Options{}, p)

	in := strings.NewReader("hello\n\nwhat next?\nexit\nignored\n")
	require.NoError(t, Chat(context.Background(), app, in, AskOptions{SessionID: "c"}))

	assert.Len(t, p.calls, 2)
	assert.Contains(t, out.String(), "answer to: hello")
	assert.Contains(t, out.String(), "answer to: what next?")

	store, _ := app.Store()
	history, err := store.Load(context.Background(), "c")
	require.NoError(t, err)
	assert.Len(t, history, 4)
}

func TestChatResumesSession(t *testing.T) {
	app, out, _ := testApp(t, Options{})
	store, _ := app.Store()
	require.NoError(t, store.Save(context.Background(), "default", []llm.ChatMessage{
		llm.UserMessage("earlier"), llm.AssistantMessage("reply"),
	}))

	require.NoError(t, Chat(context.Background(), app, strings.NewReader("quit\n"), AskOptions{}))
	assert.Contains(t, out.String(), "Resuming session 'default' (2 messages)")
}

func TestAnalyzeText(t *testing.T) {
	app, out, _ := testApp(t, Options{})

	require.NoError(t, Analyze(app, "What is 2+2?", false))
	assert.Contains(t, out.String(), "Tier:      simple")
	assert.Contains(t, out.String(), "Strategy:  direct")
}

func TestListProvidersMarksDefault(t *testing.T) {
	app, out, _ := testApp(t, Options{}, &echoProvider{name: "openai"}, &echoProvider{name: "deepseek"})

	ListProviders(app)
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "* openai"))
	assert.True(t, strings.HasPrefix(lines[1], "  deepseek"))
}

func TestSessionCommands(t *testing.T) {
	app, out, _ := testApp(t, Options{})
	ctx := context.Background()

	require.NoError(t, ListSessions(ctx, app))
	assert.Contains(t, out.String(), "No sessions.")

	require.NoError(t, Ask(ctx, app, "What is 2+2?", AskOptions{SessionID: "s"}))
	out.Reset()

	require.NoError(t, ShowSession(ctx, app, "s"))
	assert.Contains(t, out.String(), "simple")
	assert.Contains(t, out.String(), "What is 2+2?")

	require.NoError(t, DeleteSession(ctx, app, "s"))
	assert.Error(t, ShowSession(ctx, app, "s"))
}

func TestExtractFilePaths(t *testing.T) {
	got := extractFilePaths(`Compare "/cases/a/brief.pdf" with /tmp/notes.txt, not / or /etc`)
	assert.Equal(t, []string{"/cases/a/brief.pdf", "/tmp/notes.txt"}, got)
}

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "short", truncateString("short", 10))
	assert.Equal(t, "héll...", truncateString("héllo world", 4))
}

func TestSetupRejectsUnknownProvider(t *testing.T) {
	for _, key := range []string{config.EnvConfigPath, "LLM_PROVIDER"} {
		t.Setenv(key, "")
	}

	_, err := Setup(context.Background(), Options{Provider: "mistral"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "openai, gemini, anthropic, deepseek, grok, huggingface")
	assert.ErrorIs(t, err, llm.ErrUnknownProvider)
}
