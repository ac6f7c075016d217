// Command execution for CLI commands.
//
// Information Hiding:
// - Request assembly and session bookkeeping hidden
// - Output formatting hidden

package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/richinex/conductor/llm"
	"github.com/richinex/conductor/orchestration"
	"github.com/richinex/conductor/server"
	"github.com/richinex/conductor/storage"
)

// AskOptions holds per-request options.
type AskOptions struct {
	Mode      string
	SessionID string
	// Files and Summary describe attached case material.
	Files   []string
	Summary string
}

// Ask runs one prompt through the conductor and prints the answer.
func Ask(ctx context.Context, app *App, prompt string, opts AskOptions) error {
	var history []llm.ChatMessage
	var store storage.Storage
	if opts.SessionID != "" {
		s, err := app.Store()
		if err != nil {
			return err
		}
		store = s
		history, err = store.Load(ctx, opts.SessionID)
		if err != nil {
			return fmt.Errorf("failed to load history: %w", err)
		}
	}

	res := app.Conductor.Conduct(ctx, app.request(prompt, history, opts))

	if store != nil {
		if err := record(ctx, store, opts.SessionID, prompt, history, res); err != nil {
			fmt.Fprintf(app.Err, "Warning: %v\n", err)
		}
	}

	if err := app.printResult(res); err != nil {
		return err
	}
	if res.Failed() {
		return fmt.Errorf("conduct failed: %s", res.Metadata.Error)
	}
	return nil
}

// Chat starts an interactive session reading prompts from in.
func Chat(ctx context.Context, app *App, in io.Reader, opts AskOptions) error {
	session := opts.SessionID
	if session == "" {
		session = "default"
	}

	store, err := app.Store()
	if err != nil {
		return err
	}

	history, err := store.Load(ctx, session)
	if err != nil {
		return fmt.Errorf("failed to load history: %w", err)
	}
	if len(history) > 0 {
		fmt.Fprintf(app.Out, "Resuming session '%s' (%d messages)\n\n", session, len(history))
	}

	fmt.Fprintf(app.Out, "Chat with %d provider(s). Type 'exit' to quit.\n\n", app.Registry.Len())

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(app.Out, "> ")
		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "exit" || input == "quit" {
			break
		}

		res := app.Conductor.Conduct(ctx, app.request(input, history, opts))
		if err := record(ctx, store, session, input, history, res); err != nil {
			fmt.Fprintf(app.Err, "Warning: %v\n", err)
		}
		if !res.Failed() {
			history = appendExchange(history, input, res.FinalText)
		}

		fmt.Fprintf(app.Out, "\n%s\n\n", res.FinalText)
		if app.Opts.Verbose {
			app.printFooter(res)
		}
	}

	return scanner.Err()
}

// Analyze prints the complexity analysis of prompt without calling a provider.
func Analyze(app *App, prompt string, hasFiles bool) error {
	a := app.Conductor.Analyze(prompt, hasFiles)
	if app.Opts.JSON {
		return writeJSON(app.Out, a)
	}

	fmt.Fprintf(app.Out, "Tier:      %s\n", a.Tier)
	fmt.Fprintf(app.Out, "Strategy:  %s\n", a.Strategy)
	fmt.Fprintf(app.Out, "Score:     %d\n", a.Score)
	fmt.Fprintf(app.Out, "Words:     %d\n", a.WordCount)
	fmt.Fprintf(app.Out, "Questions: %d\n", a.QuestionCount)
	fmt.Fprintf(app.Out, "Tokens:    ~%d\n", a.EstimatedTokens)
	if active := a.Indicators.Active(); len(active) > 0 {
		fmt.Fprintf(app.Out, "Signals:   %s\n", strings.Join(active, ", "))
	}
	return nil
}

// Serve runs the HTTP API until ctx is cancelled.
func Serve(ctx context.Context, app *App, addr string) error {
	store, err := app.Store()
	if err != nil {
		return err
	}
	cfg := app.Settings.Server
	if addr == "" {
		addr = cfg.Addr
	}
	srv := server.New(app.Conductor, server.Options{
		Addr:         addr,
		AuthToken:    cfg.AuthToken,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		Store:        store,
		Metrics:      app.Metrics,
		Logger:       app.Logger,
	})
	return srv.Run(ctx)
}

// ListProviders prints the configured providers.
func ListProviders(app *App) {
	for _, p := range app.Registry.Providers() {
		marker := " "
		if p.Name() == app.Registry.DefaultName() {
			marker = "*"
		}
		fmt.Fprintf(app.Out, "%s %-12s %-12s %s\n", marker, p.Name(), llm.DisplayNameFor(p.Name()), p.Model())
	}
}

// ListSessions prints stored session IDs.
func ListSessions(ctx context.Context, app *App) error {
	store, err := app.Store()
	if err != nil {
		return err
	}
	sessions, err := store.ListSessions(ctx)
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Fprintln(app.Out, "No sessions.")
		return nil
	}
	for _, id := range sessions {
		fmt.Fprintln(app.Out, id)
	}
	return nil
}

// ShowSession prints a session's runs, newest first.
func ShowSession(ctx context.Context, app *App, sessionID string) error {
	store, err := app.Store()
	if err != nil {
		return err
	}
	exists, err := store.Exists(ctx, sessionID)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("session %q not found", sessionID)
	}
	runs, err := store.ListRuns(ctx, sessionID, 0)
	if err != nil {
		return err
	}
	if app.Opts.JSON {
		return writeJSON(app.Out, runs)
	}
	for _, r := range runs {
		fmt.Fprintf(app.Out, "%s  %-12s %6dms  %s\n",
			r.CreatedAt.Format("2006-01-02 15:04:05"), r.Mode, r.ElapsedMs, truncateString(r.Prompt, maxPromptPreview))
	}
	return nil
}

// DeleteSession removes a session with its history and runs.
func DeleteSession(ctx context.Context, app *App, sessionID string) error {
	store, err := app.Store()
	if err != nil {
		return err
	}
	if err := store.Delete(ctx, sessionID); err != nil {
		return err
	}
	fmt.Fprintf(app.Out, "Deleted session '%s'\n", sessionID)
	return nil
}

func (a *App) request(prompt string, history []llm.ChatMessage, opts AskOptions) orchestration.Request {
	req := orchestration.Request{
		Prompt:  prompt,
		History: history,
		Mode:    orchestration.Mode(opts.Mode),
	}
	files := append(append([]string{}, opts.Files...), extractFilePaths(prompt)...)
	if len(files) > 0 || opts.Summary != "" {
		names := make([]string, 0, len(files))
		for _, f := range files {
			names = append(names, filepath.Base(f))
		}
		req.Project = &orchestration.ProjectContext{Summary: opts.Summary, Files: names}
	}
	if a.Opts.Verbose {
		req.Progress = func(ev orchestration.ProgressEvent) {
			fmt.Fprintf(a.Err, "[%3d%%] %s\n", ev.Percent, ev.Message)
		}
	}
	return req
}

// record persists the run and, when it succeeded, the extended history.
func record(ctx context.Context, store storage.Storage, sessionID, prompt string, history []llm.ChatMessage, res orchestration.Result) error {
	if !res.Failed() {
		if err := store.Save(ctx, sessionID, appendExchange(history, prompt, res.FinalText)); err != nil {
			return fmt.Errorf("failed to save history: %w", err)
		}
	}
	run := storage.Run{SessionID: sessionID, Prompt: prompt, Result: res, CreatedAt: res.StartedAt}
	if err := store.SaveRun(ctx, run); err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	return nil
}

func appendExchange(history []llm.ChatMessage, prompt, answer string) []llm.ChatMessage {
	out := make([]llm.ChatMessage, 0, len(history)+2)
	out = append(out, history...)
	return append(out, llm.UserMessage(prompt), llm.AssistantMessage(answer))
}

// extractFilePaths returns the absolute paths mentioned in text.
func extractFilePaths(text string) []string {
	var paths []string
	for _, word := range strings.Fields(text) {
		word = strings.Trim(word, "\"',;:()[]{}?!")
		if strings.HasPrefix(word, "/") && len(word) > 1 {
			if strings.Contains(word[1:], "/") || strings.Contains(word, ".") {
				paths = append(paths, word)
			}
		}
	}
	return paths
}
