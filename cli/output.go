package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/richinex/conductor/llm"
	"github.com/richinex/conductor/orchestration"
)

const (
	maxPromptPreview = 60
	maxErrorPreview  = 120
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (a *App) printResult(res orchestration.Result) error {
	if a.Opts.JSON {
		return writeJSON(a.Out, res)
	}
	fmt.Fprintf(a.Out, "%s\n", res.FinalText)
	if a.Opts.Verbose {
		fmt.Fprintln(a.Out)
		a.printSubTasks(res.SubTasks)
		a.printFooter(res)
	}
	return nil
}

func (a *App) printSubTasks(tasks []orchestration.SubTask) {
	if len(tasks) == 0 {
		return
	}
	fmt.Fprintln(a.Out, "--- Sub-tasks ---")
	for _, t := range tasks {
		fmt.Fprintf(a.Out, "[%d] %s (%s, %s)\n", t.Index, t.Title, llm.DisplayNameFor(t.Provider), t.Status)
		if t.Error != "" {
			fmt.Fprintf(a.Out, "    Error: %s\n", truncateString(t.Error, maxErrorPreview))
		}
	}
	fmt.Fprintln(a.Out, "-----------------")
}

func (a *App) printFooter(res orchestration.Result) {
	meta := res.Metadata
	fmt.Fprintf(a.Out, "Mode: %s", res.Mode)
	if res.Analysis != nil {
		fmt.Fprintf(a.Out, " (tier %s, score %d)", res.Analysis.Tier, res.Analysis.Score)
	}
	if meta.Provider != "" {
		fmt.Fprintf(a.Out, "  Provider: %s", llm.DisplayNameFor(meta.Provider))
	}
	fmt.Fprintf(a.Out, "  Time: %dms\n", meta.ElapsedMs)
	if meta.FallbackReason != "" {
		fmt.Fprintf(a.Out, "Fallback: %s\n", meta.FallbackReason)
	}
	printTokenStats(a.Out, res.Usage)
}

// printTokenStats prints token usage statistics.
func printTokenStats(w io.Writer, stats orchestration.TokenStats) {
	if stats.LLMCalls == 0 {
		return
	}
	fmt.Fprintf(w, "\nToken Usage:\n")
	fmt.Fprintf(w, "  LLM calls: %d (%d failed)\n", stats.LLMCalls, stats.FailedCalls)
	fmt.Fprintf(w, "  Prompt tokens: %d\n", stats.PromptTokens)
	fmt.Fprintf(w, "  Completion tokens: %d\n", stats.CompletionTokens)
	fmt.Fprintf(w, "  Total tokens: %d\n", stats.TotalTokens)
}

// truncateString truncates a string to maxLen runes, preserving UTF-8 boundaries.
func truncateString(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}
