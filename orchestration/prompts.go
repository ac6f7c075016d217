package orchestration

import (
	"fmt"
	"strings"

	"github.com/richinex/conductor/llm"
)

// User-facing fallback texts.
const (
	apologyAllUnavailable = "I apologize, but I encountered an error processing your query. " +
		"All AI models are currently unavailable. Please try again in a moment."
	apologyAllTasksFailed = "All tasks failed. Please try breaking your question into smaller parts."
	dependencyPrefix      = "Context from previous answer:\n"
)

const decomposeSystem = "You are a query decomposition expert. You split complex questions into " +
	"focused sub-questions that can each be answered on their own."

func decomposePrompt(prompt string, tier Tier, lo, hi int, providers []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Analyze this %s query and break it into %d-%d focused, specific sub-questions.\n\n", tier, lo, hi)
	b.WriteString("Original Query:\n")
	b.WriteString(prompt)
	b.WriteString("\n\nReturn a JSON object of the form\n")
	b.WriteString(`{"sub_tasks": [{"title": "...", "question": "...", "priority": 1, "provider": "...", "depends_on": null}]}`)
	b.WriteString("\n\nRules:\n")
	b.WriteString("- \"title\": a short label for the part\n")
	b.WriteString("- \"question\": the complete sub-question, answerable without the others\n")
	b.WriteString("- \"priority\": 1 (high) to 5 (low)\n")
	if len(providers) > 0 {
		fmt.Fprintf(&b, "- \"provider\": one of %s, or omit it\n", strings.Join(providers, ", "))
	}
	b.WriteString("- \"depends_on\": null or the 0-based index of an earlier sub-question whose answer it needs\n")
	b.WriteString("\nReturn ONLY the JSON, no other text.")
	return b.String()
}

const enhancedTemplate = `You are analyzing a detailed query. Please provide a comprehensive, well-structured response.

%s

Please structure your response with:
1. Clear headings for each major point
2. Specific details and examples
3. Actionable recommendations
4. Summary of key takeaways`

func enhancedPrompt(prompt string) string {
	return fmt.Sprintf(enhancedTemplate, prompt)
}

func taskPrompt(t SubTask, prior string) string {
	if prior == "" {
		return t.Question
	}
	return dependencyPrefix + prior + "\n\n" + t.Question
}

func failureNote(t SubTask, err string) string {
	return fmt.Sprintf("[Could not complete %q: %s]", t.Title, err)
}

const synthesizeSystem = "You synthesize partial answers into one complete, professional response."

func synthesisPrompt(prompt string, tasks []SubTask) string {
	var b strings.Builder
	b.WriteString("Original Question:\n")
	b.WriteString(prompt)
	b.WriteString("\n\nSub-question answers:\n")
	for _, t := range tasks {
		fmt.Fprintf(&b, "\n### %d. %s\nQ: %s\n", t.Index+1, t.Title, t.Question)
		if t.Succeeded() {
			fmt.Fprintf(&b, "A: %s\n", t.Answer)
		} else {
			b.WriteString("A: (not available)\n")
		}
	}
	b.WriteString("\nWrite a comprehensive, well-structured final response that:\n")
	b.WriteString("1. Integrates all the available answers coherently\n")
	b.WriteString("2. Addresses the original question completely\n")
	b.WriteString("3. Is organized with clear headings\n")
	b.WriteString("4. Notes any part that could not be answered")
	return b.String()
}

// concatenateAnswers is the synthesis fallback: successful answers under headings.
func concatenateAnswers(tasks []SubTask) string {
	var b strings.Builder
	b.WriteString("# Analysis Results\n\n")
	for _, t := range tasks {
		if !t.Succeeded() {
			continue
		}
		fmt.Fprintf(&b, "## %s\n%s\n\n", t.Title, strings.TrimSpace(t.Answer))
	}
	return strings.TrimRight(b.String(), "\n")
}

func consensusPrompt(prompt string, replies []llm.Reply) string {
	var b strings.Builder
	b.WriteString("Several AI models answered the same question. Combine their answers into one ")
	b.WriteString("response that keeps the points they agree on and resolves disagreements.\n\n")
	b.WriteString("Question:\n")
	b.WriteString(prompt)
	b.WriteString("\n")
	for _, r := range replies {
		fmt.Fprintf(&b, "\n--- %s ---\n%s\n", llm.DisplayNameFor(r.Provider), r.Text)
	}
	return b.String()
}

func judgePrompt(prompt string, replies []llm.Reply) string {
	var b strings.Builder
	b.WriteString("Pick the single best answer to the question below. ")
	b.WriteString("Reply with only the provider name, exactly as written in the headings.\n\n")
	b.WriteString("Question:\n")
	b.WriteString(prompt)
	b.WriteString("\n")
	for _, r := range replies {
		fmt.Fprintf(&b, "\n--- %s ---\n%s\n", r.Provider, r.Text)
	}
	return b.String()
}

func sideBySide(replies []llm.Reply) string {
	var b strings.Builder
	for i, r := range replies {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "## %s (%s)\n\n%s\n", llm.DisplayNameFor(r.Provider), r.Model, strings.TrimSpace(r.Text))
	}
	return b.String()
}

// enrichPrompt prefixes project context to prompt when there is any.
func enrichPrompt(prompt string, p *ProjectContext, summaryChars, maxFiles int) string {
	if p == nil {
		return prompt
	}
	var parts []string
	switch {
	case strings.TrimSpace(p.Summary) != "":
		parts = append(parts, "CASE SUMMARY: "+truncateRunes(strings.TrimSpace(p.Summary), summaryChars))
	case strings.TrimSpace(p.Description) != "":
		parts = append(parts, "CASE CONTEXT: "+truncateRunes(strings.TrimSpace(p.Description), summaryChars))
	}
	if len(p.Files) > 0 {
		files := p.Files
		if len(files) > maxFiles {
			files = files[:maxFiles]
		}
		parts = append(parts, "AVAILABLE FILES: "+strings.Join(files, ", "))
	}
	if len(parts) == 0 {
		return prompt
	}
	return strings.Join(parts, "\n") + "\n\nQUESTION: " + prompt
}

// truncateRunes truncates a string to maxLen runes, preserving UTF-8 boundaries.
func truncateRunes(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}
