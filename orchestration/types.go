// Package orchestration routes a prompt to one or more LLM providers.
//
// Types shared by the analyzer, decomposer, executor, synthesizer and conductor.
package orchestration

import (
	"strings"
	"time"

	"github.com/richinex/conductor/llm"
)

// Tier is the complexity classification assigned to a prompt.
type Tier string

const (
	TierSimple       Tier = "simple"
	TierModerate     Tier = "moderate"
	TierComplex      Tier = "complex"
	TierMultiFaceted Tier = "multi_faceted"
)

// Decomposes reports whether prompts of this tier are split into sub-tasks.
func (t Tier) Decomposes() bool {
	return t == TierComplex || t == TierMultiFaceted
}

// Strategy is the default handling chosen for a tier.
type Strategy string

const (
	StrategyDirect    Strategy = "direct"
	StrategyEnhanced  Strategy = "enhanced"
	StrategyDecompose Strategy = "decompose"
)

// StrategyFor maps a tier to its default strategy.
func StrategyFor(t Tier) Strategy {
	switch t {
	case TierModerate:
		return StrategyEnhanced
	case TierComplex, TierMultiFaceted:
		return StrategyDecompose
	default:
		return StrategyDirect
	}
}

// Mode tags how a result was produced. It doubles as the forced-mode
// selector on a Request.
type Mode string

const (
	ModeSimple       Mode = "simple"
	ModeModerate     Mode = "moderate"
	ModeOrchestrated Mode = "orchestrated"
	ModeConsensus    Mode = "consensus"
	ModeFastest      Mode = "fastest"
	ModeBest         Mode = "best"
	ModeParallel     Mode = "parallel"
	ModePowerDuo     Mode = "power_duo"
	ModeFailed       Mode = "failed"

	onlySuffix = "_only"
)

// OnlyMode returns the single-provider mode for name, e.g. "gemini_only".
func OnlyMode(provider string) Mode {
	return Mode(provider + onlySuffix)
}

// OnlyProvider returns the provider named by a "<provider>_only" mode.
func (m Mode) OnlyProvider() (string, bool) {
	s := string(m)
	if !strings.HasSuffix(s, onlySuffix) || len(s) == len(onlySuffix) {
		return "", false
	}
	return strings.TrimSuffix(s, onlySuffix), true
}

// ParseMode normalizes a user-supplied mode name. Empty input yields "".
func ParseMode(s string) Mode {
	return Mode(strings.ToLower(strings.TrimSpace(s)))
}

// Indicators are the boolean signals the analyzer scores.
type Indicators struct {
	MultipleQuestions bool `json:"multiple_questions"`
	LongContext       bool `json:"long_context"`
	NumberedList      bool `json:"numbered_list"`
	Legal             bool `json:"legal"`
	AnalysisRequest   bool `json:"analysis_request"`
	ResearchRequest   bool `json:"research_request"`
	ListRequest       bool `json:"list_request"`
	MultipleParts     bool `json:"multiple_parts"`
	FileReferences    bool `json:"file_references"`
}

// Active returns the names of the indicators that fired, in a stable order.
func (i Indicators) Active() []string {
	var out []string
	add := func(on bool, name string) {
		if on {
			out = append(out, name)
		}
	}
	add(i.MultipleQuestions, "multiple_questions")
	add(i.LongContext, "long_context")
	add(i.NumberedList, "numbered_list")
	add(i.Legal, "legal")
	add(i.AnalysisRequest, "analysis_request")
	add(i.ResearchRequest, "research_request")
	add(i.ListRequest, "list_request")
	add(i.MultipleParts, "multiple_parts")
	add(i.FileReferences, "file_references")
	return out
}

// ComplexityAnalysis is the analyzer's verdict on one prompt.
type ComplexityAnalysis struct {
	Tier            Tier       `json:"tier"`
	Score           int        `json:"score"`
	Indicators      Indicators `json:"indicators"`
	Strategy        Strategy   `json:"strategy"`
	WordCount       int        `json:"word_count"`
	QuestionCount   int        `json:"question_count"`
	EstimatedTokens int        `json:"estimated_tokens"`
}

// TaskStatus is the lifecycle state of a sub-task.
type TaskStatus string

const (
	TaskPending TaskStatus = "pending"
	TaskSuccess TaskStatus = "success"
	TaskFailed  TaskStatus = "failed"
)

// SubTask is one decomposed fragment of a prompt.
type SubTask struct {
	Index     int             `json:"index"`
	Title     string          `json:"title"`
	Question  string          `json:"question"`
	Priority  int             `json:"priority"`
	Provider  string          `json:"provider,omitempty"`
	DependsOn *int            `json:"depends_on,omitempty"`
	Answer    string          `json:"answer,omitempty"`
	Status    TaskStatus      `json:"status"`
	Error     string          `json:"error,omitempty"`
	Usage     *llm.TokenUsage `json:"usage,omitempty"`
	LatencyMs int64           `json:"latency_ms,omitempty"`
}

// Succeeded reports whether the task produced an answer.
func (t SubTask) Succeeded() bool {
	return t.Status == TaskSuccess
}

// ProjectContext carries optional case material used to enrich prompts.
type ProjectContext struct {
	Name        string   `json:"name,omitempty"`
	Summary     string   `json:"summary,omitempty"`
	Description string   `json:"description,omitempty"`
	Files       []string `json:"files,omitempty"`
}

// Request is the input to Conductor.Conduct.
type Request struct {
	Prompt  string            `json:"prompt"`
	History []llm.ChatMessage `json:"history,omitempty"`
	// Mode, when set, skips analysis and runs the matching strategy.
	Mode    Mode            `json:"mode,omitempty"`
	Project *ProjectContext `json:"project,omitempty"`
	// Progress receives stage updates while the request runs.
	Progress ProgressFunc `json:"-"`
}

// TokenStats tracks token usage across an orchestration.
type TokenStats struct {
	PromptTokens     uint32 `json:"prompt_tokens"`
	CompletionTokens uint32 `json:"completion_tokens"`
	TotalTokens      uint32 `json:"total_tokens"`
	LLMCalls         int    `json:"llm_calls"`
	FailedCalls      int    `json:"failed_calls"`
}

// AddUsage adds token usage from an LLM call.
func (ts *TokenStats) AddUsage(usage *llm.TokenUsage) {
	if usage == nil {
		return
	}
	ts.PromptTokens += usage.PromptTokens
	ts.CompletionTokens += usage.CompletionTokens
	ts.TotalTokens += usage.TotalTokens
}

// AddCall counts one provider call and its usage.
func (ts *TokenStats) AddCall(usage *llm.TokenUsage, failed bool) {
	ts.LLMCalls++
	if failed {
		ts.FailedCalls++
	}
	ts.AddUsage(usage)
}

// Metadata describes how a result was produced.
type Metadata struct {
	ElapsedMs             int64  `json:"elapsed_ms"`
	Provider              string `json:"provider,omitempty"`
	Model                 string `json:"model,omitempty"`
	Forced                bool   `json:"forced,omitempty"`
	DecompositionFallback bool   `json:"decomposition_fallback,omitempty"`
	SynthesisFallback     bool   `json:"synthesis_fallback,omitempty"`
	FallbackReason        string `json:"fallback_reason,omitempty"`
	TasksSucceeded        int    `json:"tasks_succeeded,omitempty"`
	TasksFailed           int    `json:"tasks_failed,omitempty"`
	Error                 string `json:"error,omitempty"`
}

// Result is the outcome of one Conduct call.
type Result struct {
	RequestID string              `json:"request_id"`
	Mode      Mode                `json:"mode"`
	FinalText string              `json:"final_text"`
	Analysis  *ComplexityAnalysis `json:"analysis,omitempty"`
	SubTasks  []SubTask           `json:"sub_tasks,omitempty"`
	Responses []llm.Reply         `json:"responses,omitempty"`
	Usage     TokenStats          `json:"usage"`
	Metadata  Metadata            `json:"metadata"`
	StartedAt time.Time           `json:"started_at"`
}

// Failed reports whether the result is the total-failure apology.
func (r Result) Failed() bool {
	return r.Mode == ModeFailed
}
