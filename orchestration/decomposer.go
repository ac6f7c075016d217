// Task Decomposer.
//
// Asks one provider to split a prompt into sub-tasks and repairs the answer.
//
// Information Hiding:
// - Prompt wording and the accepted JSON shapes hidden
// - Parse failures collapse into a single-task plan; callers never see them

package orchestration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	jsonutil "github.com/richinex/conductor/internal/json"
	"github.com/richinex/conductor/llm"
)

// fallbackTaskTitle titles the single task used when decomposition fails.
const fallbackTaskTitle = "Full query"

// Plan is the decomposer's output. Tasks is never empty.
type Plan struct {
	Tasks      []SubTask
	Fallback   bool
	Reason     string
	Provider   string
	Usage      *llm.TokenUsage
	Validation ValidationResult
}

// rawTask is one sub-task as the model writes it.
type rawTask struct {
	Title     string `json:"title"`
	Question  string `json:"question"`
	Priority  int    `json:"priority"`
	Provider  string `json:"provider"`
	DependsOn *int   `json:"depends_on"`
}

type rawPlan struct {
	SubTasks []rawTask `json:"sub_tasks"`
	Tasks    []rawTask `json:"tasks"`
}

// Decomposer splits prompts into sub-tasks using a designated provider.
type Decomposer struct {
	registry *llm.Registry
	provider string
	maxTasks int
	timeout  time.Duration
	logger   *zap.Logger
}

// NewDecomposer creates a decomposer. The provider named by
// cfg.DecomposerProvider is used when registered, else the registry default.
func NewDecomposer(registry *llm.Registry, cfg Config, logger *zap.Logger) *Decomposer {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Decomposer{
		registry: registry,
		provider: cfg.DecomposerProvider,
		maxTasks: cfg.MaxSubTasks,
		timeout:  cfg.StepTimeout,
		logger:   logger,
	}
}

// Decompose returns a validated plan for prompt. On any failure the plan holds
// one task carrying the whole prompt and Fallback is set.
func (d *Decomposer) Decompose(ctx context.Context, prompt string, tier Tier) Plan {
	p := d.registry.Resolve(d.provider)
	if p == nil {
		return d.fallback(prompt, "", "no provider configured", nil)
	}

	lo, hi := subTaskRange(tier, d.maxTasks)
	messages := []llm.ChatMessage{
		llm.SystemMessage(decomposeSystem),
		llm.UserMessage(decomposePrompt(prompt, tier, lo, hi, d.registry.Names())),
	}

	callCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	reply, err := llm.NewClient(p).QueryMessages(callCtx, messages, llm.NewJSONObjectFormat())
	if err != nil {
		d.logger.Warn("decomposition call failed", zap.String("provider", p.Name()), zap.Error(err))
		return d.fallback(prompt, p.Name(), fmt.Sprintf("decomposition failed: %v", err), nil)
	}

	tasks, err := parsePlan(reply.Text)
	if err != nil {
		d.logger.Warn("decomposition parse failed", zap.String("provider", p.Name()), zap.Error(err))
		return d.fallback(prompt, p.Name(), fmt.Sprintf("decomposition unparsable: %v", err), reply.Usage)
	}

	repaired, validation := ValidatePlan(tasks, PlanRules{
		MaxTasks:        d.maxTasks,
		DefaultProvider: d.registry.DefaultName(),
		KnownProvider: func(name string) bool {
			_, ok := d.registry.Get(name)
			return ok
		},
	})
	for _, w := range validation.Warnings {
		d.logger.Debug("plan repaired", zap.String("warning", w))
	}
	if !validation.Valid {
		return d.fallback(prompt, p.Name(), "decomposition produced no usable sub-tasks", reply.Usage)
	}

	d.logger.Info("query decomposed",
		zap.String("provider", p.Name()),
		zap.String("tier", string(tier)),
		zap.Int("tasks", len(repaired)),
	)
	return Plan{
		Tasks:      repaired,
		Provider:   p.Name(),
		Usage:      reply.Usage,
		Validation: validation,
	}
}

func (d *Decomposer) fallback(prompt, provider, reason string, usage *llm.TokenUsage) Plan {
	return Plan{
		Tasks: []SubTask{{
			Index:    0,
			Title:    fallbackTaskTitle,
			Question: prompt,
			Priority: minPriority,
			Provider: d.registry.DefaultName(),
			Status:   TaskPending,
		}},
		Fallback:   true,
		Reason:     reason,
		Provider:   provider,
		Usage:      usage,
		Validation: NewValidationSuccess().WithWarnings([]string{reason}),
	}
}

// parsePlan accepts {"sub_tasks":[...]}, {"tasks":[...]} or a bare array.
func parsePlan(text string) ([]SubTask, error) {
	raw, err := jsonutil.ExtractJSON(text)
	if err != nil {
		return nil, err
	}

	var items []rawTask
	if jsonutil.IsArray(raw) {
		if items, err = jsonutil.ExtractJSONFromResponse[[]rawTask](raw); err != nil {
			return nil, fmt.Errorf("failed to parse sub-task array: %w", err)
		}
	} else {
		plan, err := jsonutil.ExtractJSONFromResponse[rawPlan](raw)
		if err != nil {
			return nil, fmt.Errorf("failed to parse sub-task object: %w", err)
		}
		items = plan.SubTasks
		if len(items) == 0 {
			items = plan.Tasks
		}
	}
	if len(items) == 0 {
		return nil, errors.New("no sub-tasks in response")
	}

	tasks := make([]SubTask, len(items))
	for i, it := range items {
		tasks[i] = SubTask{
			Index:     i,
			Title:     it.Title,
			Question:  it.Question,
			Priority:  it.Priority,
			Provider:  it.Provider,
			DependsOn: it.DependsOn,
		}
	}
	return tasks, nil
}
