// Task Executor.
//
// Runs sub-tasks one after another, each on its hinted provider.
//
// Information Hiding:
// - Dependency context splicing hidden
// - Provider errors become failed tasks; execution always runs to the end

package orchestration

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/richinex/conductor/llm"
)

// Executor answers sub-tasks sequentially.
type Executor struct {
	registry *llm.Registry
	logger   *zap.Logger
}

// NewExecutor creates an executor dispatching through registry.
func NewExecutor(registry *llm.Registry, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{registry: registry, logger: logger}
}

// Execute answers every task and returns them in the same order.
func (e *Executor) Execute(ctx context.Context, tasks []SubTask, history []llm.ChatMessage) []SubTask {
	return e.ExecuteWithProgress(ctx, tasks, history, nil)
}

// ExecuteWithProgress is Execute with a progress event before and after each task.
// A task whose dependency succeeded gets that answer prepended to its question.
// Once ctx is done the remaining tasks are marked failed without a call.
func (e *Executor) ExecuteWithProgress(ctx context.Context, tasks []SubTask, history []llm.ChatMessage, progress ProgressFunc) []SubTask {
	out := make([]SubTask, len(tasks))
	copy(out, tasks)
	total := len(out)

	for i := range out {
		t := &out[i]

		if err := ctx.Err(); err != nil {
			e.fail(t, err)
			continue
		}

		progress.emit(ProgressEvent{
			Stage:   StageExecuting,
			Message: fmt.Sprintf("Processing part %d of %d: %s", i+1, total, t.Title),
			Percent: taskPercent(i, total),
			Current: i + 1,
			Total:   total,
		})

		p := e.registry.Resolve(t.Provider)
		if p == nil {
			e.fail(t, llm.ErrUnknownProvider)
			continue
		}
		t.Provider = p.Name()

		prior := ""
		if t.DependsOn != nil {
			if dep := *t.DependsOn; dep >= 0 && dep < i && out[dep].Succeeded() {
				prior = out[dep].Answer
			}
		}

		reply, err := llm.NewClient(p).Query(ctx, taskPrompt(*t, prior), history)
		t.LatencyMs = reply.Latency.Milliseconds()
		t.Usage = reply.Usage
		switch {
		case err != nil:
			e.fail(t, err)
		case strings.TrimSpace(reply.Text) == "":
			e.fail(t, llm.ErrEmptyResponse)
		default:
			t.Status = TaskSuccess
			t.Answer = reply.Text
			t.Error = ""
		}

		progress.emit(ProgressEvent{
			Stage:   StageTaskComplete,
			Message: fmt.Sprintf("Completed part %d of %d", i+1, total),
			Percent: taskPercent(i+1, total),
			Current: i + 1,
			Total:   total,
		})
	}
	return out
}

func (e *Executor) fail(t *SubTask, err error) {
	t.Status = TaskFailed
	t.Error = err.Error()
	t.Answer = failureNote(*t, t.Error)
	e.logger.Warn("sub-task failed",
		zap.Int("index", t.Index),
		zap.String("title", t.Title),
		zap.String("provider", t.Provider),
		zap.Error(err),
	)
}

// countOutcomes returns how many tasks succeeded and failed.
func countOutcomes(tasks []SubTask) (succeeded, failed int) {
	for _, t := range tasks {
		if t.Succeeded() {
			succeeded++
		} else {
			failed++
		}
	}
	return succeeded, failed
}
