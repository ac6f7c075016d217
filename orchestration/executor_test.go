package orchestration

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/richinex/conductor/llm"
)

func failWhenContains(marker string) func(string) (string, error) {
	return func(prompt string) (string, error) {
		if strings.Contains(prompt, marker) {
			return "", errBoom
		}
		return "answer to: " + prompt, nil
	}
}

func TestExecuteIsolatesFailures(t *testing.T) {
	p := newStub("gemini", router{answer: failWhenContains("FAIL")}.respond)
	e := NewExecutor(llm.NewRegistry(p), nil)
	tasks := []SubTask{
		{Index: 0, Title: "One", Question: "first", Status: TaskPending},
		{Index: 1, Title: "Two", Question: "FAIL here", Status: TaskPending},
		{Index: 2, Title: "Three", Question: "third", Status: TaskPending},
	}

	out := e.Execute(context.Background(), tasks, nil)

	require.Len(t, out, 3)
	assert.Equal(t, TaskSuccess, out[0].Status)
	assert.Equal(t, "answer to: first", out[0].Answer)
	assert.Equal(t, TaskFailed, out[1].Status)
	assert.Equal(t, `[Could not complete "Two": gemini: boom]`, out[1].Answer)
	assert.Contains(t, out[1].Error, "boom")
	assert.Equal(t, TaskSuccess, out[2].Status)
	assert.Equal(t, 3, p.callCount())

	for _, task := range tasks {
		assert.Equal(t, TaskPending, task.Status, "input tasks are not modified")
		assert.Empty(t, task.Answer)
	}
}

func TestExecuteReturnsOneResultPerTask(t *testing.T) {
	e := NewExecutor(llm.NewRegistry(failing("gemini")), nil)
	for n := 0; n <= 5; n++ {
		tasks := make([]SubTask, n)
		for i := range tasks {
			tasks[i] = SubTask{Index: i, Title: "t", Question: "q"}
		}
		out := e.Execute(context.Background(), tasks, nil)
		require.Len(t, out, n)
		for _, task := range out {
			assert.Equal(t, TaskFailed, task.Status)
		}
	}
}

func TestExecuteSplicesDependencyAnswer(t *testing.T) {
	p := newStub("gemini", router{}.respond)
	e := NewExecutor(llm.NewRegistry(p), nil)
	tasks := []SubTask{
		{Index: 0, Title: "Base", Question: "base question"},
		{Index: 1, Title: "Follow", Question: "follow up", DependsOn: intPtr(0)},
	}

	out := e.Execute(context.Background(), tasks, nil)

	require.Equal(t, TaskSuccess, out[1].Status)
	assert.Equal(t, "Context from previous answer:\nanswer to: base question\n\nfollow up", p.lastPrompt())
}

func TestExecuteSkipsContextFromFailedDependency(t *testing.T) {
	p := newStub("gemini", router{answer: failWhenContains("base")}.respond)
	e := NewExecutor(llm.NewRegistry(p), nil)
	tasks := []SubTask{
		{Index: 0, Title: "Base", Question: "base question"},
		{Index: 1, Title: "Follow", Question: "follow up", DependsOn: intPtr(0)},
	}

	e.Execute(context.Background(), tasks, nil)

	assert.Equal(t, "follow up", p.lastPrompt())
}

func TestExecuteDispatchesByProviderHint(t *testing.T) {
	gemini := answering("gemini", "from gemini")
	deepseek := answering("deepseek", "from deepseek")
	e := NewExecutor(llm.NewRegistry(gemini, deepseek), nil)
	tasks := []SubTask{
		{Index: 0, Title: "A", Question: "a", Provider: "deepseek"},
		{Index: 1, Title: "B", Question: "b", Provider: "unknown"},
	}

	out := e.Execute(context.Background(), tasks, nil)

	assert.Equal(t, "from deepseek", out[0].Answer)
	assert.Equal(t, "from gemini", out[1].Answer)
	assert.Equal(t, "gemini", out[1].Provider)
}

func TestExecuteEmptyReplyFails(t *testing.T) {
	for _, reply := range []string{"", "  \n\t "} {
		e := NewExecutor(llm.NewRegistry(answering("gemini", reply)), nil)

		out := e.Execute(context.Background(), []SubTask{{Title: "A", Question: "a"}}, nil)

		assert.Equal(t, TaskFailed, out[0].Status, "reply %q", reply)
		assert.Equal(t, llm.ErrEmptyResponse.Error(), out[0].Error)
	}
}

func TestExecuteCancelledContext(t *testing.T) {
	p := answering("gemini", "x")
	e := NewExecutor(llm.NewRegistry(p), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := e.Execute(ctx, []SubTask{{Title: "A", Question: "a"}, {Title: "B", Question: "b"}}, nil)

	assert.Equal(t, 0, p.callCount())
	for _, task := range out {
		assert.Equal(t, TaskFailed, task.Status)
		assert.Contains(t, task.Error, context.Canceled.Error())
	}
}

func TestExecutePassesHistory(t *testing.T) {
	var seen []llm.ChatMessage
	p := newStub("gemini", func(messages []llm.ChatMessage, _ *llm.ResponseFormat) (string, error) {
		seen = messages
		return "ok", nil
	})
	history := []llm.ChatMessage{llm.UserMessage("earlier"), llm.AssistantMessage("reply")}

	NewExecutor(llm.NewRegistry(p), nil).Execute(context.Background(), []SubTask{{Title: "A", Question: "now"}}, history)

	require.Len(t, seen, 3)
	assert.Equal(t, "earlier", seen[0].Content)
	assert.Equal(t, "now", seen[2].Content)
	assert.Len(t, history, 2)
}

func TestExecuteReportsProgress(t *testing.T) {
	e := NewExecutor(llm.NewRegistry(answering("gemini", "ok")), nil)
	var events []ProgressEvent

	e.ExecuteWithProgress(context.Background(),
		[]SubTask{{Title: "A", Question: "a"}, {Title: "B", Question: "b"}}, nil,
		func(ev ProgressEvent) { events = append(events, ev) })

	require.Len(t, events, 4)
	assert.Equal(t, StageExecuting, events[0].Stage)
	assert.Equal(t, 30, events[0].Percent)
	assert.Equal(t, StageTaskComplete, events[1].Stage)
	assert.Equal(t, 60, events[1].Percent)
	assert.Equal(t, 90, events[3].Percent)
	assert.Equal(t, 2, events[3].Total)
}
