package orchestration

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(i int) *int { return &i }

func knownOf(names ...string) func(string) bool {
	return func(name string) bool {
		for _, n := range names {
			if n == name {
				return true
			}
		}
		return false
	}
}

func TestValidatePlanDropsEmptyAndRemapsDependencies(t *testing.T) {
	tasks := []SubTask{
		{Title: "First", Question: "q0"},
		{Title: "Blank", Question: "   "},
		{Title: "Second", Question: "q2", DependsOn: intPtr(0)},
		{Title: "Third", Question: "q3", DependsOn: intPtr(1)},
	}

	out, result := ValidatePlan(tasks, PlanRules{MaxTasks: 7, DefaultProvider: "gemini"})

	require.True(t, result.Valid)
	require.Len(t, out, 3)
	for i, task := range out {
		assert.Equal(t, i, task.Index)
		assert.Equal(t, TaskPending, task.Status)
	}
	require.NotNil(t, out[1].DependsOn)
	assert.Equal(t, 0, *out[1].DependsOn)
	assert.Nil(t, out[2].DependsOn, "dependency on a dropped task is cleared")
	assert.NotEmpty(t, result.Warnings)
}

func TestValidatePlanClearsForwardAndSelfDependencies(t *testing.T) {
	tasks := []SubTask{
		{Question: "a", DependsOn: intPtr(1)},
		{Question: "b", DependsOn: intPtr(1)},
	}

	out, result := ValidatePlan(tasks, PlanRules{})

	require.True(t, result.Valid)
	assert.Nil(t, out[0].DependsOn)
	assert.Nil(t, out[1].DependsOn)
}

func TestValidatePlanTruncates(t *testing.T) {
	tasks := []SubTask{{Question: "a"}, {Question: "b"}, {Question: "c"}}

	out, result := ValidatePlan(tasks, PlanRules{MaxTasks: 2})

	assert.True(t, result.Valid)
	assert.Len(t, out, 2)
	assert.Contains(t, result.Warnings, "plan truncated to 2 tasks")
}

func TestValidatePlanClampsPriority(t *testing.T) {
	tasks := []SubTask{
		{Question: "a"},
		{Question: "b", Priority: 9},
		{Question: "c", Priority: 3},
	}

	out, result := ValidatePlan(tasks, PlanRules{})

	assert.Equal(t, 1, out[0].Priority)
	assert.Equal(t, 5, out[1].Priority)
	assert.Equal(t, 3, out[2].Priority)
	assert.Len(t, result.Warnings, 1)
}

func TestValidatePlanProviderHints(t *testing.T) {
	tasks := []SubTask{
		{Question: "a", Provider: "deepseek"},
		{Question: "b", Provider: "mystery"},
		{Question: "c"},
	}

	out, _ := ValidatePlan(tasks, PlanRules{
		DefaultProvider: "gemini",
		KnownProvider:   knownOf("gemini", "deepseek"),
	})

	assert.Equal(t, "deepseek", out[0].Provider)
	assert.Equal(t, "gemini", out[1].Provider)
	assert.Equal(t, "gemini", out[2].Provider)
}

func TestValidatePlanDefaultsTitle(t *testing.T) {
	out, _ := ValidatePlan([]SubTask{{Question: "a"}, {Title: " Named ", Question: "b"}}, PlanRules{})

	assert.Equal(t, "Part 1", out[0].Title)
	assert.Equal(t, "Named", out[1].Title)
}

func TestValidatePlanResetsExecutionState(t *testing.T) {
	out, _ := ValidatePlan([]SubTask{{Question: "a", Answer: "stale", Status: TaskSuccess, Error: "x"}}, PlanRules{})

	assert.Equal(t, TaskPending, out[0].Status)
	assert.Empty(t, out[0].Answer)
	assert.Empty(t, out[0].Error)
}

func TestValidatePlanEmpty(t *testing.T) {
	out, result := ValidatePlan([]SubTask{{Question: ""}}, PlanRules{})

	assert.Empty(t, out)
	assert.False(t, result.Valid)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "EmptyPlan", result.Errors[0].ErrorType)
}
