// Plan validation.
//
// Checks a decomposer's output before execution and repairs what it can.
//
// Information Hiding:
// - Repair rules (bounds, dependency order, provider hints) hidden
// - Callers see the repaired plan plus a ValidationResult for logging

package orchestration

import (
	"fmt"
	"strings"
)

// ValidationResult contains the result of validation with detailed feedback.
type ValidationResult struct {
	Valid    bool              `json:"valid"`
	Errors   []ValidationError `json:"errors"`
	Warnings []string          `json:"warnings"`
}

// ValidationError contains validation error details.
type ValidationError struct {
	Field     string `json:"field"`
	ErrorType string `json:"error_type"`
	Message   string `json:"message"`
}

// NewValidationSuccess creates a successful validation result.
func NewValidationSuccess() ValidationResult {
	return ValidationResult{
		Valid:    true,
		Errors:   []ValidationError{},
		Warnings: []string{},
	}
}

// NewValidationFailure creates a failed validation result.
func NewValidationFailure(errors []ValidationError) ValidationResult {
	return ValidationResult{
		Valid:    false,
		Errors:   errors,
		Warnings: []string{},
	}
}

// WithWarnings adds warnings to the validation result.
func (v ValidationResult) WithWarnings(warnings []string) ValidationResult {
	v.Warnings = warnings
	return v
}

const (
	minPriority = 1
	maxPriority = 5
)

// PlanRules are the constraints a plan is checked against.
type PlanRules struct {
	MaxTasks        int
	DefaultProvider string
	// KnownProvider reports whether a provider hint can be dispatched.
	KnownProvider func(name string) bool
}

// ValidatePlan repairs tasks against rules and reports what changed.
// Tasks without a question are dropped, the list is truncated to MaxTasks,
// dependencies must point at an earlier task, unknown provider hints fall back
// to the default, and priorities are clamped. The result is invalid only when
// no usable task remains.
func ValidatePlan(tasks []SubTask, rules PlanRules) ([]SubTask, ValidationResult) {
	warnings := []string{}
	out := make([]SubTask, 0, len(tasks))
	// Maps an original index to its position after dropping empty tasks.
	remap := make(map[int]int, len(tasks))

	for i, t := range tasks {
		t.Question = strings.TrimSpace(t.Question)
		t.Title = strings.TrimSpace(t.Title)
		if t.Question == "" {
			warnings = append(warnings, fmt.Sprintf("task %d dropped: empty question", i))
			continue
		}
		if rules.MaxTasks > 0 && len(out) == rules.MaxTasks {
			warnings = append(warnings, fmt.Sprintf("plan truncated to %d tasks", rules.MaxTasks))
			break
		}

		remap[i] = len(out)
		t.Index = len(out)
		if t.Title == "" {
			t.Title = fmt.Sprintf("Part %d", t.Index+1)
		}
		if t.Priority < minPriority || t.Priority > maxPriority {
			if t.Priority != 0 {
				warnings = append(warnings, fmt.Sprintf("task %d priority %d clamped", t.Index, t.Priority))
			}
			t.Priority = clamp(t.Priority, minPriority, maxPriority)
		}

		if t.Provider != "" && rules.KnownProvider != nil && !rules.KnownProvider(t.Provider) {
			warnings = append(warnings, fmt.Sprintf("task %d provider %q unknown, using %q", t.Index, t.Provider, rules.DefaultProvider))
			t.Provider = rules.DefaultProvider
		}
		if t.Provider == "" {
			t.Provider = rules.DefaultProvider
		}

		if t.DependsOn != nil {
			dep, ok := remap[*t.DependsOn]
			if !ok || dep >= t.Index {
				warnings = append(warnings, fmt.Sprintf("task %d dependency %d ignored", t.Index, *t.DependsOn))
				t.DependsOn = nil
			} else {
				t.DependsOn = &dep
			}
		}

		t.Status = TaskPending
		t.Answer = ""
		t.Error = ""
		out = append(out, t)
	}

	if len(out) == 0 {
		return out, NewValidationFailure([]ValidationError{{
			Field:     "sub_tasks",
			ErrorType: "EmptyPlan",
			Message:   "decomposition produced no usable sub-tasks",
		}}).WithWarnings(warnings)
	}
	return out, NewValidationSuccess().WithWarnings(warnings)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
