package orchestration

// Stage names a point in a Conduct run.
type Stage string

const (
	StageAnalyzing    Stage = "analyzing"
	StageAnalyzed     Stage = "analyzed"
	StageDecomposing  Stage = "decomposing"
	StageTasksCreated Stage = "tasks_created"
	StageExecuting    Stage = "executing"
	StageTaskComplete Stage = "task_complete"
	StageSynthesizing Stage = "synthesizing"
	StageQuerying     Stage = "querying"
	StageFallback     Stage = "fallback"
	StageComplete     Stage = "complete"
	StageFailed       Stage = "failed"
)

// ProgressEvent is one stage update.
type ProgressEvent struct {
	Stage   Stage  `json:"stage"`
	Message string `json:"message"`
	Percent int    `json:"percent"`
	// Current and Total are set for per-task stages.
	Current int `json:"current,omitempty"`
	Total   int `json:"total,omitempty"`
}

// ProgressFunc receives progress events. It is called synchronously from the
// goroutine running Conduct and must not block for long.
type ProgressFunc func(ProgressEvent)

func (f ProgressFunc) emit(e ProgressEvent) {
	if f != nil {
		f(e)
	}
}

// taskPercent spreads task progress over 30..90 percent.
func taskPercent(done, total int) int {
	if total <= 0 {
		return 30
	}
	return 30 + 60*done/total
}
