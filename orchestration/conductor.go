// Conductor - query routing across LLM providers.
//
// Analyzes a prompt, then answers it directly, with an enhanced prompt, or by
// decomposing it into sub-tasks that are answered and synthesized.
//
// Information Hiding:
// - Routing policy and fallback chain hidden
// - Provider failures, parse failures and panics absorbed into a Result
// - Callers only ever see a well-formed Result

package orchestration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/richinex/conductor/llm"
)

const tracerName = "github.com/richinex/conductor/orchestration"

var errNoProviders = errors.New("no providers configured")

// Recorder receives one observation per Conduct call and per fallback taken.
type Recorder interface {
	ObserveConduct(mode, tier string, elapsed time.Duration, tasksSucceeded, tasksFailed int)
	ObserveFallback(stage string)
}

type nopRecorder struct{}

func (nopRecorder) ObserveConduct(string, string, time.Duration, int, int) {}
func (nopRecorder) ObserveFallback(string)                                 {}

// Option configures a Conductor.
type Option func(*Conductor)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Conductor) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(c *Conductor) {
		if r != nil {
			c.recorder = r
		}
	}
}

// WithTracer sets the tracer. Defaults to the global tracer provider.
func WithTracer(t trace.Tracer) Option {
	return func(c *Conductor) {
		if t != nil {
			c.tracer = t
		}
	}
}

// Conductor routes prompts to providers. It holds no per-request state and
// is safe for concurrent use.
type Conductor struct {
	registry    *llm.Registry
	cfg         Config
	analyzer    *Analyzer
	decomposer  *Decomposer
	executor    *Executor
	synthesizer *Synthesizer
	logger      *zap.Logger
	recorder    Recorder
	tracer      trace.Tracer
}

// New creates a conductor over already-constructed providers.
func New(registry *llm.Registry, cfg Config, opts ...Option) *Conductor {
	if registry == nil {
		registry = llm.NewRegistry()
	}
	given := cfg.Cutoffs
	cfg = cfg.withDefaults()
	c := &Conductor{
		registry: registry,
		cfg:      cfg,
		logger:   zap.NewNop(),
		recorder: nopRecorder{},
		tracer:   otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(c)
	}
	if err := given.Validate(); err != nil && given != (Cutoffs{}) {
		c.logger.Warn("invalid tier cutoffs, using defaults", zap.Error(err))
	}
	c.analyzer = NewAnalyzer(cfg)
	c.decomposer = NewDecomposer(registry, cfg, c.logger.Named("decomposer"))
	c.executor = NewExecutor(registry, c.logger.Named("executor"))
	c.synthesizer = NewSynthesizer(registry, cfg, c.logger.Named("synthesizer"))
	return c
}

// Registry returns the providers the conductor dispatches to.
func (c *Conductor) Registry() *llm.Registry {
	return c.registry
}

// Analyze scores prompt without calling any provider.
func (c *Conductor) Analyze(prompt string, hasFiles bool) ComplexityAnalysis {
	return c.analyzer.AnalyzeWithFiles(prompt, hasFiles)
}

// Conduct answers req. It never returns an error: total failure yields a
// Result with Mode "failed" and an apology as FinalText.
func (c *Conductor) Conduct(ctx context.Context, req Request) (res Result) {
	start := time.Now()
	res = Result{RequestID: uuid.NewString(), StartedAt: start.UTC()}

	ctx, span := c.tracer.Start(ctx, "conductor.conduct")
	defer span.End()

	log := c.logger.With(zap.String("request_id", res.RequestID))

	defer func() {
		if r := recover(); r != nil {
			log.Error("conduct panicked", zap.Any("panic", r), zap.Stack("stack"))
			c.fail(&res, nil, fmt.Errorf("internal error: %v", r))
		}
		res.Metadata.ElapsedMs = time.Since(start).Milliseconds()

		tier := ""
		if res.Analysis != nil {
			tier = string(res.Analysis.Tier)
		}
		span.SetAttributes(
			attribute.String("conductor.mode", string(res.Mode)),
			attribute.String("conductor.tier", tier),
			attribute.Int("conductor.sub_tasks", len(res.SubTasks)),
		)
		if res.Failed() {
			span.SetStatus(codes.Error, res.Metadata.Error)
		}
		c.recorder.ObserveConduct(string(res.Mode), tier, time.Since(start),
			res.Metadata.TasksSucceeded, res.Metadata.TasksFailed)
		log.Info("conduct finished",
			zap.String("mode", string(res.Mode)),
			zap.String("tier", tier),
			zap.Int64("elapsed_ms", res.Metadata.ElapsedMs),
			zap.Uint32("total_tokens", res.Usage.TotalTokens),
		)
	}()

	prompt := enrichPrompt(req.Prompt, req.Project, c.cfg.ProjectSummaryChars, c.cfg.ProjectMaxFiles)

	if req.Mode != "" {
		if c.runForced(ctx, &res, req, prompt) {
			res.Metadata.Forced = true
			c.complete(&res, req.Progress)
			return res
		}
		log.Warn("unknown forced mode, routing automatically", zap.String("mode", string(req.Mode)))
	}

	req.Progress.emit(ProgressEvent{Stage: StageAnalyzing, Message: "Analyzing query complexity", Percent: 10})
	hasFiles := req.Project != nil && len(req.Project.Files) > 0
	analysis := c.analyzer.AnalyzeWithFiles(req.Prompt, hasFiles)
	res.Analysis = &analysis
	req.Progress.emit(ProgressEvent{
		Stage:   StageAnalyzed,
		Message: fmt.Sprintf("Query classified as %s (score %d)", analysis.Tier, analysis.Score),
		Percent: 20,
	})
	log.Debug("query analyzed",
		zap.String("tier", string(analysis.Tier)),
		zap.Int("score", analysis.Score),
		zap.Strings("indicators", analysis.Indicators.Active()),
	)

	switch analysis.Strategy {
	case StrategyDecompose:
		c.orchestrate(ctx, &res, req, prompt, analysis.Tier)
	case StrategyEnhanced:
		c.direct(ctx, &res, req, enhancedPrompt(prompt), ModeModerate)
	default:
		c.direct(ctx, &res, req, prompt, ModeSimple)
	}
	c.complete(&res, req.Progress)
	return res
}

// fallbackChain is the primary provider followed by the configured fallback order.
func (c *Conductor) fallbackChain() []llm.Provider {
	primary := c.cfg.PrimaryProvider
	if primary == "" {
		primary = c.registry.DefaultName()
	}
	return c.registry.Chain(append([]string{primary}, c.cfg.FallbackOrder...)...)
}

// direct answers prompt with one call, walking the fallback chain on failure.
func (c *Conductor) direct(ctx context.Context, res *Result, req Request, prompt string, mode Mode) {
	chain := c.fallbackChain()
	if len(chain) == 0 {
		c.fail(res, req.Progress, errNoProviders)
		return
	}
	req.Progress.emit(ProgressEvent{Stage: StageQuerying, Message: "Querying " + llm.DisplayNameFor(chain[0].Name()), Percent: 50})

	reply, err := c.tryChain(ctx, chain, req.History, prompt)
	res.Usage.AddCall(reply.Usage, err != nil)
	res.Responses = append(res.Responses, reply)
	if err != nil {
		c.fail(res, req.Progress, err)
		return
	}
	if reply.Provider != chain[0].Name() {
		c.recorder.ObserveFallback("provider")
	}
	res.Mode = mode
	res.FinalText = reply.Text
	res.Metadata.Provider = reply.Provider
	res.Metadata.Model = reply.Model
}

// tryChain is a fallback call reported as an llm.Reply from whichever provider answered.
func (c *Conductor) tryChain(ctx context.Context, chain []llm.Provider, history []llm.ChatMessage, prompt string) (llm.Reply, error) {
	messages := make([]llm.ChatMessage, 0, len(history)+1)
	messages = append(messages, history...)
	messages = append(messages, llm.UserMessage(prompt))

	fb := llm.NewFallbackProvider(chain, c.logger)
	start := time.Now()
	resp, p, err := fb.Try(ctx, messages, nil)
	reply := llm.Reply{Latency: time.Since(start)}
	if err != nil {
		reply.Provider = fb.Name()
		reply.Model = fb.Model()
		reply.Error = err.Error()
		return reply, err
	}
	reply.Provider = p.Name()
	reply.Model = p.Model()
	reply.Text = resp.Content
	reply.Usage = resp.Usage
	return reply, nil
}

// orchestrate runs decompose, execute and synthesize.
func (c *Conductor) orchestrate(ctx context.Context, res *Result, req Request, prompt string, tier Tier) {
	progress := req.Progress

	progress.emit(ProgressEvent{Stage: StageDecomposing, Message: "Breaking query into focused parts", Percent: 25})
	dctx, dspan := c.tracer.Start(ctx, "conductor.decompose")
	plan := c.decomposer.Decompose(dctx, prompt, tier)
	dspan.SetAttributes(attribute.Int("conductor.sub_tasks", len(plan.Tasks)), attribute.Bool("conductor.fallback", plan.Fallback))
	dspan.End()
	if plan.Provider != "" {
		res.Usage.AddCall(plan.Usage, plan.Fallback && plan.Usage == nil)
	}
	if plan.Fallback {
		res.Metadata.DecompositionFallback = true
		res.Metadata.FallbackReason = plan.Reason
		c.recorder.ObserveFallback("decomposition")
	}
	progress.emit(ProgressEvent{
		Stage:   StageTasksCreated,
		Message: fmt.Sprintf("Created %d focused tasks", len(plan.Tasks)),
		Percent: 30,
		Total:   len(plan.Tasks),
	})

	ectx, espan := c.tracer.Start(ctx, "conductor.execute")
	tasks := c.executor.ExecuteWithProgress(ectx, plan.Tasks, req.History, progress)
	espan.End()
	succeeded, failed := countOutcomes(tasks)
	for _, t := range tasks {
		res.Usage.AddCall(t.Usage, !t.Succeeded())
	}
	res.SubTasks = tasks
	res.Metadata.TasksSucceeded = succeeded
	res.Metadata.TasksFailed = failed

	if succeeded == 0 {
		c.logger.Warn("all sub-tasks failed, answering directly", zap.Int("tasks", len(tasks)))
		c.recorder.ObserveFallback("sub_tasks")
		progress.emit(ProgressEvent{Stage: StageFallback, Message: "All parts failed, trying a direct answer", Percent: 95})
		res.Metadata.FallbackReason = "all sub-tasks failed"
		chain := c.fallbackChain()
		if len(chain) == 0 {
			c.fail(res, progress, errNoProviders)
			return
		}
		reply, err := c.tryChain(ctx, chain, req.History, prompt)
		res.Usage.AddCall(reply.Usage, err != nil)
		if err != nil {
			c.fail(res, progress, err)
			return
		}
		res.Mode = ModeOrchestrated
		res.FinalText = reply.Text
		res.Metadata.Provider = reply.Provider
		res.Metadata.Model = reply.Model
		return
	}

	progress.emit(ProgressEvent{Stage: StageSynthesizing, Message: "Combining answers", Percent: 90})
	sctx, sspan := c.tracer.Start(ctx, "conductor.synthesize")
	syn := c.synthesizer.Synthesize(sctx, prompt, tasks)
	sspan.End()
	if syn.LLMUsed {
		res.Usage.AddCall(syn.Usage, syn.Error != "")
	}
	if syn.Fallback {
		res.Metadata.SynthesisFallback = true
		c.recorder.ObserveFallback("synthesis")
	}
	res.Mode = ModeOrchestrated
	res.FinalText = syn.Text
	res.Metadata.Provider = syn.Provider
}

// fail turns res into the all-models-unavailable result.
func (c *Conductor) fail(res *Result, progress ProgressFunc, err error) {
	res.Mode = ModeFailed
	res.FinalText = apologyAllUnavailable
	res.Metadata.Error = err.Error()
	c.logger.Error("conduct failed", zap.String("request_id", res.RequestID), zap.Error(err))
	progress.emit(ProgressEvent{Stage: StageFailed, Message: err.Error(), Percent: 100})
}

func (c *Conductor) complete(res *Result, progress ProgressFunc) {
	if res.Failed() {
		return
	}
	progress.emit(ProgressEvent{Stage: StageComplete, Message: "Analysis complete", Percent: 100})
}
