package orchestration

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/richinex/conductor/llm"
)

// runForced runs the strategy named by req.Mode. It returns false when the
// mode is not recognized, leaving res untouched.
func (c *Conductor) runForced(ctx context.Context, res *Result, req Request, prompt string) bool {
	mode := ParseMode(string(req.Mode))
	switch mode {
	case ModeSimple:
		c.direct(ctx, res, req, prompt, ModeSimple)
	case ModeModerate:
		c.direct(ctx, res, req, enhancedPrompt(prompt), ModeModerate)
	case ModeOrchestrated:
		c.orchestrate(ctx, res, req, prompt, TierComplex)
	case ModeConsensus:
		c.consensus(ctx, res, req, prompt, c.registry.Providers(), ModeConsensus)
	case ModePowerDuo:
		duo := c.exact(c.cfg.PowerDuo)
		if len(duo) == 0 {
			duo = c.registry.Providers()
		}
		c.consensus(ctx, res, req, prompt, duo, ModePowerDuo)
	case ModeFastest:
		c.fastest(ctx, res, req, prompt)
	case ModeBest:
		c.best(ctx, res, req, prompt)
	case ModeParallel:
		c.parallel(ctx, res, req, prompt)
	default:
		name, ok := mode.OnlyProvider()
		if !ok {
			return false
		}
		p, ok := c.registry.Get(name)
		if !ok {
			return false
		}
		c.only(ctx, res, req, prompt, p, mode)
	}
	return true
}

// exact returns the registered providers among names, without the default appended.
func (c *Conductor) exact(names []string) []llm.Provider {
	var out []llm.Provider
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		p, ok := c.registry.Get(name)
		if !ok || seen[p.Name()] {
			continue
		}
		seen[p.Name()] = true
		out = append(out, p)
	}
	return out
}

// queryAll asks every provider in turn and returns all replies, failed ones included.
func (c *Conductor) queryAll(ctx context.Context, res *Result, req Request, prompt string, providers []llm.Provider) []llm.Reply {
	replies := make([]llm.Reply, 0, len(providers))
	for i, p := range providers {
		if ctx.Err() != nil {
			break
		}
		req.Progress.emit(ProgressEvent{
			Stage:   StageQuerying,
			Message: "Querying " + llm.DisplayNameFor(p.Name()),
			Percent: taskPercent(i, len(providers)),
			Current: i + 1,
			Total:   len(providers),
		})
		reply, err := llm.NewClient(p).Query(ctx, prompt, req.History)
		res.Usage.AddCall(reply.Usage, err != nil)
		if err != nil {
			c.logger.Warn("provider failed", zap.String("provider", p.Name()), zap.Error(err))
		}
		replies = append(replies, reply)
	}
	res.Responses = append(res.Responses, replies...)
	return replies
}

func successful(replies []llm.Reply) []llm.Reply {
	var out []llm.Reply
	for _, r := range replies {
		if r.OK() {
			out = append(out, r)
		}
	}
	return out
}

// only calls a single provider with no fallback.
func (c *Conductor) only(ctx context.Context, res *Result, req Request, prompt string, p llm.Provider, mode Mode) {
	ok := successful(c.queryAll(ctx, res, req, prompt, []llm.Provider{p}))
	if len(ok) == 0 {
		c.fail(res, req.Progress, fmt.Errorf("%s: %w", p.Name(), llm.ErrAllProvidersFailed))
		return
	}
	res.Mode = mode
	res.FinalText = ok[0].Text
	res.Metadata.Provider = ok[0].Provider
	res.Metadata.Model = ok[0].Model
}

// consensus merges every successful reply through the judge provider.
func (c *Conductor) consensus(ctx context.Context, res *Result, req Request, prompt string, providers []llm.Provider, mode Mode) {
	ok := successful(c.queryAll(ctx, res, req, prompt, providers))
	switch len(ok) {
	case 0:
		c.fail(res, req.Progress, fmt.Errorf("%w (%d tried)", llm.ErrAllProvidersFailed, len(providers)))
		return
	case 1:
		res.Mode = mode
		res.FinalText = ok[0].Text
		res.Metadata.Provider = ok[0].Provider
		return
	}

	req.Progress.emit(ProgressEvent{Stage: StageSynthesizing, Message: "Combining provider answers", Percent: 90})
	res.Mode = mode
	text, provider, err := c.judge(ctx, res, consensusPrompt(prompt, ok))
	if err != nil {
		c.logger.Warn("consensus synthesis failed, listing answers", zap.Error(err))
		c.recorder.ObserveFallback("synthesis")
		res.Metadata.SynthesisFallback = true
		res.FinalText = sideBySide(ok)
		return
	}
	res.FinalText = text
	res.Metadata.Provider = provider
}

// fastest keeps the successful reply with the lowest latency.
func (c *Conductor) fastest(ctx context.Context, res *Result, req Request, prompt string) {
	ok := successful(c.queryAll(ctx, res, req, prompt, c.registry.Providers()))
	if len(ok) == 0 {
		c.fail(res, req.Progress, fmt.Errorf("%w (%d tried)", llm.ErrAllProvidersFailed, c.registry.Len()))
		return
	}
	win := ok[0]
	for _, r := range ok[1:] {
		if r.Latency < win.Latency {
			win = r
		}
	}
	res.Mode = ModeFastest
	res.FinalText = win.Text
	res.Metadata.Provider = win.Provider
	res.Metadata.Model = win.Model
}

// best asks the judge which successful reply is best. An unusable verdict
// keeps the first success.
func (c *Conductor) best(ctx context.Context, res *Result, req Request, prompt string) {
	ok := successful(c.queryAll(ctx, res, req, prompt, c.registry.Providers()))
	if len(ok) == 0 {
		c.fail(res, req.Progress, fmt.Errorf("%w (%d tried)", llm.ErrAllProvidersFailed, c.registry.Len()))
		return
	}
	win := ok[0]
	if len(ok) > 1 {
		verdict, _, err := c.judge(ctx, res, judgePrompt(prompt, ok))
		if err != nil {
			c.logger.Warn("best-answer judging failed, keeping first answer", zap.Error(err))
		} else if picked, found := pickReply(verdict, ok); found {
			win = picked
		}
	}
	res.Mode = ModeBest
	res.FinalText = win.Text
	res.Metadata.Provider = win.Provider
	res.Metadata.Model = win.Model
}

// parallel returns every successful reply under its provider heading.
func (c *Conductor) parallel(ctx context.Context, res *Result, req Request, prompt string) {
	ok := successful(c.queryAll(ctx, res, req, prompt, c.registry.Providers()))
	if len(ok) == 0 {
		c.fail(res, req.Progress, fmt.Errorf("%w (%d tried)", llm.ErrAllProvidersFailed, c.registry.Len()))
		return
	}
	res.Mode = ModeParallel
	res.FinalText = sideBySide(ok)
}

// judge sends prompt to the judge provider, falling back along the normal chain.
func (c *Conductor) judge(ctx context.Context, res *Result, prompt string) (string, string, error) {
	chain := c.registry.Chain(append([]string{c.cfg.JudgeProvider}, c.cfg.FallbackOrder...)...)
	if len(chain) == 0 {
		return "", "", errNoProviders
	}
	callCtx, cancel := context.WithTimeout(ctx, c.cfg.StepTimeout)
	defer cancel()
	reply, err := c.tryChain(callCtx, chain, nil, prompt)
	res.Usage.AddCall(reply.Usage, err != nil)
	if err != nil {
		return "", "", err
	}
	return reply.Text, reply.Provider, nil
}

// pickReply finds the reply whose provider the verdict names.
func pickReply(verdict string, replies []llm.Reply) (llm.Reply, bool) {
	v := strings.ToLower(verdict)
	for _, r := range replies {
		if strings.Contains(v, strings.ToLower(r.Provider)) {
			return r, true
		}
	}
	for _, r := range replies {
		if strings.Contains(v, strings.ToLower(llm.DisplayNameFor(r.Provider))) {
			return r, true
		}
	}
	return llm.Reply{}, false
}
