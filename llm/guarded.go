package llm

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/cenkalti/backoff/v4"
	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

const tracerName = "github.com/richinex/conductor/llm"

// CallObserver receives one notification per provider call, after retries.
type CallObserver interface {
	ObserveLLMCall(provider, model string, elapsed time.Duration, usage *TokenUsage, err error)
}

// GuardConfig bounds a single provider.
type GuardConfig struct {
	// Timeout applies to each attempt. Zero disables it.
	Timeout time.Duration
	// MaxRetries is the number of extra attempts after the first.
	MaxRetries uint64
	// InitialBackoff is the first retry delay; later delays grow exponentially.
	InitialBackoff time.Duration
	// RequestsPerMinute throttles outbound calls. Zero means unlimited.
	RequestsPerMinute int
}

// DefaultGuardConfig returns the per-provider defaults.
func DefaultGuardConfig() GuardConfig {
	return GuardConfig{
		Timeout:        30 * time.Second,
		MaxRetries:     2,
		InitialBackoff: 500 * time.Millisecond,
	}
}

// GuardedProvider decorates a Provider with a per-attempt timeout, retries
// on transient failures, client-side rate limiting, tracing and metrics.
type GuardedProvider struct {
	inner    Provider
	cfg      GuardConfig
	limiter  *rate.Limiter
	observer CallObserver
	logger   *zap.Logger
	tracer   trace.Tracer
}

// Guard wraps p. observer and logger may be nil.
func Guard(p Provider, cfg GuardConfig, observer CallObserver, logger *zap.Logger) *GuardedProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	g := &GuardedProvider{
		inner:    p,
		cfg:      cfg,
		observer: observer,
		logger:   logger.With(zap.String("provider", p.Name())),
		tracer:   otel.Tracer(tracerName),
	}
	if cfg.RequestsPerMinute > 0 {
		g.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1)
	}
	return g
}

// Name returns the wrapped provider name.
func (g *GuardedProvider) Name() string { return g.inner.Name() }

// Model returns the wrapped provider model.
func (g *GuardedProvider) Model() string { return g.inner.Model() }

// Chat sends a chat completion request.
func (g *GuardedProvider) Chat(ctx context.Context, messages []ChatMessage) (LLMResponse, error) {
	return g.ChatWithFormat(ctx, messages, nil)
}

// ChatWithFormat sends a guarded chat completion request.
func (g *GuardedProvider) ChatWithFormat(ctx context.Context, messages []ChatMessage, format *ResponseFormat) (LLMResponse, error) {
	ctx, span := g.tracer.Start(ctx, "llm.chat", trace.WithAttributes(
		attribute.String("llm.provider", g.inner.Name()),
		attribute.String("llm.model", g.inner.Model()),
		attribute.Int("llm.messages", len(messages)),
	))
	defer span.End()

	start := time.Now()
	var resp LLMResponse
	attempt := 0

	op := func() error {
		attempt++
		if g.limiter != nil {
			if err := g.limiter.Wait(ctx); err != nil {
				return backoff.Permanent(err)
			}
		}

		callCtx := ctx
		if g.cfg.Timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, g.cfg.Timeout)
			defer cancel()
		}

		r, err := g.inner.ChatWithFormat(callCtx, messages, format)
		if err != nil {
			if ctx.Err() != nil || !IsRetryable(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		resp = r
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	if g.cfg.InitialBackoff > 0 {
		policy.InitialInterval = g.cfg.InitialBackoff
	}
	retrier := backoff.WithContext(backoff.WithMaxRetries(policy, g.cfg.MaxRetries), ctx)

	err := backoff.RetryNotify(op, retrier, func(err error, wait time.Duration) {
		g.logger.Warn("provider call failed, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	})
	elapsed := time.Since(start)

	if g.observer != nil {
		g.observer.ObserveLLMCall(g.inner.Name(), g.inner.Model(), elapsed, resp.Usage, err)
	}

	span.SetAttributes(attribute.Int("llm.attempts", attempt))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		g.logger.Debug("provider call failed", zap.Duration("elapsed", elapsed), zap.Error(err))
		return LLMResponse{}, err
	}
	if resp.Usage != nil {
		span.SetAttributes(attribute.Int("llm.tokens.total", int(resp.Usage.TotalTokens)))
	}
	g.logger.Debug("provider call succeeded", zap.Duration("elapsed", elapsed), zap.Int("attempts", attempt))
	return resp, nil
}

// IsRetryable reports whether err looks transient: rate limiting, server
// errors, an attempt timeout or a dropped connection. Anything else,
// including auth and validation errors, is final.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, ErrEmptyResponse) || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}

	var oaiErr *openai.APIError
	if errors.As(err, &oaiErr) {
		return retryableStatus(oaiErr.HTTPStatusCode)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return retryableStatus(reqErr.HTTPStatusCode)
	}
	var antErr *anthropic.Error
	if errors.As(err, &antErr) {
		return retryableStatus(antErr.StatusCode)
	}
	var gErr genai.APIError
	if errors.As(err, &gErr) {
		return retryableStatus(gErr.Code)
	}
	var gErrPtr *genai.APIError
	if errors.As(err, &gErrPtr) {
		return retryableStatus(gErrPtr.Code)
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}

func retryableStatus(code int) bool {
	return code == 0 || code == http.StatusTooManyRequests || code == http.StatusRequestTimeout || code >= 500
}

var _ Provider = (*GuardedProvider)(nil)
