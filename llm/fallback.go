package llm

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// FallbackProvider wraps multiple providers and tries them in order.
// If the primary provider fails, subsequent providers are tried until
// one succeeds or all have failed.
type FallbackProvider struct {
	providers []Provider
	logger    *zap.Logger
}

// NewFallbackProvider creates a provider that tries each provider in order.
// At least one provider is required.
func NewFallbackProvider(providers []Provider, logger *zap.Logger) *FallbackProvider {
	if len(providers) == 0 {
		panic("FallbackProvider requires at least one provider")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FallbackProvider{
		providers: providers,
		logger:    logger,
	}
}

// Name returns a composite name indicating fallback configuration.
func (f *FallbackProvider) Name() string {
	if len(f.providers) == 1 {
		return f.providers[0].Name()
	}
	return f.providers[0].Name() + "+fallback"
}

// Model returns the primary provider's model.
func (f *FallbackProvider) Model() string {
	return f.providers[0].Model()
}

// Chat tries each provider in order.
func (f *FallbackProvider) Chat(ctx context.Context, messages []ChatMessage) (LLMResponse, error) {
	return f.ChatWithFormat(ctx, messages, nil)
}

// ChatWithFormat tries each provider in order, returning the first successful response.
func (f *FallbackProvider) ChatWithFormat(ctx context.Context, messages []ChatMessage, format *ResponseFormat) (LLMResponse, error) {
	resp, _, err := f.Try(ctx, messages, format)
	return resp, err
}

// Try is ChatWithFormat that also reports which provider answered.
func (f *FallbackProvider) Try(ctx context.Context, messages []ChatMessage, format *ResponseFormat) (LLMResponse, Provider, error) {
	var errs []error
	for i, p := range f.providers {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		resp, err := p.ChatWithFormat(ctx, messages, format)
		if err == nil {
			if i > 0 {
				f.logger.Info("provider fallback succeeded",
					zap.String("provider", p.Name()),
					zap.Int("attempt", i+1),
				)
			}
			return resp, p, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
		f.logger.Warn("provider failed, trying next",
			zap.String("provider", p.Name()),
			zap.Error(err),
			zap.Int("attempt", i+1),
			zap.Int("remaining", len(f.providers)-i-1),
		)
	}
	return LLMResponse{}, nil, fmt.Errorf("%w (%d tried): %w", ErrAllProvidersFailed, len(errs), errors.Join(errs...))
}

var _ Provider = (*FallbackProvider)(nil)
