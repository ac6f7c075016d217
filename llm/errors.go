package llm

import "errors"

var (
	// ErrEmptyResponse is returned when a provider answers with no text.
	ErrEmptyResponse = errors.New("empty response")

	// ErrUnknownProvider is returned for provider names the registry does not hold.
	ErrUnknownProvider = errors.New("unknown provider")

	// ErrAllProvidersFailed is returned by FallbackProvider when every provider failed.
	ErrAllProvidersFailed = errors.New("all providers failed")
)
