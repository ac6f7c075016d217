// LLMClient - query-level wrapper around providers.

package llm

import (
	"context"
	"fmt"
	"time"
)

// Reply is the outcome of one Query. On failure Text carries the
// "<Provider> Error: ..." sentinel and Error the raw message, so callers that
// only render text still show something meaningful.
type Reply struct {
	Text     string        `json:"text"`
	Provider string        `json:"provider"`
	Model    string        `json:"model"`
	Usage    *TokenUsage   `json:"usage,omitempty"`
	Latency  time.Duration `json:"latency"`
	Error    string        `json:"error,omitempty"`
}

// OK reports whether the reply carries a usable answer.
func (r Reply) OK() bool {
	return r.Error == "" && r.Text != ""
}

// Client wraps a Provider with a simple interface.
type Client struct {
	provider Provider
}

// NewClient creates a new LLM client from a provider.
func NewClient(provider Provider) *Client {
	return &Client{provider: provider}
}

// Query sends prompt after the prior conversation turns and returns the
// reply with its metadata. history is never modified.
func (c *Client) Query(ctx context.Context, prompt string, history []ChatMessage) (Reply, error) {
	messages := make([]ChatMessage, 0, len(history)+1)
	messages = append(messages, history...)
	messages = append(messages, UserMessage(prompt))
	return c.QueryMessages(ctx, messages, nil)
}

// QueryMessages sends a prepared message list with an optional response format.
func (c *Client) QueryMessages(ctx context.Context, messages []ChatMessage, format *ResponseFormat) (Reply, error) {
	reply := Reply{
		Provider: c.provider.Name(),
		Model:    c.provider.Model(),
	}

	start := time.Now()
	response, err := c.provider.ChatWithFormat(ctx, messages, format)
	reply.Latency = time.Since(start)
	if err != nil {
		reply.Error = err.Error()
		reply.Text = fmt.Sprintf("%s Error: %s", DisplayNameFor(reply.Provider), err)
		return reply, fmt.Errorf("%s: %w", reply.Provider, err)
	}

	reply.Text = response.Content
	reply.Usage = response.Usage
	return reply, nil
}

// DisplayNameFor maps a provider name to its vendor label.
// Names outside the built-in set are returned unchanged.
func DisplayNameFor(name string) string {
	pt, err := ParseProviderType(name)
	if err != nil {
		return name
	}
	return pt.DisplayName()
}
