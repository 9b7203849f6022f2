// Package raw adapts internal/llmclient's raw chat-completions transport
// to the [llm.Provider] interface, so
// a director role can be pointed at any OpenAI-compatible endpoint without
// going through a vendor SDK.
package raw

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/avatarstage/performer/internal/llmclient"
	"github.com/avatarstage/performer/pkg/llm"
)

// Provider implements llm.Provider directly over the chat-completions
// wire protocol.
type Provider struct {
	client  *llmclient.Client
	baseURL string
	model   string

	timeout        time.Duration
	retries        int
	retryBaseDelay time.Duration
}

// Option configures a Provider.
type Option func(*Provider)

// WithTimeout bounds a single attempt.
func WithTimeout(d time.Duration) Option { return func(p *Provider) { p.timeout = d } }

// WithRetries sets the number of additional attempts after the first.
func WithRetries(n int) Option { return func(p *Provider) { p.retries = n } }

// WithRetryBaseDelay sets the exponential-backoff base delay.
func WithRetryBaseDelay(d time.Duration) Option {
	return func(p *Provider) { p.retryBaseDelay = d }
}

// WithClient overrides the underlying [llmclient.Client] (e.g. to share one
// client's retry-rate limiter across every director role).
func WithClient(c *llmclient.Client) Option { return func(p *Provider) { p.client = c } }

// New constructs a raw chat-completions Provider targeting baseURL/model.
func New(baseURL, model string, opts ...Option) *Provider {
	p := &Provider{
		baseURL:        baseURL,
		model:          model,
		timeout:        45 * time.Second,
		retries:        2,
		retryBaseDelay: 250 * time.Millisecond,
	}
	for _, o := range opts {
		o(p)
	}
	if p.client == nil {
		p.client = llmclient.New()
	}
	return p
}

// StreamCompletion implements llm.Provider by forwarding SSE deltas onto the
// returned channel as they arrive.
func (p *Provider) StreamCompletion(ctx context.Context, req llm.CompletionRequest) (<-chan llm.Chunk, error) {
	ch := make(chan llm.Chunk, 32)
	go func() {
		defer close(ch)
		resp, err := p.client.Do(ctx, p.request(req, true, func(delta, _ string) {
			select {
			case ch <- llm.Chunk{Text: delta}:
			case <-ctx.Done():
			}
		}))
		if err != nil {
			select {
			case ch <- llm.Chunk{FinishReason: "error", Text: err.Error()}:
			case <-ctx.Done():
			}
			return
		}
		select {
		case ch <- llm.Chunk{FinishReason: finishReasonOr(resp.FinishReason, "stop")}:
		case <-ctx.Done():
		}
	}()
	return ch, nil
}

// Complete implements llm.Provider by issuing a non-streaming request.
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	resp, err := p.client.Do(ctx, p.request(req, false, nil))
	if err != nil {
		return nil, fmt.Errorf("raw: complete: %w", err)
	}
	out := &llm.CompletionResponse{Content: resp.Content}
	if resp.Usage != nil {
		out.Usage = llm.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		}
	}
	return out, nil
}

// CountTokens approximates token count at ~4 characters per token; raw
// endpoints rarely expose a tokenizer, so this is a rough estimate only,
// sufficient for the director pipeline's own budget checks.
func (p *Provider) CountTokens(messages []llm.Message) (int, error) {
	total := 0
	for _, m := range messages {
		total += (len(m.Content) + 3) / 4
	}
	return total, nil
}

// Capabilities returns conservative defaults; raw endpoints do not advertise
// per-model capability metadata.
func (p *Provider) Capabilities() llm.ModelCapabilities {
	return llm.ModelCapabilities{SupportsStreaming: true, ContextWindow: 32_768, MaxOutputTokens: 4_096}
}

func (p *Provider) request(req llm.CompletionRequest, stream bool, onChunk llmclient.ChunkFunc) llmclient.Request {
	return llmclient.Request{
		BaseURL:        p.baseURL,
		Model:          p.model,
		SystemPrompt:   req.SystemPrompt,
		UserPrompt:     joinMessages(req.Messages),
		MaxTokens:      req.MaxTokens,
		Temperature:    req.Temperature,
		Stream:         stream,
		Timeout:        p.timeout,
		Retries:        p.retries,
		RetryBaseDelay: p.retryBaseDelay,
		OnChunk:        onChunk,
	}
}

// joinMessages flattens a multi-message history into the single user-prompt
// string the raw chat-completions transport expects; non-user roles are
// annotated inline so context is not silently dropped.
func joinMessages(messages []llm.Message) string {
	var sb strings.Builder
	for i, m := range messages {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		if m.Role != "" && m.Role != "user" {
			sb.WriteString(strings.ToUpper(m.Role))
			sb.WriteString(": ")
		}
		sb.WriteString(m.Content)
	}
	return sb.String()
}

func finishReasonOr(reason, fallback string) string {
	if reason == "" {
		return fallback
	}
	return reason
}

var _ llm.Provider = (*Provider)(nil)
