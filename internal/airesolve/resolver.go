// Package airesolve drives the AI analysis path: sending a rendered
// prompt to the provider and normalizing its structured reply into the
// canonical analysis result.
package airesolve

import (
	"context"
	"log/slog"
	"sync"

	"github.com/tiktoken-go/tokenizer"

	"github.com/replaystack/incident-replay/internal/api/anthropic"
	"github.com/replaystack/incident-replay/internal/domain"
)

// systemInstruction demands raw-JSON-only output from the provider.
const systemInstruction = "You are a backend service. " +
	"You MUST return VALID JSON ONLY. " +
	"Do not use markdown. " +
	"Do not add explanations. " +
	"The response MUST start with '{' and end with '}'. " +
	"If you cannot comply, return exactly: {\"error\":\"INVALID_OUTPUT\"}"

const defaultMaxTokens = 2048

// Messenger is the single-turn message capability of the AI provider.
type Messenger interface {
	CreateMessage(ctx context.Context, req *anthropic.MessagesRequest) (*anthropic.MessagesResponse, error)
}

// Resolver sends analysis prompts to the AI provider. One synchronous
// request per call; failures surface as typed errors with no retry.
type Resolver struct {
	client    Messenger
	model     string
	maxTokens int
	logger    *slog.Logger
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithMaxTokens overrides the response token budget.
func WithMaxTokens(n int) ResolverOption {
	return func(r *Resolver) {
		if n > 0 {
			r.maxTokens = n
		}
	}
}

// NewResolver creates a resolver for the given model.
func NewResolver(client Messenger, model string, logger *slog.Logger, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		client:    client,
		model:     model,
		maxTokens: defaultMaxTokens,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Analyze sends the prompt and returns the provider's raw text reply.
func (r *Resolver) Analyze(ctx context.Context, promptText string) (string, error) {
	r.logger.Info("calling AI provider",
		slog.String("model", r.model),
		slog.Int("prompt_tokens_estimate", estimateTokens(promptText)))

	resp, err := r.client.CreateMessage(ctx, &anthropic.MessagesRequest{
		Model:     r.model,
		MaxTokens: r.maxTokens,
		System:    systemInstruction,
		Messages: []anthropic.Message{
			{Role: "user", Content: promptText},
		},
	})
	if err != nil {
		return "", err
	}

	text := resp.Text()
	if text == "" {
		return "", domain.NewResolutionError(domain.StageAICall, domain.ErrorKindMalformedBody,
			"provider returned empty content")
	}

	r.logger.Info("AI provider responded",
		slog.Int("input_tokens", resp.Usage.InputTokens),
		slog.Int("output_tokens", resp.Usage.OutputTokens))

	return text, nil
}

var promptCodec = sync.OnceValues(func() (tokenizer.Codec, error) {
	return tokenizer.Get(tokenizer.O200kBase)
})

// estimateTokens gives a rough prompt size for logging. Zero when the
// tokenizer is unavailable; the estimate never gates the request.
func estimateTokens(text string) int {
	codec, err := promptCodec()
	if err != nil {
		return 0
	}
	ids, _, err := codec.Encode(text)
	if err != nil {
		return 0
	}
	return len(ids)
}
