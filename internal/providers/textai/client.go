// Package textai completes text letters through an OpenAI-compatible chat
// completions API.
package textai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"

	"genstudio/internal/domain"
	"genstudio/internal/infra"
	"genstudio/internal/retry"
)

// ErrMissingAPIKey indicates that the client was configured without credentials.
var ErrMissingAPIKey = errors.New("textai: api key is required")

// ErrEmptyCompletion is returned when the provider answers without content.
var ErrEmptyCompletion = errors.New("textai: empty completion")

const defaultModel = "gpt-4o-mini"

type Options struct {
	APIKey     string
	BaseURL    string
	Model      string
	HTTPClient *http.Client
	// Policy is the only retry authority; SDK retries are disabled. The zero
	// value makes a single attempt.
	Policy retry.Policy
	Logger *infra.Logger
}

// Client wraps the openai-go chat completions endpoint.
type Client struct {
	client openai.Client
	model  string
	policy retry.Policy
	logger *infra.Logger
	hasKey bool
}

func NewClient(opts Options) *Client {
	reqOpts := []option.RequestOption{
		option.WithAPIKey(strings.TrimSpace(opts.APIKey)),
		option.WithMaxRetries(0),
	}
	if base := strings.TrimSpace(opts.BaseURL); base != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(base))
	}
	if opts.HTTPClient != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(opts.HTTPClient))
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = defaultModel
	}
	policy := opts.Policy
	if policy.Retryable == nil {
		policy.Retryable = isTransient
	}
	return &Client{
		client: openai.NewClient(reqOpts...),
		model:  model,
		policy: policy,
		logger: infra.OrDiscard(opts.Logger),
		hasKey: strings.TrimSpace(opts.APIKey) != "",
	}
}

// Model returns the configured model identifier.
func (c *Client) Model() string { return c.model }

// Complete sends a system and a user message and returns the first choice.
func (c *Client) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if !c.hasKey {
		return "", ErrMissingAPIKey
	}
	params := openai.ChatCompletionNewParams{
		Model: shared.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt),
		},
	}
	return retry.Run(ctx, c.policy, func(ctx context.Context, attempt int) (string, error) {
		completion, err := c.client.Chat.Completions.New(ctx, params)
		if err != nil {
			c.logger.Warn().Err(err).Int("attempt", attempt).Msg("textai: completion failed")
			return "", fmt.Errorf("%w: %w", domain.ErrProviderFailure, err)
		}
		if len(completion.Choices) == 0 {
			return "", fmt.Errorf("%w: %w", domain.ErrProviderFailure, ErrEmptyCompletion)
		}
		content := strings.TrimSpace(completion.Choices[0].Message.Content)
		if content == "" {
			return "", fmt.Errorf("%w: %w", domain.ErrProviderFailure, ErrEmptyCompletion)
		}
		c.logger.Debug().
			Str("model", string(completion.Model)).
			Int64("tokens", completion.Usage.TotalTokens).
			Msg("textai: completion ok")
		return content, nil
	})
}

// isTransient retries rate limits and server errors only.
func isTransient(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= 500
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, ErrEmptyCompletion)
}
