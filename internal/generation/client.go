package generation

import (
	"context"
	"errors"
	"fmt"

	"genstudio/internal/domain"
	"genstudio/internal/infra"
	"genstudio/internal/retry"
)

// SlotProvider runs a SlotCall against a predictions-style API.
type SlotProvider interface {
	Predict(ctx context.Context, call SlotCall) (SlotResult, error)
}

// PartsProvider runs a PartsCall against a generateContent-style API.
type PartsProvider interface {
	GenerateContent(ctx context.Context, call PartsCall) (PartsResult, error)
}

// Options configures Client.
type Options struct {
	Replicate SlotProvider
	GenAI     PartsProvider
	Models    ModelSet
	// Policy governs provider calls. The zero value makes a single attempt.
	Policy retry.Policy
	Logger *infra.Logger
}

// Client validates a Request, dispatches it through the route table and
// normalizes the provider's answer.
type Client struct {
	replicate SlotProvider
	genai     PartsProvider
	models    ModelSet
	policy    retry.Policy
	logger    *infra.Logger
}

func NewClient(opts Options) *Client {
	policy := opts.Policy
	if policy.Retryable == nil {
		policy.Retryable = retryableProviderError
	}
	return &Client{
		replicate: opts.Replicate,
		genai:     opts.GenAI,
		models:    opts.Models,
		policy:    policy,
		logger:    infra.OrDiscard(opts.Logger),
	}
}

// Generate runs one image generation. The error is a *domain.ModerationError,
// a domain.ErrProviderFailure or a domain.ErrValidation.
func (c *Client) Generate(ctx context.Context, req Request) (Artifact, error) {
	req = req.Normalize()
	if err := req.Validate(); err != nil {
		return Artifact{}, err
	}
	r, err := lookup(req)
	if err != nil {
		return Artifact{}, err
	}
	call := r.build(req, c.models)
	provider := string(call.family())

	artifact, err := retry.Run(ctx, c.policy, func(ctx context.Context, attempt int) (Artifact, error) {
		raw, err := c.invoke(ctx, call)
		if err != nil {
			c.logger.Warn().Err(err).
				Str("provider", provider).
				Int("attempt", attempt).
				Msg("generation: provider call failed")
			return Artifact{}, err
		}
		return r.normalize(provider, raw)
	})
	if err != nil {
		return Artifact{}, err
	}
	c.logger.Debug().
		Str("provider", provider).
		Str("mode", string(req.Mode)).
		Str("artifact", artifact.Kind.String()).
		Msg("generation: artifact ready")
	return artifact, nil
}

func (c *Client) invoke(ctx context.Context, call Call) (Raw, error) {
	switch v := call.(type) {
	case SlotCall:
		if c.replicate == nil {
			return nil, fmt.Errorf("%w: replicate provider not configured", domain.ErrProviderFailure)
		}
		res, err := c.replicate.Predict(ctx, v)
		if err != nil {
			return nil, asProviderError(err)
		}
		return res, nil
	case PartsCall:
		if c.genai == nil {
			return nil, fmt.Errorf("%w: genai provider not configured", domain.ErrProviderFailure)
		}
		res, err := c.genai.GenerateContent(ctx, v)
		if err != nil {
			return nil, asProviderError(err)
		}
		return res, nil
	default:
		return nil, fmt.Errorf("%w: unsupported call %T", domain.ErrProviderFailure, call)
	}
}

func asProviderError(err error) error {
	if errors.Is(err, domain.ErrModerationBlocked) || errors.Is(err, domain.ErrProviderFailure) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrProviderFailure, err)
}

func retryableProviderError(err error) bool {
	return !errors.Is(err, domain.ErrModerationBlocked) &&
		!errors.Is(err, domain.ErrValidation) &&
		!errors.Is(err, context.Canceled)
}
