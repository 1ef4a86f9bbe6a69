// Package materializer turns a normalized provider artifact into a URL the
// job record can keep.
package materializer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"genstudio/internal/domain"
	"genstudio/internal/generation"
	"genstudio/internal/infra"
	"genstudio/internal/retry"
)

const (
	DefaultMaxAttempts = 3
	DefaultBackoff     = 2 * time.Second
	defaultContentType = "image/png"
)

// Uploader is durable storage.
type Uploader interface {
	Put(ctx context.Context, data []byte, filename, contentType string) (string, error)
}

// Downloader fetches a remote artifact.
type Downloader interface {
	Download(ctx context.Context, url string) ([]byte, string, error)
}

// Result is the URL to store on the job. Durable is false when a remote
// artifact could not be copied and URL still points at the provider.
type Result struct {
	URL     string
	Durable bool
}

type Options struct {
	Uploader   Uploader
	Downloader Downloader
	// Policy governs remote copies. The zero value means three attempts two
	// seconds apart.
	Policy retry.Policy
	Logger *infra.Logger
}

type Materializer struct {
	uploader   Uploader
	downloader Downloader
	policy     retry.Policy
	logger     *infra.Logger
}

func New(opts Options) *Materializer {
	policy := opts.Policy
	if policy.MaxAttempts == 0 {
		policy.MaxAttempts = DefaultMaxAttempts
	}
	if policy.Backoff == nil {
		policy.Backoff = retry.Fixed(DefaultBackoff)
	}
	if policy.Retryable == nil {
		policy.Retryable = func(err error) bool { return !errors.Is(err, context.Canceled) }
	}
	downloader := opts.Downloader
	if downloader == nil {
		downloader = NewHTTPDownloader(nil)
	}
	return &Materializer{
		uploader:   opts.Uploader,
		downloader: downloader,
		policy:     policy,
		logger:     infra.OrDiscard(opts.Logger),
	}
}

// Materialize stores art under filename.
//
// Inline data URLs are returned unchanged. Streams are read to the end and
// uploaded once. Remote URLs are downloaded and uploaded under the retry
// policy; when every attempt fails the original URL is returned with
// Durable=false and no error, so the job still completes.
func (m *Materializer) Materialize(ctx context.Context, art generation.Artifact, filename string) (Result, error) {
	switch art.Kind {
	case generation.ArtifactInline:
		return Result{URL: art.URL, Durable: true}, nil
	case generation.ArtifactStream:
		return m.fromStream(ctx, art, filename)
	case generation.ArtifactRemote:
		return m.fromRemote(ctx, art, filename)
	default:
		return Result{}, fmt.Errorf("%w: unknown artifact kind %s", domain.ErrProviderFailure, art.Kind)
	}
}

func (m *Materializer) fromStream(ctx context.Context, art generation.Artifact, filename string) (Result, error) {
	if art.Stream == nil {
		return Result{}, fmt.Errorf("%w: stream artifact without body", domain.ErrProviderFailure)
	}
	if c, ok := art.Stream.(io.Closer); ok {
		defer c.Close()
	}
	data, err := io.ReadAll(art.Stream)
	if err != nil {
		return Result{}, fmt.Errorf("%w: read stream: %w", domain.ErrProviderFailure, err)
	}
	if len(data) == 0 {
		return Result{}, fmt.Errorf("%w: empty stream", domain.ErrProviderFailure)
	}
	url, err := m.uploader.Put(ctx, data, filename, contentTypeOr(art.ContentType))
	if err != nil {
		return Result{}, fmt.Errorf("%w: upload: %w", domain.ErrPersistence, err)
	}
	return Result{URL: url, Durable: true}, nil
}

func (m *Materializer) fromRemote(ctx context.Context, art generation.Artifact, filename string) (Result, error) {
	policy := m.policy
	policy.OnRetry = func(attempt int, err error) {
		m.logger.Debug().Err(err).Int("attempt", attempt).Str("url", art.URL).Msg("materializer: copy failed, retrying")
	}
	url, err := retry.Run(ctx, policy, func(ctx context.Context, _ int) (string, error) {
		data, contentType, err := m.downloader.Download(ctx, art.URL)
		if err != nil {
			return "", fmt.Errorf("%w: %w", domain.ErrDownloadFailed, err)
		}
		if contentType == "" {
			contentType = art.ContentType
		}
		return m.uploader.Put(ctx, data, filename, contentTypeOr(contentType))
	})
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		m.logger.Warn().Err(err).Str("url", art.URL).Msg("materializer: keeping provider url")
		return Result{URL: art.URL, Durable: false}, nil
	}
	return Result{URL: url, Durable: true}, nil
}

func contentTypeOr(ct string) string {
	if ct == "" {
		return defaultContentType
	}
	return ct
}
