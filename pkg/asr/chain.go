package asr

import (
	"context"
	"log/slog"
)

// Chain tries providers in order until one succeeds. The hosted
// backend goes first; a local fallback is appended only when the
// deployment opts in.
type Chain struct {
	providers []Provider
	names     []string
	logger    *slog.Logger
}

// NewChain creates a provider chain. Providers are tried in the order
// given.
func NewChain(providers ...Provider) *Chain {
	names := make([]string, len(providers))
	for i, p := range providers {
		names[i] = providerName(p)
	}
	return &Chain{
		providers: providers,
		names:     names,
		logger:    slog.Default().With("component", "asr.chain"),
	}
}

// SetLogger overrides the chain's logger.
func (c *Chain) SetLogger(l *slog.Logger) {
	c.logger = l.With("component", "asr.chain")
}

// BuildChain assembles the standard transcription stack for a
// deployment: the remote engine first when a key is present, the
// local server behind it only when enabled. With a single provider
// configured it is returned directly; with none, ErrNoAPIKey.
func BuildChain(remoteKey string, localEnabled bool, localURL string, logger *slog.Logger) (Provider, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var providers []Provider

	if remoteKey != "" {
		remote, err := NewDeepgram(WithAPIKey(remoteKey), WithLogger(logger))
		if err != nil {
			return nil, err
		}
		providers = append(providers, remote)
	}

	if localEnabled {
		opts := []Option{WithLogger(logger)}
		if localURL != "" {
			opts = append(opts, WithBaseURL(localURL))
		}
		local, err := NewLocal(opts...)
		if err != nil {
			return nil, err
		}
		providers = append(providers, local)
	}

	switch len(providers) {
	case 0:
		return nil, ErrNoAPIKey
	case 1:
		return providers[0], nil
	}
	chain := NewChain(providers...)
	chain.SetLogger(logger)
	return chain, nil
}

// Transcribe tries each provider in order until one succeeds.
func (c *Chain) Transcribe(ctx context.Context, audio []byte, sampleRate int) (*Result, error) {
	if len(c.providers) == 0 {
		return nil, ErrProviderUnavailable
	}

	errs := make(map[string]error)
	for i, p := range c.providers {
		result, err := p.Transcribe(ctx, audio, sampleRate)
		if err == nil {
			return result, nil
		}

		errs[c.names[i]] = err
		c.logger.Warn("provider failed, trying next",
			"provider", c.names[i],
			"error", err,
		)

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}

	return nil, &ChainError{Errors: errs}
}

// Health returns nil if any provider is healthy.
func (c *Chain) Health(ctx context.Context) error {
	if len(c.providers) == 0 {
		return ErrProviderUnavailable
	}

	var lastErr error
	for _, p := range c.providers {
		if err := p.Health(ctx); err == nil {
			return nil
		} else {
			lastErr = err
		}
	}
	return lastErr
}

// Close closes all providers in the chain.
func (c *Chain) Close() error {
	var firstErr error
	for _, p := range c.providers {
		if err := p.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func providerName(p Provider) string {
	switch p.(type) {
	case *Deepgram:
		return providerDeepgram
	case *Local:
		return providerLocal
	case *Mock:
		return "mock"
	default:
		return "unknown"
	}
}

// Verify Chain implements Provider at compile time.
var _ Provider = (*Chain)(nil)
