// Package genai provides the multi-provider reliability wrapper.
package genai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/openai/openai-go"
)

// generator is the shared completion surface of Client and Reliable.
type generator interface {
	Generate(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion, opts CallOptions) (*Completion, error)
}

var (
	_ generator = (*Client)(nil)
	_ generator = (*Reliable)(nil)
)

// ErrAllProvidersFailed is returned when every configured provider failed.
var ErrAllProvidersFailed = errors.New("all providers failed")

// Provider is one configured backend in priority order.
type Provider struct {
	Name   string
	Client *Client
}

// Reliable tries each configured provider in priority order, skipping ones
// the health registry marks unavailable, and aggregates every failure reason
// into one error when all of them fail.
type Reliable struct {
	providers []*Provider
	health    *HealthRegistry
}

// NewReliable creates a reliability wrapper over the given providers.
// The health registry may be nil, in which case all providers are tried.
func NewReliable(providers []*Provider, health *HealthRegistry) *Reliable {
	return &Reliable{providers: providers, health: health}
}

// Providers exposes the configured backends, e.g. for the health check loop.
func (r *Reliable) Providers() []*Provider { return r.providers }

// Generate tries each available provider in order until one succeeds.
func (r *Reliable) Generate(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion, opts CallOptions) (*Completion, error) {
	if len(r.providers) == 0 {
		return nil, fmt.Errorf("%w: no providers configured", ErrAllProvidersFailed)
	}

	failures := []error{ErrAllProvidersFailed}
	for _, p := range r.providers {
		if r.health != nil && !r.health.Available(p.Name) {
			slog.Debug("Reliable.Generate: skipping unavailable provider", "provider", p.Name)
			failures = append(failures, fmt.Errorf("provider %s: skipped, marked unavailable", p.Name))
			continue
		}

		completion, err := p.Client.Generate(ctx, messages, opts)
		if err == nil {
			return completion, nil
		}
		slog.Warn("Reliable.Generate: provider failed, advancing", "provider", p.Name, "error", err)
		failures = append(failures, err)
	}

	return nil, errors.Join(failures...)
}

// GenerateWithMessages generates a response using default call options.
func (r *Reliable) GenerateWithMessages(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) (string, error) {
	completion, err := r.Generate(ctx, messages, CallOptions{})
	if err != nil {
		return "", err
	}
	return completion.Text, nil
}
