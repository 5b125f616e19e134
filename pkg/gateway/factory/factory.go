// Package factory builds the right concrete Gateway for a catalog model
// name, implementing OpenRouter-First routing (spec §4.6).
package factory

import (
	"context"
	"fmt"

	"github.com/tsanders/revgate/pkg/catalog"
	"github.com/tsanders/revgate/pkg/gateway"
	"github.com/tsanders/revgate/pkg/gateway/anthropic"
	"github.com/tsanders/revgate/pkg/gateway/google"
	"github.com/tsanders/revgate/pkg/gateway/openai"
	"github.com/tsanders/revgate/pkg/gateway/openrouter"
	"github.com/tsanders/revgate/pkg/review"
)

// ClaudeProviderOverride is the explicit user choice of transport for
// Anthropic models (spec §4.6's "claude_provider" override), which wins
// over the default OpenRouter-First rule.
type ClaudeProviderOverride string

const (
	ClaudeProviderDefault    ClaudeProviderOverride = ""
	ClaudeProviderAnthropic  ClaudeProviderOverride = "anthropic"
	ClaudeProviderOpenRouter ClaudeProviderOverride = "openrouter"
)

// Keys carries every API key the factory might need, keyed by the
// environment variable it was read from.
type Keys struct {
	OpenAI     string
	Anthropic  string
	Google     string
	OpenRouter string
}

// New selects and constructs a Gateway for modelName per spec §4.6:
//  1. look up ModelInfo by name
//  2. if OPENROUTER_API_KEY is set and the model has an openrouter_name,
//     route through OpenRouter regardless of native provider
//  3. otherwise dispatch on the model's native provider
//  4. otherwise fail with unsupported_provider
//
// claudeOverride, when non-default, wins over step 2 for Anthropic models.
func New(ctx context.Context, cat *catalog.Catalog, modelName string, keys Keys, claudeOverride ClaudeProviderOverride) (gateway.Gateway, error) {
	modelPtr, err := cat.Get(modelName)
	if err != nil {
		return nil, err
	}
	model := *modelPtr

	if model.ProviderName == review.ProviderAnthropic && claudeOverride != ClaudeProviderDefault {
		switch claudeOverride {
		case ClaudeProviderAnthropic:
			return anthropic.New(model, keys.Anthropic, cat)
		case ClaudeProviderOpenRouter:
			return openrouter.New(model, keys.OpenRouter, cat)
		}
	}

	if keys.OpenRouter != "" && model.OpenRouterName != "" {
		return openrouter.New(model, keys.OpenRouter, cat)
	}

	switch model.ProviderName {
	case review.ProviderOpenAI:
		return openai.New(model, keys.OpenAI, cat)
	case review.ProviderAnthropic:
		return anthropic.New(model, keys.Anthropic, cat)
	case review.ProviderGoogle:
		return google.New(ctx, model, keys.Google, cat)
	case review.ProviderOpenRouter:
		return openrouter.New(model, keys.OpenRouter, cat)
	default:
		return nil, &review.ErrorResponse{
			ErrorType:    review.ErrorUnsupportedProvider,
			ErrorMessage: fmt.Sprintf("no gateway available for provider %q", model.ProviderName),
		}
	}
}
