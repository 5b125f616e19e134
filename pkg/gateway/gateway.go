// Package gateway defines the provider-abstract Gateway interface and the
// pipeline pieces (prompt rendering, retry, structured-output schema) that
// every concrete provider package in pkg/gateway/* shares.
package gateway

import (
	"context"

	"github.com/tsanders/revgate/pkg/review"
)

// Gateway is the closed sum type { OpenAI, Anthropic, Google, OpenRouter }
// seen through one shared interface. Each branch builds its own
// provider-specific request shape internally; callers never switch on
// concrete type.
type Gateway interface {
	// Name is the provider's short display name, e.g. "openai".
	Name() string

	// Provider is the closed-set provider tag this gateway talks to.
	Provider() review.Provider

	// ModelName is the catalog full_name this gateway was constructed for.
	ModelName() string

	// ReviewCode sends prompt and returns a ReviewResult. It never panics
	// and never returns a Go error: all failure modes are represented as
	// ReviewResult.Err so callers have one uniform path.
	ReviewCode(ctx context.Context, prompt review.ReviewPrompt) review.ReviewResult

	// CallJSON issues a schema-constrained JSON call outside the code-review
	// shape: the request construction mirrors ReviewCode (same transport,
	// same retry policy) but substitutes systemPrompt/schema/schemaName for
	// a different task. out receives the decoded JSON via jsonextract.
	// Used by the Review Synthesizer (spec §4.9) to ask the same model for
	// a unified summary or a consolidated recommendation list.
	CallJSON(ctx context.Context, systemPrompt, userContent string, schema map[string]interface{}, schemaName string, out interface{}) (review.EstimatedCost, error)
}
