// Package multiturn runs a ReviewPrompt that overflowed a model's context
// window as a series of smaller gateway calls and folds the results back
// into one ReviewResult.
package multiturn

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/pool"

	"github.com/tsanders/revgate/pkg/gateway"
	"github.com/tsanders/revgate/pkg/metrics"
	"github.com/tsanders/revgate/pkg/review"
	"github.com/tsanders/revgate/pkg/splitter"
	"github.com/tsanders/revgate/pkg/synth"
)

// Strategy selects how chunk sub-requests are issued.
type Strategy string

const (
	// StrategySequential issues one chunk at a time; the default, since
	// some providers (OpenRouter in particular) have been observed
	// returning 400s under concurrent requests from the same key.
	StrategySequential Strategy = "sequential"
	// StrategyParallel issues up to MaxWorkers chunk requests concurrently.
	StrategyParallel Strategy = "parallel"
)

// MaxWorkers bounds the parallel strategy's concurrent sub-requests.
const MaxWorkers = 3

// Overlap is the number of trailing user_prompts from one chunk repeated
// at the start of the next. revgate defaults to 0: overlap trades
// duplicated API cost for cross-chunk context, and the source this system
// is modeled on always invokes the splitter with overlap=0 in production.
const Overlap = 0

// Execute runs the Multi-turn Executor sequence of spec §4.8 against a
// prompt that triggered a context_limit_exceeded result. catalogContextLimit
// is the model's context_limit from the catalog, used as a fallback chunk
// budget when the provider's error didn't report a max_tokens figure.
func Execute(ctx context.Context, prompt review.ReviewPrompt, tokenInfo review.TokenInfo, gw gateway.Gateway, catalogContextLimit int, strategy Strategy) review.ReviewResult {
	if len(prompt.UserPrompts) == 0 {
		return review.Success(review.ReviewResponse{}, review.EstimatedCost{Model: gw.ModelName()})
	}

	maxTokens := resolveMaxTokens(tokenInfo, catalogContextLimit)
	actualTokens := 0
	if tokenInfo.ActualTokens != nil {
		actualTokens = *tokenInfo.ActualTokens
	}

	chunks := splitter.Split(prompt.SystemPrompt, prompt.UserPrompts, actualTokens, maxTokens, Overlap)
	log.Info().
		Str("model", gw.ModelName()).
		Int("chunks", len(chunks)).
		Str("strategy", string(strategy)).
		Msg("running multi-turn review")

	var results []review.ReviewResult
	if strategy == StrategyParallel {
		results = executeParallel(ctx, prompt.SystemPrompt, chunks, gw)
	} else {
		results = executeSequential(ctx, prompt.SystemPrompt, chunks, gw)
	}

	for _, r := range results {
		if !r.IsSuccess() && r.Err.ErrorType != review.ErrorContextLimitExceeded {
			metrics.Default().RecordMultiTurnRun(string(strategy), "failure", len(chunks))
			return r
		}
	}

	result := synth.Synthesize(ctx, results, gw)
	outcome := "success"
	if !result.IsSuccess() {
		outcome = "failure"
	}
	metrics.Default().RecordMultiTurnRun(string(strategy), outcome, len(chunks))
	return result
}

func executeSequential(ctx context.Context, systemPrompt string, chunks [][]review.UserPrompt, gw gateway.Gateway) []review.ReviewResult {
	results := make([]review.ReviewResult, len(chunks))
	for i, chunk := range chunks {
		results[i] = gw.ReviewCode(ctx, review.ReviewPrompt{SystemPrompt: systemPrompt, UserPrompts: chunk})
	}
	return results
}

func executeParallel(ctx context.Context, systemPrompt string, chunks [][]review.UserPrompt, gw gateway.Gateway) []review.ReviewResult {
	p := pool.NewWithResults[review.ReviewResult]().WithMaxGoroutines(MaxWorkers)
	for _, chunk := range chunks {
		chunk := chunk
		p.Go(func() review.ReviewResult {
			return gw.ReviewCode(ctx, review.ReviewPrompt{SystemPrompt: systemPrompt, UserPrompts: chunk})
		})
	}
	return p.Wait()
}

// resolveMaxTokens prefers the token count the provider reported in its
// context-limit error; if the provider didn't supply one, it falls back to
// the catalog's context_limit for the model.
func resolveMaxTokens(tokenInfo review.TokenInfo, catalogContextLimit int) int {
	if tokenInfo.MaximumTokens != nil && *tokenInfo.MaximumTokens > 0 {
		return *tokenInfo.MaximumTokens
	}
	if catalogContextLimit > 0 {
		return catalogContextLimit
	}
	return 128_000
}
