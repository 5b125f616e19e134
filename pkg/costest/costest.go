// Package costest converts provider usage metadata into a normalized
// review.EstimatedCost. Exact decimal arithmetic (rather than accumulating
// error in float64) matters here because costs are summed repeatedly across
// multi-turn chunks and a synthesis call.
package costest

import (
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/tsanders/revgate/pkg/catalog"
	"github.com/tsanders/revgate/pkg/review"
)

// Usage is the provider-agnostic token count pair every shaped usage
// record reduces to before estimation.
type Usage struct {
	InputTokens  int
	OutputTokens int

	// PrecomputedCostUSD is set when the provider (OpenRouter) already
	// returns a total cost in its response. When non-nil, it is used
	// verbatim and per-token costs are reported as zero, matching the
	// original's OpenRouter cost-handler behavior.
	PrecomputedCostUSD *float64
}

// OpenAIUsage adapts an OpenAI-shaped usage object.
func OpenAIUsage(promptTokens, completionTokens int) Usage {
	return Usage{InputTokens: promptTokens, OutputTokens: completionTokens}
}

// AnthropicUsage adapts an Anthropic-shaped usage object.
func AnthropicUsage(inputTokens, outputTokens int) Usage {
	return Usage{InputTokens: inputTokens, OutputTokens: outputTokens}
}

// GoogleUsage adapts a Google-shaped usage object.
func GoogleUsage(promptTokenCount, candidatesTokenCount int) Usage {
	return Usage{InputTokens: promptTokenCount, OutputTokens: candidatesTokenCount}
}

// OpenRouterUsage adapts OpenRouter's OpenAI-shaped usage object, carrying
// its optional precomputed cost field verbatim.
func OpenRouterUsage(promptTokens, completionTokens int, cost *float64) Usage {
	return Usage{InputTokens: promptTokens, OutputTokens: completionTokens, PrecomputedCostUSD: cost}
}

const million = 1_000_000

// Estimate converts model+usage into a normalized EstimatedCost. It never
// returns an error: an unrecognized model yields a zero-cost record that
// still preserves the token counts, and the miss is logged as a warning.
func Estimate(cat *catalog.Catalog, model string, usage Usage) review.EstimatedCost {
	if usage.PrecomputedCostUSD != nil {
		total := decimal.NewFromFloat(*usage.PrecomputedCostUSD).Round(6)
		totalF, _ := total.Float64()
		return review.EstimatedCost{
			Model:         model,
			InputTokens:   usage.InputTokens,
			OutputTokens:  usage.OutputTokens,
			InputCostUSD:  0,
			OutputCostUSD: 0,
			TotalCostUSD:  totalF,
		}
	}

	pricing, err := cat.Pricing(model)
	if err != nil {
		log.Warn().Err(err).Str("model", model).Msg("model not in catalog, reporting zero cost")
		return review.EstimatedCost{
			Model:        model,
			InputTokens:  usage.InputTokens,
			OutputTokens: usage.OutputTokens,
		}
	}

	inputCost := perTokenCost(usage.InputTokens, pricing.InputPerMillion)
	outputCost := perTokenCost(usage.OutputTokens, pricing.OutputPerMillion)
	total := inputCost.Add(outputCost)

	inF, _ := inputCost.Float64()
	outF, _ := outputCost.Float64()
	totalF, _ := total.Float64()

	return review.EstimatedCost{
		Model:         model,
		InputTokens:   usage.InputTokens,
		OutputTokens:  usage.OutputTokens,
		InputCostUSD:  inF,
		OutputCostUSD: outF,
		TotalCostUSD:  totalF,
	}
}

func perTokenCost(tokens int, perMillion float64) decimal.Decimal {
	rate := decimal.NewFromFloat(perMillion).Div(decimal.NewFromInt(million))
	return decimal.NewFromInt(int64(tokens)).Mul(rate).Round(6)
}
