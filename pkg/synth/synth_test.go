package synth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tsanders/revgate/pkg/review"
)

// fakeGateway is a minimal gateway.Gateway for exercising the synthesizer
// without a real provider call.
type fakeGateway struct {
	modelName     string
	callJSONFunc  func(ctx context.Context, systemPrompt, userContent string, schema map[string]interface{}, schemaName string, out interface{}) (review.EstimatedCost, error)
	callJSONCalls int
}

func (g *fakeGateway) Name() string             { return "fake" }
func (g *fakeGateway) Provider() review.Provider { return review.ProviderOpenAI }
func (g *fakeGateway) ModelName() string         { return g.modelName }
func (g *fakeGateway) ReviewCode(ctx context.Context, prompt review.ReviewPrompt) review.ReviewResult {
	panic("not used by synth tests")
}
func (g *fakeGateway) CallJSON(ctx context.Context, systemPrompt, userContent string, schema map[string]interface{}, schemaName string, out interface{}) (review.EstimatedCost, error) {
	g.callJSONCalls++
	return g.callJSONFunc(ctx, systemPrompt, userContent, schema, schemaName, out)
}

func score(v float64) *float64 { return &v }

func successResult(summary string, score *float64, issues int, recs []string, cost review.EstimatedCost) review.ReviewResult {
	resp := review.ReviewResponse{Summary: summary, Score: score, Recommendations: recs}
	for i := 0; i < issues; i++ {
		resp.Issues = append(resp.Issues, review.ReviewIssue{Type: "style", Description: "x", Severity: review.SeverityInfo})
	}
	return review.Success(resp, cost)
}

func TestSynthesizeEmptyResultsReturnsEmptySuccess(t *testing.T) {
	gw := &fakeGateway{modelName: "gpt-5"}
	result := Synthesize(context.Background(), nil, gw)
	require.True(t, result.IsSuccess())
	require.Equal(t, "", result.Response.Summary)
	require.Equal(t, 0, gw.callJSONCalls)
}

func TestSynthesizeAllFailedReturnsEmptySuccess(t *testing.T) {
	gw := &fakeGateway{modelName: "gpt-5"}
	results := []review.ReviewResult{review.Failure(review.ErrorResponse{ErrorType: review.ErrorAPI})}
	result := Synthesize(context.Background(), results, gw)
	require.True(t, result.IsSuccess())
	require.Empty(t, result.Response.Issues)
}

func TestSynthesizeSingleChunkSkipsLLMSummaryCall(t *testing.T) {
	gw := &fakeGateway{modelName: "gpt-5"}
	results := []review.ReviewResult{
		successResult("only summary", score(8), 2, []string{"rec-a"}, review.EstimatedCost{Model: "gpt-5", InputTokens: 10}),
	}
	result := Synthesize(context.Background(), results, gw)
	require.True(t, result.IsSuccess())
	require.Equal(t, "only summary", result.Response.Summary)
	require.Len(t, result.Response.Issues, 2)
	require.Equal(t, []string{"rec-a"}, result.Response.Recommendations)
	require.Equal(t, 8.0, *result.Response.Score)
	require.Equal(t, 0, gw.callJSONCalls, "a single summary needs no LLM merge")
}

func TestSynthesizeMultiChunkSuccessfulLLMMerge(t *testing.T) {
	gw := &fakeGateway{
		modelName: "gpt-5",
		callJSONFunc: func(ctx context.Context, systemPrompt, userContent string, schema map[string]interface{}, schemaName string, out interface{}) (review.EstimatedCost, error) {
			switch schemaName {
			case summarySchemaName:
				o := out.(*struct {
					Summary string `json:"summary"`
				})
				o.Summary = "merged summary"
			case recommendationSchemaName:
				o := out.(*struct {
					Recommendations []string `json:"recommendations"`
				})
				o.Recommendations = []string{"unified-rec"}
			}
			return review.EstimatedCost{Model: "gpt-5", InputTokens: 5, TotalCostUSD: 0.005}, nil
		},
	}

	results := []review.ReviewResult{
		successResult("summary one", score(7), 1, []string{"rec-a", "rec-b"}, review.EstimatedCost{Model: "gpt-5", InputTokens: 10, TotalCostUSD: 0.01}),
		successResult("summary two", score(9), 1, []string{"rec-a", "rec-c"}, review.EstimatedCost{Model: "gpt-5", InputTokens: 20, TotalCostUSD: 0.02}),
	}

	result := Synthesize(context.Background(), results, gw)
	require.True(t, result.IsSuccess())
	require.Equal(t, "merged summary", result.Response.Summary)
	require.Equal(t, []string{"unified-rec"}, result.Response.Recommendations)
	require.Len(t, result.Response.Issues, 2)
	require.Equal(t, 7.0, *result.Response.Score, "score is copied from the first chunk verbatim")
	require.Equal(t, 2, gw.callJSONCalls)
	require.InDelta(t, 0.03+0.01, result.Cost.TotalCostUSD, 1e-9)
	require.Equal(t, 40, result.Cost.InputTokens)
}

func TestSynthesizeFallsBackToLongestSummaryOnLLMFailure(t *testing.T) {
	gw := &fakeGateway{
		modelName: "gpt-5",
		callJSONFunc: func(ctx context.Context, systemPrompt, userContent string, schema map[string]interface{}, schemaName string, out interface{}) (review.EstimatedCost, error) {
			if schemaName == summarySchemaName {
				return review.EstimatedCost{}, assertError{}
			}
			return review.EstimatedCost{}, assertError{}
		},
	}

	results := []review.ReviewResult{
		successResult("short", nil, 0, nil, review.EstimatedCost{Model: "gpt-5"}),
		successResult("a much longer summary than the other one", nil, 0, nil, review.EstimatedCost{Model: "gpt-5"}),
	}

	result := Synthesize(context.Background(), results, gw)
	require.Equal(t, "a much longer summary than the other one", result.Response.Summary)
}

func TestSynthesizeNoSummariesUsesFixedFallbackString(t *testing.T) {
	gw := &fakeGateway{modelName: "gpt-5"}
	results := []review.ReviewResult{
		successResult("", nil, 1, nil, review.EstimatedCost{Model: "gpt-5"}),
		successResult("", nil, 1, nil, review.EstimatedCost{Model: "gpt-5"}),
	}
	result := Synthesize(context.Background(), results, gw)
	require.Equal(t, unableToSynthesize, result.Response.Summary)
}

func TestDedupeByIdentityPreservesFirstSeenOrder(t *testing.T) {
	out := dedupeByIdentity([]string{"b", "a", "b", "c", "a"})
	require.Equal(t, []string{"b", "a", "c"}, out)
}

type assertError struct{}

func (assertError) Error() string { return "synthesis call failed" }
