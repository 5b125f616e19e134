// Package synth merges the per-chunk ReviewResults a multi-turn run
// produces into a single ReviewResult (spec §4.9).
package synth

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/tsanders/revgate/pkg/gateway"
	"github.com/tsanders/revgate/pkg/metrics"
	"github.com/tsanders/revgate/pkg/review"
)

// unableToSynthesize is returned verbatim when no chunk produced a summary
// to work with, matching the fixed fallback string of the system this one
// is modeled on.
const unableToSynthesize = "리뷰 결과를 합성할 수 없습니다."

const (
	summarySchemaName        = "summary_synthesis"
	recommendationSchemaName = "recommendation_synthesis"
)

var summarySystemPrompt = `You are merging several partial code-review summaries, each covering a ` +
	`different chunk of the same change, into one unified summary. Respond with a single JSON ` +
	`object: {"summary": string}. Do not include any text outside the JSON object.`

var recommendationSystemPrompt = `You are consolidating several lists of code-review recommendations, ` +
	`some of which may be semantic duplicates of each other, into one deduplicated list. Respond with ` +
	`a single JSON object: {"recommendations": [string]}. Do not include any text outside the JSON object.`

// Synthesize merges results (the per-chunk ReviewResults of a multi-turn
// run) into one ReviewResult, per spec §4.9. gw is used for the LLM-driven
// summary/recommendation synthesis calls; it is the same gateway the chunks
// themselves were reviewed with.
func Synthesize(ctx context.Context, results []review.ReviewResult, gw gateway.Gateway) review.ReviewResult {
	if len(results) == 0 {
		return review.Success(review.ReviewResponse{}, review.EstimatedCost{Model: gw.ModelName()})
	}

	successful := make([]review.ReviewResult, 0, len(results))
	for _, r := range results {
		if r.IsSuccess() {
			successful = append(successful, r)
		}
	}
	if len(successful) == 0 {
		return review.Success(review.ReviewResponse{}, review.EstimatedCost{Model: gw.ModelName()})
	}

	var allIssues []review.ReviewIssue
	var allSummaries []string
	var allRecommendations []string
	total := review.EstimatedCost{Model: gw.ModelName()}

	for _, r := range successful {
		allIssues = append(allIssues, r.Response.Issues...)
		if r.Response.Summary != "" {
			allSummaries = append(allSummaries, r.Response.Summary)
		}
		allRecommendations = append(allRecommendations, r.Response.Recommendations...)
		total = total.Add(*r.Cost)
	}

	summary, summaryCost := synthesizeSummary(ctx, gw, allSummaries)
	recommendations, recCost := consolidateRecommendations(ctx, gw, allRecommendations)
	if summaryCost != nil {
		total = total.Add(*summaryCost)
	}
	if recCost != nil {
		total = total.Add(*recCost)
	}

	merged := review.ReviewResponse{
		Issues:          allIssues,
		Summary:         summary,
		Score:           successful[0].Response.Score,
		Recommendations: recommendations,
	}

	return review.Success(merged, total)
}

// synthesizeSummary asks gw to merge summaries into one, falling back to
// the fixed-string/identity rules of spec §4.9 when the LLM call fails or
// there's nothing to merge.
func synthesizeSummary(ctx context.Context, gw gateway.Gateway, summaries []string) (string, *review.EstimatedCost) {
	if len(summaries) == 0 {
		return unableToSynthesize, nil
	}
	if len(summaries) == 1 {
		return summaries[0], nil
	}

	payload, err := renderListPayload(summaries)
	if err != nil {
		log.Warn().Err(err).Msg("failed to render summaries for synthesis, falling back to longest")
		return fallbackSummary(summaries), nil
	}

	var out struct {
		Summary string `json:"summary"`
	}
	cost, err := gw.CallJSON(ctx, summarySystemPrompt, payload, gateway.SummarySynthesisSchema, summarySchemaName, &out)
	if err != nil || out.Summary == "" {
		log.Warn().Err(err).Msg("summary synthesis call failed, falling back to longest")
		metrics.Default().RecordSynthesisCall("summary", "failure")
		return fallbackSummary(summaries), nil
	}
	metrics.Default().RecordSynthesisCall("summary", "success")
	return out.Summary, &cost
}

// fallbackSummary returns the longest summary, the documented fallback rule
// when an LLM-driven merge isn't available.
func fallbackSummary(summaries []string) string {
	longest := summaries[0]
	for _, s := range summaries[1:] {
		if len(s) > len(longest) {
			longest = s
		}
	}
	return longest
}

// consolidateRecommendations first deduplicates by identity, preserving
// first-seen order (always done), then optionally asks gw to consolidate
// semantic duplicates (spec §4.9's "optionally a second LLM call").
func consolidateRecommendations(ctx context.Context, gw gateway.Gateway, recommendations []string) ([]string, *review.EstimatedCost) {
	deduped := dedupeByIdentity(recommendations)
	if len(deduped) < 2 {
		return deduped, nil
	}

	payload, err := renderListPayload(deduped)
	if err != nil {
		return deduped, nil
	}

	var out struct {
		Recommendations []string `json:"recommendations"`
	}
	cost, err := gw.CallJSON(ctx, recommendationSystemPrompt, payload, gateway.RecommendationSynthesisSchema, recommendationSchemaName, &out)
	if err != nil || len(out.Recommendations) == 0 {
		log.Warn().Err(err).Msg("recommendation synthesis call failed, keeping identity-deduplicated list")
		metrics.Default().RecordSynthesisCall("recommendations", "failure")
		return deduped, nil
	}
	metrics.Default().RecordSynthesisCall("recommendations", "success")
	return out.Recommendations, &cost
}

// renderListPayload encodes a list of strings as the user-message body of a
// synthesis call: {"items": [...]}.
func renderListPayload(items []string) (string, error) {
	body, err := json.Marshal(struct {
		Items []string `json:"items"`
	}{Items: items})
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// dedupeByIdentity removes exact-duplicate strings, keeping the first
// occurrence of each (spec §4.9: "identity-based equality").
func dedupeByIdentity(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	return out
}
