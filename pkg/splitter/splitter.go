package splitter

import (
	"github.com/rs/zerolog/log"

	"github.com/tsanders/revgate/pkg/review"
)

// outputReserve is the token budget set aside for the model's own response
// when sizing a chunk; it mirrors the default max_tokens the Anthropic
// gateway requests for a single completion.
const outputReserve = 8192

// Split partitions userPrompts into chunks that each fit within maxTokens
// once systemPrompt and outputReserve are accounted for (spec §4.7).
//
// actualTokens is the token count that triggered the context_limit_exceeded
// error being split for; it is not used to size chunks (each chunk's size
// is measured directly) but is logged so a multi-turn run can be traced
// from the original failure to the chunks it produced.
//
// A single user_prompt whose own rendered size exceeds the budget is never
// subdivided — it forms a chunk by itself. Concatenating the returned
// chunks, minus any overlap, reproduces userPrompts in its original order.
func Split(systemPrompt string, userPrompts []review.UserPrompt, actualTokens, maxTokens, overlap int) [][]review.UserPrompt {
	if len(userPrompts) == 0 {
		return nil
	}

	budget := maxTokens - CountTokens(systemPrompt) - outputReserve
	if budget < 1 {
		budget = 1
	}

	log.Debug().
		Int("actual_tokens", actualTokens).
		Int("max_tokens", maxTokens).
		Int("budget", budget).
		Int("user_prompts", len(userPrompts)).
		Msg("splitting prompt into chunks")

	tokens := userPromptTokens(userPrompts)

	var chunks [][]review.UserPrompt
	var current []review.UserPrompt
	currentTokens := 0

	flush := func() {
		if len(current) > 0 {
			chunks = append(chunks, current)
		}
	}

	for i, up := range userPrompts {
		t := tokens[i]

		if t > budget {
			flush()
			chunks = append(chunks, []review.UserPrompt{up})
			current = nil
			currentTokens = 0
			continue
		}

		if currentTokens+t > budget && len(current) > 0 {
			flush()
			current, currentTokens = startWithOverlap(current, tokens[i-len(current):i], overlap)
		}

		current = append(current, up)
		currentTokens += t
	}
	flush()

	return chunks
}

// startWithOverlap seeds the next chunk with the last `overlap` entries of
// the chunk just closed, per spec §4.7's overlap rule.
func startWithOverlap(closed []review.UserPrompt, closedTokens []int, overlap int) ([]review.UserPrompt, int) {
	if overlap <= 0 || overlap >= len(closed) {
		if overlap >= len(closed) && overlap > 0 {
			carried := append([]review.UserPrompt{}, closed...)
			sum := 0
			for _, t := range closedTokens {
				sum += t
			}
			return carried, sum
		}
		return nil, 0
	}
	start := len(closed) - overlap
	carried := append([]review.UserPrompt{}, closed[start:]...)
	sum := 0
	for _, t := range closedTokens[start:] {
		sum += t
	}
	return carried, sum
}
