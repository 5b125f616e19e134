// Package splitter partitions an oversized ReviewPrompt into chunks that
// individually fit inside a model's context window.
package splitter

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/rs/zerolog/log"

	"github.com/tsanders/revgate/pkg/gateway"
	"github.com/tsanders/revgate/pkg/review"
)

var (
	encOnce sync.Once
	enc     *tiktoken.Tiktoken
)

func encoding() *tiktoken.Tiktoken {
	encOnce.Do(func() {
		e, err := tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			log.Warn().Err(err).Msg("tiktoken encoding unavailable, falling back to char-based token estimate")
			return
		}
		enc = e
	})
	return enc
}

// CountTokens estimates the token cost of a string. It defers to tiktoken's
// cl100k_base encoding (the same family every provider in the catalog is
// close enough to for chunk-sizing purposes); if the encoding table failed
// to load it falls back to a 4-characters-per-token approximation, which is
// the same rule of thumb used when no tokenizer is available.
func CountTokens(s string) int {
	if e := encoding(); e != nil {
		return len(e.Encode(s, nil, nil))
	}
	return (len(s) + 3) / 4
}

// CountPromptTokens sums the token cost of a full chunk: the system prompt
// plus the rendered body of every UserPrompt in it.
func CountPromptTokens(systemPrompt string, userPrompts []review.UserPrompt) int {
	total := CountTokens(systemPrompt)
	for _, up := range userPrompts {
		total += CountTokens(gateway.RenderUserPrompt(up))
	}
	return total
}

// userPromptTokens is a small cache of each UserPrompt's rendered token
// count so the splitter doesn't re-render and re-encode the same file twice
// while comparing candidate chunk boundaries.
func userPromptTokens(prompts []review.UserPrompt) []int {
	counts := make([]int, len(prompts))
	for i, up := range prompts {
		counts[i] = CountTokens(gateway.RenderUserPrompt(up))
	}
	return counts
}
