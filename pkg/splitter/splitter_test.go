package splitter

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tsanders/revgate/pkg/review"
)

func filePrompt(name string, lines int) review.UserPrompt {
	content := strings.Repeat("x = 1\n", lines)
	return review.UserPrompt{
		FileName:    name,
		Language:    "python",
		FileContext: review.FullFileContext(content),
	}
}

func concatPrompts(chunks [][]review.UserPrompt, overlap int) []review.UserPrompt {
	var out []review.UserPrompt
	for i, chunk := range chunks {
		start := 0
		if i > 0 {
			start = overlap
			if start > len(chunk) {
				start = len(chunk)
			}
		}
		out = append(out, chunk[start:]...)
	}
	return out
}

func TestSplitReturnsSingleChunkWhenUnderBudget(t *testing.T) {
	prompts := []review.UserPrompt{filePrompt("a.py", 5), filePrompt("b.py", 5)}
	chunks := Split("system", prompts, 1000, 200_000, 0)
	require.Len(t, chunks, 1)
	require.Len(t, chunks[0], 2)
}

func TestSplitProducesMultipleChunksUnderTightBudget(t *testing.T) {
	const maxTokens = 20_000
	prompts := make([]review.UserPrompt, 20)
	for i := range prompts {
		prompts[i] = filePrompt("f.py", 3000)
	}
	chunks := Split("system", prompts, 350_000, maxTokens, 0)
	require.Greater(t, len(chunks), 1)

	budget := maxTokens - CountTokens("system") - outputReserve
	for _, chunk := range chunks {
		if len(chunk) == 1 {
			continue // a single oversized prompt is allowed to exceed budget
		}
		require.LessOrEqual(t, CountPromptTokens("system", chunk), budget)
	}
}

func TestSplitPreservesOrderWithNoOverlap(t *testing.T) {
	prompts := []review.UserPrompt{
		filePrompt("a.py", 300), filePrompt("b.py", 300),
		filePrompt("c.py", 300), filePrompt("d.py", 300),
	}
	chunks := Split("system", prompts, 50_000, 10_000, 0)
	recombined := concatPrompts(chunks, 0)
	require.Len(t, recombined, len(prompts))
	for i, p := range prompts {
		require.Equal(t, p.FileName, recombined[i].FileName)
	}
}

func TestSplitOversizedPromptFormsItsOwnChunk(t *testing.T) {
	prompts := []review.UserPrompt{
		filePrompt("small.py", 5),
		filePrompt("huge.py", 5000),
		filePrompt("small2.py", 5),
	}
	chunks := Split("system", prompts, 50_000, 10_000, 0)

	var huge []review.UserPrompt
	for _, chunk := range chunks {
		if len(chunk) == 1 && chunk[0].FileName == "huge.py" {
			huge = chunk
		}
	}
	require.NotNil(t, huge, "huge.py must form its own chunk")
	require.Greater(t, len(chunks), 1, "huge.py must not share a chunk with the small files")
}

func TestSplitWithOverlapCarriesTailIntoNextChunk(t *testing.T) {
	prompts := []review.UserPrompt{
		filePrompt("a.py", 300), filePrompt("b.py", 300), filePrompt("c.py", 300),
	}
	chunks := Split("system", prompts, 50_000, 10_000, 1)
	require.Greater(t, len(chunks), 1)

	for i := 0; i < len(chunks)-1; i++ {
		last := chunks[i][len(chunks[i])-1]
		require.Equal(t, last.FileName, chunks[i+1][0].FileName)
	}
}

func TestSplitEmptyInputReturnsNil(t *testing.T) {
	require.Nil(t, Split("system", nil, 0, 200_000, 0))
}
