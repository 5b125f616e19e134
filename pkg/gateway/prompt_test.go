package gateway

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tsanders/revgate/pkg/review"
)

func TestRenderMessagesEmitsOneSystemAndOnePerFile(t *testing.T) {
	r, err := review.NewLineRange(3, 5)
	require.NoError(t, err)

	prompt := review.ReviewPrompt{
		SystemPrompt: DefaultSystemPrompt,
		UserPrompts: []review.UserPrompt{
			{
				FileName: "a.go",
				Language: "go",
				FileContext: review.FullFileContext("package a\n"),
				Hunks: []review.Hunk{
					{Header: "@@ -1,3 +1,3 @@", ChangeLine: r, BeforeCode: "old", AfterCode: "new"},
				},
			},
			{
				FileName:    "b.go",
				Language:    "go",
				FileContext: review.BlockFileContext([]review.ContextBlock{{Text: "func f() {}", Label: "func f"}}),
			},
		},
	}

	messages := RenderMessages(prompt)
	require.Len(t, messages, 3)
	require.Equal(t, "system", messages[0].Role)
	require.Equal(t, DefaultSystemPrompt, messages[0].Content)

	require.Equal(t, "user", messages[1].Role)
	require.Contains(t, messages[1].Content, "## File: a.go (go)")
	require.Contains(t, messages[1].Content, "package a")
	require.Contains(t, messages[1].Content, ">>> changed region: lines 3-5")

	require.Equal(t, "user", messages[2].Role)
	require.Contains(t, messages[2].Content, "## File: b.go (go)")
	require.Contains(t, messages[2].Content, "func f")
	require.Contains(t, messages[2].Content, "func f() {}")
}
