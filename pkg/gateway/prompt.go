package gateway

import (
	"fmt"
	"strings"

	"github.com/tsanders/revgate/pkg/review"
)

// Message is one entry of the provider-shaped message list every gateway
// builds from a ReviewPrompt before translating it into its own SDK's
// request type.
type Message struct {
	Role    string // "system" or "user"
	Content string
}

// RenderMessages serializes a ReviewPrompt into exactly one system message
// followed by one user message per file, per the common pipeline every
// provider shares (spec §4.5 step 1).
func RenderMessages(prompt review.ReviewPrompt) []Message {
	systemPrompt := prompt.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = DefaultSystemPrompt
	}
	messages := make([]Message, 0, len(prompt.UserPrompts)+1)
	messages = append(messages, Message{Role: "system", Content: systemPrompt})
	for _, up := range prompt.UserPrompts {
		messages = append(messages, Message{Role: "user", Content: RenderUserPrompt(up)})
	}
	return messages
}

// RenderUserPrompt serializes a single file's UserPrompt into the same
// markdown body RenderMessages embeds in its per-file user message. Exported
// so callers that need to measure or chunk prompts (the splitter) can reuse
// the exact text a gateway call would send.
func RenderUserPrompt(up review.UserPrompt) string {
	var b strings.Builder

	fmt.Fprintf(&b, "## File: %s (%s)\n\n", up.FileName, up.Language)

	if up.FileContext.Full {
		b.WriteString("### Full file content\n```\n")
		b.WriteString(up.FileContext.Content)
		b.WriteString("\n```\n\n")
	} else {
		b.WriteString("### Relevant context\n\n")
		for _, block := range up.FileContext.Blocks {
			if block.Label != "" {
				fmt.Fprintf(&b, "**%s**\n", block.Label)
			}
			fmt.Fprintf(&b, "```\n%s\n```\n\n", block.Text)
		}
	}

	for _, hunk := range up.Hunks {
		fmt.Fprintf(&b, "### Hunk: %s (changed lines %d-%d)\n\n", hunk.Header, hunk.ChangeLine.StartLine, hunk.ChangeLine.EndLine)
		b.WriteString("Before:\n```\n")
		b.WriteString(hunk.BeforeCode)
		b.WriteString("\n```\n\nAfter:\n```\n")
		b.WriteString(hunk.AfterCode)
		b.WriteString("\n```\n\n>>> changed region: lines ")
		fmt.Fprintf(&b, "%d-%d\n\n", hunk.ChangeLine.StartLine, hunk.ChangeLine.EndLine)
	}

	return b.String()
}

// DefaultSystemPrompt is the baseline review instruction used when the
// caller does not supply one.
const DefaultSystemPrompt = `You are a senior software engineer performing a code review.
Review the supplied diff hunks in context and respond with a single JSON
object matching exactly this shape:
{"issues": [{"type": string, "line_number": int|null, "file": string|null,
"description": string, "suggestion": string|null,
"severity": "info"|"warning"|"error",
"target_code": string|null, "suggested_code": string|null}],
"summary": string, "score": number|null, "recommendations": [string]}
Do not include any text outside the JSON object.`
