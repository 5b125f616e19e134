// Package jsonextract pulls a JSON object out of a raw text blob that is
// expected to contain one, falling back to a balanced-brace scan when the
// text isn't pure JSON (e.g. a model wrapped its answer in prose or a
// markdown fence).
package jsonextract

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
)

const excerptLimit = 500

// Error carries the original parse failure and a truncated excerpt of the
// text that failed to parse; gateways put its message into an
// ErrorResponse's ErrorMessage.
type Error struct {
	Cause   error
	Excerpt string
}

func (e *Error) Error() string {
	return fmt.Sprintf("json_parsing_error: %v (excerpt: %q)", e.Cause, e.Excerpt)
}

func (e *Error) Unwrap() error { return e.Cause }

// Extract attempts to parse raw as JSON directly; on failure it locates the
// outermost balanced {...} substring and retries. The result is unmarshaled
// into out, which must be a pointer.
func Extract(raw string, out interface{}) error {
	if gjson.Valid(raw) {
		if err := json.Unmarshal([]byte(raw), out); err == nil {
			return nil
		}
	}

	candidate, ok := outermostBalancedObject(raw)
	if !ok {
		return &Error{Cause: fmt.Errorf("no balanced JSON object found"), Excerpt: truncate(raw)}
	}

	if err := json.Unmarshal([]byte(candidate), out); err != nil {
		return &Error{Cause: err, Excerpt: truncate(raw)}
	}
	return nil
}

// outermostBalancedObject scans raw for the first '{' and returns the
// substring up to its matching '}', tracking string literals and escapes so
// braces inside quoted strings don't throw off the balance count.
func outermostBalancedObject(raw string) (string, bool) {
	start := -1
	depth := 0
	inString := false
	escaped := false

	for i, r := range raw {
		if start == -1 {
			if r == '{' {
				start = i
				depth = 1
			}
			continue
		}

		if escaped {
			escaped = false
			continue
		}

		switch r {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return raw[start : i+1], true
				}
			}
		}
	}

	return "", false
}

func truncate(s string) string {
	if len(s) <= excerptLimit {
		return s
	}
	return s[:excerptLimit]
}
