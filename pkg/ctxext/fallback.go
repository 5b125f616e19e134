package ctxext

import (
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/tsanders/revgate/pkg/review"
)

// fallbackWindowLines is how many lines of surrounding context NearbyLines
// includes on each side of a changed range.
const fallbackWindowLines = 5

// NearbyLines is the documented fallback extractor used for any language
// without a registered grammar: a window of lines around each change,
// each annotated with a header, plus a synthetic header block listing any
// import-looking lines found at the top of the file.
func NearbyLines(path string, ranges []review.LineRange) ([]review.ContextBlock, error) {
	if len(ranges) == 0 {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ctxext: %w", err)
	}
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("ctxext: %s is not valid UTF-8", path)
	}
	if len(data) == 0 {
		return nil, nil
	}

	lines := strings.Split(string(data), "\n")
	blocks := make([]review.ContextBlock, 0, len(ranges)+1)

	if header := dependencyHeader(lines); header != nil {
		blocks = append(blocks, *header)
	}

	for i, r := range ranges {
		start := max(1, r.StartLine-fallbackWindowLines)
		end := min(len(lines), r.EndLine+fallbackWindowLines)
		if start > len(lines) {
			continue
		}
		text := strings.Join(lines[start-1:end], "\n")
		blocks = append(blocks, review.ContextBlock{
			Label:     fmt.Sprintf("Context Block %d (Lines %d-%d)", i+1, start, end),
			Text:      text,
			StartLine: start,
			EndLine:   end,
		})
	}

	return blocks, nil
}

// dependencyHeader scans the leading lines of a file for import-looking
// statements and, if any are found, returns a synthetic header block
// listing them, matching the fallback's "Dependencies/Imports" framing of
// the import region named in the extraction algorithm.
func dependencyHeader(lines []string) *review.ContextBlock {
	const scanLimit = 50
	var importLines []string
	limit := min(scanLimit, len(lines))
	for i := 0; i < limit; i++ {
		trimmed := strings.TrimSpace(lines[i])
		if looksLikeImport(trimmed) {
			importLines = append(importLines, lines[i])
		}
	}
	if len(importLines) == 0 {
		return nil
	}
	return &review.ContextBlock{
		Label:     "Dependencies/Imports",
		Text:      strings.Join(importLines, "\n"),
		StartLine: 1,
		EndLine:   len(importLines),
	}
}

func looksLikeImport(line string) bool {
	prefixes := []string{"import ", "from ", "using ", "#include", "require(", "require "}
	for _, p := range prefixes {
		if strings.HasPrefix(line, p) {
			return true
		}
	}
	return false
}
