package ctxext

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tsanders/revgate/pkg/review"
)

const samplePython = `class SampleCalculator:
    """A tiny calculator used as a context-extraction fixture."""

    def __init__(self, label: str) -> None:
        self.label = label

    def add_numbers(self, a: int, b: int) -> int:
        total = a + b
        return total

    def subtract_numbers(self, a: int, b: int) -> int:
        return a - b
`

func writeFixture(t *testing.T, name, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestExtractPythonMethodBody(t *testing.T) {
	path := writeFixture(t, "calc.py", samplePython)

	methodLine, err := review.NewLineRange(7, 9)
	require.NoError(t, err)

	blocks, err := Extract("python", path, []review.LineRange{methodLine})
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	require.False(t, blocks[0].DeclarationOnly)
	require.True(t, strings.HasPrefix(blocks[0].Text, "def add_numbers(self, a: int, b: int) -> int:"))
}

func TestExtractPythonClassDeclarationOnly(t *testing.T) {
	path := writeFixture(t, "calc.py", samplePython)

	classLine, err := review.NewLineRange(1, 1)
	require.NoError(t, err)

	blocks, err := Extract("python", path, []review.LineRange{classLine})
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	require.True(t, blocks[0].DeclarationOnly)
	require.Equal(t, "class SampleCalculator:", blocks[0].Text)
}

func TestExtractEmptyRangesReturnsEmptyList(t *testing.T) {
	path := writeFixture(t, "calc.py", samplePython)

	blocks, err := Extract("python", path, nil)
	require.NoError(t, err)
	require.Empty(t, blocks)
}

func TestExtractUnsupportedLanguage(t *testing.T) {
	path := writeFixture(t, "calc.xyz", samplePython)
	r, err := review.NewLineRange(1, 1)
	require.NoError(t, err)

	_, err = Extract("cobol", path, []review.LineRange{r})
	require.Error(t, err)
	var unsupported *UnsupportedLanguageError
	require.ErrorAs(t, err, &unsupported)
}

func TestExtractIsIdempotent(t *testing.T) {
	path := writeFixture(t, "calc.py", samplePython)
	r, err := review.NewLineRange(7, 9)
	require.NoError(t, err)

	first, err := Extract("python", path, []review.LineRange{r})
	require.NoError(t, err)
	second, err := Extract("python", path, []review.LineRange{r})
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestExtractIsOrderPreserving(t *testing.T) {
	path := writeFixture(t, "calc.py", samplePython)
	r1, err := review.NewLineRange(11, 12)
	require.NoError(t, err)
	r2, err := review.NewLineRange(7, 9)
	require.NoError(t, err)

	blocks, err := Extract("python", path, []review.LineRange{r1, r2})
	require.NoError(t, err)
	for i := 1; i < len(blocks); i++ {
		require.LessOrEqual(t, blocks[i-1].StartLine, blocks[i].StartLine)
	}
}

func TestExtractZeroByteFile(t *testing.T) {
	path := writeFixture(t, "empty.py", "")
	r, err := review.NewLineRange(1, 1)
	require.NoError(t, err)

	blocks, err := Extract("python", path, []review.LineRange{r})
	require.NoError(t, err)
	require.Empty(t, blocks)
}
