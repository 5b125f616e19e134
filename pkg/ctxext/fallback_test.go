package ctxext

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tsanders/revgate/pkg/review"
)

const sampleCobol = `IDENTIFICATION DIVISION.
PROGRAM-ID. HELLO.
PROCEDURE DIVISION.
    DISPLAY "HELLO WORLD".
    STOP RUN.
`

func TestNearbyLinesReturnsWindowAroundChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hello.cob")
	require.NoError(t, os.WriteFile(path, []byte(sampleCobol), 0o644))

	r, err := review.NewLineRange(4, 4)
	require.NoError(t, err)

	blocks, err := NearbyLines(path, []review.LineRange{r})
	require.NoError(t, err)
	require.NotEmpty(t, blocks)
	require.Contains(t, blocks[len(blocks)-1].Text, "DISPLAY")
}

func TestNearbyLinesEmptyRanges(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hello.cob")
	require.NoError(t, os.WriteFile(path, []byte(sampleCobol), 0o644))

	blocks, err := NearbyLines(path, nil)
	require.NoError(t, err)
	require.Empty(t, blocks)
}
