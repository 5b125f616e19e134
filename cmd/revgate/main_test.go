package main

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tsanders/revgate/pkg/catalog"
	"github.com/tsanders/revgate/pkg/review"
)

func TestSplitUnifiedDiffByFileSplitsOnDiffGitHeaders(t *testing.T) {
	diff := "diff --git a/foo.go b/foo.go\n" +
		"@@ -1,2 +1,2 @@\n" +
		"-old\n" +
		"+new\n" +
		"diff --git a/bar.py b/bar.py\n" +
		"@@ -1 +1 @@\n" +
		"+print(1)\n"

	files := splitUnifiedDiffByFile(diff)
	require.Len(t, files, 2)
	assert.Equal(t, "foo.go", files[0].name)
	assert.Contains(t, files[0].body, "+new")
	assert.Equal(t, "bar.py", files[1].name)
	assert.Contains(t, files[1].body, "+print(1)")
}

func TestSplitUnifiedDiffByFileIgnoresPreambleBeforeFirstHeader(t *testing.T) {
	diff := "some stray text\ndiff --git a/x.go b/x.go\n+body\n"
	files := splitUnifiedDiffByFile(diff)
	require.Len(t, files, 1)
	assert.Equal(t, "x.go", files[0].name)
	assert.NotContains(t, files[0].body, "stray text")
}

func TestSplitUnifiedDiffByFileEmptyInputReturnsNoFiles(t *testing.T) {
	assert.Empty(t, splitUnifiedDiffByFile(""))
}

func TestFileNameFromDiffGitLinePrefersBPath(t *testing.T) {
	assert.Equal(t, "pkg/foo.go", fileNameFromDiffGitLine("diff --git a/pkg/foo.go b/pkg/foo.go"))
}

func TestFileNameFromDiffGitLineRenameUsesNewPath(t *testing.T) {
	assert.Equal(t, "new/name.go", fileNameFromDiffGitLine("diff --git a/old/name.go b/new/name.go"))
}

func TestLanguageForFileKnownExtensions(t *testing.T) {
	assert.Equal(t, "go", languageForFile("main.go"))
	assert.Equal(t, "python", languageForFile("script.py"))
	assert.Equal(t, "typescript", languageForFile("app.tsx"))
}

func TestLanguageForFileUnknownExtensionFallsBackToText(t *testing.T) {
	assert.Equal(t, "text", languageForFile("Makefile"))
}

func TestBuildReviewPromptProducesOnePromptPerFile(t *testing.T) {
	diff := "diff --git a/a.go b/a.go\n+x\n" +
		"diff --git a/b.go b/b.go\n+y\n"

	prompt := buildReviewPrompt(diff, false)
	require.Len(t, prompt.UserPrompts, 2)
	assert.Equal(t, "a.go", prompt.UserPrompts[0].FileName)
	assert.Equal(t, "b.go", prompt.UserPrompts[1].FileName)
	assert.NotEmpty(t, prompt.SystemPrompt)
}

func TestBuildReviewPromptFallsBackToSingleBlobWhenUnparseable(t *testing.T) {
	prompt := buildReviewPrompt("not a diff at all", false)
	require.Len(t, prompt.UserPrompts, 1)
	assert.Equal(t, "diff", prompt.UserPrompts[0].FileName)
}

func TestExitCodeForUnsupportedModel(t *testing.T) {
	err := &catalog.UnsupportedModelError{Name: "nope"}
	assert.Equal(t, 2, exitCodeFor(err))
}

func TestExitCodeForAuthenticationError(t *testing.T) {
	err := &review.ErrorResponse{ErrorType: review.ErrorAuthentication}
	assert.Equal(t, 3, exitCodeFor(err))
}

func TestExitCodeForGenericErrorFallsBackToOne(t *testing.T) {
	assert.Equal(t, 1, exitCodeFor(errors.New("boom")))
}
