package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rs/zerolog/log"

	"github.com/tsanders/revgate/pkg/cache"
	"github.com/tsanders/revgate/pkg/catalog"
	"github.com/tsanders/revgate/pkg/config"
	"github.com/tsanders/revgate/pkg/ctxext"
	"github.com/tsanders/revgate/pkg/gateway/factory"
	"github.com/tsanders/revgate/pkg/multiturn"
	"github.com/tsanders/revgate/pkg/review"
	"github.com/tsanders/revgate/pkg/ux"
	"github.com/tsanders/revgate/pkg/xdgpath"
)

var (
	diffPath       string
	modelFlag      string
	claudeProvider string
	fullContext    bool
	strategyFlag   string
	noCache        bool
	configPath     string

	configInitForce bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "revgate",
		Short: "LLM-backed code review orchestrator",
		Long: `revgate reviews a unified diff against one of several LLM providers
(OpenAI, Anthropic, Google, OpenRouter), transparently splitting the
request into multiple turns when the diff overflows the model's context
window and caching successful results on disk.`,
	}

	reviewCmd := &cobra.Command{
		Use:   "review",
		Short: "Review a diff and print the result",
		RunE:  runReview,
	}
	reviewCmd.Flags().StringVar(&diffPath, "diff", "-", "path to a unified diff file, or - for stdin")
	reviewCmd.Flags().StringVar(&modelFlag, "model", "", "catalog model name or alias (default: config/provider.default-model)")
	reviewCmd.Flags().StringVar(&claudeProvider, "claude-provider", "", "transport override for Anthropic models: anthropic or openrouter")
	reviewCmd.Flags().BoolVar(&fullContext, "full-context", false, "send whole-file context instead of extracted blocks")
	reviewCmd.Flags().StringVar(&strategyFlag, "strategy", "", "multi-turn strategy when the diff overflows context: sequential or parallel")
	reviewCmd.Flags().BoolVar(&noCache, "no-cache", false, "bypass the review cache")
	reviewCmd.Flags().StringVar(&configPath, "config", "", "path to config.yaml (default: platform config directory)")
	rootCmd.AddCommand(reviewCmd)

	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and initialize revgate's configuration",
	}
	configShowCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the resolved configuration as YAML",
		RunE:  runConfigShow,
	}
	configShowCmd.Flags().StringVar(&configPath, "config", "", "path to config.yaml (default: platform config directory)")
	configInitCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config.yaml to the platform config directory",
		RunE:  runConfigInit,
	}
	configInitCmd.Flags().BoolVar(&configInitForce, "force", false, "overwrite an existing config.yaml")
	configCmd.AddCommand(configShowCmd, configInitCmd)
	rootCmd.AddCommand(configCmd)

	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the on-disk review cache",
	}
	cacheClearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every cached review result",
		RunE:  runCacheClear,
	}
	cacheSweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "Delete expired cache entries",
		RunE:  runCacheSweep,
	}
	cacheCmd.AddCommand(cacheClearCmd, cacheSweepCmd)
	rootCmd.AddCommand(cacheCmd)

	if err := rootCmd.Execute(); err != nil {
		ux.PrintError("%v", err)
		os.Exit(exitCodeFor(err))
	}
}

// exitCodeFor maps a failure to a CLI exit status: unsupported model,
// missing API key, and fatal I/O errors each get a distinct non-zero code
// so scripts driving revgate can tell them apart.
func exitCodeFor(err error) int {
	var unsupported *catalog.UnsupportedModelError
	if errors.As(err, &unsupported) {
		return 2
	}

	var errResp *review.ErrorResponse
	if errors.As(err, &errResp) {
		switch errResp.ErrorType {
		case review.ErrorUnsupportedModel, review.ErrorUnsupportedProvider:
			return 2
		case review.ErrorAuthentication:
			return 3
		}
	}
	return 1
}

func runReview(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	modelName := modelFlag
	if modelName == "" {
		modelName = cfg.Provider.DefaultModel
	}
	override := factory.ClaudeProviderOverride(claudeProvider)
	if override == factory.ClaudeProviderDefault {
		override = cfg.Provider.ClaudeProvider
	}
	strategy := multiturn.Strategy(strategyFlag)
	if strategy == "" {
		strategy = multiturn.Strategy(cfg.MultiTurn.Strategy)
	}

	diffContent, err := readDiff(diffPath)
	if err != nil {
		return fmt.Errorf("failed to read diff: %w", err)
	}

	cat, err := catalog.Default()
	if err != nil {
		return fmt.Errorf("failed to load catalog: %w", err)
	}
	if _, err := cat.Get(modelName); err != nil {
		return err
	}

	ux.PrintHeader("revgate review")
	ux.PrintInfo("model %s", modelName)

	var reviewCache *cache.Cache
	if !cfg.Cache.Disable && !noCache {
		dir, err := xdgpath.CacheDir()
		if err != nil {
			return fmt.Errorf("failed to resolve cache directory: %w", err)
		}
		reviewCache, err = cache.New(filepath.Join(dir, "reviews"), cfg.Cache.TTL)
		if err != nil {
			return fmt.Errorf("failed to open review cache: %w", err)
		}
	}

	cacheReq := cache.Request{DiffContent: diffContent, Model: modelName, UseFullContext: fullContext}
	if reviewCache != nil {
		if resp, cost, ok := reviewCache.Get(cacheReq); ok {
			ux.PrintSuccess("cache hit")
			printResult(*resp, cost)
			return nil
		}
	}

	prompt := buildReviewPrompt(diffContent, fullContext)

	keys := factory.Keys{
		OpenAI:     os.Getenv("OPENAI_API_KEY"),
		Anthropic:  os.Getenv("ANTHROPIC_API_KEY"),
		Google:     os.Getenv("GEMINI_API_KEY"),
		OpenRouter: os.Getenv("OPENROUTER_API_KEY"),
	}

	ctx := context.Background()
	gw, err := factory.New(ctx, cat, modelName, keys, override)
	if err != nil {
		return err
	}

	spinner := ux.NewSpinner(fmt.Sprintf("reviewing with %s...", gw.Name()))
	spinner.Start()
	result := gw.ReviewCode(ctx, prompt)
	spinner.Stop()

	if !result.IsSuccess() && result.Err.ErrorType == review.ErrorContextLimitExceeded {
		ux.PrintWarning("context limit exceeded, falling back to multi-turn review")
		limit, err := cat.ContextLimit(modelName)
		if err != nil {
			return err
		}
		tokenInfo := review.TokenInfoFromErrorResponse(*result.Err)
		result = multiturn.Execute(ctx, prompt, tokenInfo, gw, limit, strategy)
	}

	if !result.IsSuccess() {
		return result.Err
	}

	if reviewCache != nil {
		if err := reviewCache.Put(cacheReq, *result.Response, *result.Cost, ""); err != nil {
			ux.PrintWarning("failed to write cache entry: %v", err)
		}
	}

	printResult(*result.Response, result.Cost)
	return nil
}

func printResult(resp review.ReviewResponse, cost *review.EstimatedCost) {
	fmt.Println()
	ux.PrintSection("Summary")
	fmt.Println(resp.Summary)

	if resp.Score != nil {
		fmt.Println()
		ux.PrintInfo("score: %.1f", *resp.Score)
	}

	if len(resp.Issues) > 0 {
		ux.PrintSection(fmt.Sprintf("Issues (%d)", len(resp.Issues)))
		for _, issue := range resp.Issues {
			loc := ""
			if issue.File != nil {
				loc = *issue.File
				if issue.LineNumber != nil {
					loc = fmt.Sprintf("%s:%d", loc, *issue.LineNumber)
				}
			}
			fmt.Printf("[%s] %s %s\n", issue.Severity, loc, issue.Description)
		}
	}

	if len(resp.Recommendations) > 0 {
		ux.PrintSection("Recommendations")
		for _, rec := range resp.Recommendations {
			fmt.Printf("- %s\n", rec)
		}
	}

	if cost != nil {
		fmt.Println()
		ux.PrintInfo("cost %s (%s input tokens, %s output tokens)",
			ux.FormatCost(cost.TotalCostUSD), ux.FormatTokens(cost.InputTokens), ux.FormatTokens(cost.OutputTokens))
	}
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	out, err := cfg.Marshal()
	if err != nil {
		return fmt.Errorf("failed to render configuration: %w", err)
	}
	fmt.Print(string(out))
	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	dir, err := xdgpath.ConfigDir()
	if err != nil {
		return fmt.Errorf("failed to resolve config directory: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	path := filepath.Join(dir, "config.yaml")
	if !configInitForce {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists; pass --force to overwrite", path)
		}
	}

	out, err := config.DefaultConfig().Marshal()
	if err != nil {
		return fmt.Errorf("failed to render default configuration: %w", err)
	}
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	ux.PrintSuccess("wrote %s", path)
	return nil
}

func runCacheClear(cmd *cobra.Command, args []string) error {
	c, err := openReviewCache()
	if err != nil {
		return err
	}
	if err := c.Clear(); err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	ux.PrintSuccess("cache cleared")
	return nil
}

func runCacheSweep(cmd *cobra.Command, args []string) error {
	c, err := openReviewCache()
	if err != nil {
		return err
	}
	removed, err := c.CleanupExpired()
	if err != nil {
		return fmt.Errorf("failed to sweep cache: %w", err)
	}
	ux.PrintSuccess("removed %d expired entries", removed)
	return nil
}

func openReviewCache() (*cache.Cache, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	dir, err := xdgpath.CacheDir()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve cache directory: %w", err)
	}
	return cache.New(filepath.Join(dir, "reviews"), cfg.Cache.TTL)
}

func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.Load(configPath)
	}
	return config.LoadOrDefault(), nil
}

func readDiff(path string) (string, error) {
	var r io.Reader
	if path == "" || path == "-" {
		r = os.Stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			return "", err
		}
		defer f.Close()
		r = f
	}

	data, err := io.ReadAll(bufio.NewReader(r))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// buildReviewPrompt does the minimal amount of unified-diff splitting
// needed to turn raw diff text into one UserPrompt per changed file: git
// diff acquisition and full hunk parsing are an external collaborator
// (spec.md §1), so each file's entire diff body is carried as a single
// hunk rather than parsed into individual @@ ranges.
func buildReviewPrompt(diffContent string, useFullContext bool) review.ReviewPrompt {
	files := splitUnifiedDiffByFile(diffContent)
	if len(files) == 0 {
		files = []diffFile{{name: "diff", body: diffContent}}
	}

	prompts := make([]review.UserPrompt, 0, len(files))
	for _, f := range files {
		lineCount := strings.Count(f.body, "\n") + 1
		changeLine, err := review.NewLineRange(1, lineCount)
		if err != nil {
			changeLine = review.LineRange{StartLine: 1, EndLine: 1}
		}
		hunk := review.Hunk{
			Header:       f.name,
			BeforeCode:   "",
			AfterCode:    f.body,
			OriginalSpan: changeLine,
			ModifiedSpan: changeLine,
			ChangeLine:   changeLine,
		}
		lang := languageForFile(f.name)
		prompts = append(prompts, review.UserPrompt{
			FileName:    f.name,
			Language:    lang,
			FileContext: fileContextFor(f.name, lang, changeLine, useFullContext),
			Hunks:       []review.Hunk{hunk},
		})
	}

	return review.ReviewPrompt{
		SystemPrompt: defaultSystemPromptFor(useFullContext),
		UserPrompts:  prompts,
	}
}

// fileContextFor resolves the Context Extractor output for one changed
// file: the whole file when --full-context is set, or the tree-sitter
// extracted blocks around changeRange otherwise, falling back to the
// line-window extractor for languages without a registered grammar. A
// file that can't be read off disk (already deleted, or revgate running
// outside the diffed worktree) degrades to an empty context rather than
// failing the whole review.
func fileContextFor(path, language string, changeRange review.LineRange, useFullContext bool) review.FileContextInfo {
	if useFullContext {
		content, err := os.ReadFile(path)
		if err != nil {
			log.Warn().Err(err).Str("file", path).Msg("failed to read file for full context, sending empty context")
			return review.FullFileContext("")
		}
		return review.FullFileContext(string(content))
	}

	ranges := []review.LineRange{changeRange}
	blocks, err := ctxext.Extract(language, path, ranges)
	if err != nil {
		var unsupported *ctxext.UnsupportedLanguageError
		if errors.As(err, &unsupported) {
			blocks, err = ctxext.NearbyLines(path, ranges)
		}
	}
	if err != nil {
		log.Warn().Err(err).Str("file", path).Msg("failed to extract context, sending empty context")
		return review.BlockFileContext(nil)
	}
	return review.BlockFileContext(blocks)
}

func defaultSystemPromptFor(useFullContext bool) string {
	if useFullContext {
		return "You are a senior software engineer performing a full-context code review.\n" + reviewResponseShape
	}
	return "You are a senior software engineer performing a code review.\n" + reviewResponseShape
}

const reviewResponseShape = `Review the supplied diff hunks in context and respond with a single JSON
object matching exactly this shape:
{"issues": [{"type": string, "line_number": int|null, "file": string|null,
"description": string, "suggestion": string|null,
"severity": "info"|"warning"|"error",
"target_code": string|null, "suggested_code": string|null}],
"summary": string, "score": number|null, "recommendations": [string]}
Do not include any text outside the JSON object.`

type diffFile struct {
	name string
	body string
}

// splitUnifiedDiffByFile splits a multi-file unified diff on its
// "diff --git a/X b/Y" boundaries, attributing each section's body to the
// "b/" (post-change) path.
func splitUnifiedDiffByFile(diff string) []diffFile {
	lines := strings.Split(diff, "\n")
	var files []diffFile
	var current *diffFile
	var body strings.Builder

	flush := func() {
		if current != nil {
			current.body = body.String()
			files = append(files, *current)
		}
		body.Reset()
	}

	for _, line := range lines {
		if strings.HasPrefix(line, "diff --git ") {
			flush()
			name := fileNameFromDiffGitLine(line)
			current = &diffFile{name: name}
			continue
		}
		if current == nil {
			continue
		}
		body.WriteString(line)
		body.WriteString("\n")
	}
	flush()

	return files
}

func fileNameFromDiffGitLine(line string) string {
	fields := strings.Fields(line)
	for i := len(fields) - 1; i >= 0; i-- {
		if strings.HasPrefix(fields[i], "b/") {
			return strings.TrimPrefix(fields[i], "b/")
		}
	}
	if len(fields) > 0 {
		return fields[len(fields)-1]
	}
	return "diff"
}

var extensionLanguages = map[string]string{
	".go":   "go",
	".py":   "python",
	".js":   "javascript",
	".jsx":  "javascript",
	".ts":   "typescript",
	".tsx":  "typescript",
	".java": "java",
	".c":    "c",
	".h":    "c",
	".cc":   "cpp",
	".cpp":  "cpp",
	".hpp":  "cpp",
	".cs":   "csharp",
	".kt":   "kotlin",
	".swift": "swift",
}

func languageForFile(name string) string {
	ext := filepath.Ext(name)
	if lang, ok := extensionLanguages[ext]; ok {
		return lang
	}
	return "text"
}
