// Package review holds the data model shared by every other package in
// revgate: the shapes that travel from a diff, through context extraction
// and the gateway, to a finished review.
package review

import "fmt"

// Severity is the closed set of issue severities a provider may return.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Provider is the closed set of LLM providers revgate talks to.
type Provider string

const (
	ProviderOpenAI     Provider = "openai"
	ProviderAnthropic  Provider = "anthropic"
	ProviderGoogle     Provider = "google"
	ProviderOpenRouter Provider = "openrouter"
)

// ErrorType is the closed set of error_type tags in an ErrorResponse.
type ErrorType string

const (
	ErrorAPI                 ErrorType = "api_error"
	ErrorContextLimitExceeded ErrorType = "context_limit_exceeded"
	ErrorAuthentication      ErrorType = "authentication_error"
	ErrorInvalidModelProvider ErrorType = "invalid_model_provider"
	ErrorUnsupportedModel    ErrorType = "unsupported_model"
	ErrorUnsupportedProvider ErrorType = "unsupported_provider"
	ErrorResponseStructure   ErrorType = "response_error"
	ErrorConnection          ErrorType = "connection_error"
	ErrorTimeout             ErrorType = "timeout_error"
	ErrorJSONParsing         ErrorType = "json_parsing_error"
)

// Retryable reports whether the gateway-level retry loop should retry an
// error of this type. Authentication, routing, and context-limit errors are
// never retried; the latter is instead surfaced so the orchestrator can
// fall back to the multi-turn executor.
func (e ErrorType) Retryable() bool {
	switch e {
	case ErrorConnection, ErrorTimeout, ErrorAPI, ErrorJSONParsing, ErrorResponseStructure:
		return true
	default:
		return false
	}
}

// LineRange is a 1-based inclusive line span.
type LineRange struct {
	StartLine int
	EndLine   int
}

// NewLineRange validates start <= end before constructing a LineRange.
func NewLineRange(start, end int) (LineRange, error) {
	if start < 1 {
		return LineRange{}, fmt.Errorf("line range start %d must be >= 1", start)
	}
	if start > end {
		return LineRange{}, fmt.Errorf("line range start %d must be <= end %d", start, end)
	}
	return LineRange{StartLine: start, EndLine: end}, nil
}

// Overlaps reports whether two ranges share at least one line.
func (r LineRange) Overlaps(other LineRange) bool {
	return r.StartLine <= other.EndLine && r.EndLine >= other.StartLine
}

// Hunk is a single diff fragment.
type Hunk struct {
	Header        string
	BeforeCode    string
	AfterCode     string
	OriginalSpan  LineRange
	ModifiedSpan  LineRange
	ChangeLine    LineRange
}

// FileContextInfo is the sum type FullContext(content) | ContextBlocks(blocks).
// Exactly one of Content or Blocks is meaningful, selected by Full.
type FileContextInfo struct {
	Full    bool
	Content string
	Blocks  []ContextBlock
}

// ContextBlock is one extracted syntactic fragment.
type ContextBlock struct {
	Label           string
	Text            string
	StartLine       int
	EndLine         int
	DeclarationOnly bool
}

// FullFileContext wraps a whole-file rendering.
func FullFileContext(content string) FileContextInfo {
	return FileContextInfo{Full: true, Content: content}
}

// BlockFileContext wraps a set of extracted context blocks.
func BlockFileContext(blocks []ContextBlock) FileContextInfo {
	return FileContextInfo{Full: false, Blocks: blocks}
}

// UserPrompt is one file's worth of review input: its context plus the
// hunks changed within it. The gateway renders exactly one user message
// per UserPrompt.
type UserPrompt struct {
	FileName    string
	Language    string
	FileContext FileContextInfo
	Hunks       []Hunk
}

// ReviewPrompt is the full request: one system prompt plus one UserPrompt
// per changed file.
type ReviewPrompt struct {
	SystemPrompt string
	UserPrompts  []UserPrompt
}

// ReviewIssue is a single finding in a ReviewResponse.
type ReviewIssue struct {
	Type          string    `json:"type"`
	LineNumber    *int      `json:"line_number"`
	File          *string   `json:"file"`
	Description   string    `json:"description"`
	Suggestion    *string   `json:"suggestion"`
	Severity      Severity  `json:"severity"`
	TargetCode    *string   `json:"target_code"`
	SuggestedCode *string   `json:"suggested_code"`
}

// ReviewResponse is the structured output every gateway ultimately produces
// on success, matching the wire schema in spec §6 exactly.
type ReviewResponse struct {
	Issues          []ReviewIssue `json:"issues"`
	Summary         string        `json:"summary"`
	Score           *float64      `json:"score"`
	Recommendations []string      `json:"recommendations"`
}

// EstimatedCost is the normalized cost/usage record the Cost Estimator
// produces for every gateway call.
type EstimatedCost struct {
	Model         string  `json:"model"`
	InputTokens   int     `json:"input_tokens"`
	OutputTokens  int     `json:"output_tokens"`
	InputCostUSD  float64 `json:"input_cost_usd"`
	OutputCostUSD float64 `json:"output_cost_usd"`
	TotalCostUSD  float64 `json:"total_cost_usd"`
}

// Add returns the element-wise sum of two cost records. Model is taken
// from the receiver; callers summing costs across a multi-turn run are
// expected to keep a single model throughout.
func (c EstimatedCost) Add(other EstimatedCost) EstimatedCost {
	return EstimatedCost{
		Model:         c.Model,
		InputTokens:   c.InputTokens + other.InputTokens,
		OutputTokens:  c.OutputTokens + other.OutputTokens,
		InputCostUSD:  round6(c.InputCostUSD + other.InputCostUSD),
		OutputCostUSD: round6(c.OutputCostUSD + other.OutputCostUSD),
		TotalCostUSD:  round6(c.TotalCostUSD + other.TotalCostUSD),
	}
}

func round6(v float64) float64 {
	const scale = 1e6
	return float64(int64(v*scale+0.5)) / scale
}

// ErrorResponse describes a failed review call.
type ErrorResponse struct {
	Provider     Provider               `json:"provider"`
	ErrorType    ErrorType              `json:"error_type"`
	ErrorMessage string                 `json:"error_message"`
	RawError     map[string]interface{} `json:"raw_error,omitempty"`
}

func (e *ErrorResponse) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Provider, e.ErrorType, e.ErrorMessage)
}

// ReviewResult is the sum type Success(ReviewResponse, EstimatedCost) |
// Error(ErrorResponse). Exactly one of Response or Err is set.
type ReviewResult struct {
	Response *ReviewResponse
	Cost     *EstimatedCost
	Err      *ErrorResponse
}

// Success builds a successful ReviewResult.
func Success(resp ReviewResponse, cost EstimatedCost) ReviewResult {
	return ReviewResult{Response: &resp, Cost: &cost}
}

// Failure builds a failed ReviewResult.
func Failure(err ErrorResponse) ReviewResult {
	return ReviewResult{Err: &err}
}

// IsSuccess reports whether the result represents a successful review.
func (r ReviewResult) IsSuccess() bool {
	return r.Err == nil
}

// TokenInfo carries the actual/maximum token counts a gateway extracted
// from a context_limit_exceeded error, when the provider supplied them.
// Either field may be nil when the provider's error text didn't include it.
type TokenInfo struct {
	ActualTokens  *int
	MaximumTokens *int
}

// TokenInfoFromErrorResponse pulls actual_tokens/max_tokens out of an
// ErrorResponse's RawError map, when the provider's error payload included
// them. Missing or non-numeric values are left nil rather than defaulted.
func TokenInfoFromErrorResponse(err ErrorResponse) TokenInfo {
	return TokenInfo{
		ActualTokens:  rawErrorInt(err.RawError, "actual_tokens"),
		MaximumTokens: rawErrorInt(err.RawError, "max_tokens"),
	}
}

func rawErrorInt(raw map[string]interface{}, key string) *int {
	v, ok := raw[key]
	if !ok {
		return nil
	}
	switch n := v.(type) {
	case int:
		return &n
	case int64:
		i := int(n)
		return &i
	case float64:
		i := int(n)
		return &i
	default:
		return nil
	}
}
