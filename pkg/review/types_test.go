package review

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLineRangeOverlapsIsReflexiveAndSymmetric(t *testing.T) {
	l, err := NewLineRange(5, 10)
	require.NoError(t, err)
	require.True(t, l.Overlaps(l))

	other, err := NewLineRange(8, 20)
	require.NoError(t, err)
	require.Equal(t, l.Overlaps(other), other.Overlaps(l))
}

func TestNewLineRangeRejectsStartAfterEnd(t *testing.T) {
	_, err := NewLineRange(10, 5)
	require.Error(t, err)
}

func TestNewLineRangeRejectsNonPositiveStart(t *testing.T) {
	_, err := NewLineRange(0, 5)
	require.Error(t, err)
}

func TestReviewResponseRoundTripsThroughJSON(t *testing.T) {
	line := 42
	score := 0.75
	suggestion := "use context.Context"
	resp := ReviewResponse{
		Issues: []ReviewIssue{
			{
				Type:        "style",
				LineNumber:  &line,
				Description: "missing context propagation",
				Suggestion:  &suggestion,
				Severity:    SeverityWarning,
			},
		},
		Summary:         "one warning found",
		Score:           &score,
		Recommendations: []string{"add a context.Context parameter"},
	}

	data, err := json.Marshal(resp)
	require.NoError(t, err)

	var roundTripped ReviewResponse
	require.NoError(t, json.Unmarshal(data, &roundTripped))
	require.Equal(t, resp, roundTripped)
}

func TestSeverityRoundTripsExactTag(t *testing.T) {
	for _, sev := range []Severity{SeverityInfo, SeverityWarning, SeverityError} {
		data, err := json.Marshal(sev)
		require.NoError(t, err)
		var got Severity
		require.NoError(t, json.Unmarshal(data, &got))
		require.Equal(t, sev, got)
	}
}

func TestEstimatedCostAddIsAdditive(t *testing.T) {
	a := EstimatedCost{Model: "gpt-4o", InputTokens: 100, OutputTokens: 50, InputCostUSD: 0.001, OutputCostUSD: 0.002, TotalCostUSD: 0.003}
	b := EstimatedCost{Model: "gpt-4o", InputTokens: 200, OutputTokens: 75, InputCostUSD: 0.002, OutputCostUSD: 0.003, TotalCostUSD: 0.005}

	sum := a.Add(b)
	require.Equal(t, 300, sum.InputTokens)
	require.Equal(t, 125, sum.OutputTokens)
	require.InDelta(t, 0.003, sum.InputCostUSD, 1e-9)
	require.InDelta(t, 0.005, sum.OutputCostUSD, 1e-9)
	require.InDelta(t, 0.008, sum.TotalCostUSD, 1e-9)
}

func TestErrorTypeRetryability(t *testing.T) {
	require.True(t, ErrorConnection.Retryable())
	require.True(t, ErrorTimeout.Retryable())
	require.True(t, ErrorJSONParsing.Retryable())
	require.False(t, ErrorAuthentication.Retryable())
	require.False(t, ErrorInvalidModelProvider.Retryable())
	require.False(t, ErrorContextLimitExceeded.Retryable())
	require.False(t, ErrorUnsupportedModel.Retryable())
}
