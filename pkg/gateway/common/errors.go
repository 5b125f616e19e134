// Package common provides shared error classification and enrichment for
// the concrete provider gateways in pkg/gateway/*, adapted from the
// provider-neutral API-error heuristics every gateway needs.
package common

import (
	"fmt"
	"strings"

	"github.com/tsanders/revgate/pkg/review"
)

// ErrorContext carries the provider-specific strings EnhanceAPIError
// interpolates into its troubleshooting message.
type ErrorContext struct {
	ProviderName      string // e.g. "OpenAI", "Anthropic"
	APIKeysURL        string
	StatusPageURL     string
	BillingURL        string
	AlternateProvider string
}

// Classify maps a raw SDK/transport error to the closed ErrorType taxonomy
// by inspecting its message for well-known substrings. Providers that
// expose typed errors (e.g. an SDK-specific *APIError with a status code)
// should prefer that signal and only fall back to Classify for the
// generic transport case.
func Classify(err error) review.ErrorType {
	if err == nil {
		return ""
	}
	msg := strings.ToLower(err.Error())

	switch {
	case containsAny(msg, "401", "unauthorized", "invalid api key", "authentication"):
		return review.ErrorAuthentication
	case containsAny(msg, "429", "rate limit", "insufficient_quota", "quota", "500", "502", "503"):
		return review.ErrorAPI
	case containsAny(msg, "timeout", "deadline exceeded"):
		return review.ErrorTimeout
	case containsAny(msg, "connection", "network", "dial", "eof", "reset by peer"):
		return review.ErrorConnection
	case containsAny(msg, "context", "token", "limit", "exceed", "maximum"):
		return review.ErrorContextLimitExceeded
	default:
		return review.ErrorAPI
	}
}

// EnhanceAPIError wraps err with actionable troubleshooting context the
// way every gateway surfaces a failed call to its caller.
func EnhanceAPIError(err error, ctx ErrorContext) error {
	errMsg := strings.ToLower(err.Error())

	switch {
	case containsAny(errMsg, "401", "unauthorized", "invalid api key"):
		envVar := strings.ToUpper(ctx.ProviderName) + "_API_KEY"
		if envVar == "GOOGLE_API_KEY" {
			envVar = "GEMINI_API_KEY"
		}
		return fmt.Errorf("%s API authentication failed: %w\n\n"+
			"Possible causes:\n"+
			"  - invalid or expired API key\n"+
			"  - key revoked or deleted\n\n"+
			"To fix:\n"+
			"  1. verify your API key at: %s\n"+
			"  2. ensure %s is set correctly", ctx.ProviderName, err, ctx.APIKeysURL, envVar)

	case containsAny(errMsg, "429", "rate limit"):
		return fmt.Errorf("%s API rate limit exceeded: %w\n\n"+
			"To fix:\n"+
			"  1. wait and retry\n"+
			"  2. upgrade your %s API plan for higher limits", ctx.ProviderName, err, ctx.ProviderName)

	case containsAny(errMsg, "insufficient_quota", "quota"):
		msg := fmt.Sprintf("%s API quota exceeded: %%w\n\nTo fix:\n  1. add credits", ctx.ProviderName)
		if ctx.BillingURL != "" {
			msg = fmt.Sprintf("%s API quota exceeded: %%w\n\nTo fix:\n  1. add credits: %s", ctx.ProviderName, ctx.BillingURL)
		}
		if ctx.AlternateProvider != "" {
			msg += fmt.Sprintf("\n  2. or pass a %s model to --model instead", strings.ToLower(ctx.AlternateProvider))
		}
		return fmt.Errorf(msg, err)

	case containsAny(errMsg, "timeout", "deadline exceeded"):
		return fmt.Errorf("%s API request timed out: %w\n\nTo fix:\n  1. check your connection\n  2. retry", ctx.ProviderName, err)

	case containsAny(errMsg, "connection", "network", "dial"):
		return fmt.Errorf("network error connecting to %s API: %w\n\nTo fix:\n  1. check your connection\n  2. retry in a few moments", ctx.ProviderName, err)

	case containsAny(errMsg, "500", "502", "503"):
		msg := fmt.Sprintf("%s API server error: %%w\n\nTo fix:\n  1. wait and retry", ctx.ProviderName)
		if ctx.StatusPageURL != "" {
			msg += fmt.Sprintf("\n  2. check status: %s", ctx.StatusPageURL)
		}
		return fmt.Errorf(msg, err)

	default:
		return fmt.Errorf("%s API error: %w", ctx.ProviderName, err)
	}
}

func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
