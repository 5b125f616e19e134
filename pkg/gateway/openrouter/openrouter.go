// Package openrouter implements the Gateway interface against the
// OpenRouter proxy's OpenAI-compatible chat-completions endpoint, using a
// raw HTTP client so the extended fields (usage.include, reasoning) the
// SDKs in this ecosystem don't model can be sent verbatim.
package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tsanders/revgate/pkg/catalog"
	"github.com/tsanders/revgate/pkg/costest"
	"github.com/tsanders/revgate/pkg/gateway"
	"github.com/tsanders/revgate/pkg/gateway/common"
	"github.com/tsanders/revgate/pkg/jsonextract"
	"github.com/tsanders/revgate/pkg/metrics"
	"github.com/tsanders/revgate/pkg/review"
)

// maxAttempts is 3 (up to 2 retries), higher than the other providers,
// per spec §4.5 — OpenRouter's proxy layer is the flakiest transport.
const maxAttempts = 3

const chatCompletionsURL = "https://openrouter.ai/api/v1/chat/completions"

// Gateway talks to the OpenRouter chat-completions endpoint for one
// ModelInfo, routed under its openrouter_name.
type Gateway struct {
	httpClient *http.Client
	apiKey     string
	model      catalog.ModelInfo
	cat        *catalog.Catalog
}

// New constructs a Gateway for model. It rejects construction when the
// model has no openrouter_name (not routable through OpenRouter) or when
// thinking_mode is requested for a non-Anthropic model, since OpenRouter
// only supports extended reasoning for Claude models (spec §4.6).
func New(model catalog.ModelInfo, apiKey string, cat *catalog.Catalog) (*Gateway, error) {
	if model.OpenRouterName == "" {
		return nil, &review.ErrorResponse{
			ErrorType:    review.ErrorInvalidModelProvider,
			Provider:     review.ProviderOpenRouter,
			ErrorMessage: fmt.Sprintf("model %q has no openrouter_name and is not routable through OpenRouter", model.FullName),
		}
	}
	if model.ThinkingMode && model.ProviderName != review.ProviderAnthropic {
		return nil, &review.ErrorResponse{
			ErrorType:    review.ErrorUnsupportedModel,
			Provider:     review.ProviderOpenRouter,
			ErrorMessage: fmt.Sprintf("OpenRouter does not support thinking mode for %q; only Claude models support it", model.FullName),
		}
	}

	return &Gateway{
		httpClient: &http.Client{Timeout: 120 * time.Second},
		apiKey:     apiKey,
		model:      model,
		cat:        cat,
	}, nil
}

func (g *Gateway) Name() string             { return "openrouter" }
func (g *Gateway) Provider() review.Provider { return review.ProviderOpenRouter }
func (g *Gateway) ModelName() string         { return g.model.FullName }

// ReviewCode implements gateway.Gateway.
func (g *Gateway) ReviewCode(ctx context.Context, prompt review.ReviewPrompt) review.ReviewResult {
	resp, usage, errType, err := gateway.Retry(ctx, review.ProviderOpenRouter, g.model.FullName, maxAttempts, classify, func(ctx context.Context) (review.ReviewResponse, costest.Usage, error) {
		return g.attempt(ctx, prompt)
	})
	if err != nil {
		return review.Failure(review.ErrorResponse{
			ErrorType:    errType,
			Provider:     review.ProviderOpenRouter,
			ErrorMessage: common.EnhanceAPIError(err, errorContext()).Error(),
		})
	}

	cost := costest.Estimate(g.cat, g.model.FullName, usage)
	metrics.Default().RecordReviewCost(string(review.ProviderOpenRouter), g.model.FullName, cost.TotalCostUSD, cost.InputTokens, cost.OutputTokens)
	return review.Success(resp, cost)
}

// requestBody is the wire shape of a chat-completions request, OpenAI-
// shaped with OpenRouter's extensions.
type requestBody struct {
	Model          string           `json:"model"`
	Messages       []wireMessage    `json:"messages"`
	ResponseFormat responseFormat   `json:"response_format"`
	Usage          usageOption      `json:"usage"`
	Reasoning      *reasoningOption `json:"reasoning,omitempty"`
}

type wireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type       string         `json:"type"`
	JSONSchema jsonSchemaSpec `json:"json_schema"`
}

type jsonSchemaSpec struct {
	Name   string                 `json:"name"`
	Strict bool                   `json:"strict"`
	Schema map[string]interface{} `json:"schema"`
}

type usageOption struct {
	Include bool `json:"include"`
}

type reasoningOption struct {
	MaxTokens int `json:"max_tokens"`
}

type responseBody struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int     `json:"prompt_tokens"`
		CompletionTokens int     `json:"completion_tokens"`
		Cost             float64 `json:"cost"`
	} `json:"usage"`
}

func (g *Gateway) attempt(ctx context.Context, prompt review.ReviewPrompt) (review.ReviewResponse, costest.Usage, error) {
	messages := gateway.RenderMessages(prompt)
	wireMessages := make([]wireMessage, 0, len(messages))
	for _, m := range messages {
		wireMessages = append(wireMessages, wireMessage{Role: m.Role, Content: m.Content})
	}

	body := requestBody{
		Model:    g.model.OpenRouterName,
		Messages: wireMessages,
		ResponseFormat: responseFormat{
			Type: "json_schema",
			JSONSchema: jsonSchemaSpec{
				Name:   "structured_review_response",
				Strict: true,
				Schema: gateway.ReviewResponseSchema,
			},
		},
		Usage: usageOption{Include: true},
	}

	if g.model.ThinkingMode && isClaudeModel(g.model.OpenRouterName) {
		if v, ok := g.model.Params["thinking_budget_tokens"]; ok {
			if budget, ok := toInt(v); ok {
				body.Reasoning = &reasoningOption{MaxTokens: budget}
			}
		}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return review.ReviewResponse{}, costest.Usage{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, chatCompletionsURL, bytes.NewReader(payload))
	if err != nil {
		return review.ReviewResponse{}, costest.Usage{}, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return review.ReviewResponse{}, costest.Usage{}, err
	}
	defer func() { _ = httpResp.Body.Close() }()

	respBytes, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return review.ReviewResponse{}, costest.Usage{}, err
	}

	if httpResp.StatusCode != http.StatusOK {
		return review.ReviewResponse{}, costest.Usage{}, fmt.Errorf("openrouter API error (status %d): %s", httpResp.StatusCode, string(respBytes))
	}

	var parsedResp responseBody
	if err := json.Unmarshal(respBytes, &parsedResp); err != nil {
		return review.ReviewResponse{}, costest.Usage{}, &review.ErrorResponse{
			ErrorType:    review.ErrorResponseStructure,
			Provider:     review.ProviderOpenRouter,
			ErrorMessage: "response was not valid JSON: " + err.Error(),
		}
	}
	if len(parsedResp.Choices) == 0 {
		return review.ReviewResponse{}, costest.Usage{}, &review.ErrorResponse{
			ErrorType:    review.ErrorResponseStructure,
			Provider:     review.ProviderOpenRouter,
			ErrorMessage: "response contained no choices",
		}
	}

	content := parsedResp.Choices[0].Message.Content
	if content == "" {
		return review.ReviewResponse{}, costest.Usage{}, &review.ErrorResponse{
			ErrorType:    review.ErrorResponseStructure,
			Provider:     review.ProviderOpenRouter,
			ErrorMessage: "response contained no content",
		}
	}

	var parsed review.ReviewResponse
	if err := jsonextract.Extract(content, &parsed); err != nil {
		return review.ReviewResponse{}, costest.Usage{}, &review.ErrorResponse{
			ErrorType:    review.ErrorJSONParsing,
			Provider:     review.ProviderOpenRouter,
			ErrorMessage: err.Error(),
		}
	}

	usage := costest.Usage{}
	if parsedResp.Usage != nil {
		var cost *float64
		if parsedResp.Usage.Cost > 0 {
			c := parsedResp.Usage.Cost
			cost = &c
		}
		usage = costest.OpenRouterUsage(parsedResp.Usage.PromptTokens, parsedResp.Usage.CompletionTokens, cost)
	}

	return parsed, usage, nil
}

// CallJSON implements gateway.Gateway for non-review structured calls (the
// Review Synthesizer's summary/recommendation consolidation, spec §4.9).
func (g *Gateway) CallJSON(ctx context.Context, systemPrompt, userContent string, schema map[string]interface{}, schemaName string, out interface{}) (review.EstimatedCost, error) {
	resp, usage, errType, err := gateway.RetryGeneric(ctx, review.ProviderOpenRouter, g.model.FullName, maxAttempts, classify, func(ctx context.Context) (string, costest.Usage, error) {
		return g.callJSONAttempt(ctx, systemPrompt, userContent, schema, schemaName)
	})
	if err != nil {
		return review.EstimatedCost{}, &review.ErrorResponse{
			ErrorType:    errType,
			Provider:     review.ProviderOpenRouter,
			ErrorMessage: common.EnhanceAPIError(err, errorContext()).Error(),
		}
	}
	if jerr := jsonextract.Extract(resp, out); jerr != nil {
		return review.EstimatedCost{}, jerr
	}
	return costest.Estimate(g.cat, g.model.FullName, usage), nil
}

func (g *Gateway) callJSONAttempt(ctx context.Context, systemPrompt, userContent string, schema map[string]interface{}, schemaName string) (string, costest.Usage, error) {
	body := requestBody{
		Model: g.model.OpenRouterName,
		Messages: []wireMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userContent},
		},
		ResponseFormat: responseFormat{
			Type:       "json_schema",
			JSONSchema: jsonSchemaSpec{Name: schemaName, Strict: true, Schema: schema},
		},
		Usage: usageOption{Include: true},
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", costest.Usage{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, chatCompletionsURL, bytes.NewReader(payload))
	if err != nil {
		return "", costest.Usage{}, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return "", costest.Usage{}, err
	}
	defer func() { _ = httpResp.Body.Close() }()

	respBytes, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return "", costest.Usage{}, err
	}
	if httpResp.StatusCode != http.StatusOK {
		return "", costest.Usage{}, fmt.Errorf("openrouter API error (status %d): %s", httpResp.StatusCode, string(respBytes))
	}

	var parsedResp responseBody
	if err := json.Unmarshal(respBytes, &parsedResp); err != nil {
		return "", costest.Usage{}, &review.ErrorResponse{
			ErrorType:    review.ErrorResponseStructure,
			Provider:     review.ProviderOpenRouter,
			ErrorMessage: "response was not valid JSON: " + err.Error(),
		}
	}
	if len(parsedResp.Choices) == 0 || parsedResp.Choices[0].Message.Content == "" {
		return "", costest.Usage{}, &review.ErrorResponse{
			ErrorType:    review.ErrorResponseStructure,
			Provider:     review.ProviderOpenRouter,
			ErrorMessage: "response contained no usable content",
		}
	}

	usage := costest.Usage{}
	if parsedResp.Usage != nil {
		var cost *float64
		if parsedResp.Usage.Cost > 0 {
			c := parsedResp.Usage.Cost
			cost = &c
		}
		usage = costest.OpenRouterUsage(parsedResp.Usage.PromptTokens, parsedResp.Usage.CompletionTokens, cost)
	}

	return parsedResp.Choices[0].Message.Content, usage, nil
}

func isClaudeModel(openRouterModelName string) bool {
	return strings.HasPrefix(openRouterModelName, "anthropic/claude")
}

func toInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

func classify(err error) review.ErrorType {
	if errResp, ok := err.(*review.ErrorResponse); ok {
		return errResp.ErrorType
	}
	return common.Classify(err)
}

func errorContext() common.ErrorContext {
	return common.ErrorContext{
		ProviderName:      "OpenRouter",
		APIKeysURL:        "https://openrouter.ai/settings/keys",
		StatusPageURL:     "https://status.openrouter.ai",
		AlternateProvider: "anthropic",
	}
}

var _ gateway.Gateway = (*Gateway)(nil)
