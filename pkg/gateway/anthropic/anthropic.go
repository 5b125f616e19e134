// Package anthropic implements the Gateway interface against the
// Anthropic Messages API, including thinking-mode models that bypass
// tool-based structured output in favor of the JSON Extractor.
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/tsanders/revgate/pkg/catalog"
	"github.com/tsanders/revgate/pkg/costest"
	"github.com/tsanders/revgate/pkg/gateway"
	"github.com/tsanders/revgate/pkg/gateway/common"
	"github.com/tsanders/revgate/pkg/jsonextract"
	"github.com/tsanders/revgate/pkg/metrics"
	"github.com/tsanders/revgate/pkg/review"
)

const maxAttempts = 2

const defaultMaxTokens = 8192

const toolName = "emit_review"

// Gateway talks to the Anthropic Messages API for one ModelInfo.
type Gateway struct {
	client anthropic.Client
	model  catalog.ModelInfo
	cat    *catalog.Catalog
}

// New constructs a Gateway for model.
func New(model catalog.ModelInfo, apiKey string, cat *catalog.Catalog) (*Gateway, error) {
	if model.ProviderName != review.ProviderAnthropic {
		return nil, &review.ErrorResponse{
			ErrorType:    review.ErrorInvalidModelProvider,
			Provider:     review.ProviderAnthropic,
			ErrorMessage: fmt.Sprintf("model %q belongs to provider %q, not anthropic", model.FullName, model.ProviderName),
		}
	}

	client := anthropic.NewClient(option.WithAPIKey(apiKey))

	return &Gateway{client: client, model: model, cat: cat}, nil
}

func (g *Gateway) Name() string             { return "anthropic" }
func (g *Gateway) Provider() review.Provider { return review.ProviderAnthropic }
func (g *Gateway) ModelName() string         { return g.model.FullName }

// ReviewCode implements gateway.Gateway.
func (g *Gateway) ReviewCode(ctx context.Context, prompt review.ReviewPrompt) review.ReviewResult {
	resp, usage, errType, err := gateway.Retry(ctx, review.ProviderAnthropic, g.model.FullName, maxAttempts, classify, func(ctx context.Context) (review.ReviewResponse, costest.Usage, error) {
		return g.attempt(ctx, prompt)
	})
	if err != nil {
		return review.Failure(review.ErrorResponse{
			ErrorType:    errType,
			Provider:     review.ProviderAnthropic,
			ErrorMessage: common.EnhanceAPIError(err, errorContext()).Error(),
		})
	}

	cost := costest.Estimate(g.cat, g.model.FullName, usage)
	metrics.Default().RecordReviewCost(string(review.ProviderAnthropic), g.model.FullName, cost.TotalCostUSD, cost.InputTokens, cost.OutputTokens)
	return review.Success(resp, cost)
}

func (g *Gateway) attempt(ctx context.Context, prompt review.ReviewPrompt) (review.ReviewResponse, costest.Usage, error) {
	messages := gateway.RenderMessages(prompt)

	var systemPrompt string
	userMessages := make([]anthropic.MessageParam, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case "system":
			systemPrompt = m.Content
		default:
			userMessages = append(userMessages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}

	maxTokens := int64(defaultMaxTokens)
	if v, ok := toFloat(g.model.Params["max_tokens"]); ok {
		maxTokens = int64(v)
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(g.model.FullName),
		MaxTokens: maxTokens,
		Messages:  userMessages,
	}
	if systemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: systemPrompt}}
	}

	if g.model.ThinkingMode {
		budget := int64(16000)
		if v, ok := toFloat(g.model.Params["thinking_budget_tokens"]); ok {
			budget = int64(v)
		}
		params.Thinking = anthropic.ThinkingConfigParamUnion{
			OfEnabled: &anthropic.ThinkingConfigEnabledParam{BudgetTokens: budget},
		}
	} else {
		properties, required := schemaFields()
		params.Tools = []anthropic.ToolUnionParam{
			{
				OfTool: &anthropic.ToolParam{
					Name:        toolName,
					Description: anthropic.String("Emit the structured code review result"),
					InputSchema: anthropic.ToolInputSchemaParam{
						Type:       "object",
						Properties: properties,
						Required:   required,
					},
				},
			},
		}
		params.ToolChoice = anthropic.ToolChoiceParamOfTool(toolName)
	}

	resp, err := g.client.Messages.New(ctx, params)
	if err != nil {
		return review.ReviewResponse{}, costest.Usage{}, err
	}

	raw, err := extractContent(resp, g.model.ThinkingMode)
	if err != nil {
		return review.ReviewResponse{}, costest.Usage{}, err
	}

	var parsed review.ReviewResponse
	if err := jsonextract.Extract(raw, &parsed); err != nil {
		return review.ReviewResponse{}, costest.Usage{}, &review.ErrorResponse{
			ErrorType:    review.ErrorJSONParsing,
			Provider:     review.ProviderAnthropic,
			ErrorMessage: err.Error(),
		}
	}

	usage := costest.AnthropicUsage(int(resp.Usage.InputTokens), int(resp.Usage.OutputTokens))
	return parsed, usage, nil
}

// CallJSON implements gateway.Gateway for non-review structured calls (the
// Review Synthesizer's summary/recommendation consolidation, spec §4.9).
func (g *Gateway) CallJSON(ctx context.Context, systemPrompt, userContent string, schema map[string]interface{}, schemaName string, out interface{}) (review.EstimatedCost, error) {
	resp, usage, errType, err := gateway.RetryGeneric(ctx, review.ProviderAnthropic, g.model.FullName, maxAttempts, classify, func(ctx context.Context) (string, costest.Usage, error) {
		return g.callJSONAttempt(ctx, systemPrompt, userContent, schema, schemaName)
	})
	if err != nil {
		return review.EstimatedCost{}, &review.ErrorResponse{
			ErrorType:    errType,
			Provider:     review.ProviderAnthropic,
			ErrorMessage: common.EnhanceAPIError(err, errorContext()).Error(),
		}
	}
	if jerr := jsonextract.Extract(resp, out); jerr != nil {
		return review.EstimatedCost{}, jerr
	}
	return costest.Estimate(g.cat, g.model.FullName, usage), nil
}

func (g *Gateway) callJSONAttempt(ctx context.Context, systemPrompt, userContent string, schema map[string]interface{}, schemaName string) (string, costest.Usage, error) {
	maxTokens := int64(defaultMaxTokens)
	if v, ok := toFloat(g.model.Params["max_tokens"]); ok {
		maxTokens = int64(v)
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(g.model.FullName),
		MaxTokens: maxTokens,
		Messages:  []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(userContent))},
		System:    []anthropic.TextBlockParam{{Text: systemPrompt}},
	}

	properties, _ := schema["properties"].(map[string]interface{})
	required, _ := schema["required"].([]string)
	params.Tools = []anthropic.ToolUnionParam{
		{
			OfTool: &anthropic.ToolParam{
				Name:        schemaName,
				Description: anthropic.String("Emit the synthesis result"),
				InputSchema: anthropic.ToolInputSchemaParam{
					Type:       "object",
					Properties: properties,
					Required:   required,
				},
			},
		},
	}
	params.ToolChoice = anthropic.ToolChoiceParamOfTool(schemaName)

	resp, err := g.client.Messages.New(ctx, params)
	if err != nil {
		return "", costest.Usage{}, err
	}

	raw, err := extractContent(resp, false)
	if err != nil {
		return "", costest.Usage{}, err
	}

	usage := costest.AnthropicUsage(int(resp.Usage.InputTokens), int(resp.Usage.OutputTokens))
	return raw, usage, nil
}

// extractContent pulls the review JSON text out of the response: the tool
// input when structured tool-use was requested, or the raw text block for
// thinking-mode models which bypass tool-use entirely (spec §4.5 step 5).
func extractContent(resp *anthropic.Message, thinkingMode bool) (string, error) {
	for _, block := range resp.Content {
		switch b := block.AsAny().(type) {
		case anthropic.ToolUseBlock:
			if thinkingMode {
				continue
			}
			jsonBytes, err := json.Marshal(b.Input)
			if err != nil {
				return "", err
			}
			return string(jsonBytes), nil
		case anthropic.TextBlock:
			if thinkingMode {
				return b.Text, nil
			}
		}
	}
	return "", &review.ErrorResponse{
		ErrorType:    review.ErrorResponseStructure,
		Provider:     review.ProviderAnthropic,
		ErrorMessage: "response contained no usable content block",
	}
}

// schemaFields flattens the shared review schema into the (properties,
// required) pair Anthropic's tool input_schema expects.
func schemaFields() (map[string]interface{}, []string) {
	properties, _ := gateway.ReviewResponseSchema["properties"].(map[string]interface{})
	requiredRaw, _ := gateway.ReviewResponseSchema["required"].([]string)
	return properties, requiredRaw
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
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
		ProviderName:      "Anthropic",
		APIKeysURL:        "https://console.anthropic.com/settings/keys",
		StatusPageURL:     "https://status.anthropic.com",
		BillingURL:        "https://console.anthropic.com/settings/billing",
		AlternateProvider: "openai",
	}
}

var _ gateway.Gateway = (*Gateway)(nil)
