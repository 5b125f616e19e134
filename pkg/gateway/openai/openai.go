// Package openai implements the Gateway interface against the OpenAI
// chat-completions API.
package openai

import (
	"context"
	"encoding/json"
	"fmt"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/tsanders/revgate/pkg/catalog"
	"github.com/tsanders/revgate/pkg/costest"
	"github.com/tsanders/revgate/pkg/gateway"
	"github.com/tsanders/revgate/pkg/gateway/common"
	"github.com/tsanders/revgate/pkg/jsonextract"
	"github.com/tsanders/revgate/pkg/metrics"
	"github.com/tsanders/revgate/pkg/review"
)

// maxAttempts is 2 (1 retry) per spec §4.5.
const maxAttempts = 2

// Gateway talks to the OpenAI chat-completions API for one ModelInfo.
type Gateway struct {
	client oai.Client
	model  catalog.ModelInfo
	cat    *catalog.Catalog
}

// New constructs a Gateway for model. It returns an invalid_model_provider
// ErrorResponse if model does not belong to the OpenAI provider.
func New(model catalog.ModelInfo, apiKey string, cat *catalog.Catalog) (*Gateway, error) {
	if model.ProviderName != review.ProviderOpenAI {
		return nil, &review.ErrorResponse{
			ErrorType:    review.ErrorInvalidModelProvider,
			Provider:     review.ProviderOpenAI,
			ErrorMessage: fmt.Sprintf("model %q belongs to provider %q, not openai", model.FullName, model.ProviderName),
		}
	}

	client := oai.NewClient(option.WithAPIKey(apiKey))

	return &Gateway{client: client, model: model, cat: cat}, nil
}

func (g *Gateway) Name() string             { return "openai" }
func (g *Gateway) Provider() review.Provider { return review.ProviderOpenAI }
func (g *Gateway) ModelName() string         { return g.model.FullName }

// ReviewCode implements gateway.Gateway.
func (g *Gateway) ReviewCode(ctx context.Context, prompt review.ReviewPrompt) review.ReviewResult {
	resp, usage, errType, err := gateway.Retry(ctx, review.ProviderOpenAI, g.model.FullName, maxAttempts, classify, func(ctx context.Context) (review.ReviewResponse, costest.Usage, error) {
		return g.attempt(ctx, prompt)
	})
	if err != nil {
		return review.Failure(review.ErrorResponse{
			ErrorType:    errType,
			Provider:     review.ProviderOpenAI,
			ErrorMessage: common.EnhanceAPIError(err, errorContext()).Error(),
		})
	}

	cost := costest.Estimate(g.cat, g.model.FullName, usage)
	metrics.Default().RecordReviewCost(string(review.ProviderOpenAI), g.model.FullName, cost.TotalCostUSD, cost.InputTokens, cost.OutputTokens)
	return review.Success(resp, cost)
}

func (g *Gateway) attempt(ctx context.Context, prompt review.ReviewPrompt) (review.ReviewResponse, costest.Usage, error) {
	messages := gateway.RenderMessages(prompt)

	params := oai.ChatCompletionNewParams{
		Model:    oai.ChatModel(modelAPIName(g.model)),
		Messages: toOpenAIMessages(messages),
	}
	applyParams(&params, g.model.Params)

	schemaJSON, err := json.Marshal(gateway.ReviewResponseSchema)
	if err != nil {
		return review.ReviewResponse{}, costest.Usage{}, err
	}
	var schemaMap map[string]interface{}
	if err := json.Unmarshal(schemaJSON, &schemaMap); err != nil {
		return review.ReviewResponse{}, costest.Usage{}, err
	}
	params.ResponseFormat = oai.ChatCompletionNewParamsResponseFormatUnion{
		OfJSONSchema: &oai.ResponseFormatJSONSchemaParam{
			JSONSchema: oai.ResponseFormatJSONSchemaJSONSchemaParam{
				Name:   "review_response",
				Schema: schemaMap,
				Strict: oai.Bool(true),
			},
		},
	}

	resp, err := g.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return review.ReviewResponse{}, costest.Usage{}, err
	}
	if len(resp.Choices) == 0 {
		return review.ReviewResponse{}, costest.Usage{}, &review.ErrorResponse{
			ErrorType:    review.ErrorResponseStructure,
			Provider:     review.ProviderOpenAI,
			ErrorMessage: "response contained no choices",
		}
	}

	raw := resp.Choices[0].Message.Content
	var parsed review.ReviewResponse
	if err := jsonextract.Extract(raw, &parsed); err != nil {
		return review.ReviewResponse{}, costest.Usage{}, &review.ErrorResponse{
			ErrorType:    review.ErrorJSONParsing,
			Provider:     review.ProviderOpenAI,
			ErrorMessage: err.Error(),
		}
	}

	usage := costest.OpenAIUsage(int(resp.Usage.PromptTokens), int(resp.Usage.CompletionTokens))
	return parsed, usage, nil
}

// CallJSON implements gateway.Gateway for non-review structured calls (the
// Review Synthesizer's summary/recommendation consolidation, spec §4.9).
func (g *Gateway) CallJSON(ctx context.Context, systemPrompt, userContent string, schema map[string]interface{}, schemaName string, out interface{}) (review.EstimatedCost, error) {
	resp, usage, errType, err := gateway.RetryGeneric(ctx, review.ProviderOpenAI, g.model.FullName, maxAttempts, classify, func(ctx context.Context) (string, costest.Usage, error) {
		return g.callJSONAttempt(ctx, systemPrompt, userContent, schema, schemaName)
	})
	if err != nil {
		return review.EstimatedCost{}, &review.ErrorResponse{
			ErrorType:    errType,
			Provider:     review.ProviderOpenAI,
			ErrorMessage: common.EnhanceAPIError(err, errorContext()).Error(),
		}
	}
	if jerr := jsonextract.Extract(resp, out); jerr != nil {
		return review.EstimatedCost{}, jerr
	}
	return costest.Estimate(g.cat, g.model.FullName, usage), nil
}

func (g *Gateway) callJSONAttempt(ctx context.Context, systemPrompt, userContent string, schema map[string]interface{}, schemaName string) (string, costest.Usage, error) {
	params := oai.ChatCompletionNewParams{
		Model: oai.ChatModel(modelAPIName(g.model)),
		Messages: []oai.ChatCompletionMessageParamUnion{
			oai.SystemMessage(systemPrompt),
			oai.UserMessage(userContent),
		},
	}
	applyParams(&params, g.model.Params)

	params.ResponseFormat = oai.ChatCompletionNewParamsResponseFormatUnion{
		OfJSONSchema: &oai.ResponseFormatJSONSchemaParam{
			JSONSchema: oai.ResponseFormatJSONSchemaJSONSchemaParam{
				Name:   schemaName,
				Schema: schema,
				Strict: oai.Bool(true),
			},
		},
	}

	resp, err := g.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", costest.Usage{}, err
	}
	if len(resp.Choices) == 0 {
		return "", costest.Usage{}, &review.ErrorResponse{
			ErrorType:    review.ErrorResponseStructure,
			Provider:     review.ProviderOpenAI,
			ErrorMessage: "response contained no choices",
		}
	}

	usage := costest.OpenAIUsage(int(resp.Usage.PromptTokens), int(resp.Usage.CompletionTokens))
	return resp.Choices[0].Message.Content, usage, nil
}

func toOpenAIMessages(messages []gateway.Message) []oai.ChatCompletionMessageParamUnion {
	out := make([]oai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case "system":
			out = append(out, oai.SystemMessage(m.Content))
		default:
			out = append(out, oai.UserMessage(m.Content))
		}
	}
	return out
}

// applyParams merges ModelInfo.Params into the request, currently only
// recognizing "temperature" and "max_tokens" as OpenAI accepts both.
func applyParams(params *oai.ChatCompletionNewParams, modelParams map[string]interface{}) {
	if v, ok := modelParams["temperature"]; ok {
		if f, ok := toFloat(v); ok {
			params.Temperature = oai.Float(f)
		}
	}
	if v, ok := modelParams["max_tokens"]; ok {
		if f, ok := toFloat(v); ok {
			params.MaxTokens = oai.Int(int64(f))
		}
	}
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

// modelAPIName returns the wire name OpenAI expects, which is the catalog
// full_name unless a provider-specific override is set in params.
func modelAPIName(model catalog.ModelInfo) string {
	if v, ok := model.Params["api_name"].(string); ok && v != "" {
		return v
	}
	return model.FullName
}

func classify(err error) review.ErrorType {
	if errResp, ok := err.(*review.ErrorResponse); ok {
		return errResp.ErrorType
	}
	return common.Classify(err)
}

func errorContext() common.ErrorContext {
	return common.ErrorContext{
		ProviderName:      "OpenAI",
		APIKeysURL:        "https://platform.openai.com/api-keys",
		StatusPageURL:     "https://status.openai.com",
		BillingURL:        "https://platform.openai.com/account/billing",
		AlternateProvider: "anthropic",
	}
}

var _ gateway.Gateway = (*Gateway)(nil)
