// Package google implements the Gateway interface against the Google
// Gemini Generative Language API.
package google

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/tsanders/revgate/pkg/catalog"
	"github.com/tsanders/revgate/pkg/costest"
	"github.com/tsanders/revgate/pkg/gateway"
	"github.com/tsanders/revgate/pkg/gateway/common"
	"github.com/tsanders/revgate/pkg/jsonextract"
	"github.com/tsanders/revgate/pkg/metrics"
	"github.com/tsanders/revgate/pkg/review"
)

const maxAttempts = 2

// Gateway talks to the Gemini Generative Language API for one ModelInfo.
type Gateway struct {
	client *genai.Client
	model  catalog.ModelInfo
	cat    *catalog.Catalog
}

// New constructs a Gateway for model.
func New(ctx context.Context, model catalog.ModelInfo, apiKey string, cat *catalog.Catalog) (*Gateway, error) {
	if model.ProviderName != review.ProviderGoogle {
		return nil, &review.ErrorResponse{
			ErrorType:    review.ErrorInvalidModelProvider,
			Provider:     review.ProviderGoogle,
			ErrorMessage: fmt.Sprintf("model %q belongs to provider %q, not google", model.FullName, model.ProviderName),
		}
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}

	return &Gateway{client: client, model: model, cat: cat}, nil
}

func (g *Gateway) Name() string             { return "google" }
func (g *Gateway) Provider() review.Provider { return review.ProviderGoogle }
func (g *Gateway) ModelName() string         { return g.model.FullName }

// Close releases the underlying client's connection.
func (g *Gateway) Close() error { return g.client.Close() }

// ReviewCode implements gateway.Gateway.
func (g *Gateway) ReviewCode(ctx context.Context, prompt review.ReviewPrompt) review.ReviewResult {
	resp, usage, errType, err := gateway.Retry(ctx, review.ProviderGoogle, g.model.FullName, maxAttempts, classify, func(ctx context.Context) (review.ReviewResponse, costest.Usage, error) {
		return g.attempt(ctx, prompt)
	})
	if err != nil {
		return review.Failure(review.ErrorResponse{
			ErrorType:    errType,
			Provider:     review.ProviderGoogle,
			ErrorMessage: common.EnhanceAPIError(err, errorContext()).Error(),
		})
	}

	cost := costest.Estimate(g.cat, g.model.FullName, usage)
	metrics.Default().RecordReviewCost(string(review.ProviderGoogle), g.model.FullName, cost.TotalCostUSD, cost.InputTokens, cost.OutputTokens)
	return review.Success(resp, cost)
}

func (g *Gateway) attempt(ctx context.Context, prompt review.ReviewPrompt) (review.ReviewResponse, costest.Usage, error) {
	messages := gateway.RenderMessages(prompt)

	model := g.client.GenerativeModel(g.model.FullName)
	model.ResponseMIMEType = "application/json"
	model.ResponseSchema = toGenaiSchema()

	var parts []genai.Part
	for _, m := range messages {
		switch m.Role {
		case "system":
			model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(m.Content)}}
		default:
			parts = append(parts, genai.Text(m.Content))
		}
	}

	if v, ok := toFloat(g.model.Params["temperature"]); ok {
		t := float32(v)
		model.Temperature = &t
	}

	resp, err := model.GenerateContent(ctx, parts...)
	if err != nil {
		return review.ReviewResponse{}, costest.Usage{}, err
	}

	raw, err := extractText(resp)
	if err != nil {
		return review.ReviewResponse{}, costest.Usage{}, err
	}

	var parsed review.ReviewResponse
	if err := jsonextract.Extract(raw, &parsed); err != nil {
		return review.ReviewResponse{}, costest.Usage{}, &review.ErrorResponse{
			ErrorType:    review.ErrorJSONParsing,
			Provider:     review.ProviderGoogle,
			ErrorMessage: err.Error(),
		}
	}

	var usage costest.Usage
	if resp.UsageMetadata != nil {
		usage = costest.GoogleUsage(int(resp.UsageMetadata.PromptTokenCount), int(resp.UsageMetadata.CandidatesTokenCount))
	}

	return parsed, usage, nil
}

// CallJSON implements gateway.Gateway for non-review structured calls (the
// Review Synthesizer's summary/recommendation consolidation, spec §4.9).
func (g *Gateway) CallJSON(ctx context.Context, systemPrompt, userContent string, schema map[string]interface{}, schemaName string, out interface{}) (review.EstimatedCost, error) {
	resp, usage, errType, err := gateway.RetryGeneric(ctx, review.ProviderGoogle, g.model.FullName, maxAttempts, classify, func(ctx context.Context) (string, costest.Usage, error) {
		return g.callJSONAttempt(ctx, systemPrompt, userContent, schema)
	})
	if err != nil {
		return review.EstimatedCost{}, &review.ErrorResponse{
			ErrorType:    errType,
			Provider:     review.ProviderGoogle,
			ErrorMessage: common.EnhanceAPIError(err, errorContext()).Error(),
		}
	}
	if jerr := jsonextract.Extract(resp, out); jerr != nil {
		return review.EstimatedCost{}, jerr
	}
	return costest.Estimate(g.cat, g.model.FullName, usage), nil
}

func (g *Gateway) callJSONAttempt(ctx context.Context, systemPrompt, userContent string, schema map[string]interface{}) (string, costest.Usage, error) {
	model := g.client.GenerativeModel(g.model.FullName)
	model.ResponseMIMEType = "application/json"
	model.ResponseSchema = schemaFromMap(schema)
	model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(systemPrompt)}}

	resp, err := model.GenerateContent(ctx, genai.Text(userContent))
	if err != nil {
		return "", costest.Usage{}, err
	}

	raw, err := extractText(resp)
	if err != nil {
		return "", costest.Usage{}, err
	}

	var usage costest.Usage
	if resp.UsageMetadata != nil {
		usage = costest.GoogleUsage(int(resp.UsageMetadata.PromptTokenCount), int(resp.UsageMetadata.CandidatesTokenCount))
	}
	return raw, usage, nil
}

// schemaFromMap translates a plain JSON-schema map (as used by the
// synthesis schemas in pkg/gateway, which are flat objects of strings and
// string arrays) into a *genai.Schema. It covers the subset those schemas
// use; toGenaiSchema below handles the full review schema separately.
func schemaFromMap(m map[string]interface{}) *genai.Schema {
	properties, _ := m["properties"].(map[string]interface{})
	required, _ := m["required"].([]string)

	props := make(map[string]*genai.Schema, len(properties))
	for name, raw := range properties {
		fieldDef, _ := raw.(map[string]interface{})
		props[name] = genaiFieldSchema(fieldDef)
	}

	return &genai.Schema{Type: genai.TypeObject, Properties: props, Required: required}
}

func genaiFieldSchema(fieldDef map[string]interface{}) *genai.Schema {
	switch fieldDef["type"] {
	case "array":
		items, _ := fieldDef["items"].(map[string]interface{})
		return &genai.Schema{Type: genai.TypeArray, Items: genaiFieldSchema(items)}
	default:
		return &genai.Schema{Type: genai.TypeString}
	}
}

func extractText(resp *genai.GenerateContentResponse) (string, error) {
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", &review.ErrorResponse{
			ErrorType:    review.ErrorResponseStructure,
			Provider:     review.ProviderGoogle,
			ErrorMessage: "response contained no candidates",
		}
	}

	var text string
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text += string(t)
		}
	}
	if text == "" {
		return "", &review.ErrorResponse{
			ErrorType:    review.ErrorResponseStructure,
			Provider:     review.ProviderGoogle,
			ErrorMessage: "response contained no text parts",
		}
	}
	return text, nil
}

// toGenaiSchema mirrors the shared review schema as a genai.Schema. Only
// the subset genai.Schema expresses (object/array/string/number/boolean,
// required, enum) is translated; nullable union types become their
// non-null branch with Nullable set, since Gemini schemas have no
// JSON-Schema-style unions.
func toGenaiSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"issues": {
				Type: genai.TypeArray,
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"type":           {Type: genai.TypeString},
						"line_number":    {Type: genai.TypeInteger, Nullable: true},
						"file":           {Type: genai.TypeString, Nullable: true},
						"description":    {Type: genai.TypeString},
						"suggestion":     {Type: genai.TypeString, Nullable: true},
						"severity":       {Type: genai.TypeString, Enum: []string{"info", "warning", "error"}},
						"target_code":    {Type: genai.TypeString, Nullable: true},
						"suggested_code": {Type: genai.TypeString, Nullable: true},
					},
					Required: []string{"type", "description", "severity"},
				},
			},
			"summary":         {Type: genai.TypeString},
			"score":           {Type: genai.TypeNumber, Nullable: true},
			"recommendations": {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
		},
		Required: []string{"issues", "summary", "recommendations"},
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

func classify(err error) review.ErrorType {
	if errResp, ok := err.(*review.ErrorResponse); ok {
		return errResp.ErrorType
	}
	return common.Classify(err)
}

func errorContext() common.ErrorContext {
	return common.ErrorContext{
		ProviderName:      "Google",
		APIKeysURL:        "https://aistudio.google.com/apikey",
		StatusPageURL:     "https://status.cloud.google.com",
		AlternateProvider: "openai",
	}
}

var _ gateway.Gateway = (*Gateway)(nil)
