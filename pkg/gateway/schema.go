package gateway

// ReviewResponseSchema is the JSON-schema constraint derived from
// review.ReviewResponse, attached to structured-output-capable requests
// (OpenAI response_format.json_schema, Anthropic tool-use schema, Google
// response_schema) per spec §4.5 step 3-4. It is a plain map so each
// provider package can embed it into its own SDK's schema type without
// this package depending on any SDK.
var ReviewResponseSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"issues": map[string]interface{}{
			"type": "array",
			"items": map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"type":           map[string]interface{}{"type": "string"},
					"line_number":    map[string]interface{}{"type": []string{"integer", "null"}},
					"file":           map[string]interface{}{"type": []string{"string", "null"}},
					"description":    map[string]interface{}{"type": "string"},
					"suggestion":     map[string]interface{}{"type": []string{"string", "null"}},
					"severity":       map[string]interface{}{"type": "string", "enum": []string{"info", "warning", "error"}},
					"target_code":    map[string]interface{}{"type": []string{"string", "null"}},
					"suggested_code": map[string]interface{}{"type": []string{"string", "null"}},
				},
				"required": []string{"type", "description", "severity"},
			},
		},
		"summary":         map[string]interface{}{"type": "string"},
		"score":           map[string]interface{}{"type": []string{"number", "null"}},
		"recommendations": map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}},
	},
	"required": []string{"issues", "summary", "recommendations"},
}

// SummarySynthesisSchema constrains the summary-synthesis call to a
// single required field, per spec §4.9.
var SummarySynthesisSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"summary": map[string]interface{}{"type": "string"},
	},
	"required": []string{"summary"},
}

// RecommendationSynthesisSchema constrains the recommendation-consolidation
// call, per spec §4.9.
var RecommendationSynthesisSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"recommendations": map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}},
	},
	"required": []string{"recommendations"},
}
