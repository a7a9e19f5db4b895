package agent

import (
	"context"
	"net/http"
)

const (
	defaultAnthropicBaseURL = "https://api.anthropic.com/v1"
	anthropicVersion        = "2023-06-01"
	anthropicMaxTokens      = 4096
)

// anthropicPricing is USD per 1K tokens, input and output.
var anthropicPricing = map[string][2]float64{
	"claude-3-opus-20240229":   {0.015, 0.075},
	"claude-3-sonnet-20240229": {0.003, 0.015},
	"claude-3-haiku-20240307":  {0.00025, 0.00125},
}

// AnthropicAgent calls the Anthropic messages API.
type AnthropicAgent struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewAnthropicAgent returns an agent authenticated with config.APIKey.
func NewAnthropicAgent(config ProviderConfig) (*AnthropicAgent, error) {
	if config.APIKey == "" {
		return nil, callErrorf("anthropic", 0, "API key is required")
	}
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = defaultAnthropicBaseURL
	}
	return &AnthropicAgent{
		apiKey:  config.APIKey,
		baseURL: baseURL,
		client:  &http.Client{Timeout: config.Timeout},
	}, nil
}

type anthropicResponse struct {
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

func (a *AnthropicAgent) Execute(ctx context.Context, prompt, model string, parameters map[string]any) (*Result, error) {
	payload := map[string]any{
		"model": model,
		"messages": []map[string]any{
			{"role": "user", "content": prompt},
		},
		"max_tokens":  anthropicMaxTokens,
		"temperature": 0.7,
	}
	// A "system" parameter is a top-level field on this API, not a message.
	for key, value := range parameters {
		payload[key] = value
	}

	headers := map[string]string{
		"x-api-key":         a.apiKey,
		"anthropic-version": anthropicVersion,
	}
	var resp anthropicResponse
	if err := postJSON(ctx, a.client, "anthropic", a.baseURL+"/messages", headers, payload, &resp); err != nil {
		return nil, err
	}

	output := ""
	if len(resp.Content) > 0 {
		output = resp.Content[0].Text
	}
	usage := map[string]int{
		"input_tokens":  resp.Usage.InputTokens,
		"output_tokens": resp.Usage.OutputTokens,
		"total_tokens":  resp.Usage.InputTokens + resp.Usage.OutputTokens,
	}
	return &Result{
		Output: output,
		Usage:  usage,
		Model:  model,
		Cost:   a.EstimateCost(usage, model),
		Metadata: map[string]any{
			"provider":    "anthropic",
			"stop_reason": resp.StopReason,
		},
	}, nil
}

// EstimateCost prices usage against the published per-model rates. Unknown
// models cost zero.
func (a *AnthropicAgent) EstimateCost(usage map[string]int, model string) float64 {
	return estimateFromTable(anthropicPricing, usage, model, "input_tokens", "output_tokens")
}
