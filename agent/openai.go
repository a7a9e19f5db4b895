package agent

import (
	"context"
	"net/http"
)

const defaultOpenAIBaseURL = "https://api.openai.com/v1"

// openAIPricing is USD per 1K tokens, input and output.
var openAIPricing = map[string][2]float64{
	"gpt-4":         {0.03, 0.06},
	"gpt-4-turbo":   {0.01, 0.03},
	"gpt-3.5-turbo": {0.0015, 0.002},
}

// OpenAIAgent calls the OpenAI chat completions API.
type OpenAIAgent struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewOpenAIAgent returns an agent authenticated with config.APIKey.
func NewOpenAIAgent(config ProviderConfig) (*OpenAIAgent, error) {
	if config.APIKey == "" {
		return nil, callErrorf("openai", 0, "API key is required")
	}
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	return &OpenAIAgent{
		apiKey:  config.APIKey,
		baseURL: baseURL,
		client:  &http.Client{Timeout: config.Timeout},
	}, nil
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

func (a *OpenAIAgent) Execute(ctx context.Context, prompt, model string, parameters map[string]any) (*Result, error) {
	payload := map[string]any{
		"model": model,
		"messages": []map[string]any{
			{"role": "user", "content": prompt},
		},
		"temperature": 0.7,
	}
	for key, value := range parameters {
		payload[key] = value
	}

	headers := map[string]string{"Authorization": "Bearer " + a.apiKey}
	var resp openAIResponse
	if err := postJSON(ctx, a.client, "openai", a.baseURL+"/chat/completions", headers, payload, &resp); err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, callErrorf("openai", 0, "response contained no choices")
	}

	choice := resp.Choices[0]
	usage := map[string]int{
		"prompt_tokens":     resp.Usage.PromptTokens,
		"completion_tokens": resp.Usage.CompletionTokens,
		"total_tokens":      resp.Usage.TotalTokens,
	}
	return &Result{
		Output: choice.Message.Content,
		Usage:  usage,
		Model:  model,
		Cost:   a.EstimateCost(usage, model),
		Metadata: map[string]any{
			"provider":      "openai",
			"finish_reason": choice.FinishReason,
		},
	}, nil
}

// EstimateCost prices usage against the published per-model rates. Unknown
// models cost zero.
func (a *OpenAIAgent) EstimateCost(usage map[string]int, model string) float64 {
	return estimateFromTable(openAIPricing, usage, model, "prompt_tokens", "completion_tokens")
}
