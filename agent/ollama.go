package agent

import (
	"context"
	"net/http"
)

// OllamaAgent talks to an Ollama-compatible local model server. Local models
// carry no cost.
type OllamaAgent struct {
	baseURL string
	client  *http.Client
}

// NewOllamaAgent returns an agent for the server at config.BaseURL,
// defaulting to the standard local Ollama address.
func NewOllamaAgent(config ProviderConfig) *OllamaAgent {
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = DefaultOllamaBaseURL
	}
	return &OllamaAgent{
		baseURL: baseURL,
		client:  &http.Client{Timeout: config.Timeout},
	}
}

type ollamaResponse struct {
	Response        string `json:"response"`
	Done            bool   `json:"done"`
	Context         []int  `json:"context"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
}

func (a *OllamaAgent) Execute(ctx context.Context, prompt, model string, parameters map[string]any) (*Result, error) {
	payload := map[string]any{
		"model":  model,
		"prompt": prompt,
		"stream": false,
	}
	for key, value := range parameters {
		payload[key] = value
	}

	var resp ollamaResponse
	if err := postJSON(ctx, a.client, "local", a.baseURL+"/api/generate", nil, payload, &resp); err != nil {
		return nil, err
	}

	usage := map[string]int{
		"prompt_tokens":     resp.PromptEvalCount,
		"completion_tokens": resp.EvalCount,
		"total_tokens":      resp.PromptEvalCount + resp.EvalCount,
	}
	return &Result{
		Output: resp.Response,
		Usage:  usage,
		Model:  model,
		Cost:   a.EstimateCost(usage, model),
		Metadata: map[string]any{
			"provider":       "local",
			"done":           resp.Done,
			"context_length": len(resp.Context),
		},
	}, nil
}

// EstimateCost always returns zero for local models.
func (a *OllamaAgent) EstimateCost(usage map[string]int, model string) float64 {
	return 0
}
