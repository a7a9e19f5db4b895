// Package agent provides LLM provider clients behind a single Agent
// interface: OpenAI chat completions, the Anthropic messages API, and
// Ollama-compatible local servers.
package agent

import (
	"context"
	"fmt"
)

// Result is the normalized outcome of one model invocation.
type Result struct {
	Output   string         `json:"output"`
	Usage    map[string]int `json:"usage"`
	Model    string         `json:"model"`
	Cost     float64        `json:"cost"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Agent executes prompts against one LLM provider.
type Agent interface {
	// Execute sends a prompt to the given model. Parameters are merged into
	// the provider request after the defaults, so they can override
	// temperature, max tokens, and similar knobs.
	Execute(ctx context.Context, prompt, model string, parameters map[string]any) (*Result, error)

	// EstimateCost converts token usage to an approximate USD cost.
	EstimateCost(usage map[string]int, model string) float64
}

// CallError is a failed provider call. Its retry classification follows the
// HTTP status: timeouts, rate limits, and server errors are recoverable,
// client errors are not.
type CallError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *CallError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s API error %d: %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s API error: %s", e.Provider, e.Message)
}

func (e *CallError) IsRecoverable() bool {
	switch {
	case e.StatusCode == 408, e.StatusCode == 429:
		return true
	case e.StatusCode >= 500:
		return true
	case e.StatusCode == 0:
		// Transport-level failure: connection refused, timeout, DNS.
		return true
	}
	return false
}

func callErrorf(provider string, status int, format string, args ...any) *CallError {
	return &CallError{
		Provider:   provider,
		StatusCode: status,
		Message:    fmt.Sprintf(format, args...),
	}
}

// estimateFromTable prices usage against per-1K-token input/output rates.
func estimateFromTable(pricing map[string][2]float64, usage map[string]int, model, inputKey, outputKey string) float64 {
	rates, ok := pricing[model]
	if !ok {
		return 0
	}
	input := float64(usage[inputKey]) / 1000 * rates[0]
	output := float64(usage[outputKey]) / 1000 * rates[1]
	return roundCost(input + output)
}

func roundCost(cost float64) float64 {
	// six decimal places, enough for sub-cent token pricing
	return float64(int64(cost*1e6+0.5)) / 1e6
}
