package pulsar

import (
	"context"
	"log/slog"
	"time"

	"github.com/lsalihi/pulsar-compose/agent"
	"github.com/lsalihi/pulsar-compose/retry"
)

// AgentHandler executes agent steps: it renders the prompt against the
// current state, invokes the provider with retries, and saves the response.
type AgentHandler struct {
	state    *State
	factory  *agent.Factory
	agents   map[string]*AgentSpec
	logger   *slog.Logger
	baseWait time.Duration
	maxWait  time.Duration
}

// NewAgentHandler returns a handler resolving agent names through the given
// workflow agents and provider factory.
func NewAgentHandler(state *State, factory *agent.Factory, agents map[string]*AgentSpec, logger *slog.Logger) *AgentHandler {
	return &AgentHandler{
		state:    state,
		factory:  factory,
		agents:   agents,
		logger:   logger,
		baseWait: retry.DefaultBaseWait,
		maxWait:  retry.DefaultMaxWait,
	}
}

func (h *AgentHandler) CanHandle(step Step) bool {
	_, ok := step.(*AgentStep)
	return ok
}

func (h *AgentHandler) Execute(ctx context.Context, step Step) *StepResult {
	agentStep := step.(*AgentStep)
	result := beginResult(agentStep.Name)

	spec, ok := h.agents[agentStep.Agent]
	if !ok {
		return failResult(result, "agent execution failed",
			definitionErrorf("agent %q not found in workflow agents", agentStep.Agent))
	}

	prompt, err := h.renderPrompt(agentStep, spec)
	if err != nil {
		return failResult(result, "agent execution failed", err)
	}

	provider, err := h.factory.Get(spec.Provider)
	if err != nil {
		return failResult(result, "agent execution failed", err)
	}

	// Budget resolution: the step's max_retries wins, then the provider's
	// configured budget, then the package default of three attempts total.
	maxRetries := agentStep.MaxRetries
	if maxRetries <= 0 {
		maxRetries = h.factory.MaxRetries(spec.Provider)
	}
	if maxRetries <= 0 {
		maxRetries = retry.DefaultMaxRetries
	}

	retries := 0
	var response *agent.Result
	err = retry.Do(ctx, func() error {
		var callErr error
		response, callErr = provider.Execute(ctx, prompt, spec.Model, spec.Parameters)
		return callErr
	},
		retry.WithMaxRetries(maxRetries),
		retry.WithBaseWait(h.baseWait),
		retry.WithMaxWait(h.maxWait),
		retry.WithOnRetry(func(attempt int, err error) {
			retries++
			h.logger.Warn("agent call failed, retrying",
				"step", agentStep.Name,
				"agent", agentStep.Agent,
				"attempt", attempt,
				"error", err)
		}),
	)
	result.Retries = retries
	if err != nil {
		result.Metadata["retries"] = retries
		return failResult(result, "agent execution failed", err)
	}

	h.state.Set(agentStep.SavePath(), response.Output)
	h.state.RecordHistory(agentStep.Name, response.Output)

	h.logger.Info("agent step completed",
		"step", agentStep.Name,
		"agent", agentStep.Agent,
		"model", response.Model,
		"tokens", response.Usage["total_tokens"],
		"cost", response.Cost)

	result.Success = true
	result.Output = response.Output
	result.Metadata["agent_provider"] = spec.Provider
	result.Metadata["model"] = response.Model
	result.Metadata["usage"] = response.Usage
	result.Metadata["cost"] = response.Cost
	result.Metadata["retries"] = retries
	return finishResult(result)
}

// renderPrompt renders the step's prompt (falling back to the agent's
// declared prompt) and prepends the rendered context when present.
func (h *AgentHandler) renderPrompt(step *AgentStep, spec *AgentSpec) (string, error) {
	template := step.Prompt
	if template == "" {
		template = spec.Prompt
	}
	if template == "" {
		return "", definitionErrorf("step %q has no prompt", step.Name)
	}
	prompt, err := h.state.RenderTemplate(template)
	if err != nil {
		return "", err
	}
	if step.Context != "" {
		context, err := h.state.RenderTemplate(step.Context)
		if err != nil {
			return "", err
		}
		prompt = context + "\n\n" + prompt
	}
	return prompt, nil
}
