package pulsar

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/lsalihi/pulsar-compose/agent"
	"github.com/lsalihi/pulsar-compose/interact"
	"go.jetify.com/typeid"
)

// NewRunID returns a new identifier for a workflow run.
func NewRunID() string {
	id, err := typeid.WithPrefix("run")
	if err != nil {
		panic(err)
	}
	return id.String()
}

// EngineOptions configure an Engine.
type EngineOptions struct {
	Workflow     *Workflow
	Logger       *slog.Logger
	Formatter    ExecutionFormatter
	AgentConfig  *agent.Config
	AgentFactory *agent.Factory
	Providers    *interact.Registry
	RunStore     RunStore

	// DefaultProvider names the input provider used by interaction steps
	// that do not declare one. Empty means "console".
	DefaultProvider string

	// RetryBaseWait and RetryMaxWait override the backoff between agent
	// call retries. Zero keeps the defaults.
	RetryBaseWait time.Duration
	RetryMaxWait  time.Duration
}

// Engine runs a workflow's steps in order, stopping at the first failure.
// One Engine executes one run at a time; each run gets a fresh state seeded
// from the caller's input.
type Engine struct {
	workflow        *Workflow
	logger          *slog.Logger
	formatter       ExecutionFormatter
	factory         *agent.Factory
	providers       *interact.Registry
	defaultProvider string
	runs            RunStore

	retryBaseWait time.Duration
	retryMaxWait  time.Duration

	mutex    sync.Mutex
	state    *State
	handlers []StepHandler
}

// NewEngine returns a new Engine configured with the given options.
func NewEngine(opts EngineOptions) (*Engine, error) {
	if opts.Workflow == nil {
		return nil, fmt.Errorf("workflow is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.Formatter == nil {
		opts.Formatter = NullFormatter{}
	}
	if opts.AgentFactory == nil {
		config := agent.ConfigFromEnv()
		if opts.AgentConfig != nil {
			config = *opts.AgentConfig
		}
		opts.AgentFactory = agent.NewFactory(config)
	}
	if opts.Providers == nil {
		opts.Providers = interact.DefaultRegistry()
	}
	if opts.RunStore == nil {
		opts.RunStore = NewNullRunStore()
	}
	return &Engine{
		workflow:        opts.Workflow,
		logger:          opts.Logger,
		formatter:       opts.Formatter,
		factory:         opts.AgentFactory,
		providers:       opts.Providers,
		defaultProvider: opts.DefaultProvider,
		runs:            opts.RunStore,
		retryBaseWait:   opts.RetryBaseWait,
		retryMaxWait:    opts.RetryMaxWait,
	}, nil
}

// Execute runs the workflow with the given user input seeded at the state
// path "input".
func (e *Engine) Execute(ctx context.Context, input string) *ExecutionResult {
	return e.ExecuteWithState(ctx, map[string]any{"input": input})
}

// ExecuteWithState runs the workflow from an initial state snapshot. The
// result always carries the final state, per-step results, and the
// execution history, even when the run stops at a failed step.
func (e *Engine) ExecuteWithState(ctx context.Context, initial map[string]any) *ExecutionResult {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	runID := NewRunID()
	startedAt := time.Now()
	e.state = NewState(initial)
	agentHandler := NewAgentHandler(e.state, e.factory, e.workflow.Agents(), e.logger)
	if e.retryBaseWait > 0 {
		agentHandler.baseWait = e.retryBaseWait
	}
	if e.retryMaxWait > 0 {
		agentHandler.maxWait = e.retryMaxWait
	}
	e.handlers = []StepHandler{
		agentHandler,
		NewConditionalHandler(e.state, e),
		NewInteractionHandler(e.state, e.providers, e.defaultProvider),
	}

	e.logger.Info("workflow run started",
		"run_id", runID,
		"workflow", e.workflow.Name(),
		"steps", len(e.workflow.Steps()))

	var stepResults []*StepResult
	success := true
	runError := ""
	for _, step := range e.workflow.Steps() {
		result := e.executeStep(ctx, step)
		stepResults = append(stepResults, result)
		if !result.Success {
			success = false
			runError = result.Error
			break
		}
	}

	completedAt := time.Now()
	result := &ExecutionResult{
		RunID:        runID,
		WorkflowName: e.workflow.Name(),
		Success:      success,
		StepResults:  stepResults,
		FinalState:   e.state.Snapshot(),
		History:      e.state.HistorySnapshot(),
		Error:        runError,
		StartedAt:    startedAt,
		CompletedAt:  completedAt,
		Duration:     completedAt.Sub(startedAt),
	}

	e.logger.Info("workflow run finished",
		"run_id", runID,
		"success", success,
		"duration", result.Duration)
	e.formatter.PrintRunSummary(result)

	if err := e.runs.Save(ctx, NewRunRecord(result)); err != nil {
		e.logger.Warn("failed to save run record", "run_id", runID, "error", err)
	}
	return result
}

// executeStep routes a step to the first handler that accepts it. A step no
// handler recognizes becomes a failed result rather than a crash.
func (e *Engine) executeStep(ctx context.Context, step Step) *StepResult {
	e.formatter.PrintStepStart(step.StepName(), step.Kind())

	var result *StepResult
	for _, handler := range e.handlers {
		if handler.CanHandle(step) {
			result = handler.Execute(ctx, step)
			break
		}
	}
	if result == nil {
		result = beginResult(step.StepName())
		result.Error = fmt.Sprintf("no handler found for step type: %s", step.Kind())
		result.Metadata["error_type"] = "UnknownStepType"
		finishResult(result)
	}

	if result.Success {
		e.formatter.PrintStepOutput(result.Name, result.Output)
		e.logger.Debug("step completed", "step", result.Name, "duration", result.Duration)
	} else {
		e.formatter.PrintStepError(result.Name, fmt.Errorf("%s", result.Error))
		e.logger.Error("step failed", "step", result.Name, "error", result.Error)
	}
	return result
}

// CurrentState returns a snapshot of the most recent run's state, or nil
// before any run.
func (e *Engine) CurrentState() map[string]any {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	if e.state == nil {
		return nil
	}
	return e.state.Snapshot()
}
