package pulsar

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/lsalihi/pulsar-compose/agent"
	"github.com/lsalihi/pulsar-compose/interact"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAgent returns canned output, optionally failing transiently first.
type fakeAgent struct {
	output     string
	failures   int
	calls      int
	lastPrompt string
	lastModel  string
}

func (a *fakeAgent) Execute(ctx context.Context, prompt, model string, parameters map[string]any) (*agent.Result, error) {
	a.calls++
	a.lastPrompt = prompt
	a.lastModel = model
	if a.calls <= a.failures {
		return nil, &agent.CallError{Provider: "fake", StatusCode: 503, Message: "service unavailable"}
	}
	return &agent.Result{
		Output:   a.output,
		Usage:    map[string]int{"total_tokens": 10},
		Model:    model,
		Metadata: map[string]any{"provider": "fake"},
	}, nil
}

func (a *fakeAgent) EstimateCost(usage map[string]int, model string) float64 {
	return 0
}

func newTestEngine(t *testing.T, yaml string, fakes map[string]*fakeAgent, opts EngineOptions) *Engine {
	t.Helper()
	wf, err := LoadString(yaml)
	require.NoError(t, err)
	opts.Workflow = wf
	if opts.AgentFactory == nil {
		opts.AgentFactory = agent.NewFactory(agent.Config{})
	}
	for provider, fake := range fakes {
		opts.AgentFactory.Register(provider, fake)
	}
	if opts.RetryBaseWait == 0 {
		opts.RetryBaseWait = time.Millisecond
	}
	engine, err := NewEngine(opts)
	require.NoError(t, err)
	return engine
}

func TestEngineExecute(t *testing.T) {
	writer := &fakeAgent{output: strings.Repeat("word ", 120)}
	reviewer := &fakeAgent{output: "looks good"}

	providers := interact.NewRegistry()
	providers.Register("static", interact.NewStaticProvider(interact.StaticOptions{
		Responses: map[string]any{"question_0": true},
	}))

	engine := newTestEngine(t, `
name: article-review
agents:
  writer:
    provider: openai
    model: gpt-4
  reviewer:
    provider: anthropic
    model: claude-3-haiku-20240307
workflow:
  - step: draft
    type: agent
    agent: writer
    prompt: "Write about {{input}}"
    save_to: article.draft
  - step: check_length
    type: conditional
    if: "length({{article.draft}}) > 100"
    then:
      - step: review
        type: agent
        agent: reviewer
        prompt: "Review: {{article.draft}}"
        context: "You are reviewing a draft about {{input}}"
    else:
      - step: confirm
        type: interaction
        provider: static
        ask_user:
          questions:
            - question: "Keep the short draft?"
              type: boolean
`, map[string]*fakeAgent{"openai": writer, "anthropic": reviewer},
		EngineOptions{Providers: providers})

	result := engine.Execute(context.Background(), "space exploration")
	require.True(t, result.Success, "run error: %s", result.Error)
	require.Len(t, result.StepResults, 2)
	assert.NotEmpty(t, result.RunID)
	assert.True(t, strings.HasPrefix(result.RunID, "run_"))
	assert.Equal(t, "article-review", result.WorkflowName)

	// the prompt was rendered from state
	assert.Equal(t, "Write about space exploration", writer.lastPrompt)
	assert.Equal(t, "gpt-4", writer.lastModel)

	// the context template is prepended to the reviewer prompt
	assert.True(t, strings.HasPrefix(reviewer.lastPrompt, "You are reviewing a draft about space exploration\n\n"))

	// the then branch ran, the interaction did not
	cond := result.StepResults[1]
	assert.Equal(t, map[string]any{"condition_result": true, "branch": "then"}, cond.Output)
	assert.Equal(t, "then", cond.Metadata["branch_taken"])
	assert.Equal(t, 1, cond.Metadata["steps_executed"])

	// final state holds both outputs at their save paths
	state := result.FinalState
	article := state["article"].(map[string]any)
	assert.Equal(t, writer.output, article["draft"])
	assert.Equal(t, "looks good", state["review"])
	assert.Equal(t, "space exploration", state["input"])

	// history recorded both agent steps in order
	require.Len(t, result.History, 2)
	assert.Equal(t, "draft", result.History[0].Step)
	assert.Equal(t, "review", result.History[1].Step)
}

func TestEngineElseBranchAndInteraction(t *testing.T) {
	writer := &fakeAgent{output: "short"}
	providers := interact.NewRegistry()
	providers.Register("static", interact.NewStaticProvider(interact.StaticOptions{
		Responses: map[string]any{"question_0": true},
	}))

	engine := newTestEngine(t, `
name: short-draft
agents:
  writer:
    provider: local
    model: llama3
workflow:
  - step: draft
    type: agent
    agent: writer
    prompt: "Write about {{input}}"
  - step: check_length
    type: conditional
    if: "length({{draft}}) > 100"
    then:
      - step: never
        type: agent
        agent: writer
        prompt: unused
    else:
      - step: confirm
        type: interaction
        provider: static
        save_to: answers
        ask_user:
          questions:
            - question: "Keep the short draft?"
              type: boolean
`, map[string]*fakeAgent{"local": writer},
		EngineOptions{Providers: providers})

	result := engine.Execute(context.Background(), "brevity")
	require.True(t, result.Success, "run error: %s", result.Error)

	cond := result.StepResults[1]
	assert.Equal(t, "else", cond.Metadata["branch_taken"])

	answers := result.FinalState["answers"].(map[string]any)
	assert.Equal(t, true, answers["question_0"])
	assert.Equal(t, 1, writer.calls, "the then branch must not run")
}

func TestEngineFailFast(t *testing.T) {
	// reviewer fails permanently; the final step must never run
	writer := &fakeAgent{output: "draft text"}
	broken := &fakeAgent{failures: 1000}

	engine := newTestEngine(t, `
name: failing
agents:
  writer:
    provider: openai
    model: gpt-4
  reviewer:
    provider: anthropic
    model: claude-3-opus-20240229
workflow:
  - step: draft
    type: agent
    agent: writer
    prompt: go
  - step: review
    type: agent
    agent: reviewer
    prompt: "Review {{draft}}"
    max_retries: 1
  - step: publish
    type: agent
    agent: writer
    prompt: publish
`, map[string]*fakeAgent{"openai": writer, "anthropic": broken},
		EngineOptions{})

	result := engine.Execute(context.Background(), "x")
	assert.False(t, result.Success)
	require.Len(t, result.StepResults, 2, "execution stops at the failed step")

	failed, ok := result.FailedStep()
	require.True(t, ok)
	assert.Equal(t, "review", failed.Name)
	assert.Contains(t, failed.Error, "agent execution failed")
	assert.Equal(t, "AgentCallError", failed.Metadata["error_type"])
	assert.Equal(t, result.Error, failed.Error)
	assert.Equal(t, 2, broken.calls, "one retry was attempted")

	// partial state from the successful step survives
	assert.Equal(t, "draft text", result.FinalState["draft"])
}

func TestEngineDefaultRetryBudget(t *testing.T) {
	// without max_retries the call gets three attempts total
	broken := &fakeAgent{failures: 1000}

	engine := newTestEngine(t, `
name: exhausted
agents:
  writer:
    provider: openai
    model: gpt-4
workflow:
  - step: draft
    type: agent
    agent: writer
    prompt: go
`, map[string]*fakeAgent{"openai": broken}, EngineOptions{})

	result := engine.Execute(context.Background(), "x")
	assert.False(t, result.Success)
	assert.Equal(t, 3, broken.calls, "three attempts, then the step fails")
	assert.Equal(t, 2, result.StepResults[0].Retries)
}

func TestEngineProviderRetryBudget(t *testing.T) {
	// a provider-level budget applies when the step declares none
	broken := &fakeAgent{failures: 1000}
	factory := agent.NewFactory(agent.Config{
		OpenAI: agent.ProviderConfig{MaxRetries: 1},
	})

	engine := newTestEngine(t, `
name: capped
agents:
  writer:
    provider: openai
    model: gpt-4
workflow:
  - step: draft
    type: agent
    agent: writer
    prompt: go
`, map[string]*fakeAgent{"openai": broken},
		EngineOptions{AgentFactory: factory})

	result := engine.Execute(context.Background(), "x")
	assert.False(t, result.Success)
	assert.Equal(t, 2, broken.calls, "one retry after the first attempt")
}

func TestEngineRetryRecovers(t *testing.T) {
	flaky := &fakeAgent{output: "finally", failures: 2}

	engine := newTestEngine(t, `
name: flaky
agents:
  writer:
    provider: openai
    model: gpt-4
workflow:
  - step: draft
    type: agent
    agent: writer
    prompt: go
`, map[string]*fakeAgent{"openai": flaky}, EngineOptions{})

	result := engine.Execute(context.Background(), "x")
	require.True(t, result.Success, "run error: %s", result.Error)
	assert.Equal(t, 3, flaky.calls)
	assert.Equal(t, 2, result.StepResults[0].Retries)
	assert.Equal(t, 2, result.StepResults[0].Metadata["retries"])
}

func TestEngineDefaultInteractionProvider(t *testing.T) {
	// a step without a provider uses the engine's default, not the console
	providers := interact.NewRegistry()
	providers.Register("static", interact.NewStaticProvider(interact.StaticOptions{
		Responses: map[string]any{"question_0": "approved"},
	}))

	engine := newTestEngine(t, `
name: default-provider
workflow:
  - step: confirm
    type: interaction
    save_to: answers
    ask_user:
      questions:
        - question: "Verdict?"
`, nil, EngineOptions{Providers: providers, DefaultProvider: "static"})

	result := engine.Execute(context.Background(), "x")
	require.True(t, result.Success, "run error: %s", result.Error)
	assert.Equal(t, "static", result.StepResults[0].Metadata["provider"])
	answers := result.FinalState["answers"].(map[string]any)
	assert.Equal(t, "approved", answers["question_0"])
}

func TestEngineUnknownStepKind(t *testing.T) {
	engine := newTestEngine(t, `
name: mystery
workflow:
  - step: weird
    type: teleport
`, nil, EngineOptions{})

	result := engine.Execute(context.Background(), "x")
	assert.False(t, result.Success)
	require.Len(t, result.StepResults, 1)
	assert.Contains(t, result.StepResults[0].Error, "no handler found for step type: teleport")
	assert.Equal(t, "UnknownStepType", result.StepResults[0].Metadata["error_type"])
}

func TestEngineBadConditionFailsStep(t *testing.T) {
	engine := newTestEngine(t, `
name: bad-guard
workflow:
  - step: branch
    type: conditional
    if: "{{missing.path}} > 1"
`, nil, EngineOptions{})

	result := engine.Execute(context.Background(), "x")
	assert.False(t, result.Success)
	failed := result.StepResults[0]
	assert.Contains(t, failed.Error, "condition evaluation failed")
	assert.Equal(t, "ExpressionError", failed.Metadata["error_type"])
}

func TestEngineTemplateErrorFailsStep(t *testing.T) {
	writer := &fakeAgent{output: "never"}
	engine := newTestEngine(t, `
name: bad-template
agents:
  writer:
    provider: openai
    model: gpt-4
workflow:
  - step: draft
    type: agent
    agent: writer
    prompt: "Write about {{nonexistent}}"
`, map[string]*fakeAgent{"openai": writer}, EngineOptions{})

	result := engine.Execute(context.Background(), "x")
	assert.False(t, result.Success)
	failed := result.StepResults[0]
	assert.Contains(t, failed.Error, "nonexistent")
	assert.Equal(t, "StateError", failed.Metadata["error_type"])
	assert.Equal(t, 0, writer.calls, "the provider is never called with a broken prompt")
}

func TestEngineSavesRunRecord(t *testing.T) {
	store, err := NewFileRunStore(t.TempDir())
	require.NoError(t, err)
	writer := &fakeAgent{output: "done"}

	engine := newTestEngine(t, `
name: recorded
agents:
  writer:
    provider: openai
    model: gpt-4
workflow:
  - step: draft
    type: agent
    agent: writer
    prompt: go
`, map[string]*fakeAgent{"openai": writer},
		EngineOptions{RunStore: store})

	result := engine.Execute(context.Background(), "x")
	require.True(t, result.Success)

	record, err := store.Get(context.Background(), result.RunID)
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, "recorded", record.WorkflowName)
	assert.True(t, record.Success)
	assert.Equal(t, 1, record.StepCount)
	assert.Equal(t, "done", record.FinalState["draft"])
}

func TestEngineCurrentState(t *testing.T) {
	writer := &fakeAgent{output: "payload"}
	engine := newTestEngine(t, `
name: stateful
agents:
  writer:
    provider: openai
    model: gpt-4
workflow:
  - step: draft
    type: agent
    agent: writer
    prompt: go
`, map[string]*fakeAgent{"openai": writer}, EngineOptions{})

	assert.Nil(t, engine.CurrentState())
	engine.Execute(context.Background(), "x")
	state := engine.CurrentState()
	require.NotNil(t, state)
	assert.Equal(t, "payload", state["draft"])
}

func TestWorkflowPlan(t *testing.T) {
	wf, err := LoadString(`
name: planned
agents:
  writer:
    provider: openai
    model: gpt-4
workflow:
  - step: draft
    type: agent
    agent: writer
    prompt: go
  - step: gate
    type: conditional
    if: "true"
    then:
      - step: inner
        type: agent
        agent: writer
        prompt: go
    else:
      - step: ask
        type: interaction
        ask_user:
          questions:
            - question: "Continue?"
              type: boolean
`)
	require.NoError(t, err)

	plan := wf.Plan()
	require.Len(t, plan, 4)
	assert.Equal(t, PlanStep{Name: "draft", Kind: "agent", Detail: "agent writer"}, plan[0])
	assert.Equal(t, PlanStep{Name: "gate", Kind: "conditional", Detail: "if true"}, plan[1])
	assert.Equal(t, PlanStep{Name: "inner", Kind: "agent", Detail: "agent writer", Branch: "then", Depth: 1}, plan[2])
	assert.Equal(t, PlanStep{Name: "ask", Kind: "interaction", Detail: "1 question(s)", Branch: "else", Depth: 1}, plan[3])
}
