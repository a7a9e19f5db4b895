package pulsar

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const reviewWorkflowYAML = `
version: "1.0"
name: article-review
agents:
  writer:
    provider: openai
    model: gpt-4
  reviewer:
    provider: anthropic
    model: claude-3-sonnet
    parameters:
      temperature: 0.2
workflow:
  - step: draft
    type: agent
    agent: writer
    prompt: "Write an article about {{topic}}"
    save_to: article.draft
    max_retries: 2
  - step: check_length
    type: conditional
    if: "length({{article.draft}}) > 500"
    then:
      - step: review
        type: agent
        agent: reviewer
        prompt: "Review: {{article.draft}}"
    else:
      - step: ask
        type: interaction
        save_to: answers
        ask_user:
          title: Draft too short
          questions:
            - question: "Keep the short draft?"
              type: boolean
              required: false
              default: true
`

func TestLoadString(t *testing.T) {
	wf, err := LoadString(reviewWorkflowYAML)
	require.NoError(t, err)
	require.Equal(t, "article-review", wf.Name())
	require.Equal(t, "1.0", wf.Version())
	require.Len(t, wf.Steps(), 2)

	writer, ok := wf.GetAgent("writer")
	require.True(t, ok)
	require.Equal(t, "openai", writer.Provider)
	require.Equal(t, "gpt-4", writer.Model)

	reviewer, ok := wf.GetAgent("reviewer")
	require.True(t, ok)
	require.Equal(t, 0.2, reviewer.Parameters["temperature"])

	draft, ok := wf.Steps()[0].(*AgentStep)
	require.True(t, ok)
	require.Equal(t, "draft", draft.Name)
	require.Equal(t, "writer", draft.Agent)
	require.Equal(t, "article.draft", draft.SavePath())
	require.Equal(t, 2, draft.MaxRetries)

	cond, ok := wf.Steps()[1].(*ConditionalStep)
	require.True(t, ok)
	require.Equal(t, "length({{article.draft}}) > 500", cond.Condition)
	require.Len(t, cond.Then, 1)
	require.Len(t, cond.Else, 1)

	review, ok := cond.Then[0].(*AgentStep)
	require.True(t, ok)
	require.Equal(t, "review", review.SavePath(), "save path defaults to the step name")

	ask, ok := cond.Else[0].(*InteractionStep)
	require.True(t, ok)
	require.Equal(t, "answers", ask.SavePath())
	require.Equal(t, "Draft too short", ask.AskUser.Title)
	require.Len(t, ask.AskUser.Questions, 1)
	question := ask.AskUser.Questions[0]
	require.Equal(t, "boolean", question.QuestionType())
	require.False(t, question.IsRequired())
	require.Equal(t, true, question.Default)
}

func TestLoadStringErrors(t *testing.T) {
	t.Run("undeclared agent at top level", func(t *testing.T) {
		_, err := LoadString(`
name: bad
agents: {}
workflow:
  - step: go
    type: agent
    agent: ghost
    prompt: hi
`)
		require.Error(t, err)
		var defErr *DefinitionError
		require.ErrorAs(t, err, &defErr)
		require.Contains(t, err.Error(), "ghost")
	})

	t.Run("undeclared agent nested in a branch", func(t *testing.T) {
		_, err := LoadString(`
name: bad
agents: {}
workflow:
  - step: branch
    type: conditional
    if: "true"
    then:
      - step: go
        type: agent
        agent: ghost
        prompt: hi
`)
		require.Error(t, err)
		require.Contains(t, err.Error(), "ghost")
	})

	t.Run("missing name", func(t *testing.T) {
		_, err := LoadString(`
workflow:
  - step: go
    type: agent
    agent: a
`)
		require.Error(t, err)
		require.Contains(t, err.Error(), "name required")
	})

	t.Run("no steps", func(t *testing.T) {
		_, err := LoadString(`
name: empty
workflow: []
`)
		require.Error(t, err)
	})

	t.Run("duplicate step names", func(t *testing.T) {
		_, err := LoadString(`
name: dupes
agents:
  a:
    provider: ollama
    model: llama3
workflow:
  - step: go
    type: agent
    agent: a
  - step: go
    type: agent
    agent: a
`)
		require.Error(t, err)
		require.Contains(t, err.Error(), "duplicate")
	})

	t.Run("not yaml", func(t *testing.T) {
		_, err := LoadString("{{{{")
		require.Error(t, err)
	})
}

func TestUnknownStepKindSurvivesLoading(t *testing.T) {
	wf, err := LoadString(`
name: mystery
workflow:
  - step: weird
    type: teleport
    destination: mars
`)
	require.NoError(t, err)
	step, ok := wf.Steps()[0].(*UnknownStep)
	require.True(t, ok)
	require.Equal(t, "weird", step.StepName())
	require.Equal(t, "teleport", step.Kind())
}

func TestLintConditions(t *testing.T) {
	wf, err := LoadString(`
name: lint
workflow:
  - step: outer
    type: conditional
    if: "1 +"
    then:
      - step: inner
        type: conditional
        if: "((("
`)
	require.NoError(t, err)
	errs := wf.LintConditions()
	require.Len(t, errs, 2)
	require.Contains(t, errs[0].Error(), "outer")
	require.Contains(t, errs[1].Error(), "inner")
}
