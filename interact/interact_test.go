package interact

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateResponse(t *testing.T) {
	t.Run("required answer missing", func(t *testing.T) {
		request := &Request{Questions: []*Question{
			{Text: "Name?", Type: TypeText, Required: true},
		}}
		err := ValidateResponse(request, &Response{Answers: map[string]any{}})
		require.Error(t, err)
		var valErr *ValidationError
		require.ErrorAs(t, err, &valErr)
		assert.Equal(t, "Name?", valErr.Question)
	})

	t.Run("optional answer missing is fine", func(t *testing.T) {
		request := &Request{Questions: []*Question{
			{Text: "Name?", Type: TypeText},
		}}
		require.NoError(t, ValidateResponse(request, &Response{Answers: map[string]any{}}))
	})

	t.Run("choice must be an option", func(t *testing.T) {
		request := &Request{Questions: []*Question{
			{Text: "Color?", Type: TypeMultipleChoice, Required: true, Options: []string{"red", "blue"}},
		}}
		err := ValidateResponse(request, &Response{Answers: map[string]any{"question_0": "green"}})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid option")

		require.NoError(t, ValidateResponse(request,
			&Response{Answers: map[string]any{"question_0": "red"}}))
	})

	t.Run("multiple choice with multiple selections", func(t *testing.T) {
		request := &Request{Questions: []*Question{
			{Text: "Toppings?", Type: TypeMultipleChoice, Required: true,
				Options: []string{"a", "b", "c"}, Multiple: true},
		}}
		require.NoError(t, ValidateResponse(request,
			&Response{Answers: map[string]any{"question_0": []any{"a", "c"}}}))
		err := ValidateResponse(request,
			&Response{Answers: map[string]any{"question_0": "a"}})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "multiple selection expected")
	})

	t.Run("number and boolean types", func(t *testing.T) {
		request := &Request{Questions: []*Question{
			{Text: "Age?", Type: TypeNumber, Required: true},
			{Text: "Agree?", Type: TypeBoolean, Required: true},
		}}
		require.NoError(t, ValidateResponse(request, &Response{Answers: map[string]any{
			"question_0": float64(30),
			"question_1": true,
		}}))
		err := ValidateResponse(request, &Response{Answers: map[string]any{
			"question_0": "thirty",
			"question_1": true,
		}})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "valid number")
	})

	t.Run("custom rules", func(t *testing.T) {
		request := &Request{Questions: []*Question{
			{Text: "Bio?", Type: TypeText, Required: true,
				Validation: map[string]any{"min_length": 5, "max_length": 10}},
			{Text: "Score?", Type: TypeNumber, Required: true,
				Validation: map[string]any{"min": 1, "max": 10}},
			{Text: "Code?", Type: TypeText, Required: true,
				Validation: map[string]any{"pattern": "^[A-Z]{3}$"}},
		}}
		answers := map[string]any{
			"question_0": "just right",
			"question_1": float64(7),
			"question_2": "ABC",
		}
		require.NoError(t, ValidateResponse(request, &Response{Answers: answers}))

		answers["question_0"] = "hi"
		err := ValidateResponse(request, &Response{Answers: answers})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "minimum length")

		answers["question_0"] = "just right"
		answers["question_1"] = float64(11)
		err = ValidateResponse(request, &Response{Answers: answers})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "at most")

		answers["question_1"] = float64(7)
		answers["question_2"] = "abc"
		err = ValidateResponse(request, &Response{Answers: answers})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "pattern")
	})
}

func TestStaticProvider(t *testing.T) {
	request := &Request{Questions: []*Question{
		{Text: "Topic?", Type: TypeText, Required: true},
		{Text: "Count?", Type: TypeNumber, Required: true},
		{Text: "Confirm?", Type: TypeBoolean, Required: true, Default: true},
	}}

	t.Run("answers by key, index, and default", func(t *testing.T) {
		provider := NewStaticProvider(StaticOptions{Responses: map[string]any{
			"question_0": "space",
			"1":          float64(3),
		}})
		response, err := provider.GetInput(context.Background(), request)
		require.NoError(t, err)
		assert.Equal(t, "space", response.Answers["question_0"])
		assert.Equal(t, float64(3), response.Answers["question_1"])
		assert.Equal(t, true, response.Answers["question_2"], "falls back to the question default")
	})

	t.Run("missing answer fails", func(t *testing.T) {
		provider := NewStaticProvider(StaticOptions{})
		_, err := provider.GetInput(context.Background(), request)
		require.Error(t, err)
		var valErr *ValidationError
		require.ErrorAs(t, err, &valErr)
	})

	t.Run("answer by question text", func(t *testing.T) {
		provider := NewStaticProvider(StaticOptions{Responses: map[string]any{
			"Topic?": "oceans",
			"Count?": float64(1),
		}})
		response, err := provider.GetInput(context.Background(), request)
		require.NoError(t, err)
		assert.Equal(t, "oceans", response.Answers["question_0"])
	})
}

func TestConsoleProvider(t *testing.T) {
	request := &Request{
		Questions: []*Question{
			{Text: "Name?", Type: TypeText, Required: true},
			{Text: "Color?", Type: TypeMultipleChoice, Required: true, Options: []string{"red", "blue"}},
			{Text: "Tools?", Type: TypeMultipleChoice, Required: true, Options: []string{"axe", "saw", "drill"}, Multiple: true},
			{Text: "Age?", Type: TypeNumber, Required: true},
			{Text: "OK?", Type: TypeBoolean, Required: true},
			{Text: "Title?", Type: TypeText, Default: "none"},
		},
		Metadata: map[string]any{"title": "Survey", "description": "a few questions"},
	}
	input := strings.Join([]string{
		"Ada",     // Name?
		"2",       // Color? -> blue
		"1,3",     // Tools? -> axe, drill
		"oops",    // Age? rejected
		"41.5",    // Age?
		"maybe",   // OK? rejected
		"y",       // OK?
		"",        // Title? -> default
	}, "\n") + "\n"

	var output strings.Builder
	provider := NewConsoleProvider(ConsoleOptions{
		Input:  strings.NewReader(input),
		Output: &output,
	})
	require.True(t, provider.CanHandle(request))

	response, err := provider.GetInput(context.Background(), request)
	require.NoError(t, err)
	assert.Equal(t, "Ada", response.Answers["question_0"])
	assert.Equal(t, "blue", response.Answers["question_1"])
	assert.Equal(t, []any{"axe", "drill"}, response.Answers["question_2"])
	assert.Equal(t, 41.5, response.Answers["question_3"])
	assert.Equal(t, true, response.Answers["question_4"])
	assert.Equal(t, "none", response.Answers["question_5"])
	assert.Contains(t, output.String(), "Survey")
	assert.Contains(t, output.String(), "Question 1 of 6")
}

func TestConsoleProviderHonorsContext(t *testing.T) {
	// a reader that never delivers a line
	blocked, _, err := os.Pipe()
	require.NoError(t, err)
	defer blocked.Close()

	provider := NewConsoleProvider(ConsoleOptions{Input: blocked, Output: &strings.Builder{}})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = provider.GetInput(ctx, &Request{Questions: []*Question{
		{Text: "Name?", Type: TypeText},
	}})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestFileProvider(t *testing.T) {
	dir := t.TempDir()
	request := &Request{
		Questions: []*Question{
			{Text: "Approve the draft?", Type: TypeBoolean, Required: true},
			{Text: "Comments?", Type: TypeText},
		},
		Metadata: map[string]any{"filename": "answers.json"},
	}

	provider := NewFileProvider(FileOptions{Dir: dir, PollInterval: 10 * time.Millisecond})

	// write the answer file after a short delay, as a human would
	go func() {
		time.Sleep(30 * time.Millisecond)
		data, _ := json.Marshal(map[string]any{
			"approve_the_draft": true,
			"q1":                "ship it",
		})
		os.WriteFile(filepath.Join(dir, "answers.json"), data, 0o644)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	response, err := provider.GetInput(ctx, request)
	require.NoError(t, err)
	assert.Equal(t, true, response.Answers["question_0"])
	assert.Equal(t, "ship it", response.Answers["question_1"])
}

func TestFileProviderTimesOut(t *testing.T) {
	provider := NewFileProvider(FileOptions{
		Dir:          t.TempDir(),
		Filename:     "never.json",
		PollInterval: 10 * time.Millisecond,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := provider.GetInput(ctx, &Request{Questions: []*Question{
		{Text: "Anyone?", Type: TypeText},
	}})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRegistry(t *testing.T) {
	registry := DefaultRegistry()
	assert.Equal(t, []string{"console", "file"}, registry.Names())

	_, err := registry.Get("console")
	require.NoError(t, err)
	_, err = registry.Get("telepathy")
	require.Error(t, err)

	registry.Register("static", NewStaticProvider(StaticOptions{AllowMissing: true}))
	_, err = registry.Get("static")
	require.NoError(t, err)
}
