package interact

import (
	"context"
	"fmt"
	"time"
)

// StaticOptions configure a StaticProvider.
type StaticOptions struct {
	// Responses are answers keyed by "question_0", the bare index "0", or
	// the question text.
	Responses map[string]any

	// Defaults are consulted after Responses, with the same keys.
	Defaults map[string]any

	// Delay simulates a slow respondent.
	Delay time.Duration

	// AllowMissing falls back to a per-type placeholder answer instead of
	// failing when no response is configured.
	AllowMissing bool
}

// StaticProvider serves predefined answers, for automated runs and tests.
type StaticProvider struct {
	opts StaticOptions
}

// NewStaticProvider returns a provider answering from opts.Responses.
func NewStaticProvider(opts StaticOptions) *StaticProvider {
	return &StaticProvider{opts: opts}
}

// CanHandle always reports true.
func (p *StaticProvider) CanHandle(request *Request) bool {
	return true
}

// GetInput resolves each question from the configured responses, then from
// defaults, then from the question's own default value.
func (p *StaticProvider) GetInput(ctx context.Context, request *Request) (*Response, error) {
	if p.opts.Delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(p.opts.Delay):
		}
	}

	answers := map[string]any{}
	for i, question := range request.Questions {
		answer, ok := p.resolve(i, question)
		if !ok {
			if !p.opts.AllowMissing {
				return nil, validationErrorf(question.Text, "no response configured for question %d", i)
			}
			answer = placeholderAnswer(question)
		}
		answers[AnswerKey(i)] = answer
	}

	response := &Response{
		Answers:  answers,
		Metadata: map[string]any{"provider": "static"},
	}
	if err := ValidateResponse(request, response); err != nil {
		return nil, err
	}
	return response, nil
}

func (p *StaticProvider) resolve(i int, question *Question) (any, bool) {
	keys := []string{AnswerKey(i), fmt.Sprintf("%d", i), question.Text}
	for _, key := range keys {
		if value, ok := p.opts.Responses[key]; ok {
			return value, true
		}
	}
	for _, key := range keys {
		if value, ok := p.opts.Defaults[key]; ok {
			return value, true
		}
	}
	if question.Default != nil {
		return question.Default, true
	}
	return nil, false
}

func placeholderAnswer(question *Question) any {
	switch question.Type {
	case TypeNumber:
		return float64(0)
	case TypeBoolean:
		return false
	case TypeMultipleChoice:
		if question.Multiple {
			return []any{}
		}
		if len(question.Options) > 0 {
			return question.Options[0]
		}
		return ""
	}
	return "placeholder answer"
}
