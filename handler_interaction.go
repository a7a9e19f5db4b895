package pulsar

import (
	"context"
	"fmt"
	"time"

	"github.com/lsalihi/pulsar-compose/interact"
)

// InteractionHandler executes interaction steps: it resolves the input
// provider, collects answers, validates them, and saves them into state.
type InteractionHandler struct {
	state           *State
	providers       *interact.Registry
	defaultProvider string
}

// NewInteractionHandler returns a handler resolving providers from the
// given registry. Steps that do not name a provider use defaultProvider,
// falling back to "console" when that is empty too.
func NewInteractionHandler(state *State, providers *interact.Registry, defaultProvider string) *InteractionHandler {
	return &InteractionHandler{
		state:           state,
		providers:       providers,
		defaultProvider: defaultProvider,
	}
}

func (h *InteractionHandler) CanHandle(step Step) bool {
	_, ok := step.(*InteractionStep)
	return ok
}

func (h *InteractionHandler) Execute(ctx context.Context, step Step) *StepResult {
	interactionStep := step.(*InteractionStep)
	result := beginResult(interactionStep.Name)

	request, err := buildRequest(interactionStep)
	if err != nil {
		return failResult(result, "interaction failed", err)
	}

	providerName := interactionStep.Provider
	if providerName == "" {
		providerName = h.defaultProvider
	}
	if providerName == "" {
		providerName = "console"
	}
	provider, err := h.providers.Get(providerName)
	if err != nil {
		return failResult(result, "interaction failed", err)
	}
	if !provider.CanHandle(request) {
		return failResult(result, "interaction failed",
			fmt.Errorf("input provider %q cannot handle this request", providerName))
	}

	if interactionStep.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(interactionStep.Timeout)*time.Second)
		defer cancel()
	}

	response, err := provider.GetInput(ctx, request)
	if err != nil {
		return failResult(result, "interaction failed", err)
	}
	if err := interact.ValidateResponse(request, response); err != nil {
		return failResult(result, "interaction failed", err)
	}

	h.state.Set(interactionStep.SavePath(), response.Answers)
	h.state.RecordHistory(interactionStep.Name, response.Answers)

	result.Success = true
	result.Output = response.Answers
	result.Metadata["provider"] = providerName
	result.Metadata["questions_count"] = len(request.Questions)
	result.Metadata["response_metadata"] = response.Metadata
	return finishResult(result)
}

// buildRequest converts the step's document spec into an interaction
// request.
func buildRequest(step *InteractionStep) (*interact.Request, error) {
	if step.AskUser == nil || len(step.AskUser.Questions) == 0 {
		return nil, definitionErrorf("interaction step %q has no questions", step.Name)
	}

	questions := make([]*interact.Question, 0, len(step.AskUser.Questions))
	for _, spec := range step.AskUser.Questions {
		questionType := interact.QuestionType(spec.QuestionType())
		switch questionType {
		case interact.TypeText, interact.TypeMultipleChoice, interact.TypeNumber, interact.TypeBoolean:
		default:
			return nil, definitionErrorf("unknown question type: %s", spec.Type)
		}
		questions = append(questions, &interact.Question{
			Text:        spec.Question,
			Type:        questionType,
			Required:    spec.IsRequired(),
			Default:     spec.Default,
			Placeholder: spec.Placeholder,
			Options:     spec.Options,
			Multiple:    spec.Multiple,
			Validation:  spec.Validation,
		})
	}

	title := step.AskUser.Title
	if title == "" {
		title = "Input Required for " + step.Name
	}
	return &interact.Request{
		Questions: questions,
		Timeout:   time.Duration(step.Timeout) * time.Second,
		Metadata: map[string]any{
			"step_name":     step.Name,
			"save_variable": step.SavePath(),
			"title":         title,
			"description":   step.AskUser.Description,
		},
	}, nil
}
