// Package interact collects answers from humans during a workflow run. A
// Provider presents questions and returns answers; the package validates
// answers against each question's declared type and rules.
package interact

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"sync"
	"time"
)

// QuestionType enumerates the supported answer types.
type QuestionType string

const (
	TypeText           QuestionType = "text"
	TypeMultipleChoice QuestionType = "multiple_choice"
	TypeNumber         QuestionType = "number"
	TypeBoolean        QuestionType = "boolean"
)

// Question is a single question to put to the user.
type Question struct {
	Text        string
	Type        QuestionType
	Required    bool
	Default     any
	Placeholder string
	Options     []string
	Multiple    bool
	Validation  map[string]any
}

// Request is one interaction: an ordered list of questions plus
// presentation metadata such as a title and description.
type Request struct {
	Questions []*Question
	Timeout   time.Duration
	Metadata  map[string]any
}

// Response holds the collected answers, keyed "question_0", "question_1",
// ... in question order.
type Response struct {
	Answers  map[string]any
	Metadata map[string]any
}

// AnswerKey returns the answer map key for the i-th question.
func AnswerKey(i int) string {
	return fmt.Sprintf("question_%d", i)
}

// ValidationError reports an answer that failed validation, naming the
// offending question.
type ValidationError struct {
	Question string
	Message  string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for %q: %s", e.Question, e.Message)
}

func validationErrorf(question, format string, args ...any) *ValidationError {
	return &ValidationError{Question: question, Message: fmt.Sprintf(format, args...)}
}

// Provider obtains answers for an interaction request.
type Provider interface {
	// CanHandle reports whether the provider can serve this request.
	CanHandle(request *Request) bool

	// GetInput collects answers, honoring context cancellation for
	// providers that wait on external events.
	GetInput(ctx context.Context, request *Request) (*Response, error)
}

// ValidateResponse checks every answer against its question: required
// presence, type agreement, option membership, and any custom rules.
func ValidateResponse(request *Request, response *Response) error {
	for i, question := range request.Questions {
		answer, ok := response.Answers[AnswerKey(i)]
		if question.Required && (!ok || answer == nil || answer == "") {
			return validationErrorf(question.Text, "this field is required")
		}
		if !ok || answer == nil {
			continue
		}

		switch question.Type {
		case TypeMultipleChoice:
			if question.Multiple {
				items, ok := answer.([]any)
				if !ok {
					if strs, sok := answer.([]string); sok {
						items = make([]any, len(strs))
						for j, s := range strs {
							items[j] = s
						}
					} else {
						return validationErrorf(question.Text, "multiple selection expected")
					}
				}
				for _, item := range items {
					if !isOption(question.Options, item) {
						return validationErrorf(question.Text, "invalid option: %v", item)
					}
				}
			} else if !isOption(question.Options, answer) {
				return validationErrorf(question.Text, "invalid option: %v", answer)
			}
		case TypeNumber:
			if _, ok := answerNumber(answer); !ok {
				return validationErrorf(question.Text, "must be a valid number")
			}
		case TypeBoolean:
			if _, ok := answer.(bool); !ok {
				return validationErrorf(question.Text, "must be true or false")
			}
		}

		if err := applyRules(question, answer); err != nil {
			return err
		}
	}
	return nil
}

// applyRules enforces the question's custom validation mapping: min_length,
// max_length, and pattern for strings, min and max for numbers.
func applyRules(question *Question, answer any) error {
	rules := question.Validation
	if len(rules) == 0 {
		return nil
	}

	if text, ok := answer.(string); ok {
		if min, ok := ruleNumber(rules, "min_length"); ok && len(text) < int(min) {
			return validationErrorf(question.Text, "minimum length is %d", int(min))
		}
		if max, ok := ruleNumber(rules, "max_length"); ok && len(text) > int(max) {
			return validationErrorf(question.Text, "maximum length is %d", int(max))
		}
		if pattern, ok := rules["pattern"].(string); ok {
			re, err := regexp.Compile(pattern)
			if err != nil {
				return validationErrorf(question.Text, "invalid pattern %q", pattern)
			}
			if !re.MatchString(text) {
				return validationErrorf(question.Text, "does not match required pattern")
			}
		}
	}

	if number, ok := answerNumber(answer); ok {
		if min, exists := ruleNumber(rules, "min"); exists && number < min {
			return validationErrorf(question.Text, "must be at least %v", min)
		}
		if max, exists := ruleNumber(rules, "max"); exists && number > max {
			return validationErrorf(question.Text, "must be at most %v", max)
		}
	}
	return nil
}

func isOption(options []string, answer any) bool {
	text, ok := answer.(string)
	if !ok {
		return false
	}
	for _, option := range options {
		if option == text {
			return true
		}
	}
	return false
}

func answerNumber(answer any) (float64, bool) {
	switch v := answer.(type) {
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case float32:
		return float64(v), true
	case float64:
		return v, true
	}
	return 0, false
}

func ruleNumber(rules map[string]any, key string) (float64, bool) {
	value, ok := rules[key]
	if !ok {
		return 0, false
	}
	return answerNumber(value)
}

// Registry maps provider names to instances. It is safe for concurrent use.
type Registry struct {
	mutex     sync.Mutex
	providers map[string]Provider
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{providers: map[string]Provider{}}
}

// DefaultRegistry returns a registry with the built-in console and file
// providers installed.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register("console", NewConsoleProvider(ConsoleOptions{}))
	r.Register("file", NewFileProvider(FileOptions{}))
	return r
}

// Register installs a provider under a name, replacing any previous one.
func (r *Registry) Register(name string, provider Provider) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.providers[name] = provider
}

// Get returns the provider registered under a name.
func (r *Registry) Get(name string) (Provider, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	provider, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("unknown input provider: %s", name)
	}
	return provider, nil
}

// Names lists the registered provider names, sorted.
func (r *Registry) Names() []string {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
