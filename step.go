package pulsar

// Step is one unit of work in a workflow. The concrete kind is selected by
// the "type" field of the step's YAML mapping.
type Step interface {
	// StepName returns the step's unique name within the workflow.
	StepName() string

	// Kind returns the step's type tag as written in the document.
	Kind() string
}

// AgentStep invokes an LLM agent with a rendered prompt and saves the
// response into state.
type AgentStep struct {
	Name       string `json:"step" mapstructure:"step"`
	Agent      string `json:"agent" mapstructure:"agent"`
	Prompt     string `json:"prompt,omitempty" mapstructure:"prompt"`
	Context    string `json:"context,omitempty" mapstructure:"context"`
	SaveTo     string `json:"save_to,omitempty" mapstructure:"save_to"`
	MaxRetries int    `json:"max_retries,omitempty" mapstructure:"max_retries"`
}

func (s *AgentStep) StepName() string { return s.Name }
func (s *AgentStep) Kind() string     { return "agent" }

// SavePath returns the state path the agent response is written to,
// defaulting to the step name.
func (s *AgentStep) SavePath() string {
	if s.SaveTo != "" {
		return s.SaveTo
	}
	return s.Name
}

// ConditionalStep evaluates a guard expression and runs one of two branches.
type ConditionalStep struct {
	Name      string `json:"step" mapstructure:"step"`
	Condition string `json:"if" mapstructure:"if"`
	Then      []Step `json:"then,omitempty" mapstructure:"-"`
	Else      []Step `json:"else,omitempty" mapstructure:"-"`
}

func (s *ConditionalStep) StepName() string { return s.Name }
func (s *ConditionalStep) Kind() string     { return "conditional" }

// InteractionStep pauses the run and collects answers from a human.
type InteractionStep struct {
	Name     string       `json:"step" mapstructure:"step"`
	AskUser  *AskUserSpec `json:"ask_user" mapstructure:"ask_user"`
	SaveTo   string       `json:"save_to,omitempty" mapstructure:"save_to"`
	Provider string       `json:"provider,omitempty" mapstructure:"provider"`
	Timeout  int          `json:"timeout,omitempty" mapstructure:"timeout"`
}

func (s *InteractionStep) StepName() string { return s.Name }
func (s *InteractionStep) Kind() string     { return "interaction" }

// SavePath returns the state path the collected answers are written to,
// defaulting to the step name.
func (s *InteractionStep) SavePath() string {
	if s.SaveTo != "" {
		return s.SaveTo
	}
	return s.Name
}

// AskUserSpec describes the interaction presented to the human.
type AskUserSpec struct {
	Title       string          `json:"title,omitempty" mapstructure:"title"`
	Description string          `json:"description,omitempty" mapstructure:"description"`
	Questions   []*QuestionSpec `json:"questions" mapstructure:"questions"`
}

// QuestionSpec is a single question within an interaction step. Questions
// are required unless the document says otherwise.
type QuestionSpec struct {
	Question    string         `json:"question" mapstructure:"question"`
	Type        string         `json:"type,omitempty" mapstructure:"type"`
	Required    *bool          `json:"required,omitempty" mapstructure:"required"`
	Default     any            `json:"default,omitempty" mapstructure:"default"`
	Placeholder string         `json:"placeholder,omitempty" mapstructure:"placeholder"`
	Options     []string       `json:"options,omitempty" mapstructure:"options"`
	Multiple    bool           `json:"multiple,omitempty" mapstructure:"multiple"`
	Validation  map[string]any `json:"validation,omitempty" mapstructure:"validation"`
}

// IsRequired reports whether an answer must be supplied.
func (q *QuestionSpec) IsRequired() bool {
	return q.Required == nil || *q.Required
}

// QuestionType returns the declared answer type, defaulting to free text.
func (q *QuestionSpec) QuestionType() string {
	if q.Type == "" {
		return "text"
	}
	return q.Type
}

// UnknownStep preserves a step whose type tag no handler recognizes. It is
// kept through loading so the engine can report it as a failed step at run
// time instead of rejecting the whole document.
type UnknownStep struct {
	Name string
	Type string
	Raw  map[string]any
}

func (s *UnknownStep) StepName() string { return s.Name }
func (s *UnknownStep) Kind() string     { return s.Type }
