package pulsar

import (
	"os"

	"github.com/lsalihi/pulsar-compose/expr"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// AgentSpec declares a named LLM agent a workflow's steps may invoke.
type AgentSpec struct {
	Provider   string         `json:"provider" yaml:"provider" mapstructure:"provider"`
	Model      string         `json:"model" yaml:"model" mapstructure:"model"`
	Prompt     string         `json:"prompt,omitempty" yaml:"prompt,omitempty" mapstructure:"prompt"`
	Parameters map[string]any `json:"parameters,omitempty" yaml:"parameters,omitempty" mapstructure:"parameters"`
}

// Options are used to configure a workflow.
type Options struct {
	Name    string
	Version string
	Agents  map[string]*AgentSpec
	Steps   []Step
}

// Workflow is a validated, immutable workflow definition: named agents plus
// an ordered list of steps.
type Workflow struct {
	name    string
	version string
	agents  map[string]*AgentSpec
	steps   []Step
}

// New returns a new Workflow configured with the given options.
func New(opts Options) (*Workflow, error) {
	if opts.Name == "" {
		return nil, definitionErrorf("workflow name required")
	}
	if len(opts.Steps) == 0 {
		return nil, definitionErrorf("workflow must have at least one step")
	}
	seen := make(map[string]bool, len(opts.Steps))
	for _, step := range opts.Steps {
		if step.StepName() == "" {
			return nil, definitionErrorf("step name required")
		}
		if seen[step.StepName()] {
			return nil, definitionErrorf("duplicate step name %q", step.StepName())
		}
		seen[step.StepName()] = true
	}
	if err := validateAgentRefs(opts.Steps, opts.Agents); err != nil {
		return nil, err
	}
	return &Workflow{
		name:    opts.Name,
		version: opts.Version,
		agents:  opts.Agents,
		steps:   opts.Steps,
	}, nil
}

// Name returns the workflow name.
func (w *Workflow) Name() string {
	return w.name
}

// Version returns the document version string.
func (w *Workflow) Version() string {
	return w.version
}

// Steps returns the workflow steps in execution order.
func (w *Workflow) Steps() []Step {
	return w.steps
}

// Agents returns the declared agents by name.
func (w *Workflow) Agents() map[string]*AgentSpec {
	return w.agents
}

// GetAgent returns a declared agent by name.
func (w *Workflow) GetAgent(name string) (*AgentSpec, bool) {
	spec, ok := w.agents[name]
	return spec, ok
}

// LintConditions checks every conditional guard in the workflow for parse
// errors without evaluating anything. It returns one error per bad guard.
func (w *Workflow) LintConditions() []error {
	var errs []error
	var walk func(steps []Step)
	walk = func(steps []Step) {
		for _, step := range steps {
			cond, ok := step.(*ConditionalStep)
			if !ok {
				continue
			}
			if !expr.Validate(cond.Condition) {
				errs = append(errs, definitionErrorf(
					"step %q: condition %q does not parse", cond.Name, cond.Condition))
			}
			walk(cond.Then)
			walk(cond.Else)
		}
	}
	walk(w.steps)
	return errs
}

// validateAgentRefs confirms every agent step, including those nested inside
// conditional branches, names a declared agent.
func validateAgentRefs(steps []Step, agents map[string]*AgentSpec) error {
	for _, step := range steps {
		switch s := step.(type) {
		case *AgentStep:
			if s.Agent == "" {
				return definitionErrorf("agent step %q does not name an agent", s.Name)
			}
			if _, ok := agents[s.Agent]; !ok {
				return definitionErrorf("step %q references undeclared agent %q", s.Name, s.Agent)
			}
		case *ConditionalStep:
			if err := validateAgentRefs(s.Then, agents); err != nil {
				return err
			}
			if err := validateAgentRefs(s.Else, agents); err != nil {
				return err
			}
		}
	}
	return nil
}

// document is the raw YAML shape of a workflow file. Steps are decoded in a
// second pass because their concrete type depends on each mapping's "type"
// field.
type document struct {
	Version  string                `yaml:"version"`
	Name     string                `yaml:"name"`
	Agents   map[string]*AgentSpec `yaml:"agents"`
	Workflow []map[string]any      `yaml:"workflow"`
}

// LoadFile loads a workflow from a YAML file.
func LoadFile(path string) (*Workflow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, definitionErrorf("failed to read workflow file: %v", err)
	}
	return LoadString(string(data))
}

// LoadString loads a workflow from a YAML string.
func LoadString(data string) (*Workflow, error) {
	var doc document
	if err := yaml.Unmarshal([]byte(data), &doc); err != nil {
		return nil, definitionErrorf("failed to unmarshal workflow file: %v", err)
	}
	steps, err := decodeSteps(doc.Workflow)
	if err != nil {
		return nil, err
	}
	return New(Options{
		Name:    doc.Name,
		Version: doc.Version,
		Agents:  doc.Agents,
		Steps:   steps,
	})
}

func decodeSteps(raw []map[string]any) ([]Step, error) {
	steps := make([]Step, 0, len(raw))
	for _, mapping := range raw {
		step, err := decodeStep(mapping)
		if err != nil {
			return nil, err
		}
		steps = append(steps, step)
	}
	return steps, nil
}

func decodeStep(raw map[string]any) (Step, error) {
	kind, _ := raw["type"].(string)
	name, _ := raw["step"].(string)
	switch kind {
	case "agent":
		var step AgentStep
		if err := decodeInto(raw, &step); err != nil {
			return nil, definitionErrorf("step %q: %v", name, err)
		}
		return &step, nil
	case "conditional":
		var shape struct {
			Step string           `mapstructure:"step"`
			If   string           `mapstructure:"if"`
			Then []map[string]any `mapstructure:"then"`
			Else []map[string]any `mapstructure:"else"`
		}
		if err := decodeInto(raw, &shape); err != nil {
			return nil, definitionErrorf("step %q: %v", name, err)
		}
		thenSteps, err := decodeSteps(shape.Then)
		if err != nil {
			return nil, err
		}
		elseSteps, err := decodeSteps(shape.Else)
		if err != nil {
			return nil, err
		}
		return &ConditionalStep{
			Name:      shape.Step,
			Condition: shape.If,
			Then:      thenSteps,
			Else:      elseSteps,
		}, nil
	case "interaction":
		var step InteractionStep
		if err := decodeInto(raw, &step); err != nil {
			return nil, definitionErrorf("step %q: %v", name, err)
		}
		return &step, nil
	default:
		// Preserved so the engine can fail the step at run time.
		return &UnknownStep{Name: name, Type: kind, Raw: raw}, nil
	}
}

func decodeInto(raw map[string]any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(raw)
}
