package pulsar

import "fmt"

// PlanStep is one row of a dry-run plan: what would execute, in order,
// without calling any provider.
type PlanStep struct {
	Name   string `json:"name"`
	Kind   string `json:"kind"`
	Detail string `json:"detail,omitempty"`
	Branch string `json:"branch,omitempty"`
	Depth  int    `json:"depth"`
}

// Plan returns the workflow's steps flattened in document order, with
// conditional branches indented beneath their guard.
func (w *Workflow) Plan() []PlanStep {
	var plan []PlanStep
	var walk func(steps []Step, branch string, depth int)
	walk = func(steps []Step, branch string, depth int) {
		for _, step := range steps {
			entry := PlanStep{
				Name:   step.StepName(),
				Kind:   step.Kind(),
				Branch: branch,
				Depth:  depth,
			}
			switch s := step.(type) {
			case *AgentStep:
				entry.Detail = fmt.Sprintf("agent %s", s.Agent)
			case *ConditionalStep:
				entry.Detail = fmt.Sprintf("if %s", s.Condition)
			case *InteractionStep:
				count := 0
				if s.AskUser != nil {
					count = len(s.AskUser.Questions)
				}
				entry.Detail = fmt.Sprintf("%d question(s)", count)
			}
			plan = append(plan, entry)
			if s, ok := step.(*ConditionalStep); ok {
				walk(s.Then, "then", depth+1)
				walk(s.Else, "else", depth+1)
			}
		}
	}
	walk(w.steps, "", 0)
	return plan
}
