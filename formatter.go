package pulsar

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
)

// ExecutionFormatter receives progress events for pretty output.
type ExecutionFormatter interface {
	PrintStepStart(stepName string, stepKind string)
	PrintStepOutput(stepName string, content any)
	PrintStepError(stepName string, err error)
	PrintRunSummary(result *ExecutionResult)
}

// NullFormatter discards all progress events.
type NullFormatter struct{}

func (NullFormatter) PrintStepStart(stepName string, stepKind string) {}
func (NullFormatter) PrintStepOutput(stepName string, content any)   {}
func (NullFormatter) PrintStepError(stepName string, err error)      {}
func (NullFormatter) PrintRunSummary(result *ExecutionResult)        {}

// ConsoleFormatter writes colorized progress to a terminal.
type ConsoleFormatter struct {
	output  io.Writer
	step    *color.Color
	dim     *color.Color
	success *color.Color
	failure *color.Color
}

// NewConsoleFormatter returns a formatter writing to output, defaulting to
// stdout.
func NewConsoleFormatter(output io.Writer) *ConsoleFormatter {
	if output == nil {
		output = os.Stdout
	}
	return &ConsoleFormatter{
		output:  output,
		step:    color.New(color.FgCyan, color.Bold),
		dim:     color.New(color.Faint),
		success: color.New(color.FgGreen, color.Bold),
		failure: color.New(color.FgRed, color.Bold),
	}
}

func (f *ConsoleFormatter) PrintStepStart(stepName string, stepKind string) {
	f.step.Fprintf(f.output, "▶ %s", stepName)
	f.dim.Fprintf(f.output, " (%s)\n", stepKind)
}

func (f *ConsoleFormatter) PrintStepOutput(stepName string, content any) {
	text := fmt.Sprintf("%v", content)
	if len(text) > 200 {
		text = text[:200] + "..."
	}
	f.dim.Fprintf(f.output, "  %s\n", text)
}

func (f *ConsoleFormatter) PrintStepError(stepName string, err error) {
	f.failure.Fprintf(f.output, "✗ %s: %v\n", stepName, err)
}

func (f *ConsoleFormatter) PrintRunSummary(result *ExecutionResult) {
	if result.Success {
		f.success.Fprintf(f.output, "✓ %s completed", result.WorkflowName)
	} else {
		f.failure.Fprintf(f.output, "✗ %s failed", result.WorkflowName)
		if result.Error != "" {
			f.dim.Fprintf(f.output, " (%s)", result.Error)
		}
	}
	f.dim.Fprintf(f.output, " in %s, %d step(s)\n",
		result.Duration.Round(time.Millisecond), len(result.StepResults))
}
