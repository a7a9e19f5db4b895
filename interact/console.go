package interact

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
)

// ConsoleOptions configure a ConsoleProvider. Zero values mean stdin/stdout
// with progress output enabled.
type ConsoleOptions struct {
	Input        io.Reader
	Output       io.Writer
	HideProgress bool
}

// ConsoleProvider prompts on a terminal, one question at a time.
type ConsoleProvider struct {
	input        *bufio.Reader
	output       io.Writer
	showProgress bool

	title    *color.Color
	dim      *color.Color
	question *color.Color
	ok       *color.Color
	warn     *color.Color
}

// NewConsoleProvider returns a provider reading from opts.Input and writing
// to opts.Output.
func NewConsoleProvider(opts ConsoleOptions) *ConsoleProvider {
	input := opts.Input
	if input == nil {
		input = os.Stdin
	}
	output := opts.Output
	if output == nil {
		output = os.Stdout
	}
	return &ConsoleProvider{
		input:        bufio.NewReader(input),
		output:       output,
		showProgress: !opts.HideProgress,
		title:        color.New(color.FgBlue, color.Bold),
		dim:          color.New(color.Faint),
		question:     color.New(color.FgCyan, color.Bold),
		ok:           color.New(color.FgGreen),
		warn:         color.New(color.FgRed),
	}
}

// CanHandle always reports true; the console can present any request.
func (p *ConsoleProvider) CanHandle(request *Request) bool {
	return true
}

// GetInput walks the questions in order. The prompt loop runs in its own
// goroutine so a context deadline interrupts a stalled read.
func (p *ConsoleProvider) GetInput(ctx context.Context, request *Request) (*Response, error) {
	type outcome struct {
		response *Response
		err      error
	}
	done := make(chan outcome, 1)
	go func() {
		response, err := p.collect(request)
		done <- outcome{response, err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case result := <-done:
		return result.response, result.err
	}
}

func (p *ConsoleProvider) collect(request *Request) (*Response, error) {
	if title, ok := request.Metadata["title"].(string); ok && title != "" {
		p.title.Fprintf(p.output, "== %s ==\n", title)
	}
	if desc, ok := request.Metadata["description"].(string); ok && desc != "" {
		p.dim.Fprintf(p.output, "%s\n", desc)
	}

	answers := map[string]any{}
	for i, question := range request.Questions {
		if p.showProgress {
			p.dim.Fprintf(p.output, "Question %d of %d\n", i+1, len(request.Questions))
		}
		answer, err := p.ask(question)
		if err != nil {
			return nil, validationErrorf(question.Text, "input error: %v", err)
		}
		answers[AnswerKey(i)] = answer
		if p.showProgress {
			p.ok.Fprintf(p.output, "answer recorded\n\n")
		}
	}
	return &Response{
		Answers:  answers,
		Metadata: map[string]any{"provider": "console", "completed_at": time.Now()},
	}, nil
}

func (p *ConsoleProvider) ask(question *Question) (any, error) {
	p.question.Fprintf(p.output, "%s\n", question.Text)
	if question.Placeholder != "" {
		p.dim.Fprintf(p.output, "%s\n", question.Placeholder)
	}
	if question.Default != nil {
		p.dim.Fprintf(p.output, "Default: %v\n", question.Default)
	}

	switch question.Type {
	case TypeMultipleChoice:
		return p.askChoice(question)
	case TypeNumber:
		return p.askNumber(question)
	case TypeBoolean:
		return p.askBoolean(question)
	case TypeText, "":
		return p.askText(question)
	}
	return nil, fmt.Errorf("unsupported question type: %s", question.Type)
}

func (p *ConsoleProvider) askText(question *Question) (any, error) {
	line, err := p.readLine("> ")
	if err != nil {
		return nil, err
	}
	if line == "" && question.Default != nil {
		return question.Default, nil
	}
	return line, nil
}

func (p *ConsoleProvider) askChoice(question *Question) (any, error) {
	if len(question.Options) == 0 {
		return nil, fmt.Errorf("multiple choice question must have options")
	}
	for i, option := range question.Options {
		fmt.Fprintf(p.output, "  %d) %s\n", i+1, option)
	}

	if question.Multiple {
		for {
			line, err := p.readLine("Enter option numbers (comma-separated): ")
			if err != nil {
				return nil, err
			}
			selected, ok := p.parseSelection(line, len(question.Options))
			if !ok {
				p.warn.Fprintf(p.output, "please enter valid option numbers\n")
				continue
			}
			answers := make([]any, len(selected))
			for i, idx := range selected {
				answers[i] = question.Options[idx]
			}
			return answers, nil
		}
	}

	for {
		line, err := p.readLine("Enter option number: ")
		if err != nil {
			return nil, err
		}
		idx, err := strconv.Atoi(line)
		if err != nil || idx < 1 || idx > len(question.Options) {
			p.warn.Fprintf(p.output, "please enter a number between 1 and %d\n", len(question.Options))
			continue
		}
		return question.Options[idx-1], nil
	}
}

func (p *ConsoleProvider) parseSelection(line string, count int) ([]int, bool) {
	var selected []int
	for _, part := range strings.Split(line, ",") {
		idx, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || idx < 1 || idx > count {
			return nil, false
		}
		selected = append(selected, idx-1)
	}
	return selected, len(selected) > 0
}

func (p *ConsoleProvider) askNumber(question *Question) (any, error) {
	for {
		line, err := p.readLine("> ")
		if err != nil {
			return nil, err
		}
		if line == "" && question.Default != nil {
			return question.Default, nil
		}
		number, err := strconv.ParseFloat(line, 64)
		if err != nil {
			p.warn.Fprintf(p.output, "please enter a number\n")
			continue
		}
		return number, nil
	}
}

func (p *ConsoleProvider) askBoolean(question *Question) (any, error) {
	for {
		line, err := p.readLine("[y/n] ")
		if err != nil {
			return nil, err
		}
		switch strings.ToLower(line) {
		case "":
			if question.Default != nil {
				return question.Default, nil
			}
		case "y", "yes", "true", "1":
			return true, nil
		case "n", "no", "false", "0":
			return false, nil
		}
		p.warn.Fprintf(p.output, "please answer y or n\n")
	}
}

func (p *ConsoleProvider) readLine(prompt string) (string, error) {
	fmt.Fprint(p.output, prompt)
	line, err := p.input.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
