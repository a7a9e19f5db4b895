package interact

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// FileOptions configure a FileProvider.
type FileOptions struct {
	// Dir is where answer files are expected. Defaults to ./input_responses.
	Dir string

	// Filename overrides the per-request filename. When empty, the request
	// metadata "filename" is used, then a timestamped default.
	Filename string

	// PollInterval is how often the provider checks for the answer file.
	// Defaults to one second.
	PollInterval time.Duration
}

// FileProvider waits for a JSON answers file to appear on disk, for runs
// where a human (or another process) responds out of band.
type FileProvider struct {
	dir          string
	filename     string
	pollInterval time.Duration
}

// NewFileProvider returns a provider watching opts.Dir.
func NewFileProvider(opts FileOptions) *FileProvider {
	dir := opts.Dir
	if dir == "" {
		dir = "./input_responses"
	}
	interval := opts.PollInterval
	if interval <= 0 {
		interval = time.Second
	}
	return &FileProvider{
		dir:          dir,
		filename:     opts.Filename,
		pollInterval: interval,
	}
}

// CanHandle always reports true.
func (p *FileProvider) CanHandle(request *Request) bool {
	return true
}

// GetInput polls until the answer file exists, then parses and validates it.
// The wait is bounded only by the context.
func (p *FileProvider) GetInput(ctx context.Context, request *Request) (*Response, error) {
	if err := os.MkdirAll(p.dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating input directory: %w", err)
	}
	path := filepath.Join(p.dir, p.requestFilename(request))

	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()
	for {
		if _, err := os.Stat(path); err == nil {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, validationErrorf("file_input", "error reading input file: %v", err)
	}
	answers, err := parseAnswers(data, request)
	if err != nil {
		return nil, err
	}

	response := &Response{
		Answers:  answers,
		Metadata: map[string]any{"provider": "file", "filepath": path},
	}
	if err := ValidateResponse(request, response); err != nil {
		return nil, err
	}
	return response, nil
}

func (p *FileProvider) requestFilename(request *Request) string {
	if p.filename != "" {
		return p.filename
	}
	if name, ok := request.Metadata["filename"].(string); ok && name != "" {
		return name
	}
	return fmt.Sprintf("input_%d.json", time.Now().Unix())
}

// parseAnswers maps JSON keys to answer keys. Each question accepts several
// spellings: "question_0", "q0", "0", or the slugified question text.
func parseAnswers(data []byte, request *Request) (map[string]any, error) {
	var parsed map[string]any
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, validationErrorf("file_input", "invalid JSON: %v", err)
	}
	answers := map[string]any{}
	for i, question := range request.Questions {
		for _, key := range []string{
			AnswerKey(i),
			fmt.Sprintf("q%d", i),
			slugify(question.Text),
			fmt.Sprintf("%d", i),
		} {
			if value, ok := parsed[key]; ok {
				answers[AnswerKey(i)] = value
				break
			}
		}
	}
	return answers, nil
}

func slugify(text string) string {
	text = strings.ToLower(text)
	text = strings.ReplaceAll(text, " ", "_")
	return strings.ReplaceAll(text, "?", "")
}
