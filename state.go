package pulsar

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"
)

// MaxTemplateRenderDepth bounds how many times template substitution may
// re-render its own output before the store reports a circular reference.
const MaxTemplateRenderDepth = 10

var templatePattern = regexp.MustCompile(`\{\{([^{}]+)\}\}`)

// HistoryEntry is one record in the append-only execution history.
type HistoryEntry struct {
	Step      string    `json:"step"`
	Output    any       `json:"output"`
	Timestamp time.Time `json:"timestamp"`
}

// State is the single nested value tree threaded through one workflow run.
// Values are addressed by dot-separated paths; an all-digit segment
// addresses a sequence index, any other segment a mapping key. All
// operations serialize through a single mutex so handlers awaiting external
// I/O can safely share the store.
type State struct {
	mutex       sync.Mutex
	values      map[string]any
	history     []HistoryEntry
	renderDepth int
}

// NewState creates a store seeded from an initial snapshot. The seed is
// deep-copied; the caller keeps no handle into store internals.
func NewState(initial map[string]any) *State {
	values := map[string]any{}
	if initial != nil {
		values = deepCopyMap(initial)
	}
	return &State{values: values}
}

// Set writes a value at the given path, creating absent intermediate
// containers along the way: a mapping by default, a sequence when the next
// segment is numeric. An existing container whose kind conflicts with what
// the next segment requires is replaced by a fresh container of the required
// kind. Writing a sequence index beyond the current length pads intervening
// slots first.
func (s *State) Set(path string, value any) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	segments := strings.Split(path, ".")
	first := segments[0]
	if len(segments) == 1 {
		s.values[first] = value
		return
	}
	s.values[first] = setNested(s.values[first], segments[1:], value)
}

// Get reads a value at the given path, returning def on any absent key,
// out-of-range index, or container mismatch. It never fails.
func (s *State) Get(path string, def any) any {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	var current any = s.values
	for _, segment := range strings.Split(path, ".") {
		switch c := current.(type) {
		case map[string]any:
			value, ok := c[segment]
			if !ok {
				return def
			}
			current = value
		case []any:
			if !isAllDigits(segment) {
				return def
			}
			idx, _ := strconv.Atoi(segment)
			if idx >= len(c) {
				return def
			}
			current = c[idx]
		default:
			return def
		}
	}
	return current
}

// RenderTemplate substitutes {{path}} placeholders from the current state.
// A referenced-but-absent path is a hard error rather than a blank
// substitution, and output containing further placeholders is re-rendered up
// to MaxTemplateRenderDepth.
func (s *State) RenderTemplate(text string) (string, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.renderLocked(text)
}

func (s *State) renderLocked(text string) (string, error) {
	if s.renderDepth >= MaxTemplateRenderDepth {
		return "", stateErrorf("template rendering depth exceeded (possible circular reference)")
	}
	s.renderDepth++
	defer func() { s.renderDepth-- }()

	var renderErr error
	result := templatePattern.ReplaceAllStringFunc(text, func(match string) string {
		if renderErr != nil {
			return match
		}
		path := strings.TrimSpace(match[2 : len(match)-2])
		value, ok := s.lookup(path)
		if !ok {
			renderErr = stateErrorf("template variable %q is not defined", path)
			return match
		}
		return formatValue(value)
	})
	if renderErr != nil {
		return "", renderErr
	}
	if templatePattern.MatchString(result) {
		return s.renderLocked(result)
	}
	return result, nil
}

// lookup resolves a dotted path without a default, reporting existence.
// Callers must hold the mutex.
func (s *State) lookup(path string) (any, bool) {
	var current any = s.values
	for _, segment := range strings.Split(path, ".") {
		switch c := current.(type) {
		case map[string]any:
			value, ok := c[segment]
			if !ok {
				return nil, false
			}
			current = value
		case []any:
			if !isAllDigits(segment) {
				return nil, false
			}
			idx, _ := strconv.Atoi(segment)
			if idx >= len(c) {
				return nil, false
			}
			current = c[idx]
		default:
			return nil, false
		}
	}
	return current, true
}

// RecordHistory appends an immutable step/output entry to the history log.
// The log is independent of the state tree and is never rewritten.
func (s *State) RecordHistory(step string, output any) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.history = append(s.history, HistoryEntry{
		Step:      step,
		Output:    deepCopyValue(output),
		Timestamp: time.Now(),
	})
}

// Snapshot returns an independent deep copy of the state tree.
func (s *State) Snapshot() map[string]any {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return deepCopyMap(s.values)
}

// HistorySnapshot returns an independent deep copy of the history log.
func (s *State) HistorySnapshot() []HistoryEntry {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	entries := make([]HistoryEntry, len(s.history))
	for i, entry := range s.history {
		entries[i] = HistoryEntry{
			Step:      entry.Step,
			Output:    deepCopyValue(entry.Output),
			Timestamp: entry.Timestamp,
		}
	}
	return entries
}

// setNested assigns value under segments, returning the (possibly replaced)
// container for the caller to reattach.
func setNested(container any, segments []string, value any) any {
	segment := segments[0]
	terminal := len(segments) == 1

	if isAllDigits(segment) {
		idx, _ := strconv.Atoi(segment)
		list, _ := container.([]any)
		for len(list) <= idx {
			if terminal {
				list = append(list, nil)
			} else {
				list = append(list, map[string]any{})
			}
		}
		if terminal {
			list[idx] = value
		} else {
			list[idx] = setNested(list[idx], segments[1:], value)
		}
		return list
	}

	m, ok := container.(map[string]any)
	if !ok {
		m = map[string]any{}
	}
	if terminal {
		m[segment] = value
	} else {
		m[segment] = setNested(m[segment], segments[1:], value)
	}
	return m
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func deepCopyMap(m map[string]any) map[string]any {
	copied := make(map[string]any, len(m))
	for k, v := range m {
		copied[k] = deepCopyValue(v)
	}
	return copied
}

func deepCopyValue(value any) any {
	switch v := value.(type) {
	case map[string]any:
		return deepCopyMap(v)
	case []any:
		copied := make([]any, len(v))
		for i, item := range v {
			copied[i] = deepCopyValue(item)
		}
		return copied
	default:
		return value
	}
}

// formatValue renders a state value for template substitution. Containers
// are rendered as JSON; integral numbers render without a decimal point.
func formatValue(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		if v == math.Trunc(v) && math.Abs(v) < 1e15 {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'g', -1, 64)
	case map[string]any, []any:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(data)
	default:
		return fmt.Sprintf("%v", v)
	}
}
