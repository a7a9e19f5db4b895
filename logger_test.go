package pulsar

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerWithWriter(t *testing.T) {
	var buf strings.Builder
	logger := NewLoggerWithWriter(&buf)
	logger.Info("step completed", "step", "draft")
	logger.Debug("suppressed at info level")

	out := buf.String()
	assert.Contains(t, out, "step completed")
	assert.Contains(t, out, "draft")
	assert.NotContains(t, out, "suppressed")
	assert.NotContains(t, out, "\x1b[", "non-terminal writers get no color codes")
}

func TestNewJSONLogger(t *testing.T) {
	var buf strings.Builder
	logger := NewJSONLogger(&buf)
	logger.Info("workflow run started", "workflow", "article-review")

	var record map[string]any
	require.NoError(t, json.Unmarshal([]byte(buf.String()), &record))
	assert.Equal(t, "workflow run started", record["msg"])
	assert.Equal(t, "article-review", record["workflow"])
}
