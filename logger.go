package pulsar

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
)

// NewLogger returns the logger used for interactive runs: tinted,
// human-readable records on stdout, colorized when stdout is a terminal.
func NewLogger() *slog.Logger {
	return NewLoggerWithWriter(os.Stdout)
}

// NewLoggerWithWriter is NewLogger directed at an arbitrary writer. Color is
// enabled only when the writer is a terminal.
func NewLoggerWithWriter(w io.Writer) *slog.Logger {
	noColor := true
	if f, ok := w.(*os.File); ok {
		noColor = !isatty.IsTerminal(f.Fd())
	}
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      slog.LevelInfo,
		TimeFormat: time.RFC3339,
		NoColor:    noColor,
	}))
}

// NewJSONLogger returns a logger emitting one JSON record per line, for
// machine-read run output.
func NewJSONLogger(w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stdout
	}
	return slog.New(slog.NewJSONHandler(w, nil))
}
