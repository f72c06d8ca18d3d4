// Package logging configures the zerolog logger used across rawhttp and
// provides the optional request log of serve mode.
package logging

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"

	"github.com/DimaGolomozy/rawhttp/internal/transport"
)

// EnvLevel names the environment variable that overrides the log level.
const EnvLevel = "RAWHTTP_LOG_LEVEL"

// New returns a human-readable logger writing to w. An unknown level falls
// back to info after saying so on w.
func New(w io.Writer, level string) zerolog.Logger {
	lvl := zerolog.InfoLevel
	if level != "" {
		parsed, err := zerolog.ParseLevel(strings.ToLower(level))
		if err != nil || parsed == zerolog.NoLevel {
			fmt.Fprintf(w, "invalid log level %s, using info\n", level)
		} else {
			lvl = parsed
		}
	}

	out := zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339, NoColor: !isTerminal(w)}
	return zerolog.New(out).Level(lvl).With().Timestamp().Logger()
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(interface{ Fd() uintptr })
	return ok && isatty.IsTerminal(f.Fd())
}

// RequestLogger writes one line per served exchange.
type RequestLogger struct {
	log zerolog.Logger
}

// NewRequestLogger logs served exchanges on log under the "requests" component.
func NewRequestLogger(log zerolog.Logger) *RequestLogger {
	return &RequestLogger{log: log.With().Str("component", "requests").Logger()}
}

// Observe implements transport.Observer.
func (rl *RequestLogger) Observe(ex transport.Exchange) {
	ev := rl.log.Info()
	if ex.Err != nil {
		ev = rl.log.Warn().Err(ex.Err)
	}
	if ex.Remote != nil {
		ev = ev.Str("remote", ex.Remote.String())
	}
	if ex.Request != nil {
		ev = ev.Str("method", ex.Request.Method).
			Str("path", ex.Request.Path()).
			Str("version", ex.Request.Version)
	}
	ev.Int("status", ex.Status).
		Dur("duration", ex.Duration).
		Msg("request")
}
