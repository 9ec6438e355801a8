// Package logging wraps github.com/rs/zerolog behind a package-level
// logger plus contextual child loggers, the way cuemby-warren's pkg/log
// wraps it. Unlike that package's fixed WithComponent/WithNodeID/
// WithServiceID helpers, With here takes arbitrary key/value pairs since
// the fields this tool logs (node address, command kind, attempt number,
// group, skew) vary by component.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Level mirrors the handful of levels the CLI exposes as a flag.
type Level string

const (
	DebugLevel Level = "debug"
	InfoLevel  Level = "info"
	WarnLevel  Level = "warn"
	ErrorLevel Level = "error"
)

// Config configures the package-level logger.
type Config struct {
	Level  Level
	JSON   bool
	Output io.Writer
}

var base zerolog.Logger

func init() {
	Init(Config{Level: InfoLevel})
}

// Init (re)configures the package-level logger. The CLI calls this once,
// early, from the resolved --verbose/--json-log flags.
func Init(cfg Config) {
	var level zerolog.Level
	switch cfg.Level {
	case DebugLevel:
		level = zerolog.DebugLevel
	case WarnLevel:
		level = zerolog.WarnLevel
	case ErrorLevel:
		level = zerolog.ErrorLevel
	default:
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}

	if cfg.JSON {
		base = zerolog.New(output).With().Timestamp().Logger()
	} else {
		base = zerolog.New(zerolog.ConsoleWriter{Out: output, TimeFormat: time.RFC3339}).With().Timestamp().Logger()
	}
}

// Logger is a thin handle over a zerolog.Logger that accepts loosely
// typed key/value pairs, so call sites don't need to import zerolog
// themselves.
type Logger struct {
	z zerolog.Logger
}

// With returns a child logger carrying kv (alternating key, value) in
// addition to whatever fields l already carries.
func (l Logger) With(kv ...interface{}) Logger {
	ctx := l.z.With()
	for i := 0; i+1 < len(kv); i += 2 {
		key, _ := kv[i].(string)
		ctx = ctx.Interface(key, kv[i+1])
	}
	return Logger{z: ctx.Logger()}
}

func (l Logger) event(e *zerolog.Event, msg string, kv ...interface{}) {
	for i := 0; i+1 < len(kv); i += 2 {
		key, _ := kv[i].(string)
		e = e.Interface(key, kv[i+1])
	}
	e.Msg(msg)
}

func (l Logger) Debug(msg string, kv ...interface{}) { l.event(l.z.Debug(), msg, kv...) }
func (l Logger) Info(msg string, kv ...interface{})  { l.event(l.z.Info(), msg, kv...) }
func (l Logger) Warn(msg string, kv ...interface{})  { l.event(l.z.Warn(), msg, kv...) }
func (l Logger) Error(msg string, kv ...interface{}) { l.event(l.z.Error(), msg, kv...) }

// With returns a child of the package-level logger carrying kv.
func With(kv ...interface{}) Logger {
	return Logger{z: base}.With(kv...)
}

// Default returns the package-level logger with no extra fields.
func Default() Logger {
	return Logger{z: base}
}
