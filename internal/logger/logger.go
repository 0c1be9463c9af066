// Package logger provides the leveled, structured logging surface used
// throughout the injector: Tracef/Debugf/Infof/Warnf/Errorf over log/slog,
// with a text or JSON handler and an optional rotating file target.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Severity mirrors the FUSE-adjacent vocabulary the CLI's --verbose flag
// accepts: trace, debug, info, warn, error, off.
type Severity int

const (
	OFF Severity = iota
	ERROR
	WARN
	INFO
	DEBUG
	TRACE
)

// traceLevel is below slog's built-in Debug so --verbose=trace can still be
// distinguished from --verbose=debug in the rendered severity tag.
const traceLevel = slog.Level(-8)

func (s Severity) level() slog.Level {
	switch s {
	case ERROR:
		return slog.LevelError
	case WARN:
		return slog.LevelWarn
	case INFO:
		return slog.LevelInfo
	case DEBUG:
		return slog.LevelDebug
	case TRACE:
		return traceLevel
	default:
		// OFF: set the handler above the highest level we ever emit.
		return slog.LevelError + 1
	}
}

// ParseSeverity accepts the same casing the original flag did ("trace",
// "Debug", "INFO", ...).
func ParseSeverity(s string) Severity {
	switch lower(s) {
	case "off":
		return OFF
	case "error":
		return ERROR
	case "warn", "warning":
		return WARN
	case "info":
		return INFO
	case "debug":
		return DEBUG
	default:
		return TRACE
	}
}

func lower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

type factory struct {
	format string // "text" or "json"
}

func (f factory) handler(w io.Writer, level *slog.LevelVar, prefix string) slog.Handler {
	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.MessageKey && prefix != "" {
				a.Value = slog.StringValue(prefix + a.Value.String())
			}
			if a.Key == slog.LevelKey {
				a.Key = "severity"
				a.Value = slog.StringValue(severityName(a.Value.Any().(slog.Level)))
			}
			return a
		},
	}
	if f.format == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

func severityName(l slog.Level) string {
	switch {
	case l <= traceLevel:
		return "TRACE"
	case l < slog.LevelInfo:
		return "DEBUG"
	case l < slog.LevelWarn:
		return "INFO"
	case l < slog.LevelError:
		return "WARNING"
	default:
		return "ERROR"
	}
}

var (
	defaultFactory = factory{format: "text"}
	programLevel   = new(slog.LevelVar)
	defaultLogger  = slog.New(defaultFactory.handler(os.Stdout, programLevel, ""))
	sessionAttrs   []any
)

// Init (re)configures the default logger for the process: level, format
// (text or json), and an optional rotating log file alongside stdout.
func Init(sev Severity, format string, logFilePath string) {
	defaultFactory.format = format
	programLevel.Set(sev.level())

	var w io.Writer = os.Stdout
	if logFilePath != "" {
		w = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   logFilePath,
			MaxSize:    50, // megabytes
			MaxBackups: 3,
			MaxAge:     7, // days
		})
	}

	defaultLogger = slog.New(defaultFactory.handler(w, programLevel, ""))
}

// WithSession attaches a session identifier to every subsequent log line,
// so operators can grep shared logs for one injection run.
func WithSession(id string) {
	sessionAttrs = []any{"session", id}
}

func log(level slog.Level, format string, args []any) {
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	defaultLogger.Log(context.Background(), level, msg, sessionAttrs...)
}

func Tracef(format string, args ...any) { log(traceLevel, format, args) }
func Debugf(format string, args ...any) { log(slog.LevelDebug, format, args) }
func Infof(format string, args ...any)  { log(slog.LevelInfo, format, args) }
func Warnf(format string, args ...any)  { log(slog.LevelWarn, format, args) }
func Errorf(format string, args ...any) { log(slog.LevelError, format, args) }

func Trace(msg string) { log(traceLevel, msg, nil) }
func Debug(msg string) { log(slog.LevelDebug, msg, nil) }
func Info(msg string)  { log(slog.LevelInfo, msg, nil) }
func Warn(msg string)  { log(slog.LevelWarn, msg, nil) }
func Error(msg string) { log(slog.LevelError, msg, nil) }
