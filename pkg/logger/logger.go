package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
)

// Level represents the severity of a log message
type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
	FatalLevel
)

// levelFatal sits above slog.LevelError so fatal records are never filtered.
const levelFatal = slog.Level(12)

func (lv Level) slogLevel() slog.Level {
	switch lv {
	case DebugLevel:
		return slog.LevelDebug
	case WarnLevel:
		return slog.LevelWarn
	case ErrorLevel:
		return slog.LevelError
	case FatalLevel:
		return levelFatal
	default:
		return slog.LevelInfo
	}
}

// Logger is the main logger interface
type Logger interface {
	Debug(args ...interface{})
	Debugf(format string, args ...interface{})
	Info(args ...interface{})
	Infof(format string, args ...interface{})
	Warn(args ...interface{})
	Warnf(format string, args ...interface{})
	Error(args ...interface{})
	Errorf(format string, args ...interface{})
	Fatal(args ...interface{})
	Fatalf(format string, args ...interface{})
	WithField(key string, value interface{}) Logger
	WithFields(fields map[string]interface{}) Logger
	WithPrefix(prefix string) Logger
	// Slog returns the underlying structured logger.
	Slog() *slog.Logger
}

// Config holds logger configuration
type Config struct {
	Level    Level
	Writer   io.Writer
	NoColor  bool
	ShowTime bool
}

// output is shared by a logger and everything derived from it.
type output struct {
	mu       sync.Mutex
	w        io.Writer
	level    slog.LevelVar
	noColor  bool
	showTime bool
}

var (
	timeColor   = color.New(color.FgHiBlack)
	prefixColor = color.New(color.FgCyan)
	fieldColor  = color.New(color.FgHiBlack)
	levelColors = map[slog.Level]*color.Color{
		slog.LevelDebug: color.New(color.FgHiBlack),
		slog.LevelInfo:  color.New(color.FgGreen),
		slog.LevelWarn:  color.New(color.FgYellow),
		slog.LevelError: color.New(color.FgRed),
		levelFatal:      color.New(color.FgRed, color.Bold),
	}
)

// paint colors s unless color output is disabled.
func (o *output) paint(c *color.Color, s string) string {
	if o.noColor || c == nil {
		return s
	}
	return c.Sprint(s)
}

// consoleHandler renders records as single human-readable lines:
// time, level, [prefix], fields, message.
type consoleHandler struct {
	out    *output
	prefix string
	attrs  []slog.Attr
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.out.level.Level()
}

func (h *consoleHandler) Handle(_ context.Context, r slog.Record) error {
	h.out.mu.Lock()
	defer h.out.mu.Unlock()

	var parts []string
	if h.out.showTime {
		ts := r.Time
		if ts.IsZero() {
			ts = time.Now()
		}
		parts = append(parts, h.out.paint(timeColor, ts.Format("15:04:05")))
	}
	parts = append(parts, h.out.paint(levelColors[r.Level], levelLabel(r.Level)))

	if h.prefix != "" {
		parts = append(parts, h.out.paint(prefixColor, "["+h.prefix+"]"))
	}

	fields := make([]string, 0, len(h.attrs)+r.NumAttrs())
	for _, a := range h.attrs {
		fields = append(fields, formatAttr(a))
	}
	r.Attrs(func(a slog.Attr) bool {
		fields = append(fields, formatAttr(a))
		return true
	})
	if len(fields) > 0 {
		parts = append(parts, h.out.paint(fieldColor, strings.Join(fields, " ")))
	}

	parts = append(parts, r.Message)
	_, err := fmt.Fprintln(h.out.w, strings.Join(parts, " "))
	return err
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &consoleHandler{
		out:    h.out,
		prefix: h.prefix,
		attrs:  append(append([]slog.Attr(nil), h.attrs...), attrs...),
	}
}

// WithGroup is a no-op: the console format has no nesting.
func (h *consoleHandler) WithGroup(string) slog.Handler {
	return h
}

func levelLabel(level slog.Level) string {
	switch {
	case level >= levelFatal:
		return "FATAL"
	case level >= slog.LevelError:
		return "ERROR"
	case level >= slog.LevelWarn:
		return "WARN "
	case level >= slog.LevelInfo:
		return "INFO "
	default:
		return "DEBUG"
	}
}

func formatAttr(a slog.Attr) string {
	return fmt.Sprintf("%s=%v", a.Key, a.Value.Resolve())
}

// logger implements the Logger interface
type logger struct {
	out     *output
	handler *consoleHandler
	sl      *slog.Logger
}

// exit is swapped out in tests.
var exit = os.Exit

// Default logger instance
var defaultLogger = New()

// New creates a new logger with default configuration
func New() Logger {
	return NewWithConfig(Config{
		Level:    InfoLevel,
		Writer:   os.Stdout,
		NoColor:  false,
		ShowTime: true,
	})
}

// NewWithConfig creates a new logger with custom configuration
func NewWithConfig(cfg Config) Logger {
	out := &output{
		w:        cfg.Writer,
		noColor:  cfg.NoColor,
		showTime: cfg.ShowTime,
	}
	if out.w == nil {
		out.w = os.Stdout
	}
	out.level.Set(cfg.Level.slogLevel())
	return newLogger(&consoleHandler{out: out})
}

func newLogger(h *consoleHandler) *logger {
	return &logger{out: h.out, handler: h, sl: slog.New(h)}
}

// Default returns the process-wide logger.
func Default() Logger { return defaultLogger }

func defaultOutput() *output {
	if l, ok := defaultLogger.(*logger); ok {
		return l.out
	}
	return nil
}

// SetLevel sets the global log level
func SetLevel(level Level) {
	if o := defaultOutput(); o != nil {
		o.level.Set(level.slogLevel())
	}
}

// DebugEnabled reports whether debug messages are currently printed.
func DebugEnabled() bool {
	if o := defaultOutput(); o != nil {
		return o.level.Level() <= slog.LevelDebug
	}
	return false
}

// SetNoColor disables color output
func SetNoColor(noColor bool) {
	if o := defaultOutput(); o != nil {
		o.mu.Lock()
		o.noColor = noColor
		o.mu.Unlock()
	}
}

// SetOutput redirects the default logger and the console helpers.
func SetOutput(w io.Writer) {
	if o := defaultOutput(); o != nil {
		o.mu.Lock()
		o.w = w
		o.mu.Unlock()
	}
}

// Helper methods for the default logger
func Debug(args ...interface{})                       { defaultLogger.Debug(args...) }
func Debugf(format string, args ...interface{})       { defaultLogger.Debugf(format, args...) }
func Info(args ...interface{})                        { defaultLogger.Info(args...) }
func Infof(format string, args ...interface{})        { defaultLogger.Infof(format, args...) }
func Warn(args ...interface{})                        { defaultLogger.Warn(args...) }
func Warnf(format string, args ...interface{})        { defaultLogger.Warnf(format, args...) }
func Error(args ...interface{})                       { defaultLogger.Error(args...) }
func Errorf(format string, args ...interface{})       { defaultLogger.Errorf(format, args...) }
func Fatal(args ...interface{})                       { defaultLogger.Fatal(args...) }
func Fatalf(format string, args ...interface{})       { defaultLogger.Fatalf(format, args...) }
func WithField(key string, value interface{}) Logger  { return defaultLogger.WithField(key, value) }
func WithFields(fields map[string]interface{}) Logger { return defaultLogger.WithFields(fields) }
func WithPrefix(prefix string) Logger                 { return defaultLogger.WithPrefix(prefix) }

func (l *logger) log(level Level, msg string) {
	l.sl.Log(context.Background(), level.slogLevel(), msg)
	if level == FatalLevel {
		exit(1)
	}
}

func (l *logger) Debug(args ...interface{}) { l.log(DebugLevel, fmt.Sprint(args...)) }
func (l *logger) Info(args ...interface{})  { l.log(InfoLevel, fmt.Sprint(args...)) }
func (l *logger) Warn(args ...interface{})  { l.log(WarnLevel, fmt.Sprint(args...)) }
func (l *logger) Error(args ...interface{}) { l.log(ErrorLevel, fmt.Sprint(args...)) }
func (l *logger) Fatal(args ...interface{}) { l.log(FatalLevel, fmt.Sprint(args...)) }

func (l *logger) Debugf(format string, args ...interface{}) {
	l.log(DebugLevel, fmt.Sprintf(format, args...))
}

func (l *logger) Infof(format string, args ...interface{}) {
	l.log(InfoLevel, fmt.Sprintf(format, args...))
}

func (l *logger) Warnf(format string, args ...interface{}) {
	l.log(WarnLevel, fmt.Sprintf(format, args...))
}

func (l *logger) Errorf(format string, args ...interface{}) {
	l.log(ErrorLevel, fmt.Sprintf(format, args...))
}

func (l *logger) Fatalf(format string, args ...interface{}) {
	l.log(FatalLevel, fmt.Sprintf(format, args...))
}

func (l *logger) WithField(key string, value interface{}) Logger {
	return newLogger(l.handler.WithAttrs([]slog.Attr{slog.Any(key, value)}).(*consoleHandler))
}

// WithFields adds fields in key order so output is stable.
func (l *logger) WithFields(fields map[string]interface{}) Logger {
	attrs := make([]slog.Attr, 0, len(fields))
	for _, k := range sortedKeys(fields) {
		attrs = append(attrs, slog.Any(k, fields[k]))
	}
	return newLogger(l.handler.WithAttrs(attrs).(*consoleHandler))
}

func (l *logger) WithPrefix(prefix string) Logger {
	return newLogger(&consoleHandler{out: l.out, prefix: prefix, attrs: l.handler.attrs})
}

func (l *logger) Slog() *slog.Logger { return l.sl }

// ParseLevel parses a string log level
func ParseLevel(level string) Level {
	switch strings.ToLower(level) {
	case "debug":
		return DebugLevel
	case "info":
		return InfoLevel
	case "warn", "warning":
		return WarnLevel
	case "error":
		return ErrorLevel
	case "fatal":
		return FatalLevel
	default:
		return InfoLevel
	}
}
