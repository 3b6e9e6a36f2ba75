// Package diag carries the ambient logging and error-wrapping stack used
// across every analysis pass, the lowering pipeline, the interpreter, and
// the runtime contract. It is not a generic utility package: its shape
// (leveled, component-tagged, field-based logging; fmt.Errorf("%w")
// wrapping) mirrors the teacher's own kernel/utils package line for line,
// because that is the idiom we are learning, not reinventing.
package diag

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// Level is the severity of a log message.
type Level int

const (
	Debug Level = iota
	Info
	Warn
	Error
	Fatal
)

var levelNames = map[Level]string{
	Debug: "DEBUG",
	Info:  "INFO",
	Warn:  "WARN",
	Error: "ERROR",
	Fatal: "FATAL",
}

// Logger is a leveled, component-tagged, field-based logger.
type Logger struct {
	mu        sync.Mutex
	level     Level
	component string
	output    io.Writer
}

// Config configures a Logger.
type Config struct {
	Level     Level
	Component string
	Output    io.Writer
}

// New creates a Logger from Config.
func New(cfg Config) *Logger {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}
	return &Logger{level: cfg.Level, component: cfg.Component, output: cfg.Output}
}

// DefaultLogger creates a Logger with sensible defaults for a named
// compiler subsystem (e.g. "ownership", "lower", "interp").
func DefaultLogger(component string) *Logger {
	return New(Config{Level: Info, Component: component, Output: os.Stderr})
}

// With returns a logger scoped to a different component, sharing output
// and level with the receiver.
func (l *Logger) With(component string) *Logger {
	return &Logger{level: l.level, component: component, output: l.output}
}

func (l *Logger) Debug(msg string, fields ...Field) { l.log(Debug, msg, fields...) }
func (l *Logger) Info(msg string, fields ...Field)  { l.log(Info, msg, fields...) }
func (l *Logger) Warn(msg string, fields ...Field)  { l.log(Warn, msg, fields...) }
func (l *Logger) Error(msg string, fields ...Field) { l.log(Error, msg, fields...) }

func (l *Logger) log(level Level, msg string, fields ...Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if level < l.level {
		return
	}

	var b strings.Builder
	b.WriteString("[")
	b.WriteString(time.Now().Format("15:04:05.000"))
	b.WriteString("] [")
	b.WriteString(fmt.Sprintf("%-5s", levelNames[level]))
	b.WriteString("]")
	if l.component != "" {
		b.WriteString(" [")
		b.WriteString(l.component)
		b.WriteString("]")
	}
	b.WriteString(" ")
	b.WriteString(msg)
	for _, f := range fields {
		b.WriteString(" ")
		b.WriteString(f.Key)
		b.WriteString("=")
		b.WriteString(f.format())
	}
	b.WriteString("\n")
	l.output.Write([]byte(b.String()))
}

// Field is a key-value pair for structured logging.
type Field struct {
	Key   string
	Value any
}

func (f Field) format() string {
	switch v := f.Value.(type) {
	case string:
		return fmt.Sprintf("%q", v)
	case error:
		return fmt.Sprintf("%q", v.Error())
	default:
		return fmt.Sprintf("%v", v)
	}
}

func String(key, value string) Field { return Field{Key: key, Value: value} }
func Int(key string, value int) Field { return Field{Key: key, Value: value} }
func Uint64(key string, value uint64) Field { return Field{Key: key, Value: value} }
func Err(err error) Field { return Field{Key: "error", Value: err} }
