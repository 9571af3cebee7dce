// Package observability defines the logging and tracing hooks used across
// the engine.
package observability

import (
	"context"
	"strconv"
)

// Logger is a structured, leveled logger. With returns a child logger
// that prepends fields to every record.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	With(fields ...Field) Logger
}

// Field is one key/value pair of a record.
type Field interface {
	Key() string
	Value() any
}

type field struct {
	key string
	val any
}

func (f field) Key() string { return f.key }
func (f field) Value() any  { return f.val }

func String(key, value string) Field      { return field{key, value} }
func Int(key string, value int) Field     { return field{key, value} }
func Int64(key string, value int64) Field { return field{key, value} }
func Any(key string, value any) Field     { return field{key, value} }

// Error keeps err as the value; a nil err logs as "<nil>".
func Error(key string, err error) Field { return field{key, err} }

// Object renders an object reference as "num gen R".
func Object(num, gen int) Field {
	return field{"object", strconv.Itoa(num) + " " + strconv.Itoa(gen) + " R"}
}

// NopLogger discards everything.
type NopLogger struct{}

func (NopLogger) Debug(string, ...Field) {}
func (NopLogger) Info(string, ...Field)  {}
func (NopLogger) Warn(string, ...Field)  {}
func (NopLogger) Error(string, ...Field) {}
func (NopLogger) With(...Field) Logger   { return NopLogger{} }

// Tracer opens spans around document open, page runs and writes.
type Tracer interface {
	StartSpan(ctx context.Context, name string) (context.Context, Span)
}

// Span is one traced operation. Finish must be called exactly once.
type Span interface {
	SetTag(key string, value any)
	SetError(err error)
	Finish()
}

type nopTracer struct{}

func (nopTracer) StartSpan(ctx context.Context, _ string) (context.Context, Span) {
	return ctx, nopSpan{}
}

// NopTracer returns a tracer that does nothing.
func NopTracer() Tracer { return nopTracer{} }

type nopSpan struct{}

func (nopSpan) SetTag(string, any) {}
func (nopSpan) SetError(error)     {}
func (nopSpan) Finish()            {}
