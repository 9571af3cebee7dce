package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// SlogLogger adapts a *slog.Logger to Logger.
type SlogLogger struct {
	l *slog.Logger
}

// NewSlogLogger wraps l; a nil l uses slog.Default().
func NewSlogLogger(l *slog.Logger) *SlogLogger {
	if l == nil {
		l = slog.Default()
	}
	return &SlogLogger{l: l}
}

func (s *SlogLogger) Debug(msg string, fields ...Field) { s.l.Debug(msg, attrs(fields)...) }
func (s *SlogLogger) Info(msg string, fields ...Field)  { s.l.Info(msg, attrs(fields)...) }
func (s *SlogLogger) Warn(msg string, fields ...Field)  { s.l.Warn(msg, attrs(fields)...) }
func (s *SlogLogger) Error(msg string, fields ...Field) { s.l.Error(msg, attrs(fields)...) }
func (s *SlogLogger) With(fields ...Field) Logger {
	return &SlogLogger{l: s.l.With(attrs(fields)...)}
}

func attrs(fields []Field) []any {
	out := make([]any, 0, len(fields))
	for _, f := range fields {
		switch v := f.Value().(type) {
		case string:
			out = append(out, slog.String(f.Key(), v))
		case int:
			out = append(out, slog.Int(f.Key(), v))
		case int64:
			out = append(out, slog.Int64(f.Key(), v))
		case error:
			if v == nil {
				out = append(out, slog.String(f.Key(), "<nil>"))
				continue
			}
			out = append(out, slog.String(f.Key(), v.Error()))
		default:
			out = append(out, slog.Any(f.Key(), v))
		}
	}
	return out
}

// Entry is one record captured by a MemoryLogger.
type Entry struct {
	Level  string
	Msg    string
	Fields map[string]interface{}
}

// MemoryLogger keeps every record in memory.
type MemoryLogger struct {
	mu      sync.Mutex
	entries *[]Entry
	base    []Field
}

func NewMemoryLogger() *MemoryLogger {
	return &MemoryLogger{entries: new([]Entry)}
}

func (m *MemoryLogger) log(level, msg string, fields []Field) {
	rec := Entry{Level: level, Msg: msg, Fields: make(map[string]interface{})}
	for _, f := range append(append([]Field(nil), m.base...), fields...) {
		rec.Fields[f.Key()] = f.Value()
	}
	m.mu.Lock()
	*m.entries = append(*m.entries, rec)
	m.mu.Unlock()
}

func (m *MemoryLogger) Debug(msg string, fields ...Field) { m.log("debug", msg, fields) }
func (m *MemoryLogger) Info(msg string, fields ...Field)  { m.log("info", msg, fields) }
func (m *MemoryLogger) Warn(msg string, fields ...Field)  { m.log("warn", msg, fields) }
func (m *MemoryLogger) Error(msg string, fields ...Field) { m.log("error", msg, fields) }
func (m *MemoryLogger) With(fields ...Field) Logger {
	return &MemoryLogger{entries: m.entries, base: append(append([]Field(nil), m.base...), fields...)}
}

// Entries returns a snapshot of the captured records.
func (m *MemoryLogger) Entries() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Entry(nil), (*m.entries)...)
}

// LogTracer reports finished spans as debug records with their duration.
type LogTracer struct {
	Logger Logger
}

func (t LogTracer) StartSpan(ctx context.Context, name string) (context.Context, Span) {
	return ctx, &logSpan{log: t.Logger, name: name, start: time.Now()}
}

type logSpan struct {
	log   Logger
	name  string
	start time.Time
	tags  []Field
	err   error
}

func (s *logSpan) SetTag(key string, value interface{}) { s.tags = append(s.tags, Any(key, value)) }
func (s *logSpan) SetError(err error)                   { s.err = err }
func (s *logSpan) Finish() {
	if s.log == nil {
		return
	}
	fields := append([]Field{String("span", s.name), Int64("duration_us", time.Since(s.start).Microseconds())}, s.tags...)
	if s.err != nil {
		fields = append(fields, Error("error", s.err))
	}
	s.log.Debug("span finished", fields...)
}
