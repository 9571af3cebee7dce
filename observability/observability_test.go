package observability

import (
	"context"
	"testing"
)

func TestNopTracer(t *testing.T) {
	tracer := NopTracer()
	ctx := context.Background()
	ctx2, span := tracer.StartSpan(ctx, "test")
	if ctx2 != ctx {
		t.Fatalf("nop tracer should return same context")
	}
	span.SetTag("key", "value")
	span.SetError(nil)
	span.Finish()
}

func TestMemoryLoggerWith(t *testing.T) {
	m := NewMemoryLogger()
	child := m.With(String("component", "parser"))
	child.Warn("repair", Int64("offset", 42))
	m.Info("open")
	got := m.Entries()
	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(got))
	}
	if got[0].Level != "warn" || got[0].Fields["component"] != "parser" || got[0].Fields["offset"] != int64(42) {
		t.Fatalf("unexpected first entry %+v", got[0])
	}
}

func TestLogTracerReportsSpan(t *testing.T) {
	m := NewMemoryLogger()
	_, span := LogTracer{Logger: m}.StartSpan(context.Background(), "run")
	span.SetTag("page", 0)
	span.Finish()
	got := m.Entries()
	if len(got) != 1 || got[0].Fields["span"] != "run" || got[0].Fields["page"] != 0 {
		t.Fatalf("unexpected span record %+v", got)
	}
}

func TestSlogAttrs(t *testing.T) {
	a := attrs([]Field{String("s", "v"), Int("i", 1), Error("e", nil), Object(3, 0)})
	if len(a) != 4 {
		t.Fatalf("expected 4 attrs, got %d", len(a))
	}
}
