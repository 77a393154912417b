package notify

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestRecorderKeepsOrder(t *testing.T) {
	var r Recorder
	r.Notify(context.Background(), "first", Info)
	r.Notify(context.Background(), "second", Error)

	msgs := r.Messages()
	if len(msgs) != 2 || msgs[0].Text != "first" || msgs[1].Kind != Error {
		t.Fatalf("unexpected messages: %+v", msgs)
	}
	last, ok := r.Last()
	if !ok || last.Text != "second" {
		t.Fatalf("unexpected last: %+v", last)
	}
}

func TestRecorderEmpty(t *testing.T) {
	var r Recorder
	if _, ok := r.Last(); ok {
		t.Fatalf("expected no message")
	}
}

func TestMultiSkipsNil(t *testing.T) {
	var a, b Recorder
	n := Multi(&a, nil, &b)
	n.Notify(context.Background(), "hi", Success)
	if len(a.Messages()) != 1 || len(b.Messages()) != 1 {
		t.Fatalf("fan-out failed: a=%v b=%v", a.Messages(), b.Messages())
	}
}

func TestLoggerWritesKindAndMessage(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(slog.New(slog.NewTextHandler(&buf, nil)))
	l.Notify(context.Background(), "Failed to add expense", Error)

	out := buf.String()
	if !strings.Contains(out, "level=ERROR") || !strings.Contains(out, "Failed to add expense") {
		t.Fatalf("unexpected log output: %s", out)
	}
}

func TestContextualUsesRecorderFromContext(t *testing.T) {
	var rec Recorder
	ctx := NewContext(context.Background(), &rec)
	Contextual.Notify(ctx, "saved", Success)
	Contextual.Notify(context.Background(), "lost", Error)

	msgs := rec.Messages()
	if len(msgs) != 1 || msgs[0].Text != "saved" {
		t.Fatalf("unexpected messages: %+v", msgs)
	}
}
