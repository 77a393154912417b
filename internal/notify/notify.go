// Package notify defines the notification capability used by the dashboard
// flows. Implementations decide how a message reaches the user.
package notify

import (
	"context"
	"log/slog"
	"sync"
)

// Kind classifies a notification.
type Kind string

const (
	Success Kind = "success"
	Error   Kind = "error"
	Warning Kind = "warning"
	Info    Kind = "info"
)

// Notifier delivers a user-facing message.
type Notifier interface {
	Notify(ctx context.Context, message string, kind Kind)
}

// Func adapts a plain function to Notifier.
type Func func(ctx context.Context, message string, kind Kind)

func (f Func) Notify(ctx context.Context, message string, kind Kind) { f(ctx, message, kind) }

// Discard drops every notification.
var Discard Notifier = Func(func(context.Context, string, Kind) {})

// Logger writes notifications to a slog logger.
type Logger struct {
	logger *slog.Logger
}

func NewLogger(logger *slog.Logger) *Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Logger{logger: logger}
}

func (l *Logger) Notify(ctx context.Context, message string, kind Kind) {
	level := slog.LevelInfo
	switch kind {
	case Error:
		level = slog.LevelError
	case Warning:
		level = slog.LevelWarn
	}
	l.logger.Log(ctx, level, "Notification", "kind", string(kind), "message", message)
}

// Message is a recorded notification.
type Message struct {
	Text string
	Kind Kind
}

// Recorder keeps notifications in memory, e.g. to forward them on an HTTP
// response once a handler finishes.
type Recorder struct {
	mu       sync.Mutex
	messages []Message
}

func (r *Recorder) Notify(_ context.Context, message string, kind Kind) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, Message{Text: message, Kind: kind})
}

// Messages returns a copy of the recorded notifications in order.
func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.messages...)
}

// Last returns the most recent notification.
func (r *Recorder) Last() (Message, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.messages) == 0 {
		return Message{}, false
	}
	return r.messages[len(r.messages)-1], true
}

// Multi fans a notification out to several notifiers.
func Multi(notifiers ...Notifier) Notifier {
	out := make([]Notifier, 0, len(notifiers))
	for _, n := range notifiers {
		if n != nil {
			out = append(out, n)
		}
	}
	return Func(func(ctx context.Context, message string, kind Kind) {
		for _, n := range out {
			n.Notify(ctx, message, kind)
		}
	})
}

type recorderKey struct{}

// NewContext returns a copy of ctx that carries rec. Contextual delivers to
// it.
func NewContext(ctx context.Context, rec *Recorder) context.Context {
	return context.WithValue(ctx, recorderKey{}, rec)
}

// RecorderFromContext returns the Recorder stored by NewContext.
func RecorderFromContext(ctx context.Context) (*Recorder, bool) {
	rec, ok := ctx.Value(recorderKey{}).(*Recorder)
	return rec, ok && rec != nil
}

// Contextual records into the Recorder carried by the call's context and
// drops the message when there is none.
var Contextual Notifier = Func(func(ctx context.Context, message string, kind Kind) {
	if rec, ok := RecorderFromContext(ctx); ok {
		rec.Notify(ctx, message, kind)
	}
})
