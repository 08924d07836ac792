package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	SearchStarted         Type = "search.started"
	SearchVariant         Type = "search.variant"
	SearchVariantFailed   Type = "search.variant_failed"
	SearchCompleted       Type = "search.completed"
	ScrapeStarted         Type = "scrape.started"
	ScrapeCompleted       Type = "scrape.completed"
	ScrapeFailed          Type = "scrape.failed"
	ScrapeCategoryFollow  Type = "scrape.category_followed"
	RequestStrategyFailed Type = "request.strategy_failed"
	RequestExhausted      Type = "request.exhausted"
	WholesaleStarted      Type = "wholesale.started"
	WholesaleVariant      Type = "wholesale.variant"
	WholesaleCompleted    Type = "wholesale.completed"
)

// Event is a progress notification emitted by the pipeline.
type Event struct {
	ID      string         `json:"id"`
	Type    Type           `json:"type"`
	Time    time.Time      `json:"time"`
	Message string         `json:"message"`
	Fields  map[string]any `json:"fields,omitempty"`
}

// New builds an event from alternating key/value pairs.
func New(typ Type, message string, kv ...any) Event {
	e := Event{
		ID:      uuid.New().String(),
		Type:    typ,
		Time:    time.Now(),
		Message: message,
	}
	if len(kv) > 0 {
		e.Fields = make(map[string]any, len(kv)/2)
		for i := 0; i+1 < len(kv); i += 2 {
			key, ok := kv[i].(string)
			if !ok {
				continue
			}
			e.Fields[key] = kv[i+1]
		}
	}
	return e
}

// Sink receives progress events. Implementations must not block the
// caller for long and must not panic.
type Sink interface {
	OnProgress(ctx context.Context, e Event)
}

type SinkFunc func(ctx context.Context, e Event)

func (f SinkFunc) OnProgress(ctx context.Context, e Event) {
	f(ctx, e)
}

// Discard drops every event.
var Discard Sink = SinkFunc(func(context.Context, Event) {})

// Multi fans an event out to every sink in order.
type Multi []Sink

func (m Multi) OnProgress(ctx context.Context, e Event) {
	for _, s := range m {
		if s != nil {
			s.OnProgress(ctx, e)
		}
	}
}

// OrDiscard returns s, or Discard when s is nil.
func OrDiscard(s Sink) Sink {
	if s == nil {
		return Discard
	}
	return s
}

// LogSink writes events to a structured logger.
type LogSink struct {
	logger *slog.Logger
	level  slog.Level
}

func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{
		logger: logger.With("component", "progress"),
		level:  slog.LevelInfo,
	}
}

func (s *LogSink) OnProgress(ctx context.Context, e Event) {
	level := s.level
	switch e.Type {
	case ScrapeFailed, SearchVariantFailed, RequestStrategyFailed, RequestExhausted:
		level = slog.LevelWarn
	}

	attrs := make([]any, 0, 2+len(e.Fields)*2)
	attrs = append(attrs, "event", string(e.Type))
	for k, v := range e.Fields {
		attrs = append(attrs, k, v)
	}
	s.logger.Log(ctx, level, e.Message, attrs...)
}
