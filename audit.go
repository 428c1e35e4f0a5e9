package authcore

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"time"
)

// Severity ranks an audit event for sink routing and anomaly counting.
type Severity uint8

const (
	SeverityLow Severity = iota
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "low"
	case SeverityMedium:
		return "medium"
	case SeverityHigh:
		return "high"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// MarshalJSON renders the severity as its lowercase name for log shipping.
func (s Severity) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON accepts the lowercase severity names.
func (s *Severity) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	switch name {
	case "medium":
		*s = SeverityMedium
	case "high":
		*s = SeverityHigh
	case "critical":
		*s = SeverityCritical
	default:
		*s = SeverityLow
	}
	return nil
}

func (s Severity) slogLevel() slog.Level {
	switch s {
	case SeverityCritical, SeverityHigh:
		return slog.LevelError
	case SeverityMedium:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

// AuditEvent is one immutable entry in the security audit log. The JSON
// form is the schema consumed by operator tooling and log shippers.
type AuditEvent struct {
	ID        string            `json:"id,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	EventType string            `json:"event_type"`
	UserID    string            `json:"user_id,omitempty"`
	Email     string            `json:"email,omitempty"`
	IP        string            `json:"ip,omitempty"`
	UserAgent string            `json:"user_agent,omitempty"`
	Details   map[string]string `json:"details,omitempty"`
	Severity  Severity          `json:"severity"`
	Success   bool              `json:"success"`
}

// AuditSink receives audit events from the dispatcher. Emit must not
// block indefinitely; slow sinks cause dispatcher backpressure, never
// request-path stalls.
type AuditSink interface {
	Emit(ctx context.Context, event AuditEvent)
}

// NoOpSink discards every event.
type NoOpSink struct{}

func (NoOpSink) Emit(context.Context, AuditEvent) {}

// ChannelSink forwards events into a buffered channel for custom
// consumers.
type ChannelSink struct {
	events chan AuditEvent
}

func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{events: make(chan AuditEvent, buffer)}
}

func (s *ChannelSink) Emit(ctx context.Context, event AuditEvent) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

func (s *ChannelSink) Events() <-chan AuditEvent {
	return s.events
}

// JSONWriterSink writes one JSON object per line to the writer.
type JSONWriterSink struct {
	writer io.Writer
	mu     sync.Mutex
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return &JSONWriterSink{writer: w}
}

func (s *JSONWriterSink) Emit(_ context.Context, event AuditEvent) {
	if s == nil || s.writer == nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, _ = s.writer.Write(data)
	_, _ = s.writer.Write([]byte("\n"))
}

// SlogSink logs events through a slog.Logger at a level derived from the
// event severity: critical and high at error, medium at warn, low at info.
type SlogSink struct {
	logger *slog.Logger
}

func NewSlogSink(logger *slog.Logger) *SlogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogSink{logger: logger}
}

func (s *SlogSink) Emit(ctx context.Context, event AuditEvent) {
	if s == nil || s.logger == nil {
		return
	}

	attrs := []any{
		slog.String("event_type", event.EventType),
		slog.Bool("success", event.Success),
		slog.String("severity", event.Severity.String()),
	}
	if event.UserID != "" {
		attrs = append(attrs, slog.String("user_id", event.UserID))
	}
	if event.Email != "" {
		attrs = append(attrs, slog.String("email", event.Email))
	}
	if event.IP != "" {
		attrs = append(attrs, slog.String("ip", event.IP))
	}
	for k, v := range event.Details {
		attrs = append(attrs, slog.String(k, v))
	}

	s.logger.Log(ctx, event.Severity.slogLevel(), "audit", attrs...)
}
