package telemetry

import (
	"context"
	"log/slog"
	"sort"
	"strings"
)

// SlogSink writes telemetry events as structured log records.
type SlogSink struct {
	logger *slog.Logger
}

// NewSlogSink returns a sink writing through logger, or slog.Default when nil.
func NewSlogSink(logger *slog.Logger) *SlogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogSink{logger: logger}
}

// Export writes one record per event.
func (s *SlogSink) Export(ctx context.Context, event Event) error {
	attrs := correlationAttrs(event.Correlation)
	switch event.Kind {
	case EventKindMetric:
		if event.Metric == nil {
			return nil
		}
		attrs = append(attrs, slog.Float64("value", event.Metric.Value), slog.String("unit", event.Metric.Unit))
		attrs = append(attrs, mapAttrs(event.Metric.Attributes)...)
		s.logger.LogAttrs(ctx, slog.LevelDebug, "metric "+event.Metric.Name, attrs...)
	case EventKindLog:
		if event.Log == nil {
			return nil
		}
		attrs = append(attrs, slog.String("event", event.Log.Name))
		attrs = append(attrs, mapAttrs(event.Log.Attributes)...)
		s.logger.LogAttrs(ctx, levelFor(event.Log.Severity), event.Log.Message, attrs...)
	}
	return nil
}

func levelFor(severity string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(severity)) {
	case SeverityDebug:
		return slog.LevelDebug
	case SeverityWarn, "warning":
		return slog.LevelWarn
	case SeverityError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func correlationAttrs(c Correlation) []slog.Attr {
	attrs := make([]slog.Attr, 0, 8)
	if c.SessionID != "" {
		attrs = append(attrs, slog.String("session_id", c.SessionID))
	}
	if c.TurnID != "" {
		attrs = append(attrs, slog.String("turn_id", c.TurnID))
	}
	if c.Phase != "" {
		attrs = append(attrs, slog.String("phase", c.Phase))
	}
	if c.Attempt > 0 {
		attrs = append(attrs, slog.Int("attempt", c.Attempt))
	}
	if c.EmittedBy != "" {
		attrs = append(attrs, slog.String("emitted_by", c.EmittedBy))
	}
	return attrs
}

// mapAttrs sorts keys so records are stable.
func mapAttrs(in map[string]string) []slog.Attr {
	if len(in) == 0 {
		return nil
	}
	keys := make([]string, 0, len(in))
	for k := range in {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]slog.Attr, 0, len(keys))
	for _, k := range keys {
		out = append(out, slog.String(k, in[k]))
	}
	return out
}
