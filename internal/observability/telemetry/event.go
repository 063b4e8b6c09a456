// Package telemetry carries session log and metric events from the runtime to
// a pluggable sink without ever blocking the caller. Spans are not handled
// here; collaborator calls are traced through OpenTelemetry.
package telemetry

const (
	// MetricProviderRTTMS captures collaborator round-trip observations.
	MetricProviderRTTMS = "provider_rtt_ms"
	// MetricWordsOnSlide captures the presenting word count after each user turn.
	MetricWordsOnSlide = "words_on_slide"
	// MetricQAExchanges captures the Q&A exchange count after each counterpart reply.
	MetricQAExchanges = "qa_exchange_count"
	// MetricDropsTotal is exported once on Close when the queue overflowed.
	MetricDropsTotal = "telemetry_drops_total"
)

// Session log event names.
const (
	EventTurnSubmitted     = "turn_submitted"
	EventGenerationFailed  = "generation_failed"
	EventPhaseChanged      = "phase_changed"
	EventSlideAdvanced     = "slide_advanced"
	EventQACapped          = "qa_capped"
	EventFeedbackRequested = "feedback_requested"
	EventSessionReset      = "session_reset"
	EventSynthesisFailed   = "synthesis_failed"
	EventCaptureDiscarded  = "capture_discarded"
	EventConcluded         = "session_concluded"
	EventTurnRejected      = "turn_rejected"
)

// Severities accepted by EmitLog.
const (
	SeverityDebug = "debug"
	SeverityInfo  = "info"
	SeverityWarn  = "warn"
	SeverityError = "error"
)

// EventKind tells sinks which payload an Event carries.
type EventKind string

const (
	EventKindMetric EventKind = "metric"
	EventKindLog    EventKind = "log"
)

// Correlation ties an event to a practice session.
type Correlation struct {
	SessionID          string `json:"session_id,omitempty"`
	TurnID             string `json:"turn_id,omitempty"`
	Phase              string `json:"phase,omitempty"`
	Attempt            int    `json:"attempt,omitempty"`
	EmittedBy          string `json:"emitted_by,omitempty"`
	RuntimeTimestampMS int64  `json:"runtime_timestamp_ms,omitempty"`
}

// MetricEvent is one metric sample.
type MetricEvent struct {
	Name       string            `json:"name"`
	Value      float64           `json:"value"`
	Unit       string            `json:"unit,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// LogEvent is one named session log record.
type LogEvent struct {
	Name       string            `json:"name"`
	Severity   string            `json:"severity"`
	Message    string            `json:"message"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// Event is the envelope handed to sinks. Exactly one of Metric and Log is set.
type Event struct {
	Kind        EventKind    `json:"kind"`
	TimestampMS int64        `json:"timestamp_ms"`
	Correlation Correlation  `json:"correlation"`
	Metric      *MetricEvent `json:"metric,omitempty"`
	Log         *LogEvent    `json:"log,omitempty"`
}
