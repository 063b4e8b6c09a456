package telemetry

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Sink receives events from the pipeline's export goroutine.
type Sink interface {
	Export(context.Context, Event) error
}

// Flusher is implemented by sinks that buffer writes. Close calls Flush after
// the queue is drained.
type Flusher interface {
	Flush() error
}

// Config bounds the queue and export behavior.
type Config struct {
	QueueCapacity int
	ExportTimeout time.Duration
	// LogSampleRate keeps the first and then every Nth debug log of each
	// event name when >1. Other severities are never sampled.
	LogSampleRate int
}

func (c Config) withDefaults() Config {
	if c.QueueCapacity < 1 {
		c.QueueCapacity = 256
	}
	if c.ExportTimeout <= 0 {
		c.ExportTimeout = 200 * time.Millisecond
	}
	if c.LogSampleRate < 1 {
		c.LogSampleRate = 1
	}
	return c
}

// Stats is a point-in-time view of the pipeline counters.
type Stats struct {
	Enqueued       uint64
	Dropped        uint64
	SampledDropped uint64
	Exported       uint64
	ExportFailures uint64
	QueueDepth     int
}

// Pipeline queues events and exports them on a single goroutine. Emit calls
// never block: a full queue drops the event and counts it.
type Pipeline struct {
	sink Sink
	cfg  Config

	queue chan Event
	stop  chan struct{}

	closeOnce sync.Once
	closeErr  error
	wg        sync.WaitGroup

	sampleMu      sync.Mutex
	debugCounters map[string]uint64

	enqueued       atomic.Uint64
	dropped        atomic.Uint64
	sampledDropped atomic.Uint64
	exported       atomic.Uint64
	exportFailures atomic.Uint64
}

type discardSink struct{}

func (discardSink) Export(context.Context, Event) error { return nil }

// NewPipeline starts a pipeline draining into sink. A nil sink discards.
func NewPipeline(sink Sink, cfg Config) *Pipeline {
	cfg = cfg.withDefaults()
	if sink == nil {
		sink = discardSink{}
	}
	p := &Pipeline{
		sink:          sink,
		cfg:           cfg,
		queue:         make(chan Event, cfg.QueueCapacity),
		stop:          make(chan struct{}),
		debugCounters: make(map[string]uint64),
	}
	p.wg.Add(1)
	go p.run()
	return p
}

// Close drains the queue, reports overflow drops to the sink once, and
// flushes the sink. Later calls return the first result.
func (p *Pipeline) Close() error {
	p.closeOnce.Do(func() {
		close(p.stop)
		p.wg.Wait()
		if dropped := p.dropped.Load(); dropped > 0 {
			p.export(Event{
				Kind:        EventKindMetric,
				TimestampMS: time.Now().UnixMilli(),
				Correlation: Correlation{EmittedBy: "telemetry"},
				Metric:      &MetricEvent{Name: MetricDropsTotal, Value: float64(dropped), Unit: "count"},
			})
		}
		if f, ok := p.sink.(Flusher); ok {
			p.closeErr = f.Flush()
		}
	})
	return p.closeErr
}

// Stats returns current counters.
func (p *Pipeline) Stats() Stats {
	return Stats{
		Enqueued:       p.enqueued.Load(),
		Dropped:        p.dropped.Load(),
		SampledDropped: p.sampledDropped.Load(),
		Exported:       p.exported.Load(),
		ExportFailures: p.exportFailures.Load(),
		QueueDepth:     len(p.queue),
	}
}

// EmitMetric enqueues a metric sample.
func (p *Pipeline) EmitMetric(name string, value float64, unit string, attributes map[string]string, correlation Correlation) {
	p.enqueue(Event{
		Kind:        EventKindMetric,
		TimestampMS: eventTimestampMS(correlation),
		Correlation: normalizeCorrelation(correlation),
		Metric: &MetricEvent{
			Name:       strings.TrimSpace(name),
			Value:      value,
			Unit:       strings.TrimSpace(unit),
			Attributes: cloneAttributes(attributes),
		},
	})
}

// EmitLog enqueues a log record, subject to debug sampling.
func (p *Pipeline) EmitLog(name, severity, message string, attributes map[string]string, correlation Correlation) {
	name = strings.TrimSpace(name)
	severity = strings.ToLower(strings.TrimSpace(severity))
	if !p.keepLog(name, severity) {
		p.sampledDropped.Add(1)
		return
	}
	p.enqueue(Event{
		Kind:        EventKindLog,
		TimestampMS: eventTimestampMS(correlation),
		Correlation: normalizeCorrelation(correlation),
		Log: &LogEvent{
			Name:       name,
			Severity:   severity,
			Message:    message,
			Attributes: cloneAttributes(attributes),
		},
	})
}

func (p *Pipeline) keepLog(name, severity string) bool {
	if p.cfg.LogSampleRate <= 1 || severity != SeverityDebug {
		return true
	}
	p.sampleMu.Lock()
	n := p.debugCounters[name]
	p.debugCounters[name] = n + 1
	p.sampleMu.Unlock()
	return n%uint64(p.cfg.LogSampleRate) == 0
}

func (p *Pipeline) enqueue(event Event) {
	select {
	case <-p.stop:
		p.dropped.Add(1)
		return
	default:
	}
	select {
	case p.queue <- event:
		p.enqueued.Add(1)
	default:
		p.dropped.Add(1)
	}
}

func (p *Pipeline) run() {
	defer p.wg.Done()

	for {
		select {
		case <-p.stop:
			for {
				select {
				case event := <-p.queue:
					p.export(event)
				default:
					return
				}
			}
		case event := <-p.queue:
			p.export(event)
		}
	}
}

func (p *Pipeline) export(event Event) {
	ctx, cancel := context.WithTimeout(context.Background(), p.cfg.ExportTimeout)
	defer cancel()
	if err := p.sink.Export(ctx, event); err != nil {
		p.exportFailures.Add(1)
		return
	}
	p.exported.Add(1)
}

func eventTimestampMS(correlation Correlation) int64 {
	if correlation.RuntimeTimestampMS > 0 {
		return correlation.RuntimeTimestampMS
	}
	return time.Now().UnixMilli()
}

func normalizeCorrelation(c Correlation) Correlation {
	if c.RuntimeTimestampMS < 0 {
		c.RuntimeTimestampMS = 0
	}
	if c.Attempt < 0 {
		c.Attempt = 0
	}
	c.SessionID = strings.TrimSpace(c.SessionID)
	c.TurnID = strings.TrimSpace(c.TurnID)
	c.Phase = strings.TrimSpace(c.Phase)
	c.EmittedBy = strings.TrimSpace(c.EmittedBy)
	return c
}

// cloneAttributes copies attributes, dropping blank keys.
func cloneAttributes(in map[string]string) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		key := strings.TrimSpace(k)
		if key == "" {
			continue
		}
		out[key] = strings.TrimSpace(v)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
