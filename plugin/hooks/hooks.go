// Package hooks provides structured observability for plugin lifecycle events.
//
// Every registry and lifecycle operation funnels through an Emitter, which
// fans events out to a log line, an optional external Collector, an
// optional Tracer, and user-registered callbacks. Each sink is best-effort:
// a misbehaving sink is contained and logged, never allowed to disturb the
// lifecycle operation that triggered it.
package hooks

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/gantry-sh/gantry/plugin"
)

// Collector receives events, metrics and errors from the emitter. All
// methods are best-effort; implementations should not block.
type Collector interface {
	RecordEvent(event plugin.Event)
	RecordMetric(name string, value float64, tags map[string]string)
	RecordError(pluginName string, err error)
}

// Span represents one traced phase call.
type Span interface {
	// End closes the span; a non-nil err marks it failed.
	End(err error)
}

// Tracer starts spans around lifecycle phases. Configure one when an
// external tracing facility is available; otherwise phases go untraced.
type Tracer interface {
	StartSpan(name string) Span
}

// Callback is a user-registered listener for one event type.
type Callback func(event plugin.Event)

// Emitter fans plugin lifecycle events out to the configured sinks.
type Emitter struct {
	log       *zap.SugaredLogger
	collector Collector
	tracer    Tracer

	// errLimiter damps repeated error events so a crash-looping plugin
	// cannot flood the collector.
	errLimiter *rate.Limiter

	mu        sync.RWMutex
	callbacks map[plugin.EventType][]Callback
	counts    map[plugin.EventType]uint64
}

// Option configures an Emitter.
type Option func(*Emitter)

// WithCollector wires an external collector.
func WithCollector(c Collector) Option {
	return func(e *Emitter) { e.collector = c }
}

// WithTracer wires an external tracer.
func WithTracer(t Tracer) Option {
	return func(e *Emitter) { e.tracer = t }
}

// WithErrorDamping bounds the rate of error events forwarded to the
// collector. Excess error events are still logged and counted.
func WithErrorDamping(eventsPerSecond float64, burst int) Option {
	return func(e *Emitter) { e.errLimiter = rate.NewLimiter(rate.Limit(eventsPerSecond), burst) }
}

// NewEmitter creates an emitter logging through the given logger.
func NewEmitter(log *zap.SugaredLogger, opts ...Option) *Emitter {
	e := &Emitter{
		log:       log,
		callbacks: make(map[plugin.EventType][]Callback),
		counts:    make(map[plugin.EventType]uint64),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// On registers a callback for an event type.
func (e *Emitter) On(eventType plugin.EventType, cb Callback) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.callbacks[eventType] = append(e.callbacks[eventType], cb)
}

// Emit delivers one event to every sink. The event's ID and timestamp are
// filled in when absent.
func (e *Emitter) Emit(event plugin.Event) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	e.mu.Lock()
	e.counts[event.Type]++
	e.mu.Unlock()

	if event.Type == plugin.EventError {
		e.log.Warnw("plugin lifecycle error",
			"plugin", event.Plugin, "kind", event.Kind, "status", event.Status, "payload", event.Payload)
	} else {
		e.log.Infow("plugin lifecycle event",
			"event", event.Type, "plugin", event.Plugin, "kind", event.Kind, "status", event.Status)
	}

	if e.collector != nil && e.admit(event) {
		e.guarded("collector", func() { e.collector.RecordEvent(event) })
	}

	e.mu.RLock()
	cbs := make([]Callback, len(e.callbacks[event.Type]))
	copy(cbs, e.callbacks[event.Type])
	e.mu.RUnlock()
	for _, cb := range cbs {
		cb := cb
		e.guarded("callback", func() { cb(event) })
	}
}

// EmitError builds and emits an error event for a failed phase.
func (e *Emitter) EmitError(p plugin.Plugin, status plugin.Status, phase string, err error) {
	e.Emit(plugin.Event{
		Type:    plugin.EventError,
		Plugin:  p.Name(),
		Version: p.Version(),
		Kind:    p.Kind(),
		Status:  status,
		Payload: map[string]interface{}{"phase": phase, "error": err.Error()},
	})
	if e.collector != nil {
		name := p.Name()
		e.guarded("collector", func() { e.collector.RecordError(name, err) })
	}
}

// Metric forwards one metric to the collector, if any.
func (e *Emitter) Metric(name string, value float64, tags map[string]string) {
	if e.collector == nil {
		return
	}
	e.guarded("collector", func() { e.collector.RecordMetric(name, value, tags) })
}

// Counts returns a snapshot of per-type event counters.
func (e *Emitter) Counts() map[plugin.EventType]uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make(map[plugin.EventType]uint64, len(e.counts))
	for k, v := range e.counts {
		out[k] = v
	}
	return out
}

// admit applies error-event damping; non-error events always pass.
func (e *Emitter) admit(event plugin.Event) bool {
	if event.Type != plugin.EventError || e.errLimiter == nil {
		return true
	}
	if e.errLimiter.Allow() {
		return true
	}
	e.log.Debugw("error event damped", "plugin", event.Plugin)
	return false
}

// guarded runs a sink call, containing panics.
func (e *Emitter) guarded(sink string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Warnw("observability sink panicked", "sink", sink, "panic", r)
		}
	}()
	fn()
}
