package hooks

import (
	"sync"

	"github.com/gantry-sh/gantry/plugin"
)

// NopCollector discards everything. It is the default when no external
// collector is configured.
type NopCollector struct{}

func (NopCollector) RecordEvent(plugin.Event)                        {}
func (NopCollector) RecordMetric(string, float64, map[string]string) {}
func (NopCollector) RecordError(string, error)                       {}

var _ Collector = NopCollector{}

// MetricSample is one recorded metric observation.
type MetricSample struct {
	Name  string
	Value float64
	Tags  map[string]string
}

// MemoryCollector retains everything it receives, for tests and for the
// CLI's status display.
type MemoryCollector struct {
	mu      sync.Mutex
	events  []plugin.Event
	metrics []MetricSample
	errs    map[string][]error
}

// NewMemoryCollector creates an empty in-memory collector.
func NewMemoryCollector() *MemoryCollector {
	return &MemoryCollector{errs: make(map[string][]error)}
}

func (c *MemoryCollector) RecordEvent(event plugin.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
}

func (c *MemoryCollector) RecordMetric(name string, value float64, tags map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.metrics = append(c.metrics, MetricSample{Name: name, Value: value, Tags: tags})
}

func (c *MemoryCollector) RecordError(pluginName string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errs[pluginName] = append(c.errs[pluginName], err)
}

// Events returns a copy of the recorded events.
func (c *MemoryCollector) Events() []plugin.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]plugin.Event, len(c.events))
	copy(out, c.events)
	return out
}

// EventsOfType returns recorded events of one type.
func (c *MemoryCollector) EventsOfType(t plugin.EventType) []plugin.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []plugin.Event
	for _, ev := range c.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

// Metrics returns a copy of the recorded metric samples.
func (c *MemoryCollector) Metrics() []MetricSample {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]MetricSample, len(c.metrics))
	copy(out, c.metrics)
	return out
}

// Errors returns the errors recorded for one plugin.
func (c *MemoryCollector) Errors(pluginName string) []error {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]error, len(c.errs[pluginName]))
	copy(out, c.errs[pluginName])
	return out
}

var _ Collector = (*MemoryCollector)(nil)
