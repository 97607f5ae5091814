package hooks

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gantry-sh/gantry/errors"
	"github.com/gantry-sh/gantry/plugin"
)

func testLogger() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}

func registerEvent(name string) plugin.Event {
	return plugin.Event{
		Type:    plugin.EventRegister,
		Plugin:  name,
		Version: "1.0.0",
		Kind:    plugin.KindExport,
		Status:  plugin.StatusRegistered,
	}
}

func TestEmitFillsIdentity(t *testing.T) {
	collector := NewMemoryCollector()
	emitter := NewEmitter(testLogger(), WithCollector(collector))

	emitter.Emit(registerEvent("csv-export"))

	events := collector.Events()
	require.Len(t, events, 1)
	assert.NotEmpty(t, events[0].ID)
	assert.False(t, events[0].Timestamp.IsZero())
	assert.Equal(t, "csv-export", events[0].Plugin)
}

func TestCallbacksReceiveMatchingTypeOnly(t *testing.T) {
	emitter := NewEmitter(testLogger())

	var mu sync.Mutex
	var got []plugin.Event
	emitter.On(plugin.EventRegister, func(ev plugin.Event) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, ev)
	})

	emitter.Emit(registerEvent("a"))
	ev := registerEvent("b")
	ev.Type = plugin.EventStart
	emitter.Emit(ev)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].Plugin)
}

func TestSinkPanicsAreContained(t *testing.T) {
	emitter := NewEmitter(testLogger())
	emitter.On(plugin.EventRegister, func(plugin.Event) {
		panic("misbehaving listener")
	})

	assert.NotPanics(t, func() { emitter.Emit(registerEvent("x")) })
	assert.Equal(t, uint64(1), emitter.Counts()[plugin.EventRegister])
}

type panickyCollector struct{ NopCollector }

func (panickyCollector) RecordEvent(plugin.Event) { panic("collector down") }

func TestCollectorPanicIsContained(t *testing.T) {
	emitter := NewEmitter(testLogger(), WithCollector(panickyCollector{}))
	assert.NotPanics(t, func() { emitter.Emit(registerEvent("x")) })
}

func TestErrorDamping(t *testing.T) {
	collector := NewMemoryCollector()
	// Zero sustained rate with a burst of 2: only two error events pass.
	emitter := NewEmitter(testLogger(), WithCollector(collector), WithErrorDamping(0, 2))

	for i := 0; i < 5; i++ {
		ev := registerEvent("looping")
		ev.Type = plugin.EventError
		emitter.Emit(ev)
	}

	assert.Len(t, collector.EventsOfType(plugin.EventError), 2)
	// All five are still counted even when damped.
	assert.Equal(t, uint64(5), emitter.Counts()[plugin.EventError])

	// Non-error events are never damped.
	emitter.Emit(registerEvent("fine"))
	assert.Len(t, collector.EventsOfType(plugin.EventRegister), 1)
}

type fakeSpan struct {
	ended bool
	err   error
}

func (s *fakeSpan) End(err error) {
	s.ended = true
	s.err = err
}

type fakeTracer struct {
	names []string
	spans []*fakeSpan
}

func (t *fakeTracer) StartSpan(name string) Span {
	t.names = append(t.names, name)
	span := &fakeSpan{}
	t.spans = append(t.spans, span)
	return span
}

func TestTimePhase(t *testing.T) {
	collector := NewMemoryCollector()
	tracer := &fakeTracer{}
	emitter := NewEmitter(testLogger(), WithCollector(collector), WithTracer(tracer))

	done := emitter.TimePhase("csv-export", "init")
	done(nil)

	require.Len(t, tracer.spans, 1)
	assert.Equal(t, "plugin.csv-export.init", tracer.names[0])
	assert.True(t, tracer.spans[0].ended)
	assert.NoError(t, tracer.spans[0].err)

	metrics := collector.Metrics()
	require.Len(t, metrics, 1)
	assert.Equal(t, "plugin_phase_duration_seconds", metrics[0].Name)
	assert.Equal(t, "true", metrics[0].Tags["ok"])

	failed := emitter.TimePhase("csv-export", "start")
	failed(errors.ErrStartFailed)
	require.Len(t, tracer.spans, 2)
	assert.Equal(t, errors.ErrStartFailed, tracer.spans[1].err)
	assert.Equal(t, "false", collector.Metrics()[1].Tags["ok"])
}

type mockPlugin struct {
	name string
}

func (m *mockPlugin) Name() string              { return m.name }
func (m *mockPlugin) Version() string           { return "1.0.0" }
func (m *mockPlugin) Kind() plugin.Kind         { return plugin.KindCustom }
func (m *mockPlugin) Metadata() plugin.Metadata { return plugin.Metadata{Name: m.name} }
func (m *mockPlugin) Init(_ context.Context, _ *plugin.ExecutionContext) error {
	return nil
}
func (m *mockPlugin) Start(_ context.Context) error { return nil }
func (m *mockPlugin) Stop(_ context.Context) error  { return nil }

func TestEmitError(t *testing.T) {
	collector := NewMemoryCollector()
	emitter := NewEmitter(testLogger(), WithCollector(collector))

	emitter.EmitError(&mockPlugin{name: "flaky"}, plugin.StatusError, "start", errors.ErrStartFailed)

	events := collector.EventsOfType(plugin.EventError)
	require.Len(t, events, 1)
	assert.Equal(t, "flaky", events[0].Plugin)
	assert.Equal(t, "start", events[0].Payload["phase"])

	recorded := collector.Errors("flaky")
	require.Len(t, recorded, 1)
	assert.True(t, errors.Is(recorded[0], errors.ErrStartFailed))
}
