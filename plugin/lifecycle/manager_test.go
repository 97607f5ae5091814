package lifecycle

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gantry-sh/gantry/errors"
	"github.com/gantry-sh/gantry/plugin"
	"github.com/gantry-sh/gantry/plugin/hooks"
	"github.com/gantry-sh/gantry/plugin/registry"
)

// =============================================================================
// Mock plugin with shared call-order recording
// =============================================================================

type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) record(entry string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, entry)
}

func (l *callLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

type mockPlugin struct {
	meta      plugin.Metadata
	log       *callLog
	startErr  error
	stopErr   error
	stopDelay time.Duration
	health    *plugin.HealthStatus
}

func newMock(name string, kind plugin.Kind, log *callLog) *mockPlugin {
	return &mockPlugin{
		meta: plugin.Metadata{Name: name, Version: "1.0.0", Kind: kind},
		log:  log,
	}
}

func (m *mockPlugin) Name() string              { return m.meta.Name }
func (m *mockPlugin) Version() string           { return m.meta.Version }
func (m *mockPlugin) Kind() plugin.Kind         { return m.meta.Kind }
func (m *mockPlugin) Metadata() plugin.Metadata { return m.meta }

func (m *mockPlugin) Init(_ context.Context, _ *plugin.ExecutionContext) error {
	if m.log != nil {
		m.log.record("init:" + m.meta.Name)
	}
	return nil
}

func (m *mockPlugin) Start(_ context.Context) error {
	if m.log != nil {
		m.log.record("start:" + m.meta.Name)
	}
	return m.startErr
}

func (m *mockPlugin) Stop(_ context.Context) error {
	if m.stopDelay > 0 {
		time.Sleep(m.stopDelay)
	}
	if m.log != nil {
		m.log.record("stop:" + m.meta.Name)
	}
	return m.stopErr
}

func (m *mockPlugin) Health() plugin.HealthStatus {
	if m.health != nil {
		return *m.health
	}
	return plugin.HealthStatus{Healthy: true}
}

var _ plugin.Plugin = (*mockPlugin)(nil)

func newTestManager(opts ...ManagerOption) (*Manager, *callLog) {
	log := zap.NewNop().Sugar()
	reg := registry.NewRegistry(log, hooks.NewEmitter(log))
	return NewManager(reg, plugin.NewExecutionContext(), opts...), &callLog{}
}

func register(t *testing.T, m *Manager, plugins ...*mockPlugin) {
	t.Helper()
	for _, p := range plugins {
		require.NoError(t, m.Registry().Register(context.Background(), p, false))
	}
}

// =============================================================================
// Ordering
// =============================================================================

func TestKindOrdering(t *testing.T) {
	ctx := context.Background()

	t.Run("startup follows kind priority", func(t *testing.T) {
		m, log := newTestManager()
		// Registered deliberately out of startup order.
		register(t, m,
			newMock("exp", plugin.KindExport, log),
			newMock("obs", plugin.KindObserver, log),
			newMock("cus", plugin.KindCustom, log),
			newMock("dns", plugin.KindDNS, log),
		)

		res := m.InitializeAll(ctx, false)
		require.True(t, res.OK())
		res = m.StartAll(ctx, false)
		require.True(t, res.OK())

		assert.Equal(t, []string{
			"init:obs", "init:dns", "init:exp", "init:cus",
			"start:obs", "start:dns", "start:exp", "start:cus",
		}, log.snapshot())
	})

	t.Run("shutdown is the exact reverse", func(t *testing.T) {
		m, log := newTestManager()
		register(t, m,
			newMock("obs", plugin.KindObserver, log),
			newMock("dns", plugin.KindDNS, log),
			newMock("cus", plugin.KindCustom, log),
		)
		m.InitializeAll(ctx, false)
		m.StartAll(ctx, false)
		before := len(log.snapshot())

		res := m.StopAll(ctx)
		require.True(t, res.OK())

		assert.Equal(t, []string{"stop:cus", "stop:dns", "stop:obs"}, log.snapshot()[before:])
	})

	t.Run("shutdown order mirrors startup order", func(t *testing.T) {
		require.Len(t, ShutdownOrder, len(StartupOrder))
		for i, k := range StartupOrder {
			assert.Equal(t, k, ShutdownOrder[len(ShutdownOrder)-1-i])
		}
	})
}

// =============================================================================
// Bulk semantics
// =============================================================================

func TestBulkResults(t *testing.T) {
	ctx := context.Background()

	t.Run("failures are collected, not raised", func(t *testing.T) {
		m, log := newTestManager()
		good := newMock("good", plugin.KindCustom, log)
		bad := newMock("bad", plugin.KindCustom, log)
		bad.startErr = errors.New("bind failed")
		register(t, m, good, bad)

		m.InitializeAll(ctx, false)
		res := m.StartAll(ctx, false)

		assert.Equal(t, []string{"good"}, res.Successful)
		require.Len(t, res.Failed, 1)
		assert.Equal(t, "bad", res.Failed[0].Name)
		assert.Equal(t, plugin.KindCustom, res.Failed[0].Kind)
		assert.ErrorContains(t, res.Failed[0].Err, "bind failed")
		assert.False(t, res.OK())
		assert.Equal(t, 2, res.Total())

		status, _ := m.Registry().StatusOf("bad")
		assert.Equal(t, plugin.StatusError, status)
	})

	t.Run("failFast skips the remainder", func(t *testing.T) {
		m, log := newTestManager()
		bad := newMock("bad", plugin.KindObserver, log)
		bad.startErr = errors.New("boom")
		late := newMock("late", plugin.KindCustom, log)
		register(t, m, bad, late)

		m.InitializeAll(ctx, false)
		res := m.StartAll(ctx, true)

		assert.Equal(t, []string{"bad"}, res.FailedNames())
		assert.Contains(t, res.Skipped, "late")
		assert.NotContains(t, log.snapshot(), "start:late")
	})

	t.Run("ineligible plugins are skipped", func(t *testing.T) {
		m, log := newTestManager()
		register(t, m, newMock("raw", plugin.KindCustom, log))

		// Never initialized, so StartAll has nothing eligible.
		res := m.StartAll(ctx, false)
		assert.Empty(t, res.Successful)
		assert.Equal(t, []string{"raw"}, res.Skipped)
	})
}

func TestStopAllConcurrency(t *testing.T) {
	ctx := context.Background()

	t.Run("a hung plugin does not block its siblings", func(t *testing.T) {
		m, log := newTestManager(WithStopTimeout(50 * time.Millisecond))
		hung := newMock("hung", plugin.KindCustom, log)
		hung.stopDelay = 2 * time.Second
		quick := newMock("quick", plugin.KindCustom, log)
		register(t, m, hung, quick)

		m.InitializeAll(ctx, false)
		m.StartAll(ctx, false)

		start := time.Now()
		res := m.StopAll(ctx)
		elapsed := time.Since(start)

		assert.Less(t, elapsed, time.Second, "timeout must cut the hung stop short")
		assert.Contains(t, res.Successful, "quick")
		assert.Contains(t, res.FailedNames(), "hung")

		status, _ := m.Registry().StatusOf("hung")
		assert.Equal(t, plugin.StatusError, status)
	})
}

// =============================================================================
// Restart
// =============================================================================

func TestRestartPlugin(t *testing.T) {
	ctx := context.Background()

	t.Run("cycles stop, init, start", func(t *testing.T) {
		m, log := newTestManager()
		register(t, m, newMock("svc", plugin.KindCustom, log))
		m.InitializeAll(ctx, false)
		m.StartAll(ctx, false)
		before := len(log.snapshot())

		ok, err := m.RestartPlugin(ctx, "svc")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, []string{"stop:svc", "init:svc", "start:svc"}, log.snapshot()[before:])

		status, _ := m.Registry().StatusOf("svc")
		assert.Equal(t, plugin.StatusRunning, status)
	})

	t.Run("recovers an errored plugin", func(t *testing.T) {
		m, log := newTestManager()
		p := newMock("flaky", plugin.KindCustom, log)
		p.startErr = errors.New("first boot fails")
		register(t, m, p)
		m.InitializeAll(ctx, false)
		m.StartAll(ctx, false)

		status, _ := m.Registry().StatusOf("flaky")
		require.Equal(t, plugin.StatusError, status)

		p.startErr = nil
		ok, err := m.RestartPlugin(ctx, "flaky")
		require.NoError(t, err)
		assert.True(t, ok)
		status, _ = m.Registry().StatusOf("flaky")
		assert.Equal(t, plugin.StatusRunning, status)
	})

	t.Run("rapid restarts are throttled", func(t *testing.T) {
		m, log := newTestManager()
		register(t, m, newMock("busy", plugin.KindCustom, log))
		m.InitializeAll(ctx, false)
		m.StartAll(ctx, false)

		allowed := 0
		for i := 0; i < 5; i++ {
			ok, err := m.RestartPlugin(ctx, "busy")
			require.NoError(t, err)
			if ok {
				allowed++
			}
		}
		assert.Equal(t, restartBurst, allowed)
	})

	t.Run("unknown plugin", func(t *testing.T) {
		m, _ := newTestManager()
		_, err := m.RestartPlugin(ctx, "ghost")
		assert.True(t, errors.IsNotFound(err))
	})
}

func TestRestartAll(t *testing.T) {
	ctx := context.Background()

	t.Run("stops in shutdown order before restarting", func(t *testing.T) {
		m, log := newTestManager()
		register(t, m,
			newMock("obs", plugin.KindObserver, log),
			newMock("cus", plugin.KindCustom, log),
		)
		m.InitializeAll(ctx, false)
		m.StartAll(ctx, false)
		before := len(log.snapshot())

		res := m.RestartAll(ctx)
		require.True(t, res.OK())

		assert.Equal(t, []string{
			"stop:cus", "stop:obs",
			"init:obs", "init:cus",
			"start:obs", "start:cus",
		}, log.snapshot()[before:])
	})

	t.Run("repeated bulk restarts are not throttled", func(t *testing.T) {
		m, log := newTestManager()
		register(t, m, newMock("svc", plugin.KindCustom, log))
		m.InitializeAll(ctx, false)
		m.StartAll(ctx, false)

		for i := 0; i < 4; i++ {
			res := m.RestartAll(ctx)
			assert.Equal(t, []string{"svc"}, res.Successful)
			assert.Empty(t, res.Failed)
		}
		status, _ := m.Registry().StatusOf("svc")
		assert.Equal(t, plugin.StatusRunning, status)
	})

	t.Run("picks up errored plugins", func(t *testing.T) {
		m, log := newTestManager()
		flaky := newMock("flaky", plugin.KindCustom, log)
		flaky.startErr = errors.New("first boot fails")
		register(t, m, flaky)
		m.InitializeAll(ctx, false)
		m.StartAll(ctx, false)
		flaky.startErr = nil

		res := m.RestartAll(ctx)
		assert.Equal(t, []string{"flaky"}, res.Successful)
		status, _ := m.Registry().StatusOf("flaky")
		assert.Equal(t, plugin.StatusRunning, status)
	})

	t.Run("init failure lands in failed with its error", func(t *testing.T) {
		m, log := newTestManager()
		p := newMock("svc", plugin.KindCustom, log)
		p.meta.Dependencies = []string{"missing"}
		register(t, m, p)

		res := m.RestartAll(ctx)
		require.Len(t, res.Failed, 1)
		assert.Equal(t, "svc", res.Failed[0].Name)
		assert.Equal(t, plugin.KindCustom, res.Failed[0].Kind)
		assert.True(t, errors.Is(res.Failed[0].Err, errors.ErrDependencyUnsatisfied))
	})
}

func TestGracefulShutdown(t *testing.T) {
	ctx := context.Background()
	m, log := newTestManager()
	bad := newMock("bad", plugin.KindCustom, log)
	bad.stopErr = errors.New("flush failed")
	register(t, m, newMock("good", plugin.KindCustom, log), bad)
	m.InitializeAll(ctx, false)
	m.StartAll(ctx, false)

	res := m.GracefulShutdown(ctx)

	assert.Contains(t, res.FailedNames(), "bad")
	assert.Contains(t, res.Successful, "good")
	// Cleanup runs regardless of stop failures.
	assert.Equal(t, 0, m.Registry().Count())
}

// =============================================================================
// Health
// =============================================================================

func TestHealth(t *testing.T) {
	ctx := context.Background()

	t.Run("system health for a running pair", func(t *testing.T) {
		m, log := newTestManager()
		register(t, m,
			newMock("exp", plugin.KindExport, log),
			newMock("obs", plugin.KindObserver, log),
		)
		m.InitializeAll(ctx, false)
		m.StartAll(ctx, false)

		report := m.SystemHealth()
		assert.Equal(t, 2, report.Total)
		assert.ElementsMatch(t, []string{"exp", "obs"}, report.Running)
		assert.Empty(t, report.Errored)
		assert.True(t, report.Healthy)
		assert.Equal(t, 1, report.KindCounts[plugin.KindExport])
		assert.Equal(t, 1, report.KindCounts[plugin.KindObserver])
		assert.Equal(t, 2, report.ByStatus[plugin.StatusRunning])
	})

	t.Run("errored plugin marks the system unhealthy", func(t *testing.T) {
		m, log := newTestManager()
		bad := newMock("bad", plugin.KindCustom, log)
		bad.startErr = errors.New("boom")
		register(t, m, bad)
		m.InitializeAll(ctx, false)
		m.StartAll(ctx, false)

		report := m.SystemHealth()
		assert.False(t, report.Healthy)
		assert.Equal(t, []string{"bad"}, report.Errored)
	})

	t.Run("self-reported unhealthiness propagates", func(t *testing.T) {
		m, log := newTestManager()
		sick := newMock("sick", plugin.KindCustom, log)
		sick.health = &plugin.HealthStatus{Healthy: false, Message: "queue backed up"}
		register(t, m, sick)
		m.InitializeAll(ctx, false)
		m.StartAll(ctx, false)

		report, err := m.PluginHealth("sick")
		require.NoError(t, err)
		assert.Equal(t, plugin.StatusRunning, report.Status)
		assert.False(t, report.Health.Healthy)
		assert.Equal(t, "queue backed up", report.Health.Message)

		assert.False(t, m.SystemHealth().Healthy)
	})

	t.Run("unknown plugin health", func(t *testing.T) {
		m, _ := newTestManager()
		_, err := m.PluginHealth("ghost")
		assert.True(t, errors.IsNotFound(err))
	})
}

func TestPluginsByCapability(t *testing.T) {
	m, log := newTestManager()
	streaming := newMock("stream-exp", plugin.KindExport, log)
	streaming.meta.Capabilities = map[string]interface{}{"streaming": true}
	plain := newMock("plain-exp", plugin.KindExport, log)
	register(t, m, streaming, plain)

	assert.Equal(t, []string{"stream-exp"}, m.PluginsByCapability("streaming"))
	assert.Empty(t, m.PluginsByCapability("compression"))
}
