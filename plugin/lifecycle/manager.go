// Package lifecycle orchestrates plugin startup and shutdown across the
// registry. The registry owns per-plugin state transitions; the manager
// owns ordering, concurrency, and aggregate results.
package lifecycle

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/gantry-sh/gantry/errors"
	"github.com/gantry-sh/gantry/logger"
	"github.com/gantry-sh/gantry/plugin"
	"github.com/gantry-sh/gantry/plugin/registry"
)

// StartupOrder is the kind sequence used when bringing plugins up.
// Observers come first so they see every subsequent lifecycle event,
// infrastructure kinds (dns, deployment) precede the kinds that depend
// on them, and custom plugins start last.
var StartupOrder = []plugin.Kind{
	plugin.KindObserver,
	plugin.KindDNS,
	plugin.KindDeployment,
	plugin.KindExport,
	plugin.KindRouter,
	plugin.KindCustom,
}

// ShutdownOrder is the exact reverse of StartupOrder.
var ShutdownOrder = func() []plugin.Kind {
	out := make([]plugin.Kind, len(StartupOrder))
	for i, k := range StartupOrder {
		out[len(StartupOrder)-1-i] = k
	}
	return out
}()

const (
	// DefaultStopTimeout bounds each plugin's Stop call during bulk shutdown.
	DefaultStopTimeout = 10 * time.Second

	// restartRate limits how often RestartPlugin may cycle a single
	// plugin, so a crash-looping plugin cannot monopolize the host.
	restartRate  = rate.Limit(1.0 / 3.0) // one restart per three seconds
	restartBurst = 2
)

// Failure records one plugin that failed a bulk lifecycle operation and
// the error that sank it.
type Failure struct {
	Name string
	Kind plugin.Kind
	Err  error
}

// BulkResult summarizes a bulk lifecycle operation. Per-plugin failures
// are recorded here rather than returned as errors.
type BulkResult struct {
	Successful []string
	Failed     []Failure
	Skipped    []string
}

// FailedNames lists the plugins that failed, for error messages and logs.
func (r BulkResult) FailedNames() []string {
	names := make([]string, len(r.Failed))
	for i, f := range r.Failed {
		names[i] = f.Name
	}
	return names
}

// Total is the number of plugins the operation considered.
func (r BulkResult) Total() int {
	return len(r.Successful) + len(r.Failed) + len(r.Skipped)
}

// OK reports whether every considered plugin succeeded or was skipped.
func (r BulkResult) OK() bool {
	return len(r.Failed) == 0
}

// Manager drives ordered plugin lifecycle operations against a registry.
type Manager struct {
	log      *zap.SugaredLogger
	registry *registry.Registry
	baseCtx  *plugin.ExecutionContext

	stopTimeout time.Duration

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithStopTimeout overrides the per-plugin stop deadline used by
// StopAll and GracefulShutdown.
func WithStopTimeout(d time.Duration) ManagerOption {
	return func(m *Manager) {
		if d > 0 {
			m.stopTimeout = d
		}
	}
}

// NewManager creates a lifecycle manager. The execution context is the
// base context cloned into every plugin during initialization; nil means
// an empty context.
func NewManager(reg *registry.Registry, ec *plugin.ExecutionContext, opts ...ManagerOption) *Manager {
	if ec == nil {
		ec = plugin.NewExecutionContext()
	}
	m := &Manager{
		log:         logger.Named("lifecycle"),
		registry:    reg,
		baseCtx:     ec,
		stopTimeout: DefaultStopTimeout,
		limiters:    make(map[string]*rate.Limiter),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Registry exposes the underlying registry.
func (m *Manager) Registry() *registry.Registry {
	return m.registry
}

// BaseContext exposes the execution context cloned into plugins.
func (m *Manager) BaseContext() *plugin.ExecutionContext {
	return m.baseCtx
}

// InitializeAll initializes every registered plugin in startup-kind
// order. Failures mark the plugin errored in the registry and are
// collected in the result; when failFast is true the sweep halts at the
// first failure and the remaining plugins are reported as skipped.
func (m *Manager) InitializeAll(ctx context.Context, failFast bool) BulkResult {
	eligible := func(s plugin.Status) bool { return s == plugin.StatusRegistered }
	return m.sweep(ctx, failFast, eligible, func(ctx context.Context, name string) error {
		return m.registry.InitPlugin(ctx, name, m.baseCtx)
	})
}

// StartAll starts every initialized plugin in startup-kind order.
func (m *Manager) StartAll(ctx context.Context, failFast bool) BulkResult {
	eligible := func(s plugin.Status) bool { return s == plugin.StatusInitialized }
	return m.sweep(ctx, failFast, eligible, m.registry.StartPlugin)
}

// sweep applies op to every plugin in an eligible status, kind by kind in
// startup order, preserving registration order within a kind.
func (m *Manager) sweep(ctx context.Context, failFast bool, eligible func(plugin.Status) bool, op func(context.Context, string) error) BulkResult {
	var result BulkResult
	halted := false
	for _, kind := range StartupOrder {
		for _, p := range m.registry.List(registry.Filter{Kind: kind}) {
			name := p.Name()
			status, _ := m.registry.StatusOf(name)
			if !eligible(status) {
				result.Skipped = append(result.Skipped, name)
				continue
			}
			if halted {
				result.Skipped = append(result.Skipped, name)
				continue
			}
			if err := op(ctx, name); err != nil {
				m.log.Errorw("lifecycle operation failed", "plugin", name, "kind", kind, "error", err)
				result.Failed = append(result.Failed, Failure{Name: name, Kind: kind, Err: err})
				if failFast {
					halted = true
				}
				continue
			}
			result.Successful = append(result.Successful, name)
		}
	}
	return result
}

// StopAll stops every running plugin in shutdown-kind order. Plugins
// within the same kind stop concurrently, each bounded by the manager's
// stop timeout. Stop failures never abort the sweep.
func (m *Manager) StopAll(ctx context.Context) BulkResult {
	var result BulkResult
	var mu sync.Mutex

	for _, kind := range ShutdownOrder {
		var wg sync.WaitGroup
		for _, p := range m.registry.List(registry.Filter{Kind: kind}) {
			name := p.Name()
			status, _ := m.registry.StatusOf(name)
			if status != plugin.StatusRunning && status != plugin.StatusStarted {
				mu.Lock()
				result.Skipped = append(result.Skipped, name)
				mu.Unlock()
				continue
			}
			wg.Add(1)
			go func(name string, kind plugin.Kind) {
				defer wg.Done()
				stopCtx, cancel := context.WithTimeout(ctx, m.stopTimeout)
				defer cancel()
				err := m.registry.StopPlugin(stopCtx, name)
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					m.log.Warnw("plugin stop failed", "plugin", name, "error", err)
					result.Failed = append(result.Failed, Failure{Name: name, Kind: kind, Err: err})
					return
				}
				result.Successful = append(result.Successful, name)
			}(name, kind)
		}
		wg.Wait()
	}
	return result
}

// RestartPlugin stops and restarts a single plugin. Restart attempts
// are rate limited per plugin; a throttled attempt returns false with
// no error. The plugin is re-initialized before starting so an errored
// plugin can recover.
func (m *Manager) RestartPlugin(ctx context.Context, name string) (bool, error) {
	if !m.registry.Has(name) {
		return false, errors.NewNotFound("plugin %q is not registered", name)
	}
	if !m.limiter(name).Allow() {
		m.log.Warnw("restart throttled", "plugin", name)
		return false, nil
	}

	status, _ := m.registry.StatusOf(name)
	if status == plugin.StatusRunning || status == plugin.StatusStarted {
		stopCtx, cancel := context.WithTimeout(ctx, m.stopTimeout)
		err := m.registry.StopPlugin(stopCtx, name)
		cancel()
		if err != nil {
			m.log.Warnw("restart: stop failed, continuing", "plugin", name, "error", err)
		}
	}

	if err := m.registry.InitPlugin(ctx, name, m.baseCtx); err != nil {
		return false, err
	}
	if err := m.registry.StartPlugin(ctx, name); err != nil {
		return false, err
	}
	return true, nil
}

// RestartAll restarts the full plugin set: running plugins stop in
// shutdown-kind order first, then everything stopped, errored or still
// unstarted re-initializes and starts in startup-kind order. Stop
// failures are logged and the plugin is retried anyway; only init and
// start failures mark a restart failed. Bulk restarts do not consume the
// per-plugin restart limiter.
func (m *Manager) RestartAll(ctx context.Context) BulkResult {
	m.StopAll(ctx)

	restartable := func(s plugin.Status) bool {
		return s == plugin.StatusRegistered || s == plugin.StatusStopped || s == plugin.StatusError
	}
	initRes := m.sweep(ctx, false, restartable, func(ctx context.Context, name string) error {
		return m.registry.InitPlugin(ctx, name, m.baseCtx)
	})
	initialized := func(s plugin.Status) bool { return s == plugin.StatusInitialized }
	startRes := m.sweep(ctx, false, initialized, m.registry.StartPlugin)

	// Every plugin lands in exactly one bucket: the start sweep skips
	// both the init failures and the init sweep's skips.
	return BulkResult{
		Successful: startRes.Successful,
		Failed:     append(initRes.Failed, startRes.Failed...),
		Skipped:    initRes.Skipped,
	}
}

// GracefulShutdown stops all plugins and then releases every registry
// entry. Cleanup always runs, even when stops fail or the context is
// already expired.
func (m *Manager) GracefulShutdown(ctx context.Context) BulkResult {
	result := m.StopAll(ctx)
	m.registry.Cleanup(ctx)
	m.log.Infow("graceful shutdown complete",
		"stopped", len(result.Successful),
		"failed", len(result.Failed),
		"skipped", len(result.Skipped))
	return result
}

// PluginsByCapability returns the names of registered plugins that
// declare the given capability in their metadata.
func (m *Manager) PluginsByCapability(capability string) []string {
	var names []string
	for _, p := range m.registry.List(registry.Filter{}) {
		if p.Metadata().HasCapability(capability) {
			names = append(names, p.Name())
		}
	}
	return names
}

func (m *Manager) limiter(name string) *rate.Limiter {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.limiters[name]
	if !ok {
		l = rate.NewLimiter(restartRate, restartBurst)
		m.limiters[name] = l
	}
	return l
}
