// Package host assembles the plugin subsystem: configuration, discovery,
// security, registry and lifecycle, wired together behind one Run loop.
package host

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/gantry-sh/gantry/config"
	"github.com/gantry-sh/gantry/errors"
	"github.com/gantry-sh/gantry/logger"
	"github.com/gantry-sh/gantry/plugin"
	"github.com/gantry-sh/gantry/plugin/discovery"
	"github.com/gantry-sh/gantry/plugin/hooks"
	"github.com/gantry-sh/gantry/plugin/lifecycle"
	"github.com/gantry-sh/gantry/plugin/registry"
	"github.com/gantry-sh/gantry/plugin/security"
)

// Host owns the assembled plugin subsystem.
type Host struct {
	log *zap.SugaredLogger
	cfg *config.Config

	discoverer *discovery.Discoverer
	registry   *registry.Registry
	manager    *lifecycle.Manager
	sandbox    *security.Sandbox
	verifier   *security.Verifier
	emitter    *hooks.Emitter
}

// Option configures a Host beyond its config file.
type Option func(*Host)

// WithCollector attaches a metrics collector to the host's event emitter.
func WithCollector(c hooks.Collector) Option {
	return func(h *Host) {
		h.emitter = hooks.NewEmitter(h.log, hooks.WithCollector(c))
	}
}

// New builds a host from configuration. Trusted signing keys are loaded
// eagerly so a bad key file fails startup rather than the first plugin.
func New(cfg *config.Config, opts ...Option) (*Host, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log := logger.Named("host")

	h := &Host{
		log:     log,
		cfg:     cfg,
		emitter: hooks.NewEmitter(log),
	}
	for _, opt := range opts {
		opt(h)
	}

	level, err := security.ParseLevel(cfg.Security.PolicyLevel)
	if err != nil {
		return nil, err
	}
	h.sandbox = security.NewSandbox(log, security.PolicyForLevel(level))

	keys, err := security.LoadTrustedKeys(cfg.Security.TrustedKeyFiles)
	if err != nil {
		return nil, err
	}
	h.verifier = security.NewVerifier(log, cfg.Security.RequireSignatures, keys...)

	manifestDir := ""
	if cfg.Plugins.EnableManifests {
		manifestDir = cfg.Plugins.ManifestDir
	}
	h.discoverer = discovery.NewDiscoverer(cfg.Plugins.Group, manifestDir, log)
	h.discoverer.EnableBuiltins = cfg.Plugins.EnableBuiltins

	h.registry = registry.NewRegistry(log, h.emitter)
	h.manager = lifecycle.NewManager(h.registry, h.baseContext(),
		lifecycle.WithStopTimeout(cfg.StopTimeout()))
	h.bridgeObservers()
	return h, nil
}

// bridgeObservers fans lifecycle events out to running observer plugins.
// An observer implementing EventFilter receives only the types it names.
func (h *Host) bridgeObservers() {
	for _, t := range plugin.EventTypes {
		eventType := t
		h.emitter.On(eventType, func(event plugin.Event) {
			for _, p := range h.registry.List(registry.Filter{
				Kind:   plugin.KindObserver,
				Status: plugin.StatusRunning,
			}) {
				obs, ok := p.(plugin.ObserverPlugin)
				if !ok || p.Name() == event.Plugin {
					continue
				}
				if f, ok := p.(plugin.EventFilter); ok && !wantsType(f.EventTypes(), eventType) {
					continue
				}
				if err := obs.OnEvent(context.Background(), event); err != nil {
					h.log.Warnw("observer rejected event",
						"observer", p.Name(), "event", event.Type, "error", err)
				}
			}
		})
	}
}

func wantsType(types []plugin.EventType, t plugin.EventType) bool {
	if len(types) == 0 {
		return true
	}
	for _, want := range types {
		if want == t {
			return true
		}
	}
	return false
}

// NewStack is a convenience constructor for embedding the subsystem in
// tests and other programs without a config file.
func NewStack(group, manifestDir string, enableManifests bool) *Host {
	cfg := &config.Config{
		Plugins: config.PluginsConfig{
			Group:           group,
			ManifestDir:     manifestDir,
			EnableBuiltins:  true,
			EnableManifests: enableManifests && manifestDir != "",
		},
		Security:  config.SecurityConfig{PolicyLevel: "standard"},
		Lifecycle: config.LifecycleConfig{StopTimeoutSeconds: 10},
	}
	h, err := New(cfg)
	if err != nil {
		// Only reachable through a bug in the defaults above.
		panic(err)
	}
	return h
}

// Registry exposes the underlying registry.
func (h *Host) Registry() *registry.Registry { return h.registry }

// Manager exposes the lifecycle manager.
func (h *Host) Manager() *lifecycle.Manager { return h.manager }

// Sandbox exposes the security sandbox.
func (h *Host) Sandbox() *security.Sandbox { return h.sandbox }

// Discoverer exposes the discovery stack.
func (h *Host) Discoverer() *discovery.Discoverer { return h.discoverer }

// baseContext builds the execution context cloned into every plugin.
func (h *Host) baseContext() *plugin.ExecutionContext {
	ec := plugin.NewExecutionContext()
	ec.TenantID = h.cfg.Plugins.TenantID
	ec.Environment = h.cfg.Plugins.Environment
	ec.Logger = logger.Named("plugin")
	for _, perm := range h.cfg.Plugins.Permissions {
		ec.GrantPermission(perm)
	}
	return ec
}

// Bootstrap discovers, vets and registers plugins, then initializes and
// starts them in kind order. Per-plugin failures are logged and leave
// the plugin errored; only whole-subsystem failures propagate.
func (h *Host) Bootstrap(ctx context.Context) error {
	candidates, err := h.discoverer.DiscoverAll(ctx)
	if err != nil {
		return err
	}

	admitted := 0
	for _, c := range candidates {
		if err := h.admit(ctx, c); err != nil {
			h.log.Warnw("plugin rejected", "plugin", c.Plugin.Name(), "source", c.Source, "error", err)
			continue
		}
		admitted++
	}
	h.log.Infow("plugins registered", "discovered", len(candidates), "admitted", admitted)

	initRes := h.manager.InitializeAll(ctx, h.cfg.Lifecycle.FailFast)
	startRes := h.manager.StartAll(ctx, h.cfg.Lifecycle.FailFast)
	h.log.Infow("plugins started",
		"initialized", len(initRes.Successful),
		"running", len(startRes.Successful),
		"failed", len(initRes.Failed)+len(startRes.Failed))

	if h.cfg.Lifecycle.FailFast && (!initRes.OK() || !startRes.OK()) {
		return errors.Wrap(errors.ErrStartFailed, "startup aborted by fail_fast")
	}
	return nil
}

// admit runs the security gate and registers one candidate.
func (h *Host) admit(ctx context.Context, c discovery.Candidate) error {
	name := c.Plugin.Name()

	if violations := h.sandbox.ValidateCapabilities(c.Plugin); len(violations) > 0 {
		return errors.Wrapf(errors.ErrSecurityViolation,
			"capabilities denied by policy: %v", violations)
	}
	// Required permissions are checked against the host grants before
	// registering; InitPlugin re-checks them in case the context
	// narrowed in the meantime.
	for _, perm := range c.Plugin.Metadata().RequiredPermissions {
		if err := h.manager.BaseContext().RequirePermission(perm); err != nil {
			return err
		}
	}
	outcome, err := h.verifier.VerifyPlugin(c.Plugin, c.Signature)
	if err != nil {
		return err
	}
	if outcome != security.OutcomeVerified && outcome != security.OutcomeSkipped {
		h.log.Warnw("plugin admitted without verification", "plugin", name, "outcome", outcome)
	}
	return h.registry.RegisterCandidate(ctx, c, false)
}

// Run bootstraps the subsystem and blocks until the context is canceled
// or an interrupt arrives, then shuts everything down gracefully.
func (h *Host) Run(ctx context.Context) error {
	if err := h.Bootstrap(ctx); err != nil {
		return err
	}

	if h.cfg.Plugins.WatchManifests {
		if err := h.watchManifests(ctx); err != nil {
			h.log.Warnw("manifest watcher unavailable", "error", err)
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case <-ctx.Done():
		h.log.Infow("context canceled, shutting down")
	case sig := <-sigCh:
		h.log.Infow("signal received, shutting down", "signal", sig.String())
	}

	// Shutdown gets its own context: the run context is already done.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), h.cfg.StopTimeout())
	defer cancel()
	result := h.manager.GracefulShutdown(shutdownCtx)
	if !result.OK() {
		return errors.Wrapf(errors.ErrStopFailed, "plugins failed to stop: %v", result.FailedNames())
	}
	return nil
}

// watchManifests hot-loads manifests dropped into the manifest directory
// while the host is running.
func (h *Host) watchManifests(ctx context.Context) error {
	src := h.discoverer.Manifests()
	if src == nil {
		return errors.New("manifest discovery not configured")
	}
	ch, err := src.Watch(ctx)
	if err != nil {
		return err
	}
	go func() {
		for c := range ch {
			name := c.Plugin.Name()
			if h.registry.Has(name) {
				h.log.Debugw("watched manifest for known plugin ignored", "plugin", name)
				continue
			}
			if err := h.admit(ctx, c); err != nil {
				h.log.Warnw("hot-loaded plugin rejected", "plugin", name, "error", err)
				continue
			}
			if err := h.registry.InitPlugin(ctx, name, h.manager.BaseContext()); err != nil {
				continue
			}
			if err := h.registry.StartPlugin(ctx, name); err != nil {
				continue
			}
			h.log.Infow("plugin hot-loaded", "plugin", name, "source", c.Source)
		}
	}()
	return nil
}
