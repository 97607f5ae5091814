// Package registry owns the authoritative table of registered plugins.
//
// The registry is the only component that mutates a plugin's lifecycle
// status. The lifecycle manager requests transitions through the
// single-plugin phase executors (InitPlugin, StartPlugin, StopPlugin) and
// never touches status directly.
//
// Locking: the plugin table is guarded by a RWMutex. Plugin-supplied code
// (Init/Start/Stop) always runs outside the lock so a slow plugin cannot
// wedge table reads.
package registry

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/gantry-sh/gantry/errors"
	"github.com/gantry-sh/gantry/plugin"
	"github.com/gantry-sh/gantry/plugin/discovery"
	"github.com/gantry-sh/gantry/plugin/hooks"
)

// entry is one registered plugin and its registry-owned state.
type entry struct {
	plugin   plugin.Plugin
	status   plugin.Status
	order    int
	disabled bool
	config   map[string]interface{}
}

// Registry manages registered plugin instances keyed by name.
type Registry struct {
	log     *zap.SugaredLogger
	emitter *hooks.Emitter

	mu        sync.RWMutex
	entries   map[string]*entry
	nextOrder int
}

// Filter narrows List results. Zero-valued fields do not filter.
type Filter struct {
	Kind   plugin.Kind
	Status plugin.Status
}

// NewRegistry creates an empty registry. A nil emitter gets a default one
// wired to the given logger.
func NewRegistry(log *zap.SugaredLogger, emitter *hooks.Emitter) *Registry {
	if emitter == nil {
		emitter = hooks.NewEmitter(log)
	}
	return &Registry{
		log:     log,
		emitter: emitter,
		entries: make(map[string]*entry),
	}
}

// Emitter returns the observability emitter the registry reports through.
func (r *Registry) Emitter() *hooks.Emitter {
	return r.emitter
}

// Register validates and stores a plugin under its name. A name collision
// fails with ErrConflict unless force is set, in which case the existing
// plugin is stopped (best-effort) and evicted first.
func (r *Registry) Register(ctx context.Context, p plugin.Plugin, force bool) error {
	return r.register(ctx, discovery.Candidate{Plugin: p}, force)
}

// RegisterCandidate stores a discovered candidate, carrying its manifest
// configuration and disabled flag into the registry entry.
func (r *Registry) RegisterCandidate(ctx context.Context, c discovery.Candidate, force bool) error {
	return r.register(ctx, c, force)
}

func (r *Registry) register(ctx context.Context, c discovery.Candidate, force bool) error {
	if err := discovery.ValidateCandidate(c.Plugin); err != nil {
		r.log.Errorw("plugin failed registration validation", "error", err)
		if c.Plugin != nil {
			r.emitter.EmitError(c.Plugin, plugin.StatusError, "register", err)
		}
		return errors.Wrap(err, "registering plugin")
	}
	name := c.Plugin.Name()

	if err := checkAPIVersion(c.Plugin); err != nil {
		r.emitter.EmitError(c.Plugin, plugin.StatusError, "register", err)
		return err
	}

	r.mu.RLock()
	_, exists := r.entries[name]
	r.mu.RUnlock()

	if exists {
		if !force {
			return errors.NewConflict("plugin %q is already registered", name)
		}
		// Force replacement: fully stop and evict the old instance first.
		// Stop failures follow the general policy and never block the
		// replacement.
		if err := r.Unregister(ctx, name); err != nil && !errors.IsNotFound(err) {
			return errors.Wrapf(err, "evicting plugin %q for forced replacement", name)
		}
	}

	status := plugin.StatusRegistered
	if c.Disabled {
		status = plugin.StatusDisabled
	}

	r.mu.Lock()
	if _, raced := r.entries[name]; raced {
		r.mu.Unlock()
		return errors.NewConflict("plugin %q is already registered", name)
	}
	r.entries[name] = &entry{
		plugin:   c.Plugin,
		status:   status,
		order:    r.nextOrder,
		disabled: c.Disabled,
		config:   c.Config,
	}
	r.nextOrder++
	r.mu.Unlock()

	r.emitter.Emit(plugin.Event{
		Type:    plugin.EventRegister,
		Plugin:  name,
		Version: c.Plugin.Version(),
		Kind:    c.Plugin.Kind(),
		Status:  status,
		Payload: map[string]interface{}{"source": c.Source, "forced": force},
	})
	return nil
}

// Unregister stops the plugin if it is running (best-effort) and removes
// it from the table.
func (r *Registry) Unregister(ctx context.Context, name string) error {
	r.mu.RLock()
	e, ok := r.entries[name]
	var status plugin.Status
	if ok {
		status = e.status
	}
	r.mu.RUnlock()

	if !ok {
		return errors.NewNotFound("plugin %q is not registered", name)
	}

	if status == plugin.StatusRunning || status == plugin.StatusStarted {
		if err := r.StopPlugin(ctx, name); err != nil {
			r.log.Warnw("stop during unregister failed, removing anyway",
				"plugin", name, "error", err)
		}
	}

	r.mu.Lock()
	delete(r.entries, name)
	r.mu.Unlock()
	r.log.Infow("plugin unregistered", "plugin", name)
	return nil
}

// Get retrieves a plugin by name.
func (r *Registry) Get(name string) (plugin.Plugin, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	if !ok {
		return nil, false
	}
	return e.plugin, true
}

// GetRequired retrieves a plugin by name, failing with ErrNotFound when
// absent.
func (r *Registry) GetRequired(name string) (plugin.Plugin, error) {
	p, ok := r.Get(name)
	if !ok {
		return nil, errors.NewNotFound("plugin %q is not registered", name)
	}
	return p, nil
}

// Has reports whether a plugin is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[name]
	return ok
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// StatusOf returns the registry-owned status of a plugin.
func (r *Registry) StatusOf(name string) (plugin.Status, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	if !ok {
		return plugin.StatusUnknown, false
	}
	return e.status, true
}

// List returns registered plugins matching the filter, in insertion order.
func (r *Registry) List(filter Filter) []plugin.Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matched := make([]*entry, 0, len(r.entries))
	for _, e := range r.entries {
		if filter.Kind != "" && e.plugin.Kind() != filter.Kind {
			continue
		}
		if filter.Status != "" && e.status != filter.Status {
			continue
		}
		matched = append(matched, e)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].order < matched[j].order })

	plugins := make([]plugin.Plugin, len(matched))
	for i, e := range matched {
		plugins[i] = e.plugin
	}
	return plugins
}

// Names returns all registered plugin names in insertion order.
func (r *Registry) Names() []string {
	var names []string
	for _, p := range r.List(Filter{}) {
		names = append(names, p.Name())
	}
	return names
}

// Load runs builtin discovery for a group and registers every candidate,
// tolerating individual failures. Returns the number registered.
func (r *Registry) Load(ctx context.Context, group string) int {
	source := discovery.NewBuiltinSource(group, r.log)
	return r.LoadCandidates(ctx, source.Discover(ctx))
}

// LoadCandidates registers discovered candidates, logging and skipping
// individual registration failures.
func (r *Registry) LoadCandidates(ctx context.Context, candidates []discovery.Candidate) int {
	registered := 0
	for _, c := range candidates {
		if err := r.RegisterCandidate(ctx, c, false); err != nil {
			r.log.Warnw("skipping plugin that failed registration",
				"plugin", c.Plugin.Name(), "source", c.Source, "error", err)
			continue
		}
		registered++
	}
	return registered
}

// InitAll initializes every REGISTERED plugin in insertion order,
// continuing past failures. The joined error reports every failure.
func (r *Registry) InitAll(ctx context.Context, ec *plugin.ExecutionContext) error {
	var errs []error
	for _, p := range r.List(Filter{Status: plugin.StatusRegistered}) {
		if err := r.InitPlugin(ctx, p.Name(), ec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// StartAll starts every INITIALIZED plugin in insertion order, continuing
// past failures.
func (r *Registry) StartAll(ctx context.Context) error {
	var errs []error
	for _, p := range r.List(Filter{Status: plugin.StatusInitialized}) {
		if err := r.StartPlugin(ctx, p.Name()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// StopAll stops every running or mid-start plugin in reverse insertion
// order. Failures are logged, never returned.
func (r *Registry) StopAll(ctx context.Context) {
	var stoppable []plugin.Plugin
	for _, p := range r.List(Filter{}) {
		status, _ := r.StatusOf(p.Name())
		if status == plugin.StatusRunning || status == plugin.StatusStarted {
			stoppable = append(stoppable, p)
		}
	}
	for i := len(stoppable) - 1; i >= 0; i-- {
		if err := r.StopPlugin(ctx, stoppable[i].Name()); err != nil {
			r.log.Warnw("stop failed during bulk shutdown",
				"plugin", stoppable[i].Name(), "error", err)
		}
	}
}

// Cleanup stops everything still running and clears the table.
func (r *Registry) Cleanup(ctx context.Context) {
	r.StopAll(ctx)
	r.mu.Lock()
	r.entries = make(map[string]*entry)
	r.nextOrder = 0
	r.mu.Unlock()
	r.log.Infow("registry cleaned up")
}

// checkAPIVersion refuses plugins built against a different major API
// line. Metadata validation already guaranteed the version parses.
func checkAPIVersion(p plugin.Plugin) error {
	declared := p.Metadata().APIVersion
	if declared == "" {
		declared = plugin.DefaultAPIVersion
	}
	v, err := plugin.ParseVersion(declared)
	if err != nil {
		return err
	}
	if !v.IsCompatible(plugin.MustParseVersion(plugin.CurrentAPIVersion)) {
		return errors.Wrapf(errors.ErrVersionIncompatible,
			"plugin %q targets api %s, host speaks %s", p.Name(), declared, plugin.CurrentAPIVersion)
	}
	return nil
}

// lookup fetches an entry snapshot for phase execution.
func (r *Registry) lookup(name string) (*entry, plugin.Plugin, plugin.Status, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	if !ok {
		return nil, nil, plugin.StatusUnknown, errors.NewNotFound("plugin %q is not registered", name)
	}
	return e, e.plugin, e.status, nil
}

// setStatus records a status transition. The entry may have been evicted
// concurrently, in which case the transition is dropped.
func (r *Registry) setStatus(name string, status plugin.Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[name]; ok {
		e.status = status
	}
}
