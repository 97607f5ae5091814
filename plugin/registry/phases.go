package registry

import (
	"context"

	"github.com/gantry-sh/gantry/errors"
	"github.com/gantry-sh/gantry/plugin"
)

// InitPlugin drives one plugin through its init phase: permissions are
// re-validated against the context, manifest configuration is layered into
// a per-plugin context clone, and the plugin's Init runs outside the
// registry lock. Success advances the status to INITIALIZED; any failure
// sets ERROR and returns an ErrInitFailed-classified error.
func (r *Registry) InitPlugin(ctx context.Context, name string, ec *plugin.ExecutionContext) error {
	e, p, status, err := r.lookup(name)
	if err != nil {
		return err
	}
	switch status {
	case plugin.StatusRegistered, plugin.StatusStopped, plugin.StatusError:
		// Eligible: fresh registration or explicit restart.
	case plugin.StatusDisabled:
		return errors.Wrapf(errors.ErrInitFailed, "plugin %q is disabled", name)
	default:
		return errors.Wrapf(errors.ErrInitFailed,
			"plugin %q cannot init from status %s", name, status)
	}

	// Permissions are re-validated on every init, not just at
	// registration: the host may have narrowed the context since.
	for _, perm := range p.Metadata().RequiredPermissions {
		if err := ec.RequirePermission(perm); err != nil {
			r.failPhase(p, "init", err)
			return err
		}
	}

	// Declared dependencies must be registered and not dead.
	for _, dep := range p.Metadata().Dependencies {
		depStatus, ok := r.StatusOf(dep)
		if !ok || depStatus == plugin.StatusDisabled || depStatus == plugin.StatusError {
			err := errors.Wrapf(errors.ErrDependencyUnsatisfied,
				"plugin %q depends on %q (status %s)", name, dep, depStatus)
			r.failPhase(p, "init", err)
			return err
		}
	}

	pec := r.pluginContext(e, p, ec)

	if validator, ok := p.(plugin.ConfigValidator); ok {
		if err := validator.ValidateConfig(e.config); err != nil {
			err = errors.Wrapf(errors.ErrConfigInvalid,
				"plugin %q rejected its configuration: %v", name, err)
			r.failPhase(p, "init", err)
			return err
		}
	}

	done := r.emitter.TimePhase(name, "init")
	err = safeCall(func() error { return p.Init(ctx, pec) })
	done(err)
	if err != nil {
		r.failPhase(p, "init", err)
		return errors.Wrapf(errors.ErrInitFailed, "plugin %q: %v", name, err)
	}

	r.setStatus(name, plugin.StatusInitialized)
	r.emitter.Emit(plugin.Event{
		Type:    plugin.EventInit,
		Plugin:  name,
		Version: p.Version(),
		Kind:    p.Kind(),
		Status:  plugin.StatusInitialized,
	})
	return nil
}

// StartPlugin drives one plugin through its start phase. Success advances
// the status to RUNNING; failure sets ERROR and returns an
// ErrStartFailed-classified error.
func (r *Registry) StartPlugin(ctx context.Context, name string) error {
	_, p, status, err := r.lookup(name)
	if err != nil {
		return err
	}
	if status != plugin.StatusInitialized {
		return errors.Wrapf(errors.ErrStartFailed,
			"plugin %q cannot start from status %s", name, status)
	}

	r.setStatus(name, plugin.StatusStarted)
	done := r.emitter.TimePhase(name, "start")
	err = safeCall(func() error { return p.Start(ctx) })
	done(err)
	if err != nil {
		r.failPhase(p, "start", err)
		return errors.Wrapf(errors.ErrStartFailed, "plugin %q: %v", name, err)
	}

	r.setStatus(name, plugin.StatusRunning)
	r.emitter.Emit(plugin.Event{
		Type:    plugin.EventStart,
		Plugin:  name,
		Version: p.Version(),
		Kind:    p.Kind(),
		Status:  plugin.StatusRunning,
	})
	return nil
}

// StopPlugin drives one plugin through its stop phase. The plugin's Stop
// races the context: when the context expires first the plugin is marked
// ERROR and the abandoned call is left to finish on its own, so one hung
// plugin cannot block shutdown. Errors are returned for recording, but
// bulk callers treat them as best-effort.
func (r *Registry) StopPlugin(ctx context.Context, name string) error {
	_, p, status, err := r.lookup(name)
	if err != nil {
		return err
	}
	if status != plugin.StatusRunning && status != plugin.StatusStarted {
		return errors.Wrapf(errors.ErrStopFailed,
			"plugin %q cannot stop from status %s", name, status)
	}

	done := r.emitter.TimePhase(name, "stop")

	result := make(chan error, 1)
	go func() {
		result <- safeCall(func() error { return p.Stop(ctx) })
	}()

	select {
	case err = <-result:
	case <-ctx.Done():
		err = errors.Wrapf(errors.ErrStopFailed, "plugin %q stop timed out: %v", name, ctx.Err())
	}
	done(err)

	if err != nil {
		r.failPhase(p, "stop", err)
		return errors.Wrapf(errors.ErrStopFailed, "plugin %q: %v", name, err)
	}

	r.setStatus(name, plugin.StatusStopped)
	r.emitter.Emit(plugin.Event{
		Type:    plugin.EventStop,
		Plugin:  name,
		Version: p.Version(),
		Kind:    p.Kind(),
		Status:  plugin.StatusStopped,
	})
	return nil
}

// pluginContext clones the host context for one plugin, layering manifest
// configuration on top and scoping the logger to the plugin name.
func (r *Registry) pluginContext(e *entry, p plugin.Plugin, ec *plugin.ExecutionContext) *plugin.ExecutionContext {
	pec := ec.Clone(plugin.ContextOverrides{Logger: r.log.Named(p.Name())})
	for key, value := range e.config {
		pec.SetConfigValue(key, value)
	}
	return pec
}

// failPhase records a phase failure: status ERROR plus an error event.
func (r *Registry) failPhase(p plugin.Plugin, phase string, err error) {
	r.setStatus(p.Name(), plugin.StatusError)
	r.emitter.EmitError(p, plugin.StatusError, phase, err)
}

// safeCall contains panics from plugin-supplied code.
func safeCall(fn func() error) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = errors.Newf("plugin panicked: %v", recovered)
		}
	}()
	return fn()
}
