// Package plugin defines the contract for gantry plugins.
//
// A plugin is a unit of host-extensible behavior with a declared kind,
// semantic version, and metadata. The registry owns each plugin's
// lifecycle status; plugins only implement the phase methods.
//
// Architecture:
//   - Plugins are in-process Go values satisfying the Plugin interface
//   - Each kind (export, deployment, dns, observer, router, custom) adds
//     its own capability interface on top of Plugin
//   - Optional behavior (config validation, health reporting) is expressed
//     through extension interfaces, discovered with type assertions
package plugin

import (
	"context"
)

// Plugin is the interface every gantry plugin must implement.
type Plugin interface {
	// Name returns the unique plugin identifier.
	Name() string

	// Version returns the plugin's semantic version string.
	Version() string

	// Kind returns the plugin's category, fixed for its lifetime.
	Kind() Kind

	// Metadata returns descriptive metadata about the plugin.
	Metadata() Metadata

	// Init prepares the plugin with its execution context. Called once
	// after registration, before Start.
	Init(ctx context.Context, ec *ExecutionContext) error

	// Start activates the plugin. Called after a successful Init.
	Start(ctx context.Context) error

	// Stop deactivates the plugin. Best-effort: the core records but
	// never propagates stop failures during bulk shutdown.
	Stop(ctx context.Context) error
}

// ConfigValidator is an optional interface for plugins that validate
// their configuration before init.
type ConfigValidator interface {
	Plugin

	// ValidateConfig checks the plugin-specific configuration map.
	ValidateConfig(config map[string]interface{}) error
}

// HealthReporter is an optional interface for plugins that report their
// own health. Plugins without it get a registry-synthesized status.
type HealthReporter interface {
	Plugin

	// Health returns the plugin's self-reported health.
	Health() HealthStatus
}

// HealthStatus represents the health of a plugin.
type HealthStatus struct {
	Healthy bool                   `json:"healthy"`
	Message string                 `json:"message,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}
