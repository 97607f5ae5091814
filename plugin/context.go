package plugin

import (
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/gantry-sh/gantry/errors"
)

// ExecutionContext carries the per-execution environment a plugin is
// handed at init time: tenant, environment tag, service lookups,
// configuration, and granted permissions.
//
// The host application constructs one context and may Clone it with
// overrides per plugin. Contexts are not persisted.
type ExecutionContext struct {
	// TenantID scopes the execution to a tenant, when multi-tenancy applies.
	TenantID string

	// Environment tags the execution environment (e.g. "production").
	Environment string

	// Logger is the structured logger plugins should use.
	Logger *zap.SugaredLogger

	services    map[string]interface{}
	config      map[string]interface{}
	permissions map[string]struct{}
}

// ContextOverrides selects fields to replace when cloning a context.
// Nil fields keep the original value.
type ContextOverrides struct {
	TenantID    *string
	Environment *string
	Logger      *zap.SugaredLogger
	Permissions []string // replaces the permission set when non-nil
}

// NewExecutionContext creates an empty execution context with a no-op
// logger.
func NewExecutionContext() *ExecutionContext {
	return &ExecutionContext{
		Logger:      zap.NewNop().Sugar(),
		services:    make(map[string]interface{}),
		config:      make(map[string]interface{}),
		permissions: make(map[string]struct{}),
	}
}

// RegisterService installs a named service handle for plugins to look up.
func (ec *ExecutionContext) RegisterService(name string, service interface{}) {
	ec.services[name] = service
}

// Service looks up a service handle by name.
func (ec *ExecutionContext) Service(name string) (interface{}, bool) {
	svc, ok := ec.services[name]
	return svc, ok
}

// RequireService looks up a service handle, failing with ErrNotFound when
// absent.
func (ec *ExecutionContext) RequireService(name string) (interface{}, error) {
	svc, ok := ec.services[name]
	if !ok {
		return nil, errors.NewNotFound("service %q is not registered", name)
	}
	return svc, nil
}

// ConfigValue resolves a dot-separated key through nested maps, returning
// def the moment a path segment is missing or not a map.
func (ec *ExecutionContext) ConfigValue(key string, def interface{}) interface{} {
	current := ec.config
	parts := strings.Split(key, ".")
	for i, part := range parts {
		v, ok := current[part]
		if !ok {
			return def
		}
		if i == len(parts)-1 {
			return v
		}
		next, ok := v.(map[string]interface{})
		if !ok {
			return def
		}
		current = next
	}
	return def
}

// SetConfigValue stores a value under a dot-separated key, creating
// intermediate maps as needed. A non-map intermediate value is replaced.
func (ec *ExecutionContext) SetConfigValue(key string, value interface{}) {
	current := ec.config
	parts := strings.Split(key, ".")
	for _, part := range parts[:len(parts)-1] {
		next, ok := current[part].(map[string]interface{})
		if !ok {
			next = make(map[string]interface{})
			current[part] = next
		}
		current = next
	}
	current[parts[len(parts)-1]] = value
}

// GrantPermission adds a permission to the granted set. A trailing ":*"
// grants every permission under the prefix.
func (ec *ExecutionContext) GrantPermission(perm string) {
	perm = strings.TrimSpace(perm)
	if perm != "" {
		ec.permissions[perm] = struct{}{}
	}
}

// RevokePermission removes a permission from the granted set.
func (ec *ExecutionContext) RevokePermission(perm string) {
	delete(ec.permissions, strings.TrimSpace(perm))
}

// HasPermission reports whether perm is granted, either exactly or via a
// suffix wildcard: a grant of "export:*" covers "export:csv" but not
// "import:csv" or the bare "export".
func (ec *ExecutionContext) HasPermission(perm string) bool {
	if _, ok := ec.permissions[perm]; ok {
		return true
	}
	for granted := range ec.permissions {
		if !strings.HasSuffix(granted, ":*") {
			continue
		}
		prefix := strings.TrimSuffix(granted, "*")
		if strings.HasPrefix(perm, prefix) && len(perm) > len(prefix) {
			return true
		}
	}
	return false
}

// RequirePermission fails with ErrPermissionDenied when perm is not
// granted, listing the granted set for diagnosis.
func (ec *ExecutionContext) RequirePermission(perm string) error {
	if ec.HasPermission(perm) {
		return nil
	}
	return errors.Wrapf(errors.ErrPermissionDenied,
		"permission %q not granted (granted: %v)", perm, ec.Permissions())
}

// Permissions returns the granted permission set, sorted.
func (ec *ExecutionContext) Permissions() []string {
	perms := make([]string, 0, len(ec.permissions))
	for p := range ec.permissions {
		perms = append(perms, p)
	}
	sort.Strings(perms)
	return perms
}

// Clone produces a new context with shallow copies of the service, config
// and permission tables, layering the given overrides on top.
func (ec *ExecutionContext) Clone(overrides ContextOverrides) *ExecutionContext {
	clone := &ExecutionContext{
		TenantID:    ec.TenantID,
		Environment: ec.Environment,
		Logger:      ec.Logger,
		services:    make(map[string]interface{}, len(ec.services)),
		config:      make(map[string]interface{}, len(ec.config)),
		permissions: make(map[string]struct{}, len(ec.permissions)),
	}
	for k, v := range ec.services {
		clone.services[k] = v
	}
	for k, v := range ec.config {
		clone.config[k] = v
	}
	for p := range ec.permissions {
		clone.permissions[p] = struct{}{}
	}

	if overrides.TenantID != nil {
		clone.TenantID = *overrides.TenantID
	}
	if overrides.Environment != nil {
		clone.Environment = *overrides.Environment
	}
	if overrides.Logger != nil {
		clone.Logger = overrides.Logger
	}
	if overrides.Permissions != nil {
		clone.permissions = make(map[string]struct{}, len(overrides.Permissions))
		for _, p := range overrides.Permissions {
			clone.GrantPermission(p)
		}
	}
	return clone
}
