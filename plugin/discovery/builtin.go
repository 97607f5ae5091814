// Package discovery locates plugin candidates for registration.
//
// Two independent strategies exist:
//   - builtin discovery: an in-process factory table populated at program
//     init time (the database/sql driver idiom), keyed by group
//   - manifest discovery: a directory of TOML manifests, each referencing
//     a builtin factory and optionally carrying configuration overrides
//
// Both share the same failure policy: a single bad candidate is logged
// and skipped, never aborting the scan; only a whole-strategy failure
// (e.g. an unreadable manifest directory) surfaces as ErrDiscoveryFailed.
package discovery

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/gantry-sh/gantry/errors"
	"github.com/gantry-sh/gantry/plugin"
)

// Factory produces a ready plugin instance.
type Factory func() (plugin.Plugin, error)

var (
	builtinMu sync.RWMutex
	builtins  = make(map[string]map[string]Factory)
)

// RegisterBuiltin installs a plugin factory under a group. Typically
// called from a plugin package's init function. Registering the same
// group/name pair twice panics: it is a programmer error.
func RegisterBuiltin(group, name string, factory Factory) {
	if factory == nil {
		panic("discovery: RegisterBuiltin with nil factory")
	}
	builtinMu.Lock()
	defer builtinMu.Unlock()
	byName, ok := builtins[group]
	if !ok {
		byName = make(map[string]Factory)
		builtins[group] = byName
	}
	if _, dup := byName[name]; dup {
		panic("discovery: RegisterBuiltin called twice for " + group + "/" + name)
	}
	byName[name] = factory
}

// ResolveBuiltin looks up a registered factory.
func ResolveBuiltin(group, name string) (Factory, bool) {
	builtinMu.RLock()
	defer builtinMu.RUnlock()
	f, ok := builtins[group][name]
	return f, ok
}

// BuiltinNames lists the factory names registered under a group, sorted.
func BuiltinNames(group string) []string {
	builtinMu.RLock()
	defer builtinMu.RUnlock()
	names := make([]string, 0, len(builtins[group]))
	for name := range builtins[group] {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// resetBuiltins clears the factory table. Tests only.
func resetBuiltins() {
	builtinMu.Lock()
	defer builtinMu.Unlock()
	builtins = make(map[string]map[string]Factory)
}

// Candidate is one discovered plugin awaiting registration.
type Candidate struct {
	Plugin   plugin.Plugin
	Disabled bool
	Config   map[string]interface{}
	// Signature is the raw detached signature over the plugin's
	// canonical payload, when the manifest carries one.
	Signature []byte
	// Source records where the candidate came from: "builtin" or the
	// manifest file path.
	Source string
}

// BuiltinSource discovers plugins from the in-process factory table.
type BuiltinSource struct {
	group string
	log   *zap.SugaredLogger
}

// NewBuiltinSource creates a builtin source for one group.
func NewBuiltinSource(group string, log *zap.SugaredLogger) *BuiltinSource {
	return &BuiltinSource{group: group, log: log}
}

// Group returns the group the source scans.
func (s *BuiltinSource) Group() string {
	return s.group
}

// Discover instantiates and validates every factory in the group. A
// factory that errors, panics, or produces an invalid plugin is skipped
// with a warning.
func (s *BuiltinSource) Discover(ctx context.Context) []Candidate {
	var found []Candidate
	for _, name := range BuiltinNames(s.group) {
		select {
		case <-ctx.Done():
			return found
		default:
		}

		factory, _ := ResolveBuiltin(s.group, name)
		p, err := instantiate(factory)
		if err != nil {
			s.log.Warnw("skipping builtin plugin", "group", s.group, "name", name, "error", err)
			continue
		}
		if err := ValidateCandidate(p); err != nil {
			s.log.Warnw("skipping invalid builtin plugin", "group", s.group, "name", name, "error", err)
			continue
		}
		found = append(found, Candidate{Plugin: p, Source: "builtin"})
	}
	return found
}

// instantiate invokes a factory, converting panics into errors so one bad
// factory cannot abort a scan.
func instantiate(factory Factory) (p plugin.Plugin, err error) {
	defer func() {
		if r := recover(); r != nil {
			p = nil
			err = errors.Newf("factory panicked: %v", r)
		}
	}()
	p, err = factory()
	if err == nil && p == nil {
		err = errors.New("factory returned nil plugin")
	}
	return p, err
}

// ValidateCandidate checks the minimal contract shape discovery requires:
// non-empty name and parseable version, a valid kind, and metadata with no
// accumulated problems.
func ValidateCandidate(p plugin.Plugin) error {
	if p == nil {
		return errors.New("nil plugin")
	}
	if p.Name() == "" {
		return errors.Wrap(errors.ErrConfigInvalid, "plugin has empty name")
	}
	if _, err := plugin.ParseVersion(p.Version()); err != nil {
		return err
	}
	if !p.Kind().Valid() {
		return errors.Wrapf(errors.ErrConfigInvalid, "plugin %q has unknown kind %q", p.Name(), p.Kind())
	}
	if problems := p.Metadata().Validate(); len(problems) > 0 {
		return errors.Wrapf(errors.ErrConfigInvalid, "plugin %q metadata invalid: %v", p.Name(), problems)
	}
	return nil
}
