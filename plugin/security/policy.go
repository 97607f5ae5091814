// Package security provides declarative sandbox policies and signature
// verification for plugins.
//
// Policies are declared intent: the host checks a plugin's declared
// capabilities and observed resource usage against the policy and acts on
// the advisory result. OS-level isolation is out of scope; the only
// enforcement attempted is a best-effort application of process resource
// limits where the platform supports it.
package security

import (
	"strings"
	"time"

	"github.com/gantry-sh/gantry/errors"
)

// Level grades how restrictive a policy is.
type Level string

const (
	// LevelUnrestricted imposes no restrictions.
	LevelUnrestricted Level = "unrestricted"
	// LevelMinimal restricts only the most dangerous capabilities.
	LevelMinimal Level = "minimal"
	// LevelStandard is the balanced default for third-party plugins.
	LevelStandard Level = "standard"
	// LevelStrict denies everything not explicitly allow-listed.
	LevelStrict Level = "strict"
)

// ParseLevel converts a string into a Level, case-insensitively.
func ParseLevel(s string) (Level, error) {
	l := Level(strings.ToLower(strings.TrimSpace(s)))
	switch l {
	case LevelUnrestricted, LevelMinimal, LevelStandard, LevelStrict:
		return l, nil
	}
	return "", errors.Wrapf(errors.ErrConfigInvalid, "unknown security level %q", s)
}

// PolicyForLevel returns the named constructor's policy for a level.
func PolicyForLevel(l Level) Policy {
	switch l {
	case LevelUnrestricted:
		return UnrestrictedPolicy()
	case LevelMinimal:
		return MinimalPolicy()
	case LevelStrict:
		return StrictPolicy()
	default:
		return StandardPolicy()
	}
}

// Limits bounds a plugin's resource consumption. A zero value means the
// corresponding limit is unset.
type Limits struct {
	MaxMemoryBytes     uint64        `json:"max_memory_bytes,omitempty" toml:"max_memory_bytes,omitempty"`
	MaxCPUSeconds      uint64        `json:"max_cpu_seconds,omitempty" toml:"max_cpu_seconds,omitempty"`
	MaxFileDescriptors int32         `json:"max_file_descriptors,omitempty" toml:"max_file_descriptors,omitempty"`
	MaxThreads         int32         `json:"max_threads,omitempty" toml:"max_threads,omitempty"`
	ExecTimeout        time.Duration `json:"exec_timeout,omitempty" toml:"exec_timeout,omitempty"`
}

// Policy is the declarative security posture for one plugin (or the
// registry-wide default). Pure data; construct with the named constructors
// and adjust fields rather than mutating shared globals.
type Policy struct {
	Level  Level  `json:"level" toml:"level"`
	Limits Limits `json:"limits,omitempty" toml:"limits,omitempty"`

	// Capability flags. A plugin declaring a capability its policy
	// disallows is reported as a violation.
	AllowNetwork        bool `json:"allow_network" toml:"allow_network"`
	AllowFilesystem     bool `json:"allow_filesystem" toml:"allow_filesystem"`
	AllowSubprocess     bool `json:"allow_subprocess" toml:"allow_subprocess"`
	AllowNativeCode     bool `json:"allow_native_code" toml:"allow_native_code"`
	AllowDynamicImports bool `json:"allow_dynamic_imports" toml:"allow_dynamic_imports"`
	AllowEval           bool `json:"allow_eval" toml:"allow_eval"`

	// Allow-lists consulted by the host when the corresponding capability
	// is granted. Empty means unrestricted within the capability.
	FilesystemPaths []string `json:"filesystem_paths,omitempty" toml:"filesystem_paths,omitempty"`
	NetworkHosts    []string `json:"network_hosts,omitempty" toml:"network_hosts,omitempty"`
	EnvVars         []string `json:"env_vars,omitempty" toml:"env_vars,omitempty"`

	ReadOnlyFilesystem bool `json:"read_only_filesystem" toml:"read_only_filesystem"`
	AuditLog           bool `json:"audit_log" toml:"audit_log"`
}

// UnrestrictedPolicy allows everything. For first-party plugins.
func UnrestrictedPolicy() Policy {
	return Policy{
		Level:               LevelUnrestricted,
		AllowNetwork:        true,
		AllowFilesystem:     true,
		AllowSubprocess:     true,
		AllowNativeCode:     true,
		AllowDynamicImports: true,
		AllowEval:           true,
	}
}

// MinimalPolicy denies only the most dangerous capabilities: native code
// and eval. Everything else passes.
func MinimalPolicy() Policy {
	return Policy{
		Level:               LevelMinimal,
		AllowNetwork:        true,
		AllowFilesystem:     true,
		AllowSubprocess:     true,
		AllowDynamicImports: true,
	}
}

// StandardPolicy allows network and filesystem access but denies process
// spawning, native code, dynamic imports and eval.
func StandardPolicy() Policy {
	return Policy{
		Level:           LevelStandard,
		AllowNetwork:    true,
		AllowFilesystem: true,
		AuditLog:        true,
	}
}

// StrictPolicy denies every capability and bounds resource usage.
func StrictPolicy() Policy {
	return Policy{
		Level: LevelStrict,
		Limits: Limits{
			MaxMemoryBytes:     256 << 20,
			MaxCPUSeconds:      60,
			MaxFileDescriptors: 64,
			MaxThreads:         16,
			ExecTimeout:        30 * time.Second,
		},
		ReadOnlyFilesystem: true,
		AuditLog:           true,
	}
}

// capabilityFlags maps declared capability keys to the policy flag that
// must allow them.
func (p Policy) capabilityAllowed(capability string) (allowed, known bool) {
	switch capability {
	case "network":
		return p.AllowNetwork, true
	case "filesystem":
		return p.AllowFilesystem, true
	case "subprocess":
		return p.AllowSubprocess, true
	case "native_code":
		return p.AllowNativeCode, true
	case "dynamic_imports":
		return p.AllowDynamicImports, true
	case "eval":
		return p.AllowEval, true
	default:
		return false, false
	}
}
