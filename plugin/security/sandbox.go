package security

import (
	"fmt"
	"os"
	"sync"

	"github.com/shirou/gopsutil/v3/process"
	"go.uber.org/zap"

	"github.com/gantry-sh/gantry/plugin"
)

// Sandbox holds per-plugin security policies with a registry-wide default.
// All checks are advisory: the sandbox reports violations for the host to
// act on rather than blocking registration itself.
type Sandbox struct {
	log           *zap.SugaredLogger
	defaultPolicy Policy

	mu       sync.RWMutex
	policies map[string]Policy
}

// NewSandbox creates a sandbox falling back to the given default policy
// for plugins without a dedicated one.
func NewSandbox(log *zap.SugaredLogger, defaultPolicy Policy) *Sandbox {
	return &Sandbox{
		log:           log,
		defaultPolicy: defaultPolicy,
		policies:      make(map[string]Policy),
	}
}

// SetPolicy assigns a policy to one plugin name.
func (s *Sandbox) SetPolicy(pluginName string, policy Policy) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.policies[pluginName] = policy
}

// PolicyFor returns the policy governing a plugin, falling back to the
// sandbox default.
func (s *Sandbox) PolicyFor(pluginName string) Policy {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p, ok := s.policies[pluginName]; ok {
		return p
	}
	return s.defaultPolicy
}

// ValidateCapabilities compares a plugin's declared capabilities against
// its policy and returns violation descriptions. Empty means compliant.
// Only truthy capability declarations count as requests.
func (s *Sandbox) ValidateCapabilities(p plugin.Plugin) []string {
	policy := s.PolicyFor(p.Name())

	var violations []string
	for capability, declared := range p.Metadata().Capabilities {
		if !capabilityRequested(declared) {
			continue
		}
		allowed, known := policy.capabilityAllowed(capability)
		if !known {
			continue
		}
		if !allowed {
			violations = append(violations,
				fmt.Sprintf("plugin %q declares capability %q denied by %s policy",
					p.Name(), capability, policy.Level))
		}
	}
	return violations
}

// UsageReport snapshots the host process's resource usage and compares it
// against a plugin's limits. Plugins share the host process, so the
// numbers are process-wide; the report is advisory.
type UsageReport struct {
	MemoryBytes     uint64   `json:"memory_bytes"`
	FileDescriptors int32    `json:"file_descriptors"`
	Threads         int32    `json:"threads"`
	Violations      []string `json:"violations,omitempty"`
}

// Usage builds a UsageReport for the plugin's policy limits.
func (s *Sandbox) Usage(pluginName string) (*UsageReport, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, err
	}

	report := &UsageReport{}
	limits := s.PolicyFor(pluginName).Limits

	if mem, err := proc.MemoryInfo(); err == nil && mem != nil {
		report.MemoryBytes = mem.RSS
		if limits.MaxMemoryBytes > 0 && mem.RSS > limits.MaxMemoryBytes {
			report.Violations = append(report.Violations,
				fmt.Sprintf("memory %d exceeds limit %d", mem.RSS, limits.MaxMemoryBytes))
		}
	}
	if fds, err := proc.NumFDs(); err == nil {
		report.FileDescriptors = fds
		if limits.MaxFileDescriptors > 0 && fds > limits.MaxFileDescriptors {
			report.Violations = append(report.Violations,
				fmt.Sprintf("file descriptors %d exceed limit %d", fds, limits.MaxFileDescriptors))
		}
	}
	if threads, err := proc.NumThreads(); err == nil {
		report.Threads = threads
		if limits.MaxThreads > 0 && threads > limits.MaxThreads {
			report.Violations = append(report.Violations,
				fmt.Sprintf("threads %d exceed limit %d", threads, limits.MaxThreads))
		}
	}
	return report, nil
}

// ApplyLimits makes a best-effort attempt to apply the plugin's resource
// ceilings as OS process limits. Unsupported platforms and failures are
// logged, never fatal.
func (s *Sandbox) ApplyLimits(pluginName string) {
	limits := s.PolicyFor(pluginName).Limits
	if limits == (Limits{}) {
		return
	}
	if err := applyProcessLimits(limits); err != nil {
		s.log.Warnw("could not apply resource limits",
			"plugin", pluginName, "error", err)
		return
	}
	s.log.Debugw("resource limits applied", "plugin", pluginName)
}

// capabilityRequested interprets a declared capability value as a request.
func capabilityRequested(v interface{}) bool {
	switch val := v.(type) {
	case bool:
		return val
	case string:
		return val != "" && val != "false"
	case nil:
		return false
	default:
		return true
	}
}
