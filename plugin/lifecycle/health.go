package lifecycle

import (
	"github.com/gantry-sh/gantry/errors"
	"github.com/gantry-sh/gantry/plugin"
	"github.com/gantry-sh/gantry/plugin/registry"
)

// PluginReport is the health view of a single plugin.
type PluginReport struct {
	Name    string              `json:"name"`
	Version string              `json:"version"`
	Kind    plugin.Kind         `json:"kind"`
	Status  plugin.Status       `json:"status"`
	Health  plugin.HealthStatus `json:"health"`
}

// SystemReport aggregates health across the whole registry.
type SystemReport struct {
	Total      int                   `json:"total"`
	Running    []string              `json:"running"`
	Errored    []string              `json:"errored"`
	ByStatus   map[plugin.Status]int `json:"by_status"`
	KindCounts map[plugin.Kind]int   `json:"kind_counts"`
	Healthy    bool                  `json:"healthy"`
}

// PluginHealth reports the registry status of one plugin plus its own
// health check when it implements HealthReporter. Plugins that do not
// self-report are considered healthy whenever they are running.
func (m *Manager) PluginHealth(name string) (PluginReport, error) {
	p, ok := m.registry.Get(name)
	if !ok {
		return PluginReport{}, errors.NewNotFound("plugin %q is not registered", name)
	}
	status, _ := m.registry.StatusOf(name)

	report := PluginReport{
		Name:    p.Name(),
		Version: p.Version(),
		Kind:    p.Kind(),
		Status:  status,
		Health: plugin.HealthStatus{
			Healthy: status == plugin.StatusRunning,
		},
	}
	if hr, ok := p.(plugin.HealthReporter); ok && status == plugin.StatusRunning {
		report.Health = hr.Health()
	}
	return report, nil
}

// SystemHealth summarizes every registered plugin. The system is
// healthy when no plugin is in the error status and every running
// self-reporting plugin reports healthy.
func (m *Manager) SystemHealth() SystemReport {
	report := SystemReport{
		ByStatus:   make(map[plugin.Status]int),
		KindCounts: make(map[plugin.Kind]int),
		Healthy:    true,
	}
	for _, p := range m.registry.List(registry.Filter{}) {
		name := p.Name()
		status, _ := m.registry.StatusOf(name)
		report.Total++
		report.ByStatus[status]++
		report.KindCounts[p.Kind()]++

		switch status {
		case plugin.StatusRunning:
			report.Running = append(report.Running, name)
			if hr, ok := p.(plugin.HealthReporter); ok && !hr.Health().Healthy {
				report.Healthy = false
			}
		case plugin.StatusError:
			report.Errored = append(report.Errored, name)
			report.Healthy = false
		}
	}
	return report
}
