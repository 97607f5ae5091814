package plugin

// Status represents the current lifecycle state of a plugin. The registry
// exclusively owns a plugin's status; nothing else mutates it.
type Status string

const (
	// StatusUnknown is the zero state before registration.
	StatusUnknown Status = "unknown"
	// StatusRegistered indicates the plugin passed registration validation.
	StatusRegistered Status = "registered"
	// StatusInitialized indicates Init completed successfully.
	StatusInitialized Status = "initialized"
	// StatusStarted indicates Start was invoked.
	StatusStarted Status = "started"
	// StatusRunning indicates the plugin is active and serving.
	StatusRunning Status = "running"
	// StatusStopped indicates the plugin was shut down cleanly.
	StatusStopped Status = "stopped"
	// StatusError indicates a lifecycle phase failed. Terminal for the
	// current pass: no further phase progress without an explicit restart.
	StatusError Status = "error"
	// StatusDisabled indicates the plugin is registered but excluded from
	// bulk lifecycle operations.
	StatusDisabled Status = "disabled"
)

func (s Status) String() string {
	return string(s)
}
