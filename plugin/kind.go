package plugin

import (
	"strings"

	"github.com/gantry-sh/gantry/errors"
)

// Kind categorizes a plugin. The kind determines both the capability
// interface the plugin must satisfy and its position in the lifecycle
// manager's startup/shutdown ordering.
type Kind string

const (
	// KindExport produces exports of host data (CSV, PDF, ...).
	KindExport Kind = "export"
	// KindDeployment provisions and manages application deployments.
	KindDeployment Kind = "deployment"
	// KindDNS manages DNS validation and records.
	KindDNS Kind = "dns"
	// KindObserver consumes lifecycle events and metrics.
	KindObserver Kind = "observer"
	// KindRouter contributes HTTP routes to the host.
	KindRouter Kind = "router"
	// KindCustom is the catch-all for plugins outside the fixed kinds.
	KindCustom Kind = "custom"
)

// Kinds lists all valid kinds.
var Kinds = []Kind{KindExport, KindDeployment, KindDNS, KindObserver, KindRouter, KindCustom}

// ParseKind converts a string into a Kind, case-insensitively.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if !k.Valid() {
		return "", errors.Wrapf(errors.ErrConfigInvalid, "unknown plugin kind %q", s)
	}
	return k, nil
}

// Valid reports whether k is one of the fixed kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindExport, KindDeployment, KindDNS, KindObserver, KindRouter, KindCustom:
		return true
	}
	return false
}

func (k Kind) String() string {
	return string(k)
}
