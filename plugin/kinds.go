package plugin

import (
	"context"
	"net/http"
	"time"
)

// ExportTask describes one export request handed to an export plugin.
type ExportTask struct {
	ID      string                 `json:"id"`
	Format  string                 `json:"format"`
	Query   map[string]interface{} `json:"query,omitempty"`
	Options map[string]interface{} `json:"options,omitempty"`
}

// ExportResult is the outcome of an export task.
type ExportResult struct {
	TaskID      string        `json:"task_id"`
	Location    string        `json:"location"`
	ContentType string        `json:"content_type,omitempty"`
	Records     int           `json:"records"`
	Duration    time.Duration `json:"duration"`
}

// ExportPlugin is the capability interface for export-kind plugins.
type ExportPlugin interface {
	Plugin

	// Export runs one export task to completion.
	Export(ctx context.Context, task ExportTask) (*ExportResult, error)
}

// DeploymentSpec describes an application deployment request.
type DeploymentSpec struct {
	Application string            `json:"application"`
	Image       string            `json:"image"`
	Replicas    int               `json:"replicas"`
	Environment map[string]string `json:"environment,omitempty"`
}

// DeploymentResult reports where a deployment landed.
type DeploymentResult struct {
	Application string `json:"application"`
	Endpoint    string `json:"endpoint,omitempty"`
	Revision    string `json:"revision,omitempty"`
}

// DeploymentPlugin is the capability interface for deployment-kind plugins.
type DeploymentPlugin interface {
	Plugin

	// DeployApplication deploys an application described by spec.
	DeployApplication(ctx context.Context, spec DeploymentSpec) (*DeploymentResult, error)

	// SetDomain binds a custom domain to a deployed application.
	SetDomain(ctx context.Context, application, domain string) error
}

// DatabaseProvisioner is an optional extension for deployment plugins that
// can provision databases.
type DatabaseProvisioner interface {
	ProvisionDatabase(ctx context.Context, application, engine string) (dsn string, err error)
}

// CacheProvisioner is an optional extension for deployment plugins that
// can provision cache instances.
type CacheProvisioner interface {
	ProvisionCache(ctx context.Context, application string) (addr string, err error)
}

// DeploymentInspector is an optional extension for status lookups and
// teardown of deployments.
type DeploymentInspector interface {
	DeploymentStatus(ctx context.Context, application string) (map[string]interface{}, error)
	DeleteDeployment(ctx context.Context, application string) error
}

// CertificateReport summarizes an SSL certificate check.
type CertificateReport struct {
	FQDN      string    `json:"fqdn"`
	Valid     bool      `json:"valid"`
	Issuer    string    `json:"issuer,omitempty"`
	NotAfter  time.Time `json:"not_after,omitempty"`
	Problems  []string  `json:"problems,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

// DNSRecord describes a DNS record managed through a DNS plugin.
type DNSRecord struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Value string `json:"value"`
	TTL   int    `json:"ttl,omitempty"`
}

// DNSPlugin is the capability interface for dns-kind plugins.
type DNSPlugin interface {
	Plugin

	// ValidateSubdomain checks whether a subdomain label is acceptable.
	ValidateSubdomain(ctx context.Context, subdomain string) error

	// CheckPropagation reports whether a name has propagated.
	CheckPropagation(ctx context.Context, fqdn string) (bool, error)

	// ValidateSSLCertificate inspects the certificate served for a name.
	ValidateSSLCertificate(ctx context.Context, fqdn string) (*CertificateReport, error)
}

// RecordManager is an optional extension for DNS plugins that manage
// records directly.
type RecordManager interface {
	CreateRecord(ctx context.Context, record DNSRecord) error
	DeleteRecord(ctx context.Context, record DNSRecord) error
}

// ObserverPlugin is the capability interface for observer-kind plugins.
// Observers start first and stop last so every other plugin's lifecycle
// is visible to them.
type ObserverPlugin interface {
	Plugin

	// OnEvent delivers one lifecycle event to the observer.
	OnEvent(ctx context.Context, event Event) error
}

// MetricObserver is an optional extension for observers that also consume
// metrics.
type MetricObserver interface {
	OnMetric(ctx context.Context, name string, value float64, tags map[string]string) error
}

// EventFilter is an optional extension letting an observer restrict which
// event types it receives.
type EventFilter interface {
	// EventTypes returns the event types the observer wants. An empty
	// slice means all types.
	EventTypes() []EventType
}

// RouterPlugin is the capability interface for router-kind plugins. The
// returned handler is an opaque boundary: the core mounts it and never
// inspects its contents.
type RouterPlugin interface {
	Plugin

	// Router returns the HTTP handler contributed by this plugin.
	Router() http.Handler
}

// RouteHints is an optional extension carrying mounting hints for router
// plugins.
type RouteHints interface {
	// Prefix returns the mount prefix (e.g. "/api/billing").
	Prefix() string

	// Tags returns documentation tags for the contributed routes.
	Tags() []string

	// IncludeInSchema reports whether the routes belong in generated API
	// documentation.
	IncludeInSchema() bool
}
