package discovery

import (
	"context"

	"go.uber.org/zap"
)

// Discoverer combines the builtin and manifest strategies. Either may be
// disabled independently; results are concatenated and deduplicated by
// plugin name, first occurrence winning.
type Discoverer struct {
	log *zap.SugaredLogger

	builtins  *BuiltinSource
	manifests *ManifestSource

	// EnableBuiltins and EnableManifests gate the two strategies.
	EnableBuiltins  bool
	EnableManifests bool
}

// NewDiscoverer creates a discoverer for the given group and manifest
// directory. An empty manifestDir disables manifest discovery.
func NewDiscoverer(group, manifestDir string, log *zap.SugaredLogger) *Discoverer {
	d := &Discoverer{
		log:            log,
		builtins:       NewBuiltinSource(group, log),
		EnableBuiltins: true,
	}
	if manifestDir != "" {
		d.manifests = NewManifestSource(manifestDir, group, log)
		d.EnableManifests = true
	}
	return d
}

// Builtins exposes the builtin source (nil-safe accessor for hosts).
func (d *Discoverer) Builtins() *BuiltinSource {
	return d.builtins
}

// Manifests exposes the manifest source; nil when manifest discovery is
// not configured.
func (d *Discoverer) Manifests() *ManifestSource {
	return d.manifests
}

// DiscoverAll runs every enabled strategy. Per-candidate failures were
// already skipped inside each strategy; this layer only deduplicates.
// A whole-strategy manifest failure propagates as ErrDiscoveryFailed.
func (d *Discoverer) DiscoverAll(ctx context.Context) ([]Candidate, error) {
	var all []Candidate

	if d.EnableBuiltins && d.builtins != nil {
		all = append(all, d.builtins.Discover(ctx)...)
	}
	if d.EnableManifests && d.manifests != nil {
		found, err := d.manifests.Discover(ctx)
		if err != nil {
			return nil, err
		}
		all = append(all, found...)
	}

	seen := make(map[string]string, len(all))
	unique := all[:0]
	for _, c := range all {
		name := c.Plugin.Name()
		if first, dup := seen[name]; dup {
			d.log.Warnw("duplicate plugin discovered, keeping first",
				"plugin", name, "kept", first, "dropped", c.Source)
			continue
		}
		seen[name] = c.Source
		unique = append(unique, c)
	}
	return unique, nil
}
