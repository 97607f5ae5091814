package discovery

import (
	"context"
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"go.uber.org/zap"

	"github.com/gantry-sh/gantry/errors"
)

// Manifest describes one plugin in a manifest file. The manifest names a
// builtin factory that provides the implementation; manifests exist so
// operators can enable, disable and configure plugins without rebuilding
// the host.
type Manifest struct {
	// Name is the expected plugin name. The instantiated plugin must
	// agree, or the manifest is rejected.
	Name string `toml:"name"`

	// Group selects the factory group; empty means the source's group.
	Group string `toml:"group"`

	// Factory is the builtin factory key; empty means Name.
	Factory string `toml:"factory"`

	// Disabled registers the plugin but excludes it from lifecycle passes.
	Disabled bool `toml:"disabled"`

	// Config carries plugin-specific configuration overrides.
	Config map[string]interface{} `toml:"config"`

	// Signature is a base64-encoded detached signature over the plugin's
	// canonical payload. Empty means unsigned.
	Signature string `toml:"signature"`
}

// ManifestSource discovers plugins from a directory of TOML manifests.
type ManifestSource struct {
	dir   string
	group string
	log   *zap.SugaredLogger
}

// NewManifestSource creates a manifest source scanning dir, resolving
// factories against the given default group.
func NewManifestSource(dir, group string, log *zap.SugaredLogger) *ManifestSource {
	return &ManifestSource{dir: dir, group: group, log: log}
}

// Dir returns the scanned directory.
func (s *ManifestSource) Dir() string {
	return s.dir
}

// Discover scans the manifest directory. An unreadable directory is a
// whole-strategy failure (ErrDiscoveryFailed); a bad individual manifest
// is logged and skipped.
func (s *ManifestSource) Discover(ctx context.Context) ([]Candidate, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrDiscoveryFailed,
			"reading manifest directory %s: %v", s.dir, err)
	}

	var found []Candidate
	for _, entry := range entries {
		select {
		case <-ctx.Done():
			return found, nil
		default:
		}

		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".toml") {
			continue
		}
		path := filepath.Join(s.dir, entry.Name())
		candidate, err := s.loadManifest(path)
		if err != nil {
			s.log.Warnw("skipping plugin manifest", "path", path, "error", err)
			continue
		}
		found = append(found, candidate)
	}
	return found, nil
}

// loadManifest parses one manifest file and instantiates its plugin.
func (s *ManifestSource) loadManifest(path string) (Candidate, error) {
	var m Manifest
	if _, err := toml.DecodeFile(path, &m); err != nil {
		return Candidate{}, errors.Wrap(err, "parsing manifest")
	}
	if m.Name == "" {
		return Candidate{}, errors.Wrap(errors.ErrConfigInvalid, "manifest has no name")
	}

	group := m.Group
	if group == "" {
		group = s.group
	}
	factoryKey := m.Factory
	if factoryKey == "" {
		factoryKey = m.Name
	}

	factory, ok := ResolveBuiltin(group, factoryKey)
	if !ok {
		return Candidate{}, errors.Wrapf(errors.ErrNotFound,
			"no builtin factory %s/%s for manifest %s", group, factoryKey, path)
	}

	p, err := instantiate(factory)
	if err != nil {
		return Candidate{}, err
	}
	if err := ValidateCandidate(p); err != nil {
		return Candidate{}, err
	}
	if p.Name() != m.Name {
		return Candidate{}, errors.Wrapf(errors.ErrConfigInvalid,
			"manifest names plugin %q but factory produced %q", m.Name, p.Name())
	}

	var sig []byte
	if m.Signature != "" {
		sig, err = base64.StdEncoding.DecodeString(m.Signature)
		if err != nil {
			return Candidate{}, errors.Wrap(err, "decoding manifest signature")
		}
	}

	return Candidate{
		Plugin:    p,
		Disabled:  m.Disabled,
		Config:    m.Config,
		Signature: sig,
		Source:    path,
	}, nil
}
