package plugin

import (
	"fmt"
	"net/mail"
	"net/url"
	"regexp"
	"strings"

	"github.com/gantry-sh/gantry/errors"
)

// DefaultAPIVersion is assumed when metadata declares no API version.
const DefaultAPIVersion = "1.0.0"

// CurrentAPIVersion is the plugin API line this host speaks. Plugins
// declaring an incompatible major API version are refused at
// registration.
const CurrentAPIVersion = "1.0.0"

// namePattern restricts plugin names to alphanumerics, hyphens and
// underscores, with alphanumeric first and last characters.
var namePattern = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9_-]*[a-zA-Z0-9])?$`)

// Author identifies a plugin author or maintainer.
type Author struct {
	Name  string `json:"name" toml:"name"`
	Email string `json:"email,omitempty" toml:"email,omitempty"`
	URL   string `json:"url,omitempty" toml:"url,omitempty"`
}

// Metadata describes a plugin. Name and Version are the plugin's
// immutable identity; everything else is descriptive.
type Metadata struct {
	Name                string                 `json:"name" toml:"name"`
	Version             string                 `json:"version" toml:"version"`
	Kind                Kind                   `json:"kind" toml:"kind"`
	Author              Author                 `json:"author,omitempty" toml:"author,omitempty"`
	Description         string                 `json:"description,omitempty" toml:"description,omitempty"`
	Homepage            string                 `json:"homepage,omitempty" toml:"homepage,omitempty"`
	Repository          string                 `json:"repository,omitempty" toml:"repository,omitempty"`
	Capabilities        map[string]interface{} `json:"capabilities,omitempty" toml:"capabilities,omitempty"`
	RequiredPermissions []string               `json:"required_permissions,omitempty" toml:"required_permissions,omitempty"`
	Dependencies        []string               `json:"dependencies,omitempty" toml:"dependencies,omitempty"`
	APIVersion          string                 `json:"api_version,omitempty" toml:"api_version,omitempty"`
	Keywords            []string               `json:"keywords,omitempty" toml:"keywords,omitempty"`
	Category            string                 `json:"category,omitempty" toml:"category,omitempty"`
}

// NewMetadata constructs normalized metadata, failing fast on the first
// violation.
func NewMetadata(name, version string, kind Kind) (Metadata, error) {
	m := Metadata{Name: name, Version: version, Kind: kind}
	if err := m.Normalize(); err != nil {
		return Metadata{}, err
	}
	return m, nil
}

// Normalize validates identity fields and canonicalizes the rest:
// permissions are trimmed and deduplicated, keywords lower-cased, and the
// API version defaulted. It fails fast on the first violation.
func (m *Metadata) Normalize() error {
	if !namePattern.MatchString(m.Name) {
		return errors.Wrapf(errors.ErrConfigInvalid,
			"plugin name %q must be alphanumeric with interior hyphens/underscores", m.Name)
	}
	if _, err := ParseVersion(m.Version); err != nil {
		return err
	}
	if !m.Kind.Valid() {
		return errors.Wrapf(errors.ErrConfigInvalid, "unknown plugin kind %q", m.Kind)
	}
	if m.Author.Email != "" {
		if _, err := mail.ParseAddress(m.Author.Email); err != nil {
			return errors.Wrapf(errors.ErrConfigInvalid, "author email %q: %v", m.Author.Email, err)
		}
	}
	for _, u := range []string{m.Author.URL, m.Homepage, m.Repository} {
		if u == "" {
			continue
		}
		if err := validateURL(u); err != nil {
			return err
		}
	}
	if m.APIVersion == "" {
		m.APIVersion = DefaultAPIVersion
	} else if _, err := ParseVersion(m.APIVersion); err != nil {
		return errors.Wrapf(errors.ErrConfigInvalid, "api_version %q is not a semantic version", m.APIVersion)
	}

	m.RequiredPermissions = dedupeTrimmed(m.RequiredPermissions)

	keywords := make([]string, 0, len(m.Keywords))
	for _, kw := range m.Keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" {
			keywords = append(keywords, kw)
		}
	}
	m.Keywords = keywords
	return nil
}

// Validate returns the accumulated list of problems with the metadata,
// for advisory use. An empty slice means the metadata is acceptable.
func (m Metadata) Validate() []string {
	var problems []string
	if !namePattern.MatchString(m.Name) {
		problems = append(problems, fmt.Sprintf("name %q does not match the required pattern", m.Name))
	}
	if _, err := ParseVersion(m.Version); err != nil {
		problems = append(problems, fmt.Sprintf("version %q is not a valid semantic version", m.Version))
	}
	if !m.Kind.Valid() {
		problems = append(problems, fmt.Sprintf("kind %q is not a known plugin kind", m.Kind))
	}
	if m.Author.Email != "" {
		if _, err := mail.ParseAddress(m.Author.Email); err != nil {
			problems = append(problems, fmt.Sprintf("author email %q is malformed", m.Author.Email))
		}
	}
	for _, u := range []string{m.Author.URL, m.Homepage, m.Repository} {
		if u != "" {
			if err := validateURL(u); err != nil {
				problems = append(problems, fmt.Sprintf("url %q is malformed", u))
			}
		}
	}
	if m.APIVersion != "" {
		if _, err := ParseVersion(m.APIVersion); err != nil {
			problems = append(problems, fmt.Sprintf("api_version %q is not a valid semantic version", m.APIVersion))
		}
	}
	return problems
}

// HasCapability reports whether the capability map declares the given key.
func (m Metadata) HasCapability(name string) bool {
	_, ok := m.Capabilities[name]
	return ok
}

func validateURL(raw string) error {
	u, err := url.ParseRequestURI(raw)
	if err != nil {
		return errors.Wrapf(errors.ErrConfigInvalid, "malformed url %q", raw)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.Wrapf(errors.ErrConfigInvalid, "url %q must use http or https", raw)
	}
	return nil
}

func dedupeTrimmed(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
