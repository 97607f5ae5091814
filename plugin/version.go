package plugin

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/gantry-sh/gantry/errors"
)

// Version is a parsed semantic version: MAJOR.MINOR.PATCH with optional
// pre-release and build metadata.
type Version struct {
	Major      uint64
	Minor      uint64
	Patch      uint64
	Prerelease string
	Build      string
}

// ParseVersion parses a strict semantic version string. The numeric
// MAJOR.MINOR.PATCH triple is mandatory; anything less is rejected.
func ParseVersion(s string) (Version, error) {
	sv, err := semver.StrictNewVersion(strings.TrimSpace(s))
	if err != nil {
		return Version{}, errors.Wrapf(errors.ErrConfigInvalid, "invalid semantic version %q: %v", s, err)
	}
	return Version{
		Major:      sv.Major(),
		Minor:      sv.Minor(),
		Patch:      sv.Patch(),
		Prerelease: sv.Prerelease(),
		Build:      sv.Metadata(),
	}, nil
}

// MustParseVersion is ParseVersion that panics on error, for static
// version declarations in plugin code.
func MustParseVersion(s string) Version {
	v, err := ParseVersion(s)
	if err != nil {
		panic(err)
	}
	return v
}

// String reconstructs the canonical version string.
func (v Version) String() string {
	s := fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
	if v.Prerelease != "" {
		s += "-" + v.Prerelease
	}
	if v.Build != "" {
		s += "+" + v.Build
	}
	return s
}

// Compare returns -1, 0 or 1 according to version precedence. The numeric
// triple compares first; at equal core a release outranks any pre-release,
// and two pre-release strings compare lexically. Build metadata is ignored.
func (v Version) Compare(other Version) int {
	if c := compareUint64(v.Major, other.Major); c != 0 {
		return c
	}
	if c := compareUint64(v.Minor, other.Minor); c != 0 {
		return c
	}
	if c := compareUint64(v.Patch, other.Patch); c != 0 {
		return c
	}
	switch {
	case v.Prerelease == "" && other.Prerelease == "":
		return 0
	case v.Prerelease == "":
		return 1
	case other.Prerelease == "":
		return -1
	default:
		return strings.Compare(v.Prerelease, other.Prerelease)
	}
}

// LessThan reports whether v has lower precedence than other.
func (v Version) LessThan(other Version) bool {
	return v.Compare(other) < 0
}

// Equal reports whether v and other have equal precedence.
func (v Version) Equal(other Version) bool {
	return v.Compare(other) == 0
}

// IsCompatible reports whether two versions share a major version.
func (v Version) IsCompatible(other Version) bool {
	return v.Major == other.Major
}

func compareUint64(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
