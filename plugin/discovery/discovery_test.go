package discovery

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gantry-sh/gantry/errors"
	"github.com/gantry-sh/gantry/plugin"
)

type mockPlugin struct {
	name    string
	version string
	kind    plugin.Kind
}

func (m *mockPlugin) Name() string      { return m.name }
func (m *mockPlugin) Version() string   { return m.version }
func (m *mockPlugin) Kind() plugin.Kind { return m.kind }
func (m *mockPlugin) Metadata() plugin.Metadata {
	return plugin.Metadata{Name: m.name, Version: m.version, Kind: m.kind}
}
func (m *mockPlugin) Init(_ context.Context, _ *plugin.ExecutionContext) error {
	return nil
}
func (m *mockPlugin) Start(_ context.Context) error { return nil }
func (m *mockPlugin) Stop(_ context.Context) error  { return nil }

var _ plugin.Plugin = (*mockPlugin)(nil)

func goodFactory(name string) Factory {
	return func() (plugin.Plugin, error) {
		return &mockPlugin{name: name, version: "1.0.0", kind: plugin.KindExport}, nil
	}
}

func testLogger() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}

func TestRegisterBuiltin(t *testing.T) {
	resetBuiltins()

	RegisterBuiltin("test.group", "a", goodFactory("a"))
	RegisterBuiltin("test.group", "b", goodFactory("b"))
	RegisterBuiltin("other.group", "a", goodFactory("a"))

	assert.Equal(t, []string{"a", "b"}, BuiltinNames("test.group"))

	_, ok := ResolveBuiltin("test.group", "a")
	assert.True(t, ok)
	_, ok = ResolveBuiltin("test.group", "missing")
	assert.False(t, ok)

	assert.Panics(t, func() { RegisterBuiltin("test.group", "a", goodFactory("a")) })
	assert.Panics(t, func() { RegisterBuiltin("test.group", "c", nil) })
}

func TestBuiltinDiscoverSkipsBadCandidates(t *testing.T) {
	resetBuiltins()

	RegisterBuiltin("g", "valid", goodFactory("valid"))
	RegisterBuiltin("g", "errors", func() (plugin.Plugin, error) {
		return nil, errors.New("boom")
	})
	RegisterBuiltin("g", "panics", func() (plugin.Plugin, error) {
		panic("factory exploded")
	})
	RegisterBuiltin("g", "bad-version", func() (plugin.Plugin, error) {
		return &mockPlugin{name: "bad-version", version: "not-semver", kind: plugin.KindExport}, nil
	})
	RegisterBuiltin("g", "bad-kind", func() (plugin.Plugin, error) {
		return &mockPlugin{name: "bad-kind", version: "1.0.0", kind: plugin.Kind("widget")}, nil
	})
	RegisterBuiltin("g", "nameless", func() (plugin.Plugin, error) {
		return &mockPlugin{name: "", version: "1.0.0", kind: plugin.KindExport}, nil
	})

	found := NewBuiltinSource("g", testLogger()).Discover(context.Background())
	require.Len(t, found, 1)
	assert.Equal(t, "valid", found[0].Plugin.Name())
	assert.Equal(t, "builtin", found[0].Source)
}

func writeManifest(t *testing.T, dir, file, contents string) string {
	t.Helper()
	path := filepath.Join(dir, file)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestManifestDiscover(t *testing.T) {
	resetBuiltins()
	RegisterBuiltin("g", "csv-export", goodFactory("csv-export"))
	RegisterBuiltin("g", "pdf-export", goodFactory("pdf-export"))

	dir := t.TempDir()
	writeManifest(t, dir, "csv.toml", `
name = "csv-export"

[config]
delimiter = ";"
`)
	writeManifest(t, dir, "disabled.toml", `
name = "pdf-export"
disabled = true
`)
	writeManifest(t, dir, "missing.toml", `
name = "no-such-factory"
`)
	writeManifest(t, dir, "broken.toml", `name = [unclosed`)
	writeManifest(t, dir, "notes.txt", "not a manifest")

	source := NewManifestSource(dir, "g", testLogger())
	found, err := source.Discover(context.Background())
	require.NoError(t, err)
	require.Len(t, found, 2)

	byName := map[string]Candidate{}
	for _, c := range found {
		byName[c.Plugin.Name()] = c
	}
	assert.Equal(t, ";", byName["csv-export"].Config["delimiter"])
	assert.False(t, byName["csv-export"].Disabled)
	assert.True(t, byName["pdf-export"].Disabled)
}

func TestManifestDiscoverRejectsNameMismatch(t *testing.T) {
	resetBuiltins()
	RegisterBuiltin("g", "actual", goodFactory("actual"))

	dir := t.TempDir()
	writeManifest(t, dir, "lie.toml", `
name = "claimed"
factory = "actual"
`)

	found, err := NewManifestSource(dir, "g", testLogger()).Discover(context.Background())
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestManifestDiscoverUnreadableDirFails(t *testing.T) {
	source := NewManifestSource("/does/not/exist", "g", testLogger())
	_, err := source.Discover(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrDiscoveryFailed))
}

func TestDiscoverAllDeduplicates(t *testing.T) {
	resetBuiltins()
	RegisterBuiltin("g", "csv-export", goodFactory("csv-export"))
	RegisterBuiltin("g", "dns-check", func() (plugin.Plugin, error) {
		return &mockPlugin{name: "dns-check", version: "2.0.0", kind: plugin.KindDNS}, nil
	})

	dir := t.TempDir()
	// Same plugin also declared in a manifest: the builtin wins.
	writeManifest(t, dir, "dup.toml", `
name = "csv-export"
`)

	d := NewDiscoverer("g", dir, testLogger())
	found, err := d.DiscoverAll(context.Background())
	require.NoError(t, err)
	require.Len(t, found, 2)

	names := map[string]string{}
	for _, c := range found {
		names[c.Plugin.Name()] = c.Source
	}
	assert.Equal(t, "builtin", names["csv-export"])
	assert.Equal(t, "builtin", names["dns-check"])
}

func TestDiscoverAllStrategiesIndependentlyDisabled(t *testing.T) {
	resetBuiltins()
	RegisterBuiltin("g", "csv-export", goodFactory("csv-export"))

	dir := t.TempDir()
	writeManifest(t, dir, "pdf.toml", `
name = "pdf-export"
factory = "pdf-export"
`)
	RegisterBuiltin("g", "pdf-export", goodFactory("pdf-export"))

	d := NewDiscoverer("g", dir, testLogger())
	d.EnableBuiltins = false
	found, err := d.DiscoverAll(context.Background())
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "pdf-export", found[0].Plugin.Name())

	d.EnableBuiltins = true
	d.EnableManifests = false
	found, err = d.DiscoverAll(context.Background())
	require.NoError(t, err)
	require.Len(t, found, 2) // both builtins, no manifests
}

func TestWatchDeliversNewManifest(t *testing.T) {
	resetBuiltins()
	RegisterBuiltin("g", "late-arrival", goodFactory("late-arrival"))

	dir := t.TempDir()
	source := NewManifestSource(dir, "g", testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ch, err := source.Watch(ctx)
	require.NoError(t, err)

	writeManifest(t, dir, "late.toml", `
name = "late-arrival"
`)

	select {
	case candidate, ok := <-ch:
		require.True(t, ok, "watch channel closed before delivering")
		assert.Equal(t, "late-arrival", candidate.Plugin.Name())
	case <-ctx.Done():
		t.Fatal("timed out waiting for watched manifest")
	}
}
