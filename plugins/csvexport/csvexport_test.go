package csvexport

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gantry-sh/gantry/plugin"
)

func startedExporter(t *testing.T) *Exporter {
	t.Helper()
	ctx := context.Background()
	e := New()
	ec := plugin.NewExecutionContext()
	ec.SetConfigValue("output_dir", t.TempDir())
	require.NoError(t, e.Init(ctx, ec))
	require.NoError(t, e.Start(ctx))
	return e
}

func TestMetadataValid(t *testing.T) {
	meta := New().Metadata()
	assert.Empty(t, meta.Validate())
	assert.True(t, meta.HasCapability("filesystem"))
}

func TestValidateConfig(t *testing.T) {
	e := New()
	assert.NoError(t, e.ValidateConfig(map[string]interface{}{}))
	assert.NoError(t, e.ValidateConfig(map[string]interface{}{"output_dir": "/tmp/exports"}))
	assert.Error(t, e.ValidateConfig(map[string]interface{}{"output_dir": 42}))
}

func TestExport(t *testing.T) {
	ctx := context.Background()

	t.Run("writes rows to a csv file", func(t *testing.T) {
		e := startedExporter(t)

		result, err := e.Export(ctx, plugin.ExportTask{
			ID:     "orders-2026",
			Format: "csv",
			Query: map[string]interface{}{
				"rows": [][]string{
					{"1", "widget", "9.99"},
					{"2", "gadget", "24.50"},
				},
			},
			Options: map[string]interface{}{
				"header": []string{"id", "name", "price"},
			},
		})
		require.NoError(t, err)
		assert.Equal(t, 2, result.Records)
		assert.Equal(t, "text/csv", result.ContentType)

		data, err := os.ReadFile(result.Location)
		require.NoError(t, err)
		lines := strings.Split(strings.TrimSpace(string(data)), "\n")
		require.Len(t, lines, 3)
		assert.Equal(t, "id,name,price", lines[0])
		assert.Equal(t, "2,gadget,24.50", lines[2])
	})

	t.Run("accepts loosely typed rows", func(t *testing.T) {
		e := startedExporter(t)
		result, err := e.Export(ctx, plugin.ExportTask{
			ID: "loose",
			Query: map[string]interface{}{
				"rows": []interface{}{
					[]interface{}{"a", 1, true},
				},
			},
		})
		require.NoError(t, err)
		assert.Equal(t, 1, result.Records)
		assert.Equal(t, filepath.Base(result.Location), "loose.csv")
	})

	t.Run("rejects foreign formats", func(t *testing.T) {
		e := startedExporter(t)
		_, err := e.Export(ctx, plugin.ExportTask{ID: "x", Format: "xlsx"})
		assert.Error(t, err)
	})

	t.Run("rejects export before start", func(t *testing.T) {
		e := New()
		_, err := e.Export(ctx, plugin.ExportTask{ID: "x"})
		assert.Error(t, err)
	})
}

func TestHealth(t *testing.T) {
	ctx := context.Background()
	e := startedExporter(t)
	assert.True(t, e.Health().Healthy)

	require.NoError(t, e.Stop(ctx))
	assert.False(t, e.Health().Healthy)
}
