// Package csvexport provides the builtin CSV export plugin. It writes
// query rows to CSV files under a configurable output directory.
package csvexport

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/gantry-sh/gantry/errors"
	"github.com/gantry-sh/gantry/plugin"
	"github.com/gantry-sh/gantry/plugin/discovery"
)

const (
	pluginName    = "csv-export"
	pluginVersion = "1.0.0"

	defaultOutputDir = "exports"
)

func init() {
	discovery.RegisterBuiltin("gantry", pluginName, func() (plugin.Plugin, error) {
		return New(), nil
	})
}

// Exporter is the builtin CSV export plugin.
type Exporter struct {
	mu        sync.Mutex
	log       *zap.SugaredLogger
	outputDir string
	running   bool
	exported  int
}

// New creates an unstarted exporter with defaults.
func New() *Exporter {
	return &Exporter{outputDir: defaultOutputDir}
}

func (e *Exporter) Name() string      { return pluginName }
func (e *Exporter) Version() string   { return pluginVersion }
func (e *Exporter) Kind() plugin.Kind { return plugin.KindExport }

func (e *Exporter) Metadata() plugin.Metadata {
	return plugin.Metadata{
		Name:        pluginName,
		Version:     pluginVersion,
		Kind:        plugin.KindExport,
		Description: "Exports query results to CSV files",
		Author:      plugin.Author{Name: "Gantry Authors"},
		Capabilities: map[string]interface{}{
			"filesystem": true,
		},
		Category: "export",
		Keywords: []string{"csv", "export"},
	}
}

// ValidateConfig accepts an optional output_dir string.
func (e *Exporter) ValidateConfig(config map[string]interface{}) error {
	if raw, ok := config["output_dir"]; ok {
		if _, ok := raw.(string); !ok {
			return errors.Newf("output_dir must be a string, got %T", raw)
		}
	}
	return nil
}

func (e *Exporter) Init(_ context.Context, ec *plugin.ExecutionContext) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.log = ec.Logger
	if dir, ok := ec.ConfigValue("output_dir", defaultOutputDir).(string); ok && dir != "" {
		e.outputDir = dir
	}
	return nil
}

func (e *Exporter) Start(_ context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := os.MkdirAll(e.outputDir, 0o755); err != nil {
		return errors.Wrapf(err, "creating output directory %s", e.outputDir)
	}
	e.running = true
	return nil
}

func (e *Exporter) Stop(_ context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.running = false
	return nil
}

// Health reports running state and the export counter.
func (e *Exporter) Health() plugin.HealthStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	return plugin.HealthStatus{
		Healthy: e.running,
		Details: map[string]interface{}{
			"output_dir": e.outputDir,
			"exported":   e.exported,
		},
	}
}

// Export writes the task's rows to <output_dir>/<task id>.csv. Rows come
// from the task query under the "rows" key as [][]string; the "header"
// option may prepend a header row.
func (e *Exporter) Export(ctx context.Context, task plugin.ExportTask) (*plugin.ExportResult, error) {
	e.mu.Lock()
	running := e.running
	dir := e.outputDir
	e.mu.Unlock()
	if !running {
		return nil, errors.Wrapf(errors.ErrStartFailed, "plugin %s is not running", pluginName)
	}
	if task.ID == "" {
		return nil, errors.Newf("export task has no id")
	}
	if task.Format != "" && task.Format != "csv" {
		return nil, errors.Newf("unsupported export format %q", task.Format)
	}

	rows, err := extractRows(task.Query)
	if err != nil {
		return nil, err
	}

	started := time.Now()
	location := filepath.Join(dir, task.ID+".csv")
	f, err := os.Create(location)
	if err != nil {
		return nil, errors.Wrapf(err, "creating export file %s", location)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if header, ok := task.Options["header"].([]string); ok && len(header) > 0 {
		if err := w.Write(header); err != nil {
			return nil, errors.Wrap(err, "writing header")
		}
	}
	records := 0
	for _, row := range rows {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		if err := w.Write(row); err != nil {
			return nil, errors.Wrapf(err, "writing row %d", records)
		}
		records++
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, errors.Wrap(err, "flushing export")
	}

	e.mu.Lock()
	e.exported++
	e.mu.Unlock()

	return &plugin.ExportResult{
		TaskID:      task.ID,
		Location:    location,
		ContentType: "text/csv",
		Records:     records,
		Duration:    time.Since(started),
	}, nil
}

// extractRows pulls [][]string out of the loosely-typed task query.
func extractRows(query map[string]interface{}) ([][]string, error) {
	raw, ok := query["rows"]
	if !ok {
		return nil, nil
	}
	switch rows := raw.(type) {
	case [][]string:
		return rows, nil
	case []interface{}:
		out := make([][]string, 0, len(rows))
		for i, r := range rows {
			cells, ok := r.([]interface{})
			if !ok {
				return nil, errors.Newf("row %d is %T, want a list", i, r)
			}
			row := make([]string, len(cells))
			for j, cell := range cells {
				row[j] = fmt.Sprint(cell)
			}
			out = append(out, row)
		}
		return out, nil
	default:
		return nil, errors.Newf("rows is %T, want a list of rows", raw)
	}
}

var (
	_ plugin.ExportPlugin    = (*Exporter)(nil)
	_ plugin.ConfigValidator = (*Exporter)(nil)
	_ plugin.HealthReporter  = (*Exporter)(nil)
)
