// Package eventlog provides the builtin lifecycle event logger, an
// observer plugin that writes every lifecycle event to the structured
// log.
package eventlog

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/gantry-sh/gantry/plugin"
	"github.com/gantry-sh/gantry/plugin/discovery"
)

const (
	pluginName    = "event-log"
	pluginVersion = "1.0.0"
)

func init() {
	discovery.RegisterBuiltin("gantry", pluginName, func() (plugin.Plugin, error) {
		return New(), nil
	})
}

// Logger observes lifecycle events and logs them.
type Logger struct {
	mu   sync.Mutex
	log  *zap.SugaredLogger
	seen int
}

// New creates an unstarted event logger.
func New() *Logger {
	return &Logger{log: zap.NewNop().Sugar()}
}

func (l *Logger) Name() string      { return pluginName }
func (l *Logger) Version() string   { return pluginVersion }
func (l *Logger) Kind() plugin.Kind { return plugin.KindObserver }

func (l *Logger) Metadata() plugin.Metadata {
	return plugin.Metadata{
		Name:        pluginName,
		Version:     pluginVersion,
		Kind:        plugin.KindObserver,
		Description: "Logs plugin lifecycle events",
		Author:      plugin.Author{Name: "Gantry Authors"},
		Category:    "observability",
		Keywords:    []string{"events", "audit"},
	}
}

func (l *Logger) Init(_ context.Context, ec *plugin.ExecutionContext) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.log = ec.Logger
	return nil
}

func (l *Logger) Start(_ context.Context) error { return nil }
func (l *Logger) Stop(_ context.Context) error  { return nil }

// OnEvent logs one lifecycle event.
func (l *Logger) OnEvent(_ context.Context, event plugin.Event) error {
	l.mu.Lock()
	l.seen++
	log := l.log
	l.mu.Unlock()

	log.Infow("plugin lifecycle event",
		"event_id", event.ID,
		"type", event.Type,
		"plugin", event.Plugin,
		"status", event.Status)
	return nil
}

// Seen returns how many events have been delivered.
func (l *Logger) Seen() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.seen
}

var _ plugin.ObserverPlugin = (*Logger)(nil)
