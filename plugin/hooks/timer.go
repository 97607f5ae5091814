package hooks

import (
	"fmt"
	"time"
)

// TimePhase starts timing one lifecycle phase for a plugin. The returned
// function stops the clock, records a duration metric, and closes the
// span (when a tracer is configured) with the phase outcome.
//
//	done := emitter.TimePhase("csv-export", "init")
//	err := p.Init(ctx, ec)
//	done(err)
func (e *Emitter) TimePhase(pluginName, phase string) func(err error) {
	start := time.Now()

	var span Span
	if e.tracer != nil {
		e.guarded("tracer", func() {
			span = e.tracer.StartSpan(fmt.Sprintf("plugin.%s.%s", pluginName, phase))
		})
	}

	return func(err error) {
		elapsed := time.Since(start)
		e.Metric("plugin_phase_duration_seconds", elapsed.Seconds(), map[string]string{
			"plugin": pluginName,
			"phase":  phase,
			"ok":     fmt.Sprintf("%t", err == nil),
		})
		if span != nil {
			e.guarded("tracer", func() { span.End(err) })
		}
		e.log.Debugw("phase timed",
			"plugin", pluginName, "phase", phase, "duration", elapsed, "ok", err == nil)
	}
}
