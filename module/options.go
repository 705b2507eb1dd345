package module

import (
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Observer receives lifecycle events, typically to export metrics.
type Observer interface {
	// OperationCompleted is called once per top-level operation.
	OperationCompleted(op Op, module string, status Status, elapsed time.Duration)
	// TeardownFailed is called whenever a module's Stop fails.
	TeardownFailed(module string)
	// RegistryChanged is called after every published registry change.
	RegistryChanged(available, enabled int)
}

type nopObserver struct{}

func (nopObserver) OperationCompleted(Op, string, Status, time.Duration) {}
func (nopObserver) TeardownFailed(string)                                {}
func (nopObserver) RegistryChanged(int, int)                             {}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger. A nil logger is ignored.
func WithLogger(logger *zap.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithBlacklist excludes names from every catalog scan the manager makes.
func WithBlacklist(names ...string) Option {
	return func(m *Manager) {
		for _, n := range names {
			m.blacklist[n] = struct{}{}
		}
	}
}

// WithAutostart enables the named modules once the initial scan completes.
func WithAutostart(names ...string) Option {
	return func(m *Manager) {
		m.autostart = append(m.autostart, names...)
	}
}

// WithOperationTimeout bounds each call into module constructor or Stop
// code. Zero disables the bound.
func WithOperationTimeout(d time.Duration) Option {
	return func(m *Manager) {
		m.timeout = d
	}
}

// WithObserver sets the lifecycle observer.
func WithObserver(o Observer) Option {
	return func(m *Manager) {
		if o != nil {
			m.observer = o
		}
	}
}

// WithMeter overrides the meter taken from the global otel provider.
func WithMeter(mt metric.Meter) Option {
	return func(m *Manager) {
		if mt != nil {
			m.meter = mt
		}
	}
}

// WithTracer overrides the tracer taken from the global otel provider.
func WithTracer(t trace.Tracer) Option {
	return func(m *Manager) {
		if t != nil {
			m.tracer = t
		}
	}
}
