package module

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/BaSui01/modulebot/internal/ctxkeys"
)

const instrumentationName = "github.com/BaSui01/modulebot/module"

// Manager is the lifecycle controller. It is the only writer of the
// registry; all mutating operations are serialised, and queries read the
// registry published by the last completed operation.
type Manager struct {
	catalog   *blacklistCatalog
	blacklist map[string]struct{}
	bot       Host
	autostart []string
	timeout   time.Duration

	logger    *zap.Logger
	tracer    trace.Tracer
	meter     metric.Meter
	observer  Observer
	opCounter metric.Int64Counter

	mu      sync.Mutex
	work    *registry // guarded by mu
	current atomic.Pointer[registry]
}

// NewManager creates a manager over catalog and registers every module the
// catalog lists. bot receives the Host calls forwarded from instances.
func NewManager(ctx context.Context, catalog Catalog, bot Host, opts ...Option) *Manager {
	m := &Manager{
		blacklist: make(map[string]struct{}),
		bot:       bot,
		logger:    zap.NewNop(),
		tracer:    otel.Tracer(instrumentationName),
		meter:     otel.Meter(instrumentationName),
		observer:  nopObserver{},
		work:      newRegistry(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With(zap.String("component", "module_manager"))
	m.catalog = &blacklistCatalog{next: catalog, blacklist: m.blacklist}

	counter, err := m.meter.Int64Counter("modulebot.module.operations",
		metric.WithDescription("Lifecycle operations performed by the module manager"))
	if err == nil {
		m.opCounter = counter
	}

	m.current.Store(m.work.clone())
	m.load(ctx)
	return m
}

// load performs the construction-time scan and autostart.
func (m *Manager) load(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()
	defer m.publish()

	descs, err := m.catalog.List(ctx)
	if err != nil {
		m.logger.Error("initial catalog scan failed", zap.Error(err))
		return
	}
	for _, d := range descs {
		res := m.add(ctx, d.Name, resolution{desc: d, found: true})
		m.logger.Info("loading module", zap.String("module", d.Name), zap.String("result", res.String()))
	}
	for _, name := range m.autostart {
		res := m.enable(ctx, name)
		m.logResult(ctx, res)
	}
}

// publish makes the working registry visible to queries. Callers hold mu.
func (m *Manager) publish() {
	snap := m.work.clone()
	m.current.Store(snap)
	m.observer.RegistryChanged(len(snap.available), len(snap.enabled))
}

func (m *Manager) snapshot() *registry { return m.current.Load() }

// =============================================================================
// Lifecycle operations
// =============================================================================

// Add registers the named catalog module as available.
func (m *Manager) Add(ctx context.Context, name string) Result {
	return m.run(ctx, OpAdd, name, func(ctx context.Context) Result {
		return m.add(ctx, name, m.resolve(ctx, name))
	})
}

// Remove unregisters a module, disabling it first if it is running.
func (m *Manager) Remove(ctx context.Context, name string) Result {
	return m.run(ctx, OpRemove, name, func(ctx context.Context) Result {
		return m.remove(ctx, name)
	})
}

// Enable constructs and starts an available module.
func (m *Manager) Enable(ctx context.Context, name string) Result {
	return m.run(ctx, OpEnable, name, func(ctx context.Context) Result {
		return m.enable(ctx, name)
	})
}

// Disable stops a running module. It always succeeds for enabled modules;
// a failing Stop is logged and reported in Result.Teardown.
func (m *Manager) Disable(ctx context.Context, name string) Result {
	return m.run(ctx, OpDisable, name, func(ctx context.Context) Result {
		return m.disable(ctx, name)
	})
}

// Restart disables a running module and enables it again. Modules that are
// available but not running are simply enabled.
func (m *Manager) Restart(ctx context.Context, name string) Result {
	return m.run(ctx, OpRestart, name, func(ctx context.Context) Result {
		return m.restart(ctx, name)
	})
}

// Reload replaces a module's descriptor with a freshly resolved one and
// restores its previous run state.
func (m *Manager) Reload(ctx context.Context, name string) Result {
	return m.run(ctx, OpReload, name, func(ctx context.Context) Result {
		return m.reload(ctx, name, func() resolution { return m.resolve(ctx, name) })
	})
}

// Resync reconciles the registry against a fresh catalog scan: modules gone
// from the catalog are removed, the remaining ones are reloaded, and newly
// listed ones are added, in that order.
func (m *Manager) Resync(ctx context.Context) ResyncReport {
	var report ResyncReport
	m.run(ctx, OpResync, "", func(ctx context.Context) Result {
		report = m.resync(ctx)
		status := StatusReloaded
		if report.Err != nil || len(report.Failed()) > 0 {
			status = StatusReloadFailed
		}
		return Result{Op: OpResync, Status: status, Cause: report.Err}
	})
	return report
}

// Unload removes every module, stopping running ones.
func (m *Manager) Unload(ctx context.Context) []Result {
	ctx = context.WithoutCancel(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()
	defer m.publish()

	var results []Result
	for _, name := range m.work.availableNames() {
		res := m.remove(ctx, name)
		m.logger.Info("unloading module", zap.String("module", name), zap.String("result", res.String()))
		results = append(results, res)
	}
	return results
}

// run serialises op, traces it and reports it to the observer.
func (m *Manager) run(ctx context.Context, op Op, name string, fn func(context.Context) Result) Result {
	ctx = context.WithoutCancel(ctx)
	ctx, span := m.tracer.Start(ctx, "module."+string(op),
		trace.WithAttributes(attribute.String("module.name", name)))
	defer span.End()

	start := time.Now()

	m.mu.Lock()
	res := fn(ctx)
	m.publish()
	m.mu.Unlock()

	elapsed := time.Since(start)
	span.SetAttributes(
		attribute.String("module.status", res.Status.String()),
		attribute.String("module.state", string(res.State)),
	)
	if !res.OK() {
		if err := res.Err(); err != nil {
			span.RecordError(err)
		}
		span.SetStatus(codes.Error, res.Status.String())
	}
	if m.opCounter != nil {
		m.opCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("op", string(op)),
			attribute.String("status", res.Status.String()),
		))
	}
	m.observer.OperationCompleted(op, name, res.Status, elapsed)
	if op != OpResync {
		m.logResult(ctx, res)
	}
	return res
}

func (m *Manager) logResult(ctx context.Context, res Result) {
	fields := []zap.Field{
		zap.String("op", string(res.Op)),
		zap.String("module", res.Module),
		zap.String("status", res.Status.String()),
		zap.String("state", string(res.State)),
	}
	if id, ok := ctxkeys.RequestID(ctx); ok {
		fields = append(fields, zap.String("request_id", id))
	}
	if src, ok := ctxkeys.Source(ctx); ok {
		fields = append(fields, zap.String("source", src))
	}
	switch {
	case res.Status == StatusConstructionFailed || res.Status == StatusConstructionError || res.Status == StatusReloadFailed:
		m.logger.Error(res.String(), append(fields, zap.Error(res.Err()))...)
	case res.OK():
		m.logger.Info(res.String(), fields...)
	default:
		m.logger.Debug(res.String(), fields...)
	}
}

// =============================================================================
// Unlocked implementations. Callers hold mu.
// =============================================================================

// resolution is the outcome of looking a name up in the catalog.
type resolution struct {
	desc  Descriptor
	found bool
	err   error
}

func (m *Manager) resolve(ctx context.Context, name string) resolution {
	desc, found, err := m.catalog.lookup(ctx, name)
	return resolution{desc: desc, found: found, err: err}
}

func (m *Manager) add(_ context.Context, name string, res resolution) Result {
	r := Result{Op: OpAdd, Module: name}
	if m.work.isAvailable(name) {
		r.Status, r.State = StatusAlreadyAvailable, m.work.state(name)
		return r
	}
	r.State = StateUnknown
	switch {
	case res.err != nil:
		r.Status, r.Cause = StatusConstructionError, fmt.Errorf("catalog scan: %w", res.err)
		return r
	case !res.found:
		r.Status = StatusNotFound
		return r
	case res.desc.Err != nil:
		r.Status, r.Cause = StatusConstructionError, res.desc.Err
		return r
	case res.desc.Factory == nil:
		r.Status, r.Cause = StatusConstructionError, fmt.Errorf("descriptor %s has no factory", name)
		return r
	}

	m.work.available[name] = res.desc
	r.Status, r.State = StatusAdded, StateAvailable
	return r
}

func (m *Manager) remove(ctx context.Context, name string) Result {
	r := Result{Op: OpRemove, Module: name, State: StateUnknown}
	if !m.work.isAvailable(name) {
		r.Status = StatusNotAvailable
		return r
	}
	if m.work.isEnabled(name) {
		d := m.disable(ctx, name)
		r.Teardown = d.Teardown
		r.Steps = append(r.Steps, d)
	}
	delete(m.work.available, name)
	r.Status = StatusRemoved
	return r
}

func (m *Manager) enable(ctx context.Context, name string) Result {
	r := Result{Op: OpEnable, Module: name}
	desc, ok := m.work.available[name]
	if !ok {
		r.Status, r.State = StatusNotAvailable, StateUnknown
		return r
	}
	if m.work.isEnabled(name) {
		r.Status, r.State = StatusAlreadyEnabled, StateEnabled
		return r
	}

	host := newScopedHost(name, m.bot)
	mod, err := m.construct(ctx, name, desc.Factory, host)
	if err != nil {
		host.revoke()
		r.Status, r.State, r.Cause = StatusConstructionFailed, StateAvailable, err
		return r
	}

	m.work.enabled[name] = &instance{
		id:        uuid.New(),
		module:    mod,
		host:      host,
		version:   desc.Version,
		enabledAt: time.Now(),
	}
	r.Status, r.State = StatusEnabled, StateEnabled
	return r
}

func (m *Manager) disable(ctx context.Context, name string) Result {
	r := Result{Op: OpDisable, Module: name}
	inst, ok := m.work.enabled[name]
	if !ok {
		r.Status, r.State = StatusNotEnabled, m.work.state(name)
		return r
	}

	err := m.stop(ctx, name, inst.module)
	inst.host.revoke()
	delete(m.work.enabled, name)

	if err != nil {
		r.Teardown = fmt.Errorf("%w: %w", ErrTeardownFailed, err)
		m.logger.Warn("module failed to stop",
			zap.String("module", name),
			zap.String("instance_id", inst.id.String()),
			zap.Error(err))
		m.observer.TeardownFailed(name)
	}
	r.Status, r.State = StatusDisabled, StateAvailable
	return r
}

func (m *Manager) restart(ctx context.Context, name string) Result {
	r := Result{Op: OpRestart, Module: name}
	if !m.work.isAvailable(name) {
		r.Status, r.State = StatusNotAvailable, StateUnknown
		return r
	}
	if m.work.isEnabled(name) {
		d := m.disable(ctx, name)
		r.Teardown = d.Teardown
		r.Steps = append(r.Steps, d)
	}
	e := m.enable(ctx, name)
	r.Steps = append(r.Steps, e)
	r.Status, r.State, r.Cause = e.Status, e.State, e.Cause
	return r
}

// reload runs remove, re-resolve, add and, if the module was running,
// enable. A failed add skips the enable step.
func (m *Manager) reload(ctx context.Context, name string, resolve func() resolution) Result {
	r := Result{Op: OpReload, Module: name, Status: StatusReloaded}
	wasEnabled := m.work.isEnabled(name)

	rm := m.remove(ctx, name)
	r.Teardown = rm.Teardown
	r.Steps = append(r.Steps, rm)

	add := m.add(ctx, name, resolve())
	r.Steps = append(r.Steps, add)
	if !add.OK() {
		r.Status, r.Cause = StatusReloadFailed, add.Cause
	} else if wasEnabled {
		en := m.enable(ctx, name)
		r.Steps = append(r.Steps, en)
		if !en.OK() {
			r.Status, r.Cause = StatusReloadFailed, en.Cause
		}
	}
	r.State = m.work.state(name)
	return r
}

func (m *Manager) resync(ctx context.Context) ResyncReport {
	var report ResyncReport

	descs, err := m.catalog.List(ctx)
	if err != nil {
		report.Err = fmt.Errorf("catalog scan: %w", err)
		m.logger.Error("resync aborted, catalog scan failed", zap.Error(err))
		return report
	}
	scanned := make(map[string]Descriptor, len(descs))
	for _, d := range descs {
		scanned[d.Name] = d
	}

	for _, name := range m.work.availableNames() {
		if _, ok := scanned[name]; ok {
			continue
		}
		res := m.remove(ctx, name)
		m.logResult(ctx, res)
		report.Removed = append(report.Removed, res)
	}

	handled := make(map[string]struct{})
	for _, name := range m.work.availableNames() {
		desc := scanned[name]
		res := m.reload(ctx, name, func() resolution { return resolution{desc: desc, found: true} })
		m.logResult(ctx, res)
		report.Reloaded = append(report.Reloaded, res)
		handled[name] = struct{}{}
	}

	for _, d := range descs {
		if _, ok := handled[d.Name]; ok || m.work.isAvailable(d.Name) {
			continue
		}
		res := m.add(ctx, d.Name, resolution{desc: d, found: true})
		m.logResult(ctx, res)
		report.Added = append(report.Added, res)
	}

	m.logger.Info("resync complete",
		zap.Int("removed", len(report.Removed)),
		zap.Int("reloaded", len(report.Reloaded)),
		zap.Int("added", len(report.Added)),
		zap.Int("failed", len(report.Failed())))
	return report
}

// =============================================================================
// Queries
// =============================================================================

// ListAvailable returns the sorted names of every registered module.
func (m *Manager) ListAvailable() []string { return m.snapshot().availableNames() }

// ListEnabled returns the sorted names of running modules.
func (m *Manager) ListEnabled() []string { return m.snapshot().enabledNames() }

// ListDisabled returns the sorted names of registered modules that are not running.
func (m *Manager) ListDisabled() []string { return m.snapshot().disabledNames() }

// IsAvailable reports whether name is registered.
func (m *Manager) IsAvailable(name string) bool { return m.snapshot().isAvailable(name) }

// IsEnabled reports whether name is running.
func (m *Manager) IsEnabled(name string) bool { return m.snapshot().isEnabled(name) }

// Get returns the running instance for name.
func (m *Manager) Get(name string) (Module, bool) {
	inst, ok := m.snapshot().enabled[name]
	if !ok {
		return nil, false
	}
	return inst.module, true
}

// Info describes a registered module.
func (m *Manager) Info(name string) (Info, bool) { return m.snapshot().info(name) }

// Modules describes every registered module, sorted by name.
func (m *Manager) Modules() []Info {
	snap := m.snapshot()
	names := snap.availableNames()
	out := make([]Info, 0, len(names))
	for _, name := range names {
		info, _ := snap.info(name)
		out = append(out, info)
	}
	return out
}
