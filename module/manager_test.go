package module

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newTestManager(t *testing.T, cat Catalog, opts ...Option) *Manager {
	t.Helper()
	m := NewManager(context.Background(), cat, newTestHost(), opts...)
	t.Cleanup(func() { m.Unload(context.Background()) })
	return m
}

func TestNewManager_LoadsCatalogExceptBlacklist(t *testing.T) {
	sp := &spawner{}
	cat := newTestCatalog(sp.descriptor("alpha"), sp.descriptor("beta"))
	m := newTestManager(t, cat, WithBlacklist("beta"))

	assert.Equal(t, []string{"alpha"}, m.ListAvailable())
	assert.Empty(t, m.ListEnabled())
}

func TestNewManager_HidesUnderscoreNames(t *testing.T) {
	sp := &spawner{}
	m := newTestManager(t, newTestCatalog(sp.descriptor("_internal"), sp.descriptor("alpha")))

	assert.Equal(t, []string{"alpha"}, m.ListAvailable())
	assert.Equal(t, StatusNotFound, m.Add(context.Background(), "_internal").Status)
}

func TestNewManager_ScanFailureStartsEmpty(t *testing.T) {
	cat := newTestCatalog()
	cat.failScans(errBoom)
	m := newTestManager(t, cat)

	assert.Empty(t, m.ListAvailable())
}

func TestNewManager_Autostart(t *testing.T) {
	sp := &spawner{}
	cat := newTestCatalog(sp.descriptor("alpha"), sp.descriptor("beta"))
	m := newTestManager(t, cat, WithAutostart("beta", "ghost"))

	assert.Equal(t, []string{"beta"}, m.ListEnabled())
	assert.Equal(t, []string{"alpha"}, m.ListDisabled())
}

func TestManager_Scenario(t *testing.T) {
	ctx := context.Background()
	sp := &spawner{}
	cat := newTestCatalog(sp.descriptor("alpha"), sp.descriptor("beta"))
	m := newTestManager(t, cat, WithBlacklist("beta"))

	require.Equal(t, []string{"alpha"}, m.ListAvailable())

	res := m.Enable(ctx, "alpha")
	assert.Equal(t, StatusEnabled, res.Status)
	assert.Equal(t, StateEnabled, res.State)
	assert.Equal(t, []string{"alpha"}, m.ListEnabled())

	res = m.Enable(ctx, "beta")
	assert.Equal(t, StatusNotAvailable, res.Status)
	assert.ErrorIs(t, res.Err(), ErrNotAvailable)

	res = m.Disable(ctx, "alpha")
	assert.Equal(t, StatusDisabled, res.Status)
	assert.Empty(t, m.ListEnabled())
	assert.Equal(t, []string{"alpha"}, m.ListAvailable())

	res = m.Remove(ctx, "alpha")
	assert.Equal(t, StatusRemoved, res.Status)
	assert.Empty(t, m.ListAvailable())
}

func TestManager_Add(t *testing.T) {
	ctx := context.Background()
	sp := &spawner{}
	broken := Descriptor{Name: "broken", Err: errors.New("unknown kind")}
	nofactory := Descriptor{Name: "nofactory"}

	tests := []struct {
		name       string
		module     string
		wantStatus Status
		wantErr    error
	}{
		{name: "catalog module", module: "alpha", wantStatus: StatusAdded},
		{name: "unknown module", module: "ghost", wantStatus: StatusNotFound, wantErr: ErrNotFound},
		{name: "malformed descriptor", module: "broken", wantStatus: StatusConstructionError, wantErr: ErrConstructionFailed},
		{name: "descriptor without factory", module: "nofactory", wantStatus: StatusConstructionError, wantErr: ErrConstructionFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cat := newTestCatalog()
			m := newTestManager(t, cat)
			cat.set(sp.descriptor("alpha"))
			cat.set(broken)
			cat.set(nofactory)

			res := m.Add(ctx, tt.module)
			assert.Equal(t, tt.wantStatus, res.Status)
			if tt.wantErr != nil {
				assert.ErrorIs(t, res.Err(), tt.wantErr)
				assert.False(t, m.IsAvailable(tt.module))
			} else {
				assert.NoError(t, res.Err())
				assert.True(t, m.IsAvailable(tt.module))
			}
		})
	}
}

func TestManager_AddIsIdempotent(t *testing.T) {
	ctx := context.Background()
	sp := &spawner{}
	cat := newTestCatalog()
	m := newTestManager(t, cat)
	cat.set(sp.descriptor("alpha"))

	require.Equal(t, StatusAdded, m.Add(ctx, "alpha").Status)
	before := m.Modules()

	res := m.Add(ctx, "alpha")
	assert.Equal(t, StatusAlreadyAvailable, res.Status)
	assert.ErrorIs(t, res.Err(), ErrAlreadyAvailable)
	assert.Equal(t, before, m.Modules())
}

func TestManager_AddScanFailure(t *testing.T) {
	cat := newTestCatalog()
	m := newTestManager(t, cat)
	cat.failScans(errBoom)

	res := m.Add(context.Background(), "alpha")
	assert.Equal(t, StatusConstructionError, res.Status)
	assert.ErrorIs(t, res.Err(), errBoom)
}

func TestManager_EnableGhost(t *testing.T) {
	m := newTestManager(t, newTestCatalog())

	res := m.Enable(context.Background(), "ghost")
	assert.Equal(t, StatusNotAvailable, res.Status)
	assert.Empty(t, m.ListAvailable())
	assert.Empty(t, m.ListEnabled())
}

func TestManager_EnableTwice(t *testing.T) {
	ctx := context.Background()
	sp := &spawner{}
	m := newTestManager(t, newTestCatalog(sp.descriptor("alpha")))

	require.True(t, m.Enable(ctx, "alpha").OK())
	res := m.Enable(ctx, "alpha")
	assert.Equal(t, StatusAlreadyEnabled, res.Status)
	assert.Equal(t, 1, sp.count())
}

func TestManager_EnableConstructionFailure(t *testing.T) {
	ctx := context.Background()
	sp := &spawner{newErr: errBoom}
	m := newTestManager(t, newTestCatalog(sp.descriptor("alpha")))

	res := m.Enable(ctx, "alpha")
	assert.Equal(t, StatusConstructionFailed, res.Status)
	assert.Equal(t, StateAvailable, res.State)
	assert.ErrorIs(t, res.Err(), ErrConstructionFailed)
	assert.ErrorIs(t, res.Err(), errBoom)
	assert.Contains(t, res.String(), "failed to load")
	assert.False(t, m.IsEnabled("alpha"))
	assert.True(t, m.IsAvailable("alpha"))
}

func TestManager_EnableRecoversPanics(t *testing.T) {
	ctx := context.Background()
	cat := newTestCatalog(Descriptor{Name: "panicky", Factory: func(context.Context, Host) (Module, error) {
		panic("constructor exploded")
	}})
	m := newTestManager(t, cat)

	res := m.Enable(ctx, "panicky")
	assert.Equal(t, StatusConstructionFailed, res.Status)
	assert.ErrorIs(t, res.Err(), ErrPanic)
	assert.False(t, m.IsEnabled("panicky"))
}

func TestManager_EnableNilInstance(t *testing.T) {
	cat := newTestCatalog(Descriptor{Name: "empty", Factory: func(context.Context, Host) (Module, error) {
		return nil, nil
	}})
	m := newTestManager(t, cat)

	res := m.Enable(context.Background(), "empty")
	assert.Equal(t, StatusConstructionFailed, res.Status)
}

func TestManager_DisableWithFailingStop(t *testing.T) {
	ctx := context.Background()
	core, logs := observer.New(zapcore.WarnLevel)
	sp := &spawner{stopErr: errBoom}
	m := newTestManager(t, newTestCatalog(sp.descriptor("X")), WithLogger(zap.New(core)))

	require.Equal(t, StatusEnabled, m.Enable(ctx, "X").Status)

	res := m.Disable(ctx, "X")
	assert.Equal(t, StatusDisabled, res.Status)
	assert.True(t, res.OK())
	assert.NoError(t, res.Err())
	assert.ErrorIs(t, res.Teardown, ErrTeardownFailed)
	assert.ErrorIs(t, res.Teardown, errBoom)
	assert.False(t, m.IsEnabled("X"))
	assert.Equal(t, int32(1), sp.last().stopped.Load())

	entries := logs.FilterMessage("module failed to stop").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "X", entries[0].ContextMap()["module"])
}

func TestManager_DisableRecoversStopPanic(t *testing.T) {
	ctx := context.Background()
	cat := newTestCatalog(Descriptor{Name: "panicky", Factory: func(context.Context, Host) (Module, error) {
		return stopFunc(func(context.Context) error { panic("stop exploded") }), nil
	}})
	m := newTestManager(t, cat)

	require.True(t, m.Enable(ctx, "panicky").OK())
	res := m.Disable(ctx, "panicky")
	assert.Equal(t, StatusDisabled, res.Status)
	assert.ErrorIs(t, res.Teardown, ErrPanic)
	assert.False(t, m.IsEnabled("panicky"))
}

func TestManager_DisableNotEnabled(t *testing.T) {
	sp := &spawner{}
	m := newTestManager(t, newTestCatalog(sp.descriptor("alpha")))

	res := m.Disable(context.Background(), "alpha")
	assert.Equal(t, StatusNotEnabled, res.Status)
	assert.Equal(t, StateAvailable, res.State)
	assert.ErrorIs(t, res.Err(), ErrNotEnabled)
}

func TestManager_RemoveCascadesDisable(t *testing.T) {
	ctx := context.Background()
	sp := &spawner{stopErr: errBoom}
	m := newTestManager(t, newTestCatalog(sp.descriptor("alpha")))

	require.True(t, m.Enable(ctx, "alpha").OK())
	res := m.Remove(ctx, "alpha")
	assert.Equal(t, StatusRemoved, res.Status)
	require.Len(t, res.Steps, 1)
	assert.Equal(t, StatusDisabled, res.Steps[0].Status)
	assert.ErrorIs(t, res.Teardown, ErrTeardownFailed)
	assert.False(t, m.IsEnabled("alpha"))
	assert.False(t, m.IsAvailable("alpha"))
	assert.Equal(t, int32(1), sp.last().stopped.Load())

	assert.Equal(t, StatusNotAvailable, m.Remove(ctx, "alpha").Status)
}

func TestManager_Restart(t *testing.T) {
	ctx := context.Background()
	sp := &spawner{}
	m := newTestManager(t, newTestCatalog(sp.descriptor("alpha")))

	t.Run("not running is enabled", func(t *testing.T) {
		res := m.Restart(ctx, "alpha")
		assert.Equal(t, StatusEnabled, res.Status)
		assert.Equal(t, "Module alpha restarted", res.String())
		assert.Len(t, res.Steps, 1)
	})

	t.Run("running is recreated", func(t *testing.T) {
		old := sp.last()
		res := m.Restart(ctx, "alpha")
		assert.Equal(t, StatusEnabled, res.Status)
		assert.Len(t, res.Steps, 2)
		assert.Equal(t, int32(1), old.stopped.Load())
		assert.NotSame(t, old, sp.last())
		inst, ok := m.Get("alpha")
		require.True(t, ok)
		assert.Same(t, sp.last(), inst)
	})

	t.Run("unknown module", func(t *testing.T) {
		assert.Equal(t, StatusNotAvailable, m.Restart(ctx, "ghost").Status)
	})

	t.Run("failed enable leaves module available", func(t *testing.T) {
		sp.mu.Lock()
		sp.newErr = errBoom
		sp.mu.Unlock()
		res := m.Restart(ctx, "alpha")
		assert.Equal(t, StatusConstructionFailed, res.Status)
		assert.ErrorIs(t, res.Err(), errBoom)
		assert.False(t, m.IsEnabled("alpha"))
		assert.True(t, m.IsAvailable("alpha"))
	})
}

func TestManager_ReloadPreservesRunState(t *testing.T) {
	ctx := context.Background()
	v1 := &spawner{version: "1.0.0"}
	v2 := &spawner{version: "2.0.0"}
	cat := newTestCatalog(v1.descriptor("alpha"), v1.descriptor("beta"))
	m := newTestManager(t, cat)
	require.True(t, m.Enable(ctx, "alpha").OK())

	cat.set(v2.descriptor("alpha"))
	cat.set(v2.descriptor("beta"))

	res := m.Reload(ctx, "alpha")
	assert.Equal(t, StatusReloaded, res.Status)
	assert.Equal(t, StateEnabled, res.State)
	require.Len(t, res.Steps, 3)
	assert.Equal(t, []Status{StatusRemoved, StatusAdded, StatusEnabled},
		[]Status{res.Steps[0].Status, res.Steps[1].Status, res.Steps[2].Status})
	assert.Equal(t, int32(1), v1.last().stopped.Load())
	assert.Equal(t, 1, v2.count())
	info, ok := m.Info("alpha")
	require.True(t, ok)
	assert.Equal(t, "2.0.0", info.Version)

	res = m.Reload(ctx, "beta")
	assert.Equal(t, StatusReloaded, res.Status)
	assert.Equal(t, StateAvailable, res.State)
	assert.False(t, m.IsEnabled("beta"))
	assert.Equal(t, 1, v2.count())
}

func TestManager_ReloadFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("gone from catalog", func(t *testing.T) {
		sp := &spawner{}
		cat := newTestCatalog(sp.descriptor("alpha"))
		m := newTestManager(t, cat)
		require.True(t, m.Enable(ctx, "alpha").OK())
		cat.drop("alpha")

		res := m.Reload(ctx, "alpha")
		assert.Equal(t, StatusReloadFailed, res.Status)
		assert.ErrorIs(t, res.Err(), ErrNotFound)
		assert.Len(t, res.Steps, 2, "enable is skipped when add fails")
		assert.Equal(t, StateUnknown, res.State)
		assert.False(t, m.IsAvailable("alpha"))
	})

	t.Run("new code fails to construct", func(t *testing.T) {
		sp := &spawner{}
		cat := newTestCatalog(sp.descriptor("alpha"))
		m := newTestManager(t, cat)
		require.True(t, m.Enable(ctx, "alpha").OK())
		bad := &spawner{newErr: errBoom}
		cat.set(bad.descriptor("alpha"))

		res := m.Reload(ctx, "alpha")
		assert.Equal(t, StatusReloadFailed, res.Status)
		assert.ErrorIs(t, res.Err(), errBoom)
		assert.Equal(t, StateAvailable, res.State)
		assert.True(t, m.IsAvailable("alpha"))
		assert.False(t, m.IsEnabled("alpha"))
	})
}

func TestManager_Resync(t *testing.T) {
	ctx := context.Background()
	sp := &spawner{}
	cat := newTestCatalog(sp.descriptor("alpha"), sp.descriptor("beta"), sp.descriptor("gamma"))
	m := newTestManager(t, cat, WithBlacklist("banned"))
	require.True(t, m.Enable(ctx, "alpha").OK())
	require.True(t, m.Enable(ctx, "gamma").OK())

	cat.drop("gamma")
	cat.set(sp.descriptor("delta"))
	cat.set(sp.descriptor("banned"))
	cat.set(Descriptor{Name: "broken", Err: errBoom})

	report := m.Resync(ctx)
	require.NoError(t, report.Err)

	require.Len(t, report.Removed, 1)
	assert.Equal(t, "gamma", report.Removed[0].Module)
	assert.Len(t, report.Reloaded, 2)
	require.Len(t, report.Added, 2)
	assert.Equal(t, "delta", report.Added[0].Module)
	assert.Equal(t, StatusConstructionError, report.Added[1].Status)
	failed := report.Failed()
	require.Len(t, failed, 1)
	assert.Equal(t, "broken", failed[0].Module)

	assert.Equal(t, []string{"alpha", "beta", "delta"}, m.ListAvailable())
	assert.Equal(t, []string{"alpha"}, m.ListEnabled())
}

func TestManager_ResyncScanFailureChangesNothing(t *testing.T) {
	ctx := context.Background()
	sp := &spawner{}
	cat := newTestCatalog(sp.descriptor("alpha"))
	m := newTestManager(t, cat)
	require.True(t, m.Enable(ctx, "alpha").OK())
	before := m.Modules()

	cat.failScans(errBoom)
	report := m.Resync(ctx)
	assert.ErrorIs(t, report.Err, errBoom)
	assert.Equal(t, before, m.Modules())
}

func TestManager_Unload(t *testing.T) {
	ctx := context.Background()
	sp := &spawner{}
	m := NewManager(ctx, newTestCatalog(sp.descriptor("alpha"), sp.descriptor("beta")), newTestHost())
	require.True(t, m.Enable(ctx, "beta").OK())

	results := m.Unload(ctx)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.Equal(t, StatusRemoved, r.Status)
	}
	assert.Empty(t, m.ListAvailable())
	assert.Equal(t, int32(1), sp.last().stopped.Load())
}

func TestManager_Queries(t *testing.T) {
	ctx := context.Background()
	sp := &spawner{version: "0.1.0"}
	m := newTestManager(t, newTestCatalog(sp.descriptor("beta"), sp.descriptor("alpha")))
	require.True(t, m.Enable(ctx, "beta").OK())

	assert.Equal(t, []string{"alpha", "beta"}, m.ListAvailable())
	assert.Equal(t, []string{"beta"}, m.ListEnabled())
	assert.Equal(t, []string{"alpha"}, m.ListDisabled())
	assert.True(t, m.IsEnabled("beta"))
	assert.False(t, m.IsEnabled("alpha"))

	_, ok := m.Get("alpha")
	assert.False(t, ok)
	inst, ok := m.Get("beta")
	require.True(t, ok)
	assert.Same(t, sp.last(), inst)

	mods := m.Modules()
	require.Len(t, mods, 2)
	assert.Equal(t, StateAvailable, mods[0].State)
	assert.Empty(t, mods[0].InstanceID)
	assert.Equal(t, StateEnabled, mods[1].State)
	assert.NotEmpty(t, mods[1].InstanceID)
	assert.Equal(t, "0.1.0", mods[1].Version)
	assert.False(t, mods[1].EnabledAt.IsZero())

	_, ok = m.Info("ghost")
	assert.False(t, ok)
}

func TestManager_OperationTimeout(t *testing.T) {
	ctx := context.Background()
	release := make(chan struct{})
	late := &testModule{name: "slow"}
	cat := newTestCatalog(Descriptor{Name: "slow", Factory: func(context.Context, Host) (Module, error) {
		<-release
		return late, nil
	}})
	m := newTestManager(t, cat, WithOperationTimeout(20*time.Millisecond))

	res := m.Enable(ctx, "slow")
	assert.Equal(t, StatusConstructionFailed, res.Status)
	assert.ErrorIs(t, res.Err(), ErrTimeout)
	assert.False(t, m.IsEnabled("slow"))

	close(release)
	assert.Eventually(t, func() bool { return late.stopped.Load() == 1 },
		time.Second, 5*time.Millisecond, "late instance should be stopped")
	assert.False(t, m.IsEnabled("slow"))
}

func TestManager_StopTimeoutStillDisables(t *testing.T) {
	ctx := context.Background()
	block := make(chan struct{})
	defer close(block)
	cat := newTestCatalog(Descriptor{Name: "hang", Factory: func(context.Context, Host) (Module, error) {
		return stopFunc(func(context.Context) error { <-block; return nil }), nil
	}})
	m := newTestManager(t, cat, WithOperationTimeout(20*time.Millisecond))

	require.True(t, m.Enable(ctx, "hang").OK())
	res := m.Disable(ctx, "hang")
	assert.Equal(t, StatusDisabled, res.Status)
	assert.ErrorIs(t, res.Teardown, ErrTimeout)
	assert.False(t, m.IsEnabled("hang"))
}

func TestManager_IgnoresCancellation(t *testing.T) {
	sp := &spawner{}
	m := newTestManager(t, newTestCatalog(sp.descriptor("alpha")))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Equal(t, StatusEnabled, m.Enable(ctx, "alpha").Status)
}

func TestManager_ConcurrentOperations(t *testing.T) {
	ctx := context.Background()
	sp := &spawner{}
	names := []string{"a", "b", "c", "d"}
	cat := newTestCatalog()
	for _, n := range names {
		cat.set(sp.descriptor(n))
	}
	m := newTestManager(t, cat)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				name := names[(i+j)%len(names)]
				switch j % 5 {
				case 0:
					m.Enable(ctx, name)
				case 1:
					m.Disable(ctx, name)
				case 2:
					m.Reload(ctx, name)
				case 3:
					m.Remove(ctx, name)
				case 4:
					m.Add(ctx, name)
				}
			}
		}(i)
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				snap := m.snapshot()
				for name := range snap.enabled {
					assert.Contains(t, snap.available, name)
				}
			}
		}()
	}
	wg.Wait()

	for _, name := range m.ListEnabled() {
		assert.True(t, m.IsAvailable(name))
	}
}

type stopFunc func(context.Context) error

func (f stopFunc) Stop(ctx context.Context) error { return f(ctx) }
