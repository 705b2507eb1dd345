package module

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"go.uber.org/zap"
)

type constructed struct {
	mod Module
	err error
}

// construct runs a factory with panic recovery and the optional timeout.
// When the timeout expires the call fails with ErrTimeout; an instance that is
// produced afterwards is stopped in the background and never registered.
func (m *Manager) construct(ctx context.Context, name string, factory Factory, host Host) (Module, error) {
	if factory == nil {
		return nil, fmt.Errorf("module %s has no factory", name)
	}

	run := func() (out constructed) {
		defer func() {
			if r := recover(); r != nil {
				m.logger.Error("module constructor panicked",
					zap.String("module", name),
					zap.Any("panic", r),
					zap.ByteString("stack", debug.Stack()))
				out = constructed{err: fmt.Errorf("%w: %v", ErrPanic, r)}
			}
		}()
		mod, err := factory(ctx, host)
		if err == nil && mod == nil {
			err = fmt.Errorf("factory for %s returned no instance", name)
		}
		return constructed{mod: mod, err: err}
	}

	if m.timeout <= 0 {
		out := run()
		return out.mod, out.err
	}

	done := make(chan constructed, 1)
	go func() { done <- run() }()

	timer := time.NewTimer(m.timeout)
	defer timer.Stop()

	select {
	case out := <-done:
		return out.mod, out.err
	case <-timer.C:
		go m.reapLate(ctx, name, done)
		return nil, fmt.Errorf("%w: constructor exceeded %s", ErrTimeout, m.timeout)
	}
}

// reapLate stops an instance whose constructor returned after its timeout.
func (m *Manager) reapLate(ctx context.Context, name string, done <-chan constructed) {
	out := <-done
	if out.err != nil || out.mod == nil {
		return
	}
	m.logger.Warn("stopping module instance that finished constructing after timeout",
		zap.String("module", name))
	if err := m.stop(ctx, name, out.mod); err != nil {
		m.logger.Warn("late module instance failed to stop",
			zap.String("module", name),
			zap.Error(err))
	}
}

// stop runs Stop with panic recovery and the optional timeout.
func (m *Manager) stop(ctx context.Context, name string, mod Module) (err error) {
	run := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				m.logger.Error("module stop panicked",
					zap.String("module", name),
					zap.Any("panic", r),
					zap.ByteString("stack", debug.Stack()))
				err = fmt.Errorf("%w: %v", ErrPanic, r)
			}
		}()
		return mod.Stop(ctx)
	}

	if m.timeout <= 0 {
		return run()
	}

	done := make(chan error, 1)
	go func() { done <- run() }()

	timer := time.NewTimer(m.timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case <-timer.C:
		return fmt.Errorf("%w: stop exceeded %s", ErrTimeout, m.timeout)
	}
}
