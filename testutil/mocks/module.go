package mocks

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/BaSui01/modulebot/module"
)

// --- MockModule ---

// MockModule 是 module.Module 的模拟实现
type MockModule struct {
	Name    string
	Host    module.Host
	stopErr error
	stops   atomic.Int32
}

// Stop 记录调用次数并返回预置错误
func (m *MockModule) Stop(context.Context) error {
	m.stops.Add(1)
	return m.stopErr
}

// Stops 返回 Stop 被调用的次数
func (m *MockModule) Stops() int { return int(m.stops.Load()) }

// --- MockFactory ---

// MockFactory 构造 MockModule 并记录每个实例
type MockFactory struct {
	mu        sync.Mutex
	instances []*MockModule
	newErr    error
	stopErr   error
	delay     time.Duration
	panicMsg  string
}

// NewMockFactory 创建新的 MockFactory
func NewMockFactory() *MockFactory {
	return &MockFactory{}
}

// WithConstructError 让构造返回 err
func (f *MockFactory) WithConstructError(err error) *MockFactory {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.newErr = err
	return f
}

// WithStopError 让后续实例的 Stop 返回 err
func (f *MockFactory) WithStopError(err error) *MockFactory {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopErr = err
	return f
}

// WithDelay 让构造阻塞 d
func (f *MockFactory) WithDelay(d time.Duration) *MockFactory {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delay = d
	return f
}

// WithPanic 让构造 panic
func (f *MockFactory) WithPanic(msg string) *MockFactory {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.panicMsg = msg
	return f
}

// Descriptor 返回使用该工厂的描述符
func (f *MockFactory) Descriptor(name, version string) module.Descriptor {
	return module.Descriptor{Name: name, Version: version, Factory: f.Factory(name)}
}

// Factory 返回 module.Factory
func (f *MockFactory) Factory(name string) module.Factory {
	return func(_ context.Context, host module.Host) (module.Module, error) {
		f.mu.Lock()
		newErr, stopErr, delay, panicMsg := f.newErr, f.stopErr, f.delay, f.panicMsg
		f.mu.Unlock()

		if delay > 0 {
			time.Sleep(delay)
		}
		if panicMsg != "" {
			panic(panicMsg)
		}
		if newErr != nil {
			return nil, newErr
		}
		m := &MockModule{Name: name, Host: host, stopErr: stopErr}
		f.mu.Lock()
		f.instances = append(f.instances, m)
		f.mu.Unlock()
		return m, nil
	}
}

// Instances 返回已构造实例的副本
func (f *MockFactory) Instances() []*MockModule {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*MockModule, len(f.instances))
	copy(out, f.instances)
	return out
}

// Last 返回最近构造的实例
func (f *MockFactory) Last() *MockModule {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.instances) == 0 {
		return nil
	}
	return f.instances[len(f.instances)-1]
}
