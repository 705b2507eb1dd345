// MockHost 是 module.Host 的测试模拟实现。
//
// 记录每条发送内容，支持预置配置与错误注入。
package mocks

import (
	"context"
	"sync"

	"github.com/BaSui01/modulebot/module"
)

// Line 记录一次发送
type Line struct {
	Kind   string // notice 或 message
	Target string
	Text   string
}

// MockHost 是 module.Host 的模拟实现
type MockHost struct {
	mu      sync.Mutex
	lines   []Line
	config  map[string]string
	sendErr error
}

var _ module.Host = (*MockHost)(nil)

// NewMockHost 创建新的 MockHost
func NewMockHost() *MockHost {
	return &MockHost{config: make(map[string]string)}
}

// WithConfig 预置一个配置项
func (h *MockHost) WithConfig(section, key, value string) *MockHost {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.config[section+"."+key] = value
	return h
}

// WithSendError 让所有发送返回 err
func (h *MockHost) WithSendError(err error) *MockHost {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sendErr = err
	return h
}

func (h *MockHost) record(kind, target, text string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.sendErr != nil {
		return h.sendErr
	}
	h.lines = append(h.lines, Line{Kind: kind, Target: target, Text: text})
	return nil
}

func (h *MockHost) Notice(_ context.Context, target, text string) error {
	return h.record("notice", target, text)
}

func (h *MockHost) Message(_ context.Context, target, text string) error {
	return h.record("message", target, text)
}

func (h *MockHost) Config(_ context.Context, section, key string) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	v, ok := h.config[section+"."+key]
	if !ok {
		return "", module.ErrConfigNotFound
	}
	return v, nil
}

func (h *MockHost) SetConfig(_ context.Context, section, key, value string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.config[section+"."+key] = value
	return nil
}

// Lines 返回发送记录的副本
func (h *MockHost) Lines() []Line {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Line, len(h.lines))
	copy(out, h.lines)
	return out
}
