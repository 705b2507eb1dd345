package module

import (
	"context"
	"fmt"
	"sync/atomic"
)

// scopedHost is the facade handed to a single instance. It forwards exactly
// the Host methods to the bot and nothing else, so an instance cannot reach
// the manager through it. It is revoked once the instance is disabled.
type scopedHost struct {
	module  string
	bot     Host
	revoked atomic.Bool
}

var _ Host = (*scopedHost)(nil)

func newScopedHost(module string, bot Host) *scopedHost {
	return &scopedHost{module: module, bot: bot}
}

func (h *scopedHost) revoke() { h.revoked.Store(true) }

func (h *scopedHost) check() error {
	if h.revoked.Load() {
		return fmt.Errorf("module %s: %w", h.module, ErrHostRevoked)
	}
	if h.bot == nil {
		return fmt.Errorf("module %s: no host configured", h.module)
	}
	return nil
}

func (h *scopedHost) Notice(ctx context.Context, target, text string) error {
	if err := h.check(); err != nil {
		return err
	}
	return h.bot.Notice(ctx, target, text)
}

func (h *scopedHost) Message(ctx context.Context, target, text string) error {
	if err := h.check(); err != nil {
		return err
	}
	return h.bot.Message(ctx, target, text)
}

func (h *scopedHost) Config(ctx context.Context, section, key string) (string, error) {
	if err := h.check(); err != nil {
		return "", err
	}
	return h.bot.Config(ctx, section, key)
}

func (h *scopedHost) SetConfig(ctx context.Context, section, key, value string) error {
	if err := h.check(); err != nil {
		return err
	}
	return h.bot.SetConfig(ctx, section, key, value)
}
