// Package host implements the bot side of module.Host: outbound messages
// go through a rate-limited Transport, configuration goes to a
// configstore.Store.
package host

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/BaSui01/modulebot/internal/configstore"
	"github.com/BaSui01/modulebot/module"
)

// Transport delivers raw protocol lines to the chat network.
type Transport interface {
	Send(ctx context.Context, line string) error
}

// WriterTransport writes CRLF-terminated lines to an io.Writer.
type WriterTransport struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriterTransport wraps w.
func NewWriterTransport(w io.Writer) *WriterTransport {
	return &WriterTransport{w: w}
}

// Send writes line followed by CRLF.
func (t *WriterTransport) Send(_ context.Context, line string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, err := io.WriteString(t.w, line+"\r\n")
	return err
}

// Config configures outbound flood protection.
type Config struct {
	// 每秒允许发送的消息数，<= 0 表示不限速
	RatePerSecond float64 `yaml:"rate_per_second" env:"RATE_PER_SECOND"`
	// 突发容量
	Burst int `yaml:"burst" env:"BURST"`
	// 输出目标: stdout, stderr, discard
	Output string `yaml:"output" env:"OUTPUT"`
}

// DefaultConfig returns the default flood protection used by IRC networks.
func DefaultConfig() Config {
	return Config{
		RatePerSecond: 2,
		Burst:         5,
		Output:        "stdout",
	}
}

// Bot is the host every module facade forwards to.
type Bot struct {
	transport Transport
	store     configstore.Store
	limiter   *rate.Limiter
	logger    *zap.Logger
}

var _ module.Host = (*Bot)(nil)

// New creates a Bot. A nil logger means zap.NewNop().
func New(transport Transport, store configstore.Store, cfg Config, logger *zap.Logger) *Bot {
	if logger == nil {
		logger = zap.NewNop()
	}
	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RatePerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst)
	}
	return &Bot{
		transport: transport,
		store:     store,
		limiter:   limiter,
		logger:    logger.With(zap.String("component", "bot_host")),
	}
}

// Notice sends a NOTICE to target.
func (b *Bot) Notice(ctx context.Context, target, text string) error {
	return b.send(ctx, "NOTICE", target, text)
}

// Message sends a PRIVMSG to target.
func (b *Bot) Message(ctx context.Context, target, text string) error {
	return b.send(ctx, "PRIVMSG", target, text)
}

// send emits one line per line of text, each waiting on the limiter.
func (b *Bot) send(ctx context.Context, command, target, text string) error {
	if target == "" || strings.ContainsAny(target, " \r\n") {
		return fmt.Errorf("invalid target %q", target)
	}
	for _, line := range splitLines(text) {
		if err := b.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit wait: %w", err)
		}
		if err := b.transport.Send(ctx, command+" "+target+" :"+line); err != nil {
			b.logger.Warn("send failed",
				zap.String("command", command),
				zap.String("target", target),
				zap.Error(err))
			return fmt.Errorf("send %s: %w", command, err)
		}
	}
	return nil
}

// Config reads a value from the store.
func (b *Bot) Config(ctx context.Context, section, key string) (string, error) {
	v, err := b.store.Get(ctx, section, key)
	if errors.Is(err, configstore.ErrNotFound) {
		return "", fmt.Errorf("%s.%s: %w", section, key, module.ErrConfigNotFound)
	}
	return v, err
}

// SetConfig writes a value to the store.
func (b *Bot) SetConfig(ctx context.Context, section, key, value string) error {
	if err := b.store.Set(ctx, section, key, value); err != nil {
		return err
	}
	b.logger.Debug("config updated", zap.String("section", section), zap.String("key", key))
	return nil
}

// splitLines breaks text on every CR and LF so no bare CR reaches the wire.
func splitLines(text string) []string {
	out := strings.FieldsFunc(text, func(r rune) bool { return r == '\r' || r == '\n' })
	if len(out) == 0 {
		out = []string{""}
	}
	return out
}
