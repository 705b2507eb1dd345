package catalog

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Watcher polls a manifest directory and invokes a callback after the set
// of manifests or their contents changed. Bursts of changes are coalesced
// by the debounce delay.
type Watcher struct {
	mu sync.Mutex

	dir           string
	interval      time.Duration
	debounceDelay time.Duration
	onChange      func(ctx context.Context)
	logger        *zap.Logger

	running     bool
	fingerprint string
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithPollInterval sets how often the directory is checked.
func WithPollInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// WithDebounceDelay sets the quiet period required before onChange fires.
func WithDebounceDelay(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		w.debounceDelay = d
	}
}

// WithWatcherLogger sets the logger.
func WithWatcherLogger(logger *zap.Logger) WatcherOption {
	return func(w *Watcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// NewWatcher creates a watcher over dir.
func NewWatcher(dir string, onChange func(ctx context.Context), opts ...WatcherOption) *Watcher {
	w := &Watcher{
		dir:           dir,
		interval:      time.Second,
		debounceDelay: 200 * time.Millisecond,
		onChange:      onChange,
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.With(zap.String("component", "manifest_watcher"))
	return w
}

// Run polls until ctx is done. It returns ctx.Err() on exit.
func (w *Watcher) Run(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("watcher already running")
	}
	w.running = true
	// 记录初始状态，启动时不触发回调
	w.fingerprint = w.scan()
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
	}()

	w.logger.Info("manifest watcher started",
		zap.String("dir", w.dir),
		zap.Duration("interval", w.interval),
		zap.Duration("debounce_delay", w.debounceDelay))

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	var (
		pending  bool
		lastSeen time.Time
	)
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("manifest watcher stopped")
			return ctx.Err()
		case now := <-ticker.C:
			if w.changed() {
				pending, lastSeen = true, now
				continue
			}
			// 防抖：目录静止 debounceDelay 后才触发
			if pending && now.Sub(lastSeen) >= w.debounceDelay {
				pending = false
				w.logger.Info("module manifests changed", zap.String("dir", w.dir))
				if w.onChange != nil {
					w.onChange(ctx)
				}
			}
		}
	}
}

// IsRunning reports whether Run is active.
func (w *Watcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *Watcher) changed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	fp := w.scan()
	if fp == w.fingerprint {
		return false
	}
	w.fingerprint = fp
	return true
}

// scan builds a fingerprint from manifest names, sizes and mod times.
func (w *Watcher) scan() string {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		if !os.IsNotExist(err) {
			w.logger.Warn("manifest dir unreadable", zap.String("dir", w.dir), zap.Error(err))
		}
		return ""
	}
	parts := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !isManifest(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s:%d:%d", filepath.Base(e.Name()), info.Size(), info.ModTime().UnixNano()))
	}
	sort.Strings(parts)
	return strings.Join(parts, "|")
}
