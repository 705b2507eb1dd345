package builtin

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/BaSui01/modulebot/module"
)

// Counter persists how many times it has been started through the host
// configuration, and the time it was last stopped.
type Counter struct {
	host    module.Host
	section string
	starts  int
	now     func() time.Time
}

// CounterKind builds a counter factory. Settings: section (default "counter").
func CounterKind(settings map[string]string) (module.Factory, error) {
	section := setting(settings, "section", "counter")
	return func(ctx context.Context, host module.Host) (module.Module, error) {
		starts := 0
		v, err := host.Config(ctx, section, "starts")
		switch {
		case err == nil:
			if starts, err = strconv.Atoi(v); err != nil {
				return nil, fmt.Errorf("counter: stored starts %q is not a number", v)
			}
		case !errors.Is(err, module.ErrConfigNotFound):
			return nil, fmt.Errorf("counter: read config: %w", err)
		}
		starts++
		if err := host.SetConfig(ctx, section, "starts", strconv.Itoa(starts)); err != nil {
			return nil, fmt.Errorf("counter: write config: %w", err)
		}
		return &Counter{host: host, section: section, starts: starts, now: time.Now}, nil
	}, nil
}

// Starts returns the start count observed when this instance was created.
func (c *Counter) Starts() int { return c.starts }

// Stop records the stop time.
func (c *Counter) Stop(ctx context.Context) error {
	return c.host.SetConfig(ctx, c.section, "last_stop", c.now().UTC().Format(time.RFC3339))
}
