package builtin

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/BaSui01/modulebot/module"
)

const (
	defaultChannel  = "#general"
	defaultGreeting = "Hello!"
)

// Greeter announces itself in a channel when enabled and, if a farewell is
// configured, when disabled. The greeting stored in the host configuration
// under greeter.greeting overrides the manifest setting.
type Greeter struct {
	host     module.Host
	channel  string
	farewell string
}

// GreeterKind builds a greeter factory. Settings: channel, greeting, farewell.
func GreeterKind(settings map[string]string) (module.Factory, error) {
	channel := setting(settings, "channel", defaultChannel)
	if !strings.HasPrefix(channel, "#") {
		return nil, fmt.Errorf("greeter: channel %q must start with #", channel)
	}
	greeting := setting(settings, "greeting", defaultGreeting)
	farewell := setting(settings, "farewell", "")

	return func(ctx context.Context, host module.Host) (module.Module, error) {
		text := greeting
		switch v, err := host.Config(ctx, "greeter", "greeting"); {
		case err == nil && v != "":
			text = v
		case err != nil && !errors.Is(err, module.ErrConfigNotFound):
			return nil, fmt.Errorf("greeter: read config: %w", err)
		}
		if err := host.Notice(ctx, channel, text); err != nil {
			return nil, fmt.Errorf("greeter: announce: %w", err)
		}
		return &Greeter{host: host, channel: channel, farewell: farewell}, nil
	}, nil
}

// Stop sends the farewell, if any.
func (g *Greeter) Stop(ctx context.Context) error {
	if g.farewell == "" {
		return nil
	}
	return g.host.Notice(ctx, g.channel, g.farewell)
}

func setting(settings map[string]string, key, fallback string) string {
	if v, ok := settings[key]; ok && v != "" {
		return v
	}
	return fallback
}
