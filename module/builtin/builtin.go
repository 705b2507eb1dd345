// Package builtin contains the modules compiled into the bot.
package builtin

import (
	"github.com/BaSui01/modulebot/module"
	"github.com/BaSui01/modulebot/module/catalog"
)

// Version is reported for builtin modules loaded from the static catalog.
const Version = "1.0.0"

// Kinds returns the factory kinds manifests may refer to.
func Kinds() catalog.Kinds {
	return catalog.Kinds{
		"greeter": GreeterKind,
		"counter": CounterKind,
	}
}

// Descriptors returns every builtin module with default settings.
func Descriptors() []module.Descriptor {
	var out []module.Descriptor
	for _, name := range []string{"greeter", "counter"} {
		factory, err := Kinds()[name](nil)
		out = append(out, module.Descriptor{Name: name, Version: Version, Factory: factory, Err: err})
	}
	return out
}
