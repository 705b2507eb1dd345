// Package module implements the runtime module manager of the bot.
//
// A Catalog supplies named Descriptors. The Manager registers descriptors
// (available), constructs running instances from them (enabled) and tears
// them down again. Every lifecycle operation is total: it returns a Result
// describing the outcome and never lets a misbehaving module's error or
// panic escape.
//
// Usage:
//
//	mgr := module.NewManager(ctx, catalog, bot,
//	    module.WithBlacklist("debug"),
//	    module.WithLogger(logger))
//	defer mgr.Unload(ctx)
//
//	res := mgr.Enable(ctx, "greeter")
//	fmt.Println(res) // Module greeter enabled
//
// Operations run to completion before returning, including the module's own
// constructor and Stop code. A hanging module blocks the manager unless an
// operation timeout is configured with WithOperationTimeout, in which case
// the module is treated as failed for that call only.
package module
