// Package configstore provides the key/value configuration storage behind
// the bot's Host.Config and Host.SetConfig calls. Values are grouped in
// sections, one per module by convention.
//
// Backends: in-memory, Redis (one hash per section) and SQL through GORM
// (sqlite, postgres, mysql).
package configstore
