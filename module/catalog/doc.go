// Package catalog provides module.Catalog implementations.
//
// Static serves descriptors compiled into the binary. Manifest scans a
// directory of YAML manifests and resolves each against a table of factory
// kinds, so editing a manifest and resyncing picks up new settings without a
// rebuild. Watcher polls a manifest directory and reports changes.
package catalog
