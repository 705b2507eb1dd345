package module

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for lifecycle outcomes.
var (
	ErrNotFound           = errors.New("module not found in catalog")
	ErrAlreadyAvailable   = errors.New("module already available")
	ErrAlreadyEnabled     = errors.New("module already enabled")
	ErrNotAvailable       = errors.New("module not available")
	ErrNotEnabled         = errors.New("module not enabled")
	ErrConstructionFailed = errors.New("module construction failed")
	ErrTeardownFailed     = errors.New("module teardown failed")
	ErrTimeout            = errors.New("module did not respond in time")
	ErrPanic              = errors.New("module panicked")
	ErrHostRevoked        = errors.New("host reference revoked")
)

// Op names a lifecycle operation.
type Op string

const (
	OpAdd     Op = "add"
	OpRemove  Op = "remove"
	OpEnable  Op = "enable"
	OpDisable Op = "disable"
	OpRestart Op = "restart"
	OpReload  Op = "reload"
	OpResync  Op = "resync"
)

// ParseOp resolves an operation name. Resync is not addressable per module.
func ParseOp(s string) (Op, bool) {
	switch op := Op(strings.ToLower(s)); op {
	case OpAdd, OpRemove, OpEnable, OpDisable, OpRestart, OpReload:
		return op, true
	}
	return "", false
}

// State is the registry state of a single module name.
type State string

const (
	StateUnknown   State = "unknown"
	StateAvailable State = "available"
	StateEnabled   State = "enabled"
)

// Status is the discrete outcome of an operation.
type Status int

const (
	StatusAdded Status = iota
	StatusAlreadyAvailable
	StatusNotFound
	StatusConstructionError
	StatusRemoved
	StatusNotAvailable
	StatusEnabled
	StatusAlreadyEnabled
	StatusConstructionFailed
	StatusDisabled
	StatusNotEnabled
	StatusReloaded
	StatusReloadFailed
)

var statusNames = map[Status]string{
	StatusAdded:              "added",
	StatusAlreadyAvailable:   "already_available",
	StatusNotFound:           "not_found",
	StatusConstructionError:  "construction_error",
	StatusRemoved:            "removed",
	StatusNotAvailable:       "not_available",
	StatusEnabled:            "enabled",
	StatusAlreadyEnabled:     "already_enabled",
	StatusConstructionFailed: "construction_failed",
	StatusDisabled:           "disabled",
	StatusNotEnabled:         "not_enabled",
	StatusReloaded:           "reloaded",
	StatusReloadFailed:       "reload_failed",
}

// String returns the snake_case name of the status.
func (s Status) String() string {
	if n, ok := statusNames[s]; ok {
		return n
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Status) UnmarshalText(text []byte) error {
	for st, n := range statusNames {
		if n == string(text) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown status %q", text)
}

// OK reports whether the status is a successful transition.
func (s Status) OK() bool {
	switch s {
	case StatusAdded, StatusRemoved, StatusEnabled, StatusDisabled, StatusReloaded:
		return true
	}
	return false
}

// sentinel maps failure statuses onto their error kind.
func (s Status) sentinel() error {
	switch s {
	case StatusAlreadyAvailable:
		return ErrAlreadyAvailable
	case StatusNotFound:
		return ErrNotFound
	case StatusConstructionError, StatusConstructionFailed:
		return ErrConstructionFailed
	case StatusNotAvailable:
		return ErrNotAvailable
	case StatusAlreadyEnabled:
		return ErrAlreadyEnabled
	case StatusNotEnabled:
		return ErrNotEnabled
	}
	return nil
}

// Result describes the outcome of one lifecycle operation.
type Result struct {
	Op     Op     `json:"op"`
	Module string `json:"module"`
	Status Status `json:"status"`
	// State is the module's registry state after the operation.
	State State `json:"state"`
	// Cause is the underlying module error for construction failures.
	Cause error `json:"-"`
	// Teardown holds a Stop failure. It never changes Status.
	Teardown error `json:"-"`
	// Steps are the sub-results of composite operations (restart, reload).
	Steps []Result `json:"steps,omitempty"`
}

// Err returns nil for successful results and a wrapped sentinel otherwise.
func (r Result) Err() error {
	if r.Status == StatusReloadFailed {
		for _, s := range r.Steps {
			if err := s.Err(); err != nil && s.Status != StatusNotAvailable {
				return fmt.Errorf("reload %s: %w", r.Module, err)
			}
		}
		return fmt.Errorf("reload %s: %w", r.Module, ErrConstructionFailed)
	}
	sentinel := r.Status.sentinel()
	if sentinel == nil {
		return nil
	}
	if r.Cause != nil {
		return fmt.Errorf("%s %s: %w: %w", r.Op, r.Module, sentinel, r.Cause)
	}
	return fmt.Errorf("%s %s: %w", r.Op, r.Module, sentinel)
}

// OK reports whether the operation performed its transition.
func (r Result) OK() bool { return r.Status.OK() }

// String renders the outcome for a human reader.
func (r Result) String() string {
	switch r.Status {
	case StatusAdded:
		return "Module " + r.Module + " added"
	case StatusAlreadyAvailable:
		return "Module " + r.Module + " already available"
	case StatusNotFound:
		return "Module " + r.Module + " not found"
	case StatusConstructionError:
		return fmt.Sprintf("Error loading module %s: %v", r.Module, r.Cause)
	case StatusRemoved:
		return "Module " + r.Module + " removed"
	case StatusNotAvailable:
		return "Module " + r.Module + " not available"
	case StatusEnabled:
		if r.Op == OpRestart {
			return "Module " + r.Module + " restarted"
		}
		return "Module " + r.Module + " enabled"
	case StatusAlreadyEnabled:
		return "Module " + r.Module + " already enabled"
	case StatusConstructionFailed:
		return fmt.Sprintf("Module %s failed to load: %v", r.Module, r.Cause)
	case StatusDisabled:
		return "Module " + r.Module + " disabled"
	case StatusNotEnabled:
		return "Module " + r.Module + " not enabled"
	case StatusReloaded:
		return "Module " + r.Module + " reloaded"
	case StatusReloadFailed:
		if err := r.Err(); err != nil {
			return fmt.Sprintf("Module %s failed to reload: %v", r.Module, err)
		}
		return "Module " + r.Module + " failed to reload"
	}
	return fmt.Sprintf("Module %s: %s", r.Module, r.Status)
}

// ResyncReport groups the results of a bulk resync in execution order.
type ResyncReport struct {
	Removed  []Result `json:"removed"`
	Reloaded []Result `json:"reloaded"`
	Added    []Result `json:"added"`
	// Err is set when the catalog scan failed; no registry change was made.
	Err error `json:"-"`
}

// Failed returns every result in the report that did not succeed.
func (r ResyncReport) Failed() []Result {
	var out []Result
	for _, group := range [][]Result{r.Removed, r.Reloaded, r.Added} {
		for _, res := range group {
			if !res.OK() {
				out = append(out, res)
			}
		}
	}
	return out
}
