package module

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResult_String(t *testing.T) {
	tests := []struct {
		res  Result
		want string
	}{
		{Result{Op: OpAdd, Module: "a", Status: StatusAdded}, "Module a added"},
		{Result{Op: OpAdd, Module: "a", Status: StatusAlreadyAvailable}, "Module a already available"},
		{Result{Op: OpAdd, Module: "a", Status: StatusConstructionError, Cause: errBoom}, "Error loading module a: boom"},
		{Result{Op: OpEnable, Module: "a", Status: StatusEnabled}, "Module a enabled"},
		{Result{Op: OpRestart, Module: "a", Status: StatusEnabled}, "Module a restarted"},
		{Result{Op: OpEnable, Module: "a", Status: StatusConstructionFailed, Cause: errBoom}, "Module a failed to load: boom"},
		{Result{Op: OpDisable, Module: "a", Status: StatusDisabled}, "Module a disabled"},
		{Result{Op: OpDisable, Module: "a", Status: StatusNotEnabled}, "Module a not enabled"},
		{Result{Op: OpRemove, Module: "a", Status: StatusNotAvailable}, "Module a not available"},
		{Result{Op: OpReload, Module: "a", Status: StatusReloaded}, "Module a reloaded"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.res.String())
		})
	}
}

func TestResult_Err(t *testing.T) {
	assert.NoError(t, Result{Status: StatusAdded}.Err())
	assert.NoError(t, Result{Status: StatusDisabled, Teardown: ErrTeardownFailed}.Err())
	assert.ErrorIs(t, Result{Status: StatusNotFound}.Err(), ErrNotFound)
	assert.ErrorIs(t, Result{Status: StatusAlreadyEnabled}.Err(), ErrAlreadyEnabled)

	reload := Result{Op: OpReload, Module: "a", Status: StatusReloadFailed, Steps: []Result{
		{Op: OpRemove, Module: "a", Status: StatusNotAvailable},
		{Op: OpAdd, Module: "a", Status: StatusNotFound},
	}}
	assert.ErrorIs(t, reload.Err(), ErrNotFound)
	assert.NotErrorIs(t, reload.Err(), ErrNotAvailable)
}

func TestResult_JSON(t *testing.T) {
	data, err := json.Marshal(Result{Op: OpEnable, Module: "a", Status: StatusEnabled, State: StateEnabled})
	require.NoError(t, err)
	assert.JSONEq(t, `{"op":"enable","module":"a","status":"enabled","state":"enabled"}`, string(data))
}

func TestParseOp(t *testing.T) {
	op, ok := ParseOp("Enable")
	assert.True(t, ok)
	assert.Equal(t, OpEnable, op)

	_, ok = ParseOp("resync")
	assert.False(t, ok)
	_, ok = ParseOp("explode")
	assert.False(t, ok)
}

func TestInfo_JSONOmitsZeroEnabledAt(t *testing.T) {
	raw, err := json.Marshal(Info{Name: "greeter", State: StateAvailable})
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "enabled_at")

	raw, err = json.Marshal(Info{Name: "greeter", State: StateEnabled, EnabledAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)})
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"enabled_at":"2024-05-01T12:00:00Z"`)
}
