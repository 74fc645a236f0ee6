package shell

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skeinworks/skein/pkg/toolexecutor"
)

func newToolRig(t *testing.T, cfg Config) (*toolexecutor.Dispatcher, *Session) {
	t.Helper()
	sess := newTestSession(t, cfg)
	reg := toolexecutor.NewRegistry(zerolog.Nop())
	require.NoError(t, RegisterTools(reg, sess))
	disp := toolexecutor.NewDispatcher(reg, toolexecutor.DispatcherConfig{Timeout: 30 * time.Second}, zerolog.Nop())
	return disp, sess
}

func TestRegisterTools(t *testing.T) {
	sess := newTestSession(t, Config{})
	reg := toolexecutor.NewRegistry(zerolog.Nop())
	require.NoError(t, RegisterTools(reg, sess))

	assert.ElementsMatch(t, []string{"cancel_current_command", "run_command"}, reg.List())

	run := reg.Get("run_command")
	require.NotNil(t, run)
	assert.True(t, run.ComputeHeavy)

	cancel := reg.Get("cancel_current_command")
	require.NotNil(t, cancel)
	assert.True(t, cancel.ComputeHeavy)
}

func TestRunCommandTool(t *testing.T) {
	disp, _ := newToolRig(t, Config{})

	results := disp.Dispatch(context.Background(), []toolexecutor.Call{
		{ID: "c1", Name: "run_command", Arguments: map[string]interface{}{"command": "echo via-tool"}},
	})
	require.Len(t, results, 1)
	require.True(t, results[0].Success, results[0].Error)
	assert.Contains(t, results[0].Output, "via-tool")
	assert.Contains(t, results[0].Output, string(StatusFinished))
}

func TestRunCommandTool_MissingArgument(t *testing.T) {
	disp, _ := newToolRig(t, Config{})

	results := disp.Dispatch(context.Background(), []toolexecutor.Call{
		{ID: "c1", Name: "run_command", Arguments: map[string]interface{}{}},
	})
	require.Len(t, results, 1)
	assert.False(t, results[0].Success)
	assert.Contains(t, results[0].Error, "command")
}

func TestRunCommandTool_EmptyCommand(t *testing.T) {
	sess := newTestSession(t, Config{})

	handler := runCommandHandler(sess)
	_, err := handler(context.Background(), map[string]interface{}{"command": "   "})
	require.Error(t, err)
}

func TestRunCommandTool_BusyWaitsForCurrent(t *testing.T) {
	disp, _ := newToolRig(t, Config{CommandTimeout: 250 * time.Millisecond})
	ctx := context.Background()

	results := disp.Dispatch(ctx, []toolexecutor.Call{
		{ID: "c1", Name: "run_command", Arguments: map[string]interface{}{"command": "sleep 30"}},
	})
	require.True(t, results[0].Success, results[0].Error)
	require.Contains(t, results[0].Output, string(StatusRunning))

	// A second run_command keeps waiting for the in-flight command rather
	// than starting a new one.
	results = disp.Dispatch(ctx, []toolexecutor.Call{
		{ID: "c2", Name: "run_command", Arguments: map[string]interface{}{"command": "echo queued"}},
	})
	require.True(t, results[0].Success, results[0].Error)
	assert.Contains(t, results[0].Output, string(StatusRunning))

	results = disp.Dispatch(ctx, []toolexecutor.Call{
		{ID: "c3", Name: "cancel_current_command", Arguments: nil},
	})
	require.True(t, results[0].Success, results[0].Error)
	assert.Contains(t, results[0].Output, string(StatusCancelled))
}

func TestCancelTool_NoCommand(t *testing.T) {
	disp, _ := newToolRig(t, Config{})

	results := disp.Dispatch(context.Background(), []toolexecutor.Call{
		{ID: "c1", Name: "cancel_current_command", Arguments: nil},
	})
	require.Len(t, results, 1)
	assert.False(t, results[0].Success)
	assert.Contains(t, results[0].Error, "no command")
}
